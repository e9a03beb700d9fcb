// Package logging provides structured JSON logging for viva components.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Options configures the process-wide log sink.
type Options struct {
	Level  string    // debug, info, warn, error
	Format string    // json or text
	Output io.Writer // defaults to stderr
}

var (
	baseMu sync.RWMutex
	base   = newBase(Options{})
)

func newBase(opts Options) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if opts.Output != nil {
		l.SetOutput(opts.Output)
	}
	if strings.EqualFold(opts.Format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "ts",
				logrus.FieldKeyMsg:  "event",
			},
		})
	}
	l.SetLevel(logrus.InfoLevel)
	if lvl, err := logrus.ParseLevel(opts.Level); err == nil && opts.Level != "" {
		l.SetLevel(lvl)
	}
	return l
}

// Setup replaces the process-wide sink. Loggers created before the call
// keep writing to the sink they were created with.
func Setup(opts Options) {
	l := newBase(opts)
	baseMu.Lock()
	base = l
	baseMu.Unlock()
}

// Base returns the process-wide logrus logger.
func Base() *logrus.Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return base
}

// Logger provides structured logging
type Logger struct {
	entry *logrus.Entry
}

// New creates a new logger for a component
func New(component string) *Logger {
	return NewWith(Base(), component)
}

// NewWith creates a component logger on an explicit logrus logger.
func NewWith(l *logrus.Logger, component string) *Logger {
	return &Logger{entry: l.WithField("component", component)}
}

// WithSession tags every event with a session id.
func (l *Logger) WithSession(id string) *Logger {
	if id == "" {
		return l
	}
	return &Logger{entry: l.entry.WithField("session", id)}
}

// WithRequest tags every event with a request id.
func (l *Logger) WithRequest(id string) *Logger {
	if id == "" {
		return l
	}
	return &Logger{entry: l.entry.WithField("request_id", id)}
}

func (l *Logger) log(level logrus.Level, event string, extra map[string]interface{}, err error) {
	e := l.entry
	if len(extra) > 0 {
		e = e.WithField("extra", extra)
	}
	if err != nil {
		e = e.WithField("error", err.Error())
	}
	e.Log(level, event)
}

// Debug logs a debug event
func (l *Logger) Debug(event string, extra map[string]interface{}) {
	l.log(logrus.DebugLevel, event, extra, nil)
}

// Info logs an info event
func (l *Logger) Info(event string, extra map[string]interface{}) {
	l.log(logrus.InfoLevel, event, extra, nil)
}

// Warn logs a warning event
func (l *Logger) Warn(event string, extra map[string]interface{}, err error) {
	l.log(logrus.WarnLevel, event, extra, err)
}

// Error logs an error event
func (l *Logger) Error(event string, extra map[string]interface{}, err error) {
	l.log(logrus.ErrorLevel, event, extra, err)
}

// TimedEvent logs an event with duration
func (l *Logger) TimedEvent(event string, start time.Time, extra map[string]interface{}) {
	e := l.entry.WithField("duration_ms", time.Since(start).Milliseconds())
	if len(extra) > 0 {
		e = e.WithField("extra", extra)
	}
	e.Info(event)
}

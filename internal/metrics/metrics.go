// Package metrics provides a simple Prometheus-compatible metrics endpoint.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds runtime counters for the viva server.
type Metrics struct {
	SessionsStarted  atomic.Int64
	SessionsFinished atomic.Int64
	SummariesFailed  atomic.Int64 // degraded summaries

	Answers             atomic.Int64
	FillerWords         atomic.Int64
	SpokenWords         atomic.Int64
	TranscriptionErrors atomic.Int64
	GenerationErrors    atomic.Int64

	TTSRequests atomic.Int64
	TTSErrors   atomic.Int64

	// Last successful answer round trip in ms
	LastAnswerMs atomic.Int64

	startTime time.Time
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// New creates an empty metrics set.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// RecordStart records a session start.
func (m *Metrics) RecordStart() {
	m.SessionsStarted.Add(1)
}

// RecordAnswer records a completed candidate turn.
func (m *Metrics) RecordAnswer(words, fillers int, d time.Duration) {
	m.Answers.Add(1)
	m.SpokenWords.Add(int64(words))
	m.FillerWords.Add(int64(fillers))
	m.LastAnswerMs.Store(d.Milliseconds())
}

// RecordFinish records a finished session.
func (m *Metrics) RecordFinish(degraded bool) {
	m.SessionsFinished.Add(1)
	if degraded {
		m.SummariesFailed.Add(1)
	}
}

// RecordTranscriptionError records a failed transcription.
func (m *Metrics) RecordTranscriptionError() {
	m.TranscriptionErrors.Add(1)
}

// RecordGenerationError records a failed generator call.
func (m *Metrics) RecordGenerationError() {
	m.GenerationErrors.Add(1)
}

// RecordTTS records a speech synthesis request.
func (m *Metrics) RecordTTS(success bool) {
	m.TTSRequests.Add(1)
	if !success {
		m.TTSErrors.Add(1)
	}
}

type sample struct {
	name, kind, help string
	value            string
}

func (m *Metrics) samples() []sample {
	c := func(name, help string, v *atomic.Int64) sample {
		return sample{name, "counter", help, fmt.Sprint(v.Load())}
	}
	return []sample{
		{"viva_uptime_seconds", "gauge", "Time since the server started", fmt.Sprintf("%.2f", time.Since(m.startTime).Seconds())},
		c("viva_sessions_started_total", "Sessions created", &m.SessionsStarted),
		c("viva_sessions_finished_total", "Sessions graded and closed", &m.SessionsFinished),
		c("viva_summaries_degraded_total", "Summaries whose reply could not be parsed", &m.SummariesFailed),
		c("viva_answers_total", "Candidate turns answered", &m.Answers),
		c("viva_spoken_words_total", "Words transcribed from candidates", &m.SpokenWords),
		c("viva_filler_words_total", "Filler words detected", &m.FillerWords),
		c("viva_transcription_errors_total", "Failed transcriptions", &m.TranscriptionErrors),
		c("viva_generation_errors_total", "Failed generator calls", &m.GenerationErrors),
		c("viva_tts_requests_total", "Speech synthesis requests", &m.TTSRequests),
		c("viva_tts_errors_total", "Failed speech synthesis requests", &m.TTSErrors),
		{"viva_last_answer_duration_ms", "gauge", "Last answer round trip", fmt.Sprint(m.LastAnswerMs.Load())},
	}
}

// Handler returns an HTTP handler for /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		for i, s := range m.samples() {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "# HELP %s %s\n", s.name, s.help)
			fmt.Fprintf(w, "# TYPE %s %s\n", s.name, s.kind)
			fmt.Fprintf(w, "%s %s\n", s.name, s.value)
		}
	}
}

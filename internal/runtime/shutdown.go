// Package runtime provides graceful shutdown handling for viva processes.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/keshav2232/viva/internal/logging"
)

// ShutdownFunc is a cleanup function called during shutdown
type ShutdownFunc func(ctx context.Context) error

// ShutdownManager runs registered cleanup handlers once, in reverse
// registration order, under a shared timeout.
type ShutdownManager struct {
	mu       sync.Mutex
	handlers []namedHandler
	timeout  time.Duration
	log      *logging.Logger
	done     chan struct{}
	once     sync.Once
	err      error
}

type namedHandler struct {
	name string
	fn   ShutdownFunc
}

// DefaultShutdownTimeout is the default timeout for cleanup operations
const DefaultShutdownTimeout = 30 * time.Second

// NewShutdownManager creates a new shutdown manager with specified timeout
func NewShutdownManager(timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &ShutdownManager{
		timeout: timeout,
		log:     logging.New("shutdown"),
		done:    make(chan struct{}),
	}
}

// Register adds a cleanup handler to be called during shutdown.
// Handlers run last registered, first called.
func (m *ShutdownManager) Register(name string, fn ShutdownFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, namedHandler{name: name, fn: fn})
}

// RegisterCloser adds a handler for an io.Closer style func.
func (m *ShutdownManager) RegisterCloser(name string, closeFn func() error) {
	m.Register(name, func(context.Context) error { return closeFn() })
}

// Done returns a channel that's closed when shutdown is complete
func (m *ShutdownManager) Done() <-chan struct{} {
	return m.done
}

// Shutdown runs the handlers. Only the first call does any work; every call
// returns the joined handler errors.
func (m *ShutdownManager) Shutdown() error {
	m.once.Do(func() {
		m.err = m.performShutdown()
		close(m.done)
	})
	<-m.done
	return m.err
}

func (m *ShutdownManager) performShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	handlers := make([]namedHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	var errs []error
	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, ctx.Err()))
			continue
		}
		start := time.Now()
		err := h.fn(ctx)
		extra := map[string]interface{}{"handler": h.name}
		if err != nil {
			m.log.Warn("shutdown_handler_failed", extra, err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		m.log.TimedEvent("shutdown_handler_done", start, extra)
	}
	return errors.Join(errs...)
}

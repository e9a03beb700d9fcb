package logging

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

// RecoveryHandler handles panics with logging and an optional callback.
type RecoveryHandler struct {
	Component string
	OnPanic   func(err interface{}, stack string)

	log *Logger
}

// NewRecoveryHandler creates a recovery handler for a component
func NewRecoveryHandler(component string) *RecoveryHandler {
	return &RecoveryHandler{Component: component, log: New(component)}
}

// Wrap executes fn with panic recovery
func (r *RecoveryHandler) Wrap(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.handlePanic(rec, string(debug.Stack()))
		}
	}()
	fn()
}

// WrapError executes fn with panic recovery, returning error on panic
func (r *RecoveryHandler) WrapError(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = r.handlePanic(rec, string(debug.Stack()))
		}
	}()
	return fn()
}

// Middleware turns a panicking handler into a 500 response.
func (r *RecoveryHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			r.handlePanic(rec, string(debug.Stack()), "method", req.Method, "path", req.URL.Path,
				"request_id", GetRequestID(req.Context()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"internal server error"}` + "\n"))
		}()
		next.ServeHTTP(w, req)
	})
}

// handlePanic logs the panic and calls the custom handler.
// kv are extra key/value pairs for the log event.
func (r *RecoveryHandler) handlePanic(rec interface{}, stack string, kv ...string) error {
	extra := map[string]interface{}{
		"stack":     stack,
		"recovered": true,
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			extra[kv[i]] = kv[i+1]
		}
	}
	err := fmt.Errorf("panic in %s: %v", r.Component, rec)
	r.log.Error("panic_recovered", extra, err)

	if r.OnPanic != nil {
		r.OnPanic(rec, stack)
	}
	return err
}

// SafeGo launches a goroutine with panic recovery
func SafeGo(component string, fn func()) {
	go NewRecoveryHandler(component).Wrap(fn)
}

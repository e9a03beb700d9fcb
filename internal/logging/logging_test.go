package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, opts Options) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	opts.Output = &buf
	prev := Base()
	Setup(opts)
	t.Cleanup(func() {
		baseMu.Lock()
		base = prev
		baseMu.Unlock()
	})
	return &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestLoggerEmitsJSONEvent(t *testing.T) {
	buf := capture(t, Options{})

	New("orchestrator").WithSession("abc").Info("turn_committed", map[string]interface{}{"fillers": 3})

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	e := lines[0]
	assert.Equal(t, "turn_committed", e["event"])
	assert.Equal(t, "info", e["level"])
	assert.Equal(t, "orchestrator", e["component"])
	assert.Equal(t, "abc", e["session"])
	assert.Equal(t, map[string]any{"fillers": float64(3)}, e["extra"])
	assert.NotEmpty(t, e["ts"])
}

func TestLoggerErrorField(t *testing.T) {
	buf := capture(t, Options{})

	New("server").Warn("archive_failed", nil, errors.New("redis down"))

	e := decodeLines(t, buf)[0]
	assert.Equal(t, "warning", e["level"])
	assert.Equal(t, "redis down", e["error"])
	assert.NotContains(t, e, "extra")
}

func TestLoggerLevelFilter(t *testing.T) {
	buf := capture(t, Options{Level: "warn"})

	l := New("x")
	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Error("shown", nil, nil)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["event"])
}

func TestTimedEvent(t *testing.T) {
	buf := capture(t, Options{})

	New("provider").TimedEvent("generate", time.Now().Add(-20*time.Millisecond), nil)

	e := decodeLines(t, buf)[0]
	assert.GreaterOrEqual(t, e["duration_ms"].(float64), float64(20))
}

func TestTextFormat(t *testing.T) {
	buf := capture(t, Options{Format: "text"})
	New("cli").Info("hello", nil)
	assert.Contains(t, buf.String(), "component=cli")
	assert.Contains(t, buf.String(), "hello")
}

func TestWithRequestSkipsEmpty(t *testing.T) {
	buf := capture(t, Options{})
	New("server").WithRequest("").Info("a", nil)
	New("server").WithRequest("r-1").Info("b", nil)

	lines := decodeLines(t, buf)
	assert.NotContains(t, lines[0], "request_id")
	assert.Equal(t, "r-1", lines[1]["request_id"])
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "given")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "given", seen)
	assert.Equal(t, "given", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 16)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRecoveryHandlerWrap(t *testing.T) {
	capture(t, Options{})
	h := NewRecoveryHandler("worker")

	var captured interface{}
	var stack string
	h.OnPanic = func(err interface{}, s string) {
		captured = err
		stack = s
	}
	h.Wrap(func() { panic("boom") })

	assert.Equal(t, "boom", captured)
	assert.Contains(t, stack, "TestRecoveryHandlerWrap")

	err := h.WrapError(func() error { panic("again") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in worker: again")

	assert.NoError(t, h.WrapError(func() error { return nil }))
}

func TestRecoveryMiddleware(t *testing.T) {
	buf := capture(t, Options{})
	h := NewRecoveryHandler("server").Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session/start", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())

	e := decodeLines(t, buf)[0]
	assert.Equal(t, "panic_recovered", e["event"])
	extra := e["extra"].(map[string]any)
	assert.Equal(t, "/api/session/start", extra["path"])
	assert.Equal(t, "POST", extra["method"])
}

// Package testutil provides common test helpers and collaborator fakes.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keshav2232/viva/pkg/llm"
)

// WriteFile creates a file with the given content in the specified directory.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// SetEnv sets an environment variable for the duration of the test.
func SetEnv(t *testing.T, key, value string) {
	t.Helper()
	t.Setenv(key, value)
}

// Reply is one scripted generator outcome.
type Reply struct {
	Text string
	Err  error
}

// MockGenerator replays scripted replies and records every request.
// Once the script is exhausted the last reply repeats.
type MockGenerator struct {
	mu       sync.Mutex
	replies  []Reply
	requests [][]llm.Message

	// Block, when set, is received from before replying so tests can hold a
	// call in flight.
	Block chan struct{}
}

// NewMockGenerator creates a generator that answers with texts in order.
func NewMockGenerator(texts ...string) *MockGenerator {
	m := &MockGenerator{}
	for _, t := range texts {
		m.replies = append(m.replies, Reply{Text: t})
	}
	return m
}

// Then appends a scripted outcome.
func (m *MockGenerator) Then(text string, err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, Reply{Text: text, Err: err})
	return m
}

func (m *MockGenerator) ID() string { return "mock" }

func (m *MockGenerator) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	m.mu.Lock()
	idx := len(m.requests)
	m.requests = append(m.requests, append([]llm.Message(nil), messages...))
	var r Reply
	if len(m.replies) > 0 {
		r = m.replies[min(idx, len(m.replies)-1)]
	}
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return r.Text, r.Err
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Request returns the messages of the i-th call.
func (m *MockGenerator) Request(i int) []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

// LastRequest returns the messages of the most recent call.
func (m *MockGenerator) LastRequest() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// MockTranscriber returns a fixed transcription or error.
type MockTranscriber struct {
	mu     sync.Mutex
	Result llm.Transcription
	Err    error
	calls  int
}

// NewMockTranscriber creates a transcriber that always returns text and tone.
func NewMockTranscriber(text, tone string) *MockTranscriber {
	return &MockTranscriber{Result: llm.Transcription{Text: text, Tone: tone}}
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte) (llm.Transcription, error) {
	m.mu.Lock()
	m.calls++
	res, err := m.Result, m.Err
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return llm.Transcription{}, err
	}
	return res, err
}

// Set replaces the scripted result.
func (m *MockTranscriber) Set(text, tone string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Result = llm.Transcription{Text: text, Tone: tone}
	m.Err = err
}

// CallCount returns the number of Transcribe calls.
func (m *MockTranscriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

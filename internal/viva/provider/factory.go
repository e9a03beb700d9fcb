// Package provider implements the dialogue generator and transcription
// backends and a factory that selects one by name.
package provider

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/keshav2232/viva/pkg/llm"
)

// Kind identifies a supported backend.
type Kind string

const (
	KindGemini Kind = "gemini"
	KindOpenAI Kind = "openai"
	KindMock   Kind = "mock"
)

// ErrMissingAPIKey is returned when a remote backend has no credentials.
var ErrMissingAPIKey = errors.New("missing API key")

// Provider is a backend that can both generate dialogue and transcribe audio.
type Provider interface {
	llm.Generator
	llm.Transcriber
}

// Config holds provider configuration.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	TranscribeModel string
	AudioMIME       string
	HTTPClient      HTTPClient
}

// ConfigOption modifies provider configuration.
type ConfigOption func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL sets the base URL.
func WithBaseURL(url string) ConfigOption {
	return func(c *Config) { c.BaseURL = url }
}

// WithModel sets the generation model.
func WithModel(model string) ConfigOption {
	return func(c *Config) { c.Model = model }
}

// WithTranscribeModel sets the transcription model where the backend has a separate one.
func WithTranscribeModel(model string) ConfigOption {
	return func(c *Config) { c.TranscribeModel = model }
}

// WithAudioMIME sets the MIME type of uploaded audio.
func WithAudioMIME(mime string) ConfigOption {
	return func(c *Config) { c.AudioMIME = mime }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client HTTPClient) ConfigOption {
	return func(c *Config) { c.HTTPClient = client }
}

// Builder constructs a provider from config.
type Builder func(cfg Config) (Provider, error)

// Factory creates providers by kind.
type Factory struct {
	mu       sync.RWMutex
	builders map[Kind]Builder
}

// NewFactory creates a factory with default builders.
func NewFactory() *Factory {
	f := &Factory{builders: make(map[Kind]Builder)}
	f.RegisterDefaults()
	return f
}

// RegisterDefaults registers the built-in provider builders.
func (f *Factory) RegisterDefaults() {
	f.Register(KindGemini, func(cfg Config) (Provider, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: set GEMINI_API_KEY or GOOGLE_API_KEY", ErrMissingAPIKey)
		}
		return NewGemini(cfg), nil
	})
	f.Register(KindOpenAI, func(cfg Config) (Provider, error) {
		// Self-hosted compatible servers often run without a key.
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingAPIKey)
		}
		return NewOpenAI(cfg), nil
	})
	f.Register(KindMock, func(Config) (Provider, error) {
		return NewMock(), nil
	})
}

// Register adds a provider builder. Allows extension with custom providers.
func (f *Factory) Register(kind Kind, builder Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[kind] = builder
}

// Kinds lists the registered provider kinds.
func (f *Factory) Kinds() []Kind {
	f.mu.RLock()
	defer f.mu.RUnlock()
	kinds := make([]Kind, 0, len(f.builders))
	for k := range f.builders {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Create builds a provider, filling the API key and base URL from the
// environment when the options leave them empty.
func (f *Factory) Create(kind Kind, opts ...ConfigOption) (Provider, error) {
	cfg := Config{HTTPClient: &http.Client{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = EnvKey(kind)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = EnvBaseURL(kind)
	}

	f.mu.RLock()
	builder, ok := f.builders[kind]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", kind)
	}
	return builder(cfg)
}

// CreateByID creates a provider from a user-facing name.
func (f *Factory) CreateByID(id string, opts ...ConfigOption) (Provider, error) {
	kind, err := ParseKind(id)
	if err != nil {
		return nil, err
	}
	return f.Create(kind, opts...)
}

// ParseKind maps a provider name or alias to its kind.
func ParseKind(id string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "gemini", "google":
		return KindGemini, nil
	case "openai", "gpt":
		return KindOpenAI, nil
	case "mock":
		return KindMock, nil
	}
	return "", fmt.Errorf("unknown provider: %s", id)
}

// Default is the global factory instance.
var Default = NewFactory()

// EnvKey returns the API key for kind from the environment.
func EnvKey(kind Kind) string {
	switch kind {
	case KindOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case KindGemini:
		if k := os.Getenv("GEMINI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

// EnvBaseURL returns the base URL override for kind from the environment.
// Only the OpenAI-compatible backend has one.
func EnvBaseURL(kind Kind) string {
	if kind == KindOpenAI {
		return os.Getenv("OPENAI_BASE_URL")
	}
	return ""
}

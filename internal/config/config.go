// Package config loads viva settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keshav2232/viva/internal/viva/provider"
)

// Archive backends for finished-session reports.
const (
	ArchiveSQLite = "sqlite"
	ArchiveRedis  = "redis"
	ArchiveNone   = "none"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Server configures the HTTP transport.
type Server struct {
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// Provider selects and configures the generator/transcriber backend.
type Provider struct {
	Kind      string `yaml:"kind"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	AudioMIME string `yaml:"audio_mime"`
	UseMock   bool   `yaml:"use_mock"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Storage configures user accounts and the report archive.
type Storage struct {
	DataDir   string        `yaml:"data_dir"`
	Archive   string        `yaml:"archive"`
	RedisURL  string        `yaml:"redis_url"`
	ReportTTL time.Duration `yaml:"report_ttl"`
}

// Session configures the live session pipeline.
type Session struct {
	IdleTTL           time.Duration `yaml:"idle_ttl"`
	GenerateTimeout   time.Duration `yaml:"generate_timeout"`
	TranscribeTimeout time.Duration `yaml:"transcribe_timeout"`
	ScoldThreshold    int           `yaml:"scold_threshold"`
}

// Config is the root of the configuration file.
type Config struct {
	Server   Server   `yaml:"server"`
	Provider Provider `yaml:"provider"`
	Log      Log      `yaml:"log"`
	Storage  Storage  `yaml:"storage"`
	Session  Session  `yaml:"session"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:   Server{Port: 5001},
		Provider: Provider{Kind: string(provider.KindGemini)},
		Log:      Log{Level: "info", Format: "json"},
		Storage: Storage{
			DataDir: DataDir(),
			Archive: ArchiveSQLite,
		},
		Session: Session{
			GenerateTimeout:   60 * time.Second,
			TranscribeTimeout: 60 * time.Second,
			ScoldThreshold:    2,
		},
	}
}

// DataDir returns the default data directory.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "viva")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".viva"
	}
	return filepath.Join(home, ".local", "share", "viva")
}

// ResolvePath picks the config file: the explicit path, then VIVA_CONFIG,
// then config/<CONFIG_ENV>/config.yaml with CONFIG_ENV defaulting to dev.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("VIVA_CONFIG"); p != "" {
		return p
	}
	return filepath.Join("config", getEnvDefault("CONFIG_ENV", "dev"), "config.yaml")
}

// Load reads the file at ResolvePath(path) over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	p := ResolvePath(path)
	data, err := os.ReadFile(p)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
	case errors.Is(err, os.ErrNotExist):
		if path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	default:
		return nil, fmt.Errorf("read %s: %w", p, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q", ErrInvalid, v)
		}
		c.Server.Port = port
	}
	c.Server.StaticDir = getEnvDefault("VIVA_STATIC_DIR", c.Server.StaticDir)

	c.Provider.Kind = getEnvDefault("VIVA_PROVIDER", c.Provider.Kind)
	c.Provider.Model = getEnvDefault("VIVA_MODEL", c.Provider.Model)
	if v := os.Getenv("USE_MOCK_AI"); v != "" {
		mock, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: USE_MOCK_AI=%q", ErrInvalid, v)
		}
		c.Provider.UseMock = mock
	}
	// Credentials and endpoint overrides belong to the selected backend only.
	if kind, err := provider.ParseKind(c.Provider.Kind); err == nil {
		if c.Provider.APIKey == "" {
			c.Provider.APIKey = provider.EnvKey(kind)
		}
		if v := provider.EnvBaseURL(kind); v != "" {
			c.Provider.BaseURL = v
		}
	}

	c.Log.Level = getEnvDefault("VIVA_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvDefault("VIVA_LOG_FORMAT", c.Log.Format)

	c.Storage.DataDir = getEnvDefault("VIVA_DATA_DIR", c.Storage.DataDir)
	c.Storage.Archive = getEnvDefault("VIVA_ARCHIVE", c.Storage.Archive)
	c.Storage.RedisURL = getEnvDefault("REDIS_URL", c.Storage.RedisURL)

	if v := os.Getenv("VIVA_SESSION_IDLE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: VIVA_SESSION_IDLE_TTL=%q", ErrInvalid, v)
		}
		c.Session.IdleTTL = ttl
	}
	return nil
}

// ProviderKind returns the backend to build, honouring UseMock.
func (c *Config) ProviderKind() (provider.Kind, error) {
	if c.Provider.UseMock {
		return provider.KindMock, nil
	}
	kind, err := provider.ParseKind(c.Provider.Kind)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return kind, nil
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// Validate rejects settings the rest of the program cannot act on.
func (c *Config) Validate() error {
	if _, err := c.ProviderKind(); err != nil {
		return err
	}
	switch strings.ToLower(c.Storage.Archive) {
	case ArchiveSQLite, ArchiveNone:
	case ArchiveRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("%w: redis archive needs storage.redis_url", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown archive %q", ErrInvalid, c.Storage.Archive)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Server.Port)
	}
	if c.Session.IdleTTL < 0 {
		return fmt.Errorf("%w: negative session idle_ttl", ErrInvalid)
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

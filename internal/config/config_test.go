package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshav2232/viva/internal/viva/provider"
	"github.com/keshav2232/viva/internal/viva/testutil"
)

var envKeys = []string{
	"PORT", "VIVA_CONFIG", "CONFIG_ENV", "VIVA_STATIC_DIR", "VIVA_PROVIDER", "VIVA_MODEL",
	"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL", "USE_MOCK_AI",
	"VIVA_LOG_LEVEL", "VIVA_LOG_FORMAT", "VIVA_DATA_DIR", "VIVA_ARCHIVE", "REDIS_URL",
	"VIVA_SESSION_IDLE_TTL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		testutil.SetEnv(t, k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5001, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.Provider.Kind)
	assert.Equal(t, ArchiveSQLite, cfg.Storage.Archive)
	assert.Equal(t, time.Duration(0), cfg.Session.IdleTTL, "expiry is off by default")
	assert.Equal(t, 2, cfg.Session.ScoldThreshold)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := testutil.WriteFile(t, t.TempDir(), "viva.yaml", `
server:
  port: 8080
  static_dir: web/dist
provider:
  kind: openai
  model: gpt-4o-mini
log:
  level: debug
storage:
  archive: none
session:
  idle_ttl: 30m
  scold_threshold: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "web/dist", cfg.Server.StaticDir)
	assert.Equal(t, "openai", cfg.Provider.Kind)
	assert.Equal(t, "gpt-4o-mini", cfg.Provider.Model)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format, "unset keys keep defaults")
	assert.Equal(t, ArchiveNone, cfg.Storage.Archive)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTTL)
	assert.Equal(t, 4, cfg.Session.ScoldThreshold)
	assert.Equal(t, 60*time.Second, cfg.Session.GenerateTimeout)
}

func TestLoadConfigEnvDirectory(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	testutil.WriteFile(t, dir, filepath.Join("config", "prod", "config.yaml"), "server:\n  port: 9000\n")
	t.Chdir(dir)
	testutil.SetEnv(t, "CONFIG_ENV", "prod")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestResolvePath(t *testing.T) {
	clearEnv(t)
	assert.Equal(t, "x.yaml", ResolvePath("x.yaml"))
	assert.Equal(t, filepath.Join("config", "dev", "config.yaml"), ResolvePath(""))

	testutil.SetEnv(t, "VIVA_CONFIG", "/etc/viva.yaml")
	assert.Equal(t, "/etc/viva.yaml", ResolvePath(""))
}

func TestLoadMalformedFile(t *testing.T) {
	clearEnv(t)
	path := testutil.WriteFile(t, t.TempDir(), "bad.yaml", "server: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := testutil.WriteFile(t, t.TempDir(), "viva.yaml", "server:\n  port: 8080\n")
	testutil.SetEnv(t, "PORT", "7000")
	testutil.SetEnv(t, "VIVA_PROVIDER", "openai")
	testutil.SetEnv(t, "OPENAI_API_KEY", "sk-test")
	testutil.SetEnv(t, "OPENAI_BASE_URL", "http://localhost:11434/v1")
	testutil.SetEnv(t, "USE_MOCK_AI", "true")
	testutil.SetEnv(t, "VIVA_DATA_DIR", "/tmp/viva")
	testutil.SetEnv(t, "VIVA_ARCHIVE", "redis")
	testutil.SetEnv(t, "REDIS_URL", "redis://localhost:6379/0")
	testutil.SetEnv(t, "VIVA_SESSION_IDLE_TTL", "1h")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, ":7000", cfg.Addr())
	assert.Equal(t, "openai", cfg.Provider.Kind)
	assert.Equal(t, "sk-test", cfg.Provider.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Provider.BaseURL)
	assert.True(t, cfg.Provider.UseMock)
	assert.Equal(t, "/tmp/viva", cfg.Storage.DataDir)
	assert.Equal(t, ArchiveRedis, cfg.Storage.Archive)
	assert.Equal(t, time.Hour, cfg.Session.IdleTTL)
	require.NoError(t, cfg.Validate())

	kind, err := cfg.ProviderKind()
	require.NoError(t, err)
	assert.Equal(t, provider.KindMock, kind)
}

func TestGeminiKeyFallback(t *testing.T) {
	clearEnv(t)
	testutil.SetEnv(t, "GOOGLE_API_KEY", "google")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "google", cfg.Provider.APIKey)

	testutil.SetEnv(t, "GEMINI_API_KEY", "gemini")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Provider.APIKey)
}

func TestOpenAIOverridesIgnoredForGemini(t *testing.T) {
	clearEnv(t)
	testutil.SetEnv(t, "VIVA_PROVIDER", "gemini")
	testutil.SetEnv(t, "GEMINI_API_KEY", "gem-key")
	testutil.SetEnv(t, "OPENAI_API_KEY", "sk-test")
	testutil.SetEnv(t, "OPENAI_BASE_URL", "http://localhost:11434/v1")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Provider.Kind)
	assert.Equal(t, "gem-key", cfg.Provider.APIKey)
	assert.Empty(t, cfg.Provider.BaseURL)
}

func TestBadEnvValues(t *testing.T) {
	for key, value := range map[string]string{
		"PORT":                  "eighty",
		"USE_MOCK_AI":           "sometimes",
		"VIVA_SESSION_IDLE_TTL": "forever",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Chdir(t.TempDir())
			testutil.SetEnv(t, key, value)
			_, err := Load("")
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown provider":  func(c *Config) { c.Provider.Kind = "watson" },
		"unknown archive":   func(c *Config) { c.Storage.Archive = "s3" },
		"redis without url": func(c *Config) { c.Storage.Archive = ArchiveRedis },
		"port range":        func(c *Config) { c.Server.Port = 70000 },
		"negative ttl":      func(c *Config) { c.Session.IdleTTL = -time.Second },
		"log format":        func(c *Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.True(t, errors.Is(cfg.Validate(), ErrInvalid))
		})
	}

	cfg := Default()
	cfg.Provider.Kind = "watson"
	cfg.Provider.UseMock = true
	assert.NoError(t, cfg.Validate(), "mock mode ignores the provider kind")
}

func TestDataDirHonoursXDG(t *testing.T) {
	testutil.SetEnv(t, "XDG_DATA_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "viva"), DataDir())
}

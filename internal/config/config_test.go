package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv isolates a test from the developer's environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SOUS_DB", "SOUS_OWNER", "SOUS_LOG_LEVEL", "SOUS_LOG_FORMAT", "SOUS_ADDR",
		"SOUS_JWT_SECRET", "SOUS_LLM_PROVIDER", "SOUS_ANTHROPIC_API_KEY",
		"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.Timeout)
	assert.Empty(t, cfg.LLM.Provider)
	assert.Equal(t, 512, cfg.Assess.MaxTokens)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), `
db_path: /tmp/kitchen.db
owner: alice
log:
  level: debug
  format: json
server:
  addr: ":9000"
  timeout: 5s
llm:
  provider: mock
assess:
  max_tokens: 256
  temperature: 0.1
`)
	t.Setenv("SOUS_OWNER", "bob")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/kitchen.db", cfg.DBPath)
	assert.Equal(t, "bob", cfg.Owner, "env overrides file")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	// Unset nested values keep their defaults.
	assert.Equal(t, 3, cfg.LLM.Retry.MaxAttempts)

	ac := cfg.AssessorConfig()
	assert.Equal(t, 256, ac.MaxTokens)
	assert.InDelta(t, 0.1, ac.Temperature, 1e-9)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"bad timeout", "server:\n  timeout: 0s\n", "server.timeout"},
		{"missing key", "llm:\n  provider: anthropic\n", "llm"},
		{"bad yaml", "log: [\n", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeFile(t, t.TempDir(), tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolveLLM(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()

	_, ok := cfg.ResolveLLM()
	assert.False(t, ok)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	got, ok := cfg.ResolveLLM()
	require.True(t, ok)
	assert.Equal(t, "openai", got.Provider)

	cfg.LLM.Provider = "mock"
	got, ok = cfg.ResolveLLM()
	require.True(t, ok)
	assert.Equal(t, "mock", got.Provider)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, level := NewLogger(&buf, LogConfig{Level: "warn", Format: "json"})

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	level.Set(slog.LevelDebug)
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "log:\n  level: info\n")

	var (
		calls atomic.Int32
		level atomic.Value
	)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	stop, err := Watch(path, logger, func(c *Config) {
		level.Store(c.Log.Level)
		calls.Add(1)
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	require.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "debug", level.Load())

	// Invalid content is skipped.
	before := calls.Load()
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o644))
	time.Sleep(3 * debounce)
	assert.Equal(t, before, calls.Load())

	stop()
	stop() // idempotent
}

func TestWatch_IgnoresSiblingFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "owner: alice\n")

	var calls atomic.Int32
	stop, err := Watch(path, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), func(*Config) { calls.Add(1) })
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))
	time.Sleep(3 * debounce)
	assert.Zero(t, calls.Load())
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.True(t, strings.HasSuffix(DefaultPath(), filepath.Join("sous", "config.yaml")))
	assert.Equal(t, filepath.Join("/xdg", "sous", "config.yaml"), DefaultPath())
}

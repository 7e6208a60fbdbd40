// Package config loads sous settings from defaults, an optional YAML file and
// SOUS_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/sous/internal/assess"
	"github.com/abhisek/sous/internal/llm"
)

type Config struct {
	DBPath string       `yaml:"db_path"`
	Owner  string       `yaml:"owner"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
	LLM    llm.Config   `yaml:"llm"`
	Assess AssessConfig `yaml:"assess"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type ServerConfig struct {
	Addr      string        `yaml:"addr"`
	JWTSecret string        `yaml:"jwt_secret"`
	Timeout   time.Duration `yaml:"timeout"`
}

type AssessConfig struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// DefaultConfig returns the built-in settings. The LLM provider is left empty
// so that assessments stay off until a provider is chosen or discovered.
func DefaultConfig() Config {
	llmCfg := llm.DefaultConfig()
	llmCfg.Provider = ""
	ac := assess.DefaultConfig()
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{
			Addr:    ":8080",
			Timeout: 15 * time.Second,
		},
		LLM:    llmCfg,
		Assess: AssessConfig{MaxTokens: ac.MaxTokens, Temperature: ac.Temperature},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/sous/config.yaml, falling back to
// ~/.config/sous/config.yaml.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "sous", "config.yaml")
}

// Load builds a Config. An explicit path must exist; with an empty path the
// default location is used when present.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DBPath = getEnv("SOUS_DB", c.DBPath)
	c.Owner = getEnv("SOUS_OWNER", c.Owner)
	c.Log.Level = getEnv("SOUS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("SOUS_LOG_FORMAT", c.Log.Format)
	c.Server.Addr = getEnv("SOUS_ADDR", c.Server.Addr)
	c.Server.JWTSecret = getEnv("SOUS_JWT_SECRET", c.Server.JWTSecret)
	llm.ApplyEnv(&c.LLM)
}

// Validate checks settings that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if c.LLM.Provider != "" {
		if err := c.LLM.Validate(); err != nil {
			return fmt.Errorf("llm: %w", err)
		}
	}
	return nil
}

// ResolveLLM returns the LLM settings to use. An explicit provider wins;
// otherwise standard API key variables are probed. ok is false when no
// provider is available.
func (c *Config) ResolveLLM() (cfg llm.Config, ok bool) {
	if c.LLM.Provider != "" {
		return c.LLM, true
	}
	found, ok := llm.DiscoverConfig()
	if !ok {
		return llm.Config{}, false
	}
	found.Retry = c.LLM.Retry
	found.Timeout = c.LLM.Timeout
	return found, true
}

// AssessorConfig converts the assess section for the recommender.
func (c *Config) AssessorConfig() assess.Config {
	return assess.Config{MaxTokens: c.Assess.MaxTokens, Temperature: c.Assess.Temperature}
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

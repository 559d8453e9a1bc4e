// Package config defines the sitetrack application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the top-level sitetrack configuration.
type Config struct {
	Server   ServerConfig  `json:"server" yaml:"server"`
	Suggest  SuggestConfig `json:"suggest" yaml:"suggest"`
	DataDir  string        `json:"data_dir" yaml:"data_dir"`
	SeedFile string        `json:"seed_file,omitempty" yaml:"seed_file"` // YAML projects; built-in fixture when empty
	LogLevel string        `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr      string `json:"addr" yaml:"addr"`                       // listen address, e.g., ":9090"
	StaticDir string `json:"static_dir,omitempty" yaml:"static_dir"` // dashboard files served at /; disabled when empty
}

// SuggestConfig selects the AI backend used for subtask suggestions.
type SuggestConfig struct {
	Provider       string        `json:"provider" yaml:"provider"` // "mock", "anthropic", "openai"
	Model          string        `json:"model,omitempty" yaml:"model"`
	BaseURL        string        `json:"base_url,omitempty" yaml:"base_url"`
	APIKey         string        `json:"-" yaml:"api_key"`
	MaxSuggestions int           `json:"max_suggestions" yaml:"max_suggestions"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":9090",
		},
		Suggest: SuggestConfig{
			Provider:       "mock",
			MaxSuggestions: 5,
			Timeout:        30 * time.Second,
		},
		DataDir:  "./data",
		LogLevel: "info",
	}
}

// Load reads a YAML config file and returns the parsed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads path when it exists (defaults otherwise), applies
// environment overrides and validates the result. A missing file is only an
// error when required is set.
func Resolve(path string, required bool) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return nil, err
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverrides holds raw environment values. Unset variables leave the
// corresponding config field alone.
type envOverrides struct {
	Addr           string        `env:"SITETRACK_ADDR"`
	StaticDir      string        `env:"SITETRACK_STATIC_DIR"`
	DataDir        string        `env:"SITETRACK_DATA_DIR"`
	SeedFile       string        `env:"SITETRACK_SEED_FILE"`
	LogLevel       string        `env:"SITETRACK_LOG_LEVEL"`
	Provider       string        `env:"SITETRACK_SUGGEST_PROVIDER"`
	Model          string        `env:"SITETRACK_SUGGEST_MODEL"`
	BaseURL        string        `env:"SITETRACK_SUGGEST_BASE_URL"`
	APIKey         string        `env:"SITETRACK_SUGGEST_API_KEY"`
	MaxSuggestions int           `env:"SITETRACK_SUGGEST_MAX"`
	Timeout        time.Duration `env:"SITETRACK_SUGGEST_TIMEOUT"`
}

// ApplyEnv overlays SITETRACK_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var raw envOverrides
	if err := env.Parse(&raw); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	setString(&cfg.Server.Addr, raw.Addr)
	setString(&cfg.Server.StaticDir, raw.StaticDir)
	setString(&cfg.DataDir, raw.DataDir)
	setString(&cfg.SeedFile, raw.SeedFile)
	setString(&cfg.LogLevel, raw.LogLevel)
	setString(&cfg.Suggest.Provider, raw.Provider)
	setString(&cfg.Suggest.Model, raw.Model)
	setString(&cfg.Suggest.BaseURL, raw.BaseURL)
	setString(&cfg.Suggest.APIKey, raw.APIKey)
	if raw.MaxSuggestions > 0 {
		cfg.Suggest.MaxSuggestions = raw.MaxSuggestions
	}
	if raw.Timeout > 0 {
		cfg.Suggest.Timeout = raw.Timeout
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Suggest.Provider) {
	case "mock", "anthropic", "openai":
	default:
		errs = append(errs, fmt.Errorf("suggest.provider %q is not one of mock, anthropic, openai", c.Suggest.Provider))
	}
	if c.Suggest.MaxSuggestions <= 0 {
		errs = append(errs, errors.New("suggest.max_suggestions must be positive"))
	}
	if c.Suggest.Timeout < 0 {
		errs = append(errs, errors.New("suggest.timeout must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ActivityDBPath is the SQLite file that holds the activity log.
func (c *Config) ActivityDBPath() string {
	return filepath.Join(c.DataDir, "activity.db")
}

// ParseLevel maps a log_level string to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", s, err)
	}
	return level, nil
}

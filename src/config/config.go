// Package config provides configuration management for errlens.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"errlens-agent/src/contracts"
)

// Defaults applied when a value is absent from both the file and the environment.
const (
	DefaultModel            = "claude-3-5-haiku-latest"
	DefaultMaxTokens        = 1024
	DefaultAPIURL           = "https://api.anthropic.com/v1/messages"
	DefaultStore            = "sqlite"
	DefaultSQLitePath       = "errlens.db"
	DefaultListenAddr       = "127.0.0.1:8787"
	DefaultMaxEvents        = 100
	DefaultAnalysisInterval = time.Second
)

// Config holds the application configuration.
type Config struct {
	// APIKey authenticates the external analysis call.
	APIKey string `yaml:"api_key"`
	// Domains is the list of host patterns on which capture is active.
	Domains []string `yaml:"domains"`
	// Enabled is the global capture switch.
	Enabled bool `yaml:"enabled"`

	Model            string        `yaml:"model"`
	MaxTokens        int           `yaml:"max_tokens"`
	APIURL           string        `yaml:"api_url"`
	Store            string        `yaml:"store"` // memory, sqlite, postgres
	SQLitePath       string        `yaml:"sqlite_path"`
	PostgresDSN      string        `yaml:"postgres_dsn"`
	RedpandaBrokers  []string      `yaml:"redpanda_brokers"`
	ListenAddr       string        `yaml:"listen_addr"`
	LogLevel         string        `yaml:"log_level"`
	MaxEvents        int           `yaml:"max_events"`
	AnalysisInterval time.Duration `yaml:"analysis_interval"`
}

// Default returns a configuration with every default applied. Capture is
// enabled but no domain matches until patterns are configured.
func Default() *Config {
	cfg := &Config{Enabled: true}
	cfg.applyDefaults()
	return cfg
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads a YAML file (if path is non-empty and the file exists), then
// applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{Enabled: true}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// First run: defaults plus environment.
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// This is useful for initialization in main() where configuration errors should be fatal.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Save writes the configuration as YAML, atomically replacing path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp, path)
}

// Validate rejects values that would break the pipeline at runtime.
func (c *Config) Validate() error {
	switch c.Store {
	case "memory", "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("store %q requires postgres_dsn (or ERRLENS_POSTGRES_DSN)", c.Store)
		}
	default:
		return fmt.Errorf("unknown store %q (want memory, sqlite or postgres)", c.Store)
	}
	if c.MaxEvents <= 0 {
		return fmt.Errorf("max_events must be positive, got %d", c.MaxEvents)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.AnalysisInterval < 0 {
		return fmt.Errorf("analysis_interval must not be negative, got %s", c.AnalysisInterval)
	}
	for _, d := range c.Domains {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("domains must not contain empty patterns")
		}
	}
	return nil
}

// View returns the display-safe projection; the key itself is never exposed.
func (c *Config) View() contracts.ConfigView {
	domains := make([]string, len(c.Domains))
	copy(domains, c.Domains)
	return contracts.ConfigView{
		HasAPIKey: strings.TrimSpace(c.APIKey) != "",
		Domains:   domains,
		Enabled:   c.Enabled,
	}
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.Store == "" {
		c.Store = DefaultStore
	}
	if c.SQLitePath == "" {
		c.SQLitePath = DefaultSQLitePath
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxEvents == 0 {
		c.MaxEvents = DefaultMaxEvents
	}
	if c.AnalysisInterval == 0 {
		c.AnalysisInterval = DefaultAnalysisInterval
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ERRLENS_API_KEY"); v != "" {
		c.APIKey = v
	} else if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && c.APIKey == "" {
		c.APIKey = v
	}
	if v := os.Getenv("ERRLENS_DOMAINS"); v != "" {
		c.Domains = splitList(v)
	}
	if v := os.Getenv("ERRLENS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ERRLENS_ENABLED: %w", err)
		}
		c.Enabled = enabled
	}
	if v := os.Getenv("ERRLENS_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("ERRLENS_STORE"); v != "" {
		c.Store = v
	}
	if v := os.Getenv("ERRLENS_SQLITE_PATH"); v != "" {
		c.SQLitePath = v
	}
	if v := os.Getenv("ERRLENS_POSTGRES_DSN"); v != "" {
		c.PostgresDSN = v
	}
	if v := os.Getenv("REDPANDA_BROKERS"); v != "" {
		c.RedpandaBrokers = splitList(v)
	}
	if v := os.Getenv("ERRLENS_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("ERRLENS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"errlens-agent/src/logger"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ERRLENS_API_KEY", "ANTHROPIC_API_KEY", "ERRLENS_DOMAINS", "ERRLENS_ENABLED",
		"ERRLENS_MODEL", "ERRLENS_STORE", "ERRLENS_SQLITE_PATH", "ERRLENS_POSTGRES_DSN",
		"REDPANDA_BROKERS", "ERRLENS_LISTEN_ADDR", "ERRLENS_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv() unexpected error: %v", err)
		}
		if cfg.MaxEvents != DefaultMaxEvents {
			t.Errorf("MaxEvents = %d, want %d", cfg.MaxEvents, DefaultMaxEvents)
		}
		if cfg.AnalysisInterval != time.Second {
			t.Errorf("AnalysisInterval = %v, want 1s", cfg.AnalysisInterval)
		}
		if !cfg.Enabled {
			t.Error("Expected capture enabled by default")
		}
		if len(cfg.Domains) != 0 {
			t.Errorf("Expected no domains by default, got %v", cfg.Domains)
		}
	})

	t.Run("env overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ERRLENS_API_KEY", "sk-test")
		t.Setenv("ERRLENS_DOMAINS", "localhost, *.example.com ,")
		t.Setenv("ERRLENS_ENABLED", "false")
		t.Setenv("REDPANDA_BROKERS", "a:9092,b:9092")

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv() unexpected error: %v", err)
		}
		if cfg.APIKey != "sk-test" {
			t.Errorf("APIKey = %q, want sk-test", cfg.APIKey)
		}
		if len(cfg.Domains) != 2 || cfg.Domains[1] != "*.example.com" {
			t.Errorf("Domains = %v", cfg.Domains)
		}
		if cfg.Enabled {
			t.Error("Expected capture disabled")
		}
		if len(cfg.RedpandaBrokers) != 2 {
			t.Errorf("RedpandaBrokers = %v", cfg.RedpandaBrokers)
		}
	})

	t.Run("anthropic key fallback", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ANTHROPIC_API_KEY", "sk-fallback")

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv() unexpected error: %v", err)
		}
		if cfg.APIKey != "sk-fallback" {
			t.Errorf("APIKey = %q, want sk-fallback", cfg.APIKey)
		}
	})

	t.Run("bad enabled flag", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ERRLENS_ENABLED", "maybe")

		if _, err := LoadFromEnv(); err == nil {
			t.Error("Expected error for unparsable ERRLENS_ENABLED")
		}
	})
}

func TestLoad_FileAndSave(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "errlens.yaml")

	yamlBody := "api_key: sk-file\ndomains:\n  - localhost\n  - \"*.staging.*\"\nenabled: true\nstore: memory\nmax_events: 25\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.APIKey != "sk-file" || cfg.MaxEvents != 25 || cfg.Store != "memory" {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if cfg.Model != DefaultModel {
		t.Errorf("Model default not applied, got %q", cfg.Model)
	}

	cfg.Domains = append(cfg.Domains, "example.org")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after save: %v", err)
	}
	if len(again.Domains) != 3 {
		t.Errorf("Expected 3 domains after save, got %v", again.Domains)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Store != DefaultStore {
		t.Errorf("Store = %q, want %q", cfg.Store, DefaultStore)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown store", func(c *Config) { c.Store = "redis" }, true},
		{"postgres without dsn", func(c *Config) { c.Store = "postgres" }, true},
		{"postgres with dsn", func(c *Config) { c.Store = "postgres"; c.PostgresDSN = "postgres://x" }, false},
		{"zero max events", func(c *Config) { c.MaxEvents = 0 }, true},
		{"blank domain", func(c *Config) { c.Domains = []string{" "} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestView_HidesKey(t *testing.T) {
	cfg := Default()
	cfg.APIKey = "sk-secret"
	cfg.Domains = []string{"localhost"}

	view := cfg.View()
	if !view.HasAPIKey {
		t.Error("Expected HasAPIKey true")
	}
	view.Domains[0] = "mutated"
	if cfg.Domains[0] != "localhost" {
		t.Error("View must not share the domains slice")
	}
}

func TestLoader_UpdateAndReload(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "errlens.yaml")

	loader, err := NewLoader(path, logger.NewSilentLogger())
	if err != nil {
		t.Fatalf("NewLoader() unexpected error: %v", err)
	}

	changes := make(chan *Config, 4)
	loader.OnChange(func(c *Config) { changes <- c })

	if _, err := loader.Update(func(c *Config) { c.Domains = []string{"localhost"} }); err != nil {
		t.Fatalf("Update() unexpected error: %v", err)
	}
	select {
	case c := <-changes:
		if len(c.Domains) != 1 {
			t.Errorf("Expected 1 domain in change, got %v", c.Domains)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for OnChange")
	}

	if err := os.WriteFile(path, []byte("domains: [a.com, b.com]\nenabled: false\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := loader.Reload()
	if err != nil {
		t.Fatalf("Reload() unexpected error: %v", err)
	}
	if cfg.Enabled || len(cfg.Domains) != 2 {
		t.Errorf("Unexpected reloaded config: %+v", cfg)
	}
	if loader.Config() != cfg {
		t.Error("Expected Config() to return the reloaded config")
	}
}

func TestLoader_UpdateRejectsInvalid(t *testing.T) {
	clearEnv(t)
	loader, err := NewLoader("", logger.NewSilentLogger())
	if err != nil {
		t.Fatalf("NewLoader() unexpected error: %v", err)
	}
	if _, err := loader.Update(func(c *Config) { c.Store = "bogus" }); err == nil {
		t.Error("Expected validation error")
	}
	if loader.Config().Store != DefaultStore {
		t.Error("Invalid update must not replace the current config")
	}
}

func TestLoader_WatchPicksUpEdits(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "errlens.yaml")
	if err := os.WriteFile(path, []byte("domains: [localhost]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	loader, err := NewLoader(path, logger.NewSilentLogger())
	if err != nil {
		t.Fatalf("NewLoader() unexpected error: %v", err)
	}
	changes := make(chan *Config, 8)
	loader.OnChange(func(c *Config) { changes <- c })

	stop, err := loader.Watch()
	if err != nil {
		t.Fatalf("Watch() unexpected error: %v", err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte("domains: [localhost, \"*.example.com\"]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-changes:
			if len(c.Domains) == 2 {
				return
			}
		case <-deadline:
			t.Fatalf("Timeout waiting for reload, current domains %v", loader.Config().Domains)
		}
	}
}

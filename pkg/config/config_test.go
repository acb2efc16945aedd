package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config, err := DefaultConfig()
	if err != nil {
		t.Fatalf("Failed to load default config: %v", err)
	}

	if config == nil {
		t.Fatal("Default config is nil")
	}

	if config.Analysis.MaxPaths <= 0 {
		t.Errorf("Expected a positive path cap, got %d", config.Analysis.MaxPaths)
	}

	if config.Analysis.WorkerTimeout != 30*time.Second {
		t.Errorf("Expected worker timeout 30s, got %v", config.Analysis.WorkerTimeout)
	}

	if config.Patterns.MinVersion != "v1.0.0" {
		t.Errorf("Expected min pattern version v1.0.0, got %q", config.Patterns.MinVersion)
	}

	if config.Risk.Policy == "" {
		t.Error("No risk policy found in default config")
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Default config does not validate: %v", err)
	}
}

func TestEmbeddedConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, embeddedConfigData, 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("Failed to load embedded config: %v", err)
	}
	if config.Server.MaxBodyBytes != 10<<20 {
		t.Errorf("Expected 10MiB body limit, got %d", config.Server.MaxBodyBytes)
	}
	if config.Logger.Format != "console" {
		t.Errorf("Expected console log format, got %q", config.Logger.Format)
	}
	if config.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected 10s shutdown timeout, got %v", config.Server.ShutdownTimeout)
	}
	if config.Server.AllowedOrigin != "*" {
		t.Errorf("Expected wildcard origin, got %q", config.Server.AllowedOrigin)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	content := `
[analysis]
max_paths = 50
worker_timeout = "2m"

[patterns]
dir = "/etc/dubhe/patterns"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Analysis.MaxPaths != 50 {
		t.Errorf("MaxPaths = %d, want 50", config.Analysis.MaxPaths)
	}
	if config.Analysis.WorkerTimeout != 2*time.Minute {
		t.Errorf("WorkerTimeout = %v, want 2m", config.Analysis.WorkerTimeout)
	}
	if config.Patterns.Dir != "/etc/dubhe/patterns" {
		t.Errorf("Patterns.Dir = %q", config.Patterns.Dir)
	}
	// local files replace the defaults entirely
	if config.Risk.Policy != "" {
		t.Errorf("Expected no policy from a file that sets none, got %q", config.Risk.Policy)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[analysis\nmax_paths = "), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected error for malformed TOML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"zero value", func(c *Config) {}, false},
		{"negative max paths", func(c *Config) { c.Analysis.MaxPaths = -1 }, true},
		{"negative timeout", func(c *Config) { c.Analysis.WorkerTimeout = -time.Second }, true},
		{"bad min version", func(c *Config) { c.Patterns.MinVersion = "1.0" }, true},
		{"good min version", func(c *Config) { c.Patterns.MinVersion = "v2.1.0" }, false},
		{"bad log level", func(c *Config) { c.Logger.Level = "verbose" }, true},
		{"upper case log level", func(c *Config) { c.Logger.Level = "DEBUG" }, false},
		{"bad log format", func(c *Config) { c.Logger.Format = "xml" }, true},
		{"negative body limit", func(c *Config) { c.Server.MaxBodyBytes = -1 }, true},
		{"negative shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var config Config
			tt.mutate(&config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

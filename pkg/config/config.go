package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/semver"
)

// Embedded default configuration
// Use 'go generate ./pkg/config' to update from root dubhe.toml
//
//go:generate cp ../../dubhe.toml default_config.toml
//go:embed default_config.toml
var embeddedConfigData []byte

// FileName is the name of the local override file.
const FileName = "dubhe.toml"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration.
type Config struct {
	Analysis AnalysisConfig `toml:"analysis"`
	Patterns PatternsConfig `toml:"patterns"`
	Risk     RiskConfig     `toml:"risk"`
	Logger   LoggerConfig   `toml:"logger"`
	Server   ServerConfig   `toml:"server"`
}

// AnalysisConfig bounds the traversal and the classification workers.
type AnalysisConfig struct {
	MaxPaths      int           `toml:"max_paths"`
	WorkerTimeout time.Duration `toml:"worker_timeout"`
}

// PatternsConfig selects the threat pattern library.
type PatternsConfig struct {
	Dir        string `toml:"dir"`
	MinVersion string `toml:"min_version"`
}

// RiskConfig holds the risk index policy.
type RiskConfig struct {
	Policy string `toml:"policy"`
}

// LoggerConfig configures the zap logger and its optional rotated file sink.
type LoggerConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
	Compress   bool   `toml:"compress"`
}

// ServerConfig configures the HTTP shell.
type ServerConfig struct {
	Addr            string        `toml:"addr"`
	MaxBodyBytes    int64         `toml:"max_body_bytes"`
	AllowedOrigin   string        `toml:"allowed_origin"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// DefaultConfig returns the default configuration with optional local overrides.
// It always starts with the embedded config, then optionally replaces it with a local dubhe.toml.
func DefaultConfig() (*Config, error) {
	var config Config
	if err := toml.Unmarshal(embeddedConfigData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse embedded config: %w", err)
	}

	localConfigPaths := []string{
		FileName,            // Current directory
		"../" + FileName,    // Parent directory (for tests in subdirs)
		"../../" + FileName, // Two levels up (for tests in pkg/*)
	}

	for _, path := range localConfigPaths {
		if _, err := os.Stat(path); err == nil {
			localConfig, err := LoadFromFile(path)
			if err != nil {
				// Log warning but continue with embedded config
				fmt.Fprintf(os.Stderr, "Warning: failed to load local config %s: %v\n", path, err)
				break
			}
			return localConfig, nil
		}
	}

	return &config, nil
}

// Load returns the configuration at path, or DefaultConfig when path is empty.
func Load(path string) (*Config, error) {
	var (
		config *Config
		err    error
	)
	if path == "" {
		config, err = DefaultConfig()
	} else {
		config, err = LoadFromFile(path)
	}
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a TOML file.
func LoadFromFile(filepath string) (*Config, error) {
	var config Config
	if _, err := toml.DecodeFile(filepath, &config); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", filepath, err)
	}
	return &config, nil
}

// Validate rejects values the analysis cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if c.Analysis.MaxPaths < 0 {
		problems = append(problems, "analysis.max_paths must not be negative")
	}
	if c.Analysis.WorkerTimeout < 0 {
		problems = append(problems, "analysis.worker_timeout must not be negative")
	}
	if v := c.Patterns.MinVersion; v != "" && !semver.IsValid(v) {
		problems = append(problems, fmt.Sprintf("patterns.min_version %q is not a semantic version", v))
	}
	switch strings.ToLower(c.Logger.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logger.level %q is not one of debug, info, warn, error", c.Logger.Level))
	}
	switch c.Logger.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logger.format %q is not console or json", c.Logger.Format))
	}
	if c.Server.MaxBodyBytes < 0 {
		problems = append(problems, "server.max_body_bytes must not be negative")
	}
	if c.Server.ShutdownTimeout < 0 {
		problems = append(problems, "server.shutdown_timeout must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Package config holds the pai runtime configuration: model access, mutation
// guard thresholds, and execution limits. Values come from an optional YAML
// file with environment variable overrides applied on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pai configuration.
type Config struct {
	// Model access
	Model ModelConfig `yaml:"model"`

	// Mutation guard thresholds
	Guard GuardConfig `yaml:"guard"`

	// Phase execution limits
	Execution ExecutionConfig `yaml:"execution"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig configures the generative language service.
type ModelConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// GuardConfig configures the large-modification guard.
// A modification is rejected only when BOTH limits are exceeded.
type GuardConfig struct {
	// ModifyThreshold is the changed-line count above which the ratio check kicks in.
	ModifyThreshold int `yaml:"modify_threshold"`

	// MaxChangeRatio is the changed/original line ratio limit.
	MaxChangeRatio float64 `yaml:"max_change_ratio"`
}

// ExecutionConfig configures the phase execution controller.
type ExecutionConfig struct {
	// BatchLimit caps commands executed per phase (clamped to 1..50).
	BatchLimit int `yaml:"batch_limit"`

	// MaxPhases caps the number of execution phases.
	MaxPhases int `yaml:"max_phases"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"` // debug, info, warn, error
}

// Batch limit clamp bounds.
const (
	MinBatchLimit = 1
	MaxBatchLimit = 50
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Model:   "gemini-2.5-flash",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Timeout: "120s",
		},
		Guard: GuardConfig{
			ModifyThreshold: 500,
			MaxChangeRatio:  0.5,
		},
		Execution: ExecutionConfig{
			BatchLimit: 15,
			MaxPhases:  3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file is not an
// error: defaults plus environment overrides are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Model.APIKey = key
	}
	if model := os.Getenv("PAI_MODEL"); model != "" {
		c.Model.Model = model
	}
	if v := os.Getenv("PAI_MODIFY_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Guard.ModifyThreshold = n
		}
	}
	if v := os.Getenv("PAI_MODIFY_MAX_RATIO"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r > 0 {
			c.Guard.MaxChangeRatio = r
		}
	}
	if v := os.Getenv("PAI_BATCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Execution.BatchLimit = n
		}
	}
	if os.Getenv("PAI_DEBUG") == "1" {
		c.Logging.DebugMode = true
	}
}

// EffectiveBatchLimit returns the batch limit clamped to its legal range.
func (c *Config) EffectiveBatchLimit() int {
	limit := c.Execution.BatchLimit
	if limit < MinBatchLimit {
		return MinBatchLimit
	}
	if limit > MaxBatchLimit {
		return MaxBatchLimit
	}
	return limit
}

// GetModelTimeout returns the model call timeout as a duration.
func (c *Config) GetModelTimeout() time.Duration {
	d, err := time.ParseDuration(c.Model.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Model.APIKey == "" {
		return fmt.Errorf("API key not configured (set GEMINI_API_KEY or run `pai config --set <key>`)")
	}
	if c.Guard.ModifyThreshold <= 0 {
		return fmt.Errorf("guard modify_threshold must be positive, got %d", c.Guard.ModifyThreshold)
	}
	if c.Guard.MaxChangeRatio <= 0 {
		return fmt.Errorf("guard max_change_ratio must be positive, got %v", c.Guard.MaxChangeRatio)
	}
	return nil
}

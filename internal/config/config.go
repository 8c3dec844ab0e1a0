package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all expectkit configuration.
type Config struct {
	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Diff engine limits
	Diff DiffConfig `yaml:"diff"`

	// Value inspection
	Inspect InspectConfig `yaml:"inspect"`

	// Type classification
	Types TypesConfig `yaml:"types"`

	// Rendered output
	Output OutputConfig `yaml:"output"`

	// CLI run history
	History HistoryConfig `yaml:"history"`
}

// HistoryConfig locates the run history database. An empty path disables
// recording.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// DiffConfig configures the diff engine.
type DiffConfig struct {
	// Binary diffs are suppressed once either side exceeds this many bytes.
	BinarySuppressThreshold int `yaml:"binary_suppress_threshold"`
	// Bytes per hex row in binary diffs.
	BytesPerRow int `yaml:"bytes_per_row"`
	// Upper bound for a single character diff; "0" disables the bound.
	StringDiffTimeout string `yaml:"string_diff_timeout"`
}

// InspectConfig configures value inspection.
type InspectConfig struct {
	MaxDepth      int `yaml:"max_depth"`
	LineWidth     int `yaml:"line_width"`
	BinaryPreview int `yaml:"binary_preview"` // bytes shown before "/* N more */"
}

// TypesConfig configures the value classifier.
type TypesConfig struct {
	// Strict rejects subjects matched by two descriptors of equal specificity.
	Strict bool `yaml:"strict"`
}

// OutputConfig selects the rendering format and theme.
type OutputConfig struct {
	Format string `yaml:"format"` // text, ansi
	Theme  string `yaml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Diff: DiffConfig{
			BinarySuppressThreshold: 512,
			BytesPerRow:             16,
			StringDiffTimeout:       "1s",
		},
		Inspect: InspectConfig{
			MaxDepth:      8,
			LineWidth:     80,
			BinaryPreview: 16,
		},
		Output: OutputConfig{
			Format: "text",
			Theme:  "default",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
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
	if v := os.Getenv("EXPECTKIT_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
	if v := os.Getenv("EXPECTKIT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("EXPECTKIT_BINARY_DIFF_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Diff.BinarySuppressThreshold = n
		}
	}
	if v := os.Getenv("EXPECTKIT_STRICT_TYPES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Types.Strict = b
		}
	}
	if v := os.Getenv("EXPECTKIT_OUTPUT"); v != "" {
		c.Output.Format = v
	}
	if v := os.Getenv("EXPECTKIT_HISTORY"); v != "" {
		c.History.Path = v
	}
}

// GetStringDiffTimeout returns the character diff bound as a duration.
func (c *Config) GetStringDiffTimeout() time.Duration {
	d, err := time.ParseDuration(c.Diff.StringDiffTimeout)
	if err != nil {
		return time.Second
	}
	return d
}

// ValidFormats lists all supported output formats.
var ValidFormats = []string{"text", "ansi"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Diff.BinarySuppressThreshold <= 0 {
		return fmt.Errorf("diff.binary_suppress_threshold must be positive, got %d", c.Diff.BinarySuppressThreshold)
	}
	if c.Diff.BytesPerRow <= 0 {
		return fmt.Errorf("diff.bytes_per_row must be positive, got %d", c.Diff.BytesPerRow)
	}
	if c.Inspect.MaxDepth <= 0 {
		return fmt.Errorf("inspect.max_depth must be positive, got %d", c.Inspect.MaxDepth)
	}

	validFormat := false
	for _, f := range ValidFormats {
		if c.Output.Format == f {
			validFormat = true
			break
		}
	}
	if !validFormat {
		return fmt.Errorf("invalid output format: %s (valid: %v)", c.Output.Format, ValidFormats)
	}

	return nil
}

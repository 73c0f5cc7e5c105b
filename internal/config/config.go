// Package config loads and validates the SpoolFS configuration from YAML
// and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/spoolfs/spoolfs/internal/bytesize"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global  GlobalConfig  `yaml:"global"`
	Spool   SpoolConfig   `yaml:"spool"`
	Mount   MountConfig   `yaml:"mount"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// SpoolConfig controls the storage layer. Sizes are human-readable strings
// like "1Ki" or "4MB".
type SpoolConfig struct {
	Threshold  string `yaml:"threshold"`
	ScratchDir string `yaml:"scratch_dir"`
}

// MountConfig represents kernel mount settings
type MountConfig struct {
	FSName         string `yaml:"fs_name"`
	AllowOther     bool   `yaml:"allow_other"`
	MaxWrite       string `yaml:"max_write"`
	SingleThreaded bool   `yaml:"single_threaded"`
	Debug          bool   `yaml:"debug"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Port           int           `yaml:"port"`
	Path           string        `yaml:"path"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel: "INFO",
			LogFile:  "",
		},
		Spool: SpoolConfig{
			Threshold:  "1Ki",
			ScratchDir: "",
		},
		Mount: MountConfig{
			FSName:         "spoolfs",
			AllowOther:     false,
			MaxWrite:       "1Mi",
			SingleThreaded: false,
			Debug:          false,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			Port:           9090,
			Path:           "/metrics",
			UpdateInterval: 30 * time.Second,
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("SPOOLFS_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("SPOOLFS_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}

	if val := os.Getenv("SPOOLFS_SPOOL_THRESHOLD"); val != "" {
		c.Spool.Threshold = val
	}
	if val := os.Getenv("SPOOLFS_SCRATCH_DIR"); val != "" {
		c.Spool.ScratchDir = val
	}

	if val := os.Getenv("SPOOLFS_FS_NAME"); val != "" {
		c.Mount.FSName = val
	}
	if val := os.Getenv("SPOOLFS_ALLOW_OTHER"); val != "" {
		c.Mount.AllowOther = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SPOOLFS_SINGLE_THREADED"); val != "" {
		c.Mount.SingleThreaded = strings.ToLower(val) == "true"
	}

	if val := os.Getenv("SPOOLFS_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SPOOLFS_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ThresholdBytes parses the spool promotion threshold.
func (c *Configuration) ThresholdBytes() (int64, error) {
	size, err := bytesize.Parse(c.Spool.Threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid spool threshold: %w", err)
	}
	return size.Int64(), nil
}

// MaxWriteBytes parses the kernel max-write window.
func (c *Configuration) MaxWriteBytes() (int64, error) {
	size, err := bytesize.Parse(c.Mount.MaxWrite)
	if err != nil {
		return 0, fmt.Errorf("invalid max_write: %w", err)
	}
	return size.Int64(), nil
}

// ScratchDir returns the configured scratch directory, falling back to the
// system temporary directory.
func (c *Configuration) ScratchDir() string {
	if c.Spool.ScratchDir != "" {
		return c.Spool.ScratchDir
	}
	return os.TempDir()
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.ToUpper(c.Global.LogLevel) == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	threshold, err := c.ThresholdBytes()
	if err != nil {
		return err
	}
	if threshold <= 0 {
		return fmt.Errorf("spool threshold must be greater than 0")
	}

	maxWrite, err := c.MaxWriteBytes()
	if err != nil {
		return err
	}
	if maxWrite <= 0 {
		return fmt.Errorf("max_write must be greater than 0")
	}

	if c.Mount.FSName == "" {
		return fmt.Errorf("fs_name cannot be empty")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}

	return nil
}

// Load builds the effective configuration: defaults, then the optional file,
// then environment overrides, then validation.
func Load(path string) (*Configuration, error) {
	cfg := NewDefault()

	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Output layout
	OutputDir string `mapstructure:"output-dir"`

	// Download behaviour
	DelaySeconds   float64 `mapstructure:"delay-seconds"`
	MaxRetries     int     `mapstructure:"max-retries"`
	Workers        int     `mapstructure:"workers"`
	HTTPTimeoutSec int     `mapstructure:"http-timeout-seconds"`
	UserAgent      string  `mapstructure:"user-agent"`

	// State persistence
	StateBackend string `mapstructure:"state-backend"`
	FlushEvery   int    `mapstructure:"flush-every"`
	FSMDBPath    string `mapstructure:"fsm-db-path"`

	// Overlay archive handling
	OverlayMarker string `mapstructure:"overlay-marker"`
	MaxMediaSize  int64  `mapstructure:"max-media-size"`

	// S3 mirroring
	S3Bucket string `mapstructure:"s3-bucket"`
	S3Region string `mapstructure:"s3-region"`
	S3Prefix string `mapstructure:"s3-prefix"`
}

// State backends recognized by the statestore.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("output-dir", "downloads")
	viper.SetDefault("delay-seconds", 1.0)
	viper.SetDefault("max-retries", 3)
	viper.SetDefault("workers", 1)
	viper.SetDefault("http-timeout-seconds", 60)
	viper.SetDefault("user-agent", defaultUserAgent)
	viper.SetDefault("state-backend", BackendJSON)
	viper.SetDefault("flush-every", 10)
	viper.SetDefault("fsm-db-path", "")
	viper.SetDefault("overlay-marker", "-main.")
	viper.SetDefault("max-media-size", int64(500*1024*1024))
	viper.SetDefault("s3-bucket", "")
	viper.SetDefault("s3-region", "us-east-1")
	viper.SetDefault("s3-prefix", "memories")

	// Environment variables (SNAPVAULT_OUTPUT_DIR, etc.)
	viper.SetEnvPrefix("SNAPVAULT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.snapvault")

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.FSMDBPath == "" {
		cfg.FSMDBPath = filepath.Join(cfg.OutputDir, ".fsm")
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output-dir cannot be empty")
	}
	if c.DelaySeconds < 0 {
		return fmt.Errorf("delay-seconds must be non-negative")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max-retries must be at least 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.HTTPTimeoutSec <= 0 {
		return fmt.Errorf("http-timeout-seconds must be positive")
	}
	if c.StateBackend != BackendJSON && c.StateBackend != BackendSQLite {
		return fmt.Errorf("state-backend must be %q or %q", BackendJSON, BackendSQLite)
	}
	if c.FlushEvery < 1 {
		return fmt.Errorf("flush-every must be at least 1")
	}
	if c.MaxMediaSize <= 0 {
		return fmt.Errorf("max-media-size must be positive")
	}
	return nil
}

// Delay returns the per-worker pacing delay as a duration.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}

// HTTPTimeout returns the per-request timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// ImagesDir returns the final directory for downloaded images.
func (c *Config) ImagesDir() string { return filepath.Join(c.OutputDir, "images") }

// VideosDir returns the final directory for downloaded videos.
func (c *Config) VideosDir() string { return filepath.Join(c.OutputDir, "videos") }

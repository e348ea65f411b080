package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/anatolykoptev/go-imagegrab"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Image   ImageConfig   `mapstructure:"image"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type StorageConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

type ImageConfig struct {
	TargetSize        int      `mapstructure:"target_size"`
	DedupThreshold    int      `mapstructure:"dedup_threshold"`
	MinWidth          int      `mapstructure:"min_width"`
	MinHeight         int      `mapstructure:"min_height"`
	MaxPixels         int      `mapstructure:"max_pixels"`
	SkipLogos         bool     `mapstructure:"skip_logos"`
	SkipStock         bool     `mapstructure:"skip_stock"`
	ExtraStockDomains []string `mapstructure:"extra_stock_domains"`
}

type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	Workers   int           `mapstructure:"workers"`
	MaxBytes  int64         `mapstructure:"max_bytes"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	JSONFormat bool   `mapstructure:"json_format"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("storage.dir", "./processed")
	v.SetDefault("storage.format", "png")
	v.SetDefault("image.target_size", imagegrab.DefaultTargetSize)
	v.SetDefault("image.dedup_threshold", imagegrab.DefaultDedupThreshold)
	v.SetDefault("image.min_width", imagegrab.DefaultMinDimension)
	v.SetDefault("image.min_height", imagegrab.DefaultMinDimension)
	v.SetDefault("image.max_pixels", imagegrab.DefaultMaxPixels)
	v.SetDefault("image.skip_logos", false)
	v.SetDefault("image.skip_stock", false)
	v.SetDefault("image.extra_stock_domains", []string{})
	v.SetDefault("fetch.timeout", "15s")
	v.SetDefault("fetch.user_agent", imagegrab.DefaultUserAgent)
	v.SetDefault("fetch.workers", 4)
	v.SetDefault("fetch.max_bytes", 20<<20)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json_format", false)

	// Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/imagegrab")

	// Environment variables
	v.SetEnvPrefix("IMAGEGRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	if _, err := imagegrab.ParseFormat(c.Storage.Format); err != nil {
		return fmt.Errorf("storage.format: %w", err)
	}
	if c.Image.TargetSize < 1 || c.Image.TargetSize > 4096 {
		return fmt.Errorf("image.target_size must be between 1 and 4096")
	}
	if c.Image.DedupThreshold < 1 || c.Image.DedupThreshold > imagegrab.FingerprintBits {
		return fmt.Errorf("image.dedup_threshold must be between 1 and %d", imagegrab.FingerprintBits)
	}
	if c.Image.MinWidth < 1 || c.Image.MinHeight < 1 {
		return fmt.Errorf("image.min_width and image.min_height must be positive")
	}
	if c.Image.MaxPixels < 1 {
		return fmt.Errorf("image.max_pixels must be positive")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Fetch.Workers < 1 || c.Fetch.Workers > 64 {
		return fmt.Errorf("fetch.workers must be between 1 and 64")
	}
	if c.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("fetch.max_bytes must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}

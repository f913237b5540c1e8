// Package config manages application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration. The cache root and tool paths
// are resolved here once and threaded into the components that need them;
// nothing below main reads the environment directly.
type Config struct {
	// CacheDir is the root directory for channel snapshots and frame artifacts.
	CacheDir string `json:"cache_dir"`

	// YtdlpPath is the path to the yt-dlp executable (default: "yt-dlp").
	YtdlpPath string `json:"ytdlp_path"`
	// FFmpegPath is the path to the ffmpeg executable (default: "ffmpeg").
	FFmpegPath string `json:"ffmpeg_path"`
	// YtdlpTimeout is the maximum time to wait for a single yt-dlp invocation.
	YtdlpTimeout time.Duration `json:"ytdlp_timeout"`

	// APIKey enables channel enumeration through the YouTube Data API when set.
	APIKey string `json:"api_key"`

	// MaxRetries is the number of channel-fetch attempts before falling back
	// to a cached snapshot or failing.
	MaxRetries int `json:"max_retries"`
	// RetryDelay is the base delay for linear fetch back-off;
	// attempt n sleeps RetryDelay * n.
	RetryDelay time.Duration `json:"retry_delay"`

	// RequestInterval paces yt-dlp launches across all workers.
	RequestInterval time.Duration `json:"request_interval"`
	// RateLimit is the per-download bandwidth ceiling in bytes per second.
	RateLimit int `json:"rate_limit"`

	// MinDuration is the floor, in seconds, below which uploads are treated
	// as short-form content and excluded.
	MinDuration int `json:"min_duration"`
}

// Default returns configuration with safe defaults.
func Default() *Config {
	return &Config{
		YtdlpPath:       "yt-dlp",
		FFmpegPath:      "ffmpeg",
		YtdlpTimeout:    10 * time.Minute,
		MaxRetries:      3,
		RetryDelay:      3 * time.Second,
		RequestInterval: 2 * time.Second,
		RateLimit:       3_000_000,
		MinDuration:     60,
	}
}

// Load builds configuration from defaults overridden by environment variables.
func Load() (*Config, error) {
	cfg := Default()
	cfg.loadFromEnv()

	if cfg.CacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		cfg.CacheDir = filepath.Join(base, "ytframes")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() {
	if v := os.Getenv("YTFRAMES_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("YTFRAMES_YTDLP_PATH"); v != "" {
		c.YtdlpPath = v
	}
	if v := os.Getenv("YTFRAMES_FFMPEG_PATH"); v != "" {
		c.FFmpegPath = v
	}
	if v := os.Getenv("YTFRAMES_YTDLP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.YtdlpTimeout = d
		}
	}
	if v := os.Getenv("YTFRAMES_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("YTFRAMES_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("YTFRAMES_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RetryDelay = d
		}
	}
	if v := os.Getenv("YTFRAMES_REQUEST_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestInterval = d
		}
	}
	if v := os.Getenv("YTFRAMES_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit = n
		}
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.YtdlpTimeout <= 0 {
		return fmt.Errorf("ytdlp_timeout must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("retry_delay must be positive")
	}
	if c.RequestInterval < 0 {
		return fmt.Errorf("request_interval must be non-negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be non-negative")
	}
	if c.MinDuration < 0 {
		return fmt.Errorf("min_duration must be non-negative")
	}
	return nil
}

package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.YtdlpPath != "yt-dlp" || cfg.FFmpegPath != "ffmpeg" {
		t.Errorf("tool paths = %q, %q", cfg.YtdlpPath, cfg.FFmpegPath)
	}
	if cfg.MaxRetries != 3 || cfg.RetryDelay != 3*time.Second {
		t.Errorf("retry = %d x %v, want 3 x 3s", cfg.MaxRetries, cfg.RetryDelay)
	}
	if cfg.MinDuration != 60 {
		t.Errorf("MinDuration = %d, want 60", cfg.MinDuration)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("YTFRAMES_CACHE_DIR", "/tmp/ytframes-test")
	t.Setenv("YTFRAMES_YTDLP_PATH", "/opt/yt-dlp")
	t.Setenv("YTFRAMES_MAX_RETRIES", "5")
	t.Setenv("YTFRAMES_RETRY_DELAY", "500ms")
	t.Setenv("YTFRAMES_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CacheDir != "/tmp/ytframes-test" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.YtdlpPath != "/opt/yt-dlp" {
		t.Errorf("YtdlpPath = %q", cfg.YtdlpPath)
	}
	if cfg.MaxRetries != 5 || cfg.RetryDelay != 500*time.Millisecond {
		t.Errorf("retry = %d x %v, want 5 x 500ms", cfg.MaxRetries, cfg.RetryDelay)
	}
	if cfg.APIKey != "test-key" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero timeout", func(c *Config) { c.YtdlpTimeout = 0 }, true},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, true},
		{"negative delay", func(c *Config) { c.RetryDelay = -time.Second }, true},
		{"negative interval", func(c *Config) { c.RequestInterval = -time.Second }, true},
		{"negative rate limit", func(c *Config) { c.RateLimit = -1 }, true},
		{"zero interval ok", func(c *Config) { c.RequestInterval = 0 }, false},
		{"zero rate limit ok", func(c *Config) { c.RateLimit = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

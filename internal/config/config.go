// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidCanvasSize is returned when CANVAS_SIZE is not positive.
	ErrInvalidCanvasSize = errors.New("config: CANVAS_SIZE must be positive")
	// ErrInvalidFrameRate is returned when DEFAULT_FPS is not positive.
	ErrInvalidFrameRate = errors.New("config: DEFAULT_FPS must be positive")
	// ErrInvalidConcurrency is returned when MAX_CONCURRENT_FRAMES is not positive.
	ErrInvalidConcurrency = errors.New("config: MAX_CONCURRENT_FRAMES must be positive")
	// ErrInvalidRetention is returned when JOB_RETENTION or JANITOR_INTERVAL is not positive.
	ErrInvalidRetention = errors.New("config: JOB_RETENTION and JANITOR_INTERVAL must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Telegram settings. The bot is started only when a token is set.
	BotToken string `env:"BOT_TOKEN" json:"-"` // Masked in JSON

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/sticker-bridge" json:"temp_dir"`

	// Conversion settings
	FFmpegPath          string  `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath         string  `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	CanvasSize          int     `env:"CANVAS_SIZE, default=320" json:"canvas_size"`
	DefaultFPS          float64 `env:"DEFAULT_FPS, default=15" json:"default_fps"`
	MaxConcurrentFrames int     `env:"MAX_CONCURRENT_FRAMES, default=4" json:"max_concurrent_frames"`
	FetchMaxRetries     int     `env:"FETCH_MAX_RETRIES, default=2" json:"fetch_max_retries"`

	// Job retention
	JobRetention    time.Duration `env:"JOB_RETENTION, default=1h" json:"job_retention"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL, default=10m" json:"janitor_interval"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// BotEnabled returns true if a Telegram bot token is provided.
func (c *Config) BotEnabled() bool {
	return c.BotToken != ""
}

// Load reads configuration from environment variables using go-envconfig.
// Values from .env and .env.local are applied first without overriding the
// process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that numeric settings are in range.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.CanvasSize <= 0 {
		return ErrInvalidCanvasSize
	}
	if c.DefaultFPS <= 0 {
		return ErrInvalidFrameRate
	}
	if c.MaxConcurrentFrames <= 0 {
		return ErrInvalidConcurrency
	}
	if c.JobRetention <= 0 || c.JanitorInterval <= 0 {
		return ErrInvalidRetention
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, BotEnabled: %t, TempDir: %s, CanvasSize: %d, DefaultFPS: %g, MaxConcurrentFrames: %d, JobRetention: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.BotEnabled(),
		c.TempDir,
		c.CanvasSize,
		c.DefaultFPS,
		c.MaxConcurrentFrames,
		c.JobRetention,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package config

import (
	"log"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"medsim-server/internal/logger"
)

// Config holds the whole application configuration.
type Config struct {
	AppEnv     string `env:"APP_ENV" env-default:"development"`
	Logger     logger.Config
	Server     ServerConfig
	Backend    BackendConfig
	Generation GenerationConfig
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               string   `env:"SERVER_PORT" env-default:"8080"`
	ReadTimeoutSec     int      `env:"SERVER_READ_TIMEOUT_SEC" env-default:"15"`
	WriteTimeoutSec    int      `env:"SERVER_WRITE_TIMEOUT_SEC" env-default:"15"`
	IdleTimeoutSec     int      `env:"SERVER_IDLE_TIMEOUT_SEC" env-default:"60"`
	ShutdownTimeoutSec int      `env:"SERVER_SHUTDOWN_TIMEOUT_SEC" env-default:"20"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:","`
}

// BackendConfig configures the generative backend client.
type BackendConfig struct {
	// Kind selects the client implementation: gemini, openai or ollama.
	Kind string `env:"AI_BACKEND" env-default:"gemini"`
	// APIKey is the single process-wide credential, read once at startup.
	// Absence short-circuits every generation task.
	APIKey     string `env:"AI_API_KEY"`
	BaseURL    string `env:"AI_BASE_URL"`
	TimeoutSec int    `env:"AI_TIMEOUT_SEC" env-default:"120"`
}

// GenerationConfig carries the retry, fallback and batch tuning of the
// generation pipeline.
type GenerationConfig struct {
	TextModels  []string `env:"AI_TEXT_MODELS" env-separator:"," env-default:"gemini-2.5-flash,gemini-2.0-flash"`
	ImageModels []string `env:"AI_IMAGE_MODELS" env-separator:"," env-default:"gemini-2.0-flash-exp-image-generation"`

	MaxAttempts      int `env:"AI_MAX_ATTEMPTS" env-default:"3"`
	ImageMaxAttempts int `env:"AI_IMAGE_MAX_ATTEMPTS" env-default:"2"`

	RateLimitBackoffMs int `env:"AI_RATE_LIMIT_BACKOFF_MS" env-default:"8000"`
	TransientBackoffMs int `env:"AI_TRANSIENT_BACKOFF_MS" env-default:"2000"`
	BackoffJitterMs    int `env:"AI_BACKOFF_JITTER_MS" env-default:"1000"`

	QuotaCooldownMs    int `env:"AI_QUOTA_COOLDOWN_MS" env-default:"8000"`
	FallbackCooldownMs int `env:"AI_FALLBACK_COOLDOWN_MS" env-default:"1000"`

	BatchCooldownMs int `env:"AI_BATCH_COOLDOWN_MS" env-default:"6000"`
}

// CredentialPresent reports whether a backend API key was supplied.
// Ollama runs without a key, so it never degrades.
func (c *Config) CredentialPresent() bool {
	if strings.ToLower(c.Backend.Kind) == "ollama" {
		return true
	}
	return strings.TrimSpace(c.Backend.APIKey) != ""
}

// ReadTimeout returns the HTTP server read timeout.
func (c *ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSec) * time.Second
}

// WriteTimeout returns the HTTP server write timeout.
func (c *ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSec) * time.Second
}

// IdleTimeout returns the HTTP server idle timeout.
func (c *ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

// ShutdownTimeout bounds graceful shutdown, background batches included.
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// BackendTimeout returns the transport timeout for backend calls.
func (c *BackendConfig) BackendTimeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// RateLimitBackoff returns the base backoff for rate-limited failures.
func (c *GenerationConfig) RateLimitBackoff() time.Duration {
	return time.Duration(c.RateLimitBackoffMs) * time.Millisecond
}

// TransientBackoff returns the base backoff for transient failures.
func (c *GenerationConfig) TransientBackoff() time.Duration {
	return time.Duration(c.TransientBackoffMs) * time.Millisecond
}

// BackoffJitter returns the jitter bound added to every backoff wait.
func (c *GenerationConfig) BackoffJitter() time.Duration {
	return time.Duration(c.BackoffJitterMs) * time.Millisecond
}

// QuotaCooldown returns the wait before trying the next candidate model
// after a rate-limit flavored failure.
func (c *GenerationConfig) QuotaCooldown() time.Duration {
	return time.Duration(c.QuotaCooldownMs) * time.Millisecond
}

// FallbackCooldown returns the wait before trying the next candidate model
// after any other failure.
func (c *GenerationConfig) FallbackCooldown() time.Duration {
	return time.Duration(c.FallbackCooldownMs) * time.Millisecond
}

// BatchCooldown returns the wait inserted after each successful batch item.
func (c *GenerationConfig) BatchCooldown() time.Duration {
	return time.Duration(c.BatchCooldownMs) * time.Millisecond
}

// Load reads the configuration from environment variables and an optional
// .env file.
func Load() *Config {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	return &cfg
}

// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Prayer provider names.
const (
	ProviderAladhan = "aladhan"
	ProviderLocal   = "local"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required,notEmpty"`

	// Signing key for admin sessions and user bearer tokens
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Prayer times
	PrayerProvider    string        `env:"PRAYER_PROVIDER" envDefault:"aladhan"`
	AladhanBaseURL    string        `env:"ALADHAN_BASE_URL" envDefault:"https://api.aladhan.com/v1"`
	AladhanTimeout    time.Duration `env:"ALADHAN_TIMEOUT" envDefault:"10s"`
	PrayerCacheTTL    time.Duration `env:"PRAYER_CACHE_TTL" envDefault:"24h"`
	PrayerFallbackOff bool          `env:"PRAYER_FALLBACK_DISABLED" envDefault:"false"`

	// Background workers
	WorkersEnabled   bool          `env:"WORKERS_ENABLED" envDefault:"true"`
	DispatchInterval time.Duration `env:"DISPATCH_INTERVAL" envDefault:"1m"`
	NotifyWindow     time.Duration `env:"NOTIFY_WINDOW" envDefault:"5m"`
	PublishInterval  time.Duration `env:"PUBLISH_INTERVAL" envDefault:"1m"`
	PushPollInterval time.Duration `env:"PUSH_POLL_INTERVAL" envDefault:"1s"`

	// Push gateway; an empty URL logs pushes instead of sending them
	PushGatewayURL    string `env:"PUSH_GATEWAY_URL" envDefault:""`
	PushGatewaySecret string `env:"PUSH_GATEWAY_SECRET" envDefault:""`
	PushRatePerSecond int    `env:"PUSH_RATE_PER_SECOND" envDefault:"50"`
	PushMaxAttempts   int    `env:"PUSH_MAX_ATTEMPTS" envDefault:"5"`

	// Admin security
	AdminEmail             string        `env:"ADMIN_EMAIL" envDefault:"admin@noor.app"`
	AdminMaxFailedAttempts int           `env:"ADMIN_MAX_FAILED_ATTEMPTS" envDefault:"5"`
	AdminLockoutDuration   time.Duration `env:"ADMIN_LOCKOUT_DURATION" envDefault:"15m"`
	AdminSessionTTL        time.Duration `env:"ADMIN_SESSION_TTL" envDefault:"12h"`
	AdminPasscodeHistory   int           `env:"ADMIN_PASSCODE_HISTORY" envDefault:"5"`

	// Rate limiting
	RateLimitAPIEnabled    bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitPublicEnabled bool `env:"RATE_LIMIT_PUBLIC_ENABLED" envDefault:"true"`
	RateLimitPublicRPS     int  `env:"RATE_LIMIT_PUBLIC_RPS" envDefault:"20"`
	RateLimitPublicBurst   int  `env:"RATE_LIMIT_PUBLIC_BURST" envDefault:"40"`
	RateLimitUnlockPerMin  int  `env:"RATE_LIMIT_UNLOCK_PER_MIN" envDefault:"10"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://noor.app,https://admin.noor.app")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Rewrite RemoteAddr from X-Forwarded-For / X-Real-IP. Enable only
	// behind a proxy that overwrites these headers.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.PrayerProvider {
	case ProviderAladhan, ProviderLocal:
	default:
		return fmt.Errorf("PRAYER_PROVIDER must be %q or %q, got %q", ProviderAladhan, ProviderLocal, c.PrayerProvider)
	}
	if c.NotifyWindow <= 0 {
		return fmt.Errorf("NOTIFY_WINDOW must be positive")
	}
	if c.AdminMaxFailedAttempts < 1 {
		return fmt.Errorf("ADMIN_MAX_FAILED_ATTEMPTS must be at least 1")
	}
	if c.PushGatewayURL != "" && c.PushGatewaySecret == "" {
		return fmt.Errorf("PUSH_GATEWAY_SECRET is required when PUSH_GATEWAY_URL is set")
	}
	return nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Package config loads process configuration from the environment, with a
// .env file honored in development. Values are parsed once at startup via
// envconfig struct tags and validated before anything else initializes; a
// bad configuration fails the process immediately.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DevSigningKey is the fallback JWT signing key. Mains warn loudly when it
// is still in use.
const DevSigningKey = "local-dev-signing-key-change-in-production"

// Config is the full process configuration for both the API server and the
// cache warmer.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"development" validate:"oneof=development staging production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Providers ProviderConfig
	Session   SessionConfig
	Worker    WorkerConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `envconfig:"APP_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout  time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`

	// RatePerMinute caps requests per session token.
	RatePerMinute int `envconfig:"HTTP_RATE_LIMIT" default:"100" validate:"min=1"`
}

// DatabaseConfig holds PostgreSQL connection and pool settings.
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432" validate:"min=1,max=65535"`
	User            string        `envconfig:"DB_USER" default:"cleanairroute"`
	Password        Secret        `envconfig:"DB_PASSWORD" default:"localdev"`
	Name            string        `envconfig:"DB_NAME" default:"cleanairroute"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10" validate:"min=1"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5" validate:"min=0"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	SigningKey Secret `envconfig:"JWT_SIGNING_KEY" default:"local-dev-signing-key-change-in-production" validate:"min=16"`
	Issuer     string `envconfig:"JWT_ISSUER" default:"cleanairroute"`
	Audience   string `envconfig:"JWT_AUDIENCE" default:"cleanairroute-api"`
}

// ProviderConfig holds upstream gateway endpoints and credentials. Empty
// base URLs fall back to each client's production default.
type ProviderConfig struct {
	AirBaseURL   string `envconfig:"AIR_API_BASE_URL" validate:"omitempty,url"`
	AirAPIKey    Secret `envconfig:"AIR_API_KEY"`
	RouteBaseURL string `envconfig:"ROUTE_API_BASE_URL" validate:"omitempty,url"`
	RouteAPIKey  Secret `envconfig:"ROUTE_API_KEY"`
	KakaoAPIKey  Secret `envconfig:"KAKAO_REST_API_KEY"`
}

// SessionConfig holds per-device session lifecycle settings.
type SessionConfig struct {
	IdleTTL    time.Duration `envconfig:"SESSION_IDLE_TTL" default:"30m"`
	SweepEvery time.Duration `envconfig:"SESSION_SWEEP_EVERY" default:"1m"`

	// Aspect is the assumed viewport width/height ratio for bounds
	// derivation when clients do not report one.
	Aspect float64 `envconfig:"SESSION_VIEWPORT_ASPECT" default:"1.0" validate:"gt=0"`
}

// WorkerConfig holds cache warmer settings.
type WorkerConfig struct {
	ProjectID      string        `envconfig:"PUBSUB_PROJECT_ID"`
	SubscriptionID string        `envconfig:"PUBSUB_SUBSCRIPTION" default:"cache-warm"`
	MetroBounds    string        `envconfig:"WARM_METRO_BOUNDS" default:"37.40,126.70,37.70,127.20"`
	H3Resolution   int           `envconfig:"WARM_H3_RESOLUTION" default:"7" validate:"min=0,max=15"`
	Concurrency    int           `envconfig:"WARM_CONCURRENCY" default:"8" validate:"min=1"`
	CellTimeout    time.Duration `envconfig:"WARM_CELL_TIMEOUT" default:"10s"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled      bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	SampleRatio  float64 `envconfig:"OTEL_TRACE_SAMPLE_RATIO" default:"1.0" validate:"gte=0,lte=1"`
}

// Load reads the process configuration: a .env file if present (it never
// overrides real environment variables), then the environment, then
// validation.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing environment configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// UsingDevSigningKey reports whether the fallback signing key is in use.
func (c *Config) UsingDevSigningKey() bool {
	return c.Auth.SigningKey.Unmask() == DevSigningKey
}

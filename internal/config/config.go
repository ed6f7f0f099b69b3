// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles,
// with an optional .env file and an optional AWS Secrets Manager overlay.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Sessions
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	// Seed new accounts with the starter transactions and donation.
	SeedStarterData bool `env:"SEED_STARTER_DATA" envDefault:"true"`

	// Apply embedded migrations on startup.
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`

	// Rate limiting
	RateLimitEnabled      bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitAPIPerMinute int  `env:"RATE_LIMIT_API_PER_MINUTE" envDefault:"120"`
	RateLimitAuthPerMin   int  `env:"RATE_LIMIT_AUTH_PER_MINUTE" envDefault:"10"`
	RateLimitPinPerMin    int  `env:"RATE_LIMIT_PIN_PER_MINUTE" envDefault:"5"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Background integration sync
	SyncWorkerEnabled  bool          `env:"SYNC_WORKER_ENABLED" envDefault:"false"`
	SyncWorkerInterval time.Duration `env:"SYNC_WORKER_INTERVAL" envDefault:"6h"`
	SyncLookback       time.Duration `env:"SYNC_LOOKBACK" envDefault:"720h"`

	// Outbound integration HTTP
	IntegrationTimeout    time.Duration `env:"INTEGRATION_TIMEOUT" envDefault:"15s"`
	IntegrationMaxRetries int           `env:"INTEGRATION_MAX_RETRIES" envDefault:"3"`

	// AWS Secrets Manager overlay for integration credentials.
	AWSRegion           string `env:"AWS_REGION" envDefault:"us-east-1"`
	IntegrationSecretID string `env:"INTEGRATION_SECRET_ID"`

	Integrations Integrations
}

// Integrations holds credentials for the external transaction providers.
type Integrations struct {
	Bank    BankConfig
	PayPal  PayPalConfig
	CashApp CashAppConfig
	Zelle   ZelleConfig
	Venmo   VenmoConfig
}

// BankConfig configures the bank aggregator.
type BankConfig struct {
	BaseURL     string `env:"BANK_API_BASE_URL"`
	APIKey      string `env:"BANK_API_KEY"`
	LinkToken   string `env:"BANK_LINK_TOKEN"`
	AccessToken string `env:"BANK_ACCESS_TOKEN"`
}

// Enabled reports whether the aggregator can be called.
func (c BankConfig) Enabled() bool { return c.BaseURL != "" }

// PayPalConfig configures the PayPal reporting API.
type PayPalConfig struct {
	BaseURL      string `env:"PAYPAL_API_BASE_URL" envDefault:"https://api-m.paypal.com"`
	ClientID     string `env:"PAYPAL_CLIENT_ID"`
	ClientSecret string `env:"PAYPAL_CLIENT_SECRET"`
}

// Enabled reports whether client credentials are present.
func (c PayPalConfig) Enabled() bool { return c.ClientID != "" && c.ClientSecret != "" }

// CashAppConfig configures Cash App (Square).
type CashAppConfig struct {
	BaseURL       string `env:"CASH_APP_API_BASE_URL"`
	APIKey        string `env:"CASH_APP_API_KEY"`
	ApplicationID string `env:"SQUARE_APPLICATION_ID"`
	LocationID    string `env:"SQUARE_LOCATION_ID"`
	Environment   string `env:"SQUARE_ENVIRONMENT" envDefault:"sandbox"`
}

// Enabled reports whether the transfers API can be called.
func (c CashAppConfig) Enabled() bool { return c.BaseURL != "" && c.APIKey != "" }

// ZelleConfig configures the Zelle transfers API.
type ZelleConfig struct {
	BaseURL string `env:"ZELLE_API_BASE_URL"`
	APIKey  string `env:"ZELLE_API_KEY"`
}

// Enabled reports whether the transfers API can be called.
func (c ZelleConfig) Enabled() bool { return c.BaseURL != "" && c.APIKey != "" }

// VenmoConfig configures the Venmo payments API.
type VenmoConfig struct {
	BaseURL  string `env:"VENMO_API_BASE_URL"`
	APIKey   string `env:"VENMO_API_KEY"`
	ClientID string `env:"VENMO_CLIENT_ID"`
}

// Enabled reports whether the payments API can be called.
func (c VenmoConfig) Enabled() bool { return c.BaseURL != "" && c.APIKey != "" }

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

// Load reads .env (if present), the process environment and, when
// INTEGRATION_SECRET_ID is set, the AWS Secrets Manager overlay.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	vars := environMap(os.Environ())

	if secretID := vars["INTEGRATION_SECRET_ID"]; secretID != "" {
		region := vars["AWS_REGION"]
		if region == "" {
			region = "us-east-1"
		}
		fetcher, err := NewSecretsManagerFetcher(context.Background(), region)
		if err != nil {
			return nil, err
		}
		return LoadWithSecrets(context.Background(), vars, fetcher)
	}

	return parse(vars)
}

// LoadWithSecrets parses vars after overlaying the JSON secret named by
// INTEGRATION_SECRET_ID. Secret keys use the same names as the environment.
func LoadWithSecrets(ctx context.Context, vars map[string]string, fetcher SecretFetcher) (*Config, error) {
	merged := make(map[string]string, len(vars))
	for k, v := range vars {
		merged[k] = v
	}

	if secretID := vars["INTEGRATION_SECRET_ID"]; secretID != "" && fetcher != nil {
		overlay, err := fetchSecretMap(ctx, fetcher, secretID)
		if err != nil {
			return nil, err
		}
		for k, v := range overlay {
			merged[k] = v
		}
	}

	return parse(merged)
}

func parse(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Venmo shares the PayPal client id unless configured separately.
	if cfg.Integrations.Venmo.ClientID == "" {
		cfg.Integrations.Venmo.ClientID = cfg.Integrations.PayPal.ClientID
	}

	return cfg, nil
}

func environMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[k] = v
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"product-variant-service/internal/domain"
	"product-variant-service/internal/pricing"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_ENV"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
// `required:"true"` makes an environment variable mandatory.
type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"development"` // e.g., development, staging, production
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`      // e.g., debug, info, warn, error
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`   // json or console
	HttpServer  ServerConfig
	GrpcServer  GrpcServerConfig
	Postgres    PostgresConfig
	Pricing     PricingConfig
	Media       MediaConfig
	Draft       DraftConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"60s"` // uploads go through this server
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	DBName   string `envconfig:"POSTGRES_DBNAME" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	// Example: "host=localhost port=5432 user=user password=password dbname=mydb sslmode=disable"
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// PricingConfig holds the defaults every new SKU starts from.
// Factors are strings so they parse straight into decimals.
type PricingConfig struct {
	Mode                 string `envconfig:"PRICING_MODE" default:"conversion"` // conversion or multiplication
	ConversionFactor     string `envconfig:"PRICING_CONVERSION_FACTOR" default:"1"`
	MultiplicationFactor string `envconfig:"PRICING_MULTIPLICATION_FACTOR" default:"1"`
}

// Defaults parses the pricing section.
func (pc PricingConfig) Defaults() (pricing.Defaults, error) {
	conv, err := decimal.NewFromString(pc.ConversionFactor)
	if err != nil {
		return pricing.Defaults{}, fmt.Errorf("PRICING_CONVERSION_FACTOR: %w", err)
	}
	mult, err := decimal.NewFromString(pc.MultiplicationFactor)
	if err != nil {
		return pricing.Defaults{}, fmt.Errorf("PRICING_MULTIPLICATION_FACTOR: %w", err)
	}
	d := pricing.Defaults{
		Mode:                 domain.PricingMode(pc.Mode),
		ConversionFactor:     conv,
		MultiplicationFactor: mult,
	}
	if err := d.Validate(); err != nil {
		return pricing.Defaults{}, err
	}
	return d, nil
}

// Media backends.
const (
	MediaBackendLocal = "local"
	MediaBackendGCS   = "gcs"
)

// MediaConfig selects where uploaded files are stored.
type MediaConfig struct {
	Backend           string `envconfig:"MEDIA_BACKEND" default:"local"` // local or gcs
	LocalDir          string `envconfig:"MEDIA_LOCAL_DIR" default:"./uploads"`
	BaseURL           string `envconfig:"MEDIA_BASE_URL" default:"http://localhost:8080/media"`
	Bucket            string `envconfig:"MEDIA_GCS_BUCKET"`
	Prefix            string `envconfig:"MEDIA_PREFIX" default:"variants"`
	CredentialsFile   string `envconfig:"MEDIA_GCS_CREDENTIALS_FILE"`
	MaxUploadBytes    int64  `envconfig:"MEDIA_MAX_UPLOAD_BYTES" default:"10485760"`
	UploadConcurrency int    `envconfig:"MEDIA_UPLOAD_CONCURRENCY" default:"4"`
}

// DraftConfig bounds the in-memory drafts.
type DraftConfig struct {
	ConfirmTimeout time.Duration `envconfig:"DRAFT_CONFIRM_TIMEOUT" default:"2m"`
	MaxDrafts      int           `envconfig:"DRAFT_MAX" default:"1000"`

	// MaxCombinations bounds the SKUs one draft or preview may generate.
	MaxCombinations int `envconfig:"DRAFT_MAX_COMBINATIONS" default:"5000"`
}

// Load initializes the configuration from environment variables.
// It should be called once during application startup.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil { // no prefix on env vars
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values envconfig cannot check on its own.
func (c *Config) Validate() error {
	if _, err := c.Pricing.Defaults(); err != nil {
		return err
	}
	switch c.Media.Backend {
	case MediaBackendLocal:
		if c.Media.LocalDir == "" {
			return errors.New("MEDIA_LOCAL_DIR is required for the local media backend")
		}
	case MediaBackendGCS:
		if c.Media.Bucket == "" {
			return errors.New("MEDIA_GCS_BUCKET is required for the gcs media backend")
		}
	default:
		return fmt.Errorf("unknown MEDIA_BACKEND %q", c.Media.Backend)
	}
	if c.Media.MaxUploadBytes <= 0 {
		return errors.New("MEDIA_MAX_UPLOAD_BYTES must be positive")
	}
	if c.Draft.MaxDrafts < 0 {
		return errors.New("DRAFT_MAX must not be negative")
	}
	if c.Draft.MaxCombinations < 0 {
		return errors.New("DRAFT_MAX_COMBINATIONS must not be negative")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

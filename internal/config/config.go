package config

import (
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    Server    `yaml:"server"`
	CRM       CRM       `yaml:"crm"`
	Database  Database  `yaml:"database"`
	Scheduler Scheduler `yaml:"scheduler"`
	Trends    Trends    `yaml:"trends"`
	S3        S3        `yaml:"s3"`
}

// Server holds HTTP server configuration
type Server struct {
	Host         string        `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port         string        `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
}

// Address returns the full server address
func (s Server) Address() string {
	return s.Host + ":" + s.Port
}

// CRM holds upstream CRM API configuration. A single service token covers
// every configured account; AccountIDs empty means any account is allowed.
type CRM struct {
	BaseURL    string   `yaml:"base_url" env:"CRM_BASE_URL" env-default:"https://api.leadmetric.internal"`
	APIVersion string   `yaml:"api_version" env:"CRM_API_VERSION" env-default:"v1"`
	APIToken   string   `yaml:"api_token" env:"CRM_API_TOKEN"`
	AccountIDs []string `yaml:"account_ids" env:"CRM_ACCOUNT_IDS" env-separator:","`
}

// Database holds database configuration
type Database struct {
	// PostgreSQL; empty DSN disables local storage and the service reads
	// straight from the CRM
	PostgresDSN string `yaml:"postgres_dsn" env:"DATABASE_URL"`

	// Connection pool settings
	MaxConns int32 `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"25"`
	MinConns int32 `yaml:"min_conns" env:"DB_MIN_CONNS" env-default:"5"`
}

// Scheduler holds background sync configuration
type Scheduler struct {
	Enabled  bool          `yaml:"enabled" env:"SCHEDULER_ENABLED" env-default:"false"`
	Interval time.Duration `yaml:"interval" env:"SCHEDULER_INTERVAL" env-default:"10m"`
}

// Trends holds the comparison policy for the trend engine
type Trends struct {
	// SignificanceThreshold is the materiality gate in percent
	SignificanceThreshold float64 `yaml:"significance_threshold" env:"TRENDS_SIGNIFICANCE_THRESHOLD" env-default:"5.0"`
	// PreviousWindowInclusive includes the split instant in the
	// comparison window; off by default to avoid double counting
	PreviousWindowInclusive bool `yaml:"previous_window_inclusive" env:"TRENDS_PREVIOUS_WINDOW_INCLUSIVE" env-default:"false"`
}

// S3 holds S3/MinIO report storage configuration
type S3 struct {
	Enabled         bool   `yaml:"enabled" env:"S3_ENABLED" env-default:"false"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT" env-default:"http://localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID" env-default:"minioadmin"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY" env-default:"minioadmin"`
	Bucket          string `yaml:"bucket" env:"S3_BUCKET" env-default:"reports"`
	Region          string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	PublicURL       string `yaml:"public_url" env:"S3_PUBLIC_URL" env-default:"http://localhost:9000/reports"`
}

// MustLoad loads configuration from environment and panics on error
func MustLoad() Config {
	// Load .env file if exists (for development)
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	return cfg
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Database drivers accepted in DB_DRIVER.
const (
	DriverSurreal = "surreal"
	DriverMySQL   = "mysql"
	DriverSQLite  = "sqlite"
)

// Provider exposes configuration to the rest of the application. Components take
// a Provider rather than *Config so tests can stub single values.
type Provider interface {
	GetAppAddr() string
	GetAppBaseURL() string
	GetSessionSecret() string
	GetDBDriver() string
	GetDBURL() string
	GetDBNs() string
	GetDBDb() string
	GetDBUser() string
	GetDBPass() string
	GetDBDSN() string
	GetDBQueryTimeout() time.Duration
	GetDBExecuteTimeout() time.Duration
	GetUploadDir() string
	GetUploadMaxBytes() int64
	GetHistoryLimit() int
	GetDefaultLang() string
	GetRateLimitPerMinute() int
}

// Config holds all configuration for the application.
type Config struct {
	AppAddr       string `envconfig:"APP_ADDR" default:":8080"`
	AppBaseURL    string `envconfig:"APP_BASE_URL" default:"http://localhost:8080"`
	SessionSecret string `envconfig:"SESSION_SECRET" required:"true"`

	DBDriver         string        `envconfig:"DB_DRIVER" default:"surreal"`
	DBUrl            string        `envconfig:"SURREAL_URL"`
	DBNs             string        `envconfig:"SURREAL_NS"`
	DBDb             string        `envconfig:"SURREAL_DB"`
	DBUser           string        `envconfig:"SURREAL_USER"`
	DBPass           string        `envconfig:"SURREAL_PASS"`
	DBDSN            string        `envconfig:"DB_DSN"`
	DBQueryTimeout   time.Duration `envconfig:"DB_QUERY_TIMEOUT" default:"5s"`
	DBExecuteTimeout time.Duration `envconfig:"DB_EXECUTE_TIMEOUT" default:"10s"`

	UploadDir      string `envconfig:"UPLOAD_DIR" default:"uploads"`
	UploadMaxBytes int64  `envconfig:"UPLOAD_MAX_BYTES" default:"16777216"`

	HistoryLimit       int    `envconfig:"HISTORY_LIMIT" default:"50"`
	DefaultLang        string `envconfig:"DEFAULT_LANG" default:"ja"`
	RateLimitPerMinute int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"10"`
}

// Load reads the environment into a Config and checks it. It does not load .env;
// see New.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// New loads .env when present, then the environment. Invalid configuration is
// fatal.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET must not be empty")
	}
	switch c.DBDriver {
	case DriverSurreal:
		if c.DBUrl == "" || c.DBNs == "" || c.DBDb == "" {
			return fmt.Errorf("SURREAL_URL, SURREAL_NS and SURREAL_DB are required when DB_DRIVER=%s", DriverSurreal)
		}
	case DriverMySQL, DriverSQLite:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required when DB_DRIVER=%s", c.DBDriver)
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.DBQueryTimeout <= 0 || c.DBExecuteTimeout <= 0 {
		return fmt.Errorf("DB_QUERY_TIMEOUT and DB_EXECUTE_TIMEOUT must be positive durations")
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

func (c *Config) GetAppAddr() string                 { return c.AppAddr }
func (c *Config) GetAppBaseURL() string              { return c.AppBaseURL }
func (c *Config) GetSessionSecret() string           { return c.SessionSecret }
func (c *Config) GetDBDriver() string                { return c.DBDriver }
func (c *Config) GetDBURL() string                   { return c.DBUrl }
func (c *Config) GetDBNs() string                    { return c.DBNs }
func (c *Config) GetDBDb() string                    { return c.DBDb }
func (c *Config) GetDBUser() string                  { return c.DBUser }
func (c *Config) GetDBPass() string                  { return c.DBPass }
func (c *Config) GetDBDSN() string                   { return c.DBDSN }
func (c *Config) GetDBQueryTimeout() time.Duration   { return c.DBQueryTimeout }
func (c *Config) GetDBExecuteTimeout() time.Duration { return c.DBExecuteTimeout }
func (c *Config) GetUploadDir() string               { return c.UploadDir }
func (c *Config) GetUploadMaxBytes() int64           { return c.UploadMaxBytes }
func (c *Config) GetHistoryLimit() int               { return c.HistoryLimit }
func (c *Config) GetDefaultLang() string             { return c.DefaultLang }
func (c *Config) GetRateLimitPerMinute() int         { return c.RateLimitPerMinute }

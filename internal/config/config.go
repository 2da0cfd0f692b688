package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	EnvLocal = "local"
	EnvDev   = "development"
	EnvProd  = "production"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	Env string `env:"APP_ENV" env-default:"local"`

	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// Password hashing configuration
	Auth AuthConfig

	// CORS configuration
	CORS CORSConfig

	// Event publishing configuration
	Kafka KafkaConfig

	// Metrics configuration
	Metrics MetricsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" env-default:"3333"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" env-default:"120s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver       string        `env:"DB_DRIVER" env-default:"postgres"`
	Host         string        `env:"DB_HOST" env-default:"localhost"`
	Port         string        `env:"DB_PORT"`
	User         string        `env:"DB_USER" env-default:"postgres"`
	Password     string        `env:"DB_PASSWORD"`
	Name         string        `env:"DB_NAME" env-default:"quiz"`
	SSLMode      string        `env:"DB_SSLMODE" env-default:"disable"`
	MaxConns     int32         `env:"DB_MAX_CONNS" env-default:"5"`
	MinConns     int32         `env:"DB_MIN_CONNS" env-default:"0"`
	MaxLifetime  time.Duration `env:"DB_MAX_LIFETIME" env-default:"1h"`
	ConnTimeout  time.Duration `env:"DB_CONN_TIMEOUT" env-default:"10s"`
	QueryTimeout time.Duration `env:"DB_QUERY_TIMEOUT" env-default:"30s"`
	Migrate      bool          `env:"DB_MIGRATE" env-default:"true"`

	// SimpleProtocol is required behind PgBouncer in transaction mode (Supabase pooler on :6543)
	SimpleProtocol bool `env:"DB_SIMPLE_PROTOCOL" env-default:"false"`
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret         string        `env:"JWT_SECRET" env-default:"your-secret-key-change-in-production"`
	AccessTokenTTL time.Duration `env:"JWT_ACCESS_TTL" env-default:"24h"`
}

// AuthConfig holds password hashing configuration
type AuthConfig struct {
	BcryptCost int `env:"BCRYPT_COST" env-default:"10"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" env-separator:"," env-default:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" env-separator:"," env-default:"*"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" env-default:"false"`
}

// KafkaConfig holds domain event publishing configuration.
// Publishing is disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `env:"KAFKA_TOPIC" env-default:"quiz-events"`
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" env-default:"true"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file
	if err := godotenv.Load("../.env"); err != nil {
		// Try loading from current directory if not found in parent
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn(".env file not found, using process environment", "error", err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad is Load that panics on error. Used by the binaries at startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("APP_ENV must be one of %s, %s, %s", EnvLocal, EnvDev, EnvProd)
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case DriverPostgres, DriverMySQL:
		if c.Database.Host == "" {
			return errors.New("DB_HOST is required")
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER %q is not supported", c.Database.Driver)
	}

	if c.Database.Name == "" {
		return errors.New("DB_NAME is required")
	}

	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Env == EnvProd && c.JWT.Secret == "your-secret-key-change-in-production" {
		return errors.New("JWT_SECRET must be set in production")
	}

	return nil
}

// DSN returns the database connection string for the configured driver
func (c *Config) DSN() string {
	db := c.Database
	switch db.Driver {
	case DriverMySQL:
		port := db.Port
		if port == "" {
			port = "3306"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&timeout=%s",
			db.User, db.Password, db.Host, port, db.Name, db.ConnTimeout)
	case DriverSQLite:
		return db.Name
	default:
		port := db.Port
		if port == "" {
			port = "5432"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(db.User, db.Password),
			Host:     db.Host + ":" + port,
			Path:     "/" + db.Name,
			RawQuery: fmt.Sprintf("sslmode=%s&connect_timeout=%d", db.SSLMode, int(db.ConnTimeout.Seconds())),
		}
		return u.String()
	}
}

// IsKafkaConfigured checks if event publishing is enabled
func (c *Config) IsKafkaConfigured() bool {
	return len(c.Kafka.Brokers) > 0 && c.Kafka.Topic != ""
}

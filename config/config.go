package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendNone     = "none"
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
	BackendMinio    = "minio"
	BackendGCS      = "gcs"
)

type Config struct {
	ServerPort  int    `env:"SERVER_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"1.0.0"`
	Database    DatabaseConfig
	Auth        AuthConfig
	Log         LogConfig
	Events      EventsConfig
	Storage     StorageConfig
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"reckon"`
	Password        string        `env:"DB_PASSWORD" envDefault:"password"`
	DBName          string        `env:"DB_NAME" envDefault:"reckon_db"`
	UseSSL          bool          `env:"DB_USE_SSL" envDefault:"false"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"2m"`
}

// AuthConfig holds the process-wide signing and hashing settings. It is read
// once at startup and handed to the token codec and password hasher.
type AuthConfig struct {
	SecretKey                string `env:"JWT_SECRET"`
	Algorithm                string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
	BcryptCost               int    `env:"BCRYPT_COST" envDefault:"12"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type EventsConfig struct {
	Backend  string `env:"EVENTS_BACKEND" envDefault:"none"`
	Topic    string `env:"EVENTS_TOPIC" envDefault:"user-events"`
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string `env:"RABBITMQ_URL"`
	QueueDurable    bool   `env:"RABBITMQ_QUEUE_DURABLE" envDefault:"true"`
	QueueAutoDelete bool   `env:"RABBITMQ_QUEUE_AUTO_DELETE" envDefault:"false"`
	PrefetchCount   int    `env:"RABBITMQ_PREFETCH_COUNT" envDefault:"10"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"PUBSUB_SUBSCRIPTION_SUFFIX" envDefault:"-sub"`
}

type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND" envDefault:"none"`
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" envDefault:"reckon-reports"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type GCSConfig struct {
	Bucket          string `env:"GCS_BUCKET"`
	ProjectID       string `env:"GCS_PROJECT_ID"`
	CredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
}

// LoadConfig reads configuration from the environment. In dev mode a local
// .env file is loaded first.
func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Auth.SecretKey = strings.TrimSpace(cfg.Auth.SecretKey)
	cfg.Events.Backend = strings.ToLower(strings.TrimSpace(cfg.Events.Backend))
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch strings.ToUpper(c.Auth.Algorithm) {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("unsupported JWT_ALGORITHM %q", c.Auth.Algorithm))
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	switch c.Events.Backend {
	case "", BackendNone, BackendRabbitMQ, BackendPubSub:
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_BACKEND %q", c.Events.Backend))
	}
	switch c.Storage.Backend {
	case "", BackendNone, BackendMinio, BackendGCS:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	return errors.Join(errs...)
}

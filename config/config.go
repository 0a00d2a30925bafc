package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	CredentialBackendPostgres = "postgres"
	CredentialBackendKeyring  = "keyring"
)

type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type GraphConfig struct {
	BaseURL     string        `json:"base_url"`
	LoginURL    string        `json:"login_url"`
	HTTPTimeout time.Duration `json:"http_timeout"`
}

type Config struct {
	Environment    string `json:"environment"`
	ServerPort     string `json:"server_port"`
	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`
	DBAutoMigrate  bool   `json:"db_auto_migrate"`

	Redis RedisConfig `json:"redis"`
	Graph GraphConfig `json:"graph"`

	EncryptionKey     string `json:"-"`
	CredentialBackend string `json:"credential_backend"`
	KeyringDir        string `json:"keyring_dir"`
	KeyringPassword   string `json:"-"`

	QueueBlockTimeout time.Duration `json:"queue_block_timeout"`
	WebhookRateLimit  int           `json:"webhook_rate_limit"`
	RenewInterval     time.Duration `json:"renew_interval"`

	SentryDSN string `json:"-"`
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

// LoadConfig reads the process environment into a Config.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "graphmail"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		DBAutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", false),

		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Graph: GraphConfig{
			BaseURL:     getEnv("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),
			LoginURL:    getEnv("GRAPH_LOGIN_URL", ""),
			HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
		},

		EncryptionKey:     getEnv("ENCRYPTION_KEY", ""),
		CredentialBackend: strings.ToLower(getEnv("CREDENTIAL_BACKEND", CredentialBackendPostgres)),
		KeyringDir:        getEnv("KEYRING_DIR", ""),
		KeyringPassword:   getEnv("KEYRING_PASSWORD", ""),

		QueueBlockTimeout: getEnvAsDuration("QUEUE_BLOCK_TIMEOUT", 5*time.Second),
		WebhookRateLimit:  getEnvAsInt("WEBHOOK_RATE_LIMIT", 0),
		RenewInterval:     getEnvAsDuration("RENEW_INTERVAL", 24*time.Hour),

		SentryDSN: getEnv("SENTRY_DSN", ""),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	switch cfg.CredentialBackend {
	case CredentialBackendPostgres:
		if cfg.EncryptionKey == "" {
			return nil, fmt.Errorf("ENCRYPTION_KEY is required for the %s credential backend", CredentialBackendPostgres)
		}
	case CredentialBackendKeyring:
	default:
		return nil, fmt.Errorf("CREDENTIAL_BACKEND must be %q or %q, got %q",
			CredentialBackendPostgres, CredentialBackendKeyring, cfg.CredentialBackend)
	}
	if cfg.RenewInterval <= 0 {
		return nil, fmt.Errorf("RENEW_INTERVAL must be positive")
	}

	return cfg, nil
}

// Log prints the non-secret parts of the configuration.
func (c *Config) Log(log *logrus.Entry) {
	log.WithFields(logrus.Fields{
		"environment":        c.Environment,
		"server_port":        c.ServerPort,
		"database":           fmt.Sprintf("%s@%s:%s/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName),
		"redis":              c.Redis.Address,
		"credential_backend": c.CredentialBackend,
		"graph_base_url":     c.Graph.BaseURL,
		"webhook_rate_limit": c.WebhookRateLimit,
		"sentry":             c.SentryDSN != "",
	}).Info("Loaded configuration")
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		logrus.Warnf("Ignoring %s=%q: not an integer", key, valueStr)
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		logrus.Warnf("Ignoring %s=%q: not a boolean", key, valueStr)
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil {
		logrus.Warnf("Ignoring %s=%q: not a duration", key, valueStr)
		return fallback
	}
	return value
}

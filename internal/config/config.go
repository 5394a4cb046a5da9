// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	PublicAPIKey   string `mapstructure:"PUBLIC_API_KEY"`
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`

	DBHost       string `mapstructure:"DB_HOST"`
	DBPort       string `mapstructure:"DB_PORT"`
	DBUser       string `mapstructure:"DB_USER"`
	DBPassword   string `mapstructure:"DB_PASSWORD"`
	DBName       string `mapstructure:"DB_NAME"`
	DBSSLMode    string `mapstructure:"DB_SSLMODE"`
	DBSchemaMode string `mapstructure:"DB_SCHEMA_MODE"`

	DBMaxOpenConns           int `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	RedisURL string `mapstructure:"REDIS_URL"`

	HeartbeatIntervalSeconds int `mapstructure:"HEARTBEAT_INTERVAL_SECONDS"`
	PresenceTTLSeconds       int `mapstructure:"PRESENCE_TTL_SECONDS"`
	PresenceReapSeconds      int `mapstructure:"PRESENCE_REAP_SECONDS"`

	ChromeRemoteURL      string `mapstructure:"CHROME_REMOTE_URL"`
	ChromeNoSandbox      bool   `mapstructure:"CHROME_NO_SANDBOX"`
	RenderTimeoutSeconds int    `mapstructure:"RENDER_TIMEOUT_SECONDS"`

	StorageEndpoint       string `mapstructure:"STORAGE_ENDPOINT"`
	StorageRegion         string `mapstructure:"STORAGE_REGION"`
	StorageBucket         string `mapstructure:"STORAGE_BUCKET"`
	StorageAccessKey      string `mapstructure:"STORAGE_ACCESS_KEY"`
	StorageSecretKey      string `mapstructure:"STORAGE_SECRET_KEY"`
	StorageUseSSL         bool   `mapstructure:"STORAGE_USE_SSL"`
	StoragePathStyle      bool   `mapstructure:"STORAGE_PATH_STYLE"`
	StoragePresignMinutes int    `mapstructure:"STORAGE_PRESIGN_MINUTES"`

	TracingEnabled bool   `mapstructure:"TRACING_ENABLED"`
	OTLPEndpoint   string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	SeedDemo bool `mapstructure:"SEED_DEMO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			log.Printf("No profile-specific config 'config.%s.yml', using environment only", env)
		}
	}

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("PUBLIC_API_KEY", "")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "workit")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "workit")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SCHEMA_MODE", "sql")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("HEARTBEAT_INTERVAL_SECONDS", 15)
	viper.SetDefault("PRESENCE_TTL_SECONDS", 45)
	viper.SetDefault("PRESENCE_REAP_SECONDS", 60)
	viper.SetDefault("CHROME_REMOTE_URL", "")
	viper.SetDefault("CHROME_NO_SANDBOX", false)
	viper.SetDefault("RENDER_TIMEOUT_SECONDS", 30)
	viper.SetDefault("STORAGE_ENDPOINT", "")
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("STORAGE_BUCKET", "")
	viper.SetDefault("STORAGE_ACCESS_KEY", "")
	viper.SetDefault("STORAGE_SECRET_KEY", "")
	viper.SetDefault("STORAGE_USE_SSL", false)
	viper.SetDefault("STORAGE_PATH_STYLE", true)
	viper.SetDefault("STORAGE_PRESIGN_MINUTES", 15)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	viper.SetDefault("SEED_DEMO", false)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))
	config.DBSchemaMode = strings.ToLower(strings.TrimSpace(config.DBSchemaMode))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// IsProduction reports whether the service runs with a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// StorageEnabled reports whether invoice uploads to object storage are configured.
func (c *Config) StorageEnabled() bool {
	return c.StorageBucket != "" && c.StorageAccessKey != "" && c.StorageSecretKey != ""
}

// HeartbeatInterval is the expected client heartbeat period.
func (c *Config) HeartbeatInterval() time.Duration {
	return secondsOr(c.HeartbeatIntervalSeconds, 15)
}

// PresenceTTL is how long a heartbeat keeps a user online.
func (c *Config) PresenceTTL() time.Duration {
	return secondsOr(c.PresenceTTLSeconds, 45)
}

// PresenceReapInterval is how often expired presence is swept.
func (c *Config) PresenceReapInterval() time.Duration {
	return secondsOr(c.PresenceReapSeconds, 60)
}

// RenderTimeout bounds a single export render.
func (c *Config) RenderTimeout() time.Duration {
	return secondsOr(c.RenderTimeoutSeconds, 30)
}

func secondsOr(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	switch c.DBSchemaMode {
	case "", "sql", "auto", "hybrid":
	default:
		return fmt.Errorf("DB_SCHEMA_MODE must be one of sql, auto, hybrid (got %q)", c.DBSchemaMode)
	}
	if c.PresenceTTLSeconds > 0 && c.HeartbeatIntervalSeconds > 0 && c.PresenceTTLSeconds <= c.HeartbeatIntervalSeconds {
		return errors.New("PRESENCE_TTL_SECONDS must be greater than HEARTBEAT_INTERVAL_SECONDS")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}

// ClientConfig holds the two values a client SDK needs to reach the service.
type ClientConfig struct {
	APIURL string `mapstructure:"WORKIT_API_URL"`
	APIKey string `mapstructure:"WORKIT_API_KEY"`
}

// LoadClientConfig reads the client endpoint and public API key from the environment.
func LoadClientConfig() (*ClientConfig, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("WORKIT_API_URL", "http://localhost:8080")
	v.SetDefault("WORKIT_API_KEY", "")

	var cc ClientConfig
	if err := v.Unmarshal(&cc); err != nil {
		return nil, fmt.Errorf("unable to decode client config: %w", err)
	}
	cc.APIURL = strings.TrimRight(strings.TrimSpace(cc.APIURL), "/")
	if cc.APIURL == "" {
		return nil, errors.New("WORKIT_API_URL is required")
	}
	return &cc, nil
}

// Package config loads and validates the CRM configuration from the environment
// and an optional .env file using Viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultEnvFile is read when present. Real environment variables win over it.
const DefaultEnvFile = ".env"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// StoreBackend selects the partition backend: memory, file, badger or postgres.
	StoreBackend string `mapstructure:"CRM_STORE_BACKEND"`
	// DataDir holds the file and badger backends.
	DataDir string `mapstructure:"CRM_DATA_DIR"`
	// DatabaseURL is the Postgres DSN; required for the postgres backend.
	DatabaseURL string `mapstructure:"CRM_DATABASE_URL"`
	// DBQueryTimeout bounds each Postgres round trip.
	DBQueryTimeout time.Duration `mapstructure:"CRM_DB_QUERY_TIMEOUT"`
	// HTTPAddr is where crmd serves the UI API.
	HTTPAddr string `mapstructure:"CRM_HTTP_ADDR"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"CRM_LOG_LEVEL"`
	// Env is "development" or "production"; development logs to the console encoder.
	Env string `mapstructure:"CRM_ENV"`
	// EncryptionKey, when set, seals every file of the file backend.
	EncryptionKey string `mapstructure:"CRM_ENCRYPTION_KEY"`
	// LeaderboardFile is an optional YAML reference leaderboard for individual rankings.
	LeaderboardFile string `mapstructure:"CRM_LEADERBOARD_FILE"`
}

// Load reads envFile (if present), then builds and validates Config from the environment.
// Missing env files are ignored.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if envMap, err := godotenv.Read(envFile); err == nil {
			for k, val := range envMap {
				if _, exists := os.LookupEnv(k); !exists {
					_ = os.Setenv(k, val)
				}
			}
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CRM_STORE_BACKEND", BackendFile)
	v.SetDefault("CRM_DATA_DIR", "./data")
	v.SetDefault("CRM_DATABASE_URL", "")
	v.SetDefault("CRM_DB_QUERY_TIMEOUT", 3*time.Second)
	v.SetDefault("CRM_HTTP_ADDR", ":7002")
	v.SetDefault("CRM_LOG_LEVEL", "info")
	v.SetDefault("CRM_ENV", "production")
	v.SetDefault("CRM_ENCRYPTION_KEY", "")
	v.SetDefault("CRM_LEADERBOARD_FILE", "")
}

// Validate ensures the selected backend is usable.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendFile, BackendBadger:
		if c.DataDir == "" {
			return fmt.Errorf("config: CRM_DATA_DIR is required for the %s backend", c.StoreBackend)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: CRM_DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown CRM_STORE_BACKEND %q", c.StoreBackend)
	}
	if c.EncryptionKey != "" && c.StoreBackend != BackendFile {
		return fmt.Errorf("config: CRM_ENCRYPTION_KEY is only supported by the file backend")
	}
	return nil
}

// Development reports whether console logging should be used.
func (c Config) Development() bool {
	return c.Env == "development"
}

// Package config loads application settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"spendwise/internal/auth"
	"spendwise/internal/expense"
	"spendwise/internal/storage"
)

type Config struct {
	// Storage
	StorageBackend string
	DBPath         string
	DatabaseDSN    string
	StoreFile      string

	// Identity
	LoginLatency   time.Duration
	PasswordScheme string

	// Expenses
	SaveAttempts int

	// Logging
	LogLevel string
}

// Load reads the configuration from the environment. Variables from
// envFiles (or ./.env when none are given) fill in unset variables only.
// A missing ./.env is not an error; a missing named file or a malformed
// file is.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if len(envFiles) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env files: %w", err)
		}
	}

	cfg := &Config{
		StorageBackend: getEnv("STORAGE_BACKEND", string(storage.BackendSQLite)),
		DBPath:         getEnv("DB_PATH", "spendwise.db"),
		DatabaseDSN:    getEnv("DATABASE_DSN", ""),
		StoreFile:      getEnv("STORE_FILE", ""),

		LoginLatency:   getEnvDuration("LOGIN_LATENCY", auth.DefaultLatency),
		PasswordScheme: getEnv("PASSWORD_SCHEME", auth.SchemePlain),

		SaveAttempts: getEnvInt("SAVE_ATTEMPTS", expense.DefaultSaveAttempts),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error listing every problem.
func (c *Config) Validate() error {
	var problems []string

	backend := storage.Backend(c.StorageBackend)
	if !backend.IsValid() {
		problems = append(problems, fmt.Sprintf("invalid storage backend '%s': must be one of [sqlite postgres file memory]", c.StorageBackend))
	}
	switch backend {
	case storage.BackendSQLite:
		if c.DBPath == "" {
			problems = append(problems, "DB_PATH cannot be empty when using sqlite backend")
		}
	case storage.BackendPostgres:
		if c.DatabaseDSN == "" {
			problems = append(problems, "DATABASE_DSN is required when using postgres backend")
		}
	case storage.BackendFile:
		if c.StoreFile == "" {
			problems = append(problems, "STORE_FILE is required when using file backend")
		}
	}

	if c.LoginLatency < 0 {
		problems = append(problems, fmt.Sprintf("invalid login latency %v: must not be negative", c.LoginLatency))
	}

	if c.SaveAttempts < 0 {
		problems = append(problems, fmt.Sprintf("invalid save attempts %d: must not be negative", c.SaveAttempts))
	}

	if _, err := auth.NewCredentials(c.PasswordScheme); err != nil {
		problems = append(problems, fmt.Sprintf("invalid password scheme '%s': must be plain or bcrypt", c.PasswordScheme))
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// StorageOptions returns the options for storage.Open.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:     storage.Backend(c.StorageBackend),
		SQLitePath:  c.DBPath,
		PostgresDSN: c.DatabaseDSN,
		FilePath:    c.StoreFile,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Package config provides environment configuration loading and validation
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrGatewaySecretRequired is returned when gateway headers are trusted without a shared secret.
var ErrGatewaySecretRequired = errors.New("TRUST_GATEWAY_HEADERS requires GATEWAY_SECRET")

// ValidateEnv validates that all required environment variables are set
func ValidateEnv(requiredVars []string) error {
	var missing []string

	for _, varName := range requiredVars {
		if os.Getenv(varName) == "" {
			missing = append(missing, varName)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

// ValidateDatabaseURL ensures DATABASE_URL is set and looks like a postgres DSN
func ValidateDatabaseURL(dsn string) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is required")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return fmt.Errorf("DATABASE_URL must be a postgres URL, got %q", dsn)
	}
	return nil
}

// GetEnvOrDefault retrieves an environment variable or returns a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt reads an integer variable, falling back on missing or malformed values
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetEnvBool reads "true"/"false" style variables
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvDuration reads a Go duration string such as "15s"
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// MustGetEnv retrieves an environment variable or panics
func MustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return value
}

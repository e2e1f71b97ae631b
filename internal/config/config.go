// Package config holds the two configuration layers of the server: the
// process environment (read once at startup) and the installation document
// (a YAML file written by the install wizard and read by every later step).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Env holds process-level settings read from environment variables.
type Env struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ConfigPath is where the installation document lives; DataDir holds
	// the installation and db-init marker files.
	ConfigPath string
	DataDir    string

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string

	LogLevel string
}

// LoadEnv reads process configuration from environment variables with
// sensible defaults.
func LoadEnv() (Env, error) {
	env := Env{
		Port:         envInt("PLUME_PORT", 8080),
		ReadTimeout:  envDuration("PLUME_READ_TIMEOUT", 30*time.Second),
		WriteTimeout: envDuration("PLUME_WRITE_TIMEOUT", 30*time.Second),
		ConfigPath:   envStr("PLUME_CONFIG", "plume.yaml"),
		DataDir:      envStr("PLUME_DATA_DIR", "data"),
		OTELEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  envStr("OTEL_SERVICE_NAME", "plume"),
		LogLevel:     envStr("PLUME_LOG_LEVEL", "info"),
	}

	if env.Port <= 0 || env.Port > 65535 {
		return Env{}, fmt.Errorf("config: PLUME_PORT out of range: %d", env.Port)
	}
	if env.ConfigPath == "" {
		return Env{}, fmt.Errorf("config: PLUME_CONFIG is required")
	}
	return env, nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

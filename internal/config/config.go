// Package config reads the service settings from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the settings shared by the CLI and the server.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string
	// DBPath is the SQLite parcel/zoning catalog. Empty disables it.
	DBPath string
	// ProjectDir is the project loaded at startup. Empty disables it.
	ProjectDir string
	// LogLevel is one of debug, info, warn or error.
	LogLevel string
	// Workers bounds concurrent optimizer evaluations. 0 means GOMAXPROCS.
	Workers int
}

// Load reads configuration from the environment, after loading a .env
// file from the working directory if one exists.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:       getEnv("SITEPLANNER_ADDR", ":3000"),
		DBPath:     getEnv("SITEPLANNER_DB", ""),
		ProjectDir: getEnv("SITEPLANNER_PROJECT", ""),
		LogLevel:   getEnv("SITEPLANNER_LOG_LEVEL", "info"),
		Workers:    getEnvAsInt("SITEPLANNER_WORKERS", 0),
	}
}

// Level maps LogLevel to a slog level. Unknown names fall back to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("ignoring non-integer setting", "key", key, "value", value)
		return defaultValue
	}
	return n
}

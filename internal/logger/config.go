package logger

import (
	"io"
	"os"
	"strconv"
)

// Config controls logger construction. A nil or zero-value field falls back
// to the defaults below.
type Config struct {
	Level       string    // debug, info, warn, error
	Format      string    // json, text
	Output      io.Writer // overrides file/stdout routing when set
	ServiceName string    // tagged on every entry as "service"

	// File routing. An empty File disables the rotating file sink.
	File       string
	FileOnly   bool // suppress the stdout copy
	MaxSizeMB  int  // rotate after this size
	MaxBackups int  // rotated files to keep
	MaxAgeDays int  // days to keep rotated files
	Compress   bool // gzip rotated files
}

// DefaultConfig returns the stdout-only JSON configuration used when New is
// called with nil.
func DefaultConfig() *Config {
	return &Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "granary",
	}
}

// FromEnv builds a Config from environment variables. The file sink is only
// enabled outside the local environment, so development runs log to stdout.
func FromEnv() *Config {
	cfg := &Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "json"),
		ServiceName: getEnv("SERVICE_NAME", "granary"),
		FileOnly:    getEnvBool("LOG_FILE_ONLY", false),
		MaxSizeMB:   getEnvInt("LOG_MAX_SIZE", 100),
		MaxBackups:  getEnvInt("LOG_MAX_BACKUPS", 7),
		MaxAgeDays:  getEnvInt("LOG_MAX_AGE", 30),
		Compress:    getEnvBool("LOG_COMPRESS", true),
	}
	if getEnv("APP_ENV", "local") != "local" {
		cfg.File = getEnv("LOG_FILE", "/var/log/granary/app.log")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

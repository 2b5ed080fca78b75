// Package config loads the process configuration of pubsub2inbox from
// environment variables, optionally seeded from a .env file.
//
// Environment Variables:
//
// Pipeline:
//   - CONFIG: Path to the pipeline definition, YAML or JSON (required)
//
// Server Settings:
//   - PORT: HTTP port for push delivery, health and metrics (default: 8080)
//   - HTTP_TIMEOUT: Timeout of outbound HTTP requests (default: 30s)
//
// Logging:
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_FORMAT: console or json (default: console)
//   - LOG_FILE: Append log lines to this file instead of stdout
//
// Google Cloud:
//   - GOOGLE_CLOUD_PROJECT: Fallback project for Vertex AI and Pub/Sub
//   - PUBSUB_SUBSCRIPTION: Pull from this subscription when serving
//   - PUBSUB_MAX_OUTSTANDING: Concurrent messages of the pull subscriber (default: 10)
//
// Mail:
//   - SMTP_HOST: SMTP relay host
//   - SMTP_PORT: SMTP relay port (default: 587)
//   - SMTP_USERNAME, SMTP_PASSWORD: Relay credentials
//   - SMTP_FROM: Default sender address
//   - SMTP_USE_TLS: Upgrade with STARTTLS (default: true)
//   - SMTP_USE_SSL: Connect with implicit TLS (default: false)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"pubsub2inbox/internal/common/email"
	"pubsub2inbox/internal/common/validation"
)

// Config holds the process configuration. Fields are tagged with the
// environment variable that sets them.
type Config struct {
	ConfigPath  string        `env:"CONFIG" validate:"required"`
	Port        string        `env:"PORT" validate:"required,numeric"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" validate:"gt=0"`

	LogLevel  string `env:"LOG_LEVEL" validate:"oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	LogFormat string `env:"LOG_FORMAT" validate:"oneof=console json"`
	LogFile   string `env:"LOG_FILE"`

	Project               string `env:"GOOGLE_CLOUD_PROJECT"`
	Subscription          string `env:"PUBSUB_SUBSCRIPTION" validate:"omitempty,pubsub_subscription"`
	MaxOutstandingMessage int    `env:"PUBSUB_MAX_OUTSTANDING" validate:"min=1,max=1000"`

	SMTPHost     string `env:"SMTP_HOST" validate:"omitempty,hostname|ip"`
	SMTPPort     int    `env:"SMTP_PORT" validate:"min=1,max=65535"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS"`
	SMTPUseSSL   bool   `env:"SMTP_USE_SSL"` // wins over SMTP_USE_TLS
}

// Load reads a .env file from the working directory when one exists and then
// builds a Config from the environment. Variables already set in the
// environment win over the file.
//
// Load does not validate, call Validate on the result.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// LoadFile is Load with an explicit .env path
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment only
func FromEnv() *Config {
	return &Config{
		ConfigPath:  getEnv("CONFIG", ""),
		Port:        getEnv("PORT", "8080"),
		HTTPTimeout: getDurationEnv("HTTP_TIMEOUT", 30*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogFile:   getEnv("LOG_FILE", ""),

		Project:               getEnv("GOOGLE_CLOUD_PROJECT", ""),
		Subscription:          getEnv("PUBSUB_SUBSCRIPTION", ""),
		MaxOutstandingMessage: getIntEnv("PUBSUB_MAX_OUTSTANDING", 10),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getIntEnv("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPUseTLS:   getBoolEnv("SMTP_USE_TLS", true),
		SMTPUseSSL:   getBoolEnv("SMTP_USE_SSL", false),
	}
}

// Validate checks every field and reports all failures at once, naming the
// offending environment variables
func (c *Config) Validate() error {
	v := validation.NewValidatorWithPrefix("configuration")
	v.RequireStruct(c)
	v.ValidateIf(c.SMTPUsername != "" && c.SMTPHost == "", func() error {
		return fmt.Errorf("SMTP_USERNAME requires SMTP_HOST")
	})
	return v.Error()
}

// SMTP returns the relay settings for the mail output
func (c *Config) SMTP() email.SMTPConfig {
	return email.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
		UseTLS:   c.SMTPUseTLS,
		UseSSL:   c.SMTPUseSSL,
	}
}

// Addr is the listen address of the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts the strconv.ParseBool forms; anything else means the
// default
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv returns -1 for a value that is set but not a number, so that
// Validate rejects it instead of silently using the default
func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return parsed
}

// getDurationEnv accepts Go durations ("45s") and bare seconds ("45"). An
// unparsable value becomes zero, which Validate rejects.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// MongoConfig provides MongoDB connection settings for the document store.
type MongoConfig interface {
	GetMongoURI() string
	GetMongoDatabase() string
}

// StoreConfig selects the order store backend.
type StoreConfig interface {
	GetOrderStoreDriver() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// EmailConfig provides settings for SMTP email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// SlackConfig provides the incoming webhook used for manager-facing alerts.
type SlackConfig interface {
	GetSlackWebhookURL() string
	IsSlackEnabled() bool
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides Redis and asynq settings for background work.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// SweepConfig provides settings for periodic maintenance jobs.
type SweepConfig interface {
	GetDeadlineSweepSpec() string
	GetOutboxRetention() time.Duration
}

// LogConfig provides optional file logging settings.
type LogConfig interface {
	GetLogFile() string
	GetLogMaxSizeMB() int
	GetLogMaxBackups() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env               string
	HTTPAddr          string
	DatabaseURL       string
	OrderStoreDriver  string
	MongoURI          string
	MongoDatabase     string
	JWTAccessSecret   string
	CORSAllowAll      bool
	CORSOrigins       []string
	CORSAllowCreds    bool
	AppBaseURL        string
	EmailEnabled      bool
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	EmailFromName     string
	EmailFromAddress  string
	SlackWebhookURL   string
	RedisURL          string
	RedisTLSInsecure  bool
	AsynqQueueName    string
	AsynqConcurrency  int
	DeadlineSweepSpec string
	OutboxRetention   time.Duration
	LogFile           string
	LogMaxSizeMB      int
	LogMaxBackups     int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// MongoConfig implementation
func (c *Config) GetMongoURI() string      { return c.MongoURI }
func (c *Config) GetMongoDatabase() string { return c.MongoDatabase }

// StoreConfig implementation
func (c *Config) GetOrderStoreDriver() string { return c.OrderStoreDriver }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// SlackConfig implementation
func (c *Config) GetSlackWebhookURL() string { return c.SlackWebhookURL }
func (c *Config) IsSlackEnabled() bool       { return c.SlackWebhookURL != "" }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// SweepConfig implementation
func (c *Config) GetDeadlineSweepSpec() string      { return c.DeadlineSweepSpec }
func (c *Config) GetOutboxRetention() time.Duration { return c.OutboxRetention }

// LogConfig implementation
func (c *Config) GetLogFile() string    { return c.LogFile }
func (c *Config) GetLogMaxSizeMB() int  { return c.LogMaxSizeMB }
func (c *Config) GetLogMaxBackups() int { return c.LogMaxBackups }

// Store drivers accepted by ORDER_STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		OrderStoreDriver:  strings.ToLower(getEnv("ORDER_STORE_DRIVER", StoreDriverPostgres)),
		MongoURI:          getEnv("MONGODB_URI", ""),
		MongoDatabase:     getEnv("MONGODB_DATABASE", "workorders"),
		JWTAccessSecret:   getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:      corsAllowAll,
		CORSOrigins:       corsOrigins,
		CORSAllowCreds:    strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:        getEnv("APP_BASE_URL", "http://localhost:4200"),
		EmailEnabled:      emailEnabled && smtpHost != "",
		SMTPHost:          smtpHost,
		SMTPPort:          mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		EmailFromName:     getEnv("EMAIL_FROM_NAME", "Work Orders"),
		EmailFromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
		SlackWebhookURL:   getEnv("SLACK_WEBHOOK_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		RedisTLSInsecure:  strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:    getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:  mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		DeadlineSweepSpec: getEnv("DEADLINE_SWEEP_SPEC", "*/5 * * * *"),
		OutboxRetention:   mustDuration(getEnv("OUTBOX_RETENTION", "336h")),
		LogFile:           getEnv("LOG_FILE", ""),
		LogMaxSizeMB:      mustInt(getEnv("LOG_MAX_SIZE_MB", "50")),
		LogMaxBackups:     mustInt(getEnv("LOG_MAX_BACKUPS", "5")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.OrderStoreDriver {
	case StoreDriverPostgres:
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required when ORDER_STORE_DRIVER is mongo")
		}
	default:
		return fmt.Errorf("unsupported ORDER_STORE_DRIVER %q", c.OrderStoreDriver)
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.EmailEnabled && c.EmailFromAddress == "" {
		return fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

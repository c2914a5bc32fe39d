// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-billing/internal/billing"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Log      LogConfig
	Billing  BillingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string
	ReadTimeout     int // seconds
	WriteTimeout    int // seconds
	IdleTimeout     int // seconds
	ShutdownTimeout int // seconds
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string { return ":" + s.Port }

// Timeout converts a seconds setting to a duration.
func Timeout(seconds int) time.Duration { return time.Duration(seconds) * time.Second }

// DatabaseConfig holds connection settings. DSNOverride wins over the
// discrete fields when set.
type DatabaseConfig struct {
	Driver      string // postgres | sqlite
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	DSNOverride string
	Path        string // sqlite file
	Retries     int
	Debug       bool
}

// DSN returns the connection string in key=value format for postgres and
// the file path for sqlite.
func (d DatabaseConfig) DSN() string {
	if d.DSNOverride != "" {
		return d.DSNOverride
	}
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format, which is what
// golang-migrate expects.
func (d DatabaseConfig) URL() string {
	if strings.HasPrefix(d.DSNOverride, "postgres://") || strings.HasPrefix(d.DSNOverride, "postgresql://") {
		return d.DSNOverride
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev            bool
	Migrations     bool
	MigrationsPath string
	Seed           bool
	SessionSecret  string
	AdminEmail     string
	AdminPassword  string
}

// LogConfig mirrors logger.LogConfig so config does not import logger.
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// BillingConfig holds document defaults.
type BillingConfig struct {
	Currency         string
	PaymentTermsDays int
	QuotePrefix      string
	InvoicePrefix    string
	CustomerPrefix   string
	YearReset        bool
	InputPolicy      string // clamp | strict
}

// Policy returns the numeric input policy.
func (b BillingConfig) Policy() billing.Policy { return billing.ParsePolicy(b.InputPolicy) }

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:    getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:     getEnvInt("SERVER_IDLE_TIMEOUT", 60),
			ShutdownTimeout: getEnvInt("SERVER_SHUTDOWN_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Driver:      strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "billing"),
			Password:    getEnv("DB_PASSWORD", "billing"),
			DBName:      getEnv("DB_NAME", "billing"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			DSNOverride: strings.Trim(strings.TrimSpace(os.Getenv("DATABASE_DSN")), "\"'"),
			Path:        getEnv("DB_PATH", "billing.db"),
			Retries:     getEnvInt("DB_RETRIES", 10),
			Debug:       getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:            getEnvBool("DEV", true),
			Migrations:     getEnvBool("MIGRATIONS", false),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),
			Seed:           getEnvBool("DB_SEED", true),
			SessionSecret:  getEnv("SESSION_SECRET", "dev-insecure-secret-change-me"),
			AdminEmail:     getEnv("ADMIN_EMAIL", "admin@example.com"),
			AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Billing: BillingConfig{
			Currency:         strings.ToUpper(getEnv("BILLING_CURRENCY", "EUR")),
			PaymentTermsDays: getEnvInt("BILLING_PAYMENT_TERMS_DAYS", 30),
			QuotePrefix:      getEnv("QUOTE_PREFIX", "QUO"),
			InvoicePrefix:    getEnv("INVOICE_PREFIX", "INV"),
			CustomerPrefix:   getEnv("CUSTOMER_PREFIX", "CUS"),
			YearReset:        getEnvBool("NUMBER_YEAR_RESET", true),
			InputPolicy:      getEnv("BILLING_INPUT_POLICY", "clamp"),
		},
	}
}

// Validate reports settings that would make the process misbehave.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if !c.App.Dev && strings.HasPrefix(c.App.SessionSecret, "dev-") {
		return fmt.Errorf("SESSION_SECRET must be set outside dev mode")
	}
	if c.Billing.PaymentTermsDays < 0 {
		return fmt.Errorf("BILLING_PAYMENT_TERMS_DAYS must not be negative")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

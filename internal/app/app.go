// Package app wires configuration, database and services for the binaries.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/internal/config"
	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/server"
	"github.com/diewo77/go-billing/internal/services"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Services *services.Services
}

// SetupLogger applies the log section of cfg to the global logger.
func SetupLogger(cfg *config.Config) error {
	lc := logger.DefaultConfig()
	lc.Level = cfg.Log.Level
	lc.Format = cfg.Log.Format
	lc.Output = cfg.Log.Output
	return logger.Setup(lc)
}

// New connects, migrates and seeds, then builds the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn, cfg); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if cfg.App.Seed {
		if err := db.Seed(conn, cfg); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	}
	auth.SetSecret(cfg.App.SessionSecret)
	log.Info().
		Str("currency", cfg.Billing.Currency).
		Str("input_policy", cfg.Billing.Policy().String()).
		Bool("dev", cfg.App.Dev).
		Msg("application ready")
	return &App{Config: cfg, DB: conn, Services: services.New(conn, services.OptionsFromConfig(cfg))}, nil
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler { return server.New(a.DB, a.Services) }

// Close releases the database pool.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

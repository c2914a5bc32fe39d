package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/diewo77/go-billing/internal/app"
	"github.com/diewo77/go-billing/internal/config"
	"github.com/diewo77/go-billing/internal/logger"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "billingctl",
	Short: "Maintenance CLI for the billing back-office",
	Long: `billingctl shares configuration with the API server (environment
variables, optionally from a .env file) and operates on the same database.

Typical cron entry:
  0 6 * * * billingctl recurring run`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg = config.Load()
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Log.Level = lvl
		}
		return app.SetupLogger(cfg)
	},
}

// cfg is loaded once by the root pre-run.
var cfg *config.Config

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("billingctl")
		log.Error().Err(err).Msg("command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Override LOG_LEVEL (trace, debug, info, warn, error)")
}

// withApp bootstraps the application for one command and closes it after.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/diewo77/go-billing/internal/app"
	"github.com/diewo77/go-billing/internal/config"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and seed, then exit")

func main() {
	flag.Parse()

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := config.Load()
	if err := app.SetupLogger(cfg); err != nil {
		log.Fatal().Err(err).Msg("logger setup failed")
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}

	code := 0
	if *migrateOnlyFlag {
		log.Info().Msg("migrations completed successfully")
	} else if err := serve(a); err != nil {
		log.Error().Err(err).Msg("server error")
		code = 1
	}
	if err := a.Close(); err != nil {
		log.Error().Err(err).Msg("closing database")
	}
	os.Exit(code)
}

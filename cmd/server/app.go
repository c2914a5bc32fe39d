package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/diewo77/go-billing/internal/app"
	"github.com/diewo77/go-billing/internal/config"
)

// serve runs the HTTP API until SIGINT/SIGTERM, then drains in-flight
// requests within the configured shutdown timeout.
func serve(a *app.App) error {
	cfg := a.Config.Server
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.Handler(),
		ReadTimeout:  config.Timeout(cfg.ReadTimeout),
		WriteTimeout: config.Timeout(cfg.WriteTimeout),
		IdleTimeout:  config.Timeout(cfg.IdleTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Bool("dev", a.Config.App.Dev).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout(cfg.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	log.Info().Msg("server stopped gracefully")
	return nil
}

// Package main serves the trading API over plain HTTP for local runs.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tradingapi/internal/app"
	"tradingapi/internal/config"
	"tradingapi/internal/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	lg := logger.New(cfg.LogLevel, true, cfg.Environment)

	clients, err := app.LoadClients(ctx, cfg)
	if err != nil {
		lg.ErrorContext(ctx, "Failed to load aws clients", slog.String("error", err.Error()))
		os.Exit(1)
	}

	gw, err := app.NewGateway(ctx, cfg, clients, lg)
	if err != nil {
		lg.ErrorContext(ctx, "Failed to build gateway", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           gw,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		lg.Info("Listening", slog.String("address", srv.Addr), slog.String("stage", cfg.StageName))
		return srv.ListenAndServe()
	})

	eg.Go(func() error {
		<-egCtx.Done()
		lg.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.InvokeTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = eg.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.ErrorContext(ctx, "Server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

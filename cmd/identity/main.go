// Package main содержит точку входа gRPC-сервиса проверки токенов.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/tma-fitness/internal/app/identity"
	"github.com/magabrotheeeer/tma-fitness/internal/config"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.SetupLogger(cfg.Env, os.Stdout)

	logger.Info("starting identity service", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := identity.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize identity app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("identity app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("identity app stopped gracefully")
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/p-shah256/resume-optimizer/internal/api"
	"github.com/p-shah256/resume-optimizer/internal/app"
	"github.com/p-shah256/resume-optimizer/internal/config"
	"github.com/p-shah256/resume-optimizer/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Setup("info", "")
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	slog.Info("Starting resume optimizer...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialise optimizer", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	opts := []api.Option{
		api.WithMaxUpload(cfg.MaxUploadBytes()),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateBurst),
	}
	if a.History != nil {
		opts = append(opts, api.WithHistory(a.History))
	}
	server := api.NewServer(cfg.Port, a.Service, opts...)

	slog.Info("Server initialized", "port", cfg.Port)
	if err := server.Start(ctx); err != nil {
		slog.Error("Error running API server", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

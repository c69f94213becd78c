package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/p-shah256/resume-optimizer/internal/app"
	"github.com/p-shah256/resume-optimizer/internal/bot"
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

	slog.Info("Starting bot...")
	if cfg.DiscordToken == "" {
		slog.Error("Bot token not found in environment variables")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialise optimizer", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	b, err := bot.New(cfg.DiscordToken, a.Service, cfg.MaxUploadBytes())
	if err != nil {
		slog.Error("Error creating bot", "error", err)
		os.Exit(1)
	}
	if err := b.Start(); err != nil {
		slog.Error("Error starting bot", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	<-ctx.Done()
	slog.Info("Shutting down bot")
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/coursesearch/internal/app"
	"github.com/utafrali/coursesearch/internal/config"
	"github.com/utafrali/coursesearch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.ServiceName, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("course search service starting",
		slog.String("environment", cfg.Environment),
		slog.String("engine", cfg.SearchEngine),
		slog.Int("http_port", cfg.HTTPPort),
	)

	if err := a.Run(ctx); err != nil {
		log.Error("application stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

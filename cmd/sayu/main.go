package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MikeSquared-Agency/sayu/internal/cli"
	"github.com/MikeSquared-Agency/sayu/internal/config"
)

var version = "dev"

func main() {
	if wd, err := os.Getwd(); err == nil {
		if _, err := config.LoadDotEnv(wd); err != nil {
			slog.Debug("dotenv not loaded", "error", err)
		}
	}
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, version); err != nil {
		stop()
		os.Exit(1)
	}
}

// setupLogging writes JSON logs to stderr so hook output and previews on
// stdout stay clean.
func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

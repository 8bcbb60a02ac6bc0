package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"dca_ladder/internal/app"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration")
	reset := flag.Bool("reset", false, "clear the persisted ladder state and exit")
	flag.Parse()

	// Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, *configPath, *reset))
}

func run(ctx context.Context, configPath string, reset bool) int {
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx, configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := bootstrap.Close(); err != nil {
			slog.Warn("Shutdown incomplete", slog.Any("error", err))
		}
	}()

	if reset {
		if err := bootstrap.Reset(ctx); err != nil {
			slog.Error("❌ Reset failed", slog.Any("error", err))
			return 1
		}
		return 0
	}

	if err := bootstrap.Run(ctx); err != nil {
		slog.Error("❌ Stopped on fatal error", slog.Any("error", err))
		return 1
	}

	slog.Info("👋 Shut down gracefully")
	return 0
}

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/kirinyoku/ticksy/internal/app"
	"github.com/kirinyoku/ticksy/internal/config"
)

// @title Ticksy stub API
// @version 1.0
// @description In-memory development server for the Ticksy client.
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Mode, os.Stdout)

	stub, err := app.NewStub(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create stub server", "error", err)
		os.Exit(1)
	}

	if err := stub.Run(context.Background()); err != nil {
		logger.Error("stub server finished with error", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirinyoku/ticksy/internal/app"
	"github.com/kirinyoku/ticksy/internal/cli"
	"github.com/kirinyoku/ticksy/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := app.NewLogger(cfg.Mode, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt := cli.NewRuntime(os.Stdout)
	defer rt.Close()

	client, err := app.NewClient(ctx, cfg, logger, app.WithExportNotify(rt.ExportSaved))
	if err != nil {
		logger.Error("failed to start client", "error", err)
		return 1
	}
	defer client.Close()

	rt.Attach(client)

	if err := cli.Root(rt).Execute(ctx, os.Stderr, os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		logger.Debug("command failed", "error", err)
		return 1
	}

	return 0
}

package main

import (
	"context"
	"fmt"
	"os"

	"packvault-autosell-api/internal/app"
	"packvault-autosell-api/internal/cli"
	"packvault-autosell-api/internal/config"
	"packvault-autosell-api/internal/logger"
)

func main() {
	build := func(ctx context.Context) (*cli.Services, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		// Logs go to stderr so --format json stays parseable.
		log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: true, Output: os.Stderr})

		application, err := app.New(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &cli.Services{
			AutoSell:  application.AutoSell,
			Inventory: application.Inventory,
			Close:     application.Close,
		}, nil
	}

	if err := cli.NewRootCommand(build).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/config"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/logger"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/migration"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/timescale"
)

func main() {
	var (
		dir   = flag.String("dir", "internal/infrastructure/timescale/migrations", "Migration files directory")
		down  = flag.Bool("down", false, "Revert migrations instead of applying them")
		steps = flag.Int("steps", 0, "Number of migrations to apply (0 = all) or revert")
	)
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger()
	if err != nil {
		slog.Error("Failed to create logger", "error", err)
		os.Exit(1)
	}
	defer log.Sync()

	client, err := timescale.NewClient(ctx, cfg.Timescale)
	if err != nil {
		slog.Error("Failed to connect to TimescaleDB", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	runner := migration.NewRunner(client, log, *dir)
	if err := runner.EnsureMigrationTable(ctx); err != nil {
		slog.Error("Failed to ensure migration table", "error", err)
		os.Exit(1)
	}

	if *down {
		if *steps <= 0 {
			*steps = 1
		}
		err = runner.MigrateDown(ctx, *steps)
	} else {
		err = runner.MigrateUp(ctx, *steps)
	}
	if err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Migrations completed successfully")
}

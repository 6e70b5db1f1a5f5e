// Package main provides the fight engine daemon. It owns the record store and
// runs the background revival sweep.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fightsheet/internal/app"
	"github.com/cory-johannsen/fightsheet/internal/config"
	"github.com/cory-johannsen/fightsheet/internal/observability"
	"github.com/cory-johannsen/fightsheet/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting fight daemon",
		zap.String("storage", cfg.Storage.Driver),
		zap.Duration("grace_period", cfg.Fight.GracePeriod),
		zap.Duration("sweep_interval", cfg.Fight.SweepInterval),
	)

	a, cleanup, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("assembling fight engine", zap.Error(err))
	}
	defer cleanup()

	lifecycle := server.NewLifecycle(logger)
	if a.Sweeper != nil {
		lifecycle.Add("death-sweeper", a.Sweeper)
	} else {
		logger.Info("revival sweep disabled; revival happens on the next check")
	}

	logger.Info("fight daemon ready", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("fight daemon stopped with error", zap.Error(err))
	}
}

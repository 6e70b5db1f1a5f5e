// Package main provides an operator CLI that runs fight engine operations
// against the configured record store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fightsheet/internal/app"
	"github.com/cory-johannsen/fightsheet/internal/config"
	"github.com/cory-johannsen/fightsheet/internal/observability"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	playerID := flag.String("player", "", "target player id (required except for sweep)")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: fightctl [flags] <command> [args]\n\ncommands:\n%s\nflags:\n", usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	cfg.Logging.Level = "warn"
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, cleanup, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("assembling fight engine", zap.Error(err))
	}
	defer cleanup()

	if err := run(ctx, a, os.Stdout, *playerID, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "fightctl: %v\n", err)
		cleanup()
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "[%s]\n", time.Since(start))
}

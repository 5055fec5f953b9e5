// Command recompute rebuilds stock rows from completed orders and manual
// adjustments, then prints the correction report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"coldledger/internal/app"
	"coldledger/internal/config"
	"coldledger/pkg/logger"
)

func main() {
	actor := flag.String("actor", "", "actor recorded on correction flows (default DEFAULT_ACTOR)")
	cleanup := flag.Bool("cleanup", false, "delete empty stock rows after recomputing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.StorageDriver != config.DriverPostgres {
		fmt.Fprintln(os.Stderr, "recompute needs STORAGE_DRIVER=postgres")
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.Development()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	ctx := logger.WithLogger(context.Background(), log)

	actorID := *actor
	if actorID == "" {
		actorID = cfg.DefaultActor
	}

	rt, err := app.Open(ctx, cfg, false)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer rt.Close()

	report, err := rt.Services.Stock.Recompute(ctx, actorID)
	if err != nil {
		log.Fatalw("recompute failed", "error", err)
	}
	log.Infow("stock recomputed",
		"checked", report.Checked,
		"corrected", report.Corrected,
		"created", report.Created,
	)

	if *cleanup {
		n, err := rt.Services.Stock.CleanupEmpty(ctx, actorID)
		if err != nil {
			log.Fatalw("cleanup failed", "error", err)
		}
		log.Infow("empty stock rows removed", "count", n)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatalw("write report", "error", err)
	}
}

// Command migrate applies the embedded schema migrations and exits.
// With -list it prints the embedded migrations without connecting.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"coldledger/internal/app"
	"coldledger/internal/config"
	"coldledger/internal/infrastructure/storage/postgres"
	"coldledger/pkg/logger"
)

func main() {
	list := flag.Bool("list", false, "print embedded migrations and exit")
	flag.Parse()

	if *list {
		ms, err := postgres.Migrations()
		if err != nil {
			fmt.Fprintf(os.Stderr, "read migrations: %v\n", err)
			os.Exit(1)
		}
		for _, m := range ms {
			fmt.Printf("%s  %s  %s\n", m.Version, m.Checksum[:12], m.Filename)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.StorageDriver != config.DriverPostgres {
		fmt.Fprintln(os.Stderr, "migrate needs STORAGE_DRIVER=postgres")
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.Development()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	ctx := logger.WithLogger(context.Background(), log)

	pool, err := app.OpenPool(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to connect", "error", err)
	}
	defer pool.Close()

	n, err := postgres.Migrate(ctx, pool)
	if err != nil {
		log.Fatalw("migration failed", "error", err)
	}
	log.Infow("migrations complete", "applied", n)
}

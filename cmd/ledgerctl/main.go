// ledgerctl runs one stock-ledger command against the configured database,
// or an interactive shell when called as "ledgerctl shell".
//
// Usage: go run ./cmd/ledgerctl <command> [flags]
package main

import (
	"context"
	"fmt"
	"os"

	"storefront-ledger/internal/adapters/cli"
	"storefront-ledger/internal/adapters/repl"
	"storefront-ledger/internal/app"
	"storefront-ledger/internal/config"
	"storefront-ledger/internal/db"
	"storefront-ledger/internal/events"
	"storefront-ledger/internal/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Only warnings reach stderr; results go to stdout.
	cfg.Logger.Level = "warn"
	appLogger := logger.Must(cfg)
	defer appLogger.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		appLogger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	svc := app.NewAppService(pool, events.NoopPublisher{}, appLogger, app.Options{
		LockTimeout: cfg.Database.LockTimeout,
		MaxAttempts: cfg.Database.MaxAttempts,
	})

	if len(os.Args) > 1 && os.Args[1] == "shell" {
		repl.Run(ctx, svc, os.Stdin, os.Stdout)
		return
	}
	if err := cli.Run(ctx, svc, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

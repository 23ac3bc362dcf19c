// seed loads a YAML catalog into an empty database.
//
// Usage: go run ./cmd/seed [--file seed.example.yaml] [--migrate]
package main

import (
	"context"

	"storefront-ledger/internal/app"
	"storefront-ledger/internal/config"
	"storefront-ledger/internal/db"
	"storefront-ledger/internal/events"
	"storefront-ledger/internal/logger"
	"storefront-ledger/internal/seed"
	"storefront-ledger/migrations"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	path := pflag.String("file", "seed.example.yaml", "seed document to load")
	migrate := pflag.Bool("migrate", false, "apply migrations before seeding")
	pflag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	appLogger := logger.Must(cfg)
	defer appLogger.Sync()

	f, err := seed.LoadFile(*path)
	if err != nil {
		appLogger.Fatal("seed file", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		appLogger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if *migrate {
		if _, err := migrations.Apply(ctx, pool); err != nil {
			appLogger.Fatal("migrations", zap.Error(err))
		}
	}

	svc := app.NewAppService(pool, events.NoopPublisher{}, appLogger, app.Options{
		LockTimeout: cfg.Database.LockTimeout,
		MaxAttempts: cfg.Database.MaxAttempts,
	})
	if err := seed.Apply(ctx, svc, f, appLogger); err != nil {
		appLogger.Fatal("seed failed", zap.Error(err))
	}
	appLogger.Info("seed complete", zap.String("file", *path))
}

// migrate applies the embedded schema migrations and exits.
//
// Usage: go run ./cmd/migrate
package main

import (
	"context"

	"storefront-ledger/internal/config"
	"storefront-ledger/internal/db"
	"storefront-ledger/internal/logger"
	"storefront-ledger/migrations"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	appLogger := logger.Must(cfg)
	defer appLogger.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		appLogger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	applied, err := migrations.Apply(ctx, pool)
	if err != nil {
		appLogger.Fatal("migrations failed", zap.Error(err))
	}
	if len(applied) == 0 {
		appLogger.Info("schema is up to date")
		return
	}
	appLogger.Info("migrations applied", zap.Strings("files", applied))
}

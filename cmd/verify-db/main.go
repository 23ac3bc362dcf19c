// verify-db checks stock conservation for every active product and exits
// non-zero if any product is out of balance.
//
// Usage: go run ./cmd/verify-db
package main

import (
	"context"
	"os"

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

	appLogger := logger.Must(cfg)
	defer appLogger.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		appLogger.Fatal("[CONNECT] failed", zap.Error(err))
	}
	defer pool.Close()
	appLogger.Info("[CONNECT] success")

	svc := app.NewAppService(pool, events.NoopPublisher{}, appLogger, app.Options{
		LockTimeout: cfg.Database.LockTimeout,
		MaxAttempts: cfg.Database.MaxAttempts,
	})

	products, err := svc.ListProducts(ctx)
	if err != nil {
		appLogger.Fatal("[PRODUCTS] failed", zap.Error(err))
	}

	unbalanced := 0
	for _, p := range products.Products {
		audit, err := svc.AuditStock(ctx, p.SKU)
		if err != nil {
			appLogger.Fatal("[AUDIT] failed", zap.String("sku", p.SKU), zap.Error(err))
		}
		fields := []zap.Field{
			zap.String("sku", audit.SKU),
			zap.Int("restocked", audit.Restocked),
			zap.Int("on_hand", audit.OnHand),
			zap.Int("sold", audit.Sold),
		}
		if !audit.Balanced() {
			unbalanced++
			appLogger.Error("[AUDIT] out of balance", fields...)
			continue
		}
		appLogger.Debug("[AUDIT] balanced", fields...)
	}

	if unbalanced > 0 {
		appLogger.Error("[DONE] conservation check failed",
			zap.Int("products", len(products.Products)),
			zap.Int("unbalanced", unbalanced))
		appLogger.Sync()
		os.Exit(1)
	}
	appLogger.Info("[DONE] all products balanced", zap.Int("products", len(products.Products)))
}

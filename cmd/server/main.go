package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "storefront-ledger/internal/adapters/web"
	"storefront-ledger/internal/app"
	"storefront-ledger/internal/config"
	"storefront-ledger/internal/db"
	"storefront-ledger/internal/events"
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

	if err := cfg.ValidateJWT(); err != nil {
		appLogger.Fatal("jwt", zap.Error(err))
	}
	if cfg.JWT.Secret == "" {
		appLogger.Warn("JWT_SECRET is not set; tokens are signed with an empty key (development only)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		appLogger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		applied, err := migrations.Apply(ctx, pool)
		if err != nil {
			appLogger.Fatal("migrations", zap.Error(err))
		}
		appLogger.Info("migrations applied", zap.Strings("files", applied))
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, appLogger)
		appLogger.Info("publishing events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}
	defer publisher.Close()

	svc := app.NewAppService(pool, publisher, appLogger, app.Options{
		LockTimeout: cfg.Database.LockTimeout,
		MaxAttempts: cfg.Database.MaxAttempts,
	})

	handler := webAdapter.NewHandler(svc, appLogger, webAdapter.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      cfg.JWT.Secret,
		TokenTTL:       cfg.JWT.TokenTTL,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	appLogger.Info("server stopped")
}

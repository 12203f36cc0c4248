// Command sync führt einen einzelnen Abgleich aller Quellen aus, z.B. für einen externen Scheduler.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"pet-sync/config"
	"pet-sync/secrets"
	"pet-sync/services"
	"pet-sync/storage"
)

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg, logging)
	if err != nil {
		logging.Fatal("Failed to open store", zap.Error(err))
	}
	secretStore, err := secrets.New(ctx, cfg)
	if err != nil {
		logging.Fatal("Secrets backend creation failed", zap.Error(err))
	}
	enabledProviders, err := services.NewProviders(cfg, logging, secretStore)
	if err != nil {
		logging.Fatal("No providers", zap.Error(err))
	}

	results, err := services.NewSyncService(cfg, store, logging, enabledProviders).RunAll(ctx)
	for _, res := range results {
		logging.Info("Pass result",
			zap.String("source", string(res.Source)),
			zap.Bool("skipped", res.Skipped),
			zap.Int("deleted", res.Deleted),
			zap.Int("upserted", res.Upserted),
			zap.Int("unchanged", res.Unchanged),
			zap.Int("record_errors", res.RecordErrors))
	}
	if err != nil {
		logging.Error("Sync finished with errors", zap.Error(err))
		logging.Sync()
		os.Exit(1)
	}
}

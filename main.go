package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"pet-sync/api"
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

	// Setup Store
	store, err := storage.Open(ctx, cfg, logging)
	if err != nil {
		logging.Fatal("Failed to open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	logging.Info("Store ready", zap.String("backend", cfg.StoreBackend))

	// Setup Providers
	secretStore, err := secrets.New(ctx, cfg)
	if err != nil {
		logging.Fatal("Secrets backend creation failed", zap.Error(err))
	}
	enabledProviders, err := services.NewProviders(cfg, logging, secretStore)
	if err != nil {
		logging.Fatal("No providers", zap.Error(err))
	}
	logging.Info("Active sources loaded", zap.Strings("sources", cfg.Sources()))

	syncService := services.NewSyncService(cfg, store, logging, enabledProviders)

	// Setup Router
	router := api.NewRouter(cfg, store, syncService, logging)

	// Setup Cron
	cronScheduler := cron.New()
	_, err = cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled sync job...")
		if _, err := syncService.RunAll(ctx); err != nil {
			logging.Error("Cron job failed", zap.Error(err))
		}
	})
	if err != nil {
		logging.Fatal("Invalid cron schedule", zap.String("schedule", cfg.CronSchedule), zap.Error(err))
	}
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewHandler(router),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown failed", zap.Error(err))
	}
	// laufende Sync-Jobs abwarten
	<-cronScheduler.Stop().Done()
}

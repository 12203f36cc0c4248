// Command backup exportiert die Pets-Tabelle als gzip-JSON nach S3 und rotiert alte Snapshots.
package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"pet-sync/config"
	"pet-sync/services"
	"pet-sync/storage"
)

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()
	logging.Info("Starte Snapshot-Export...")

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}
	if cfg.SnapshotBucket == "" {
		logging.Fatal("SNAPSHOT_BUCKET is required")
	}
	ctx := context.Background()

	// 1. Store öffnen
	store, err := storage.Open(ctx, cfg, logging)
	if err != nil {
		logging.Fatal("Failed to open store", zap.Error(err))
	}

	// 2. S3-Client erstellen
	s3Client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	bucket := &storage.SnapshotBucket{Client: s3Client, Bucket: cfg.SnapshotBucket, Prefix: cfg.SnapshotPrefix}
	exporter := services.NewSnapshotExporter(store, bucket, logging, cfg.KeepSnapshots)

	// 3. Snapshot hochladen
	location, count, err := exporter.Export(ctx)
	if err != nil {
		logging.Fatal("Snapshot export failed", zap.Error(err))
	}
	logging.Info("Snapshot erfolgreich hochgeladen", zap.String("location", location), zap.Int("pets", count))

	// 4. Alte Snapshots rotieren
	removed, err := exporter.Rotate(ctx)
	if err != nil {
		logging.Fatal("Snapshot rotation failed", zap.Error(err))
	}
	logging.Info("Snapshot-Export abgeschlossen.", zap.Int("rotated", removed))
}

package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"pet-sync/models"
	"pet-sync/storage"
)

// ObjectStore ist das Ziel für Snapshots, z.B. storage.SnapshotBucket.
type ObjectStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	List(ctx context.Context) ([]storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// SnapshotExporter schreibt die ganze Pets-Tabelle als gzip-JSON und rotiert alte Snapshots.
type SnapshotExporter struct {
	Store   storage.Store
	Objects ObjectStore
	Logger  *zap.Logger
	Keep    int
	now     func() time.Time
}

// NewSnapshotExporter erstellt einen Exporter, der keep Snapshots behält, mindestens aber einen.
func NewSnapshotExporter(store storage.Store, objects ObjectStore, logger *zap.Logger, keep int) *SnapshotExporter {
	if keep < 1 {
		keep = 1
	}
	return &SnapshotExporter{Store: store, Objects: objects, Logger: logger, Keep: keep, now: time.Now}
}

// Export liest alle Datensätze, lädt sie hoch und gibt Adresse und Anzahl zurück.
func (e *SnapshotExporter) Export(ctx context.Context) (string, int, error) {
	pets, err := storage.ListAll(ctx, func(ctx context.Context, cursor string) (storage.Page, error) {
		return e.Store.Scan(ctx, storage.Filter{}, cursor)
	})
	if err != nil {
		return "", 0, fmt.Errorf("read pets: %w", err)
	}
	sort.Slice(pets, func(i, j int) bool { return pets[i].ID < pets[j].ID })
	if pets == nil {
		pets = []models.Pet{}
	}

	data, err := gzipJSON(pets)
	if err != nil {
		return "", 0, err
	}
	name := fmt.Sprintf("pets-%s.json.gz", e.now().UTC().Format("2006-01-02T15-04-05Z"))
	location, err := e.Objects.Put(ctx, name, data, "application/gzip")
	if err != nil {
		return "", 0, fmt.Errorf("upload snapshot: %w", err)
	}
	e.Logger.Info("Snapshot uploaded", zap.String("location", location), zap.Int("pets", len(pets)), zap.Int("bytes", len(data)))
	return location, len(pets), nil
}

// Rotate löscht alles über die neuesten Keep Snapshots hinaus. Einzelne Löschfehler werden nur geloggt.
func (e *SnapshotExporter) Rotate(ctx context.Context) (int, error) {
	objects, err := e.Objects.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list snapshots: %w", err)
	}
	keep := e.Keep
	if keep < 1 {
		keep = 1
	}
	if len(objects) <= keep {
		e.Logger.Info("No rotation needed", zap.Int("snapshots", len(objects)), zap.Int("keep", keep))
		return 0, nil
	}

	removed := 0
	for _, obj := range objects[keep:] {
		e.Logger.Info("Deleting old snapshot", zap.String("key", obj.Key))
		if err := e.Objects.Delete(ctx, obj.Key); err != nil {
			e.Logger.Error("Failed to delete snapshot", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

func gzipJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pet-sync/models"
	"pet-sync/storage"
)

// Reader liest die gespeicherte Partition einer Quelle.
type Reader struct {
	Store  storage.Store
	Logger *zap.Logger
	// Strict bricht bei einem unbekannten source-Feld ab, sonst wird der Datensatz übersprungen.
	Strict bool
}

// LoadPartition folgt dem Cursor des Sync-Index bis zum Ende und prüft das source-Feld jedes Datensatzes.
func (r *Reader) LoadPartition(ctx context.Context, source models.Source) ([]models.Pet, error) {
	pets, err := storage.ListAll(ctx, func(ctx context.Context, cursor string) (storage.Page, error) {
		return r.Store.QueryPartition(ctx, source, cursor)
	})
	if err != nil {
		return nil, fmt.Errorf("load %s partition: %w", source, err)
	}

	valid := pets[:0]
	for _, p := range pets {
		if p.Source.Valid() && p.Source == source {
			valid = append(valid, p)
			continue
		}
		unknown := &UnknownSourceError{ID: p.ID, Source: p.Source, Partition: source}
		r.Logger.Error("Unknown pet source", zap.String("id", p.ID), zap.String("pet_source", string(p.Source)))
		if r.Strict {
			return nil, unknown
		}
	}
	return valid, nil
}

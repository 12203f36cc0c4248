package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pet-sync/models"
	"pet-sync/storage"
)

// Writer wendet einen Plan als ein Batch an.
type Writer struct {
	Store  storage.Store
	Logger *zap.Logger
}

// Apply löscht zuerst, schreibt dann die Upserts und prüft, dass keiner verloren ging.
func (w *Writer) Apply(ctx context.Context, source models.Source, plan Plan) (storage.BatchResult, error) {
	if len(plan.Deletes) == 0 && len(plan.Upserts) == 0 {
		return storage.BatchResult{}, nil
	}
	res, err := w.Store.ApplyBatch(ctx, plan.Deletes, plan.Upserts)
	if err != nil {
		return res, fmt.Errorf("apply %s batch: %w", source, err)
	}
	if res.Deleted != len(plan.Deletes) {
		w.Logger.Error("Delete count differs from plan",
			zap.String("source", string(source)),
			zap.Int("requested", len(plan.Deletes)),
			zap.Int("applied", res.Deleted))
		return res, &WriteCountMismatchError{Source: source, Kind: "deletes", Requested: len(plan.Deletes), Applied: res.Deleted}
	}
	if res.Upserted != len(plan.Upserts) {
		return res, &WriteCountMismatchError{Source: source, Kind: "upserts", Requested: len(plan.Upserts), Applied: res.Upserted}
	}
	return res, nil
}

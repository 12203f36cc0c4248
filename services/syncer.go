package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pet-sync/config"
	"pet-sync/models"
	"pet-sync/providers"
	"pet-sync/providers/airtable"
	"pet-sync/providers/shelterluv"
	"pet-sync/secrets"
	"pet-sync/storage"
)

// Ergebnisse eines Abgleichs für die Metriken
const (
	resultOK      = "ok"
	resultFailed  = "failed"
	resultSkipped = "skipped"
)

// PassResult fasst einen Abgleich einer Quelle zusammen.
type PassResult struct {
	RunID        string
	Source       models.Source
	Deleted      int
	Upserted     int
	Unchanged    int
	RecordErrors int
	Duration     time.Duration
	Skipped      bool
	Err          error
}

// SyncService kümmert sich um die Orchestrierung der Abgleiche aller Quellen.
type SyncService struct {
	Config    *config.Config
	Store     storage.Store
	Logger    *zap.Logger
	Providers []providers.Provider

	reader *Reader
	writer *Writer
	newID  func() string
}

// NewSyncService erstellt eine neue Instanz des SyncService.
func NewSyncService(cfg *config.Config, store storage.Store, logger *zap.Logger, provs []providers.Provider) *SyncService {
	return &SyncService{
		Config:    cfg,
		Store:     store,
		Logger:    logger,
		Providers: provs,
		reader:    &Reader{Store: store, Logger: logger, Strict: cfg.StrictSourceTags},
		writer:    &Writer{Store: store, Logger: logger},
		newID:     uuid.NewString,
	}
}

// NewProviders baut die in ENABLED_SOURCES aktivierten Provider in der konfigurierten Reihenfolge.
func NewProviders(cfg *config.Config, logger *zap.Logger, secretStore secrets.Store) ([]providers.Provider, error) {
	var enabled []providers.Provider
	for _, name := range cfg.Sources() {
		switch models.Source(name) {
		case models.SourceShelterluv:
			enabled = append(enabled, shelterluv.NewFetcher(cfg, logger, secretStore))
		case models.SourceAirtable:
			enabled = append(enabled, airtable.NewFetcher(cfg, logger, secretStore))
		default:
			logger.Warn("Unknown source in config", zap.String("source", name))
		}
	}
	if len(enabled) == 0 {
		return nil, errors.New("no valid sources enabled, check ENABLED_SOURCES")
	}
	return enabled, nil
}

// RunAll gleicht alle Quellen nacheinander ab. Ein Fehler in einer Quelle hält die nächste nicht auf.
// Der Rückgabefehler verbindet die Fehler aller fehlgeschlagenen Abgleiche; übersprungene zählen nicht.
func (s *SyncService) RunAll(ctx context.Context) ([]PassResult, error) {
	runID := s.newID()
	log := s.Logger.With(zap.String("run_id", runID))
	log.Info("Starting sync run", zap.Int("sources", len(s.Providers)))

	results := make([]PassResult, 0, len(s.Providers))
	var errs []error
	for _, p := range s.Providers {
		res := s.RunSource(ctx, runID, p)
		results = append(results, res)
		if res.Err != nil && !res.Skipped {
			errs = append(errs, fmt.Errorf("%s: %w", res.Source, res.Err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		log.Error("Sync run finished with errors", zap.Error(err))
	} else {
		log.Info("Sync run completed")
	}
	return results, err
}

// RunSource führt einen Abgleich für eine Quelle aus: Store lesen, Quelle holen, abgleichen, schreiben.
// Bei aktivem Lease wird die Quelle übersprungen, wenn ein anderer Lauf sie hält.
func (s *SyncService) RunSource(ctx context.Context, runID string, p providers.Provider) (res PassResult) {
	source := p.Source()
	log := s.Logger.With(zap.String("run_id", runID), zap.String("source", string(source)))
	start := time.Now()
	res = PassResult{RunID: runID, Source: source}

	defer func() {
		res.Duration = time.Since(start)
		syncPassDuration.WithLabelValues(string(source)).Observe(res.Duration.Seconds())
		switch {
		case res.Skipped:
			syncRunsTotal.WithLabelValues(string(source), resultSkipped).Inc()
		case res.Err != nil:
			syncRunsTotal.WithLabelValues(string(source), resultFailed).Inc()
			log.Error("Sync pass failed", zap.Duration("duration", res.Duration), zap.Error(res.Err))
		default:
			syncRunsTotal.WithLabelValues(string(source), resultOK).Inc()
			log.Info("Sync pass completed",
				zap.Int("deleted", res.Deleted),
				zap.Int("upserted", res.Upserted),
				zap.Int("unchanged", res.Unchanged),
				zap.Int("record_errors", res.RecordErrors),
				zap.Duration("duration", res.Duration))
		}
	}()

	if s.Config.LeaseEnabled {
		name := models.LeaseName(source)
		if err := s.Store.AcquireLease(ctx, name, runID, s.Config.LeaseTTL); err != nil {
			if errors.Is(err, storage.ErrLeaseHeld) {
				log.Warn("Another run holds the lease, skipping source", zap.String("lease", name))
				res.Skipped = true
			}
			res.Err = err
			return res
		}
		defer func() {
			// Freigabe auch bei abgebrochenem ctx
			if err := s.Store.ReleaseLease(context.WithoutCancel(ctx), name, runID); err != nil {
				log.Warn("Failed to release lease", zap.String("lease", name), zap.Error(err))
			}
		}()
	}

	current, err := s.reader.LoadPartition(ctx, source)
	if err != nil {
		res.Err = err
		return res
	}

	listing, err := p.FetchPets(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.RecordErrors = len(listing.RecordErrors)
	syncRecordErrorsTotal.WithLabelValues(string(source)).Add(float64(res.RecordErrors))

	plan := Reconcile(listing.Pets, current, ReconcileOptions{SkipUnchanged: s.Config.SkipUnchanged})
	res.Unchanged = len(plan.Unchanged)
	log.Info("Reconciled source against store",
		zap.Int("stored", len(current)),
		zap.Int("fetched", len(listing.Pets)),
		zap.Int("to_delete", len(plan.Deletes)),
		zap.Int("to_upsert", len(plan.Upserts)))

	applied, err := s.writer.Apply(ctx, source, plan)
	res.Deleted = applied.Deleted
	res.Upserted = applied.Upserted
	syncDeletesTotal.WithLabelValues(string(source)).Add(float64(applied.Deleted))
	syncUpsertsTotal.WithLabelValues(string(source)).Add(float64(applied.Upserted))
	if err != nil {
		res.Err = err
	}
	return res
}

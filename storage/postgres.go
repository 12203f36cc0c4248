package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"pet-sync/config"
	"pet-sync/models"
)

// PostgresStore ist das relationale Backend über GORM.
type PostgresStore struct {
	DB       *gorm.DB
	PageSize int
	now      func() time.Time
}

// OpenPostgres verbindet sich mit PostgreSQL und migriert die Tabellen pets und sync_leases.
func OpenPostgres(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	log.Info("Successfully connected to pets database.")

	log.Info("Running database auto-migration...")
	if err := db.AutoMigrate(&models.Pet{}, &models.Lease{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return db, nil
}

// NewPostgresStore erstellt den Store auf einer offenen Verbindung.
func NewPostgresStore(db *gorm.DB, pageSize int) *PostgresStore {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &PostgresStore{DB: db, PageSize: pageSize, now: time.Now}
}

func (s *PostgresStore) QueryPartition(ctx context.Context, source models.Source, cursor string) (Page, error) {
	return s.page(ctx, cursor, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("source = ?", source)
	})
}

func (s *PostgresStore) Scan(ctx context.Context, filter Filter, cursor string) (Page, error) {
	return s.page(ctx, cursor, func(tx *gorm.DB) *gorm.DB {
		if filter.Species != "" {
			return tx.Where("species = ?", filter.Species)
		}
		return tx
	})
}

// page liest eine Seite mehr als nötig, um das Ende ohne COUNT zu erkennen.
func (s *PostgresStore) page(ctx context.Context, cursor string, scope func(*gorm.DB) *gorm.DB) (Page, error) {
	offset, err := parseOffset(cursor)
	if err != nil {
		return Page{}, err
	}
	var pets []models.Pet
	err = s.DB.WithContext(ctx).Scopes(scope).
		Order("id").
		Limit(s.PageSize + 1).
		Offset(offset).
		Find(&pets).Error
	if err != nil {
		return Page{}, err
	}

	page := Page{Pets: pets}
	if len(pets) > s.PageSize {
		page.Pets = pets[:s.PageSize]
		page.Next = strconv.Itoa(offset + s.PageSize)
	}
	return page, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (models.Pet, error) {
	var pet models.Pet
	err := s.DB.WithContext(ctx).First(&pet, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Pet{}, ErrNotFound
	}
	return pet, err
}

// ApplyBatch läuft in einer Transaktion: erst DELETE, dann INSERT ... ON CONFLICT DO UPDATE.
func (s *PostgresStore) ApplyBatch(ctx context.Context, deletes []string, puts []models.Pet) (BatchResult, error) {
	var res BatchResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(deletes) > 0 {
			del := tx.Where("id IN ?", deletes).Delete(&models.Pet{})
			if del.Error != nil {
				return del.Error
			}
			// Eine schon fehlende Zeile gilt als gelöscht.
			res.Deleted = len(deletes)
		}
		if len(puts) > 0 {
			up := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(puts, 100)
			if up.Error != nil {
				return up.Error
			}
			res.Upserted = int(up.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}
	return res, nil
}

// AcquireLease übernimmt die Zeile nur, wenn sie abgelaufen ist oder schon owner gehört.
func (s *PostgresStore) AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) error {
	now := s.now()
	lease := models.Lease{Name: name, Owner: owner, ExpiresAt: now.Add(ttl)}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "sync_leases.expires_at < ? OR sync_leases.owner = ?", Vars: []interface{}{now, owner}},
		}},
	}).Create(&lease)
	if res.Error != nil {
		return fmt.Errorf("acquire lease %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrLeaseHeld
	}
	return nil
}

func (s *PostgresStore) ReleaseLease(ctx context.Context, name, owner string) error {
	return s.DB.WithContext(ctx).
		Where("name = ? AND owner = ?", name, owner).
		Delete(&models.Lease{}).Error
}

func parseOffset(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(cursor)
	if err != nil || n < 0 {
		return 0, ErrInvalidCursor
	}
	return n, nil
}

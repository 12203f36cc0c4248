package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pet-sync/config"
)

// Open erstellt das in STORE_BACKEND konfigurierte Backend.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (Store, error) {
	switch cfg.StoreBackend {
	case "dynamodb":
		client, err := NewDynamoClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("dynamodb client: %w", err)
		}
		return NewDynamoStore(client, cfg, log), nil
	case "postgres":
		db, err := OpenPostgres(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return NewPostgresStore(db, int(cfg.StorePageSize)), nil
	case "memory":
		log.Warn("Using in-memory store, data is lost on restart")
		return NewMemoryStore(int(cfg.StorePageSize)), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Package storage enthält die Persistenz-Backends für die Pets-Tabelle.
package storage

import (
	"context"
	"errors"
	"time"

	"pet-sync/models"
)

var (
	// ErrNotFound wird von Get zurückgegeben, wenn kein Datensatz mit der ID existiert.
	ErrNotFound = errors.New("pet not found")
	// ErrLeaseHeld bedeutet, dass ein anderer Lauf die Quelle gerade synchronisiert.
	ErrLeaseHeld = errors.New("lease held by another run")
	// ErrInvalidCursor wird bei einem nicht lesbaren Paginierungs-Cursor zurückgegeben.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Page ist eine Seite einer paginierten Abfrage. Next ist leer auf der letzten Seite.
type Page struct {
	Pets []models.Pet
	Next string
}

// Filter schränkt einen Scan ein. Ein leerer Filter liefert die ganze Tabelle.
type Filter struct {
	Species string
}

// BatchResult zählt, was ein Batch tatsächlich angewendet hat.
type BatchResult struct {
	Deleted  int
	Upserted int
}

// Store ist die Speicher-Schnittstelle, die Sync und Read-API benutzen.
type Store interface {
	// QueryPartition listet die Datensätze einer Quelle über den Sync-Index.
	QueryPartition(ctx context.Context, source models.Source, cursor string) (Page, error)
	// Scan listet alle Datensätze, optional nach Spezies gefiltert.
	Scan(ctx context.Context, filter Filter, cursor string) (Page, error)
	// Get liefert einen Datensatz oder ErrNotFound.
	Get(ctx context.Context, id string) (models.Pet, error)
	// ApplyBatch löscht zuerst und schreibt dann alle puts als Vollüberschreibung.
	ApplyBatch(ctx context.Context, deletes []string, puts []models.Pet) (BatchResult, error)

	// AcquireLease nimmt die Sperre name für owner oder liefert ErrLeaseHeld.
	AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) error
	// ReleaseLease gibt die Sperre frei, sofern owner sie noch hält.
	ReleaseLease(ctx context.Context, name, owner string) error
}

// ListAll folgt dem Cursor, bis alle Seiten gelesen sind.
func ListAll(ctx context.Context, next func(ctx context.Context, cursor string) (Page, error)) ([]models.Pet, error) {
	var pets []models.Pet
	cursor := ""
	for {
		page, err := next(ctx, cursor)
		if err != nil {
			return nil, err
		}
		pets = append(pets, page.Pets...)
		if page.Next == "" {
			return pets, nil
		}
		cursor = page.Next
	}
}

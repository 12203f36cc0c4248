package providers

import (
	"context"

	"pet-sync/models"
)

// Provider ist das Interface, das jede Upstream-Quelle (Shelterluv, Airtable) implementieren muss.
type Provider interface {
	// Source gibt die Quelle zurück, deren Partition dieser Provider befüllt.
	Source() models.Source

	// FetchPets holt die vollständige Liste der Quelle und normalisiert sie.
	// Fehler einzelner Datensätze landen in Listing.RecordErrors, nicht im Rückgabefehler.
	FetchPets(ctx context.Context) (*Listing, error)
}

// Listing ist das normalisierte Ergebnis eines Provider-Laufs, indiziert nach globaler ID.
type Listing struct {
	Pets         map[string]models.Pet
	RecordErrors []*RecordParseError
}

// NewListing erstellt ein leeres Listing.
func NewListing() *Listing {
	return &Listing{Pets: make(map[string]models.Pet)}
}

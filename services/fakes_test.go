package services

import (
	"context"

	"pet-sync/models"
	"pet-sync/providers"
	"pet-sync/storage"
)

// fakeProvider liefert ein festes Listing oder einen Fehler.
type fakeProvider struct {
	source  models.Source
	pets    []models.Pet
	badRecs int
	err     error
	calls   int
}

func (f *fakeProvider) Source() models.Source { return f.source }

func (f *fakeProvider) FetchPets(_ context.Context) (*providers.Listing, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	l := providers.NewListing()
	for _, p := range f.pets {
		l.Pets[p.ID] = p
	}
	for i := 0; i < f.badRecs; i++ {
		l.RecordErrors = append(l.RecordErrors, &providers.RecordParseError{Source: f.source, RecordID: "bad"})
	}
	return l, nil
}

// droppingStore verliert bei jedem Batch die letzten drop Upserts und dropDeletes Löschungen,
// wie DynamoDB bei dauerhaft unverarbeiteten Items.
type droppingStore struct {
	*storage.MemoryStore
	drop        int
	dropDeletes int
}

func (s *droppingStore) ApplyBatch(ctx context.Context, deletes []string, puts []models.Pet) (storage.BatchResult, error) {
	if len(puts) > s.drop {
		puts = puts[:len(puts)-s.drop]
	}
	if len(deletes) >= s.dropDeletes {
		deletes = deletes[:len(deletes)-s.dropDeletes]
	}
	return s.MemoryStore.ApplyBatch(ctx, deletes, puts)
}

// taintedStore mischt einen Datensatz mit fremdem source-Feld in jede Partition.
type taintedStore struct {
	*storage.MemoryStore
	extra models.Pet
}

func (s *taintedStore) QueryPartition(ctx context.Context, source models.Source, cursor string) (storage.Page, error) {
	page, err := s.MemoryStore.QueryPartition(ctx, source, cursor)
	if err != nil || page.Next != "" {
		return page, err
	}
	page.Pets = append(page.Pets, s.extra)
	return page, nil
}

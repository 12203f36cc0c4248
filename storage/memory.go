package storage

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"pet-sync/models"
)

// MemoryStore hält die Tabelle im Speicher. Für lokale Läufe und Tests.
type MemoryStore struct {
	mu       sync.RWMutex
	pets     map[string]models.Pet
	leases   map[string]models.Lease
	pageSize int
	now      func() time.Time
}

// NewMemoryStore erstellt einen leeren MemoryStore.
func NewMemoryStore(pageSize int) *MemoryStore {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &MemoryStore{
		pets:     make(map[string]models.Pet),
		leases:   make(map[string]models.Lease),
		pageSize: pageSize,
		now:      time.Now,
	}
}

// Seed schreibt Datensätze direkt, ohne Batch-Semantik.
func (m *MemoryStore) Seed(pets ...models.Pet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pets {
		m.pets[p.ID] = clonePet(p)
	}
}

func (m *MemoryStore) QueryPartition(_ context.Context, source models.Source, cursor string) (Page, error) {
	return m.page(cursor, func(p models.Pet) bool { return p.Source == source })
}

func (m *MemoryStore) Scan(_ context.Context, filter Filter, cursor string) (Page, error) {
	return m.page(cursor, func(p models.Pet) bool {
		return filter.Species == "" || p.Species == filter.Species
	})
}

func (m *MemoryStore) Get(_ context.Context, id string) (models.Pet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pets[id]
	if !ok {
		return models.Pet{}, ErrNotFound
	}
	return clonePet(p), nil
}

func (m *MemoryStore) ApplyBatch(ctx context.Context, deletes []string, puts []models.Pet) (BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var res BatchResult
	for _, id := range deletes {
		delete(m.pets, id)
		res.Deleted++
	}
	for _, p := range puts {
		m.pets[p.ID] = clonePet(p)
		res.Upserted++
	}
	return res, nil
}

func (m *MemoryStore) AcquireLease(_ context.Context, name, owner string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if l, ok := m.leases[name]; ok && l.Owner != owner && l.ExpiresAt.After(now) {
		return ErrLeaseHeld
	}
	m.leases[name] = models.Lease{Name: name, Owner: owner, ExpiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryStore) ReleaseLease(_ context.Context, name, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leases[name]; ok && l.Owner == owner {
		delete(m.leases, name)
	}
	return nil
}

// page liefert ab Offset cursor die nächsten pageSize Treffer in ID-Reihenfolge.
func (m *MemoryStore) page(cursor string, match func(models.Pet) bool) (Page, error) {
	offset, err := parseOffset(cursor)
	if err != nil {
		return Page{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.pets))
	for id, p := range m.pets {
		if match(p) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	if offset > len(ids) {
		offset = len(ids)
	}
	end := offset + m.pageSize
	if end > len(ids) {
		end = len(ids)
	}
	page := Page{Pets: make([]models.Pet, 0, end-offset)}
	for _, id := range ids[offset:end] {
		page.Pets = append(page.Pets, clonePet(m.pets[id]))
	}
	if end < len(ids) {
		page.Next = strconv.Itoa(end)
	}
	return page, nil
}

func clonePet(p models.Pet) models.Pet {
	if p.Photos != nil {
		p.Photos = append([]string(nil), p.Photos...)
	}
	return p
}

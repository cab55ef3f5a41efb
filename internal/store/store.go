// Package store provides listing catalog persistence: an in-memory store
// used for serving, a JSON snapshot format for the on-disk catalog, and a
// PostgreSQL-backed repository in the postgres subpackage.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/nightowl2626/LuxPricer/internal/listing"
)

// ErrNotFound is returned when a requested listing does not exist.
var ErrNotFound = errors.New("not found")

// ListingStore defines operations for listing persistence.
type ListingStore interface {
	// Upsert inserts listings, replacing any with the same ID.
	Upsert(ctx context.Context, listings []listing.Listing) error

	// Get retrieves a listing by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*listing.Listing, error)

	// List returns listings ordered by ID with pagination, plus the total
	// count.
	List(ctx context.Context, limit, offset int) ([]listing.Listing, int, error)

	// Delete removes a listing by ID. Deleting an unknown ID is a no-op.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored listings.
	Count(ctx context.Context) (int, error)
}

// Memory is an in-memory ListingStore, the serving-path store populated
// from a snapshot at startup.
type Memory struct {
	mu       sync.RWMutex
	listings map[string]listing.Listing
}

var _ ListingStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{listings: make(map[string]listing.Listing)}
}

// Upsert implements ListingStore.
func (m *Memory) Upsert(_ context.Context, listings []listing.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range listings {
		if l.ID == "" {
			return errors.New("listing without id cannot be stored")
		}
		m.listings[l.ID] = l
	}
	return nil
}

// Get implements ListingStore.
func (m *Memory) Get(_ context.Context, id string) (*listing.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

// GetMany returns the listings for the given IDs, skipping unknown IDs.
func (m *Memory) GetMany(_ context.Context, ids []string) ([]listing.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]listing.Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := m.listings[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// List implements ListingStore.
func (m *Memory) List(_ context.Context, limit, offset int) ([]listing.Listing, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.listings))
	for id := range m.listings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := len(ids)
	if offset >= total {
		return nil, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]listing.Listing, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, m.listings[id])
	}
	return out, total, nil
}

// All returns every stored listing in ID order.
func (m *Memory) All(ctx context.Context) ([]listing.Listing, error) {
	out, _, err := m.List(ctx, 0, 0)
	return out, err
}

// Delete implements ListingStore.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listings, id)
	return nil
}

// Count implements ListingStore.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listings), nil
}

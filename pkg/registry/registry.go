// Package registry holds the run-scoped authoritative mapping from slug to
// owning facility id.
//
// The registry is a projection of persisted facility state: it is seeded once
// per run from every facility of every country, and only then accepts
// reservations. All operations are linearized behind one mutex, so country
// partitions processed concurrently cannot both claim the same slug.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hazyhaar/facility-names/pkg/facility"
	"github.com/hazyhaar/facility-names/pkg/slug"
)

var (
	ErrConflict    = errors.New("slug owned by another facility")
	ErrNotSeeded   = errors.New("registry not seeded")
	ErrInvalidSlug = errors.New("invalid slug")
)

// ConflictError is returned by Reserve when the slug already has another owner.
type ConflictError struct {
	Slug      string
	Owner     string
	Requester string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slug %q owned by %s, requested by %s", e.Slug, e.Owner, e.Requester)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Registry is the narrow contract the pipeline depends on.
type Registry interface {
	// Seed replaces the registry content with the (slug, id) pairs of the
	// given facilities.
	Seed(ctx context.Context, facilities []facility.Facility) ([]SeedConflict, error)
	// Lookup returns the owner of slug.
	Lookup(slug string) (facilityID string, ok bool)
	// Reserve claims slug for facilityID. Claiming a slug already owned by the
	// same id is a no-op success.
	Reserve(slug, facilityID string) error
	// Release drops slug when it is owned by facilityID.
	Release(slug, facilityID string) bool
	// Len returns the number of owned slugs.
	Len() int
}

// SeedConflict describes a persisted slug that could not be seeded.
type SeedConflict struct {
	Slug       string `json:"slug"`
	FacilityID string `json:"facility_id"`
	// Owner is the facility that kept the slug; empty for invalid slugs.
	Owner  string `json:"owner,omitempty"`
	Reason string `json:"reason"`
}

// Change is one journal entry.
type Change struct {
	Op         string `json:"op"` // "reserve" or "release"
	Slug       string `json:"slug"`
	FacilityID string `json:"facility_id"`
}

// Entry is one (slug, owner) pair.
type Entry struct {
	Slug       string `json:"slug"`
	FacilityID string `json:"facility_id"`
}

// Memory is the in-process Registry.
type Memory struct {
	mu      sync.RWMutex
	owners  map[string]string
	seeded  bool
	journal []Change
}

var _ Registry = (*Memory)(nil)

// NewMemory creates an empty, unseeded registry.
func NewMemory() *Memory {
	return &Memory{owners: make(map[string]string)}
}

// Seed inserts persisted slugs in facility-id order. When the corpus holds the
// same slug twice, the lowest id keeps it and the other is reported so that
// the pipeline re-resolves it.
func (m *Memory) Seed(ctx context.Context, facilities []facility.Facility) ([]SeedConflict, error) {
	sorted := make([]facility.Facility, 0, len(facilities))
	for _, f := range facilities {
		if f.Slug != "" {
			sorted = append(sorted, f)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	owners := make(map[string]string, len(sorted))
	var conflicts []SeedConflict
	for i, f := range sorted {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !slug.Valid(f.Slug) {
			conflicts = append(conflicts, SeedConflict{Slug: f.Slug, FacilityID: f.ID, Reason: "invalid slug"})
			continue
		}
		if owner, ok := owners[f.Slug]; ok && owner != f.ID {
			conflicts = append(conflicts, SeedConflict{Slug: f.Slug, FacilityID: f.ID, Owner: owner, Reason: "duplicate slug"})
			continue
		}
		owners[f.Slug] = f.ID
	}

	m.mu.Lock()
	m.owners = owners
	m.seeded = true
	m.journal = nil
	m.mu.Unlock()
	return conflicts, nil
}

// Lookup returns the owner of s.
func (m *Memory) Lookup(s string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.owners[s]
	return id, ok
}

// Reserve claims s for facilityID.
func (m *Memory) Reserve(s, facilityID string) error {
	if !slug.Valid(s) {
		return fmt.Errorf("reserve %q: %w", s, ErrInvalidSlug)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.seeded {
		return ErrNotSeeded
	}
	owner, ok := m.owners[s]
	if ok {
		if owner == facilityID {
			return nil
		}
		return &ConflictError{Slug: s, Owner: owner, Requester: facilityID}
	}
	m.owners[s] = facilityID
	m.journal = append(m.journal, Change{Op: "reserve", Slug: s, FacilityID: facilityID})
	return nil
}

// Release drops s if facilityID owns it.
func (m *Memory) Release(s, facilityID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, ok := m.owners[s]; !ok || owner != facilityID {
		return false
	}
	delete(m.owners, s)
	m.journal = append(m.journal, Change{Op: "release", Slug: s, FacilityID: facilityID})
	return true
}

// Len returns the number of owned slugs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.owners)
}

// Seeded reports whether Seed has completed.
func (m *Memory) Seeded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seeded
}

// Journal returns the reservations and releases made since the last Seed.
func (m *Memory) Journal() []Change {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Change, len(m.journal))
	copy(out, m.journal)
	return out
}

// Entries returns every (slug, owner) pair sorted by slug.
func (m *Memory) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]Entry, 0, len(m.owners))
	for s, id := range m.owners {
		entries = append(entries, Entry{Slug: s, FacilityID: id})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Slug < entries[j].Slug })
	return entries
}

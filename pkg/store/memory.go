package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/hazyhaar/facility-names/pkg/facility"
)

// Memory is an in-process facility.Store with the same semantics as SQLite,
// including slug uniqueness on write-back.
type Memory struct {
	mu   sync.RWMutex
	rows map[string]facility.Facility
}

var _ facility.Store = (*Memory)(nil)

// NewMemory returns a store holding copies of fs.
func NewMemory(fs ...facility.Facility) *Memory {
	m := &Memory{rows: make(map[string]facility.Facility, len(fs))}
	for _, f := range fs {
		m.rows[f.ID] = clone(f)
	}
	return m
}

func (m *Memory) All(ctx context.Context) ([]facility.Facility, error) {
	return m.filter(ctx, func(facility.Facility) bool { return true })
}

func (m *Memory) ByCountry(ctx context.Context, countries ...string) ([]facility.Facility, error) {
	want := make(map[string]bool, len(countries))
	for _, c := range countries {
		want[facility.NormalizeCountry(c)] = true
	}
	return m.filter(ctx, func(f facility.Facility) bool { return want[facility.NormalizeCountry(f.CountryISO3)] })
}

// Get returns one facility.
func (m *Memory) Get(_ context.Context, id string) (facility.Facility, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.rows[id]
	if !ok {
		return facility.Facility{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return clone(f), nil
}

// BySlug returns the facility owning slug.
func (m *Memory) BySlug(_ context.Context, slug string) (facility.Facility, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.rows {
		if slug != "" && f.Slug == slug {
			return clone(f), nil
		}
	}
	return facility.Facility{}, fmt.Errorf("slug %s: %w", slug, ErrNotFound)
}

// Upsert replaces source attributes, keeping derived ones.
func (m *Memory) Upsert(_ context.Context, fs []facility.Facility) error {
	for _, f := range fs {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range fs {
		next := clone(f)
		next.CountryISO3 = facility.NormalizeCountry(f.CountryISO3)
		if prev, ok := m.rows[f.ID]; ok {
			next.Derived = prev.Derived
			next.Verification = prev.Verification
		} else {
			next.Derived = facility.Derived{}
			next.Verification = facility.Verification{}
		}
		m.rows[f.ID] = next
	}
	return nil
}

// ApplyDerived applies all updates or none.
func (m *Memory) ApplyDerived(ctx context.Context, updates []facility.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]facility.Facility, len(updates))
	for _, u := range updates {
		f, ok := m.rows[u.ID]
		if !ok {
			return fmt.Errorf("apply %s: %w", u.ID, ErrNotFound)
		}
		f.Derived = u.Derived
		f.Verification = u.Verification
		f.Verification.Sources = slices.Clone(u.Verification.Sources)
		next[u.ID] = f
	}

	owners := make(map[string]string, len(m.rows))
	for id, f := range m.rows {
		if n, ok := next[id]; ok {
			f = n
		}
		if f.Slug == "" {
			continue
		}
		if other, dup := owners[f.Slug]; dup {
			return fmt.Errorf("apply: slug %q shared by %s and %s", f.Slug, other, id)
		}
		owners[f.Slug] = id
	}

	for id, f := range next {
		m.rows[id] = f
	}
	return nil
}

// Len returns the number of stored facilities.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// Count is Len with the SQLite signature.
func (m *Memory) Count(context.Context) (int, error) {
	return m.Len(), nil
}

func (m *Memory) filter(ctx context.Context, keep func(facility.Facility) bool) ([]facility.Facility, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]facility.Facility, 0, len(m.rows))
	for _, f := range m.rows {
		if keep(f) {
			out = append(out, clone(f))
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CountryISO3 != out[j].CountryISO3 {
			return out[i].CountryISO3 < out[j].CountryISO3
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func clone(f facility.Facility) facility.Facility {
	f.Commodities = slices.Clone(f.Commodities)
	f.Aliases = slices.Clone(f.Aliases)
	f.Verification.Sources = slices.Clone(f.Verification.Sources)
	if f.Coordinates != nil {
		c := *f.Coordinates
		f.Coordinates = &c
	}
	return f
}

package backfill

import (
	"time"

	"github.com/hazyhaar/facility-names/pkg/collision"
	"github.com/hazyhaar/facility-names/pkg/facility"
	"github.com/hazyhaar/facility-names/pkg/naming"
	"github.com/hazyhaar/facility-names/pkg/registry"
)

// Report summarizes one run.
type Report struct {
	RunID     string    `json:"run_id"`
	DryRun    bool      `json:"dry_run"`
	Countries []string  `json:"countries,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`

	Seeded    int `json:"seeded"`
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	// Written is the number of records persisted; zero in dry-run.
	Written int `json:"written"`

	CollisionsDetected int                    `json:"collisions_detected"`
	ResolvedByTier     map[collision.Tier]int `json:"resolved_by_tier"`
	Confidence         map[naming.Band]int    `json:"confidence_histogram"`

	Skipped       []Skipped               `json:"skipped,omitempty"`
	Ambiguities   []Ambiguity             `json:"ambiguities,omitempty"`
	Unresolved    []Unresolved            `json:"unresolved,omitempty"`
	SeedConflicts []registry.SeedConflict `json:"seed_conflicts,omitempty"`
	Changes       []Change                `json:"changes,omitempty"`
}

// Skipped is a record excluded from processing.
type Skipped struct {
	FacilityID string `json:"facility_id"`
	Reason     string `json:"reason"`
}

// Ambiguity flags a lossy or best-effort romanization. It is informational.
type Ambiguity struct {
	FacilityID string `json:"facility_id"`
	Text       string `json:"text"`
	Result     string `json:"result"`
	Reason     string `json:"reason"`
}

// Unresolved is a record whose collision chain was exhausted.
type Unresolved struct {
	FacilityID string `json:"facility_id"`
	BaseSlug   string `json:"base_slug"`
	Error      string `json:"error"`
}

// Change is the before/after of one updated facility.
type Change struct {
	FacilityID string           `json:"facility_id"`
	Before     facility.Derived `json:"before"`
	After      facility.Derived `json:"after"`
	Tier       collision.Tier   `json:"tier"`
}

func newReport(runID string, opts Options, started time.Time) *Report {
	r := &Report{
		RunID:          runID,
		DryRun:         opts.DryRun,
		Countries:      opts.Countries,
		StartedAt:      started,
		ResolvedByTier: make(map[collision.Tier]int),
		Confidence:     make(map[naming.Band]int),
	}
	for _, b := range naming.Bands {
		r.Confidence[b] = 0
	}
	return r
}

// CollisionsResolved sums ResolvedByTier.
func (r *Report) CollisionsResolved() int {
	n := 0
	for _, c := range r.ResolvedByTier {
		n += c
	}
	return n
}

// OK reports whether every processed record got a slug.
func (r *Report) OK() bool { return len(r.Unresolved) == 0 }

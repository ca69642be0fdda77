// Package backfill drives the naming pipeline over the facility corpus:
// seed the slug registry, synthesize and slug every record of the selected
// countries, resolve collisions, then report and write back.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/facility-names/pkg/collision"
	"github.com/hazyhaar/facility-names/pkg/facility"
	"github.com/hazyhaar/facility-names/pkg/naming"
	"github.com/hazyhaar/facility-names/pkg/registry"
	"github.com/hazyhaar/facility-names/pkg/slug"
	"github.com/hazyhaar/facility-names/pkg/translit"
)

// State is the orchestrator lifecycle.
type State string

const (
	StateIdle       State = "IDLE"
	StateInit       State = "INIT"
	StateProcessing State = "PROCESSING"
	StateReporting  State = "REPORTING"
	StateDone       State = "DONE"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("backfill run already in progress")

// FallbackSlug is used when neither the name nor the type yields a slug.
const FallbackSlug = "facility"

// Options selects what a run does.
type Options struct {
	// Countries restricts processing to these ISO3 codes; empty means all.
	Countries []string `json:"countries,omitempty"`
	// DryRun computes and reports everything but persists nothing.
	DryRun bool `json:"dry_run"`
	// GlobalDedupe also processes facilities outside Countries that lost a
	// duplicated persisted slug during seeding. The registry is seeded from
	// every country either way.
	GlobalDedupe bool `json:"global_dedupe"`
}

// Config wires an Orchestrator. Store is required; everything else has a default.
type Config struct {
	Store       facility.Store
	Synthesizer *naming.Synthesizer
	Resolver    *collision.Resolver
	SlugOptions slug.Options
	// NewRegistry builds the run-scoped registry. Defaults to registry.NewMemory.
	NewRegistry func() registry.Registry
	Workers     int
	Metrics     *Metrics
	Logger      *slog.Logger
	Now         func() time.Time
}

// Orchestrator runs backfills. Runs are serialized.
type Orchestrator struct {
	cfg   Config
	run   sync.Mutex
	state atomic.Value // State
}

// New builds an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Synthesizer == nil {
		cfg.Synthesizer = naming.NewSynthesizer(naming.Options{RemoveParentheticals: cfg.SlugOptions.RemoveParentheticals})
	}
	if cfg.Resolver == nil {
		cfg.Resolver = collision.NewResolver(collision.Options{})
	}
	if cfg.NewRegistry == nil {
		cfg.NewRegistry = func() registry.Registry { return registry.NewMemory() }
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	o := &Orchestrator{cfg: cfg}
	o.state.Store(StateIdle)
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return o.state.Load().(State)
}

func (o *Orchestrator) setState(s State, runID string) {
	o.state.Store(s)
	o.cfg.Logger.Info("backfill: state", "run", runID, "state", string(s))
}

// Preview computes the derived attributes of a single record without touching
// the registry or the store.
func (o *Orchestrator) Preview(src facility.Source) Preview {
	c := o.compute(facility.Facility{Source: src})
	return Preview{
		Name:        c.name,
		BaseSlug:    c.base,
		Band:        naming.BandOf(c.name.Confidence),
		Ambiguities: c.ambiguities,
	}
}

// Preview is the result of Orchestrator.Preview.
type Preview struct {
	Name        naming.Name `json:"name"`
	BaseSlug    string      `json:"base_slug"`
	Band        naming.Band `json:"band"`
	Ambiguities []Ambiguity `json:"ambiguities,omitempty"`
}

// computed is the registry-independent part of one record.
type computed struct {
	name        naming.Name
	base        string
	ambiguities []Ambiguity
}

func (o *Orchestrator) compute(f facility.Facility) computed {
	name := o.cfg.Synthesizer.Synthesize(f.Source)
	c := computed{name: name}

	if d := translit.Detail(name.SlugBasis); d.Ambiguous {
		c.ambiguities = append(c.ambiguities, Ambiguity{
			FacilityID: f.ID, Text: name.SlugBasis, Result: d.Text,
			Reason: fmt.Sprintf("lossy romanization, %d characters dropped", d.Dropped),
		})
	}

	c.base = slug.Generate(name.SlugBasis, o.cfg.SlugOptions)
	if c.base == "" {
		c.base = slug.Generate(name.Type, o.cfg.SlugOptions)
		if c.base == "" {
			c.base = FallbackSlug
		}
		c.ambiguities = append(c.ambiguities, Ambiguity{
			FacilityID: f.ID, Text: name.SlugBasis, Result: c.base,
			Reason: "name has no romanizable characters",
		})
	}
	return c
}

// Run executes one backfill. Record-level failures are reported, not returned.
// A returned error means the run aborted and nothing was persisted, except
// for an error from the final write-back, which is atomic.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Report, error) {
	if !o.run.TryLock() {
		return nil, ErrRunInProgress
	}
	defer o.run.Unlock()

	t0 := time.Now()
	runID := uuid.NewString()
	countries := make([]string, 0, len(opts.Countries))
	for _, c := range opts.Countries {
		if c = facility.NormalizeCountry(c); c != "" && !slices.Contains(countries, c) {
			countries = append(countries, c)
		}
	}
	opts.Countries = countries
	log := o.cfg.Logger.With("run", runID)

	report := newReport(runID, opts, o.cfg.Now().UTC())
	err := o.execute(ctx, report, opts, log)
	elapsed := time.Since(t0)
	o.cfg.Metrics.observeRun(opts.DryRun, err, elapsed)
	if err != nil {
		o.setState(StateIdle, runID)
		log.Error("backfill: aborted", "error", err)
		return nil, err
	}
	report.Duration = elapsed.Round(time.Millisecond).String()
	o.setState(StateDone, runID)
	return report, nil
}

func (o *Orchestrator) execute(ctx context.Context, report *Report, opts Options, log *slog.Logger) error {
	runID := report.RunID
	if err := ctx.Err(); err != nil {
		return err
	}

	// INIT
	o.setState(StateInit, runID)
	reg := o.cfg.NewRegistry()
	corpus, err := o.enumerate(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", facility.ErrRegistrySeedFailure, err)
	}
	conflicts, err := reg.Seed(ctx, corpus)
	if err != nil {
		return fmt.Errorf("%w: %w", facility.ErrRegistrySeedFailure, err)
	}
	report.Seeded = reg.Len()
	report.SeedConflicts = conflicts
	for _, c := range conflicts {
		log.Warn("backfill: persisted slug not seeded", "slug", c.Slug, "facility", c.FacilityID, "owner", c.Owner, "reason", c.Reason)
	}

	// PROCESSING
	o.setState(StateProcessing, runID)
	var displaced map[string]bool
	if opts.GlobalDedupe {
		displaced = make(map[string]bool, len(conflicts))
		for _, c := range conflicts {
			displaced[c.FacilityID] = true
		}
	}
	work := selectPartition(corpus, opts.Countries, displaced)
	valid := make([]facility.Facility, 0, len(work))
	for _, f := range work {
		if err := f.Validate(); err != nil {
			report.Skipped = append(report.Skipped, Skipped{FacilityID: f.ID, Reason: err.Error()})
			o.cfg.Metrics.record("skipped")
			log.Warn("backfill: record skipped", "facility", f.ID, "error", err)
			continue
		}
		valid = append(valid, f)
	}

	results, err := o.computeAll(ctx, valid)
	if err != nil {
		return err
	}

	now := o.cfg.Now().UTC()
	var updates []facility.Update
	for i, f := range valid {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := results[i]
		report.Processed++
		report.Ambiguities = append(report.Ambiguities, c.ambiguities...)
		report.Confidence[naming.BandOf(c.name.Confidence)]++
		o.cfg.Metrics.confidence(c.name.Confidence)

		slugVal, tier, err := o.assign(reg, c.base, f)
		if err != nil {
			if !errors.Is(err, facility.ErrUnresolvableCollision) {
				return err
			}
			report.Unresolved = append(report.Unresolved, Unresolved{FacilityID: f.ID, BaseSlug: c.base, Error: err.Error()})
			o.cfg.Metrics.record("unresolved")
			log.Error("backfill: unresolvable collision", "facility", f.ID, "base", c.base, "error", err)
			continue
		}
		if tier != collision.TierBase && tier != "" {
			report.CollisionsDetected++
			report.ResolvedByTier[tier]++
			o.cfg.Metrics.collision(string(tier))
			log.Debug("backfill: collision resolved", "facility", f.ID, "base", c.base, "slug", slugVal, "tier", string(tier))
		}

		derived := facility.Derived{CanonicalName: c.name.Canonical, Slug: slugVal, BaseSlug: c.base, Confidence: c.name.Confidence}
		if derived == f.Derived {
			report.Unchanged++
			o.cfg.Metrics.record("unchanged")
			continue
		}
		report.Updated++
		o.cfg.Metrics.record("updated")
		report.Changes = append(report.Changes, Change{FacilityID: f.ID, Before: f.Derived, After: derived, Tier: tier})
		updates = append(updates, facility.Update{
			ID:      f.ID,
			Derived: derived,
			Verification: facility.Verification{
				Notes:       provenance(runID, c.name, tier),
				Sources:     sourcesOf(f.Source),
				GeneratedAt: now,
			},
		})
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// REPORTING
	o.setState(StateReporting, runID)
	if !opts.DryRun && len(updates) > 0 {
		if err := o.cfg.Store.ApplyDerived(ctx, updates); err != nil {
			return fmt.Errorf("write back %d facilities: %w", len(updates), err)
		}
		report.Written = len(updates)
	}
	log.Info("backfill: done",
		"processed", report.Processed, "updated", report.Updated, "unchanged", report.Unchanged,
		"skipped", len(report.Skipped), "collisions", report.CollisionsDetected,
		"unresolved", len(report.Unresolved), "dry_run", opts.DryRun)
	return nil
}

// enumerate reads every facility of every country. The registry is always
// seeded from the whole corpus, whatever partition is processed.
func (o *Orchestrator) enumerate(ctx context.Context) ([]facility.Facility, error) {
	if o.cfg.Store == nil {
		return nil, errors.New("no facility store configured")
	}
	return o.cfg.Store.All(ctx)
}

// selectPartition filters corpus to countries, plus the facilities named in
// extra, and orders it by (country, id), the order reservations are made in.
func selectPartition(corpus []facility.Facility, countries []string, extra map[string]bool) []facility.Facility {
	var out []facility.Facility
	if len(countries) == 0 {
		out = slices.Clone(corpus)
	} else {
		for _, f := range corpus {
			if extra[f.ID] || slices.Contains(countries, facility.NormalizeCountry(f.CountryISO3)) {
				out = append(out, f)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := facility.NormalizeCountry(out[i].CountryISO3), facility.NormalizeCountry(out[j].CountryISO3)
		if ci != cj {
			return ci < cj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// computeAll synthesizes names and base slugs in parallel. Results are indexed
// like fs.
func (o *Orchestrator) computeAll(ctx context.Context, fs []facility.Facility) ([]computed, error) {
	results := make([]computed, len(fs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i := range fs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = o.compute(fs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// assign picks the slug of f. A facility keeps a slug it owns while its base
// slug is unchanged, so edits to the fields the collision chain appends
// (region, town, coordinates) never rename it. Otherwise the collision chain
// runs and any slug it no longer uses is released. The returned tier is empty
// for a kept slug.
func (o *Orchestrator) assign(reg registry.Registry, base string, f facility.Facility) (string, collision.Tier, error) {
	if f.Slug != "" {
		if owner, ok := reg.Lookup(f.Slug); ok && owner == f.ID && o.keeps(base, f) {
			return f.Slug, "", nil
		}
	}

	out, err := o.cfg.Resolver.Resolve(reg, base, f)
	if err != nil {
		return "", "", err
	}
	if f.Slug != "" && f.Slug != out.Slug {
		reg.Release(f.Slug, f.ID)
	}
	return out.Slug, out.Tier, nil
}

// keeps reports whether the current slug of f still derives from base. Records
// written without a base slug fall back to the current candidate list.
func (o *Orchestrator) keeps(base string, f facility.Facility) bool {
	if f.BaseSlug != "" {
		return f.BaseSlug == base && (f.Slug == base || strings.HasPrefix(f.Slug, base+"-"))
	}
	for _, c := range o.cfg.Resolver.Candidates(base, f) {
		if c.Slug == f.Slug {
			return true
		}
	}
	return false
}

func provenance(runID string, n naming.Name, tier collision.Tier) string {
	var b strings.Builder
	fmt.Fprintf(&b, "naming run %s", runID)
	if tier != "" {
		fmt.Fprintf(&b, "; slug tier %s", tier)
	}
	if n.Type != "" && !n.TypeMapped {
		fmt.Fprintf(&b, "; unmapped type %q", n.Type)
	}
	if n.Generic {
		b.WriteString("; generic raw name")
	}
	return b.String()
}

func sourcesOf(src facility.Source) []string {
	out := []string{"raw_name"}
	for _, f := range []struct {
		name string
		v    string
	}{
		{"operator_display", src.OperatorDisplay},
		{"town", src.Town},
		{"region", src.Region},
		{"primary_type", src.PrimaryType},
	} {
		if strings.TrimSpace(f.v) != "" {
			out = append(out, f.name)
		}
	}
	if len(src.Commodities) > 0 {
		out = append(out, "commodities")
	}
	return out
}

// Package collision resolves slug conflicts through a fixed, deterministic
// fallback chain: region, town, geohash, facility id.
package collision

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hazyhaar/facility-names/pkg/facility"
	"github.com/hazyhaar/facility-names/pkg/registry"
	"github.com/hazyhaar/facility-names/pkg/slug"
)

// Tier names the step of the chain that produced a slug.
type Tier string

const (
	TierBase       Tier = "base"
	TierRegion     Tier = "region"
	TierTown       Tier = "town"
	TierGeohash    Tier = "geohash"
	TierFacilityID Tier = "facility_id"
)

// Tiers lists every tier in chain order.
var Tiers = []Tier{TierBase, TierRegion, TierTown, TierGeohash, TierFacilityID}

// Step derives the next candidate from the base slug. ok is false when the
// step does not apply to the facility.
type Step struct {
	Tier  Tier
	Apply func(base string, f facility.Facility) (candidate string, ok bool)
	// Terminal steps never fail: when their candidate is taken, numbered
	// variants ("-2", "-3", ...) are tried until one is free.
	Terminal bool
}

// Options configures the default chain.
type Options struct {
	// GeohashPrecision is the number of geohash characters appended (1-12).
	GeohashPrecision int
}

// DefaultGeohashPrecision gives cells of roughly 150 m.
const DefaultGeohashPrecision = 7

// Candidate is one entry of the chain.
type Candidate struct {
	Tier Tier   `json:"tier"`
	Slug string `json:"slug"`
}

// Outcome is the result of a successful resolution.
type Outcome struct {
	Slug string `json:"slug"`
	Tier Tier   `json:"tier"`
	// Conflicts lists the candidates rejected before Slug, with their owners.
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// Conflict is a rejected candidate.
type Conflict struct {
	Slug  string `json:"slug"`
	Owner string `json:"owner"`
}

// Collided reports whether the base slug was rejected.
func (o Outcome) Collided() bool { return o.Tier != TierBase }

// Resolver walks the chain against a registry.
type Resolver struct {
	steps []Step
}

// NewResolver builds a resolver with the default chain.
func NewResolver(opts Options) *Resolver {
	return NewResolverWithSteps(DefaultSteps(opts.GeohashPrecision))
}

// NewResolverWithSteps builds a resolver with a custom chain.
func NewResolverWithSteps(steps []Step) *Resolver {
	return &Resolver{steps: steps}
}

// Candidates returns the full chain for base: the base slug first, then one
// candidate per applicable step. Duplicates are dropped. Numbered variants of
// a terminal step are not listed.
func (r *Resolver) Candidates(base string, f facility.Facility) []Candidate {
	out, _ := r.candidates(base, f)
	return out
}

// candidates also returns the candidate of the first applicable terminal step,
// after which the chain stops.
func (r *Resolver) candidates(base string, f facility.Facility) ([]Candidate, *Candidate) {
	out := []Candidate{{Tier: TierBase, Slug: base}}
	seen := map[string]bool{base: true}
	for _, step := range r.steps {
		c, ok := step.Apply(base, f)
		if !ok || c == "" {
			continue
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, Candidate{Tier: step.Tier, Slug: c})
		}
		if step.Terminal {
			return out, &Candidate{Tier: step.Tier, Slug: c}
		}
	}
	return out, nil
}

// Resolve reserves the first free candidate of the chain for f. Each step is
// attempted once, except a terminal step, which numbers its candidate until
// one is free. Running out of candidates yields ErrUnresolvableCollision; the
// default chain ends with a terminal step and never does.
func (r *Resolver) Resolve(reg registry.Registry, base string, f facility.Facility) (Outcome, error) {
	var conflicts []Conflict
	try := func(c Candidate) (bool, error) {
		err := reg.Reserve(c.Slug, f.ID)
		if err == nil {
			return true, nil
		}
		var ce *registry.ConflictError
		if !errors.As(err, &ce) {
			return false, fmt.Errorf("reserve %s for %s: %w", c.Slug, f.ID, err)
		}
		conflicts = append(conflicts, Conflict{Slug: c.Slug, Owner: ce.Owner})
		return false, nil
	}

	chain, terminal := r.candidates(base, f)
	for _, c := range chain {
		ok, err := try(c)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			return Outcome{Slug: c.Slug, Tier: c.Tier, Conflicts: conflicts}, nil
		}
	}
	if terminal != nil {
		// At most Len slugs are taken, so one of Len+1 variants is free.
		for n := 2; n <= reg.Len()+2; n++ {
			c := Candidate{Tier: terminal.Tier, Slug: slug.Join(terminal.Slug, strconv.Itoa(n))}
			ok, err := try(c)
			if err != nil {
				return Outcome{}, err
			}
			if ok {
				return Outcome{Slug: c.Slug, Tier: c.Tier, Conflicts: conflicts}, nil
			}
		}
	}
	return Outcome{Conflicts: conflicts}, &facility.RecordError{
		FacilityID: f.ID,
		Field:      "slug",
		Err:        fmt.Errorf("%w: base %q, %d candidates taken", facility.ErrUnresolvableCollision, base, len(conflicts)),
	}
}

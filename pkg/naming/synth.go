// Package naming synthesizes canonical facility display names and their
// completeness-weighted confidence from structured source fields.
package naming

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hazyhaar/facility-names/pkg/facility"
	"github.com/hazyhaar/facility-names/pkg/slug"
)

// Options configures a Synthesizer. Zero values fall back to the defaults.
type Options struct {
	RemoveParentheticals bool
	Vocabulary           *Vocabulary
	Weights              WeightTable
}

// Name is the synthesis result for one facility.
type Name struct {
	// Canonical is the display name, operator included.
	Canonical string `json:"canonical_name"`
	// SlugBasis is the display name without the operator; the slug is derived
	// from it so that a change of owner keeps the identifier.
	SlugBasis  string  `json:"slug_basis"`
	Confidence float64 `json:"confidence"`
	// Type is the canonical type label, or the raw type when unmapped.
	Type       string `json:"type,omitempty"`
	TypeMapped bool   `json:"type_mapped"`
	// Generic is set when the raw name carried no identity of its own and the
	// name was composed from locality, qualifier and type.
	Generic bool `json:"generic"`
}

// Synthesizer composes canonical names. It is stateless after construction and
// safe for concurrent use.
type Synthesizer struct {
	removeParens bool
	vocab        *Vocabulary
	weights      WeightTable
}

// NewSynthesizer builds a Synthesizer.
func NewSynthesizer(opts Options) *Synthesizer {
	s := &Synthesizer{
		removeParens: opts.RemoveParentheticals,
		vocab:        opts.Vocabulary,
		weights:      opts.Weights,
	}
	if s.vocab == nil {
		s.vocab = DefaultVocabulary()
	}
	if len(s.weights) == 0 {
		s.weights = DefaultWeights
	}
	return s
}

// Vocabulary returns the type vocabulary in use.
func (s *Synthesizer) Vocabulary() *Vocabulary { return s.vocab }

// Synthesize builds the canonical name of src.
//
// Non-generic raw names use {operator?} {core} {locality?}, where core is the
// raw name with the canonical type appended when it does not already say it.
// Generic raw names ("Smelter", "Processing Plant") use
// {operator?} {town_or_region?} {qualifier?} {type}, the qualifier being the
// first commodity. Absent fields are omitted and fields already present in the
// core are not repeated.
func (s *Synthesizer) Synthesize(src facility.Source) Name {
	raw := s.clean(src.RawName)
	operator := collapse(src.OperatorDisplay)
	town := collapse(src.Town)
	region := collapse(src.Region)

	n := Name{Confidence: s.weights.Score(src)}
	n.Type, n.TypeMapped = s.vocab.Canonical(src.PrimaryType)

	if operator == "" && town == "" && region == "" && n.Type == "" {
		n.Canonical, n.SlugBasis = raw, raw
		return n
	}

	if s.vocab.IsGeneric(raw) {
		n.Generic = true
		typeWord := n.Type
		if typeWord == "" {
			typeWord = raw
		}
		locality := town
		if locality == "" {
			locality = region
		}
		var qualifier string
		if len(src.Commodities) > 0 {
			qualifier = s.titleIfLower(collapse(src.Commodities[0]))
			if containsWords(typeWord, qualifier) || containsWords(locality, qualifier) {
				qualifier = ""
			}
		}
		basis := joinWords(locality, qualifier, typeWord)
		n.SlugBasis = basis
		n.Canonical = joinWords(s.operatorPrefix(operator, basis), basis)
		return n
	}

	core := raw
	if n.Type != "" && !s.mentionsType(core, n.Type, n.TypeMapped) {
		core = joinWords(core, n.Type)
	}

	basis := core
	display := core
	switch {
	case town != "" && !containsWords(core, town):
		basis = joinWords(core, town)
		display = basis
	case town == "" && region != "" && !containsWords(core, region):
		// Region stays out of the slug basis so the collision chain can use it.
		display = joinWords(core, region)
	}

	n.SlugBasis = basis
	n.Canonical = joinWords(s.operatorPrefix(operator, display), display)
	return n
}

// clean collapses whitespace and drops parentheticals when configured. A name
// made only of a parenthetical keeps its text.
func (s *Synthesizer) clean(raw string) string {
	c := collapse(raw)
	if !s.removeParens {
		return c
	}
	if stripped := slug.StripParentheticals(c); stripped != "" {
		return stripped
	}
	if inner := collapse(strings.NewReplacer("(", " ", ")", " ").Replace(c)); inner != "" {
		return inner
	}
	return c
}

func (s *Synthesizer) mentionsType(text, typ string, mapped bool) bool {
	if mapped {
		return s.vocab.Mentions(text, typ)
	}
	return containsWords(text, typ)
}

func (s *Synthesizer) operatorPrefix(operator, name string) string {
	if operator == "" || containsWords(name, operator) {
		return ""
	}
	return operator
}

func (s *Synthesizer) titleIfLower(w string) string {
	if w != strings.ToLower(w) {
		return w
	}
	return cases.Title(language.Und).String(w)
}

// containsWords reports whether needle's words appear contiguously in hay,
// ignoring case, diacritics and punctuation.
func containsWords(hay, needle string) bool {
	opts := slug.Options{}
	return slug.ContainsTokens(slug.Generate(hay, opts), slug.Generate(needle, opts))
}

func joinWords(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

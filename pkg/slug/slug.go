// Package slug turns facility names into URL-safe identifiers.
package slug

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/facility-names/pkg/translit"
)

var (
	innermostParens = regexp.MustCompile(`\([^()]*\)`)
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	validSlug       = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// Options controls slug generation.
type Options struct {
	// RemoveParentheticals drops "(...)" asides before slugging.
	RemoveParentheticals bool
}

// DefaultOptions returns the options used by the backfill.
func DefaultOptions() Options {
	return Options{RemoveParentheticals: true}
}

// Generate returns the slug for name. The result is empty when nothing
// romanizable remains.
//
//	Generate("Karee Mine (Rustenburg)", DefaultOptions()) // "karee-mine"
//	Generate("Shaft No. 3 / Section B", DefaultOptions()) // "shaft-no-3-section-b"
func Generate(name string, opts Options) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if opts.RemoveParentheticals {
		s = StripParentheticals(s)
	}
	s = strings.ToLower(translit.Transliterate(s))
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// StripParentheticals removes every balanced "(...)" group, innermost first.
// An unbalanced opening parenthesis drops the rest of the string.
func StripParentheticals(s string) string {
	for {
		next := innermostParens.ReplaceAllString(s, " ")
		if next == s {
			break
		}
		s = next
	}
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, ")", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Join concatenates slug fragments with hyphens, skipping empty ones.
func Join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "-"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "-")
}

// Valid reports whether s is a well-formed slug.
func Valid(s string) bool {
	return validSlug.MatchString(s)
}

// ContainsTokens reports whether the hyphen-separated tokens of frag appear
// contiguously in s. It is used to avoid appending a fragment the slug already
// carries.
func ContainsTokens(s, frag string) bool {
	if frag == "" {
		return false
	}
	return strings.Contains("-"+s+"-", "-"+frag+"-")
}

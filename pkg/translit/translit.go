// Package translit romanizes multi-script facility names to ASCII.
//
// Cyrillic, Greek and Arabic letters go through fixed romanization tables,
// Latin letters lose their diacritics, and scripts without an authoritative
// table (Han, Hangul, Kana, ...) are dropped so that the Latin form already
// present in the source text is what survives. Every dropped run becomes a
// single space, which keeps word boundaries intact.
package translit

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Result is the outcome of a transliteration.
type Result struct {
	Text string
	// Dropped counts letters and digits that had no romanization.
	Dropped int
	// Ambiguous is set when letters were dropped or romanized through a
	// best-effort table (unvowelled scripts).
	Ambiguous bool
}

// Transliterate returns the ASCII form of s.
func Transliterate(s string) string {
	return Detail(s).Text
}

// Detail transliterates s and reports how lossy the conversion was.
func Detail(s string) Result {
	s = width.Fold.String(norm.NFC.String(s))

	var (
		b        strings.Builder
		res      Result
		dropping bool
	)
	b.Grow(len(s))

	for _, r := range s {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
			dropping = false
			continue
		}

		if rep, ok := romanize(r); ok {
			b.WriteString(rep)
			dropping = false
			if unicode.In(r, unicode.Arabic) {
				res.Ambiguous = true
			}
			continue
		}

		switch {
		case unicode.Is(unicode.Mn, r), unicode.Is(unicode.Me, r), unicode.Is(unicode.Cf, r):
			// Stray combining marks and format characters carry no letters.
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsNumber(r):
			res.Dropped++
			res.Ambiguous = true
			if !dropping {
				b.WriteByte(' ')
				dropping = true
			}
		default:
			// Non-ASCII punctuation, symbols and spaces act as separators.
			if !dropping {
				b.WriteByte(' ')
				dropping = true
			}
		}
	}

	res.Text = b.String()
	return res
}

// romanize resolves a single non-ASCII rune through the tables, then through
// diacritic removal.
func romanize(r rune) (string, bool) {
	if d, ok := digitValue(r); ok {
		return d, true
	}
	if rep, ok := lookup(r); ok {
		return rep, true
	}

	base, _, err := transform.String(stripMarks, string(r))
	if err != nil || base == "" {
		return "", false
	}
	if isASCII(base) {
		return base, true
	}
	// Accented Greek or Cyrillic letters that are not in the tables directly.
	if br, size := utf8.DecodeRuneInString(base); size == len(base) {
		if rep, ok := lookup(br); ok {
			return rep, true
		}
	}
	return "", false
}

// lookup consults the romanization tables, preserving the case of r.
func lookup(r rune) (string, bool) {
	lower := unicode.ToLower(r)
	rep, ok := table[lower]
	if !ok {
		return "", false
	}
	if lower == r || rep == "" {
		return rep, true
	}
	return strings.ToUpper(rep[:1]) + rep[1:], true
}

// digitValue maps decimal digits of other scripts to ASCII.
func digitValue(r rune) (string, bool) {
	if !unicode.Is(unicode.Nd, r) {
		return "", false
	}
	for _, zero := range digitZeros {
		if r >= zero && r <= zero+9 {
			return string(rune('0' + (r - zero))), true
		}
	}
	return "", false
}

// Sanitize lowercases s and reduces it to [a-z0-9\s-]; any other byte becomes
// a space. Whitespace runs collapse to one space.
func Sanitize(s string) string {
	s = strings.ToLower(s)
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// Fold is Transliterate followed by Sanitize. It is the comparison key used to
// decide whether two name fragments are the same words.
func Fold(s string) string {
	return Sanitize(Transliterate(s))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

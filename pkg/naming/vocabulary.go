package naming

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/hazyhaar/facility-names/pkg/translit"
	"gopkg.in/yaml.v3"
)

//go:embed types.yaml
var defaultVocabularyYAML []byte

// TypeEntry maps source-side synonyms to one canonical facility type label.
type TypeEntry struct {
	Label    string   `yaml:"label" json:"label"`
	Synonyms []string `yaml:"synonyms" json:"synonyms"`
}

// Vocabulary is the canonical facility type vocabulary.
type Vocabulary struct {
	Version string      `yaml:"version" json:"version"`
	Types   []TypeEntry `yaml:"types" json:"types"`
	// Fillers are words that carry no identity on their own ("plant", "site").
	Fillers []string `yaml:"fillers" json:"fillers"`

	index   map[string]int // folded synonym -> Types index
	generic map[string]bool
}

// DefaultVocabulary returns the vocabulary embedded in the binary.
func DefaultVocabulary() *Vocabulary {
	v, err := ParseVocabulary(defaultVocabularyYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded type vocabulary: %v", err))
	}
	return v
}

// LoadVocabulary reads and parses a vocabulary YAML file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	v, err := ParseVocabulary(data)
	if err != nil {
		return nil, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	return v, nil
}

// ParseVocabulary parses a vocabulary document and builds its lookup index.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(v.Types) == 0 {
		return nil, fmt.Errorf("vocabulary defines no types")
	}

	v.index = make(map[string]int)
	v.generic = make(map[string]bool)
	for i, t := range v.Types {
		if strings.TrimSpace(t.Label) == "" {
			return nil, fmt.Errorf("type %d: missing label", i)
		}
		keys := append([]string{t.Label}, t.Synonyms...)
		for _, k := range keys {
			folded := translit.Fold(k)
			if folded == "" {
				continue
			}
			if prev, ok := v.index[folded]; ok && prev != i {
				return nil, fmt.Errorf("synonym %q maps to both %q and %q", k, v.Types[prev].Label, t.Label)
			}
			v.index[folded] = i
			for _, w := range strings.Fields(folded) {
				v.generic[w] = true
			}
		}
	}
	for _, f := range v.Fillers {
		if folded := translit.Fold(f); folded != "" {
			v.generic[folded] = true
		}
	}
	return &v, nil
}

// Canonical maps a raw facility type to its canonical label. An unmapped type
// comes back verbatim (trimmed) with mapped=false.
func (v *Vocabulary) Canonical(raw string) (label string, mapped bool) {
	raw = strings.Join(strings.Fields(raw), " ")
	if raw == "" {
		return "", false
	}
	if i, ok := v.index[translit.Fold(raw)]; ok {
		return v.Types[i].Label, true
	}
	return raw, false
}

// Mentions reports whether text already names the given type label through the
// label itself or any of its synonyms.
func (v *Vocabulary) Mentions(text, label string) bool {
	folded := " " + translit.Fold(text) + " "
	for i, t := range v.Types {
		if t.Label != label {
			continue
		}
		for k, idx := range v.index {
			if idx == i && strings.Contains(folded, " "+k+" ") {
				return true
			}
		}
		return false
	}
	return strings.Contains(folded, " "+translit.Fold(label)+" ")
}

// IsGeneric reports whether every word of text is a type word or a filler,
// i.e. the text does not identify a facility by itself.
func (v *Vocabulary) IsGeneric(text string) bool {
	words := strings.Fields(translit.Fold(text))
	if len(words) == 0 {
		return true
	}
	for _, w := range words {
		if !v.generic[w] {
			return false
		}
	}
	return true
}

// Len returns the number of canonical types.
func (v *Vocabulary) Len() int {
	return len(v.Types)
}

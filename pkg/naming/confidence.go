package naming

import (
	"fmt"
	"math"
	"strings"

	"github.com/hazyhaar/facility-names/pkg/facility"
)

// Field names a source attribute that contributes to naming confidence.
type Field string

const (
	FieldTown        Field = "town"
	FieldOperator    Field = "operator"
	FieldPrimaryType Field = "primary_type"
	FieldRegion      Field = "region"
)

// Weight is one row of the confidence table.
type Weight struct {
	Field  Field   `yaml:"field" json:"field"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// WeightTable scores a facility as the sum of the weights of its present fields.
type WeightTable []Weight

// DefaultWeights sum to 1.0. Town outweighs operator and type, region weighs least.
var DefaultWeights = WeightTable{
	{Field: FieldTown, Weight: 0.40},
	{Field: FieldOperator, Weight: 0.25},
	{Field: FieldPrimaryType, Weight: 0.25},
	{Field: FieldRegion, Weight: 0.10},
}

// Validate checks that weights are non-negative, fields are unique and the
// total is 1.0.
func (wt WeightTable) Validate() error {
	seen := make(map[Field]bool, len(wt))
	var total float64
	for _, w := range wt {
		if w.Weight < 0 {
			return fmt.Errorf("weight for %s is negative", w.Field)
		}
		if seen[w.Field] {
			return fmt.Errorf("duplicate weight for %s", w.Field)
		}
		seen[w.Field] = true
		total += w.Weight
	}
	if math.Abs(total-1) > 1e-9 {
		return fmt.Errorf("weights sum to %.4f, want 1.0", total)
	}
	return nil
}

// Score returns the confidence for src, rounded to four decimals.
// The type counts as present whether or not the vocabulary maps it.
func (wt WeightTable) Score(src facility.Source) float64 {
	var total float64
	for _, w := range wt {
		if present(src, w.Field) {
			total += w.Weight
		}
	}
	total = math.Round(total*1e4) / 1e4
	return math.Max(0, math.Min(1, total))
}

func present(src facility.Source, f Field) bool {
	switch f {
	case FieldTown:
		return strings.TrimSpace(src.Town) != ""
	case FieldOperator:
		return strings.TrimSpace(src.OperatorDisplay) != ""
	case FieldPrimaryType:
		return strings.TrimSpace(src.PrimaryType) != ""
	case FieldRegion:
		return strings.TrimSpace(src.Region) != ""
	default:
		return false
	}
}

// Band is a reporting bucket for confidence values.
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// Bands lists every band in ascending order.
var Bands = []Band{BandLow, BandMedium, BandHigh}

// BandOf buckets c: low < 0.5, medium 0.5–0.8, high >= 0.8.
func BandOf(c float64) Band {
	switch {
	case c < 0.5:
		return BandLow
	case c < 0.8:
		return BandMedium
	default:
		return BandHigh
	}
}

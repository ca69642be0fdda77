// Package facility defines the facility record, the error taxonomy shared by the
// naming pipeline, and the interfaces of the record store it reads from and
// writes back to.
package facility

import (
	"context"
	"strings"
	"time"
)

// Precision tags how accurately a coordinate pair locates the facility.
type Precision string

const (
	PrecisionSite    Precision = "site"
	PrecisionTown    Precision = "town"
	PrecisionRegion  Precision = "region"
	PrecisionUnknown Precision = "unknown"
)

// ParsePrecision maps a free-form tag to a Precision. Unrecognized values are unknown.
func ParsePrecision(s string) Precision {
	switch Precision(strings.ToLower(strings.TrimSpace(s))) {
	case PrecisionSite:
		return PrecisionSite
	case PrecisionTown:
		return PrecisionTown
	case PrecisionRegion:
		return PrecisionRegion
	default:
		return PrecisionUnknown
	}
}

// Coordinates is a WGS84 point supplied by the geocoding collaborator.
type Coordinates struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Precision Precision `json:"precision"`
}

// Source holds the externally supplied attributes. The naming pipeline never
// modifies them.
type Source struct {
	CountryISO3     string       `json:"country_iso3"`
	RawName         string       `json:"raw_name"`
	OperatorDisplay string       `json:"operator_display,omitempty"`
	Town            string       `json:"town,omitempty"`
	Region          string       `json:"region,omitempty"`
	PrimaryType     string       `json:"primary_type,omitempty"`
	Commodities     []string     `json:"commodities,omitempty"`
	Aliases         []string     `json:"aliases,omitempty"`
	Coordinates     *Coordinates `json:"coordinates,omitempty"`
}

// Derived holds the attributes owned by the naming pipeline.
type Derived struct {
	CanonicalName string `json:"canonical_name,omitempty"`
	Slug          string `json:"slug,omitempty"`
	// BaseSlug is the slug of the name before collision fallbacks. A slug is
	// kept across runs while BaseSlug stays the same.
	BaseSlug   string  `json:"base_slug,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Verification records where the derived attributes came from.
type Verification struct {
	Notes       string    `json:"notes,omitempty"`
	Sources     []string  `json:"sources,omitempty"`
	GeneratedAt time.Time `json:"generated_at,omitzero"`
}

// Facility is the unit of work: identity, source attributes, derived attributes
// and provenance.
type Facility struct {
	ID string `json:"facility_id"`
	Source
	Derived
	Verification Verification `json:"verification"`
}

// Update is the write-back payload for one facility.
type Update struct {
	ID           string
	Derived      Derived
	Verification Verification
}

// Reader enumerates persisted facilities.
type Reader interface {
	// All returns every facility across every country.
	All(ctx context.Context) ([]Facility, error)
	// ByCountry returns the facilities of the given ISO3 countries.
	ByCountry(ctx context.Context, countries ...string) ([]Facility, error)
}

// Writer persists derived attributes. Implementations must apply each update
// atomically; a batch either fully applies or not at all.
type Writer interface {
	ApplyDerived(ctx context.Context, updates []Update) error
}

// Store is the full collaborator used by the backfill orchestrator.
type Store interface {
	Reader
	Writer
}

// HasCoordinates reports whether a usable coordinate pair is present.
func (s Source) HasCoordinates() bool {
	if s.Coordinates == nil {
		return false
	}
	c := s.Coordinates
	if c.Lat == 0 && c.Lon == 0 {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Validate checks the mandatory fields. The returned error wraps
// ErrMissingMandatoryField.
func (f Facility) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return &RecordError{Field: "facility_id", Err: ErrMissingMandatoryField}
	}
	if strings.TrimSpace(f.CountryISO3) == "" {
		return &RecordError{FacilityID: f.ID, Field: "country_iso3", Err: ErrMissingMandatoryField}
	}
	if strings.TrimSpace(f.RawName) == "" {
		return &RecordError{FacilityID: f.ID, Field: "raw_name", Err: ErrMissingMandatoryField}
	}
	return nil
}

// NormalizeCountry upper-cases and trims an ISO3 code.
func NormalizeCountry(iso3 string) string {
	return strings.ToUpper(strings.TrimSpace(iso3))
}

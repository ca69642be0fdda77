package facility

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		f     Facility
		field string
	}{
		{"ok", Facility{ID: "zaf-1", Source: Source{CountryISO3: "ZAF", RawName: "Karee Mine"}}, ""},
		{"no id", Facility{Source: Source{CountryISO3: "ZAF", RawName: "Karee Mine"}}, "facility_id"},
		{"no country", Facility{ID: "x-1", Source: Source{RawName: "Karee Mine"}}, "country_iso3"},
		{"blank name", Facility{ID: "x-1", Source: Source{CountryISO3: "ZAF", RawName: "   "}}, "raw_name"},
	}
	for _, tt := range tests {
		err := tt.f.Validate()
		if tt.field == "" {
			if err != nil {
				t.Errorf("%s: Validate() = %v, want nil", tt.name, err)
			}
			continue
		}
		if !errors.Is(err, ErrMissingMandatoryField) {
			t.Errorf("%s: Validate() = %v, want ErrMissingMandatoryField", tt.name, err)
			continue
		}
		var re *RecordError
		if !errors.As(err, &re) || re.Field != tt.field {
			t.Errorf("%s: field = %v, want %q", tt.name, err, tt.field)
		}
	}
}

func TestRecordErrorMessage(t *testing.T) {
	err := &RecordError{FacilityID: "aus-7", Field: "raw_name", Err: ErrMissingMandatoryField}
	if !strings.Contains(err.Error(), "aus-7") || !strings.Contains(err.Error(), "raw_name") {
		t.Errorf("Error() = %q, want id and field", err.Error())
	}
}

func TestHasCoordinates(t *testing.T) {
	tests := []struct {
		c    *Coordinates
		want bool
	}{
		{nil, false},
		{&Coordinates{Lat: 0, Lon: 0}, false},
		{&Coordinates{Lat: -25.67, Lon: 27.24}, true},
		{&Coordinates{Lat: 91, Lon: 10}, false},
		{&Coordinates{Lat: 10, Lon: -181}, false},
	}
	for _, tt := range tests {
		got := Source{Coordinates: tt.c}.HasCoordinates()
		if got != tt.want {
			t.Errorf("HasCoordinates(%+v) = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestParsePrecision(t *testing.T) {
	tests := []struct {
		in   string
		want Precision
	}{
		{"site", PrecisionSite},
		{" Town ", PrecisionTown},
		{"REGION", PrecisionRegion},
		{"", PrecisionUnknown},
		{"approx", PrecisionUnknown},
	}
	for _, tt := range tests {
		if got := ParsePrecision(tt.in); got != tt.want {
			t.Errorf("ParsePrecision(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

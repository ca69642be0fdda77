package collision

import (
	"encoding/hex"

	geohash "github.com/TomiHiltunen/geohash-golang"

	"github.com/hazyhaar/facility-names/pkg/facility"
	"github.com/hazyhaar/facility-names/pkg/slug"
)

var fragmentOpts = slug.Options{RemoveParentheticals: true}

// DefaultSteps returns region, town, geohash and facility id, in that order.
func DefaultSteps(geohashPrecision int) []Step {
	if geohashPrecision <= 0 || geohashPrecision > 12 {
		geohashPrecision = DefaultGeohashPrecision
	}
	return []Step{
		{Tier: TierRegion, Apply: appendField(func(f facility.Facility) string { return f.Region })},
		{Tier: TierTown, Apply: appendField(func(f facility.Facility) string { return f.Town })},
		{Tier: TierGeohash, Apply: appendGeohash(geohashPrecision)},
		{Tier: TierFacilityID, Apply: appendFacilityID, Terminal: true},
	}
}

// appendField appends the slugged field unless it is absent or already part
// of the base slug.
func appendField(field func(facility.Facility) string) func(string, facility.Facility) (string, bool) {
	return func(base string, f facility.Facility) (string, bool) {
		frag := slug.Generate(field(f), fragmentOpts)
		if frag == "" || slug.ContainsTokens(base, frag) {
			return "", false
		}
		return slug.Join(base, frag), true
	}
}

func appendGeohash(precision int) func(string, facility.Facility) (string, bool) {
	return func(base string, f facility.Facility) (string, bool) {
		if !f.HasCoordinates() {
			return "", false
		}
		gh := geohash.Encode(f.Coordinates.Lat, f.Coordinates.Lon)
		if len(gh) > precision {
			gh = gh[:precision]
		}
		return slug.Join(base, gh), true
	}
}

// appendFacilityID always applies. Slugging may fold distinct ids together
// ("ZAF-1", "zaf_1") and the result may equal another facility's slug, so the
// step is terminal rather than assumed unique.
func appendFacilityID(base string, f facility.Facility) (string, bool) {
	frag := slug.Generate(f.ID, slug.Options{})
	if frag == "" {
		frag = hex.EncodeToString([]byte(f.ID))
	}
	return slug.Join(base, frag), true
}

package place

import "strings"

// DefaultDuplicateDistance is the distance in meters below which two places
// are treated as the same physical location.
const DefaultDuplicateDistance = 250.0

// Normalize lowercases s, trims it and collapses inner whitespace.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Key is the name/city identity of a place.
type Key struct {
	name string
	city string
}

// Key returns the normalized name/city identity.
func (p Place) Key() Key {
	return Key{name: Normalize(p.name), city: Normalize(p.city)}
}

// SameAs reports whether p and other describe the same place: either the
// normalized name and city match, or they lie closer than thresholdMeters.
func (p Place) SameAs(other Place, thresholdMeters float64) bool {
	if p.Key() == other.Key() {
		return true
	}
	return p.coordinates.DistanceTo(other.coordinates) < thresholdMeters
}

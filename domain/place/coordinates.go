package place

import (
	"errors"
	"fmt"
	"math"
)

// Geographic bounds.
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// earthRadiusMeters is the mean Earth radius used for haversine distances.
const earthRadiusMeters = 6371000.0

// ErrInvalidCoordinates indicates a latitude or longitude outside the valid range.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Coordinates is a validated latitude/longitude pair in decimal degrees.
type Coordinates struct {
	latitude  float64
	longitude float64
}

// NewCoordinates creates Coordinates, rejecting non-finite or out-of-range values.
func NewCoordinates(latitude, longitude float64) (Coordinates, error) {
	if !ValidLatitude(latitude) || !ValidLongitude(longitude) {
		return Coordinates{}, fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinates, latitude, longitude)
	}
	return Coordinates{latitude: latitude, longitude: longitude}, nil
}

// MustCoordinates is like NewCoordinates but panics on invalid input.
// Intended for literals in tests and fixtures.
func MustCoordinates(latitude, longitude float64) Coordinates {
	c, err := NewCoordinates(latitude, longitude)
	if err != nil {
		panic(err)
	}
	return c
}

// ValidLatitude reports whether v is a finite latitude in [-90, 90].
func ValidLatitude(v float64) bool {
	return !math.IsNaN(v) && v >= MinLatitude && v <= MaxLatitude
}

// ValidLongitude reports whether v is a finite longitude in [-180, 180].
func ValidLongitude(v float64) bool {
	return !math.IsNaN(v) && v >= MinLongitude && v <= MaxLongitude
}

// Latitude returns the latitude in decimal degrees.
func (c Coordinates) Latitude() float64 { return c.latitude }

// Longitude returns the longitude in decimal degrees.
func (c Coordinates) Longitude() float64 { return c.longitude }

// DistanceTo returns the great-circle distance to other in meters.
func (c Coordinates) DistanceTo(other Coordinates) float64 {
	lat1 := c.latitude * math.Pi / 180
	lat2 := other.latitude * math.Pi / 180
	dLat := (other.latitude - c.latitude) * math.Pi / 180
	dLon := (other.longitude - c.longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// String returns the coordinates formatted with 4 decimal places.
func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f, %.4f", c.latitude, c.longitude)
}

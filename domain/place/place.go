// Package place provides the domain types for recorded and suggested places.
package place

import (
	"errors"
	"strings"
)

// Origin describes where a place came from.
type Origin string

// Origin values.
const (
	OriginVisited Origin = "visited"
	OriginNearby  Origin = "nearby"
	OriginSimilar Origin = "similar"
)

// UnknownLocality is the city name reported when coordinates cannot be resolved.
const UnknownLocality = "Unknown place"

// ErrEmptyName indicates a place without a usable name.
var ErrEmptyName = errors.New("place name is empty")

// Place is an immutable value object describing a point of interest.
// Suggested places have no id; identity for deduplication is derived from
// the name, the city and the coordinates.
type Place struct {
	id          string
	name        string
	coordinates Coordinates
	description string
	city        string
	origin      Origin
}

// NewPlace creates a Place. The name is trimmed and must not be empty.
func NewPlace(name string, coordinates Coordinates, origin Origin) (Place, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Place{}, ErrEmptyName
	}
	return Place{
		name:        name,
		coordinates: coordinates,
		origin:      origin,
	}, nil
}

// ReconstructPlace recreates a Place from persistence.
func ReconstructPlace(id, name string, coordinates Coordinates, description, city string) Place {
	return Place{
		id:          id,
		name:        name,
		coordinates: coordinates,
		description: description,
		city:        city,
		origin:      OriginVisited,
	}
}

// ID returns the opaque identifier, empty for suggestions.
func (p Place) ID() string { return p.id }

// Name returns the place name.
func (p Place) Name() string { return p.name }

// Coordinates returns the location of the place.
func (p Place) Coordinates() Coordinates { return p.coordinates }

// Description returns the description, empty when absent.
func (p Place) Description() string { return p.description }

// City returns the city, empty when absent.
func (p Place) City() string { return p.city }

// Origin returns where the place came from.
func (p Place) Origin() Origin { return p.origin }

// HasCity reports whether the place has a city.
func (p Place) HasCity() bool { return p.city != "" }

// WithID returns a copy with the given id.
func (p Place) WithID(id string) Place {
	p.id = id
	return p
}

// WithCity returns a copy with the given city.
func (p Place) WithCity(city string) Place {
	p.city = strings.TrimSpace(city)
	return p
}

// WithDescription returns a copy with the given description.
func (p Place) WithDescription(description string) Place {
	p.description = strings.TrimSpace(description)
	return p
}

// WithOrigin returns a copy with the given origin.
func (p Place) WithOrigin(origin Origin) Place {
	p.origin = origin
	return p
}

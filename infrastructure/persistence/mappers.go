package persistence

import (
	"fmt"

	"github.com/helixml/travelmap/domain/place"
)

// PlaceMapper maps between place.Place and PlaceModel.
type PlaceMapper struct{}

// ToDomain converts a PlaceModel to a visited place.
func (PlaceMapper) ToDomain(m PlaceModel) (place.Place, error) {
	coords, err := place.NewCoordinates(m.Latitude, m.Longitude)
	if err != nil {
		return place.Place{}, fmt.Errorf("place %s: %w", m.ID, err)
	}
	if m.Name == "" {
		return place.Place{}, fmt.Errorf("place %s: %w", m.ID, place.ErrEmptyName)
	}
	return place.ReconstructPlace(m.ID, m.Name, coords, m.Description, m.City), nil
}

// ToModel converts a place owned by ownerID to a PlaceModel.
func (PlaceMapper) ToModel(ownerID string, p place.Place) PlaceModel {
	return PlaceModel{
		ID:          p.ID(),
		OwnerID:     ownerID,
		Name:        p.Name(),
		Latitude:    p.Coordinates().Latitude(),
		Longitude:   p.Coordinates().Longitude(),
		Description: p.Description(),
		City:        p.City(),
	}
}

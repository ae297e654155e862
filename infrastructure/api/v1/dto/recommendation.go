// Package dto holds the JSON request and response bodies of the v1 API.
package dto

import (
	"fmt"

	"github.com/helixml/travelmap/domain/place"
	"github.com/helixml/travelmap/domain/recommendation"
	"github.com/helixml/travelmap/internal/validation"
)

// CoordinatesSchema is a latitude/longitude pair in decimal degrees.
type CoordinatesSchema struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

// PlaceSchema is a place as sent by the frontend and returned in results.
type PlaceSchema struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name" validate:"required"`
	Coordinates CoordinatesSchema `json:"coordinates"`
	Description string            `json:"description,omitempty"`
	City        string            `json:"city,omitempty"`
	UserID      string            `json:"userId,omitempty"`
}

// RecommendationRequest is the body of POST /api/v1/recommendations.
type RecommendationRequest struct {
	UserPlaces   []PlaceSchema `json:"userPlaces"`
	UserLocation []float64     `json:"userLocation" validate:"len=2"`
}

// OwnerRecommendationRequest is the body of
// POST /api/v1/users/{userID}/recommendations.
type OwnerRecommendationRequest struct {
	UserLocation []float64 `json:"userLocation" validate:"len=2"`
}

// RecommendationResponse carries both suggestion lists. Lists are never null.
type RecommendationResponse struct {
	Nearby  []PlaceSchema `json:"nearby"`
	Similar []PlaceSchema `json:"similar"`
}

// ReverseGeocodeResponse is the body of GET /api/v1/geocode/reverse.
type ReverseGeocodeResponse struct {
	City string `json:"city"`
}

// EmptyRecommendationResponse returns the response with two empty lists.
func EmptyRecommendationResponse() RecommendationResponse {
	return RecommendationResponse{Nearby: []PlaceSchema{}, Similar: []PlaceSchema{}}
}

// Location validates and returns the request location.
func (r RecommendationRequest) Location() (place.Coordinates, error) {
	return location(r.UserLocation)
}

// Location validates and returns the request location.
func (r OwnerRecommendationRequest) Location() (place.Coordinates, error) {
	return location(r.UserLocation)
}

func location(pair []float64) (place.Coordinates, error) {
	if len(pair) != 2 {
		return place.Coordinates{}, fmt.Errorf("%w: userLocation must be [lat, lng]", place.ErrInvalidCoordinates)
	}
	return place.NewCoordinates(pair[0], pair[1])
}

// SkippedPlace records a visited entry that could not be used.
type SkippedPlace struct {
	Index int
	Name  string
	Err   error
}

// VisitedPlaces converts the request places to domain places in order.
// Entries that fail validation are returned separately.
func (r RecommendationRequest) VisitedPlaces() ([]place.Place, []SkippedPlace) {
	visited := make([]place.Place, 0, len(r.UserPlaces))
	var skipped []SkippedPlace
	for i, s := range r.UserPlaces {
		p, err := s.ToDomain()
		if err != nil {
			skipped = append(skipped, SkippedPlace{Index: i, Name: s.Name, Err: err})
			continue
		}
		visited = append(visited, p)
	}
	return visited, skipped
}

// ToDomain converts the schema to a visited place.
func (s PlaceSchema) ToDomain() (place.Place, error) {
	if err := validation.Struct(s); err != nil {
		return place.Place{}, err
	}
	coordinates, err := place.NewCoordinates(*s.Coordinates.Latitude, *s.Coordinates.Longitude)
	if err != nil {
		return place.Place{}, err
	}
	p, err := place.NewPlace(s.Name, coordinates, place.OriginVisited)
	if err != nil {
		return place.Place{}, err
	}
	return p.WithID(s.ID).WithCity(s.City).WithDescription(s.Description), nil
}

// NewCoordinatesSchema converts domain coordinates.
func NewCoordinatesSchema(c place.Coordinates) CoordinatesSchema {
	lat, lng := c.Latitude(), c.Longitude()
	return CoordinatesSchema{Latitude: &lat, Longitude: &lng}
}

// NewPlaceSchema converts a domain place.
func NewPlaceSchema(p place.Place) PlaceSchema {
	return PlaceSchema{
		ID:          p.ID(),
		Name:        p.Name(),
		Coordinates: NewCoordinatesSchema(p.Coordinates()),
		Description: p.Description(),
		City:        p.City(),
	}
}

// NewRecommendationResponse converts a pipeline result.
func NewRecommendationResponse(result recommendation.Result) RecommendationResponse {
	return RecommendationResponse{
		Nearby:  placeSchemas(result.Nearby()),
		Similar: placeSchemas(result.Similar()),
	}
}

func placeSchemas(places []place.Place) []PlaceSchema {
	out := make([]PlaceSchema, len(places))
	for i, p := range places {
		out[i] = NewPlaceSchema(p)
	}
	return out
}

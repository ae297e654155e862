package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/helixml/travelmap/domain/place"
	"github.com/helixml/travelmap/internal/database"
)

// ErrMissingID indicates a place saved without an identifier.
var ErrMissingID = errors.New("place id is required")

// PlaceStore reads the places recorded by each owner.
type PlaceStore struct {
	database.Repository[place.Place, PlaceModel]
	db database.Database
}

// NewPlaceStore creates a new PlaceStore.
func NewPlaceStore(db database.Database) PlaceStore {
	return PlaceStore{
		Repository: database.NewRepository[place.Place, PlaceModel](db, PlaceMapper{}, "place"),
		db:         db,
	}
}

// FindByOwner returns the places of ownerID in the order they were recorded.
func (s PlaceStore) FindByOwner(ctx context.Context, ownerID string) ([]place.Place, error) {
	q := OwnerQuery(ownerID).
		Order("created_at", database.SortAsc).
		Order("id", database.SortAsc)
	return s.Find(ctx, q)
}

// OwnerQuery selects the places of ownerID.
func OwnerQuery(ownerID string) database.Query {
	return database.NewQuery().Equal("owner_id", ownerID)
}

// Save inserts or updates a place owned by ownerID. It is used to seed
// fixtures; the recommendation pipeline never writes.
func (s PlaceStore) Save(ctx context.Context, ownerID string, p place.Place) error {
	if p.ID() == "" {
		return ErrMissingID
	}
	m := PlaceMapper{}.ToModel(ownerID, p)
	err := s.db.Session(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("save place %s: %w", p.ID(), err)
	}
	return nil
}

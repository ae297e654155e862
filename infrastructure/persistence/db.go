// Package persistence provides the GORM-backed store of recorded places.
package persistence

import (
	"context"
	"fmt"

	"github.com/helixml/travelmap/internal/database"
)

// AutoMigrate creates or updates the place tables.
func AutoMigrate(db database.Database) error {
	if err := db.Session(context.Background()).AutoMigrate(&PlaceModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

package persistence

import "time"

// PlaceModel represents a place recorded by a user.
type PlaceModel struct {
	ID          string    `gorm:"column:id;primaryKey;size:64"`
	OwnerID     string    `gorm:"column:owner_id;index;size:255"`
	Name        string    `gorm:"column:name;size:512"`
	Latitude    float64   `gorm:"column:latitude"`
	Longitude   float64   `gorm:"column:longitude"`
	Description string    `gorm:"column:description;type:text"`
	City        string    `gorm:"column:city;size:255"`
	CreatedAt   time.Time `gorm:"column:created_at;index"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (PlaceModel) TableName() string {
	return "places"
}

package database

import (
	"context"
	"fmt"
)

// EntityMapper maps database models to domain values.
type EntityMapper[D any, E any] interface {
	ToDomain(entity E) (D, error)
}

// Repository provides read operations for one model type.
type Repository[D any, E any] struct {
	db     Database
	mapper EntityMapper[D, E]
	label  string
}

// NewRepository creates a new Repository.
func NewRepository[D any, E any](db Database, mapper EntityMapper[D, E], label string) Repository[D, E] {
	return Repository[D, E]{db: db, mapper: mapper, label: label}
}

// Find retrieves the entities matching q. Rows that fail to map are
// returned as an error naming the label.
func (r Repository[D, E]) Find(ctx context.Context, q Query) ([]D, error) {
	var entities []E
	if err := q.Apply(r.db.Session(ctx).Model(new(E))).Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", r.label, err)
	}

	domains := make([]D, 0, len(entities))
	for _, entity := range entities {
		d, err := r.mapper.ToDomain(entity)
		if err != nil {
			return nil, fmt.Errorf("map %s: %w", r.label, err)
		}
		domains = append(domains, d)
	}
	return domains, nil
}

// Count returns the number of entities matching q, ignoring its limit.
func (r Repository[D, E]) Count(ctx context.Context, q Query) (int64, error) {
	var count int64
	if err := q.Limit(0).Apply(r.db.Session(ctx).Model(new(E))).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", r.label, err)
	}
	return count, nil
}

package database

import (
	"fmt"

	"gorm.io/gorm"
)

// SortDirection is the ordering of a query column.
type SortDirection int

// SortDirection values.
const (
	SortAsc SortDirection = iota
	SortDesc
)

// String returns the SQL keyword for the direction.
func (s SortDirection) String() string {
	if s == SortDesc {
		return "DESC"
	}
	return "ASC"
}

type condition struct {
	field string
	value any
	in    bool
}

type order struct {
	field     string
	direction SortDirection
}

// Query is an immutable set of equality filters, orderings and a limit.
type Query struct {
	conditions []condition
	orders     []order
	limit      int
}

// NewQuery creates an empty Query.
func NewQuery() Query {
	return Query{}
}

// Equal adds a field = value condition.
func (q Query) Equal(field string, value any) Query {
	q.conditions = append(append([]condition(nil), q.conditions...), condition{field: field, value: value})
	return q
}

// In adds a field IN (values) condition.
func (q Query) In(field string, values any) Query {
	q.conditions = append(append([]condition(nil), q.conditions...), condition{field: field, value: values, in: true})
	return q
}

// Order adds an ordering.
func (q Query) Order(field string, direction SortDirection) Query {
	q.orders = append(append([]order(nil), q.orders...), order{field: field, direction: direction})
	return q
}

// Limit caps the number of rows; zero means no limit.
func (q Query) Limit(n int) Query {
	if n >= 0 {
		q.limit = n
	}
	return q
}

// LimitValue returns the configured limit.
func (q Query) LimitValue() int { return q.limit }

// Apply adds the query clauses to a GORM session.
func (q Query) Apply(db *gorm.DB) *gorm.DB {
	for _, c := range q.conditions {
		if c.in {
			db = db.Where(fmt.Sprintf("%s IN ?", c.field), c.value)
			continue
		}
		db = db.Where(fmt.Sprintf("%s = ?", c.field), c.value)
	}
	for _, o := range q.orders {
		db = db.Order(fmt.Sprintf("%s %s", o.field, o.direction))
	}
	if q.limit > 0 {
		db = db.Limit(q.limit)
	}
	return db
}

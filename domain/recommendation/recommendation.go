// Package recommendation provides the request/result types of the place
// recommendation pipeline together with its pure stages: prompt building
// and deduplication.
package recommendation

import (
	"github.com/helixml/travelmap/domain/place"
)

// DefaultMaxPerList is the maximum number of suggestions per list.
const DefaultMaxPerList = 3

// Request holds the visited places and the current user location.
// Visited places keep their insertion order.
type Request struct {
	visited  []place.Place
	location place.Coordinates
}

// NewRequest creates a new Request.
func NewRequest(visited []place.Place, location place.Coordinates) Request {
	v := make([]place.Place, len(visited))
	copy(v, visited)
	return Request{visited: v, location: location}
}

// Visited returns the visited places in insertion order.
func (r Request) Visited() []place.Place {
	v := make([]place.Place, len(r.visited))
	copy(v, r.visited)
	return v
}

// Location returns the current user location.
func (r Request) Location() place.Coordinates { return r.location }

// WithVisited returns a copy with the visited places replaced.
func (r Request) WithVisited(visited []place.Place) Request {
	return NewRequest(visited, r.location)
}

// Result holds the suggestions produced for one request.
type Result struct {
	nearby  []place.Place
	similar []place.Place
}

// NewResult creates a Result. Nil lists are stored as empty lists.
func NewResult(nearby, similar []place.Place) Result {
	n := make([]place.Place, len(nearby))
	copy(n, nearby)
	s := make([]place.Place, len(similar))
	copy(s, similar)
	return Result{nearby: n, similar: s}
}

// EmptyResult returns a Result with no suggestions.
func EmptyResult() Result {
	return NewResult(nil, nil)
}

// Nearby returns the suggestions close to the user.
func (r Result) Nearby() []place.Place {
	n := make([]place.Place, len(r.nearby))
	copy(n, r.nearby)
	return n
}

// Similar returns the suggestions similar to the visited places.
func (r Result) Similar() []place.Place {
	s := make([]place.Place, len(r.similar))
	copy(s, r.similar)
	return s
}

// IsEmpty reports whether both lists are empty.
func (r Result) IsEmpty() bool {
	return len(r.nearby) == 0 && len(r.similar) == 0
}

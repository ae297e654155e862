package recommendation

import (
	"github.com/helixml/travelmap/domain/place"
)

// Merger removes suggestions that duplicate visited places or each other.
type Merger struct {
	threshold  float64
	maxPerList int
}

// NewMerger creates a Merger with the default duplicate distance and list size.
func NewMerger() Merger {
	return Merger{
		threshold:  place.DefaultDuplicateDistance,
		maxPerList: DefaultMaxPerList,
	}
}

// WithThreshold returns a copy using the given duplicate distance in meters.
func (m Merger) WithThreshold(meters float64) Merger {
	if meters >= 0 {
		m.threshold = meters
	}
	return m
}

// WithMaxPerList returns a copy capping each list at n entries.
func (m Merger) WithMaxPerList(n int) Merger {
	if n > 0 {
		m.maxPerList = n
	}
	return m
}

// Merge filters nearby against visited, then similar against visited and the
// kept nearby entries. Candidates that duplicate an earlier kept candidate of
// the same list are dropped too. Survivor order is preserved.
func (m Merger) Merge(visited, nearby, similar []place.Place) Result {
	accepted := make([]place.Place, 0, len(visited)+len(nearby)+len(similar))
	accepted = append(accepted, visited...)

	keptNearby, accepted := m.filter(nearby, accepted, place.OriginNearby)
	keptSimilar, _ := m.filter(similar, accepted, place.OriginSimilar)

	return NewResult(keptNearby, keptSimilar)
}

func (m Merger) filter(candidates, accepted []place.Place, origin place.Origin) ([]place.Place, []place.Place) {
	kept := make([]place.Place, 0, m.maxPerList)
	for _, c := range candidates {
		if len(kept) >= m.maxPerList {
			break
		}
		if m.duplicate(c, accepted) {
			continue
		}
		c = c.WithOrigin(origin)
		kept = append(kept, c)
		accepted = append(accepted, c)
	}
	return kept, accepted
}

func (m Merger) duplicate(candidate place.Place, accepted []place.Place) bool {
	for _, a := range accepted {
		if a.SameAs(candidate, m.threshold) {
			return true
		}
	}
	return false
}

// Package suggestion extracts place suggestions from free-form model output.
//
// Models are asked for a single JSON object but often wrap it in prose,
// code fences or reasoning blocks, and individual entries may be
// incomplete. The parser tolerates all of that: it keeps every entry that
// validates and drops the rest one by one.
package suggestion

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/helixml/travelmap/domain/place"
	"github.com/helixml/travelmap/domain/recommendation"
	"github.com/helixml/travelmap/internal/validation"
)

// List names in the model response.
const (
	ListNearby  = "nearby"
	ListSimilar = "similar"
)

var (
	// ErrNoJSONObject indicates the text contains no decodable JSON object.
	ErrNoJSONObject = errors.New("no JSON object in response")

	// ErrNotArray indicates a list key holding something other than an array.
	ErrNotArray = errors.New("list is not an array")

	// ErrInvalidCandidate indicates an entry that failed validation.
	ErrInvalidCandidate = errors.New("invalid candidate")
)

// Rejection records one list or entry that was dropped.
type Rejection struct {
	List  string
	Index int
	Err   error
}

// Report describes what parsing discarded. Err is set when nothing could be
// extracted at all.
type Report struct {
	Err       error
	Rejected  []Rejection
	Truncated int
}

// Dropped returns the number of rejected entries and lists.
func (r Report) Dropped() int { return len(r.Rejected) }

type coordinatesDTO struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

type candidateDTO struct {
	Name        *string         `json:"name" validate:"required"`
	City        json.RawMessage `json:"city"`
	Description json.RawMessage `json:"description"`
	Coordinates *coordinatesDTO `json:"coordinates" validate:"required"`
}

// candidateResult is the outcome of decoding one entry: either a place or
// the reason it was dropped.
type candidateResult struct {
	place place.Place
	err   error
}

// Parser turns model output into validated suggestions.
type Parser struct {
	maxPerList int
}

// NewParser creates a Parser keeping at most recommendation.DefaultMaxPerList entries per list.
func NewParser() Parser {
	return Parser{maxPerList: recommendation.DefaultMaxPerList}
}

// WithMaxPerList returns a copy keeping at most n entries per list.
func (p Parser) WithMaxPerList(n int) Parser {
	if n > 0 {
		p.maxPerList = n
	}
	return p
}

// Parse extracts suggestions from raw. It never fails; unusable input yields
// an empty result.
func (p Parser) Parse(raw string) recommendation.Result {
	result, _ := p.ParseDetailed(raw)
	return result
}

// ParseDetailed is Parse plus a report of everything that was dropped.
func (p Parser) ParseDetailed(raw string) (result recommendation.Result, report Report) {
	defer func() {
		if r := recover(); r != nil {
			result = recommendation.EmptyResult()
			report = Report{Err: fmt.Errorf("%w: %v", ErrNoJSONObject, r)}
		}
	}()

	object, err := extractObject(raw)
	if err != nil {
		return recommendation.EmptyResult(), Report{Err: err}
	}

	nearby := p.list(object, ListNearby, place.OriginNearby, &report)
	similar := p.list(object, ListSimilar, place.OriginSimilar, &report)
	return recommendation.NewResult(nearby, similar), report
}

func (p Parser) list(object map[string]json.RawMessage, name string, origin place.Origin, report *Report) []place.Place {
	raw, ok := object[name]
	if !ok {
		return nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] != '[' {
		report.Rejected = append(report.Rejected, Rejection{List: name, Index: -1, Err: ErrNotArray})
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		report.Rejected = append(report.Rejected, Rejection{List: name, Index: -1, Err: fmt.Errorf("%w: %w", ErrNotArray, err)})
		return nil
	}

	kept := make([]place.Place, 0, min(len(entries), p.maxPerList))
	for i, entry := range entries {
		res := decodeCandidate(entry, origin)
		if res.err != nil {
			report.Rejected = append(report.Rejected, Rejection{List: name, Index: i, Err: res.err})
			continue
		}
		if len(kept) == p.maxPerList {
			report.Truncated++
			continue
		}
		kept = append(kept, res.place)
	}
	return kept
}

func decodeCandidate(raw json.RawMessage, origin place.Origin) candidateResult {
	var dto candidateDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return candidateResult{err: fmt.Errorf("%w: %w", ErrInvalidCandidate, err)}
	}
	if err := validation.Struct(dto); err != nil {
		return candidateResult{err: fmt.Errorf("%w: %w", ErrInvalidCandidate, err)}
	}

	coordinates, err := place.NewCoordinates(*dto.Coordinates.Latitude, *dto.Coordinates.Longitude)
	if err != nil {
		return candidateResult{err: fmt.Errorf("%w: %w", ErrInvalidCandidate, err)}
	}

	p, err := place.NewPlace(*dto.Name, coordinates, origin)
	if err != nil {
		return candidateResult{err: fmt.Errorf("%w: %w", ErrInvalidCandidate, err)}
	}

	p = p.WithCity(optionalString(dto.City)).WithDescription(optionalString(dto.Description))
	return candidateResult{place: p}
}

// optionalString returns the value of a JSON string, or "" for anything else.
func optionalString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

package recommendation

import (
	"fmt"
	"strings"

	"github.com/helixml/travelmap/domain/place"
)

// DefaultNearbyRadiusKM is the radius the provider is asked to search for nearby places.
const DefaultNearbyRadiusKM = 50

// SystemPrompt instructs the model to act as a guide answering in JSON only.
const SystemPrompt = "You are an AI travel guide. Return JSON only, without explanations."

// Placeholders used when a visited place lacks optional fields.
const (
	unknownCity        = "unknown"
	missingDescription = "—"
)

// Prompt is the chat payload sent to the recommendation provider.
type Prompt struct {
	System string
	User   string
}

// PromptBuilder renders requests into prompts. Output is deterministic for
// equal requests.
type PromptBuilder struct {
	maxPerList int
	radiusKM   int
}

// NewPromptBuilder creates a PromptBuilder with default limits.
func NewPromptBuilder() PromptBuilder {
	return PromptBuilder{
		maxPerList: DefaultMaxPerList,
		radiusKM:   DefaultNearbyRadiusKM,
	}
}

// WithMaxPerList returns a copy asking for at most n entries per list.
func (b PromptBuilder) WithMaxPerList(n int) PromptBuilder {
	if n > 0 {
		b.maxPerList = n
	}
	return b
}

// WithRadiusKM returns a copy using the given nearby radius.
func (b PromptBuilder) WithRadiusKM(km int) PromptBuilder {
	if km > 0 {
		b.radiusKM = km
	}
	return b
}

// MaxPerList returns the number of entries requested per list.
func (b PromptBuilder) MaxPerList() int { return b.maxPerList }

// Build renders the request.
func (b PromptBuilder) Build(req Request) Prompt {
	var sb strings.Builder

	sb.WriteString("The user has visited the following places:\n")
	visited := req.Visited()
	if len(visited) == 0 {
		sb.WriteString("- (no places recorded yet)\n")
	}
	for _, p := range visited {
		sb.WriteString(visitedLine(p))
		sb.WriteByte('\n')
	}

	loc := req.Location()
	fmt.Fprintf(&sb, "\nThe user is currently at coordinates: %.4f, %.4f\n\n", loc.Latitude(), loc.Longitude())

	sb.WriteString("Suggest:\n")
	fmt.Fprintf(&sb, "1. Up to %d interesting places nearby (in the same city or within a %d km radius) as the array \"nearby\"\n", b.maxPerList, b.radiusKM)
	fmt.Fprintf(&sb, "2. Up to %d places matching the interests shown by the visited places as the array \"similar\"\n\n", b.maxPerList)

	sb.WriteString("Respond with exactly one JSON object in this format:\n\n")
	sb.WriteString(responseFormat)
	sb.WriteString("\nOnly JSON. No explanations, no text outside the JSON object.\n")

	return Prompt{System: SystemPrompt, User: sb.String()}
}

func visitedLine(p place.Place) string {
	city := p.City()
	if city == "" {
		city = unknownCity
	}
	description := p.Description()
	if description == "" {
		description = missingDescription
	}
	return fmt.Sprintf("- %s (city: %s, description: %s)", p.Name(), city, description)
}

const responseFormat = `{
  "nearby": [
    { "name": "...", "city": "...", "coordinates": { "latitude": ..., "longitude": ... }, "description": "..." }
  ],
  "similar": [
    { "name": "...", "city": "...", "coordinates": { "latitude": ..., "longitude": ... }, "description": "..." }
  ]
}
`

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/travelmap/domain/place"
	"github.com/helixml/travelmap/domain/recommendation"
	"github.com/helixml/travelmap/infrastructure/provider"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeResolver struct {
	cities   map[string]string
	block    map[string]bool
	calls    atomic.Int64
	inFlight atomic.Int64
	maxSeen  atomic.Int64
	delay    time.Duration
}

func coordKey(lat, lng float64) string { return fmt.Sprintf("%.4f,%.4f", lat, lng) }

func (r *fakeResolver) Resolve(ctx context.Context, lat, lng float64) string {
	r.calls.Add(1)
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		seen := r.maxSeen.Load()
		if n <= seen || r.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	key := coordKey(lat, lng)
	if r.block[key] {
		<-ctx.Done()
		return place.UnknownLocality
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if city, ok := r.cities[key]; ok {
		return city
	}
	return place.UnknownLocality
}

type fakeGenerator struct {
	mu      sync.Mutex
	content string
	err     error
	hang    time.Duration
	calls   int
	last    provider.ChatCompletionRequest
}

func (g *fakeGenerator) ChatCompletion(_ context.Context, req provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	g.mu.Lock()
	g.calls++
	g.last = req
	hang := g.hang
	g.mu.Unlock()

	if hang > 0 {
		time.Sleep(hang)
	}
	if g.err != nil {
		return provider.ChatCompletionResponse{}, g.err
	}
	return provider.NewChatCompletionResponse(g.content, "stop", provider.NewUsage(1, 1, 2)), nil
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	msgs := g.last.Messages()
	if len(msgs) < 2 {
		return ""
	}
	return msgs[1].Content()
}

func visitedPlace(t *testing.T, name, city string, lat, lng float64) place.Place {
	t.Helper()
	p, err := place.NewPlace(name, place.MustCoordinates(lat, lng), place.OriginVisited)
	require.NoError(t, err)
	return p.WithCity(city)
}

const louvreOrsayResponse = "```json\n" + `{
  "nearby": [
    {"name": "Louvre", "city": "Paris", "coordinates": {"latitude": 48.8606, "longitude": 2.3376}, "description": "again"},
    {"name": "Musée d'Orsay", "city": "Paris", "coordinates": {"latitude": 48.8600, "longitude": 2.3266}, "description": "Impressionists"}
  ],
  "similar": [
    {"name": "musée d'orsay", "city": "paris", "coordinates": {"latitude": 48.8600, "longitude": 2.3266}},
    {"name": "Uffizi Gallery", "city": "Florence", "coordinates": {"latitude": 43.7687, "longitude": 11.2550}},
    {"name": "Broken", "coordinates": {"latitude": 999, "longitude": 0}}
  ]
}` + "\n```"

func TestRecommendation_LouvreOrsay(t *testing.T) {
	resolver := &fakeResolver{cities: map[string]string{coordKey(48.8530, 2.3499): "Paris"}}
	generator := &fakeGenerator{content: louvreOrsayResponse}
	svc := NewRecommendation(resolver, generator, discardLogger())

	req := recommendation.NewRequest([]place.Place{
		visitedPlace(t, "Louvre", "Paris", 48.8606, 2.3376),
		visitedPlace(t, "Notre-Dame", "", 48.8530, 2.3499),
	}, place.MustCoordinates(48.8584, 2.2945))

	result := svc.Recommend(context.Background(), req)

	require.Len(t, result.Nearby(), 1)
	assert.Equal(t, "Musée d'Orsay", result.Nearby()[0].Name())
	require.Len(t, result.Similar(), 1)
	assert.Equal(t, "Uffizi Gallery", result.Similar()[0].Name())

	assert.Equal(t, int64(1), resolver.calls.Load(), "only places without a city are resolved")
	assert.Equal(t, 1, generator.calls)
	prompt := generator.lastPrompt()
	assert.Contains(t, prompt, "- Notre-Dame (city: Paris, description: —)")
	assert.Contains(t, prompt, "coordinates: 48.8584, 2.2945")
	assert.InDelta(t, provider.DefaultTemperature, generator.last.Temperature(), 1e-9)
}

func TestRecommendation_UnresolvedCityStaysEmpty(t *testing.T) {
	resolver := &fakeResolver{}
	generator := &fakeGenerator{content: `{"nearby":[],"similar":[]}`}
	svc := NewRecommendation(resolver, generator, discardLogger())

	svc.Recommend(context.Background(), recommendation.NewRequest([]place.Place{
		visitedPlace(t, "Somewhere", "", 10, 10),
	}, place.MustCoordinates(10, 10)))

	assert.Contains(t, generator.lastPrompt(), "- Somewhere (city: unknown, description: —)")
}

func TestRecommendation_ProviderErrorDegrades(t *testing.T) {
	generator := &fakeGenerator{err: provider.NewProviderError("chat_completion", 0, "boom", provider.ErrUpstreamError)}
	svc := NewRecommendation(nil, generator, discardLogger())

	result := svc.Recommend(context.Background(), recommendation.NewRequest(nil, place.MustCoordinates(0, 0)))
	assert.True(t, result.IsEmpty())
	assert.NotNil(t, result.Nearby())
	assert.NotNil(t, result.Similar())
}

func TestRecommendation_GarbageDegrades(t *testing.T) {
	generator := &fakeGenerator{content: "I'm sorry, I can't do that."}
	svc := NewRecommendation(nil, generator, discardLogger())

	result := svc.Recommend(context.Background(), recommendation.NewRequest(nil, place.MustCoordinates(0, 0)))
	assert.True(t, result.IsEmpty())
}

func TestRecommendation_NoGenerator(t *testing.T) {
	svc := NewRecommendation(nil, nil, discardLogger())
	result := svc.Recommend(context.Background(), recommendation.NewRequest(nil, place.MustCoordinates(0, 0)))
	assert.True(t, result.IsEmpty())
}

func TestRecommendation_DeadlineWithHangingProvider(t *testing.T) {
	generator := &fakeGenerator{content: louvreOrsayResponse, hang: 2 * time.Second}
	svc := NewRecommendation(nil, generator, discardLogger(), WithDeadline(100*time.Millisecond))

	start := time.Now()
	result := svc.Recommend(context.Background(), recommendation.NewRequest(nil, place.MustCoordinates(0, 0)))
	elapsed := time.Since(start)

	assert.True(t, result.IsEmpty())
	assert.Less(t, elapsed, 600*time.Millisecond, "returns by deadline plus a small margin")
}

func TestRecommendation_CallerCancellation(t *testing.T) {
	generator := &fakeGenerator{content: louvreOrsayResponse, hang: time.Second}
	svc := NewRecommendation(nil, generator, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	result := svc.Recommend(ctx, recommendation.NewRequest(nil, place.MustCoordinates(0, 0)))
	assert.True(t, result.IsEmpty())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRecommendation_PartialGeocoding(t *testing.T) {
	resolver := &fakeResolver{
		cities: map[string]string{coordKey(41.8902, 12.4922): "Rome"},
		block:  map[string]bool{coordKey(45.4642, 9.1900): true},
	}
	generator := &fakeGenerator{content: `{"nearby":[],"similar":[]}`}
	svc := NewRecommendation(resolver, generator, discardLogger(), WithGeocodeBudget(50*time.Millisecond))

	start := time.Now()
	svc.Recommend(context.Background(), recommendation.NewRequest([]place.Place{
		visitedPlace(t, "Colosseum", "", 41.8902, 12.4922),
		visitedPlace(t, "Duomo", "", 45.4642, 9.1900),
	}, place.MustCoordinates(41.9, 12.5)))

	assert.Less(t, time.Since(start), time.Second)
	prompt := generator.lastPrompt()
	assert.Contains(t, prompt, "- Colosseum (city: Rome,")
	assert.Contains(t, prompt, "- Duomo (city: unknown,")
	assert.Equal(t, 1, generator.calls, "the provider is still called after the geocode budget")
}

func TestRecommendation_GeocodeConcurrencyBound(t *testing.T) {
	resolver := &fakeResolver{cities: map[string]string{}, delay: 20 * time.Millisecond}
	var visited []place.Place
	for i := range 12 {
		lat := 10 + float64(i)
		resolver.cities[coordKey(lat, 20)] = fmt.Sprintf("City %d", i)
		visited = append(visited, visitedPlace(t, fmt.Sprintf("Place %d", i), "", lat, 20))
	}
	generator := &fakeGenerator{content: `{}`}
	svc := NewRecommendation(resolver, generator, discardLogger(), WithGeocodeConcurrency(3))

	svc.Recommend(context.Background(), recommendation.NewRequest(visited, place.MustCoordinates(0, 0)))

	assert.Equal(t, int64(12), resolver.calls.Load())
	assert.LessOrEqual(t, resolver.maxSeen.Load(), int64(3))
	assert.Contains(t, generator.lastPrompt(), "- Place 11 (city: City 11,")
}

func TestRecommendation_MaxSuggestions(t *testing.T) {
	generator := &fakeGenerator{content: `{"nearby":[
		{"name":"A","coordinates":{"latitude":1,"longitude":1}},
		{"name":"B","coordinates":{"latitude":2,"longitude":2}},
		{"name":"C","coordinates":{"latitude":3,"longitude":3}}
	]}`}
	svc := NewRecommendation(nil, generator, discardLogger(), WithMaxSuggestions(2))

	result := svc.Recommend(context.Background(), recommendation.NewRequest(nil, place.MustCoordinates(0, 0)))
	assert.Len(t, result.Nearby(), 2)
	assert.Contains(t, generator.lastPrompt(), "Up to 2 interesting places")
}

type fakeLister struct {
	places []place.Place
	err    error
	owner  string
}

func (l *fakeLister) FindByOwner(_ context.Context, ownerID string) ([]place.Place, error) {
	l.owner = ownerID
	return l.places, l.err
}

func TestRecommendation_RecommendForOwner(t *testing.T) {
	generator := &fakeGenerator{content: louvreOrsayResponse}

	svc := NewRecommendation(nil, generator, discardLogger())
	_, err := svc.RecommendForOwner(context.Background(), "u1", place.MustCoordinates(0, 0))
	require.ErrorIs(t, err, ErrNoPlaceStore)

	lister := &fakeLister{places: []place.Place{visitedPlace(t, "Louvre", "Paris", 48.8606, 2.3376)}}
	svc = NewRecommendation(nil, generator, discardLogger(), WithPlaceLister(lister))
	result, err := svc.RecommendForOwner(context.Background(), "u1", place.MustCoordinates(48.8584, 2.2945))
	require.NoError(t, err)
	assert.Equal(t, "u1", lister.owner)
	assert.Len(t, result.Nearby(), 1)

	failing := &fakeLister{err: errors.New("db down")}
	svc = NewRecommendation(nil, generator, discardLogger(), WithPlaceLister(failing))
	_, err = svc.RecommendForOwner(context.Background(), "u2", place.MustCoordinates(0, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

package v1_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/travelmap"
	"github.com/helixml/travelmap/domain/place"
	v1 "github.com/helixml/travelmap/infrastructure/api/v1"
	"github.com/helixml/travelmap/infrastructure/api/v1/dto"
	"github.com/helixml/travelmap/infrastructure/geocode"
	"github.com/helixml/travelmap/infrastructure/provider"
)

const suggestions = "```json\n" + `{
  "nearby": [
    {"name": "Louvre", "city": "Paris", "coordinates": {"latitude": 48.8606, "longitude": 2.3376}},
    {"name": "Musée d'Orsay", "city": "Paris", "coordinates": {"latitude": 48.8600, "longitude": 2.3266}, "description": "Impressionists"}
  ],
  "similar": [
    {"name": "Uffizi Gallery", "city": "Florence", "coordinates": {"latitude": 43.7687, "longitude": 11.2550}},
    {"name": "Broken", "coordinates": {"latitude": 999, "longitude": 0}}
  ]
}` + "\n```"

type fakeGeocoder struct {
	city  string
	calls atomic.Int64
}

func (g *fakeGeocoder) Reverse(_ context.Context, _ place.Coordinates) (geocode.Address, error) {
	g.calls.Add(1)
	if g.city == "" {
		return geocode.Address{}, geocode.ErrNoLocality
	}
	return geocode.Address{City: g.city}, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	content string
	err     error
	prompts []string
}

func (g *fakeGenerator) ChatCompletion(_ context.Context, req provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	msgs := req.Messages()
	g.prompts = append(g.prompts, msgs[len(msgs)-1].Content())
	if g.err != nil {
		return provider.ChatCompletionResponse{}, g.err
	}
	return provider.NewChatCompletionResponse(g.content, "stop", provider.NewUsage(1, 1, 2)), nil
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func newTestClient(t *testing.T, generator provider.TextGenerator, geocoder geocode.ReverseGeocoder, opts ...travelmap.Option) *travelmap.Client {
	t.Helper()
	all := append([]travelmap.Option{
		travelmap.WithLogger(slog.New(slog.DiscardHandler)),
		travelmap.WithTextProvider(generator),
		travelmap.WithGeocoder(geocoder),
	}, opts...)
	client, err := travelmap.New(all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeRecommendations(t *testing.T, w *httptest.ResponseRecorder) dto.RecommendationResponse {
	t.Helper()
	var resp dto.RecommendationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func names(places []dto.PlaceSchema) []string {
	out := make([]string, len(places))
	for i, p := range places {
		out[i] = p.Name
	}
	return out
}

func TestRecommendationsRouter_Recommend(t *testing.T) {
	geocoder := &fakeGeocoder{city: "Paris"}
	generator := &fakeGenerator{content: suggestions}
	client := newTestClient(t, generator, geocoder)
	routes := v1.NewRecommendationsRouter(client).Routes()

	body := `{
		"userPlaces": [
			{"id": "1", "name": "Louvre", "city": "Paris", "coordinates": {"latitude": 48.8606, "longitude": 2.3376}},
			{"id": "2", "name": "Notre-Dame", "coordinates": {"latitude": 48.8530, "longitude": 2.3499}, "userId": "alice"}
		],
		"userLocation": [48.8584, 2.2945]
	}`
	w := post(t, routes, "/", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	resp := decodeRecommendations(t, w)
	assert.Equal(t, []string{"Musée d'Orsay"}, names(resp.Nearby))
	assert.Equal(t, []string{"Uffizi Gallery"}, names(resp.Similar))
	assert.Equal(t, "Impressionists", resp.Nearby[0].Description)
	assert.InDelta(t, 48.86, *resp.Nearby[0].Coordinates.Latitude, 1e-9)

	assert.Equal(t, int64(1), geocoder.calls.Load(), "only the place without a city is geocoded")
	assert.Contains(t, generator.lastPrompt(), "- Notre-Dame (city: Paris,")
}

func TestRecommendationsRouter_ProviderFailureIsStill200(t *testing.T) {
	generator := &fakeGenerator{err: provider.NewProviderError("chat_completion", http.StatusBadGateway, "upstream down", provider.ErrUpstreamError)}
	client := newTestClient(t, generator, &fakeGeocoder{})
	routes := v1.NewRecommendationsRouter(client).Routes()

	w := post(t, routes, "/", `{"userPlaces": [], "userLocation": [10, 10]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"nearby": [], "similar": []}`, w.Body.String())
}

func TestRecommendationsRouter_BadRequestsAre500WithEmptyShape(t *testing.T) {
	generator := &fakeGenerator{content: suggestions}
	client := newTestClient(t, generator, &fakeGeocoder{})
	routes := v1.NewRecommendationsRouter(client).Routes()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"userPlaces": [`},
		{"missing location", `{"userPlaces": []}`},
		{"short location", `{"userPlaces": [], "userLocation": [1]}`},
		{"out of range location", `{"userPlaces": [], "userLocation": [91, 0]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, routes, "/", tt.body)
			require.Equal(t, http.StatusInternalServerError, w.Code)
			assert.JSONEq(t, `{"nearby": [], "similar": []}`, w.Body.String())
		})
	}
	assert.Empty(t, generator.lastPrompt(), "the provider is not called for unparseable requests")
}

func TestRecommendationsRouter_InvalidVisitedEntriesAreSkipped(t *testing.T) {
	generator := &fakeGenerator{content: `{"nearby": [], "similar": []}`}
	client := newTestClient(t, generator, &fakeGeocoder{city: "Rome"})
	routes := v1.NewRecommendationsRouter(client).Routes()

	body := `{
		"userPlaces": [
			{"name": "", "coordinates": {"latitude": 1, "longitude": 1}},
			{"name": "Nowhere", "coordinates": {"latitude": 999, "longitude": 1}},
			{"name": "No coordinates"},
			{"name": "Colosseum", "city": "Rome", "coordinates": {"latitude": 41.8902, "longitude": 12.4922}}
		],
		"userLocation": [41.9, 12.5]
	}`
	w := post(t, routes, "/", body)

	require.Equal(t, http.StatusOK, w.Code)
	prompt := generator.lastPrompt()
	assert.Contains(t, prompt, "- Colosseum (city: Rome,")
	assert.NotContains(t, prompt, "Nowhere")
	assert.NotContains(t, prompt, "No coordinates")
}

func TestGeocodeRouter_Reverse(t *testing.T) {
	geocoder := &fakeGeocoder{city: "Lyon"}
	client := newTestClient(t, &fakeGenerator{}, geocoder)
	routes := v1.NewGeocodeRouter(client).Routes()

	get := func(query string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		routes.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reverse"+query, nil))
		return w
	}

	w := get("?lat=45.7640&lng=4.8357")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"city": "Lyon"}`, w.Body.String())

	w = get("?lat=45.7641&lng=4.8358")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), geocoder.calls.Load(), "same bucket is served from cache")

	w = get("?lat=999&lng=0")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"city": "Unknown place"}`, w.Body.String())

	w = get("?lat=abc&lng=0")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get("?lat=1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsersRouter_Recommend(t *testing.T) {
	generator := &fakeGenerator{content: suggestions}
	client := newTestClient(t, generator, &fakeGeocoder{city: "Paris"},
		travelmap.WithSQLite(filepath.Join(t.TempDir(), "places.db")),
	)
	store, err := client.Places()
	require.NoError(t, err)

	louvre, err := place.NewPlace("Louvre", place.MustCoordinates(48.8606, 2.3376), place.OriginVisited)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "alice", louvre.WithID("p1").WithCity("Paris")))

	uffizi, err := place.NewPlace("Uffizi Gallery", place.MustCoordinates(43.7687, 11.2550), place.OriginVisited)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "bob", uffizi.WithID("p2").WithCity("Florence")))

	routes := v1.NewUsersRouter(client).Routes()
	w := post(t, routes, "/alice/recommendations", `{"userLocation": [48.8584, 2.2945]}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeRecommendations(t, w)
	assert.Equal(t, []string{"Musée d'Orsay"}, names(resp.Nearby))
	assert.Equal(t, []string{"Uffizi Gallery"}, names(resp.Similar), "other owners' places do not count as visited")
	assert.Contains(t, generator.lastPrompt(), "- Louvre (city: Paris,")
}

func TestUsersRouter_Errors(t *testing.T) {
	t.Run("no database", func(t *testing.T) {
		client := newTestClient(t, &fakeGenerator{}, &fakeGeocoder{})
		routes := v1.NewUsersRouter(client).Routes()

		w := post(t, routes, "/alice/recommendations", `{"userLocation": [1, 2]}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad body", func(t *testing.T) {
		client := newTestClient(t, &fakeGenerator{}, &fakeGeocoder{},
			travelmap.WithSQLite(filepath.Join(t.TempDir(), "places.db")),
		)
		routes := v1.NewUsersRouter(client).Routes()

		assert.Equal(t, http.StatusBadRequest, post(t, routes, "/alice/recommendations", `not json`).Code)
		assert.Equal(t, http.StatusBadRequest, post(t, routes, "/alice/recommendations", `{"userLocation": [1]}`).Code)
		assert.Equal(t, http.StatusBadRequest, post(t, routes, "/alice/recommendations", `{"userLocation": [100, 0]}`).Code)
	})
}

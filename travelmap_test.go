package travelmap_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/travelmap"
	"github.com/helixml/travelmap/domain/place"
	"github.com/helixml/travelmap/domain/recommendation"
	"github.com/helixml/travelmap/infrastructure/geocode"
	"github.com/helixml/travelmap/infrastructure/provider"
	"github.com/helixml/travelmap/internal/config"
)

const louvreOrsay = "```json\n" + `{
  "nearby": [
    {"name": "Louvre", "city": "Paris", "coordinates": {"latitude": 48.8606, "longitude": 2.3376}},
    {"name": "Musée d'Orsay", "city": "Paris", "coordinates": {"latitude": 48.8600, "longitude": 2.3266}}
  ],
  "similar": [
    {"name": "Uffizi Gallery", "city": "Florence", "coordinates": {"latitude": 43.7687, "longitude": 11.2550}}
  ]
}` + "\n```"

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type upstream struct {
	nominatim *httptest.Server
	chat      *httptest.Server
	geocodes  atomic.Int64
	chats     atomic.Int64
}

func newUpstream(t *testing.T, content string) *upstream {
	t.Helper()
	u := &upstream{}
	u.nominatim = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.geocodes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"address":{"city":"Paris"}}`))
	}))
	u.chat = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.chats.Add(1)
		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(u.nominatim.Close)
	t.Cleanup(u.chat.Close)
	return u
}

func (u *upstream) options() []travelmap.Option {
	return []travelmap.Option{
		travelmap.WithLogger(discardLogger()),
		travelmap.WithNominatimConfig(geocode.NominatimConfig{BaseURL: u.nominatim.URL, UserAgent: "travelmap-test", Timeout: time.Second}),
		travelmap.WithOpenAIConfig(provider.OpenAIConfig{APIKey: "sk-test", BaseURL: u.chat.URL, Retry: provider.NoRetry()}),
	}
}

func visited(t *testing.T, name, city string, lat, lng float64) place.Place {
	t.Helper()
	p, err := place.NewPlace(name, place.MustCoordinates(lat, lng), place.OriginVisited)
	require.NoError(t, err)
	return p.WithCity(city)
}

func TestClient_RecommendEndToEnd(t *testing.T) {
	u := newUpstream(t, louvreOrsay)
	client, err := travelmap.New(u.options()...)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	assert.True(t, client.HasProvider())

	req := recommendation.NewRequest([]place.Place{
		visited(t, "Louvre", "", 48.8606, 2.3376),
		visited(t, "Notre-Dame", "Paris", 48.8530, 2.3499),
	}, place.MustCoordinates(48.8584, 2.2945))

	result := client.Recommendations.Recommend(context.Background(), req)

	require.Len(t, result.Nearby(), 1)
	assert.Equal(t, "Musée d'Orsay", result.Nearby()[0].Name())
	assert.Equal(t, place.OriginNearby, result.Nearby()[0].Origin())
	require.Len(t, result.Similar(), 1)
	assert.Equal(t, "Uffizi Gallery", result.Similar()[0].Name())
	assert.Equal(t, int64(1), u.geocodes.Load())
	assert.Equal(t, int64(1), u.chats.Load())

	client.Recommendations.Recommend(context.Background(), req)
	assert.Equal(t, int64(1), u.geocodes.Load(), "the second run is served from the locality cache")
}

func TestClient_WithoutProvider(t *testing.T) {
	u := newUpstream(t, louvreOrsay)
	client, err := travelmap.New(
		travelmap.WithLogger(discardLogger()),
		travelmap.WithNominatimConfig(geocode.NominatimConfig{BaseURL: u.nominatim.URL, Timeout: time.Second}),
	)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	assert.False(t, client.HasProvider())
	result := client.Recommendations.Recommend(context.Background(),
		recommendation.NewRequest(nil, place.MustCoordinates(0, 0)))
	assert.True(t, result.IsEmpty())
	assert.Zero(t, u.chats.Load())
}

func TestClient_ResolverUsesNominatim(t *testing.T) {
	u := newUpstream(t, "")
	client, err := travelmap.New(u.options()...)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	assert.Equal(t, "Paris", client.Resolver.Resolve(context.Background(), 48.8566, 2.3522))
	assert.Equal(t, geocode.UnknownPlace, client.Resolver.Resolve(context.Background(), 999, 0))
}

func TestClient_Places(t *testing.T) {
	t.Run("without database", func(t *testing.T) {
		client, err := travelmap.New(travelmap.WithLogger(discardLogger()))
		require.NoError(t, err)
		defer func() { _ = client.Close() }()

		_, err = client.Places()
		assert.ErrorIs(t, err, travelmap.ErrNoDatabase)
		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("with sqlite", func(t *testing.T) {
		u := newUpstream(t, louvreOrsay)
		opts := append(u.options(), travelmap.WithSQLite(filepath.Join(t.TempDir(), "places.db")))
		client, err := travelmap.New(opts...)
		require.NoError(t, err)
		defer func() { _ = client.Close() }()

		require.NoError(t, client.Ping(context.Background()))
		store, err := client.Places()
		require.NoError(t, err)

		louvre := visited(t, "Louvre", "Paris", 48.8606, 2.3376).WithID("p1")
		require.NoError(t, store.Save(context.Background(), "alice", louvre))

		result, err := client.Recommendations.RecommendForOwner(context.Background(), "alice", place.MustCoordinates(48.8584, 2.2945))
		require.NoError(t, err)
		require.Len(t, result.Nearby(), 1)
		assert.Equal(t, "Musée d'Orsay", result.Nearby()[0].Name())

		require.NoError(t, client.Close(), "database closes cleanly")
		_, err = store.FindByOwner(context.Background(), "alice")
		assert.Error(t, err, "store unusable after close")
	})
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestClient_Close(t *testing.T) {
	var closed atomic.Int64
	client, err := travelmap.New(
		travelmap.WithLogger(discardLogger()),
		travelmap.WithCloser(closerFunc(func() error {
			closed.Add(1)
			return errors.New("close failed")
		})),
	)
	require.NoError(t, err)

	require.NoError(t, client.Close(), "closer errors are logged, not returned")
	assert.Equal(t, int64(1), closed.Load())
	assert.ErrorIs(t, client.Close(), travelmap.ErrClientClosed)
	assert.ErrorIs(t, client.Ping(context.Background()), travelmap.ErrClientClosed)
}

func TestClient_WithAppConfig(t *testing.T) {
	u := newUpstream(t, louvreOrsay)
	cfg := config.NewAppConfigWithOptions(
		config.WithAPIKeys([]string{"k1", "k2"}),
		config.WithRecommendationEndpoint(config.NewEndpointWithOptions(
			config.WithBaseURL(u.chat.URL),
			config.WithAPIKey("sk-test"),
			config.WithModel("test-model"),
			config.WithMaxRetries(0),
		)),
		config.WithGeocoderConfig(config.NewGeocoderConfig().WithBaseURL(u.nominatim.URL).WithRateLimit(0)),
		config.WithPipelineConfig(config.NewPipelineConfig().WithMaxSuggestions(1)),
	)

	client, err := travelmap.New(travelmap.WithAppConfig(cfg), travelmap.WithLogger(discardLogger()))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	assert.Equal(t, []string{"k1", "k2"}, client.APIKeys())
	assert.True(t, client.HasProvider())

	result := client.Recommendations.Recommend(context.Background(),
		recommendation.NewRequest(nil, place.MustCoordinates(48.8584, 2.2945)))
	assert.Len(t, result.Nearby(), 1, "max suggestions comes from the pipeline config")
	assert.Equal(t, int64(1), u.chats.Load())
}

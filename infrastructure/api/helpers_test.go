package api_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helixml/travelmap"
	"github.com/helixml/travelmap/domain/place"
	"github.com/helixml/travelmap/infrastructure/geocode"
	"github.com/helixml/travelmap/infrastructure/provider"
)

const orsay = `{"nearby": [{"name": "Musée d'Orsay", "city": "Paris", "coordinates": {"latitude": 48.86, "longitude": 2.3266}}], "similar": []}`

type stubGeocoder struct {
	calls atomic.Int64
}

func (g *stubGeocoder) Reverse(_ context.Context, _ place.Coordinates) (geocode.Address, error) {
	g.calls.Add(1)
	return geocode.Address{Town: "Giverny"}, nil
}

type stubGenerator struct {
	calls atomic.Int64
}

func (g *stubGenerator) ChatCompletion(_ context.Context, _ provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	g.calls.Add(1)
	return provider.NewChatCompletionResponse(orsay, "stop", provider.NewUsage(1, 1, 2)), nil
}

func newTestClient(t *testing.T, opts ...travelmap.Option) *travelmap.Client {
	t.Helper()
	all := append([]travelmap.Option{
		travelmap.WithLogger(slog.New(slog.DiscardHandler)),
		travelmap.WithTextProvider(&stubGenerator{}),
		travelmap.WithGeocoder(&stubGeocoder{}),
	}, opts...)
	client, err := travelmap.New(all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

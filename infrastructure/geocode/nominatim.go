// Package geocode resolves coordinates to locality names through a reverse
// geocoding service, with caching and request coalescing.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/helixml/travelmap/domain/place"
	"github.com/helixml/travelmap/infrastructure/provider"
	"github.com/helixml/travelmap/internal/metrics"
)

// Nominatim defaults. The public instance allows at most one request per second.
const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "travelmap/1.0"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 1.0
	reverseZoom      = 10
	maxBodyBytes     = 1 << 20
)

var (
	// ErrNoLocality indicates a response without city, town, village or county.
	ErrNoLocality = errors.New("no locality in address")

	// ErrUnableToGeocode indicates the service reported it could not geocode the point.
	ErrUnableToGeocode = errors.New("unable to geocode")
)

// Address is the subset of a reverse geocoding address used to name a locality.
type Address struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	County  string `json:"county"`
}

// Locality returns the first non-empty of city, town, village and county.
func (a Address) Locality() string {
	for _, v := range []string{a.City, a.Town, a.Village, a.County} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

type reverseResponse struct {
	Address     *Address `json:"address"`
	DisplayName string   `json:"display_name"`
	Error       any      `json:"error"`
}

// ReverseGeocoder turns coordinates into an address.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, coordinates place.Coordinates) (Address, error)
}

// NominatimConfig configures the Nominatim client.
type NominatimConfig struct {
	BaseURL   string
	UserAgent string
	Email     string
	Language  string
	Timeout   time.Duration
	// RateLimit is the maximum number of requests per second; zero or less disables limiting.
	RateLimit  float64
	HTTPClient *http.Client
}

// Nominatim is a reverse geocoding client for the OpenStreetMap Nominatim API.
// It is rate limited and guarded by a circuit breaker, and never retries.
type Nominatim struct {
	baseURL   string
	userAgent string
	email     string
	language  string
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[Address]
	logger    *slog.Logger
}

// NewNominatim creates a Nominatim client.
func NewNominatim(cfg NominatimConfig, logger *slog.Logger) *Nominatim {
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	n := &Nominatim{
		baseURL:   baseURL,
		userAgent: userAgent,
		email:     cfg.Email,
		language:  cfg.Language,
		client:    client,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
	n.breaker = gobreaker.NewCircuitBreaker[Address](gobreaker.Settings{
		Name:        "nominatim",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.GeocodeCircuitState.Set(stateValue(to))
		},
		IsSuccessful: breakerSuccess,
	})
	return n
}

// Reverse resolves the address at coordinates.
func (n *Nominatim) Reverse(ctx context.Context, coordinates place.Coordinates) (Address, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		metrics.RecordGeocodeRequest("rate_limited")
		return Address{}, fmt.Errorf("wait for rate limiter: %w", err)
	}

	addr, err := n.breaker.Execute(func() (Address, error) {
		return n.reverse(ctx, coordinates)
	})
	switch {
	case err == nil:
		metrics.RecordGeocodeRequest("success")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordGeocodeRequest("rejected")
	case errors.Is(err, ErrNoLocality), errors.Is(err, ErrUnableToGeocode):
		metrics.RecordGeocodeRequest("no_locality")
	default:
		metrics.RecordGeocodeRequest("error")
	}
	return addr, err
}

func (n *Nominatim) reverse(ctx context.Context, coordinates place.Coordinates) (Address, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(coordinates.Latitude(), 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coordinates.Longitude(), 'f', -1, 64))
	q.Set("zoom", strconv.Itoa(reverseZoom))
	q.Set("addressdetails", "1")
	if n.email != "" {
		q.Set("email", n.email)
	}
	if n.language != "" {
		q.Set("accept-language", n.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return Address{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return Address{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Address{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Address{}, provider.NewProviderError("reverse_geocode", resp.StatusCode, http.StatusText(resp.StatusCode), nil)
	}

	var parsed reverseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Address{}, provider.NewProviderError("reverse_geocode", resp.StatusCode, "malformed response", err)
	}

	if parsed.Error != nil {
		return Address{}, provider.NewProviderError("reverse_geocode", resp.StatusCode, fmt.Sprint(parsed.Error), ErrUnableToGeocode)
	}

	if parsed.Address == nil || parsed.Address.Locality() == "" {
		return Address{}, ErrNoLocality
	}
	return *parsed.Address, nil
}

// breakerSuccess counts answers from a healthy service as successes, including
// points the service could not name and callers giving up.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrNoLocality) || errors.Is(err, ErrUnableToGeocode) || errors.Is(err, context.Canceled) {
		return true
	}
	var provErr *provider.ProviderError
	if errors.As(err, &provErr) {
		code := provErr.StatusCode()
		return code >= 400 && code < 500 && code != http.StatusTooManyRequests
	}
	return false
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

var _ ReverseGeocoder = (*Nominatim)(nil)

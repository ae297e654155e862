package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/helixml/travelmap/domain/place"
	"github.com/helixml/travelmap/internal/metrics"
)

// UnknownPlace is returned when a locality cannot be resolved.
const UnknownPlace = place.UnknownLocality

// ErrUnresolved indicates the locality could not be determined.
var ErrUnresolved = errors.New("locality unresolved")

// Resolver resolves coordinates to a locality name. Successful results are
// cached per bucket, and concurrent misses for the same bucket share one
// outbound request.
type Resolver struct {
	geocoder ReverseGeocoder
	cache    *Cache
	group    singleflight.Group
	timeout  time.Duration
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLookupTimeout bounds each outbound lookup.
func WithLookupTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithCache sets the cache shared by the resolver.
func WithCache(c *Cache) ResolverOption {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// NewResolver creates a Resolver backed by geocoder.
func NewResolver(geocoder ReverseGeocoder, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		geocoder: geocoder,
		timeout:  DefaultTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewCache(DefaultCacheSize, DefaultCacheTTL, DefaultCachePrecision)
	}
	return r
}

// Cache returns the resolver cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// Resolve returns the locality at (lat, lng), or UnknownPlace on any failure.
func (r *Resolver) Resolve(ctx context.Context, lat, lng float64) string {
	coordinates, err := place.NewCoordinates(lat, lng)
	if err != nil {
		r.logger.WarnContext(ctx, "reverse geocode skipped", "step", metrics.StageGeocode, "latitude", lat, "longitude", lng, "error", err)
		return UnknownPlace
	}
	city, err := r.Lookup(ctx, coordinates)
	if err != nil {
		return UnknownPlace
	}
	return city
}

// Lookup returns the locality at coordinates or an error wrapping ErrUnresolved.
func (r *Resolver) Lookup(ctx context.Context, coordinates place.Coordinates) (string, error) {
	key := r.cache.Key(coordinates)
	if entry, ok := r.cache.Get(key); ok {
		metrics.RecordGeocodeCache(true)
		return entry.City(), nil
	}
	metrics.RecordGeocodeCache(false)

	if r.geocoder == nil {
		return "", fmt.Errorf("%w: no geocoder configured", ErrUnresolved)
	}

	// The shared lookup outlives any single caller, so it runs detached
	// from the caller's cancellation under its own timeout.
	flight := context.WithoutCancel(ctx)
	ch := r.group.DoChan(fmt.Sprintf("%d:%d", key.lat, key.lng), func() (any, error) {
		if entry, ok := r.cache.Get(key); ok {
			return entry.City(), nil
		}
		lookupCtx, cancel := context.WithTimeout(flight, r.timeout)
		defer cancel()

		addr, err := r.geocoder.Reverse(lookupCtx, coordinates)
		if err != nil {
			return "", err
		}
		city := addr.Locality()
		if city == "" {
			return "", ErrNoLocality
		}
		r.cache.Put(key, city)
		return city, nil
	})

	select {
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "reverse geocode abandoned", "step", metrics.StageGeocode, "coordinates", coordinates.String(), "error", ctx.Err())
		return "", fmt.Errorf("%w: %w", ErrUnresolved, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			r.logger.WarnContext(ctx, "reverse geocode failed", "step", metrics.StageGeocode, "coordinates", coordinates.String(), "error", res.Err)
			return "", fmt.Errorf("%w: %w", ErrUnresolved, res.Err)
		}
		return res.Val.(string), nil
	}
}

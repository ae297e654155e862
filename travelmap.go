// Package travelmap enriches a travel log with place recommendations.
//
// Given the places a user has visited and their current location, travelmap
// resolves missing city names by reverse geocoding, asks an OpenAI-compatible
// chat model for nearby and interest-based suggestions, validates the reply
// and removes anything the user has already seen.
//
// Basic usage:
//
//	client, err := travelmap.New(
//	    travelmap.WithOpenRouter(os.Getenv("OPENROUTER_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	here := place.MustCoordinates(48.8606, 2.3376)
//	result := client.Recommendations.Recommend(ctx, recommendation.NewRequest(visited, here))
//	for _, p := range result.Nearby() {
//	    fmt.Println(p.Name(), p.City())
//	}
package travelmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/helixml/travelmap/application/service"
	"github.com/helixml/travelmap/infrastructure/geocode"
	"github.com/helixml/travelmap/infrastructure/persistence"
	"github.com/helixml/travelmap/infrastructure/provider"
	"github.com/helixml/travelmap/internal/config"
	"github.com/helixml/travelmap/internal/database"
)

const (
	postgresMaxOpen      = 10
	postgresMaxIdle      = 5
	postgresConnLifetime = 30 * time.Minute
)

// Client is the main entry point for the travelmap library.
//
// Access resources via struct fields:
//
//	client.Recommendations.Recommend(ctx, req)
//	client.Resolver.Resolve(ctx, lat, lng)
type Client struct {
	Recommendations *service.Recommendation
	Resolver        *geocode.Resolver

	db          *database.Database
	places      *persistence.PlaceStore
	textModel   string
	hasProvider bool
	closers     []io.Closer
	logger      *slog.Logger
	apiKeys     []string
	closed      atomic.Bool
	mu          sync.Mutex
}

// New creates a new Client with the given options. Without a database the
// client serves stateless recommendations only. Without a text provider
// every recommendation is empty.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = config.DefaultLogger()
	}

	client := &Client{
		closers: cfg.closers,
		logger:  logger,
		apiKeys: cfg.apiKeys,
	}

	if cfg.dbURL != "" {
		ctx := context.Background()
		db, err := database.NewDatabase(ctx, cfg.dbURL, logger)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := persistence.AutoMigrate(db); err != nil {
			errClose := db.Close()
			return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
		}
		if db.IsPostgres() {
			if err := db.ConfigurePool(postgresMaxOpen, postgresMaxIdle, postgresConnLifetime); err != nil {
				errClose := db.Close()
				return nil, errors.Join(err, errClose)
			}
		}
		store := persistence.NewPlaceStore(db)
		client.db = &db
		client.places = &store
	}

	geocoder := cfg.geocoder
	if geocoder == nil {
		geocoder = geocode.NewNominatim(cfg.nominatim, logger)
	}
	client.Resolver = geocode.NewResolver(geocoder, logger,
		geocode.WithCache(geocode.NewCache(cfg.cacheSize, cfg.cacheTTL, cfg.cachePrec)),
		geocode.WithLookupTimeout(cfg.nominatim.Timeout),
	)

	generator := cfg.textProvider
	if generator == nil && cfg.openAI != nil && cfg.openAI.APIKey != "" {
		p := provider.NewOpenAIProviderFromConfig(*cfg.openAI)
		client.textModel = p.Model()
		generator = p
	}
	if generator == nil {
		logger.Warn("recommendations disabled", slog.Any("error", provider.ErrNotConfigured))
	}
	client.hasProvider = generator != nil

	pipeline := cfg.pipeline
	svcOpts := []service.RecommendationOption{
		service.WithDeadline(pipeline.Deadline()),
		service.WithGeocodeBudget(pipeline.GeocodeBudget()),
		service.WithGeocodeConcurrency(pipeline.GeocodeConcurrency()),
		service.WithMaxSuggestions(pipeline.MaxSuggestions()),
		service.WithDuplicateThreshold(pipeline.DedupThreshold()),
		service.WithGeneration(cfg.maxTokens, cfg.temperature),
	}
	if client.places != nil {
		svcOpts = append(svcOpts, service.WithPlaceLister(client.places))
	}
	client.Recommendations = service.NewRecommendation(client.Resolver, generator, logger, svcOpts...)

	logger.Info("travelmap client ready",
		slog.Bool("database", client.db != nil),
		slog.Bool("provider", client.hasProvider),
		slog.String("model", client.textModel),
	)
	return client, nil
}

// Places returns the place store, or ErrNoDatabase when none is configured.
func (c *Client) Places() (*persistence.PlaceStore, error) {
	if c.places == nil {
		return nil, ErrNoDatabase
	}
	return c.places, nil
}

// HasProvider reports whether a text provider is configured.
func (c *Client) HasProvider() bool {
	return c.hasProvider
}

// Ping checks the database connection when one is configured.
func (c *Client) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if c.db == nil {
		return nil
	}
	return c.db.Ping(ctx)
}

// APIKeys returns the keys required by owner-scoped endpoints.
func (c *Client) APIKeys() []string {
	return append([]string(nil), c.apiKeys...)
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Close releases all resources.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}

	c.logger.Info("travelmap client closed")
	return nil
}

package travelmap

import (
	"io"
	"log/slog"
	"time"

	"github.com/helixml/travelmap/infrastructure/geocode"
	"github.com/helixml/travelmap/infrastructure/provider"
	"github.com/helixml/travelmap/internal/config"
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	dbURL        string
	textProvider provider.TextGenerator
	openAI       *provider.OpenAIConfig
	geocoder     geocode.ReverseGeocoder
	nominatim    geocode.NominatimConfig
	cacheSize    int
	cacheTTL     time.Duration
	cachePrec    int
	pipeline     config.PipelineConfig
	maxTokens    int
	temperature  float64
	logger       *slog.Logger
	apiKeys      []string
	closers      []io.Closer
}

// newClientConfig creates a clientConfig with defaults from internal/config.
func newClientConfig() *clientConfig {
	geo := config.NewGeocoderConfig()
	return &clientConfig{
		nominatim: geocode.NominatimConfig{
			BaseURL:   geo.BaseURL(),
			UserAgent: geo.UserAgent(),
			Timeout:   geo.Timeout(),
			RateLimit: geo.RateLimit(),
		},
		cacheSize:   geo.CacheSize(),
		cacheTTL:    geo.CacheTTL(),
		cachePrec:   geo.CachePrecision(),
		pipeline:    config.NewPipelineConfig(),
		maxTokens:   config.DefaultEndpointMaxTokens,
		temperature: config.DefaultEndpointTemperature,
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite stores places in the SQLite database at path.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.dbURL = "sqlite:///" + path
	}
}

// WithPostgres stores places in PostgreSQL.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.dbURL = dsn
	}
}

// WithDatabaseURL stores places in the database named by url
// (sqlite:///path or postgres://...). An empty url disables the place store.
func WithDatabaseURL(url string) Option {
	return func(c *clientConfig) {
		c.dbURL = url
	}
}

// WithOpenRouter uses OpenRouter with the default model.
func WithOpenRouter(apiKey string) Option {
	return func(c *clientConfig) {
		c.openAI = &provider.OpenAIConfig{APIKey: apiKey}
	}
}

// WithOpenAIConfig uses any OpenAI-compatible chat endpoint.
func WithOpenAIConfig(cfg provider.OpenAIConfig) Option {
	return func(c *clientConfig) {
		c.openAI = &cfg
	}
}

// WithTextProvider sets a custom text generation provider. It takes
// precedence over WithOpenRouter and WithOpenAIConfig.
func WithTextProvider(p provider.TextGenerator) Option {
	return func(c *clientConfig) {
		c.textProvider = p
	}
}

// WithGeocoder sets a custom reverse geocoder.
func WithGeocoder(g geocode.ReverseGeocoder) Option {
	return func(c *clientConfig) {
		c.geocoder = g
	}
}

// WithNominatimConfig configures the built-in Nominatim geocoder.
func WithNominatimConfig(cfg geocode.NominatimConfig) Option {
	return func(c *clientConfig) {
		c.nominatim = cfg
	}
}

// WithGeocodeCache sizes the locality cache. precision is the number of
// coordinate decimals that share one entry.
func WithGeocodeCache(size int, ttl time.Duration, precision int) Option {
	return func(c *clientConfig) {
		c.cacheSize = size
		c.cacheTTL = ttl
		c.cachePrec = precision
	}
}

// WithPipelineConfig sets limits, thresholds and deadlines of the pipeline.
func WithPipelineConfig(p config.PipelineConfig) Option {
	return func(c *clientConfig) {
		c.pipeline = p
	}
}

// WithGeneration sets the completion token limit and sampling temperature.
func WithGeneration(maxTokens int, temperature float64) Option {
	return func(c *clientConfig) {
		c.maxTokens = maxTokens
		c.temperature = temperature
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithAPIKeys sets the keys required by owner-scoped HTTP endpoints.
func WithAPIKeys(keys ...string) Option {
	return func(c *clientConfig) {
		c.apiKeys = append([]string(nil), keys...)
	}
}

// WithCloser registers a resource closed with the client.
func WithCloser(closer io.Closer) Option {
	return func(c *clientConfig) {
		c.closers = append(c.closers, closer)
	}
}

// WithAppConfig applies an environment-derived AppConfig: database, chat
// endpoint, geocoder, cache, pipeline and API keys.
func WithAppConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) {
		c.dbURL = cfg.DBURL()
		c.apiKeys = cfg.APIKeys()

		e := cfg.Recommendation()
		if e.IsConfigured() {
			c.openAI = &provider.OpenAIConfig{
				APIKey:    e.APIKey(),
				BaseURL:   e.BaseURL(),
				ChatModel: e.Model(),
				Timeout:   e.Timeout(),
				Retry:     retryPolicy(e),
				Referer:   e.Referer(),
				Title:     e.Title(),
			}
		}
		c.maxTokens = e.MaxTokens()
		c.temperature = e.Temperature()

		g := cfg.Geocoder()
		c.nominatim = geocode.NominatimConfig{
			BaseURL:   g.BaseURL(),
			UserAgent: g.UserAgent(),
			Email:     g.Email(),
			Language:  g.Language(),
			Timeout:   g.Timeout(),
			RateLimit: g.RateLimit(),
		}
		c.cacheSize = g.CacheSize()
		c.cacheTTL = g.CacheTTL()
		c.cachePrec = g.CachePrecision()

		c.pipeline = cfg.Pipeline()
	}
}

func retryPolicy(e config.Endpoint) provider.RetryPolicy {
	if e.MaxRetries() <= 0 {
		return provider.NoRetry()
	}
	policy := provider.DefaultRetryPolicy()
	policy.MaxRetries = e.MaxRetries()
	policy.InitialDelay = e.InitialDelay()
	policy.BackoffFactor = e.BackoffFactor()
	return policy
}

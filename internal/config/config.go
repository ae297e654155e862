// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                 = "0.0.0.0"
	DefaultPort                 = 8080
	DefaultLogLevel             = "INFO"
	DefaultRateLimitRequests    = 60
	DefaultRateLimitWindow      = time.Minute
	DefaultEndpointBaseURL      = "https://openrouter.ai/api/v1"
	DefaultEndpointModel        = "mistralai/mistral-7b-instruct"
	DefaultEndpointTimeout      = 15 * time.Second
	DefaultEndpointMaxRetries   = 2
	DefaultEndpointInitialDelay = 500 * time.Millisecond
	DefaultEndpointBackoff      = 2.0
	DefaultEndpointMaxTokens    = 1024
	DefaultEndpointTemperature  = 0.8
	DefaultEndpointTitle        = "travelmap"
	DefaultGeocoderBaseURL      = "https://nominatim.openstreetmap.org"
	DefaultGeocoderUserAgent    = "travelmap/1.0"
	DefaultGeocoderTimeout      = 10 * time.Second
	DefaultGeocoderRateLimit    = 1.0
	DefaultGeocoderCacheSize    = 10000
	DefaultGeocoderCacheTTL     = 24 * time.Hour
	DefaultGeocoderPrecision    = 2
	DefaultMaxSuggestions       = 3
	DefaultDedupThreshold       = 250.0
	DefaultPipelineDeadline     = 20 * time.Second
	DefaultGeocodeBudget        = 5 * time.Second
	DefaultGeocodeConcurrency   = 4
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Endpoint configures the OpenAI-compatible recommendation endpoint.
type Endpoint struct {
	baseURL       string
	model         string
	apiKey        string
	timeout       time.Duration
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
	maxTokens     int
	temperature   float64
	referer       string
	title         string
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		baseURL:       DefaultEndpointBaseURL,
		model:         DefaultEndpointModel,
		timeout:       DefaultEndpointTimeout,
		maxRetries:    DefaultEndpointMaxRetries,
		initialDelay:  DefaultEndpointInitialDelay,
		backoffFactor: DefaultEndpointBackoff,
		maxTokens:     DefaultEndpointMaxTokens,
		temperature:   DefaultEndpointTemperature,
		title:         DefaultEndpointTitle,
	}
}

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the per-attempt request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// MaxTokens returns the completion token limit.
func (e Endpoint) MaxTokens() int { return e.maxTokens }

// Temperature returns the sampling temperature.
func (e Endpoint) Temperature() float64 { return e.temperature }

// Referer returns the HTTP-Referer header sent to the endpoint.
func (e Endpoint) Referer() string { return e.referer }

// Title returns the X-Title header sent to the endpoint.
func (e Endpoint) Title() string { return e.title }

// IsConfigured returns true if the endpoint has an API key.
func (e Endpoint) IsConfigured() bool {
	return e.apiKey != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int) EndpointOption {
	return func(e *Endpoint) { e.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) EndpointOption {
	return func(e *Endpoint) { e.temperature = t }
}

// WithReferer sets the HTTP-Referer header.
func WithReferer(referer string) EndpointOption {
	return func(e *Endpoint) { e.referer = referer }
}

// WithTitle sets the X-Title header.
func WithTitle(title string) EndpointOption {
	return func(e *Endpoint) { e.title = title }
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// GeocoderConfig configures reverse geocoding and its cache.
type GeocoderConfig struct {
	baseURL        string
	userAgent      string
	email          string
	language       string
	timeout        time.Duration
	rateLimit      float64
	cacheSize      int
	cacheTTL       time.Duration
	cachePrecision int
}

// NewGeocoderConfig creates a new GeocoderConfig with defaults.
func NewGeocoderConfig() GeocoderConfig {
	return GeocoderConfig{
		baseURL:        DefaultGeocoderBaseURL,
		userAgent:      DefaultGeocoderUserAgent,
		timeout:        DefaultGeocoderTimeout,
		rateLimit:      DefaultGeocoderRateLimit,
		cacheSize:      DefaultGeocoderCacheSize,
		cacheTTL:       DefaultGeocoderCacheTTL,
		cachePrecision: DefaultGeocoderPrecision,
	}
}

// BaseURL returns the geocoder base URL.
func (g GeocoderConfig) BaseURL() string { return g.baseURL }

// UserAgent returns the User-Agent sent to the geocoder.
func (g GeocoderConfig) UserAgent() string { return g.userAgent }

// Email returns the contact address sent to the geocoder.
func (g GeocoderConfig) Email() string { return g.email }

// Language returns the preferred response language.
func (g GeocoderConfig) Language() string { return g.language }

// Timeout returns the per-request timeout.
func (g GeocoderConfig) Timeout() time.Duration { return g.timeout }

// RateLimit returns the outbound requests per second.
func (g GeocoderConfig) RateLimit() float64 { return g.rateLimit }

// CacheSize returns the maximum number of cached buckets.
func (g GeocoderConfig) CacheSize() int { return g.cacheSize }

// CacheTTL returns how long a resolved locality is cached.
func (g GeocoderConfig) CacheTTL() time.Duration { return g.cacheTTL }

// CachePrecision returns the number of decimals used for cache keys.
func (g GeocoderConfig) CachePrecision() int { return g.cachePrecision }

// WithBaseURL returns a new config with the specified base URL.
func (g GeocoderConfig) WithBaseURL(url string) GeocoderConfig {
	g.baseURL = url
	return g
}

// WithUserAgent returns a new config with the specified User-Agent.
func (g GeocoderConfig) WithUserAgent(ua string) GeocoderConfig {
	g.userAgent = ua
	return g
}

// WithEmail returns a new config with the specified contact address.
func (g GeocoderConfig) WithEmail(email string) GeocoderConfig {
	g.email = email
	return g
}

// WithLanguage returns a new config with the specified language.
func (g GeocoderConfig) WithLanguage(lang string) GeocoderConfig {
	g.language = lang
	return g
}

// WithTimeout returns a new config with the specified timeout.
func (g GeocoderConfig) WithTimeout(d time.Duration) GeocoderConfig {
	if d > 0 {
		g.timeout = d
	}
	return g
}

// WithRateLimit returns a new config with the specified rate. Zero or
// negative disables rate limiting.
func (g GeocoderConfig) WithRateLimit(perSecond float64) GeocoderConfig {
	g.rateLimit = perSecond
	return g
}

// WithCacheSize returns a new config with the specified cache size.
func (g GeocoderConfig) WithCacheSize(n int) GeocoderConfig {
	if n > 0 {
		g.cacheSize = n
	}
	return g
}

// WithCacheTTL returns a new config with the specified cache TTL.
func (g GeocoderConfig) WithCacheTTL(d time.Duration) GeocoderConfig {
	if d > 0 {
		g.cacheTTL = d
	}
	return g
}

// WithCachePrecision returns a new config with the specified precision.
func (g GeocoderConfig) WithCachePrecision(n int) GeocoderConfig {
	if n >= 0 {
		g.cachePrecision = n
	}
	return g
}

// PipelineConfig configures the recommendation pipeline.
type PipelineConfig struct {
	maxSuggestions     int
	dedupThreshold     float64
	deadline           time.Duration
	geocodeBudget      time.Duration
	geocodeConcurrency int
}

// NewPipelineConfig creates a new PipelineConfig with defaults.
func NewPipelineConfig() PipelineConfig {
	return PipelineConfig{
		maxSuggestions:     DefaultMaxSuggestions,
		dedupThreshold:     DefaultDedupThreshold,
		deadline:           DefaultPipelineDeadline,
		geocodeBudget:      DefaultGeocodeBudget,
		geocodeConcurrency: DefaultGeocodeConcurrency,
	}
}

// MaxSuggestions returns the per-list cap.
func (p PipelineConfig) MaxSuggestions() int { return p.maxSuggestions }

// DedupThreshold returns the duplicate distance in meters.
func (p PipelineConfig) DedupThreshold() float64 { return p.dedupThreshold }

// Deadline returns the overall pipeline deadline.
func (p PipelineConfig) Deadline() time.Duration { return p.deadline }

// GeocodeBudget returns the time allowed for city resolution.
func (p PipelineConfig) GeocodeBudget() time.Duration { return p.geocodeBudget }

// GeocodeConcurrency returns the number of parallel geocode lookups.
func (p PipelineConfig) GeocodeConcurrency() int { return p.geocodeConcurrency }

// WithMaxSuggestions returns a new config with the specified cap.
func (p PipelineConfig) WithMaxSuggestions(n int) PipelineConfig {
	if n > 0 {
		p.maxSuggestions = n
	}
	return p
}

// WithDedupThreshold returns a new config with the specified threshold.
func (p PipelineConfig) WithDedupThreshold(meters float64) PipelineConfig {
	if meters >= 0 {
		p.dedupThreshold = meters
	}
	return p
}

// WithDeadline returns a new config with the specified deadline.
func (p PipelineConfig) WithDeadline(d time.Duration) PipelineConfig {
	if d > 0 {
		p.deadline = d
	}
	return p
}

// WithGeocodeBudget returns a new config with the specified budget.
func (p PipelineConfig) WithGeocodeBudget(d time.Duration) PipelineConfig {
	if d > 0 {
		p.geocodeBudget = d
	}
	return p
}

// WithGeocodeConcurrency returns a new config with the specified concurrency.
func (p PipelineConfig) WithGeocodeConcurrency(n int) PipelineConfig {
	if n > 0 {
		p.geocodeConcurrency = n
	}
	return p
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host               string
	port               int
	dbURL              string
	logLevel           string
	logFormat          LogFormat
	apiKeys            []string
	corsAllowedOrigins []string
	rateLimitRequests  int
	rateLimitWindow    time.Duration
	recommendation     Endpoint
	geocoder           GeocoderConfig
	pipeline           PipelineConfig
}

// DefaultLogger returns the default slog logger for library consumers.
func DefaultLogger() *slog.Logger {
	return slog.Default()
}

// NewAppConfig creates a new AppConfig with defaults. No database is
// configured by default.
func NewAppConfig() AppConfig {
	return AppConfig{
		host:               DefaultHost,
		port:               DefaultPort,
		logLevel:           DefaultLogLevel,
		logFormat:          LogFormatPretty,
		apiKeys:            []string{},
		corsAllowedOrigins: []string{"*"},
		rateLimitRequests:  DefaultRateLimitRequests,
		rateLimitWindow:    DefaultRateLimitWindow,
		recommendation:     NewEndpoint(),
		geocoder:           NewGeocoderConfig(),
		pipeline:           NewPipelineConfig(),
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DBURL returns the database connection URL, empty when no database is used.
func (c AppConfig) DBURL() string { return c.dbURL }

// HasDatabase reports whether a database URL is configured.
func (c AppConfig) HasDatabase() bool { return c.dbURL != "" }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// APIKeys returns the configured API keys.
func (c AppConfig) APIKeys() []string {
	keys := make([]string, len(c.apiKeys))
	copy(keys, c.apiKeys)
	return keys
}

// CORSAllowedOrigins returns the allowed CORS origins.
func (c AppConfig) CORSAllowedOrigins() []string {
	origins := make([]string, len(c.corsAllowedOrigins))
	copy(origins, c.corsAllowedOrigins)
	return origins
}

// RateLimitRequests returns the inbound requests allowed per window per client.
func (c AppConfig) RateLimitRequests() int { return c.rateLimitRequests }

// RateLimitWindow returns the inbound rate limit window.
func (c AppConfig) RateLimitWindow() time.Duration { return c.rateLimitWindow }

// Recommendation returns the recommendation endpoint config.
func (c AppConfig) Recommendation() Endpoint { return c.recommendation }

// Geocoder returns the geocoder config.
func (c AppConfig) Geocoder() GeocoderConfig { return c.geocoder }

// Pipeline returns the pipeline config.
func (c AppConfig) Pipeline() PipelineConfig { return c.pipeline }

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithAPIKeys sets the API keys.
func WithAPIKeys(keys []string) AppConfigOption {
	return func(c *AppConfig) {
		c.apiKeys = make([]string, len(keys))
		copy(c.apiKeys, keys)
	}
}

// WithCORSAllowedOrigins sets the allowed CORS origins.
func WithCORSAllowedOrigins(origins []string) AppConfigOption {
	return func(c *AppConfig) {
		if len(origins) == 0 {
			return
		}
		c.corsAllowedOrigins = make([]string, len(origins))
		copy(c.corsAllowedOrigins, origins)
	}
}

// WithRateLimit sets the inbound rate limit. Zero requests disables it.
func WithRateLimit(requests int, window time.Duration) AppConfigOption {
	return func(c *AppConfig) {
		if requests >= 0 {
			c.rateLimitRequests = requests
		}
		if window > 0 {
			c.rateLimitWindow = window
		}
	}
}

// WithRecommendationEndpoint sets the recommendation endpoint.
func WithRecommendationEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.recommendation = e }
}

// WithGeocoderConfig sets the geocoder config.
func WithGeocoderConfig(g GeocoderConfig) AppConfigOption {
	return func(c *AppConfig) { c.geocoder = g }
}

// WithPipelineConfig sets the pipeline config.
func WithPipelineConfig(p PipelineConfig) AppConfigOption {
	return func(c *AppConfig) { c.pipeline = p }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	return NewAppConfig().Apply(opts...)
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Secrets are reported as presence or counts only.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("addr", c.Addr()),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("recommendation_base_url", c.recommendation.BaseURL()),
		slog.String("recommendation_model", c.recommendation.Model()),
		slog.Bool("recommendation_configured", c.recommendation.IsConfigured()),
		slog.String("geocoder_base_url", c.geocoder.BaseURL()),
		slog.Float64("geocoder_rate_limit", c.geocoder.RateLimit()),
		slog.Int("max_suggestions", c.pipeline.MaxSuggestions()),
		slog.Duration("pipeline_deadline", c.pipeline.Deadline()),
		slog.Int("api_keys_count", len(c.apiKeys)),
	}
}

func (c AppConfig) maskedDBURL() string {
	switch {
	case c.dbURL == "":
		return "(none)"
	case strings.HasPrefix(c.dbURL, "sqlite:"):
		return c.dbURL
	default:
		return "postgres://***@***"
	}
}

// ParseList parses a comma-separated string, dropping blank entries.
func ParseList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

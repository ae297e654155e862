package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., GEOCODER_BASE_URL).
// Durations are expressed in seconds.
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DBURL is the database connection URL. Empty disables the place store.
	// Env: DB_URL
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// APIKeys is a comma-separated list of valid API keys.
	// Env: API_KEYS
	APIKeys string `envconfig:"API_KEYS"`

	// CORSAllowedOrigins is a comma-separated list of allowed origins.
	// Env: CORS_ALLOWED_ORIGINS (default: *)
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// RateLimitRequests is the number of requests per window per client IP.
	// Env: RATE_LIMIT_REQUESTS (default: 60, 0 disables)
	RateLimitRequests int `envconfig:"RATE_LIMIT_REQUESTS" default:"60"`

	// RateLimitWindow is the rate limit window in seconds.
	// Env: RATE_LIMIT_WINDOW (default: 60)
	RateLimitWindow float64 `envconfig:"RATE_LIMIT_WINDOW" default:"60"`

	// RecommendationEndpoint configures the chat completion service.
	RecommendationEndpoint EndpointEnv `envconfig:"RECOMMENDATION_ENDPOINT"`

	// Geocoder configures reverse geocoding.
	Geocoder GeocoderEnv `envconfig:"GEOCODER"`

	// Pipeline configures the recommendation pipeline.
	Pipeline PipelineEnv `envconfig:"PIPELINE"`
}

// EndpointEnv holds environment configuration for the chat endpoint.
type EndpointEnv struct {
	// Env: RECOMMENDATION_ENDPOINT_BASE_URL
	BaseURL string `envconfig:"BASE_URL" default:"https://openrouter.ai/api/v1"`

	// Env: RECOMMENDATION_ENDPOINT_MODEL
	Model string `envconfig:"MODEL" default:"mistralai/mistral-7b-instruct"`

	// Env: RECOMMENDATION_ENDPOINT_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Timeout is the per-attempt timeout in seconds.
	// Env: RECOMMENDATION_ENDPOINT_TIMEOUT (default: 15)
	Timeout float64 `envconfig:"TIMEOUT" default:"15"`

	// Env: RECOMMENDATION_ENDPOINT_MAX_RETRIES (default: 2)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"2"`

	// InitialDelay is the first retry delay in seconds.
	// Env: RECOMMENDATION_ENDPOINT_INITIAL_DELAY (default: 0.5)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"0.5"`

	// Env: RECOMMENDATION_ENDPOINT_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`

	// Env: RECOMMENDATION_ENDPOINT_MAX_TOKENS (default: 1024)
	MaxTokens int `envconfig:"MAX_TOKENS" default:"1024"`

	// Env: RECOMMENDATION_ENDPOINT_TEMPERATURE (default: 0.8)
	Temperature float64 `envconfig:"TEMPERATURE" default:"0.8"`

	// Referer is sent as HTTP-Referer, used by OpenRouter for attribution.
	// Env: RECOMMENDATION_ENDPOINT_REFERER
	Referer string `envconfig:"REFERER"`

	// Title is sent as X-Title.
	// Env: RECOMMENDATION_ENDPOINT_TITLE (default: travelmap)
	Title string `envconfig:"TITLE" default:"travelmap"`
}

// GeocoderEnv holds environment configuration for reverse geocoding.
type GeocoderEnv struct {
	// Env: GEOCODER_BASE_URL
	BaseURL string `envconfig:"BASE_URL" default:"https://nominatim.openstreetmap.org"`

	// Env: GEOCODER_USER_AGENT
	UserAgent string `envconfig:"USER_AGENT" default:"travelmap/1.0"`

	// Env: GEOCODER_EMAIL
	Email string `envconfig:"EMAIL"`

	// Env: GEOCODER_LANGUAGE
	Language string `envconfig:"LANGUAGE"`

	// Timeout is the per-request timeout in seconds.
	// Env: GEOCODER_TIMEOUT (default: 10)
	Timeout float64 `envconfig:"TIMEOUT" default:"10"`

	// RateLimit is the outbound requests per second.
	// Env: GEOCODER_RATE_LIMIT (default: 1)
	RateLimit float64 `envconfig:"RATE_LIMIT" default:"1"`

	// Env: GEOCODER_CACHE_SIZE (default: 10000)
	CacheSize int `envconfig:"CACHE_SIZE" default:"10000"`

	// CacheTTL is the cache entry lifetime in seconds.
	// Env: GEOCODER_CACHE_TTL (default: 86400)
	CacheTTL float64 `envconfig:"CACHE_TTL" default:"86400"`

	// CachePrecision is the number of coordinate decimals per cache bucket.
	// Env: GEOCODER_CACHE_PRECISION (default: 2)
	CachePrecision int `envconfig:"CACHE_PRECISION" default:"2"`
}

// PipelineEnv holds environment configuration for the pipeline.
type PipelineEnv struct {
	// Env: PIPELINE_MAX_SUGGESTIONS (default: 3)
	MaxSuggestions int `envconfig:"MAX_SUGGESTIONS" default:"3"`

	// Env: PIPELINE_DEDUP_THRESHOLD_METERS (default: 250)
	DedupThresholdMeters float64 `envconfig:"DEDUP_THRESHOLD_METERS" default:"250"`

	// Deadline is the overall request deadline in seconds.
	// Env: PIPELINE_DEADLINE (default: 20)
	Deadline float64 `envconfig:"DEADLINE" default:"20"`

	// GeocodeBudget is the city resolution budget in seconds.
	// Env: PIPELINE_GEOCODE_BUDGET (default: 5)
	GeocodeBudget float64 `envconfig:"GEOCODE_BUDGET" default:"5"`

	// Env: PIPELINE_GEOCODE_CONCURRENCY (default: 4)
	GeocodeConcurrency int `envconfig:"GEOCODE_CONCURRENCY" default:"4"`
}

// LoadFromEnv loads configuration from environment variables without a prefix.
func LoadFromEnv() (EnvConfig, error) {
	return LoadFromEnvWithPrefix("")
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "TRAVELMAP" would require TRAVELMAP_PORT instead of PORT.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	opts := []AppConfigOption{
		WithRecommendationEndpoint(e.RecommendationEndpoint.ToEndpoint()),
		WithGeocoderConfig(e.Geocoder.ToGeocoderConfig()),
		WithPipelineConfig(e.Pipeline.ToPipelineConfig()),
		WithLogFormat(parseLogFormat(e.LogFormat)),
		WithRateLimit(e.RateLimitRequests, seconds(e.RateLimitWindow)),
		WithCORSAllowedOrigins(ParseList(e.CORSAllowedOrigins)),
	}
	if e.Host != "" {
		opts = append(opts, WithHost(e.Host))
	}
	if e.Port != 0 {
		opts = append(opts, WithPort(e.Port))
	}
	if e.DBURL != "" {
		opts = append(opts, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		opts = append(opts, WithLogLevel(e.LogLevel))
	}
	if e.APIKeys != "" {
		opts = append(opts, WithAPIKeys(ParseList(e.APIKeys)))
	}
	return NewAppConfigWithOptions(opts...)
}

// ToEndpoint converts EndpointEnv to Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	opts := []EndpointOption{
		WithTimeout(seconds(e.Timeout)),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(seconds(e.InitialDelay)),
		WithBackoffFactor(e.BackoffFactor),
		WithMaxTokens(e.MaxTokens),
		WithTemperature(e.Temperature),
		WithReferer(e.Referer),
		WithTitle(e.Title),
	}
	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.Model != "" {
		opts = append(opts, WithModel(e.Model))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}
	return NewEndpointWithOptions(opts...)
}

// ToGeocoderConfig converts GeocoderEnv to GeocoderConfig.
func (g GeocoderEnv) ToGeocoderConfig() GeocoderConfig {
	cfg := NewGeocoderConfig().
		WithEmail(g.Email).
		WithLanguage(g.Language).
		WithTimeout(seconds(g.Timeout)).
		WithRateLimit(g.RateLimit).
		WithCacheSize(g.CacheSize).
		WithCacheTTL(seconds(g.CacheTTL)).
		WithCachePrecision(g.CachePrecision)
	if g.BaseURL != "" {
		cfg = cfg.WithBaseURL(g.BaseURL)
	}
	if g.UserAgent != "" {
		cfg = cfg.WithUserAgent(g.UserAgent)
	}
	return cfg
}

// ToPipelineConfig converts PipelineEnv to PipelineConfig.
func (p PipelineEnv) ToPipelineConfig() PipelineConfig {
	return NewPipelineConfig().
		WithMaxSuggestions(p.MaxSuggestions).
		WithDedupThreshold(p.DedupThresholdMeters).
		WithDeadline(seconds(p.Deadline)).
		WithGeocodeBudget(seconds(p.GeocodeBudget)).
		WithGeocodeConcurrency(p.GeocodeConcurrency)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}

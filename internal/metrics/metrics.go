// Package metrics defines the Prometheus instrumentation of the recommendation
// pipeline, the geocoder and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stages.
const (
	StageGeocode  = "geocode"
	StagePrompt   = "prompt"
	StageProvider = "provider"
	StageParse    = "parse"
	StageMerge    = "merge"
)

// Stage outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeDegraded = "degraded"
)

var (
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "travelmap_pipeline_duration_seconds",
			Help:    "Duration of recommendation pipeline runs in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"outcome"},
	)

	StageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travelmap_pipeline_stage_total",
			Help: "Pipeline stage executions by outcome",
		},
		[]string{"stage", "outcome"},
	)

	SuggestionsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travelmap_suggestions_dropped_total",
			Help: "Suggestions dropped by validation or deduplication",
		},
		[]string{"reason"},
	)

	SuggestionsReturned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travelmap_suggestions_returned_total",
			Help: "Suggestions returned to callers",
		},
		[]string{"list"},
	)

	GeocodeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travelmap_geocode_cache_hits_total",
			Help: "Reverse geocoding cache hits",
		},
	)

	GeocodeCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travelmap_geocode_cache_misses_total",
			Help: "Reverse geocoding cache misses",
		},
	)

	GeocodeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travelmap_geocode_requests_total",
			Help: "Outbound reverse geocoding requests by result",
		},
		[]string{"result"},
	)

	GeocodeCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "travelmap_geocode_circuit_breaker_state",
			Help: "Geocoder circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "travelmap_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordPipeline records one pipeline run.
func RecordPipeline(outcome string, duration time.Duration) {
	PipelineDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordStage counts one stage outcome.
func RecordStage(stage, outcome string) {
	StageOutcomes.WithLabelValues(stage, outcome).Inc()
}

// RecordDropped counts n suggestions dropped for reason.
func RecordDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	SuggestionsDropped.WithLabelValues(reason).Add(float64(n))
}

// RecordReturned counts suggestions returned per list.
func RecordReturned(nearby, similar int) {
	SuggestionsReturned.WithLabelValues("nearby").Add(float64(nearby))
	SuggestionsReturned.WithLabelValues("similar").Add(float64(similar))
}

// RecordGeocodeCache counts a cache lookup.
func RecordGeocodeCache(hit bool) {
	if hit {
		GeocodeCacheHits.Inc()
		return
	}
	GeocodeCacheMisses.Inc()
}

// RecordGeocodeRequest counts an outbound geocoding request.
func RecordGeocodeRequest(result string) {
	GeocodeRequests.WithLabelValues(result).Inc()
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

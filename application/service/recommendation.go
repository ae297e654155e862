// Package service provides application layer services that orchestrate domain operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helixml/travelmap/domain/place"
	"github.com/helixml/travelmap/domain/recommendation"
	"github.com/helixml/travelmap/infrastructure/provider"
	"github.com/helixml/travelmap/infrastructure/suggestion"
	"github.com/helixml/travelmap/internal/metrics"
)

// Pipeline defaults.
const (
	DefaultDeadline           = 20 * time.Second
	DefaultGeocodeBudget      = 5 * time.Second
	DefaultGeocodeConcurrency = 4
)

// CityResolver resolves coordinates to a locality name, returning
// place.UnknownLocality when it cannot.
type CityResolver interface {
	Resolve(ctx context.Context, lat, lng float64) string
}

// PlaceLister reads the places recorded by an owner.
type PlaceLister interface {
	FindByOwner(ctx context.Context, ownerID string) ([]place.Place, error)
}

// RecommendationOption configures the Recommendation service.
type RecommendationOption func(*Recommendation)

// WithDeadline bounds a whole pipeline run.
func WithDeadline(d time.Duration) RecommendationOption {
	return func(s *Recommendation) {
		if d > 0 {
			s.deadline = d
		}
	}
}

// WithGeocodeBudget bounds the city resolution stage.
func WithGeocodeBudget(d time.Duration) RecommendationOption {
	return func(s *Recommendation) {
		if d > 0 {
			s.geocodeBudget = d
		}
	}
}

// WithGeocodeConcurrency bounds parallel city lookups.
func WithGeocodeConcurrency(n int) RecommendationOption {
	return func(s *Recommendation) {
		if n > 0 {
			s.geocodeConcurrency = n
		}
	}
}

// WithMaxSuggestions sets the maximum entries per list.
func WithMaxSuggestions(n int) RecommendationOption {
	return func(s *Recommendation) {
		if n > 0 {
			s.builder = s.builder.WithMaxPerList(n)
			s.parser = s.parser.WithMaxPerList(n)
			s.merger = s.merger.WithMaxPerList(n)
		}
	}
}

// WithDuplicateThreshold sets the distance in meters below which places are duplicates.
func WithDuplicateThreshold(meters float64) RecommendationOption {
	return func(s *Recommendation) {
		s.merger = s.merger.WithThreshold(meters)
	}
}

// WithGeneration sets the max tokens and temperature of provider calls.
func WithGeneration(maxTokens int, temperature float64) RecommendationOption {
	return func(s *Recommendation) {
		s.maxTokens = maxTokens
		s.temperature = temperature
	}
}

// WithPlaceLister enables recommendations for stored owners.
func WithPlaceLister(l PlaceLister) RecommendationOption {
	return func(s *Recommendation) {
		s.places = l
	}
}

// Recommendation runs the recommendation pipeline: resolve missing cities,
// build the prompt, call the provider once, parse and merge. It never fails;
// any stage error degrades to an empty result.
type Recommendation struct {
	resolver  CityResolver
	generator provider.TextGenerator
	places    PlaceLister
	logger    *slog.Logger

	builder recommendation.PromptBuilder
	parser  suggestion.Parser
	merger  recommendation.Merger

	deadline           time.Duration
	geocodeBudget      time.Duration
	geocodeConcurrency int
	maxTokens          int
	temperature        float64
}

// NewRecommendation creates a Recommendation service. A nil resolver skips
// city resolution; a nil generator makes every run return an empty result.
func NewRecommendation(resolver CityResolver, generator provider.TextGenerator, logger *slog.Logger, opts ...RecommendationOption) *Recommendation {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Recommendation{
		resolver:           resolver,
		generator:          generator,
		logger:             logger,
		builder:            recommendation.NewPromptBuilder(),
		parser:             suggestion.NewParser(),
		merger:             recommendation.NewMerger(),
		deadline:           DefaultDeadline,
		geocodeBudget:      DefaultGeocodeBudget,
		geocodeConcurrency: DefaultGeocodeConcurrency,
		temperature:        provider.DefaultTemperature,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deadline returns the bound on a single run.
func (s *Recommendation) Deadline() time.Duration { return s.deadline }

// Recommend returns nearby and similar suggestions for req. It returns within
// the configured deadline even when the provider does not honour cancellation.
func (s *Recommendation) Recommend(ctx context.Context, req recommendation.Request) recommendation.Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	result, outcome := s.run(ctx, req)

	metrics.RecordPipeline(outcome, time.Since(start))
	metrics.RecordReturned(len(result.Nearby()), len(result.Similar()))
	s.logger.InfoContext(ctx, "recommendation finished",
		"outcome", outcome,
		"visited", len(req.Visited()),
		"nearby", len(result.Nearby()),
		"similar", len(result.Similar()),
		"duration", time.Since(start),
	)
	return result
}

// RecommendForOwner loads the owner's places and runs Recommend.
func (s *Recommendation) RecommendForOwner(ctx context.Context, ownerID string, location place.Coordinates) (recommendation.Result, error) {
	if s.places == nil {
		return recommendation.EmptyResult(), ErrNoPlaceStore
	}
	visited, err := s.places.FindByOwner(ctx, ownerID)
	if err != nil {
		return recommendation.EmptyResult(), fmt.Errorf("load places for %s: %w", ownerID, err)
	}
	return s.Recommend(ctx, recommendation.NewRequest(visited, location)), nil
}

func (s *Recommendation) run(ctx context.Context, req recommendation.Request) (recommendation.Result, string) {
	if s.generator == nil {
		s.logger.WarnContext(ctx, "no recommendation provider configured", "step", metrics.StageProvider)
		metrics.RecordStage(metrics.StageProvider, metrics.OutcomeError)
		return recommendation.EmptyResult(), metrics.OutcomeDegraded
	}

	visited := s.resolveCities(ctx, req.Visited())

	prompt := s.builder.Build(req.WithVisited(visited))
	metrics.RecordStage(metrics.StagePrompt, metrics.OutcomeSuccess)

	content, err := s.generate(ctx, prompt)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		metrics.RecordStage(metrics.StageProvider, outcome)
		s.logger.WarnContext(ctx, "recommendation provider failed",
			"step", metrics.StageProvider,
			"location", req.Location().String(),
			"error", err,
		)
		if outcome == metrics.OutcomeTimeout {
			return recommendation.EmptyResult(), metrics.OutcomeTimeout
		}
		return recommendation.EmptyResult(), metrics.OutcomeDegraded
	}
	metrics.RecordStage(metrics.StageProvider, metrics.OutcomeSuccess)

	parsed, report := s.parser.ParseDetailed(content)
	if report.Err != nil {
		metrics.RecordStage(metrics.StageParse, metrics.OutcomeError)
		s.logger.WarnContext(ctx, "recommendation response unusable",
			"step", metrics.StageParse,
			"error", report.Err,
			"length", len(content),
		)
		return recommendation.EmptyResult(), metrics.OutcomeDegraded
	}
	for _, r := range report.Rejected {
		s.logger.DebugContext(ctx, "suggestion dropped",
			"step", metrics.StageParse,
			"list", r.List,
			"index", r.Index,
			"error", r.Err,
		)
	}
	metrics.RecordDropped("invalid", len(report.Rejected))
	metrics.RecordDropped("truncated", report.Truncated)
	metrics.RecordStage(metrics.StageParse, metrics.OutcomeSuccess)

	merged := s.merger.Merge(visited, parsed.Nearby(), parsed.Similar())
	candidates := len(parsed.Nearby()) + len(parsed.Similar())
	metrics.RecordDropped("duplicate", candidates-len(merged.Nearby())-len(merged.Similar()))
	metrics.RecordStage(metrics.StageMerge, metrics.OutcomeSuccess)

	return merged, metrics.OutcomeSuccess
}

// resolveCities fills in missing cities with bounded concurrency. Cities
// resolved before the geocode budget runs out are kept; the rest stay empty.
func (s *Recommendation) resolveCities(ctx context.Context, visited []place.Place) []place.Place {
	if s.resolver == nil {
		return visited
	}

	var missing []int
	for i, p := range visited {
		if !p.HasCity() {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return visited
	}

	gctx, cancel := context.WithTimeout(ctx, s.geocodeBudget)
	defer cancel()

	var mu sync.Mutex
	cities := make(map[int]string, len(missing))

	g := &errgroup.Group{}
	g.SetLimit(s.geocodeConcurrency)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, idx := range missing {
			if gctx.Err() != nil {
				break
			}
			coords := visited[idx].Coordinates()
			g.Go(func() error {
				city := s.resolver.Resolve(gctx, coords.Latitude(), coords.Longitude())
				if city == "" || city == place.UnknownLocality {
					return nil
				}
				mu.Lock()
				cities[idx] = city
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}()

	outcome := metrics.OutcomeSuccess
	select {
	case <-done:
	case <-gctx.Done():
		outcome = metrics.OutcomeTimeout
	}

	mu.Lock()
	defer mu.Unlock()

	out := make([]place.Place, len(visited))
	copy(out, visited)
	for idx, city := range cities {
		out[idx] = out[idx].WithCity(city)
	}

	if len(cities) < len(missing) && outcome == metrics.OutcomeSuccess {
		outcome = metrics.OutcomeDegraded
	}
	metrics.RecordStage(metrics.StageGeocode, outcome)
	if outcome != metrics.OutcomeSuccess {
		s.logger.WarnContext(ctx, "cities partially resolved",
			"step", metrics.StageGeocode,
			"missing", len(missing),
			"resolved", len(cities),
			"outcome", outcome,
		)
	}
	return out
}

type generation struct {
	content string
	err     error
}

// generate makes the single provider call, racing it against ctx so a
// provider that ignores cancellation cannot hold the caller.
func (s *Recommendation) generate(ctx context.Context, prompt recommendation.Prompt) (string, error) {
	req := provider.NewChatCompletionRequest([]provider.Message{
		provider.SystemMessage(prompt.System),
		provider.UserMessage(prompt.User),
	}).WithTemperature(s.temperature)
	if s.maxTokens > 0 {
		req = req.WithMaxTokens(s.maxTokens)
	}

	ch := make(chan generation, 1)
	go func() {
		resp, err := s.generator.ChatCompletion(ctx, req)
		ch <- generation{content: resp.Content(), err: err}
	}()

	select {
	case g := <-ch:
		return g.content, g.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

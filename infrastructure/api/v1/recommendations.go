// Package v1 implements the version 1 HTTP API.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/helixml/travelmap"
	"github.com/helixml/travelmap/domain/recommendation"
	"github.com/helixml/travelmap/infrastructure/api/middleware"
	"github.com/helixml/travelmap/infrastructure/api/v1/dto"
)

// maxBodyBytes bounds request bodies. A travel log of a few thousand
// places fits comfortably.
const maxBodyBytes = 1 << 20

// RecommendationsRouter handles stateless recommendation endpoints.
type RecommendationsRouter struct {
	client *travelmap.Client
	logger *slog.Logger
}

// NewRecommendationsRouter creates a new RecommendationsRouter.
func NewRecommendationsRouter(client *travelmap.Client) *RecommendationsRouter {
	return &RecommendationsRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for recommendation endpoints.
func (r *RecommendationsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Recommend)

	return router
}

// Recommend handles POST /api/v1/recommendations and the legacy
// POST /api/ai-recommendations.
//
// The response is 200 with both lists whenever the body parses, even when
// the provider failed. A body that is not a request gets 500 with the same
// empty shape.
func (r *RecommendationsRouter) Recommend(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var body dto.RecommendationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&body); err != nil {
		r.logger.WarnContext(ctx, "invalid recommendation body", "step", "request", "error", err)
		middleware.WriteJSON(w, http.StatusInternalServerError, dto.EmptyRecommendationResponse())
		return
	}

	location, err := body.Location()
	if err != nil {
		r.logger.WarnContext(ctx, "invalid user location", "step", "request", "location", body.UserLocation, "error", err)
		middleware.WriteJSON(w, http.StatusInternalServerError, dto.EmptyRecommendationResponse())
		return
	}

	visited, skipped := body.VisitedPlaces()
	for _, s := range skipped {
		r.logger.WarnContext(ctx, "visited place skipped", "step", "request", "index", s.Index, "place", s.Name, "error", s.Err)
	}

	result := r.client.Recommendations.Recommend(ctx, recommendation.NewRequest(visited, location))
	middleware.WriteJSON(w, http.StatusOK, dto.NewRecommendationResponse(result))
}

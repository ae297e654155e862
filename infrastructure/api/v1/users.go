package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/helixml/travelmap"
	"github.com/helixml/travelmap/application/service"
	"github.com/helixml/travelmap/infrastructure/api/middleware"
	"github.com/helixml/travelmap/infrastructure/api/v1/dto"
	"github.com/helixml/travelmap/internal/validation"
)

// UsersRouter handles endpoints scoped to a place owner.
type UsersRouter struct {
	client *travelmap.Client
	logger *slog.Logger
}

// NewUsersRouter creates a new UsersRouter.
func NewUsersRouter(client *travelmap.Client) *UsersRouter {
	return &UsersRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for owner endpoints.
func (r *UsersRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/{userID}/recommendations", r.Recommend)

	return router
}

// Recommend handles POST /api/v1/users/{userID}/recommendations. The
// visited places are read from the place store.
func (r *UsersRouter) Recommend(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	ownerID := chi.URLParam(req, "userID")

	var body dto.OwnerRecommendationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.BadRequest("invalid request body", err), r.logger)
		return
	}
	if err := validation.Struct(body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	location, err := body.Location()
	if err != nil {
		middleware.WriteError(w, req, middleware.BadRequest("invalid userLocation", err), r.logger)
		return
	}

	result, err := r.client.Recommendations.RecommendForOwner(ctx, ownerID, location)
	if errors.Is(err, service.ErrNoPlaceStore) {
		middleware.WriteError(w, req, middleware.NotFound("no place store configured"), r.logger)
		return
	}
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.NewRecommendationResponse(result))
}

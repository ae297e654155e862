package v1

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/travelmap"
	"github.com/helixml/travelmap/infrastructure/api/middleware"
	"github.com/helixml/travelmap/infrastructure/api/v1/dto"
)

// GeocodeRouter handles reverse geocoding endpoints.
type GeocodeRouter struct {
	client *travelmap.Client
	logger *slog.Logger
}

// NewGeocodeRouter creates a new GeocodeRouter.
func NewGeocodeRouter(client *travelmap.Client) *GeocodeRouter {
	return &GeocodeRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for geocode endpoints.
func (r *GeocodeRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/reverse", r.Reverse)

	return router
}

// Reverse handles GET /api/v1/geocode/reverse?lat=&lng=. Unresolvable
// coordinates answer 200 with the unknown-place city.
func (r *GeocodeRouter) Reverse(w http.ResponseWriter, req *http.Request) {
	lat, err := floatParam(req, "lat")
	if err != nil {
		middleware.WriteError(w, req, middleware.BadRequest(err.Error(), err), r.logger)
		return
	}
	lng, err := floatParam(req, "lng")
	if err != nil {
		middleware.WriteError(w, req, middleware.BadRequest(err.Error(), err), r.logger)
		return
	}

	city := r.client.Resolver.Resolve(req.Context(), lat, lng)
	middleware.WriteJSON(w, http.StatusOK, dto.ReverseGeocodeResponse{City: city})
}

func floatParam(req *http.Request, name string) (float64, error) {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("query parameter %s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("query parameter %s must be a number", name)
	}
	return v, nil
}

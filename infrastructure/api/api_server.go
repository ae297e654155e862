package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helixml/travelmap"
	apimiddleware "github.com/helixml/travelmap/infrastructure/api/middleware"
	v1 "github.com/helixml/travelmap/infrastructure/api/v1"
	mcpinternal "github.com/helixml/travelmap/internal/mcp"
)

// apiTimeout bounds /api requests. It sits above the pipeline deadline so
// degraded responses are still written by the handler.
const apiTimeout = 60 * time.Second

// APIServer provides an HTTP API backed by a travelmap Client.
type APIServer struct {
	client       *travelmap.Client
	apiKeys      []string
	corsOrigins  []string
	rateRequests int
	rateWindow   time.Duration
	version      string
	server       *Server
	router       chi.Router
	routerCalled bool
	logger       *slog.Logger
}

// Option configures an APIServer.
type Option func(*APIServer)

// WithCORSOrigins sets the allowed CORS origins. An empty list disables CORS.
func WithCORSOrigins(origins []string) Option {
	return func(a *APIServer) {
		a.corsOrigins = append([]string(nil), origins...)
	}
}

// WithRateLimit limits each client IP to requests per window on /api
// routes. Zero requests disables the limit; a non-positive window means a
// minute.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(a *APIServer) {
		if window <= 0 {
			window = time.Minute
		}
		a.rateRequests = requests
		a.rateWindow = window
	}
}

// WithVersion sets the version reported by / and the MCP server.
func WithVersion(version string) Option {
	return func(a *APIServer) {
		a.version = version
	}
}

// NewAPIServer creates a new APIServer wired to the given travelmap Client.
// The client's API keys protect the owner-scoped /api/v1/users routes.
// Stateless recommendations, geocoding, MCP and health stay open.
func NewAPIServer(client *travelmap.Client, opts ...Option) *APIServer {
	a := &APIServer{
		client:      client,
		apiKeys:     client.APIKeys(),
		corsOrigins: []string{"*"},
		version:     "dev",
		logger:      client.Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns the chi router for customization before starting.
// Call this first, add custom middleware with router.Use(), then call MountRoutes().
// If not called, ListenAndServe creates a default router with all standard routes.
func (a *APIServer) Router() chi.Router {
	if a.router != nil {
		return a.router
	}

	a.router = NewRouter()
	a.routerCalled = true
	return a.router
}

// MountRoutes wires up all routes on the router.
// Call this after adding any custom middleware via Router().Use().
func (a *APIServer) MountRoutes() {
	if a.router == nil {
		a.Router()
	}
	a.mountRoutes(a.router)
}

func (a *APIServer) mountRoutes(router chi.Router) {
	c := a.client

	router.Use(apimiddleware.CorrelationID)
	router.Use(apimiddleware.Logging(a.logger))
	if len(a.corsOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   a.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", apimiddleware.APIKeyHeader, apimiddleware.CorrelationIDHeader},
			ExposedHeaders:   []string{apimiddleware.CorrelationIDHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	recommendationsRouter := v1.NewRecommendationsRouter(c)
	geocodeRouter := v1.NewGeocodeRouter(c)
	usersRouter := v1.NewUsersRouter(c)

	router.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(apiTimeout))
		if a.rateRequests > 0 {
			r.Use(httprate.LimitByIP(a.rateRequests, a.rateWindow))
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Mount("/recommendations", recommendationsRouter.Routes())
			r.Mount("/geocode", geocodeRouter.Routes())

			r.Group(func(r chi.Router) {
				r.Use(apimiddleware.APIKeyAuth(a.apiKeys, a.logger))
				r.Mount("/users", usersRouter.Routes())
			})
		})

		// Path used by the original web frontend.
		r.Post("/api/ai-recommendations", recommendationsRouter.Recommend)
	})

	// MCP streams and keeps session state in response headers, so it gets
	// no Timeout middleware.
	mcpSrv := mcpinternal.NewServer(c.Recommendations, c.Resolver, a.version, a.logger)
	router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", a.health)
	router.Get("/healthz", a.health)
	router.Get("/", a.root)
}

type healthResponse struct {
	Status string `json:"status"`
}

func (a *APIServer) health(w http.ResponseWriter, r *http.Request) {
	if err := a.client.Ping(r.Context()); err != nil {
		a.logger.WarnContext(r.Context(), "health check failed", "error", err)
		apimiddleware.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy"})
		return
	}
	apimiddleware.WriteJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}

type rootResponse struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Provider bool   `json:"provider"`
}

func (a *APIServer) root(w http.ResponseWriter, _ *http.Request) {
	apimiddleware.WriteJSON(w, http.StatusOK, rootResponse{
		Name:     "travelmap",
		Version:  a.version,
		Provider: a.client.HasProvider(),
	})
}

// ListenAndServe starts the HTTP server on the given address.
func (a *APIServer) ListenAndServe(addr string) error {
	srv := NewServer(addr, a.logger)
	a.server = &srv

	if a.routerCalled && a.router != nil {
		srv.Router().Mount("/", a.router)
	} else {
		a.mountRoutes(srv.Router())
	}

	return srv.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Handler returns the router as an http.Handler for use with custom servers.
func (a *APIServer) Handler() http.Handler {
	if a.router == nil {
		a.Router()
		a.MountRoutes()
	}
	return a.router
}

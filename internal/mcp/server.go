// Package mcp exposes the recommendation pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/helixml/travelmap/domain/place"
	"github.com/helixml/travelmap/domain/recommendation"
)

// Recommender runs the recommendation pipeline.
type Recommender interface {
	Recommend(ctx context.Context, req recommendation.Request) recommendation.Result
}

// CityResolver names the locality at a coordinate.
type CityResolver interface {
	Resolve(ctx context.Context, lat, lng float64) string
}

// Server wraps the MCP server with travelmap tools.
type Server struct {
	mcpServer   *server.MCPServer
	recommender Recommender
	resolver    CityResolver
	logger      *slog.Logger
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(recommender Recommender, resolver CityResolver, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		recommender: recommender,
		resolver:    resolver,
		logger:      logger,
	}

	mcpServer := server.NewMCPServer(
		"travelmap",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("Suggest places to visit from a travel log. "+
			"Call recommend_places with the places already visited and the current location."),
	)

	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	placeSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":        map[string]any{"type": "string"},
			"latitude":    map[string]any{"type": "number"},
			"longitude":   map[string]any{"type": "number"},
			"city":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
		},
		"required": []string{"name", "latitude", "longitude"},
	}

	recommendTool := mcp.NewTool("recommend_places",
		mcp.WithDescription("Suggest places near the current location and places similar to the ones already visited"),
		mcp.WithNumber("latitude",
			mcp.Required(),
			mcp.Description("Current latitude in decimal degrees"),
			mcp.Min(place.MinLatitude),
			mcp.Max(place.MaxLatitude),
		),
		mcp.WithNumber("longitude",
			mcp.Required(),
			mcp.Description("Current longitude in decimal degrees"),
			mcp.Min(place.MinLongitude),
			mcp.Max(place.MaxLongitude),
		),
		mcp.WithArray("places",
			mcp.Description("Places already visited, oldest first"),
			mcp.Items(placeSchema),
		),
	)
	mcpServer.AddTool(recommendTool, s.handleRecommend)

	resolveTool := mcp.NewTool("resolve_city",
		mcp.WithDescription("Name the city, town or village at a coordinate"),
		mcp.WithNumber("latitude",
			mcp.Required(),
			mcp.Description("Latitude in decimal degrees"),
		),
		mcp.WithNumber("longitude",
			mcp.Required(),
			mcp.Description("Longitude in decimal degrees"),
		),
	)
	mcpServer.AddTool(resolveTool, s.handleResolveCity)
}

type placeArg struct {
	Name        string   `json:"name"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	City        string   `json:"city,omitempty"`
	Description string   `json:"description,omitempty"`
}

type recommendArgs struct {
	Places []placeArg `json:"places"`
}

type recommendResult struct {
	Nearby  []placeArg `json:"nearby"`
	Similar []placeArg `json:"similar"`
	Skipped int        `json:"skipped,omitempty"`
}

func (s *Server) handleRecommend(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := request.RequireFloat("latitude")
	if err != nil {
		return mcp.NewToolResultError("latitude is required"), nil
	}
	lng, err := request.RequireFloat("longitude")
	if err != nil {
		return mcp.NewToolResultError("longitude is required"), nil
	}
	location, err := place.NewCoordinates(lat, lng)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid location: %v", err)), nil
	}

	var args recommendArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid places: %v", err)), nil
	}

	visited := make([]place.Place, 0, len(args.Places))
	skipped := 0
	for _, a := range args.Places {
		p, err := a.toDomain()
		if err != nil {
			s.logger.WarnContext(ctx, "visited place skipped", "step", "request", "place", a.Name, "error", err)
			skipped++
			continue
		}
		visited = append(visited, p)
	}

	result := s.recommender.Recommend(ctx, recommendation.NewRequest(visited, location))

	return jsonResult(recommendResult{
		Nearby:  placeArgs(result.Nearby()),
		Similar: placeArgs(result.Similar()),
		Skipped: skipped,
	})
}

func (s *Server) handleResolveCity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := request.RequireFloat("latitude")
	if err != nil {
		return mcp.NewToolResultError("latitude is required"), nil
	}
	lng, err := request.RequireFloat("longitude")
	if err != nil {
		return mcp.NewToolResultError("longitude is required"), nil
	}

	city := s.resolver.Resolve(ctx, lat, lng)
	return jsonResult(map[string]string{"city": city})
}

func (a placeArg) toDomain() (place.Place, error) {
	if a.Latitude == nil || a.Longitude == nil {
		return place.Place{}, fmt.Errorf("%w: latitude and longitude are required", place.ErrInvalidCoordinates)
	}
	coordinates, err := place.NewCoordinates(*a.Latitude, *a.Longitude)
	if err != nil {
		return place.Place{}, err
	}
	p, err := place.NewPlace(a.Name, coordinates, place.OriginVisited)
	if err != nil {
		return place.Place{}, err
	}
	return p.WithCity(a.City).WithDescription(a.Description), nil
}

func placeArgs(places []place.Place) []placeArg {
	out := make([]placeArg, len(places))
	for i, p := range places {
		lat, lng := p.Coordinates().Latitude(), p.Coordinates().Longitude()
		out[i] = placeArg{
			Name:        p.Name(),
			Latitude:    &lat,
			Longitude:   &lng,
			City:        p.City(),
			Description: p.Description(),
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// MCPServer returns the underlying MCP server for stdio serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

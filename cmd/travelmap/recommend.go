package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/helixml/travelmap/domain/place"
	"github.com/helixml/travelmap/domain/recommendation"
	"github.com/helixml/travelmap/infrastructure/api/v1/dto"
)

func recommendCmd() *cobra.Command {
	var (
		envFile    string
		placesFile string
		lat, lng   float64
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Run one recommendation and print it as JSON",
		Long: `Run the recommendation pipeline once.

The places file is a YAML or JSON list of visited places:

  - name: Louvre
    city: Paris
    coordinates: {latitude: 48.8606, longitude: 2.3376}
  - name: Notre-Dame
    coordinates: {latitude: 48.8530, longitude: 2.3499}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecommend(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), envFile, placesFile, lat, lng)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&placesFile, "places", "", "YAML or JSON file of visited places")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Current latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Current longitude")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")

	return cmd
}

func runRecommend(ctx context.Context, stdout, stderr io.Writer, envFile, placesFile string, lat, lng float64) error {
	location, err := place.NewCoordinates(lat, lng)
	if err != nil {
		return fmt.Errorf("current location: %w", err)
	}

	var visited []place.Place
	if placesFile != "" {
		visited, err = loadPlaces(placesFile)
		if err != nil {
			return err
		}
	}

	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	logger := stderrLogger(cfg, stderr)

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	result := client.Recommendations.Recommend(ctx, recommendation.NewRequest(visited, location))
	return printJSON(stdout, dto.NewRecommendationResponse(result))
}

// placeEntry is one visited place in a places file.
type placeEntry struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	City        string `yaml:"city" json:"city"`
	Description string `yaml:"description" json:"description"`
	Coordinates struct {
		Latitude  float64 `yaml:"latitude" json:"latitude"`
		Longitude float64 `yaml:"longitude" json:"longitude"`
	} `yaml:"coordinates" json:"coordinates"`
}

// loadPlaces reads a places file. Files ending in .json are decoded as
// JSON, anything else as YAML.
func loadPlaces(path string) ([]place.Place, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read places: %w", err)
	}

	var entries []placeEntry
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &entries)
	} else {
		err = yaml.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("parse places %s: %w", path, err)
	}

	places := make([]place.Place, 0, len(entries))
	for i, e := range entries {
		coordinates, err := place.NewCoordinates(e.Coordinates.Latitude, e.Coordinates.Longitude)
		if err != nil {
			return nil, fmt.Errorf("place %d (%s): %w", i, e.Name, err)
		}
		p, err := place.NewPlace(e.Name, coordinates, place.OriginVisited)
		if err != nil {
			return nil, fmt.Errorf("place %d: %w", i, err)
		}
		places = append(places, p.WithID(e.ID).WithCity(e.City).WithDescription(e.Description))
	}
	return places, nil
}

func printJSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

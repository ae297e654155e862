package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/helixml/travelmap/infrastructure/api/v1/dto"
)

func geocodeCmd() *cobra.Command {
	var (
		envFile  string
		lat, lng float64
	)

	cmd := &cobra.Command{
		Use:   "geocode",
		Short: "Print the city at a coordinate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeocode(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), envFile, lat, lng)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")

	return cmd
}

func runGeocode(ctx context.Context, stdout, stderr io.Writer, envFile string, lat, lng float64) error {
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

	city := client.Resolver.Resolve(ctx, lat, lng)
	return printJSON(stdout, dto.ReverseGeocodeResponse{City: city})
}

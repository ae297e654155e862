package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixml/travelmap/internal/mcp"
)

func stdioCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This lets AI assistants ask travelmap for place recommendations and city names.
Configuration is loaded from environment variables and .env file. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func runStdio(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	// stdout carries the protocol.
	logger := stderrLogger(cfg, os.Stderr)
	logger.Info("starting MCP server", slog.String("version", version))

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	if !client.HasProvider() {
		logger.Warn("no recommendation endpoint configured, recommend_places will return empty lists")
	}

	return mcp.NewServer(client.Recommendations, client.Resolver, version, logger).ServeStdio()
}

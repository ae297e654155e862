package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixml/travelmap/infrastructure/api"
	"github.com/helixml/travelmap/internal/config"
	"github.com/helixml/travelmap/internal/log"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                          Server host to bind to (default: 0.0.0.0)
  PORT                          Server port to listen on (default: 8080)
  DB_URL                        Place store, sqlite:///path or postgres://... (default: none)
  LOG_LEVEL                     Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                    Log format: pretty, json (default: pretty)
  API_KEYS                      Comma-separated keys required by /api/v1/users routes
  CORS_ALLOWED_ORIGINS          Comma-separated allowed origins (default: *)
  RATE_LIMIT_REQUESTS           Requests per client IP per window, 0 disables (default: 60)
  RATE_LIMIT_WINDOW             Rate limit window in seconds (default: 60)

  RECOMMENDATION_ENDPOINT_*     Chat completion service
    BASE_URL                    Base URL (default: https://openrouter.ai/api/v1)
    MODEL                       Model identifier (default: mistralai/mistral-7b-instruct)
    API_KEY                     API key; recommendations are empty without one
    TIMEOUT                     Request timeout in seconds (default: 15)
    MAX_RETRIES                 Retry attempts (default: 2)

  GEOCODER_*                    Reverse geocoding service
    BASE_URL                    Nominatim base URL
    USER_AGENT                  User-Agent sent with every request
    CACHE_SIZE, CACHE_TTL       Locality cache size and TTL in seconds

  PIPELINE_*                    Recommendation limits
    MAX_SUGGESTIONS             Entries per list (default: 3)
    DEADLINE                    Bound on one recommendation in seconds (default: 20)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(ctx context.Context, envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = applyServeOverrides(cfg, host, port)

	logger := log.Configure(cfg)
	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	logger.LogAttrs(ctx, slog.LevelInfo, "starting travelmap", attrs...)

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	apiServer := api.NewAPIServer(client,
		api.WithCORSOrigins(cfg.CORSAllowedOrigins()),
		api.WithRateLimit(cfg.RateLimitRequests(), cfg.RateLimitWindow()),
		api.WithVersion(version),
	)

	server := api.NewServer(cfg.Addr(), logger).WithTimeouts(serverTimeouts(cfg))
	server.Router().Mount("/", apiServer.Handler())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("shutdown error", slog.Any("error", err))
	}
	return <-errCh
}

// serverTimeouts keeps the write timeout above the recommendation deadline.
func serverTimeouts(cfg config.AppConfig) api.Timeouts {
	t := api.DefaultTimeouts()
	if minWrite := cfg.Pipeline().Deadline() + shutdownTimeout; minWrite > t.Write {
		t.Write = minWrite
	}
	return t
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}

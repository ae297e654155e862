package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/helixml/travelmap"
	"github.com/helixml/travelmap/internal/config"
	"github.com/helixml/travelmap/internal/log"
)

// newClient builds the travelmap client every entrypoint shares. Callers
// append entrypoint-specific options.
func newClient(cfg config.AppConfig, logger *slog.Logger, extra ...travelmap.Option) (*travelmap.Client, error) {
	opts := append([]travelmap.Option{
		travelmap.WithAppConfig(cfg),
		travelmap.WithLogger(logger),
	}, extra...)

	client, err := travelmap.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create travelmap client: %w", err)
	}
	return client, nil
}

// closeClient closes client and logs any failure.
func closeClient(client *travelmap.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Error("failed to close travelmap client", slog.Any("error", err))
	}
}

// stderrLogger logs to w so stdout stays free for command output.
func stderrLogger(cfg config.AppConfig, w io.Writer) *slog.Logger {
	return log.NewLoggerWithWriter(w, cfg.LogFormat(), cfg.LogLevel())
}

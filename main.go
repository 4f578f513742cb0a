package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bq-drive-exporter/config"
	"bq-drive-exporter/logging"
	"bq-drive-exporter/service"
)

const (
	exitOK = iota
	exitError
	exitMissingResource
	exitAuthentication
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Structured JSON logging; the level is re-read once the configuration is loaded.
	logger := logging.New(os.Stdout, os.Getenv("LOG_LEVEL"))

	cfg := config.MustLoad(ctx, logger, ".env")
	logger = logging.New(os.Stdout, cfg.LogLevel)

	pipeline := &service.Pipeline{
		Logger:    logger,
		QueryFile: cfg.QueryFile,
		FolderID:  cfg.FolderID,
		Connect: func(ctx context.Context) (*service.Clients, error) {
			return service.NewClients(ctx, logger, cfg)
		},
	}

	code := exitCode(ctx, logger, run(ctx, pipeline))
	stop()
	os.Exit(code)
}

func run(ctx context.Context, p *service.Pipeline) error {
	_, err := p.Run(ctx)
	return err
}

// exitCode logs err under its category and maps it to the process exit status.
func exitCode(ctx context.Context, logger *slog.Logger, err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, service.ErrMissingResource):
		logger.ErrorContext(ctx, "File not found", "error", err)
		return exitMissingResource
	case errors.Is(err, service.ErrAuthentication):
		logger.ErrorContext(ctx, "Google authentication error", "error", err)
		return exitAuthentication
	default:
		logger.ErrorContext(ctx, "Unexpected error", "error", err)
		return exitError
	}
}

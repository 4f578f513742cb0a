package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"bq-drive-exporter/config"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Clients holds the two handles the export needs.
type Clients struct {
	Warehouse Warehouse
	Uploader  Uploader

	closers []func() error
}

// Close releases every underlying client.
func (c *Clients) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Scopes returns the OAuth scopes needed for cfg: BigQuery plus one write
// scope for the destination. Drive uses drive.file unless cfg.DriveScope
// asks for full access.
func Scopes(cfg *config.Config) []string {
	switch {
	case cfg.ExportDriver == config.DriverGCS:
		return []string{bigquery.Scope, storage.ScopeReadWrite}
	case cfg.DriveScope == config.DriveScopeFull:
		return []string{bigquery.Scope, drive.DriveScope}
	default:
		return []string{bigquery.Scope, drive.DriveFileScope}
	}
}

// TokenSourceFromFile reads a service account key and returns a token source
// limited to scopes.
func TokenSourceFromFile(ctx context.Context, path string, scopes ...string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}
	conf, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid service account key %s: %w", ErrAuthentication, path, err)
	}
	return conf.TokenSource(ctx), nil
}

// NewClients builds the BigQuery client and the uploader selected by
// cfg.ExportDriver, sharing one set of credentials. The storage client uses
// an HTTP client with cfg.Timeout.
func NewClients(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*Clients, error) {
	scopes := Scopes(cfg)
	ts, err := TokenSourceFromFile(ctx, cfg.CredentialsPath, scopes...)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load credentials", "path", cfg.CredentialsPath, "error", err)
		return nil, err
	}

	bq, err := NewBigQueryService(ctx, logger, cfg.ProjectID, cfg.QueryLocation, option.WithTokenSource(ts))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize BigQuery client", "project_id", cfg.ProjectID, "error", err)
		return nil, err
	}
	clients := &Clients{
		Warehouse: bq,
		closers:   []func() error{bq.Close},
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   http.DefaultTransport,
		},
	}

	switch cfg.ExportDriver {
	case config.DriverGCS:
		gcs, err := storage.NewClient(ctx, option.WithHTTPClient(httpClient))
		if err != nil {
			_ = clients.Close()
			logger.ErrorContext(ctx, "Failed to initialize Cloud Storage client", "error", err)
			return nil, fmt.Errorf("storage.NewClient: %w", err)
		}
		clients.closers = append(clients.closers, gcs.Close)
		clients.Uploader = NewGCSUploader(gcs, cfg.GCSBucket, cfg.ChunkSize, logger)
	default:
		svc, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
		if err != nil {
			_ = clients.Close()
			logger.ErrorContext(ctx, "Failed to initialize Google Drive client", "error", err)
			return nil, fmt.Errorf("drive.NewService: %w", err)
		}
		clients.Uploader = NewDriveUploader(svc, cfg.ChunkSize, logger)
	}

	logger.InfoContext(ctx, "Clients initialized",
		"project_id", cfg.ProjectID,
		"export_driver", cfg.ExportDriver,
		"scopes", scopes,
		"timeout", cfg.Timeout,
	)
	return clients, nil
}

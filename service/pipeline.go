package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Pipeline runs one export: query file, BigQuery, CSV, upload.
type Pipeline struct {
	Logger    *slog.Logger
	QueryFile string
	FolderID  string

	// Connect builds the clients. It is only called once the query file has been read.
	Connect func(ctx context.Context) (*Clients, error)

	// Now defaults to time.Now and names the uploaded file.
	Now func() time.Time
}

// Run executes the export once and returns the identifier of the uploaded file.
func (p *Pipeline) Run(ctx context.Context) (UploadResult, error) {
	runID := uuid.NewString()
	logger := p.Logger.With("run_id", runID)

	// Not logged here: the caller reports a missing query file.
	query, err := LoadQueryFromFile(p.QueryFile)
	if err != nil {
		return UploadResult{}, err
	}

	clients, err := p.Connect(ctx)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to initialize clients: %w", err)
	}
	defer func() {
		if err := clients.Close(); err != nil {
			logger.WarnContext(ctx, "Failed to close clients", "error", err)
		}
	}()

	table, err := clients.Warehouse.RunQuery(ctx, jobID(runID), query)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to execute query: %w", err)
	}

	buf, err := EncodeCSV(table)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to encode results as CSV", "error", err)
		return UploadResult{}, err
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	target := UploadTarget{
		FolderID: p.FolderID,
		Filename: Filename(now()),
		MimeType: DriveSpreadsheetMimeType,
	}

	res, err := clients.Uploader.Upload(ctx, target, bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to upload %s: %w", target.Filename, err)
	}

	logger.InfoContext(ctx, "File ID: "+res.FileID,
		"file_id", res.FileID,
		"filename", target.Filename,
		"rows", len(table.Rows),
		"bytes", res.Bytes,
	)
	return res, nil
}

func jobID(runID string) string {
	return "resultados_" + runID
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

var _ Uploader = (*DriveUploader)(nil)

// DriveUploader creates files in a Google Drive folder using the resumable
// upload protocol.
type DriveUploader struct {
	service   *drive.Service
	chunkSize int
	logger    *slog.Logger

	// OnProgress, if set, receives every progress report after it is logged.
	OnProgress func(current, total int64)
}

// NewDriveUploader returns an uploader sending chunkSize bytes per request.
// A chunkSize of zero uploads the content in a single request.
func NewDriveUploader(svc *drive.Service, chunkSize int, logger *slog.Logger) *DriveUploader {
	return &DriveUploader{
		service:   svc,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

func (u *DriveUploader) Upload(ctx context.Context, target UploadTarget, content io.Reader, size int64) (UploadResult, error) {
	metadata := &drive.File{
		Name:     target.Filename,
		Parents:  []string{target.FolderID},
		MimeType: target.MimeType,
	}
	progress := newProgressReporter(ctx, u.logger, target.Filename, size, u.OnProgress)

	u.logger.InfoContext(ctx, "Starting Google Drive upload",
		"filename", target.Filename,
		"folder_id", target.FolderID,
		"bytes", size,
		"chunk_size", u.chunkSize,
	)

	file, err := u.service.Files.Create(metadata).
		Media(content, googleapi.ContentType(csvContentType), googleapi.ChunkSize(u.chunkSize)).
		ProgressUpdater(func(current, _ int64) { progress.update(current) }).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		err = classifyAuth(err)
		u.logger.ErrorContext(ctx, "Failed to upload to Google Drive",
			"filename", target.Filename,
			"folder_id", target.FolderID,
			"bytes_sent", progress.transferred(),
			"error", err,
		)
		return UploadResult{}, fmt.Errorf("drive upload %s: %w", target.Filename, err)
	}
	if file == nil || file.Id == "" {
		err := errors.New("drive returned no file id")
		u.logger.ErrorContext(ctx, "Failed to upload to Google Drive", "filename", target.Filename, "error", err)
		return UploadResult{}, fmt.Errorf("drive upload %s: %w", target.Filename, err)
	}

	return UploadResult{FileID: file.Id, Bytes: size}, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"cloud.google.com/go/storage"
)

var _ Uploader = (*GCSUploader)(nil)

// GCSUploader writes the artifact to a Cloud Storage bucket. The target
// folder is used as the object prefix.
type GCSUploader struct {
	client    *storage.Client
	bucket    string
	chunkSize int
	logger    *slog.Logger

	OnProgress func(current, total int64)
}

func NewGCSUploader(client *storage.Client, bucket string, chunkSize int, logger *slog.Logger) *GCSUploader {
	return &GCSUploader{
		client:    client,
		bucket:    bucket,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

func (u *GCSUploader) Upload(ctx context.Context, target UploadTarget, content io.Reader, size int64) (UploadResult, error) {
	objectName := path.Join(target.FolderID, target.Filename)
	progress := newProgressReporter(ctx, u.logger, target.Filename, size, u.OnProgress)

	u.logger.InfoContext(ctx, "Starting Cloud Storage upload",
		"bucket", u.bucket,
		"object", objectName,
		"bytes", size,
		"chunk_size", u.chunkSize,
	)

	// Cancelling the writer's context aborts the upload without committing the object.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wc := u.client.Bucket(u.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = csvContentType
	wc.ChunkSize = u.chunkSize
	wc.ProgressFunc = progress.update

	if _, err := io.Copy(wc, content); err != nil {
		cancel()
		_ = wc.Close()
		return UploadResult{}, u.fail(ctx, objectName, progress, fmt.Errorf("storage.Writer.Write: %w", err))
	}
	if err := wc.Close(); err != nil {
		return UploadResult{}, u.fail(ctx, objectName, progress, fmt.Errorf("storage.Writer.Close: %w", err))
	}

	attrs := wc.Attrs()
	if attrs == nil || attrs.Name == "" {
		return UploadResult{}, u.fail(ctx, objectName, progress, errors.New("storage returned no object attributes"))
	}
	id := fmt.Sprintf("%s/%s/%d", attrs.Bucket, attrs.Name, attrs.Generation)
	return UploadResult{FileID: id, Bytes: size}, nil
}

func (u *GCSUploader) fail(ctx context.Context, objectName string, progress *progressReporter, err error) error {
	err = classifyAuth(err)
	u.logger.ErrorContext(ctx, "Failed to upload to Cloud Storage",
		"bucket", u.bucket,
		"object", objectName,
		"bytes_sent", progress.transferred(),
		"error", err,
	)
	return fmt.Errorf("gcs upload %s: %w", objectName, err)
}

package service

import (
	"context"
	"io"
	"time"
)

const (
	// DriveSpreadsheetMimeType makes Drive convert the uploaded CSV into a spreadsheet.
	DriveSpreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

	csvContentType = "text/csv"
)

type UploadTarget struct {
	FolderID string
	Filename string
	MimeType string
}

type UploadResult struct {
	FileID string
	Bytes  int64
}

// Uploader stores one artifact as a new resource. It either returns the
// identifier assigned by the storage service or an error, never both.
type Uploader interface {
	Upload(ctx context.Context, target UploadTarget, content io.Reader, size int64) (UploadResult, error)
}

// Filename returns the artifact name for an export started at t.
func Filename(t time.Time) string {
	return "resultados_" + t.Format("20060102150405") + ".csv"
}

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// ErrConfiguration is returned when a required setting is missing or invalid.
var ErrConfiguration = errors.New("configuration error")

const (
	DriverDrive = "drive"
	DriverGCS   = "gcs"

	DefaultQueryFile = "sql/query.sql"

	// DriveScopeFile only reaches files the service account created or
	// opened; some shared folders reject new children under it.
	DriveScopeFile = "drive.file"
	// DriveScopeFull reaches every file shared with the service account.
	DriveScopeFull = "drive"
)

// Config is loaded once at startup and read-only afterwards.
type Config struct {
	ProjectID       string `env:"PROJECT_ID"`
	FolderID        string `env:"FOLDER_ID"`
	CredentialsPath string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	QueryFile     string `env:"QUERY_FILE, default=sql/query.sql"`
	QueryLocation string `env:"QUERY_LOCATION"`

	ExportDriver string        `env:"EXPORT_DRIVER, default=drive"`
	DriveScope   string        `env:"DRIVE_SCOPE, default=drive.file"`
	GCSBucket    string        `env:"GCS_BUCKET"`
	ChunkSize    int           `env:"UPLOAD_CHUNK_SIZE, default=16777216"`
	Timeout      time.Duration `env:"UPLOAD_TIMEOUT, default=300s"`

	LogLevel string `env:"LOG_LEVEL, default=info"`
}

// exit is swapped in tests.
var exit = os.Exit

// LoadEnvFile loads a .env file into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to parse %s: %w", ErrConfiguration, path, err)
	}
	return true, nil
}

// Load decodes the configuration from l and validates it.
func Load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required keys, the credentials file and the destination settings.
func (c *Config) Validate() error {
	required := []struct {
		key, value string
	}{
		{"PROJECT_ID", c.ProjectID},
		{"FOLDER_ID", c.FolderID},
		{"GOOGLE_APPLICATION_CREDENTIALS", c.CredentialsPath},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: environment variable %s not found, check your .env file", ErrConfiguration, r.key)
		}
	}

	info, err := os.Stat(c.CredentialsPath)
	if err != nil {
		return fmt.Errorf("%w: credentials file %s was not found: %w", ErrConfiguration, c.CredentialsPath, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: credentials path %s is not a regular file", ErrConfiguration, c.CredentialsPath)
	}

	c.ExportDriver = strings.ToLower(strings.TrimSpace(c.ExportDriver))
	switch c.ExportDriver {
	case DriverDrive:
	case DriverGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("%w: GCS_BUCKET is required when EXPORT_DRIVER=%s", ErrConfiguration, DriverGCS)
		}
	default:
		return fmt.Errorf("%w: unsupported EXPORT_DRIVER %q", ErrConfiguration, c.ExportDriver)
	}

	c.DriveScope = strings.ToLower(strings.TrimSpace(c.DriveScope))
	switch c.DriveScope {
	case "":
		c.DriveScope = DriveScopeFile
	case DriveScopeFile, DriveScopeFull:
	default:
		return fmt.Errorf("%w: unsupported DRIVE_SCOPE %q, use %q or %q", ErrConfiguration, c.DriveScope, DriveScopeFile, DriveScopeFull)
	}

	if c.QueryFile == "" {
		c.QueryFile = DefaultQueryFile
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("%w: UPLOAD_CHUNK_SIZE must not be negative", ErrConfiguration)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: UPLOAD_TIMEOUT must be positive", ErrConfiguration)
	}
	return nil
}

// MustLoad loads envFile and the process environment. Any violation is logged
// and terminates the process with exit status 1: there is no caller to recover.
func MustLoad(ctx context.Context, logger *slog.Logger, envFile string) *Config {
	found, err := LoadEnvFile(envFile)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load environment file", "path", envFile, "error", err)
		exit(1)
		return nil
	}
	if !found {
		logger.InfoContext(ctx, "No .env file found, using system environment variables")
	}

	cfg, err := Load(ctx, envconfig.OsLookuper())
	if err != nil {
		logger.ErrorContext(ctx, "Invalid configuration", "error", err)
		exit(1)
		return nil
	}
	return cfg
}

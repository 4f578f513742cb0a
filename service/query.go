package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"cloud.google.com/go/bigquery"
)

// Table is a fully materialized query result. Every row holds exactly
// len(Columns) values, in column order.
type Table struct {
	Columns []string
	Rows    [][]bigquery.Value
}

// LoadQueryFromFile reads the SQL statement stored at path.
func LoadQueryFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: query file %s was not found: %w", ErrMissingResource, path, err)
		}
		return "", fmt.Errorf("failed to read query file %s: %w", path, err)
	}
	query := string(data)
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query file %s is empty", path)
	}
	return query, nil
}

package service

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Warehouse runs a query and returns its whole result set.
type Warehouse interface {
	RunQuery(ctx context.Context, jobID, sqlQuery string) (*Table, error)
}

var _ Warehouse = (*BigQueryService)(nil)

type BigQueryService struct {
	client   *bigquery.Client
	location string
	logger   *slog.Logger
}

func NewBigQueryService(ctx context.Context, logger *slog.Logger, projectID, location string, opts ...option.ClientOption) (*BigQueryService, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	return &BigQueryService{
		client:   client,
		location: location,
		logger:   logger,
	}, nil
}

func (s *BigQueryService) Close() error {
	return s.client.Close()
}

// RunQuery submits sqlQuery as job jobID, waits for it to finish and reads
// every row into memory. No page limit is applied: the result must fit in memory.
func (s *BigQueryService) RunQuery(ctx context.Context, jobID, sqlQuery string) (*Table, error) {
	q := s.client.Query(sqlQuery)
	q.Location = s.location
	q.JobID = jobID

	job, err := q.Run(ctx)
	if err != nil {
		err = classifyAuth(err)
		s.logger.ErrorContext(ctx, "Failed to start query job", "job_id", jobID, "error", err)
		return nil, fmt.Errorf("failed to start query job: %w", err)
	}

	s.logger.InfoContext(ctx, "Query job submitted", "job_id", job.ID(), "location", job.Location())

	status, err := job.Wait(ctx)
	if err != nil {
		err = classifyAuth(err)
		s.logger.ErrorContext(ctx, "Query job failed during execution", "job_id", job.ID(), "error", err)
		return nil, fmt.Errorf("job failed during execution: %w", err)
	}
	if err := status.Err(); err != nil {
		s.logger.ErrorContext(ctx, "Query job completed with error", "job_id", job.ID(), "error", err)
		return nil, fmt.Errorf("job completed with error: %w", err)
	}

	it, err := job.Read(ctx)
	if err != nil {
		err = classifyAuth(err)
		s.logger.ErrorContext(ctx, "Failed to read query results", "job_id", job.ID(), "error", err)
		return nil, fmt.Errorf("failed to read query results: %w", err)
	}

	table, err := readTable(it, func() bigquery.Schema { return it.Schema })
	if err != nil {
		err = classifyAuth(err)
		s.logger.ErrorContext(ctx, "Failed to iterate query results", "job_id", job.ID(), "error", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "Query job completed successfully",
		"job_id", job.ID(),
		"columns", len(table.Columns),
		"rows", len(table.Rows),
	)
	return table, nil
}

type rowIterator interface {
	Next(dst interface{}) error
}

// readTable drains it. The schema is read after iteration because the
// iterator only learns it with the first page, which may hold no rows.
func readTable(it rowIterator, schema func() bigquery.Schema) (*Table, error) {
	var rows [][]bigquery.Value
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows), err)
		}
		rows = append(rows, values)
	}

	fields := schema()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, schema has %d columns", i, len(row), len(columns))
		}
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

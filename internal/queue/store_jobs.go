package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Create inserts a pending job. Submitting a URL that is already stored
// returns a *DuplicateError and leaves the existing job untouched.
func (s *Store) Create(ctx context.Context, in NewJob) (*Job, error) {
	ctx = ensureContext(ctx)
	normalized, err := normalizeJobURL(in.URL)
	if err != nil {
		return nil, err
	}
	timestamp := s.timestamp()

	query := s.dialect.rebind(`INSERT INTO jobs (
            url, title, description, source, published_at, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err = retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(
			ctx,
			query,
			normalized,
			strings.TrimSpace(in.Title),
			strings.TrimSpace(in.Description),
			strings.TrimSpace(in.Source),
			nullableTime(in.PublishedAt),
			StatusPending,
			timestamp,
			timestamp,
		).Scan(&id)
	})
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			dup := &DuplicateError{URL: normalized}
			if existing, lookupErr := s.GetByURL(ctx, normalized); lookupErr == nil && existing != nil {
				dup.ExistingID = existing.ID
			}
			return nil, dup
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetByID(ctx, id)
}

func normalizeJobURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidJob)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: parse url: %v", ErrInvalidJob, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: url must use http or https", ErrInvalidJob)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: url must be absolute", ErrInvalidJob)
	}
	return trimmed, nil
}

// GetByID fetches a job by identifier. It returns nil when no job matches.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	job, err := s.queryJobWithRetry(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetByURL fetches the job for a source URL. It returns nil when no job matches.
func (s *Store) GetByURL(ctx context.Context, rawURL string) (*Job, error) {
	job, err := s.queryJobWithRetry(ctx, `SELECT `+jobColumns+` FROM jobs WHERE url = ?`, strings.TrimSpace(rawURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by url: %w", err)
	}
	return job, nil
}

// List returns jobs in creation order, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ClaimNext leases the oldest job waiting for stage to owner. A job is
// claimable when it sits in the stage precondition, carries no live lease, and
// its backoff window has elapsed. Leases older than leaseTTL count as expired.
// It returns nil when nothing is claimable.
func (s *Store) ClaimNext(ctx context.Context, stage Stage, owner string, leaseTTL time.Duration) (*Job, error) {
	spec, ok := lookupStage(stage)
	if !ok {
		return nil, fmt.Errorf("claim job: unknown stage %q", stage)
	}
	if strings.TrimSpace(owner) == "" {
		return nil, errors.New("claim job: owner required")
	}
	now := s.now()
	nowStr := formatTime(now)
	expired := formatTime(now.Add(-leaseTTL))

	query := `UPDATE jobs
        SET locked_by = ?, locked_at = ?, updated_at = ?
        WHERE id = (
            SELECT id FROM jobs
            WHERE status = ?
              AND (locked_by IS NULL OR locked_at < ?)
              AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
            ORDER BY created_at, id
            LIMIT 1` + s.dialect.claimLock + `
        )
          AND status = ?
          AND (locked_by IS NULL OR locked_at < ?)
        RETURNING ` + jobColumns

	job, err := s.queryJobWithRetry(
		ctx,
		query,
		owner, nowStr, nowStr,
		spec.precondition, expired, nowStr,
		spec.precondition, expired,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// RenewLease refreshes the lease timestamp for a job held by owner.
func (s *Store) RenewLease(ctx context.Context, id int64, owner string) error {
	timestamp := s.timestamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET locked_at = ?, updated_at = ? WHERE id = ? AND locked_by = ?`,
		timestamp,
		timestamp,
		id,
		owner,
	)
	if err != nil {
		return fmt.Errorf("renew lease: %w", err)
	}
	return requireAffected(res)
}

// Release drops the lease owner holds without changing the job.
func (s *Store) Release(ctx context.Context, id int64, owner string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET locked_by = NULL, locked_at = NULL, updated_at = ? WHERE id = ? AND locked_by = ?`,
		s.timestamp(),
		id,
		owner,
	)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return requireAffected(res)
}

// ReleaseExpiredLeases clears leases older than ttl so a crashed worker's jobs
// become claimable again.
func (s *Store) ReleaseExpiredLeases(ctx context.Context, ttl time.Duration) (int64, error) {
	now := s.now()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET locked_by = NULL, locked_at = NULL, updated_at = ?
         WHERE locked_by IS NOT NULL AND locked_at < ?`,
		formatTime(now),
		formatTime(now.Add(-ttl)),
	)
	if err != nil {
		return 0, fmt.Errorf("release expired leases: %w", err)
	}
	return res.RowsAffected()
}

// ForceRelease clears leases regardless of owner. With no ids it clears every
// lease. Operators use it after a crash when waiting for expiry is not wanted.
func (s *Store) ForceRelease(ctx context.Context, ids ...int64) (int64, error) {
	query := `UPDATE jobs SET locked_by = NULL, locked_at = NULL, updated_at = ? WHERE locked_by IS NOT NULL`
	args := []any{s.timestamp()}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("force release: %w", err)
	}
	return res.RowsAffected()
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrLeaseLost
	}
	return nil
}

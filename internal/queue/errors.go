package queue

import (
	"errors"
	"fmt"

	"newsreel/internal/services"
)

var (
	// ErrLeaseLost means the caller no longer holds the job: another worker
	// reclaimed it, or its status moved on.
	ErrLeaseLost = errors.New("job lease lost")
	// ErrInvalidTransition rejects commits that skip, reverse, or cross stages.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound is returned by operations that require an existing job.
	ErrNotFound = errors.New("job not found")
)

// DuplicateError reports a submission whose URL is already queued.
type DuplicateError struct {
	URL        string
	ExistingID int64
}

func (e *DuplicateError) Error() string {
	if e.ExistingID > 0 {
		return fmt.Sprintf("job for %s already exists (id %d)", e.URL, e.ExistingID)
	}
	return fmt.Sprintf("job for %s already exists", e.URL)
}

// Unwrap tags the error with the duplicate-input marker.
func (e *DuplicateError) Unwrap() error {
	return services.ErrDuplicateInput
}

// ErrInvalidJob rejects submissions that fail validation.
var ErrInvalidJob = errors.New("invalid job")

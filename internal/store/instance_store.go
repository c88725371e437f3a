package store

import (
	"context"
	"errors"
	"time"

	"cronq/internal/models"
	"cronq/internal/state"
	"cronq/types"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrInstanceNotFound = errors.New("instance not found")
)

// InstanceStore is the instance ledger. The scheduler only inserts; the
// dispatcher only updates rows it owns by instance id.
type InstanceStore interface {
	// Insert writes a new queued instance row. It is an idempotent claim:
	// if an instance already exists for the same (job_id, start_time) pair
	// the insert is a no-op and Insert returns false.
	Insert(ctx context.Context, instance models.Instance) (bool, error)

	// FindByID returns the instance or ErrInstanceNotFound.
	FindByID(ctx context.Context, instanceID string) (*models.Instance, error)

	// MarkRunning transitions queued -> running and stamps the executing
	// machine.
	MarkRunning(ctx context.Context, instanceID string, machine string) error

	// MarkCompleted transitions to completed and sets end_time.
	MarkCompleted(ctx context.Context, instanceID string, endTime time.Time) error

	// MarkFailed transitions to failed, sets end_time and records the error.
	MarkFailed(ctx context.Context, instanceID string, endTime time.Time, errMsg string) error

	// MarkRequeued resets a failed instance to queued for an operator
	// restart, clearing end_time and the recorded error.
	MarkRequeued(ctx context.Context, instanceID string) error

	// ListByStatus returns instances joined with their job names. When
	// endedAfter is non-nil only instances with end_time at or after it are
	// returned; open statuses are listed unbounded with a nil cutoff.
	ListByStatus(ctx context.Context, status state.InstanceStatus, endedAfter *time.Time) ([]models.InstanceReportRow, error)

	// ListPage returns a page of instances for the HTTP surface, optionally
	// filtered by status.
	ListPage(ctx context.Context, page int, pageSize int, status state.InstanceStatus) (*types.PaginationResult[models.InstanceReportRow], error)

	// CountGroupedByStatus returns instance counts for every status,
	// including zero buckets.
	CountGroupedByStatus(ctx context.Context) (map[state.InstanceStatus]int, error)

	// Close closes the database
	Close() error
}

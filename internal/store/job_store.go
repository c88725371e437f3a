package store

import (
	"context"

	"cronq/internal/models"
	"cronq/types"
)

// JobStore is the read side of the job catalog. Nothing in the dispatcher
// subsystem mutates job rows.
type JobStore interface {
	// FetchActive returns active jobs a page at a time for the scheduler scan.
	FetchActive(ctx context.Context, page int, pageSize int) (*types.PaginationResult[models.Job], error)

	// FindByName looks a job up by its human key. Returns ErrJobNotFound
	// when no such job exists.
	FindByName(ctx context.Context, name string) (*models.Job, error)

	// FindByID looks a job up by id. Returns ErrJobNotFound when no such
	// job exists.
	FindByID(ctx context.Context, id int64) (*models.Job, error)

	// Close closes the database
	Close() error
}

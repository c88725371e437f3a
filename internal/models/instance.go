package models

import (
	"cronq/internal/state"
	"time"
)

// Instance is one row of the instance ledger: a single scheduled or executed
// occurrence of a job. StartTime is the expected fire instant, set when the
// row is created; EndTime is set only on a terminal transition.
type Instance struct {
	ID        string
	JobID     int64
	Status    state.InstanceStatus
	StartTime time.Time
	EndTime   *time.Time
	Machine   *string
	LastError *string
	CreatedAt time.Time
}

// InstanceReportRow is an instance joined with its job name, as consumed by
// the digest reporter.
type InstanceReportRow struct {
	JobName    string
	JobID      int64
	InstanceID string
	Status     state.InstanceStatus
	StartTime  time.Time
	EndTime    *time.Time
	Machine    *string
}

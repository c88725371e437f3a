package models

import (
	"cronq/internal/state"
	"time"
)

// ScheduleResult is the outcome of one per-job scheduling attempt within a
// poll cycle. Failures carry the job name so the reporting sink can name the
// unit of work that broke without aborting the rest of the cycle.
type ScheduleResult struct {
	JobName    string
	InstanceID string
	NextFire   time.Time
	Skipped    bool
	Err        error
}

// DispatchResult is the outcome of processing one released queue message.
type DispatchResult struct {
	JobName    string
	InstanceID string
	Status     state.InstanceStatus
	Elapsed    time.Duration
	Err        error
}

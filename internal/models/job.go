package models

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobActive   JobStatus = "active"
	JobInactive JobStatus = "inactive"
)

// Job is one row of the job catalog. The dispatcher subsystem never writes
// jobs; they are created and edited out of band.
type Job struct {
	ID               int64
	Name             string
	CronSchedule     string
	DispatchMethod   string
	DispatchEndpoint string
	DispatchBody     json.RawMessage
	Status           JobStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

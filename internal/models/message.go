package models

import (
	"encoding/json"
	"fmt"
)

// DispatchMessage is the delay-queue payload: a snapshot of the job fields
// plus the instance id, serialized at enqueue time and immutable once sent.
type DispatchMessage struct {
	JobID            int64           `json:"job_id"`
	JobName          string          `json:"job_name"`
	InstanceID       string          `json:"instance_id"`
	DispatchMethod   string          `json:"dispatch_method"`
	DispatchEndpoint string          `json:"dispatch_endpoint"`
	Body             json.RawMessage `json:"body,omitempty"`
}

// NewDispatchMessage snapshots a job for a given instance id.
func NewDispatchMessage(job Job, instanceID string) DispatchMessage {
	return DispatchMessage{
		JobID:            job.ID,
		JobName:          job.Name,
		InstanceID:       instanceID,
		DispatchMethod:   job.DispatchMethod,
		DispatchEndpoint: job.DispatchEndpoint,
		Body:             job.DispatchBody,
	}
}

func (m DispatchMessage) Encode() ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dispatch message: %w", err)
	}
	return payload, nil
}

func DecodeDispatchMessage(payload []byte) (DispatchMessage, error) {
	var m DispatchMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return DispatchMessage{}, fmt.Errorf("failed to decode dispatch message: %w", err)
	}
	return m, nil
}

// RequestBody builds the JSON body for the dispatch call: the job and
// instance identifiers merged over the job's static body.
func (m DispatchMessage) RequestBody() ([]byte, error) {
	body := make(map[string]any)
	if len(m.Body) > 0 {
		if err := json.Unmarshal(m.Body, &body); err != nil {
			return nil, fmt.Errorf("invalid dispatch body for job %s: %w", m.JobName, err)
		}
	}
	body["job_name"] = m.JobName
	body["job_id"] = m.JobID
	body["instance_id"] = m.InstanceID
	return json.Marshal(body)
}

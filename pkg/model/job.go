package model

import (
	"encoding/json"
	"time"
)

// JobKind distinguishes the long-running job families
type JobKind string

const (
	JobSimulation  JobKind = "simulation"
	JobIngestion   JobKind = "ingestion"
	JobRemediation JobKind = "remediation"
)

// JobStatus is the lifecycle state of a job
type JobStatus string

const (
	JobQueued   JobStatus = "queued"
	JobRunning  JobStatus = "running"
	JobComplete JobStatus = "complete"
	JobFailed   JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobComplete || s == JobFailed
}

// Job is a persisted long-running operation. Result holds the raw JSON
// payload of the terminal result so late subscribers can replay it without
// re-reading the topology.
type Job struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	Kind        JobKind         `json:"kind"`
	Status      JobStatus       `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

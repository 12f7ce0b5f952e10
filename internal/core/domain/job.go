package domain

import "time"

// JobStatus is the status reported by the remote parsing service.
type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobSuccess JobStatus = "SUCCESS"
	JobFailed  JobStatus = "FAILED"
)

// Terminal reports whether no further remote transitions can occur.
// Unknown statuses are treated as still in progress.
func (s JobStatus) Terminal() bool {
	return s == JobSuccess || s == JobFailed
}

// ParseJobStatus tracks a submitted document through the gateway.
type ParseJobStatus string

const (
	StatusUploaded   ParseJobStatus = "uploaded"
	StatusProcessing ParseJobStatus = "processing"
	StatusReady      ParseJobStatus = "ready"
	StatusFailed     ParseJobStatus = "failed"
)

// ParseJob is the gateway's record of one document submitted for parsing.
// RemoteJobID is empty until the worker has uploaded the document to the
// parsing service.
type ParseJob struct {
	ID           string         `json:"id"`
	Filename     string         `json:"filename"`
	MimeType     string         `json:"mime_type"`
	StoragePath  string         `json:"storage_path"`
	RemoteJobID  string         `json:"remote_job_id,omitempty"`
	Pages        int            `json:"pages,omitempty"`
	MarkdownPath string         `json:"markdown_path,omitempty"`
	Usage        UsageMetadata  `json:"usage"`
	Status       ParseJobStatus `json:"status"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

package domain

import "time"

// JobStatus enumerates extraction job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job encapsulates the lifecycle of one batch OCR extraction request.
// ProcessedFiles never exceeds TotalFiles, status moves only forward along
// PENDING -> PROCESSING -> {COMPLETED|FAILED|CANCELLED}, and a terminal row
// is immutable.
type Job struct {
	ID              string
	OwnerID         string
	Status          JobStatus
	TotalFiles      int
	ProcessedFiles  int
	FileNames       []string
	ExtractedData   *ExtractedData
	ErrorMessage    string
	CancelRequested bool
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

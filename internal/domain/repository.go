package domain

import "context"

// JobRepository defines persistence for extraction jobs. Mutating methods
// are guarded so a terminal row is never changed.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	// Claim transitions one specific PENDING job to PROCESSING. It reports
	// false when another dispatcher already claimed it.
	Claim(ctx context.Context, jobID string) (bool, error)
	// ClaimNextPending picks the oldest unclaimed PENDING job, marks it
	// PROCESSING and returns it, or ErrNotFound when the queue is empty.
	ClaimNextPending(ctx context.Context) (*Job, error)
	// IncrementProgress adds one to processed_files while the job is still
	// PROCESSING and below total_files.
	IncrementProgress(ctx context.Context, jobID string) error
	// RequestCancel sets the cancellation flag. ErrConflict when terminal.
	RequestCancel(ctx context.Context, jobID string) error
	CancelRequested(ctx context.Context, jobID string) (bool, error)
	// Finalize moves a non-terminal job to a terminal status, recording the
	// aggregated result or the failure message. ErrConflict when the job is
	// already terminal.
	Finalize(ctx context.Context, jobID string, status JobStatus, data *ExtractedData, errMsg string) error
}

// HistoryRepository persists the append-only extraction archive.
type HistoryRepository interface {
	Create(ctx context.Context, rec *HistoryRecord) error
	GetByID(ctx context.Context, id string) (*HistoryRecord, error)
	List(ctx context.Context, ownerID string, q HistoryQuery) ([]HistoryRecord, int, error)
	Delete(ctx context.Context, id string) error
}

// SettingsRepository stores per-user extraction settings.
type SettingsRepository interface {
	// Get returns the user's settings, creating the default row on first
	// access.
	Get(ctx context.Context, ownerID string) (Settings, error)
	Update(ctx context.Context, s Settings) error
}

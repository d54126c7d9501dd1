package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/koki-187/200-sub000/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository. Status transitions are
// guarded in SQL so terminal rows stay immutable even under concurrent
// writers.
type JobRepositoryPG struct {
	db DB
}

// NewJobRepository creates a job repository backed by PostgreSQL.
func NewJobRepository(db DB) *JobRepositoryPG {
	return &JobRepositoryPG{db: db}
}

const jobColumns = `id, owner_id, status, total_files, processed_files, file_names, extracted_data, error_message, cancel_requested, created_at, completed_at`

// Create inserts a new PENDING job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO ocr_jobs (id, owner_id, status, total_files, processed_files, file_names, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := r.db.Exec(ctx, query,
		job.ID,
		job.OwnerID,
		job.Status,
		job.TotalFiles,
		job.ProcessedFiles,
		job.FileNames,
		job.CreatedAt,
	)
	return err
}

// GetByID fetches a job snapshot by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM ocr_jobs
WHERE id = $1;
`
	return scanJob(r.db.QueryRow(ctx, query, jobID))
}

// Claim moves one specific PENDING job to PROCESSING.
func (r *JobRepositoryPG) Claim(ctx context.Context, jobID string) (bool, error) {
	query := `
UPDATE ocr_jobs
SET status = 'PROCESSING'
WHERE id = $1 AND status = 'PENDING';
`
	tag, err := r.db.Exec(ctx, query, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimNextPending picks the oldest PENDING job with a skip-locked claim
// so concurrent workers never double-process.
func (r *JobRepositoryPG) ClaimNextPending(ctx context.Context) (*domain.Job, error) {
	query := `
WITH next_job AS (
    SELECT id
    FROM ocr_jobs
    WHERE status = 'PENDING'
    ORDER BY created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
),
updated AS (
    UPDATE ocr_jobs
    SET status = 'PROCESSING'
    WHERE id IN (SELECT id FROM next_job)
    RETURNING ` + jobColumns + `
)
SELECT * FROM updated;
`
	return scanJob(r.db.QueryRow(ctx, query))
}

// IncrementProgress adds one processed file while the job is PROCESSING
// and below its total. The guard keeps the counter monotonic and bounded.
func (r *JobRepositoryPG) IncrementProgress(ctx context.Context, jobID string) error {
	query := `
UPDATE ocr_jobs
SET processed_files = processed_files + 1
WHERE id = $1 AND status = 'PROCESSING' AND processed_files < total_files;
`
	_, err := r.db.Exec(ctx, query, jobID)
	return err
}

// RequestCancel flags a non-terminal job for cooperative cancellation.
func (r *JobRepositoryPG) RequestCancel(ctx context.Context, jobID string) error {
	query := `
UPDATE ocr_jobs
SET cancel_requested = TRUE
WHERE id = $1 AND status IN ('PENDING', 'PROCESSING');
`
	tag, err := r.db.Exec(ctx, query, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.conflictOrNotFound(ctx, jobID)
	}
	return nil
}

// CancelRequested reads the persisted cancellation flag.
func (r *JobRepositoryPG) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	query := `
SELECT cancel_requested
FROM ocr_jobs
WHERE id = $1;
`
	var requested bool
	if err := r.db.QueryRow(ctx, query, jobID).Scan(&requested); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrNotFound
		}
		return false, err
	}
	return requested, nil
}

// Finalize performs the terminal transition, persisting either the
// aggregated result or the failure message.
func (r *JobRepositoryPG) Finalize(ctx context.Context, jobID string, status domain.JobStatus, data *domain.ExtractedData, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("finalize with non-terminal status %s", status)
	}
	var payload []byte
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal extracted data: %w", err)
		}
		payload = b
	}
	query := `
UPDATE ocr_jobs
SET status = $2,
    extracted_data = $3,
    error_message = NULLIF($4, ''),
    completed_at = NOW()
WHERE id = $1 AND status IN ('PENDING', 'PROCESSING');
`
	tag, err := r.db.Exec(ctx, query, jobID, status, payload, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.conflictOrNotFound(ctx, jobID)
	}
	return nil
}

func (r *JobRepositoryPG) conflictOrNotFound(ctx context.Context, jobID string) error {
	if _, err := r.GetByID(ctx, jobID); err != nil {
		return err
	}
	return domain.ErrConflict
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job     domain.Job
		payload []byte
		errMsg  *string
	)
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Status,
		&job.TotalFiles,
		&job.ProcessedFiles,
		&job.FileNames,
		&payload,
		&errMsg,
		&job.CancelRequested,
		&job.CreatedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if errMsg != nil {
		job.ErrorMessage = *errMsg
	}
	if len(payload) > 0 {
		var data domain.ExtractedData
		if err := json.Unmarshal(payload, &data); err != nil {
			return nil, fmt.Errorf("decode extracted data: %w", err)
		}
		job.ExtractedData = &data
	}
	return &job, nil
}

// Package ocr implements the extraction job pipeline: submission
// validation, the bounded worker pool, result aggregation and the job
// lifecycle.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/koki-187/200-sub000/internal/domain"
	"github.com/koki-187/200-sub000/internal/infra"
	"github.com/koki-187/200-sub000/internal/raster"
	"github.com/koki-187/200-sub000/internal/storage"
)

// MaxFileSize bounds a single submitted file.
const MaxFileSize = 10 << 20

var allowedMIMETypes = map[string]struct{}{
	"image/png":       {},
	"image/jpeg":      {},
	"image/webp":      {},
	"application/pdf": {},
}

// Orchestrator owns job records: it validates submissions, dispatches work
// to the pool and performs terminal transitions.
type Orchestrator struct {
	jobs     domain.JobRepository
	history  domain.HistoryRepository
	settings domain.SettingsRepository
	store    *storage.FileStore
	pool     *Pool
	logger   infra.Logger

	// procCtx outlives individual HTTP requests so background processing
	// is only stopped by process shutdown.
	procCtx  context.Context
	registry *cancelRegistry
}

// NewOrchestrator wires the job pipeline. procCtx should be the process
// lifetime context; it bounds background processing, not requests.
func NewOrchestrator(procCtx context.Context, jobs domain.JobRepository, history domain.HistoryRepository, settings domain.SettingsRepository, store *storage.FileStore, pool *Pool, logger infra.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     jobs,
		history:  history,
		settings: settings,
		store:    store,
		pool:     pool,
		logger:   logger,
		procCtx:  procCtx,
		registry: newCancelRegistry(),
	}
}

// CreateJob validates a submission, persists a PENDING job plus its
// artifacts and hands the file set to the pool asynchronously. It returns
// the new job id without waiting for processing.
func (o *Orchestrator) CreateJob(ctx context.Context, ownerID string, files []raster.File) (string, error) {
	settings, err := o.settings.Get(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}

	if err := validateSubmission(files, settings); err != nil {
		return "", err
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}

	job := &domain.Job{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Status:     domain.JobStatusPending,
		TotalFiles: len(files),
		FileNames:  names,
		CreatedAt:  time.Now().UTC(),
	}

	if o.store != nil {
		if err := o.store.WriteJobFiles(ctx, job.ID, files); err != nil {
			return "", fmt.Errorf("persist job artifacts: %w", err)
		}
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	go o.dispatch(job, files)

	o.logger.Info().
		Str("job_id", job.ID).
		Str("owner_id", ownerID).
		Int("total_files", job.TotalFiles).
		Msg("ocr: job created")
	return job.ID, nil
}

// GetJob returns the current job snapshot for its owner.
func (o *Orchestrator) GetJob(ctx context.Context, jobID, ownerID string) (*domain.Job, error) {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return job, nil
}

// CancelJob requests cooperative cancellation. Terminal jobs return
// domain.ErrConflict and stay untouched.
func (o *Orchestrator) CancelJob(ctx context.Context, jobID, ownerID string) error {
	job, err := o.GetJob(ctx, jobID, ownerID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return domain.ErrConflict
	}
	o.registry.set(jobID)
	if err := o.jobs.RequestCancel(ctx, jobID); err != nil {
		return err
	}
	o.logger.Info().Str("job_id", jobID).Msg("ocr: cancellation requested")
	return nil
}

// SaveHistory snapshots a COMPLETED job's result into the archive. Used
// for the explicit save path when auto-save is disabled.
func (o *Orchestrator) SaveHistory(ctx context.Context, jobID, ownerID string) (*domain.HistoryRecord, error) {
	job, err := o.GetJob(ctx, jobID, ownerID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusCompleted || job.ExtractedData == nil {
		return nil, domain.ErrConflict
	}
	rec := historyFromJob(job)
	if err := o.history.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	return rec, nil
}

// ProcessNext claims the oldest unclaimed PENDING job and runs it from the
// artifact store. domain.ErrNotFound means the queue is empty.
func (o *Orchestrator) ProcessNext(ctx context.Context) error {
	job, err := o.jobs.ClaimNextPending(ctx)
	if err != nil {
		return err
	}
	files, err := o.store.ReadJobFiles(ctx, job.ID)
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("ocr: job artifacts unavailable")
		o.finalize(ctx, job, Outcome{Status: domain.JobStatusFailed, ErrorMessage: "job artifacts unavailable"})
		return nil
	}
	o.process(ctx, job, files)
	return nil
}

func (o *Orchestrator) dispatch(job *domain.Job, files []raster.File) {
	claimed, err := o.jobs.Claim(o.procCtx, job.ID)
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("ocr: claim failed")
		return
	}
	if !claimed {
		// A standalone worker picked it up first.
		return
	}
	o.process(o.procCtx, job, files)
}

func (o *Orchestrator) process(ctx context.Context, job *domain.Job, files []raster.File) {
	o.logger.Info().Str("job_id", job.ID).Int("total_files", len(files)).Msg("ocr: processing job")

	prepared, err := raster.Prepare(ctx, files)
	if err != nil {
		o.finalize(ctx, job, Outcome{Status: domain.JobStatusFailed, ErrorMessage: err.Error()})
		return
	}

	cancelled := o.cancelledFunc(job.ID)
	onProgress := func(ctx context.Context) {
		if err := o.jobs.IncrementProgress(ctx, job.ID); err != nil {
			o.logger.Error().Err(err).Str("job_id", job.ID).Msg("ocr: progress update failed")
		}
	}

	outcome := o.pool.Run(ctx, prepared, cancelled, onProgress)
	o.finalize(ctx, job, outcome)
}

func (o *Orchestrator) finalize(ctx context.Context, job *domain.Job, outcome Outcome) {
	defer o.registry.remove(job.ID)

	err := o.jobs.Finalize(ctx, job.ID, outcome.Status, outcome.Data, outcome.ErrorMessage)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			o.logger.Warn().Str("job_id", job.ID).Msg("ocr: job already terminal")
			return
		}
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("ocr: finalize failed")
		return
	}

	o.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(outcome.Status)).
		Msg("ocr: job finished")

	if outcome.Status == domain.JobStatusCompleted && outcome.Data != nil {
		o.autoSave(ctx, job, outcome.Data)
	}

	if o.store != nil {
		if err := o.store.RemoveJobFiles(ctx, job.ID); err != nil {
			o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("ocr: artifact cleanup failed")
		}
	}
}

func (o *Orchestrator) autoSave(ctx context.Context, job *domain.Job, data *domain.ExtractedData) {
	settings, err := o.settings.Get(ctx, job.OwnerID)
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("ocr: settings lookup for auto-save failed")
		return
	}
	if !settings.AutoSaveHistory {
		return
	}
	snapshot := *job
	snapshot.ExtractedData = data
	snapshot.Status = domain.JobStatusCompleted
	if err := o.history.Create(ctx, historyFromJob(&snapshot)); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("ocr: auto-save history failed")
	}
}

// cancelledFunc builds the cooperative cancellation check the pool
// consults between files: the in-process flag first, then the persisted
// flag so a cancel issued against another instance is still observed.
func (o *Orchestrator) cancelledFunc(jobID string) func(context.Context) bool {
	return func(ctx context.Context) bool {
		if o.registry.get(jobID) {
			return true
		}
		requested, err := o.jobs.CancelRequested(ctx, jobID)
		if err != nil {
			return false
		}
		if requested {
			o.registry.set(jobID)
		}
		return requested
	}
}

func validateSubmission(files []raster.File, settings domain.Settings) error {
	if len(files) == 0 {
		return domain.ValidationError{Reason: "at least one file is required"}
	}
	if len(files) > 1 && !settings.EnableBatch {
		return domain.ValidationError{Reason: "batch processing is disabled for this account"}
	}
	if len(files) > settings.MaxBatchSize {
		return domain.ValidationError{Reason: fmt.Sprintf("at most %d files per request", settings.MaxBatchSize)}
	}
	for _, f := range files {
		if len(f.Data) == 0 {
			return domain.ValidationError{Reason: fmt.Sprintf("%s is empty", f.Name)}
		}
		if len(f.Data) > MaxFileSize {
			return domain.ValidationError{Reason: fmt.Sprintf("%s exceeds the 10MB limit", f.Name)}
		}
		if _, ok := allowedMIMETypes[f.MIME]; !ok {
			return domain.ValidationError{Reason: fmt.Sprintf("%s has unsupported type %s", f.Name, f.MIME)}
		}
	}
	return nil
}

func historyFromJob(job *domain.Job) *domain.HistoryRecord {
	return &domain.HistoryRecord{
		ID:              uuid.NewString(),
		OwnerID:         job.OwnerID,
		FileNames:       append([]string(nil), job.FileNames...),
		ExtractedData:   *job.ExtractedData,
		ConfidenceScore: job.ExtractedData.OverallConfidence,
		CreatedAt:       time.Now().UTC(),
	}
}

package ocr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/koki-187/200-sub000/internal/domain"
	"github.com/koki-187/200-sub000/internal/raster"
)

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
	done chan string
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[string]*domain.Job{}, done: make(chan string, 16)}
}

func (r *memJobRepo) Create(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *memJobRepo) Claim(_ context.Context, jobID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != domain.JobStatusPending {
		return false, nil
	}
	job.Status = domain.JobStatusProcessing
	return true, nil
}

func (r *memJobRepo) ClaimNextPending(_ context.Context) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *domain.Job
	for _, job := range r.jobs {
		if job.Status != domain.JobStatusPending {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	oldest.Status = domain.JobStatusProcessing
	cp := *oldest
	return &cp, nil
}

func (r *memJobRepo) IncrementProgress(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status == domain.JobStatusProcessing && job.ProcessedFiles < job.TotalFiles {
		job.ProcessedFiles++
	}
	return nil
}

func (r *memJobRepo) RequestCancel(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status.Terminal() {
		return domain.ErrConflict
	}
	job.CancelRequested = true
	return nil
}

func (r *memJobRepo) CancelRequested(_ context.Context, jobID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return false, domain.ErrNotFound
	}
	return job.CancelRequested, nil
}

func (r *memJobRepo) Finalize(_ context.Context, jobID string, status domain.JobStatus, data *domain.ExtractedData, errMsg string) error {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return domain.ErrNotFound
	}
	if job.Status.Terminal() {
		r.mu.Unlock()
		return domain.ErrConflict
	}
	now := time.Now().UTC()
	job.Status = status
	job.ExtractedData = data
	job.ErrorMessage = errMsg
	job.CompletedAt = &now
	r.mu.Unlock()

	select {
	case r.done <- jobID:
	default:
	}
	return nil
}

func (r *memJobRepo) waitTerminal(t *testing.T) *domain.Job {
	t.Helper()
	select {
	case id := <-r.done:
		job, err := r.GetByID(context.Background(), id)
		require.NoError(t, err)
		return job
	case <-time.After(5 * time.Second):
		t.Fatal("job never reached a terminal status")
		return nil
	}
}

type memHistoryRepo struct {
	mu   sync.Mutex
	recs []*domain.HistoryRecord
}

func (r *memHistoryRepo) Create(_ context.Context, rec *domain.HistoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *memHistoryRepo) GetByID(_ context.Context, id string) (*domain.HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memHistoryRepo) List(context.Context, string, domain.HistoryQuery) ([]domain.HistoryRecord, int, error) {
	return nil, 0, nil
}

func (r *memHistoryRepo) Delete(context.Context, string) error { return nil }

func (r *memHistoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

type memSettingsRepo struct {
	settings domain.Settings
}

func (r *memSettingsRepo) Get(_ context.Context, ownerID string) (domain.Settings, error) {
	s := r.settings
	s.OwnerID = ownerID
	return s, nil
}

func (r *memSettingsRepo) Update(context.Context, domain.Settings) error { return nil }

func newTestOrchestrator(t *testing.T, jobs *memJobRepo, history *memHistoryRepo, settings domain.Settings, ext Extractor) *Orchestrator {
	t.Helper()
	if ext == nil {
		ext = &fakeExtractor{}
	}
	pool := NewPool(3, ext, zerolog.Nop())
	return NewOrchestrator(context.Background(), jobs, history, &memSettingsRepo{settings: settings}, nil, pool, zerolog.Nop())
}

func ownerSettings() domain.Settings {
	return domain.Settings{
		AutoSaveHistory:     true,
		ConfidenceThreshold: domain.DefaultConfidenceThreshold,
		EnableBatch:         true,
		MaxBatchSize:        domain.DefaultMaxBatchSize,
	}
}

func TestCreateJobRunsToCompletion(t *testing.T) {
	jobs := newMemJobRepo()
	history := &memHistoryRepo{}
	orch := newTestOrchestrator(t, jobs, history, ownerSettings(), nil)

	id, err := orch.CreateJob(context.Background(), "user-1", testFiles("a.png", "b.png"))
	require.NoError(t, err)

	job := jobs.waitTerminal(t)
	require.Equal(t, id, job.ID)
	require.Equal(t, domain.JobStatusCompleted, job.Status)
	require.Equal(t, 2, job.ProcessedFiles)
	require.NotNil(t, job.ExtractedData)
	require.NotNil(t, job.CompletedAt)
	require.Equal(t, 1, history.count(), "auto-save should archive the result")
}

func TestCreateJobAutoSaveDisabled(t *testing.T) {
	jobs := newMemJobRepo()
	history := &memHistoryRepo{}
	settings := ownerSettings()
	settings.AutoSaveHistory = false
	orch := newTestOrchestrator(t, jobs, history, settings, nil)

	_, err := orch.CreateJob(context.Background(), "user-1", testFiles("a.png"))
	require.NoError(t, err)

	jobs.waitTerminal(t)
	require.Zero(t, history.count())
}

func TestCreateJobValidation(t *testing.T) {
	large := raster.File{Name: "big.png", MIME: "image/png", Data: make([]byte, MaxFileSize+1)}

	cases := []struct {
		name     string
		files    []raster.File
		settings func(*domain.Settings)
		reason   string
	}{
		{name: "no files", files: nil, reason: "at least one file"},
		{name: "too many files", files: testFiles("a", "b", "c", "d"), settings: func(s *domain.Settings) { s.MaxBatchSize = 3 }, reason: "at most 3 files"},
		{name: "batch disabled", files: testFiles("a", "b"), settings: func(s *domain.Settings) { s.EnableBatch = false }, reason: "batch processing is disabled"},
		{name: "empty file", files: []raster.File{{Name: "a.png", MIME: "image/png"}}, reason: "is empty"},
		{name: "oversized file", files: []raster.File{large}, reason: "exceeds the 10MB limit"},
		{name: "unsupported type", files: []raster.File{{Name: "a.gif", MIME: "image/gif", Data: []byte{1}}}, reason: "unsupported type"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := ownerSettings()
			if tc.settings != nil {
				tc.settings(&settings)
			}
			orch := newTestOrchestrator(t, newMemJobRepo(), &memHistoryRepo{}, settings, nil)

			_, err := orch.CreateJob(context.Background(), "user-1", tc.files)
			var verr domain.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Contains(t, verr.Reason, tc.reason)
		})
	}
}

func TestCreateJobAllFilesFailed(t *testing.T) {
	ext := &fakeExtractor{fn: func(name string) (map[string]domain.FieldValue, error) {
		return nil, domain.ExtractionError{File: name, Err: errors.New("upstream unavailable")}
	}}
	jobs := newMemJobRepo()
	orch := newTestOrchestrator(t, jobs, &memHistoryRepo{}, ownerSettings(), ext)

	_, err := orch.CreateJob(context.Background(), "user-1", testFiles("a.png", "b.png"))
	require.NoError(t, err)

	job := jobs.waitTerminal(t)
	require.Equal(t, domain.JobStatusFailed, job.Status)
	require.Contains(t, job.ErrorMessage, "failed extraction")
	require.Nil(t, job.ExtractedData)
}

func TestGetJobOwnership(t *testing.T) {
	jobs := newMemJobRepo()
	orch := newTestOrchestrator(t, jobs, &memHistoryRepo{}, ownerSettings(), nil)

	id, err := orch.CreateJob(context.Background(), "user-1", testFiles("a.png"))
	require.NoError(t, err)
	jobs.waitTerminal(t)

	_, err = orch.GetJob(context.Background(), id, "user-2")
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = orch.GetJob(context.Background(), "missing", "user-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelJobTerminalConflict(t *testing.T) {
	jobs := newMemJobRepo()
	orch := newTestOrchestrator(t, jobs, &memHistoryRepo{}, ownerSettings(), nil)

	id, err := orch.CreateJob(context.Background(), "user-1", testFiles("a.png"))
	require.NoError(t, err)
	before := jobs.waitTerminal(t)

	err = orch.CancelJob(context.Background(), id, "user-1")
	require.ErrorIs(t, err, domain.ErrConflict)

	after, err := jobs.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, before.Status, after.Status)
	require.False(t, after.CancelRequested)
}

func TestCancelJobMidFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 8)
	ext := &fakeExtractor{fn: func(string) (map[string]domain.FieldValue, error) {
		started <- struct{}{}
		<-release
		return map[string]domain.FieldValue{domain.FieldPrice: {Value: "1", Confidence: 0.5}}, nil
	}}
	jobs := newMemJobRepo()
	orch := newTestOrchestrator(t, jobs, &memHistoryRepo{}, ownerSettings(), ext)

	id, err := orch.CreateJob(context.Background(), "user-1", testFiles("a.png", "b.png", "c.png", "d.png", "e.png"))
	require.NoError(t, err)

	<-started
	require.NoError(t, orch.CancelJob(context.Background(), id, "user-1"))
	close(release)

	job := jobs.waitTerminal(t)
	require.Equal(t, domain.JobStatusCancelled, job.Status)
	require.Nil(t, job.ExtractedData)
	require.Less(t, job.ProcessedFiles, job.TotalFiles)
}

func TestSaveHistoryRequiresCompletedJob(t *testing.T) {
	jobs := newMemJobRepo()
	history := &memHistoryRepo{}
	settings := ownerSettings()
	settings.AutoSaveHistory = false
	orch := newTestOrchestrator(t, jobs, history, settings, nil)

	id, err := orch.CreateJob(context.Background(), "user-1", testFiles("a.png"))
	require.NoError(t, err)
	jobs.waitTerminal(t)

	rec, err := orch.SaveHistory(context.Background(), id, "user-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", rec.OwnerID)
	require.Equal(t, 1, history.count())

	// Anything non-COMPLETED cannot be archived.
	ext := &fakeExtractor{fn: func(name string) (map[string]domain.FieldValue, error) {
		return nil, errors.New("boom")
	}}
	orch = newTestOrchestrator(t, jobs, history, settings, ext)
	failedID, err := orch.CreateJob(context.Background(), "user-1", testFiles("a.png"))
	require.NoError(t, err)
	jobs.waitTerminal(t)

	_, err = orch.SaveHistory(context.Background(), failedID, "user-1")
	require.ErrorIs(t, err, domain.ErrConflict)
}

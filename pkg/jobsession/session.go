// Package jobsession gives a submitting client one object that owns the
// job id, the poll loop and the cancellation path for a single extraction
// job, instead of scattering that state across globals.
package jobsession

import (
	"context"
	"time"

	"github.com/koki-187/200-sub000/internal/domain"
)

const (
	// DefaultPollInterval matches the protocol's fixed 1-second polling.
	DefaultPollInterval = time.Second
	// DefaultMaxAttempts bounds polling to roughly 2.5 minutes before the
	// session gives up locally.
	DefaultMaxAttempts = 150
)

// API is the job surface a session drives. *ocr.Orchestrator satisfies it;
// an HTTP client wrapper can stand in for remote use.
type API interface {
	GetJob(ctx context.Context, jobID, ownerID string) (*domain.Job, error)
	CancelJob(ctx context.Context, jobID, ownerID string) error
}

// Options tune the poll loop.
type Options struct {
	PollInterval time.Duration
	MaxAttempts  int
	// OnPoll fires after every successful status read with the snapshot
	// and the remaining-time estimate (hasETA is false until the first
	// file has been processed).
	OnPoll func(job *domain.Job, eta time.Duration, hasETA bool)
}

// Session tracks one submitted job until a terminal state or teardown.
type Session struct {
	jobID   string
	ownerID string
	api     API
	opts    Options
	started time.Time
}

// New creates a session for a freshly submitted job.
func New(jobID, ownerID string, api API, opts Options) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Session{
		jobID:   jobID,
		ownerID: ownerID,
		api:     api,
		opts:    opts,
		started: time.Now(),
	}
}

// JobID returns the tracked job id.
func (s *Session) JobID() string {
	return s.jobID
}

// Wait polls the job at the configured interval until it reaches a
// terminal state. When the attempt bound is exhausted first, Wait returns
// the last snapshot together with domain.ErrPollTimeout; the server-side
// job keeps running, so callers are expected to follow up with Cancel
// rather than simply stop polling.
func (s *Session) Wait(ctx context.Context) (*domain.Job, error) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	var last *domain.Job
	for attempt := 0; attempt < s.opts.MaxAttempts; attempt++ {
		job, err := s.api.GetJob(ctx, s.jobID, s.ownerID)
		if err != nil {
			return last, err
		}
		last = job

		if s.opts.OnPoll != nil {
			eta, ok := ETA(job, time.Since(s.started))
			s.opts.OnPoll(job, eta, ok)
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
	return last, domain.ErrPollTimeout
}

// Cancel requests cooperative cancellation of the tracked job.
func (s *Session) Cancel(ctx context.Context) error {
	return s.api.CancelJob(ctx, s.jobID, s.ownerID)
}

// ETA estimates remaining processing time from observed throughput:
// elapsed/processed * remaining. It is undefined until the first file has
// been processed.
func ETA(job *domain.Job, elapsed time.Duration) (time.Duration, bool) {
	if job == nil || job.ProcessedFiles <= 0 {
		return 0, false
	}
	perFile := elapsed / time.Duration(job.ProcessedFiles)
	remaining := job.TotalFiles - job.ProcessedFiles
	if remaining < 0 {
		remaining = 0
	}
	return perFile * time.Duration(remaining), true
}

// LowConfidenceFields lists field names whose confidence falls below the
// user's threshold, for presentation-side flagging only.
func LowConfidenceFields(data *domain.ExtractedData, threshold float64) []string {
	if data == nil {
		return nil
	}
	var fields []string
	for _, name := range domain.ExtractionFields {
		fv, ok := data.Fields[name]
		if !ok {
			continue
		}
		if fv.Confidence < threshold {
			fields = append(fields, name)
		}
	}
	return fields
}

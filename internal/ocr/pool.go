package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/koki-187/200-sub000/internal/domain"
	"github.com/koki-187/200-sub000/internal/infra"
	"github.com/koki-187/200-sub000/internal/raster"
)

// DefaultPoolSize caps concurrent vision calls per job. The bound exists
// to respect upstream API rate limits regardless of batch size.
const DefaultPoolSize = 3

// Extractor is the single-image contract the pool drives. Implemented by
// vision.Client.
type Extractor interface {
	Extract(ctx context.Context, name, mime string, data []byte) (map[string]domain.FieldValue, error)
}

// Outcome is the terminal state the pool computed for a job.
type Outcome struct {
	Status       domain.JobStatus
	Data         *domain.ExtractedData
	ErrorMessage string
}

// Pool runs a job's file list through a fixed number of workers.
type Pool struct {
	size      int
	extractor Extractor
	logger    infra.Logger
}

// NewPool creates a pool of the given size; sizes below one fall back to
// DefaultPoolSize.
func NewPool(size int, extractor Extractor, logger infra.Logger) *Pool {
	if size < 1 {
		size = DefaultPoolSize
	}
	return &Pool{size: size, extractor: extractor, logger: logger}
}

// Run processes files under bounded concurrency and returns the job's
// terminal outcome. Cancellation is cooperative: each worker consults
// cancelled before pulling the next file, so in-flight calls finish but
// their results are discarded. onProgress fires once per processed file,
// including files counted while cancellation drains. A single file's
// failure is recorded without aborting the job; the outcome is FAILED only
// when every file failed.
func (p *Pool) Run(ctx context.Context, files []raster.File, cancelled func(context.Context) bool, onProgress func(context.Context)) Outcome {
	if cancelled == nil {
		cancelled = func(context.Context) bool { return false }
	}

	indices := make(chan int, len(files))
	for i := range files {
		indices <- i
	}
	close(indices)

	var (
		mu      sync.Mutex
		results []FileResult
	)

	workers := p.size
	if workers > len(files) {
		workers = len(files)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indices {
				if cancelled(ctx) {
					return
				}
				file := files[idx]
				fields, err := p.extractor.Extract(ctx, file.Name, file.MIME, file.Data)
				if err != nil {
					p.logger.Warn().Err(err).Str("file", file.Name).Msg("ocr: file extraction failed")
				}

				discard := cancelled(ctx)
				mu.Lock()
				if !discard {
					results = append(results, FileResult{Index: idx, FileName: file.Name, Fields: fields, Err: err})
				}
				mu.Unlock()

				if onProgress != nil {
					onProgress(ctx)
				}
			}
		}()
	}
	wg.Wait()

	if cancelled(ctx) {
		return Outcome{Status: domain.JobStatusCancelled}
	}

	succeeded := 0
	var failures []string
	for _, res := range results {
		if res.Err != nil {
			failures = append(failures, res.Err.Error())
			continue
		}
		succeeded++
	}

	if succeeded == 0 {
		msg := "all files failed extraction"
		if len(failures) > 0 {
			msg = fmt.Sprintf("all %d files failed extraction: %s", len(files), strings.Join(failures, "; "))
		}
		return Outcome{Status: domain.JobStatusFailed, ErrorMessage: msg}
	}

	return Outcome{Status: domain.JobStatusCompleted, Data: Aggregate(results)}
}

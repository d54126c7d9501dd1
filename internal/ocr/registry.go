package ocr

import "sync"

// cancelRegistry tracks in-process cancellation flags per job id. The
// persisted cancel_requested column remains the source of truth across
// instances; the registry only avoids a DB read on the fast path.
type cancelRegistry struct {
	mu    sync.Mutex
	flags map[string]bool
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{flags: make(map[string]bool)}
}

func (r *cancelRegistry) set(jobID string) {
	r.mu.Lock()
	r.flags[jobID] = true
	r.mu.Unlock()
}

func (r *cancelRegistry) get(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flags[jobID]
}

func (r *cancelRegistry) remove(jobID string) {
	r.mu.Lock()
	delete(r.flags, jobID)
	r.mu.Unlock()
}

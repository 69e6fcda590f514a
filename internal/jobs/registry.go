package jobs

import (
	"context"
	"sync"
)

// Channel is an open notification connection for one job.
type Channel interface {
	Send(ctx context.Context, event string) error
}

// Registry routes terminal job events to the connection currently watching
// the job. One entry per job id; the latest registration wins, so a second
// viewer silently supersedes the first.
type Registry struct {
	mu       sync.Mutex
	channels map[string]Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

func (r *Registry) Register(jobID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[jobID] = ch
}

func (r *Registry) Lookup(jobID string) (Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[jobID]
	return ch, ok
}

func (r *Registry) Unregister(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, jobID)
}

// Release removes the entry for jobID only if it still points at ch, so a
// superseded connection closing late does not evict its replacement.
func (r *Registry) Release(jobID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.channels[jobID]; ok && current == ch {
		delete(r.channels, jobID)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

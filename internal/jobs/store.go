package jobs

import (
	"context"
	"sync"
)

// Store is the keyed job table. Implementations are responsible for per-key
// atomicity; callers never rely on multi-key transactions.
type Store interface {
	Set(ctx context.Context, rec Record) error
	Get(ctx context.Context, jobID string) (*Record, error)
	Delete(ctx context.Context, jobID string) error
}

// MemoryStore keeps job records in process memory. Used for local runs
// without ScyllaDB and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Set(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.JobID] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (s *MemoryStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, jobID)
	return nil
}

func cloneRecord(rec Record) Record {
	if rec.Result != nil {
		res := *rec.Result
		rec.Result = &res
	}
	return rec
}

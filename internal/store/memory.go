package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRunStore implements RunStore for testing and one-off runs.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewMemoryRunStore creates an empty in-memory archive.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]Run)}
}

// SaveRun stores run, replacing any run with the same id.
func (s *MemoryRunStore) SaveRun(ctx context.Context, run Run) error {
	if err := validateRun(run); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.Report.RunID] = run
	return nil
}

// GetRun returns the run with the given id.
func (s *MemoryRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return &run, nil
}

// ListRuns returns summaries of the stored runs.
func (s *MemoryRunStore) ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, error) {
	s.mu.RLock()
	rows := make([]RunSummary, 0, len(s.runs))
	for _, run := range s.runs {
		rows = append(rows, Summarize(run))
	}
	s.mu.RUnlock()
	return filterSummaries(rows, opts), nil
}

// DeleteRun removes the run with the given id.
func (s *MemoryRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	delete(s.runs, id)
	return nil
}

// Close is a no-op.
func (s *MemoryRunStore) Close() error { return nil }

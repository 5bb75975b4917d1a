package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// InMemoryRunCatalog implements RunCatalog for testing and for runs with
// the catalog disabled.
type InMemoryRunCatalog struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewInMemoryRunCatalog creates an empty in-memory catalog.
func NewInMemoryRunCatalog() *InMemoryRunCatalog {
	return &InMemoryRunCatalog{runs: make(map[string]Run)}
}

// RecordRun inserts or replaces a run.
func (s *InMemoryRunCatalog) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run.LabelCounts = slices.Clone(run.LabelCounts)
	s.runs[run.ID] = run
	return nil
}

// GetRun returns a run by ID, or nil if not found.
func (s *InMemoryRunCatalog) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	run.LabelCounts = slices.Clone(run.LabelCounts)
	return &run, nil
}

// ListRuns returns matching runs, newest first.
func (s *InMemoryRunCatalog) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Run
	for _, run := range s.runs {
		if filter.matches(run) {
			run.LabelCounts = slices.Clone(run.LabelCounts)
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// DeleteRun removes a run.
func (s *InMemoryRunCatalog) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
	return nil
}

// Close is a no-op.
func (s *InMemoryRunCatalog) Close() error {
	return nil
}

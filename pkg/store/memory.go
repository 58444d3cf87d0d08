package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mhersch/flowlevel/pkg/observability"
	"github.com/mhersch/flowlevel/pkg/report"
)

// MemoryStore keeps reports in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*report.Report
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*report.Report)}
}

// Put stores a report, overwriting any previous report with the same ID.
func (s *MemoryStore) Put(ctx context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = r
	observability.Store().OnStorePut(ctx, r.ID, nil)
	return nil
}

// Get retrieves a report by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	observability.Store().OnStoreGet(ctx, id, ok)
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// List returns summaries of all stored reports, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, Summary{
			ID:        r.ID,
			Program:   r.Program,
			CreatedAt: r.CreatedAt,
			Regions:   len(r.Regions),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete removes a report by ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[id]; !ok {
		return ErrNotFound
	}
	delete(s.reports, id)
	return nil
}

// Close does nothing for the in-memory store.
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

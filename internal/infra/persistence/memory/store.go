// Package memory provides the in-memory run ledger. The sqlite and postgres
// stores embed it and snapshot its state after every write.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tcrkp/internal/runs"
)

// Snapshot is the serialisable ledger state keyed by run ID.
type Snapshot struct {
	Runs map[string]runs.Run `json:"runs"`
}

// Store implements runs.Store in process memory.
type Store struct {
	mu    sync.RWMutex
	runs  map[string]runs.Run
	nowFn func() time.Time
}

var _ runs.Store = (*Store)(nil)

// NewStore returns an empty ledger.
func NewStore() *Store {
	return &Store{
		runs:  make(map[string]runs.Run),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// SaveRun inserts or replaces r, stamping CreatedAt on first save and
// UpdatedAt on every save.
func (s *Store) SaveRun(_ context.Context, r runs.Run) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	if prev, ok := s.runs[r.ID]; ok {
		r.CreatedAt = prev.CreatedAt
	} else if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	s.runs[r.ID] = r.Clone()
	return nil
}

// GetRun returns a copy of the stored run.
func (s *Store) GetRun(_ context.Context, id string) (runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return runs.Run{}, fmt.Errorf("run %s: %w", id, runs.ErrNotFound)
	}
	return r.Clone(), nil
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns(_ context.Context) ([]runs.Run, error) {
	s.mu.RLock()
	out := make([]runs.Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()
	runs.SortNewestFirst(out)
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// ExportState returns a deep copy of the ledger.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Runs: make(map[string]runs.Run, len(s.runs))}
	for id, r := range s.runs {
		snap.Runs[id] = r.Clone()
	}
	return snap
}

// ImportState replaces the ledger with snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = make(map[string]runs.Run, len(snapshot.Runs))
	for id, r := range snapshot.Runs {
		if r.ID == "" {
			r.ID = id
		}
		s.runs[id] = r.Clone()
	}
}

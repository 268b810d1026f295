// Package memory keeps run records in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"redcapdl/internal/ledger/core"
)

// Store implements core.Store with a mutex-guarded map.
type Store struct {
	mu   sync.RWMutex
	runs map[string]core.Run
}

// New returns an empty store.
func New() *Store { return &Store{runs: make(map[string]core.Run)} }

func (s *Store) Driver() core.Driver { return core.DriverMemory }

func (s *Store) Save(_ context.Context, run core.Run) error {
	if run.ID == "" {
		return fmt.Errorf("ledger: run id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *Store) Get(_ context.Context, id string) (core.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return core.Run{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return run.Clone(), nil
}

func (s *Store) List(_ context.Context) ([]core.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *Store) Close() error { return nil }

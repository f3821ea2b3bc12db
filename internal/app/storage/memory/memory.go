package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/history"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/window"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu      sync.RWMutex
	windows map[string]window.Window
	records map[string][]history.Record
}

var _ storage.WindowStore = (*Store)(nil)
var _ storage.HistoryStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		windows: make(map[string]window.Window),
		records: make(map[string][]history.Record),
	}
}

// WindowStore implementation --------------------------------------------------

func (s *Store) SaveWindow(_ context.Context, w window.Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.windows[w.ID] = w
	return nil
}

func (s *Store) GetWindow(_ context.Context, id string) (window.Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[id]
	if !ok {
		return window.Window{}, storage.ErrWindowNotFound
	}
	return w, nil
}

func (s *Store) DeleteWindow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.windows[id]; !ok {
		return storage.ErrWindowNotFound
	}
	delete(s.windows, id)
	return nil
}

func (s *Store) DeleteIdleWindows(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, w := range s.windows {
		if w.LastSeenAt.Before(cutoff) {
			delete(s.windows, id)
			removed++
		}
	}
	return removed, nil
}

// HistoryStore implementation -------------------------------------------------

func (s *Store) AppendRecord(_ context.Context, rec history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.WindowID] = append(s.records[rec.WindowID], rec)
	return nil
}

func (s *Store) ListRecordsByWindow(_ context.Context, windowID string, limit int) ([]history.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.records[windowID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	result := make([]history.Record, 0, limit)
	for i := len(all) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, all[i])
	}
	return result, nil
}

func (s *Store) PruneRecords(_ context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	var removed int64
	for id, all := range s.records {
		if len(all) <= keep {
			continue
		}
		removed += int64(len(all) - keep)
		kept := make([]history.Record, keep)
		copy(kept, all[len(all)-keep:])
		if keep == 0 {
			delete(s.records, id)
			continue
		}
		s.records[id] = kept
	}
	return removed, nil
}

func (s *Store) PurgeRecordsByWindow(_ context.Context, windowID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := int64(len(s.records[windowID]))
	delete(s.records, windowID)
	return removed, nil
}

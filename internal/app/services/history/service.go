// Package history serves the per-window record log: recent listings for
// the display, appends for completed calculations, and the retention
// sweeper that keeps storage bounded.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/history"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage"
	"github.com/Razlynski/calculator-mvc-isaac/pkg/logger"
)

// DefaultDisplayLimit bounds how many records a single listing returns.
const DefaultDisplayLimit = 10

// Service exposes the history log kept for each window.
type Service struct {
	store        storage.HistoryStore
	log          *logger.Logger
	displayLimit int
}

// New creates a history service. A displayLimit of zero or less falls
// back to DefaultDisplayLimit.
func New(store storage.HistoryStore, displayLimit int, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("history")
	}
	if displayLimit <= 0 {
		displayLimit = DefaultDisplayLimit
	}
	return &Service{
		store:        store,
		log:          log,
		displayLimit: displayLimit,
	}
}

// DisplayLimit reports the configured listing cap.
func (s *Service) DisplayLimit() int { return s.displayLimit }

// Append stores one completed calculation, filling in the ID and
// timestamp when the caller left them empty.
func (s *Service) Append(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if rec.WindowID == "" {
		return domain.Record{}, fmt.Errorf("window_id is required")
	}
	if rec.Expression == "" {
		return domain.Record{}, fmt.Errorf("expression is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if err := s.store.AppendRecord(ctx, rec); err != nil {
		return domain.Record{}, fmt.Errorf("append record: %w", err)
	}
	return rec, nil
}

// Recent lists a window's records newest first. The limit is clamped to
// the display cap; zero or negative asks for the cap.
func (s *Service) Recent(ctx context.Context, windowID string, limit int) ([]domain.Record, error) {
	if windowID == "" {
		return nil, fmt.Errorf("window_id is required")
	}
	if limit <= 0 || limit > s.displayLimit {
		limit = s.displayLimit
	}
	return s.store.ListRecordsByWindow(ctx, windowID, limit)
}

// Purge removes every record kept for a window.
func (s *Service) Purge(ctx context.Context, windowID string) error {
	if windowID == "" {
		return fmt.Errorf("window_id is required")
	}
	removed, err := s.store.PurgeRecordsByWindow(ctx, windowID)
	if err != nil {
		return err
	}
	s.log.WithField("window_id", windowID).
		WithField("records", removed).
		Info("history purged")
	return nil
}

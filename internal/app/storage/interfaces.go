package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/history"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/window"
)

// ErrWindowNotFound is returned for windows that were never opened, were
// closed, or expired. Every WindowStore implementation maps its backend's
// miss to this sentinel.
var ErrWindowNotFound = errors.New("window not found")

// WindowStore persists window snapshots between events.
type WindowStore interface {
	SaveWindow(ctx context.Context, w window.Window) error
	GetWindow(ctx context.Context, id string) (window.Window, error)
	DeleteWindow(ctx context.Context, id string) error
	// DeleteIdleWindows drops snapshots last seen before cutoff. Backends
	// with native key expiry may report zero removals.
	DeleteIdleWindows(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryStore persists completed calculations.
type HistoryStore interface {
	AppendRecord(ctx context.Context, rec history.Record) error
	ListRecordsByWindow(ctx context.Context, windowID string, limit int) ([]history.Record, error)
	// PruneRecords keeps the newest keep records per window and deletes
	// the rest.
	PruneRecords(ctx context.Context, keep int) (int64, error)
	PurgeRecordsByWindow(ctx context.Context, windowID string) (int64, error)
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/history"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/window"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.WindowStore = (*Store)(nil)
var _ storage.HistoryStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type windowRow struct {
	ID         string    `db:"id"`
	CreatedAt  time.Time `db:"created_at"`
	LastSeenAt time.Time `db:"last_seen_at"`
	State      []byte    `db:"state"`
}

// --- WindowStore ------------------------------------------------------------

func (s *Store) SaveWindow(ctx context.Context, w window.Window) error {
	stateJSON, err := json.Marshal(w.State)
	if err != nil {
		return fmt.Errorf("marshal window state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calc_windows (id, created_at, last_seen_at, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET last_seen_at = $3, state = $4
	`, w.ID, w.CreatedAt, w.LastSeenAt, stateJSON)
	return err
}

func (s *Store) GetWindow(ctx context.Context, id string) (window.Window, error) {
	var row windowRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, created_at, last_seen_at, state
		FROM calc_windows
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return window.Window{}, storage.ErrWindowNotFound
	}
	if err != nil {
		return window.Window{}, err
	}

	w := window.Window{ID: row.ID, CreatedAt: row.CreatedAt, LastSeenAt: row.LastSeenAt}
	if len(row.State) > 0 {
		if err := json.Unmarshal(row.State, &w.State); err != nil {
			return window.Window{}, fmt.Errorf("unmarshal window state: %w", err)
		}
	}
	return w, nil
}

func (s *Store) DeleteWindow(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM calc_windows WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrWindowNotFound
	}
	return nil
}

func (s *Store) DeleteIdleWindows(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM calc_windows WHERE last_seen_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// --- HistoryStore -----------------------------------------------------------

func (s *Store) AppendRecord(ctx context.Context, rec history.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calc_history (id, window_id, expression, result, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.WindowID, rec.Expression, rec.Result, rec.CreatedAt)
	return err
}

func (s *Store) ListRecordsByWindow(ctx context.Context, windowID string, limit int) ([]history.Record, error) {
	var result []history.Record
	if limit <= 0 {
		err := s.db.SelectContext(ctx, &result, `
			SELECT id, window_id, expression, result, created_at
			FROM calc_history
			WHERE window_id = $1
			ORDER BY created_at DESC, id DESC
		`, windowID)
		return result, err
	}

	err := s.db.SelectContext(ctx, &result, `
		SELECT id, window_id, expression, result, created_at
		FROM calc_history
		WHERE window_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, windowID, limit)
	return result, err
}

func (s *Store) PruneRecords(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM calc_history
		WHERE id IN (
			SELECT id FROM (
				SELECT id, row_number() OVER (
					PARTITION BY window_id ORDER BY created_at DESC, id DESC
				) AS rn
				FROM calc_history
			) ranked
			WHERE rn > $1
		)
	`, keep)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func (s *Store) PurgeRecordsByWindow(ctx context.Context, windowID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM calc_history WHERE window_id = $1
	`, windowID)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

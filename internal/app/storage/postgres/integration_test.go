package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/calc"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/history"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/window"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage"
	"github.com/Razlynski/calculator-mvc-isaac/internal/platform/migrations"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := migrations.Apply(db.DB); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := New(db)
	ctx := context.Background()

	w := window.New(uuid.NewString(), time.Now())
	if err := store.SaveWindow(ctx, w); err != nil {
		t.Fatalf("save window: %v", err)
	}
	t.Cleanup(func() {
		_, _ = store.PurgeRecordsByWindow(ctx, w.ID)
		_ = store.DeleteWindow(ctx, w.ID)
	})

	w.State = calc.State{Current: 8, Stored: 7, Pending: calc.OpMultiply, Expression: "7 * 8"}
	w.Touch(time.Now())
	if err := store.SaveWindow(ctx, w); err != nil {
		t.Fatalf("update window: %v", err)
	}

	got, err := store.GetWindow(ctx, w.ID)
	if err != nil {
		t.Fatalf("get window: %v", err)
	}
	if got.State != w.State {
		t.Fatalf("expected snapshot %+v, got %+v", w.State, got.State)
	}

	older := history.Record{WindowID: w.ID, Expression: "5 + 3", Result: 8, CreatedAt: time.Now().UTC().Add(-time.Minute)}
	newer := history.Record{WindowID: w.ID, Expression: "7 * 8", Result: 56, CreatedAt: time.Now().UTC()}
	if err := store.AppendRecord(ctx, older); err != nil {
		t.Fatalf("append older: %v", err)
	}
	if err := store.AppendRecord(ctx, newer); err != nil {
		t.Fatalf("append newer: %v", err)
	}

	recs, err := store.ListRecordsByWindow(ctx, w.ID, 1)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(recs) != 1 || recs[0].Expression != "7 * 8" {
		t.Fatalf("expected newest record first, got %+v", recs)
	}

	if err := store.DeleteWindow(ctx, w.ID); err != nil {
		t.Fatalf("delete window: %v", err)
	}
	if _, err := store.GetWindow(ctx, w.ID); !errors.Is(err, storage.ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound after delete, got %v", err)
	}
}

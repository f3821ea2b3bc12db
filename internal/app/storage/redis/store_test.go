package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/calc"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/window"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage"
)

func TestStoreIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping redis integration test")
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}

	store := New(client, time.Minute)

	w := window.New(uuid.NewString(), time.Now())
	w.State = calc.State{Current: 10, FreshEntry: true}
	if err := store.SaveWindow(ctx, w); err != nil {
		t.Fatalf("save window: %v", err)
	}
	t.Cleanup(func() { _ = store.DeleteWindow(ctx, w.ID) })

	got, err := store.GetWindow(ctx, w.ID)
	if err != nil {
		t.Fatalf("get window: %v", err)
	}
	if got.State != w.State {
		t.Fatalf("expected snapshot %+v, got %+v", w.State, got.State)
	}

	ttl, err := client.TTL(ctx, key(w.ID)).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected rolling ttl within a minute, got %v", ttl)
	}

	if err := store.DeleteWindow(ctx, w.ID); err != nil {
		t.Fatalf("delete window: %v", err)
	}
	if _, err := store.GetWindow(ctx, w.ID); !errors.Is(err, storage.ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound, got %v", err)
	}
	if err := store.DeleteWindow(ctx, w.ID); !errors.Is(err, storage.ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound on double delete, got %v", err)
	}
}

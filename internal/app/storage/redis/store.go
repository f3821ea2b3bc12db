// Package redis implements the window store on Redis. Snapshots are JSON
// values with a rolling TTL, so idle windows expire without a sweeper.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/window"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage"
)

const keyPrefix = "calc:window:"

// Store implements storage.WindowStore backed by Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

var _ storage.WindowStore = (*Store)(nil)

// New creates a Store. A non-positive ttl disables expiry.
func New(client *redis.Client, ttl time.Duration) *Store {
	if ttl < 0 {
		ttl = 0
	}
	return &Store{client: client, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

func (s *Store) SaveWindow(ctx context.Context, w window.Window) error {
	payload, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal window: %w", err)
	}
	return s.client.Set(ctx, key(w.ID), payload, s.ttl).Err()
}

func (s *Store) GetWindow(ctx context.Context, id string) (window.Window, error) {
	payload, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return window.Window{}, storage.ErrWindowNotFound
	}
	if err != nil {
		return window.Window{}, err
	}

	var w window.Window
	if err := json.Unmarshal(payload, &w); err != nil {
		return window.Window{}, fmt.Errorf("unmarshal window: %w", err)
	}
	return w, nil
}

func (s *Store) DeleteWindow(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, key(id)).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return storage.ErrWindowNotFound
	}
	return nil
}

// DeleteIdleWindows is a no-op: the rolling TTL on SaveWindow already
// expires idle snapshots server-side.
func (s *Store) DeleteIdleWindows(context.Context, time.Time) (int64, error) {
	return 0, nil
}

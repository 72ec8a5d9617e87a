// Package redis implements job.Store on Redis. Jobs are Hashes; pending
// and running jobs are tracked in Sorted Sets, and every state change is a
// Lua script so claims are atomic across workers. League data is not
// stored here; pair this store with the postgres store via store.Split.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/alex-monroe/scrapequeue/store"
)

var _ store.JobBackend = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements store.JobBackend backed by Redis.
type Store struct {
	client redis.Cmdable
	owned  *redis.Client
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewFromURL connects to the Redis server at url, e.g.
// "redis://localhost:6379/0". Close releases the connection.
func NewFromURL(url string, opts ...Option) (*Store, error) {
	ro, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/redis: parse url: %w", err)
	}
	client := redis.NewClient(ro)
	s := New(client, opts...)
	s.owned = client
	return s, nil
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client when the store created it.
func (s *Store) Close() error {
	if s.owned == nil {
		return nil
	}
	return s.owned.Close()
}

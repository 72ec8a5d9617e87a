// Package memory provides an in-memory Store. It is safe for concurrent
// use and intended for tests and single-process development runs.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/alex-monroe/scrapequeue/id"
	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/league"
	"github.com/alex-monroe/scrapequeue/store"
)

var _ store.Store = (*Store)(nil)

type jobRow struct {
	job *job.Job
	seq uint64
}

type priceKey struct {
	player uuid.UUID
	league int
	season int
}

type statsKey struct {
	player uuid.UUID
	season int
}

type salaryKey = priceKey

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu  sync.RWMutex
	seq uint64

	jobs map[id.JobID]*jobRow

	players      map[uuid.UUID]*league.Player
	byOttoneu    map[int]uuid.UUID
	prices       map[priceKey]*league.LeaguePrice
	stats        map[statsKey]*league.PlayerStats
	transactions []*league.Transaction
	salaries     map[salaryKey][]*league.SalarySnapshot
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:      make(map[id.JobID]*jobRow),
		players:   make(map[uuid.UUID]*league.Player),
		byOttoneu: make(map[int]uuid.UUID),
		prices:    make(map[priceKey]*league.LeaguePrice),
		stats:     make(map[statsKey]*league.PlayerStats),
		salaries:  make(map[salaryKey][]*league.SalarySnapshot),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

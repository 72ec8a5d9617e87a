package store

import (
	"context"
	"errors"

	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/league"
)

// Store is the aggregate persistence interface.
type Store interface {
	job.Store
	league.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases connections.
	Close() error
}

// Lifecycle is the connection management shared by every backend.
type Lifecycle interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// JobBackend is a backend that only stores jobs.
type JobBackend interface {
	job.Store
	Lifecycle
}

// LeagueBackend is a backend that stores league data.
type LeagueBackend interface {
	league.Store
	Lifecycle
}

// Split serves jobs from one backend and league data from another, e.g.
// Redis for the queue and Postgres for league tables.
func Split(jobs JobBackend, data LeagueBackend) Store {
	return &split{JobBackend: jobs, LeagueBackend: data}
}

type split struct {
	JobBackend
	LeagueBackend
}

func (s *split) Migrate(ctx context.Context) error {
	if err := s.JobBackend.Migrate(ctx); err != nil {
		return err
	}
	return s.LeagueBackend.Migrate(ctx)
}

func (s *split) Ping(ctx context.Context) error {
	return errors.Join(s.JobBackend.Ping(ctx), s.LeagueBackend.Ping(ctx))
}

func (s *split) Close() error {
	return errors.Join(s.JobBackend.Close(), s.LeagueBackend.Close())
}

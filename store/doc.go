// Package store defines the aggregate persistence interface.
//
// The composite interface:
//
//	type Store interface {
//	    job.Store
//	    league.Store
//
//	    Migrate(ctx context.Context) error
//	    Ping(ctx context.Context) error
//	    Close() error
//	}
//
// # Available Backends
//
//   - store/memory: in-memory store for development and testing
//   - store/postgres: PostgreSQL backend using pgx/v5, jobs and league data
//   - store/redis: Redis job queue, combined with Postgres through [Split]
//
// # Usage
//
//	s, err := postgres.New(ctx, os.Getenv("DATABASE_URL"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Package store/storetest holds the behaviour suite every backend runs.
package store

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/store"
	"github.com/alex-monroe/scrapequeue/store/memory"
	"github.com/alex-monroe/scrapequeue/store/postgres"
	redisstore "github.com/alex-monroe/scrapequeue/store/redis"
)

// OpenStore opens the backend named by cfg.Store. The redis backend keeps
// jobs in Redis and league data in Postgres.
func OpenStore(ctx context.Context, cfg scrapequeue.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store {
	case scrapequeue.StoreMemory:
		return memory.New(), nil

	case scrapequeue.StorePostgres:
		pg, err := postgres.New(ctx, cfg.DatabaseURL, postgres.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return pg, nil

	case scrapequeue.StoreRedis:
		pg, err := postgres.New(ctx, cfg.DatabaseURL, postgres.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		rs, err := redisstore.NewFromURL(cfg.RedisURL, redisstore.WithLogger(logger))
		if err != nil {
			return nil, errors.Join(err, pg.Close())
		}
		return store.Split(rs, pg), nil

	case "":
		return nil, scrapequeue.ErrNoStore
	}
	return nil, fmt.Errorf("%w: %q", scrapequeue.ErrUnknownStore, cfg.Store)
}

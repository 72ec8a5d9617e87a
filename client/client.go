// Package client enqueues scraper jobs and inspects their status.
//
// A Client writes directly to a job.Store; there is no server in between.
// Every worker polling the same store picks the jobs up.
//
// Usage:
//
//	c := client.New(store,
//	    client.WithSeason(2025),
//	    client.WithLeagueID(309),
//	)
//
//	// Enqueue the full pipeline.
//	batch, err := c.Batch(ctx, client.BatchRequest{})
//
//	// Enqueue one roster scrape.
//	jobs, err := c.EnqueueRoster(ctx, "QB", tasks.LevelPro)
//
//	// Inspect recent jobs.
//	report, err := c.Status(ctx, 20)
//	client.WriteStatus(os.Stdout, report)
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/task"
)

// Default priorities of the single-job helpers.
const (
	PriorityStats  = 10
	PriorityRoster = 5
	PriorityCard   = 0
)

// Client enqueues jobs into a job.Store.
type Client struct {
	store  job.Store
	logger *slog.Logger

	season           int
	leagueID         int
	positions        []string
	collegePositions []string
	historical       []int
	maxAttempts      int
	timeout          time.Duration
}

// New creates a Client over store.
func New(store job.Store, opts ...Option) *Client {
	c := &Client{
		store:       store,
		logger:      slog.Default(),
		maxAttempts: job.DefaultOptions().MaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Season returns the default season.
func (c *Client) Season() int { return c.season }

// LeagueID returns the default league.
func (c *Client) LeagueID() int { return c.leagueID }

// Enqueue creates a pending job of type t. params is marshalled to JSON
// unless it already is a json.RawMessage. The client's attempt budget and
// timeout apply unless opts override them.
func (c *Client) Enqueue(ctx context.Context, t task.Type, params any, opts ...job.Option) (*job.Job, error) {
	if _, err := task.ParseType(string(t)); err != nil {
		return nil, fmt.Errorf("client: enqueue: %w", err)
	}

	raw, err := encodeParams(params)
	if err != nil {
		return nil, fmt.Errorf("client: encode %s params: %w", t, err)
	}

	base := []job.Option{job.WithMaxAttempts(c.maxAttempts), job.WithTimeout(c.timeout)}
	j := job.New(t, raw, append(base, opts...)...)

	if err := c.store.EnqueueJob(ctx, j); err != nil {
		return nil, fmt.Errorf("client: enqueue %s: %w", t, err)
	}

	c.logger.Debug("job enqueued",
		slog.String("job_id", j.ID.String()),
		slog.String("task_type", string(t)),
		slog.Int("priority", j.Priority),
	)
	return j, nil
}

func encodeParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage("{}"), nil
		}
		if !json.Valid(p) {
			return nil, fmt.Errorf("invalid JSON")
		}
		return p, nil
	default:
		return json.Marshal(p)
	}
}

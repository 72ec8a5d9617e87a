package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/task"
	"github.com/alex-monroe/scrapequeue/tasks"
)

// Priorities of the batch members. Rosters wait on the head anyway; the
// priorities order them once it completes.
const (
	PriorityBatchStats   = 10
	PriorityBatchRoster  = 5
	PriorityBatchCollege = 3
)

// BatchRequest selects what a batch scrapes. Zero fields take the client
// defaults.
type BatchRequest struct {
	Season           int      `json:"season,omitempty"`
	LeagueID         int      `json:"league_id,omitempty"`
	Positions        []string `json:"positions,omitempty"`
	CollegePositions []string `json:"college_positions,omitempty"`
}

// Batch is the result of enqueueing a batch.
type Batch struct {
	ID uuid.UUID `json:"batch_id"`
	// Head is the pull_nfl_stats job every roster job depends on.
	Head *job.Job `json:"head"`
	// Jobs lists every enqueued job, head first, in enqueue order.
	Jobs []*job.Job `json:"jobs"`
}

// Batch enqueues the full pipeline under a fresh batch id: the snap count
// pull as head, an independent box-score pull, and one roster scrape per
// position and college position, each depending on the head.
func (c *Client) Batch(ctx context.Context, req BatchRequest) (*Batch, error) {
	req = c.fill(req)
	b := &Batch{ID: uuid.New()}
	inBatch := job.WithBatch(b.ID)

	head, err := c.Enqueue(ctx, task.PullNFLStats,
		tasks.NFLStatsParams{Season: req.Season},
		job.WithPriority(PriorityBatchStats), inBatch)
	if err != nil {
		return nil, fmt.Errorf("client: batch head: %w", err)
	}
	b.Head = head
	b.Jobs = append(b.Jobs, head)

	stats, err := c.Enqueue(ctx, task.PullPlayerStats,
		tasks.PlayerStatsParams{Seasons: []int{req.Season}},
		job.WithPriority(PriorityBatchStats), inBatch)
	if err != nil {
		return b, fmt.Errorf("client: batch player stats: %w", err)
	}
	b.Jobs = append(b.Jobs, stats)

	afterHead := job.WithDependsOn(head.ID)
	enqueueRosters := func(positions []string, level string, priority int) error {
		for _, pos := range positions {
			p := tasks.RosterParams{Position: pos, Season: req.Season, LeagueID: req.LeagueID}
			if level == tasks.LevelCollege {
				p.Level = level
			}
			j, err := c.Enqueue(ctx, task.ScrapeRoster, p, job.WithPriority(priority), inBatch, afterHead)
			if err != nil {
				return fmt.Errorf("client: batch roster %s: %w", pos, err)
			}
			b.Jobs = append(b.Jobs, j)
		}
		return nil
	}
	if err := enqueueRosters(req.Positions, tasks.LevelPro, PriorityBatchRoster); err != nil {
		return b, err
	}
	if err := enqueueRosters(req.CollegePositions, tasks.LevelCollege, PriorityBatchCollege); err != nil {
		return b, err
	}

	c.logger.Info("batch enqueued",
		slog.String("batch_id", b.ID.String()),
		slog.String("head_id", head.ID.String()),
		slog.Int("jobs", len(b.Jobs)),
	)
	return b, nil
}

func (c *Client) fill(req BatchRequest) BatchRequest {
	if req.Season == 0 {
		req.Season = c.season
	}
	if req.LeagueID == 0 {
		req.LeagueID = c.leagueID
	}
	if req.Positions == nil {
		req.Positions = c.positions
	}
	if req.CollegePositions == nil {
		req.CollegePositions = c.collegePositions
	}
	return req
}

package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/ottoneu"
	"github.com/alex-monroe/scrapequeue/task"
	"github.com/alex-monroe/scrapequeue/tasks"
)

// LevelBoth enqueues a pro and a college roster job for one position.
const LevelBoth = "both"

// EnqueueNFLStats enqueues a snap count pull for the default season.
func (c *Client) EnqueueNFLStats(ctx context.Context, opts ...job.Option) (*job.Job, error) {
	p := tasks.NFLStatsParams{Season: c.season}
	return c.Enqueue(ctx, task.PullNFLStats, p, prepend(job.WithPriority(PriorityStats), opts)...)
}

// EnqueuePlayerStats enqueues a box-score pull. With no seasons the
// historical seasons are pulled.
func (c *Client) EnqueuePlayerStats(ctx context.Context, seasons []int, opts ...job.Option) (*job.Job, error) {
	if len(seasons) == 0 {
		seasons = c.historical
	}
	if len(seasons) == 0 {
		return nil, fmt.Errorf("client: player stats: no seasons")
	}
	p := tasks.PlayerStatsParams{Seasons: seasons}
	return c.Enqueue(ctx, task.PullPlayerStats, p, prepend(job.WithPriority(PriorityStats), opts)...)
}

// EnqueueRoster enqueues a roster scrape of one position. level is
// tasks.LevelPro, tasks.LevelCollege or LevelBoth; LevelBoth enqueues one
// job per level.
func (c *Client) EnqueueRoster(ctx context.Context, position, level string, opts ...job.Option) ([]*job.Job, error) {
	if position == "" {
		return nil, fmt.Errorf("client: roster: position is required")
	}

	var levels []string
	switch level {
	case "", tasks.LevelPro:
		levels = []string{tasks.LevelPro}
	case tasks.LevelCollege:
		levels = []string{tasks.LevelCollege}
	case LevelBoth:
		levels = []string{tasks.LevelPro, tasks.LevelCollege}
	default:
		return nil, fmt.Errorf("client: roster: unknown level %q", level)
	}

	jobs := make([]*job.Job, 0, len(levels))
	for _, lvl := range levels {
		j, err := c.Enqueue(ctx, task.ScrapeRoster, c.rosterParams(position, lvl),
			prepend(job.WithPriority(PriorityRoster), opts)...)
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// PlayerCard identifies the player a card scrape targets.
type PlayerCard struct {
	OttoneuID   int
	Name        string
	PlayerUUID  uuid.UUID
	FantasyTeam string
}

// EnqueuePlayerCard enqueues a player card scrape in the default league
// and season.
func (c *Client) EnqueuePlayerCard(ctx context.Context, card PlayerCard, opts ...job.Option) (*job.Job, error) {
	if card.OttoneuID <= 0 {
		return nil, fmt.Errorf("client: player card: ottoneu id is required")
	}
	if card.PlayerUUID == uuid.Nil {
		return nil, fmt.Errorf("client: player card: player uuid is required")
	}
	p := tasks.PlayerCardParams{
		OttoneuID:   card.OttoneuID,
		PlayerName:  card.Name,
		PlayerUUID:  card.PlayerUUID,
		Href:        ottoneu.PlayerCardHref(c.leagueID, card.OttoneuID),
		Season:      c.season,
		LeagueID:    c.leagueID,
		FantasyTeam: card.FantasyTeam,
	}
	return c.Enqueue(ctx, task.ScrapePlayerCard, p, prepend(job.WithPriority(PriorityCard), opts)...)
}

func (c *Client) rosterParams(position, level string) tasks.RosterParams {
	return tasks.RosterParams{
		Position: position,
		Season:   c.season,
		LeagueID: c.leagueID,
		Level:    level,
	}
}

func prepend(first job.Option, rest []job.Option) []job.Option {
	return append([]job.Option{first}, rest...)
}

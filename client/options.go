package client

import (
	"log/slog"
	"time"

	scrapequeue "github.com/alex-monroe/scrapequeue"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithSeason sets the default season of enqueued jobs.
func WithSeason(season int) Option {
	return func(c *Client) { c.season = season }
}

// WithLeagueID sets the default league of enqueued jobs.
func WithLeagueID(leagueID int) Option {
	return func(c *Client) { c.leagueID = leagueID }
}

// WithPositions sets the positions a batch scrapes for NFL players.
func WithPositions(positions ...string) Option {
	return func(c *Client) { c.positions = positions }
}

// WithCollegePositions sets the positions a batch scrapes for college
// players.
func WithCollegePositions(positions ...string) Option {
	return func(c *Client) { c.collegePositions = positions }
}

// WithHistoricalSeasons sets the seasons EnqueuePlayerStats pulls when none
// are given.
func WithHistoricalSeasons(seasons ...int) Option {
	return func(c *Client) { c.historical = seasons }
}

// WithMaxAttempts sets the attempt budget of new jobs.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithTimeout sets the per-job deadline of new jobs. Zero leaves the worker
// default in place.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithConfig applies the enqueue defaults from cfg.
func WithConfig(cfg scrapequeue.Config) Option {
	return func(c *Client) {
		c.season = cfg.Season
		c.leagueID = cfg.LeagueID
		c.positions = cfg.Positions
		c.collegePositions = cfg.CollegePositions
		c.historical = cfg.HistoricalSeasons
		if cfg.MaxAttempts > 0 {
			c.maxAttempts = cfg.MaxAttempts
		}
	}
}

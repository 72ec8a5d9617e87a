package tasks

import (
	"context"

	"github.com/alex-monroe/scrapequeue/league"
	"github.com/alex-monroe/scrapequeue/nflverse"
	"github.com/alex-monroe/scrapequeue/ottoneu"
	"github.com/alex-monroe/scrapequeue/task"
)

// StatsSource supplies NFL statistics. *nflverse.Client implements it.
type StatsSource interface {
	SnapCounts(ctx context.Context, season int) ([]nflverse.SnapTotal, error)
	SeasonStats(ctx context.Context, seasons []int) ([]nflverse.PlayerSeason, error)
}

// Handlers holds the dependencies shared by every handler.
type Handlers struct {
	league  league.Store
	stats   StatsSource
	scraper *ottoneu.Scraper

	defaultSeasons []int
}

// Option configures Handlers.
type Option func(*Handlers)

// WithDefaultSeasons sets the seasons pulled by pull_player_stats when its
// params name none.
func WithDefaultSeasons(seasons []int) Option {
	return func(h *Handlers) { h.defaultSeasons = seasons }
}

// New creates the handlers.
func New(ls league.Store, stats StatsSource, scraper *ottoneu.Scraper, opts ...Option) *Handlers {
	h := &Handlers{
		league:         ls,
		stats:          stats,
		scraper:        scraper,
		defaultSeasons: []int{2022, 2023, 2024},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds every task type to reg.
func (h *Handlers) Register(reg *task.Registry) {
	task.Register(reg, task.NewDefinition(task.PullNFLStats, false, h.PullNFLStats))
	task.Register(reg, task.NewDefinition(task.PullPlayerStats, false, h.PullPlayerStats))
	task.Register(reg, task.NewDefinition(task.ScrapeRoster, true, h.ScrapeRoster))
	task.Register(reg, task.NewDefinition(task.ScrapePlayerCard, true, h.ScrapePlayerCard))
}

package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/alex-monroe/scrapequeue/league"
	"github.com/alex-monroe/scrapequeue/task"
)

// PlayerStatsResult summarizes a pull_player_stats run.
type PlayerStatsResult struct {
	Upserted  int `json:"rows_upserted"`
	Unmatched int `json:"unmatched"`
}

// PullNFLStats downloads a season's snap counts. The totals are handed to
// later roster jobs through the run cache.
func (h *Handlers) PullNFLStats(ctx context.Context, env *task.Env, p NFLStatsParams) (*task.Result, error) {
	if p.Season == 0 {
		return nil, invalid(task.PullNFLStats, "season is required")
	}
	totals, err := h.stats.SnapCounts(ctx, p.Season)
	if err != nil {
		return nil, fmt.Errorf("pull snap counts %d: %w", p.Season, err)
	}
	env.Logger.Info("pulled snap counts",
		slog.Int("season", p.Season),
		slog.Int("players", len(totals)),
	)
	return &task.Result{Data: totals, CacheKey: NFLStatsKey(p.Season)}, nil
}

// PullPlayerStats stores season lines for every stored player whose
// normalized name appears in the downloaded stats.
func (h *Handlers) PullPlayerStats(ctx context.Context, env *task.Env, p PlayerStatsParams) (*task.Result, error) {
	seasons := p.Seasons
	if len(seasons) == 0 {
		seasons = h.defaultSeasons
	}

	players, err := h.league.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	lookup := make(map[string]uuid.UUID, len(players))
	for _, pl := range players {
		lookup[league.NormalizeName(pl.Name)] = pl.ID
	}

	stats, err := h.stats.SeasonStats(ctx, seasons)
	if err != nil {
		return nil, fmt.Errorf("pull player stats %v: %w", seasons, err)
	}

	var (
		lines     []*league.SeasonLine
		unmatched = map[string]struct{}{}
	)
	for _, ps := range stats {
		playerID, ok := lookup[league.NormalizeName(ps.Name)]
		if !ok {
			unmatched[ps.Name] = struct{}{}
			continue
		}
		line := ps.SeasonLine
		line.PlayerID = playerID
		lines = append(lines, &line)
	}

	if err := h.league.UpsertSeasonLines(ctx, lines); err != nil {
		return nil, fmt.Errorf("upsert season lines: %w", err)
	}

	logger := env.Logger.With(slog.Any("seasons", seasons))
	logger.Info("stored player stats",
		slog.Int("players", len(lookup)),
		slog.Int("upserted", len(lines)),
		slog.Int("unmatched", len(unmatched)),
	)
	if len(unmatched) > 0 {
		names := make([]string, 0, len(unmatched))
		for n := range unmatched {
			names = append(names, n)
		}
		slices.Sort(names)
		logger.Debug("unmatched stat names", slog.Any("sample", names[:min(len(names), 20)]))
	}

	return &task.Result{Data: PlayerStatsResult{Upserted: len(lines), Unmatched: len(unmatched)}}, nil
}

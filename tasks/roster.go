package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alex-monroe/scrapequeue/league"
	"github.com/alex-monroe/scrapequeue/nflverse"
	"github.com/alex-monroe/scrapequeue/task"
)

// Child job priorities.
const playerCardPriority = -1

// RosterResult summarizes a scrape_roster run.
type RosterResult struct {
	Processed int `json:"processed"`
	Matched   int `json:"matched"`
}

// ScrapeRoster scrapes one position of the league's player search. Each
// row upserts the player, the league price and the season usage, and
// yields a scrape_player_card child.
func (h *Handlers) ScrapeRoster(ctx context.Context, env *task.Env, p RosterParams) (*task.Result, error) {
	if p.Position == "" || p.Season == 0 || p.LeagueID == 0 {
		return nil, invalid(task.ScrapeRoster, "position, season and league_id are required")
	}

	tab, err := env.Browser.NewTab(ctx)
	if err != nil {
		return nil, err
	}
	defer tab.Close()

	rows, err := h.scraper.Roster(ctx, tab, p.LeagueID, p.Position)
	if err != nil {
		return nil, err
	}

	logger := env.Logger.With(slog.String("position", p.Position), slog.String("level", p.Level))
	totals, cached := task.Lookup[[]nflverse.SnapTotal](env.Cache, NFLStatsKey(p.Season))
	if !cached {
		logger.Warn("no cached snap counts, storing points only", slog.Int("season", p.Season))
	}
	snaps := indexSnaps(totals)

	res := RosterResult{}
	var children []task.ChildSpec
	for _, row := range rows {
		playerID, err := h.league.UpsertPlayer(ctx, &league.Player{
			OttoneuID: row.OttoneuID,
			Name:      row.Name,
			Position:  p.Position,
			NFLTeam:   row.NFLTeam,
			IsCollege: row.IsCollege(),
		})
		if err != nil {
			return nil, fmt.Errorf("upsert player %d: %w", row.OttoneuID, err)
		}

		if err := h.league.UpsertLeaguePrice(ctx, &league.LeaguePrice{
			PlayerID: playerID,
			LeagueID: p.LeagueID,
			Season:   p.Season,
			Price:    row.Price,
			TeamName: row.FantasyTeam,
		}); err != nil {
			return nil, fmt.Errorf("upsert price %d: %w", row.OttoneuID, err)
		}

		usage := &league.Usage{
			PlayerID:    playerID,
			Season:      p.Season,
			TotalPoints: row.TotalPoints,
			Snaps:       snaps.usage(row.Name, row.NFLTeam, row.TotalPoints),
		}
		if usage.Snaps != nil {
			res.Matched++
		}
		if err := h.league.UpsertUsage(ctx, usage); err != nil {
			return nil, fmt.Errorf("upsert usage %d: %w", row.OttoneuID, err)
		}

		child, err := task.Child(task.ScrapePlayerCard, PlayerCardParams{
			OttoneuID:   row.OttoneuID,
			PlayerName:  row.Name,
			PlayerUUID:  playerID,
			Href:        row.Href,
			Season:      p.Season,
			LeagueID:    p.LeagueID,
			FantasyTeam: row.FantasyTeam,
		}, playerCardPriority)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
		res.Processed++
	}

	logger.Info("scraped roster",
		slog.Int("rows", len(rows)),
		slog.Int("matched", res.Matched),
		slog.Int("children", len(children)),
	)
	return &task.Result{Data: res, Children: children}, nil
}

// snapIndex groups snap totals by normalized player name.
type snapIndex map[string][]nflverse.SnapTotal

func indexSnaps(totals []nflverse.SnapTotal) snapIndex {
	idx := make(snapIndex, len(totals))
	for _, t := range totals {
		key := league.NormalizeName(t.Player)
		idx[key] = append(idx[key], t)
	}
	return idx
}

// usage matches a roster row against the snap totals. Several totals for
// one name at a single position are a traded player and are summed; at
// different positions they are different people, and the row's team picks
// between them when it can. It returns nil when nothing matches.
func (idx snapIndex) usage(name, team string, points float64) *league.SnapUsage {
	matches := idx[league.NormalizeName(name)]
	if len(matches) == 0 {
		return nil
	}
	if len(matches) > 1 && distinctPositions(matches) > 1 {
		var sameTeam []nflverse.SnapTotal
		for _, m := range matches {
			if m.Team == team {
				sameTeam = append(sameTeam, m)
			}
		}
		if len(sameTeam) > 0 {
			matches = sameTeam
		}
	}

	u := &league.SnapUsage{}
	for _, m := range matches {
		u.GamesPlayed += m.GamesPlayed
		u.Snaps += m.TotalSnaps
		u.H1Snaps += m.H1Snaps
		u.H1Games += m.H1Games
		u.H2Snaps += m.H2Snaps
		u.H2Games += m.H2Games
	}
	if u.GamesPlayed > 0 {
		u.PPG = league.Round(points/float64(u.GamesPlayed), 2)
	}
	if u.Snaps > 0 {
		u.PPS = league.Round(points/float64(u.Snaps), 4)
	}
	return u
}

func distinctPositions(totals []nflverse.SnapTotal) int {
	seen := map[string]struct{}{}
	for _, t := range totals {
		seen[t.Position] = struct{}{}
	}
	return len(seen)
}

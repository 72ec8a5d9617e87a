package nflverse

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/alex-monroe/scrapequeue/league"
)

// PlayerSeason is one player's regular-season box score. PlayerID is left
// unset; callers match Name against stored players.
type PlayerSeason struct {
	Name string `json:"name"`
	league.SeasonLine
}

type seasonKey struct {
	name   string
	season int
}

// partial is the aggregate of one CSV file.
type partial struct {
	lines map[seasonKey]*league.SeasonLine
	weeks map[seasonKey]map[int]struct{}
}

func newPartial() *partial {
	return &partial{
		lines: map[seasonKey]*league.SeasonLine{},
		weeks: map[seasonKey]map[int]struct{}{},
	}
}

func (p *partial) line(r record) *league.SeasonLine {
	key := seasonKey{r.str("player_display_name"), r.num("season")}
	l, ok := p.lines[key]
	if !ok {
		l = &league.SeasonLine{Season: key.season}
		p.lines[key] = l
		p.weeks[key] = map[int]struct{}{}
	}
	p.weeks[key][r.num("week")] = struct{}{}
	return l
}

var (
	offenseColumns = []string{"player_display_name", "season", "week", "season_type"}
	kickingColumns = []string{"player_display_name", "season", "week", "season_type"}
)

func (c *Client) offense(ctx context.Context, season int) (*partial, error) {
	p := newPartial()
	path := fmt.Sprintf("player_stats/player_stats_%d.csv", season)
	err := c.fetchCSV(ctx, path, offenseColumns, func(r record) error {
		if r.str("season_type") != "REG" {
			return nil
		}
		l := p.line(r)
		l.PassingYards += r.num("passing_yards")
		l.PassingTDs += r.num("passing_tds")
		l.Interceptions += r.num("interceptions")
		l.RushingAttempts += r.num("carries")
		l.RushingYards += r.num("rushing_yards")
		l.RushingTDs += r.num("rushing_tds")
		l.Receptions += r.num("receptions")
		l.Targets += r.num("targets")
		l.ReceivingYards += r.num("receiving_yards")
		l.ReceivingTDs += r.num("receiving_tds")
		return nil
	})
	return p, err
}

func (c *Client) kicking(ctx context.Context, season int) (*partial, error) {
	p := newPartial()
	path := fmt.Sprintf("player_stats/player_stats_kicking_%d.csv", season)
	err := c.fetchCSV(ctx, path, kickingColumns, func(r record) error {
		if r.str("season_type") != "REG" {
			return nil
		}
		l := p.line(r)
		l.FGMade0To39 += r.num("fg_made_0_19") + r.num("fg_made_20_29") + r.num("fg_made_30_39")
		l.FGMade40To49 += r.num("fg_made_40_49")
		l.FGMade50Plus += r.num("fg_made_50_59") + r.num("fg_made_60_")
		l.PATMade += r.num("pat_made")
		return nil
	})
	return p, err
}

// SeasonStats downloads offense and kicking stats for each season and
// merges them per (player, season). Games played is the number of
// distinct weeks, taking the larger of the offense and kicking counts.
// TotalPoints is the Half-PPR score.
func (c *Client) SeasonStats(ctx context.Context, seasons []int) ([]PlayerSeason, error) {
	offense := make([]*partial, len(seasons))
	kicking := make([]*partial, len(seasons))

	g, gctx := errgroup.WithContext(ctx)
	for i, season := range seasons {
		g.Go(func() error {
			p, err := c.offense(gctx, season)
			offense[i] = p
			return err
		})
		g.Go(func() error {
			p, err := c.kicking(gctx, season)
			kicking[i] = p
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := map[seasonKey]*PlayerSeason{}
	get := func(key seasonKey) *PlayerSeason {
		ps, ok := merged[key]
		if !ok {
			ps = &PlayerSeason{Name: key.name}
			ps.Season = key.season
			merged[key] = ps
		}
		return ps
	}

	for i := range seasons {
		for key, l := range offense[i].lines {
			ps := get(key)
			ps.SeasonLine = *l
			ps.GamesPlayed = len(offense[i].weeks[key])
		}
		for key, l := range kicking[i].lines {
			ps := get(key)
			ps.FGMade0To39 = l.FGMade0To39
			ps.FGMade40To49 = l.FGMade40To49
			ps.FGMade50Plus = l.FGMade50Plus
			ps.PATMade = l.PATMade
			ps.GamesPlayed = max(ps.GamesPlayed, len(kicking[i].weeks[key]))
		}
	}

	out := make([]PlayerSeason, 0, len(merged))
	for _, ps := range merged {
		ps.TotalPoints = league.HalfPPR(&ps.SeasonLine)
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Season != out[k].Season {
			return out[i].Season < out[k].Season
		}
		return out[i].Name < out[k].Name
	})
	return out, nil
}

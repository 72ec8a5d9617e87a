package nflverse

import (
	"context"
	"fmt"
	"sort"
)

// Weeks 1-8 are the first half of the season and 9-16 the second.
const (
	firstHalfEnd  = 8
	secondHalfEnd = 16
)

// SnapTotal is one player's regular-season snap counts for one team and
// position. A player traded mid-season has one SnapTotal per team.
type SnapTotal struct {
	Player       string `json:"player"`
	Position     string `json:"position"`
	Team         string `json:"team"`
	OffenseSnaps int    `json:"offense_snaps"`
	DefenseSnaps int    `json:"defense_snaps"`
	STSnaps      int    `json:"st_snaps"`
	TotalSnaps   int    `json:"total_snaps"`
	GamesPlayed  int    `json:"games_played"`
	H1Snaps      int    `json:"h1_snaps"`
	H1Games      int    `json:"h1_games"`
	H2Snaps      int    `json:"h2_snaps"`
	H2Games      int    `json:"h2_games"`
}

type snapKey struct {
	player, position, team string
}

type snapAgg struct {
	SnapTotal
	games   map[string]struct{}
	h1Games map[string]struct{}
	h2Games map[string]struct{}
}

var snapColumns = []string{"game_id", "game_type", "week", "player", "position", "team", "offense_snaps", "defense_snaps", "st_snaps"}

// SnapCounts downloads the season's snap counts and aggregates them per
// (player, position, team), sorted by player then team.
func (c *Client) SnapCounts(ctx context.Context, season int) ([]SnapTotal, error) {
	aggs := make(map[snapKey]*snapAgg)
	path := fmt.Sprintf("snap_counts/snap_counts_%d.csv", season)

	err := c.fetchCSV(ctx, path, snapColumns, func(r record) error {
		if r.str("game_type") != "REG" {
			return nil
		}
		key := snapKey{r.str("player"), r.str("position"), r.str("team")}
		a, ok := aggs[key]
		if !ok {
			a = &snapAgg{
				SnapTotal: SnapTotal{Player: key.player, Position: key.position, Team: key.team},
				games:     map[string]struct{}{},
				h1Games:   map[string]struct{}{},
				h2Games:   map[string]struct{}{},
			}
			aggs[key] = a
		}

		off, def, st := r.num("offense_snaps"), r.num("defense_snaps"), r.num("st_snaps")
		total := off + def + st
		game := r.str("game_id")
		a.OffenseSnaps += off
		a.DefenseSnaps += def
		a.STSnaps += st
		a.TotalSnaps += total
		a.games[game] = struct{}{}

		switch week := r.num("week"); {
		case week >= 1 && week <= firstHalfEnd:
			a.H1Snaps += total
			a.h1Games[game] = struct{}{}
		case week > firstHalfEnd && week <= secondHalfEnd:
			a.H2Snaps += total
			a.h2Games[game] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]SnapTotal, 0, len(aggs))
	for _, a := range aggs {
		a.GamesPlayed = len(a.games)
		a.H1Games = len(a.h1Games)
		a.H2Games = len(a.h2Games)
		out = append(out, a.SnapTotal)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Player != out[k].Player {
			return out[i].Player < out[k].Player
		}
		if out[i].Team != out[k].Team {
			return out[i].Team < out[k].Team
		}
		return out[i].Position < out[k].Position
	})
	return out, nil
}

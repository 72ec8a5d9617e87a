package tasks

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/alex-monroe/scrapequeue/task"
)

// NFLStatsParams are the params of pull_nfl_stats.
type NFLStatsParams struct {
	task.Versioned
	Season int `json:"season"`
}

// PlayerStatsParams are the params of pull_player_stats.
type PlayerStatsParams struct {
	task.Versioned
	Seasons []int `json:"seasons"`
}

// Roster levels. The level only labels a roster job; both levels scrape
// the same search page.
const (
	LevelPro     = "pro"
	LevelCollege = "college"
)

// RosterParams are the params of scrape_roster.
type RosterParams struct {
	task.Versioned
	Position string `json:"position"`
	Season   int    `json:"season"`
	LeagueID int    `json:"league_id"`
	Level    string `json:"level,omitempty"`
}

// PlayerCardParams are the params of scrape_player_card.
type PlayerCardParams struct {
	task.Versioned
	OttoneuID   int       `json:"ottoneu_id"`
	PlayerName  string    `json:"player_name,omitempty"`
	PlayerUUID  uuid.UUID `json:"player_uuid"`
	Href        string    `json:"href,omitempty"`
	Season      int       `json:"season"`
	LeagueID    int       `json:"league_id"`
	FantasyTeam string    `json:"fantasy_team,omitempty"`
}

// NFLStatsKey is the run cache key of a season's snap totals.
func NFLStatsKey(season int) string {
	return fmt.Sprintf("nfl_stats:%d", season)
}

func invalid(t task.Type, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", task.ErrInvalidParams, t, fmt.Sprintf(format, args...))
}

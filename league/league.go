package league

import (
	"time"

	"github.com/google/uuid"
)

// Player is a league player, keyed by the Ottoneu player id.
type Player struct {
	ID        uuid.UUID `json:"id"`
	OttoneuID int       `json:"ottoneu_id"`
	Name      string    `json:"name"`
	Position  string    `json:"position"`
	NFLTeam   string    `json:"nfl_team"`
	IsCollege bool      `json:"is_college"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LeaguePrice is a player's current salary and fantasy team in one league
// season. Natural key: (PlayerID, LeagueID, Season).
type LeaguePrice struct {
	PlayerID  uuid.UUID `json:"player_id"`
	LeagueID  int       `json:"league_id"`
	Season    int       `json:"season"`
	Price     int       `json:"price"`
	TeamName  string    `json:"team_name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SeasonLine is a season of box-score production, as written by the stat
// pull. Natural key: (PlayerID, Season).
type SeasonLine struct {
	PlayerID        uuid.UUID `json:"player_id"`
	Season          int       `json:"season"`
	GamesPlayed     int       `json:"games_played"`
	PassingYards    int       `json:"passing_yards"`
	PassingTDs      int       `json:"passing_tds"`
	Interceptions   int       `json:"interceptions"`
	RushingAttempts int       `json:"rushing_attempts"`
	RushingYards    int       `json:"rushing_yards"`
	RushingTDs      int       `json:"rushing_tds"`
	Receptions      int       `json:"receptions"`
	Targets         int       `json:"targets"`
	ReceivingYards  int       `json:"receiving_yards"`
	ReceivingTDs    int       `json:"receiving_tds"`
	FGMade0To39     int       `json:"fg_made_0_39"`
	FGMade40To49    int       `json:"fg_made_40_49"`
	FGMade50Plus    int       `json:"fg_made_50_plus"`
	PATMade         int       `json:"pat_made"`
	TotalPoints     float64   `json:"total_points"`
}

// SnapUsage is playing time derived from snap counts.
type SnapUsage struct {
	GamesPlayed int     `json:"games_played"`
	Snaps       int     `json:"snaps"`
	PPG         float64 `json:"ppg"`
	PPS         float64 `json:"pps"`
	H1Snaps     int     `json:"h1_snaps"`
	H1Games     int     `json:"h1_games"`
	H2Snaps     int     `json:"h2_snaps"`
	H2Games     int     `json:"h2_games"`
}

// Usage is what a roster scrape learns about a player's season: the
// league's point total and, when snap counts matched, playing time. A nil
// Snaps leaves previously stored games and snaps untouched.
type Usage struct {
	PlayerID    uuid.UUID  `json:"player_id"`
	Season      int        `json:"season"`
	TotalPoints float64    `json:"total_points"`
	Snaps       *SnapUsage `json:"snaps,omitempty"`
}

// PlayerStats is the stored row combining SeasonLine and Usage columns.
type PlayerStats struct {
	SeasonLine
	Snaps     int       `json:"snaps"`
	PPG       float64   `json:"ppg"`
	PPS       float64   `json:"pps"`
	H1Snaps   int       `json:"h1_snaps"`
	H1Games   int       `json:"h1_games"`
	H2Snaps   int       `json:"h2_snaps"`
	H2Games   int       `json:"h2_games"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is one row of a player card's transaction history.
// Natural key: (PlayerID, LeagueID, Type, Date, Salary).
type Transaction struct {
	PlayerID       uuid.UUID  `json:"player_id"`
	LeagueID       int        `json:"league_id"`
	Season         int        `json:"season"`
	Type           string     `json:"transaction_type"`
	TeamName       string     `json:"team_name,omitempty"`
	Salary         *int       `json:"salary,omitempty"`
	Date           *time.Time `json:"transaction_date,omitempty"`
	RawDescription string     `json:"raw_description"`
}

// SalarySnapshot is one observation of a player's price.
type SalarySnapshot struct {
	PlayerID  uuid.UUID `json:"player_id"`
	LeagueID  int       `json:"league_id"`
	Season    int       `json:"season"`
	Price     int       `json:"price"`
	TeamName  string    `json:"team_name"`
	ScrapedAt time.Time `json:"scraped_at"`
}

package league

import (
	"context"

	"github.com/google/uuid"
)

// Store persists league data. All writes are upserts on natural keys.
type Store interface {
	// UpsertPlayer inserts or updates a player by OttoneuID and returns the
	// stored id, which is stable across upserts.
	UpsertPlayer(ctx context.Context, p *Player) (uuid.UUID, error)

	// GetPlayer returns a player by id or scrapequeue.ErrPlayerNotFound.
	GetPlayer(ctx context.Context, playerID uuid.UUID) (*Player, error)

	// ListPlayers returns every stored player.
	ListPlayers(ctx context.Context) ([]*Player, error)

	// UpsertLeaguePrice sets a player's price and team for a league season.
	UpsertLeaguePrice(ctx context.Context, lp *LeaguePrice) error

	// GetLeaguePrice returns the stored price or scrapequeue.ErrPlayerNotFound.
	GetLeaguePrice(ctx context.Context, playerID uuid.UUID, leagueID, season int) (*LeaguePrice, error)

	// UpsertSeasonLines writes box-score columns for each line.
	UpsertSeasonLines(ctx context.Context, lines []*SeasonLine) error

	// UpsertUsage writes total points and, when present, snap usage.
	UpsertUsage(ctx context.Context, u *Usage) error

	// GetPlayerStats returns the combined stats row or
	// scrapequeue.ErrPlayerNotFound.
	GetPlayerStats(ctx context.Context, playerID uuid.UUID, season int) (*PlayerStats, error)

	// UpsertTransaction stores a transaction, ignoring exact repeats.
	UpsertTransaction(ctx context.Context, t *Transaction) error

	// ListTransactions returns a player's transactions in one league.
	ListTransactions(ctx context.Context, playerID uuid.UUID, leagueID int) ([]*Transaction, error)

	// RecordSalary appends s to the salary history unless the latest
	// snapshot for the same player, league and season already has the same
	// price and team. It reports whether a row was written.
	RecordSalary(ctx context.Context, s *SalarySnapshot) (bool, error)

	// ListSalaryHistory returns snapshots oldest first.
	ListSalaryHistory(ctx context.Context, playerID uuid.UUID, leagueID, season int) ([]*SalarySnapshot, error)
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/league"
)

// UpsertPlayer inserts or updates a player keyed by OttoneuID.
func (s *Store) UpsertPlayer(ctx context.Context, p *league.Player) (uuid.UUID, error) {
	var playerID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO players (id, ottoneu_id, name, position, nfl_team, is_college, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ottoneu_id) DO UPDATE SET
			name = EXCLUDED.name,
			position = EXCLUDED.position,
			nfl_team = EXCLUDED.nfl_team,
			is_college = EXCLUDED.is_college,
			updated_at = EXCLUDED.updated_at
		RETURNING id`,
		uuid.New(), p.OttoneuID, p.Name, p.Position, p.NFLTeam, p.IsCollege, time.Now().UTC(),
	).Scan(&playerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("scrapequeue/postgres: upsert player %d: %w", p.OttoneuID, err)
	}
	return playerID, nil
}

const playerColumns = `id, ottoneu_id, name, position, nfl_team, is_college, updated_at`

func scanPlayer(row pgx.Row) (*league.Player, error) {
	var p league.Player
	err := row.Scan(&p.ID, &p.OttoneuID, &p.Name, &p.Position, &p.NFLTeam, &p.IsCollege, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlayer returns a player by id.
func (s *Store) GetPlayer(ctx context.Context, playerID uuid.UUID) (*league.Player, error) {
	p, err := scanPlayer(s.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, playerID))
	if err != nil {
		if isNoRows(err) {
			return nil, scrapequeue.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("scrapequeue/postgres: get player: %w", err)
	}
	return p, nil
}

// ListPlayers returns every player ordered by name.
func (s *Store) ListPlayers(ctx context.Context) ([]*league.Player, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+playerColumns+` FROM players ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/postgres: list players: %w", err)
	}
	defer rows.Close()

	var out []*league.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scrapequeue/postgres: scan player: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertLeaguePrice sets the price for (player, league, season).
func (s *Store) UpsertLeaguePrice(ctx context.Context, lp *league.LeaguePrice) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO league_prices (player_id, league_id, season, price, team_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (player_id, league_id, season) DO UPDATE SET
			price = EXCLUDED.price,
			team_name = EXCLUDED.team_name,
			updated_at = EXCLUDED.updated_at`,
		lp.PlayerID, lp.LeagueID, lp.Season, lp.Price, lp.TeamName, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("scrapequeue/postgres: upsert league price: %w", err)
	}
	return nil
}

// GetLeaguePrice returns the price for (player, league, season).
func (s *Store) GetLeaguePrice(ctx context.Context, playerID uuid.UUID, leagueID, season int) (*league.LeaguePrice, error) {
	lp := league.LeaguePrice{PlayerID: playerID, LeagueID: leagueID, Season: season}
	err := s.pool.QueryRow(ctx, `
		SELECT price, team_name, updated_at FROM league_prices
		WHERE player_id = $1 AND league_id = $2 AND season = $3`,
		playerID, leagueID, season,
	).Scan(&lp.Price, &lp.TeamName, &lp.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, scrapequeue.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("scrapequeue/postgres: get league price: %w", err)
	}
	return &lp, nil
}

// UpsertSeasonLines writes the box-score columns of each line in one
// batch round trip.
func (s *Store) UpsertSeasonLines(ctx context.Context, lines []*league.SeasonLine) error {
	if len(lines) == 0 {
		return nil
	}
	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`
			INSERT INTO player_stats (
				player_id, season, games_played, total_points,
				passing_yards, passing_tds, interceptions,
				rushing_attempts, rushing_yards, rushing_tds,
				receptions, targets, receiving_yards, receiving_tds,
				fg_made_0_39, fg_made_40_49, fg_made_50_plus, pat_made, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			ON CONFLICT (player_id, season) DO UPDATE SET
				games_played = EXCLUDED.games_played,
				total_points = EXCLUDED.total_points,
				passing_yards = EXCLUDED.passing_yards,
				passing_tds = EXCLUDED.passing_tds,
				interceptions = EXCLUDED.interceptions,
				rushing_attempts = EXCLUDED.rushing_attempts,
				rushing_yards = EXCLUDED.rushing_yards,
				rushing_tds = EXCLUDED.rushing_tds,
				receptions = EXCLUDED.receptions,
				targets = EXCLUDED.targets,
				receiving_yards = EXCLUDED.receiving_yards,
				receiving_tds = EXCLUDED.receiving_tds,
				fg_made_0_39 = EXCLUDED.fg_made_0_39,
				fg_made_40_49 = EXCLUDED.fg_made_40_49,
				fg_made_50_plus = EXCLUDED.fg_made_50_plus,
				pat_made = EXCLUDED.pat_made,
				updated_at = EXCLUDED.updated_at`,
			l.PlayerID, l.Season, l.GamesPlayed, l.TotalPoints,
			l.PassingYards, l.PassingTDs, l.Interceptions,
			l.RushingAttempts, l.RushingYards, l.RushingTDs,
			l.Receptions, l.Targets, l.ReceivingYards, l.ReceivingTDs,
			l.FGMade0To39, l.FGMade40To49, l.FGMade50Plus, l.PATMade, now,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("scrapequeue/postgres: upsert season lines: %w", err)
	}
	return nil
}

// UpsertUsage writes total points and, when present, snap usage.
func (s *Store) UpsertUsage(ctx context.Context, u *league.Usage) error {
	now := time.Now().UTC()
	var err error
	if sn := u.Snaps; sn != nil {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO player_stats (
				player_id, season, total_points, games_played, snaps, ppg, pps,
				h1_snaps, h1_games, h2_snaps, h2_games, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (player_id, season) DO UPDATE SET
				total_points = EXCLUDED.total_points,
				games_played = EXCLUDED.games_played,
				snaps = EXCLUDED.snaps,
				ppg = EXCLUDED.ppg,
				pps = EXCLUDED.pps,
				h1_snaps = EXCLUDED.h1_snaps,
				h1_games = EXCLUDED.h1_games,
				h2_snaps = EXCLUDED.h2_snaps,
				h2_games = EXCLUDED.h2_games,
				updated_at = EXCLUDED.updated_at`,
			u.PlayerID, u.Season, u.TotalPoints, sn.GamesPlayed, sn.Snaps, sn.PPG, sn.PPS,
			sn.H1Snaps, sn.H1Games, sn.H2Snaps, sn.H2Games, now,
		)
	} else {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO player_stats (player_id, season, total_points, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (player_id, season) DO UPDATE SET
				total_points = EXCLUDED.total_points,
				updated_at = EXCLUDED.updated_at`,
			u.PlayerID, u.Season, u.TotalPoints, now,
		)
	}
	if err != nil {
		return fmt.Errorf("scrapequeue/postgres: upsert usage: %w", err)
	}
	return nil
}

// GetPlayerStats returns the stats row for (player, season).
func (s *Store) GetPlayerStats(ctx context.Context, playerID uuid.UUID, season int) (*league.PlayerStats, error) {
	var ps league.PlayerStats
	err := s.pool.QueryRow(ctx, `
		SELECT player_id, season, games_played, snaps, total_points, ppg, pps,
			h1_snaps, h1_games, h2_snaps, h2_games,
			passing_yards, passing_tds, interceptions,
			rushing_attempts, rushing_yards, rushing_tds,
			receptions, targets, receiving_yards, receiving_tds,
			fg_made_0_39, fg_made_40_49, fg_made_50_plus, pat_made, updated_at
		FROM player_stats WHERE player_id = $1 AND season = $2`,
		playerID, season,
	).Scan(
		&ps.PlayerID, &ps.Season, &ps.GamesPlayed, &ps.Snaps, &ps.TotalPoints, &ps.PPG, &ps.PPS,
		&ps.H1Snaps, &ps.H1Games, &ps.H2Snaps, &ps.H2Games,
		&ps.PassingYards, &ps.PassingTDs, &ps.Interceptions,
		&ps.RushingAttempts, &ps.RushingYards, &ps.RushingTDs,
		&ps.Receptions, &ps.Targets, &ps.ReceivingYards, &ps.ReceivingTDs,
		&ps.FGMade0To39, &ps.FGMade40To49, &ps.FGMade50Plus, &ps.PATMade, &ps.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, scrapequeue.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("scrapequeue/postgres: get player stats: %w", err)
	}
	return &ps, nil
}

// UpsertTransaction stores t, updating the row that shares its natural
// key.
func (s *Store) UpsertTransaction(ctx context.Context, t *league.Transaction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (
			player_id, league_id, season, transaction_type, team_name,
			salary, transaction_date, raw_description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT transactions_natural_key DO UPDATE SET
			season = EXCLUDED.season,
			team_name = EXCLUDED.team_name,
			raw_description = EXCLUDED.raw_description`,
		t.PlayerID, t.LeagueID, t.Season, t.Type, t.TeamName,
		t.Salary, t.Date, t.RawDescription,
	)
	if err != nil {
		return fmt.Errorf("scrapequeue/postgres: upsert transaction: %w", err)
	}
	return nil
}

// ListTransactions returns a player's transactions in insertion order.
func (s *Store) ListTransactions(ctx context.Context, playerID uuid.UUID, leagueID int) ([]*league.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT season, transaction_type, team_name, salary, transaction_date, raw_description
		FROM transactions
		WHERE player_id = $1 AND league_id = $2
		ORDER BY id`,
		playerID, leagueID,
	)
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/postgres: list transactions: %w", err)
	}
	defer rows.Close()

	var out []*league.Transaction
	for rows.Next() {
		t := league.Transaction{PlayerID: playerID, LeagueID: leagueID}
		if err := rows.Scan(&t.Season, &t.Type, &t.TeamName, &t.Salary, &t.Date, &t.RawDescription); err != nil {
			return nil, fmt.Errorf("scrapequeue/postgres: scan transaction: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// RecordSalary appends s unless the latest snapshot already has the same
// price and team. The check and insert are one statement.
func (s *Store) RecordSalary(ctx context.Context, snap *league.SalarySnapshot) (bool, error) {
	scrapedAt := snap.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO salary_history (player_id, league_id, season, price, team_name, scraped_at)
		SELECT $1::uuid, $2::integer, $3::integer, $4::integer, $5::text, $6::timestamptz
		WHERE NOT EXISTS (
			SELECT 1 FROM (
				SELECT price, team_name FROM salary_history
				WHERE player_id = $1 AND league_id = $2 AND season = $3
				ORDER BY scraped_at DESC, id DESC
				LIMIT 1
			) latest
			WHERE latest.price = $4 AND latest.team_name = $5
		)`,
		snap.PlayerID, snap.LeagueID, snap.Season, snap.Price, snap.TeamName, scrapedAt,
	)
	if err != nil {
		return false, fmt.Errorf("scrapequeue/postgres: record salary: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListSalaryHistory returns snapshots oldest first.
func (s *Store) ListSalaryHistory(ctx context.Context, playerID uuid.UUID, leagueID, season int) ([]*league.SalarySnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT price, team_name, scraped_at FROM salary_history
		WHERE player_id = $1 AND league_id = $2 AND season = $3
		ORDER BY scraped_at ASC, id ASC`,
		playerID, leagueID, season,
	)
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/postgres: list salary history: %w", err)
	}
	defer rows.Close()

	var out []*league.SalarySnapshot
	for rows.Next() {
		snap := league.SalarySnapshot{PlayerID: playerID, LeagueID: leagueID, Season: season}
		if err := rows.Scan(&snap.Price, &snap.TeamName, &snap.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scrapequeue/postgres: scan salary: %w", err)
		}
		out = append(out, &snap)
	}
	return out, rows.Err()
}

package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/league"
)

// UpsertPlayer inserts or updates a player keyed by OttoneuID.
func (m *Store) UpsertPlayer(_ context.Context, p *league.Player) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	playerID, ok := m.byOttoneu[p.OttoneuID]
	if !ok {
		playerID = uuid.New()
		m.byOttoneu[p.OttoneuID] = playerID
	}
	cp := *p
	cp.ID = playerID
	cp.UpdatedAt = now
	m.players[playerID] = &cp
	return playerID, nil
}

// GetPlayer returns a player by id.
func (m *Store) GetPlayer(_ context.Context, playerID uuid.UUID) (*league.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.players[playerID]
	if !ok {
		return nil, scrapequeue.ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

// ListPlayers returns every player ordered by name.
func (m *Store) ListPlayers(_ context.Context) ([]*league.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*league.Player, 0, len(m.players))
	for _, p := range m.players {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out, nil
}

// UpsertLeaguePrice sets the price for (player, league, season).
func (m *Store) UpsertLeaguePrice(_ context.Context, lp *league.LeaguePrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *lp
	cp.UpdatedAt = time.Now().UTC()
	m.prices[priceKey{lp.PlayerID, lp.LeagueID, lp.Season}] = &cp
	return nil
}

// GetLeaguePrice returns the price for (player, league, season).
func (m *Store) GetLeaguePrice(_ context.Context, playerID uuid.UUID, leagueID, season int) (*league.LeaguePrice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lp, ok := m.prices[priceKey{playerID, leagueID, season}]
	if !ok {
		return nil, scrapequeue.ErrPlayerNotFound
	}
	cp := *lp
	return &cp, nil
}

// UpsertSeasonLines writes the box-score columns of each line.
func (m *Store) UpsertSeasonLines(_ context.Context, lines []*league.SeasonLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, l := range lines {
		row := m.statsRow(l.PlayerID, l.Season)
		row.SeasonLine = *l
		row.UpdatedAt = now
	}
	return nil
}

// UpsertUsage writes total points and, when present, snap usage.
func (m *Store) UpsertUsage(_ context.Context, u *league.Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.statsRow(u.PlayerID, u.Season)
	row.TotalPoints = u.TotalPoints
	if s := u.Snaps; s != nil {
		row.GamesPlayed = s.GamesPlayed
		row.Snaps = s.Snaps
		row.PPG = s.PPG
		row.PPS = s.PPS
		row.H1Snaps, row.H1Games = s.H1Snaps, s.H1Games
		row.H2Snaps, row.H2Games = s.H2Snaps, s.H2Games
	}
	row.UpdatedAt = time.Now().UTC()
	return nil
}

// statsRow returns the row for (player, season), creating it. Callers
// hold the write lock.
func (m *Store) statsRow(playerID uuid.UUID, season int) *league.PlayerStats {
	key := statsKey{playerID, season}
	row, ok := m.stats[key]
	if !ok {
		row = &league.PlayerStats{}
		row.PlayerID = playerID
		row.Season = season
		m.stats[key] = row
	}
	return row
}

// GetPlayerStats returns the stats row for (player, season).
func (m *Store) GetPlayerStats(_ context.Context, playerID uuid.UUID, season int) (*league.PlayerStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.stats[statsKey{playerID, season}]
	if !ok {
		return nil, scrapequeue.ErrPlayerNotFound
	}
	cp := *row
	return &cp, nil
}

// UpsertTransaction stores t unless a transaction with the same natural
// key exists, in which case the stored row is updated.
func (m *Store) UpsertTransaction(_ context.Context, t *league.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *t
	for i, existing := range m.transactions {
		if sameTransaction(existing, t) {
			m.transactions[i] = &cp
			return nil
		}
	}
	m.transactions = append(m.transactions, &cp)
	return nil
}

func sameTransaction(a, b *league.Transaction) bool {
	if a.PlayerID != b.PlayerID || a.LeagueID != b.LeagueID || a.Type != b.Type {
		return false
	}
	switch {
	case (a.Salary == nil) != (b.Salary == nil):
		return false
	case a.Salary != nil && *a.Salary != *b.Salary:
		return false
	case (a.Date == nil) != (b.Date == nil):
		return false
	case a.Date != nil && !a.Date.Equal(*b.Date):
		return false
	}
	return true
}

// ListTransactions returns a player's transactions in insertion order.
func (m *Store) ListTransactions(_ context.Context, playerID uuid.UUID, leagueID int) ([]*league.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*league.Transaction
	for _, t := range m.transactions {
		if t.PlayerID == playerID && t.LeagueID == leagueID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// RecordSalary appends s unless the latest snapshot already matches.
func (m *Store) RecordSalary(_ context.Context, s *league.SalarySnapshot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := salaryKey{s.PlayerID, s.LeagueID, s.Season}
	history := m.salaries[key]
	if n := len(history); n > 0 {
		latest := history[n-1]
		if latest.Price == s.Price && latest.TeamName == s.TeamName {
			return false, nil
		}
	}
	cp := *s
	if cp.ScrapedAt.IsZero() {
		cp.ScrapedAt = time.Now().UTC()
	}
	m.salaries[key] = append(history, &cp)
	return true, nil
}

// ListSalaryHistory returns snapshots oldest first.
func (m *Store) ListSalaryHistory(_ context.Context, playerID uuid.UUID, leagueID, season int) ([]*league.SalarySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.salaries[salaryKey{playerID, leagueID, season}]
	out := make([]*league.SalarySnapshot, len(history))
	for i, s := range history {
		cp := *s
		out[i] = &cp
	}
	return out, nil
}

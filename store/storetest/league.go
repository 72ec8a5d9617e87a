package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/league"
)

// RunLeagueStore runs the league.Store suite. newStore must return an
// empty store for every call.
func RunLeagueStore(t *testing.T, newStore func(t *testing.T) league.Store) {
	t.Run("UpsertPlayer", func(t *testing.T) { testUpsertPlayer(t, newStore(t)) })
	t.Run("LeaguePrice", func(t *testing.T) { testLeaguePrice(t, newStore(t)) })
	t.Run("StatsReplay", func(t *testing.T) { testStatsReplay(t, newStore(t)) })
	t.Run("UsageWithoutSnaps", func(t *testing.T) { testUsageWithoutSnaps(t, newStore(t)) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("SalaryHistory", func(t *testing.T) { testSalaryHistory(t, newStore(t)) })
}

func mustPlayer(t *testing.T, s league.Store, ottoneuID int, name string) uuid.UUID {
	t.Helper()
	playerID, err := s.UpsertPlayer(context.Background(), &league.Player{
		OttoneuID: ottoneuID,
		Name:      name,
		Position:  "WR",
		NFLTeam:   "DET",
	})
	if err != nil {
		t.Fatalf("UpsertPlayer: %v", err)
	}
	return playerID
}

func testUpsertPlayer(t *testing.T, s league.Store) {
	ctx := context.Background()
	first := mustPlayer(t, s, 101, "Amon-Ra St. Brown")

	second, err := s.UpsertPlayer(ctx, &league.Player{OttoneuID: 101, Name: "Amon-Ra St Brown", Position: "WR", NFLTeam: "DET"})
	if err != nil {
		t.Fatalf("UpsertPlayer: %v", err)
	}
	if second != first {
		t.Fatalf("upsert changed id: %s -> %s", first, second)
	}
	mustPlayer(t, s, 202, "Jahmyr Gibbs")

	players, err := s.ListPlayers(ctx)
	if err != nil {
		t.Fatalf("ListPlayers: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("ListPlayers returned %d, want 2", len(players))
	}

	got, err := s.GetPlayer(ctx, first)
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if got.Name != "Amon-Ra St Brown" || got.OttoneuID != 101 {
		t.Errorf("player = %+v", got)
	}
	if _, err := s.GetPlayer(ctx, uuid.New()); !errors.Is(err, scrapequeue.ErrPlayerNotFound) {
		t.Errorf("missing player err = %v, want ErrPlayerNotFound", err)
	}
}

func testLeaguePrice(t *testing.T, s league.Store) {
	ctx := context.Background()
	p := mustPlayer(t, s, 1, "Puka Nacua")

	for _, price := range []int{12, 15} {
		if err := s.UpsertLeaguePrice(ctx, &league.LeaguePrice{PlayerID: p, LeagueID: 309, Season: 2025, Price: price, TeamName: "Gridiron"}); err != nil {
			t.Fatalf("UpsertLeaguePrice: %v", err)
		}
	}
	if err := s.UpsertLeaguePrice(ctx, &league.LeaguePrice{PlayerID: p, LeagueID: 309, Season: 2024, Price: 3}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetLeaguePrice(ctx, p, 309, 2025)
	if err != nil {
		t.Fatalf("GetLeaguePrice: %v", err)
	}
	if got.Price != 15 || got.TeamName != "Gridiron" {
		t.Errorf("price = %d team = %q", got.Price, got.TeamName)
	}
	prev, err := s.GetLeaguePrice(ctx, p, 309, 2024)
	if err != nil || prev.Price != 3 {
		t.Errorf("2024 price = %+v, %v", prev, err)
	}
	if _, err := s.GetLeaguePrice(ctx, p, 1, 2025); !errors.Is(err, scrapequeue.ErrPlayerNotFound) {
		t.Errorf("other league err = %v, want ErrPlayerNotFound", err)
	}
}

func testStatsReplay(t *testing.T, s league.Store) {
	ctx := context.Background()
	p := mustPlayer(t, s, 1, "Josh Allen")
	line := &league.SeasonLine{
		PlayerID:     p,
		Season:       2024,
		GamesPlayed:  17,
		PassingYards: 3731,
		PassingTDs:   28,
		RushingYards: 531,
		RushingTDs:   12,
		TotalPoints:  385.6,
	}
	usage := &league.Usage{
		PlayerID:    p,
		Season:      2024,
		TotalPoints: 385.6,
		Snaps:       &league.SnapUsage{GamesPlayed: 17, Snaps: 1050, PPG: 22.68, PPS: 0.3672, H1Snaps: 540, H1Games: 9, H2Snaps: 510, H2Games: 8},
	}

	var once *league.PlayerStats
	for i := range 2 {
		if err := s.UpsertSeasonLines(ctx, []*league.SeasonLine{line}); err != nil {
			t.Fatalf("UpsertSeasonLines: %v", err)
		}
		if err := s.UpsertUsage(ctx, usage); err != nil {
			t.Fatalf("UpsertUsage: %v", err)
		}
		got, err := s.GetPlayerStats(ctx, p, 2024)
		if err != nil {
			t.Fatalf("GetPlayerStats: %v", err)
		}
		got.UpdatedAt = time.Time{}
		if i == 0 {
			once = got
			continue
		}
		if *got != *once {
			t.Errorf("replay changed stats:\n once  %+v\n twice %+v", once, got)
		}
	}
	if once.Snaps != 1050 || once.PassingTDs != 28 || once.H2Games != 8 {
		t.Errorf("stats = %+v", once)
	}
}

func testUsageWithoutSnaps(t *testing.T, s league.Store) {
	ctx := context.Background()
	p := mustPlayer(t, s, 1, "Travis Kelce")
	if err := s.UpsertUsage(ctx, &league.Usage{
		PlayerID: p, Season: 2024, TotalPoints: 200,
		Snaps: &league.SnapUsage{GamesPlayed: 16, Snaps: 900, PPG: 12.5, PPS: 0.2222},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertUsage(ctx, &league.Usage{PlayerID: p, Season: 2024, TotalPoints: 210}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetPlayerStats(ctx, p, 2024)
	if err != nil {
		t.Fatalf("GetPlayerStats: %v", err)
	}
	if got.TotalPoints != 210 {
		t.Errorf("total points = %v, want 210", got.TotalPoints)
	}
	if got.GamesPlayed != 16 || got.Snaps != 900 || got.PPS != 0.2222 {
		t.Errorf("snap usage overwritten: %+v", got)
	}
	if _, err := s.GetPlayerStats(ctx, p, 2023); !errors.Is(err, scrapequeue.ErrPlayerNotFound) {
		t.Errorf("missing season err = %v, want ErrPlayerNotFound", err)
	}
}

func testTransactions(t *testing.T, s league.Store) {
	ctx := context.Background()
	p := mustPlayer(t, s, 1, "Bijan Robinson")
	salary := 25
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	txs := []*league.Transaction{
		{PlayerID: p, LeagueID: 309, Season: 2025, Type: "Auction", TeamName: "A", Salary: &salary, Date: &date, RawDescription: "Auction $25"},
		{PlayerID: p, LeagueID: 309, Season: 2025, Type: "Auction", TeamName: "A", Salary: &salary, Date: &date, RawDescription: "Auction $25"},
		{PlayerID: p, LeagueID: 309, Season: 2025, Type: "Cut", RawDescription: "Cut"},
		{PlayerID: p, LeagueID: 309, Season: 2025, Type: "Cut", RawDescription: "Cut"},
		{PlayerID: p, LeagueID: 1, Season: 2025, Type: "Cut", RawDescription: "Cut"},
	}
	for _, tx := range txs {
		if err := s.UpsertTransaction(ctx, tx); err != nil {
			t.Fatalf("UpsertTransaction: %v", err)
		}
	}

	got, err := s.ListTransactions(ctx, p, 309)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListTransactions returned %d, want 2", len(got))
	}
	if got[0].Type != "Auction" || got[0].Salary == nil || *got[0].Salary != 25 || got[0].Date == nil || !got[0].Date.Equal(date) {
		t.Errorf("auction row = %+v", got[0])
	}
	if got[1].Type != "Cut" || got[1].Salary != nil || got[1].Date != nil {
		t.Errorf("cut row = %+v", got[1])
	}
}

func testSalaryHistory(t *testing.T, s league.Store) {
	ctx := context.Background()
	p := mustPlayer(t, s, 1, "CeeDee Lamb")
	at := time.Now().UTC().Truncate(time.Millisecond)

	steps := []struct {
		price int
		team  string
		wrote bool
	}{
		{40, "A", true},
		{40, "A", false},
		{42, "A", true},
		{42, "B", true},
		{42, "B", false},
	}
	for i, step := range steps {
		wrote, err := s.RecordSalary(ctx, &league.SalarySnapshot{
			PlayerID: p, LeagueID: 309, Season: 2025,
			Price: step.price, TeamName: step.team,
			ScrapedAt: at.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("RecordSalary: %v", err)
		}
		if wrote != step.wrote {
			t.Errorf("step %d: wrote = %v, want %v", i, wrote, step.wrote)
		}
	}

	history, err := s.ListSalaryHistory(ctx, p, 309, 2025)
	if err != nil {
		t.Fatalf("ListSalaryHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history has %d rows, want 3", len(history))
	}
	if history[0].Price != 40 || history[2].TeamName != "B" {
		t.Errorf("history = %+v %+v %+v", history[0], history[1], history[2])
	}
	if other, _ := s.ListSalaryHistory(ctx, p, 309, 2024); len(other) != 0 {
		t.Errorf("2024 history has %d rows", len(other))
	}
}

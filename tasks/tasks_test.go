package tasks_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alex-monroe/scrapequeue/browser/browsertest"
	"github.com/alex-monroe/scrapequeue/league"
	"github.com/alex-monroe/scrapequeue/nflverse"
	"github.com/alex-monroe/scrapequeue/ottoneu"
	"github.com/alex-monroe/scrapequeue/store/memory"
	"github.com/alex-monroe/scrapequeue/task"
	"github.com/alex-monroe/scrapequeue/tasks"
)

const site = "http://ottoneu.test"

const searchPage = `<html><body>
<a class="top_players">QB</a><a class="top_players">RB</a>
<div class="table-container"><table><tbody>
<tr>
  <td>1</td>
  <td><a href="/football/309/player_card/nfl/100">Josh Allen</a> <span class="smaller">BUF QB</span></td>
  <td><a href="/football/309/team/1">Wings</a></td>
  <td>$48</td><td></td><td></td><td></td><td></td><td>340.5</td>
</tr>
<tr>
  <td>2</td>
  <td><a href="/football/309/player_card/nfl/200">Cam Ward</a> <span class="smaller">Miami QB</span></td>
  <td>FA</td>
  <td>$0</td><td></td><td></td><td></td><td></td><td>0</td>
</tr>
</tbody></table></div>
</body></html>`

const cardPage = `<html><body><table>
<thead><tr><th>Date</th><th>Team</th><th>Transaction Type</th><th>Salary</th></tr></thead>
<tbody>
<tr><td>Jan 5, 2025</td><td>Wings</td><td>Auction</td><td>$52</td></tr>
<tr><td>Aug 1, 2024</td><td>Wings</td><td>Add</td><td>$48</td></tr>
</tbody></table></body></html>`

type fakeStats struct {
	snaps   []nflverse.SnapTotal
	seasons []nflverse.PlayerSeason
	err     error
}

func (f *fakeStats) SnapCounts(context.Context, int) ([]nflverse.SnapTotal, error) {
	return f.snaps, f.err
}

func (f *fakeStats) SeasonStats(context.Context, []int) ([]nflverse.PlayerSeason, error) {
	return f.seasons, f.err
}

type fixture struct {
	store    *memory.Store
	stats    *fakeStats
	launcher *browsertest.Launcher
	reg      *task.Registry
	env      *task.Env
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		stats: &fakeStats{},
		launcher: &browsertest.Launcher{Pages: map[string]string{
			ottoneu.SearchURL(site, 309):               searchPage,
			site + ottoneu.PlayerCardHref(309, 100):    cardPage,
			site + "/football/309/player_card/nfl/200": `<html><body><p>no history</p></body></html>`,
		}},
		reg: task.NewRegistry(),
	}
	scraper := ottoneu.NewScraper(ottoneu.WithBaseURL(site), ottoneu.WithSettle(0))
	tasks.New(f.store, f.stats, scraper, tasks.WithDefaultSeasons([]int{2024})).Register(f.reg)

	inst, err := f.launcher.Launch(context.Background())
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	t.Cleanup(func() { _ = inst.Close() })

	f.env = &task.Env{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Cache:   task.NewRunCache(),
		Browser: inst,
	}
	return f
}

func (f *fixture) run(t *testing.T, tt task.Type, params any) (*task.Result, error) {
	t.Helper()
	child, err := task.Child(tt, params, 0)
	if err != nil {
		t.Fatalf("encode params: %v", err)
	}
	e, err := f.reg.Get(tt)
	if err != nil {
		t.Fatalf("Get %s: %v", tt, err)
	}
	return e.Handler(context.Background(), f.env, child.Params)
}

func TestRegisterCoversAllTypes(t *testing.T) {
	f := newFixture(t)
	if err := f.reg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, tt := range []task.Type{task.ScrapeRoster, task.ScrapePlayerCard} {
		if !f.reg.NeedsBrowser(tt) {
			t.Errorf("%s should need a browser", tt)
		}
	}
	for _, tt := range []task.Type{task.PullNFLStats, task.PullPlayerStats} {
		if f.reg.NeedsBrowser(tt) {
			t.Errorf("%s should not need a browser", tt)
		}
	}
}

func TestPullNFLStats(t *testing.T) {
	f := newFixture(t)
	f.stats.snaps = []nflverse.SnapTotal{{Player: "Josh Allen", Position: "QB", Team: "BUF", TotalSnaps: 1000, GamesPlayed: 17}}

	res, err := f.run(t, task.PullNFLStats, tasks.NFLStatsParams{Season: 2024})
	if err != nil {
		t.Fatalf("PullNFLStats: %v", err)
	}
	if res.CacheKey != "nfl_stats:2024" {
		t.Errorf("cache key = %q", res.CacheKey)
	}
	if got, ok := res.Data.([]nflverse.SnapTotal); !ok || len(got) != 1 {
		t.Errorf("data = %#v", res.Data)
	}

	f.stats.err = errors.New("boom")
	if _, err := f.run(t, task.PullNFLStats, tasks.NFLStatsParams{Season: 2024}); err == nil || task.IsPermanent(err) {
		t.Errorf("fetch error = %v, want retryable error", err)
	}
	if _, err := f.run(t, task.PullNFLStats, tasks.NFLStatsParams{}); !task.IsPermanent(err) {
		t.Errorf("missing season err = %v, want permanent", err)
	}
}

func TestPullPlayerStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	allen, _ := f.store.UpsertPlayer(ctx, &league.Player{OttoneuID: 100, Name: "Josh Allen", Position: "QB"})
	moore, _ := f.store.UpsertPlayer(ctx, &league.Player{OttoneuID: 300, Name: "D.J. Moore", Position: "WR"})

	f.stats.seasons = []nflverse.PlayerSeason{
		{Name: "Josh Allen", SeasonLine: league.SeasonLine{Season: 2024, GamesPlayed: 17, PassingYards: 4000, TotalPoints: 160}},
		{Name: "DJ Moore", SeasonLine: league.SeasonLine{Season: 2024, GamesPlayed: 17, Receptions: 98, TotalPoints: 49}},
		{Name: "Nobody Known", SeasonLine: league.SeasonLine{Season: 2024}},
	}

	for range 2 {
		res, err := f.run(t, task.PullPlayerStats, tasks.PlayerStatsParams{})
		if err != nil {
			t.Fatalf("PullPlayerStats: %v", err)
		}
		if got := res.Data.(tasks.PlayerStatsResult); got.Upserted != 2 || got.Unmatched != 1 {
			t.Errorf("result = %+v, want 2 upserted 1 unmatched", got)
		}
	}

	st, err := f.store.GetPlayerStats(ctx, allen, 2024)
	if err != nil {
		t.Fatalf("GetPlayerStats: %v", err)
	}
	if st.PassingYards != 4000 || st.TotalPoints != 160 {
		t.Errorf("allen stats = %+v", st.SeasonLine)
	}
	if st, err := f.store.GetPlayerStats(ctx, moore, 2024); err != nil || st.Receptions != 98 {
		t.Errorf("moore stats = %+v, %v", st, err)
	}
}

func TestScrapeRoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.Cache.Put(tasks.NFLStatsKey(2024), []nflverse.SnapTotal{
		{Player: "Josh Allen", Position: "QB", Team: "BUF", TotalSnaps: 1000, GamesPlayed: 17, H1Snaps: 500, H1Games: 8, H2Snaps: 500, H2Games: 9},
	})
	params := tasks.RosterParams{Position: "QB", Season: 2024, LeagueID: 309}

	res, err := f.run(t, task.ScrapeRoster, params)
	if err != nil {
		t.Fatalf("ScrapeRoster: %v", err)
	}
	if got := res.Data.(tasks.RosterResult); got.Processed != 2 || got.Matched != 1 {
		t.Errorf("result = %+v", got)
	}
	if len(res.Children) != 2 {
		t.Fatalf("got %d children, want 2", len(res.Children))
	}
	for _, c := range res.Children {
		if c.Type != task.ScrapePlayerCard || c.Priority != -1 {
			t.Errorf("child = %s priority %d", c.Type, c.Priority)
		}
	}

	players, _ := f.store.ListPlayers(ctx)
	if len(players) != 2 {
		t.Fatalf("stored %d players, want 2", len(players))
	}
	byName := map[string]*league.Player{}
	for _, p := range players {
		byName[p.Name] = p
	}
	allen, ward := byName["Josh Allen"], byName["Cam Ward"]
	if allen.IsCollege || !ward.IsCollege || ward.NFLTeam != "Miami" {
		t.Errorf("college flags: allen %+v ward %+v", allen, ward)
	}

	price, err := f.store.GetLeaguePrice(ctx, allen.ID, 309, 2024)
	if err != nil || price.Price != 48 || price.TeamName != "Wings" {
		t.Errorf("allen price = %+v, %v", price, err)
	}

	st, err := f.store.GetPlayerStats(ctx, allen.ID, 2024)
	if err != nil {
		t.Fatalf("GetPlayerStats: %v", err)
	}
	if st.TotalPoints != 340.5 || st.GamesPlayed != 17 || st.Snaps != 1000 || st.PPG != 20.03 || st.PPS != 0.3405 {
		t.Errorf("allen usage = %+v", st)
	}
	if st.H1Games != 8 || st.H2Snaps != 500 {
		t.Errorf("allen halves = %+v", st)
	}
	if st, err := f.store.GetPlayerStats(ctx, ward.ID, 2024); err != nil || st.Snaps != 0 {
		t.Errorf("ward usage = %+v, %v", st, err)
	}

	// Replaying the job converges on the same rows.
	again, err := f.run(t, task.ScrapeRoster, params)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if players2, _ := f.store.ListPlayers(ctx); len(players2) != 2 {
		t.Errorf("replay stored %d players", len(players2))
	}
	if string(again.Children[0].Params) != string(res.Children[0].Params) {
		t.Errorf("replay child params differ:\n%s\n%s", again.Children[0].Params, res.Children[0].Params)
	}
	st2, _ := f.store.GetPlayerStats(ctx, allen.ID, 2024)
	st2.UpdatedAt = st.UpdatedAt
	if *st2 != *st {
		t.Errorf("replay changed stats:\n%+v\n%+v", st, st2)
	}
}

func TestScrapeRoster_NoCacheKeepsSnaps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	allenID, _ := f.store.UpsertPlayer(ctx, &league.Player{OttoneuID: 100, Name: "Josh Allen"})
	_ = f.store.UpsertUsage(ctx, &league.Usage{PlayerID: allenID, Season: 2024, Snaps: &league.SnapUsage{GamesPlayed: 17, Snaps: 1000}})

	if _, err := f.run(t, task.ScrapeRoster, tasks.RosterParams{Position: "QB", Season: 2024, LeagueID: 309}); err != nil {
		t.Fatalf("ScrapeRoster: %v", err)
	}
	st, _ := f.store.GetPlayerStats(ctx, allenID, 2024)
	if st.Snaps != 1000 || st.GamesPlayed != 17 || st.TotalPoints != 340.5 {
		t.Errorf("stats = %+v, want snaps kept and points updated", st)
	}
}

func TestScrapeRoster_Errors(t *testing.T) {
	f := newFixture(t)

	if _, err := f.run(t, task.ScrapeRoster, tasks.RosterParams{Season: 2024, LeagueID: 309}); !task.IsPermanent(err) {
		t.Errorf("missing position err = %v, want permanent", err)
	}
	_, err := f.run(t, task.ScrapeRoster, tasks.RosterParams{Position: "K", Season: 2024, LeagueID: 309})
	if !errors.Is(err, ottoneu.ErrPositionNotFound) || task.IsPermanent(err) {
		t.Errorf("unknown filter err = %v", err)
	}
	if _, err := f.run(t, task.ScrapeRoster, tasks.RosterParams{Position: "QB", Season: 2024, LeagueID: 1}); err == nil {
		t.Error("expected navigation error for an unknown league page")
	}
	if f.launcher.Tabs() != 2 {
		t.Errorf("opened %d tabs, want one per browser call", f.launcher.Tabs())
	}
}

func TestScrapePlayerCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	playerID, _ := f.store.UpsertPlayer(ctx, &league.Player{OttoneuID: 100, Name: "Josh Allen"})

	params := tasks.PlayerCardParams{
		OttoneuID:  100,
		PlayerName: "Josh Allen",
		PlayerUUID: playerID,
		Season:     2025,
		LeagueID:   309,
	}

	res, err := f.run(t, task.ScrapePlayerCard, params)
	if err != nil {
		t.Fatalf("ScrapePlayerCard: %v", err)
	}
	got := res.Data.(tasks.CardResult)
	if got.Transactions != 2 || got.Price == nil || *got.Price != 52 || !got.SalaryLogged {
		t.Errorf("result = %+v", got)
	}
	if visited := f.launcher.Visited(); len(visited) != 1 || visited[0] != site+"/football/309/player_card/nfl/100" {
		t.Errorf("visited %v", visited)
	}

	price, err := f.store.GetLeaguePrice(ctx, playerID, 309, 2025)
	if err != nil || price.Price != 52 || price.TeamName != ottoneu.FreeAgent {
		t.Errorf("price = %+v, %v", price, err)
	}

	// A replay adds neither transactions nor salary rows.
	res, err = f.run(t, task.ScrapePlayerCard, params)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Data.(tasks.CardResult).SalaryLogged {
		t.Error("replay logged an unchanged salary")
	}
	txs, _ := f.store.ListTransactions(ctx, playerID, 309)
	if len(txs) != 2 {
		t.Errorf("stored %d transactions, want 2", len(txs))
	}
	history, _ := f.store.ListSalaryHistory(ctx, playerID, 309, 2025)
	if len(history) != 1 {
		t.Errorf("salary history has %d rows, want 1", len(history))
	}

	// A new fantasy team is a change.
	params.FantasyTeam = "Wings"
	res, err = f.run(t, task.ScrapePlayerCard, params)
	if err != nil {
		t.Fatalf("team change: %v", err)
	}
	if !res.Data.(tasks.CardResult).SalaryLogged {
		t.Error("team change was not logged")
	}
}

func TestScrapePlayerCard_NoPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	playerID, _ := f.store.UpsertPlayer(ctx, &league.Player{OttoneuID: 200, Name: "Cam Ward"})

	res, err := f.run(t, task.ScrapePlayerCard, tasks.PlayerCardParams{
		OttoneuID: 200, PlayerUUID: playerID, Season: 2025, LeagueID: 309,
		Href: "/football/309/player_card/nfl/200",
	})
	if err != nil {
		t.Fatalf("ScrapePlayerCard: %v", err)
	}
	if got := res.Data.(tasks.CardResult); got.Transactions != 0 || got.Price != nil {
		t.Errorf("result = %+v", got)
	}
	if _, err := f.store.GetLeaguePrice(ctx, playerID, 309, 2025); err == nil {
		t.Error("price stored without a card price")
	}
}

func TestScrapePlayerCard_InvalidParams(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, task.ScrapePlayerCard, tasks.PlayerCardParams{OttoneuID: 1, Season: 2025, LeagueID: 309})
	if !errors.Is(err, task.ErrInvalidParams) {
		t.Errorf("err = %v, want ErrInvalidParams", err)
	}
	if f.launcher.Tabs() != 0 {
		t.Error("opened a tab for invalid params")
	}
}

package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/client"
	"github.com/alex-monroe/scrapequeue/id"
	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/store/memory"
	"github.com/alex-monroe/scrapequeue/task"
	"github.com/alex-monroe/scrapequeue/tasks"
)

func newClient(opts ...client.Option) (*client.Client, *memory.Store) {
	s := memory.New()
	base := []client.Option{
		client.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		client.WithSeason(2025),
		client.WithLeagueID(309),
		client.WithPositions("QB", "RB", "WR", "TE", "K"),
		client.WithCollegePositions("QB", "RB", "WR", "TE"),
		client.WithHistoricalSeasons(2022, 2023, 2024),
	}
	return client.New(s, append(base, opts...)...), s
}

func TestBatch(t *testing.T) {
	c, s := newClient()
	ctx := context.Background()

	b, err := c.Batch(ctx, client.BatchRequest{})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if b.ID == uuid.Nil {
		t.Fatal("batch id is nil")
	}
	// head + player stats + 5 pro + 4 college
	if len(b.Jobs) != 11 {
		t.Fatalf("jobs = %d, want 11", len(b.Jobs))
	}
	if b.Head.TaskType != task.PullNFLStats || b.Head.Priority != 10 || b.Head.HasDependency() {
		t.Errorf("head = %s priority %d dep %v", b.Head.TaskType, b.Head.Priority, b.Head.DependsOn)
	}

	var pro, college int
	for _, j := range b.Jobs {
		if j.BatchID != b.ID {
			t.Errorf("job %s batch = %s, want %s", j.ID, j.BatchID, b.ID)
		}
		switch j.TaskType {
		case task.PullPlayerStats:
			var p tasks.PlayerStatsParams
			if err := json.Unmarshal(j.Params, &p); err != nil {
				t.Fatal(err)
			}
			if len(p.Seasons) != 1 || p.Seasons[0] != 2025 {
				t.Errorf("player stats seasons = %v", p.Seasons)
			}
			if j.HasDependency() || j.Priority != 10 {
				t.Errorf("player stats dep %v priority %d", j.DependsOn, j.Priority)
			}
		case task.ScrapeRoster:
			if j.DependsOn != b.Head.ID {
				t.Errorf("roster depends on %s, want head %s", j.DependsOn, b.Head.ID)
			}
			var p tasks.RosterParams
			if err := json.Unmarshal(j.Params, &p); err != nil {
				t.Fatal(err)
			}
			if p.Season != 2025 || p.LeagueID != 309 {
				t.Errorf("roster params = %+v", p)
			}
			if p.Level == tasks.LevelCollege {
				college++
				if j.Priority != 3 {
					t.Errorf("college priority = %d, want 3", j.Priority)
				}
			} else {
				pro++
				if j.Priority != 5 {
					t.Errorf("pro priority = %d, want 5", j.Priority)
				}
			}
		}
	}
	if pro != 5 || college != 4 {
		t.Errorf("pro = %d college = %d, want 5 and 4", pro, college)
	}

	n, err := s.CountJobs(ctx, job.CountOpts{BatchID: b.ID, Status: job.StatusPending})
	if err != nil {
		t.Fatal(err)
	}
	if n != 11 {
		t.Errorf("stored pending = %d, want 11", n)
	}
}

func TestBatch_Overrides(t *testing.T) {
	c, _ := newClient()

	b, err := c.Batch(context.Background(), client.BatchRequest{
		Season:           2024,
		LeagueID:         12,
		Positions:        []string{"QB"},
		CollegePositions: []string{},
	})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(b.Jobs) != 3 {
		t.Fatalf("jobs = %d, want 3", len(b.Jobs))
	}
	var p tasks.RosterParams
	if err := json.Unmarshal(b.Jobs[2].Params, &p); err != nil {
		t.Fatal(err)
	}
	if p.Position != "QB" || p.Season != 2024 || p.LeagueID != 12 {
		t.Errorf("roster params = %+v", p)
	}
}

func TestBatch_DistinctIDs(t *testing.T) {
	c, _ := newClient()
	ctx := context.Background()

	a, err := c.Batch(ctx, client.BatchRequest{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Batch(ctx, client.BatchRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Error("two batches share an id")
	}
}

func TestEnqueue(t *testing.T) {
	c, s := newClient(client.WithMaxAttempts(5), client.WithTimeout(time.Minute))
	ctx := context.Background()

	j, err := c.Enqueue(ctx, task.PullNFLStats, tasks.NFLStatsParams{Season: 2023}, job.WithPriority(7))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if j.Priority != 7 || j.MaxAttempts != 5 || j.Timeout != time.Minute {
		t.Errorf("job = priority %d max %d timeout %s", j.Priority, j.MaxAttempts, j.Timeout)
	}
	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != job.StatusPending {
		t.Errorf("status = %s", got.Status)
	}

	j, err = c.Enqueue(ctx, task.PullNFLStats, json.RawMessage(`{"season":2022}`), job.WithMaxAttempts(1))
	if err != nil {
		t.Fatalf("Enqueue raw: %v", err)
	}
	if j.MaxAttempts != 1 || string(j.Params) != `{"season":2022}` {
		t.Errorf("raw job = max %d params %s", j.MaxAttempts, j.Params)
	}
}

func TestEnqueue_Errors(t *testing.T) {
	c, _ := newClient()
	ctx := context.Background()

	_, err := c.Enqueue(ctx, task.Type("send_email"), nil)
	if !errors.Is(err, scrapequeue.ErrUnknownTaskType) {
		t.Errorf("unknown type err = %v", err)
	}
	if _, err := c.Enqueue(ctx, task.PullNFLStats, json.RawMessage(`{`)); err == nil {
		t.Error("invalid raw params accepted")
	}
}

func TestEnqueueRoster(t *testing.T) {
	c, _ := newClient()
	ctx := context.Background()

	tests := []struct {
		level  string
		levels []string
	}{
		{"", []string{tasks.LevelPro}},
		{tasks.LevelPro, []string{tasks.LevelPro}},
		{tasks.LevelCollege, []string{tasks.LevelCollege}},
		{client.LevelBoth, []string{tasks.LevelPro, tasks.LevelCollege}},
	}
	for _, tt := range tests {
		jobs, err := c.EnqueueRoster(ctx, "WR", tt.level)
		if err != nil {
			t.Fatalf("level %q: %v", tt.level, err)
		}
		if len(jobs) != len(tt.levels) {
			t.Fatalf("level %q: jobs = %d, want %d", tt.level, len(jobs), len(tt.levels))
		}
		for i, j := range jobs {
			var p tasks.RosterParams
			if err := json.Unmarshal(j.Params, &p); err != nil {
				t.Fatal(err)
			}
			if p.Level != tt.levels[i] || p.Position != "WR" || j.Priority != client.PriorityRoster {
				t.Errorf("level %q job %d = %+v priority %d", tt.level, i, p, j.Priority)
			}
			if j.HasDependency() {
				t.Errorf("single roster job has a dependency")
			}
		}
	}

	if _, err := c.EnqueueRoster(ctx, "WR", "semi-pro"); err == nil {
		t.Error("unknown level accepted")
	}
	if _, err := c.EnqueueRoster(ctx, "", tasks.LevelPro); err == nil {
		t.Error("empty position accepted")
	}
}

func TestEnqueuePlayerCard(t *testing.T) {
	c, _ := newClient()
	ctx := context.Background()
	player := uuid.New()

	j, err := c.EnqueuePlayerCard(ctx, client.PlayerCard{OttoneuID: 4242, Name: "Justin Jefferson", PlayerUUID: player})
	if err != nil {
		t.Fatalf("EnqueuePlayerCard: %v", err)
	}
	var p tasks.PlayerCardParams
	if err := json.Unmarshal(j.Params, &p); err != nil {
		t.Fatal(err)
	}
	if p.Href != "/football/309/player_card/nfl/4242" {
		t.Errorf("href = %q", p.Href)
	}
	if p.PlayerUUID != player || p.Season != 2025 || p.LeagueID != 309 || j.Priority != client.PriorityCard {
		t.Errorf("params = %+v priority %d", p, j.Priority)
	}

	if _, err := c.EnqueuePlayerCard(ctx, client.PlayerCard{OttoneuID: 1}); err == nil {
		t.Error("missing uuid accepted")
	}
}

func TestEnqueueStats(t *testing.T) {
	c, _ := newClient()
	ctx := context.Background()

	j, err := c.EnqueueNFLStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ns tasks.NFLStatsParams
	if err := json.Unmarshal(j.Params, &ns); err != nil {
		t.Fatal(err)
	}
	if ns.Season != 2025 || j.Priority != client.PriorityStats {
		t.Errorf("nfl stats = %+v priority %d", ns, j.Priority)
	}

	j, err = c.EnqueuePlayerStats(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	var ps tasks.PlayerStatsParams
	if err := json.Unmarshal(j.Params, &ps); err != nil {
		t.Fatal(err)
	}
	if len(ps.Seasons) != 3 || ps.Seasons[0] != 2022 {
		t.Errorf("historical seasons = %v", ps.Seasons)
	}

	j, err = c.EnqueuePlayerStats(ctx, []int{2021})
	if err != nil {
		t.Fatal(err)
	}
	ps = tasks.PlayerStatsParams{}
	if err := json.Unmarshal(j.Params, &ps); err != nil {
		t.Fatal(err)
	}
	if len(ps.Seasons) != 1 || ps.Seasons[0] != 2021 {
		t.Errorf("explicit seasons = %v", ps.Seasons)
	}
}

func TestStatus(t *testing.T) {
	c, s := newClient()
	ctx := context.Background()

	r, err := c.Status(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := client.WriteStatus(&buf, r); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "No jobs found." {
		t.Errorf("empty output = %q", buf.String())
	}

	if _, err := c.EnqueueRoster(ctx, "QB", client.LevelBoth); err != nil {
		t.Fatal(err)
	}
	card, err := c.EnqueuePlayerCard(ctx, client.PlayerCard{OttoneuID: 7, Name: "Christian McCaffrey", PlayerUUID: uuid.New()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClaimJob(ctx, card.ID, id.NewWorkerID()); err != nil {
		t.Fatal(err)
	}
	if err := s.FailJob(ctx, card.ID, "navigate: net::ERR_CONNECTION_REFUSED at http://ottoneu.test"); err != nil {
		t.Fatal(err)
	}

	r, err = c.Status(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(r.Jobs))
	}
	if r.Jobs[0].ID != card.ID {
		t.Errorf("newest job = %s, want %s", r.Jobs[0].ID, card.ID)
	}
	if r.Recent[job.StatusFailed] != 1 || r.Recent[job.StatusPending] != 1 {
		t.Errorf("recent = %v", r.Recent)
	}
	if r.Totals[job.StatusPending] != 2 || r.Totals[job.StatusFailed] != 1 {
		t.Errorf("totals = %v", r.Totals)
	}

	buf.Reset()
	if err := client.WriteStatus(&buf, r); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Recent 2 jobs: 1 pending, 1 failed",
		"scrape_player_card(Christian Mc..)",
		"scrape_roster(QB,col)",
		"1/3",
		"navigate: net::ERR_CONNECTION_",
		card.ID.Short(),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "REFUSED") {
		t.Errorf("error not truncated:\n%s", out)
	}
}

func TestLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ    task.Type
		params string
		want   string
	}{
		{task.ScrapeRoster, `{"position":"RB"}`, "scrape_roster(RB)"},
		{task.ScrapeRoster, `{"position":"RB","level":"college"}`, "scrape_roster(RB,col)"},
		{task.ScrapeRoster, `{}`, "scrape_roster"},
		{task.ScrapePlayerCard, `{"player_name":"Ja'Marr Chase"}`, "scrape_player_card(Ja'Marr Chas..)"},
		{task.ScrapePlayerCard, `{"player_name":"Josh Allen"}`, "scrape_player_card(Josh Allen)"},
		{task.PullNFLStats, `{"season":2025}`, "pull_nfl_stats"},
		{task.ScrapeRoster, `not json`, "scrape_roster"},
	}
	for _, tt := range tests {
		j := job.New(tt.typ, json.RawMessage(tt.params))
		if got := client.Label(j); got != tt.want {
			t.Errorf("Label(%s %s) = %q, want %q", tt.typ, tt.params, got, tt.want)
		}
	}
}

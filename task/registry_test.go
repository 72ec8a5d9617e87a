package task_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/task"
)

type rosterParams struct {
	task.Versioned
	Position string `json:"position"`
	Season   int    `json:"season"`
}

func noop[P any](_ context.Context, _ *task.Env, _ P) (*task.Result, error) {
	return &task.Result{}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := task.NewRegistry()

	var got rosterParams
	task.Register(r, task.NewDefinition(task.ScrapeRoster, true,
		func(_ context.Context, _ *task.Env, p rosterParams) (*task.Result, error) {
			got = p
			return &task.Result{}, nil
		}))

	e, err := r.Get(task.ScrapeRoster)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !e.NeedsBrowser || !r.NeedsBrowser(task.ScrapeRoster) {
		t.Error("expected scrape_roster to need a browser")
	}

	raw, _ := json.Marshal(rosterParams{Position: "QB", Season: 2025})
	if _, err := e.Handler(context.Background(), &task.Env{}, raw); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got.Position != "QB" || got.Season != 2025 {
		t.Errorf("decoded %+v", got)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := task.NewRegistry()
	if _, err := r.Get(task.PullNFLStats); !errors.Is(err, scrapequeue.ErrUnknownTaskType) {
		t.Fatalf("err = %v, want ErrUnknownTaskType", err)
	}
	if r.NeedsBrowser(task.PullNFLStats) {
		t.Error("unregistered type reported as needing a browser")
	}
}

func TestRegistry_InvalidJSON(t *testing.T) {
	r := task.NewRegistry()
	task.Register(r, task.NewDefinition(task.ScrapeRoster, true,
		func(_ context.Context, _ *task.Env, _ rosterParams) (*task.Result, error) {
			t.Fatal("handler should not be called with invalid JSON")
			return nil, nil
		}))

	e, _ := r.Get(task.ScrapeRoster)
	_, err := e.Handler(context.Background(), &task.Env{}, json.RawMessage(`{not json`))
	if !errors.Is(err, task.ErrInvalidParams) || !task.IsPermanent(err) {
		t.Fatalf("err = %v, want permanent ErrInvalidParams", err)
	}
}

func TestRegistry_Version(t *testing.T) {
	r := task.NewRegistry()
	task.Register(r, task.NewDefinition(task.ScrapeRoster, true, noop[rosterParams], task.WithMaxVersion(2)))
	e, _ := r.Get(task.ScrapeRoster)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"missing version", `{"position":"QB"}`, false},
		{"v1", `{"v":1,"position":"QB"}`, false},
		{"v2", `{"v":2,"position":"QB"}`, false},
		{"v3", `{"v":3,"position":"QB"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Handler(context.Background(), &task.Env{}, json.RawMessage(tt.raw))
			if tt.wantErr != errors.Is(err, task.ErrUnsupportedVersion) {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_Validate(t *testing.T) {
	r := task.NewRegistry()
	task.Register(r, task.NewDefinition(task.PullNFLStats, false, noop[struct{}]))
	task.Register(r, task.NewDefinition(task.ScrapeRoster, true, noop[rosterParams]))

	err := r.Validate()
	if !errors.Is(err, scrapequeue.ErrUnknownTaskType) {
		t.Fatalf("err = %v, want ErrUnknownTaskType", err)
	}
	for _, missing := range []task.Type{task.PullPlayerStats, task.ScrapePlayerCard} {
		if !strings.Contains(err.Error(), string(missing)) {
			t.Errorf("error %q does not name %s", err, missing)
		}
	}

	task.Register(r, task.NewDefinition(task.PullPlayerStats, false, noop[struct{}]))
	task.Register(r, task.NewDefinition(task.ScrapePlayerCard, true, noop[struct{}]))
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate with all types: %v", err)
	}
	if got := len(r.Types()); got != len(task.Types) {
		t.Errorf("Types() has %d entries, want %d", got, len(task.Types))
	}
}

func TestParseType(t *testing.T) {
	for _, tt := range task.Types {
		got, err := task.ParseType(string(tt))
		if err != nil || got != tt {
			t.Errorf("ParseType(%q) = %q, %v", tt, got, err)
		}
	}
	if _, err := task.ParseType("scrape_everything"); !errors.Is(err, scrapequeue.ErrUnknownTaskType) {
		t.Errorf("unknown type err = %v", err)
	}
}

func TestRunCache(t *testing.T) {
	c := task.NewRunCache()
	c.Put("nfl_stats:2025", []int{1, 2, 3})

	got, ok := task.Lookup[[]int](c, "nfl_stats:2025")
	if !ok || len(got) != 3 {
		t.Fatalf("Lookup = %v, %v", got, ok)
	}
	if _, ok := task.Lookup[string](c, "nfl_stats:2025"); ok {
		t.Error("Lookup with wrong type should miss")
	}
	if _, ok := task.Lookup[[]int](c, "nfl_stats:2024"); ok {
		t.Error("Lookup of missing key should miss")
	}
	if _, ok := task.Lookup[[]int](nil, "x"); ok {
		t.Error("nil cache should miss")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

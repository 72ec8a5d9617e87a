package throttle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/task"
	"github.com/alex-monroe/scrapequeue/throttle"
)

func TestManager_Unconfigured(t *testing.T) {
	m := throttle.NewManager()
	release, err := m.Acquire(context.Background(), task.PullNFLStats)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()
	if m.ActiveCount(task.PullNFLStats) != 0 {
		t.Error("unconfigured type should not be counted")
	}
}

func TestManager_MaxConcurrency(t *testing.T) {
	m := throttle.NewManager(throttle.Config{Type: task.ScrapeRoster, MaxConcurrency: 2})

	r1, err := m.Acquire(context.Background(), task.ScrapeRoster)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := m.Acquire(context.Background(), task.ScrapeRoster)
	if err != nil {
		t.Fatal(err)
	}
	if m.ActiveCount(task.ScrapeRoster) != 2 {
		t.Fatalf("active = %d, want 2", m.ActiveCount(task.ScrapeRoster))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx, task.ScrapeRoster); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("third Acquire err = %v, want deadline exceeded", err)
	}

	r1()
	r1() // release is idempotent
	r3, err := m.Acquire(context.Background(), task.ScrapeRoster)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	r2()
	r3()
	if m.ActiveCount(task.ScrapeRoster) != 0 {
		t.Errorf("active = %d, want 0", m.ActiveCount(task.ScrapeRoster))
	}
}

func TestManager_RateLimit(t *testing.T) {
	m := throttle.NewManager(throttle.Config{Type: task.ScrapePlayerCard, RateLimit: 1})

	release, err := m.Acquire(context.Background(), task.ScrapePlayerCard)
	if err != nil {
		t.Fatal(err)
	}
	release()

	// The single token is spent; the next start waits about a second.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx, task.ScrapePlayerCard); err == nil {
		t.Fatal("expected rate limited Acquire to fail before its deadline")
	}
}

func TestParseConfigs(t *testing.T) {
	got, err := throttle.ParseConfigs(" scrape_player_card=0.5 , scrape_roster=0/1,")
	if err != nil {
		t.Fatalf("ParseConfigs: %v", err)
	}
	want := []throttle.Config{
		{Type: task.ScrapePlayerCard, RateLimit: 0.5},
		{Type: task.ScrapeRoster, MaxConcurrency: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("config %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	bad := []string{"scrape_roster", "scrape_roster=x", "scrape_roster=1/-1", "nope=1"}
	for _, s := range bad {
		if _, err := throttle.ParseConfigs(s); err == nil {
			t.Errorf("ParseConfigs(%q) succeeded", s)
		}
	}
	if _, err := throttle.ParseConfigs("nope=1"); !errors.Is(err, scrapequeue.ErrUnknownTaskType) {
		t.Errorf("unknown type err = %v", err)
	}
}

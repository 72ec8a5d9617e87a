package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/league"
	"github.com/alex-monroe/scrapequeue/store/storetest"
	"github.com/alex-monroe/scrapequeue/task"
)

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

func TestJobStore(t *testing.T) {
	storetest.RunJobStore(t, func(*testing.T) job.Store { return New() })
}

func TestLeagueStore(t *testing.T) {
	storetest.RunLeagueStore(t, func(*testing.T) league.Store { return New() })
}

func TestReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	j := job.New(task.PullNFLStats, json.RawMessage(`{"season":2024}`))
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	j.Priority = 99
	j.Params[2] = 'X'
	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Priority != 0 || string(got.Params) != `{"season":2024}` {
		t.Fatalf("store shares memory with caller: %+v %s", got, got.Params)
	}

	got.Status = job.StatusFailed
	again, _ := s.GetJob(ctx, j.ID)
	if again.Status != job.StatusPending {
		t.Errorf("mutating a returned job changed the store")
	}
}

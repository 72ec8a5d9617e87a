// Package storetest is the behaviour suite shared by every store backend.
// Backends call RunJobStore and RunLeagueStore from their own tests with a
// constructor that returns an empty store.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/id"
	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/task"
)

// base is a fixed instant the suite builds timestamps from, truncated so
// every backend stores it without loss.
var base = time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

// newJob builds a pending job created offset after base.
func newJob(tt task.Type, priority int, offset time.Duration, opts ...job.Option) *job.Job {
	j := job.New(tt, json.RawMessage(`{"season":2025}`), append([]job.Option{job.WithPriority(priority)}, opts...)...)
	defaultRunAt := j.RunAt.Equal(j.CreatedAt)
	j.CreatedAt = base.Add(offset)
	j.UpdatedAt = j.CreatedAt
	if defaultRunAt {
		j.RunAt = j.CreatedAt
	}
	return j
}

func mustEnqueue(t *testing.T, s job.Store, jobs ...*job.Job) {
	t.Helper()
	for _, j := range jobs {
		if err := s.EnqueueJob(context.Background(), j); err != nil {
			t.Fatalf("EnqueueJob(%s): %v", j.ID, err)
		}
	}
}

func mustClaim(t *testing.T, s job.Store, jobID id.JobID) *job.Job {
	t.Helper()
	j, err := s.ClaimJob(context.Background(), jobID, id.NewWorkerID())
	if err != nil {
		t.Fatalf("ClaimJob(%s): %v", jobID, err)
	}
	return j
}

func mustGet(t *testing.T, s job.Store, jobID id.JobID) *job.Job {
	t.Helper()
	j, err := s.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetJob(%s): %v", jobID, err)
	}
	return j
}

// RunJobStore runs the job.Store suite. newStore must return an empty
// store for every call.
func RunJobStore(t *testing.T, newStore func(t *testing.T) job.Store) {
	t.Run("EnqueueAndGet", func(t *testing.T) { testEnqueueAndGet(t, newStore(t)) })
	t.Run("ListPendingOrder", func(t *testing.T) { testListPendingOrder(t, newStore(t)) })
	t.Run("DependencyStatus", func(t *testing.T) { testDependencyStatus(t, newStore(t)) })
	t.Run("Claim", func(t *testing.T) { testClaim(t, newStore(t)) })
	t.Run("ClaimExclusive", func(t *testing.T) { testClaimExclusive(t, newStore(t)) })
	t.Run("Transitions", func(t *testing.T) { testTransitions(t, newStore(t)) })
	t.Run("TerminalIsFinal", func(t *testing.T) { testTerminalIsFinal(t, newStore(t)) })
	t.Run("ListDependents", func(t *testing.T) { testListDependents(t, newStore(t)) })
	t.Run("ListRecentAndCount", func(t *testing.T) { testListRecentAndCount(t, newStore(t)) })
	t.Run("HeartbeatAndReap", func(t *testing.T) { testHeartbeatAndReap(t, newStore(t)) })
}

func testEnqueueAndGet(t *testing.T, s job.Store) {
	ctx := context.Background()
	batch := uuid.New()
	parent := id.NewJobID()
	j := newJob(task.ScrapeRoster, 5, 0,
		job.WithBatch(batch),
		job.WithDependsOn(parent),
		job.WithTimeout(time.Minute),
		job.WithMaxAttempts(4),
	)
	mustEnqueue(t, s, j)

	got := mustGet(t, s, j.ID)
	if got.TaskType != task.ScrapeRoster || got.Status != job.StatusPending {
		t.Errorf("got type=%s status=%s", got.TaskType, got.Status)
	}
	if got.Priority != 5 || got.MaxAttempts != 4 || got.Attempts != 0 {
		t.Errorf("priority=%d attempts=%d/%d", got.Priority, got.Attempts, got.MaxAttempts)
	}
	if got.BatchID != batch || got.DependsOn != parent {
		t.Errorf("batch=%s depends_on=%s", got.BatchID, got.DependsOn)
	}
	if got.Timeout != time.Minute {
		t.Errorf("timeout = %s, want 1m", got.Timeout)
	}
	var params map[string]int
	if err := json.Unmarshal(got.Params, &params); err != nil || params["season"] != 2025 {
		t.Errorf("params = %s (%v)", got.Params, err)
	}

	if err := s.EnqueueJob(ctx, j); !errors.Is(err, scrapequeue.ErrJobAlreadyExists) {
		t.Errorf("duplicate enqueue err = %v, want ErrJobAlreadyExists", err)
	}
	if _, err := s.GetJob(ctx, id.NewJobID()); !errors.Is(err, scrapequeue.ErrJobNotFound) {
		t.Errorf("missing GetJob err = %v, want ErrJobNotFound", err)
	}
}

func testListPendingOrder(t *testing.T, s job.Store) {
	ctx := context.Background()
	low := newJob(task.ScrapePlayerCard, -1, 0)
	midOld := newJob(task.ScrapeRoster, 5, time.Second)
	midNew := newJob(task.ScrapeRoster, 5, 2*time.Second)
	high := newJob(task.PullNFLStats, 10, 3*time.Second)
	future := newJob(task.PullNFLStats, 100, 4*time.Second, job.WithRunAt(time.Now().Add(time.Hour)))
	running := newJob(task.PullNFLStats, 50, 5*time.Second)
	mustEnqueue(t, s, low, midOld, midNew, high, future, running)
	mustClaim(t, s, running.ID)

	got, err := s.ListPending(ctx, time.Now())
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	want := []id.JobID{high.ID, midOld.ID, midNew.ID, low.ID}
	if len(got) != len(want) {
		t.Fatalf("ListPending returned %d jobs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("pending[%d] = %s, want %s", i, got[i].ID, want[i])
		}
	}

	later, err := s.ListPending(ctx, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ListPending later: %v", err)
	}
	if len(later) != 5 || later[0].ID != future.ID {
		t.Errorf("future job not listed first once due: %d jobs", len(later))
	}
}

func testDependencyStatus(t *testing.T, s job.Store) {
	ctx := context.Background()
	j := newJob(task.PullNFLStats, 10, 0)
	mustEnqueue(t, s, j)

	st, err := s.DependencyStatus(ctx, j.ID)
	if err != nil || st != job.StatusPending {
		t.Fatalf("DependencyStatus = %s, %v", st, err)
	}
	mustClaim(t, s, j.ID)
	if err := s.CompleteJob(ctx, j.ID); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if st, _ := s.DependencyStatus(ctx, j.ID); st != job.StatusCompleted {
		t.Errorf("DependencyStatus = %s, want completed", st)
	}
	if _, err := s.DependencyStatus(ctx, id.NewJobID()); !errors.Is(err, scrapequeue.ErrJobNotFound) {
		t.Errorf("missing dependency err = %v, want ErrJobNotFound", err)
	}
}

func testClaim(t *testing.T, s job.Store) {
	ctx := context.Background()
	j := newJob(task.PullNFLStats, 0, 0, job.WithMaxAttempts(2))
	mustEnqueue(t, s, j)

	worker := id.NewWorkerID()
	claimed, err := s.ClaimJob(ctx, j.ID, worker)
	if err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	if claimed.Status != job.StatusRunning || claimed.Attempts != 1 || claimed.WorkerID != worker {
		t.Errorf("claimed status=%s attempts=%d worker=%s", claimed.Status, claimed.Attempts, claimed.WorkerID)
	}
	if claimed.StartedAt == nil || claimed.HeartbeatAt == nil {
		t.Error("claim should set started_at and heartbeat_at")
	}

	if _, err := s.ClaimJob(ctx, j.ID, worker); !errors.Is(err, scrapequeue.ErrClaimConflict) {
		t.Errorf("claim of running job err = %v, want ErrClaimConflict", err)
	}

	if err := s.RescheduleJob(ctx, j.ID, "first", time.Now()); err != nil {
		t.Fatalf("RescheduleJob: %v", err)
	}
	if again := mustClaim(t, s, j.ID); again.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", again.Attempts)
	}
	if err := s.RescheduleJob(ctx, j.ID, "second", time.Now()); err != nil {
		t.Fatalf("RescheduleJob: %v", err)
	}
	if _, err := s.ClaimJob(ctx, j.ID, worker); !errors.Is(err, scrapequeue.ErrClaimConflict) {
		t.Errorf("claim of exhausted job err = %v, want ErrClaimConflict", err)
	}
	if _, err := s.ClaimJob(ctx, id.NewJobID(), worker); err == nil {
		t.Error("claim of missing job should fail")
	}
}

func testClaimExclusive(t *testing.T, s job.Store) {
	j := newJob(task.ScrapeRoster, 0, 0)
	mustEnqueue(t, s, j)

	const workers = 16
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.ClaimJob(context.Background(), j.ID, id.NewWorkerID())
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, scrapequeue.ErrClaimConflict):
				conflicts.Add(1)
			default:
				t.Errorf("ClaimJob: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("%d claims succeeded, want exactly 1", wins.Load())
	}
	if conflicts.Load() != workers-1 {
		t.Errorf("%d conflicts, want %d", conflicts.Load(), workers-1)
	}
	if got := mustGet(t, s, j.ID); got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
}

func testTransitions(t *testing.T, s job.Store) {
	ctx := context.Background()
	done := newJob(task.PullNFLStats, 0, 0)
	retry := newJob(task.PullNFLStats, 0, time.Second)
	failed := newJob(task.PullNFLStats, 0, 2*time.Second)
	blocked := newJob(task.ScrapeRoster, 0, 3*time.Second)
	mustEnqueue(t, s, done, retry, failed, blocked)

	mustClaim(t, s, done.ID)
	if err := s.CompleteJob(ctx, done.ID); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if got := mustGet(t, s, done.ID); got.Status != job.StatusCompleted || got.CompletedAt == nil {
		t.Errorf("completed job status=%s completed_at=%v", got.Status, got.CompletedAt)
	}

	mustClaim(t, s, retry.ID)
	runAt := time.Now().Add(time.Minute).UTC().Truncate(time.Millisecond)
	if err := s.RescheduleJob(ctx, retry.ID, "timeout", runAt); err != nil {
		t.Fatalf("RescheduleJob: %v", err)
	}
	got := mustGet(t, s, retry.ID)
	if got.Status != job.StatusPending || got.LastError != "timeout" || got.Attempts != 1 {
		t.Errorf("rescheduled status=%s error=%q attempts=%d", got.Status, got.LastError, got.Attempts)
	}
	if !got.RunAt.Equal(runAt) {
		t.Errorf("run_at = %s, want %s", got.RunAt, runAt)
	}

	mustClaim(t, s, failed.ID)
	if err := s.FailJob(ctx, failed.ID, "boom"); err != nil {
		t.Fatalf("FailJob running: %v", err)
	}
	if got := mustGet(t, s, failed.ID); got.Status != job.StatusFailed || got.LastError != "boom" || got.CompletedAt == nil {
		t.Errorf("failed job status=%s error=%q", got.Status, got.LastError)
	}

	if err := s.FailJob(ctx, blocked.ID, "dependency x failed"); err != nil {
		t.Fatalf("FailJob pending: %v", err)
	}
	if got := mustGet(t, s, blocked.ID); got.Status != job.StatusFailed {
		t.Errorf("blocked job status=%s, want failed", got.Status)
	}

	if err := s.CompleteJob(ctx, retry.ID); !errors.Is(err, scrapequeue.ErrInvalidState) {
		t.Errorf("complete pending err = %v, want ErrInvalidState", err)
	}
	if err := s.CompleteJob(ctx, id.NewJobID()); !errors.Is(err, scrapequeue.ErrJobNotFound) {
		t.Errorf("complete missing err = %v, want ErrJobNotFound", err)
	}
}

func testTerminalIsFinal(t *testing.T, s job.Store) {
	ctx := context.Background()
	done := newJob(task.PullNFLStats, 0, 0)
	failed := newJob(task.PullNFLStats, 0, time.Second)
	mustEnqueue(t, s, done, failed)
	mustClaim(t, s, done.ID)
	if err := s.CompleteJob(ctx, done.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.FailJob(ctx, failed.ID, "x"); err != nil {
		t.Fatal(err)
	}

	for _, jobID := range []id.JobID{done.ID, failed.ID} {
		before := mustGet(t, s, jobID)
		if err := s.CompleteJob(ctx, jobID); !errors.Is(err, scrapequeue.ErrInvalidState) {
			t.Errorf("CompleteJob on terminal: %v", err)
		}
		if err := s.FailJob(ctx, jobID, "late"); !errors.Is(err, scrapequeue.ErrInvalidState) {
			t.Errorf("FailJob on terminal: %v", err)
		}
		if err := s.RescheduleJob(ctx, jobID, "late", time.Now()); !errors.Is(err, scrapequeue.ErrInvalidState) {
			t.Errorf("RescheduleJob on terminal: %v", err)
		}
		if _, err := s.ClaimJob(ctx, jobID, id.NewWorkerID()); !errors.Is(err, scrapequeue.ErrClaimConflict) {
			t.Errorf("ClaimJob on terminal: %v", err)
		}
		after := mustGet(t, s, jobID)
		if after.Status != before.Status || after.LastError != before.LastError {
			t.Errorf("terminal job changed: %s/%q -> %s/%q", before.Status, before.LastError, after.Status, after.LastError)
		}
	}
}

func testListDependents(t *testing.T, s job.Store) {
	ctx := context.Background()
	head := newJob(task.PullNFLStats, 10, 0)
	a := newJob(task.ScrapeRoster, 5, time.Second, job.WithDependsOn(head.ID))
	b := newJob(task.ScrapeRoster, 5, 2*time.Second, job.WithDependsOn(head.ID))
	other := newJob(task.ScrapeRoster, 5, 3*time.Second)
	done := newJob(task.ScrapeRoster, 5, 4*time.Second, job.WithDependsOn(head.ID))
	mustEnqueue(t, s, head, a, b, other, done)
	if err := s.FailJob(ctx, done.ID, "x"); err != nil {
		t.Fatal(err)
	}

	deps, err := s.ListDependents(ctx, head.ID)
	if err != nil {
		t.Fatalf("ListDependents: %v", err)
	}
	if len(deps) != 2 || deps[0].ID != a.ID || deps[1].ID != b.ID {
		t.Fatalf("dependents = %v, want [%s %s]", ids(deps), a.ID, b.ID)
	}
}

func testListRecentAndCount(t *testing.T, s job.Store) {
	ctx := context.Background()
	batch := uuid.New()
	var all []*job.Job
	for i := range 5 {
		all = append(all, newJob(task.ScrapePlayerCard, 0, time.Duration(i)*time.Second, job.WithBatch(batch)))
	}
	loose := newJob(task.PullNFLStats, 0, 10*time.Second)
	mustEnqueue(t, s, append(all, loose)...)
	mustClaim(t, s, all[0].ID)
	if err := s.FailJob(ctx, all[1].ID, "x"); err != nil {
		t.Fatal(err)
	}

	recent, err := s.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	want := []id.JobID{loose.ID, all[4].ID, all[3].ID}
	if len(recent) != 3 {
		t.Fatalf("ListRecent returned %d, want 3", len(recent))
	}
	for i := range want {
		if recent[i].ID != want[i] {
			t.Errorf("recent[%d] = %s, want %s", i, recent[i].ID, want[i])
		}
	}

	counts := []struct {
		opts job.CountOpts
		want int64
	}{
		{job.CountOpts{}, 6},
		{job.CountOpts{Status: job.StatusPending}, 4},
		{job.CountOpts{Status: job.StatusRunning}, 1},
		{job.CountOpts{Status: job.StatusFailed}, 1},
		{job.CountOpts{Status: job.StatusCompleted}, 0},
		{job.CountOpts{BatchID: batch}, 5},
		{job.CountOpts{BatchID: batch, Status: job.StatusPending}, 3},
	}
	for _, c := range counts {
		got, err := s.CountJobs(ctx, c.opts)
		if err != nil {
			t.Fatalf("CountJobs(%+v): %v", c.opts, err)
		}
		if got != c.want {
			t.Errorf("CountJobs(%+v) = %d, want %d", c.opts, got, c.want)
		}
	}
}

func testHeartbeatAndReap(t *testing.T, s job.Store) {
	ctx := context.Background()
	j := newJob(task.ScrapeRoster, 0, 0)
	idle := newJob(task.ScrapeRoster, 0, time.Second)
	mustEnqueue(t, s, j, idle)

	worker := id.NewWorkerID()
	if _, err := s.ClaimJob(ctx, j.ID, worker); err != nil {
		t.Fatal(err)
	}
	if err := s.HeartbeatJob(ctx, j.ID, worker); err != nil {
		t.Fatalf("HeartbeatJob: %v", err)
	}
	if err := s.HeartbeatJob(ctx, idle.ID, worker); !errors.Is(err, scrapequeue.ErrInvalidState) {
		t.Errorf("heartbeat of pending job err = %v, want ErrInvalidState", err)
	}

	fresh, err := s.ReapStaleJobs(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ReapStaleJobs: %v", err)
	}
	if len(fresh) != 0 {
		t.Errorf("fresh heartbeat reaped: %v", ids(fresh))
	}

	stale, err := s.ReapStaleJobs(ctx, -time.Minute)
	if err != nil {
		t.Fatalf("ReapStaleJobs: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != j.ID {
		t.Errorf("stale = %v, want [%s]", ids(stale), j.ID)
	}
}

func ids(jobs []*job.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID.String()
	}
	return out
}

package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/alex-monroe/scrapequeue/backoff"
	"github.com/alex-monroe/scrapequeue/browser"
	"github.com/alex-monroe/scrapequeue/browser/browsertest"
	"github.com/alex-monroe/scrapequeue/id"
	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/middleware"
	"github.com/alex-monroe/scrapequeue/store/memory"
	"github.com/alex-monroe/scrapequeue/task"
	"github.com/alex-monroe/scrapequeue/worker"
)

type params struct {
	task.Versioned
	Name string `json:"name"`
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// harness wires a memory store, a registry and a fake browser.
type harness struct {
	store    *memory.Store
	reg      *task.Registry
	launcher *browsertest.Launcher
	browsers *browser.Manager
	execOpts []worker.ExecutorOption
}

func newHarness() *harness {
	l := &browsertest.Launcher{Pages: map[string]string{"http://page": "<html></html>"}}
	return &harness{
		store:    memory.New(),
		reg:      task.NewRegistry(),
		launcher: l,
		browsers: browser.NewManager(browser.WithLauncher(l), browser.WithLogger(discard())),
	}
}

func (h *harness) handle(t task.Type, needsBrowser bool, fn task.Handler[params]) {
	task.Register(h.reg, task.NewDefinition(t, needsBrowser, fn))
}

func (h *harness) enqueue(t *testing.T, tt task.Type, name string, opts ...job.Option) *job.Job {
	t.Helper()
	raw, _ := json.Marshal(params{Name: name})
	j := job.New(tt, raw, opts...)
	if err := h.store.EnqueueJob(context.Background(), j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	return j
}

func (h *harness) executor() *worker.Executor {
	return worker.NewExecutor(h.reg, h.store, h.browsers, discard(), h.execOpts...)
}

func (h *harness) scheduler(opts ...worker.SchedulerOption) *worker.Scheduler {
	return worker.NewScheduler(h.store, h.executor(), h.browsers, discard(), opts...)
}

func (h *harness) drain(t *testing.T, opts ...worker.SchedulerOption) *worker.Scheduler {
	t.Helper()
	s := h.scheduler(opts...)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return s
}

func (h *harness) get(t *testing.T, jobID id.JobID) *job.Job {
	t.Helper()
	j, err := h.store.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	return j
}

// recorder collects handler invocations in order.
type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func TestScenarioA_DependentsWaitForHead(t *testing.T) {
	h := newHarness()
	rec := &recorder{}
	var head *job.Job
	var violations atomic.Int32

	h.handle(task.PullNFLStats, false, func(_ context.Context, _ *task.Env, p params) (*task.Result, error) {
		rec.add(p.Name)
		return &task.Result{}, nil
	})
	h.handle(task.ScrapeRoster, false, func(ctx context.Context, _ *task.Env, p params) (*task.Result, error) {
		if st, _ := h.store.DependencyStatus(ctx, head.ID); st != job.StatusCompleted {
			violations.Add(1)
		}
		rec.add(p.Name)
		return &task.Result{}, nil
	})

	batch := uuid.New()
	// Leaves are enqueued first and at higher priority than the head; they
	// still cannot run before it.
	head = job.New(task.PullNFLStats, json.RawMessage(`{"name":"head"}`), job.WithPriority(1), job.WithBatch(batch))
	h.enqueue(t, task.ScrapeRoster, "leaf-low", job.WithPriority(3), job.WithDependsOn(head.ID), job.WithBatch(batch))
	h.enqueue(t, task.ScrapeRoster, "leaf-high", job.WithPriority(5), job.WithDependsOn(head.ID), job.WithBatch(batch))
	h.enqueue(t, task.ScrapeRoster, "leaf-low-2", job.WithPriority(3), job.WithDependsOn(head.ID), job.WithBatch(batch))
	if err := h.store.EnqueueJob(context.Background(), head); err != nil {
		t.Fatal(err)
	}

	h.drain(t)

	want := []string{"head", "leaf-high", "leaf-low", "leaf-low-2"}
	if got := rec.list(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", got, want)
	}
	if violations.Load() != 0 {
		t.Errorf("%d dependents ran before their dependency completed", violations.Load())
	}
}

func TestScenarioB_RetryUntilFailed(t *testing.T) {
	h := newHarness()
	var calls atomic.Int32
	h.handle(task.PullNFLStats, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		return nil, fmt.Errorf("boom %d", calls.Add(1))
	})
	j := h.enqueue(t, task.PullNFLStats, "x", job.WithMaxAttempts(3))

	s := h.drain(t)

	got := h.get(t, j.ID)
	if got.Status != job.StatusFailed || got.Attempts != 3 || got.LastError != "boom 3" {
		t.Errorf("job = status %s attempts %d error %q", got.Status, got.Attempts, got.LastError)
	}
	if got.CompletedAt == nil {
		t.Error("failed job has no completed_at")
	}
	if st := s.Stats(); st.Claimed != 3 || st.Retried != 2 || st.Failed != 1 {
		t.Errorf("stats = %+v", st)
	}

	// A later run never claims it again.
	s2 := h.drain(t)
	if s2.Stats().Claimed != 0 || calls.Load() != 3 {
		t.Errorf("failed job was reclaimed: stats %+v calls %d", s2.Stats(), calls.Load())
	}
}

func TestScenarioC_ChildrenInheritBatch(t *testing.T) {
	h := newHarness()
	h.handle(task.ScrapeRoster, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		a, _ := task.Child(task.ScrapePlayerCard, params{Name: "a"}, -1)
		b, _ := task.Child(task.ScrapePlayerCard, params{Name: "b"}, -1)
		return &task.Result{Children: []task.ChildSpec{a, b}}, nil
	})
	batch := uuid.New()
	parent := h.enqueue(t, task.ScrapeRoster, "roster", job.WithBatch(batch))

	ctx := context.Background()
	claimed, err := h.store.ClaimJob(ctx, parent.ID, id.NewWorkerID())
	if err != nil {
		t.Fatal(err)
	}
	outcome, err := h.executor().Execute(ctx, claimed, task.NewRunCache())
	if err != nil || outcome != worker.OutcomeCompleted {
		t.Fatalf("Execute = %s, %v", outcome, err)
	}

	pending, _ := h.store.ListPending(ctx, time.Now().UTC())
	if len(pending) != 2 {
		t.Fatalf("got %d pending rows, want 2", len(pending))
	}
	for _, c := range pending {
		if c.DependsOn != parent.ID || c.BatchID != batch || c.Priority != -1 || c.TaskType != task.ScrapePlayerCard {
			t.Errorf("child = %+v", c)
		}
	}
	if got := h.get(t, parent.ID); got.Status != job.StatusCompleted {
		t.Errorf("parent status = %s", got.Status)
	}
}

func TestScenarioD_BrowserLaunchedOnce(t *testing.T) {
	h := newHarness()
	var runningDuringPlain atomic.Bool
	h.handle(task.ScrapeRoster, true, func(ctx context.Context, env *task.Env, _ params) (*task.Result, error) {
		tab, err := env.Browser.NewTab(ctx)
		if err != nil {
			return nil, err
		}
		defer tab.Close()
		return &task.Result{}, tab.Navigate(ctx, "http://page")
	})
	h.handle(task.PullNFLStats, false, func(_ context.Context, env *task.Env, _ params) (*task.Result, error) {
		if env.Browser != nil {
			return nil, errors.New("non-browser task got a browser")
		}
		runningDuringPlain.Store(h.browsers.Running())
		return &task.Result{}, nil
	})
	h.enqueue(t, task.ScrapeRoster, "first", job.WithPriority(2))
	h.enqueue(t, task.ScrapeRoster, "second", job.WithPriority(2))
	h.enqueue(t, task.PullNFLStats, "plain", job.WithPriority(1))

	s := h.drain(t)

	if s.Stats().Completed != 3 {
		t.Fatalf("stats = %+v", s.Stats())
	}
	if h.launcher.Launches() != 1 {
		t.Errorf("launches = %d, want 1", h.launcher.Launches())
	}
	if !runningDuringPlain.Load() {
		t.Error("browser was not kept open across the non-browser job")
	}
	if h.launcher.Closes() != 1 || h.browsers.Running() {
		t.Errorf("closes = %d running = %v, want closed once at run end", h.launcher.Closes(), h.browsers.Running())
	}
	if h.launcher.Tabs() != 2 {
		t.Errorf("tabs = %d, want one per browser job", h.launcher.Tabs())
	}
}

func TestNoBrowserLaunchedWithoutBrowserJobs(t *testing.T) {
	h := newHarness()
	h.handle(task.PullNFLStats, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		return &task.Result{}, nil
	})
	h.enqueue(t, task.PullNFLStats, "plain")
	h.drain(t)
	if h.launcher.Launches() != 0 {
		t.Errorf("launches = %d, want 0", h.launcher.Launches())
	}
}

func TestTimeoutIsRetried(t *testing.T) {
	h := newHarness()
	h.execOpts = []worker.ExecutorOption{worker.WithMiddleware(middleware.Timeout(discard(), 20*time.Millisecond))}
	var calls atomic.Int32
	h.handle(task.PullNFLStats, false, func(ctx context.Context, _ *task.Env, _ params) (*task.Result, error) {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &task.Result{}, nil
	})
	j := h.enqueue(t, task.PullNFLStats, "slow")

	h.drain(t)

	got := h.get(t, j.ID)
	if got.Status != job.StatusCompleted || got.Attempts != 2 {
		t.Errorf("job = status %s attempts %d", got.Status, got.Attempts)
	}
	if !strings.Contains(got.LastError, "timed out") {
		t.Errorf("last error = %q, want timeout", got.LastError)
	}
}

func TestPanicIsRetried(t *testing.T) {
	h := newHarness()
	var calls atomic.Int32
	h.handle(task.PullNFLStats, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		if calls.Add(1) == 1 {
			panic("handler bug")
		}
		return &task.Result{}, nil
	})
	j := h.enqueue(t, task.PullNFLStats, "buggy")

	h.drain(t)

	got := h.get(t, j.ID)
	if got.Status != job.StatusCompleted || got.Attempts != 2 {
		t.Errorf("job = status %s attempts %d", got.Status, got.Attempts)
	}
	if !strings.Contains(got.LastError, "panic") {
		t.Errorf("last error = %q", got.LastError)
	}
}

func TestFailedDependencyCascades(t *testing.T) {
	h := newHarness()
	var leafRuns atomic.Int32
	h.handle(task.PullNFLStats, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		return nil, errors.New("source down")
	})
	h.handle(task.ScrapeRoster, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		leafRuns.Add(1)
		return &task.Result{}, nil
	})

	head := h.enqueue(t, task.PullNFLStats, "head", job.WithMaxAttempts(1))
	mid := h.enqueue(t, task.ScrapeRoster, "mid", job.WithDependsOn(head.ID))
	leaf := h.enqueue(t, task.ScrapeRoster, "leaf", job.WithDependsOn(mid.ID))
	other := h.enqueue(t, task.ScrapeRoster, "independent")

	h.drain(t)

	if got := h.get(t, head.ID); got.Status != job.StatusFailed || got.LastError != "source down" {
		t.Errorf("head = %s %q", got.Status, got.LastError)
	}
	for _, j := range []*job.Job{mid, leaf} {
		got := h.get(t, j.ID)
		if got.Status != job.StatusFailed || got.Attempts != 0 {
			t.Errorf("dependent %s = status %s attempts %d", j.ID, got.Status, got.Attempts)
		}
		if !strings.HasPrefix(got.LastError, "dependency ") || !strings.HasSuffix(got.LastError, " failed") {
			t.Errorf("dependent error = %q", got.LastError)
		}
	}
	if got := h.get(t, other.ID); got.Status != job.StatusCompleted {
		t.Errorf("independent job = %s", got.Status)
	}
	if leafRuns.Load() != 1 {
		t.Errorf("dependent handlers ran %d times, want only the independent job", leafRuns.Load())
	}
}

func TestAlreadyFailedDependency(t *testing.T) {
	h := newHarness()
	h.handle(task.ScrapeRoster, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		return &task.Result{}, nil
	})
	ctx := context.Background()

	head := h.enqueue(t, task.PullNFLStats, "head")
	if err := h.store.FailJob(ctx, head.ID, "gave up"); err != nil {
		t.Fatal(err)
	}
	// Enqueued after its dependency already failed: failed on sight.
	late := h.enqueue(t, task.ScrapeRoster, "late", job.WithDependsOn(head.ID))
	orphan := h.enqueue(t, task.ScrapeRoster, "orphan", job.WithDependsOn(id.NewJobID()))

	s := h.drain(t)

	if got := h.get(t, late.ID); got.Status != job.StatusFailed || got.LastError != fmt.Sprintf("dependency %s failed", head.ID) {
		t.Errorf("late = %s %q", got.Status, got.LastError)
	}
	if got := h.get(t, orphan.ID); got.Status != job.StatusFailed || !strings.HasSuffix(got.LastError, "not found") {
		t.Errorf("orphan = %s %q", got.Status, got.LastError)
	}
	if s.Stats().Claimed != 0 {
		t.Errorf("claimed %d jobs, want 0", s.Stats().Claimed)
	}
}

func TestProvisioningFailureOnlyAffectsBrowserJobs(t *testing.T) {
	h := newHarness()
	h.launcher.Err = errors.New("chrome not installed")
	h.handle(task.ScrapeRoster, true, func(context.Context, *task.Env, params) (*task.Result, error) {
		t.Error("browser handler ran without a browser")
		return nil, nil
	})
	h.handle(task.PullNFLStats, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		return &task.Result{}, nil
	})
	b := h.enqueue(t, task.ScrapeRoster, "needs-browser", job.WithMaxAttempts(2), job.WithPriority(1))
	plain := h.enqueue(t, task.PullNFLStats, "plain")

	h.drain(t)

	got := h.get(t, b.ID)
	if got.Status != job.StatusFailed || got.Attempts != 2 || !strings.Contains(got.LastError, "chrome not installed") {
		t.Errorf("browser job = status %s attempts %d error %q", got.Status, got.Attempts, got.LastError)
	}
	if got := h.get(t, plain.ID); got.Status != job.StatusCompleted {
		t.Errorf("plain job = %s", got.Status)
	}
}

func TestPermanentErrorsFailImmediately(t *testing.T) {
	h := newHarness()
	task.Register(h.reg, task.NewDefinition(task.PullNFLStats, false,
		func(context.Context, *task.Env, params) (*task.Result, error) { return &task.Result{}, nil }))

	newer := job.New(task.PullNFLStats, json.RawMessage(`{"v":2}`))
	malformed := job.New(task.PullNFLStats, json.RawMessage(`{"name":5}`))
	unknown := job.New(task.ScrapePlayerCard, nil)
	all := []*job.Job{newer, malformed, unknown}
	for _, j := range all {
		if err := h.store.EnqueueJob(context.Background(), j); err != nil {
			t.Fatal(err)
		}
	}

	h.drain(t)

	for _, j := range all {
		got := h.get(t, j.ID)
		if got.Status != job.StatusFailed || got.Attempts != 1 {
			t.Errorf("%s %s = status %s attempts %d (%s)", j.TaskType, j.Params, got.Status, got.Attempts, got.LastError)
		}
	}
	if got := h.get(t, malformed.ID); !strings.Contains(got.LastError, "invalid params") {
		t.Errorf("malformed params error = %q", got.LastError)
	}
	if got := h.get(t, unknown.ID); !strings.Contains(got.LastError, string(task.ScrapePlayerCard)) {
		t.Errorf("unknown type error = %q", got.LastError)
	}
}

func TestCacheSharedAcrossJobs(t *testing.T) {
	h := newHarness()
	var seen atomic.Value
	h.handle(task.PullNFLStats, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		return &task.Result{Data: []string{"stats"}, CacheKey: "nfl_stats:2024"}, nil
	})
	h.handle(task.ScrapeRoster, false, func(_ context.Context, env *task.Env, _ params) (*task.Result, error) {
		v, _ := task.Lookup[[]string](env.Cache, "nfl_stats:2024")
		seen.Store(v)
		return &task.Result{}, nil
	})
	head := h.enqueue(t, task.PullNFLStats, "head")
	h.enqueue(t, task.ScrapeRoster, "leaf", job.WithDependsOn(head.ID))

	h.drain(t)

	if v, _ := seen.Load().([]string); len(v) != 1 || v[0] != "stats" {
		t.Errorf("leaf saw %v", seen.Load())
	}
}

func TestConcurrentDrainRunsEachJobOnce(t *testing.T) {
	h := newHarness()
	var mu sync.Mutex
	runs := map[string]int{}
	h.handle(task.PullNFLStats, false, func(_ context.Context, _ *task.Env, p params) (*task.Result, error) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		runs[p.Name]++
		mu.Unlock()
		// The first job fans out once more so idle workers must wait for it.
		if p.Name == "job-0" {
			c, _ := task.Child(task.PullNFLStats, params{Name: "child"}, 0)
			return &task.Result{Children: []task.ChildSpec{c}}, nil
		}
		return &task.Result{}, nil
	})
	for i := range 20 {
		h.enqueue(t, task.PullNFLStats, fmt.Sprintf("job-%d", i))
	}

	s := h.drain(t, worker.WithConcurrency(4))

	if s.Stats().Completed != 21 {
		t.Errorf("stats = %+v, want 21 completed", s.Stats())
	}
	for name, n := range runs {
		if n != 1 {
			t.Errorf("%s ran %d times", name, n)
		}
	}
	if runs["child"] != 1 {
		t.Error("child job did not run before the drain ended")
	}
}

func TestPollModeRunsUntilCancelled(t *testing.T) {
	h := newHarness()
	done := make(chan struct{}, 4)
	h.handle(task.PullNFLStats, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		done <- struct{}{}
		return &task.Result{}, nil
	})
	h.enqueue(t, task.PullNFLStats, "first")

	s := h.scheduler(worker.WithMode(worker.ModePoll), worker.WithPollInterval(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	<-done
	// Work enqueued while polling is picked up.
	h.enqueue(t, task.PullNFLStats, "second")
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("poll mode did not pick up new job")
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run after cancel = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStaleJobsAreReaped(t *testing.T) {
	h := newHarness()
	h.handle(task.PullNFLStats, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		return &task.Result{}, nil
	})
	j := h.enqueue(t, task.PullNFLStats, "orphaned")

	// Another worker claimed the job and died.
	if _, err := h.store.ClaimJob(context.Background(), j.ID, id.NewWorkerID()); err != nil {
		t.Fatal(err)
	}

	s := h.scheduler(
		worker.WithMode(worker.ModePoll),
		worker.WithPollInterval(5*time.Millisecond),
		worker.WithStaleJobThreshold(10*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		got := h.get(t, j.ID)
		if got.Status == job.StatusCompleted {
			if got.Attempts != 2 || got.WorkerID != s.WorkerID() {
				t.Errorf("reaped job = attempts %d worker %s", got.Attempts, got.WorkerID)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("stale job not reaped: %s", got.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-errc
}

func TestHeartbeatsKeepJobsAlive(t *testing.T) {
	h := newHarness()
	release := make(chan struct{})
	h.handle(task.PullNFLStats, false, func(ctx context.Context, _ *task.Env, _ params) (*task.Result, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return &task.Result{}, nil
	})
	j := h.enqueue(t, task.PullNFLStats, "long")

	s := h.scheduler(worker.WithHeartbeatInterval(5 * time.Millisecond))
	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	deadline := time.After(5 * time.Second)
	var first time.Time
	for {
		got := h.get(t, j.ID)
		if got.HeartbeatAt != nil {
			if first.IsZero() {
				first = *got.HeartbeatAt
			} else if got.HeartbeatAt.After(first) {
				break
			}
		}
		select {
		case <-deadline:
			t.Fatal("heartbeat never advanced")
		case <-time.After(2 * time.Millisecond):
		}
	}
	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestBackoffDelaysRetry(t *testing.T) {
	h := newHarness()
	h.execOpts = []worker.ExecutorOption{worker.WithBackoff(backoff.Constant{Interval: time.Hour})}
	h.handle(task.PullNFLStats, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		return nil, errors.New("flaky")
	})
	j := h.enqueue(t, task.PullNFLStats, "x")

	s := h.drain(t)

	got := h.get(t, j.ID)
	if got.Status != job.StatusPending || got.Attempts != 1 {
		t.Errorf("job = status %s attempts %d", got.Status, got.Attempts)
	}
	if time.Until(got.RunAt) < 59*time.Minute {
		t.Errorf("run_at = %s, want about an hour out", got.RunAt)
	}
	if s.Stats().Retried != 1 {
		t.Errorf("stats = %+v", s.Stats())
	}
}

var errTransient = errors.New("transient store error")

// flakyStore fails selected writes of a memory store.
type flakyStore struct {
	*memory.Store
	enqueues      atomic.Int32
	failEnqueueAt atomic.Int32 // 1-based EnqueueJob call that fails; 0 never
	failCompletes atomic.Int32 // CompleteJob calls left to fail
}

func (f *flakyStore) EnqueueJob(ctx context.Context, j *job.Job) error {
	if n := f.enqueues.Add(1); n == f.failEnqueueAt.Load() {
		return errTransient
	}
	return f.Store.EnqueueJob(ctx, j)
}

func (f *flakyStore) CompleteJob(ctx context.Context, jobID id.JobID) error {
	if f.failCompletes.Add(-1) >= 0 {
		return errTransient
	}
	return f.Store.CompleteJob(ctx, jobID)
}

func fanOut(n int) task.Handler[params] {
	return func(context.Context, *task.Env, params) (*task.Result, error) {
		res := &task.Result{}
		for i := range n {
			child, err := task.Child(task.ScrapePlayerCard, params{Name: fmt.Sprintf("card-%d", i)}, -1)
			if err != nil {
				return nil, err
			}
			res.Children = append(res.Children, child)
		}
		return res, nil
	}
}

func TestChildInsertFailureRetriesParent(t *testing.T) {
	h := newHarness()
	fs := &flakyStore{Store: h.store}
	fs.failEnqueueAt.Store(2)

	var mu sync.Mutex
	runs := map[string]int{}
	h.handle(task.ScrapeRoster, false, fanOut(3))
	h.handle(task.ScrapePlayerCard, false, func(_ context.Context, _ *task.Env, p params) (*task.Result, error) {
		mu.Lock()
		runs[p.Name]++
		mu.Unlock()
		return &task.Result{}, nil
	})
	batch := uuid.New()
	parent := h.enqueue(t, task.ScrapeRoster, "QB", job.WithBatch(batch))

	exec := worker.NewExecutor(h.reg, fs, h.browsers, discard())
	s := worker.NewScheduler(fs, exec, h.browsers, discard())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := h.get(t, parent.ID)
	if got.Status != job.StatusCompleted || got.Attempts != 2 {
		t.Fatalf("parent = status %s attempts %d (%s)", got.Status, got.Attempts, got.LastError)
	}
	if !strings.Contains(got.LastError, errTransient.Error()) {
		t.Errorf("parent last error = %q", got.LastError)
	}

	for i := range 3 {
		if n := runs[fmt.Sprintf("card-%d", i)]; n != 1 {
			t.Errorf("card-%d ran %d times, want 1", i, n)
		}
	}

	completed, _ := h.store.CountJobs(ctx, job.CountOpts{Status: job.StatusCompleted, BatchID: batch})
	failed, _ := h.store.CountJobs(ctx, job.CountOpts{Status: job.StatusFailed, BatchID: batch})
	if completed != 4 || failed != 1 {
		t.Errorf("batch completed = %d failed = %d, want 4 and 1", completed, failed)
	}
	recent, _ := h.store.ListRecent(ctx, 10)
	for _, j := range recent {
		if j.Status == job.StatusFailed && !strings.HasPrefix(j.LastError, "discarded") {
			t.Errorf("unexpected failed job %s: %s", j.ID, j.LastError)
		}
	}
}

func TestChildInsertFailureExhaustsParent(t *testing.T) {
	h := newHarness()
	fs := &flakyStore{Store: h.store}
	fs.failEnqueueAt.Store(1)

	h.handle(task.ScrapeRoster, false, fanOut(2))
	h.handle(task.ScrapePlayerCard, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		t.Error("card ran although its parent failed")
		return &task.Result{}, nil
	})
	parent := h.enqueue(t, task.ScrapeRoster, "QB", job.WithMaxAttempts(1))

	exec := worker.NewExecutor(h.reg, fs, h.browsers, discard())
	s := worker.NewScheduler(fs, exec, h.browsers, discard())
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := h.get(t, parent.ID); got.Status != job.StatusFailed {
		t.Errorf("parent = %s, want failed", got.Status)
	}
	if n, _ := h.store.CountJobs(context.Background(), job.CountOpts{Status: job.StatusPending}); n != 0 {
		t.Errorf("%d pending jobs left", n)
	}
}

func TestPollModeSurvivesStoreErrors(t *testing.T) {
	h := newHarness()
	fs := &flakyStore{Store: h.store}
	fs.failCompletes.Store(1)

	h.handle(task.PullNFLStats, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		return &task.Result{}, nil
	})
	j := h.enqueue(t, task.PullNFLStats, "stats")

	exec := worker.NewExecutor(h.reg, fs, h.browsers, discard())
	s := worker.NewScheduler(fs, exec, h.browsers, discard(),
		worker.WithMode(worker.ModePoll),
		worker.WithPollInterval(10*time.Millisecond),
		worker.WithStaleJobThreshold(50*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for h.get(t, j.ID).Status != job.StatusCompleted {
		select {
		case err := <-done:
			cancel()
			t.Fatalf("poll run stopped early: %v", err)
		case <-deadline:
			cancel()
			t.Fatal("job was never completed after the store recovered")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := h.get(t, j.ID); got.Attempts != 2 {
		t.Errorf("attempts = %d, want 2 (reaped and rerun)", got.Attempts)
	}
}

func TestInstrumentationFollowsOutcomes(t *testing.T) {
	h := newHarness()
	reader := sdkmetric.NewManualReader()
	sr := tracetest.NewSpanRecorder()
	h.execOpts = []worker.ExecutorOption{worker.WithMiddleware(
		middleware.TracingWithTracer(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)).Tracer("test")),
		middleware.MetricsWithMeter(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")),
	)}

	var rosterCalls atomic.Int32
	h.handle(task.ScrapeRoster, true, func(context.Context, *task.Env, params) (*task.Result, error) {
		if rosterCalls.Add(1) == 1 {
			return nil, errors.New("roster table not visible")
		}
		return &task.Result{}, nil
	})
	h.handle(task.PullNFLStats, false, func(context.Context, *task.Env, params) (*task.Result, error) {
		return nil, errors.New("nflverse unavailable")
	})
	h.handle(task.ScrapePlayerCard, true, func(context.Context, *task.Env, params) (*task.Result, error) {
		t.Error("dependent of a failed job ran")
		return &task.Result{}, nil
	})

	h.enqueue(t, task.ScrapeRoster, "QB")
	stats := h.enqueue(t, task.PullNFLStats, "stats", job.WithMaxAttempts(1))
	card := h.enqueue(t, task.ScrapePlayerCard, "card", job.WithDependsOn(stats.ID))

	h.drain(t)

	if got := h.get(t, card.ID); got.Status != job.StatusFailed || got.Attempts != 0 {
		t.Fatalf("dependent = status %s attempts %d", got.Status, got.Attempts)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "scrapequeue.job.executions" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				tt, _ := dp.Attributes.Value("task_type")
				out, _ := dp.Attributes.Value("outcome")
				att, _ := dp.Attributes.Value("attempt")
				nb, _ := dp.Attributes.Value("needs_browser")
				got[fmt.Sprintf("%s/%s/%d/%t", tt.AsString(), out.AsString(), att.AsInt64(), nb.AsBool())] += dp.Value
			}
		}
	}
	want := map[string]int64{
		"scrape_roster/retried/1/true":   1,
		"scrape_roster/completed/2/true": 1,
		"pull_nfl_stats/failed/1/false":  1,
	}
	if len(got) != len(want) {
		t.Fatalf("executions = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("executions[%s] = %d, want %d", k, got[k], v)
		}
	}

	outcomes := map[string]int{}
	for _, s := range sr.Ended() {
		for _, a := range s.Attributes() {
			if a.Key == "scrapequeue.outcome" {
				outcomes[a.Value.AsString()]++
			}
			if a.Key == "scrapequeue.task_type" && a.Value.AsString() == string(task.ScrapePlayerCard) {
				t.Error("span recorded for a cascade-failed dependent")
			}
		}
	}
	if outcomes["retried"] != 1 || outcomes["completed"] != 1 || outcomes["failed"] != 1 {
		t.Errorf("span outcomes = %v", outcomes)
	}
}

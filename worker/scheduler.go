package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/id"
	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/task"
)

// Mode selects when a run ends.
type Mode int

const (
	// ModeDrain ends the run once no job is eligible and none is running.
	ModeDrain Mode = iota
	// ModePoll keeps draining, sleeping between empty cycles, until the
	// context is cancelled.
	ModePoll
)

// ParseMode maps the poll flag to a Mode.
func ParseMode(poll bool) Mode {
	if poll {
		return ModePoll
	}
	return ModeDrain
}

func (m Mode) String() string {
	if m == ModePoll {
		return "poll"
	}
	return "drain"
}

// Stats counts job outcomes of a run.
type Stats struct {
	Claimed   int64
	Completed int64
	Retried   int64
	Failed    int64
}

// Scheduler owns one worker run.
type Scheduler struct {
	store    job.Store
	executor *Executor
	browsers Browsers
	workerID id.WorkerID
	logger   *slog.Logger

	mode              Mode
	concurrency       int
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	staleJobThreshold time.Duration

	claimed, completed, retried, failed atomic.Int64

	activeMu sync.Mutex
	active   map[id.JobID]struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithMode sets drain or poll mode. The default is ModeDrain.
func WithMode(m Mode) SchedulerOption {
	return func(s *Scheduler) { s.mode = m }
}

// WithConcurrency sets how many jobs run at once.
func WithConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithPollInterval sets the sleep between empty poll cycles.
func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.pollInterval = d }
}

// WithHeartbeatInterval sets how often running jobs are heartbeated. Zero
// disables heartbeats.
func WithHeartbeatInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.heartbeatInterval = d }
}

// WithStaleJobThreshold sets how long a running job may go without a
// heartbeat before it is reaped. Zero disables reaping.
func WithStaleJobThreshold(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.staleJobThreshold = d }
}

// WithWorkerID sets the id recorded on claimed jobs.
func WithWorkerID(wid id.WorkerID) SchedulerOption {
	return func(s *Scheduler) { s.workerID = wid }
}

// NewScheduler creates a Scheduler. browsers is closed when Run returns.
func NewScheduler(store job.Store, executor *Executor, browsers Browsers, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:        store,
		executor:     executor,
		browsers:     browsers,
		workerID:     id.NewWorkerID(),
		logger:       logger,
		mode:         ModeDrain,
		concurrency:  1,
		pollInterval: 30 * time.Second,
		active:       make(map[id.JobID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WorkerID returns the id recorded on claimed jobs.
func (s *Scheduler) WorkerID() id.WorkerID { return s.workerID }

// Stats returns the outcome counts so far.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Claimed:   s.claimed.Load(),
		Completed: s.completed.Load(),
		Retried:   s.retried.Load(),
		Failed:    s.failed.Load(),
	}
}

// Run processes jobs until the queue drains (ModeDrain) or ctx is
// cancelled. The browser is closed on every exit path. Cancellation is a
// clean stop and returns nil.
func (s *Scheduler) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := s.browsers.Close(); cerr != nil {
			s.logger.Error("browser teardown failed", slog.String("error", cerr.Error()))
		}
	}()

	s.logger.Info("worker starting",
		slog.String("worker_id", s.workerID.String()),
		slog.String("mode", s.mode.String()),
		slog.Int("concurrency", s.concurrency),
	)

	bgCtx, stopBackground := context.WithCancel(ctx)
	var bg sync.WaitGroup
	if s.heartbeatInterval > 0 {
		bg.Add(1)
		go func() {
			defer bg.Done()
			s.every(bgCtx, s.heartbeatInterval, s.sendHeartbeats)
		}()
	}
	if s.staleJobThreshold > 0 {
		bg.Add(1)
		go func() {
			defer bg.Done()
			s.every(bgCtx, s.staleJobThreshold, s.reapStaleJobs)
		}()
	}
	defer func() {
		stopBackground()
		bg.Wait()
	}()

	cache := task.NewRunCache()
	tr := newTracker()
	g, gctx := errgroup.WithContext(ctx)
	for range s.concurrency {
		g.Go(func() error { return s.loop(gctx, cache, tr) })
	}
	err = g.Wait()

	st := s.Stats()
	s.logger.Info("worker stopped",
		slog.Int64("claimed", st.Claimed),
		slog.Int64("completed", st.Completed),
		slog.Int64("retried", st.Retried),
		slog.Int64("failed", st.Failed),
	)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// loop is run by each worker goroutine.
func (s *Scheduler) loop(ctx context.Context, cache *task.RunCache, tr *tracker) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		gen := tr.generation()
		j, err := s.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if s.mode == ModeDrain {
				return err
			}
			s.logger.Error("scan failed", slog.String("error", err.Error()))
			s.sleep(ctx, s.pollInterval, nil)
			continue
		}

		if j == nil {
			idle, changed, wake := tr.check(gen)
			switch {
			case changed:
				// A job finished during the scan and may have unblocked
				// others.
			case idle && s.mode == ModeDrain:
				return nil
			case idle:
				s.sleep(ctx, s.pollInterval, nil)
			default:
				s.sleep(ctx, s.pollInterval, wake)
			}
			continue
		}

		if err := s.run(ctx, j, cache, tr); err != nil {
			if s.mode == ModeDrain {
				return err
			}
			// Jobs left running are returned to the queue by the stale
			// reaper.
			s.logger.Error("job outcome not recorded", slog.String("error", err.Error()))
			s.sleep(ctx, s.pollInterval, nil)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, j *job.Job, cache *task.RunCache, tr *tracker) error {
	s.claimed.Add(1)
	tr.start()
	s.track(j.ID)
	defer func() {
		s.untrack(j.ID)
		tr.finish()
	}()

	outcome, err := s.executor.Execute(ctx, j, cache)
	switch outcome {
	case OutcomeCompleted:
		s.completed.Add(1)
	case OutcomeRetried:
		s.retried.Add(1)
	case OutcomeFailed:
		s.failed.Add(1)
	}
	if err != nil {
		return fmt.Errorf("record outcome of %s: %w", j.ID, err)
	}
	return nil
}

// next claims the first eligible job in priority then creation order. It
// returns nil when no job is eligible. Pending jobs whose dependency
// failed or is missing are failed on the way.
func (s *Scheduler) next(ctx context.Context) (*job.Job, error) {
	for {
		pending, err := s.store.ListPending(ctx, time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("list pending: %w", err)
		}

		conflicted := false
		for _, cand := range pending {
			if cand.Exhausted() {
				continue
			}
			ok, err := s.dependencyMet(ctx, cand)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}

			j, err := s.store.ClaimJob(ctx, cand.ID, s.workerID)
			if errors.Is(err, scrapequeue.ErrClaimConflict) || errors.Is(err, scrapequeue.ErrJobNotFound) {
				conflicted = true
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("claim %s: %w", cand.ID, err)
			}
			return j, nil
		}
		if !conflicted {
			return nil, nil
		}
	}
}

// dependencyMet reports whether cand may run. A failed or missing
// dependency fails cand and its dependents.
func (s *Scheduler) dependencyMet(ctx context.Context, cand *job.Job) (bool, error) {
	if !cand.HasDependency() {
		return true, nil
	}

	status, err := s.store.DependencyStatus(ctx, cand.DependsOn)
	var reason string
	switch {
	case errors.Is(err, scrapequeue.ErrJobNotFound):
		reason = dependencyMissing(cand.DependsOn)
	case err != nil:
		return false, fmt.Errorf("dependency status of %s: %w", cand.ID, err)
	case status == job.StatusFailed:
		reason = dependencyFailed(cand.DependsOn)
	default:
		return status == job.StatusCompleted, nil
	}

	err = s.executor.failJob(ctx, cand.ID, reason)
	if errors.Is(err, scrapequeue.ErrInvalidState) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.failed.Add(1)
	s.logger.Warn("failed job with unsatisfiable dependency",
		slog.String("job_id", cand.ID.String()),
		slog.String("reason", reason),
	)
	return false, nil
}

func (s *Scheduler) every(ctx context.Context, d time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (s *Scheduler) sendHeartbeats(ctx context.Context) {
	s.activeMu.Lock()
	ids := make([]id.JobID, 0, len(s.active))
	for jobID := range s.active {
		ids = append(ids, jobID)
	}
	s.activeMu.Unlock()

	for _, jobID := range ids {
		if err := s.store.HeartbeatJob(ctx, jobID, s.workerID); err != nil {
			s.logger.Warn("heartbeat failed",
				slog.String("job_id", jobID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// reapStaleJobs returns running jobs whose worker stopped heartbeating to
// the retry path.
func (s *Scheduler) reapStaleJobs(ctx context.Context) {
	stale, err := s.store.ReapStaleJobs(ctx, s.staleJobThreshold)
	if err != nil {
		s.logger.Error("reap stale jobs failed", slog.String("error", err.Error()))
		return
	}
	for _, j := range stale {
		if s.isActive(j.ID) {
			continue
		}
		cause := fmt.Errorf("worker %s stopped heartbeating", j.WorkerID)
		outcome, err := s.executor.handleFailure(ctx, j, cause)
		if err != nil {
			s.logger.Error("reap: failed to reset stale job",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.logger.Info("reaped stale job",
			slog.String("job_id", j.ID.String()),
			slog.String("task_type", string(j.TaskType)),
			slog.String("outcome", outcome.String()),
		)
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration, wake <-chan struct{}) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	case <-wake:
	}
}

func (s *Scheduler) track(jobID id.JobID) {
	s.activeMu.Lock()
	s.active[jobID] = struct{}{}
	s.activeMu.Unlock()
}

func (s *Scheduler) untrack(jobID id.JobID) {
	s.activeMu.Lock()
	delete(s.active, jobID)
	s.activeMu.Unlock()
}

func (s *Scheduler) isActive(jobID id.JobID) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	_, ok := s.active[jobID]
	return ok
}

// tracker lets idle goroutines of one run tell "nothing to do" apart from
// "nothing to do until a running job finishes".
type tracker struct {
	mu       sync.Mutex
	inflight int
	gen      uint64
	wake     chan struct{}
}

func newTracker() *tracker {
	return &tracker{wake: make(chan struct{})}
}

func (t *tracker) generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

func (t *tracker) start() {
	t.mu.Lock()
	t.inflight++
	t.mu.Unlock()
}

func (t *tracker) finish() {
	t.mu.Lock()
	t.inflight--
	t.gen++
	close(t.wake)
	t.wake = make(chan struct{})
	t.mu.Unlock()
}

// check reports whether nothing is running, whether a job finished since
// gen, and a channel closed by the next finish.
func (t *tracker) check(gen uint64) (idle, changed bool, wake <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inflight == 0, t.gen != gen, t.wake
}

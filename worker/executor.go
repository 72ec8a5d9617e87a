package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/backoff"
	"github.com/alex-monroe/scrapequeue/browser"
	"github.com/alex-monroe/scrapequeue/id"
	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/middleware"
	"github.com/alex-monroe/scrapequeue/task"
)

// Browsers provisions the shared browser session. *browser.Manager
// implements it.
type Browsers interface {
	Session(ctx context.Context) (browser.Session, error)
	Close() error
}

// Outcome is what happened to an executed job.
type Outcome int

const (
	// OutcomeCompleted means the handler succeeded.
	OutcomeCompleted Outcome = iota + 1
	// OutcomeRetried means the job went back to pending.
	OutcomeRetried
	// OutcomeFailed means the job failed terminally.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeRetried:
		return "retried"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Executor runs a single claimed job through middleware and its handler,
// then completes, reschedules or fails it.
type Executor struct {
	registry *task.Registry
	store    job.Store
	browsers Browsers
	backoff  backoff.Strategy
	mw       middleware.Middleware
	logger   *slog.Logger

	childMaxAttempts int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithBackoff sets the retry delay strategy. The default retries
// immediately.
func WithBackoff(s backoff.Strategy) ExecutorOption {
	return func(e *Executor) { e.backoff = s }
}

// WithMiddleware sets the middleware run around every handler. Panics are
// always recovered, outside of these.
func WithMiddleware(mws ...middleware.Middleware) ExecutorOption {
	return func(e *Executor) { e.mw = middleware.Chain(mws...) }
}

// WithChildMaxAttempts sets the attempt budget of jobs created from
// handler results.
func WithChildMaxAttempts(n int) ExecutorOption {
	return func(e *Executor) { e.childMaxAttempts = n }
}

// NewExecutor creates an Executor.
func NewExecutor(registry *task.Registry, store job.Store, browsers Browsers, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:         registry,
		store:            store,
		browsers:         browsers,
		backoff:          backoff.None{},
		mw:               middleware.Chain(),
		logger:           logger,
		childMaxAttempts: job.DefaultOptions().MaxAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.mw = middleware.Chain(middleware.Recover(logger), e.mw)
	return e
}

// Execute runs j, which must have been claimed, and records the outcome.
// The returned error is a store failure; handler errors are recorded on
// the job and reported only through the outcome.
func (e *Executor) Execute(ctx context.Context, j *job.Job, cache *task.RunCache) (Outcome, error) {
	entry, err := e.registry.Get(j.TaskType)
	if err != nil {
		return e.fail(ctx, j, err)
	}

	env := &task.Env{
		Logger: e.logger.With(
			slog.String("job_id", j.ID.String()),
			slog.String("task_type", string(j.TaskType)),
		),
		Cache:   cache,
		JobID:   j.ID,
		BatchID: j.BatchID,
	}

	var res *task.Result
	terminal := func(ctx context.Context) error {
		if entry.NeedsBrowser {
			sess, err := e.browsers.Session(ctx)
			if err != nil {
				return err
			}
			env.Browser = sess
		}
		var err error
		res, err = entry.Handler(ctx, env, j.Params)
		return err
	}

	if err := e.mw(middleware.WithNeedsBrowser(ctx, entry.NeedsBrowser), j, terminal); err != nil {
		return e.handleFailure(ctx, j, err)
	}
	if res == nil {
		res = &task.Result{}
	}
	return e.handleSuccess(ctx, j, res, cache)
}

// handleSuccess inserts the job's children, completes it and caches its
// data. Children go in first: they cannot be claimed while the parent is
// running. A failed insert sends the parent down the retry path, which
// re-emits the whole fan-out.
func (e *Executor) handleSuccess(ctx context.Context, j *job.Job, res *task.Result, cache *task.RunCache) (Outcome, error) {
	// The job's outcome is recorded even if the run is being cancelled.
	ctx = context.WithoutCancel(ctx)

	if err := e.enqueueChildren(ctx, j, res.Children); err != nil {
		e.logger.Error("failed to enqueue child jobs",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return e.handleFailure(ctx, j, err)
	}

	if err := e.store.CompleteJob(ctx, j.ID); err != nil {
		e.logger.Error("failed to complete job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("complete job %s: %w", j.ID, err)
	}

	if res.CacheKey != "" && cache != nil {
		cache.Put(res.CacheKey, res.Data)
		e.logger.Debug("cached job data", slog.String("key", res.CacheKey))
	}
	return OutcomeCompleted, nil
}

// enqueueChildren inserts one pending job per spec, depending on parent
// and in its batch. When an insert fails, the children already inserted
// by this attempt are discarded so a retry does not run them twice.
func (e *Executor) enqueueChildren(ctx context.Context, parent *job.Job, specs []task.ChildSpec) error {
	inserted := make([]id.JobID, 0, len(specs))
	for _, spec := range specs {
		child := job.New(spec.Type, spec.Params,
			job.WithPriority(spec.Priority),
			job.WithMaxAttempts(e.childMaxAttempts),
			job.WithDependsOn(parent.ID),
			job.WithBatch(parent.BatchID),
		)
		if err := e.store.EnqueueJob(ctx, child); err != nil {
			e.discardChildren(ctx, parent.ID, inserted)
			return fmt.Errorf("enqueue child %d of %d for %s: %w", len(inserted)+1, len(specs), parent.ID, err)
		}
		inserted = append(inserted, child.ID)
	}
	if n := len(inserted); n > 0 {
		e.logger.Info("enqueued child jobs",
			slog.String("job_id", parent.ID.String()),
			slog.Int("children", n),
		)
	}
	return nil
}

func (e *Executor) discardChildren(ctx context.Context, parent id.JobID, children []id.JobID) {
	msg := fmt.Sprintf("discarded: fan-out of %s was incomplete", parent)
	for _, childID := range children {
		if err := e.store.FailJob(ctx, childID, msg); err != nil {
			e.logger.Warn("failed to discard child job",
				slog.String("job_id", childID.String()),
				slog.String("parent_id", parent.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// handleFailure reschedules the job while attempts remain and the error
// is not permanent, and fails it otherwise.
func (e *Executor) handleFailure(ctx context.Context, j *job.Job, handlerErr error) (Outcome, error) {
	if middleware.OutcomeOf(j, handlerErr) == middleware.OutcomeFailed {
		return e.fail(ctx, j, handlerErr)
	}

	ctx = context.WithoutCancel(ctx)
	delay := e.backoff.Delay(j.Attempts)
	runAt := time.Now().UTC().Add(delay)
	if err := e.store.RescheduleJob(ctx, j.ID, handlerErr.Error(), runAt); err != nil {
		e.logger.Error("failed to reschedule job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("reschedule job %s: %w", j.ID, err)
	}

	e.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID.String()),
		slog.String("task_type", string(j.TaskType)),
		slog.Int("attempt", j.Attempts),
		slog.Int("max_attempts", j.MaxAttempts),
		slog.Duration("delay", delay),
	)
	return OutcomeRetried, nil
}

func (e *Executor) fail(ctx context.Context, j *job.Job, cause error) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	if err := e.failJob(ctx, j.ID, cause.Error()); err != nil {
		return 0, err
	}
	e.logger.Warn("job failed",
		slog.String("job_id", j.ID.String()),
		slog.String("task_type", string(j.TaskType)),
		slog.Int("attempts", j.Attempts),
		slog.String("error", cause.Error()),
	)
	return OutcomeFailed, nil
}

// failJob fails jobID and every pending job that transitively depends on
// it.
func (e *Executor) failJob(ctx context.Context, jobID id.JobID, msg string) error {
	if err := e.store.FailJob(ctx, jobID, msg); err != nil {
		return fmt.Errorf("fail job %s: %w", jobID, err)
	}

	queue := []id.JobID{jobID}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		dependents, err := e.store.ListDependents(ctx, parent)
		if err != nil {
			return fmt.Errorf("list dependents of %s: %w", parent, err)
		}
		for _, d := range dependents {
			err := e.store.FailJob(ctx, d.ID, dependencyFailed(parent))
			if errors.Is(err, scrapequeue.ErrInvalidState) {
				// Claimed or failed by someone else in the meantime.
				continue
			}
			if err != nil {
				return fmt.Errorf("fail dependent %s: %w", d.ID, err)
			}
			e.logger.Info("failed dependent job",
				slog.String("job_id", d.ID.String()),
				slog.String("depends_on", parent.String()),
			)
			queue = append(queue, d.ID)
		}
	}
	return nil
}

func dependencyFailed(parent id.JobID) string {
	return fmt.Sprintf("dependency %s failed", parent)
}

func dependencyMissing(parent id.JobID) string {
	return fmt.Sprintf("dependency %s not found", parent)
}

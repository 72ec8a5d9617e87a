package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alex-monroe/scrapequeue/job"
)

// Timeout enforces a per-job deadline: the job's own Timeout, or def when
// the job has none. A handler that ignores its context is abandoned when
// the deadline passes and the job fails with context.DeadlineExceeded, so
// one hung network call cannot stall the worker. A panic in the abandoned
// path is re-raised on the caller's goroutine for Recover to handle.
func Timeout(logger *slog.Logger, def time.Duration) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		d := j.Timeout
		if d <= 0 {
			d = def
		}
		if d <= 0 {
			return next(ctx)
		}

		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		type outcome struct {
			err   error
			panic any
		}
		done := make(chan outcome, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- outcome{panic: r}
				}
			}()
			done <- outcome{err: next(ctx)}
		}()

		select {
		case out := <-done:
			if out.panic != nil {
				panic(out.panic)
			}
			if out.err != nil && ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("job timed out after %s: %w", d, out.err)
			}
			return out.err
		case <-ctx.Done():
			logger.Warn("job exceeded deadline",
				slog.String("job_id", j.ID.String()),
				slog.String("task_type", string(j.TaskType)),
				slog.Duration("timeout", d),
			)
			return fmt.Errorf("job timed out after %s: %w", d, ctx.Err())
		}
	}
}

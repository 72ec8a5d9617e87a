package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/alex-monroe/scrapequeue/job"
)

// Logging logs the start of every attempt and what it leads to: the job
// completes, goes back to pending or fails for good.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		log := logger.With(
			slog.String("job_id", j.ID.String()),
			slog.String("task_type", string(j.TaskType)),
			slog.Int("attempt", j.Attempts),
		)
		log.Info("job started",
			slog.Int("max_attempts", j.MaxAttempts),
			slog.Bool("needs_browser", NeedsBrowser(ctx)),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := slog.Duration("elapsed", time.Since(start))

		switch OutcomeOf(j, err) {
		case OutcomeCompleted:
			log.Info("job completed", elapsed)
		case OutcomeRetried:
			log.Warn("job attempt failed",
				elapsed,
				slog.Int("attempts_left", j.MaxAttempts-j.Attempts),
				slog.String("error", err.Error()),
			)
		case OutcomeFailed:
			log.Error("job failed",
				elapsed,
				slog.String("error", err.Error()),
			)
		}

		return err
	}
}

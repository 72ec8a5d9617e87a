package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/alex-monroe/scrapequeue/job"
)

// Recover converts a panic anywhere below it into an error, so a handler
// defect takes the normal retry path instead of killing the worker.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job handler panicked",
					slog.String("task_type", string(j.TaskType)),
					slog.String("job_id", j.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic in job %s: %v", j.TaskType, r)
			}
		}()
		return next(ctx)
	}
}

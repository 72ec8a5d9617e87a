package middleware

import (
	"context"

	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/throttle"
)

// Throttle holds back a job until its task type's rate and concurrency
// limits allow it to start. Time spent waiting counts against the job's
// deadline only if Timeout is placed outside Throttle.
func Throttle(m *throttle.Manager) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		release, err := m.Acquire(ctx, j.TaskType)
		if err != nil {
			return err
		}
		defer release()
		return next(ctx)
	}
}

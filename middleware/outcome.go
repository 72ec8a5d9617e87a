package middleware

import (
	"context"

	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/task"
)

// Outcome is what the executor does with a job after an attempt.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRetried   Outcome = "retried"
	OutcomeFailed    Outcome = "failed"
)

// OutcomeOf returns the outcome of an attempt of j that returned err. The
// executor applies the same rule: a permanent error or a used-up attempt
// budget fails the job, any other error sends it back to pending.
func OutcomeOf(j *job.Job, err error) Outcome {
	switch {
	case err == nil:
		return OutcomeCompleted
	case task.IsPermanent(err) || j.Exhausted():
		return OutcomeFailed
	default:
		return OutcomeRetried
	}
}

type needsBrowserKey struct{}

// WithNeedsBrowser records on ctx whether the attempt runs a browser task.
func WithNeedsBrowser(ctx context.Context, needs bool) context.Context {
	return context.WithValue(ctx, needsBrowserKey{}, needs)
}

// NeedsBrowser reports whether the attempt running under ctx is a browser
// task.
func NeedsBrowser(ctx context.Context) bool {
	needs, _ := ctx.Value(needsBrowserKey{}).(bool)
	return needs
}

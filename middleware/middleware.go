// Package middleware provides composable middleware for job execution.
// Middleware wraps the handler call synchronously and can alter execution
// (recover from panics, enforce deadlines, log, trace, throttle).
package middleware

import (
	"context"

	"github.com/alex-monroe/scrapequeue/job"
)

// Handler is the terminal function that runs the job's task.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler. It receives the context, the job being
// executed and the next handler. Middleware must call next to continue
// the chain unless it is short-circuiting with an error.
type Middleware func(ctx context.Context, j *job.Job, next Handler) error

// Chain composes middleware into one. The first middleware in the list is
// the outermost wrapper:
//
//	Chain(recover, logging, timeout) runs recover → logging → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, j, prev)
			}
		}
		return h(ctx)
	}
}

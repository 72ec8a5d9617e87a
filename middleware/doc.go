// Package middleware provides composable middleware for job execution.
//
// A [Middleware] wraps a job handler. Middleware are composed with [Chain]
// and run around every execution. The first middleware in the list is the
// outermost wrapper:
//
//	chain := middleware.Chain(
//	    middleware.Recover(logger),
//	    middleware.Logging(logger),
//	    middleware.Timeout(logger, 5*time.Minute),
//	)
//
// # Built-in Middleware
//
//   - [Recover]: turns panics into errors
//   - [Tracing]: wraps execution in an OpenTelemetry span
//   - [Metrics]: records attempt duration and counts by [Outcome]
//   - [Logging]: logs task type, attempt, duration and outcome
//   - [Throttle]: applies per-task-type rate and concurrency limits
//   - [Timeout]: enforces the per-job deadline
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, j *job.Job, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
package middleware

package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/alex-monroe/scrapequeue/job"
)

// instrumentationName is the OTel scope for scrapequeue metrics and traces.
const instrumentationName = "github.com/alex-monroe/scrapequeue"

// Metrics records one data point per attempt using the global
// MeterProvider. Without a configured provider the instruments are noops.
//
// Instruments:
//   - scrapequeue.job.duration (Float64Histogram): attempt time in
//     seconds, by task_type, outcome and needs_browser
//   - scrapequeue.job.executions (Int64Counter): attempts, by task_type,
//     outcome, needs_browser and attempt
//
// outcome is completed, retried or failed, as decided by [OutcomeOf].
// Dependents failed by a cascade never run and are not counted here.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(instrumentationName))
}

// MetricsWithMeter is Metrics with an explicit meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// The OTel API returns usable noop instruments alongside any error.
	duration, _ := meter.Float64Histogram(
		"scrapequeue.job.duration",
		metric.WithDescription("Duration of job attempts in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"scrapequeue.job.executions",
		metric.WithDescription("Job attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)

	return func(ctx context.Context, j *job.Job, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		taskType := attribute.String("task_type", string(j.TaskType))
		outcome := attribute.String("outcome", string(OutcomeOf(j, err)))
		browser := attribute.Bool("needs_browser", NeedsBrowser(ctx))

		duration.Record(ctx, elapsed, metric.WithAttributes(taskType, outcome, browser))
		executions.Add(ctx, 1, metric.WithAttributes(taskType, outcome, browser,
			attribute.Int("attempt", j.Attempts)))

		return err
	}
}

package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alex-monroe/scrapequeue/job"
)

// Tracing wraps each attempt in a span from the global TracerProvider.
//
// Span attributes: scrapequeue.job.id, scrapequeue.task_type,
// scrapequeue.attempt, scrapequeue.max_attempts,
// scrapequeue.needs_browser, scrapequeue.batch_id and, for children,
// scrapequeue.depends_on. scrapequeue.outcome is set when the attempt
// ends. A retried attempt records its error but keeps the span unset;
// only a failed job marks the span as an error.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(instrumentationName))
}

// TracingWithTracer is Tracing with an explicit tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		attrs := []attribute.KeyValue{
			attribute.String("scrapequeue.job.id", j.ID.String()),
			attribute.String("scrapequeue.task_type", string(j.TaskType)),
			attribute.Int("scrapequeue.attempt", j.Attempts),
			attribute.Int("scrapequeue.max_attempts", j.MaxAttempts),
			attribute.Bool("scrapequeue.needs_browser", NeedsBrowser(ctx)),
		}
		if j.HasBatch() {
			attrs = append(attrs, attribute.String("scrapequeue.batch_id", j.BatchID.String()))
		}
		if j.HasDependency() {
			attrs = append(attrs, attribute.String("scrapequeue.depends_on", j.DependsOn.String()))
		}

		ctx, span := tracer.Start(ctx, "scrapequeue.job.execute",
			trace.WithAttributes(attrs...),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		outcome := OutcomeOf(j, err)
		span.SetAttributes(attribute.String("scrapequeue.outcome", string(outcome)))
		switch outcome {
		case OutcomeCompleted:
			span.SetStatus(codes.Ok, "")
		case OutcomeRetried:
			span.RecordError(err)
		case OutcomeFailed:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}

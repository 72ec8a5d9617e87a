package job

import (
	"time"

	"github.com/google/uuid"

	"github.com/alex-monroe/scrapequeue/id"
)

// Options configures a new job.
type Options struct {
	// Priority determines claim order. Higher values are claimed first.
	Priority int

	// MaxAttempts is the number of claims allowed before the job fails.
	MaxAttempts int

	// Timeout is the per-job deadline. Zero uses the worker default.
	Timeout time.Duration

	// RunAt delays eligibility. Zero means immediately.
	RunAt time.Time

	// DependsOn makes the job wait for another job to complete.
	DependsOn id.JobID

	// BatchID groups the job with others enqueued together.
	BatchID uuid.UUID
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{MaxAttempts: 3}
}

// Option is a functional option for a new job.
type Option func(*Options)

// WithPriority sets the job priority.
func WithPriority(p int) Option {
	return func(o *Options) { o.Priority = p }
}

// WithMaxAttempts sets the attempt budget. Values below one are ignored.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxAttempts = n
		}
	}
}

// WithTimeout sets the per-job deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithRunAt schedules the job for a later time.
func WithRunAt(t time.Time) Option {
	return func(o *Options) { o.RunAt = t }
}

// WithDependsOn makes the job wait for parent to complete.
func WithDependsOn(parent id.JobID) Option {
	return func(o *Options) { o.DependsOn = parent }
}

// WithBatch assigns the job to a batch.
func WithBatch(batchID uuid.UUID) Option {
	return func(o *Options) { o.BatchID = batchID }
}

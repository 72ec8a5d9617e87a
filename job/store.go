package job

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alex-monroe/scrapequeue/id"
)

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// Status filters by job status. Empty means all statuses.
	Status Status
	// BatchID filters by batch. uuid.Nil means all batches.
	BatchID uuid.UUID
}

// Store defines the persistence contract for jobs. Every transition is a
// single conditional write: a transition whose precondition no longer
// holds fails without touching the row.
type Store interface {
	// EnqueueJob persists a new pending job. The id is set by the caller.
	EnqueueJob(ctx context.Context, j *Job) error

	// ListPending returns pending jobs with RunAt at or before now, ordered
	// by priority (descending) then creation time (ascending).
	ListPending(ctx context.Context, now time.Time) ([]*Job, error)

	// DependencyStatus returns the status of the job a dependent waits on.
	// It returns scrapequeue.ErrJobNotFound when the job does not exist.
	DependencyStatus(ctx context.Context, jobID id.JobID) (Status, error)

	// ClaimJob moves a pending job with attempts below its budget to
	// running, increments attempts and records the worker. It returns
	// scrapequeue.ErrClaimConflict when the job was no longer claimable.
	ClaimJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) (*Job, error)

	// CompleteJob moves a running job to completed.
	CompleteJob(ctx context.Context, jobID id.JobID) error

	// RescheduleJob moves a running job back to pending, recording the
	// error and the earliest time it may run again.
	RescheduleJob(ctx context.Context, jobID id.JobID, errMsg string, runAt time.Time) error

	// FailJob moves a pending or running job to failed.
	FailJob(ctx context.Context, jobID id.JobID, errMsg string) error

	// ListDependents returns pending jobs that depend on jobID.
	ListDependents(ctx context.Context, jobID id.JobID) ([]*Job, error)

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// ListRecent returns the most recently created jobs, newest first.
	ListRecent(ctx context.Context, limit int) ([]*Job, error)

	// CountJobs returns the number of jobs matching opts.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)

	// HeartbeatJob updates the heartbeat timestamp for a running job.
	HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error

	// ReapStaleJobs returns running jobs whose last heartbeat is older than
	// threshold, indicating the worker may have crashed.
	ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*Job, error)
}

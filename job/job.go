package job

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/id"
	"github.com/alex-monroe/scrapequeue/task"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	// StatusPending means the job is waiting to be claimed.
	StatusPending Status = "pending"
	// StatusRunning means a worker has claimed the job.
	StatusRunning Status = "running"
	// StatusCompleted means the handler succeeded. Terminal.
	StatusCompleted Status = "completed"
	// StatusFailed means the job ran out of attempts or its dependency
	// failed. Terminal.
	StatusFailed Status = "failed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one unit of schedulable work.
type Job struct {
	scrapequeue.Entity

	ID          id.JobID        `json:"id"`
	TaskType    task.Type       `json:"task_type"`
	Params      json.RawMessage `json:"params,omitempty"`
	Status      Status          `json:"status"`
	Priority    int             `json:"priority"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	DependsOn   id.JobID        `json:"depends_on,omitempty"`
	BatchID     uuid.UUID       `json:"batch_id,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	WorkerID    id.WorkerID     `json:"worker_id,omitempty"`
	RunAt       time.Time       `json:"run_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	HeartbeatAt *time.Time      `json:"heartbeat_at,omitempty"`
	Timeout     time.Duration   `json:"timeout,omitempty"`
}

// New builds a pending job with a fresh id. Defaults come from
// DefaultOptions and are overridden by opts.
func New(t task.Type, params json.RawMessage, opts ...Option) *Job {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	now := time.Now().UTC()
	runAt := o.RunAt
	if runAt.IsZero() {
		runAt = now
	}
	return &Job{
		Entity:      scrapequeue.Entity{CreatedAt: now, UpdatedAt: now},
		ID:          id.NewJobID(),
		TaskType:    t,
		Params:      params,
		Status:      StatusPending,
		Priority:    o.Priority,
		MaxAttempts: o.MaxAttempts,
		DependsOn:   o.DependsOn,
		BatchID:     o.BatchID,
		RunAt:       runAt,
		Timeout:     o.Timeout,
	}
}

// HasDependency reports whether the job waits on another job.
func (j *Job) HasDependency() bool { return !j.DependsOn.IsNil() }

// HasBatch reports whether the job belongs to a batch.
func (j *Job) HasBatch() bool { return j.BatchID != uuid.Nil }

// Exhausted reports whether the attempt budget is used up.
func (j *Job) Exhausted() bool { return j.Attempts >= j.MaxAttempts }

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Params != nil {
		cp.Params = append(json.RawMessage(nil), j.Params...)
	}
	cp.StartedAt = cloneTime(j.StartedAt)
	cp.CompletedAt = cloneTime(j.CompletedAt)
	cp.HeartbeatAt = cloneTime(j.HeartbeatAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/id"
	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/task"
)

// jobRow is a stored job plus its enqueue sequence number.
type jobRow struct {
	*job.Job
	seq int64
}

// EnqueueJob stores the job as a Hash and indexes it.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("scrapequeue/redis: enqueue check exists: %w", err)
	}
	if exists > 0 {
		return scrapequeue.ErrJobAlreadyExists
	}

	seq, err := s.client.Incr(ctx, seqKey).Result()
	if err != nil {
		return fmt.Errorf("scrapequeue/redis: enqueue seq: %w", err)
	}

	cp := j.Clone()
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	if cp.Status == "" {
		cp.Status = job.StatusPending
	}
	if cp.RunAt.IsZero() {
		cp.RunAt = cp.CreatedAt
	}
	fields := jobToMap(cp)
	fields["seq"] = strconv.FormatInt(seq, 10)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.ZAdd(ctx, jobIDsKey, goredis.Z{Score: float64(cp.CreatedAt.UnixMicro()), Member: jID})
	if cp.Status == job.StatusPending {
		pipe.ZAdd(ctx, pendingKey, goredis.Z{Score: float64(-cp.Priority), Member: jID})
	}
	if cp.HasDependency() {
		pipe.SAdd(ctx, dependentsKey(cp.DependsOn.String()), jID)
	}
	if cp.HasBatch() {
		pipe.SAdd(ctx, batchKey(cp.BatchID.String()), jID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("scrapequeue/redis: enqueue job: %w", err)
	}
	return nil
}

// ListPending returns pending jobs due at now, priority DESC then
// creation ASC.
func (s *Store) ListPending(ctx context.Context, now time.Time) ([]*job.Job, error) {
	ids, err := s.client.ZRange(ctx, pendingKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/redis: list pending: %w", err)
	}
	rows, err := s.loadRows(ctx, ids)
	if err != nil {
		return nil, err
	}

	due := rows[:0]
	for _, r := range rows {
		if r.Status == job.StatusPending && !r.RunAt.After(now) {
			due = append(due, r)
		}
	}
	sort.SliceStable(due, func(i, k int) bool {
		a, b := due[i], due[k]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.seq < b.seq
	})
	return jobsOf(due), nil
}

// DependencyStatus returns the status of jobID.
func (s *Store) DependencyStatus(ctx context.Context, jobID id.JobID) (job.Status, error) {
	status, err := s.client.HGet(ctx, jobKey(jobID.String()), "status").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", scrapequeue.ErrJobNotFound
		}
		return "", fmt.Errorf("scrapequeue/redis: dependency status: %w", err)
	}
	return job.Status(status), nil
}

// ClaimJob moves a claimable pending job to running atomically.
func (s *Store) ClaimJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) (*job.Job, error) {
	jID := jobID.String()
	now := time.Now().UTC()
	res, err := claimScript.Run(ctx, s.client,
		[]string{jobKey(jID), pendingKey, runningKey},
		jID, workerID.String(), now.Format(time.RFC3339Nano), now.UnixMilli(),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/redis: claim job: %w", err)
	}
	if err := scriptResult(res, scrapequeue.ErrClaimConflict); err != nil {
		return nil, err
	}
	return s.GetJob(ctx, jobID)
}

// CompleteJob moves a running job to completed.
func (s *Store) CompleteJob(ctx context.Context, jobID id.JobID) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.transition(ctx, "complete job", jobID, []job.Status{job.StatusRunning}, job.StatusCompleted,
		"completed_at", now,
		"updated_at", now,
	)
}

// RescheduleJob moves a running job back to pending, due at runAt.
func (s *Store) RescheduleJob(ctx context.Context, jobID id.JobID, errMsg string, runAt time.Time) error {
	return s.transition(ctx, "reschedule job", jobID, []job.Status{job.StatusRunning}, job.StatusPending,
		"last_error", errMsg,
		"run_at", runAt.UTC().Format(time.RFC3339Nano),
		"heartbeat_at", "",
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	)
}

// FailJob moves a pending or running job to failed.
func (s *Store) FailJob(ctx context.Context, jobID id.JobID, errMsg string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.transition(ctx, "fail job", jobID, []job.Status{job.StatusPending, job.StatusRunning}, job.StatusFailed,
		"last_error", errMsg,
		"completed_at", now,
		"updated_at", now,
	)
}

func (s *Store) transition(ctx context.Context, op string, jobID id.JobID, from []job.Status, to job.Status, fields ...string) error {
	jID := jobID.String()
	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}
	args := []any{jID, strings.Join(allowed, ","), string(to)}
	for _, f := range fields {
		args = append(args, f)
	}

	res, err := transitionScript.Run(ctx, s.client, []string{jobKey(jID), pendingKey, runningKey}, args...).Int()
	if err != nil {
		return fmt.Errorf("scrapequeue/redis: %s: %w", op, err)
	}
	return scriptResult(res, scrapequeue.ErrInvalidState)
}

// scriptResult maps a script reply to an error.
func scriptResult(res int, rejected error) error {
	switch res {
	case 1:
		return nil
	case -1:
		return scrapequeue.ErrJobNotFound
	default:
		return rejected
	}
}

// ListDependents returns pending jobs that depend on jobID, oldest first.
func (s *Store) ListDependents(ctx context.Context, jobID id.JobID) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, dependentsKey(jobID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/redis: list dependents: %w", err)
	}
	rows, err := s.loadRows(ctx, ids)
	if err != nil {
		return nil, err
	}

	pending := rows[:0]
	for _, r := range rows {
		if r.Status == job.StatusPending {
			pending = append(pending, r)
		}
	}
	sort.SliceStable(pending, func(i, k int) bool { return pending[i].seq < pending[k].seq })
	return jobsOf(pending), nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, jobKey(jobID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, scrapequeue.ErrJobNotFound
	}
	r, err := mapToJob(vals)
	if err != nil {
		return nil, err
	}
	return r.Job, nil
}

// ListRecent returns the newest jobs first. A limit of zero returns all.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*job.Job, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, jobIDsKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/redis: list recent: %w", err)
	}
	rows, err := s.loadRows(ctx, ids)
	if err != nil {
		return nil, err
	}
	return jobsOf(rows), nil
}

// CountJobs returns the number of jobs matching opts.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	var (
		ids []string
		err error
	)
	if opts.BatchID != uuid.Nil {
		ids, err = s.client.SMembers(ctx, batchKey(opts.BatchID.String())).Result()
	} else {
		ids, err = s.client.ZRange(ctx, jobIDsKey, 0, -1).Result()
	}
	if err != nil {
		return 0, fmt.Errorf("scrapequeue/redis: count jobs: %w", err)
	}
	if opts.Status == "" {
		return int64(len(ids)), nil
	}

	cmds, err := s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, jID := range ids {
			pipe.HGet(ctx, jobKey(jID), "status")
		}
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return 0, fmt.Errorf("scrapequeue/redis: count jobs: %w", err)
	}

	var count int64
	for _, cmd := range cmds {
		if status, _ := cmd.(*goredis.StringCmd).Result(); job.Status(status) == opts.Status { //nolint:errcheck // missing hashes count as no match
			count++
		}
	}
	return count, nil
}

// HeartbeatJob refreshes the heartbeat of a running job owned by workerID.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error {
	jID := jobID.String()
	now := time.Now().UTC()
	res, err := heartbeatScript.Run(ctx, s.client,
		[]string{jobKey(jID), runningKey},
		jID, workerID.String(), now.Format(time.RFC3339Nano), now.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("scrapequeue/redis: heartbeat job: %w", err)
	}
	return scriptResult(res, scrapequeue.ErrInvalidState)
}

// ReapStaleJobs returns running jobs whose last heartbeat is older than
// threshold.
func (s *Store) ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-threshold).UnixMilli()
	ids, err := s.client.ZRangeByScore(ctx, runningKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/redis: reap stale jobs: %w", err)
	}
	rows, err := s.loadRows(ctx, ids)
	if err != nil {
		return nil, err
	}

	running := rows[:0]
	for _, r := range rows {
		if r.Status == job.StatusRunning {
			running = append(running, r)
		}
	}
	return jobsOf(running), nil
}

// ── helpers ──

// loadRows fetches the hashes for ids in one pipeline, preserving order
// and skipping ids whose hash has gone.
func (s *Store) loadRows(ctx context.Context, ids []string) ([]*jobRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds, err := s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, jID := range ids {
			pipe.HGetAll(ctx, jobKey(jID))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/redis: load jobs: %w", err)
	}

	rows := make([]*jobRow, 0, len(cmds))
	for _, cmd := range cmds {
		vals, err := cmd.(*goredis.MapStringStringCmd).Result()
		if err != nil {
			return nil, fmt.Errorf("scrapequeue/redis: load jobs: %w", err)
		}
		if len(vals) == 0 {
			continue
		}
		r, err := mapToJob(vals)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func jobsOf(rows []*jobRow) []*job.Job {
	out := make([]*job.Job, len(rows))
	for i, r := range rows {
		out[i] = r.Job
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func jobToMap(j *job.Job) map[string]any {
	m := map[string]any{
		"id":           j.ID.String(),
		"task_type":    string(j.TaskType),
		"params":       string(j.Params),
		"status":       string(j.Status),
		"priority":     strconv.Itoa(j.Priority),
		"attempts":     strconv.Itoa(j.Attempts),
		"max_attempts": strconv.Itoa(j.MaxAttempts),
		"last_error":   j.LastError,
		"timeout":      strconv.FormatInt(int64(j.Timeout), 10),
		"run_at":       j.RunAt.UTC().Format(time.RFC3339Nano),
		"created_at":   j.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":   j.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if j.HasDependency() {
		m["depends_on"] = j.DependsOn.String()
	}
	if j.HasBatch() {
		m["batch_id"] = j.BatchID.String()
	}
	if !j.WorkerID.IsNil() {
		m["worker_id"] = j.WorkerID.String()
	}
	for field, t := range map[string]*time.Time{
		"started_at":   j.StartedAt,
		"completed_at": j.CompletedAt,
		"heartbeat_at": j.HeartbeatAt,
	} {
		if v := formatTime(t); v != "" {
			m[field] = v
		}
	}
	return m
}

func parseTime(v string) *time.Time {
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil
	}
	return &t
}

func mapToJob(m map[string]string) (*jobRow, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/redis: parse job id: %w", err)
	}

	priority, _ := strconv.Atoi(m["priority"])           //nolint:errcheck // best-effort parse from trusted Redis data
	attempts, _ := strconv.Atoi(m["attempts"])           //nolint:errcheck // best-effort parse from trusted Redis data
	maxAttempts, _ := strconv.Atoi(m["max_attempts"])    //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data
	seq, _ := strconv.ParseInt(m["seq"], 10, 64)         //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		ID:          jID,
		TaskType:    task.Type(m["task_type"]),
		Status:      job.Status(m["status"]),
		Priority:    priority,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		LastError:   m["last_error"],
		Timeout:     time.Duration(timeout),
		StartedAt:   parseTime(m["started_at"]),
		CompletedAt: parseTime(m["completed_at"]),
		HeartbeatAt: parseTime(m["heartbeat_at"]),
	}
	if p := m["params"]; p != "" {
		j.Params = []byte(p)
	}
	if t := parseTime(m["run_at"]); t != nil {
		j.RunAt = *t
	}
	if t := parseTime(m["created_at"]); t != nil {
		j.CreatedAt = *t
	}
	if t := parseTime(m["updated_at"]); t != nil {
		j.UpdatedAt = *t
	}
	// A lost link would make a dependent eligible before its parent.
	if v := m["depends_on"]; v != "" {
		if j.DependsOn, err = id.ParseJobID(v); err != nil {
			return nil, fmt.Errorf("scrapequeue/redis: job %s: depends_on: %w", jID, err)
		}
	}
	if v := m["batch_id"]; v != "" {
		if j.BatchID, err = uuid.Parse(v); err != nil {
			return nil, fmt.Errorf("scrapequeue/redis: job %s: batch_id: %w", jID, err)
		}
	}
	if v := m["worker_id"]; v != "" {
		j.WorkerID, _ = id.ParseWorkerID(v) //nolint:errcheck // informational only
	}

	return &jobRow{Job: j, seq: seq}, nil
}

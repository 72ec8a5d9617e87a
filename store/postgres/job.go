package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/id"
	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/task"
)

const jobColumns = `
	id, task_type, params, status, priority, attempts, max_attempts,
	depends_on, batch_id, last_error, worker_id, timeout,
	run_at, started_at, completed_at, heartbeat_at, created_at, updated_at`

// EnqueueJob persists a new job in pending state.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	params := j.Params
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	status := j.Status
	if status == "" {
		status = job.StatusPending
	}
	now := time.Now().UTC()
	createdAt := j.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	runAt := j.RunAt
	if runAt.IsZero() {
		runAt = createdAt
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO scraper_jobs (`+jobColumns+`
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18
		)`,
		j.ID, string(j.TaskType), params, string(status), j.Priority, j.Attempts, j.MaxAttempts,
		j.DependsOn, nullUUID(j.BatchID), j.LastError, j.WorkerID, j.Timeout.Nanoseconds(),
		runAt, j.StartedAt, j.CompletedAt, j.HeartbeatAt, createdAt, now,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return scrapequeue.ErrJobAlreadyExists
		}
		return fmt.Errorf("scrapequeue/postgres: enqueue job: %w", err)
	}
	return nil
}

// ListPending returns pending jobs due at now, priority DESC then
// creation ASC.
func (s *Store) ListPending(ctx context.Context, now time.Time) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM scraper_jobs
		WHERE status = 'pending' AND run_at <= $1
		ORDER BY priority DESC, created_at ASC, seq ASC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/postgres: list pending: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// DependencyStatus returns the status of jobID.
func (s *Store) DependencyStatus(ctx context.Context, jobID id.JobID) (job.Status, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM scraper_jobs WHERE id = $1`, jobID).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return "", scrapequeue.ErrJobNotFound
		}
		return "", fmt.Errorf("scrapequeue/postgres: dependency status: %w", err)
	}
	return job.Status(status), nil
}

// ClaimJob moves a claimable pending job to running in one conditional
// UPDATE. A lost race returns ErrClaimConflict.
func (s *Store) ClaimJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE scraper_jobs
		SET status = 'running',
			attempts = attempts + 1,
			worker_id = $2,
			started_at = $3,
			heartbeat_at = $3,
			updated_at = $3
		WHERE id = $1
		  AND status = 'pending'
		  AND attempts < max_attempts
		RETURNING `+jobColumns,
		jobID, workerID, time.Now().UTC(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, s.missOr(ctx, jobID, scrapequeue.ErrClaimConflict)
		}
		return nil, fmt.Errorf("scrapequeue/postgres: claim job: %w", err)
	}
	return j, nil
}

// CompleteJob moves a running job to completed.
func (s *Store) CompleteJob(ctx context.Context, jobID id.JobID) error {
	now := time.Now().UTC()
	return s.transition(ctx, "complete job", jobID, `
		UPDATE scraper_jobs
		SET status = 'completed', completed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'running'`,
		jobID, now,
	)
}

// RescheduleJob moves a running job back to pending, due at runAt.
func (s *Store) RescheduleJob(ctx context.Context, jobID id.JobID, errMsg string, runAt time.Time) error {
	return s.transition(ctx, "reschedule job", jobID, `
		UPDATE scraper_jobs
		SET status = 'pending', last_error = $2, run_at = $3,
			heartbeat_at = NULL, updated_at = $4
		WHERE id = $1 AND status = 'running'`,
		jobID, errMsg, runAt.UTC(), time.Now().UTC(),
	)
}

// FailJob moves a pending or running job to failed.
func (s *Store) FailJob(ctx context.Context, jobID id.JobID, errMsg string) error {
	now := time.Now().UTC()
	return s.transition(ctx, "fail job", jobID, `
		UPDATE scraper_jobs
		SET status = 'failed', last_error = $2, completed_at = $3, updated_at = $3
		WHERE id = $1 AND status IN ('pending', 'running')`,
		jobID, errMsg, now,
	)
}

// transition runs a conditional UPDATE. When it matches nothing the job
// is either missing or in a state the transition does not allow.
func (s *Store) transition(ctx context.Context, op string, jobID id.JobID, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("scrapequeue/postgres: %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOr(ctx, jobID, scrapequeue.ErrInvalidState)
	}
	return nil
}

// missOr returns ErrJobNotFound when jobID does not exist and fallback
// otherwise.
func (s *Store) missOr(ctx context.Context, jobID id.JobID, fallback error) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM scraper_jobs WHERE id = $1)`, jobID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("scrapequeue/postgres: check job: %w", err)
	}
	if !exists {
		return scrapequeue.ErrJobNotFound
	}
	return fallback
}

// ListDependents returns pending jobs that depend on jobID, oldest first.
func (s *Store) ListDependents(ctx context.Context, jobID id.JobID) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM scraper_jobs
		WHERE depends_on = $1 AND status = 'pending'
		ORDER BY created_at ASC, seq ASC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/postgres: list dependents: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM scraper_jobs WHERE id = $1`, jobID)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, scrapequeue.ErrJobNotFound
		}
		return nil, fmt.Errorf("scrapequeue/postgres: get job: %w", err)
	}
	return j, nil
}

// ListRecent returns the newest jobs first. A limit of zero returns all.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scraper_jobs ORDER BY created_at DESC, seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/postgres: list recent: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs matching opts.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM scraper_jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(opts.Status))
		argIdx++
	}
	if opts.BatchID != uuid.Nil {
		query += fmt.Sprintf(" AND batch_id = $%d", argIdx)
		args = append(args, opts.BatchID)
	}

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("scrapequeue/postgres: count jobs: %w", err)
	}
	return count, nil
}

// HeartbeatJob refreshes the heartbeat of a running job owned by workerID.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error {
	now := time.Now().UTC()
	return s.transition(ctx, "heartbeat job", jobID, `
		UPDATE scraper_jobs SET heartbeat_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'running' AND worker_id = $2`,
		jobID, workerID, now,
	)
}

// ReapStaleJobs returns running jobs whose last heartbeat is older than
// threshold.
func (s *Store) ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM scraper_jobs
		WHERE status = 'running'
		  AND heartbeat_at IS NOT NULL
		  AND heartbeat_at < $1`,
		time.Now().UTC().Add(-threshold),
	)
	if err != nil {
		return nil, fmt.Errorf("scrapequeue/postgres: reap stale jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// scanJob scans a single job row.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j         job.Job
		taskType  string
		status    string
		batchID   *uuid.UUID
		timeoutNs int64
	)
	err := row.Scan(
		&j.ID, &taskType, &j.Params, &status, &j.Priority, &j.Attempts, &j.MaxAttempts,
		&j.DependsOn, &batchID, &j.LastError, &j.WorkerID, &timeoutNs,
		&j.RunAt, &j.StartedAt, &j.CompletedAt, &j.HeartbeatAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.TaskType = task.Type(taskType)
	j.Status = job.Status(status)
	j.Timeout = time.Duration(timeoutNs)
	if batchID != nil {
		j.BatchID = *batchID
	}
	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scrapequeue/postgres: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scrapequeue/postgres: iterate job rows: %w", err)
	}
	return jobs, nil
}

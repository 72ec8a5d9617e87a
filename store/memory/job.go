package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/id"
	"github.com/alex-monroe/scrapequeue/job"
)

// EnqueueJob persists a new job in pending state.
func (m *Store) EnqueueJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[j.ID]; exists {
		return scrapequeue.ErrJobAlreadyExists
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
	m.seq++
	m.jobs[j.ID] = &jobRow{job: cp, seq: m.seq}
	return nil
}

// ListPending returns pending jobs due at now, priority DESC then
// creation ASC.
func (m *Store) ListPending(_ context.Context, now time.Time) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]*jobRow, 0, len(m.jobs))
	for _, r := range m.jobs {
		if r.job.Status != job.StatusPending || r.job.RunAt.After(now) {
			continue
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, k int) bool {
		a, b := rows[i], rows[k]
		if a.job.Priority != b.job.Priority {
			return a.job.Priority > b.job.Priority
		}
		if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
			return a.job.CreatedAt.Before(b.job.CreatedAt)
		}
		return a.seq < b.seq
	})
	return clones(rows), nil
}

// DependencyStatus returns the status of jobID.
func (m *Store) DependencyStatus(_ context.Context, jobID id.JobID) (job.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.jobs[jobID]
	if !ok {
		return "", scrapequeue.ErrJobNotFound
	}
	return r.job.Status, nil
}

// ClaimJob moves a claimable pending job to running.
func (m *Store) ClaimJob(_ context.Context, jobID id.JobID, workerID id.WorkerID) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.jobs[jobID]
	if !ok {
		return nil, scrapequeue.ErrJobNotFound
	}
	j := r.job
	if j.Status != job.StatusPending || j.Attempts >= j.MaxAttempts {
		return nil, scrapequeue.ErrClaimConflict
	}
	now := time.Now().UTC()
	j.Status = job.StatusRunning
	j.Attempts++
	j.WorkerID = workerID
	j.StartedAt = &now
	j.HeartbeatAt = &now
	j.UpdatedAt = now
	return j.Clone(), nil
}

// CompleteJob moves a running job to completed.
func (m *Store) CompleteJob(_ context.Context, jobID id.JobID) error {
	return m.transition(jobID, []job.Status{job.StatusRunning}, func(j *job.Job, now time.Time) {
		j.Status = job.StatusCompleted
		j.CompletedAt = &now
	})
}

// RescheduleJob moves a running job back to pending.
func (m *Store) RescheduleJob(_ context.Context, jobID id.JobID, errMsg string, runAt time.Time) error {
	return m.transition(jobID, []job.Status{job.StatusRunning}, func(j *job.Job, _ time.Time) {
		j.Status = job.StatusPending
		j.LastError = errMsg
		j.RunAt = runAt.UTC()
		j.HeartbeatAt = nil
	})
}

// FailJob moves a pending or running job to failed.
func (m *Store) FailJob(_ context.Context, jobID id.JobID, errMsg string) error {
	return m.transition(jobID, []job.Status{job.StatusPending, job.StatusRunning}, func(j *job.Job, now time.Time) {
		j.Status = job.StatusFailed
		j.LastError = errMsg
		j.CompletedAt = &now
	})
}

func (m *Store) transition(jobID id.JobID, from []job.Status, apply func(*job.Job, time.Time)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.jobs[jobID]
	if !ok {
		return scrapequeue.ErrJobNotFound
	}
	allowed := false
	for _, s := range from {
		if r.job.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return scrapequeue.ErrInvalidState
	}
	now := time.Now().UTC()
	apply(r.job, now)
	r.job.UpdatedAt = now
	return nil
}

// ListDependents returns pending jobs that depend on jobID, oldest first.
func (m *Store) ListDependents(_ context.Context, jobID id.JobID) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []*jobRow
	for _, r := range m.jobs {
		if r.job.Status == job.StatusPending && r.job.DependsOn == jobID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, k int) bool { return rows[i].seq < rows[k].seq })
	return clones(rows), nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.jobs[jobID]
	if !ok {
		return nil, scrapequeue.ErrJobNotFound
	}
	return r.job.Clone(), nil
}

// ListRecent returns the newest jobs first. A limit of zero returns all.
func (m *Store) ListRecent(_ context.Context, limit int) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]*jobRow, 0, len(m.jobs))
	for _, r := range m.jobs {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, k int) bool {
		a, b := rows[i], rows[k]
		if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
			return a.job.CreatedAt.After(b.job.CreatedAt)
		}
		return a.seq > b.seq
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return clones(rows), nil
}

// CountJobs returns the number of jobs matching opts.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, r := range m.jobs {
		if opts.Status != "" && r.job.Status != opts.Status {
			continue
		}
		if opts.BatchID != uuid.Nil && r.job.BatchID != opts.BatchID {
			continue
		}
		count++
	}
	return count, nil
}

// HeartbeatJob refreshes the heartbeat of a running job owned by workerID.
func (m *Store) HeartbeatJob(_ context.Context, jobID id.JobID, workerID id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.jobs[jobID]
	if !ok {
		return scrapequeue.ErrJobNotFound
	}
	if r.job.Status != job.StatusRunning || r.job.WorkerID != workerID {
		return scrapequeue.ErrInvalidState
	}
	now := time.Now().UTC()
	r.job.HeartbeatAt = &now
	return nil
}

// ReapStaleJobs returns running jobs whose last heartbeat is older than
// threshold.
func (m *Store) ReapStaleJobs(_ context.Context, threshold time.Duration) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-threshold)
	var stale []*job.Job
	for _, r := range m.jobs {
		if r.job.Status != job.StatusRunning {
			continue
		}
		if r.job.HeartbeatAt != nil && r.job.HeartbeatAt.Before(cutoff) {
			stale = append(stale, r.job.Clone())
		}
	}
	return stale, nil
}

func clones(rows []*jobRow) []*job.Job {
	out := make([]*job.Job, len(rows))
	for i, r := range rows {
		out[i] = r.job.Clone()
	}
	return out
}

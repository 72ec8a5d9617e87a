// Package job defines the job entity, its lifecycle and the store
// interface.
//
// # Job Entity
//
// A [Job] is one unit of work. It embeds [scrapequeue.Entity] for
// timestamps, carries opaque JSON params for its [task.Type] handler and
// moves through a small state machine:
//
//	pending → running → completed
//	pending → running → pending (retry) → running → ...
//	pending → running → failed
//	pending → failed (dependency failed)
//
// completed and failed are terminal. Stores reject further transitions
// with [scrapequeue.ErrInvalidState].
//
// Fields of note:
//   - Priority: higher values are claimed first, ties by creation time
//   - Attempts / MaxAttempts: incremented on each claim, bounded
//   - DependsOn: the job is eligible only once this job has completed
//   - BatchID: shared by a batch and every child its jobs create
//   - RunAt: earliest time the job may be claimed (retry backoff)
//   - Timeout: per-job execution deadline (zero = worker default)
//
// # Store
//
// [Store] is implemented by store/memory, store/postgres and store/redis.
// ClaimJob is the only way into running and is a conditional update, so
// two workers racing for the same job cannot both win.
package job

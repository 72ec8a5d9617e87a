package redis

// Redis key naming conventions. All keys are prefixed with "scrapequeue:"
// to avoid collisions.

const keyPrefix = "scrapequeue:"

// jobKey returns the Hash key for a job: scrapequeue:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// dependentsKey returns the Set of jobs depending on id.
func dependentsKey(id string) string { return keyPrefix + "dependents:" + id }

// batchKey returns the Set of jobs in a batch.
func batchKey(batchID string) string { return keyPrefix + "batch:" + batchID }

// jobIDsKey is the Sorted Set of every job scored by creation time.
const jobIDsKey = keyPrefix + "job_ids"

// pendingKey is the Sorted Set of pending jobs scored by negated priority.
const pendingKey = keyPrefix + "pending"

// runningKey is the Sorted Set of running jobs scored by last heartbeat
// in Unix milliseconds.
const runningKey = keyPrefix + "running"

// seqKey is the counter that breaks creation-time ties.
const seqKey = keyPrefix + "seq"

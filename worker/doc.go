// Package worker runs jobs. An [Executor] takes one claimed job through
// middleware and its handler and records the outcome. A [Scheduler] owns a
// worker run: it claims eligible jobs in priority order, hands them to the
// executor, heartbeats running jobs, reaps stale ones and tears the shared
// browser down when the run ends.
//
// A job whose dependency failed, or no longer exists, is failed as soon as
// it is seen, and failing a job fails every pending job below it.
package worker

// Package cron enqueues work on a schedule inside a long-running worker.
//
// Each [Entry] pairs a cron expression with a [FireFunc]. The engine
// registers one entry, "batch", that enqueues the full scraping pipeline
// when Config.BatchSchedule is set. Entries live in memory; a worker that
// restarts recomputes NextRunAt from its start time and does not catch up
// on runs it missed.
//
// # Schedules
//
// Standard five-field expressions ("0 6 * * 2") and descriptors
// ("@daily", "@every 6h") are accepted.
//
// # Scheduler
//
// The [Scheduler] checks due entries on every tick, calls their FireFunc
// and advances NextRunAt. A failed fire is logged and recorded on the
// entry; the entry still advances so a broken store does not produce a
// burst of duplicate batches once it recovers.
package cron

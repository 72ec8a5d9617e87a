// Package scrapequeue is a persistent job queue for dependency-ordered
// data-acquisition work: bulk stat pulls, browser-driven roster scraping and
// per-player detail scraping.
//
// Jobs live in a store (Postgres, Redis or memory) and form a DAG through
// DependsOn. A worker repeatedly claims the next eligible job with an atomic
// conditional update, dispatches it through the task registry, and either
// completes it (inserting any child jobs the handler returned) or sends it
// back through the bounded retry path. A single headless browser session is
// created lazily on the first job that needs it and torn down when the run
// ends.
//
// # Quick Start
//
//	cfg, err := scrapequeue.LoadConfig()
//	eng, err := engine.New(ctx, cfg)
//	defer eng.Close()
//
//	batch, err := eng.Client().Batch(ctx, client.BatchRequest{Season: 2025, LeagueID: 309})
//	err = eng.Run(ctx) // drains, or polls when cfg.Poll is set
//
// # Architecture
//
// The root package holds shared configuration, sentinel errors and the
// Entity timestamps embedded by stored records. Subsystems import it; it
// imports none of them. The engine package wires the subsystems together.
//
// Job ids are TypeIDs (prefix "job"), K-sortable and URL-safe. Batch ids
// and player ids are UUIDs.
package scrapequeue

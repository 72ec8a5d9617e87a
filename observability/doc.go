// Package observability exposes queue state to Prometheus. The
// JobCollector reads job counts from the store on every scrape, so the
// gauges reflect the shared queue rather than one process.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability

package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alex-monroe/scrapequeue/job"
)

// Namespace prefixes every metric name.
const Namespace = "scrapequeue"

// Compile-time interface check.
var _ prometheus.Collector = (*JobCollector)(nil)

// Counter is the subset of job.Store the collector needs.
type Counter interface {
	CountJobs(ctx context.Context, opts job.CountOpts) (int64, error)
}

// CollectorOption configures a JobCollector.
type CollectorOption func(*JobCollector)

// WithTimeout bounds the store queries made during one scrape.
func WithTimeout(d time.Duration) CollectorOption {
	return func(c *JobCollector) { c.timeout = d }
}

// WithLogger sets the logger used for store errors.
func WithLogger(l *slog.Logger) CollectorOption {
	return func(c *JobCollector) { c.logger = l }
}

// JobCollector reports scrapequeue_jobs{status} gauges and a
// scrapequeue_store_up gauge that drops to 0 when counting fails.
type JobCollector struct {
	store   Counter
	timeout time.Duration
	logger  *slog.Logger

	jobs *prometheus.Desc
	up   *prometheus.Desc
}

// NewJobCollector creates a collector backed by store.
func NewJobCollector(store Counter, opts ...CollectorOption) *JobCollector {
	c := &JobCollector{
		store:   store,
		timeout: 5 * time.Second,
		logger:  slog.Default(),
		jobs: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "", "jobs"),
			"Number of jobs in the queue by status.",
			[]string{"status"}, nil,
		),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "store", "up"),
			"Whether the last job count query succeeded.",
			nil, nil,
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *JobCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobs
	ch <- c.up
}

// Collect implements prometheus.Collector. Counts are all-or-nothing:
// when any status fails, no job gauges are emitted for this scrape.
func (c *JobCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	counts := make([]int64, len(job.Statuses))
	for i, st := range job.Statuses {
		n, err := c.store.CountJobs(ctx, job.CountOpts{Status: st})
		if err != nil {
			c.logger.Warn("job count failed",
				slog.String("status", string(st)),
				slog.String("error", err.Error()),
			)
			ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
			return
		}
		counts[i] = n
	}

	for i, st := range job.Statuses {
		ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue, float64(counts[i]), string(st))
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
}

// NewRegistry returns a registry holding the job collector plus the
// standard Go and process collectors.
func NewRegistry(store Counter, opts ...CollectorOption) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewJobCollector(store, opts...),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

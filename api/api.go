// Package api serves the scrapequeue HTTP API: health probes, job
// inspection, enqueueing single jobs and batches, and Prometheus metrics.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alex-monroe/scrapequeue/client"
	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/observability"
)

// Store is what the API reads from.
type Store interface {
	job.Store
	Ping(ctx context.Context) error
}

// API wires the HTTP handlers together.
type API struct {
	store    Store
	client   *client.Client
	logger   *slog.Logger
	registry *prometheus.Registry
	timeout  time.Duration
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithRegistry serves /metrics from reg instead of a registry built around
// the store's job counts.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *API) { a.registry = reg }
}

// WithReadyTimeout bounds the store ping behind /readyz.
func WithReadyTimeout(d time.Duration) Option {
	return func(a *API) { a.timeout = d }
}

// New creates an API over store. Enqueue requests go through c.
func New(store Store, c *client.Client, opts ...Option) *API {
	a := &API{
		store:   store,
		client:  c,
		logger:  slog.Default(),
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.registry == nil {
		a.registry = observability.NewRegistry(store, observability.WithLogger(a.logger))
	}
	return a
}

// Handler returns a gin engine with every route registered.
func (a *API) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(a.logger))
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the API routes on r.
func (a *API) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", a.healthz)
	r.GET("/readyz", a.readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	v1.GET("/jobs", a.listJobs)
	v1.GET("/jobs/counts", a.jobCounts)
	v1.GET("/jobs/:id", a.getJob)
	v1.POST("/jobs", a.createJob)
	v1.POST("/batches", a.createBatch)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

func (a *API) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), a.timeout)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		a.logger.Warn("readiness check failed", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": "store ping failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true, "timestamp": time.Now().UTC()})
}

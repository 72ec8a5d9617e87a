package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/client"
	"github.com/alex-monroe/scrapequeue/id"
	"github.com/alex-monroe/scrapequeue/job"
	"github.com/alex-monroe/scrapequeue/task"
)

// CreateJobRequest is the body of POST /api/v1/jobs.
type CreateJobRequest struct {
	TaskType    string          `json:"task_type" binding:"required"`
	Params      json.RawMessage `json:"params"`
	Priority    int             `json:"priority"`
	MaxAttempts int             `json:"max_attempts" binding:"gte=0"`
	DependsOn   string          `json:"depends_on"`
	RunAt       *time.Time      `json:"run_at"`
}

// JobCountsResponse holds the number of jobs in each status.
type JobCountsResponse struct {
	Pending   int64 `json:"pending"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// MaxListLimit caps the limit query parameter of GET /api/v1/jobs.
const MaxListLimit = 500

// GET /api/v1/jobs?limit=
func (a *API) listJobs(c *gin.Context) {
	limit := client.DefaultStatusLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, MaxListLimit)
	}

	report, err := a.client.Status(c.Request.Context(), limit)
	if err != nil {
		a.internalError(c, "list jobs failed", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GET /api/v1/jobs/counts
func (a *API) jobCounts(c *gin.Context) {
	var resp JobCountsResponse
	for _, st := range job.Statuses {
		n, err := a.store.CountJobs(c.Request.Context(), job.CountOpts{Status: st})
		if err != nil {
			a.internalError(c, "count jobs failed", err)
			return
		}
		switch st {
		case job.StatusPending:
			resp.Pending = n
		case job.StatusRunning:
			resp.Running = n
		case job.StatusCompleted:
			resp.Completed = n
		case job.StatusFailed:
			resp.Failed = n
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/v1/jobs/:id
func (a *API) getJob(c *gin.Context) {
	jobID, err := id.ParseJobID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id", "detail": err.Error()})
		return
	}

	j, err := a.store.GetJob(c.Request.Context(), jobID)
	if errors.Is(err, scrapequeue.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		a.internalError(c, "get job failed", err)
		return
	}
	c.JSON(http.StatusOK, j)
}

// POST /api/v1/jobs
func (a *API) createJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}

	t, err := task.ParseType(req.TaskType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown task type", "detail": err.Error()})
		return
	}

	opts := []job.Option{job.WithPriority(req.Priority)}
	if req.MaxAttempts > 0 {
		opts = append(opts, job.WithMaxAttempts(req.MaxAttempts))
	}
	if req.RunAt != nil {
		opts = append(opts, job.WithRunAt(*req.RunAt))
	}
	if req.DependsOn != "" {
		parent, err := id.ParseJobID(req.DependsOn)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid depends_on", "detail": err.Error()})
			return
		}
		opts = append(opts, job.WithDependsOn(parent))
	}

	j, err := a.client.Enqueue(c.Request.Context(), t, req.Params, opts...)
	if err != nil {
		a.internalError(c, "enqueue failed", err)
		return
	}
	c.JSON(http.StatusCreated, j)
}

// POST /api/v1/batches
func (a *API) createBatch(c *gin.Context) {
	var req client.BatchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
			return
		}
	}

	b, err := a.client.Batch(c.Request.Context(), req)
	if err != nil {
		a.internalError(c, "enqueue batch failed", err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (a *API) internalError(c *gin.Context, msg string, err error) {
	a.logger.Error(msg,
		slog.String("path", c.FullPath()),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "detail": err.Error()})
}

package task

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/alex-monroe/scrapequeue/browser"
	"github.com/alex-monroe/scrapequeue/id"
)

// Env is the per-job context passed to a handler.
type Env struct {
	// Logger is pre-populated with the job id and task type.
	Logger *slog.Logger

	// Cache holds data published by earlier jobs of the same run.
	Cache *RunCache

	// Browser is the shared session. It is nil for task types that were
	// not registered as needing a browser.
	Browser browser.Session

	JobID   id.JobID
	BatchID uuid.UUID
}

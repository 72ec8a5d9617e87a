package cron

import (
	"context"
	"time"
)

// FireFunc runs when an entry is due. The returned reference (a batch id,
// for instance) is recorded on the entry and logged.
type FireFunc func(ctx context.Context) (string, error)

// Entry is a snapshot of a registered schedule.
type Entry struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Enabled   bool       `json:"enabled"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt time.Time  `json:"next_run_at"`
	LastRef   string     `json:"last_ref,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Runs      int        `json:"runs"`
}

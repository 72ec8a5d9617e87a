package scrapequeue

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("scrapequeue: no store configured")
	ErrUnknownStore    = errors.New("scrapequeue: unknown store backend")
	ErrMigrationFailed = errors.New("scrapequeue: migration failed")

	// Not found errors.
	ErrJobNotFound    = errors.New("scrapequeue: job not found")
	ErrPlayerNotFound = errors.New("scrapequeue: player not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("scrapequeue: job already exists")
	ErrClaimConflict    = errors.New("scrapequeue: job no longer claimable")

	// State errors.
	ErrInvalidState = errors.New("scrapequeue: invalid state transition")

	// Task errors.
	ErrUnknownTaskType    = errors.New("scrapequeue: unknown task type")
	ErrBrowserUnavailable = errors.New("scrapequeue: browser unavailable")
)

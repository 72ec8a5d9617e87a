// Package throttle applies per-task-type rate and concurrency limits.
//
// Limits are configured per task type:
//
//	throttle.NewManager(
//	    throttle.Config{Type: task.ScrapePlayerCard, RateLimit: 0.5},
//	    throttle.Config{Type: task.ScrapeRoster, MaxConcurrency: 1},
//	)
//
// Task types without a Config run unthrottled beyond the worker's own
// concurrency.
package throttle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/alex-monroe/scrapequeue/task"
)

// Config limits one task type.
type Config struct {
	Type task.Type

	// MaxConcurrency caps how many jobs of Type run at once in this
	// process. Zero means no cap.
	MaxConcurrency int

	// RateLimit is the sustained number of job starts per second. Zero
	// disables rate limiting.
	RateLimit float64

	// RateBurst is the token bucket size. Defaults to 1.
	RateBurst int
}

type typeState struct {
	limiter *rate.Limiter
	sem     *semaphore.Weighted

	mu     sync.Mutex
	active int
}

// Manager gates job starts. It is safe for concurrent use.
type Manager struct {
	types map[task.Type]*typeState
}

// NewManager creates a Manager from configs. A later config for the same
// type replaces an earlier one.
func NewManager(configs ...Config) *Manager {
	m := &Manager{types: make(map[task.Type]*typeState, len(configs))}
	for _, cfg := range configs {
		ts := &typeState{}
		if cfg.RateLimit > 0 {
			burst := cfg.RateBurst
			if burst <= 0 {
				burst = 1
			}
			ts.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
		}
		if cfg.MaxConcurrency > 0 {
			ts.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrency))
		}
		m.types[cfg.Type] = ts
	}
	return m
}

// Acquire blocks until a job of type t may start or ctx is done. The
// returned release func must be called when the job finishes.
func (m *Manager) Acquire(ctx context.Context, t task.Type) (release func(), err error) {
	ts := m.types[t]
	if ts == nil {
		return func() {}, nil
	}
	if ts.sem != nil {
		if err := ts.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("throttle %s: %w", t, err)
		}
	}
	if ts.limiter != nil {
		if err := ts.limiter.Wait(ctx); err != nil {
			if ts.sem != nil {
				ts.sem.Release(1)
			}
			return nil, fmt.Errorf("throttle %s: %w", t, err)
		}
	}

	ts.mu.Lock()
	ts.active++
	ts.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ts.mu.Lock()
			ts.active--
			ts.mu.Unlock()
			if ts.sem != nil {
				ts.sem.Release(1)
			}
		})
	}, nil
}

// ActiveCount returns the number of running jobs of type t that hold a
// slot.
func (m *Manager) ActiveCount(t task.Type) int {
	ts := m.types[t]
	if ts == nil {
		return 0
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.active
}

// ParseConfigs parses a comma separated list of limits of the form
// type=rate[/concurrency], e.g. "scrape_player_card=0.5,scrape_roster=1/1".
// A rate of 0 leaves only the concurrency cap.
func ParseConfigs(s string) ([]Config, error) {
	var out []Config
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, spec, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("throttle: %q: want type=rate[/concurrency]", part)
		}
		t, err := task.ParseType(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		cfg := Config{Type: t}
		rateStr, concStr, hasConc := strings.Cut(spec, "/")
		if cfg.RateLimit, err = strconv.ParseFloat(strings.TrimSpace(rateStr), 64); err != nil || cfg.RateLimit < 0 {
			return nil, fmt.Errorf("throttle: %q: invalid rate", part)
		}
		if hasConc {
			if cfg.MaxConcurrency, err = strconv.Atoi(strings.TrimSpace(concStr)); err != nil || cfg.MaxConcurrency < 0 {
				return nil, fmt.Errorf("throttle: %q: invalid concurrency", part)
			}
		}
		out = append(out, cfg)
	}
	return out, nil
}

package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// ErrEntryNotFound is returned for an unknown entry name.
var ErrEntryNotFound = errors.New("cron: entry not found")

// ErrDuplicateEntry is returned when an entry name is registered twice.
var ErrDuplicateEntry = errors.New("cron: entry already registered")

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

type entry struct {
	Entry
	sched cronlib.Schedule
	fire  FireFunc
}

// Scheduler fires registered entries on a tick loop.
type Scheduler struct {
	logger       *slog.Logger
	tickInterval time.Duration
	now          func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler with no entries.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		logger:       slog.Default(),
		tickInterval: time.Second,
		now:          time.Now,
		entries:      make(map[string]*entry),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds an enabled entry. Its first run is the schedule's next
// activation after now.
func (s *Scheduler) Register(name, expr string, fn FireFunc) error {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return fmt.Errorf("cron: invalid schedule %q: %w", expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, name)
	}
	s.entries[name] = &entry{
		Entry: Entry{
			Name:      name,
			Schedule:  expr,
			Enabled:   true,
			NextRunAt: sched.Next(s.now().UTC()),
		},
		sched: sched,
		fire:  fn,
	}

	s.logger.Info("cron registered",
		slog.String("name", name),
		slog.String("schedule", expr),
		slog.Time("next_run_at", s.entries[name].NextRunAt),
	)
	return nil
}

// Enable turns an entry on. NextRunAt is recomputed from now so a long
// disabled entry does not fire immediately.
func (s *Scheduler) Enable(name string) error {
	return s.update(name, func(e *entry) {
		if !e.Enabled {
			e.Enabled = true
			e.NextRunAt = e.sched.Next(s.now().UTC())
		}
	})
}

// Disable stops an entry from firing.
func (s *Scheduler) Disable(name string) error {
	return s.update(name, func(e *entry) { e.Enabled = false })
}

func (s *Scheduler) update(name string, fn func(*entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	fn(e)
	return nil
}

// Entry returns a snapshot of the named entry.
func (s *Scheduler) Entry(name string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	return e.snapshot(), nil
}

// Entries returns snapshots of every entry, sorted by name.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

func (e *entry) snapshot() Entry {
	cp := e.Entry
	if e.LastRunAt != nil {
		t := *e.LastRunAt
		cp.LastRunAt = &t
	}
	return cp
}

// Start launches the tick goroutine. Stop or cancelling ctx ends it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.tickLoop(ctx)
	s.logger.Info("cron scheduler started",
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop signals the scheduler to stop and waits for the tick goroutine.
// A fire in progress completes first.
func (s *Scheduler) Stop(_ context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
	return nil
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().UTC()

	s.mu.Lock()
	var due []*entry
	for _, e := range s.entries {
		if e.Enabled && !e.NextRunAt.After(now) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.fireEntry(ctx, e, now)
	}
}

func (s *Scheduler) fireEntry(ctx context.Context, e *entry, now time.Time) {
	ref, err := e.fire(ctx)

	s.mu.Lock()
	e.LastRunAt = &now
	e.NextRunAt = e.sched.Next(now)
	e.Runs++
	e.LastRef = ref
	e.LastError = ""
	if err != nil {
		e.LastError = err.Error()
	}
	next := e.NextRunAt
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("cron fire error",
			slog.String("cron_name", e.Name),
			slog.String("error", err.Error()),
			slog.Time("next_run_at", next),
		)
		return
	}
	s.logger.Info("cron fired",
		slog.String("cron_name", e.Name),
		slog.String("ref", ref),
		slog.Time("next_run_at", next),
	)
}

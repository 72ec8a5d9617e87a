package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	scrapequeue "github.com/alex-monroe/scrapequeue"
)

// Tab is one isolated page inside the shared session. A tab is used by a
// single task and closed when the task returns.
type Tab interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// Click clicks the first element matching selector. Selectors are CSS
	// unless they start with "/", in which case they are XPath.
	Click(ctx context.Context, selector string) error
	// WaitVisible blocks until an element matching the CSS selector is
	// visible.
	WaitVisible(ctx context.Context, selector string) error
	// HTML returns the outer HTML of the current document.
	HTML(ctx context.Context) (string, error)
	// Close closes the tab.
	Close() error
}

// Session hands out tabs.
type Session interface {
	NewTab(ctx context.Context) (Tab, error)
}

// Instance is a launched browser.
type Instance interface {
	Session
	Close() error
}

// Launcher starts a browser instance.
type Launcher interface {
	Launch(ctx context.Context) (Instance, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context) (Instance, error)

// Launch calls f(ctx).
func (f LauncherFunc) Launch(ctx context.Context) (Instance, error) { return f(ctx) }

// Manager lazily provisions at most one browser instance and tears it down
// on Close. It is safe for concurrent use.
type Manager struct {
	launcher Launcher
	limiter  *rate.Limiter
	logger   *slog.Logger

	mu       sync.Mutex
	inst     Instance
	launches int
	closed   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLauncher replaces the chromedp launcher.
func WithLauncher(l Launcher) Option {
	return func(m *Manager) { m.launcher = l }
}

// WithRate limits page navigations across all tabs to perPerSecond.
// Zero or negative means unlimited.
func WithRate(perSecond float64) Option {
	return func(m *Manager) {
		if perSecond > 0 {
			m.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager. Nothing is launched until Session is called.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		launcher: NewChromeLauncher(),
		limiter:  rate.NewLimiter(rate.Inf, 0),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Session returns the shared session, launching the browser if it is not
// running yet. A failed launch is not cached: the next call tries again.
func (m *Manager) Session(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("%w: manager closed", scrapequeue.ErrBrowserUnavailable)
	}
	if m.inst != nil {
		return &limitedSession{inner: m.inst, limiter: m.limiter}, nil
	}

	m.logger.Info("launching browser")
	inst, err := m.launcher.Launch(ctx)
	if err != nil {
		m.logger.Error("browser launch failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", scrapequeue.ErrBrowserUnavailable, err)
	}
	m.inst = inst
	m.launches++
	return &limitedSession{inner: inst, limiter: m.limiter}, nil
}

// Launches reports how many browser instances this manager has started.
func (m *Manager) Launches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.launches
}

// Running reports whether a browser instance is currently live.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inst != nil
}

// Close shuts the browser down. It is idempotent and safe to defer.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.inst == nil {
		return nil
	}
	err := m.inst.Close()
	m.inst = nil
	m.logger.Info("browser closed")
	if err != nil {
		return fmt.Errorf("browser: close: %w", err)
	}
	return nil
}

// limitedSession applies the manager's navigation limiter to every tab.
type limitedSession struct {
	inner   Session
	limiter *rate.Limiter
}

func (s *limitedSession) NewTab(ctx context.Context) (Tab, error) {
	tab, err := s.inner.NewTab(ctx)
	if err != nil {
		return nil, fmt.Errorf("browser: new tab: %w", err)
	}
	return &limitedTab{Tab: tab, limiter: s.limiter}, nil
}

type limitedTab struct {
	Tab
	limiter *rate.Limiter
}

func (t *limitedTab) Navigate(ctx context.Context, url string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return t.Tab.Navigate(ctx, url)
}

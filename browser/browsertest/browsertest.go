// Package browsertest provides in-memory browser fakes for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alex-monroe/scrapequeue/browser"
)

// Launcher is a fake browser.Launcher serving canned pages.
type Launcher struct {
	// Pages maps a URL to the HTML returned after navigating to it.
	Pages map[string]string
	// Err, when set, makes Launch fail.
	Err error

	launches atomic.Int32
	closes   atomic.Int32
	tabs     atomic.Int32
	mu       sync.Mutex
	visited  []string
}

// Launch implements browser.Launcher.
func (l *Launcher) Launch(ctx context.Context) (browser.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Err != nil {
		return nil, l.Err
	}
	l.launches.Add(1)
	return &instance{l: l}, nil
}

// Launches returns the number of successful launches.
func (l *Launcher) Launches() int { return int(l.launches.Load()) }

// Closes returns the number of instance closes.
func (l *Launcher) Closes() int { return int(l.closes.Load()) }

// Tabs returns the number of tabs opened.
func (l *Launcher) Tabs() int { return int(l.tabs.Load()) }

// Visited returns the navigated URLs in order.
func (l *Launcher) Visited() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.visited...)
}

type instance struct {
	l      *Launcher
	closed atomic.Bool
}

func (i *instance) NewTab(context.Context) (browser.Tab, error) {
	if i.closed.Load() {
		return nil, errors.New("browsertest: instance closed")
	}
	i.l.tabs.Add(1)
	return &Tab{pages: i.l.Pages, record: i.l.record}, nil
}

func (i *instance) Close() error {
	if i.closed.CompareAndSwap(false, true) {
		i.l.closes.Add(1)
	}
	return nil
}

func (l *Launcher) record(url string) {
	l.mu.Lock()
	l.visited = append(l.visited, url)
	l.mu.Unlock()
}

// Tab is a fake browser.Tab. It can also be used on its own.
type Tab struct {
	pages   map[string]string
	record  func(string)
	current string
	clicks  []string
	closed  bool
}

// NewTab returns a standalone tab over pages.
func NewTab(pages map[string]string) *Tab {
	return &Tab{pages: pages}
}

// Navigate implements browser.Tab.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.closed {
		return errors.New("browsertest: tab closed")
	}
	if t.record != nil {
		t.record(url)
	}
	if _, ok := t.pages[url]; !ok {
		return fmt.Errorf("browsertest: no page for %s", url)
	}
	t.current = url
	return nil
}

// Click implements browser.Tab. Clicks always succeed and are recorded.
func (t *Tab) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.clicks = append(t.clicks, selector)
	return nil
}

// Clicks returns the selectors clicked so far.
func (t *Tab) Clicks() []string { return append([]string(nil), t.clicks...) }

// WaitVisible implements browser.Tab.
func (t *Tab) WaitVisible(ctx context.Context, _ string) error { return ctx.Err() }

// HTML implements browser.Tab.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return t.pages[t.current], nil
}

// Close implements browser.Tab.
func (t *Tab) Close() error {
	t.closed = true
	return nil
}

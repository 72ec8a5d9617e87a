package ottoneu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alex-monroe/scrapequeue/browser"
)

// DefaultBaseURL is the Ottoneu site root.
const DefaultBaseURL = "https://ottoneu.fangraphs.com"

// SearchURL is the player search page of a league.
func SearchURL(base string, leagueID int) string {
	return fmt.Sprintf("%s/football/%d/search", base, leagueID)
}

// PlayerCardHref is the site-relative link to a player card.
func PlayerCardHref(leagueID, ottoneuID int) string {
	return fmt.Sprintf("/football/%d/player_card/nfl/%d", leagueID, ottoneuID)
}

// PlayerCardURL resolves href against base. Absolute links pass through.
func PlayerCardURL(base, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return base + href
}

// Scraper loads Ottoneu pages through a browser tab.
type Scraper struct {
	baseURL string
	settle  time.Duration
}

// ScraperOption configures a Scraper.
type ScraperOption func(*Scraper)

// WithBaseURL points the scraper at another site root.
func WithBaseURL(base string) ScraperOption {
	return func(s *Scraper) { s.baseURL = strings.TrimRight(base, "/") }
}

// WithSettle sets how long to wait after switching the position filter
// before reading the table. The table is already visible beforehand, so
// the wait lets the filtered rows replace it.
func WithSettle(d time.Duration) ScraperOption {
	return func(s *Scraper) { s.settle = d }
}

// NewScraper creates a Scraper.
func NewScraper(opts ...ScraperOption) *Scraper {
	s := &Scraper{baseURL: DefaultBaseURL, settle: 2 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BaseURL returns the site root.
func (s *Scraper) BaseURL() string { return s.baseURL }

// Roster loads the league search page, filters it to position and parses
// the resulting table.
func (s *Scraper) Roster(ctx context.Context, tab browser.Tab, leagueID int, position string) ([]RosterRow, error) {
	url := SearchURL(s.baseURL, leagueID)
	if err := tab.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("ottoneu: load %s: %w", url, err)
	}
	if err := tab.WaitVisible(ctx, positionLinkSelector); err != nil {
		return nil, fmt.Errorf("ottoneu: wait for position filters: %w", err)
	}

	page, err := tab.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("ottoneu: read search page: %w", err)
	}
	ok, err := hasPositionLink(strings.NewReader(page), position)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPositionNotFound, position)
	}

	if err := tab.Click(ctx, positionLinkXPath(position)); err != nil {
		return nil, fmt.Errorf("ottoneu: select position %s: %w", position, err)
	}
	if err := tab.WaitVisible(ctx, rosterTableSelector); err != nil {
		return nil, fmt.Errorf("ottoneu: wait for roster table: %w", err)
	}
	if err := sleep(ctx, s.settle); err != nil {
		return nil, err
	}

	page, err = tab.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("ottoneu: read roster table: %w", err)
	}
	return ParseRoster(strings.NewReader(page))
}

// PlayerCard loads and parses one player card.
func (s *Scraper) PlayerCard(ctx context.Context, tab browser.Tab, href string) (*PlayerCard, error) {
	url := PlayerCardURL(s.baseURL, href)
	if err := tab.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("ottoneu: load %s: %w", url, err)
	}
	if err := tab.WaitVisible(ctx, "table"); err != nil {
		return nil, fmt.Errorf("ottoneu: wait for player card: %w", err)
	}
	page, err := tab.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("ottoneu: read player card: %w", err)
	}
	return ParsePlayerCard(strings.NewReader(page))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

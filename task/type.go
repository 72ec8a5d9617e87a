package task

import (
	"fmt"

	scrapequeue "github.com/alex-monroe/scrapequeue"
)

// Type identifies what a job does. The set is closed: every value is
// listed in Types and the registry refuses to start with one unhandled.
type Type string

const (
	// PullNFLStats fetches season snap counts and caches them for roster jobs.
	PullNFLStats Type = "pull_nfl_stats"
	// PullPlayerStats fetches weekly box-score stats and stores season lines.
	PullPlayerStats Type = "pull_player_stats"
	// ScrapeRoster scrapes one position of the league roster.
	ScrapeRoster Type = "scrape_roster"
	// ScrapePlayerCard scrapes one player's transaction history.
	ScrapePlayerCard Type = "scrape_player_card"
)

// Types lists every task type.
var Types = []Type{PullNFLStats, PullPlayerStats, ScrapeRoster, ScrapePlayerCard}

// ParseType validates s against the closed set.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", scrapequeue.ErrUnknownTaskType, s)
}

// Valid reports whether t is a known task type.
func (t Type) Valid() bool {
	_, err := ParseType(string(t))
	return err == nil
}

func (t Type) String() string { return string(t) }

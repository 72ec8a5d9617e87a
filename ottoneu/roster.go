package ottoneu

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alex-monroe/scrapequeue/league"
)

// Selectors on the league search page.
const (
	positionLinkSelector = "a.top_players"
	rosterTableSelector  = ".table-container table"
	rosterRowSelector    = ".table-container table tbody tr"
)

// FreeAgent is the fantasy team name of an unrostered player.
const FreeAgent = "FA"

var (
	trailingID = regexp.MustCompile(`(\d+)$`)
	queryID    = regexp.MustCompile(`id=(\d+)`)
	nonDigits  = regexp.MustCompile(`[^\d]`)
)

// RosterRow is one player row of the search table.
type RosterRow struct {
	OttoneuID   int     `json:"ottoneu_id"`
	Name        string  `json:"name"`
	Href        string  `json:"href"`
	Position    string  `json:"position"`
	NFLTeam     string  `json:"nfl_team"`
	FantasyTeam string  `json:"fantasy_team"`
	Price       int     `json:"price"`
	TotalPoints float64 `json:"total_points"`
}

// IsCollege reports whether the row is a college player.
func (r RosterRow) IsCollege() bool { return league.IsCollege(r.NFLTeam) }

// ParseRoster reads the rows of the search table. Rows without a player
// link or an id in the link are skipped.
func ParseRoster(r io.Reader) ([]RosterRow, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("ottoneu: parse roster: %w", err)
	}

	var rows []RosterRow
	doc.Find(rosterRowSelector).Each(func(_ int, tr *goquery.Selection) {
		if row, ok := parseRosterRow(tr); ok {
			rows = append(rows, row)
		}
	})
	return rows, nil
}

func parseRosterRow(tr *goquery.Selection) (RosterRow, bool) {
	nameCell := tr.Find("td:nth-child(2)")
	link := nameCell.Find("a").First()
	if link.Length() == 0 {
		return RosterRow{}, false
	}
	href, _ := link.Attr("href")
	ottoneuID := ParsePlayerID(href)
	if ottoneuID == 0 {
		return RosterRow{}, false
	}

	row := RosterRow{
		OttoneuID:   ottoneuID,
		Name:        strings.TrimSpace(link.Text()),
		Href:        href,
		NFLTeam:     league.UnknownTeam,
		Position:    league.UnknownTeam,
		FantasyTeam: FreeAgent,
	}

	if span := nameCell.Find("span.smaller").First(); span.Length() > 0 {
		switch parts := strings.Fields(span.Text()); len(parts) {
		case 0:
		case 1:
			row.Position = parts[0]
		default:
			row.NFLTeam, row.Position = parts[0], parts[1]
		}
	}

	teamCell := tr.Find("td:nth-child(3)")
	if a := teamCell.Find("a").First(); a.Length() > 0 {
		row.FantasyTeam = strings.TrimSpace(a.Text())
	}

	if salary := tr.Find("td:nth-child(4)").Text(); strings.Contains(salary, "$") {
		row.Price, _ = strconv.Atoi(nonDigits.ReplaceAllString(salary, ""))
	}

	points := strings.ReplaceAll(strings.TrimSpace(tr.Find("td:nth-child(9)").Text()), ",", "")
	if v, err := strconv.ParseFloat(points, 64); err == nil {
		row.TotalPoints = v
	}
	return row, true
}

// ParsePlayerID extracts the Ottoneu player id from a player link, either
// a trailing number or an id= query parameter. It returns 0 when absent.
func ParsePlayerID(href string) int {
	m := trailingID.FindStringSubmatch(href)
	if m == nil {
		m = queryID.FindStringSubmatch(href)
	}
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// hasPositionLink reports whether the search page offers a filter link
// whose text is exactly position.
func hasPositionLink(r io.Reader, position string) (bool, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return false, fmt.Errorf("ottoneu: parse search page: %w", err)
	}
	found := false
	doc.Find(positionLinkSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		found = strings.TrimSpace(a.Text()) == position
		return !found
	})
	return found, nil
}

// positionLinkXPath selects the filter link whose text is exactly position.
func positionLinkXPath(position string) string {
	return fmt.Sprintf(`//a[contains(concat(" ", normalize-space(@class), " "), " top_players ") and normalize-space(.)=%q]`, position)
}

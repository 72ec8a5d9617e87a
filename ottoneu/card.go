package ottoneu

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Column headers of the transaction table on a player card.
const (
	headerType   = "TRANSACTION TYPE"
	headerSalary = "SALARY"
	headerDate   = "DATE"
	headerTeam   = "TEAM"
)

var cardDateLayouts = []string{
	"Jan 2, 2006 3:04 PM",
	"01/02/2006",
	"2006-01-02",
	"Jan 2, 2006",
}

// CardTransaction is one row of a player card's transaction table.
type CardTransaction struct {
	Type   string     `json:"type"`
	Team   string     `json:"team,omitempty"`
	Salary *int       `json:"salary,omitempty"`
	Date   *time.Time `json:"date,omitempty"`
	Raw    string     `json:"raw"`
}

// PlayerCard is the parsed transaction history of one player.
type PlayerCard struct {
	Transactions []CardTransaction `json:"transactions"`

	// Price is the salary of the most recent transaction that was not a
	// cut, or nil when no such row carries a salary.
	Price *int `json:"price,omitempty"`
}

// ParsePlayerCard reads the first table on the page whose headers include
// both a transaction type and a salary column. A page without one yields
// an empty card.
func ParsePlayerCard(r io.Reader) (*PlayerCard, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("ottoneu: parse player card: %w", err)
	}

	card := &PlayerCard{}
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		cols := headerColumns(table)
		typeCol, hasType := cols[headerType]
		salaryCol, hasSalary := cols[headerSalary]
		if !hasType || !hasSalary {
			return true
		}
		dateCol, hasDate := cols[headerDate]
		teamCol, hasTeam := cols[headerTeam]

		rows := table.Find("tbody tr")
		if rows.Length() == 0 {
			rows = table.Find("tr")
		}
		rows.Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("td").Map(func(_ int, td *goquery.Selection) string {
				return strings.TrimSpace(td.Text())
			})
			if len(cells) <= max(typeCol, salaryCol) {
				return
			}
			tx := CardTransaction{
				Type:   cells[typeCol],
				Salary: parseSalary(cells[salaryCol]),
				Raw:    strings.Join(cells, " | "),
			}
			if hasDate && dateCol < len(cells) {
				tx.Date = parseCardDate(cells[dateCol])
			}
			if hasTeam && teamCol < len(cells) {
				tx.Team = cells[teamCol]
			}
			card.Transactions = append(card.Transactions, tx)
		})
		return false
	})

	for i := range card.Transactions {
		tx := card.Transactions[i]
		if !strings.Contains(tx.Type, "Cut") && tx.Salary != nil {
			price := *tx.Salary
			card.Price = &price
			break
		}
	}
	return card, nil
}

func headerColumns(table *goquery.Selection) map[string]int {
	cols := make(map[string]int)
	table.Find("th").Each(func(i int, th *goquery.Selection) {
		name := strings.ToUpper(strings.TrimSpace(th.Text()))
		if _, seen := cols[name]; !seen {
			cols[name] = i
		}
	})
	return cols
}

func parseSalary(s string) *int {
	digits := nonDigits.ReplaceAllString(s, "")
	if digits == "" {
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &n
}

func parseCardDate(s string) *time.Time {
	for _, layout := range cardDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &day
		}
	}
	return nil
}

package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alex-monroe/scrapequeue/league"
	"github.com/alex-monroe/scrapequeue/ottoneu"
	"github.com/alex-monroe/scrapequeue/task"
)

// CardResult summarizes a scrape_player_card run.
type CardResult struct {
	Transactions int  `json:"transactions"`
	Price        *int `json:"price,omitempty"`
	SalaryLogged bool `json:"salary_logged"`
}

// ScrapePlayerCard stores a player's transaction history. When the card
// shows a current price it also updates the league price and appends to
// the salary history if the price or team changed.
func (h *Handlers) ScrapePlayerCard(ctx context.Context, env *task.Env, p PlayerCardParams) (*task.Result, error) {
	if p.PlayerUUID == uuid.Nil || p.LeagueID == 0 || p.Season == 0 {
		return nil, invalid(task.ScrapePlayerCard, "player_uuid, season and league_id are required")
	}
	if p.Href == "" && p.OttoneuID == 0 {
		return nil, invalid(task.ScrapePlayerCard, "href or ottoneu_id is required")
	}

	tab, err := env.Browser.NewTab(ctx)
	if err != nil {
		return nil, err
	}
	defer tab.Close()

	card, err := h.scraper.PlayerCard(ctx, tab, playerCardHref(p))
	if err != nil {
		return nil, err
	}

	for _, tx := range card.Transactions {
		if err := h.league.UpsertTransaction(ctx, &league.Transaction{
			PlayerID:       p.PlayerUUID,
			LeagueID:       p.LeagueID,
			Season:         p.Season,
			Type:           tx.Type,
			TeamName:       tx.Team,
			Salary:         tx.Salary,
			Date:           tx.Date,
			RawDescription: tx.Raw,
		}); err != nil {
			return nil, fmt.Errorf("upsert transaction: %w", err)
		}
	}

	res := CardResult{Transactions: len(card.Transactions), Price: card.Price}
	if card.Price != nil {
		team := p.FantasyTeam
		if team == "" {
			team = ottoneu.FreeAgent
		}
		if err := h.league.UpsertLeaguePrice(ctx, &league.LeaguePrice{
			PlayerID: p.PlayerUUID,
			LeagueID: p.LeagueID,
			Season:   p.Season,
			Price:    *card.Price,
			TeamName: team,
		}); err != nil {
			return nil, fmt.Errorf("upsert price: %w", err)
		}
		res.SalaryLogged, err = h.league.RecordSalary(ctx, &league.SalarySnapshot{
			PlayerID: p.PlayerUUID,
			LeagueID: p.LeagueID,
			Season:   p.Season,
			Price:    *card.Price,
			TeamName: team,
		})
		if err != nil {
			return nil, fmt.Errorf("record salary: %w", err)
		}
	}

	env.Logger.Info("scraped player card",
		slog.String("player", p.PlayerName),
		slog.Int("ottoneu_id", p.OttoneuID),
		slog.Int("transactions", res.Transactions),
		slog.Bool("salary_changed", res.SalaryLogged),
	)
	return &task.Result{Data: res}, nil
}

// playerCardHref returns the row's link, or the canonical card link when
// the row has none.
func playerCardHref(p PlayerCardParams) string {
	if p.Href != "" {
		return p.Href
	}
	return ottoneu.PlayerCardHref(p.LeagueID, p.OttoneuID)
}

// Package tasks implements the scraper's task handlers:
//
//   - pull_nfl_stats downloads season snap counts and caches them for the
//     roster jobs of the same run
//   - pull_player_stats stores box-score season lines for known players
//   - scrape_roster scrapes one position of the league roster, storing
//     players, prices and usage, and fans out one player card job per row
//   - scrape_player_card stores a player's transaction history and price
//
// Every write is an upsert on a natural key, so a retried job converges on
// the same stored state.
package tasks

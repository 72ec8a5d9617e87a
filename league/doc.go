// Package league holds the fantasy league data the scraping tasks collect:
// players, league prices, season stat lines, transactions and salary
// history, plus the [Store] contract the tasks persist through.
//
// Every write is keyed on a natural key so a job that is retried after a
// partial run converges on the same rows instead of duplicating them.
package league

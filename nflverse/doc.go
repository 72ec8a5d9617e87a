// Package nflverse downloads and aggregates the nflverse release CSVs:
// weekly snap counts and weekly offense and kicking player stats. Only
// regular-season rows are used.
package nflverse

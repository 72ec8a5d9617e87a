package league

// nflTeams are the 32 team codes as Ottoneu writes them ("LA" for the
// Rams, "JAC" for the Jaguars).
var nflTeams = map[string]struct{}{
	"ARI": {}, "ATL": {}, "BAL": {}, "BUF": {}, "CAR": {}, "CHI": {}, "CIN": {}, "CLE": {},
	"DAL": {}, "DEN": {}, "DET": {}, "GB": {}, "HOU": {}, "IND": {}, "JAC": {}, "KC": {},
	"LA": {}, "LAC": {}, "LV": {}, "MIA": {}, "MIN": {}, "NE": {}, "NO": {}, "NYG": {},
	"NYJ": {}, "PHI": {}, "PIT": {}, "SEA": {}, "SF": {}, "TB": {}, "TEN": {}, "WAS": {},
}

// UnknownTeam is recorded when a roster row carries no team.
const UnknownTeam = "Unknown"

// IsNFLTeam reports whether code is an NFL team code.
func IsNFLTeam(code string) bool {
	_, ok := nflTeams[code]
	return ok
}

// IsCollege reports whether a roster team names a college: anything that
// is neither an NFL code nor UnknownTeam.
func IsCollege(team string) bool {
	return team != UnknownTeam && !IsNFLTeam(team)
}

package league

import "math"

// Half-PPR scoring weights.
const (
	pointsPerPassingYard   = 0.04
	pointsPerPassingTD     = 4
	pointsPerInterception  = -2
	pointsPerRushingYard   = 0.1
	pointsPerRushingTD     = 6
	pointsPerReception     = 0.5
	pointsPerReceivingYard = 0.1
	pointsPerReceivingTD   = 6
	pointsPerFG0To39       = 3
	pointsPerFG40To49      = 4
	pointsPerFG50Plus      = 5
	pointsPerPAT           = 1
)

// HalfPPR scores a season line, rounded to two decimals.
func HalfPPR(l *SeasonLine) float64 {
	p := float64(l.PassingYards)*pointsPerPassingYard +
		float64(l.PassingTDs)*pointsPerPassingTD +
		float64(l.Interceptions)*pointsPerInterception +
		float64(l.RushingYards)*pointsPerRushingYard +
		float64(l.RushingTDs)*pointsPerRushingTD +
		float64(l.Receptions)*pointsPerReception +
		float64(l.ReceivingYards)*pointsPerReceivingYard +
		float64(l.ReceivingTDs)*pointsPerReceivingTD +
		float64(l.FGMade0To39)*pointsPerFG0To39 +
		float64(l.FGMade40To49)*pointsPerFG40To49 +
		float64(l.FGMade50Plus)*pointsPerFG50Plus +
		float64(l.PATMade)*pointsPerPAT
	return Round(p, 2)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

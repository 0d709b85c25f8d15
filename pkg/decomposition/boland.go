package decomposition

import "math"

// BolandRidley is the logistic diffuse-fraction model of Boland, Ridley and Brown (2008):
// df = 1 / (1 + exp(A·(kt − B))). The coefficients depend on the averaging interval.
type BolandRidley struct {
	A float64
	B float64
}

var (
	// BolandHourly is fitted to hourly averages.
	BolandHourly = BolandRidley{A: 7.997, B: 0.586}
	// BolandQuarterHour is fitted to 15-minute averages.
	BolandQuarterHour = BolandRidley{A: 8.645, B: 0.613}
)

func (BolandRidley) Name() string { return "boland" }

func (b BolandRidley) DiffuseFraction(kt float64) float64 {
	return 1 / (1 + math.Exp(b.A*(kt-b.B)))
}

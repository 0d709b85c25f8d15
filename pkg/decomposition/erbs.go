package decomposition

// Erbs is the Erbs, Klein and Duffie (1982) piecewise polynomial correlation.
type Erbs struct{}

func (Erbs) Name() string { return "erbs" }

func (Erbs) DiffuseFraction(kt float64) float64 {
	switch {
	case kt <= 0.22:
		return 1 - 0.09*kt
	case kt <= 0.8:
		return 0.9511 - 0.1604*kt + 4.388*kt*kt - 16.638*kt*kt*kt + 12.336*kt*kt*kt*kt
	default:
		return 0.165
	}
}

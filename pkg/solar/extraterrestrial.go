package solar

import (
	"math"
	"time"
)

// SolarConstant is the default total solar irradiance at 1 AU, in W/m².
const SolarConstant = 1366.1

// Extraterrestrial returns the top-of-atmosphere normal irradiance (W/m²) for a day of
// year, using Spencer's (1971) Fourier series for the Earth-Sun distance correction.
// Non-finite day numbers yield NaN.
func Extraterrestrial(dayOfYear, solarConstant float64) float64 {
	if math.IsNaN(dayOfYear) || math.IsInf(dayOfYear, 0) {
		return math.NaN()
	}
	b := 2 * math.Pi * (dayOfYear - 1) / 365
	rOverR0Sq := 1.00011 +
		0.034221*math.Cos(b) + 0.00128*math.Sin(b) +
		0.000719*math.Cos(2*b) + 0.000077*math.Sin(2*b)
	return solarConstant * rOverR0Sq
}

// ExtraterrestrialAt is Extraterrestrial for the UTC day of year of t.
func ExtraterrestrialAt(t time.Time, solarConstant float64) float64 {
	return Extraterrestrial(float64(t.UTC().YearDay()), solarConstant)
}

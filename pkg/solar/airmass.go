package solar

import "math"

// ScaleHeight is the standard-atmosphere scale height used for the pressure correction, in metres.
const ScaleHeight = 8434.5

// RelativeAirmass returns the Kasten-Young (1989) relative optical airmass for a zenith
// angle in degrees. ok is false when the sun is at or below the horizon, where the
// airmass is undefined.
func RelativeAirmass(zenith float64) (am float64, ok bool) {
	if math.IsNaN(zenith) || zenith >= 90 {
		return math.NaN(), false
	}
	am = 1.0 / (math.Cos(degToRad(zenith)) + 0.50572*math.Pow(96.07995-zenith, -1.6364))
	return am, true
}

// PressureFactor is the barometric ratio p/p0 at altitude metres above sea level.
// Negative or extreme altitudes are not rejected.
func PressureFactor(altitude float64) float64 {
	return math.Exp(-altitude / ScaleHeight)
}

// AbsoluteAirmass is the relative airmass corrected to the site pressure.
func AbsoluteAirmass(zenith, altitude float64) (float64, bool) {
	am, ok := RelativeAirmass(zenith)
	if !ok {
		return am, false
	}
	return am * PressureFactor(altitude), true
}

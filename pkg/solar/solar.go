// Package solar computes the geometric position of the sun and the top-of-atmosphere
// quantities derived from it: extraterrestrial irradiance and optical airmass.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/julian"
)

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

func radToDeg(rad float64) float64 {
	return rad * (180.0 / math.Pi)
}

// fixAngle wraps a into [0, 360).
func fixAngle(a float64) float64 {
	return a - 360.0*math.Floor(a/360.0)
}

// JulianDay converts an instant to Julian Day, a continuous count of days since Jan 1, 4713 BCE.
// The result is 2440587.5 (Unix epoch JD) + seconds since epoch / seconds per day.
func JulianDay(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// JulianCentury returns Julian centuries since J2000.0 (Jan 1, 2000, 12:00 TT)
func JulianCentury(jd float64) float64 {
	return (jd - 2451545.0) / 36525.0
}

// sunParams returns the solar declination (radians) and the equation of time (minutes)
// for Julian century T.
func sunParams(T float64) (declination, eqTimeMin float64) {
	L0 := fixAngle(base.Horner(T, 280.46646, 36000.76983, 0.0003032)) // Mean longitude of the Sun (degrees)
	M := fixAngle(base.Horner(T, 357.52911, 35999.05029, -0.0001537)) // Mean anomaly of the Sun (degrees)
	e := base.Horner(T, 0.016708634, -0.000042037, -0.0000001267)     // Eccentricity of Earth's orbit

	// Equation of centre
	C := math.Sin(degToRad(M))*base.Horner(T, 1.914602, -0.004817, -0.000014) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289

	// Apparent longitude, corrected for nutation and aberration through Ω
	omega := 125.04 - 1934.136*T
	lambda := L0 + C - 0.00569 - 0.00478*math.Sin(degToRad(omega))

	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60 // Mean obliquity of the ecliptic (degrees)
	eps := eps0 + 0.00256*math.Cos(degToRad(omega))                    // Corrected obliquity

	declination = math.Asin(math.Sin(degToRad(eps)) * math.Sin(degToRad(lambda)))

	// y = tan²(ε/2)
	y := math.Tan(degToRad(eps)/2) * math.Tan(degToRad(eps)/2)
	eqTimeMin = radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M))) * 4 // Convert to minutes (4 min/degree)

	return declination, eqTimeMin
}

// Declination returns the solar declination in degrees at instant t.
func Declination(t time.Time) float64 {
	d, _ := sunParams(JulianCentury(JulianDay(t)))
	return radToDeg(d)
}

// EquationOfTime returns the difference between apparent and mean solar time, in minutes.
func EquationOfTime(t time.Time) float64 {
	_, eot := sunParams(JulianCentury(JulianDay(t)))
	return eot
}

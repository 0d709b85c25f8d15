package solar

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

// SunVector is the unit vector pointing at the sun in the local topocentric frame:
// X east, Y toward the equator-side meridian (south in the northern hemisphere), Z up.
type SunVector struct {
	r3.Vec
}

// Norm returns the Euclidean length of the vector.
func (v SunVector) Norm() float64 {
	return r3.Norm(v.Vec)
}

// Position is the geometric (unrefracted) position of the sun's centre.
type Position struct {
	Time           time.Time `json:"time"`
	Zenith         float64   `json:"zenith"`           // degrees, [0, 180]
	Azimuth        float64   `json:"azimuth"`          // degrees clockwise from north, [0, 360)
	Elevation      float64   `json:"elevation"`        // degrees, 90 - zenith
	Declination    float64   `json:"declination"`      // degrees
	EquationOfTime float64   `json:"equation_of_time"` // minutes
	HourAngle      float64   `json:"hour_angle"`       // degrees, (-180, 180], 0 at solar noon
	Vector         SunVector `json:"-"`
}

// BelowHorizon reports whether downstream irradiance should be zeroed.
func (p Position) BelowHorizon() bool {
	return p.Zenith >= 90
}

// HourAngle returns the hour angle in radians for Julian day jd at longitude lon (degrees),
// where tz is the timezone offset in hours that the local clock runs ahead of UTC.
func HourAngle(jd, lon, tz, eqTimeMin float64) float64 {
	// The Julian day fraction is zero at noon UTC, so adding 12 gives clock hours.
	hour := (jd-math.Floor(jd))*24 + tz
	lonTime := lon/15 - tz
	return math.Pi * (((hour + 12 + lonTime + eqTimeMin/60) / 12) - 1)
}

// SunVectorOf builds the topocentric sun vector from latitude, declination and hour angle,
// all in radians.
func SunVectorOf(lat, decl, hourAngle float64) SunVector {
	sinLat, cosLat := math.Sincos(lat)
	sinDecl, cosDecl := math.Sincos(decl)
	sinH, cosH := math.Sincos(hourAngle)
	return SunVector{r3.Vec{
		X: -sinH * cosDecl,
		Y: sinLat*cosH*cosDecl - cosLat*sinDecl,
		Z: cosLat*cosH*cosDecl + sinLat*sinDecl,
	}}
}

// Compute returns the sun's position at instant t seen from (lat, lon). tz is the timezone
// offset in hours of the clock the instant is expressed in; pass 0 for UTC instants.
// Positions past 90° zenith are returned unchanged; callers apply their own night policy.
func Compute(t time.Time, lat, lon, tz float64) Position {
	jd := JulianDay(t)
	decl, eot := sunParams(JulianCentury(jd))
	omega := HourAngle(jd, lon, tz, eot)
	sv := SunVectorOf(degToRad(lat), decl, omega)

	cosZ := math.Max(-1, math.Min(1, sv.Z))
	zenith := radToDeg(math.Acos(cosZ))
	azimuth := fixAngle(radToDeg(math.Pi - math.Atan2(sv.X, sv.Y)))

	ha := fixAngle(radToDeg(omega))
	if ha > 180 {
		ha -= 360
	}

	return Position{
		Time:           t,
		Zenith:         zenith,
		Azimuth:        azimuth,
		Elevation:      90 - zenith,
		Declination:    radToDeg(decl),
		EquationOfTime: eot,
		HourAngle:      ha,
		Vector:         sv,
	}
}

// Series computes positions for every instant. lat and lon are either single values or
// one value per instant. All geometry is evaluated in UTC; each returned Time is the
// caller's instant in its original location.
func Series(times []time.Time, lat, lon []float64) ([]Position, error) {
	idx, err := timeseries.Prepare(times)
	if err != nil {
		return nil, err
	}
	lats, err := timeseries.Broadcast("latitude", lat, idx.Len())
	if err != nil {
		return nil, err
	}
	lons, err := timeseries.Broadcast("longitude", lon, idx.Len())
	if err != nil {
		return nil, err
	}
	if err := timeseries.ValidateCoordinates(lats, lons); err != nil {
		return nil, fmt.Errorf("solar position: %w", err)
	}

	out := make([]Position, idx.Len())
	for i := range out {
		out[i] = Compute(idx.UTC(i), lats[i], lons[i], 0)
		out[i].Time = idx.Restore(i)
	}
	return out, nil
}

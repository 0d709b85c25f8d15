package solar

import (
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

// Daylight is the geometric sunrise/sunset window of one UTC calendar day.
type Daylight struct {
	Sunrise    time.Time `json:"sunrise"`
	Sunset     time.Time `json:"sunset"`
	SolarNoon  time.Time `json:"solar_noon"`
	PolarDay   bool      `json:"polar_day,omitempty"`   // sun never sets
	PolarNight bool      `json:"polar_night,omitempty"` // sun never rises
}

// Length returns the time the sun spends above the horizon.
func (d Daylight) Length() time.Duration {
	switch {
	case d.PolarDay:
		return 24 * time.Hour
	case d.PolarNight:
		return 0
	}
	return d.Sunset.Sub(d.Sunrise)
}

// SunriseSunset returns the daylight window for the UTC calendar day containing day,
// at the given latitude and longitude. The horizon is geometric (zenith 90°, no
// refraction), matching Compute.
func SunriseSunset(day time.Time, latitude, longitude float64) (Daylight, error) {
	if err := (timeseries.GeoPoint{Lat: latitude, Lon: longitude}).Validate(); err != nil {
		return Daylight{}, fmt.Errorf("sunrise: %w", err)
	}

	// Evaluate declination and equation of time at noon UTC of the requested day
	u := day.UTC()
	noon := time.Date(u.Year(), u.Month(), u.Day(), 12, 0, 0, 0, time.UTC)
	decl, eot := sunParams(JulianCentury(JulianDay(noon)))

	// Solar noon in UTC minutes from midnight. Each degree of longitude = 4 minutes.
	solarNoonMin := 720.0 - 4*longitude - eot
	midnight := noon.Add(-12 * time.Hour)
	out := Daylight{SolarNoon: midnight.Add(minutes(solarNoonMin))}

	// cos(H) = -tan(lat) * tan(declination) at the horizon
	cosH := -math.Tan(degToRad(latitude)) * math.Tan(decl)
	if cosH < -1.0 {
		out.PolarDay = true
		return out, nil
	}
	if cosH > 1.0 {
		out.PolarNight = true
		return out, nil
	}

	halfDayMin := radToDeg(math.Acos(cosH)) * 4
	out.Sunrise = midnight.Add(minutes(solarNoonMin - halfDayMin))
	out.Sunset = midnight.Add(minutes(solarNoonMin + halfDayMin))
	return out, nil
}

func minutes(m float64) time.Duration {
	return time.Duration(math.Round(m * float64(time.Minute)))
}

// FormatSunTime renders t in the given location, or "" for a zero time.
func FormatSunTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("3:04 PM")
}

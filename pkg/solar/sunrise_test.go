package solar

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

// minutesOfDay returns t's UTC time of day in minutes.
func minutesOfDay(t time.Time) int {
	u := t.UTC()
	return u.Hour()*60 + u.Minute()
}

func circularDiff(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 720 {
		d = 1440 - d
	}
	return d
}

func TestSunriseSunset(t *testing.T) {
	tests := []struct {
		name             string
		day              time.Time
		latitude         float64
		longitude        float64
		expectSunrise    bool // false if polar conditions
		sunriseApproxUTC int  // approximate expected sunrise in UTC minutes
		sunsetApproxUTC  int  // approximate expected sunset in UTC minutes
	}{
		{
			name:             "Equator at equinox",
			day:              time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
			latitude:         0.0,
			longitude:        0.0,
			expectSunrise:    true,
			sunriseApproxUTC: 367,  // ~6:07 AM UTC
			sunsetApproxUTC:  1087, // ~6:07 PM UTC
		},
		{
			name:             "Seattle WA summer solstice",
			day:              time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC),
			latitude:         47.6,
			longitude:        -122.3,
			expectSunrise:    true,
			sunriseApproxUTC: 735, // ~5:15 AM PDT
			sunsetApproxUTC:  250, // ~9:10 PM PDT, wraps at midnight UTC
		},
		{
			name:             "London UK summer",
			day:              time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC),
			latitude:         51.5,
			longitude:        -0.1,
			expectSunrise:    true,
			sunriseApproxUTC: 232,  // ~3:52 AM UTC
			sunsetApproxUTC:  1216, // ~8:16 PM UTC
		},
		{
			name:          "Arctic circle summer (polar day)",
			day:           time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC),
			latitude:      70.0,
			longitude:     25.0,
			expectSunrise: false,
		},
		{
			name:          "Arctic circle winter (polar night)",
			day:           time.Date(2026, 12, 21, 0, 0, 0, 0, time.UTC),
			latitude:      70.0,
			longitude:     25.0,
			expectSunrise: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := SunriseSunset(tt.day, tt.latitude, tt.longitude)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !tt.expectSunrise {
				if !d.PolarDay && !d.PolarNight {
					t.Errorf("expected polar conditions, got sunrise=%v sunset=%v", d.Sunrise, d.Sunset)
				}
				return
			}

			// The geometric horizon runs a few minutes later than published (refracted) times
			tolerance := 15
			if diff := circularDiff(minutesOfDay(d.Sunrise), tt.sunriseApproxUTC); diff > tolerance {
				t.Errorf("sunrise=%v, expected ~%d minutes UTC (±%d)", d.Sunrise, tt.sunriseApproxUTC, tolerance)
			}
			if diff := circularDiff(minutesOfDay(d.Sunset), tt.sunsetApproxUTC); diff > tolerance {
				t.Errorf("sunset=%v, expected ~%d minutes UTC (±%d)", d.Sunset, tt.sunsetApproxUTC, tolerance)
			}
		})
	}
}

func TestSunriseSunsetRejectsBadLatitude(t *testing.T) {
	_, err := SunriseSunset(time.Now(), 91, 0)
	if !errors.Is(err, timeseries.ErrLatitudeRange) {
		t.Fatalf("error = %v, want ErrLatitudeRange", err)
	}
}

func TestSunriseAgreesWithPosition(t *testing.T) {
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	lat, lon := 39.74, -104.99

	d, err := SunriseSunset(day, lat, lon)
	if err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		name string
		at   time.Time
		want float64
	}{
		{"sunrise", d.Sunrise, 90},
		{"sunset", d.Sunset, 90},
	} {
		p := Compute(tc.at, lat, lon, 0)
		if diff := p.Zenith - tc.want; diff > 0.3 || diff < -0.3 {
			t.Errorf("%s zenith = %.3f, want ~%.1f", tc.name, p.Zenith, tc.want)
		}
	}

	noon := Compute(d.SolarNoon, lat, lon, 0)
	if noon.Azimuth < 179.5 || noon.Azimuth > 180.5 {
		t.Errorf("solar noon azimuth = %.3f, want ~180", noon.Azimuth)
	}
}

func TestDaylightLength(t *testing.T) {
	// Daylight at 45°N should stay between 8 and 16 hours through the year
	for doy := 0; doy < 365; doy++ {
		day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy)
		d, err := SunriseSunset(day, 45.0, 0.0)
		if err != nil {
			t.Fatalf("day %d: unexpected error: %v", doy, err)
		}
		if d.PolarDay || d.PolarNight {
			t.Fatalf("day %d: unexpected polar conditions at 45°N", doy)
		}
		if l := d.Length(); l < 8*time.Hour || l > 16*time.Hour {
			t.Errorf("day %d: unreasonable day length: %v", doy, l)
		}
	}
}

func TestFormatSunTime(t *testing.T) {
	loc, _ := time.LoadLocation("America/Los_Angeles")

	tests := []struct {
		name     string
		t        time.Time
		loc      *time.Location
		expected string
	}{
		{
			name:     "Afternoon UTC to Pacific (winter/PST)",
			t:        time.Date(2026, 1, 1, 14, 0, 0, 0, time.UTC),
			loc:      loc,
			expected: "6:00 AM",
		},
		{
			name:     "Zero time returns empty",
			loc:      loc,
			expected: "",
		},
		{
			name:     "Noon UTC",
			t:        time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
			loc:      time.UTC,
			expected: "12:00 PM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := FormatSunTime(tt.t, tt.loc); result != tt.expected {
				t.Errorf("FormatSunTime(%v) = %q, expected %q", tt.t, result, tt.expected)
			}
		})
	}
}

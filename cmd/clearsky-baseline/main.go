// Command clearsky-baseline prints the daylight window and the clear-sky irradiance
// profile of one day at a location.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chrissnell/pvestimate/internal/log"
	"github.com/chrissnell/pvestimate/internal/pipeline"
	"github.com/chrissnell/pvestimate/internal/weather"
	"github.com/chrissnell/pvestimate/pkg/config"
	"github.com/chrissnell/pvestimate/pkg/pvpower"
	"github.com/chrissnell/pvestimate/pkg/solar"
	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

func main() {
	var (
		lat      = flag.Float64("lat", 0, "Latitude in decimal degrees")
		lon      = flag.Float64("lon", 0, "Longitude in decimal degrees")
		altitude = flag.Float64("altitude", 0, "Altitude in metres")
		dateStr  = flag.String("date", "", "Day to profile, YYYY-MM-DD (default: today)")
		tz       = flag.String("tz", "UTC", "IANA timezone for the day and the printed times")
		model    = flag.String("model", "ineichen", "Clear-sky model: ineichen, haurwitz or bras")
		tl       = flag.Float64("turbidity", 0, "Fixed Linke turbidity (default: seasonal estimate for -class)")
		class    = flag.String("class", "rural", "Location class for the seasonal turbidity estimate")
		step     = flag.Duration("step", time.Hour, "Profile step")
		debug    = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading timezone: %v\n", err)
		os.Exit(1)
	}

	day := time.Now().In(loc)
	if *dateStr != "" {
		day, err = weather.ParseTime(*dateStr+" 00:00", loc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
			os.Exit(1)
		}
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	daylight, err := solar.SunriseSunset(midnight.Add(12*time.Hour), *lat, *lon)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	site := config.SiteData{
		Name:           "baseline",
		Latitude:       *lat,
		Longitude:      *lon,
		Altitude:       *altitude,
		LocationClass:  *class,
		LinkeTurbidity: *tl,
	}
	times := timeseries.Range(midnight, midnight.AddDate(0, 0, 1).Add(-time.Nanosecond), *step)
	rows, err := pipeline.ClearSky(site, times, pipeline.Config{ClearSky: *model})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Clear-sky baseline for %s at %.4f, %.4f (%.0f m)\n", midnight.Format("2006-01-02 MST"), *lat, *lon, *altitude)
	switch {
	case daylight.PolarDay:
		fmt.Printf("  Daylight:   24 h (polar day)\n")
	case daylight.PolarNight:
		fmt.Printf("  Daylight:   none (polar night)\n")
	default:
		fmt.Printf("  Sunrise:    %s\n", solar.FormatSunTime(daylight.Sunrise, loc))
		fmt.Printf("  Sunset:     %s\n", solar.FormatSunTime(daylight.Sunset, loc))
		fmt.Printf("  Daylight:   %s\n", daylight.Length().Round(time.Minute))
	}
	fmt.Printf("  Solar noon: %s\n", solar.FormatSunTime(daylight.SolarNoon, loc))
	fmt.Println()

	ghi := make([]float64, len(rows))
	fmt.Printf("  %-6s %7s %8s %8s %8s\n", "time", "zenith", "GHI", "DNI", "DHI")
	for i, r := range rows {
		ghi[i] = r.GHI
		if r.Status == timeseries.StatusNight {
			continue
		}
		if r.GHIOnly {
			fmt.Printf("  %-6s %7.2f %8.1f %8s %8s\n", r.Time.Format("15:04"), r.Zenith, r.GHI, "-", "-")
			continue
		}
		fmt.Printf("  %-6s %7.2f %8.1f %8.1f %8.1f\n", r.Time.Format("15:04"), r.Zenith, r.GHI, r.DNI, r.DHI)
	}
	fmt.Printf("\n  Daily horizontal irradiation: %.2f kWh/m²\n", pvpower.Energy(ghi, *step)/1000)
}

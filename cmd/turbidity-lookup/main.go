// Command turbidity-lookup prints Linke turbidity from a climatology grid, or writes a
// grid built from the seasonal heuristic.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chrissnell/pvestimate/internal/weather"
	"github.com/chrissnell/pvestimate/pkg/turbidity"
)

func main() {
	var (
		gridPath    = flag.String("grid", "", "Path to the Linke turbidity grid (required for lookups)")
		lat         = flag.Float64("lat", 0, "Latitude in decimal degrees")
		lon         = flag.Float64("lon", 0, "Longitude in decimal degrees")
		timeStr     = flag.String("time", "", "Instant to look up, RFC3339 or YYYY-MM-DD HH:MM in -tz")
		tz          = flag.String("tz", "UTC", "IANA timezone for naive -time values")
		interpolate = flag.Bool("interpolate", true, "Interpolate between month middles; -interpolate=false for the raw month")
		makeGrid    = flag.String("make-grid", "", "Write a grid built from the seasonal heuristic to this path and exit")
		class       = flag.String("class", "rural", "Location class used by -make-grid")
	)
	flag.Parse()

	if *makeGrid != "" {
		if err := writeGrid(*makeGrid, *class); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing grid: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", *makeGrid, turbidity.DefaultSpec().Size())
		return
	}

	if *gridPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -grid <file> -lat <lat> -lon <lon> [-time <time>]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading timezone: %v\n", err)
		os.Exit(1)
	}
	t := time.Now().In(loc)
	if *timeStr != "" {
		if t, err = weather.ParseTime(*timeStr, loc); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing time: %v\n", err)
			os.Exit(1)
		}
	}

	grid, err := turbidity.Open(*gridPath, turbidity.DefaultSpec())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	months, err := grid.Monthly(*lat, *lon)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	value, err := turbidity.Point(grid, t, *lat, *lon, *interpolate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Linke turbidity at %.4f, %.4f\n", *lat, *lon)
	for m, raw := range months {
		fmt.Printf("  %-9s %5.2f\n", time.Month(m+1), float64(raw)/turbidity.Scale)
	}
	fmt.Printf("\n  %s: %.2f", t.Format(time.RFC3339), value)
	if *interpolate {
		fmt.Printf(" (interpolated)")
	}
	fmt.Println()
}

func writeGrid(path, class string) error {
	c, err := turbidity.ParseLocationClass(class)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := turbidity.SimpleGrid(turbidity.DefaultSpec(), c).WriteTo(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

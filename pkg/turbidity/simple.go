package turbidity

import (
	"fmt"
	"math"
	"time"
)

// LocationClass selects the base turbidity of the simple heuristic.
type LocationClass string

const (
	Mountain   LocationClass = "mountain"
	Rural      LocationClass = "rural"
	Maritime   LocationClass = "maritime"
	Desert     LocationClass = "desert"
	Urban      LocationClass = "urban"
	Industrial LocationClass = "industrial"
)

var baseTurbidity = map[LocationClass]float64{
	Mountain:   2.0,
	Rural:      3.0,
	Maritime:   3.2,
	Desert:     3.8,
	Urban:      4.0,
	Industrial: 5.0,
}

// seasonalAmplitude is the summer/winter swing around the base value.
const seasonalAmplitude = 0.5

// ParseLocationClass validates a class name.
func ParseLocationClass(s string) (LocationClass, error) {
	c := LocationClass(s)
	if _, ok := baseTurbidity[c]; !ok {
		return "", fmt.Errorf("unknown location class %q", s)
	}
	return c, nil
}

// SimpleLinkeTurbidity is a climatology-free estimate: a base value for the location
// class plus a sinusoidal seasonal term that peaks in mid-summer of the hemisphere
// (day 196 north of the equator, day 15 south of it). It uses the instant's local day
// of year, like Lookup. Unknown classes fall back to Rural.
func SimpleLinkeTurbidity(t time.Time, lat float64, class LocationClass) float64 {
	base, ok := baseTurbidity[class]
	if !ok {
		base = baseTurbidity[Rural]
	}
	peak := 196.0
	if lat < 0 {
		peak = 15.0
	}
	doy := float64(t.YearDay())
	return base + seasonalAmplitude*math.Cos(2*math.Pi*(doy-peak)/365)
}

// Simple applies SimpleLinkeTurbidity to a series.
func Simple(times []time.Time, lat float64, class LocationClass) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = SimpleLinkeTurbidity(t, lat, class)
	}
	return out
}

// SimpleGrid builds a grid holding SimpleLinkeTurbidity for the 15th of each month at
// every row's latitude. It stands in for the climatological grid where that file is
// not available.
func SimpleGrid(spec GridSpec, class LocationClass) *MemoryGrid {
	g := NewMemoryGrid(spec)
	for row := 0; row < spec.Lats; row++ {
		lat := spec.LatStart
		if spec.Lats > 1 {
			lat += float64(row) * (spec.LatEnd - spec.LatStart) / float64(spec.Lats-1)
		}
		var months [Months]uint8
		for m := range months {
			mid := time.Date(2025, time.Month(m+1), 15, 12, 0, 0, 0, time.UTC)
			v := math.Round(SimpleLinkeTurbidity(mid, lat, class) * Scale)
			months[m] = uint8(math.Min(math.Max(v, 0), math.MaxUint8))
		}
		for col := 0; col < spec.Lons; col++ {
			copy(g.data[spec.offset(row, col):], months[:])
		}
	}
	return g
}

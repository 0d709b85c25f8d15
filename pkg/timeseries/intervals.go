package timeseries

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultStep is the interval given to a lone instant.
const DefaultStep = time.Hour

// Intervals returns how long each instant stands for when a series is integrated, in
// input order, plus the nominal step (the median spacing between distinct instants).
// Instants are taken in time order whatever the input order; each spans until the next
// later instant, capped at the nominal step so that gaps in the record are not filled.
// The latest instant spans one nominal step.
func Intervals(times []time.Time) ([]time.Duration, time.Duration) {
	n := len(times)
	if n == 0 {
		return nil, 0
	}

	offsets := make([]float64, n)
	for i, t := range times {
		offsets[i] = t.Sub(times[0]).Seconds()
	}
	order := make([]int, n)
	floats.Argsort(offsets, order)

	var gaps []float64
	for k := 1; k < n; k++ {
		if g := offsets[k] - offsets[k-1]; g > 0 {
			gaps = append(gaps, g)
		}
	}
	step := DefaultStep
	if len(gaps) > 0 {
		sort.Float64s(gaps)
		step = time.Duration(stat.Quantile(0.5, stat.Empirical, gaps, nil) * float64(time.Second))
	}

	out := make([]time.Duration, n)
	for k, i := range order {
		span := step
		if k < n-1 {
			if next := time.Duration((offsets[k+1] - offsets[k]) * float64(time.Second)); next < span {
				span = next
			}
		}
		out[i] = span
	}
	return out, step
}

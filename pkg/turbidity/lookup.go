package turbidity

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/interp"

	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

// monthMiddles are the day-of-year anchors for each month's climatological value,
// extended by December before January and January after December.
var monthMiddles = []float64{-16, 15, 46, 74, 105, 135, 166, 196, 227, 258, 288, 319, 349, 380}

// Lookup returns the Linke turbidity for every instant. Months and days are taken from
// each instant's own local calendar date, not from UTC: two expressions of the same
// instant in different zones can straddle a day or month boundary and differ.
//
// With interpolate, values are linearly interpolated between month middles against the
// local day of year; otherwise the local calendar month's value is returned.
// Each distinct (lat, lon) pair is read from src once.
func Lookup(src Source, times []time.Time, lat, lon []float64, interpolate bool) ([]float64, error) {
	if len(times) == 0 {
		return nil, timeseries.ErrEmptySeries
	}
	lats, err := timeseries.Broadcast("latitude", lat, len(times))
	if err != nil {
		return nil, err
	}
	lons, err := timeseries.Broadcast("longitude", lon, len(times))
	if err != nil {
		return nil, err
	}
	if err := timeseries.ValidateCoordinates(lats, lons); err != nil {
		return nil, fmt.Errorf("turbidity lookup: %w", err)
	}

	type point struct{ lat, lon float64 }
	monthly := make(map[point][Months]uint8)
	curves := make(map[point]*interp.PiecewiseLinear)

	out := make([]float64, len(times))
	for i, t := range times {
		p := point{lats[i], lons[i]}
		raw, ok := monthly[p]
		if !ok {
			if raw, err = src.Monthly(p.lat, p.lon); err != nil {
				return nil, err
			}
			monthly[p] = raw
		}

		if !interpolate {
			out[i] = float64(raw[t.Month()-1]) / Scale
			continue
		}

		curve, ok := curves[p]
		if !ok {
			if curve, err = fitCurve(raw); err != nil {
				return nil, err
			}
			curves[p] = curve
		}
		out[i] = curve.Predict(float64(t.YearDay()))
	}
	return out, nil
}

// fitCurve builds the periodic month-middle interpolant for one cell. Predictions
// outside the anchors are clamped to the end values.
func fitCurve(raw [Months]uint8) (*interp.PiecewiseLinear, error) {
	ys := make([]float64, 0, len(monthMiddles))
	ys = append(ys, float64(raw[Months-1])/Scale)
	for _, v := range raw {
		ys = append(ys, float64(v)/Scale)
	}
	ys = append(ys, float64(raw[0])/Scale)

	var pl interp.PiecewiseLinear
	if err := pl.Fit(monthMiddles, ys); err != nil {
		return nil, fmt.Errorf("error fitting turbidity curve: %w", err)
	}
	return &pl, nil
}

// Point is Lookup for a single instant and location.
func Point(src Source, t time.Time, lat, lon float64, interpolate bool) (float64, error) {
	v, err := Lookup(src, []time.Time{t}, timeseries.Scalar(lat), timeseries.Scalar(lon), interpolate)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

package restserver

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/chrissnell/pvestimate/internal/weather"
	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

// maxPoints caps the length of generated time ranges.
const maxPoints = 100000

var (
	errMissingParam = errors.New("missing required parameter")
	errBadParam     = errors.New("invalid parameter")
	errTooManyRows  = fmt.Errorf("time range exceeds %d points", maxPoints)
)

// floatParam parses a numeric query parameter, returning def when it is absent and
// not required.
func floatParam(q url.Values, name string, required bool, def float64) (float64, error) {
	s := q.Get(name)
	if s == "" {
		if required {
			return 0, fmt.Errorf("%w: %s", errMissingParam, name)
		}
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", errBadParam, name, s)
	}
	return v, nil
}

func boolParam(q url.Values, name string) (bool, error) {
	s := q.Get(name)
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", errBadParam, name, s)
	}
	return v, nil
}

// locationParam loads the tz parameter, falling back to def.
func locationParam(q url.Values, def *time.Location) (*time.Location, error) {
	name := q.Get("tz")
	if name == "" {
		return def, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: tz=%q", errBadParam, name)
	}
	return loc, nil
}

// timeRange builds the instants described by start, end and step (default one hour).
// Timestamps without an offset are read in loc.
func timeRange(q url.Values, loc *time.Location) ([]time.Time, error) {
	var bounds [2]time.Time
	for i, name := range []string{"start", "end"} {
		s := q.Get(name)
		if s == "" {
			return nil, fmt.Errorf("%w: %s", errMissingParam, name)
		}
		t, err := weather.ParseTime(s, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", errBadParam, name, err)
		}
		bounds[i] = t
	}

	step := time.Hour
	if s := q.Get("step"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: step=%q", errBadParam, s)
		}
		step = d
	}

	start, end := bounds[0], bounds[1]
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end is before start", errBadParam)
	}
	if end.Sub(start)/step >= maxPoints {
		return nil, errTooManyRows
	}
	return timeseries.Range(start, end, step), nil
}

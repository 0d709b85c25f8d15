package timeseries

import (
	"time"
)

// Index is a prepared sequence of instants: UTC values for computation and the
// caller's original locations for output.
type Index struct {
	utc  []time.Time
	locs []*time.Location
}

// Prepare normalises times to UTC, remembering each time's location.
func Prepare(times []time.Time) (Index, error) {
	if len(times) == 0 {
		return Index{}, ErrEmptySeries
	}
	idx := Index{
		utc:  make([]time.Time, len(times)),
		locs: make([]*time.Location, len(times)),
	}
	for i, t := range times {
		idx.utc[i] = t.UTC()
		idx.locs[i] = t.Location()
	}
	return idx, nil
}

// Len returns the number of instants.
func (x Index) Len() int { return len(x.utc) }

// UTC returns instant i in UTC.
func (x Index) UTC(i int) time.Time { return x.utc[i] }

// Times returns a copy of the UTC instants.
func (x Index) Times() []time.Time {
	out := make([]time.Time, len(x.utc))
	copy(out, x.utc)
	return out
}

// Restore returns instant i in its original location.
func (x Index) Restore(i int) time.Time {
	return x.utc[i].In(x.locs[i])
}

// Location returns the original location of instant i.
func (x Index) Location(i int) *time.Location { return x.locs[i] }

// OffsetHours returns the UTC offset in hours of instant i in its original location.
func (x Index) OffsetHours(i int) float64 {
	_, off := x.Restore(i).Zone()
	return float64(off) / 3600.0
}

// Range builds a series from start (inclusive) to end (inclusive) every step.
func Range(start, end time.Time, step time.Duration) []time.Time {
	if step <= 0 || end.Before(start) {
		return nil
	}
	var out []time.Time
	for t := start; !t.After(end); t = t.Add(step) {
		out = append(out, t)
	}
	return out
}

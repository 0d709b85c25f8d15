// Package weather reads measured weather series from CSV files.
package weather

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

var (
	// ErrMissingColumn is returned when a required column is absent from the header.
	ErrMissingColumn = errors.New("missing required column")
	// ErrNoRows is returned for files with a header and no data.
	ErrNoRows = errors.New("weather file has no data rows")
)

// Column names, matched case-insensitively.
const (
	ColTime      = "time"
	ColGHI       = "ghi"
	ColDNI       = "dni"
	ColDHI       = "dhi"
	ColTempAir   = "temp_air"
	ColWindSpeed = "wind_speed"
)

// Series is a weather record set in file order. Optional columns that are absent are nil;
// empty cells are NaN.
type Series struct {
	Times     []time.Time
	GHI       []float64
	DNI       []float64
	DHI       []float64
	TempAir   []float64
	WindSpeed []float64
}

// Len returns the number of records.
func (s *Series) Len() int { return len(s.Times) }

// HasComponents reports whether measured DNI and DHI are both present.
func (s *Series) HasComponents() bool { return s.DNI != nil && s.DHI != nil }

// Step returns the median spacing between records whatever their order, or an hour
// for single-record series.
func (s *Series) Step() time.Duration {
	_, step := timeseries.Intervals(s.Times)
	return step
}

var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
}

// ParseTime accepts RFC 3339 timestamps, keeping their offset, or naive timestamps which
// are read in loc (UTC when nil).
func ParseTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp %q", value)
}

// Read parses a weather CSV. Naive timestamps are interpreted in loc.
func Read(r io.Reader, loc *time.Location) (*Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read weather header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, req := range []string{ColTime, ColGHI} {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, req)
		}
	}

	s := &Series{}
	optional := map[string]*[]float64{
		ColDNI:       &s.DNI,
		ColDHI:       &s.DHI,
		ColTempAir:   &s.TempAir,
		ColWindSpeed: &s.WindSpeed,
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		t, err := ParseTime(rec[cols[ColTime]], loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ghi, err := parseValue(rec[cols[ColGHI]])
		if err != nil {
			return nil, fmt.Errorf("line %d: ghi: %w", line, err)
		}
		s.Times = append(s.Times, t)
		s.GHI = append(s.GHI, ghi)

		for name, dst := range optional {
			idx, ok := cols[name]
			if !ok {
				continue
			}
			v, err := parseValue(rec[idx])
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
			*dst = append(*dst, v)
		}
	}

	if s.Len() == 0 {
		return nil, ErrNoRows
	}
	return s, nil
}

// ReadFile opens and parses a weather CSV file.
func ReadFile(path string, loc *time.Location) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open weather file: %w", err)
	}
	defer f.Close()
	return Read(f, loc)
}

func parseValue(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(v, 64)
}

// Package timeseries holds the plumbing shared by every model package: instants
// normalised to UTC and restored to their original location, broadcasting of
// scalar-or-per-instant parameters, and per-row status markers.
package timeseries

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrLengthMismatch = errors.New("parallel input lengths do not match")
	ErrEmptySeries    = errors.New("time series is empty")
	ErrLatitudeRange  = errors.New("latitude out of range [-90, 90]")
	ErrLongitudeRange = errors.New("longitude out of range [-180, 180]")
)

// Status marks how a row's numeric fields should be read.
type Status uint8

const (
	// StatusOK rows carry regular values. A model may still leave a field it does not
	// produce as NaN and flag that on the row (clearsky.Row.GHIOnly).
	StatusOK Status = iota
	// StatusNight rows have the sun at or below the horizon; irradiance fields are zero.
	StatusNight
	// StatusUndefined rows are physically undefined; numeric fields hold NaN.
	StatusUndefined
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNight:
		return "night"
	case StatusUndefined:
		return "undefined"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// MarshalText lets encoders emit the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// GeoPoint is a location on the globe in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Validate checks the point lies on the globe.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: %v", ErrLatitudeRange, p.Lat)
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: %v", ErrLongitudeRange, p.Lon)
	}
	return nil
}

// ValidateCoordinates checks every latitude/longitude pair of two broadcast series.
func ValidateCoordinates(lats, lons []float64) error {
	if len(lats) != len(lons) {
		return fmt.Errorf("%w: %d latitudes, %d longitudes", ErrLengthMismatch, len(lats), len(lons))
	}
	for i := range lats {
		if err := (GeoPoint{Lat: lats[i], Lon: lons[i]}).Validate(); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// Broadcast expands a scalar-or-per-instant parameter to n values. A slice of
// length 1 is repeated; a slice of length n is copied; anything else is an error.
func Broadcast(name string, v []float64, n int) ([]float64, error) {
	switch len(v) {
	case n:
		out := make([]float64, n)
		copy(out, v)
		return out, nil
	case 1:
		out := make([]float64, n)
		for i := range out {
			out[i] = v[0]
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s has %d values, want 1 or %d", ErrLengthMismatch, name, len(v), n)
}

// Scalar is shorthand for a single-value parameter.
func Scalar(v float64) []float64 {
	return []float64{v}
}

// RequireLength checks a required per-instant series has exactly n values.
func RequireLength(name string, v []float64, n int) error {
	if len(v) != n {
		return fmt.Errorf("%w: %s has %d values, want %d", ErrLengthMismatch, name, len(v), n)
	}
	return nil
}

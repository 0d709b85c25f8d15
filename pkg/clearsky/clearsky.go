// Package clearsky estimates cloudless-sky irradiance from solar geometry.
package clearsky

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/chrissnell/pvestimate/pkg/solar"
	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

// ErrUnknownModel is returned by ModelFor for names that are not registered.
var ErrUnknownModel = errors.New("unknown clear-sky model")

// Input is a time series of instants plus per-site parameters. Every parameter slice
// holds either one value or one value per instant.
type Input struct {
	Times          []time.Time
	Latitude       []float64
	Longitude      []float64
	Altitude       []float64 // metres above sea level; defaults to 0
	LinkeTurbidity []float64 // dimensionless; required by Ineichen-Perez
	DNIExtra       []float64 // optional top-of-atmosphere irradiance override, W/m²
}

// Row is one clear-sky estimate. On daylight rows of GHI-only models DNI and DHI are
// NaN with GHIOnly set: the component is not modelled, which is distinct from a
// StatusUndefined row. Night rows are zero for every model.
type Row struct {
	Time           time.Time         `json:"time"`
	Zenith         float64           `json:"zenith"`
	Airmass        float64           `json:"airmass"` // absolute; NaN when the sun is down
	GHI            float64           `json:"ghi"`
	DNI            float64           `json:"dni"`
	DHI            float64           `json:"dhi"`
	BNCI           float64           `json:"bnci,omitempty"`
	BNCIConstraint float64           `json:"bnci_constraint,omitempty"`
	GHIOnly        bool              `json:"ghi_only,omitempty"` // DNI and DHI are not modelled
	Status         timeseries.Status `json:"status"`
}

// Model is a clear-sky irradiance model.
type Model interface {
	Name() string
	// ProvidesComponents reports whether Estimate fills DNI and DHI.
	ProvidesComponents() bool
	Estimate(in Input) ([]Row, error)
}

var registry = map[string]func() Model{
	"ineichen": func() Model { return NewIneichenPerez(DefaultIneichenOptions()) },
	"haurwitz": func() Model { return Haurwitz{} },
	"bras":     func() Model { return Bras{Factor: DefaultBrasFactor} },
}

// ModelFor returns the model registered under name with default options.
func ModelFor(name string) (Model, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return f(), nil
}

// Names lists the registered model names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// prepared holds an Input after validation and broadcasting.
type prepared struct {
	idx       timeseries.Index
	positions []solar.Position
	altitude  []float64
	turbidity []float64
	dniExtra  []float64
}

func prepare(in Input, needTurbidity bool, solarConstant float64) (*prepared, error) {
	idx, err := timeseries.Prepare(in.Times)
	if err != nil {
		return nil, err
	}
	n := idx.Len()

	p := &prepared{idx: idx}
	lats, err := timeseries.Broadcast("latitude", in.Latitude, n)
	if err != nil {
		return nil, err
	}
	lons, err := timeseries.Broadcast("longitude", in.Longitude, n)
	if err != nil {
		return nil, err
	}
	if err := timeseries.ValidateCoordinates(lats, lons); err != nil {
		return nil, err
	}

	alt := in.Altitude
	if alt == nil {
		alt = timeseries.Scalar(0)
	}
	if p.altitude, err = timeseries.Broadcast("altitude", alt, n); err != nil {
		return nil, err
	}

	if needTurbidity {
		if p.turbidity, err = timeseries.Broadcast("linke turbidity", in.LinkeTurbidity, n); err != nil {
			return nil, err
		}
	}

	if in.DNIExtra != nil {
		if p.dniExtra, err = timeseries.Broadcast("dni extra", in.DNIExtra, n); err != nil {
			return nil, err
		}
	} else {
		p.dniExtra = make([]float64, n)
		for i := range p.dniExtra {
			p.dniExtra[i] = solar.ExtraterrestrialAt(idx.UTC(i), solarConstant)
		}
	}

	p.positions = make([]solar.Position, n)
	for i := range p.positions {
		p.positions[i] = solar.Compute(idx.UTC(i), lats[i], lons[i], 0)
	}
	return p, nil
}

// nightRow is the all-zero row used whenever the sun is at or below the horizon.
func nightRow(zenith float64) Row {
	return Row{Zenith: zenith, Airmass: math.NaN(), Status: timeseries.StatusNight}
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

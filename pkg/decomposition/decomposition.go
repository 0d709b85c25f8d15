// Package decomposition splits measured global horizontal irradiance into its direct
// normal and diffuse horizontal components.
package decomposition

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
var ErrUnknownModel = errors.New("unknown decomposition model")

// Input is a GHI series with the location it was measured at. Zenith may carry
// precomputed solar zenith angles; when nil they are computed from Times.
type Input struct {
	Times     []time.Time
	Latitude  []float64
	Longitude []float64
	GHI       []float64
	Zenith    []float64
	DNIExtra  []float64
}

// Options holds the guards shared by every model.
type Options struct {
	SolarConstant     float64
	MinCosZenith      float64 // floor on cos(zenith) in the clearness index
	MaxClearnessIndex float64
	MaxZenith         float64 // above this, DNI is forced to zero and DHI = GHI
}

// DefaultOptions returns the customary guards.
func DefaultOptions() Options {
	return Options{
		SolarConstant:     solar.SolarConstant,
		MinCosZenith:      0.065,
		MaxClearnessIndex: 1.0,
		MaxZenith:         87,
	}
}

// Row is one decomposed sample.
type Row struct {
	Time            time.Time         `json:"time"`
	Zenith          float64           `json:"zenith"`
	GHI             float64           `json:"ghi"`
	DNI             float64           `json:"dni"`
	DHI             float64           `json:"dhi"`
	Kt              float64           `json:"kt"`
	DiffuseFraction float64           `json:"diffuse_fraction"`
	Status          timeseries.Status `json:"status"`
}

// Model maps clearness index to diffuse fraction.
type Model interface {
	Name() string
	DiffuseFraction(kt float64) float64
}

var registry = map[string]Model{
	"erbs":          Erbs{},
	"boland":        BolandHourly,
	"boland-hourly": BolandHourly,
	"boland-15min":  BolandQuarterHour,
}

// ModelFor returns the model registered under name.
func ModelFor(name string) (Model, error) {
	m, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return m, nil
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

// ClearnessIndex is GHI over horizontal extraterrestrial irradiance, clamped to
// [0, maxKt]. It is zero with the sun below the horizon.
func ClearnessIndex(ghi, zenith, dniExtra, minCosZenith, maxKt float64) float64 {
	if zenith >= 90 {
		return 0
	}
	cosZ := math.Max(math.Cos(zenith*math.Pi/180), minCosZenith)
	kt := ghi / (dniExtra * cosZ)
	return math.Min(math.Max(kt, 0), maxKt)
}

// Decompose applies m to every sample of in.
func Decompose(m Model, in Input, opts Options) ([]Row, error) {
	idx, err := timeseries.Prepare(in.Times)
	if err != nil {
		return nil, err
	}
	n := idx.Len()
	if err := timeseries.RequireLength("ghi", in.GHI, n); err != nil {
		return nil, err
	}

	zenith := in.Zenith
	if zenith != nil {
		if err := timeseries.RequireLength("zenith", zenith, n); err != nil {
			return nil, err
		}
	} else {
		pos, err := solar.Series(in.Times, in.Latitude, in.Longitude)
		if err != nil {
			return nil, err
		}
		zenith = make([]float64, n)
		for i := range pos {
			zenith[i] = pos[i].Zenith
		}
	}

	dniExtra := in.DNIExtra
	if dniExtra != nil {
		if dniExtra, err = timeseries.Broadcast("dni extra", dniExtra, n); err != nil {
			return nil, err
		}
	} else {
		dniExtra = make([]float64, n)
		for i := range dniExtra {
			dniExtra[i] = solar.ExtraterrestrialAt(idx.UTC(i), opts.SolarConstant)
		}
	}

	out := make([]Row, n)
	for i := range out {
		out[i] = sample(m, in.GHI[i], zenith[i], dniExtra[i], opts)
		out[i].Time = idx.Restore(i)
	}
	return out, nil
}

func sample(m Model, ghi, zenith, dniExtra float64, opts Options) Row {
	if math.IsNaN(ghi) || math.IsNaN(zenith) {
		return Row{Zenith: zenith, GHI: ghi, DNI: math.NaN(), DHI: math.NaN(), Kt: math.NaN(),
			DiffuseFraction: math.NaN(), Status: timeseries.StatusUndefined}
	}
	if zenith >= 90 {
		return Row{Zenith: zenith, GHI: math.Max(ghi, 0), Status: timeseries.StatusNight}
	}

	kt := ClearnessIndex(ghi, zenith, dniExtra, opts.MinCosZenith, opts.MaxClearnessIndex)
	df := m.DiffuseFraction(kt)
	dhi := df * ghi
	dni := (ghi - dhi) / math.Cos(zenith*math.Pi/180)

	// Near the horizon the division above blows up; keep closure with DHI = GHI
	if zenith > opts.MaxZenith || ghi < 0 || dni < 0 {
		dni = 0
		dhi = ghi
	}

	return Row{
		Zenith:          zenith,
		GHI:             ghi,
		DNI:             dni,
		DHI:             math.Max(dhi, 0),
		Kt:              kt,
		DiffuseFraction: df,
		Status:          timeseries.StatusOK,
	}
}

// Package transposition converts horizontal irradiance components into the irradiance
// received by a tilted plane (plane-of-array, POA).
package transposition

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
var ErrUnknownModel = errors.New("unknown transposition model")

// Input carries the irradiance series and panel geometry. GHI, DNI and DHI need one
// value per instant; Tilt, Azimuth and Albedo may be a single value. Angles are degrees,
// panel azimuth clockwise from north. Zenith and SunAzimuth may carry a precomputed
// solar position; when nil it is computed from Times and the location.
type Input struct {
	Times      []time.Time
	Latitude   []float64
	Longitude  []float64
	GHI        []float64
	DNI        []float64
	DHI        []float64
	Tilt       []float64
	Azimuth    []float64
	Albedo     []float64
	Zenith     []float64
	SunAzimuth []float64
	DNIExtra   []float64
}

// Options holds the constants shared by the models.
type Options struct {
	SolarConstant float64
	// MinCosZenith floors the cos(zenith) denominator of the beam projection ratio Rb.
	MinCosZenith float64
	// PerezCoefficients names the Perez coefficient set.
	PerezCoefficients string
}

// DefaultOptions returns the customary constants.
func DefaultOptions() Options {
	return Options{
		SolarConstant:     solar.SolarConstant,
		MinCosZenith:      0.01745,
		PerezCoefficients: DefaultPerezCoefficients,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.SolarConstant <= 0 {
		o.SolarConstant = def.SolarConstant
	}
	if o.MinCosZenith <= 0 {
		o.MinCosZenith = def.MinCosZenith
	}
	if o.PerezCoefficients == "" {
		o.PerezCoefficients = def.PerezCoefficients
	}
	return o
}

// Row is the plane-of-array result for one instant plus model diagnostics.
type Row struct {
	Time             time.Time `json:"time"`
	POAGlobal        float64   `json:"poa_global"`
	POABeam          float64   `json:"poa_beam"`
	POASkyDiffuse    float64   `json:"poa_sky_diffuse"`
	POAGroundDiffuse float64   `json:"poa_ground_diffuse"`
	Zenith           float64   `json:"zenith"`
	SolarAzimuth     float64   `json:"solar_azimuth"`
	AOI              float64   `json:"aoi"`

	AnisotropyIndex float64    `json:"anisotropy_index,omitempty"`
	Rb              float64    `json:"rb,omitempty"`
	Sky             *PerezSky  `json:"perez,omitempty"`
	Olmo            *OlmoTerms `json:"olmo,omitempty"`

	// ComponentsDefined is false for models that only produce POAGlobal.
	ComponentsDefined bool              `json:"components_defined"`
	Status            timeseries.Status `json:"status"`
}

// Sample is one instant's inputs with the solar position resolved.
type Sample struct {
	GHI, DNI, DHI float64
	Tilt          float64
	Azimuth       float64
	Albedo        float64
	Zenith        float64
	SunAzimuth    float64
	DNIExtra      float64
}

// Model is a sky-diffuse transposition model.
type Model interface {
	Name() string
	Transpose(in Input, opts Options) ([]Row, error)
}

// sampler computes a daytime row. Night handling and diagnostics common to every
// model are applied by transpose.
type sampler interface {
	sample(s Sample, opts Options) Row
}

var registry = map[string]Model{
	"isotropic": Isotropic{},
	"haydavies": HayDavies{},
	"reindl":    Reindl{},
	"perez":     Perez{},
	"olmo":      Olmo{},
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

// CosAOI returns the cosine of the angle of incidence between the sun and the normal of
// a panel, clamped to [-1, 1]. All angles in degrees.
func CosAOI(tilt, panelAzimuth, zenith, sunAzimuth float64) float64 {
	t, z := degToRad(tilt), degToRad(zenith)
	c := math.Cos(t)*math.Cos(z) + math.Sin(t)*math.Sin(z)*math.Cos(degToRad(sunAzimuth-panelAzimuth))
	return math.Max(-1, math.Min(1, c))
}

// AOI returns the angle of incidence in degrees.
func AOI(tilt, panelAzimuth, zenith, sunAzimuth float64) float64 {
	return radToDeg(math.Acos(CosAOI(tilt, panelAzimuth, zenith, sunAzimuth)))
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }

// beam is the direct component on the plane.
func beam(s Sample, cosAOI float64) float64 {
	return s.DNI * math.Max(cosAOI, 0)
}

// groundDiffuse is the isotropic ground-reflected component.
func groundDiffuse(s Sample) float64 {
	return s.GHI * s.Albedo * (1 - math.Cos(degToRad(s.Tilt))) / 2
}

// anisotropyIndex is the Hay-Davies circumsolar weight DNI/DNIExtra, clamped to [0, 1].
func anisotropyIndex(s Sample) float64 {
	return math.Max(0, math.Min(1, s.DNI/s.DNIExtra))
}

// projectionRatio is Rb, the ratio of beam on the plane to beam on the horizontal.
func projectionRatio(cosAOI, zenith, minCosZenith float64) float64 {
	return math.Max(cosAOI, 0) / math.Max(math.Cos(degToRad(zenith)), minCosZenith)
}

// combine fills the POA totals of a row from its components.
func combine(row Row, b, sky, ground float64) Row {
	row.POABeam = b
	row.POASkyDiffuse = sky
	row.POAGroundDiffuse = ground
	row.POAGlobal = b + sky + ground
	row.ComponentsDefined = true
	if math.IsNaN(row.POAGlobal) {
		row.Status = timeseries.StatusUndefined
	}
	return row
}

func transpose(m sampler, in Input, opts Options) ([]Row, error) {
	opts = opts.withDefaults()
	samples, idx, err := resolve(in, opts)
	if err != nil {
		return nil, err
	}

	out := make([]Row, len(samples))
	for i, s := range samples {
		out[i] = transposeSample(m, s, opts)
		out[i].Time = idx.Restore(i)
	}
	return out, nil
}

// transposeSample applies the night policy around m: when the sun is at or below the
// horizon every output is zero whatever the inputs.
func transposeSample(m sampler, s Sample, opts Options) Row {
	if s.Zenith >= 90 || math.Cos(degToRad(s.Zenith)) <= 0 {
		return Row{
			Zenith:            s.Zenith,
			SolarAzimuth:      s.SunAzimuth,
			AOI:               AOI(s.Tilt, s.Azimuth, s.Zenith, s.SunAzimuth),
			ComponentsDefined: true,
			Status:            timeseries.StatusNight,
		}
	}
	row := m.sample(s, opts)
	row.Zenith = s.Zenith
	row.SolarAzimuth = s.SunAzimuth
	row.AOI = AOI(s.Tilt, s.Azimuth, s.Zenith, s.SunAzimuth)
	return row
}

// resolve validates and broadcasts in, computing the solar position when absent.
func resolve(in Input, opts Options) ([]Sample, timeseries.Index, error) {
	idx, err := timeseries.Prepare(in.Times)
	if err != nil {
		return nil, idx, err
	}
	n := idx.Len()

	for _, c := range []struct {
		name string
		v    []float64
	}{{"ghi", in.GHI}, {"dni", in.DNI}, {"dhi", in.DHI}} {
		if err := timeseries.RequireLength(c.name, c.v, n); err != nil {
			return nil, idx, err
		}
	}

	tilt, err := timeseries.Broadcast("tilt", in.Tilt, n)
	if err != nil {
		return nil, idx, err
	}
	azimuth, err := timeseries.Broadcast("azimuth", in.Azimuth, n)
	if err != nil {
		return nil, idx, err
	}
	albedo := in.Albedo
	if albedo == nil {
		albedo = timeseries.Scalar(0.25)
	}
	if albedo, err = timeseries.Broadcast("albedo", albedo, n); err != nil {
		return nil, idx, err
	}

	zenith, sunAz := in.Zenith, in.SunAzimuth
	if zenith == nil || sunAz == nil {
		pos, err := solar.Series(in.Times, in.Latitude, in.Longitude)
		if err != nil {
			return nil, idx, err
		}
		zenith = make([]float64, n)
		sunAz = make([]float64, n)
		for i, p := range pos {
			zenith[i], sunAz[i] = p.Zenith, p.Azimuth
		}
	} else {
		if zenith, err = timeseries.Broadcast("zenith", zenith, n); err != nil {
			return nil, idx, err
		}
		if sunAz, err = timeseries.Broadcast("solar azimuth", sunAz, n); err != nil {
			return nil, idx, err
		}
	}

	var dniExtra []float64
	if in.DNIExtra != nil {
		if dniExtra, err = timeseries.Broadcast("dni extra", in.DNIExtra, n); err != nil {
			return nil, idx, err
		}
	}

	samples := make([]Sample, n)
	for i := range samples {
		s := Sample{
			GHI:        in.GHI[i],
			DNI:        in.DNI[i],
			DHI:        in.DHI[i],
			Tilt:       tilt[i],
			Azimuth:    azimuth[i],
			Albedo:     albedo[i],
			Zenith:     zenith[i],
			SunAzimuth: sunAz[i],
		}
		if dniExtra != nil {
			s.DNIExtra = dniExtra[i]
		} else {
			s.DNIExtra = solar.ExtraterrestrialAt(idx.UTC(i), opts.SolarConstant)
		}
		samples[i] = s
	}
	return samples, idx, nil
}

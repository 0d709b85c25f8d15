package transposition

import (
	"fmt"
	"math"

	"github.com/chrissnell/pvestimate/pkg/solar"
	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

// DefaultPerezCoefficients is the all-sites composite fit of Perez et al. (1990).
const DefaultPerezCoefficients = "allsitescomposite1990"

// UndefinedBin is reported when the sky clearness is undefined.
const UndefinedBin = 9

// PerezTable holds the brightness coefficients per sky clearness bin. Each row is
// (c0, c1, c2) for F = c0 + c1·Δ + c2·z.
type PerezTable struct {
	F1 [8][3]float64
	F2 [8][3]float64
}

var perezTables = map[string]PerezTable{
	DefaultPerezCoefficients: {
		F1: [8][3]float64{
			{-0.008, 0.588, -0.062},
			{0.130, 0.683, -0.151},
			{0.330, 0.487, -0.221},
			{0.568, 0.187, -0.295},
			{0.873, -0.392, -0.362},
			{1.132, -1.237, -0.412},
			{1.060, -1.600, -0.359},
			{0.678, -0.327, -0.250},
		},
		F2: [8][3]float64{
			{-0.060, 0.072, -0.022},
			{-0.019, 0.066, -0.029},
			{0.055, -0.064, -0.026},
			{0.109, -0.152, -0.014},
			{0.226, -0.462, 0.001},
			{0.288, -0.823, 0.056},
			{0.264, -1.127, 0.131},
			{0.156, -1.377, 0.251},
		},
	},
}

// clearness bin upper edges; bins are right-inclusive.
var perezEdges = [7]float64{1.065, 1.23, 1.5, 1.95, 2.8, 4.5, 6.2}

const perezKappa = 1.041

// PerezTableFor returns the named coefficient set.
func PerezTableFor(name string) (PerezTable, error) {
	t, ok := perezTables[name]
	if !ok {
		return PerezTable{}, fmt.Errorf("unknown perez coefficient set %q", name)
	}
	return t, nil
}

// PerezSky holds the Perez sky classification of one instant.
type PerezSky struct {
	Epsilon float64 `json:"epsilon"`
	Delta   float64 `json:"delta"`
	Bin     int     `json:"bin"`
	F1      float64 `json:"f1"`
	F2      float64 `json:"f2"`
}

// ClearnessBin maps sky clearness ε to bin 1..8, or UndefinedBin for NaN.
func ClearnessBin(eps float64) int {
	if math.IsNaN(eps) {
		return UndefinedBin
	}
	for i, edge := range perezEdges {
		if eps <= edge {
			return i + 1
		}
	}
	return len(perezEdges) + 1
}

// Perez models the sky as circumsolar, horizon-band and isotropic regions whose weights
// depend on the sky clearness and brightness.
type Perez struct{}

func (Perez) Name() string { return "perez" }

func (m Perez) Transpose(in Input, opts Options) ([]Row, error) {
	if _, err := PerezTableFor(opts.withDefaults().PerezCoefficients); err != nil {
		return nil, err
	}
	return transpose(m, in, opts)
}

// Classify computes ε, Δ, the bin and the brightness coefficients for one daytime instant.
func (Perez) Classify(s Sample, table PerezTable) PerezSky {
	z := degToRad(s.Zenith)
	k := perezKappa * z * z * z
	eps := ((s.DHI+s.DNI)/s.DHI + k) / (1 + k)

	am, _ := solar.RelativeAirmass(s.Zenith)
	delta := s.DHI * am / s.DNIExtra

	sky := PerezSky{Epsilon: eps, Delta: delta, Bin: ClearnessBin(eps)}
	if sky.Bin == UndefinedBin {
		sky.F1, sky.F2 = math.NaN(), math.NaN()
		return sky
	}
	c1, c2 := table.F1[sky.Bin-1], table.F2[sky.Bin-1]
	sky.F1 = math.Max(c1[0]+c1[1]*delta+c1[2]*z, 0)
	sky.F2 = c2[0] + c2[1]*delta + c2[2]*z
	return sky
}

func (m Perez) sample(s Sample, opts Options) Row {
	table, _ := PerezTableFor(opts.PerezCoefficients)
	cosAOI := CosAOI(s.Tilt, s.Azimuth, s.Zenith, s.SunAzimuth)
	sky := m.Classify(s, table)

	b := beam(s, cosAOI)
	ground := groundDiffuse(s)
	row := Row{Sky: &sky}
	if sky.Bin == UndefinedBin {
		row.POABeam = b
		row.POAGroundDiffuse = ground
		row.POASkyDiffuse = math.NaN()
		row.POAGlobal = math.NaN()
		row.ComponentsDefined = true
		row.Status = timeseries.StatusUndefined
		return row
	}

	t := degToRad(s.Tilt)
	a := math.Max(cosAOI, 0)
	bb := math.Max(math.Cos(degToRad(s.Zenith)), math.Cos(degToRad(85)))
	diffuse := s.DHI * (0.5*(1-sky.F1)*(1+math.Cos(t)) + sky.F1*a/bb + sky.F2*math.Sin(t))
	return combine(row, b, math.Max(diffuse, 0), ground)
}

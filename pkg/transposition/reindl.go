package transposition

import "math"

// Reindl extends Hay-Davies with a horizon-brightening factor
// 1 + sqrt(beam/GHI)·sin³(tilt/2) applied to the isotropic term.
type Reindl struct{}

func (Reindl) Name() string { return "reindl" }

func (m Reindl) Transpose(in Input, opts Options) ([]Row, error) {
	return transpose(m, in, opts)
}

func (Reindl) sample(s Sample, opts Options) Row {
	cosAOI := CosAOI(s.Tilt, s.Azimuth, s.Zenith, s.SunAzimuth)
	ai := anisotropyIndex(s)
	rb := projectionRatio(cosAOI, s.Zenith, opts.MinCosZenith)

	t := degToRad(s.Tilt)
	hb := 1 + math.Sqrt(math.Max(s.GHI-s.DHI, 0)/math.Max(s.GHI, 1))*math.Pow(math.Sin(t/2), 3)
	iso := s.DHI * (1 - ai) * (1 + math.Cos(t)) / 2 * hb
	circ := s.DHI * ai * rb
	sky := math.Max(iso+circ, 0)

	row := Row{AnisotropyIndex: ai, Rb: rb}
	return combine(row, beam(s, cosAOI), sky, groundDiffuse(s))
}

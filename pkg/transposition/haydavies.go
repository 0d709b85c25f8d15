package transposition

import "math"

// HayDavies splits the diffuse sky into an isotropic part and a circumsolar part that
// is projected like beam irradiance, weighted by the anisotropy index DNI/DNIExtra.
type HayDavies struct{}

func (HayDavies) Name() string { return "haydavies" }

func (m HayDavies) Transpose(in Input, opts Options) ([]Row, error) {
	return transpose(m, in, opts)
}

func (HayDavies) sample(s Sample, opts Options) Row {
	cosAOI := CosAOI(s.Tilt, s.Azimuth, s.Zenith, s.SunAzimuth)
	ai := anisotropyIndex(s)
	rb := projectionRatio(cosAOI, s.Zenith, opts.MinCosZenith)

	iso := (1 - ai) * (1 + math.Cos(degToRad(s.Tilt))) / 2
	sky := math.Max(s.DHI*(iso+ai*rb), 0)

	row := Row{AnisotropyIndex: ai, Rb: rb}
	return combine(row, beam(s, cosAOI), sky, groundDiffuse(s))
}

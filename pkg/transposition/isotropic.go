package transposition

import "math"

// Isotropic treats the sky dome as uniformly bright (Liu and Jordan).
type Isotropic struct{}

func (Isotropic) Name() string { return "isotropic" }

func (m Isotropic) Transpose(in Input, opts Options) ([]Row, error) {
	return transpose(m, in, opts)
}

func (Isotropic) sample(s Sample, _ Options) Row {
	cosAOI := CosAOI(s.Tilt, s.Azimuth, s.Zenith, s.SunAzimuth)
	sky := math.Max(s.DHI*(1+math.Cos(degToRad(s.Tilt)))/2, 0)
	return combine(Row{}, beam(s, cosAOI), sky, groundDiffuse(s))
}

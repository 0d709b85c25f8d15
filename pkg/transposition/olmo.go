package transposition

import (
	"math"

	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

// Olmo estimates global tilted irradiance directly from GHI using the clearness index
// and the angle of incidence. It does not split the result into components, so
// ComponentsDefined is false and only POAGlobal is meaningful.
//
// The empirical fit comes from a single site; results elsewhere are indicative.
type Olmo struct{}

func (Olmo) Name() string { return "olmo" }

func (m Olmo) Transpose(in Input, opts Options) ([]Row, error) {
	return transpose(m, in, opts)
}

// OlmoTerms are the intermediate factors of the Olmo model.
type OlmoTerms struct {
	Kt  float64 `json:"kt"`
	Psi float64 `json:"psi"`
	Fc  float64 `json:"fc"`
}

func (Olmo) sample(s Sample, _ Options) Row {
	z := degToRad(s.Zenith)
	i0 := s.DNIExtra * math.Cos(z)
	kt := math.Min(s.GHI/i0, 1)

	theta := math.Acos(CosAOI(s.Tilt, s.Azimuth, s.Zenith, s.SunAzimuth))
	psi := math.Exp(-kt * (theta*theta - z*z))
	fc := 1 + s.Albedo*math.Pow(math.Sin(theta/2), 2)
	global := math.Max(s.GHI*psi*fc, 0)

	row := Row{
		POAGlobal: global,
		Olmo:      &OlmoTerms{Kt: kt, Psi: psi, Fc: fc},
	}
	if math.IsNaN(global) {
		row.POAGlobal = math.NaN()
		row.Status = timeseries.StatusUndefined
	}
	return row
}

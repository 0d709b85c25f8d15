package clearsky

import (
	"math"

	"github.com/chrissnell/pvestimate/pkg/solar"
	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

// Haurwitz is the Haurwitz (1945) clear-sky GHI model. It needs only geometry and does
// not split GHI into beam and diffuse components.
type Haurwitz struct{}

func (Haurwitz) Name() string             { return "haurwitz" }
func (Haurwitz) ProvidesComponents() bool { return false }

// Estimate computes GHI for every instant. DNI and DHI are NaN on daylight rows.
func (h Haurwitz) Estimate(in Input) ([]Row, error) {
	p, err := prepare(in, false, solar.SolarConstant)
	if err != nil {
		return nil, err
	}

	out := make([]Row, p.idx.Len())
	for i := range out {
		out[i] = haurwitzSample(p.positions[i].Zenith, p.altitude[i])
		out[i].Time = p.idx.Restore(i)
	}
	return out, nil
}

func haurwitzSample(zenith, altitude float64) Row {
	cosZ := math.Cos(zenith * math.Pi / 180)
	if zenith >= 90 || cosZ <= 0 {
		row := nightRow(zenith)
		row.GHIOnly = true
		return row
	}
	am, _ := solar.AbsoluteAirmass(zenith, altitude)
	return Row{
		Zenith:  zenith,
		Airmass: am,
		GHI:     1098.0 * cosZ * math.Exp(-0.057/cosZ),
		DNI:     math.NaN(),
		DHI:     math.NaN(),
		GHIOnly: true,
		Status:  timeseries.StatusOK,
	}
}

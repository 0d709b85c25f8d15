package clearsky

import (
	"math"

	"github.com/chrissnell/pvestimate/pkg/solar"
	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

// DefaultBrasFactor is the atmospheric turbidity factor for clear air. Values from 2 to 5
// cover clear to smoggy skies.
const DefaultBrasFactor = 2.0

// Bras is the Bras (1990) clear-sky GHI model. Like Haurwitz it does not split GHI into
// beam and diffuse, but it attenuates with an explicit turbidity factor.
type Bras struct {
	Factor float64
}

func (Bras) Name() string             { return "bras" }
func (Bras) ProvidesComponents() bool { return false }

// Estimate computes GHI for every instant. DNI and DHI are NaN on daylight rows.
func (b Bras) Estimate(in Input) ([]Row, error) {
	p, err := prepare(in, false, solar.SolarConstant)
	if err != nil {
		return nil, err
	}
	nfac := b.Factor
	if nfac <= 0 {
		nfac = DefaultBrasFactor
	}

	out := make([]Row, p.idx.Len())
	for i := range out {
		out[i] = brasSample(p.positions[i].Zenith, p.altitude[i], nfac, p.dniExtra[i])
		out[i].Time = p.idx.Restore(i)
	}
	return out, nil
}

func brasSample(zenith, altitude, nfac, dniExtra float64) Row {
	cosZ := math.Cos(zenith * math.Pi / 180)
	if zenith >= 90 || cosZ <= 0 {
		row := nightRow(zenith)
		row.GHIOnly = true
		return row
	}

	// Kasten's optical air mass, elevation in degrees
	m := 1.0 / (cosZ + 0.15*math.Pow(90-zenith+3.885, -1.253))
	// molecular scattering coefficient
	a1 := 0.128 - 0.054*math.Log10(m)

	am, _ := solar.AbsoluteAirmass(zenith, altitude)
	return Row{
		Zenith:  zenith,
		Airmass: am,
		GHI:     dniExtra * cosZ * math.Exp(-nfac*a1*m),
		DNI:     math.NaN(),
		DHI:     math.NaN(),
		GHIOnly: true,
		Status:  timeseries.StatusOK,
	}
}

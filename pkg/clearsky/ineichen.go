package clearsky

import (
	"math"

	"github.com/chrissnell/pvestimate/pkg/solar"
	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

// IneichenOptions tunes the Ineichen-Perez model.
type IneichenOptions struct {
	// MinCosZenith floors cos(zenith) near the horizon.
	MinCosZenith float64
	// PerezEnhancement applies the exp(0.01·AM^1.8) very-clear-sky correction to GHI.
	PerezEnhancement bool
	// SolarConstant feeds the extraterrestrial irradiance when Input.DNIExtra is nil.
	SolarConstant float64
}

// DefaultIneichenOptions returns the published defaults.
func DefaultIneichenOptions() IneichenOptions {
	return IneichenOptions{
		MinCosZenith:  0.065,
		SolarConstant: solar.SolarConstant,
	}
}

// IneichenPerez is the Ineichen and Perez (2002) clear-sky model driven by Linke turbidity
// and site altitude. It is valid for zenith < 90° and 1 ≤ TL ≤ 10; outside that domain
// outputs are zeroed or clamped rather than rejected.
type IneichenPerez struct {
	opts IneichenOptions
}

// NewIneichenPerez builds the model, filling zero options with defaults.
func NewIneichenPerez(opts IneichenOptions) *IneichenPerez {
	def := DefaultIneichenOptions()
	if opts.MinCosZenith <= 0 {
		opts.MinCosZenith = def.MinCosZenith
	}
	if opts.SolarConstant <= 0 {
		opts.SolarConstant = def.SolarConstant
	}
	return &IneichenPerez{opts: opts}
}

func (m *IneichenPerez) Name() string             { return "ineichen" }
func (m *IneichenPerez) ProvidesComponents() bool { return true }

// Estimate computes GHI, DNI and DHI for every instant.
func (m *IneichenPerez) Estimate(in Input) ([]Row, error) {
	p, err := prepare(in, true, m.opts.SolarConstant)
	if err != nil {
		return nil, err
	}

	out := make([]Row, p.idx.Len())
	for i := range out {
		out[i] = m.sample(p.positions[i].Zenith, p.altitude[i], p.turbidity[i], p.dniExtra[i])
		out[i].Time = p.idx.Restore(i)
	}
	return out, nil
}

func (m *IneichenPerez) sample(zenith, altitude, tl, dniExtra float64) Row {
	if zenith >= 90 {
		return nightRow(zenith)
	}

	cosZ := math.Max(math.Cos(zenith*math.Pi/180), m.opts.MinCosZenith)
	am, _ := solar.AbsoluteAirmass(zenith, altitude)

	fh1 := math.Exp(-altitude / 8000)
	fh2 := math.Exp(-altitude / 1250)
	cg1 := 5.09e-5*altitude + 0.868
	cg2 := 3.92e-5*altitude + 0.0387

	ghi := cg1 * dniExtra * cosZ * math.Exp(-cg2*am*(fh1+fh2*(tl-1)))
	if m.opts.PerezEnhancement {
		ghi *= math.Exp(0.01 * math.Pow(am, 1.8))
	}

	b := 0.664 + 0.163/fh1
	bnci := b * dniExtra * math.Exp(-0.09*am*(tl-1))
	bnciConstraint := (ghi / cosZ) * (1 - (0.1-0.2*math.Exp(-tl))/(0.1+0.882/fh1))
	dni := math.Min(bnci, bnciConstraint)
	dhi := ghi - dni*cosZ

	row := Row{
		Zenith:         zenith,
		Airmass:        am,
		GHI:            math.Max(ghi, 0),
		DNI:            math.Max(dni, 0),
		DHI:            math.Max(dhi, 0),
		BNCI:           bnci,
		BNCIConstraint: bnciConstraint,
		Status:         timeseries.StatusOK,
	}
	if anyNaN(row.GHI, row.DNI, row.DHI) {
		row.Status = timeseries.StatusUndefined
	}
	return row
}

// Package pvpower turns plane-of-array irradiance into module temperature, DC and AC power.
package pvpower

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

// Cell temperature models.
const (
	TempFaiman   = "faiman"
	TempSkoplaki = "skoplaki"
)

// ErrUnknownTempModel is returned for cell temperature model names that are not known.
var ErrUnknownTempModel = errors.New("unknown cell temperature model")

// FaimanCellTemp returns the module temperature in °C from POA irradiance (W/m²), air
// temperature (°C) and wind speed (m/s). Typical u0 = 25, u1 = 6.84.
func FaimanCellTemp(poa, tAir, wind, u0, u1 float64) float64 {
	return tAir + poa/(u0+u1*math.Max(wind, 0))
}

// SkoplakiCellTemp is the NOCT-based wind-corrected model of Skoplaki et al. (2008).
func SkoplakiCellTemp(poa, tAir, wind, noct, etaSTC float64) float64 {
	windFactor := 9.5 / (5.7 + 3.8*math.Max(wind, 0))
	return tAir + poa/800*(noct-20)*windFactor*(1-etaSTC/0.9)
}

// PVWattsDC is the PVWatts DC model: linear in irradiance with a temperature coefficient
// gamma (1/°C, negative for silicon) around 25 °C. Never negative.
func PVWattsDC(poa, tCell, pdc0, gamma float64) float64 {
	return math.Max(pdc0*poa/1000*(1+gamma*(tCell-25)), 0)
}

// ClipAC converts DC to AC with a flat inverter efficiency and clips at the inverter rating.
func ClipAC(pdc, efficiency, pac0 float64) float64 {
	ac := math.Max(pdc*efficiency, 0)
	if pac0 > 0 {
		ac = math.Min(ac, pac0)
	}
	return ac
}

// System describes a PV array and its inverter.
type System struct {
	// DCRating is the array nameplate power at STC, W.
	DCRating float64
	// Gamma is the power temperature coefficient, 1/°C.
	Gamma float64
	// InverterEfficiency is a flat DC to AC efficiency.
	InverterEfficiency float64
	// ACRating is the inverter limit, W. Zero disables clipping.
	ACRating  float64
	TempModel string
	U0, U1    float64
	NOCT      float64
	EtaSTC    float64
}

// DefaultSystem returns generic crystalline-silicon parameters for the given nameplate.
func DefaultSystem(dcRating float64) System {
	return System{
		DCRating:           dcRating,
		Gamma:              -0.004,
		InverterEfficiency: 0.96,
		ACRating:           dcRating,
		TempModel:          TempFaiman,
		U0:                 25,
		U1:                 6.84,
		NOCT:               45,
		EtaSTC:             0.2,
	}
}

// Validate checks the system parameters.
func (s System) Validate() error {
	if s.DCRating <= 0 {
		return fmt.Errorf("dc rating must be positive, got %v", s.DCRating)
	}
	if s.InverterEfficiency <= 0 || s.InverterEfficiency > 1 {
		return fmt.Errorf("inverter efficiency must be in (0, 1], got %v", s.InverterEfficiency)
	}
	switch s.TempModel {
	case TempFaiman, TempSkoplaki:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTempModel, s.TempModel)
	}
	return nil
}

// CellTemp dispatches to the configured temperature model.
func (s System) CellTemp(poa, tAir, wind float64) float64 {
	if s.TempModel == TempSkoplaki {
		return SkoplakiCellTemp(poa, tAir, wind, s.NOCT, s.EtaSTC)
	}
	return FaimanCellTemp(poa, tAir, wind, s.U0, s.U1)
}

// Output holds the per-instant results of Simulate.
type Output struct {
	CellTemp []float64
	DC       []float64
	AC       []float64
}

// Simulate runs cell temperature, DC and AC for every instant. tAir and wind may be
// single values. NaN irradiance propagates to NaN power.
func (s System) Simulate(poa, tAir, wind []float64) (Output, error) {
	if err := s.Validate(); err != nil {
		return Output{}, err
	}
	n := len(poa)
	ta, err := timeseries.Broadcast("temp_air", tAir, n)
	if err != nil {
		return Output{}, err
	}
	ws, err := timeseries.Broadcast("wind_speed", wind, n)
	if err != nil {
		return Output{}, err
	}

	out := Output{
		CellTemp: make([]float64, n),
		DC:       make([]float64, n),
		AC:       make([]float64, n),
	}
	for i, g := range poa {
		tc := s.CellTemp(g, ta[i], ws[i])
		out.CellTemp[i] = tc
		out.DC[i] = PVWattsDC(g, tc, s.DCRating, s.Gamma)
		out.AC[i] = ClipAC(out.DC[i], s.InverterEfficiency, s.ACRating)
		if math.IsNaN(g) {
			out.DC[i], out.AC[i] = math.NaN(), math.NaN()
		}
	}
	return out, nil
}

// Energy integrates a power series sampled every step into Wh. NaN samples are skipped.
func Energy(power []float64, step time.Duration) float64 {
	finite := make([]float64, 0, len(power))
	for _, p := range power {
		if !math.IsNaN(p) {
			finite = append(finite, p)
		}
	}
	return floats.Sum(finite) * step.Hours()
}

// EnergyOver integrates a power series into Wh, each sample held for its own interval.
// NaN samples are skipped.
func EnergyOver(power []float64, intervals []time.Duration) (float64, error) {
	if len(intervals) != len(power) {
		return 0, fmt.Errorf("%w: %d intervals for %d samples", timeseries.ErrLengthMismatch, len(intervals), len(power))
	}
	var wh float64
	for i, p := range power {
		if !math.IsNaN(p) {
			wh += p * intervals[i].Hours()
		}
	}
	return wh, nil
}

// PerformanceRatio is the AC energy over the energy the nameplate would give at the
// received insolation: E_AC / (P_dc0 · H_poa / 1000). NaN when H_poa is zero.
func PerformanceRatio(energyAC, dcRating, insolation float64) float64 {
	if insolation <= 0 || dcRating <= 0 {
		return math.NaN()
	}
	return energyAC / (dcRating * insolation / 1000)
}

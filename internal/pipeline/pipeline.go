// Package pipeline chains the irradiance and power models into a site estimate:
// solar position, irradiance source (measured or clear-sky), transposition onto the
// array plane, cell temperature, DC and AC power.
package pipeline

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/chrissnell/pvestimate/internal/log"
	"github.com/chrissnell/pvestimate/internal/weather"
	"github.com/chrissnell/pvestimate/pkg/clearsky"
	"github.com/chrissnell/pvestimate/pkg/config"
	"github.com/chrissnell/pvestimate/pkg/decomposition"
	"github.com/chrissnell/pvestimate/pkg/pvpower"
	"github.com/chrissnell/pvestimate/pkg/solar"
	"github.com/chrissnell/pvestimate/pkg/timeseries"
	"github.com/chrissnell/pvestimate/pkg/transposition"
	"github.com/chrissnell/pvestimate/pkg/turbidity"
)

// Irradiance sources reported per run.
const (
	SourceMeasured   = "measured"
	SourceDecomposed = "decomposed"
	SourceClearSky   = "clearsky"
)

// Fallbacks when the weather file carries no temperature or wind.
const (
	DefaultTempAir   = 20.0
	DefaultWindSpeed = 1.0
)

// Olmo's empirical fit comes from Granada; sites further than this are warned about.
var olmoReference = timeseries.GeoPoint{Lat: 37.18, Lon: -3.6}

const olmoMaxDistanceDeg = 5.0

// Config selects models and constants for a run.
type Config struct {
	ClearSky      string
	Decomposition string
	Transposition string
	Turbidity     config.TurbidityData
	Constants     config.ConstantsData
	// Grid serves TurbidityGrid lookups. ConfigFrom opens it from Turbidity.GridPath.
	Grid turbidity.Source
}

// ConfigFrom builds a run configuration from loaded settings.
func ConfigFrom(s *config.SettingsData) (Config, error) {
	cfg := Config{
		ClearSky:      s.Models.ClearSky,
		Decomposition: s.Models.Decomposition,
		Transposition: s.Models.Transposition,
		Turbidity:     s.Turbidity,
		Constants:     s.Constants,
	}
	if s.Turbidity.Source == config.TurbidityGrid {
		grid, err := turbidity.Default(s.Turbidity.GridPath)
		if err != nil {
			return cfg, err
		}
		cfg.Grid = grid
	}
	return cfg, nil
}

// withDefaults fills unset models and constants from config.DefaultSettings.
func (c Config) withDefaults() Config {
	def := config.DefaultSettings()
	if c.ClearSky == "" {
		c.ClearSky = def.Models.ClearSky
	}
	if c.Decomposition == "" {
		c.Decomposition = def.Models.Decomposition
	}
	if c.Transposition == "" {
		c.Transposition = def.Models.Transposition
	}
	if c.Turbidity.Source == "" {
		c.Turbidity.Source = def.Turbidity.Source
	}
	k := &c.Constants
	if k.SolarConstant <= 0 {
		k.SolarConstant = def.Constants.SolarConstant
	}
	if k.ClearSkyMinCosZenith <= 0 {
		k.ClearSkyMinCosZenith = def.Constants.ClearSkyMinCosZenith
	}
	if k.DecompositionMinCosZenith <= 0 {
		k.DecompositionMinCosZenith = def.Constants.DecompositionMinCosZenith
	}
	if k.MaxClearnessIndex <= 0 {
		k.MaxClearnessIndex = def.Constants.MaxClearnessIndex
	}
	if k.MaxZenith <= 0 {
		k.MaxZenith = def.Constants.MaxZenith
	}
	if k.TranspositionMinCosZenith <= 0 {
		k.TranspositionMinCosZenith = def.Constants.TranspositionMinCosZenith
	}
	if k.PerezCoefficients == "" {
		k.PerezCoefficients = def.Constants.PerezCoefficients
	}
	return c
}

// Row is one instant of an estimate.
type Row struct {
	Time             time.Time         `json:"time"`
	Zenith           float64           `json:"zenith"`
	Azimuth          float64           `json:"azimuth"`
	GHI              float64           `json:"ghi"`
	DNI              float64           `json:"dni"`
	DHI              float64           `json:"dhi"`
	LinkeTurbidity   float64           `json:"linke_turbidity,omitempty"`
	AOI              float64           `json:"aoi"`
	POAGlobal        float64           `json:"poa_global"`
	POABeam          float64           `json:"poa_beam"`
	POASkyDiffuse    float64           `json:"poa_sky_diffuse"`
	POAGroundDiffuse float64           `json:"poa_ground_diffuse"`
	CellTemp         float64           `json:"cell_temp"`
	DC               float64           `json:"dc"`
	AC               float64           `json:"ac"`
	Status           timeseries.Status `json:"status"`
}

// Summary aggregates a run.
type Summary struct {
	// Insolation is the plane-of-array irradiation, Wh/m².
	Insolation       float64 `json:"insolation"`
	EnergyDC         float64 `json:"energy_dc"`
	EnergyAC         float64 `json:"energy_ac"`
	PeakAC           float64 `json:"peak_ac"`
	PerformanceRatio float64 `json:"performance_ratio"`
	UndefinedRows    int     `json:"undefined_rows"`
}

// Result is the output of Run.
type Result struct {
	RunID         string  `json:"run_id"`
	Site          string  `json:"site"`
	Array         string  `json:"array"`
	Source        string  `json:"source"`
	ClearSky      string  `json:"clearsky,omitempty"`
	Decomposition string  `json:"decomposition,omitempty"`
	Transposition string  `json:"transposition"`
	Step          string  `json:"step"`
	Summary       Summary `json:"summary"`
	Rows          []Row   `json:"rows"`
}

// Run estimates the output of one array. When w carries GHI the measured irradiance is
// used, decomposed into DNI and DHI unless both are present; when w.GHI is nil the
// configured clear-sky model supplies irradiance for w.Times.
func Run(site config.SiteData, array config.ArrayData, w *weather.Series, cfg Config) (*Result, error) {
	if w == nil || w.Len() == 0 {
		return nil, timeseries.ErrEmptySeries
	}
	cfg = cfg.withDefaults()
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("site %q: %w", site.Name, err)
	}
	transposer, err := transposition.ModelFor(cfg.Transposition)
	if err != nil {
		return nil, err
	}
	system := array.System()
	if err := system.Validate(); err != nil {
		return nil, fmt.Errorf("array %q: %w", array.Name, err)
	}

	res := &Result{
		RunID:         uuid.NewString(),
		Site:          site.Name,
		Array:         array.Name,
		Transposition: transposer.Name(),
	}
	intervals, step := timeseries.Intervals(w.Times)
	res.Step = step.String()
	logger := log.GetSugaredLogger().With("run_id", res.RunID, "site", site.Name, "array", array.Name)

	n := w.Len()
	lat, lon := timeseries.Scalar(site.Latitude), timeseries.Scalar(site.Longitude)
	positions, err := solar.Series(w.Times, lat, lon)
	if err != nil {
		return nil, err
	}
	zenith := make([]float64, n)
	azimuth := make([]float64, n)
	dniExtra := make([]float64, n)
	for i, p := range positions {
		zenith[i], azimuth[i] = p.Zenith, p.Azimuth
		dniExtra[i] = solar.ExtraterrestrialAt(p.Time, cfg.Constants.SolarConstant)
	}

	irr, err := resolveIrradiance(site, w, cfg, zenith, dniExtra, res, logger)
	if err != nil {
		return nil, err
	}

	if transposer.Name() == "olmo" {
		d := math.Hypot(site.Latitude-olmoReference.Lat, site.Longitude-olmoReference.Lon)
		if d > olmoMaxDistanceDeg {
			logger.Warnw("olmo transposition was fitted at a single site; results here are indicative",
				"distance_deg", d)
		}
	}

	poa, err := transposer.Transpose(transposition.Input{
		Times:      w.Times,
		GHI:        irr.ghi,
		DNI:        irr.dni,
		DHI:        irr.dhi,
		Tilt:       timeseries.Scalar(array.Tilt),
		Azimuth:    timeseries.Scalar(array.Azimuth),
		Albedo:     timeseries.Scalar(site.Albedo),
		Zenith:     zenith,
		SunAzimuth: azimuth,
		DNIExtra:   dniExtra,
	}, transposition.Options{
		SolarConstant:     cfg.Constants.SolarConstant,
		MinCosZenith:      cfg.Constants.TranspositionMinCosZenith,
		PerezCoefficients: cfg.Constants.PerezCoefficients,
	})
	if err != nil {
		return nil, fmt.Errorf("transposition: %w", err)
	}

	poaGlobal := make([]float64, n)
	for i, r := range poa {
		poaGlobal[i] = r.POAGlobal
	}
	tAir, wind := w.TempAir, w.WindSpeed
	if tAir == nil {
		tAir = timeseries.Scalar(DefaultTempAir)
	}
	if wind == nil {
		wind = timeseries.Scalar(DefaultWindSpeed)
	}
	power, err := system.Simulate(poaGlobal, fillNaN(tAir, DefaultTempAir), fillNaN(wind, DefaultWindSpeed))
	if err != nil {
		return nil, fmt.Errorf("power: %w", err)
	}

	res.Rows = make([]Row, n)
	for i := range res.Rows {
		p := poa[i]
		row := Row{
			Time:             positions[i].Time,
			Zenith:           zenith[i],
			Azimuth:          azimuth[i],
			GHI:              irr.ghi[i],
			DNI:              irr.dni[i],
			DHI:              irr.dhi[i],
			AOI:              p.AOI,
			POAGlobal:        p.POAGlobal,
			POABeam:          p.POABeam,
			POASkyDiffuse:    p.POASkyDiffuse,
			POAGroundDiffuse: p.POAGroundDiffuse,
			CellTemp:         power.CellTemp[i],
			DC:               power.DC[i],
			AC:               power.AC[i],
			Status:           worst(irr.status[i], p.Status),
		}
		if irr.turbidity != nil {
			row.LinkeTurbidity = irr.turbidity[i]
		}
		res.Rows[i] = row
	}
	res.Summary = summarize(res.Rows, power, poaGlobal, intervals, system.DCRating)

	logger.Debugw("run finished",
		"rows", n,
		"energy_ac_wh", res.Summary.EnergyAC,
		"undefined_rows", res.Summary.UndefinedRows)
	return res, nil
}

type irradiance struct {
	ghi, dni, dhi []float64
	turbidity     []float64
	status        []timeseries.Status
}

// resolveIrradiance picks the irradiance source and fills GHI, DNI and DHI.
func resolveIrradiance(site config.SiteData, w *weather.Series, cfg Config, zenith, dniExtra []float64, res *Result, logger *zap.SugaredLogger) (*irradiance, error) {
	n := w.Len()
	irr := &irradiance{status: make([]timeseries.Status, n)}

	switch {
	case w.GHI != nil && w.HasComponents():
		res.Source = SourceMeasured
		irr.ghi, irr.dni, irr.dhi = w.GHI, w.DNI, w.DHI
		for i := range irr.status {
			if math.IsNaN(irr.ghi[i]) || math.IsNaN(irr.dni[i]) || math.IsNaN(irr.dhi[i]) {
				irr.status[i] = timeseries.StatusUndefined
			}
		}
		return irr, nil

	case w.GHI != nil:
		res.Source = SourceDecomposed
		return decompose(w.Times, w.GHI, zenith, dniExtra, cfg, res, irr)
	}

	res.Source = SourceClearSky
	model, err := clearSkyModel(cfg)
	if err != nil {
		return nil, err
	}
	res.ClearSky = model.Name()

	tl, err := linkeTurbidity(site, w.Times, cfg)
	if err == nil {
		tl, err = timeseries.Broadcast("linke turbidity", tl, n)
	}
	if err != nil {
		return nil, fmt.Errorf("linke turbidity: %w", err)
	}
	irr.turbidity = tl
	if outside := countOutside(tl, 1, 10); outside > 0 {
		logger.Warnw("linke turbidity outside the validated range [1, 10]", "rows", outside)
	}

	rows, err := model.Estimate(clearsky.Input{
		Times:          w.Times,
		Latitude:       timeseries.Scalar(site.Latitude),
		Longitude:      timeseries.Scalar(site.Longitude),
		Altitude:       timeseries.Scalar(site.Altitude),
		LinkeTurbidity: tl,
		DNIExtra:       dniExtra,
	})
	if err != nil {
		return nil, fmt.Errorf("clear-sky: %w", err)
	}

	ghi := make([]float64, n)
	for i, r := range rows {
		ghi[i] = r.GHI
	}
	if !model.ProvidesComponents() {
		return decompose(w.Times, ghi, zenith, dniExtra, cfg, res, irr)
	}

	irr.ghi = ghi
	irr.dni = make([]float64, n)
	irr.dhi = make([]float64, n)
	for i, r := range rows {
		irr.dni[i], irr.dhi[i], irr.status[i] = r.DNI, r.DHI, r.Status
	}
	return irr, nil
}

func decompose(times []time.Time, ghi, zenith, dniExtra []float64, cfg Config, res *Result, irr *irradiance) (*irradiance, error) {
	model, err := decomposition.ModelFor(cfg.Decomposition)
	if err != nil {
		return nil, err
	}
	res.Decomposition = model.Name()

	rows, err := decomposition.Decompose(model, decomposition.Input{
		Times:    times,
		GHI:      ghi,
		Zenith:   zenith,
		DNIExtra: dniExtra,
	}, decomposition.Options{
		SolarConstant:     cfg.Constants.SolarConstant,
		MinCosZenith:      cfg.Constants.DecompositionMinCosZenith,
		MaxClearnessIndex: cfg.Constants.MaxClearnessIndex,
		MaxZenith:         cfg.Constants.MaxZenith,
	})
	if err != nil {
		return nil, fmt.Errorf("decomposition: %w", err)
	}

	n := len(rows)
	irr.ghi = ghi
	irr.dni = make([]float64, n)
	irr.dhi = make([]float64, n)
	for i, r := range rows {
		irr.dni[i], irr.dhi[i] = r.DNI, r.DHI
		irr.status[i] = worst(irr.status[i], r.Status)
	}
	return irr, nil
}

func clearSkyModel(cfg Config) (clearsky.Model, error) {
	if cfg.ClearSky == "ineichen" {
		return clearsky.NewIneichenPerez(clearsky.IneichenOptions{
			MinCosZenith:     cfg.Constants.ClearSkyMinCosZenith,
			PerezEnhancement: cfg.Constants.PerezEnhancement,
			SolarConstant:    cfg.Constants.SolarConstant,
		}), nil
	}
	return clearsky.ModelFor(cfg.ClearSky)
}

// ErrNoGrid is returned when grid turbidity is configured without a grid source.
var ErrNoGrid = errors.New("grid turbidity selected but no grid loaded")

func linkeTurbidity(site config.SiteData, times []time.Time, cfg Config) ([]float64, error) {
	if site.LinkeTurbidity > 0 {
		return timeseries.Scalar(site.LinkeTurbidity), nil
	}
	switch cfg.Turbidity.Source {
	case config.TurbidityFixed:
		return timeseries.Scalar(cfg.Turbidity.Fixed), nil
	case config.TurbidityGrid:
		if cfg.Grid == nil {
			return nil, ErrNoGrid
		}
		return turbidity.Lookup(cfg.Grid, times,
			timeseries.Scalar(site.Latitude), timeseries.Scalar(site.Longitude), cfg.Turbidity.Interpolate)
	default:
		class, err := turbidity.ParseLocationClass(site.LocationClass)
		if err != nil {
			class = turbidity.Rural
		}
		return turbidity.Simple(times, site.Latitude, class), nil
	}
}

// summarize integrates every row over its own interval, so reversed or gappy series
// give the same totals as the sorted record.
func summarize(rows []Row, power pvpower.Output, poa []float64, intervals []time.Duration, dcRating float64) Summary {
	var s Summary
	s.Insolation, _ = pvpower.EnergyOver(poa, intervals)
	s.EnergyDC, _ = pvpower.EnergyOver(power.DC, intervals)
	s.EnergyAC, _ = pvpower.EnergyOver(power.AC, intervals)
	finite := make([]float64, 0, len(power.AC))
	for _, ac := range power.AC {
		if !math.IsNaN(ac) {
			finite = append(finite, ac)
		}
	}
	if len(finite) > 0 {
		s.PeakAC = floats.Max(finite)
	}
	s.PerformanceRatio = pvpower.PerformanceRatio(s.EnergyAC, dcRating, s.Insolation)
	for _, r := range rows {
		if r.Status == timeseries.StatusUndefined {
			s.UndefinedRows++
		}
	}
	return s
}

// worst returns the more severe status. Undefined wins over night, night over ok.
func worst(a, b timeseries.Status) timeseries.Status {
	if a > b {
		return a
	}
	return b
}

func countOutside(v []float64, lo, hi float64) int {
	n := 0
	for _, x := range v {
		if x < lo || x > hi {
			n++
		}
	}
	return n
}

// fillNaN replaces missing readings with def.
func fillNaN(v []float64, def float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if math.IsNaN(x) {
			x = def
		}
		out[i] = x
	}
	return out
}

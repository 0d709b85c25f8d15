package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/pvestimate/pkg/clearsky"
	"github.com/chrissnell/pvestimate/pkg/decomposition"
	"github.com/chrissnell/pvestimate/pkg/pvpower"
	"github.com/chrissnell/pvestimate/pkg/solar"
	"github.com/chrissnell/pvestimate/pkg/timeseries"
	"github.com/chrissnell/pvestimate/pkg/transposition"
	"github.com/chrissnell/pvestimate/pkg/turbidity"
)

// ErrUnknownSite is returned when a site name is not configured.
var ErrUnknownSite = errors.New("unknown site")

// Turbidity sources.
const (
	TurbidityGrid   = "grid"
	TurbiditySimple = "simple"
	TurbidityFixed  = "fixed"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetSites() ([]SiteData, error)
	GetSettings() (*SettingsData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Sites []SiteData `json:"sites"`
	SettingsData
}

// SettingsData holds everything that is not per-site.
type SettingsData struct {
	Models    ModelData     `json:"models"`
	Turbidity TurbidityData `json:"turbidity"`
	Constants ConstantsData `json:"constants"`
	Server    ServerData    `json:"server"`
	Logging   LoggingData   `json:"logging"`
}

// SiteData describes a location and the PV arrays installed there.
type SiteData struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	// Timezone is an IANA zone name used for naive weather timestamps and output.
	Timezone string  `json:"timezone,omitempty"`
	Albedo   float64 `json:"albedo,omitempty"`
	// LocationClass selects the simple turbidity climatology.
	LocationClass string `json:"location_class,omitempty"`
	// LinkeTurbidity overrides the turbidity source with a fixed value when > 0.
	LinkeTurbidity float64     `json:"linke_turbidity,omitempty"`
	Arrays         []ArrayData `json:"arrays"`
}

// ArrayData holds the orientation and electrical parameters of one array.
type ArrayData struct {
	Name               string  `json:"name"`
	Tilt               float64 `json:"tilt"`
	Azimuth            float64 `json:"azimuth"`
	DCRating           float64 `json:"dc_rating"`
	ACRating           float64 `json:"ac_rating,omitempty"`
	Gamma              float64 `json:"gamma,omitempty"`
	InverterEfficiency float64 `json:"inverter_efficiency,omitempty"`
	TempModel          string  `json:"temp_model,omitempty"`
	U0                 float64 `json:"u0,omitempty"`
	U1                 float64 `json:"u1,omitempty"`
	NOCT               float64 `json:"noct,omitempty"`
	EtaSTC             float64 `json:"eta_stc,omitempty"`
}

// ModelData selects the models used by the pipeline.
type ModelData struct {
	ClearSky      string `json:"clearsky"`
	Decomposition string `json:"decomposition"`
	Transposition string `json:"transposition"`
	// Ensemble lists the alternatives combined by ensemble runs. Empty lists fall back
	// to the single configured model.
	EnsembleDecomposition []string `json:"ensemble_decomposition,omitempty"`
	EnsembleTransposition []string `json:"ensemble_transposition,omitempty"`
}

// TurbidityData configures where Linke turbidity comes from. Interpolate selects the
// day-of-year curve over stepped monthly grid values and is on unless turned off.
type TurbidityData struct {
	Source      string  `json:"source"`
	GridPath    string  `json:"grid_path,omitempty"`
	Interpolate bool    `json:"interpolate"`
	Fixed       float64 `json:"fixed,omitempty"`
}

// ConstantsData overrides numerical constants of the models.
type ConstantsData struct {
	SolarConstant             float64 `json:"solar_constant"`
	ClearSkyMinCosZenith      float64 `json:"clearsky_min_cos_zenith"`
	PerezEnhancement          bool    `json:"perez_enhancement"`
	DecompositionMinCosZenith float64 `json:"decomposition_min_cos_zenith"`
	MaxClearnessIndex         float64 `json:"max_clearness_index"`
	MaxZenith                 float64 `json:"max_zenith"`
	TranspositionMinCosZenith float64 `json:"transposition_min_cos_zenith"`
	PerezCoefficients         string  `json:"perez_coefficients"`
}

// ServerData holds the REST server configuration.
type ServerData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
}

// LoggingData configures the process logger.
type LoggingData struct {
	Debug bool   `json:"debug"`
	File  string `json:"file,omitempty"`
}

// DefaultSettings returns the settings used for anything left unset.
func DefaultSettings() SettingsData {
	cs := clearsky.DefaultIneichenOptions()
	dc := decomposition.DefaultOptions()
	tr := transposition.DefaultOptions()
	return SettingsData{
		Models: ModelData{
			ClearSky:      "ineichen",
			Decomposition: "erbs",
			Transposition: "perez",
		},
		Turbidity: TurbidityData{
			Source:      TurbiditySimple,
			Interpolate: true,
		},
		Constants: ConstantsData{
			SolarConstant:             solar.SolarConstant,
			ClearSkyMinCosZenith:      cs.MinCosZenith,
			PerezEnhancement:          cs.PerezEnhancement,
			DecompositionMinCosZenith: dc.MinCosZenith,
			MaxClearnessIndex:         dc.MaxClearnessIndex,
			MaxZenith:                 dc.MaxZenith,
			TranspositionMinCosZenith: tr.MinCosZenith,
			PerezCoefficients:         tr.PerezCoefficients,
		},
		Server: ServerData{
			Port:       8080,
			ListenAddr: "0.0.0.0",
		},
	}
}

// ApplyDefaults fills zero values from DefaultSettings and per-array defaults.
func (c *ConfigData) ApplyDefaults() {
	def := DefaultSettings()
	m := &c.Models
	if m.ClearSky == "" {
		m.ClearSky = def.Models.ClearSky
	}
	if m.Decomposition == "" {
		m.Decomposition = def.Models.Decomposition
	}
	if m.Transposition == "" {
		m.Transposition = def.Models.Transposition
	}
	if c.Turbidity.Source == "" {
		c.Turbidity.Source = def.Turbidity.Source
	}

	k := &c.Constants
	setDefault(&k.SolarConstant, def.Constants.SolarConstant)
	setDefault(&k.ClearSkyMinCosZenith, def.Constants.ClearSkyMinCosZenith)
	setDefault(&k.DecompositionMinCosZenith, def.Constants.DecompositionMinCosZenith)
	setDefault(&k.MaxClearnessIndex, def.Constants.MaxClearnessIndex)
	setDefault(&k.MaxZenith, def.Constants.MaxZenith)
	setDefault(&k.TranspositionMinCosZenith, def.Constants.TranspositionMinCosZenith)
	if k.PerezCoefficients == "" {
		k.PerezCoefficients = def.Constants.PerezCoefficients
	}

	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = def.Server.ListenAddr
	}

	for i := range c.Sites {
		s := &c.Sites[i]
		if s.Albedo == 0 {
			s.Albedo = 0.25
		}
		if s.LocationClass == "" {
			s.LocationClass = string(turbidity.Rural)
		}
		for j := range s.Arrays {
			a := &s.Arrays[j]
			sys := pvpower.DefaultSystem(a.DCRating)
			setDefault(&a.ACRating, a.DCRating)
			setDefault(&a.Gamma, sys.Gamma)
			setDefault(&a.InverterEfficiency, sys.InverterEfficiency)
			setDefault(&a.U0, sys.U0)
			setDefault(&a.U1, sys.U1)
			setDefault(&a.NOCT, sys.NOCT)
			setDefault(&a.EtaSTC, sys.EtaSTC)
			if a.TempModel == "" {
				a.TempModel = sys.TempModel
			}
		}
	}
}

func setDefault(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}

// Validate checks sites, arrays and model names. Call after ApplyDefaults.
func (c *ConfigData) Validate() error {
	seen := make(map[string]bool, len(c.Sites))
	for _, s := range c.Sites {
		if s.Name == "" {
			return errors.New("site with empty name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate site %q", s.Name)
		}
		seen[s.Name] = true
		if err := s.Validate(); err != nil {
			return fmt.Errorf("site %q: %w", s.Name, err)
		}
	}

	if _, err := clearsky.ModelFor(c.Models.ClearSky); err != nil {
		return err
	}
	decomps := append([]string{c.Models.Decomposition}, c.Models.EnsembleDecomposition...)
	for _, name := range decomps {
		if _, err := decomposition.ModelFor(name); err != nil {
			return err
		}
	}
	transps := append([]string{c.Models.Transposition}, c.Models.EnsembleTransposition...)
	for _, name := range transps {
		if _, err := transposition.ModelFor(name); err != nil {
			return err
		}
	}
	if _, err := transposition.PerezTableFor(c.Constants.PerezCoefficients); err != nil {
		return err
	}

	switch c.Turbidity.Source {
	case TurbidityGrid:
		if c.Turbidity.GridPath == "" {
			return fmt.Errorf("%w: no grid path configured", turbidity.ErrGridMissing)
		}
	case TurbiditySimple:
	case TurbidityFixed:
		if c.Turbidity.Fixed <= 0 {
			return fmt.Errorf("fixed turbidity must be positive, got %v", c.Turbidity.Fixed)
		}
	default:
		return fmt.Errorf("unknown turbidity source %q", c.Turbidity.Source)
	}
	return nil
}

// Validate checks a single site.
func (s SiteData) Validate() error {
	if err := (timeseries.GeoPoint{Lat: s.Latitude, Lon: s.Longitude}).Validate(); err != nil {
		return err
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	if s.LocationClass != "" {
		if _, err := turbidity.ParseLocationClass(s.LocationClass); err != nil {
			return err
		}
	}
	if s.Albedo < 0 || s.Albedo > 1 || math.IsNaN(s.Albedo) {
		return fmt.Errorf("albedo must be in [0, 1], got %v", s.Albedo)
	}
	if len(s.Arrays) == 0 {
		return errors.New("no arrays configured")
	}
	for _, a := range s.Arrays {
		if a.Tilt < 0 || a.Tilt > 90 {
			return fmt.Errorf("array %q: tilt must be in [0, 90], got %v", a.Name, a.Tilt)
		}
		if a.Azimuth < 0 || a.Azimuth >= 360 {
			return fmt.Errorf("array %q: azimuth must be in [0, 360), got %v", a.Name, a.Azimuth)
		}
		if err := a.System().Validate(); err != nil {
			return fmt.Errorf("array %q: %w", a.Name, err)
		}
	}
	return nil
}

// Location resolves the site's timezone, UTC when unset.
func (s SiteData) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// System converts the array to its power model parameters.
func (a ArrayData) System() pvpower.System {
	return pvpower.System{
		DCRating:           a.DCRating,
		Gamma:              a.Gamma,
		InverterEfficiency: a.InverterEfficiency,
		ACRating:           a.ACRating,
		TempModel:          a.TempModel,
		U0:                 a.U0,
		U1:                 a.U1,
		NOCT:               a.NOCT,
		EtaSTC:             a.EtaSTC,
	}
}

// Site returns the named site.
func (c *ConfigData) Site(name string) (SiteData, error) {
	for _, s := range c.Sites {
		if s.Name == name {
			return s, nil
		}
	}
	return SiteData{}, fmt.Errorf("%w: %q", ErrUnknownSite, name)
}

// SiteNames lists configured sites in file order.
func (c *ConfigData) SiteNames() []string {
	names := make([]string, len(c.Sites))
	for i, s := range c.Sites {
		names[i] = s.Name
	}
	return names
}

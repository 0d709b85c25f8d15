package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// ParseYAML decodes a YAML document into ConfigData with defaults applied.
func ParseYAML(data []byte) (*ConfigData, error) {
	var yamlConfig ConfigYAML
	if err := yaml.UnmarshalStrict(data, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Sites: make([]SiteData, len(yamlConfig.Sites)),
		SettingsData: SettingsData{
			Models: ModelData{
				ClearSky:              yamlConfig.Models.ClearSky,
				Decomposition:         yamlConfig.Models.Decomposition,
				Transposition:         yamlConfig.Models.Transposition,
				EnsembleDecomposition: yamlConfig.Models.Ensemble.Decomposition,
				EnsembleTransposition: yamlConfig.Models.Ensemble.Transposition,
			},
			Turbidity: TurbidityData{
				Source:      yamlConfig.Turbidity.Source,
				GridPath:    yamlConfig.Turbidity.GridPath,
				Interpolate: yamlConfig.Turbidity.Interpolate == nil || *yamlConfig.Turbidity.Interpolate,
				Fixed:       yamlConfig.Turbidity.Fixed,
			},
			Constants: ConstantsData(yamlConfig.Constants),
			Server:    ServerData(yamlConfig.Server),
			Logging:   LoggingData(yamlConfig.Logging),
		},
	}

	// Convert sites
	for i, site := range yamlConfig.Sites {
		config.Sites[i] = SiteData{
			Name:           site.Name,
			Latitude:       site.Latitude,
			Longitude:      site.Longitude,
			Altitude:       site.Altitude,
			Timezone:       site.Timezone,
			Albedo:         site.Albedo,
			LocationClass:  site.LocationClass,
			LinkeTurbidity: site.LinkeTurbidity,
			Arrays:         make([]ArrayData, len(site.Arrays)),
		}
		for j, a := range site.Arrays {
			config.Sites[i].Arrays[j] = ArrayData(a)
		}
	}

	config.ApplyDefaults()
	return config, nil
}

// MarshalYAML encodes c in the layout ParseYAML reads.
func MarshalYAML(c *ConfigData) ([]byte, error) {
	interpolate := c.Turbidity.Interpolate
	out := ConfigYAML{
		Sites: make([]SiteYAML, len(c.Sites)),
		Models: ModelYAML{
			ClearSky:      c.Models.ClearSky,
			Decomposition: c.Models.Decomposition,
			Transposition: c.Models.Transposition,
			Ensemble: EnsembleYAML{
				Decomposition: c.Models.EnsembleDecomposition,
				Transposition: c.Models.EnsembleTransposition,
			},
		},
		Turbidity: TurbidityYAML{
			Source:      c.Turbidity.Source,
			GridPath:    c.Turbidity.GridPath,
			Interpolate: &interpolate,
			Fixed:       c.Turbidity.Fixed,
		},
		Constants: ConstantsYAML(c.Constants),
		Server:    ServerYAML(c.Server),
		Logging:   LoggingYAML(c.Logging),
	}
	for i, site := range c.Sites {
		out.Sites[i] = SiteYAML{
			Name:           site.Name,
			Latitude:       site.Latitude,
			Longitude:      site.Longitude,
			Altitude:       site.Altitude,
			Timezone:       site.Timezone,
			Albedo:         site.Albedo,
			LocationClass:  site.LocationClass,
			LinkeTurbidity: site.LinkeTurbidity,
			Arrays:         make([]ArrayYAML, len(site.Arrays)),
		}
		for j, a := range site.Arrays {
			out.Sites[i].Arrays[j] = ArrayYAML(a)
		}
	}
	return yaml.Marshal(&out)
}

// GetSites returns site configurations
func (y *YAMLProvider) GetSites() ([]SiteData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return y.config.Sites, nil
}

// GetSettings returns the model, turbidity, constant, server and logging settings
func (y *YAMLProvider) GetSettings() (*SettingsData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.SettingsData, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with kebab-case tags for the file format
type ConfigYAML struct {
	Sites     []SiteYAML    `yaml:"sites"`
	Models    ModelYAML     `yaml:"models,omitempty"`
	Turbidity TurbidityYAML `yaml:"turbidity,omitempty"`
	Constants ConstantsYAML `yaml:"constants,omitempty"`
	Server    ServerYAML    `yaml:"server,omitempty"`
	Logging   LoggingYAML   `yaml:"logging,omitempty"`
}

type SiteYAML struct {
	Name           string      `yaml:"name"`
	Latitude       float64     `yaml:"latitude"`
	Longitude      float64     `yaml:"longitude"`
	Altitude       float64     `yaml:"altitude"`
	Timezone       string      `yaml:"timezone,omitempty"`
	Albedo         float64     `yaml:"albedo,omitempty"`
	LocationClass  string      `yaml:"location-class,omitempty"`
	LinkeTurbidity float64     `yaml:"linke-turbidity,omitempty"`
	Arrays         []ArrayYAML `yaml:"arrays"`
}

type ArrayYAML struct {
	Name               string  `yaml:"name"`
	Tilt               float64 `yaml:"tilt"`
	Azimuth            float64 `yaml:"azimuth"`
	DCRating           float64 `yaml:"dc-rating"`
	ACRating           float64 `yaml:"ac-rating,omitempty"`
	Gamma              float64 `yaml:"gamma,omitempty"`
	InverterEfficiency float64 `yaml:"inverter-efficiency,omitempty"`
	TempModel          string  `yaml:"temp-model,omitempty"`
	U0                 float64 `yaml:"u0,omitempty"`
	U1                 float64 `yaml:"u1,omitempty"`
	NOCT               float64 `yaml:"noct,omitempty"`
	EtaSTC             float64 `yaml:"eta-stc,omitempty"`
}

type ModelYAML struct {
	ClearSky      string       `yaml:"clearsky,omitempty"`
	Decomposition string       `yaml:"decomposition,omitempty"`
	Transposition string       `yaml:"transposition,omitempty"`
	Ensemble      EnsembleYAML `yaml:"ensemble,omitempty"`
}

type EnsembleYAML struct {
	Decomposition []string `yaml:"decomposition,omitempty"`
	Transposition []string `yaml:"transposition,omitempty"`
}

type TurbidityYAML struct {
	Source      string  `yaml:"source,omitempty"`
	GridPath    string  `yaml:"grid-path,omitempty"`
	Interpolate *bool   `yaml:"interpolate,omitempty"`
	Fixed       float64 `yaml:"fixed,omitempty"`
}

type ConstantsYAML struct {
	SolarConstant             float64 `yaml:"solar-constant,omitempty"`
	ClearSkyMinCosZenith      float64 `yaml:"clearsky-min-cos-zenith,omitempty"`
	PerezEnhancement          bool    `yaml:"perez-enhancement,omitempty"`
	DecompositionMinCosZenith float64 `yaml:"decomposition-min-cos-zenith,omitempty"`
	MaxClearnessIndex         float64 `yaml:"max-clearness-index,omitempty"`
	MaxZenith                 float64 `yaml:"max-zenith,omitempty"`
	TranspositionMinCosZenith float64 `yaml:"transposition-min-cos-zenith,omitempty"`
	PerezCoefficients         string  `yaml:"perez-coefficients,omitempty"`
}

type ServerYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
}

type LoggingYAML struct {
	Debug bool   `yaml:"debug,omitempty"`
	File  string `yaml:"file,omitempty"`
}

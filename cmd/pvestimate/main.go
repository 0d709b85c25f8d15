// Command pvestimate runs the estimate pipeline for a configured site, from a weather
// CSV or, without one, from the clear-sky model.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chrissnell/pvestimate/internal/log"
	"github.com/chrissnell/pvestimate/internal/pipeline"
	"github.com/chrissnell/pvestimate/internal/weather"
	"github.com/chrissnell/pvestimate/pkg/clearsky"
	"github.com/chrissnell/pvestimate/pkg/config"
	"github.com/chrissnell/pvestimate/pkg/responseformat"
	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

type options struct {
	cfgFile       string
	cfgBackend    string
	site          string
	array         string
	weatherFile   string
	start, end    string
	step          time.Duration
	format        string
	output        string
	ensemble      bool
	summary       bool
	clearSky      string
	decomposition string
	transposition string
}

func main() {
	var o options
	flag.StringVar(&o.cfgFile, "config", "config.yaml", "Path to configuration source")
	flag.StringVar(&o.cfgBackend, "config-backend", config.BackendYAML, "Configuration backend type: 'yaml' or 'sqlite'")
	flag.StringVar(&o.site, "site", "", "Site to estimate (required)")
	flag.StringVar(&o.array, "array", "", "Array to estimate (default: every array of the site)")
	flag.StringVar(&o.weatherFile, "weather", "", "Weather CSV with time, ghi and optional dni, dhi, temp_air, wind_speed columns")
	flag.StringVar(&o.start, "start", "", "Start of a clear-sky run, used when -weather is not given")
	flag.StringVar(&o.end, "end", "", "End of a clear-sky run (inclusive)")
	flag.DurationVar(&o.step, "step", time.Hour, "Step of a clear-sky run")
	flag.StringVar(&o.format, "format", "json", "Output format: json, msgpack or csv")
	flag.StringVar(&o.output, "output", "", "Output file (default: stdout)")
	flag.BoolVar(&o.ensemble, "ensemble", false, "Run every configured model combination and report the spread")
	flag.BoolVar(&o.summary, "summary", false, "Only output the run summaries")
	flag.StringVar(&o.clearSky, "clearsky", "", "Override the clear-sky model")
	flag.StringVar(&o.decomposition, "decomposition", "", "Override the decomposition model")
	flag.StringVar(&o.transposition, "transposition", "", "Override the transposition model")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Parse()

	if o.site == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -site <name> [-weather weather.csv | -start <time> -end <time>]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	out := io.Writer(os.Stdout)
	if o.output != "" {
		f, err := os.Create(o.output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	if err := run(o, out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(o options, out io.Writer) error {
	format, err := responseformat.ParseFormat(o.format)
	if err != nil {
		return err
	}

	provider, err := config.Open(o.cfgFile, o.cfgBackend)
	if err != nil {
		return err
	}
	defer provider.Close()
	cfgData, err := provider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if err := cfgData.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	site, err := cfgData.Site(o.site)
	if err != nil {
		return err
	}
	arrays := site.Arrays
	if o.array != "" {
		arrays = nil
		for _, a := range site.Arrays {
			if a.Name == o.array {
				arrays = append(arrays, a)
			}
		}
		if len(arrays) == 0 {
			return fmt.Errorf("site %q has no array %q", site.Name, o.array)
		}
	}

	series, err := loadSeries(o, site)
	if err != nil {
		return err
	}

	cfg, err := pipeline.ConfigFrom(&cfgData.SettingsData)
	if err != nil {
		return err
	}
	models := cfgData.Models
	if o.clearSky != "" {
		cfg.ClearSky = o.clearSky
	}
	if o.decomposition != "" {
		cfg.Decomposition, models.Decomposition = o.decomposition, o.decomposition
	}
	if o.transposition != "" {
		cfg.Transposition, models.Transposition = o.transposition, o.transposition
	}

	if o.ensemble {
		clearSkyModels := clearsky.Names()
		if o.clearSky != "" {
			clearSkyModels = []string{o.clearSky}
		}
		members := pipeline.Members(models, series, clearSkyModels)

		results := make([]*pipeline.EnsembleResult, 0, len(arrays))
		for _, a := range arrays {
			res, err := pipeline.Ensemble(site, a, series, cfg, members)
			if err != nil {
				return fmt.Errorf("array %q: %w", a.Name, err)
			}
			results = append(results, res)
		}
		if format == responseformat.CSV {
			var rows []pipeline.MemberResult
			for _, r := range results {
				rows = append(rows, r.Members...)
			}
			return responseformat.Encode(out, format, rows)
		}
		return responseformat.Encode(out, format, results)
	}

	results := make([]*pipeline.Result, 0, len(arrays))
	for _, a := range arrays {
		res, err := pipeline.Run(site, a, series, cfg)
		if err != nil {
			return fmt.Errorf("array %q: %w", a.Name, err)
		}
		log.Infow("estimate complete",
			"run_id", res.RunID,
			"array", a.Name,
			"source", res.Source,
			"energy_ac_wh", res.Summary.EnergyAC)
		results = append(results, res)
	}

	switch {
	case o.summary:
		summaries := make([]arraySummary, len(results))
		for i, r := range results {
			summaries[i] = arraySummary{Array: r.Array, Source: r.Source, Summary: r.Summary}
		}
		return responseformat.Encode(out, format, summaries)
	case format == responseformat.CSV:
		var rows []arrayRow
		for _, r := range results {
			for _, row := range r.Rows {
				rows = append(rows, arrayRow{Array: r.Array, Row: row})
			}
		}
		return responseformat.Encode(out, format, rows)
	}
	return responseformat.Encode(out, format, results)
}

type arraySummary struct {
	Array  string `json:"array"`
	Source string `json:"source"`
	pipeline.Summary
}

type arrayRow struct {
	Array string `json:"array"`
	pipeline.Row
}

// loadSeries reads the weather file, or builds the instants of a clear-sky run.
// Naive timestamps are read in the site's timezone.
func loadSeries(o options, site config.SiteData) (*weather.Series, error) {
	loc, err := site.Location()
	if err != nil {
		return nil, err
	}
	if o.weatherFile != "" {
		return weather.ReadFile(o.weatherFile, loc)
	}
	if o.start == "" || o.end == "" {
		return nil, fmt.Errorf("either -weather or both -start and -end are required")
	}
	start, err := weather.ParseTime(o.start, loc)
	if err != nil {
		return nil, err
	}
	end, err := weather.ParseTime(o.end, loc)
	if err != nil {
		return nil, err
	}
	times := timeseries.Range(start, end, o.step)
	if len(times) == 0 {
		return nil, fmt.Errorf("empty time range %s to %s every %s", o.start, o.end, o.step)
	}
	return &weather.Series{Times: times}, nil
}

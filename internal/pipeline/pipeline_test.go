package pipeline

import (
	"errors"
	"math"
	"testing"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chrissnell/pvestimate/internal/log"
	"github.com/chrissnell/pvestimate/internal/weather"
	"github.com/chrissnell/pvestimate/pkg/config"
	"github.com/chrissnell/pvestimate/pkg/timeseries"
	"github.com/chrissnell/pvestimate/pkg/turbidity"
)

func golden(t *testing.T) (config.SiteData, config.ArrayData) {
	t.Helper()
	cfg := &config.ConfigData{Sites: []config.SiteData{{
		Name:      "golden",
		Latitude:  39.74,
		Longitude: -105.18,
		Altitude:  1829,
		Timezone:  "America/Denver",
		Arrays: []config.ArrayData{{
			Name:     "roof",
			Tilt:     35,
			Azimuth:  180,
			DCRating: 5000,
		}},
	}}}
	cfg.ApplyDefaults()
	return cfg.Sites[0], cfg.Sites[0].Arrays[0]
}

func summerDay(t *testing.T) []time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/Denver")
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2026, 6, 21, 0, 0, 0, 0, loc)
	return timeseries.Range(start, start.Add(23*time.Hour), time.Hour)
}

func fixedTurbidity() Config {
	return Config{Turbidity: config.TurbidityData{Source: config.TurbidityFixed, Fixed: 3}}
}

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log.SetLogger(zap.New(core))
	return logs
}

func TestRunClearSky(t *testing.T) {
	site, array := golden(t)
	times := summerDay(t)

	res, err := Run(site, array, &weather.Series{Times: times}, fixedTurbidity())
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != SourceClearSky || res.ClearSky != "ineichen" || res.Transposition != "perez" {
		t.Errorf("result = %+v", res)
	}
	if res.RunID == "" {
		t.Error("missing run id")
	}
	if len(res.Rows) != 24 {
		t.Fatalf("rows = %d, want 24", len(res.Rows))
	}

	for i, r := range res.Rows {
		if !r.Time.Equal(times[i]) || r.Time.Location() != times[i].Location() {
			t.Errorf("row %d time = %v, want %v", i, r.Time, times[i])
		}
		if r.Zenith >= 90 {
			if r.Status != timeseries.StatusNight || r.AC != 0 || r.POAGlobal != 0 {
				t.Errorf("night row %d = %+v", i, r)
			}
			continue
		}
		if r.AC < 0 || r.AC > array.ACRating || r.LinkeTurbidity != 3 {
			t.Errorf("row %d = %+v", i, r)
		}
	}

	noon := res.Rows[13]
	if noon.Status != timeseries.StatusOK || noon.AC < 3000 {
		t.Errorf("solar noon row = %+v", noon)
	}

	s := res.Summary
	if s.EnergyAC <= 0 || s.EnergyAC > s.EnergyDC || s.PeakAC > array.ACRating {
		t.Errorf("summary = %+v", s)
	}
	if s.PerformanceRatio < 0.7 || s.PerformanceRatio > 0.95 {
		t.Errorf("performance ratio = %v, want within [0.7, 0.95]", s.PerformanceRatio)
	}
}

func TestRunMeasuredSources(t *testing.T) {
	site, array := golden(t)
	times := summerDay(t)

	clear, err := Run(site, array, &weather.Series{Times: times}, fixedTurbidity())
	if err != nil {
		t.Fatal(err)
	}
	ghi := make([]float64, len(times))
	dni := make([]float64, len(times))
	dhi := make([]float64, len(times))
	for i, r := range clear.Rows {
		ghi[i], dni[i], dhi[i] = r.GHI, r.DNI, r.DHI
	}

	t.Run("components", func(t *testing.T) {
		res, err := Run(site, array, &weather.Series{Times: times, GHI: ghi, DNI: dni, DHI: dhi}, Config{})
		if err != nil {
			t.Fatal(err)
		}
		if res.Source != SourceMeasured || res.Decomposition != "" {
			t.Errorf("source = %q decomposition = %q", res.Source, res.Decomposition)
		}
		if math.Abs(res.Summary.EnergyAC-clear.Summary.EnergyAC) > 1e-6 {
			t.Errorf("energy %v differs from clear-sky run %v", res.Summary.EnergyAC, clear.Summary.EnergyAC)
		}
	})

	t.Run("decomposed", func(t *testing.T) {
		res, err := Run(site, array, &weather.Series{Times: times, GHI: ghi}, Config{Decomposition: "boland"})
		if err != nil {
			t.Fatal(err)
		}
		if res.Source != SourceDecomposed || res.Decomposition != "boland" {
			t.Errorf("source = %q decomposition = %q", res.Source, res.Decomposition)
		}
		ratio := res.Summary.EnergyAC / clear.Summary.EnergyAC
		if ratio < 0.7 || ratio > 1.3 {
			t.Errorf("decomposed energy ratio = %v", ratio)
		}
	})
}

func TestRunUndefinedRows(t *testing.T) {
	site, array := golden(t)
	times := summerDay(t)[10:14]
	w := &weather.Series{
		Times:   times,
		GHI:     []float64{500, math.NaN(), 900, 850},
		TempAir: []float64{25, 26, math.NaN(), 27},
	}

	res, err := Run(site, array, w, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Rows[1].Status != timeseries.StatusUndefined || !math.IsNaN(res.Rows[1].AC) {
		t.Errorf("NaN GHI row = %+v", res.Rows[1])
	}
	if res.Summary.UndefinedRows != 1 {
		t.Errorf("undefined rows = %d, want 1", res.Summary.UndefinedRows)
	}
	if math.IsNaN(res.Rows[2].CellTemp) {
		t.Error("missing air temperature should fall back to the default")
	}
	if math.IsNaN(res.Summary.EnergyAC) || res.Summary.EnergyAC <= 0 {
		t.Errorf("energy = %v", res.Summary.EnergyAC)
	}
}

func TestRunHaurwitzIsDecomposed(t *testing.T) {
	site, array := golden(t)
	res, err := Run(site, array, &weather.Series{Times: summerDay(t)}, Config{ClearSky: "haurwitz", Decomposition: "erbs"})
	if err != nil {
		t.Fatal(err)
	}
	if res.ClearSky != "haurwitz" || res.Decomposition != "erbs" {
		t.Errorf("models = %q / %q", res.ClearSky, res.Decomposition)
	}
	noon := res.Rows[13]
	if math.IsNaN(noon.DNI) || noon.DNI <= 0 || noon.DHI <= 0 {
		t.Errorf("haurwitz noon components = %v / %v", noon.DNI, noon.DHI)
	}
}

func TestRunGridTurbidity(t *testing.T) {
	site, array := golden(t)
	grid := turbidity.NewMemoryGrid(turbidity.GridSpec{Lats: 5, Lons: 9, LatStart: 90, LatEnd: -90, LonStart: -180, LonEnd: 180})
	var months [turbidity.Months]uint8
	for i := range months {
		months[i] = 60
	}
	grid.Fill(months)

	cfg := Config{Turbidity: config.TurbidityData{Source: config.TurbidityGrid}, Grid: grid}
	res, err := Run(site, array, &weather.Series{Times: summerDay(t)}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Rows[12].LinkeTurbidity != 3 {
		t.Errorf("turbidity = %v, want 3", res.Rows[12].LinkeTurbidity)
	}

	cfg.Grid = nil
	if _, err := Run(site, array, &weather.Series{Times: summerDay(t)}, cfg); !errors.Is(err, ErrNoGrid) {
		t.Errorf("err = %v, want ErrNoGrid", err)
	}
}

func TestRunWarnings(t *testing.T) {
	logs := observe(t)
	site, array := golden(t)
	site.LinkeTurbidity = 12

	if _, err := Run(site, array, &weather.Series{Times: summerDay(t)}, Config{Transposition: "olmo"}); err != nil {
		t.Fatal(err)
	}
	if n := logs.FilterMessageSnippet("linke turbidity outside").FilterLevelExact(zapcore.WarnLevel).Len(); n != 1 {
		t.Errorf("turbidity warnings = %d, want 1", n)
	}
	if n := logs.FilterMessageSnippet("olmo").FilterLevelExact(zapcore.WarnLevel).Len(); n != 1 {
		t.Errorf("olmo warnings = %d, want 1", n)
	}
}

func TestRunErrors(t *testing.T) {
	site, array := golden(t)
	times := summerDay(t)

	if _, err := Run(site, array, &weather.Series{}, Config{}); !errors.Is(err, timeseries.ErrEmptySeries) {
		t.Errorf("empty: err = %v", err)
	}
	if _, err := Run(site, array, &weather.Series{Times: times}, Config{Transposition: "klucher"}); err == nil {
		t.Error("unknown transposition accepted")
	}
	bad := site
	bad.Latitude = 123
	if _, err := Run(bad, array, &weather.Series{Times: times}, Config{}); !errors.Is(err, timeseries.ErrLatitudeRange) {
		t.Errorf("bad site: err = %v", err)
	}
	short := &weather.Series{Times: times, GHI: []float64{1, 2}}
	if _, err := Run(site, array, short, Config{}); !errors.Is(err, timeseries.ErrLengthMismatch) {
		t.Errorf("short ghi: err = %v", err)
	}
}

func TestRunOrderDoesNotChangeTotals(t *testing.T) {
	site, array := golden(t)
	times := summerDay(t)
	forward, err := Run(site, array, &weather.Series{Times: times}, fixedTurbidity())
	if err != nil {
		t.Fatal(err)
	}

	reversed := make([]time.Time, len(times))
	for i, ts := range times {
		reversed[len(times)-1-i] = ts
	}
	backward, err := Run(site, array, &weather.Series{Times: reversed}, fixedTurbidity())
	if err != nil {
		t.Fatal(err)
	}

	f, b := forward.Summary, backward.Summary
	if f.EnergyAC <= 0 || math.Abs(f.EnergyAC-b.EnergyAC) > 1e-6 {
		t.Errorf("EnergyAC forward %v, reversed %v", f.EnergyAC, b.EnergyAC)
	}
	if math.Abs(f.Insolation-b.Insolation) > 1e-6 || math.IsNaN(b.PerformanceRatio) {
		t.Errorf("reversed summary = %+v, want %+v", b, f)
	}
	if backward.Step != "1h0m0s" {
		t.Errorf("Step = %q, want 1h0m0s", backward.Step)
	}
	if !backward.Rows[0].Time.Equal(reversed[0]) {
		t.Errorf("first row = %v, want input order", backward.Rows[0].Time)
	}

	// Dropping the afternoon must lower the total instead of stretching the neighbours.
	gappy := append(append([]time.Time{}, times[:13]...), times[18:]...)
	partial, err := Run(site, array, &weather.Series{Times: gappy}, fixedTurbidity())
	if err != nil {
		t.Fatal(err)
	}
	if partial.Summary.EnergyAC >= f.EnergyAC {
		t.Errorf("gappy EnergyAC %v, want below %v", partial.Summary.EnergyAC, f.EnergyAC)
	}
}

func TestMembers(t *testing.T) {
	models := config.ModelData{
		Decomposition:         "erbs",
		Transposition:         "perez",
		EnsembleDecomposition: []string{"erbs", "boland"},
		EnsembleTransposition: []string{"isotropic", "haydavies", "perez"},
	}
	times := []time.Time{time.Date(2026, 6, 21, 18, 0, 0, 0, time.UTC)}
	v := []float64{1}

	tests := []struct {
		name string
		w    *weather.Series
		want int
	}{
		{"components", &weather.Series{Times: times, GHI: v, DNI: v, DHI: v}, 3},
		{"ghi only", &weather.Series{Times: times, GHI: v}, 6},
		{"clear sky", &weather.Series{Times: times}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Members(models, tt.w, []string{"haurwitz", "ineichen"})
			if len(got) != tt.want {
				t.Errorf("members = %v, want %d", got, tt.want)
			}
		})
	}

	single := Members(config.ModelData{Decomposition: "erbs", Transposition: "perez"}, &weather.Series{Times: times, GHI: v}, nil)
	if len(single) != 1 || single[0].String() != "erbs+perez" {
		t.Errorf("single = %v", single)
	}
}

func TestEnsemble(t *testing.T) {
	site, array := golden(t)
	times := summerDay(t)
	clear, err := Run(site, array, &weather.Series{Times: times}, fixedTurbidity())
	if err != nil {
		t.Fatal(err)
	}
	ghi := make([]float64, len(times))
	for i, r := range clear.Rows {
		ghi[i] = r.GHI
	}
	w := &weather.Series{Times: times, GHI: ghi}

	members := Members(config.ModelData{
		EnsembleDecomposition: []string{"erbs", "boland"},
		EnsembleTransposition: []string{"isotropic", "perez"},
	}, w, nil)
	res, err := Ensemble(site, array, w, Config{}, members)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Members) != 4 || res.Source != SourceDecomposed {
		t.Fatalf("ensemble = %+v", res)
	}
	if res.MinEnergyAC > res.MeanEnergyAC || res.MeanEnergyAC > res.MaxEnergyAC {
		t.Errorf("mean %v outside [%v, %v]", res.MeanEnergyAC, res.MinEnergyAC, res.MaxEnergyAC)
	}
	if res.StdDevEnergyAC <= 0 {
		t.Errorf("stddev = %v, want spread between models", res.StdDevEnergyAC)
	}
	if res.PerformanceRatio < 0.6 || res.PerformanceRatio > 1 {
		t.Errorf("performance ratio = %v", res.PerformanceRatio)
	}
	seen := map[string]bool{}
	for _, m := range res.Members {
		seen[m.Member.String()] = true
		if m.RunID == "" || m.RunID == res.RunID {
			t.Errorf("member run id = %q", m.RunID)
		}
	}
	if !seen["boland+isotropic"] || !seen["erbs+perez"] {
		t.Errorf("members = %v", seen)
	}

	if _, err := Ensemble(site, array, w, Config{}, nil); err == nil {
		t.Error("empty ensemble accepted")
	}
	if _, err := Ensemble(site, array, w, Config{}, []Member{{Transposition: "klucher"}}); err == nil {
		t.Error("bad member accepted")
	}
}

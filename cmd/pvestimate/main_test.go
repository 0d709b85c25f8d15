package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/chrissnell/pvestimate/internal/log"
	"github.com/chrissnell/pvestimate/pkg/config"
)

const testConfig = `
sites:
  - name: golden
    latitude: 39.74
    longitude: -105.18
    altitude: 1829
    timezone: America/Denver
    arrays:
      - {name: roof, tilt: 35, azimuth: 180, dc-rating: 5000}
      - {name: shed, tilt: 10, azimuth: 90, dc-rating: 1200}
turbidity:
  source: fixed
  fixed: 3
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func baseOptions(t *testing.T) options {
	log.SetLogger(zap.NewNop())
	return options{
		cfgFile:    writeFile(t, "config.yaml", testConfig),
		cfgBackend: config.BackendYAML,
		site:       "golden",
		start:      "2026-06-21 00:00",
		end:        "2026-06-21 23:00",
		step:       time.Hour,
		format:     "json",
	}
}

func TestRunSummary(t *testing.T) {
	o := baseOptions(t)
	o.summary = true

	var buf bytes.Buffer
	if err := run(o, &buf); err != nil {
		t.Fatal(err)
	}
	var got []struct {
		Array    string  `json:"array"`
		Source   string  `json:"source"`
		EnergyAC float64 `json:"energy_ac"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Array != "roof" || got[1].Array != "shed" {
		t.Fatalf("summaries = %+v", got)
	}
	for _, s := range got {
		if s.Source != "clearsky" || s.EnergyAC <= 0 {
			t.Errorf("summary = %+v", s)
		}
	}
}

func TestRunCSV(t *testing.T) {
	o := baseOptions(t)
	o.format = "csv"
	o.array = "shed"

	var buf bytes.Buffer
	if err := run(o, &buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 25 {
		t.Fatalf("got %d lines, want header + 24", len(lines))
	}
	if !strings.HasPrefix(lines[0], "array,time,zenith") {
		t.Errorf("header = %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "shed,2026-06-21T00:00:00-06:00,") {
		t.Errorf("first row = %s", lines[1])
	}
}

func TestRunWeatherFile(t *testing.T) {
	o := baseOptions(t)
	o.weatherFile = writeFile(t, "weather.csv", "time,ghi,dni,dhi\n2026-06-21 12:00,900,750,150\n2026-06-21 13:00,920,770,140\n")
	o.array = "roof"

	var buf bytes.Buffer
	if err := run(o, &buf); err != nil {
		t.Fatal(err)
	}
	var got []struct {
		Source string            `json:"source"`
		Rows   []json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Source != "measured" || len(got[0].Rows) != 2 {
		t.Errorf("result = %+v", got)
	}
}

func TestRunEnsemble(t *testing.T) {
	o := baseOptions(t)
	o.ensemble = true
	o.array = "roof"
	o.format = "csv"

	var buf bytes.Buffer
	if err := run(o, &buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// header plus bras, haurwitz and ineichen with the configured transposition
	if len(lines) != 4 {
		t.Errorf("got %d lines:\n%s", len(lines), buf.String())
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*options)
	}{
		{"unknown site", func(o *options) { o.site = "boulder" }},
		{"unknown array", func(o *options) { o.array = "barn" }},
		{"unknown format", func(o *options) { o.format = "xml" }},
		{"no range", func(o *options) { o.end = "" }},
		{"reversed range", func(o *options) { o.start, o.end = o.end, o.start }},
		{"unknown model", func(o *options) { o.transposition = "klucher" }},
		{"missing weather file", func(o *options) { o.weatherFile = "/nonexistent/weather.csv" }},
		{"bad backend", func(o *options) { o.cfgBackend = "ini" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := baseOptions(t)
			tt.modify(&o)
			if err := run(o, &bytes.Buffer{}); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

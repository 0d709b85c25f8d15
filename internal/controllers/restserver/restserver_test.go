package restserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	_ "time/tzdata"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chrissnell/pvestimate/internal/log"
	"github.com/chrissnell/pvestimate/pkg/clearsky"
	"github.com/chrissnell/pvestimate/pkg/config"
)

type stubProvider struct {
	cfg *config.ConfigData
}

func (s stubProvider) GetSites() ([]config.SiteData, error)       { return s.cfg.Sites, nil }
func (s stubProvider) GetSettings() (*config.SettingsData, error) { return &s.cfg.SettingsData, nil }
func (s stubProvider) Site(name string) (config.SiteData, error)  { return s.cfg.Site(name) }

func newTestHandler(t *testing.T) (http.Handler, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	log.SetLogger(zap.New(core))

	cfg := &config.ConfigData{
		Sites: []config.SiteData{{
			Name:      "golden",
			Latitude:  39.74,
			Longitude: -105.18,
			Altitude:  1829,
			Timezone:  "America/Denver",
			Arrays: []config.ArrayData{
				{Name: "roof", Tilt: 35, Azimuth: 180, DCRating: 5000},
				{Name: "shed", Tilt: 10, Azimuth: 90, DCRating: 1200},
			},
		}},
		SettingsData: config.DefaultSettings(),
	}
	cfg.ApplyDefaults()

	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, stubProvider{cfg}, config.ServerData{}, nil, zap.New(core).Sugar())
	if err != nil {
		t.Fatal(err)
	}
	if ctrl.Server.Addr != "0.0.0.0:8080" {
		t.Errorf("Server.Addr = %q, want defaults", ctrl.Server.Addr)
	}
	return ctrl.Handler(), logs
}

func serve(h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, body))
	return rec
}

func TestHealthz(t *testing.T) {
	h, logs := newTestHandler(t)

	rec := serve(h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
		Sites  int    `json:"sites"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Sites != 1 {
		t.Errorf("body = %+v", body)
	}
	id := rec.Header().Get(requestIDHeader)
	if id == "" {
		t.Fatal("no request ID in response")
	}

	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("got %d access log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != id || fields["path"] != "/healthz" || fields["status"] != int64(200) {
		t.Errorf("access log fields = %v", fields)
	}
}

func TestRequestIDIsKept(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request ID = %q", got)
	}
}

func TestSites(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := serve(h, http.MethodGet, "/sites", nil)
	var sites []config.SiteData
	if err := json.Unmarshal(rec.Body.Bytes(), &sites); err != nil {
		t.Fatal(err)
	}
	if len(sites) != 1 || sites[0].Name != "golden" || len(sites[0].Arrays) != 2 {
		t.Errorf("sites = %+v", sites)
	}
}

func TestSolarPosition(t *testing.T) {
	h, _ := newTestHandler(t)
	tests := []struct {
		name   string
		query  string
		status int
		rows   int
	}{
		{"day", "lat=39.74&lon=-105.18&start=2026-06-21T00:00:00Z&end=2026-06-21T23:00:00Z", http.StatusOK, 24},
		{"step", "lat=0&lon=0&start=2026-06-21T00:00:00Z&end=2026-06-21T01:00:00Z&step=15m", http.StatusOK, 5},
		{"tz", "lat=0&lon=0&start=2026-06-21T00:00:00&end=2026-06-21T02:00:00&tz=Europe/Berlin", http.StatusOK, 3},
		{"missing lat", "lon=0&start=2026-06-21T00:00:00Z&end=2026-06-21T01:00:00Z", http.StatusBadRequest, 0},
		{"bad latitude", "lat=91&lon=0&start=2026-06-21T00:00:00Z&end=2026-06-21T01:00:00Z", http.StatusBadRequest, 0},
		{"bad step", "lat=0&lon=0&start=2026-06-21T00:00:00Z&end=2026-06-21T01:00:00Z&step=-1h", http.StatusBadRequest, 0},
		{"reversed", "lat=0&lon=0&start=2026-06-22T00:00:00Z&end=2026-06-21T01:00:00Z", http.StatusBadRequest, 0},
		{"too long", "lat=0&lon=0&start=2026-01-01T00:00:00Z&end=2026-12-31T00:00:00Z&step=1m", http.StatusBadRequest, 0},
		{"bad tz", "lat=0&lon=0&start=2026-06-21T00:00:00&end=2026-06-21T01:00:00&tz=Mars/Olympus", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodGet, "/solarposition?"+tt.query, nil)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if tt.status != http.StatusOK {
				return
			}
			var rows []map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
				t.Fatal(err)
			}
			if len(rows) != tt.rows {
				t.Errorf("got %d rows, want %d", len(rows), tt.rows)
			}
		})
	}
}

func TestClearSky(t *testing.T) {
	h, _ := newTestHandler(t)
	const point = "lat=-30.6279&lon=24.0054&altitude=1233&start=2026-01-15T12:00:00Z&end=2026-01-15T12:00:00Z"

	rec := serve(h, http.MethodGet, "/clearsky/ineichen?turbidity=3&"+point, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var rows []struct {
		GHI    float64 `json:"ghi"`
		DNI    float64 `json:"dni"`
		DHI    float64 `json:"dhi"`
		Status string  `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].GHI <= 0 || rows[0].DNI <= 0 || rows[0].DHI <= 0 || rows[0].Status != "ok" {
		t.Errorf("rows = %+v", rows)
	}

	rec = serve(h, http.MethodGet, "/clearsky/haurwitz?format=csv&class=desert&"+point, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv status = %d: %s", rec.Code, rec.Body)
	}
	if !strings.HasPrefix(rec.Body.String(), "time,zenith,airmass,ghi,dni,dhi") {
		t.Errorf("csv body = %s", rec.Body)
	}

	const instant = "start=2026-01-15T12:00:00Z&end=2026-01-15T12:00:00Z"
	errs := []struct {
		target string
		status int
	}{
		{"/clearsky/bird?" + point, http.StatusNotFound},
		{"/clearsky/ineichen?class=lunar&" + point, http.StatusBadRequest},
		{"/clearsky/ineichen?turbidity=x&" + point, http.StatusBadRequest},
		{"/clearsky/ineichen?lat=1&lon=2", http.StatusBadRequest},
		{"/clearsky/ineichen?lat=1&lon=200&" + instant, http.StatusBadRequest},
	}
	for _, tt := range errs {
		if rec := serve(h, http.MethodGet, tt.target, nil); rec.Code != tt.status {
			t.Errorf("GET %s = %d, want %d", tt.target, rec.Code, tt.status)
		}
	}
}

type estimate struct {
	RunID         string `json:"run_id"`
	Array         string `json:"array"`
	Source        string `json:"source"`
	Decomposition string `json:"decomposition"`
	Transposition string `json:"transposition"`
	Summary       struct {
		EnergyAC float64 `json:"energy_ac"`
	} `json:"summary"`
	Rows []struct {
		Time string   `json:"time"`
		AC   *float64 `json:"ac"`
	} `json:"rows"`
}

func TestEstimateClearSky(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := serve(h, http.MethodPost, "/estimate/golden?start=2026-06-21T00:00:00&end=2026-06-21T23:00:00", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var res estimate
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Source != "clearsky" || res.Array != "roof" || len(res.Rows) != 24 {
		t.Errorf("result = %s array %s, %d rows", res.Source, res.Array, len(res.Rows))
	}
	if rec.Header().Get(runIDHeader) != res.RunID || res.RunID == "" {
		t.Errorf("run ID header %q, body %q", rec.Header().Get(runIDHeader), res.RunID)
	}
	// Naive timestamps are read in the site's zone.
	if res.Rows[0].Time != "2026-06-21T00:00:00-06:00" {
		t.Errorf("first row time = %s", res.Rows[0].Time)
	}
	if res.Summary.EnergyAC <= 0 {
		t.Errorf("energy = %v", res.Summary.EnergyAC)
	}
}

func TestEstimateMeasured(t *testing.T) {
	h, _ := newTestHandler(t)
	body := "time,ghi,temp_air\n" +
		"2026-06-21 11:00:00,800,25\n" +
		"2026-06-21 12:00:00,900,27\n" +
		"2026-06-21 13:00:00,850,\n"

	rec := serve(h, http.MethodPost, "/estimate/golden?array=shed&transposition=haydavies", strings.NewReader(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var res estimate
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Source != "decomposed" || res.Decomposition != "erbs" || res.Transposition != "haydavies" || res.Array != "shed" {
		t.Errorf("result = %+v", res)
	}
	for i, r := range res.Rows {
		if r.AC == nil || *r.AC <= 0 {
			t.Errorf("row %d AC = %v", i, r.AC)
		}
	}

	rec = serve(h, http.MethodPost, "/estimate/golden?format=csv", strings.NewReader(body))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "time,zenith,azimuth,ghi") {
		t.Errorf("csv = %s", rec.Body)
	}
}

func TestEstimateEnsemble(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := serve(h, http.MethodPost, "/estimate/golden?ensemble=true&start=2026-06-21T00:00:00&end=2026-06-21T23:00:00", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var res struct {
		Members      []json.RawMessage `json:"members"`
		MeanEnergyAC float64           `json:"mean_energy_ac"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Members) != len(clearsky.Names()) || res.MeanEnergyAC <= 0 {
		t.Errorf("ensemble = %d members, mean %v", len(res.Members), res.MeanEnergyAC)
	}
}

func TestEstimateErrors(t *testing.T) {
	h, _ := newTestHandler(t)
	const day = "start=2026-06-21T00:00:00&end=2026-06-21T23:00:00"
	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"unknown site", http.MethodPost, "/estimate/boulder?" + day, "", http.StatusNotFound},
		{"unknown array", http.MethodPost, "/estimate/golden?array=barn&" + day, "", http.StatusNotFound},
		{"unknown model", http.MethodPost, "/estimate/golden?transposition=klucher&" + day, "", http.StatusBadRequest},
		{"bad ensemble flag", http.MethodPost, "/estimate/golden?ensemble=maybe&" + day, "", http.StatusBadRequest},
		{"empty body", http.MethodPost, "/estimate/golden", "", http.StatusBadRequest},
		{"missing ghi", http.MethodPost, "/estimate/golden", "time,dni\n2026-06-21 12:00:00,800\n", http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/estimate/golden", "", http.StatusMethodNotAllowed},
		{"no route", http.MethodGet, "/forecast", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.method, tt.target, strings.NewReader(tt.body))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			var body struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error == "" {
				t.Errorf("error body = %s", rec.Body)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	h, _ := newTestHandler(t)
	serve(h, http.MethodPost, "/estimate/golden?start=2026-06-21T00:00:00&end=2026-06-21T23:00:00", nil)
	serve(h, http.MethodGet, "/nowhere", nil)

	rec := serve(h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	out := rec.Body.String()
	for _, want := range []string{
		`pvestimate_http_requests_total{endpoint="/estimate",method="POST",status_code="200"} 1`,
		`pvestimate_http_requests_total{endpoint="other",method="GET",status_code="404"} 1`,
		`pvestimate_pipeline_runs_total{source="clearsky",transposition="perez"} 1`,
		`pvestimate_pipeline_rows_total 24`,
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodOptions, "/estimate/golden", nil)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("headers = %v", rec.Header())
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := map[string]string{
		"/estimate/golden": "/estimate",
		"/clearsky/x":      "/clearsky",
		"/healthz":         "/healthz",
		"/":                "other",
		"/wp-admin/x.php":  "other",
	}
	for path, want := range tests {
		if got := endpointLabel(path); got != want {
			t.Errorf("endpointLabel(%q) = %q, want %q", path, got, want)
		}
	}
}

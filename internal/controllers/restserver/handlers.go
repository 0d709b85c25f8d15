package restserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"github.com/chrissnell/pvestimate/internal/log"
	"github.com/chrissnell/pvestimate/internal/pipeline"
	"github.com/chrissnell/pvestimate/internal/weather"
	"github.com/chrissnell/pvestimate/pkg/clearsky"
	"github.com/chrissnell/pvestimate/pkg/config"
	"github.com/chrissnell/pvestimate/pkg/decomposition"
	"github.com/chrissnell/pvestimate/pkg/pvpower"
	"github.com/chrissnell/pvestimate/pkg/responseformat"
	"github.com/chrissnell/pvestimate/pkg/solar"
	"github.com/chrissnell/pvestimate/pkg/timeseries"
	"github.com/chrissnell/pvestimate/pkg/transposition"
	"github.com/chrissnell/pvestimate/pkg/turbidity"
)

// maxBodyBytes limits uploaded weather files.
const maxBodyBytes = 32 << 20

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

type health struct {
	Status string    `json:"status"`
	Sites  int       `json:"sites"`
	Time   time.Time `json:"time"`
}

// GetHealth reports liveness and the number of configured sites.
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	sites, err := h.controller.provider.GetSites()
	if err != nil {
		h.writeError(w, req, http.StatusServiceUnavailable, err)
		return
	}
	h.write(w, req, health{Status: "ok", Sites: len(sites), Time: time.Now().UTC()}, nil)
}

// GetSites lists the configured sites and their arrays.
func (h *Handlers) GetSites(w http.ResponseWriter, req *http.Request) {
	sites, err := h.controller.provider.GetSites()
	if err != nil {
		h.writeError(w, req, http.StatusInternalServerError, err)
		return
	}
	if sites == nil {
		sites = []config.SiteData{}
	}
	h.write(w, req, sites, nil)
}

// GetSolarPosition returns the sun's position at lat/lon over a time range.
func (h *Handlers) GetSolarPosition(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	lat, err := floatParam(q, "lat", true, 0)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err)
		return
	}
	lon, err := floatParam(q, "lon", true, 0)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err)
		return
	}
	times, err := h.times(q, time.UTC)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err)
		return
	}

	positions, err := solar.Series(times, timeseries.Scalar(lat), timeseries.Scalar(lon))
	if err != nil {
		h.writeError(w, req, statusFor(err), err)
		return
	}
	h.write(w, req, positions, nil)
}

// GetClearSky evaluates a clear-sky model at a point. Turbidity is taken from the
// turbidity parameter when given, otherwise from the configured source with the
// location class in class.
func (h *Handlers) GetClearSky(w http.ResponseWriter, req *http.Request) {
	model := mux.Vars(req)["model"]
	if _, err := clearsky.ModelFor(model); err != nil {
		h.writeError(w, req, http.StatusNotFound, err)
		return
	}

	q := req.URL.Query()
	site := config.SiteData{Name: "query", LocationClass: q.Get("class")}
	var err error
	if site.Latitude, err = floatParam(q, "lat", true, 0); err == nil {
		if site.Longitude, err = floatParam(q, "lon", true, 0); err == nil {
			if site.Altitude, err = floatParam(q, "altitude", false, 0); err == nil {
				site.LinkeTurbidity, err = floatParam(q, "turbidity", false, 0)
			}
		}
	}
	if err == nil && site.LocationClass != "" {
		_, err = turbidity.ParseLocationClass(site.LocationClass)
	}
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err)
		return
	}

	times, err := h.times(q, time.UTC)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err)
		return
	}

	cfg, err := h.pipelineConfig()
	if err != nil {
		h.writeError(w, req, http.StatusInternalServerError, err)
		return
	}
	cfg.ClearSky = model

	rows, err := pipeline.ClearSky(site, times, cfg)
	if err != nil {
		h.writeError(w, req, statusFor(err), err)
		return
	}
	h.write(w, req, rows, nil)
}

// PostEstimate runs the pipeline for one array of a site. The body is a weather CSV;
// with an empty body, start and end select a clear-sky run. ensemble=true runs every
// configured model combination instead of the single configured one.
func (h *Handlers) PostEstimate(w http.ResponseWriter, req *http.Request) {
	site, err := h.controller.provider.Site(mux.Vars(req)["site"])
	if err != nil {
		h.writeError(w, req, http.StatusNotFound, err)
		return
	}
	array, err := pickArray(site, req.URL.Query().Get("array"))
	if err != nil {
		h.writeError(w, req, http.StatusNotFound, err)
		return
	}
	loc, err := site.Location()
	if err != nil {
		h.writeError(w, req, http.StatusInternalServerError, err)
		return
	}

	q := req.URL.Query()
	ensemble, err := boolParam(q, "ensemble")
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err)
		return
	}

	var series *weather.Series
	if q.Get("start") != "" {
		times, err := h.times(q, loc)
		if err != nil {
			h.writeError(w, req, http.StatusBadRequest, err)
			return
		}
		series = &weather.Series{Times: times}
	} else {
		series, err = weather.Read(http.MaxBytesReader(w, req.Body, maxBodyBytes), loc)
		if err != nil {
			h.writeError(w, req, http.StatusBadRequest, fmt.Errorf("weather data: %w", err))
			return
		}
	}

	settings, err := h.controller.provider.GetSettings()
	if err != nil {
		h.writeError(w, req, http.StatusInternalServerError, err)
		return
	}
	cfg, err := pipeline.ConfigFrom(settings)
	if err != nil {
		h.writeError(w, req, http.StatusInternalServerError, err)
		return
	}
	models := settings.Models
	for name, dst := range map[string][]*string{
		"clearsky":      {&cfg.ClearSky},
		"decomposition": {&cfg.Decomposition, &models.Decomposition},
		"transposition": {&cfg.Transposition, &models.Transposition},
	} {
		if v := q.Get(name); v != "" {
			for _, p := range dst {
				*p = v
			}
		}
	}

	started := time.Now()
	if ensemble {
		clearSkyModels := clearsky.Names()
		if q.Get("clearsky") != "" {
			clearSkyModels = []string{cfg.ClearSky}
		}
		members := pipeline.Members(models, series, clearSkyModels)
		res, err := pipeline.Ensemble(site, array, series, cfg, members)
		if err != nil {
			h.writeError(w, req, statusFor(err), err)
			return
		}
		h.controller.metrics.ObserveRun("ensemble", res.Source, "ensemble", series.Len()*len(res.Members), 0, time.Since(started))

		var body any = res
		if responseformat.FormatFromRequest(req) == responseformat.CSV {
			body = res.Members
		}
		h.write(w, req, body, map[string]string{runIDHeader: res.RunID})
		return
	}

	res, err := pipeline.Run(site, array, series, cfg)
	if err != nil {
		h.writeError(w, req, statusFor(err), err)
		return
	}
	h.controller.metrics.ObserveRun("single", res.Source, res.Transposition, len(res.Rows), res.Summary.UndefinedRows, time.Since(started))

	var body any = res
	if responseformat.FormatFromRequest(req) == responseformat.CSV {
		body = res.Rows
	}
	h.write(w, req, body, map[string]string{runIDHeader: res.RunID})
}

func (h *Handlers) notFound(w http.ResponseWriter, req *http.Request) {
	h.writeError(w, req, http.StatusNotFound, fmt.Errorf("no route for %s", req.URL.Path))
}

func (h *Handlers) methodNotAllowed(w http.ResponseWriter, req *http.Request) {
	h.writeError(w, req, http.StatusMethodNotAllowed, fmt.Errorf("%s not allowed on %s", req.Method, req.URL.Path))
}

func (h *Handlers) times(q url.Values, loc *time.Location) ([]time.Time, error) {
	loc, err := locationParam(q, loc)
	if err != nil {
		return nil, err
	}
	return timeRange(q, loc)
}

func (h *Handlers) pipelineConfig() (pipeline.Config, error) {
	settings, err := h.controller.provider.GetSettings()
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.ConfigFrom(settings)
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, data any, headers map[string]string) {
	if err := h.formatter.WriteResponse(w, req, data, headers); err != nil {
		log.Errorf("error writing response to %s: %v", req.URL.Path, err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "path", req.URL.Path, "request_id", req.Header.Get(requestIDHeader), "error", err)
	}
	if werr := h.formatter.WriteError(w, req, status, err); werr != nil {
		log.Errorf("error writing error response to %s: %v", req.URL.Path, werr)
	}
}

func pickArray(site config.SiteData, name string) (config.ArrayData, error) {
	if len(site.Arrays) == 0 {
		return config.ArrayData{}, fmt.Errorf("site %q has no arrays", site.Name)
	}
	if name == "" {
		return site.Arrays[0], nil
	}
	for _, a := range site.Arrays {
		if a.Name == name {
			return a, nil
		}
	}
	return config.ArrayData{}, fmt.Errorf("site %q has no array %q", site.Name, name)
}

// badInput are errors caused by what the client sent.
var badInput = []error{
	timeseries.ErrLengthMismatch,
	timeseries.ErrEmptySeries,
	timeseries.ErrLatitudeRange,
	timeseries.ErrLongitudeRange,
	clearsky.ErrUnknownModel,
	decomposition.ErrUnknownModel,
	transposition.ErrUnknownModel,
	pvpower.ErrUnknownTempModel,
}

func statusFor(err error) int {
	for _, target := range badInput {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

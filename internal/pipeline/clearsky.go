package pipeline

import (
	"fmt"
	"time"

	"github.com/chrissnell/pvestimate/internal/log"
	"github.com/chrissnell/pvestimate/pkg/clearsky"
	"github.com/chrissnell/pvestimate/pkg/config"
	"github.com/chrissnell/pvestimate/pkg/solar"
	"github.com/chrissnell/pvestimate/pkg/timeseries"
)

// ClearSky evaluates the configured clear-sky model for a site without transposing it.
// Turbidity comes from the site override or the configured source, as in Run.
func ClearSky(site config.SiteData, times []time.Time, cfg Config) ([]clearsky.Row, error) {
	if len(times) == 0 {
		return nil, timeseries.ErrEmptySeries
	}
	cfg = cfg.withDefaults()
	// Arrays are not needed here, so only the location is checked.
	if err := (timeseries.GeoPoint{Lat: site.Latitude, Lon: site.Longitude}).Validate(); err != nil {
		return nil, fmt.Errorf("site %q: %w", site.Name, err)
	}
	model, err := clearSkyModel(cfg)
	if err != nil {
		return nil, err
	}

	tl, err := linkeTurbidity(site, times, cfg)
	if err != nil {
		return nil, fmt.Errorf("linke turbidity: %w", err)
	}
	if outside := countOutside(tl, 1, 10); outside > 0 {
		log.Warnw("linke turbidity outside the validated range [1, 10]",
			"site", site.Name, "rows", outside)
	}

	dniExtra := make([]float64, len(times))
	for i, t := range times {
		dniExtra[i] = solar.ExtraterrestrialAt(t, cfg.Constants.SolarConstant)
	}

	return model.Estimate(clearsky.Input{
		Times:          times,
		Latitude:       timeseries.Scalar(site.Latitude),
		Longitude:      timeseries.Scalar(site.Longitude),
		Altitude:       timeseries.Scalar(site.Altitude),
		LinkeTurbidity: tl,
		DNIExtra:       dniExtra,
	})
}

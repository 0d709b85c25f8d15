package pipeline

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/pvestimate/internal/log"
	"github.com/chrissnell/pvestimate/internal/weather"
	"github.com/chrissnell/pvestimate/pkg/config"
)

// Member identifies one model combination of an ensemble.
type Member struct {
	ClearSky      string `json:"clearsky,omitempty"`
	Decomposition string `json:"decomposition,omitempty"`
	Transposition string `json:"transposition"`
}

func (m Member) String() string {
	switch {
	case m.ClearSky != "":
		return m.ClearSky + "+" + m.Transposition
	case m.Decomposition != "":
		return m.Decomposition + "+" + m.Transposition
	}
	return m.Transposition
}

// MemberResult summarises one ensemble member.
type MemberResult struct {
	Member
	RunID   string  `json:"run_id"`
	Summary Summary `json:"summary"`
}

// EnsembleResult compares the members of an ensemble.
type EnsembleResult struct {
	RunID   string         `json:"run_id"`
	Site    string         `json:"site"`
	Array   string         `json:"array"`
	Source  string         `json:"source"`
	Members []MemberResult `json:"members"`

	MeanEnergyAC     float64 `json:"mean_energy_ac"`
	StdDevEnergyAC   float64 `json:"stddev_energy_ac"`
	MinEnergyAC      float64 `json:"min_energy_ac"`
	MaxEnergyAC      float64 `json:"max_energy_ac"`
	MeanInsolation   float64 `json:"mean_insolation"`
	PerformanceRatio float64 `json:"performance_ratio"`
}

// Members expands the configured alternatives into model combinations. Measured GHI
// without components varies decomposition × transposition, clear-sky runs vary
// clear-sky × transposition, and measured components vary transposition only.
func Members(models config.ModelData, w *weather.Series, clearSkyModels []string) []Member {
	transps := models.EnsembleTransposition
	if len(transps) == 0 {
		transps = []string{models.Transposition}
	}
	decomps := models.EnsembleDecomposition
	if len(decomps) == 0 {
		decomps = []string{models.Decomposition}
	}

	var out []Member
	for _, t := range transps {
		switch {
		case w.GHI != nil && w.HasComponents():
			out = append(out, Member{Transposition: t})
		case w.GHI != nil:
			for _, d := range decomps {
				out = append(out, Member{Decomposition: d, Transposition: t})
			}
		default:
			for _, cs := range clearSkyModels {
				// GHI-only clear-sky models are split with the configured decomposition.
				out = append(out, Member{ClearSky: cs, Decomposition: models.Decomposition, Transposition: t})
			}
		}
	}
	return out
}

// Ensemble runs every member concurrently and summarises the spread of AC energy.
func Ensemble(site config.SiteData, array config.ArrayData, w *weather.Series, cfg Config, members []Member) (*EnsembleResult, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("ensemble has no members")
	}

	results := make([]*Result, len(members))
	errs := make([]error, len(members))
	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func(i int, m Member) {
			defer wg.Done()
			c := cfg
			c.Transposition = m.Transposition
			if m.Decomposition != "" {
				c.Decomposition = m.Decomposition
			}
			if m.ClearSky != "" {
				c.ClearSky = m.ClearSky
			}
			results[i], errs[i] = Run(site, array, w, c)
		}(i, m)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", members[i], err)
		}
	}

	out := &EnsembleResult{
		RunID:   uuid.NewString(),
		Site:    site.Name,
		Array:   array.Name,
		Source:  results[0].Source,
		Members: make([]MemberResult, len(members)),
	}
	energy := make([]float64, len(members))
	insolation := make([]float64, len(members))
	for i, r := range results {
		m := members[i]
		// Report what the run actually used.
		m.Decomposition = r.Decomposition
		m.ClearSky = r.ClearSky
		out.Members[i] = MemberResult{Member: m, RunID: r.RunID, Summary: r.Summary}
		energy[i] = r.Summary.EnergyAC
		insolation[i] = r.Summary.Insolation
	}

	out.MeanEnergyAC, out.StdDevEnergyAC = stat.MeanStdDev(energy, nil)
	if len(energy) < 2 {
		out.StdDevEnergyAC = 0
	}
	out.MinEnergyAC = floats.Min(energy)
	out.MaxEnergyAC = floats.Max(energy)
	out.MeanInsolation = stat.Mean(insolation, nil)
	out.PerformanceRatio = math.NaN()
	if out.MeanInsolation > 0 {
		out.PerformanceRatio = out.MeanEnergyAC / (array.DCRating * out.MeanInsolation / 1000)
	}

	log.Infow("ensemble finished",
		"run_id", out.RunID,
		"site", site.Name,
		"members", len(members),
		"mean_energy_ac_wh", out.MeanEnergyAC,
		"stddev_energy_ac_wh", out.StdDevEnergyAC)
	return out, nil
}

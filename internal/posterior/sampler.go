package posterior

import (
	"log/slog"
	"math/rand/v2"

	"github.com/ninanor/villrein-go/internal/areas"
	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/errors"
	"github.com/ninanor/villrein-go/internal/logging"
	"github.com/ninanor/villrein-go/internal/timeseries"
)

var samplerLogger *slog.Logger

func getSamplerLogger() *slog.Logger {
	if samplerLogger == nil {
		samplerLogger = logging.ForStage("posterior")
	}
	return samplerLogger
}

// RawEnsemble is one area's raw posterior draw matrix as produced by the
// upstream abundance model, draw rows over the shared year axis.
type RawEnsemble struct {
	AreaID string
	Axis   timeseries.Axis
	Draws  [][]float64 // [draw][year]
}

// Interval is the externally reported 2.5/97.5 credible band for one
// (year, area) cell.
type Interval struct {
	Lower float64
	Upper float64
}

// IntervalTable maps (area id, year) to the reported credible band.
type IntervalTable map[string]map[int]Interval

// Get returns the reported band for (areaID, year).
func (t IntervalTable) Get(areaID string, year int) (Interval, bool) {
	ys, ok := t[areaID]
	if !ok {
		return Interval{}, false
	}
	iv, ok := ys[year]
	return iv, ok
}

// coverage is the fraction of a draw's non-missing years that fall inside
// the reported band. Years without a reported band do not count either way.
func coverage(draw []float64, axis timeseries.Axis, areaID string, intervals IntervalTable) float64 {
	var inside, counted int
	for y, v := range draw {
		if timeseries.IsMissing(v) {
			continue
		}
		iv, ok := intervals.Get(areaID, axis.Year(y))
		if !ok {
			continue
		}
		counted++
		if v >= iv.Lower && v <= iv.Upper {
			inside++
		}
	}
	if counted == 0 {
		return 0
	}
	return float64(inside) / float64(counted)
}

// Resample selects a fixed size subset of coverage-consistent draws per area
// and aligns them into the unified (draw, year, area) sample. Areas are
// processed independently but share the draw index, year axis and
// alphabetical area axis. Exclusion windows from the registry are forced to
// missing in the result.
//
// With replacement disabled (the default), an area with fewer qualifying
// draws than cfg.Size fails loudly rather than silently reusing draws.
func Resample(raw map[string]*RawEnsemble, intervals IntervalTable,
	reg *areas.Registry, axis timeseries.Axis, cfg conf.SamplerSettings) (*Sample, error) {
	logger := getSamplerLogger()

	ids := reg.IDs()
	sample := &Sample{
		AreaIDs: ids,
		Axis:    axis,
		Data:    make([][][]float64, cfg.Size),
	}
	for d := range sample.Data {
		sample.Data[d] = make([][]float64, axis.Len())
		for y := range sample.Data[d] {
			row := make([]float64, len(ids))
			for a := range row {
				row[a] = timeseries.Missing()
			}
			sample.Data[d][y] = row
		}
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	for aIdx, id := range ids {
		ens, ok := raw[id]
		if !ok {
			// area without model output, stays all missing and gets its
			// reference from the regression instead
			logger.Info("no posterior ensemble for area, leaving missing", "area", id)
			continue
		}
		if ens.Axis != axis {
			return nil, errors.Newf("ensemble for area %q spans %d..%d, want %d..%d",
				id, ens.Axis.Start, ens.Axis.End, axis.Start, axis.End).
				Component("posterior").
				Category(errors.CategorySampling).
				Build()
		}

		var qualifying []int
		for d, draw := range ens.Draws {
			if coverage(draw, axis, id, intervals) >= cfg.Coverage {
				qualifying = append(qualifying, d)
			}
		}
		logger.Debug("coverage screening done",
			"area", id, "raw_draws", len(ens.Draws), "qualifying", len(qualifying))

		if len(qualifying) == 0 {
			return nil, errors.Newf("area %q has no draws meeting coverage %.2f", id, cfg.Coverage).
				Component("posterior").
				Category(errors.CategorySampling).
				AreaContext(id).
				Build()
		}
		if len(qualifying) < cfg.Size && !cfg.Replacement {
			return nil, errors.Newf(
				"area %q has %d qualifying draws, need %d (enable sampler.replacement to resample)",
				id, len(qualifying), cfg.Size).
				Component("posterior").
				Category(errors.CategorySampling).
				AreaContext(id).
				Context("qualifying", len(qualifying)).
				Context("requested", cfg.Size).
				Build()
		}

		selected := selectDraws(rng, qualifying, cfg.Size)

		area, _ := reg.ByID(id)
		for d, src := range selected {
			for y := 0; y < axis.Len(); y++ {
				if area.Excluded(axis.Year(y)) {
					continue // cell stays missing
				}
				sample.Data[d][y][aIdx] = ens.Draws[src][y]
			}
		}
	}

	return sample, nil
}

// selectDraws picks size indices from qualifying, uniformly without
// replacement when enough draws qualify. The replacement path is only
// reachable when the caller has opted in via sampler.replacement.
func selectDraws(rng *rand.Rand, qualifying []int, size int) []int {
	if len(qualifying) >= size {
		perm := rng.Perm(len(qualifying))
		out := make([]int, size)
		for i := range out {
			out[i] = qualifying[perm[i]]
		}
		return out
	}
	out := make([]int, size)
	for i := range out {
		out[i] = qualifying[rng.IntN(len(qualifying))]
	}
	return out
}

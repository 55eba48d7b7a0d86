// Package capacity propagates posterior uncertainty through the growth
// model: every retained draw of every area gets its own fit, building the
// sampled carrying capacity distribution per area.
package capacity

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ninanor/villrein-go/internal/areas"
	"github.com/ninanor/villrein-go/internal/errors"
	"github.com/ninanor/villrein-go/internal/growth"
	"github.com/ninanor/villrein-go/internal/harvest"
	"github.com/ninanor/villrein-go/internal/logging"
	"github.com/ninanor/villrein-go/internal/posterior"
	"github.com/ninanor/villrein-go/internal/timeseries"
)

var logger *slog.Logger

func getLogger() *slog.Logger {
	if logger == nil {
		logger = logging.ForStage("capacity")
	}
	return logger
}

// FailureCounts tallies fit failures for one area by reason.
type FailureCounts struct {
	NotConverged     int
	NonPhysical      int
	Implausible      int
	InsufficientData int
	Other            int
}

// Total returns the number of failed draws.
func (f FailureCounts) Total() int {
	return f.NotConverged + f.NonPhysical + f.Implausible + f.InsufficientData + f.Other
}

// Sample is the carrying capacity distribution over draws, per area. The
// area axis matches the posterior sample. A failed (area, draw) fit is a
// missing cell; it never enters any summary.
type Sample struct {
	AreaIDs  []string
	K        [][]float64     // [area][draw], missing on failure
	SEK      [][]float64     // [area][draw] standard errors, same layout
	Failures []FailureCounts // [area]
}

// AreaIndex returns the position of a canonical area id.
func (s *Sample) AreaIndex(id string) (int, bool) {
	for i, a := range s.AreaIDs {
		if a == id {
			return i, true
		}
	}
	return 0, false
}

// Available reports whether the area has at least one successful fit.
// An area where every draw failed has no carrying capacity sample at all.
func (s *Sample) Available(areaIdx int) bool {
	for _, k := range s.K[areaIdx] {
		if !timeseries.IsMissing(k) {
			return true
		}
	}
	return false
}

// DrawK returns the fitted K for (area, draw), missing on failure.
func (s *Sample) DrawK(areaIdx, draw int) float64 {
	return s.K[areaIdx][draw]
}

// AreaSummary is the per-area reduction of the K distribution.
type AreaSummary struct {
	AreaID    string
	Mean      float64
	Median    float64
	SD        float64
	Successes int
	Failures  int
}

// Summarize reduces each area's K draws to mean/median/sd over successful
// fits only. Areas without a single success keep missing statistics.
func (s *Sample) Summarize() []AreaSummary {
	out := make([]AreaSummary, len(s.AreaIDs))
	for i, id := range s.AreaIDs {
		ks := s.K[i]
		out[i] = AreaSummary{
			AreaID:    id,
			Mean:      timeseries.Mean(ks),
			Median:    timeseries.Median(ks),
			SD:        timeseries.StdDev(ks),
			Successes: len(timeseries.Present(ks)),
			Failures:  s.Failures[i].Total(),
		}
	}
	return out
}

// Propagate runs one growth model fit per (area, draw) cell of the
// posterior sample. Cells are independent, so the grid fans out on a
// bounded worker group; each result lands write-once in its own slot.
// Exclusion windows are re-applied to the draw trajectories before pairing,
// a fit must never see excluded data even if an upstream stage forgot.
func Propagate(ctx context.Context, sample *posterior.Sample, harv *harvest.Table,
	reg *areas.Registry, cfg growth.Config, workers int) (*Sample, error) {

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	draws := sample.NumDraws()
	out := &Sample{
		AreaIDs:  append([]string(nil), sample.AreaIDs...),
		K:        make([][]float64, len(sample.AreaIDs)),
		SEK:      make([][]float64, len(sample.AreaIDs)),
		Failures: make([]FailureCounts, len(sample.AreaIDs)),
	}
	for a := range out.K {
		out.K[a] = make([]float64, draws)
		out.SEK[a] = make([]float64, draws)
		for d := 0; d < draws; d++ {
			out.K[a][d] = timeseries.Missing()
			out.SEK[a][d] = timeseries.Missing()
		}
	}

	// failure tallies are merged after the group finishes; workers only
	// touch their own (area, draw) slots
	type failure struct {
		area int
		err  error
	}
	failCh := make(chan failure, workers*4)
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for f := range failCh {
			fc := &out.Failures[f.area]
			switch {
			case errors.Is(f.err, growth.ErrInsufficientData):
				fc.InsufficientData++
			case errors.Is(f.err, growth.ErrNonPhysical):
				fc.NonPhysical++
			case errors.Is(f.err, growth.ErrImplausible):
				fc.Implausible++
			case errors.Is(f.err, growth.ErrNotConverged):
				fc.NotConverged++
			default:
				fc.Other++
			}
		}
	}()

	// resolve all areas up front so a registry mismatch fails before any
	// worker starts
	resolved := make([]*areas.Area, len(sample.AreaIDs))
	for i, id := range sample.AreaIDs {
		area, ok := reg.ByID(id)
		if !ok {
			close(failCh)
			<-collectDone
			return nil, errors.Newf("area %q in sample but not in registry", id).
				Component("capacity").
				Category(errors.CategoryNameMismatch).
				Build()
		}
		resolved[i] = area
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for aIdx := range sample.AreaIDs {
		area := resolved[aIdx]
		harvSeries := harv.Series(area.ID)

		for d := 0; d < draws; d++ {
			g.Go(func() error {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				x := sample.Trajectory(d, aIdx)
				for y := range x {
					if area.Excluded(sample.Axis.Year(y)) {
						x[y] = timeseries.Missing()
					}
				}
				// pre-harvest abundance: what was alive before that
				// year's removal
				ntot := make([]float64, len(x))
				for y := range x {
					if timeseries.IsMissing(x[y]) {
						ntot[y] = timeseries.Missing()
						continue
					}
					ntot[y] = x[y] + harvSeries[y]
				}

				n, xPrev := growth.Pairs(ntot, x)
				fit, err := growth.Estimate(n, xPrev, cfg)
				if err != nil {
					failCh <- failure{area: aIdx, err: err}
					return nil // per-draw failure is not a group error
				}
				out.K[aIdx][d] = fit.K
				out.SEK[aIdx][d] = fit.SEK
				return nil
			})
		}
	}

	err := g.Wait()
	close(failCh)
	<-collectDone
	if err != nil {
		return nil, err
	}

	log := getLogger()
	for i, id := range out.AreaIDs {
		successes := len(timeseries.Present(out.K[i]))
		log.Info("carrying capacity propagation done",
			"area", id, "successes", successes, "failures", out.Failures[i].Total())
		if successes == 0 && out.Failures[i].Total() > 0 {
			log.Warn("all draws failed for area, no direct estimate", "area", id)
		}
	}
	return out, nil
}

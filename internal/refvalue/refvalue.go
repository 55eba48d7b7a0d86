// Package refvalue derives each area's reference level: directly from its
// carrying capacity sample when one exists, otherwise predicted from the
// log-log relationship between carrying capacity and habitat area.
package refvalue

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ninanor/villrein-go/internal/areas"
	"github.com/ninanor/villrein-go/internal/capacity"
	"github.com/ninanor/villrein-go/internal/errors"
	"github.com/ninanor/villrein-go/internal/logging"
	"github.com/ninanor/villrein-go/internal/timeseries"
)

var logger *slog.Logger

func getLogger() *slog.Logger {
	if logger == nil {
		logger = logging.ForStage("refvalue")
	}
	return logger
}

// Source tells which branch produced a reference value.
type Source string

const (
	SourceDirect     Source = "direct"     // mean of the area's own K sample
	SourceRegression Source = "regression" // predicted from habitat area
)

// Reference is the final reference level for one area, with the uncertainty
// of whichever branch produced it.
type Reference struct {
	AreaID  string
	Value   float64
	SD      float64
	Lower   float64 // 2.5 percentile
	Q25     float64
	Q75     float64
	Upper   float64 // 97.5 percentile
	Source  Source
}

// Table holds references for every area plus regression diagnostics.
type Table struct {
	References []Reference // in sample area order
	Slopes     []float64   // per-draw regression slopes
	Intercepts []float64   // per-draw regression intercepts
	// Predicted holds the regression prediction summary for every area,
	// including direct ones, for cross-validation diagnostics.
	Predicted map[string]timeseries.Summary
}

// ByArea returns the reference for a canonical area id.
func (t *Table) ByArea(id string) (*Reference, bool) {
	for i := range t.References {
		if t.References[i].AreaID == id {
			return &t.References[i], true
		}
	}
	return nil, false
}

// Compute fits log(K) = a + b*log(area_km2) over the areas with a direct
// carrying capacity sample, once per posterior draw index, and predicts K
// for every area. Fewer direct areas than minAreas is a fatal configuration
// error, not a per-area skip.
func Compute(cc *capacity.Sample, reg *areas.Registry, minAreas int) (*Table, error) {
	log := getLogger()

	logArea := make([]float64, len(cc.AreaIDs))
	for i, id := range cc.AreaIDs {
		area, ok := reg.ByID(id)
		if !ok {
			return nil, errors.Newf("area %q in capacity sample but not in registry", id).
				Component("refvalue").
				Category(errors.CategoryNameMismatch).
				Build()
		}
		logArea[i] = math.Log(area.AreaKm2)
	}

	var directCount int
	for i := range cc.AreaIDs {
		if cc.Available(i) {
			directCount++
		}
	}
	if directCount < minAreas {
		return nil, errors.Newf(
			"reference regression needs at least %d areas with a direct estimate, have %d",
			minAreas, directCount).
			Component("refvalue").
			Category(errors.CategoryInsufficientData).
			Build()
	}

	draws := 0
	if len(cc.K) > 0 {
		draws = len(cc.K[0])
	}

	t := &Table{Predicted: make(map[string]timeseries.Summary, len(cc.AreaIDs))}
	predDraws := make([][]float64, len(cc.AreaIDs))
	for i := range predDraws {
		predDraws[i] = make([]float64, 0, draws)
	}

	for d := 0; d < draws; d++ {
		var xs, ys []float64
		for i := range cc.AreaIDs {
			k := cc.DrawK(i, d)
			if timeseries.IsMissing(k) || k <= 0 {
				continue
			}
			xs = append(xs, logArea[i])
			ys = append(ys, math.Log(k))
		}
		if len(xs) < 2 {
			continue // this draw index carries too few fits to regress
		}
		alpha, beta := stat.LinearRegression(xs, ys, nil, false)
		t.Intercepts = append(t.Intercepts, alpha)
		t.Slopes = append(t.Slopes, beta)

		for i := range cc.AreaIDs {
			predDraws[i] = append(predDraws[i], math.Exp(alpha+beta*logArea[i]))
		}
	}
	if len(t.Slopes) == 0 {
		return nil, errors.Newf("no posterior draw had enough direct fits for the regression").
			Component("refvalue").
			Category(errors.CategoryRegression).
			Build()
	}

	t.References = make([]Reference, len(cc.AreaIDs))
	for i, id := range cc.AreaIDs {
		predSum := timeseries.Summarize(predDraws[i])
		t.Predicted[id] = predSum

		ref := Reference{AreaID: id}
		if cc.Available(i) {
			ks := cc.K[i]
			sum := timeseries.Summarize(ks)
			ref.Value = sum.Mean
			ref.SD = sum.SD
			ref.Lower, ref.Q25, ref.Q75, ref.Upper = sum.Lower, sum.Q25, sum.Q75, sum.Upper
			ref.Source = SourceDirect

			log.Debug("cross-validation: direct vs regression",
				"area", id, "direct", sum.Mean, "predicted", predSum.Mean)
		} else {
			ref.Value = predSum.Mean
			ref.SD = predSum.SD
			ref.Lower, ref.Q25, ref.Q75, ref.Upper = predSum.Lower, predSum.Q25, predSum.Q75, predSum.Upper
			ref.Source = SourceRegression

			log.Info("reference value from habitat regression", "area", id, "value", predSum.Mean)
		}
		t.References[i] = ref
	}
	return t, nil
}

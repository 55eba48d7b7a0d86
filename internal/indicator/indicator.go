// Package indicator assembles the final observed-to-reference ratio series
// published in the national biodiversity index.
package indicator

import (
	"log/slog"
	"strconv"

	"github.com/ninanor/villrein-go/internal/logging"
	"github.com/ninanor/villrein-go/internal/posterior"
	"github.com/ninanor/villrein-go/internal/refvalue"
	"github.com/ninanor/villrein-go/internal/survey"
	"github.com/ninanor/villrein-go/internal/timeseries"
)

var logger *slog.Logger

func getLogger() *slog.Logger {
	if logger == nil {
		logger = logging.ForStage("indicator")
	}
	return logger
}

// Datasource codes the provenance of an indicator record.
type Datasource string

const (
	DatasourceModelled     Datasource = "modelled"     // posterior abundance model
	DatasourceSurvey       Datasource = "survey"       // minimum count via detectability
	DatasourceInterpolated Datasource = "interpolated" // imputed assessment year
)

// ReferenceLabel is the sentinel year label of the reference pseudo-row.
const ReferenceLabel = "Referanseverdi"

// Unit is the unit of measurement carried on every record.
const Unit = "antall individer"

// Record is one published indicator row.
type Record struct {
	AreaID     string
	YearLabel  string // calendar year or ReferenceLabel
	Value      float64
	Lower      float64 // lower quartile
	Upper      float64 // upper quartile
	Unit       string
	Datasource Datasource
}

// estimate is one (area, year) abundance estimate before ratio scaling.
type estimate struct {
	mean   float64
	sd     float64
	q25    float64
	q75    float64
	source Datasource
}

// imputeWindow is one entry of the ordered fallback sequence. With single
// false both neighbors at the radius must exist and their mean is used;
// with single true whichever one neighbor exists is taken alone.
type imputeWindow struct {
	radius int
	single bool
}

// fallbackWindows is the imputation order for a missing assessment year.
var fallbackWindows = []imputeWindow{
	{radius: 1},
	{radius: 2},
	{radius: 3, single: true},
}

// imputeField fills one scalar field for a target year from its neighbors,
// trying each window in order and short-circuiting on the first success.
func imputeField(values map[int]float64, year int, windows []imputeWindow) (float64, bool) {
	for _, w := range windows {
		lo, hasLo := values[year-w.radius]
		hi, hasHi := values[year+w.radius]
		hasLo = hasLo && !timeseries.IsMissing(lo)
		hasHi = hasHi && !timeseries.IsMissing(hi)
		switch {
		case hasLo && hasHi:
			return (lo + hi) / 2, true
		case w.single && hasLo:
			return lo, true
		case w.single && hasHi:
			return hi, true
		}
	}
	return timeseries.Missing(), false
}

// Assemble merges model and survey abundance estimates, imputes missing
// assessment years, and scales everything by the per-area reference value.
func Assemble(summary *posterior.SummaryTable, counts []survey.Count,
	det survey.Detectability, refs *refvalue.Table, assessYears []int) []Record {

	log := getLogger()

	// survey counts indexed for the merge; model estimates win, so a survey
	// record is only consulted where the model has nothing
	surveyByCell := make(map[string]map[int]float64)
	for _, c := range counts {
		if surveyByCell[c.AreaID] == nil {
			surveyByCell[c.AreaID] = make(map[int]float64)
		}
		surveyByCell[c.AreaID][c.Year] = c.Count
	}

	var records []Record
	for _, areaID := range summary.AreaIDs {
		ref, ok := refs.ByArea(areaID)
		if !ok || timeseries.IsMissing(ref.Value) || ref.Value <= 0 {
			log.Warn("area has no usable reference value, skipping", "area", areaID)
			continue
		}

		// best available estimate per year
		estimates := make(map[int]estimate)
		for _, year := range summary.Axis.Years() {
			if cell, ok := summary.Cell(year, areaID); ok && cell.N > 0 {
				estimates[year] = estimate{
					mean: cell.Mean, sd: cell.SD,
					q25: cell.Q25, q75: cell.Q75,
					source: DatasourceModelled,
				}
				continue
			}
			if count, ok := surveyByCell[areaID][year]; ok {
				e := det.Abundance(count)
				estimates[year] = estimate{
					mean: e.Mean, sd: e.SD,
					q25: e.Q25, q75: e.Q75,
					source: DatasourceSurvey,
				}
			}
		}

		// field-wise views for the imputation function
		means := make(map[int]float64, len(estimates))
		sds := make(map[int]float64, len(estimates))
		q25s := make(map[int]float64, len(estimates))
		q75s := make(map[int]float64, len(estimates))
		for y, e := range estimates {
			means[y], sds[y], q25s[y], q75s[y] = e.mean, e.sd, e.q25, e.q75
		}

		for _, year := range assessYears {
			e, have := estimates[year]
			if !have {
				m, okM := imputeField(means, year, fallbackWindows)
				if !okM {
					log.Warn("assessment year cannot be imputed, no neighbors",
						"area", areaID, "year", year)
					continue
				}
				sd, _ := imputeField(sds, year, fallbackWindows)
				q25, _ := imputeField(q25s, year, fallbackWindows)
				q75, _ := imputeField(q75s, year, fallbackWindows)
				e = estimate{mean: m, sd: sd, q25: q25, q75: q75, source: DatasourceInterpolated}
			}

			// the yearly estimate's own quartiles rescaled by the reference;
			// reference uncertainty is not convolved in
			records = append(records, Record{
				AreaID:     areaID,
				YearLabel:  strconv.Itoa(year),
				Value:      e.mean / ref.Value,
				Lower:      e.q25 / ref.Value,
				Upper:      e.q75 / ref.Value,
				Unit:       Unit,
				Datasource: e.source,
			})
		}

		records = append(records, Record{
			AreaID:     areaID,
			YearLabel:  ReferenceLabel,
			Value:      ref.Value,
			Lower:      ref.Q25,
			Upper:      ref.Q75,
			Unit:       Unit,
			Datasource: datasourceForReference(ref.Source),
		})
	}
	return records
}

func datasourceForReference(s refvalue.Source) Datasource {
	if s == refvalue.SourceDirect {
		return DatasourceModelled
	}
	return DatasourceInterpolated
}

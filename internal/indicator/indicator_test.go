package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninanor/villrein-go/internal/posterior"
	"github.com/ninanor/villrein-go/internal/refvalue"
	"github.com/ninanor/villrein-go/internal/survey"
	"github.com/ninanor/villrein-go/internal/timeseries"
)

func TestImputeFieldExactMeanAtRadiusOne(t *testing.T) {
	t.Parallel()

	values := map[int]float64{2018: 100, 2020: 200}
	v, ok := imputeField(values, 2019, fallbackWindows)
	require.True(t, ok)
	assert.Equal(t, 150.0, v, "both neighbors at ±1 must give their exact mean")
}

func TestImputeFieldFallbackOrder(t *testing.T) {
	t.Parallel()

	// only one neighbor at ±1: radius 1 and 2 need both sides, so the
	// single-neighbor rule at ±3 must not fire while ±2 could still match
	values := map[int]float64{2017: 80, 2021: 120}
	v, ok := imputeField(values, 2019, fallbackWindows)
	require.True(t, ok)
	assert.Equal(t, 100.0, v, "±2 on both sides beats any single neighbor")

	// single neighbor at ±3 only
	values = map[int]float64{2016: 90}
	v, ok = imputeField(values, 2019, fallbackWindows)
	require.True(t, ok)
	assert.Equal(t, 90.0, v)

	// nothing within ±3
	values = map[int]float64{2010: 50}
	_, ok = imputeField(values, 2019, fallbackWindows)
	assert.False(t, ok)
}

func TestImputeFieldSkipsMissingNeighbors(t *testing.T) {
	t.Parallel()

	values := map[int]float64{2018: timeseries.Missing(), 2020: 200, 2017: 100, 2021: 300}
	v, ok := imputeField(values, 2019, fallbackWindows)
	require.True(t, ok)
	// 2018 is present-but-missing, so ±1 fails and ±2 supplies both sides
	assert.Equal(t, 200.0, v)
}

// buildSummary creates a model summary with the given per-year means for a
// single area; sd is mean/10 and quartiles ±10% around the mean.
func buildSummary(areaID string, axis timeseries.Axis, means map[int]float64) *posterior.SummaryTable {
	st := &posterior.SummaryTable{
		AreaIDs: []string{areaID},
		Axis:    axis,
		Cells:   make([][]timeseries.Summary, axis.Len()),
	}
	for y := 0; y < axis.Len(); y++ {
		st.Cells[y] = make([]timeseries.Summary, 1)
		if m, ok := means[axis.Year(y)]; ok {
			st.Cells[y][0] = timeseries.Summary{
				Mean: m, SD: m / 10,
				Lower: 0.8 * m, Q25: 0.9 * m, Q75: 1.1 * m, Upper: 1.2 * m,
				N: 100,
			}
		} else {
			st.Cells[y][0] = timeseries.Summarize(nil)
		}
	}
	return st
}

func refTable(areaID string, value float64) *refvalue.Table {
	return &refvalue.Table{
		References: []refvalue.Reference{{
			AreaID: areaID, Value: value,
			SD: value / 10, Lower: 0.8 * value, Q25: 0.9 * value,
			Q75: 1.1 * value, Upper: 1.2 * value,
			Source: refvalue.SourceDirect,
		}},
		Predicted: map[string]timeseries.Summary{},
	}
}

func TestAssembleRatioScaling(t *testing.T) {
	t.Parallel()

	axis := timeseries.Axis{Start: 2018, End: 2020}
	st := buildSummary("rondane", axis, map[int]float64{2019: 500})
	refs := refTable("rondane", 1000)

	recs := Assemble(st, nil, survey.Detectability{Mean: 0.85, SD: 0.05}, refs, []int{2019})
	require.Len(t, recs, 2) // 2019 + reference row

	assert.Equal(t, "2019", recs[0].YearLabel)
	assert.InDelta(t, 0.5, recs[0].Value, 1e-12)
	assert.InDelta(t, 0.45, recs[0].Lower, 1e-12)
	assert.InDelta(t, 0.55, recs[0].Upper, 1e-12)
	assert.Equal(t, DatasourceModelled, recs[0].Datasource)
	assert.Equal(t, Unit, recs[0].Unit)

	ref := recs[1]
	assert.Equal(t, ReferenceLabel, ref.YearLabel)
	assert.Equal(t, 1000.0, ref.Value)
	assert.Equal(t, DatasourceModelled, ref.Datasource)
}

func TestAssembleImputesMissingAssessmentYear(t *testing.T) {
	t.Parallel()

	axis := timeseries.Axis{Start: 2017, End: 2021}
	st := buildSummary("rondane", axis, map[int]float64{2018: 400, 2020: 600})
	refs := refTable("rondane", 1000)

	recs := Assemble(st, nil, survey.Detectability{Mean: 0.85, SD: 0.05}, refs, []int{2019})
	require.Len(t, recs, 2)

	// imputed estimate is mean(400,600)=500, ratio 0.5
	assert.InDelta(t, 0.5, recs[0].Value, 1e-12)
	assert.Equal(t, DatasourceInterpolated, recs[0].Datasource)
	// quartiles imputed independently: mean(0.9*400,0.9*600)/1000
	assert.InDelta(t, 0.45, recs[0].Lower, 1e-12)
	assert.InDelta(t, 0.55, recs[0].Upper, 1e-12)
}

func TestAssembleSurveyFallback(t *testing.T) {
	t.Parallel()

	axis := timeseries.Axis{Start: 2018, End: 2020}
	st := buildSummary("blefjell", axis, nil) // no model output at all
	refs := refTable("blefjell", 200)

	det := survey.Detectability{Mean: 0.8, SD: 0.0}
	counts := []survey.Count{{AreaID: "blefjell", Year: 2019, Count: 80}}

	recs := Assemble(st, counts, det, refs, []int{2019})
	require.Len(t, recs, 2)

	// 80/0.8 = 100 animals against reference 200
	assert.InDelta(t, 0.5, recs[0].Value, 1e-9)
	assert.Equal(t, DatasourceSurvey, recs[0].Datasource)
}

func TestAssembleUnimputableYearSkipped(t *testing.T) {
	t.Parallel()

	axis := timeseries.Axis{Start: 2000, End: 2020}
	st := buildSummary("rondane", axis, map[int]float64{2000: 500})
	refs := refTable("rondane", 1000)

	recs := Assemble(st, nil, survey.Detectability{Mean: 0.85, SD: 0.05}, refs, []int{2019})
	// only the reference row, the assessment year has no neighbors in reach
	require.Len(t, recs, 1)
	assert.Equal(t, ReferenceLabel, recs[0].YearLabel)
}

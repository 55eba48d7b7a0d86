package refvalue

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninanor/villrein-go/internal/areas"
	"github.com/ninanor/villrein-go/internal/capacity"
	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/errors"
	"github.com/ninanor/villrein-go/internal/timeseries"
)

// five areas with direct estimates, one held out for regression prediction
var habitats = []conf.AreaConfig{
	{ID: "a10", Name: "A10", AreaKm2: 10},
	{ID: "b20", Name: "B20", AreaKm2: 20},
	{ID: "c50", Name: "C50", AreaKm2: 50},
	{ID: "d100", Name: "D100", AreaKm2: 100},
	{ID: "e200", Name: "E200", AreaKm2: 200},
	{ID: "f150", Name: "F150", AreaKm2: 150}, // no direct estimate
}

func testRegistry(t *testing.T) *areas.Registry {
	t.Helper()
	reg, err := areas.NewRegistry(habitats)
	require.NoError(t, err)
	return reg
}

// syntheticCC builds a capacity sample following log(K)=1+0.8*log(area)
// with small lognormal noise per draw. Area f150 has no successful fits.
func syntheticCC(t *testing.T, draws int, seed uint64) *capacity.Sample {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+7))

	reg := testRegistry(t)
	ids := reg.IDs()
	s := &capacity.Sample{
		AreaIDs:  ids,
		K:        make([][]float64, len(ids)),
		SEK:      make([][]float64, len(ids)),
		Failures: make([]capacity.FailureCounts, len(ids)),
	}
	for i, id := range ids {
		s.K[i] = make([]float64, draws)
		s.SEK[i] = make([]float64, draws)
		area, _ := reg.ByID(id)
		for d := 0; d < draws; d++ {
			if id == "f150" {
				s.K[i][d] = timeseries.Missing()
				s.SEK[i][d] = timeseries.Missing()
				continue
			}
			logK := 1 + 0.8*math.Log(area.AreaKm2) + 0.05*rng.NormFloat64()
			s.K[i][d] = math.Exp(logK)
			s.SEK[i][d] = 1
		}
	}
	return s
}

func TestComputeRecoversSlopeAndIntercept(t *testing.T) {
	t.Parallel()

	cc := syntheticCC(t, 200, 31)
	table, err := Compute(cc, testRegistry(t), 3)
	require.NoError(t, err)
	require.NotEmpty(t, table.Slopes)

	assert.InDelta(t, 0.8, timeseries.Mean(table.Slopes), 0.05)
	assert.InDelta(t, 1.0, timeseries.Mean(table.Intercepts), 0.2)
}

func TestComputeSourceSelection(t *testing.T) {
	t.Parallel()

	cc := syntheticCC(t, 100, 17)
	table, err := Compute(cc, testRegistry(t), 3)
	require.NoError(t, err)

	// areas with a direct sample must never fall back to the regression
	for _, id := range []string{"a10", "b20", "c50", "d100", "e200"} {
		ref, ok := table.ByArea(id)
		require.True(t, ok)
		assert.Equal(t, SourceDirect, ref.Source, "area %s", id)
	}

	// and the held-out area must come from the regression, not be zero/NaN
	ref, ok := table.ByArea("f150")
	require.True(t, ok)
	assert.Equal(t, SourceRegression, ref.Source)
	assert.False(t, timeseries.IsMissing(ref.Value))
	assert.Greater(t, ref.Value, 0.0)
}

func TestComputeHeldOutPredictionInsideInterval(t *testing.T) {
	t.Parallel()

	// true K for the held-out 150 km2 area under the generating relationship
	trueK := math.Exp(1 + 0.8*math.Log(150))

	hits := 0
	const trials = 20
	for trial := 0; trial < trials; trial++ {
		cc := syntheticCC(t, 100, uint64(1000+trial))
		table, err := Compute(cc, testRegistry(t), 3)
		require.NoError(t, err)

		ref, ok := table.ByArea("f150")
		require.True(t, ok)
		if trueK >= ref.Lower && trueK <= ref.Upper {
			hits++
		}
	}
	// the reported 95% band must cover the truth in at least 90% of trials
	assert.GreaterOrEqual(t, hits, trials*9/10)
}

func TestComputeTooFewDirectAreasIsFatal(t *testing.T) {
	t.Parallel()

	cc := syntheticCC(t, 50, 3)
	// blank out all but two areas
	for i, id := range cc.AreaIDs {
		if id == "a10" || id == "b20" {
			continue
		}
		for d := range cc.K[i] {
			cc.K[i][d] = timeseries.Missing()
		}
	}

	_, err := Compute(cc, testRegistry(t), 3)
	require.Error(t, err)

	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, errors.CategoryInsufficientData, ee.Category)
}

func TestComputeFailedAreaNeverEntersRegression(t *testing.T) {
	t.Parallel()

	cc := syntheticCC(t, 100, 53)
	table, err := Compute(cc, testRegistry(t), 3)
	require.NoError(t, err)

	// the regression over 5 direct areas must look the same whether or not
	// the failed area exists at all
	trimmed := &capacity.Sample{
		AreaIDs:  cc.AreaIDs[:5],
		K:        cc.K[:5],
		SEK:      cc.SEK[:5],
		Failures: cc.Failures[:5],
	}
	table2, err := Compute(trimmed, testRegistry(t), 3)
	require.NoError(t, err)
	assert.Equal(t, table2.Slopes, table.Slopes)
	assert.Equal(t, table2.Intercepts, table.Intercepts)
}

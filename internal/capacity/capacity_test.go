package capacity

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninanor/villrein-go/internal/areas"
	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/growth"
	"github.com/ninanor/villrein-go/internal/harvest"
	"github.com/ninanor/villrein-go/internal/posterior"
	"github.com/ninanor/villrein-go/internal/timeseries"
)

var testAxis = timeseries.Axis{Start: 2000, End: 2015}

func testRegistry(t *testing.T) *areas.Registry {
	t.Helper()
	reg, err := areas.NewRegistry([]conf.AreaConfig{
		{ID: "rondane", Name: "Rondane", AreaKm2: 3259},
		{ID: "snohetta", Name: "Snøhetta", AreaKm2: 3327,
			Exclude: []conf.ExclusionWindow{{From: 2000, To: 2015}}},
	})
	require.NoError(t, err)
	return reg
}

func fitConfig() growth.Config {
	return growth.Config{
		RInit: 0.3, KInitFactor: 1.2, LogCInit: -1,
		SigmaObs: 0.01, MaxIterations: 2000,
		GradientTolerance: 1e-10, MinPairs: 3,
	}
}

// rickerDraws builds a posterior sample whose draws follow a Ricker process
// around K for both areas.
func rickerDraws(t *testing.T, draws int, k float64) *posterior.Sample {
	t.Helper()
	rng := rand.New(rand.NewPCG(99, 100))
	s := &posterior.Sample{
		AreaIDs: []string{"rondane", "snohetta"},
		Axis:    testAxis,
		Data:    make([][][]float64, draws),
	}
	for d := range s.Data {
		s.Data[d] = make([][]float64, testAxis.Len())
		v := k * 0.4
		for y := range s.Data[d] {
			z := rng.NormFloat64()
			v = v * math.Exp(0.3*(1-v/k)+0.04*z)
			s.Data[d][y] = []float64{v, v}
		}
	}
	return s
}

func harvestFromCSV(t *testing.T, reg *areas.Registry, data string) (*harvest.Table, error) {
	t.Helper()
	return harvest.Read(strings.NewReader(data), "test.csv", reg, testAxis)
}

func TestPropagateBuildsKSample(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	sample := rickerDraws(t, 8, 1000)
	harv, err := harvestFromCSV(t, reg, "area,year,harvested\n")
	require.NoError(t, err)

	out, err := Propagate(context.Background(), sample, harv, reg, fitConfig(), 4)
	require.NoError(t, err)

	ri, ok := out.AreaIndex("rondane")
	require.True(t, ok)
	assert.True(t, out.Available(ri))

	successes := len(timeseries.Present(out.K[ri]))
	assert.Greater(t, successes, 0)

	sums := out.Summarize()
	assert.False(t, timeseries.IsMissing(sums[ri].Mean))
	assert.InDelta(t, 1000, sums[ri].Mean, 250)
}

func TestPropagateExcludedAreaHasNoSample(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	sample := rickerDraws(t, 5, 1000)
	harv, err := harvestFromCSV(t, reg, "area,year,harvested\n")
	require.NoError(t, err)

	out, err := Propagate(context.Background(), sample, harv, reg, fitConfig(), 2)
	require.NoError(t, err)

	// snohetta is fully excluded: every draw must fail on insufficient data,
	// and the area must have no carrying capacity sample
	si, ok := out.AreaIndex("snohetta")
	require.True(t, ok)
	assert.False(t, out.Available(si))
	assert.Equal(t, 5, out.Failures[si].InsufficientData)

	sums := out.Summarize()
	assert.True(t, timeseries.IsMissing(sums[si].Mean))
	assert.True(t, timeseries.IsMissing(sums[si].Median))
	assert.Zero(t, sums[si].Successes)
}

func TestSummarizeExcludesFailures(t *testing.T) {
	t.Parallel()

	miss := timeseries.Missing()
	s := &Sample{
		AreaIDs:  []string{"rondane"},
		K:        [][]float64{{900, miss, 1100, miss, 1000}},
		SEK:      [][]float64{{10, miss, 12, miss, 11}},
		Failures: []FailureCounts{{NotConverged: 2}},
	}

	sums := s.Summarize()
	require.Len(t, sums, 1)
	// statistics over the 3 successes only
	assert.InDelta(t, 1000.0, sums[0].Mean, 1e-9)
	assert.InDelta(t, 1000.0, sums[0].Median, 1e-9)
	assert.InDelta(t, 100.0, sums[0].SD, 1e-9)
	assert.Equal(t, 3, sums[0].Successes)
	assert.Equal(t, 2, sums[0].Failures)
}

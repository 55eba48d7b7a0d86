package timeseries

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAxisIndexing(t *testing.T) {
	t.Parallel()

	a := Axis{Start: 1991, End: 2024}
	assert.Equal(t, 34, a.Len())

	i, ok := a.Index(1991)
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	i, ok = a.Index(2024)
	assert.True(t, ok)
	assert.Equal(t, 33, i)
	assert.Equal(t, 2024, a.Year(33))

	_, ok = a.Index(1990)
	assert.False(t, ok)
	_, ok = a.Index(2025)
	assert.False(t, ok)
}

func TestStatsSkipMissing(t *testing.T) {
	t.Parallel()

	values := []float64{1, Missing(), 2, Missing(), 3}
	assert.InDelta(t, 2.0, Mean(values), 1e-12)
	assert.InDelta(t, 1.0, StdDev(values), 1e-12)
	assert.InDelta(t, 2.0, Median(values), 1e-12)
}

func TestStatsAllMissing(t *testing.T) {
	t.Parallel()

	values := []float64{Missing(), Missing()}
	assert.True(t, IsMissing(Mean(values)))
	assert.True(t, IsMissing(Median(values)))

	s := Summarize(values)
	assert.Zero(t, s.N)
	assert.True(t, IsMissing(s.Mean))
	assert.True(t, IsMissing(s.Q25))
	assert.True(t, IsMissing(s.Upper))
}

func TestSummarizeMatchesFilteredInput(t *testing.T) {
	t.Parallel()

	// summary with injected missing cells must equal the summary over the
	// present values alone
	clean := []float64{10, 20, 30, 40, 50, 60, 70, 80}
	dirty := append([]float64{Missing()}, clean...)
	dirty = append(dirty, Missing(), Missing())

	sc := Summarize(clean)
	sd := Summarize(dirty)
	assert.Equal(t, sc.N, sd.N)
	assert.Equal(t, sc.Mean, sd.Mean)
	assert.Equal(t, sc.SD, sd.SD)
	assert.Equal(t, sc.Q25, sd.Q25)
	assert.Equal(t, sc.Q75, sd.Q75)
}

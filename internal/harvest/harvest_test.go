package harvest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninanor/villrein-go/internal/areas"
	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/timeseries"
)

var testAxis = timeseries.Axis{Start: 2000, End: 2004}

func testRegistry(t *testing.T) *areas.Registry {
	t.Helper()
	reg, err := areas.NewRegistry([]conf.AreaConfig{
		{ID: "rondane", Name: "Rondane", AreaKm2: 3259},
		{ID: "snohetta", Name: "Snøhetta", AreaKm2: 3327},
	})
	require.NoError(t, err)
	return reg
}

func TestLoadPivot(t *testing.T) {
	t.Parallel()

	data := "area,year,harvested\n" +
		"Rondane,2000,350\n" +
		"Rondane,2001,410\n" +
		"Snøhetta,2000,520\n" +
		"Snøhetta,1980,999\n" // outside horizon, dropped

	table, err := Read(strings.NewReader(data), "harvest.csv", testRegistry(t), testAxis)
	require.NoError(t, err)

	assert.Equal(t, 350.0, table.At("rondane", 2000))
	assert.Equal(t, 410.0, table.At("rondane", 2001))
	assert.Equal(t, 520.0, table.At("snohetta", 2000))

	// missing record means zero removal, not missing
	assert.Equal(t, 0.0, table.At("rondane", 2004))
	assert.Equal(t, 0.0, table.At("snohetta", 1980))
}

func TestLoadSeriesAlignment(t *testing.T) {
	t.Parallel()

	data := "area,year,harvested\nRondane,2002,100\n"
	table, err := Read(strings.NewReader(data), "harvest.csv", testRegistry(t), testAxis)
	require.NoError(t, err)

	s := table.Series("rondane")
	require.Len(t, s, testAxis.Len())
	assert.Equal(t, []float64{0, 0, 100, 0, 0}, s)
}

func TestLoadRejectsNegative(t *testing.T) {
	t.Parallel()

	data := "area,year,harvested\nRondane,2000,-5\n"
	_, err := Read(strings.NewReader(data), "harvest.csv", testRegistry(t), testAxis)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownArea(t *testing.T) {
	t.Parallel()

	data := "area,year,harvested\nDovrefjell,2000,5\n"
	_, err := Read(strings.NewReader(data), "harvest.csv", testRegistry(t), testAxis)
	assert.Error(t, err)
}

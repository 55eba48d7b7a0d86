package posterior

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninanor/villrein-go/internal/errors"
	"github.com/ninanor/villrein-go/internal/timeseries"
)

func TestReadEnsemble(t *testing.T) {
	t.Parallel()

	csvData := "2000,2001,2002,2003,2004\n" +
		"100,110,NA,130,140\n" +
		"200,210,220,230,240\n"
	ens, err := readEnsemble(strings.NewReader(csvData), "rondane", testAxis)
	require.NoError(t, err)
	require.Len(t, ens.Draws, 2)

	assert.Equal(t, 100.0, ens.Draws[0][0])
	assert.True(t, timeseries.IsMissing(ens.Draws[0][2]), "NA must parse as missing")
	assert.Equal(t, 240.0, ens.Draws[1][4])
}

func TestReadEnsembleRejectsBadHeader(t *testing.T) {
	t.Parallel()

	_, err := readEnsemble(strings.NewReader("year,one\n1,2\n"), "rondane", testAxis)
	assert.Error(t, err)
}

func TestLoadIntervalsResolvesNames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "intervals.csv")
	data := "area,year,lower,upper\n" +
		"Rondane,2000,80,300\n" +
		"Knutshø,2000,70,280\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	reg := testRegistry(t)
	table, err := LoadIntervals(path, reg)
	require.NoError(t, err)

	iv, ok := table.Get("knutsho", 2000)
	require.True(t, ok, "diacritic name must resolve to canonical id")
	assert.Equal(t, 70.0, iv.Lower)
	assert.Equal(t, 280.0, iv.Upper)
}

func TestLoadIntervalsNameMismatchIsFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "intervals.csv")
	data := "area,year,lower,upper\nDovrefjell,2000,1,2\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := LoadIntervals(path, testRegistry(t))
	require.Error(t, err)

	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, errors.CategoryNameMismatch, ee.Category)
}

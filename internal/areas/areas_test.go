package areas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/errors"
)

func testConfigs() []conf.AreaConfig {
	return []conf.AreaConfig{
		{ID: "snohetta", Name: "Snøhetta", AreaKm2: 3327},
		{ID: "knutsho", Name: "Knutshø", AreaKm2: 1817},
		{ID: "setesdal_ryfylke", Name: "Setesdal Ryfylke", AreaKm2: 5582,
			Aliases: []string{"Setesdal-Ryfylke", "Setesdalsheiene"}},
		{ID: "nordfjella", Name: "Nordfjella", AreaKm2: 2887,
			Exclude: []conf.ExclusionWindow{{From: 2017, To: 2024}}},
	}
}

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Snøhetta":          "snohetta",
		"Knutshø":           "knutsho",
		"Setesdal Ryfylke":  "setesdal_ryfylke",
		"Setesdal-Ryfylke":  "setesdal_ryfylke",
		"SØLNKLETTEN":       "solnkletten",
		"Norefjell-Reinsjøfjell": "norefjell_reinsjofjell",
		"  Blefjell  ":      "blefjell",
		"Hardangervidda":    "hardangervidda",
	}
	for in, want := range cases {
		assert.Equal(t, want, Canonicalize(in), "input %q", in)
	}
}

func TestRegistryOrderIsAlphabetical(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(testConfigs())
	require.NoError(t, err)
	assert.Equal(t, []string{"knutsho", "nordfjella", "setesdal_ryfylke", "snohetta"}, r.IDs())
}

func TestResolve(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(testConfigs())
	require.NoError(t, err)

	for _, name := range []string{"Snøhetta", "snohetta", "SNØHETTA"} {
		a, err := r.Resolve(name)
		require.NoError(t, err, "name %q", name)
		assert.Equal(t, "snohetta", a.ID)
	}

	a, err := r.Resolve("Setesdalsheiene")
	require.NoError(t, err)
	assert.Equal(t, "setesdal_ryfylke", a.ID)
}

func TestResolveMismatchIsFatalCategory(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(testConfigs())
	require.NoError(t, err)

	_, err = r.Resolve("Dovrefjell")
	require.Error(t, err)

	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, errors.CategoryNameMismatch, ee.Category)
}

func TestExcludedWindow(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(testConfigs())
	require.NoError(t, err)

	a, ok := r.ByID("nordfjella")
	require.True(t, ok)
	assert.False(t, a.Excluded(2016))
	assert.True(t, a.Excluded(2017))
	assert.True(t, a.Excluded(2024))

	b, ok := r.ByID("snohetta")
	require.True(t, ok)
	assert.False(t, b.Excluded(2017))
}

func TestAliasCollision(t *testing.T) {
	t.Parallel()

	cfgs := testConfigs()
	cfgs[0].Aliases = []string{"Knutshø"}
	_, err := NewRegistry(cfgs)
	assert.Error(t, err)
}

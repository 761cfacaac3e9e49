package params

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygene76/reflectx/internal/types"
)

func baseRow() Row {
	return Row{
		"name":        "ReflectX",
		"planet_type": "Jupiter",
		"tint":        "150",
		"st_teff":     "5800",
		"rstar":       "1",
		"au":          "1",
		"pl_rad":      "1",
		"pl_mass":     "1",
		"logg":        "4.4",
		"feh":         "1",
		"nlevel":      "91",
		"nofczns":     "1",
		"nstr_upper":  "85",
		"rfacv":       "0.5",
		"mh":          "1",
		"mh_str":      "0",
		"cto":         "0.46",
		"p_bottom":    "2",
		"p_top":       "-6",
		"noTiOVO":     "False",
		"guess":       "guillot",
		"wave_range":  "[0.5, 1.8]",
		"phase":       "90",
	}
}

func TestDeriveRunParameters(t *testing.T) {
	rp, err := DeriveRunParameters(baseRow())
	require.NoError(t, err)

	assert.Equal(t, "ReflectX", rp.Grid)
	assert.InDelta(t, 255.82, rp.Planet.Teq, 0.01)
	assert.Equal(t, "+000", rp.Planet.MHKey)
	assert.Equal(t, "046", rp.Planet.COKey)
	assert.Equal(t, 6, rp.Planet.NumTangle)
	assert.Equal(t, 6, rp.Planet.NumGangle)
	assert.Equal(t, 89, rp.Climate.NstrDeep)
	assert.Equal(t, [6]int{0, 85, 89, 0, 0, 0}, rp.Climate.Nstr())
	assert.Equal(t, GuessGuillot, rp.Climate.Guess)
	assert.Equal(t, [2]float64{0.5, 1.8}, rp.Spectrum.WaveRange)
	assert.Equal(t, 150.0, rp.Spectrum.Resolution)
	assert.Equal(t, CalculationReflected, rp.Spectrum.Calculation)
	assert.Equal(t, 0.0, rp.Star.MH)
	assert.Equal(t,
		"ReflectX-Jupiter-Tstar5800-Rstar1-Teq256-sep1-rad1-mass1-mh1-co0.46-phase90",
		rp.Directory)
	assert.Equal(t, "sonora_2020_feh+000_co_046.data.196", rp.Planet.OpacityTableName())

	g, err := rp.Planet.GravitySpec()
	require.NoError(t, err)
	assert.Equal(t, GravityByMass, g.Kind)
}

func TestDeriveFullPhaseForcesSingleTangle(t *testing.T) {
	row := baseRow()
	row["phase"] = "0"
	row["num_tangle"] = "10"

	rp, err := DeriveRunParameters(row)
	require.NoError(t, err)
	assert.Equal(t, 1, rp.Planet.NumTangle)

	row["phase"] = "45"
	rp, err = DeriveRunParameters(row)
	require.NoError(t, err)
	assert.Equal(t, 10, rp.Planet.NumTangle)
}

func TestDerivePhaseFromOrbit(t *testing.T) {
	row := baseRow()
	delete(row, "phase")
	row["mean_anomaly"] = "0"
	row["ecc"] = "0"
	row["inc"] = "90"
	row["argp"] = "90"

	rp, err := DeriveRunParameters(row)
	require.NoError(t, err)
	assert.InDelta(t, 0, rp.Planet.Phase, 1e-3)
}

func TestDeriveMissingField(t *testing.T) {
	for _, col := range RequiredColumns {
		row := baseRow()
		delete(row, col)
		_, err := DeriveRunParameters(row)
		assert.True(t, errors.Is(err, types.ErrMissingField), "column %s: %v", col, err)
		assert.Contains(t, err.Error(), col)
	}

	for _, col := range GravityColumns {
		row := baseRow()
		delete(row, col)
		_, err := DeriveRunParameters(row)
		assert.True(t, errors.Is(err, types.ErrMissingField), "column %s: %v", col, err)
		assert.Contains(t, err.Error(), col)
	}

	row := baseRow()
	delete(row, "phase")
	_, err := DeriveRunParameters(row)
	assert.True(t, errors.Is(err, types.ErrMissingField))
}

func TestDeriveInvalidParameters(t *testing.T) {
	tests := []struct {
		col, value string
		want       error
	}{
		{"st_teff", "hot", types.ErrInvalidParameter},
		{"phase", "200", types.ErrInvalidParameter},
		{"nlevel", "2", types.ErrInvalidParameter},
		{"nstr_upper", "89", types.ErrInvalidParameter},
		{"nlevel", "90.5", types.ErrInvalidParameter},
		{"wave_range", "[1.8, 0.5]", types.ErrInvalidParameter},
		{"wave_range", "0.5", types.ErrInvalidParameter},
		{"guess", "isothermal", types.ErrInvalidParameter},
		{"noTiOVO", "maybe", types.ErrInvalidParameter},
		{"feh", "0", types.ErrInvalidParameter},
		{"au", "0", types.ErrDivision},
		{"mh_str", "5", types.ErrFormat},
		{"mh_str", "abc", types.ErrFormat},
		{"mh_str", "NaN", types.ErrFormat},
		{"cto", "0.455", types.ErrFormat},
	}

	for _, tt := range tests {
		t.Run(tt.col+"="+tt.value, func(t *testing.T) {
			row := baseRow()
			row[tt.col] = tt.value
			_, err := DeriveRunParameters(row)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestDeriveExplicitGravity(t *testing.T) {
	row := baseRow()
	delete(row, "pl_rad")
	delete(row, "pl_mass")
	row["gravity"] = "25"

	rp, err := DeriveRunParameters(row)
	require.NoError(t, err)
	g, err := rp.Planet.GravitySpec()
	require.NoError(t, err)
	assert.Equal(t, GravitySpec{Kind: GravityExplicit, Value: 25}, g)
	assert.Contains(t, rp.Directory, "-grav25-")
	assert.NotContains(t, rp.Directory, "-rad")
}

func TestDeriveGravityEitherOr(t *testing.T) {
	row := baseRow()
	row["gravity"] = "25"
	_, err := DeriveRunParameters(row)
	assert.True(t, errors.Is(err, types.ErrConfiguration), "gravity next to radius/mass: %v", err)

	row = baseRow()
	delete(row, "pl_mass")
	row["gravity"] = "25"
	_, err = DeriveRunParameters(row)
	assert.True(t, errors.Is(err, types.ErrConfiguration), "gravity next to radius: %v", err)

	row = baseRow()
	delete(row, "pl_rad")
	delete(row, "pl_mass")
	row["gravity"] = "-3"
	_, err = DeriveRunParameters(row)
	assert.True(t, errors.Is(err, types.ErrInvalidParameter), "negative gravity: %v", err)
}

func TestGravitySpecFromPlanet(t *testing.T) {
	g := 24.8

	_, err := PlanetParameters{Radius: 1, Mass: 1, Gravity: &g}.GravitySpec()
	assert.True(t, errors.Is(err, types.ErrConfiguration), "both supplied: %v", err)

	spec, err := PlanetParameters{Gravity: &g}.GravitySpec()
	require.NoError(t, err)
	assert.Equal(t, GravitySpec{Kind: GravityExplicit, Value: g}, spec)

	spec, err = PlanetParameters{Radius: 1, Mass: 2}.GravitySpec()
	require.NoError(t, err)
	assert.Equal(t, GravitySpec{Kind: GravityByMass, Radius: 1, Mass: 2}, spec)

	_, err = PlanetParameters{Radius: -1, Mass: 1}.GravitySpec()
	assert.True(t, errors.Is(err, types.ErrInvalidParameter), "negative radius: %v", err)
}

func TestResolveGravity(t *testing.T) {
	r, m, g := 1.0, 1.0, 24.8

	_, err := ResolveGravity(&r, &m, &g)
	assert.True(t, errors.Is(err, types.ErrConfiguration), "both supplied")

	_, err = ResolveGravity(nil, nil, nil)
	assert.True(t, errors.Is(err, types.ErrConfiguration), "neither supplied")

	_, err = ResolveGravity(&r, nil, nil)
	assert.True(t, errors.Is(err, types.ErrConfiguration), "half a pair")

	spec, err := ResolveGravity(&r, &m, nil)
	require.NoError(t, err)
	assert.Equal(t, GravityByMass, spec.Kind)
}

func TestDeriverOverrides(t *testing.T) {
	d := Deriver{NumTangle: 4, NumGangle: 8, Resolution: 2000, CKPath: "/ck/"}
	rp, err := d.Derive(baseRow())
	require.NoError(t, err)
	assert.Equal(t, 4, rp.Planet.NumTangle)
	assert.Equal(t, 8, rp.Planet.NumGangle)
	assert.Equal(t, 2000.0, rp.Spectrum.Resolution)
	assert.Equal(t, "/ck/", rp.Planet.LocalCKPath)
	assert.True(t, strings.HasPrefix(rp.Directory, "ReflectX-Jupiter-"))
}

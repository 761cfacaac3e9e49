package params

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygene76/reflectx/internal/types"
)

func TestComputeEquilibriumTemperatureSunEarth(t *testing.T) {
	teq, err := ComputeEquilibriumTemperature(5800, 1, 1, DefaultBondAlbedo, DefaultRedistribution)
	require.NoError(t, err)
	assert.InDelta(t, 255.82, teq, 0.01)
}

func TestComputeEquilibriumTemperatureMonotonic(t *testing.T) {
	for _, albedo := range []float64{0, 0.3, 0.9} {
		prev := 0.0
		for i, sep := range []float64{5, 2, 1, 0.5, 0.1, 0.02} {
			teq, err := ComputeEquilibriumTemperature(5000, 0.8, sep, albedo, DefaultRedistribution)
			require.NoError(t, err)
			if i > 0 {
				assert.Greater(t, teq, prev, "closer orbits are hotter")
			}
			prev = teq
		}

		prev = 0
		for i, teff := range []float64{3000, 4000, 5800, 9000} {
			teq, err := ComputeEquilibriumTemperature(teff, 0.8, 1, albedo, DefaultRedistribution)
			require.NoError(t, err)
			if i > 0 {
				assert.Greater(t, teq, prev, "hotter stars heat the planet more")
			}
			prev = teq
		}
	}
}

func TestComputeEquilibriumTemperatureErrors(t *testing.T) {
	_, err := ComputeEquilibriumTemperature(5800, 1, 0, DefaultBondAlbedo, DefaultRedistribution)
	assert.True(t, errors.Is(err, types.ErrDivision))

	_, err = ComputeEquilibriumTemperature(5800, -1, 1, DefaultBondAlbedo, DefaultRedistribution)
	assert.True(t, errors.Is(err, types.ErrInvalidParameter))

	_, err = ComputeEquilibriumTemperature(5800, 1, 1, 1, DefaultRedistribution)
	assert.True(t, errors.Is(err, types.ErrInvalidParameter))

	_, err = ComputeEquilibriumTemperature(5800, 1, 1, 0.3, 0)
	assert.True(t, errors.Is(err, types.ErrInvalidParameter))
}

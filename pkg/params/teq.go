package params

import (
	"math"

	errorsmod "cosmossdk.io/errors"

	"github.com/oxygene76/reflectx/internal/types"
)

const (
	SolarRadiusKM = 695700.0
	AUKM          = 149597870.7

	// DefaultBondAlbedo and DefaultRedistribution follow Seager (2010) eqn 3.9
	DefaultBondAlbedo     = 0.3
	DefaultRedistribution = 0.25
)

// ComputeEquilibriumTemperature returns the planet equilibrium temperature in K for a
// star of starTeff K and starRadius R_sun at separation AU.
func ComputeEquilibriumTemperature(starTeff, starRadius, separation, bondAlbedo, redistribution float64) (float64, error) {
	if separation == 0 {
		return 0, errorsmod.Wrap(types.ErrDivision, "separation is zero")
	}
	for _, v := range []float64{starTeff, starRadius, separation} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return 0, errorsmod.Wrapf(types.ErrInvalidParameter,
				"teff %v, radius %v and separation %v must be positive", starTeff, starRadius, separation)
		}
	}
	if !(bondAlbedo >= 0 && bondAlbedo < 1) {
		return 0, errorsmod.Wrapf(types.ErrInvalidParameter, "bond albedo %v outside [0,1)", bondAlbedo)
	}
	if !(redistribution > 0) {
		return 0, errorsmod.Wrapf(types.ErrInvalidParameter, "redistribution factor %v must be positive", redistribution)
	}

	radiusKM := starRadius * SolarRadiusKM
	sepKM := separation * AUKM
	return starTeff * math.Sqrt(radiusKM/sepKM) * math.Pow(redistribution*(1-bondAlbedo), 0.25), nil
}

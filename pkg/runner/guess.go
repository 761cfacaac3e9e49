package runner

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/oxygene76/reflectx/internal/types"
	"github.com/oxygene76/reflectx/pkg/engine"
	"github.com/oxygene76/reflectx/pkg/params"
)

// SuppliedProfile is a caller-provided starting pressure-temperature profile
type SuppliedProfile struct {
	Pressure    []float64 `json:"pressure"`
	Temperature []float64 `json:"temperature"`
}

// ResolveGuess builds the climate solver's starting profile
func ResolveGuess(rp *params.RunParameters, supplied *SuppliedProfile) (engine.InitialGuess, error) {
	switch rp.Climate.Guess {
	case params.GuessGuillot:
		return engine.InitialGuess{
			Kind: params.GuessGuillot,
			Guillot: &engine.GuillotGuess{
				Teq:     rp.Planet.Teq,
				NLevel:  rp.Climate.NLevel,
				TInt:    rp.Planet.TInt,
				PBottom: rp.Climate.PBottom,
				PTop:    rp.Climate.PTop,
			},
		}, nil
	case params.GuessSupplied:
		if supplied == nil || len(supplied.Pressure) == 0 {
			return engine.InitialGuess{}, errorsmod.Wrap(types.ErrMissingInitialGuess, "guess is supplied but no profile was given")
		}
		if len(supplied.Pressure) != len(supplied.Temperature) {
			return engine.InitialGuess{}, errorsmod.Wrapf(types.ErrInvalidParameter,
				"supplied profile has %d pressures for %d temperatures", len(supplied.Pressure), len(supplied.Temperature))
		}
		if len(supplied.Pressure) != rp.Climate.NLevel {
			return engine.InitialGuess{}, errorsmod.Wrapf(types.ErrInvalidParameter,
				"supplied profile has %d levels, run has %d", len(supplied.Pressure), rp.Climate.NLevel)
		}
		return engine.InitialGuess{
			Kind:        params.GuessSupplied,
			Pressure:    append([]float64(nil), supplied.Pressure...),
			Temperature: append([]float64(nil), supplied.Temperature...),
		}, nil
	}
	return engine.InitialGuess{}, errorsmod.Wrapf(types.ErrMissingInitialGuess, "guess %q", rp.Climate.Guess)
}

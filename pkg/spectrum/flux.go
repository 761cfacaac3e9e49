package spectrum

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	"gonum.org/v1/gonum/interp"

	"github.com/oxygene76/reflectx/internal/types"
)

// PlanetFlux multiplies the planet:star contrast by the stellar flux interpolated onto
// the planet grid. Outside the stellar grid the flux is extrapolated linearly from the
// two nearest samples.
func PlanetFlux(planetWno, fpfs, starWno, starFlux []float64) ([]float64, error) {
	if len(planetWno) != len(fpfs) {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter, "%d planet wavenumbers for %d contrasts", len(planetWno), len(fpfs))
	}
	if len(starWno) != len(starFlux) || len(starWno) < 2 {
		return nil, errorsmod.Wrap(types.ErrInvalidParameter, "stellar spectrum needs at least two matching samples")
	}

	xs, ys := sortedPairs(starWno, starFlux)
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter, "stellar spectrum: %s", err)
	}

	n := len(xs)
	out := make([]float64, len(planetWno))
	for i, w := range planetWno {
		var f float64
		switch {
		case w < xs[0]:
			f = extrapolate(xs[0], ys[0], xs[1], ys[1], w)
		case w > xs[n-1]:
			f = extrapolate(xs[n-2], ys[n-2], xs[n-1], ys[n-1], w)
		default:
			f = pl.Predict(w)
		}
		out[i] = f * fpfs[i]
	}
	return out, nil
}

func extrapolate(x0, y0, x1, y1, x float64) float64 {
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

type pairs struct{ x, y []float64 }

func (p pairs) Len() int           { return len(p.x) }
func (p pairs) Less(i, j int) bool { return p.x[i] < p.x[j] }
func (p pairs) Swap(i, j int) {
	p.x[i], p.x[j] = p.x[j], p.x[i]
	p.y[i], p.y[j] = p.y[j], p.y[i]
}

func sortedPairs(x, y []float64) ([]float64, []float64) {
	p := pairs{x: append([]float64(nil), x...), y: append([]float64(nil), y...)}
	sort.Stable(p)
	return p.x, p.y
}

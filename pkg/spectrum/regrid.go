// Package spectrum regrids and plots reflected-light spectra.
package spectrum

import (
	"math"

	errorsmod "cosmossdk.io/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/oxygene76/reflectx/internal/types"
)

// Series is a spectrum sampled on a wavenumber grid (cm⁻¹)
type Series struct {
	Wavenumber []float64 `json:"wavenumber"`
	Flux       []float64 `json:"flux"`
}

// Wavelength returns the grid in microns
func (s Series) Wavelength() []float64 {
	out := make([]float64, len(s.Wavenumber))
	for i, w := range s.Wavenumber {
		out[i] = 1e4 / w
	}
	return out
}

// Len returns the number of samples
func (s Series) Len() int {
	return len(s.Wavenumber)
}

// ConstantRGrid returns bin edges, ascending in wavenumber, spaced at constant
// resolving power R between two wavelengths in microns.
func ConstantRGrid(minWavelength, maxWavelength, R float64) ([]float64, error) {
	if !(R >= 1) {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter, "resolving power %v must be at least 1", R)
	}
	if !(minWavelength > 0 && minWavelength < maxWavelength) {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter, "wavelength range [%v, %v] must be positive and ascending", minWavelength, maxWavelength)
	}

	spacing := (2*R + 1) / (2*R - 1)
	npts := math.Log(maxWavelength/minWavelength) / math.Log(spacing)
	size := int(math.Ceil(npts)) + 1

	edges := make([]float64, size)
	wl := minWavelength
	for j := 0; j < size; j++ {
		edges[size-1-j] = 1e4 / wl
		wl *= spacing
	}
	return edges, nil
}

// MeanRegrid averages y into constant-R bins spanning the input grid. Each output
// sample is the mean of the input samples falling in [edge_i, edge_i+1); the last bin
// also takes its right edge. Bins that receive no samples are omitted.
func MeanRegrid(wavenumber, y []float64, R float64) (Series, error) {
	if len(wavenumber) != len(y) {
		return Series{}, errorsmod.Wrapf(types.ErrInvalidParameter, "%d wavenumbers for %d values", len(wavenumber), len(y))
	}
	if len(wavenumber) < 2 {
		return Series{}, errorsmod.Wrap(types.ErrInvalidParameter, "need at least two samples to regrid")
	}
	lo, hi := floats.Min(wavenumber), floats.Max(wavenumber)
	if !(lo > 0) {
		return Series{}, errorsmod.Wrapf(types.ErrInvalidParameter, "wavenumbers must be positive, got %v", lo)
	}

	edges, err := ConstantRGrid(1e4/hi, 1e4/lo, R)
	if err != nil {
		return Series{}, err
	}
	if len(edges) < 2 {
		return Series{}, errorsmod.Wrap(types.ErrInvalidParameter, "grid narrower than one resolution element")
	}
	edges[len(edges)-1] = hi

	bins := make([][]float64, len(edges)-1)
	last := edges[len(edges)-1]
	for i, w := range wavenumber {
		if math.IsNaN(y[i]) {
			continue
		}
		var idx int
		switch {
		case w == last:
			idx = len(bins) - 1
		case w < edges[0] || w > last:
			continue
		default:
			idx = floats.Within(edges, w)
		}
		if idx < 0 {
			continue
		}
		bins[idx] = append(bins[idx], y[i])
	}

	out := Series{}
	for i, b := range bins {
		if len(b) == 0 {
			continue
		}
		out.Wavenumber = append(out.Wavenumber, (edges[i]+edges[i+1])/2)
		out.Flux = append(out.Flux, stat.Mean(b, nil))
	}
	return out, nil
}

// Comparison summarises how a cloudy spectrum departs from its cloud-free twin
type Comparison struct {
	MeanRatio   float64 `json:"mean_ratio"`
	StdDevRatio float64 `json:"stddev_ratio"`
	Samples     int     `json:"samples"`
}

// Compare matches the two series sample by sample on their shared grid
func Compare(cloudFree, cloudy Series) Comparison {
	var ratios []float64
	j := 0
	for i, w := range cloudFree.Wavenumber {
		for j < cloudy.Len() && cloudy.Wavenumber[j] < w {
			j++
		}
		if j < cloudy.Len() && cloudy.Wavenumber[j] == w && cloudFree.Flux[i] != 0 {
			ratios = append(ratios, cloudy.Flux[j]/cloudFree.Flux[i])
		}
	}
	if len(ratios) == 0 {
		return Comparison{}
	}
	mean, std := stat.MeanStdDev(ratios, nil)
	if len(ratios) == 1 {
		std = 0
	}
	return Comparison{MeanRatio: mean, StdDevRatio: std, Samples: len(ratios)}
}

package spectrum

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygene76/reflectx/internal/types"
)

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}

func nativeSpectrum(n int) Series {
	wno := linspace(1e4/1.0, 1e4/0.3, n)
	flux := make([]float64, n)
	for i, w := range wno {
		flux[i] = 0.5 + 0.1*math.Sin(w/500)
	}
	return Series{Wavenumber: wno, Flux: flux}
}

func TestConstantRGridSpacing(t *testing.T) {
	edges, err := ConstantRGrid(0.3, 1.0, 150)
	require.NoError(t, err)
	require.Greater(t, len(edges), 2)

	spacing := (2*150.0 + 1) / (2*150.0 - 1)
	for i := 1; i < len(edges); i++ {
		assert.Greater(t, edges[i], edges[i-1])
		assert.InDelta(t, spacing, edges[i]/edges[i-1], 1e-9)
	}
	assert.InDelta(t, 1e4/0.3, edges[len(edges)-1], 1e-6)
	assert.LessOrEqual(t, edges[0], 1e4/1.0)
}

func TestConstantRGridRejects(t *testing.T) {
	_, err := ConstantRGrid(0.3, 1.0, 0.5)
	assert.True(t, errors.Is(err, types.ErrInvalidParameter))

	_, err = ConstantRGrid(1.0, 0.3, 100)
	assert.True(t, errors.Is(err, types.ErrInvalidParameter))
}

func TestMeanRegridReducesResolution(t *testing.T) {
	native := nativeSpectrum(5000)
	out, err := MeanRegrid(native.Wavenumber, native.Flux, 100)
	require.NoError(t, err)

	assert.Less(t, out.Len(), native.Len())
	assert.Equal(t, len(out.Wavenumber), len(out.Flux))
	for i := 1; i < out.Len(); i++ {
		assert.Greater(t, out.Wavenumber[i], out.Wavenumber[i-1])
	}
	for _, f := range out.Flux {
		assert.False(t, math.IsNaN(f))
		assert.InDelta(t, 0.5, f, 0.1+1e-9)
	}
}

func TestMeanRegridConstantIsPreserved(t *testing.T) {
	wno := linspace(1000, 30000, 2000)
	flux := make([]float64, len(wno))
	for i := range flux {
		flux[i] = 0.42
	}
	out, err := MeanRegrid(wno, flux, 60)
	require.NoError(t, err)
	for _, f := range out.Flux {
		assert.InDelta(t, 0.42, f, 1e-12)
	}
}

func TestMeanRegridDeterministic(t *testing.T) {
	native := nativeSpectrum(3000)
	a, err := MeanRegrid(native.Wavenumber, native.Flux, 150)
	require.NoError(t, err)
	b, err := MeanRegrid(native.Wavenumber, native.Flux, 150)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMeanRegridSkipsEmptyBins(t *testing.T) {
	edges, err := ConstantRGrid(1e4/30000, 1e4/1000, 1000)
	require.NoError(t, err)
	k := len(edges) / 2
	width := edges[k+1] - edges[k]

	// Sparse input at high R leaves most bins empty
	wno := []float64{1000, edges[k] + 0.25*width, edges[k] + 0.75*width, 30000}
	flux := []float64{1, 2, 4, 7}
	out, err := MeanRegrid(wno, flux, 1000)
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())
	assert.InDelta(t, 1.0, out.Flux[0], 1e-12)
	assert.InDelta(t, 3.0, out.Flux[1], 1e-12)
	assert.InDelta(t, (edges[k]+edges[k+1])/2, out.Wavenumber[1], 1e-9)
	assert.InDelta(t, 7.0, out.Flux[2], 1e-12)
}

func TestMeanRegridRejects(t *testing.T) {
	_, err := MeanRegrid([]float64{1, 2}, []float64{1}, 100)
	assert.True(t, errors.Is(err, types.ErrInvalidParameter))

	_, err = MeanRegrid([]float64{1}, []float64{1}, 100)
	assert.True(t, errors.Is(err, types.ErrInvalidParameter))

	_, err = MeanRegrid([]float64{0, 2}, []float64{1, 1}, 100)
	assert.True(t, errors.Is(err, types.ErrInvalidParameter))
}

func TestCompare(t *testing.T) {
	cf := Series{Wavenumber: []float64{1, 2, 3}, Flux: []float64{1, 2, 4}}
	cl := Series{Wavenumber: []float64{1, 2, 3}, Flux: []float64{0.5, 1, 2}}
	c := Compare(cf, cl)
	assert.Equal(t, 3, c.Samples)
	assert.InDelta(t, 0.5, c.MeanRatio, 1e-12)
	assert.InDelta(t, 0, c.StdDevRatio, 1e-12)

	assert.Equal(t, Comparison{}, Compare(cf, Series{}))
}

func TestPlanetFlux(t *testing.T) {
	starWno := []float64{300, 100, 200}
	starFlux := []float64{30, 10, 20}
	out, err := PlanetFlux([]float64{50, 150, 250, 400}, []float64{1, 2, 1, 0.5}, starWno, starFlux)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{5, 30, 25, 20}, out, 1e-9)

	// inputs are not reordered in place
	assert.Equal(t, []float64{300, 100, 200}, starWno)
}

func TestPlanetFluxRejects(t *testing.T) {
	_, err := PlanetFlux([]float64{1}, []float64{1, 2}, []float64{1, 2}, []float64{1, 2})
	assert.True(t, errors.Is(err, types.ErrInvalidParameter))

	_, err = PlanetFlux([]float64{1}, []float64{1}, []float64{1}, []float64{1})
	assert.True(t, errors.Is(err, types.ErrInvalidParameter))
}

func TestPlots(t *testing.T) {
	native := nativeSpectrum(400)

	p, err := AlbedoPlot(native, 150)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, p))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	buf.Reset()
	fp := FourPanel{Albedo: native, FpFs: native, Star: native, PlanetFlux: native, R: 150}
	require.NoError(t, fp.WritePNG(&buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestContrastPlotDropsNonPositive(t *testing.T) {
	s := Series{Wavenumber: []float64{1000, 2000, 3000, 4000}, Flux: []float64{0, 1e-9, -1, 2e-9}}
	_, err := ContrastPlot(s, 100)
	require.NoError(t, err)

	s.Flux = []float64{0, 0, 0, 1e-9}
	_, err = ContrastPlot(s, 100)
	assert.True(t, errors.Is(err, types.ErrInvalidParameter))
}

func TestSpeciesReportHTML(t *testing.T) {
	r := SpeciesReport{
		Species:     []string{"H2O", "NH3"},
		Metallicity: 1,
		MMW:         2.2,
		Pressure:    []float64{1e-4, 1e-2, 1, 100},
		Temperature: []float64{120, 140, 200, 600},
	}
	var buf bytes.Buffer
	require.NoError(t, r.WriteHTML(&buf))
	html := buf.String()
	assert.Contains(t, html, "<li>H2O</li>")
	assert.Contains(t, html, "<svg")
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
}

func TestResolutionSuffix(t *testing.T) {
	assert.Equal(t, "-R150", ResolutionSuffix(150))
	assert.Equal(t, "-R62.5", ResolutionSuffix(62.5))
}

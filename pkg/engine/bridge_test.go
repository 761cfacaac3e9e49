package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygene76/reflectx/internal/types"
)

// TestHelperProcess is not a real test. It stands in for the engine bridge script when
// re-executed by helperBridge.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("REFLECTX_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	op := os.Args[len(os.Args)-1]
	mode := os.Getenv("REFLECTX_HELPER_MODE")
	input, _ := io.ReadAll(os.Stdin)

	switch mode {
	case "crash":
		fmt.Fprintln(os.Stderr, "Traceback: opacity table missing")
		os.Exit(3)
	case "error":
		fmt.Println(`{"error": "virga reference files not found"}`)
		return
	case "hang":
		time.Sleep(time.Minute)
		return
	}

	switch op {
	case OpClimate:
		var req ClimateRequest
		_ = json.Unmarshal(input, &req)
		fmt.Fprintln(os.Stderr, "Iteration number  1")
		if mode != "diverge" {
			fmt.Fprintln(os.Stderr, ConvergenceMarker)
		}
		fmt.Printf(`{"result": {"ptchem": {"pressure": [1e-6, 1, 100], "temperature": [%g, 900, 2000]}}}`, req.Setup.EffectiveTemp)
	case OpRecommendGas:
		fmt.Println(`{"result": ["MgSiO3", "Fe"]}`)
	case OpSpectrum:
		fmt.Println(`{"result": {"wavenumber": [5000, 10000], "albedo": [0.1, 0.2], "fpfs_reflected": [1e-9, 2e-9]}}`)
	case OpCloudProperties:
		fmt.Println(`{"result": {"condensates": ["MgSiO3"], "state": {"opd": [0.1]}}}`)
	}
}

func helperBridge(mode string) *Bridge {
	b := NewBridge(os.Args[0], []string{"-test.run=TestHelperProcess", "--"}, nil)
	b.Env = []string{"REFLECTX_HELPER_PROCESS=1", "REFLECTX_HELPER_MODE=" + mode}
	return b
}

func TestBridgeClimateScansLogForConvergence(t *testing.T) {
	var log bytes.Buffer
	res, err := helperBridge("").Climate(context.Background(), ClimateRequest{Setup: Setup{EffectiveTemp: 150}}, &log)
	require.NoError(t, err)

	require.NotNil(t, res.Converged)
	assert.True(t, *res.Converged)
	assert.Equal(t, []float64{150, 900, 2000}, res.Temperature)
	assert.Equal(t, []float64{1e-6, 1, 100}, res.Pressure)
	assert.Contains(t, log.String(), ConvergenceMarker)
}

func TestBridgeClimateWithoutMarker(t *testing.T) {
	res, err := helperBridge("diverge").Climate(context.Background(), ClimateRequest{}, io.Discard)
	require.NoError(t, err)
	require.NotNil(t, res.Converged)
	assert.False(t, *res.Converged)
}

func TestBridgeOperations(t *testing.T) {
	b := helperBridge("")
	ctx := context.Background()

	species, err := b.RecommendGas(ctx, RecommendRequest{Metallicity: 1, MMW: 2.2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"MgSiO3", "Fe"}, species)

	spec, err := b.Spectrum(ctx, SpectrumRequest{}, nil)
	require.NoError(t, err)
	assert.Len(t, spec.Wavenumber, 2)

	clouds, err := b.CloudProperties(ctx, CloudRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"MgSiO3"}, clouds.Condensates)
	assert.JSONEq(t, `{"opd": [0.1]}`, string(clouds.State))
}

func TestBridgeErrors(t *testing.T) {
	var log bytes.Buffer
	_, err := helperBridge("crash").Climate(context.Background(), ClimateRequest{}, &log)
	assert.True(t, errors.Is(err, types.ErrEngine))
	assert.Contains(t, err.Error(), "opacity table missing")
	assert.Contains(t, log.String(), "Traceback")

	_, err = helperBridge("error").RecommendGas(context.Background(), RecommendRequest{}, nil)
	assert.True(t, errors.Is(err, types.ErrEngine))
	assert.Contains(t, err.Error(), "virga reference files not found")
}

func TestBridgeHonoursDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := helperBridge("hang").Climate(ctx, ClimateRequest{}, nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestProfileWithColumn(t *testing.T) {
	p := Profile{"pressure": {1, 2, 3}, "temperature": {100, 200, 300}}

	withKz, err := p.WithColumn("kz", []float64{1e9, 1e9, 1e9})
	require.NoError(t, err)
	assert.Len(t, withKz["kz"], 3)
	_, ok := p["kz"]
	assert.False(t, ok, "original profile is not mutated")

	_, err = p.WithColumn("kz", []float64{1e9})
	assert.True(t, errors.Is(err, types.ErrInvalidParameter))
}

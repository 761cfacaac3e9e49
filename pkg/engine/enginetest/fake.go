// Package enginetest provides a deterministic in-process engine for tests.
package enginetest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/oxygene76/reflectx/pkg/engine"
	"github.com/oxygene76/reflectx/pkg/params"
)

// Fake implements engine.Engine with closed-form stand-ins for every operation
type Fake struct {
	// Diverge makes the climate solver finish without the convergence marker
	Diverge bool
	// ReportConvergence sets ClimateResult.Converged instead of relying on the log
	ReportConvergence bool
	// Points is the native spectrum size
	Points int
	// Errors forces an operation to fail
	Errors map[string]error

	mu    sync.Mutex
	calls []Call
}

// Call records one engine invocation
type Call struct {
	Op      string
	Request interface{}
}

var _ engine.Engine = (*Fake)(nil)

// Calls returns the invocations made so far
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the invocations of one operation
func (f *Fake) CallsTo(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) record(op string, req interface{}) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: op, Request: req})
	f.mu.Unlock()
	if err, ok := f.Errors[op]; ok {
		return err
	}
	return nil
}

// Climate returns a Guillot-like profile on a log-pressure grid
func (f *Fake) Climate(ctx context.Context, req engine.ClimateRequest, log io.Writer) (*engine.ClimateResult, error) {
	if err := f.record(engine.OpClimate, req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pressure, temperature := guessProfile(req.Guess)
	fmt.Fprintf(log, "starting climate run with %d levels\n", len(pressure))
	fmt.Fprintln(log, "Iteration number  1 , of  30")
	if !f.Diverge {
		fmt.Fprintln(log, engine.ConvergenceMarker)
	}

	res := &engine.ClimateResult{
		Pressure:    pressure,
		Temperature: temperature,
		Profile: engine.Profile{
			"pressure":    pressure,
			"temperature": temperature,
			"H2O":         constant(len(pressure), 5e-4),
			"CH4":         constant(len(pressure), 3e-4),
		},
		State: json.RawMessage(`{"solver":"fake"}`),
	}
	if f.ReportConvergence {
		converged := !f.Diverge
		res.Converged = &converged
	}
	return res, nil
}

// Spectrum returns a smooth albedo spectrum, darker when clouds are present
func (f *Fake) Spectrum(ctx context.Context, req engine.SpectrumRequest, log io.Writer) (*engine.SpectrumResult, error) {
	if err := f.record(engine.OpSpectrum, req); err != nil {
		return nil, err
	}
	n := f.Points
	if n == 0 {
		n = 400
	}

	lo, hi := 1e4/req.WaveRange[1], 1e4/req.WaveRange[0]
	res := &engine.SpectrumResult{
		Wavenumber: make([]float64, n),
		Albedo:     make([]float64, n),
		FpFs:       make([]float64, n),
	}
	cloudFactor := 1.0
	if len(req.Clouds) > 0 {
		cloudFactor = 0.6
	}
	for i := 0; i < n; i++ {
		wno := lo + (hi-lo)*float64(i)/float64(n-1)
		alb := cloudFactor * (0.4 + 0.2*math.Sin(wno/700))
		res.Wavenumber[i] = wno
		res.Albedo[i] = alb
		res.FpFs[i] = alb * 1e-8
	}

	for i := 0; i < 50; i++ {
		wno := 0.5*lo + 1.5*(hi-lo)*float64(i)/49
		res.StarWavenumber = append(res.StarWavenumber, wno)
		res.StarFlux = append(res.StarFlux, 1e13*(1+wno/1e4))
	}
	res.FullOutput = json.RawMessage(fmt.Sprintf(`{"points":%d}`, n))
	fmt.Fprintf(log, "computed %s spectrum with %d points\n", req.Calculation, n)
	return res, nil
}

// CloudProperties echoes the condensates and the per-layer kz it was given
func (f *Fake) CloudProperties(ctx context.Context, req engine.CloudRequest, log io.Writer) (*engine.CloudResult, error) {
	if err := f.record(engine.OpCloudProperties, req); err != nil {
		return nil, err
	}
	state, err := json.Marshal(map[string]interface{}{
		"kz":   req.Profile["kz"],
		"fsed": req.Fsed,
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(log, "computing clouds for %v\n", req.Condensates)
	return &engine.CloudResult{Condensates: req.Condensates, State: state}, nil
}

// RecommendGas picks condensates by the deepest temperature
func (f *Fake) RecommendGas(ctx context.Context, req engine.RecommendRequest, log io.Writer) ([]string, error) {
	if err := f.record(engine.OpRecommendGas, req); err != nil {
		return nil, err
	}
	if len(req.Temperature) == 0 {
		return nil, nil
	}
	if req.Temperature[len(req.Temperature)-1] > 1500 {
		return []string{"Fe", "MgSiO3"}, nil
	}
	return []string{"H2O", "NH3"}, nil
}

func guessProfile(g engine.InitialGuess) ([]float64, []float64) {
	if g.Kind == params.GuessSupplied {
		return append([]float64(nil), g.Pressure...), append([]float64(nil), g.Temperature...)
	}
	if g.Guillot == nil {
		return nil, nil
	}

	n := g.Guillot.NLevel
	pressure := make([]float64, n)
	temperature := make([]float64, n)
	for i := 0; i < n; i++ {
		logP := g.Guillot.PTop + (g.Guillot.PBottom-g.Guillot.PTop)*float64(i)/float64(n-1)
		pressure[i] = math.Pow(10, logP)
		tau := pressure[i]
		temperature[i] = math.Pow(0.75*math.Pow(g.Guillot.TInt, 4)*(2.0/3+tau)+
			0.75*math.Pow(g.Guillot.Teq, 4)*(2.0/3+0.5*math.Exp(-tau)), 0.25)
	}
	return pressure, temperature
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

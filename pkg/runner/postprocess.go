package runner

import (
	"bytes"
	"context"
	"io"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"
	"gonum.org/v1/plot"

	"github.com/oxygene76/reflectx/internal/types"
	"github.com/oxygene76/reflectx/pkg/artifact"
	"github.com/oxygene76/reflectx/pkg/engine"
	"github.com/oxygene76/reflectx/pkg/params"
	"github.com/oxygene76/reflectx/pkg/spectrum"
)

// Comparison is the output of RegridAndCompare
type Comparison struct {
	CloudFree spectrum.Series
	Cloudy    spectrum.Series
	Quantity  string
	Stats     spectrum.Comparison
	Plot      []byte // PNG
}

// RegridAndCompare recomputes the cloud-free and cloudy spectra of a run over
// waveRange, regrids both to R and overlays them. Nothing is written unless every
// required record is present.
func (c *Coordinator) RegridAndCompare(ctx context.Context, dir string, waveRange [2]float64, R float64, useAlbedo bool) (*Comparison, error) {
	if !(waveRange[0] > 0 && waveRange[0] < waveRange[1]) {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter, "wave range %v must be positive and ascending", waveRange)
	}
	if !(R >= 1) {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter, "resolving power %v must be at least 1", R)
	}

	unlock := c.store.Lock(dir)
	defer unlock()

	st, err := c.loadCloudFree(dir)
	if err != nil {
		return nil, err
	}
	var cloudy artifact.CloudyRecord
	if err := c.store.ReadRecord(dir, artifact.CloudyModel, &cloudy); err != nil {
		return nil, err
	}
	var cloudyInputs artifact.CloudyInputsRecord
	if err := c.store.ReadRecord(dir, artifact.CloudyInputs, &cloudyInputs); err != nil {
		return nil, err
	}

	kz := make([]float64, st.climate.Profile.Layers())
	for i := range kz {
		kz[i] = cloudyInputs.Kz
	}
	cloudyProfile, err := st.climate.Profile.WithColumn("kz", kz)
	if err != nil {
		return nil, err
	}

	runLog, err := OpenRunLog(c.store, dir, c.logger)
	if err != nil {
		return nil, err
	}
	defer runLog.Close()
	log := runLog.Logger.With(zap.String("run_id", st.inputs.RunID))

	calc := st.inputs.Parameters.Spectrum.Calculation
	if calc == "" {
		calc = params.CalculationReflected
	}
	base := engine.SpectrumRequest{
		OpacityTable: st.inputs.Parameters.Spectrum.OpacityDB,
		WaveRange:    waveRange,
		Setup:        st.inputs.Setup,
		Calculation:  calc,
		FullOutput:   true,
	}

	specCtx, cancel := withTimeout(ctx, c.cfg.SpectrumTimeout)
	defer cancel()

	cfReq := base
	cfReq.Profile = st.climate.Profile
	cfNative, err := c.engine.Spectrum(specCtx, cfReq, runLog.Writer())
	if err != nil {
		return nil, err
	}

	clReq := base
	clReq.Profile = cloudyProfile
	clReq.Clouds = cloudy.State
	clNative, err := c.engine.Spectrum(specCtx, clReq, runLog.Writer())
	if err != nil {
		return nil, err
	}

	quantity := artifact.QuantityFpFs
	pick := func(s *engine.SpectrumResult) []float64 { return s.FpFs }
	if useAlbedo {
		quantity = artifact.QuantityAlbedo
		pick = func(s *engine.SpectrumResult) []float64 { return s.Albedo }
	}

	cf, err := spectrum.MeanRegrid(cfNative.Wavenumber, pick(cfNative), R)
	if err != nil {
		return nil, err
	}
	cl, err := spectrum.MeanRegrid(clNative.Wavenumber, pick(clNative), R)
	if err != nil {
		return nil, err
	}

	ylabel := "Planet:Star Contrast"
	if useAlbedo {
		ylabel = "Geometric Albedo"
	}
	p, err := spectrum.ComparisonPlot(cf, cl, ylabel, !useAlbedo)
	if err != nil {
		return nil, err
	}
	var png bytes.Buffer
	if err := spectrum.WritePNG(&png, p); err != nil {
		return nil, err
	}

	if err := c.store.WriteRecord(dir, artifact.CloudFreeSpectrum(R), &artifact.RegriddedRecord{
		Resolution: R, Quantity: quantity, Series: cf, Native: cfNative,
	}); err != nil {
		return nil, err
	}
	if err := c.store.WriteRecord(dir, artifact.CloudySpectrum(R), &artifact.RegriddedRecord{
		Resolution: R, Quantity: quantity, Series: cl, Native: clNative,
	}); err != nil {
		return nil, err
	}
	if err := c.store.WriteFile(dir, artifact.ComparisonPlot(R), func(w io.Writer) error {
		_, err := w.Write(png.Bytes())
		return err
	}); err != nil {
		return nil, err
	}

	stats := spectrum.Compare(cf, cl)
	log.Info("Compared cloudy and cloud-free spectra",
		zap.String("quantity", quantity),
		zap.Float64("R", R),
		zap.Float64("mean_ratio", stats.MeanRatio),
		zap.Int("samples", stats.Samples))

	return &Comparison{CloudFree: cf, Cloudy: cl, Quantity: quantity, Stats: stats, Plot: png.Bytes()}, nil
}

// Regridded is the output of Regrid
type Regridded struct {
	Albedo spectrum.Series
	FpFs   spectrum.Series
}

// Regrid averages a stored native spectrum record onto a constant-R grid without
// calling the engine. It writes albedo and contrast plots and one regridded record per
// quantity.
func (c *Coordinator) Regrid(dir, file string, R float64) (*Regridded, error) {
	unlock := c.store.Lock(dir)
	defer unlock()

	var rec artifact.SpectrumRecord
	if err := c.store.ReadRecord(dir, file, &rec); err != nil {
		return nil, err
	}
	cloudy := rec.Cloudy || strings.HasPrefix(file, artifact.ModelPrefix(true))

	albedo, fpfs, err := regridBoth(&rec.SpectrumResult, R)
	if err != nil {
		return nil, err
	}

	for _, out := range []struct {
		quantity string
		series   spectrum.Series
	}{
		{artifact.QuantityAlbedo, albedo},
		{artifact.QuantityFpFs, fpfs},
	} {
		name := artifact.RegriddedSpectrum(strings.TrimSuffix(file, ".json")+"-"+out.quantity, R)
		if err := c.store.WriteRecord(dir, name, &artifact.RegriddedRecord{
			Resolution: R,
			Quantity:   out.quantity,
			Series:     out.series,
			Source:     file,
		}); err != nil {
			return nil, err
		}
	}

	if err := c.writeRegriddedPlots(dir, albedo, fpfs, R, cloudy); err != nil {
		return nil, err
	}

	c.logger.Info("Regridded spectrum", zap.String("dir", dir), zap.String("file", file), zap.Float64("R", R))
	return &Regridded{Albedo: albedo, FpFs: fpfs}, nil
}

func pngWriter(p *plot.Plot) func(io.Writer) error {
	return func(w io.Writer) error {
		return spectrum.WritePNG(w, p)
	}
}

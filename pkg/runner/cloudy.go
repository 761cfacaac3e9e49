package runner

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"github.com/oxygene76/reflectx/internal/types"
	"github.com/oxygene76/reflectx/pkg/artifact"
	"github.com/oxygene76/reflectx/pkg/engine"
)

// CloudParams are the cloud model inputs. MH is linear relative to solar.
type CloudParams struct {
	Kz   float64 `json:"kz"`   // cm²/s
	Fsed float64 `json:"fsed"` // sedimentation efficiency
	MH   float64 `json:"mh"`
	MMW  float64 `json:"mmw"`
}

// Validate checks the cloud parameters
func (p CloudParams) Validate() error {
	if !(p.Kz > 0) {
		return errorsmod.Wrapf(types.ErrInvalidParameter, "kz %v must be positive", p.Kz)
	}
	if !(p.Fsed > 0) {
		return errorsmod.Wrapf(types.ErrInvalidParameter, "fsed %v must be positive", p.Fsed)
	}
	if !(p.MH > 0) {
		return errorsmod.Wrapf(types.ErrInvalidParameter, "cloud metallicity %v must be positive (linear, solar = 1)", p.MH)
	}
	if p.MMW < 0 {
		return errorsmod.Wrapf(types.ErrInvalidParameter, "mean molecular weight %v cannot be negative", p.MMW)
	}
	return nil
}

// CloudyResult describes a finished cloudy model
type CloudyResult struct {
	Directory   string
	Condensates []string
	Clouds      *engine.CloudResult
	Spectrum    *engine.SpectrumResult
}

// cloudFreeState is everything a cloudy model or a comparison reads back
type cloudFreeState struct {
	inputs  artifact.InputsRecord
	climate artifact.ClimateRecord
}

func (c *Coordinator) loadCloudFree(dir string) (*cloudFreeState, error) {
	var st cloudFreeState
	if err := c.store.ReadRecord(dir, artifact.CloudFreeInputs, &st.inputs); err != nil {
		return nil, err
	}
	if err := c.store.ReadRecord(dir, artifact.CloudFreeModel, &st.climate); err != nil {
		return nil, err
	}
	if !st.climate.Converged {
		return nil, errorsmod.Wrapf(types.ErrConvergenceFailure, "%s", dir)
	}
	return &st, nil
}

// RunCloudy adds clouds to a converged cloud-free model. When molecules is empty the
// cloud engine's recommendation is used.
func (c *Coordinator) RunCloudy(ctx context.Context, dir string, cp CloudParams, molecules []string) (*CloudyResult, error) {
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	if cp.MMW == 0 {
		cp.MMW = c.cfg.MMW
	}

	unlock := c.store.Lock(dir)
	defer unlock()

	st, err := c.loadCloudFree(dir)
	if err != nil {
		return nil, err
	}
	rp := st.inputs.Parameters

	runLog, err := OpenRunLog(c.store, dir, c.logger)
	if err != nil {
		return nil, err
	}
	defer runLog.Close()
	log := runLog.Logger.With(zap.String("run_id", st.inputs.RunID))

	overridden := len(molecules) > 0
	condensates := append([]string(nil), molecules...)
	if !overridden {
		condensates, err = c.engine.RecommendGas(ctx, engine.RecommendRequest{
			Pressure:    st.climate.Pressure,
			Temperature: st.climate.Temperature,
			Metallicity: c.RecommenderMetallicity(rp.Planet),
			MMW:         cp.MMW,
		}, runLog.Writer())
		if err != nil {
			return nil, err
		}
		log.Info("Using recommended condensates", zap.Strings("species", condensates))
	}

	kz := make([]float64, st.climate.Profile.Layers())
	for i := range kz {
		kz[i] = cp.Kz
	}
	profile, err := st.climate.Profile.WithColumn("kz", kz)
	if err != nil {
		return nil, err
	}

	clouds, err := c.engine.CloudProperties(ctx, engine.CloudRequest{
		Setup:       st.inputs.Setup,
		Profile:     profile,
		Condensates: condensates,
		Fsed:        cp.Fsed,
		MH:          cp.MH,
		MMW:         cp.MMW,
		RefIndexDir: c.cfg.RefIndexDir,
	}, runLog.Writer())
	if err != nil {
		log.Error("Cloud model failed", zap.Error(err))
		return nil, err
	}

	if err := c.store.WriteRecord(dir, artifact.CloudyInputs, &artifact.CloudyInputsRecord{
		Kz:          cp.Kz,
		Fsed:        cp.Fsed,
		MH:          cp.MH,
		MMW:         cp.MMW,
		Condensates: condensates,
		Overridden:  overridden,
	}); err != nil {
		return nil, err
	}
	if err := c.store.WriteRecord(dir, artifact.CloudyModel, &artifact.CloudyRecord{
		Condensates: clouds.Condensates,
		State:       clouds.State,
	}); err != nil {
		return nil, err
	}
	log.Info("Cloud model complete", zap.Strings("condensates", condensates),
		zap.Float64("kz", cp.Kz), zap.Float64("fsed", cp.Fsed))

	res := &CloudyResult{Directory: dir, Condensates: condensates, Clouds: clouds}

	R := rp.Spectrum.Resolution
	specCtx, cancel := withTimeout(ctx, c.cfg.SpectrumTimeout)
	defer cancel()
	spec, err := c.engine.Spectrum(specCtx, engine.SpectrumRequest{
		OpacityTable: rp.Spectrum.OpacityDB,
		WaveRange:    rp.Spectrum.WaveRange,
		Setup:        st.inputs.Setup,
		Profile:      profile,
		Clouds:       clouds.State,
		Calculation:  rp.Spectrum.Calculation,
		FullOutput:   true,
	}, runLog.Writer())
	if err != nil {
		return nil, err
	}
	if err := c.store.WriteRecord(dir, artifact.CloudyFullOutput(R), &artifact.SpectrumRecord{
		Resolution:     R,
		Phase:          rp.Planet.Phase,
		Cloudy:         true,
		SpectrumResult: *spec,
	}); err != nil {
		return nil, err
	}
	log.Info("Computed cloudy spectrum", zap.Int("points", len(spec.Wavenumber)), zap.Float64("R", R))
	res.Spectrum = spec
	return res, nil
}

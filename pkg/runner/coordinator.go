// Package runner drives model runs: the cloud-free climate model, the cloudy model on
// top of it, spectrum post-processing, and batches of runs from a parameter table.
package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"path/filepath"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oxygene76/reflectx/internal/types"
	"github.com/oxygene76/reflectx/pkg/artifact"
	"github.com/oxygene76/reflectx/pkg/engine"
	"github.com/oxygene76/reflectx/pkg/params"
	"github.com/oxygene76/reflectx/pkg/spectrum"
)

// SolarMetallicity is the linear metallicity the cloud recommender assumes by default
const SolarMetallicity = 1.0

// DefaultMMW is the mean molecular weight of a solar-composition H2/He atmosphere
const DefaultMMW = 2.2

// Recorder persists run lifecycle records
type Recorder interface {
	Record(ctx context.Context, r types.RunRecord) error
}

// Config controls every run a coordinator performs
type Config struct {
	Policy               artifact.Policy
	ClimateTimeout       time.Duration
	SpectrumTimeout      time.Duration
	ComputeSpectrum      bool
	MMW                  float64
	UsePlanetMetallicity bool
	CKPath               string // used when a run names no local_ck_path
	RefIndexDir          string
}

// Options are per-run inputs
type Options struct {
	// RunID is generated when empty
	RunID string
	// Profile is the starting profile for runs whose guess is "supplied"
	Profile *SuppliedProfile
}

// Handle describes a finished cloud-free run. A run that did not converge returns a
// handle with OutcomeConvergenceFailure and a nil error.
type Handle struct {
	RunID      string
	Directory  string
	Outcome    types.Outcome
	Skipped    bool
	Parameters *params.RunParameters
	Climate    *engine.ClimateResult
	Species    []string
	Spectrum   *engine.SpectrumResult
}

// Status maps the handle onto the catalog lifecycle
func (h *Handle) Status() types.RunStatus {
	switch {
	case h.Skipped:
		return types.StatusSkipped
	case h.Outcome == types.OutcomeConverged:
		return types.StatusConverged
	}
	return types.StatusFailed
}

// Coordinator runs models against an engine and persists their artifacts
type Coordinator struct {
	engine   engine.Engine
	store    *artifact.Store
	tables   afero.Fs
	recorder Recorder
	logger   *zap.Logger
	cfg      Config

	now   func() time.Time
	newID func() string
}

// NewCoordinator creates a coordinator. Opacity tables are looked up on the store's
// filesystem unless WithTables says otherwise.
func NewCoordinator(eng engine.Engine, store *artifact.Store, cfg Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Policy == "" {
		cfg.Policy = artifact.PolicyError
	}
	if cfg.MMW <= 0 {
		cfg.MMW = DefaultMMW
	}
	return &Coordinator{
		engine: eng,
		store:  store,
		tables: store.Fs(),
		logger: logger.Named("runner"),
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// WithTables sets the filesystem holding opacity tables
func (c *Coordinator) WithTables(fs afero.Fs) *Coordinator {
	c.tables = fs
	return c
}

// WithRecorder records every run's lifecycle
func (c *Coordinator) WithRecorder(r Recorder) *Coordinator {
	c.recorder = r
	return c
}

// Store returns the artifact store
func (c *Coordinator) Store() *artifact.Store { return c.store }

// OpacityTablePath locates the correlated-k table a run needs
func (c *Coordinator) OpacityTablePath(rp *params.RunParameters) (string, error) {
	dir := rp.Planet.LocalCKPath
	if dir == "" {
		dir = c.cfg.CKPath
	}
	path := filepath.Join(dir, rp.Planet.OpacityTableName())
	ok, err := afero.Exists(c.tables, path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errorsmod.Wrapf(types.ErrOpacityLookup, "%s", path)
	}
	return path, nil
}

// RunCloudFree converges a cloud-free climate model and writes its artifacts
func (c *Coordinator) RunCloudFree(ctx context.Context, rp *params.RunParameters, opts Options) (*Handle, error) {
	dir := rp.Directory
	if dir == "" {
		dir = params.DirectoryName(rp)
	}
	unlock := c.store.Lock(dir)
	defer unlock()

	table, err := c.OpacityTablePath(rp)
	if err != nil {
		return nil, err
	}
	setup, err := engine.NewSetup(rp)
	if err != nil {
		return nil, err
	}
	guess, err := ResolveGuess(rp, opts.Profile)
	if err != nil {
		return nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = c.newID()
	}
	h := &Handle{RunID: runID, Directory: dir, Parameters: rp}
	rec := types.RunRecord{
		RunID:      runID,
		Directory:  dir,
		Grid:       rp.Grid,
		PlanetType: rp.PlanetType,
		Teq:        rp.Planet.Teq,
		Phase:      rp.Planet.Phase,
		StartedAt:  c.now(),
	}

	policy, err := c.directoryPolicy(dir)
	if err != nil {
		return nil, err
	}
	created, err := c.store.Prepare(dir, policy)
	if err != nil {
		return nil, err
	}
	if !created {
		h.Skipped = true
		h.Outcome = c.existingOutcome(dir)
		c.logger.Info("Run directory exists, skipping", zap.String("dir", dir), zap.String("outcome", string(h.Outcome)))
		rec.Status, rec.FinishedAt = types.StatusSkipped, c.now()
		c.record(ctx, rec)
		return h, nil
	}

	rec.Status = types.StatusRunning
	c.record(ctx, rec)

	err = c.runCloudFree(ctx, h, table, setup, guess)
	rec.FinishedAt = c.now()
	if err != nil {
		rec.Status, rec.Error = types.StatusFailed, err.Error()
	} else {
		rec.Status = h.Status()
	}
	c.record(ctx, rec)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (c *Coordinator) runCloudFree(ctx context.Context, h *Handle, table string, setup engine.Setup, guess engine.InitialGuess) error {
	rp := h.Parameters
	dir := h.Directory

	runLog, err := OpenRunLog(c.store, dir, c.logger)
	if err != nil {
		return err
	}
	defer runLog.Close()
	log := runLog.Logger.With(zap.String("run_id", h.RunID))

	req := engine.ClimateRequest{
		OpacityTable:    table,
		WaveRange:       rp.Spectrum.WaveRange,
		Setup:           setup,
		Guess:           guess,
		Nstr:            rp.Climate.Nstr(),
		NoFCZns:         rp.Climate.NoFCZns,
		RFacV:           rp.Climate.RFacV,
		SaveAllProfiles: true,
	}
	if err := c.store.WriteRecord(dir, artifact.CloudFreeInputs, &artifact.InputsRecord{
		RunID:        h.RunID,
		Parameters:   *rp,
		Setup:        setup,
		OpacityTable: table,
		Guess:        guess,
		Request:      req,
	}); err != nil {
		return err
	}

	log.Info("Starting climate run",
		zap.String("opacity_table", filepath.Base(table)),
		zap.Float64("teq", rp.Planet.Teq),
		zap.Float64("phase", rp.Planet.Phase),
		zap.Int("nlevel", rp.Climate.NLevel))

	climateCtx, cancel := withTimeout(ctx, c.cfg.ClimateTimeout)
	defer cancel()

	var chatter bytes.Buffer
	start := time.Now()
	res, err := c.engine.Climate(climateCtx, req, io.MultiWriter(runLog.Writer(), &chatter))
	if err != nil {
		log.Error("Climate run failed", zap.Error(err))
		return err
	}
	converged := engine.DetectConvergence(chatter.Bytes())
	if res.Converged != nil {
		converged = *res.Converged
	}
	res.Converged = &converged
	h.Climate = res

	if err := c.store.WriteRecord(dir, artifact.CloudFreeModel, &artifact.ClimateRecord{
		Converged:   converged,
		Pressure:    res.Pressure,
		Temperature: res.Temperature,
		Profile:     res.Profile,
		State:       res.State,
	}); err != nil {
		return err
	}

	if !converged {
		h.Outcome = types.OutcomeConvergenceFailure
		log.Warn("Climate run did not converge", zap.Duration("elapsed", time.Since(start)))
		return nil
	}
	h.Outcome = types.OutcomeConverged
	log.Info("Climate run converged", zap.Duration("elapsed", time.Since(start)))

	species, err := c.recommend(ctx, dir, rp, res.Pressure, res.Temperature, runLog, log)
	if err != nil {
		return err
	}
	h.Species = species

	if !c.cfg.ComputeSpectrum {
		return nil
	}
	spec, err := c.cloudFreeSpectrum(ctx, h, setup, runLog, log)
	if err != nil {
		return err
	}
	h.Spectrum = spec
	return nil
}

// RecommenderMetallicity returns the linear metallicity handed to the cloud
// recommender for a planet
func (c *Coordinator) RecommenderMetallicity(planet params.PlanetParameters) float64 {
	if c.cfg.UsePlanetMetallicity {
		return math.Pow(10, planet.MH)
	}
	return SolarMetallicity
}

func (c *Coordinator) recommend(ctx context.Context, dir string, rp *params.RunParameters, pressure, temperature []float64, runLog *RunLog, log *zap.Logger) ([]string, error) {
	metallicity := c.RecommenderMetallicity(rp.Planet)
	if planet := math.Pow(10, rp.Planet.MH); math.Abs(planet-metallicity) > 1e-9 {
		log.Warn("Recommending condensates at a metallicity different from the planet's",
			zap.Float64("recommender_metallicity", metallicity),
			zap.Float64("planet_metallicity", planet))
	}

	species, err := c.engine.RecommendGas(ctx, engine.RecommendRequest{
		Pressure:    pressure,
		Temperature: temperature,
		Metallicity: metallicity,
		MMW:         c.cfg.MMW,
	}, runLog.Writer())
	if err != nil {
		return nil, err
	}
	log.Info("Recommended condensates", zap.Strings("species", species))

	if err := c.store.WriteRecord(dir, artifact.SpeciesFile, &artifact.SpeciesRecord{
		Species:     species,
		Metallicity: metallicity,
		MMW:         c.cfg.MMW,
	}); err != nil {
		return nil, err
	}

	report := spectrum.SpeciesReport{
		Species:     species,
		Metallicity: metallicity,
		MMW:         c.cfg.MMW,
		Pressure:    pressure,
		Temperature: temperature,
	}
	if err := c.store.WriteFile(dir, artifact.SpeciesPlotFile, report.WriteHTML); err != nil {
		log.Warn("Could not write condensate plot", zap.Error(err))
	}
	return species, nil
}

func (c *Coordinator) cloudFreeSpectrum(ctx context.Context, h *Handle, setup engine.Setup, runLog *RunLog, log *zap.Logger) (*engine.SpectrumResult, error) {
	rp := h.Parameters
	R := rp.Spectrum.Resolution

	specCtx, cancel := withTimeout(ctx, c.cfg.SpectrumTimeout)
	defer cancel()
	spec, err := c.engine.Spectrum(specCtx, engine.SpectrumRequest{
		OpacityTable: rp.Spectrum.OpacityDB,
		WaveRange:    rp.Spectrum.WaveRange,
		Setup:        setup,
		Profile:      h.Climate.Profile,
		Calculation:  rp.Spectrum.Calculation,
		FullOutput:   true,
	}, runLog.Writer())
	if err != nil {
		return nil, err
	}

	if err := c.store.WriteRecord(h.Directory, artifact.CloudFreeFullOutput(R), &artifact.SpectrumRecord{
		Resolution:     R,
		Phase:          rp.Planet.Phase,
		SpectrumResult: *spec,
	}); err != nil {
		return nil, err
	}
	log.Info("Computed cloud-free spectrum", zap.Int("points", len(spec.Wavenumber)), zap.Float64("R", R))

	if err := c.writeSpectrumPlots(h.Directory, spec, R); err != nil {
		log.Warn("Could not write spectrum plots", zap.Error(err))
	}
	return spec, nil
}

// writeSpectrumPlots draws the regridded albedo and contrast plots of a cloud-free
// spectrum and its four-panel summary
func (c *Coordinator) writeSpectrumPlots(dir string, spec *engine.SpectrumResult, R float64) error {
	albedo, fpfs, err := regridBoth(spec, R)
	if err != nil {
		return err
	}
	if err := c.writeRegriddedPlots(dir, albedo, fpfs, R, false); err != nil {
		return err
	}

	flux, err := spectrum.PlanetFlux(fpfs.Wavenumber, fpfs.Flux, spec.StarWavenumber, spec.StarFlux)
	if err != nil {
		return err
	}
	panel := spectrum.FourPanel{
		Albedo:     albedo,
		FpFs:       fpfs,
		Star:       spectrum.Series{Wavenumber: spec.StarWavenumber, Flux: spec.StarFlux},
		PlanetFlux: spectrum.Series{Wavenumber: fpfs.Wavenumber, Flux: flux},
		R:          R,
	}
	return c.store.WriteFile(dir, artifact.FourPanelPlot(R), panel.WritePNG)
}

func (c *Coordinator) writeRegriddedPlots(dir string, albedo, fpfs spectrum.Series, R float64, cloudy bool) error {
	albedoPlot, err := spectrum.AlbedoPlot(albedo, R)
	if err != nil {
		return err
	}
	if err := c.store.WriteFile(dir, artifact.AlbedoPlot(cloudy, R), pngWriter(albedoPlot)); err != nil {
		return err
	}
	contrastPlot, err := spectrum.ContrastPlot(fpfs, R)
	if err != nil {
		return err
	}
	return c.store.WriteFile(dir, artifact.FpFsPlot(cloudy, R), pngWriter(contrastPlot))
}

func regridBoth(spec *engine.SpectrumResult, R float64) (albedo, fpfs spectrum.Series, err error) {
	if albedo, err = spectrum.MeanRegrid(spec.Wavenumber, spec.Albedo, R); err != nil {
		return
	}
	fpfs, err = spectrum.MeanRegrid(spec.Wavenumber, spec.FpFs, R)
	return
}

// existingOutcome reads the outcome of a run that is already on disk
// directoryPolicy applies the configured policy to finished runs only. A directory
// without a climate model holds a run that failed before the solver finished, and
// is cleared so the run can be repeated.
func (c *Coordinator) directoryPolicy(dir string) (artifact.Policy, error) {
	exists, err := c.store.Exists(dir)
	if err != nil {
		return c.cfg.Policy, err
	}
	if exists && !c.store.Has(dir, artifact.CloudFreeModel) {
		c.logger.Info("Clearing incomplete run directory", zap.String("dir", dir))
		return artifact.PolicyOverwrite, nil
	}
	return c.cfg.Policy, nil
}

func (c *Coordinator) existingOutcome(dir string) types.Outcome {
	var climate artifact.ClimateRecord
	if err := c.store.ReadRecord(dir, artifact.CloudFreeModel, &climate); err == nil && climate.Converged {
		return types.OutcomeConverged
	}
	return types.OutcomeConvergenceFailure
}

func (c *Coordinator) record(ctx context.Context, r types.RunRecord) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, r); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("Could not record run", zap.String("run_id", r.RunID), zap.Error(err))
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

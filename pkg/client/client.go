package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oxygene76/reflectx/internal/types"
	"github.com/oxygene76/reflectx/pkg/artifact"
	"github.com/oxygene76/reflectx/pkg/catalog"
	"github.com/oxygene76/reflectx/pkg/engine"
	"github.com/oxygene76/reflectx/pkg/params"
	"github.com/oxygene76/reflectx/pkg/runner"
	"github.com/oxygene76/reflectx/pkg/utils"
)

// ReflectXClient wires configuration, the engine bridge, the artifact store and the
// run catalog into one coordinator
type ReflectXClient struct {
	config  *utils.Config
	logger  *zap.Logger
	store   *artifact.Store
	catalog *catalog.Catalog
	report  *catalog.Report
	coord   *runner.Coordinator
}

// NewReflectXClient creates a client that runs the engines through the configured
// subprocess bridge on the local filesystem
func NewReflectXClient(config *utils.Config, logger *zap.Logger) (*ReflectXClient, error) {
	bridge := engine.NewBridge(config.Engine.Command, config.Engine.Args, logger)
	return New(config, bridge, afero.NewOsFs(), logger)
}

// New creates a client around any engine and filesystem
func New(config *utils.Config, eng engine.Engine, fs afero.Fs, logger *zap.Logger) (*ReflectXClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy, err := artifact.ParsePolicy(config.Run.DirectoryPolicy)
	if err != nil {
		return nil, err
	}

	client := &ReflectXClient{
		config: config,
		logger: logger,
		store:  artifact.NewStore(fs, config.Paths.OutputDir),
	}

	if err := fs.MkdirAll(config.Paths.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	client.coord = runner.NewCoordinator(eng, client.store, runner.Config{
		Policy:               policy,
		ClimateTimeout:       config.Engine.ClimateTimeout,
		SpectrumTimeout:      config.Engine.SpectrumTimeout,
		ComputeSpectrum:      config.Run.ComputeSpectrum,
		MMW:                  config.Cloud.MMW,
		UsePlanetMetallicity: config.Cloud.UsePlanetMetallicity,
		CKPath:               config.Paths.CKPath,
		RefIndexDir:          config.Paths.RefIndexDir,
	}, logger)

	if config.Paths.CatalogDB != "" {
		if config.Paths.CatalogDB != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(config.Paths.CatalogDB), 0755); err != nil {
				return nil, fmt.Errorf("failed to create catalog directory: %w", err)
			}
		}
		client.catalog, err = catalog.Open(config.Paths.CatalogDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open run catalog: %w", err)
		}
		client.coord.WithRecorder(client.catalog)
	}

	if config.Paths.ReportFile != "" {
		client.report = catalog.NewReport(fs, client.ReportPath())
	}

	return client, nil
}

// Close releases the run catalog
func (c *ReflectXClient) Close() error {
	if c.catalog != nil {
		return c.catalog.Close()
	}
	return nil
}

// Config returns the client configuration
func (c *ReflectXClient) Config() *utils.Config { return c.config }

// Store returns the artifact store
func (c *ReflectXClient) Store() *artifact.Store { return c.store }

// ReportPath returns where the batch report is appended. Relative paths live in the
// output directory.
func (c *ReflectXClient) ReportPath() string {
	if filepath.IsAbs(c.config.Paths.ReportFile) {
		return c.config.Paths.ReportFile
	}
	return filepath.Join(c.config.Paths.OutputDir, c.config.Paths.ReportFile)
}

// Deriver returns the parameter deriver configured with the client defaults
func (c *ReflectXClient) Deriver() params.Deriver {
	return NewDeriver(c.config)
}

// NewDeriver builds the parameter deriver from the run and path settings. Commands
// that only derive parameters use it without starting a client.
func NewDeriver(config *utils.Config) params.Deriver {
	d := params.DefaultDeriver()
	d.NumTangle = config.Run.DefaultNumTangle
	d.NumGangle = config.Run.DefaultNumGangle
	d.Resolution = config.Run.SpectrumResolution
	d.CKPath = config.Paths.CKPath
	return d
}

// RunCloudFree runs the cloud-free model of one derived row
func (c *ReflectXClient) RunCloudFree(ctx context.Context, rp *params.RunParameters, opts runner.Options) (*runner.Handle, error) {
	return c.coord.RunCloudFree(ctx, rp, opts)
}

// RunCloudy adds clouds to an existing cloud-free run
func (c *ReflectXClient) RunCloudy(ctx context.Context, dir string, cp runner.CloudParams, molecules []string) (*runner.CloudyResult, error) {
	return c.coord.RunCloudy(ctx, dir, cp, molecules)
}

// Compare recomputes, regrids and overlays the spectra of a run
func (c *ReflectXClient) Compare(ctx context.Context, dir string, waveRange [2]float64, R float64, useAlbedo bool) (*runner.Comparison, error) {
	return c.coord.RegridAndCompare(ctx, dir, waveRange, R, useAlbedo)
}

// Regrid regrids a stored spectrum record
func (c *ReflectXClient) Regrid(dir, file string, R float64) (*runner.Regridded, error) {
	return c.coord.Regrid(dir, file, R)
}

// RunGrid runs every row of a table with the configured concurrency
func (c *ReflectXClient) RunGrid(ctx context.Context, rows []params.Row) ([]runner.RowResult, error) {
	var report runner.ReportWriter
	if c.report != nil {
		report = c.report
	}
	grid := runner.NewGrid(c.coord, c.Deriver(), report, c.config.Grid.MaxConcurrent, c.logger)
	return grid.Run(ctx, rows)
}

// Runs lists catalogued runs
func (c *ReflectXClient) Runs(ctx context.Context, filter catalog.Filter) ([]types.RunRecord, error) {
	if c.catalog == nil {
		return nil, fmt.Errorf("run catalog is disabled")
	}
	return c.catalog.List(ctx, filter)
}

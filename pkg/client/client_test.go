package client

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oxygene76/reflectx/internal/types"
	"github.com/oxygene76/reflectx/pkg/catalog"
	"github.com/oxygene76/reflectx/pkg/engine/enginetest"
	"github.com/oxygene76/reflectx/pkg/params"
	"github.com/oxygene76/reflectx/pkg/utils"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() *utils.Config {
	cfg := utils.DefaultConfig()
	cfg.Paths.OutputDir = "/models"
	cfg.Paths.CKPath = "/opacities"
	cfg.Paths.CatalogDB = ":memory:"
	cfg.Paths.ReportFile = "status.txt"
	cfg.Grid.MaxConcurrent = 2
	return cfg
}

func testRow() params.Row {
	return params.Row{
		"name":        "Grid",
		"planet_type": "Jupiter",
		"tint":        "150",
		"st_teff":     "5800",
		"rstar":       "1",
		"au":          "1",
		"pl_rad":      "1",
		"pl_mass":     "1",
		"logg":        "4.4",
		"feh":         "1",
		"nlevel":      "21",
		"nofczns":     "1",
		"nstr_upper":  "15",
		"rfacv":       "0.5",
		"mh":          "1",
		"mh_str":      "0",
		"cto":         "0.46",
		"p_bottom":    "2",
		"p_top":       "-6",
		"noTiOVO":     "False",
		"guess":       "guillot",
		"wave_range":  "[0.5, 1.8]",
		"phase":       "90",
	}
}

func newTestClient(t *testing.T, cfg *utils.Config) (*ReflectXClient, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/opacities/sonora_2020_feh+000_co_046.data.196", []byte("ck"), 0o644))
	c, err := New(cfg, &enginetest.Fake{}, fs, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, fs
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Run.DirectoryPolicy = "merge"
	_, err := New(cfg, &enginetest.Fake{}, afero.NewMemMapFs(), nil)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestReportPath(t *testing.T) {
	c, _ := newTestClient(t, testConfig())
	assert.Equal(t, "/models/status.txt", c.ReportPath())

	cfg := testConfig()
	cfg.Paths.ReportFile = "/var/log/status.txt"
	c, _ = newTestClient(t, cfg)
	assert.Equal(t, "/var/log/status.txt", c.ReportPath())
}

func TestDeriverUsesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Run.DefaultNumTangle = 4
	cfg.Run.SpectrumResolution = 300
	c, _ := newTestClient(t, cfg)

	d := c.Deriver()
	assert.Equal(t, 4, d.NumTangle)
	assert.Equal(t, 300.0, d.Resolution)
	assert.Equal(t, "/opacities", d.CKPath)
}

func TestNewDeriverMatchesClient(t *testing.T) {
	cfg := testConfig()
	cfg.Run.DefaultNumTangle = 4
	cfg.Run.DefaultNumGangle = 10
	cfg.Run.SpectrumResolution = 300
	c, _ := newTestClient(t, cfg)

	assert.Equal(t, c.Deriver(), NewDeriver(cfg))

	standalone, err := NewDeriver(cfg).Derive(testRow())
	require.NoError(t, err)
	viaClient, err := c.Deriver().Derive(testRow())
	require.NoError(t, err)
	assert.Equal(t, viaClient, standalone)
	assert.Equal(t, 300.0, standalone.Spectrum.Resolution)
	assert.Equal(t, 10, standalone.Planet.NumGangle)
	assert.Equal(t, "/opacities", standalone.Planet.LocalCKPath)
}

func TestRunGridReportsAndCatalogues(t *testing.T) {
	c, fs := newTestClient(t, testConfig())
	ctx := context.Background()

	results, err := c.RunGrid(ctx, []params.Row{testRow()})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	data, err := afero.ReadFile(fs, "/models/status.txt")
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.True(t, strings.HasPrefix(line, results[0].Directory+" "))
	assert.True(t, strings.HasSuffix(line, "  converged"))

	runs, err := c.Runs(ctx, catalog.Filter{Directory: results[0].Directory})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, types.StatusConverged, runs[0].Status)
}

func TestRunsWithoutCatalog(t *testing.T) {
	cfg := testConfig()
	cfg.Paths.CatalogDB = ""
	c, _ := newTestClient(t, cfg)

	_, err := c.Runs(context.Background(), catalog.Filter{})
	assert.Error(t, err)
}

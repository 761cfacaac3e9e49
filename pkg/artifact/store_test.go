package artifact

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygene76/reflectx/internal/types"
	"github.com/oxygene76/reflectx/pkg/engine"
)

func newTestStore() *Store {
	return NewStore(afero.NewMemMapFs(), "/runs")
}

func TestPrepareDirectoryPolicies(t *testing.T) {
	s := newTestStore()

	created, err := s.Prepare("run-a", PolicyError)
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, s.WriteRecord("run-a", SpeciesFile, &SpeciesRecord{Species: []string{"H2O"}}))

	_, err = s.Prepare("run-a", PolicyError)
	assert.True(t, errors.Is(err, types.ErrDirectoryExists))

	created, err = s.Prepare("run-a", PolicySkip)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, s.Has("run-a", SpeciesFile))

	created, err = s.Prepare("run-a", PolicyOverwrite)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, s.Has("run-a", SpeciesFile))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyError, p)

	p, err = ParsePolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, PolicySkip, p)

	_, err = ParsePolicy("merge")
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestRecordRoundTrip(t *testing.T) {
	s := newTestStore()
	s.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	_, err := s.Prepare("run", PolicyError)
	require.NoError(t, err)

	in := &ClimateRecord{
		Converged:   true,
		Pressure:    []float64{1e-4, 1, 100},
		Temperature: []float64{100, 150, 900},
		Profile:     engine.Profile{"pressure": {1e-4, 1, 100}},
	}
	require.NoError(t, s.WriteRecord("run", CloudFreeModel, in))

	var out ClimateRecord
	require.NoError(t, s.ReadRecord("run", CloudFreeModel, &out))
	assert.Equal(t, RecordVersion, out.Version)
	assert.Equal(t, "cloud-free-model", out.Kind)
	assert.True(t, out.Converged)
	assert.Equal(t, in.Temperature, out.Temperature)
	assert.Equal(t, s.now(), out.Written)

	assert.False(t, s.Has("run", CloudFreeModel+".tmp"))
}

func TestReadRecordErrors(t *testing.T) {
	s := newTestStore()
	_, err := s.Prepare("run", PolicyError)
	require.NoError(t, err)

	var rec ClimateRecord
	err = s.ReadRecord("run", CloudFreeModel, &rec)
	assert.True(t, errors.Is(err, types.ErrArtifactNotFound))

	require.NoError(t, s.WriteRecord("run", SpeciesFile, &SpeciesRecord{}))
	err = s.ReadRecord("run", SpeciesFile, &rec)
	assert.True(t, errors.Is(err, types.ErrFormat))

	require.NoError(t, afero.WriteFile(s.Fs(), s.Path("run", CloudyModel), []byte(`{"version":9,"kind":"cloudy-model"}`), 0o644))
	err = s.ReadRecord("run", CloudyModel, &CloudyRecord{})
	assert.True(t, errors.Is(err, types.ErrFormat))

	require.NoError(t, afero.WriteFile(s.Fs(), s.Path("run", CloudyInputs), []byte(`not json`), 0o644))
	err = s.ReadRecord("run", CloudyInputs, &CloudyInputsRecord{})
	assert.True(t, errors.Is(err, types.ErrFormat))
}

func TestWriteFileFailureLeavesNothing(t *testing.T) {
	s := newTestStore()
	_, err := s.Prepare("run", PolicyError)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WriteFile("run", "plot.png", func(io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, s.Has("run", "plot.png"))
}

func TestListAndRuns(t *testing.T) {
	s := newTestStore()
	for _, dir := range []string{"b", "a"} {
		_, err := s.Prepare(dir, PolicyError)
		require.NoError(t, err)
	}
	require.NoError(t, s.WriteRecord("a", CloudyModel, &CloudyRecord{}))
	require.NoError(t, s.WriteRecord("a", CloudFreeModel, &ClimateRecord{}))

	names, err := s.List("a")
	require.NoError(t, err)
	assert.Equal(t, []string{CloudFreeModel, CloudyModel}, names)

	runs, err := s.Runs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, runs)

	_, err = s.List("missing")
	assert.True(t, errors.Is(err, types.ErrArtifactNotFound))
}

func TestOpenAppend(t *testing.T) {
	s := newTestStore()
	_, err := s.Prepare("run", PolicyError)
	require.NoError(t, err)

	for _, line := range []string{"first\n", "second\n"} {
		f, err := s.OpenAppend("run", RunLogFile)
		require.NoError(t, err)
		_, err = io.WriteString(f, line)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
	data, err := s.ReadFile("run", RunLogFile)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestLockSerialisesSameDirectory(t *testing.T) {
	s := newTestStore()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock("same")
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestArtifactNames(t *testing.T) {
	assert.Equal(t, "cloud-free-spectrum-full-output-R150.json", CloudFreeFullOutput(150))
	assert.Equal(t, "cloudy-spectrum-R62.5.json", CloudySpectrum(62.5))
	assert.Equal(t, "cloud-free-4SpectrumPlot-R150.png", FourPanelPlot(150))
	assert.Equal(t, "cloudy-albedo-spectrum-R30.png", AlbedoPlot(true, 30))
	assert.Equal(t, "cloud-free-fpfs-spectrum-R150.png", FpFsPlot(false, 150))
	assert.Equal(t, "reflected-spectrum-plot-R100.png", ComparisonPlot(100))
	assert.Equal(t, "cloudy-spectrum-R150-regridded-R30.json", RegriddedSpectrum(CloudySpectrum(150), 30))
}

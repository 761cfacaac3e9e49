package runner

import (
	"context"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oxygene76/reflectx/internal/types"
	"github.com/oxygene76/reflectx/pkg/artifact"
	"github.com/oxygene76/reflectx/pkg/engine"
	"github.com/oxygene76/reflectx/pkg/engine/enginetest"
	"github.com/oxygene76/reflectx/pkg/params"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testCKPath = "/opacities"

func baseRow() params.Row {
	return params.Row{
		"name":        "ReflectX",
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

func deriveRow(t *testing.T, row params.Row) *params.RunParameters {
	t.Helper()
	rp, err := params.DeriveRunParameters(row)
	require.NoError(t, err)
	return rp
}

type fixture struct {
	fs       afero.Fs
	store    *artifact.Store
	fake     *enginetest.Fake
	recorder *memRecorder
	coord    *Coordinator
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	return newFixtureWithEngine(t, cfg, &enginetest.Fake{})
}

func newFixtureWithEngine(t *testing.T, cfg Config, eng engine.Engine) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testCKPath+"/sonora_2020_feh+000_co_046.data.196", []byte("ck"), 0o644))

	if cfg.CKPath == "" {
		cfg.CKPath = testCKPath
	}
	store := artifact.NewStore(fs, "/models")
	rec := &memRecorder{}
	coord := NewCoordinator(eng, store, cfg, nil).WithRecorder(rec)
	coord.newID = sequentialIDs()

	f := &fixture{fs: fs, store: store, recorder: rec, coord: coord}
	if fake, ok := eng.(*enginetest.Fake); ok {
		f.fake = fake
	}
	return f
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "run-" + strconv.Itoa(n)
	}
}

type memRecorder struct {
	mu      sync.Mutex
	records []types.RunRecord
}

func (m *memRecorder) Record(_ context.Context, r types.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *memRecorder) statuses() []types.RunStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.RunStatus
	for _, r := range m.records {
		out = append(out, r.Status)
	}
	return out
}

// blockingClimate never finishes a climate run before its context ends
type blockingClimate struct {
	*enginetest.Fake
}

func (b blockingClimate) Climate(ctx context.Context, _ engine.ClimateRequest, log io.Writer) (*engine.ClimateResult, error) {
	_, _ = io.WriteString(log, "Iteration number  1 , of  30\n")
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		return nil, context.DeadlineExceeded
	}
}

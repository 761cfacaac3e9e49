package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oxygene76/reflectx/internal/types"
	"github.com/oxygene76/reflectx/pkg/params"
)

// ReportWriter receives one line per finished row
type ReportWriter interface {
	Append(dir string, at time.Time, outcome types.Outcome) error
}

// RowResult is the fate of one table row
type RowResult struct {
	Index     int
	Directory string
	Handle    *Handle
	Err       error
}

// Outcome returns the row's report outcome. Any error counts as a failure.
func (r RowResult) Outcome() types.Outcome {
	if r.Err != nil || r.Handle == nil {
		return types.OutcomeConvergenceFailure
	}
	return r.Handle.Outcome
}

// Grid runs every row of a parameter table
type Grid struct {
	coord         *Coordinator
	deriver       params.Deriver
	report        ReportWriter
	maxConcurrent int
	logger        *zap.Logger
	now           func() time.Time
}

// NewGrid creates a grid runner. maxConcurrent below 1 runs rows one at a time.
func NewGrid(coord *Coordinator, deriver params.Deriver, report ReportWriter, maxConcurrent int, logger *zap.Logger) *Grid {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Grid{
		coord:         coord,
		deriver:       deriver,
		report:        report,
		maxConcurrent: maxConcurrent,
		logger:        logger.Named("grid"),
		now:           time.Now,
	}
}

// Run derives and runs every row. A failing row is reported and the batch carries on;
// only cancellation of ctx or a report write failure stops it early.
func (g *Grid) Run(ctx context.Context, rows []params.Row) ([]RowResult, error) {
	results := make([]RowResult, len(rows))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.maxConcurrent)

	for i, row := range rows {
		if egCtx.Err() != nil {
			break
		}
		i, row := i, row
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			res := g.runRow(egCtx, i, row)
			results[i] = res
			if res.Err != nil && egCtx.Err() != nil {
				return egCtx.Err()
			}
			if g.report != nil {
				if err := g.report.Append(res.Directory, g.now(), res.Outcome()); err != nil {
					return fmt.Errorf("writing report for %s: %w", res.Directory, err)
				}
			}
			return nil
		})
	}

	err := eg.Wait()
	if err == nil {
		err = ctx.Err()
	}
	g.logger.Info("Grid finished", zap.Int("rows", len(rows)), zap.Int("converged", countConverged(results)))
	return results, err
}

func (g *Grid) runRow(ctx context.Context, i int, row params.Row) RowResult {
	res := RowResult{Index: i, Directory: fmt.Sprintf("row-%d", i+1)}

	rp, err := g.deriver.Derive(row)
	if err != nil {
		g.logger.Error("Could not derive row", zap.Int("row", i+1), zap.Error(err))
		res.Err = err
		return res
	}
	res.Directory = rp.Directory

	h, err := g.coord.RunCloudFree(ctx, rp, Options{})
	if err != nil {
		g.logger.Error("Run failed", zap.String("dir", rp.Directory), zap.Error(err))
		res.Err = err
		return res
	}
	res.Handle = h
	return res
}

func countConverged(results []RowResult) int {
	n := 0
	for _, r := range results {
		if r.Err == nil && r.Handle != nil && r.Outcome() == types.OutcomeConverged {
			n++
		}
	}
	return n
}

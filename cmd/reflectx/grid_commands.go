package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oxygene76/reflectx/internal/types"
	"github.com/oxygene76/reflectx/pkg/catalog"
)

// Grid and results command variables
var (
	gridConcurrency int
	resultsDir      string
	resultsGrid     string
	resultsStatus   string
	resultsLimit    int
)

// gridCmd groups batch runs
var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Run model grids from a parameter table",
}

// gridRunCmd runs every row of a table
var gridRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the cloud-free model of every table row",
	Long: `Run the cloud-free model of every row of a parameter table. A failing row is
written to the report as FAILED and the grid carries on with the next row.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		rows, err := loadRows(ctx)
		if err != nil {
			return err
		}
		if gridConcurrency > 0 {
			globalClient.Config().Grid.MaxConcurrent = gridConcurrency
		}

		fmt.Printf("🚀 Running %d models (%d at a time)\n", len(rows), globalClient.Config().Grid.MaxConcurrent)
		fmt.Printf("   Report: %s\n", globalClient.ReportPath())
		start := time.Now()

		results, err := globalClient.RunGrid(ctx, rows)

		converged := 0
		for _, r := range results {
			switch {
			case r.Err != nil:
				fmt.Printf("❌ %-40s %v\n", r.Directory, r.Err)
			case r.Handle != nil && r.Handle.Skipped:
				fmt.Printf("⏭️  %-40s skipped\n", r.Directory)
			case r.Outcome() == types.OutcomeConverged:
				converged++
				fmt.Printf("✅ %-40s converged\n", r.Directory)
			case r.Handle != nil:
				fmt.Printf("❌ %-40s did not converge\n", r.Directory)
			}
		}

		fmt.Printf("\n📊 %d/%d converged in %s\n", converged, len(rows), time.Since(start).Round(time.Second))
		return err
	},
}

// resultsCmd lists catalogued runs
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List catalogued model runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := globalClient.Runs(cmd.Context(), catalog.Filter{
			Directory: resultsDir,
			Grid:      resultsGrid,
			Status:    types.RunStatus(resultsStatus),
			Limit:     resultsLimit,
		})
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs found.")
			return nil
		}

		fmt.Printf("%-36s  %-40s  %-10s  %8s  %6s  %s\n", "RUN ID", "DIRECTORY", "STATUS", "TEQ", "PHASE", "DURATION")
		for _, r := range runs {
			fmt.Printf("%-36s  %-40s  %-10s  %8.1f  %6g  %s\n",
				r.RunID, r.Directory, r.Status, r.Teq, r.Phase, r.Duration().Round(time.Second))
			if r.Error != "" {
				fmt.Printf("    error: %s\n", r.Error)
			}
		}
		return nil
	},
}

func init() {
	addTableFlags(gridRunCmd)
	gridRunCmd.Flags().IntVar(&gridConcurrency, "concurrency", 0, "models run at once (default from config)")

	resultsCmd.Flags().StringVar(&resultsDir, "dir", "", "only runs in this directory")
	resultsCmd.Flags().StringVar(&resultsGrid, "grid", "", "only runs of this grid")
	resultsCmd.Flags().StringVar(&resultsStatus, "status", "", "only runs with this status")
	resultsCmd.Flags().IntVar(&resultsLimit, "limit", 50, "maximum number of runs")

	gridCmd.AddCommand(gridRunCmd)
	rootCmd.AddCommand(gridCmd)
	rootCmd.AddCommand(resultsCmd)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oxygene76/reflectx/internal/types"
	"github.com/oxygene76/reflectx/pkg/astronomy/orbital"
	"github.com/oxygene76/reflectx/pkg/client"
	"github.com/oxygene76/reflectx/pkg/params"
	"github.com/oxygene76/reflectx/pkg/runner"
)

// Derivation command variables
var (
	tableSource string
	sheetID     string
	sheetName   string
	rowNumber   int
	rowSets     []string
)

// Orbit and temperature command variables
var (
	meanAnomaly    float64
	eccentricity   float64
	inclination    float64
	argPeriapsis   float64
	starTeff       float64
	starRadius     float64
	separation     float64
	bondAlbedo     float64
	redistribution float64
)

// Model command variables
var (
	profileFile string
	runDir      string
	cloudKz     float64
	cloudFsed   float64
	cloudMH     float64
	cloudMMW    float64
	molecules   []string
)

// deriveCmd prints the run parameters of one table row
var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive run parameters from a table row",
	Long: `Read one row of a parameter table and print the run parameters derived from
it: equilibrium temperature, phase, opacity table keys and the run directory name.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rp, err := loadRunParameters(cmd.Context(), client.NewDeriver(globalConfig))
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(rp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

// phaseCmd computes the phase angle from orbital elements
var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Compute the phase angle from orbital elements",
	RunE: func(cmd *cobra.Command, args []string) error {
		alpha, err := orbital.PhaseAngle(meanAnomaly, eccentricity, inclination, argPeriapsis)
		if err != nil {
			return err
		}

		fmt.Printf("🪐 Phase angle: %.4f°\n", alpha)
		fmt.Printf("   M=%g rad, e=%g, i=%g°, ω=%g°\n", meanAnomaly, eccentricity, inclination, argPeriapsis)
		return nil
	},
}

// teqCmd computes the equilibrium temperature
var teqCmd = &cobra.Command{
	Use:   "teq",
	Short: "Compute the planet equilibrium temperature",
	RunE: func(cmd *cobra.Command, args []string) error {
		teq, err := params.ComputeEquilibriumTemperature(starTeff, starRadius, separation, bondAlbedo, redistribution)
		if err != nil {
			return err
		}

		fmt.Printf("🌡️  Equilibrium temperature: %.1f K\n", teq)
		fmt.Printf("   Teff=%g K, R*=%g Rsun, a=%g AU, A_B=%g, f=%g\n",
			starTeff, starRadius, separation, bondAlbedo, redistribution)
		return nil
	},
}

// modelCmd groups the model runs
var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Run atmosphere models",
}

// cloudFreeCmd runs one cloud-free model
var cloudFreeCmd = &cobra.Command{
	Use:   "cloud-free",
	Short: "Run the cloud-free climate model of one table row",
	Long: `Derive the run parameters of one table row, run the radiative-convective
climate model and, when it converges, recommend condensates and compute the
cloud-free reflected-light spectrum. Every artifact lands in the run directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		rp, err := loadRunParameters(ctx, client.NewDeriver(globalConfig))
		if err != nil {
			return err
		}

		var opts runner.Options
		if profileFile != "" {
			if opts.Profile, err = loadProfile(profileFile); err != nil {
				return err
			}
		}

		fmt.Printf("🚀 Running cloud-free model %s\n", rp.Directory)
		fmt.Printf("   Teq=%.1f K, phase=%g°, opacity table %s\n", rp.Planet.Teq, rp.Planet.Phase, rp.Planet.OpacityTableName())

		h, err := globalClient.RunCloudFree(ctx, rp, opts)
		if err != nil {
			return err
		}

		printHandle(h)
		return nil
	},
}

// cloudyCmd adds clouds to a converged cloud-free run
var cloudyCmd = &cobra.Command{
	Use:   "cloudy",
	Short: "Add clouds to a converged cloud-free run",
	Long: `Compute condensate cloud properties on top of an existing converged cloud-free
climate and the cloudy reflected-light spectrum. The recommended condensates of
the cloud-free run are used unless --molecules is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		res, err := globalClient.RunCloudy(ctx, runDir, runner.CloudParams{
			Kz:   cloudKz,
			Fsed: cloudFsed,
			MH:   cloudMH,
			MMW:  cloudMMW,
		}, molecules)
		if err != nil {
			return err
		}

		fmt.Printf("☁️  Cloudy model complete: %s\n", res.Directory)
		fmt.Printf("   Condensates: %s\n", strings.Join(res.Condensates, ", "))
		if res.Spectrum != nil {
			fmt.Printf("   Spectrum points: %d\n", len(res.Spectrum.Wavenumber))
		}
		return nil
	},
}

func init() {
	addRowFlags(deriveCmd)
	addRowFlags(cloudFreeCmd)

	phaseCmd.Flags().Float64Var(&meanAnomaly, "mean-anomaly", 0, "mean anomaly (radians)")
	phaseCmd.Flags().Float64Var(&eccentricity, "ecc", 0, "eccentricity")
	phaseCmd.Flags().Float64Var(&inclination, "inc", 90, "inclination (degrees)")
	phaseCmd.Flags().Float64Var(&argPeriapsis, "argp", 0, "argument of periapsis (degrees)")

	teqCmd.Flags().Float64Var(&starTeff, "teff", 5778, "stellar effective temperature (K)")
	teqCmd.Flags().Float64Var(&starRadius, "rstar", 1, "stellar radius (R_sun)")
	teqCmd.Flags().Float64Var(&separation, "au", 1, "star-planet separation (AU)")
	teqCmd.Flags().Float64Var(&bondAlbedo, "albedo", params.DefaultBondAlbedo, "Bond albedo")
	teqCmd.Flags().Float64Var(&redistribution, "redistribution", params.DefaultRedistribution, "heat redistribution factor")

	cloudFreeCmd.Flags().StringVar(&profileFile, "profile", "", "CSV with pressure and temperature columns for guess=supplied")

	cloudyCmd.Flags().StringVar(&runDir, "dir", "", "cloud-free run directory")
	cloudyCmd.Flags().Float64Var(&cloudKz, "kz", 1e9, "eddy diffusion coefficient (cm²/s)")
	cloudyCmd.Flags().Float64Var(&cloudFsed, "fsed", 3, "sedimentation efficiency")
	cloudyCmd.Flags().Float64Var(&cloudMH, "mh", 1, "cloud metallicity (linear, solar = 1)")
	cloudyCmd.Flags().Float64Var(&cloudMMW, "mmw", 0, "mean molecular weight (default from config)")
	cloudyCmd.Flags().StringSliceVar(&molecules, "molecules", nil, "condensates to use instead of the recommendation")
	cloudyCmd.MarkFlagRequired("dir")

	modelCmd.AddCommand(cloudFreeCmd)
	modelCmd.AddCommand(cloudyCmd)

	rootCmd.AddCommand(deriveCmd)
	rootCmd.AddCommand(phaseCmd)
	rootCmd.AddCommand(teqCmd)
	rootCmd.AddCommand(modelCmd)
}

func addTableFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&tableSource, "table", "", "parameter table (CSV file or URL)")
	cmd.Flags().StringVar(&sheetID, "sheet-id", "", "Google Sheets document ID")
	cmd.Flags().StringVar(&sheetName, "sheet-name", "", "Google Sheets tab name")
}

func addRowFlags(cmd *cobra.Command) {
	addTableFlags(cmd)
	cmd.Flags().IntVar(&rowNumber, "row", 1, "row number (1-based, header excluded)")
	cmd.Flags().StringSliceVar(&rowSets, "set", nil, "override a column, e.g. --set phase=45")
}

// tableLocation returns the table source named by the command flags
func tableLocation() (string, error) {
	switch {
	case tableSource != "":
		return tableSource, nil
	case sheetID != "" && sheetName != "":
		return params.SheetURL(sheetID, sheetName), nil
	}
	return "", fmt.Errorf("either --table or --sheet-id with --sheet-name is required")
}

func loadRows(ctx context.Context) ([]params.Row, error) {
	source, err := tableLocation()
	if err != nil {
		return nil, err
	}
	return params.ReadTable(ctx, source)
}

func loadRunParameters(ctx context.Context, deriver params.Deriver) (*params.RunParameters, error) {
	rows, err := loadRows(ctx)
	if err != nil {
		return nil, err
	}
	if rowNumber < 1 || rowNumber > len(rows) {
		return nil, fmt.Errorf("row %d out of range, table has %d rows", rowNumber, len(rows))
	}

	row := rows[rowNumber-1]
	for _, set := range rowSets {
		key, value, ok := strings.Cut(set, "=")
		if !ok {
			return nil, fmt.Errorf("expected column=value, got %q", set)
		}
		row[key] = value
	}
	return deriver.Derive(row)
}

// loadProfile reads a starting pressure-temperature profile
func loadProfile(path string) (*runner.SuppliedProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer f.Close()

	rows, err := params.LoadTable(f)
	if err != nil {
		return nil, err
	}

	profile := &runner.SuppliedProfile{}
	for _, row := range rows {
		p, err := row.Float("pressure")
		if err != nil {
			return nil, err
		}
		t, err := row.Float("temperature")
		if err != nil {
			return nil, err
		}
		profile.Pressure = append(profile.Pressure, p)
		profile.Temperature = append(profile.Temperature, t)
	}
	return profile, nil
}

func printHandle(h *runner.Handle) {
	switch {
	case h.Skipped:
		fmt.Printf("⏭️  %s already exists, skipped (%s)\n", h.Directory, h.Outcome.ReportMarker())
		return
	case h.Outcome != types.OutcomeConverged:
		fmt.Printf("❌ %s did not converge\n", h.Directory)
		return
	}

	fmt.Printf("✅ %s converged\n", h.Directory)
	fmt.Printf("   Run ID: %s\n", h.RunID)
	if len(h.Species) > 0 {
		fmt.Printf("   Recommended condensates: %s\n", strings.Join(h.Species, ", "))
	}
	if h.Spectrum != nil {
		fmt.Printf("   Spectrum points: %d\n", len(h.Spectrum.Wavenumber))
	}
}

// signalContext cancels on SIGINT or SIGTERM so engine subprocesses are stopped
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

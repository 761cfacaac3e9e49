package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oxygene76/reflectx/pkg/artifact"
	"github.com/oxygene76/reflectx/pkg/params"
)

// Spectrum command variables
var (
	spectrumDir   string
	spectrumFile  string
	waveRangeFlag string
	resolution    float64
	useFpFs       bool
)

// spectrumCmd groups spectrum post-processing
var spectrumCmd = &cobra.Command{
	Use:   "spectrum",
	Short: "Post-process reflected-light spectra",
}

// compareCmd overlays the cloud-free and cloudy spectra of a run
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the cloud-free and cloudy spectra of a run",
	Long: `Recompute the cloud-free and cloudy spectra of a run over a wavelength range,
regrid both to a constant resolving power and plot them together. The ratio of
cloudy to cloud-free values is printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		waveRange, err := params.ParseWaveRange(waveRangeFlag)
		if err != nil {
			return err
		}

		res, err := globalClient.Compare(ctx, spectrumDir, waveRange, resolution, !useFpFs)
		if err != nil {
			return err
		}

		fmt.Printf("📈 Spectrum comparison for %s (%s, R=%g)\n", spectrumDir, res.Quantity, resolution)
		fmt.Printf("   Samples:           %d\n", res.Stats.Samples)
		fmt.Printf("   Mean cloudy ratio: %.4f\n", res.Stats.MeanRatio)
		fmt.Printf("   Ratio std dev:     %.4f\n", res.Stats.StdDevRatio)
		fmt.Printf("   Plot: %s\n", globalClient.Store().Path(spectrumDir, artifact.ComparisonPlot(resolution)))
		return nil
	},
}

// regridCmd regrids a stored spectrum
var regridCmd = &cobra.Command{
	Use:   "regrid",
	Short: "Regrid a stored spectrum to a constant resolving power",
	RunE: func(cmd *cobra.Command, args []string) error {
		file := spectrumFile
		if file == "" {
			file = artifact.CloudFreeFullOutput(globalClient.Config().Run.SpectrumResolution)
		}

		res, err := globalClient.Regrid(spectrumDir, file, resolution)
		if err != nil {
			return err
		}

		fmt.Printf("✅ Regridded %s to R=%g\n", file, resolution)
		fmt.Printf("   Albedo bins: %d\n", res.Albedo.Len())
		fmt.Printf("   Fp/Fs bins:  %d\n", res.FpFs.Len())
		return nil
	},
}

func init() {
	compareCmd.Flags().StringVar(&spectrumDir, "dir", "", "run directory")
	compareCmd.Flags().StringVar(&waveRangeFlag, "wave-range", "[0.3, 1.0]", "wavelength range in microns")
	compareCmd.Flags().Float64Var(&resolution, "resolution", 150, "resolving power R")
	compareCmd.Flags().BoolVar(&useFpFs, "fpfs", false, "compare planet-star contrast instead of albedo")
	compareCmd.MarkFlagRequired("dir")

	regridCmd.Flags().StringVar(&spectrumDir, "dir", "", "run directory")
	regridCmd.Flags().StringVar(&spectrumFile, "file", "", "spectrum record (default is the cloud-free full output)")
	regridCmd.Flags().Float64Var(&resolution, "resolution", 150, "resolving power R")
	regridCmd.MarkFlagRequired("dir")

	spectrumCmd.AddCommand(compareCmd)
	spectrumCmd.AddCommand(regridCmd)
	rootCmd.AddCommand(spectrumCmd)
}

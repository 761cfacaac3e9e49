package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oxygene76/reflectx/pkg/client"
	"github.com/oxygene76/reflectx/pkg/utils"
)

const (
	appName = "reflectx"
	version = "v0.3.0"
)

var (
	// Global client instance
	globalClient *client.ReflectXClient
	globalConfig *utils.Config
	logger       *zap.Logger

	// Configuration
	cfgFile  string
	logLevel string
	logJSON  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Reflected-light models of gas giants",
	Long: `ReflectX runs cloud-free and cloudy atmosphere models of gas-giant planets and
computes their reflected-light spectra. Runs are driven either one at a time or
from a parameter table, and every run writes its artifacts to its own directory.

The radiative-convective climate and the spectra come from the atmosphere engine,
the condensate clouds from the cloud engine. Both are started through the bridge
command set in the configuration.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init writes the config file that initConfig would otherwise create
		if cmd.Name() == "init" {
			return nil
		}
		if err := initConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		if needsClient(cmd) {
			c, err := client.NewReflectXClient(globalConfig, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize client: %w", err)
			}
			globalClient = c
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if globalClient != nil {
			if err := globalClient.Close(); err != nil {
				logger.Warn("Failed to close client", zap.Error(err))
			}
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// initCmd writes the default configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create the default configuration file and the local directories used for
model output and the run catalog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Initializing ReflectX %s\n", version)

		path := cfgFile
		if path == "" {
			var err error
			if path, err = utils.GetConfigPath(); err != nil {
				return err
			}
		}

		if _, err := os.Stat(path); err == nil && !initForce {
			fmt.Printf("Configuration already exists: %s\n", path)
			fmt.Println("Use --force to overwrite it.")
			return nil
		}

		if err := utils.SaveConfigFile(utils.DefaultConfig(), path); err != nil {
			return fmt.Errorf("failed to save configuration: %w", err)
		}

		fmt.Printf("✅ Configuration written to %s\n", path)
		fmt.Println("\n📋 Next steps:")
		fmt.Println("  1. Point paths.ck_path at your correlated-k opacity tables")
		fmt.Println("  2. Point paths.refindex_dir at the condensate refractive indices")
		fmt.Printf("  3. Run a grid: %s grid run --table grid.csv\n", appName)
		return nil
	},
}

// configCmd shows or updates configuration
var configCmd = &cobra.Command{
	Use:   "config [key=value...]",
	Short: "Show or update configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			printConfig(globalConfig)
			return nil
		}

		updates := make(map[string]string, len(args))
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("expected key=value, got %q", arg)
			}
			updates[key] = value
		}
		if err := globalConfig.ApplyUpdates(updates); err != nil {
			return err
		}

		if cfgFile != "" {
			return utils.SaveConfigFile(globalConfig, cfgFile)
		}
		return utils.SaveConfig(globalConfig)
	},
}

var initForce bool

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.reflectx/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")

	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing configuration")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
}

// initConfig loads configuration and builds the process logger
func initConfig() error {
	var err error
	if cfgFile != "" {
		globalConfig, err = utils.LoadConfigFile(cfgFile)
	} else {
		globalConfig, err = utils.LoadConfig()
	}
	if err != nil {
		return err
	}

	if logLevel != "" {
		globalConfig.Log.Level = logLevel
	}
	if logJSON {
		globalConfig.Log.JSON = true
	}

	logger, err = utils.NewLogger(globalConfig.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	return nil
}

// needsClient reports whether cmd touches models, the engine or the catalog
func needsClient(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "init", "config", "version", "help", "completion", "derive", "phase", "teq":
		return false
	}
	return true
}

func printConfig(cfg *utils.Config) {
	fmt.Println("🔧 ReflectX Configuration")
	fmt.Println("========================")
	fmt.Printf("Engine:            %s %s\n", cfg.Engine.Command, strings.Join(cfg.Engine.Args, " "))
	fmt.Printf("Climate timeout:   %s\n", cfg.Engine.ClimateTimeout)
	fmt.Printf("Spectrum timeout:  %s\n", cfg.Engine.SpectrumTimeout)
	fmt.Printf("Output directory:  %s\n", cfg.Paths.OutputDir)
	fmt.Printf("Opacity tables:    %s\n", cfg.Paths.CKPath)
	fmt.Printf("Refractive index:  %s\n", cfg.Paths.RefIndexDir)
	fmt.Printf("Report file:       %s\n", cfg.Paths.ReportFile)
	fmt.Printf("Run catalog:       %s\n", cfg.Paths.CatalogDB)
	fmt.Printf("Directory policy:  %s\n", cfg.Run.DirectoryPolicy)
	fmt.Printf("Resolution:        R=%g\n", cfg.Run.SpectrumResolution)
	fmt.Printf("Cloud MMW:         %g\n", cfg.Cloud.MMW)
	fmt.Printf("Grid concurrency:  %d\n", cfg.Grid.MaxConcurrent)
	fmt.Printf("Log level:         %s\n", cfg.Log.Level)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

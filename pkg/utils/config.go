package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the reflectx configuration
type Config struct {
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Paths  PathsConfig  `yaml:"paths" mapstructure:"paths"`
	Run    RunConfig    `yaml:"run" mapstructure:"run"`
	Cloud  CloudConfig  `yaml:"cloud" mapstructure:"cloud"`
	Grid   GridConfig   `yaml:"grid" mapstructure:"grid"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// EngineConfig describes how the atmosphere and cloud engines are started
type EngineConfig struct {
	Command         string        `yaml:"command" mapstructure:"command"`
	Args            []string      `yaml:"args" mapstructure:"args"`
	ClimateTimeout  time.Duration `yaml:"climate_timeout" mapstructure:"climate_timeout"`
	SpectrumTimeout time.Duration `yaml:"spectrum_timeout" mapstructure:"spectrum_timeout"`
}

// PathsConfig contains input and output locations
type PathsConfig struct {
	OutputDir   string `yaml:"output_dir" mapstructure:"output_dir"`
	CKPath      string `yaml:"ck_path" mapstructure:"ck_path"`
	RefIndexDir string `yaml:"refindex_dir" mapstructure:"refindex_dir"`
	ReportFile  string `yaml:"report_file" mapstructure:"report_file"`
	CatalogDB   string `yaml:"catalog_db" mapstructure:"catalog_db"`
}

// RunConfig contains per-run defaults
type RunConfig struct {
	DirectoryPolicy    string  `yaml:"directory_policy" mapstructure:"directory_policy"`
	SpectrumResolution float64 `yaml:"spectrum_resolution" mapstructure:"spectrum_resolution"`
	ComputeSpectrum    bool    `yaml:"compute_spectrum" mapstructure:"compute_spectrum"`
	DefaultNumTangle   int     `yaml:"default_num_tangle" mapstructure:"default_num_tangle"`
	DefaultNumGangle   int     `yaml:"default_num_gangle" mapstructure:"default_num_gangle"`
}

// CloudConfig contains cloud model defaults
type CloudConfig struct {
	MMW                  float64 `yaml:"mmw" mapstructure:"mmw"`
	UsePlanetMetallicity bool    `yaml:"use_planet_metallicity" mapstructure:"use_planet_metallicity"`
}

// GridConfig controls batch execution
type GridConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// ConfigDir returns the directory holding config.yaml
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".reflectx")
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	reflectxDir := ConfigDir()

	return &Config{
		Engine: EngineConfig{
			Command:         "python3",
			Args:            []string{"scripts/reflectx_bridge.py"},
			ClimateTimeout:  2 * time.Hour,
			SpectrumTimeout: 20 * time.Minute,
		},
		Paths: PathsConfig{
			OutputDir:   "models",
			CKPath:      filepath.Join(reflectxDir, "opacities"),
			RefIndexDir: filepath.Join(reflectxDir, "refrind"),
			ReportFile:  "status.txt",
			CatalogDB:   filepath.Join(reflectxDir, "runs.db"),
		},
		Run: RunConfig{
			DirectoryPolicy:    "error",
			SpectrumResolution: 150,
			ComputeSpectrum:    true,
			DefaultNumTangle:   6,
			DefaultNumGangle:   6,
		},
		Cloud: CloudConfig{
			MMW:                  2.2,
			UsePlanetMetallicity: false,
		},
		Grid: GridConfig{
			MaxConcurrent: 1,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// SetDefaults registers every default with v so environment variables can override
// keys that are absent from the file
func SetDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("engine.command", def.Engine.Command)
	v.SetDefault("engine.args", def.Engine.Args)
	v.SetDefault("engine.climate_timeout", def.Engine.ClimateTimeout)
	v.SetDefault("engine.spectrum_timeout", def.Engine.SpectrumTimeout)
	v.SetDefault("paths.output_dir", def.Paths.OutputDir)
	v.SetDefault("paths.ck_path", def.Paths.CKPath)
	v.SetDefault("paths.refindex_dir", def.Paths.RefIndexDir)
	v.SetDefault("paths.report_file", def.Paths.ReportFile)
	v.SetDefault("paths.catalog_db", def.Paths.CatalogDB)
	v.SetDefault("run.directory_policy", def.Run.DirectoryPolicy)
	v.SetDefault("run.spectrum_resolution", def.Run.SpectrumResolution)
	v.SetDefault("run.compute_spectrum", def.Run.ComputeSpectrum)
	v.SetDefault("run.default_num_tangle", def.Run.DefaultNumTangle)
	v.SetDefault("run.default_num_gangle", def.Run.DefaultNumGangle)
	v.SetDefault("cloud.mmw", def.Cloud.MMW)
	v.SetDefault("cloud.use_planet_metallicity", def.Cloud.UsePlanetMetallicity)
	v.SetDefault("grid.max_concurrent", def.Grid.MaxConcurrent)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.json", def.Log.JSON)
}

// LoadConfig loads configuration from file or creates default
func LoadConfig() (*Config, error) {
	v := viper.GetViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	config, err := loadConfig(v)
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found, create default
		return createDefaultConfig()
	}
	return config, err
}

// LoadConfigFile loads configuration from an explicit file
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return loadConfig(v)
}

func loadConfig(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("REFLECTX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, err
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// SaveConfig saves configuration to the default location
func SaveConfig(config *Config) error {
	return SaveConfigFile(config, filepath.Join(ConfigDir(), "config.yaml"))
}

// SaveConfigFile writes configuration as YAML to path
func SaveConfigFile(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := createDirectories(config); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates and saves a default configuration
func createDefaultConfig() (*Config, error) {
	config := DefaultConfig()

	if err := SaveConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Engine.Command == "" {
		return fmt.Errorf("engine command cannot be empty")
	}

	if config.Engine.ClimateTimeout < 0 || config.Engine.SpectrumTimeout < 0 {
		return fmt.Errorf("engine timeouts cannot be negative")
	}

	if config.Paths.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}

	validPolicies := map[string]bool{
		"error":     true,
		"overwrite": true,
		"skip":      true,
	}
	if !validPolicies[config.Run.DirectoryPolicy] {
		return fmt.Errorf("invalid directory policy: %s", config.Run.DirectoryPolicy)
	}

	if config.Run.SpectrumResolution < 1 {
		return fmt.Errorf("spectrum resolution must be at least 1")
	}

	if config.Run.DefaultNumTangle < 1 || config.Run.DefaultNumGangle < 1 {
		return fmt.Errorf("integration angle counts must be positive")
	}

	if config.Cloud.MMW <= 0 {
		return fmt.Errorf("mean molecular weight must be positive")
	}

	if config.Grid.MaxConcurrent < 1 {
		return fmt.Errorf("grid concurrency must be at least 1")
	}

	if _, err := ParseLevel(config.Log.Level); err != nil {
		return err
	}

	return nil
}

// createDirectories creates necessary directories based on config
func createDirectories(config *Config) error {
	dirs := []string{
		config.Paths.OutputDir,
		filepath.Dir(config.Paths.CatalogDB),
	}

	for _, dir := range dirs {
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".reflectx", "config.yaml"), nil
}

// ApplyUpdates sets individual keys, e.g. "run.directory_policy" = "skip"
func (c *Config) ApplyUpdates(updates map[string]string) error {
	for key, value := range updates {
		var err error
		switch key {
		case "engine.command":
			c.Engine.Command = value
		case "engine.climate_timeout":
			c.Engine.ClimateTimeout, err = time.ParseDuration(value)
		case "engine.spectrum_timeout":
			c.Engine.SpectrumTimeout, err = time.ParseDuration(value)
		case "paths.output_dir":
			c.Paths.OutputDir = value
		case "paths.ck_path":
			c.Paths.CKPath = value
		case "paths.refindex_dir":
			c.Paths.RefIndexDir = value
		case "paths.report_file":
			c.Paths.ReportFile = value
		case "paths.catalog_db":
			c.Paths.CatalogDB = value
		case "run.directory_policy":
			c.Run.DirectoryPolicy = value
		case "cloud.use_planet_metallicity":
			var b bool
			if b, err = strconv.ParseBool(value); err == nil {
				c.Cloud.UsePlanetMetallicity = b
			}
		case "log.level":
			c.Log.Level = value
		default:
			return fmt.Errorf("unknown or read-only config key: %s", key)
		}
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	return validateConfig(c)
}

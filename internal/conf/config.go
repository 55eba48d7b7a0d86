// config.go: settings structs for the villrein pipeline and functions to load them.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig contains settings for a rotating file log.
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to log file
}

// MainSettings contains top level settings.
type MainSettings struct {
	Name string    // name of the running instance, used in log records
	Log  LogConfig // main log settings
}

// InputSettings points at the upstream files consumed by the pipeline.
type InputSettings struct {
	PosteriorDir string // directory with draws_<area>.csv files from the abundance model
	IntervalFile string // reported 2.5/97.5 credible bounds per (year, area)
	HarvestFile  string // flat harvest record file
	SurveyFile   string // minimum count survey file
}

// SQLiteSettings contains settings for the indicator database.
type SQLiteSettings struct {
	Enabled bool   // true to enable sqlite output
	Path    string // path to sqlite database file
}

// OutputSettings controls where pipeline artifacts land.
type OutputSettings struct {
	ArtifactDir string         // directory for stage checkpoint artifacts
	SQLite      SQLiteSettings // indicator database output
}

// YearSettings bounds the assessment horizon.
type YearSettings struct {
	Start      int   // first model year
	End        int   // last model year
	Assessment []int // designated assessment years published in the index
}

// ExclusionWindow marks an inclusive year range where an area's abundance
// data must not be used.
type ExclusionWindow struct {
	From int
	To   int
}

// AreaConfig describes one wild reindeer management area.
type AreaConfig struct {
	ID      string            // canonical ASCII identifier
	Name    string            // display name, may carry diacritics
	AreaKm2 float64           // habitat area in square kilometers
	Exclude []ExclusionWindow // data quality exclusion windows
	Aliases []string          // alternate spellings seen in survey sources
}

// SamplerSettings parameterizes posterior draw resampling.
type SamplerSettings struct {
	Size        int     // number of retained draws per area
	Coverage    float64 // minimum fraction of years inside the reported interval
	Replacement bool    // allow sampling with replacement when too few draws qualify
	Seed        uint64  // rng seed, fixed seed makes resampling repeatable
}

// FitSettings parameterizes the growth model optimization.
type FitSettings struct {
	RInit             float64 // initial intrinsic growth rate
	KInitFactor       float64 // initial K = factor * max observed abundance
	LogCInit          float64 // initial log process noise scale
	SigmaObs          float64 // fixed observation penalty sd, not estimated
	MaxIterations     int     // optimizer major iteration budget
	GradientTolerance float64 // optimizer convergence tolerance
	MinPairs          int     // minimum paired observations required for a fit
	PlausibilityCheck bool    // treat K below max observed abundance as a soft failure
	Workers           int     // fit grid parallelism, 0 means NumCPU
}

// ReferenceSettings parameterizes the reference value regression.
type ReferenceSettings struct {
	MinAreas int // minimum areas with a direct estimate, fewer is fatal
}

// SurveySettings parameterizes minimum count conversion.
type SurveySettings struct {
	DetectabilityMean float64 // fallback detectability mean when none is estimated
	DetectabilitySD   float64 // fallback detectability sd
}

// Settings contains all runtime settings for the pipeline.
type Settings struct {
	Debug bool // true to enable debug level logging

	Main      MainSettings
	Input     InputSettings
	Output    OutputSettings
	Years     YearSettings
	Areas     []AreaConfig
	Sampler   SamplerSettings
	Fit       FitSettings
	Reference ReferenceSettings
	Survey    SurveySettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Setting returns the global settings instance, loading it on first use.
func Setting() *Settings {
	once.Do(func() {
		settingsMutex.Lock()
		defer settingsMutex.Unlock()
		settingsInstance = &Settings{}
		if err := initViper(); err != nil {
			fmt.Printf("Error initializing settings: %v\n", err)
		}
	})
	return GetSettings()
}

// GetSettings returns the current global settings without triggering a load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// initViper initializes viper with defaults and reads the configuration file.
func initViper() error {
	viper.SetConfigType("yaml")
	setDefaultConfig()

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}
	viper.SetConfigName("config")

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !asConfigFileNotFound(err, &configFileNotFoundError) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		// no config yet, materialize the embedded default
		if err := createDefaultConfig(configPaths[0]); err != nil {
			return err
		}
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading created config file: %w", err)
		}
	}

	settings := GetSettings()
	if settings == nil {
		settings = &Settings{}
		settingsInstance = settings
	}
	if err := viper.Unmarshal(settings); err != nil {
		return fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	return nil
}

func asConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// temp file plus rename keeps the write atomic
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded default config.yaml into dir.
func createDefaultConfig(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	defaultConfig, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded default config: %w", err)
	}
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	fmt.Println("Created default config file at:", configPath)
	return nil
}

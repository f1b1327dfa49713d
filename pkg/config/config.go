// Package config provides configuration loading and management for
// mriregister. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Registration parameters
	Registration struct {
		// FromBins is the histogram resolution for the moving image
		FromBins int `yaml:"fromBins"`

		// ToBins is the histogram resolution for the reference image;
		// zero means "same as fromBins"
		ToBins int `yaml:"toBins"`

		// Interpolation selects the histogram interpolation mode:
		// "pv", "tri" or "rand"
		Interpolation string `yaml:"interpolation"`

		// Similarity selects the built-in similarity measure:
		// "cr", "cc", "mi" or "nmi"
		Similarity string `yaml:"similarity"`

		// VoxelBudget is the target voxel count for auto-tuned
		// subsampling of the moving image
		VoxelBudget int `yaml:"voxelBudget"`

		// Optimizer selects the minimization strategy: "powell",
		// "steepest", "cg", "bfgs" or "simplex"
		Optimizer string `yaml:"optimizer"`

		// MaxIterations caps the optimizer's major iterations;
		// zero keeps the method default
		MaxIterations int `yaml:"maxIterations"`
	} `yaml:"registration"`

	// Processing parameters
	Processing struct {
		// NumWorkers specifies how many goroutines to use for
		// histogram accumulation
		NumWorkers int `yaml:"numWorkers"`

		// Verbose enables per-iteration progress reporting during
		// optimization
		Verbose bool `yaml:"verbose"`
	} `yaml:"processing"`

	// Volume ingestion parameters
	Volumes struct {
		// VoxelSize is the physical voxel size in mm along each axis,
		// used to build the voxel-to-world affines
		VoxelSize struct {
			X float64 `yaml:"x"`
			Y float64 `yaml:"y"`
			Z float64 `yaml:"z"`
		} `yaml:"voxelSize"`
	} `yaml:"volumes"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default registration parameters
	cfg.Registration.FromBins = 256
	cfg.Registration.ToBins = 0
	cfg.Registration.Interpolation = "pv"
	cfg.Registration.Similarity = "cr"
	cfg.Registration.VoxelBudget = 64 * 64 * 64
	cfg.Registration.Optimizer = "powell"
	cfg.Registration.MaxIterations = 0

	// Set default processing parameters
	cfg.Processing.NumWorkers = runtime.NumCPU()
	cfg.Processing.Verbose = true

	// Set default volume parameters
	cfg.Volumes.VoxelSize.X = 1.0
	cfg.Volumes.VoxelSize.Y = 1.0
	cfg.Volumes.VoxelSize.Z = 1.0

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

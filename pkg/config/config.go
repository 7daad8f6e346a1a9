// Package config provides configuration loading and management for nlsam.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"nlsam/pkg/denoise"
)

// Config represents the denoising configuration loaded from YAML
type Config struct {
	// Block parameters
	Block struct {
		// SizeX, SizeY, SizeZ are the spatial block extents in voxels
		SizeX int `yaml:"sizeX"`
		SizeY int `yaml:"sizeY"`
		SizeZ int `yaml:"sizeZ"`

		// Angular is the angular block extent: the number of gradient
		// directions processed together
		Angular int `yaml:"angular"`
	} `yaml:"block"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel slab processing
		NumCores int `yaml:"numCores"`

		// Iterations bounds the reweighted l1 rounds per block
		Iterations int `yaml:"iterations"`

		// B0Threshold is the largest b-value still treated as a b0 image
		B0Threshold float64 `yaml:"b0Threshold"`

		// NoSymmetry asserts the gradient table already contains antipodal directions
		NoSymmetry bool `yaml:"noSymmetry"`

		// GreedySubsampler reduces the direction neighborhoods to a covering subset
		GreedySubsampler bool `yaml:"greedySubsampler"`

		// Seed drives the dictionary learner and the reweighting noise draw
		Seed uint64 `yaml:"seed"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Block.SizeX = 3
	cfg.Block.SizeY = 3
	cfg.Block.SizeZ = 3
	cfg.Block.Angular = 5

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Iterations = 10
	cfg.Processing.B0Threshold = 10
	cfg.Processing.NoSymmetry = false
	cfg.Processing.GreedySubsampler = true
	cfg.Processing.Seed = 1

	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

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

// Params converts the configuration into the denoiser's parameter struct
func (cfg *Config) Params() denoise.Params {
	return denoise.Params{
		BlockSize:   [4]int{cfg.Block.SizeX, cfg.Block.SizeY, cfg.Block.SizeZ, cfg.Block.Angular},
		B0Threshold: cfg.Processing.B0Threshold,
		NIter:       cfg.Processing.Iterations,
		NoSymmetry:  cfg.Processing.NoSymmetry,
		Greedy:      cfg.Processing.GreedySubsampler,
		Workers:     cfg.Processing.NumCores,
		Seed:        cfg.Processing.Seed,
	}
}

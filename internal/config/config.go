package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the cxtract.yaml configuration.
type Config struct {
	Repo        string            `yaml:"repo"`
	Extensions  []string          `yaml:"extensions"`
	Ignore      []string          `yaml:"ignore"`
	Macros      map[string]string `yaml:"macros"`
	GroundTruth string            `yaml:"ground_truth"`
	Workers     int               `yaml:"workers"`
	Limits      LimitsConfig      `yaml:"limits"`
	Output      OutputConfig      `yaml:"output"`
}

// LimitsConfig bounds a single file analysis so a pathological input can
// never stall a run.
type LimitsConfig struct {
	MaxNestingDepth int `yaml:"max_nesting_depth"`
	MaxTokens       int `yaml:"max_tokens"`
}

// OutputConfig controls where run artifacts are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Repo:       ".",
		Extensions: []string{".c", ".cc", ".cpp", ".cxx", ".h", ".hpp", ".hh"},
		Ignore: []string{
			".git/**",
			"build/**",
			"cmake-build-*/**",
			"third_party/**",
			"vendor/**",
			".cxtract/**",
		},
		Workers: 4,
		Limits: LimitsConfig{
			MaxNestingDepth: 256,
			MaxTokens:       2_000_000,
		},
		Output: OutputConfig{
			Dir: ".cxtract",
		},
	}
}

// Load reads a configuration file from the given path.
// Missing fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Ensure required defaults
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = ".cxtract"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Limits.MaxNestingDepth <= 0 {
		cfg.Limits.MaxNestingDepth = 256
	}
	if cfg.Limits.MaxTokens <= 0 {
		cfg.Limits.MaxTokens = 2_000_000
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = Default().Extensions
	}

	return cfg, nil
}

// IsSourceFile returns true if the path carries a configured C/C++ extension.
func (c *Config) IsSourceFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

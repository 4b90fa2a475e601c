// Package config loads the simulator's run parameters from a YAML file,
// CLI flags, or both, following the same "flags override file" precedence
// used elsewhere in the codebase.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every parameter the simulator needs for a single run. There
// are no required fields — Default returns a usable configuration, and
// LoadFile/CLI flags only need to override what differs.
type Config struct {
	NumVMs   int `yaml:"num_vms"`
	NumSlots int `yaml:"num_slots"`
	NumPMs   int `yaml:"num_pms"`

	// Seed drives the synthetic workload generator. Two runs with the same
	// Seed and NumVMs/NumSlots produce the same arrival stream.
	Seed int64 `yaml:"seed"`

	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json

	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsAddr    string `yaml:"metrics_addr"`

	TracingEnabled bool `yaml:"tracing_enabled"`

	// ValidateInvariants runs the pool's invariant checker after every
	// slot. Expensive — O(vms + pms) per slot — meant for tests and
	// debugging runs, not production-scale simulations.
	ValidateInvariants bool `yaml:"validate_invariants"`
}

// Default returns the baseline configuration used when no file or flags
// are supplied.
func Default() Config {
	return Config{
		NumVMs:    200,
		NumSlots:  100,
		NumPMs:    64,
		Seed:      1,
		LogLevel:  "info",
		LogFormat: "text",

		MetricsEnabled: false,
		MetricsAddr:    ":9090",

		TracingEnabled: false,
	}
}

// LoadFile reads path as YAML over top of Default(), so a file only needs
// to set the fields it wants to change.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports whether cfg describes a runnable simulation.
func (c Config) Validate() error {
	if c.NumVMs < 0 {
		return fmt.Errorf("config: num_vms must be >= 0, got %d", c.NumVMs)
	}
	if c.NumSlots <= 0 {
		return fmt.Errorf("config: num_slots must be > 0, got %d", c.NumSlots)
	}
	if c.NumPMs <= 0 {
		return fmt.Errorf("config: num_pms must be > 0, got %d", c.NumPMs)
	}
	return nil
}

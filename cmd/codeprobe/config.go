package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/wippyai/wasm-jitmem/faultroute"
)

// ConfigFileName is looked up in the working directory when -config is not given.
const ConfigFileName = "codeprobe.toml"

// Config is the probe configuration. Flags override file values.
type Config struct {
	Arena ArenaConfig `toml:"arena"`
	Probe ProbeConfig `toml:"probe"`
	Log   LogConfig   `toml:"log"`
}

// ArenaConfig configures the code arena under test.
type ArenaConfig struct {
	// Routing is the fault-routing strategy: "default", "signal" or "table".
	Routing string `toml:"routing"`

	// MinimumChunk is the smallest mapping in bytes. 0 uses the arena default.
	MinimumChunk int `toml:"minimum_chunk"`

	// Verify records digests at publish and checks them after the calls.
	Verify bool `toml:"verify"`
}

// ProbeConfig describes the synthetic workload.
type ProbeConfig struct {
	// Functions is the number of function bodies to allocate.
	Functions int `toml:"functions"`

	// Size is the size of each body in bytes.
	Size int `toml:"size"`

	// Wasm is an optional module whose export Func is called through wazero.
	Wasm string `toml:"wasm"`
	Func string `toml:"func"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() *Config {
	return &Config{
		Arena: ArenaConfig{Routing: "default"},
		Probe: ProbeConfig{Functions: 10, Size: 100, Func: "run"},
		Log:   LogConfig{Level: "info"},
	}
}

// LoadConfig reads path over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the workload is something the probe can build.
func (c *Config) Validate() error {
	if c.Probe.Functions < 0 {
		return fmt.Errorf("probe.functions must not be negative, got %d", c.Probe.Functions)
	}
	if c.Probe.Functions > 0 && c.Probe.Size < len(stubBody) {
		return fmt.Errorf("probe.size must be at least %d bytes, got %d", len(stubBody), c.Probe.Size)
	}
	if c.Arena.MinimumChunk < 0 {
		return fmt.Errorf("arena.minimum_chunk must not be negative, got %d", c.Arena.MinimumChunk)
	}
	if _, err := faultroute.Parse(c.Arena.Routing); err != nil {
		return fmt.Errorf("arena.routing: %w", err)
	}
	return nil
}

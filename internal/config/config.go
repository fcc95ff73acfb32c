// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-kmac.
//
// go-kmac is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the self-test configuration file: an ordered
// sequence of driver configurations to run the test vectors under, plus the
// entropy-timeout verification table. The sequence is caller-supplied and
// passed by value into the test loop; there is no process-wide mutable
// configuration state.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-kmac/pkg/kmac"
)

// Config is the top-level self-test configuration.
type Config struct {
	Logging LoggingConfig  `yaml:"logging"`
	Driver  []DriverConfig `yaml:"driver_configs"`
	Entropy EntropyConfig  `yaml:"entropy"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// DriverConfig is the file representation of one kmac.Config.
type DriverConfig struct {
	EntropyMode             string   `yaml:"entropy_mode"`
	EntropySeed             []uint32 `yaml:"entropy_seed,omitempty"`
	EntropyRefreshThreshold uint32   `yaml:"entropy_refresh_threshold"`
	EntropyWaitTimer        uint32   `yaml:"entropy_wait_timer"`
	EntropyPrescaler        uint32   `yaml:"entropy_prescaler"`
	MessageBigEndian        bool     `yaml:"message_big_endian"`
	OutputBigEndian         bool     `yaml:"output_big_endian"`
	Sideload                bool     `yaml:"sideload"`
	FastProcess             bool     `yaml:"fast_process"`
	MessageMask             bool     `yaml:"message_mask"`
}

// EntropyConfig carries the entropy-timeout verification table and the
// simulated distributor latency the table was written against.
type EntropyConfig struct {
	RefillLatency int                         `yaml:"refill_latency"`
	Policies      []kmac.EntropyTimeoutPolicy `yaml:"policies"`
}

// ToDriverConfig converts the file representation into a validated
// kmac.Config.
func (d *DriverConfig) ToDriverConfig() (*kmac.Config, error) {
	mode, err := kmac.ParseEntropyMode(d.EntropyMode)
	if err != nil {
		return nil, err
	}
	cfg := &kmac.Config{
		EntropyMode:             mode,
		EntropySeed:             d.EntropySeed,
		EntropyRefreshThreshold: d.EntropyRefreshThreshold,
		EntropyWaitTimer:        d.EntropyWaitTimer,
		EntropyPrescaler:        d.EntropyPrescaler,
		MessageBigEndian:        d.MessageBigEndian,
		OutputBigEndian:         d.OutputBigEndian,
		Sideload:                d.Sideload,
		FastProcess:             d.FastProcess,
		MessageMask:             d.MessageMask,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is supplied: one
// EDN-backed driver configuration and a small timeout verification table.
func Default() *Config {
	return &Config{
		Driver: []DriverConfig{
			{
				EntropyMode:             "edn",
				EntropyRefreshThreshold: 50,
				EntropyWaitTimer:        0xFFFF,
				EntropyPrescaler:        1,
			},
		},
		Entropy: EntropyConfig{
			RefillLatency: 16,
			Policies: []kmac.EntropyTimeoutPolicy{
				{Prescaler: 1, WaitTimer: 8, TimeoutExpected: true},
				{Prescaler: 2, WaitTimer: 4, TimeoutExpected: true},
				{Prescaler: 4, WaitTimer: 4, TimeoutExpected: false},
				{Prescaler: 1, WaitTimer: 1000, TimeoutExpected: false},
			},
		},
	}
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if len(cfg.Driver) == 0 {
		return nil, fmt.Errorf("config: %s defines no driver configurations", path)
	}
	return cfg, nil
}

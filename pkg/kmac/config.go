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

package kmac

import "fmt"

// EntropyMode selects where the accelerator draws the entropy used to
// remask the key shares during operation.
type EntropyMode uint8

const (
	// EntropyModeNone disables entropy consumption. Valid only for unkeyed
	// operation or test configurations that accept unmasked operation.
	EntropyModeNone EntropyMode = iota

	// EntropyModeSoftware seeds the internal entropy generator once from a
	// caller-supplied seed written during configuration.
	EntropyModeSoftware

	// EntropyModeEDN draws entropy from the external entropy distributor,
	// subject to the refresh threshold and wait-timer contract.
	EntropyModeEDN
)

// String returns the configuration-file spelling of the entropy mode.
func (m EntropyMode) String() string {
	switch m {
	case EntropyModeNone:
		return "none"
	case EntropyModeSoftware:
		return "software"
	case EntropyModeEDN:
		return "edn"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// ParseEntropyMode parses the configuration-file spelling of an entropy mode.
func ParseEntropyMode(s string) (EntropyMode, error) {
	switch s {
	case "none", "":
		return EntropyModeNone, nil
	case "software", "sw":
		return EntropyModeSoftware, nil
	case "edn":
		return EntropyModeEDN, nil
	default:
		return 0, fmt.Errorf("%w: unknown entropy mode %q", ErrInvalidConfig, s)
	}
}

// Config contains the operating parameters staged into the accelerator by
// Configure. Once applied, the parameters are the operating contract for all
// subsequent operations until the device is reconfigured.
type Config struct {
	// EntropyMode selects the entropy source used for key remasking.
	EntropyMode EntropyMode `json:"entropy_mode" yaml:"entropy_mode"`

	// EntropySeed seeds the internal generator when EntropyMode is
	// EntropyModeSoftware. Required in that mode, rejected otherwise.
	EntropySeed []uint32 `json:"entropy_seed,omitempty" yaml:"entropy_seed,omitempty"`

	// EntropyRefreshThreshold is the number of keyed operations the
	// accelerator performs before it demands fresh entropy from the
	// distributor. Required and non-zero when EntropyMode is EntropyModeEDN.
	// There is no default; the threshold is deployment policy.
	EntropyRefreshThreshold uint32 `json:"entropy_refresh_threshold" yaml:"entropy_refresh_threshold"`

	// EntropyWaitTimer is the number of prescaled ticks to wait for an
	// entropy refill before declaring a timeout. Required and non-zero when
	// EntropyMode is EntropyModeEDN. 16 bits wide.
	EntropyWaitTimer uint32 `json:"entropy_wait_timer" yaml:"entropy_wait_timer"`

	// EntropyPrescaler scales the wait timer tick. Required and non-zero
	// when EntropyMode is EntropyModeEDN. 10 bits wide.
	EntropyPrescaler uint32 `json:"entropy_prescaler" yaml:"entropy_prescaler"`

	// MessageBigEndian selects big-endian byte order for message queue
	// words. The default is little-endian.
	MessageBigEndian bool `json:"message_big_endian" yaml:"message_big_endian"`

	// OutputBigEndian selects big-endian byte order for digest words read
	// from the state window. The default is little-endian.
	OutputBigEndian bool `json:"output_big_endian" yaml:"output_big_endian"`

	// Sideload selects the key provided by the external key manager instead
	// of the software-written key share registers. Sideloaded keys are
	// masked in hardware and therefore require an entropy mode other than
	// EntropyModeNone.
	Sideload bool `json:"sideload" yaml:"sideload"`

	// FastProcess skips remasking of the message path, consuming entropy
	// only for the key schedule.
	FastProcess bool `json:"fast_process" yaml:"fast_process"`

	// MessageMask enables masking of message words as they enter the queue.
	// Requires an entropy mode other than EntropyModeNone.
	MessageMask bool `json:"message_mask" yaml:"message_mask"`

	// PollBudget bounds the number of status polls on a full message queue
	// before the driver reports ErrQueueStall. Zero selects
	// DefaultPollBudget.
	PollBudget int `json:"poll_budget,omitempty" yaml:"poll_budget,omitempty"`
}

// Validate checks the configuration for completeness and internal
// consistency. It returns an error wrapping ErrInvalidConfig describing the
// first problem found.
func (c *Config) Validate() error {
	switch c.EntropyMode {
	case EntropyModeNone:
		if c.EntropyRefreshThreshold != 0 || c.EntropyWaitTimer != 0 || c.EntropyPrescaler != 0 {
			return fmt.Errorf("%w: entropy timing parameters require entropy mode software or edn", ErrInvalidConfig)
		}
		if len(c.EntropySeed) != 0 {
			return fmt.Errorf("%w: entropy seed requires entropy mode software", ErrInvalidConfig)
		}
	case EntropyModeSoftware:
		if len(c.EntropySeed) == 0 {
			return fmt.Errorf("%w: entropy mode software requires a seed", ErrInvalidConfig)
		}
	case EntropyModeEDN:
		if c.EntropyRefreshThreshold == 0 {
			return fmt.Errorf("%w: entropy mode edn requires a non-zero refresh threshold", ErrInvalidConfig)
		}
		if c.EntropyWaitTimer == 0 || c.EntropyPrescaler == 0 {
			return fmt.Errorf("%w: entropy mode edn requires a non-zero wait timer and prescaler", ErrInvalidConfig)
		}
		if len(c.EntropySeed) != 0 {
			return fmt.Errorf("%w: entropy seed requires entropy mode software", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown entropy mode %d", ErrInvalidConfig, c.EntropyMode)
	}

	if c.EntropyWaitTimer > entropyWaitTimerMask {
		return fmt.Errorf("%w: wait timer %d exceeds %d", ErrInvalidConfig, c.EntropyWaitTimer, entropyWaitTimerMask)
	}
	if c.EntropyPrescaler > entropyPrescalerMask {
		return fmt.Errorf("%w: prescaler %d exceeds %d", ErrInvalidConfig, c.EntropyPrescaler, entropyPrescalerMask)
	}

	if c.Sideload && c.EntropyMode == EntropyModeNone {
		return fmt.Errorf("%w: sideloaded keys are masked in hardware and require an entropy source", ErrInvalidConfig)
	}
	if c.MessageMask && c.EntropyMode == EntropyModeNone {
		return fmt.Errorf("%w: message masking requires an entropy source", ErrInvalidConfig)
	}

	if c.PollBudget < 0 {
		return fmt.Errorf("%w: poll budget must not be negative", ErrInvalidConfig)
	}

	return nil
}

// pollBudget returns the effective queue polling budget.
func (c *Config) pollBudget() int {
	if c.PollBudget == 0 {
		return DefaultPollBudget
	}
	return c.PollBudget
}

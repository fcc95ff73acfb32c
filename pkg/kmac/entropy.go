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

// EntropyTimeoutPolicy describes the expected refill behavior of a
// (prescaler, wait-timer) pair. Verification tables pair driver
// configurations with the outcome the entropy distributor should produce;
// the driver reads the policy but never mutates it.
type EntropyTimeoutPolicy struct {
	// Prescaler scales each wait-timer tick.
	Prescaler uint32 `json:"prescaler" yaml:"prescaler"`

	// WaitTimer is the number of prescaled ticks to wait for a refill.
	WaitTimer uint32 `json:"wait_timer" yaml:"wait_timer"`

	// TimeoutExpected records whether this pair is expected to starve
	// before the distributor delivers.
	TimeoutExpected bool `json:"timeout_expected" yaml:"timeout_expected"`
}

// Budget returns the effective wait budget in status polls. A tick is one
// status poll; the prescaler multiplies the tick count rather than
// stretching wall-clock time, keeping the wait loop bounded and testable.
func (p EntropyTimeoutPolicy) Budget() uint64 {
	return uint64(p.WaitTimer) * uint64(p.Prescaler)
}

// entropyPolicy derives the timeout policy latched by the active
// configuration.
func (c *Config) entropyPolicy() EntropyTimeoutPolicy {
	return EntropyTimeoutPolicy{
		Prescaler: c.EntropyPrescaler,
		WaitTimer: c.EntropyWaitTimer,
	}
}

// awaitEntropy polls the entropy-starved status flag until the distributor
// refills or the policy budget is exhausted. Called whenever the hardware
// reports starvation during start, absorb or squeeze. A zero-budget policy
// with entropy enabled is rejected by Config.Validate and cannot reach this
// loop.
//
// Exhaustion is converted into ErrEntropyTimeout rather than an unbounded
// spin; the caller decides whether the timeout is fatal or an expected,
// asserted outcome.
func (k *KMAC) awaitEntropy(policy EntropyTimeoutPolicy) error {
	budget := policy.Budget()
	for tick := uint64(0); tick < budget; tick++ {
		if k.device.Read32(RegStatus)&StatusEntropyStarvedBit == 0 {
			if tick > 0 {
				k.logger.Debugf("kmac: entropy refilled after %d ticks", tick)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: no refill within %d ticks (prescaler=%d wait_timer=%d)",
		ErrEntropyTimeout, budget, policy.Prescaler, policy.WaitTimer)
}

// entropyStarved reports whether the hardware is currently demanding fresh
// entropy.
func (k *KMAC) entropyStarved() bool {
	if k.config.EntropyMode != EntropyModeEDN {
		return false
	}
	return k.device.Read32(RegStatus)&StatusEntropyStarvedBit != 0
}

// feedEntropy drives one starvation check plus refill wait, escalating a
// timeout into the operation's error state.
func (k *KMAC) feedEntropy(op *OperationState) error {
	if !k.entropyStarved() {
		return nil
	}
	if err := k.awaitEntropy(k.config.entropyPolicy()); err != nil {
		op.fail()
		return err
	}
	return nil
}

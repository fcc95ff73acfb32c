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

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-kmac/internal/config"
	"github.com/jeremyhahn/go-kmac/internal/testutil"
	"github.com/jeremyhahn/go-kmac/pkg/kmac"
	"github.com/jeremyhahn/go-kmac/pkg/kmac/simulator"
	"github.com/jeremyhahn/go-kmac/pkg/logging"
)

// selftestCmd represents the selftest command
var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run the driver self-test against the simulator",
	Long: `Run the published KMAC known-answer vector under every configured
driver configuration, then verify the entropy-timeout table: each
(prescaler, wait-timer) pair must time out exactly when the table says it
should. Exits non-zero on the first failure.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		for i, dc := range cfg.Driver {
			drvCfg, err := dc.ToDriverConfig()
			if err != nil {
				return fmt.Errorf("driver config %d: %w", i, err)
			}
			if err := runVector(logger, drvCfg, testutil.KMACXOF256Sample); err != nil {
				return fmt.Errorf("driver config %d: %w", i, err)
			}
			logger.Infof("selftest: config %d: %s ok", i, testutil.KMACXOF256Sample.Name)
		}

		if err := runEntropyTable(logger, cfg.Entropy); err != nil {
			return err
		}

		logger.Infof("selftest: all checks passed")
		return nil
	},
}

// runVector runs one known-answer vector through a fresh simulator.
func runVector(logger *logging.Logger, drvCfg *kmac.Config, v testutil.KMACVector) error {
	drv, err := kmac.New(&kmac.Params{Device: simulator.New(), Logger: logger})
	if err != nil {
		return err
	}
	if err := drv.Configure(drvCfg); err != nil {
		return err
	}

	key, err := kmac.NewMaskedKey(v.Key, nil)
	if err != nil {
		return err
	}
	cust, err := kmac.NewCustomizationString(v.CustomizationString)
	if err != nil {
		return err
	}

	op, err := drv.NewOperation()
	if err != nil {
		return err
	}
	if err := drv.StartKMAC(op, v.Mode, 0, key, cust); err != nil {
		return err
	}
	if err := drv.Absorb(op, v.Message); err != nil {
		return err
	}

	digest := make([]uint32, len(v.Digest))
	if err := drv.Squeeze(op, digest); err != nil {
		return err
	}
	drv.Reset(op)

	for i := range digest {
		if digest[i] != v.Digest[i] {
			return fmt.Errorf("%s: digest word %d: got %#08x, want %#08x",
				v.Name, i, digest[i], v.Digest[i])
		}
	}
	return nil
}

// runEntropyTable verifies that each policy in the table times out exactly
// when expected, against a distributor with the configured refill latency.
func runEntropyTable(logger *logging.Logger, ec config.EntropyConfig) error {
	for i, policy := range ec.Policies {
		err := runUnderPolicy(logger, ec.RefillLatency, policy)
		timedOut := errors.Is(err, kmac.ErrEntropyTimeout)
		switch {
		case err != nil && !timedOut:
			return fmt.Errorf("entropy policy %d: %w", i, err)
		case timedOut != policy.TimeoutExpected:
			return fmt.Errorf("entropy policy %d (prescaler=%d wait_timer=%d): timeout=%t, expected %t",
				i, policy.Prescaler, policy.WaitTimer, timedOut, policy.TimeoutExpected)
		}
		logger.Infof("selftest: entropy policy %d ok (timeout=%t)", i, timedOut)
	}
	return nil
}

// runUnderPolicy starts one keyed operation under the given timing policy
// and returns the driver's verdict.
func runUnderPolicy(logger *logging.Logger, latency int, policy kmac.EntropyTimeoutPolicy) error {
	sim := simulator.New(simulator.WithEntropyRefillLatency(latency))
	drv, err := kmac.New(&kmac.Params{Device: sim, Logger: logger})
	if err != nil {
		return err
	}
	err = drv.Configure(&kmac.Config{
		EntropyMode:             kmac.EntropyModeEDN,
		EntropyRefreshThreshold: 1,
		EntropyWaitTimer:        policy.WaitTimer,
		EntropyPrescaler:        policy.Prescaler,
	})
	if err != nil {
		return err
	}

	key, err := kmac.NewMaskedKey(testutil.KMACXOF256Sample.Key, nil)
	if err != nil {
		return err
	}
	op, err := drv.NewOperation()
	if err != nil {
		return err
	}
	defer drv.Reset(op)
	return drv.StartKMAC(op, kmac.ModeKMACXOF256, 0, key, nil)
}

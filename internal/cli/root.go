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
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-kmac/internal/config"
	"github.com/jeremyhahn/go-kmac/pkg/logging"
)

var (
	configFile string
	debug      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kmac",
	Short: "go-kmac CLI - masked KMAC accelerator driver tool",
	Long: `go-kmac CLI exercises the masked KMAC/cSHAKE accelerator driver.

The selftest command runs the published NIST KMAC vectors and the
entropy-timeout verification table against the register-level simulator,
exiting 0 only if every check passes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"self-test configuration file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false,
		"verbose driver logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(selftestCmd)
}

// loadConfig returns the file configuration, or the built-in default when
// no file was supplied.
func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	return config.Load(configFile)
}

// newLogger builds the logger for the configured verbosity.
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(debug || cfg.Logging.Debug)
}

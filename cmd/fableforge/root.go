// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Fableforge CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fableforge",
		Short: "Fableforge - A narrative rules engine",
		Long: `Fableforge is a narrative rules engine: authors attach a tabletop-style
ruleset (stats, formulas, checks) to a branching story graph, and players
traverse it in play sessions with evolving character state.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewValidateCmd())

	return cmd
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/fableforge/fableforge/internal/rules"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <ruleset.yaml>",
		Short: "Validate a ruleset document without starting the server",
		Long: `Validates a ruleset YAML document: schema shape, semantic rules, and
every embedded expression. Does NOT require a database connection.
Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines to catch authoring errors early:
  fableforge validate rulesets/fantasy.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
}

func runValidate(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is the user's own argument
	if err != nil {
		return oops.Code("RULESET_READ_FAILED").With("path", path).Wrap(err)
	}

	cfg, err := rules.DecodeDocument(data)
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}

	result := rules.Validate(cfg)

	for _, w := range result.Warnings {
		cmd.Printf("warning: %s\n", w)
	}
	for _, e := range result.Errors {
		cmd.Printf("error: %s\n", e.Error())
	}

	if !result.Valid {
		return oops.
			Code("RULESET_INVALID").
			With("path", path).
			With("error_count", len(result.Errors)).
			Errorf("ruleset is invalid: %d error(s)", len(result.Errors))
	}

	cmd.Printf("%s: valid (version %s, %d stats, %d checks, %d formulas)\n",
		path, cfg.Version, len(cfg.Stats), len(cfg.Checks), len(cfg.Formulas))
	return nil
}

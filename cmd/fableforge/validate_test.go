// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fableforge/fableforge/pkg/errutil"
)

func writeRuleset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ruleset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runValidateCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"validate"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidate_ValidRuleset(t *testing.T) {
	path := writeRuleset(t, `
version: "1.0.0"
stats:
  - id: strength
    name: Strength
    type: number
    defaultValue: 10
checks:
  - id: might
    formula: strength
    successThreshold: 8
`)

	output, err := runValidateCmd(t, path)
	require.NoError(t, err)
	assert.Contains(t, output, "valid")
	assert.Contains(t, output, "1 stats")
	assert.Contains(t, output, "1 checks")
}

func TestValidate_InvalidExpression(t *testing.T) {
	path := writeRuleset(t, `
version: "1.0.0"
stats:
  - id: strength
    name: Strength
    type: number
    defaultValue: 10
checks:
  - id: broken
    formula: "strength +"
    successThreshold: 8
`)

	output, err := runValidateCmd(t, path)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "RULESET_INVALID")
	assert.Contains(t, output, "error:")
}

func TestValidate_UndecodableDocument(t *testing.T) {
	path := writeRuleset(t, "stats: 7\n")

	_, err := runValidateCmd(t, path)
	require.Error(t, err)
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := runValidateCmd(t, filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "RULESET_READ_FAILED")
}

func TestValidate_RequiresExactlyOneArg(t *testing.T) {
	_, err := runValidateCmd(t)
	require.Error(t, err)
}

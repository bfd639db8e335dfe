// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fableforge/fableforge/internal/rules"
)

func floatPtr(f float64) *float64 { return &f }

func validConfig() *rules.TemplateConfig {
	return &rules.TemplateConfig{
		Version: "1.0.0",
		Stats: []rules.StatDefinition{
			{ID: "strength", Name: "Strength", Type: rules.StatNumber, DefaultValue: 10.0, MinValue: floatPtr(0), MaxValue: floatPtr(20)},
			{ID: "agility", Name: "Agility", Type: rules.StatNumber, DefaultValue: 8.0},
			{ID: "blessed", Name: "Blessed", Type: rules.StatBoolean, DefaultValue: false},
		},
		Formulas: []rules.Formula{
			{ID: "carry", Expression: "strength * 2", Variables: []string{"strength"}, ReturnType: rules.ReturnNumber},
		},
		Checks: []rules.CheckDefinition{
			{
				ID:               "might",
				Formula:          "strength + floor(agility / 2)",
				SuccessThreshold: 8,
				Modifiers: []rules.Modifier{
					{ID: "blessing", Type: rules.ModifierConditional, Value: 5, Condition: "blessed == true"},
				},
			},
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	result := rules.Validate(validConfig())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidate_Deterministic(t *testing.T) {
	cfg := validConfig()
	cfg.Version = "not-a-version"
	cfg.Stats = append(cfg.Stats, rules.StatDefinition{ID: "strength", Name: "Dup", Type: rules.StatNumber})
	cfg.Checks[0].Formula = "strength + luck"

	first := rules.Validate(cfg)
	second := rules.Validate(cfg)
	assert.Equal(t, first, second)
}

func TestValidate_Version(t *testing.T) {
	tests := []struct {
		version string
		valid   bool
	}{
		{"1.0.0", true},
		{"0.1.2", true},
		{"10.20.30", true},
		{"", false},
		{"1.0", false},
		{"v1.0.0", false},
		{"1.0.0-beta", false},
		{"abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			cfg := validConfig()
			cfg.Version = tt.version
			result := rules.Validate(cfg)
			if tt.valid {
				assert.True(t, result.Valid)
			} else {
				require.False(t, result.Valid)
				assert.Equal(t, rules.CodeInvalidVersion, result.Errors[0].Code)
			}
		})
	}
}

func TestValidate_Stats(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*rules.TemplateConfig)
		wantCode string
	}{
		{
			name:     "empty id",
			mutate:   func(c *rules.TemplateConfig) { c.Stats[0].ID = "" },
			wantCode: rules.CodeInvalidStat,
		},
		{
			name:     "empty name",
			mutate:   func(c *rules.TemplateConfig) { c.Stats[0].Name = "  " },
			wantCode: rules.CodeInvalidStat,
		},
		{
			name:     "bad type",
			mutate:   func(c *rules.TemplateConfig) { c.Stats[0].Type = "decimal" },
			wantCode: rules.CodeInvalidStat,
		},
		{
			name:     "numeric default mismatch",
			mutate:   func(c *rules.TemplateConfig) { c.Stats[0].DefaultValue = "ten" },
			wantCode: rules.CodeInvalidStat,
		},
		{
			name:     "min above max",
			mutate:   func(c *rules.TemplateConfig) { c.Stats[0].MinValue = floatPtr(30) },
			wantCode: rules.CodeInvalidStat,
		},
		{
			name:     "reserved word id",
			mutate:   func(c *rules.TemplateConfig) { c.Stats[0].ID = "floor" },
			wantCode: rules.CodeInvalidStat,
		},
		{
			name: "duplicate ids reported once",
			mutate: func(c *rules.TemplateConfig) {
				c.Stats = append(c.Stats,
					rules.StatDefinition{ID: "strength", Name: "Dup1", Type: rules.StatNumber},
					rules.StatDefinition{ID: "strength", Name: "Dup2", Type: rules.StatNumber})
			},
			wantCode: rules.CodeDuplicateStatIDs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			result := rules.Validate(cfg)
			require.False(t, result.Valid)

			codes := make([]string, 0, len(result.Errors))
			for _, e := range result.Errors {
				codes = append(codes, e.Code)
			}
			assert.Contains(t, codes, tt.wantCode)
		})
	}
}

func TestValidate_DuplicatesReportedOnce(t *testing.T) {
	cfg := validConfig()
	cfg.Stats = append(cfg.Stats,
		rules.StatDefinition{ID: "strength", Name: "Dup1", Type: rules.StatNumber},
		rules.StatDefinition{ID: "agility", Name: "Dup2", Type: rules.StatNumber})

	result := rules.Validate(cfg)
	require.False(t, result.Valid)

	var dupErrors []rules.ValidationError
	for _, e := range result.Errors {
		if e.Code == rules.CodeDuplicateStatIDs {
			dupErrors = append(dupErrors, e)
		}
	}
	require.Len(t, dupErrors, 1, "duplicates are collected and reported once")
	assert.Contains(t, dupErrors[0].Message, "agility")
	assert.Contains(t, dupErrors[0].Message, "strength")
}

func TestValidate_UndefinedVariables(t *testing.T) {
	cfg := validConfig()
	cfg.Checks[0].Formula = "strength + luck + karma"
	cfg.Formulas[0].Expression = "strength * fate"
	cfg.Checks[0].Modifiers[0].Condition = "doom > 1"

	result := rules.Validate(cfg)
	require.False(t, result.Valid)

	var fields []string
	for _, e := range result.Errors {
		if e.Code == rules.CodeUndefinedVariables {
			fields = append(fields, e.Field)
		}
	}
	// Errors accumulate: all three defective expressions are reported.
	assert.Len(t, fields, 3)
}

func TestValidate_WhitelistNotUndefined(t *testing.T) {
	cfg := validConfig()
	cfg.Checks[0].Formula = "Math.max(strength, floor(agility)) + min(1, 2)"
	result := rules.Validate(cfg)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestValidate_FormulaAndModifierDefects(t *testing.T) {
	cfg := validConfig()
	cfg.Formulas[0].ReturnType = "integer"
	cfg.Checks[0].Modifiers[0].Type = "exponential"
	cfg.Checks = append(cfg.Checks, rules.CheckDefinition{
		ID:               "broken",
		Formula:          "strength +",
		SuccessThreshold: 1,
	})

	result := rules.Validate(cfg)
	require.False(t, result.Valid)

	codes := map[string]bool{}
	for _, e := range result.Errors {
		codes[e.Code] = true
	}
	assert.True(t, codes[rules.CodeInvalidReturnType])
	assert.True(t, codes[rules.CodeInvalidModifier])
	assert.True(t, codes[rules.CodeInvalidExpression])
}

func TestValidate_ConditionalModifierRequiresCondition(t *testing.T) {
	cfg := validConfig()
	cfg.Checks[0].Modifiers[0].Condition = ""

	result := rules.Validate(cfg)
	require.False(t, result.Valid)
	assert.Equal(t, rules.CodeInvalidModifier, result.Errors[0].Code)
}

func TestValidate_AdvisoryVariablesWarn(t *testing.T) {
	cfg := validConfig()
	cfg.Formulas[0].Variables = []string{"strength", "agility"}

	result := rules.Validate(cfg)
	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "agility")
}

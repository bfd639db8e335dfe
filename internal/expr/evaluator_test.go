// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package expr_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fableforge/fableforge/internal/expr"
)

func TestEvaluate_Arithmetic(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		vars       map[string]any
		want       any
	}{
		{"addition", "1 + 2", nil, 3.0},
		{"precedence", "1 + 2 * 3", nil, 7.0},
		{"parentheses", "(1 + 2) * 3", nil, 9.0},
		{"subtraction chain", "10 - 3 - 2", nil, 5.0},
		{"division", "10 / 4", nil, 2.5},
		{"modulo", "10 % 3", nil, 1.0},
		{"unary minus", "-5 + 10", nil, 5.0},
		{"unary minus on variable", "-x", map[string]any{"x": 4}, -4.0},
		{"variable lookup", "strength + 2", map[string]any{"strength": 10}, 12.0},
		{"int variable coerced", "hp / 2", map[string]any{"hp": 7}, 3.5},
		{"float literal", "1.5 * 2", nil, 3.0},
		{"nested functions", "max(1, min(5, 3))", nil, 3.0},
		{"floor", "floor(3.7)", nil, 3.0},
		{"ceil", "ceil(3.1)", nil, 4.0},
		{"round", "round(2.5)", nil, 3.0},
		{"abs", "abs(-8)", nil, 8.0},
		{"sqrt", "sqrt(16)", nil, 4.0},
		{"pow", "pow(2, 10)", nil, 1024.0},
		{"math namespace", "Math.floor(3.9)", nil, 3.0},
		{"math namespace nested", "Math.max(1, 2, 3)", nil, 3.0},
		{"function of variables", "floor(strength / 2)", map[string]any{"strength": 7}, 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expr.Evaluate(tt.expression, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_Boolean(t *testing.T) {
	vars := map[string]any{"strength": 10, "agility": 3, "blessed": true, "name": "Alaric"}

	tests := []struct {
		name       string
		expression string
		want       any
	}{
		{"greater", "strength > 5", true},
		{"greater equal boundary", "strength >= 10", true},
		{"less", "agility < 2", false},
		{"equality", "strength == 10", true},
		{"inequality", "agility != 3", false},
		{"and", "strength > 5 && agility > 1", true},
		{"and short-circuit false", "strength > 50 && agility > 1", false},
		{"or", "strength > 50 || agility > 1", true},
		{"not", "!(strength > 50)", true},
		{"bool variable", "blessed", true},
		{"bool comparison", "blessed == true", true},
		{"string equality", `name == "Alaric"`, true},
		{"string inequality", `name != "Brynn"`, true},
		{"true literal", "true", true},
		{"false literal", "false", false},
		{"null equality", "null == null", true},
		{"mixed precedence", "strength + 5 > agility * 4", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expr.Evaluate(tt.expression, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Both "str" and "strength" in scope must never corrupt each other: name
// resolution happens per AST identifier, not by textual substitution.
func TestEvaluate_SubstitutionSafety(t *testing.T) {
	got, err := expr.Evaluate("strength + 1", map[string]any{"str": 1, "strength": 10})
	require.NoError(t, err)
	assert.Equal(t, 11.0, got)

	got, err = expr.Evaluate("str + strength", map[string]any{"str": 1, "strength": 10})
	require.NoError(t, err)
	assert.Equal(t, 11.0, got)
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		vars       map[string]any
		errMsg     string
	}{
		{"undefined identifier", "strength + luck", map[string]any{"strength": 10}, `undefined identifier "luck"`},
		{"unknown function", "explode(1)", nil, `unknown function "explode"`},
		{"unknown namespace", "Sys.floor(1)", nil, `unknown namespace "Sys"`},
		{"division by zero", "1 / 0", nil, "division by zero"},
		{"modulo by zero", "1 % 0", nil, "division by zero"},
		{"pow arity", "pow(2)", nil, "exactly two arguments"},
		{"floor arity", "floor(1, 2)", nil, "exactly one argument"},
		{"min arity", "min()", nil, "at least one argument"},
		{"sqrt negative", "sqrt(-1)", nil, "sqrt of negative"},
		{"boolean plus number", "true + 1", nil, "numeric operands"},
		{"number and of bool", "1 && true", nil, "not a boolean"},
		{"string less than number", `"abc" < 3`, nil, "cannot compare"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := expr.Evaluate(tt.expression, tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)

			var evalErr *expr.EvalError
			assert.ErrorAs(t, err, &evalErr)
		})
	}
}

func TestEvaluate_NoMutationOfVars(t *testing.T) {
	vars := map[string]any{"strength": 10}
	_, err := expr.Evaluate("strength * 2", vars)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"strength": 10}, vars)
}

func TestEvaluateBool(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		vars       map[string]any
		want       bool
		wantErr    bool
	}{
		{"boolean result", "2 > 1", nil, true, false},
		{"numeric truthy", "3", nil, true, false},
		{"numeric zero falsy", "0", nil, false, false},
		{"null falsy", "null", nil, false, false},
		{"string is an error", `"yes"`, nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expr.EvaluateBool(tt.expression, tt.vars)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateNumber(t *testing.T) {
	got, err := expr.EvaluateNumber("strength + 5", map[string]any{"strength": 10})
	require.NoError(t, err)
	assert.Equal(t, 15.0, got)

	// Booleans coerce to 0/1 so threshold comparisons on boolean formulas work.
	got, err = expr.EvaluateNumber("true", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	_, err = expr.EvaluateNumber(`"abc"`, nil)
	require.Error(t, err)
}

func TestEvaluate_Bounds(t *testing.T) {
	t.Run("oversized expression rejected", func(t *testing.T) {
		long := "1" + strings.Repeat(" + 1", expr.MaxExpressionLength)
		_, err := expr.Evaluate(long, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "maximum length")
	})

	t.Run("deep nesting rejected", func(t *testing.T) {
		deep := strings.Repeat("(", 100) + "1" + strings.Repeat(")", 100)
		_, err := expr.Parse(deep)
		require.Error(t, err)
	})
}

func TestExpression_Reuse(t *testing.T) {
	ast, err := expr.Parse("strength * 2")
	require.NoError(t, err)
	assert.Equal(t, "strength * 2", ast.String())

	for _, strength := range []int{1, 5, 10} {
		got, err := ast.Evaluate(map[string]any{"strength": strength})
		require.NoError(t, err)
		assert.Equal(t, float64(strength*2), got)
	}
}

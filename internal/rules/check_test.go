// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fableforge/fableforge/internal/rules"
)

func stateWith(stats map[string]any) *rules.CharacterState {
	state := rules.NewCharacterState("tpl", nil)
	for k, v := range stats {
		state.Stats[k] = v
	}
	return state
}

func TestPerformCheck_Basic(t *testing.T) {
	check := rules.CheckDefinition{
		ID:               "might",
		Formula:          "strength",
		SuccessThreshold: 8,
	}
	state := stateWith(map[string]any{"strength": 10.0})

	result, err := rules.PerformCheck(check, state)
	require.NoError(t, err)

	assert.Equal(t, "might", result.CheckID)
	assert.Equal(t, 10.0, result.Roll)
	assert.Equal(t, 10.0, result.Total)
	assert.Equal(t, 8.0, result.Threshold)
	assert.True(t, result.Success)
	assert.False(t, result.Critical)
	assert.Empty(t, result.Modifiers)
}

func TestPerformCheck_ConditionalModifier(t *testing.T) {
	check := rules.CheckDefinition{
		ID:               "might",
		Formula:          "strength",
		SuccessThreshold: 8,
		Modifiers: []rules.Modifier{
			{ID: "surge", Type: rules.ModifierAdditive, Value: 5, Condition: "strength > 5"},
		},
	}
	state := stateWith(map[string]any{"strength": 10.0})

	result, err := rules.PerformCheck(check, state)
	require.NoError(t, err)

	assert.Equal(t, 10.0, result.Roll)
	assert.Equal(t, 15.0, result.Total)
	require.Len(t, result.Modifiers, 1)
	assert.True(t, result.Modifiers[0].Applied)
}

func TestPerformCheck_ModifierOrderAndTypes(t *testing.T) {
	check := rules.CheckDefinition{
		ID:               "combo",
		Formula:          "strength",
		SuccessThreshold: 10,
		Modifiers: []rules.Modifier{
			{ID: "add", Type: rules.ModifierAdditive, Value: 2},
			{ID: "double", Type: rules.ModifierMultiplicative, Value: 2},
		},
	}
	state := stateWith(map[string]any{"strength": 4.0})

	result, err := rules.PerformCheck(check, state)
	require.NoError(t, err)

	// Declaration order: (4 + 2) * 2, not 4*2 + 2.
	assert.Equal(t, 12.0, result.Total)
	assert.True(t, result.Success)
}

func TestPerformCheck_ModifierFailSafe(t *testing.T) {
	check := rules.CheckDefinition{
		ID:               "might",
		Formula:          "strength",
		SuccessThreshold: 8,
		Modifiers: []rules.Modifier{
			{ID: "broken", Type: rules.ModifierAdditive, Value: 100, Condition: "nonexistent > 1"},
			{ID: "unmet", Type: rules.ModifierAdditive, Value: 50, Condition: "strength > 99"},
			{ID: "fine", Type: rules.ModifierAdditive, Value: 1},
		},
	}
	state := stateWith(map[string]any{"strength": 10.0})

	result, err := rules.PerformCheck(check, state)
	require.NoError(t, err, "a malformed modifier never aborts the check")

	require.Len(t, result.Modifiers, 3, "every modifier is recorded")
	assert.False(t, result.Modifiers[0].Applied)
	assert.Contains(t, result.Modifiers[0].Reason, "failed to evaluate")
	assert.False(t, result.Modifiers[1].Applied)
	assert.Equal(t, "condition not met", result.Modifiers[1].Reason)
	assert.True(t, result.Modifiers[2].Applied)

	assert.Equal(t, 11.0, result.Total)
}

func TestPerformCheck_BaseFormulaFailureIsFatal(t *testing.T) {
	check := rules.CheckDefinition{
		ID:               "doomed",
		Formula:          "strength + luck",
		SuccessThreshold: 8,
	}
	state := stateWith(map[string]any{"strength": 10.0})

	_, err := rules.PerformCheck(check, state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "luck")
}

func TestPerformCheck_Criticals(t *testing.T) {
	tests := []struct {
		name         string
		strength     float64
		wantSuccess  bool
		wantCritical bool
	}{
		{"plain failure", 5, false, false},
		{"critical failure", 2, false, true},
		{"plain success", 10, true, false},
		{"critical success", 18, true, true},
		{"critical success boundary", 15, true, true},
		{"critical failure boundary", 3, false, true},
	}

	check := rules.CheckDefinition{
		ID:               "might",
		Formula:          "strength",
		SuccessThreshold: 8,
		CriticalSuccess:  floatPtr(15),
		CriticalFailure:  floatPtr(3),
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := rules.PerformCheck(check, stateWith(map[string]any{"strength": tt.strength}))
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantCritical, result.Critical)
		})
	}
}

// Increasing a positively referenced stat never decreases the total for a
// purely additive modifier set.
func TestPerformCheck_Monotonicity(t *testing.T) {
	check := rules.CheckDefinition{
		ID:               "might",
		Formula:          "strength + floor(strength / 2)",
		SuccessThreshold: 8,
		Modifiers: []rules.Modifier{
			{ID: "bonus", Type: rules.ModifierAdditive, Value: 3, Condition: "strength > 4"},
		},
	}

	prev := -1.0
	for strength := 0.0; strength <= 20; strength++ {
		result, err := rules.PerformCheck(check, stateWith(map[string]any{"strength": strength}))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.Total, prev, "strength %v", strength)
		prev = result.Total
	}
}

func TestPerformCheck_BooleanFormula(t *testing.T) {
	check := rules.CheckDefinition{
		ID:               "blessed",
		Formula:          "blessed == true",
		SuccessThreshold: 1,
	}
	state := rules.NewCharacterState("tpl", nil)
	state.Flags["blessed"] = true

	result, err := rules.PerformCheck(check, state)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Roll)
	assert.True(t, result.Success)
}

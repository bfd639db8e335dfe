// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package rules

import (
	"github.com/samber/oops"

	"github.com/fableforge/fableforge/internal/expr"
)

// ModifierResult records the outcome of one modifier during check
// resolution. Every declared modifier gets a result, applied or not.
type ModifierResult struct {
	ModifierID string  `json:"modifierId"`
	Value      float64 `json:"value"`
	Applied    bool    `json:"applied"`
	Reason     string  `json:"reason,omitempty"`
}

// CheckResult is the full outcome of resolving a check: the base roll, the
// modifier trail, and the pass/fail/critical verdict.
type CheckResult struct {
	CheckID   string           `json:"checkId"`
	Roll      float64          `json:"roll"`
	Threshold float64          `json:"threshold"`
	Success   bool             `json:"success"`
	Critical  bool             `json:"critical"`
	Modifiers []ModifierResult `json:"modifiers"`
	Total     float64          `json:"total"`
}

// PerformCheck resolves a check against the character's current state.
//
// The base formula is evaluated over the state's eval context; a failure
// there fails the whole check. Modifiers are then applied in declaration
// order: a modifier whose condition fails to evaluate is recorded as not
// applied and never aborts the check (a malformed modifier degrades, it
// does not block play).
func PerformCheck(check CheckDefinition, state *CharacterState) (*CheckResult, error) {
	vars := state.EvalContext()

	roll, err := expr.EvaluateNumber(check.Formula, vars)
	if err != nil {
		return nil, oops.Code("CHECK_FORMULA_FAILED").
			With("check_id", check.ID).
			With("formula", check.Formula).
			Wrap(err)
	}

	result := &CheckResult{
		CheckID:   check.ID,
		Roll:      roll,
		Threshold: check.SuccessThreshold,
		Modifiers: make([]ModifierResult, 0, len(check.Modifiers)),
		Total:     roll,
	}

	for _, m := range check.Modifiers {
		mr := ModifierResult{ModifierID: m.ID, Value: m.Value}

		if m.Condition != "" {
			ok, err := expr.EvaluateBool(m.Condition, vars)
			switch {
			case err != nil:
				mr.Reason = "condition failed to evaluate: " + err.Error()
			case !ok:
				mr.Reason = "condition not met"
			default:
				mr.Applied = true
			}
		} else {
			mr.Applied = true
		}

		if mr.Applied {
			switch m.Type {
			case ModifierMultiplicative:
				result.Total *= m.Value
			case ModifierAdditive, ModifierConditional:
				result.Total += m.Value
			default:
				mr.Applied = false
				mr.Reason = "unknown modifier type " + string(m.Type)
			}
		}

		result.Modifiers = append(result.Modifiers, mr)
	}

	result.Success = result.Total >= check.SuccessThreshold
	result.Critical = (check.CriticalSuccess != nil && result.Total >= *check.CriticalSuccess) ||
		(check.CriticalFailure != nil && result.Total <= *check.CriticalFailure)

	return result, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

// Package rules models author-supplied rulesets (stats, formulas, checks),
// validates them, and resolves checks against character state. A ruleset is
// immutable once validated and may be shared across concurrent sessions.
package rules

import "fmt"

// StatType enumerates the value types a stat definition may declare.
type StatType string

const (
	StatNumber  StatType = "number"
	StatString  StatType = "string"
	StatBoolean StatType = "boolean"
	StatArray   StatType = "array"
)

// Validate checks that the stat type is one of the allowed values.
func (t StatType) Validate() error {
	switch t {
	case StatNumber, StatString, StatBoolean, StatArray:
		return nil
	default:
		return fmt.Errorf("invalid stat type %q", string(t))
	}
}

// ReturnType enumerates the result types a formula may declare.
type ReturnType string

const (
	ReturnNumber  ReturnType = "number"
	ReturnBoolean ReturnType = "boolean"
	ReturnString  ReturnType = "string"
)

// Validate checks that the return type is one of the allowed values.
func (t ReturnType) Validate() error {
	switch t {
	case ReturnNumber, ReturnBoolean, ReturnString:
		return nil
	default:
		return fmt.Errorf("invalid return type %q", string(t))
	}
}

// ModifierType enumerates how a modifier adjusts a check total.
type ModifierType string

const (
	// ModifierAdditive adds the modifier value to the running total.
	ModifierAdditive ModifierType = "additive"
	// ModifierMultiplicative multiplies the running total by the value.
	ModifierMultiplicative ModifierType = "multiplicative"
	// ModifierConditional adds the value only when the condition holds.
	ModifierConditional ModifierType = "conditional"
)

// Validate checks that the modifier type is one of the allowed values.
func (t ModifierType) Validate() error {
	switch t {
	case ModifierAdditive, ModifierMultiplicative, ModifierConditional:
		return nil
	default:
		return fmt.Errorf("invalid modifier type %q", string(t))
	}
}

// TemplateConfig is an author-supplied ruleset: the stats a character starts
// with, the formulas derived from them, and the checks players can trigger.
// Identified by an opaque template id referenced from a story.
type TemplateConfig struct {
	Version  string            `json:"version" yaml:"version" jsonschema:"required,pattern=^\\d+\\.\\d+\\.\\d+$"`
	Stats    []StatDefinition  `json:"stats" yaml:"stats"`
	Checks   []CheckDefinition `json:"checks,omitempty" yaml:"checks,omitempty"`
	Formulas []Formula         `json:"formulas,omitempty" yaml:"formulas,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// StatDefinition declares one character stat and its starting value.
type StatDefinition struct {
	ID            string   `json:"id" yaml:"id" jsonschema:"required"`
	Name          string   `json:"name" yaml:"name" jsonschema:"required"`
	Type          StatType `json:"type" yaml:"type" jsonschema:"required,enum=number,enum=string,enum=boolean,enum=array"`
	DefaultValue  any      `json:"defaultValue" yaml:"defaultValue"`
	MinValue      *float64 `json:"minValue,omitempty" yaml:"minValue,omitempty"`
	MaxValue      *float64 `json:"maxValue,omitempty" yaml:"maxValue,omitempty"`
	Category      string   `json:"category,omitempty" yaml:"category,omitempty"`
	DisplayFormat string   `json:"displayFormat,omitempty" yaml:"displayFormat,omitempty"`
}

// Formula is a named derived expression over stat ids. Variables lists the
// declared stat dependencies; it is advisory and cross-checked against the
// expression during validation.
type Formula struct {
	ID         string     `json:"id" yaml:"id" jsonschema:"required"`
	Expression string     `json:"expression" yaml:"expression" jsonschema:"required"`
	Variables  []string   `json:"variables,omitempty" yaml:"variables,omitempty"`
	ReturnType ReturnType `json:"returnType" yaml:"returnType" jsonschema:"required,enum=number,enum=boolean,enum=string"`
}

// CheckDefinition is a named pass/fail evaluation: a formula rolled against
// a threshold, adjusted by modifiers in declaration order.
type CheckDefinition struct {
	ID               string     `json:"id" yaml:"id" jsonschema:"required"`
	Formula          string     `json:"formula" yaml:"formula" jsonschema:"required"`
	SuccessThreshold float64    `json:"successThreshold" yaml:"successThreshold"`
	CriticalSuccess  *float64   `json:"criticalSuccess,omitempty" yaml:"criticalSuccess,omitempty"`
	CriticalFailure  *float64   `json:"criticalFailure,omitempty" yaml:"criticalFailure,omitempty"`
	Modifiers        []Modifier `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
}

// Modifier is a conditional adjustment applied during check resolution.
type Modifier struct {
	ID        string       `json:"id" yaml:"id" jsonschema:"required"`
	Type      ModifierType `json:"type" yaml:"type" jsonschema:"required,enum=additive,enum=multiplicative,enum=conditional"`
	Value     float64      `json:"value" yaml:"value"`
	Condition string       `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// StatIDs returns the set of stat ids declared by the ruleset.
func (c *TemplateConfig) StatIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(c.Stats))
	for _, s := range c.Stats {
		ids[s.ID] = struct{}{}
	}
	return ids
}

// Check returns the check definition with the given id.
func (c *TemplateConfig) Check(id string) (CheckDefinition, bool) {
	for _, ch := range c.Checks {
		if ch.ID == id {
			return ch, true
		}
	}
	return CheckDefinition{}, false
}

// FormulaByID returns the formula with the given id.
func (c *TemplateConfig) FormulaByID(id string) (Formula, bool) {
	for _, f := range c.Formulas {
		if f.ID == id {
			return f, true
		}
	}
	return Formula{}, false
}

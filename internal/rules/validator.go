// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/fableforge/fableforge/internal/expr"
)

// Validation error codes.
const (
	CodeInvalidVersion     = "INVALID_VERSION"
	CodeInvalidStat        = "INVALID_STAT"
	CodeDuplicateStatIDs   = "DUPLICATE_STAT_IDS"
	CodeUndefinedVariables = "UNDEFINED_VARIABLES"
	CodeInvalidThreshold   = "INVALID_THRESHOLD"
	CodeInvalidReturnType  = "INVALID_RETURN_TYPE"
	CodeInvalidModifier    = "INVALID_MODIFIER"
	CodeInvalidExpression  = "INVALID_EXPRESSION"
)

// ValidationError is one defect found in a ruleset.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Code, e.Field, e.Message)
}

// ValidationResult collects every defect and advisory found in one pass.
// Validation never short-circuits: authors get the complete list at once.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings,omitempty"`
}

func (r *ValidationResult) addError(code, field, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{
		Code:    code,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate statically checks a ruleset before it can be attached to a story.
// It is pure: the same config always yields the same result, with stable
// error ordering. It never returns a Go error; structural and semantic
// defects all land in the result.
func Validate(cfg *TemplateConfig) *ValidationResult {
	result := &ValidationResult{}
	if cfg == nil {
		result.addError(CodeInvalidStat, "config", "ruleset is required")
		return result
	}

	validateVersion(cfg.Version, result)

	statIDs := validateStats(cfg.Stats, result)

	for i, f := range cfg.Formulas {
		field := fmt.Sprintf("formulas[%d]", i)
		if strings.TrimSpace(f.ID) == "" {
			result.addError(CodeInvalidExpression, field+".id", "formula id cannot be empty")
		}
		if err := f.ReturnType.Validate(); err != nil {
			result.addError(CodeInvalidReturnType, field+".returnType", "%v", err)
		}
		validateExpression(f.Expression, field+".expression", statIDs, result)
		validateDeclaredVariables(f, field, result)
	}

	for i, ch := range cfg.Checks {
		field := fmt.Sprintf("checks[%d]", i)
		if strings.TrimSpace(ch.ID) == "" {
			result.addError(CodeInvalidExpression, field+".id", "check id cannot be empty")
		}
		validateExpression(ch.Formula, field+".formula", statIDs, result)
		if ch.CriticalSuccess != nil && *ch.CriticalSuccess < ch.SuccessThreshold {
			result.addWarning("%s: criticalSuccess %v is below successThreshold %v", field, *ch.CriticalSuccess, ch.SuccessThreshold)
		}
		for j, m := range ch.Modifiers {
			mfield := fmt.Sprintf("%s.modifiers[%d]", field, j)
			if strings.TrimSpace(m.ID) == "" {
				result.addError(CodeInvalidModifier, mfield+".id", "modifier id cannot be empty")
			}
			if err := m.Type.Validate(); err != nil {
				result.addError(CodeInvalidModifier, mfield+".type", "%v", err)
			}
			if m.Type == ModifierConditional && strings.TrimSpace(m.Condition) == "" {
				result.addError(CodeInvalidModifier, mfield+".condition", "conditional modifier requires a condition")
			}
			if m.Condition != "" {
				validateExpression(m.Condition, mfield+".condition", statIDs, result)
			}
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// validateVersion enforces the MAJOR.MINOR.PATCH pattern via a strict
// semver parse: "1.0" or "v1.0.0" are rejected.
func validateVersion(version string, result *ValidationResult) {
	if version == "" {
		result.addError(CodeInvalidVersion, "version", "version is required")
		return
	}
	v, err := semver.StrictNewVersion(version)
	if err != nil {
		result.addError(CodeInvalidVersion, "version", "%q is not a valid semantic version: %v", version, err)
		return
	}
	// Rulesets use plain MAJOR.MINOR.PATCH; prerelease and build metadata
	// would break the persistence round-trip contract with older documents.
	if v.Prerelease() != "" || v.Metadata() != "" {
		result.addError(CodeInvalidVersion, "version", "%q must be plain MAJOR.MINOR.PATCH", version)
	}
}

// validateStats checks each stat definition and reports duplicate ids once.
// Returns the set of declared stat ids for expression cross-checking;
// the set includes duplicates and invalid stats so undefined-variable
// reporting stays focused on genuinely unknown names.
func validateStats(stats []StatDefinition, result *ValidationResult) map[string]struct{} {
	ids := make(map[string]struct{}, len(stats))
	counts := make(map[string]int, len(stats))

	for i, s := range stats {
		field := fmt.Sprintf("stats[%d]", i)

		if strings.TrimSpace(s.ID) == "" {
			result.addError(CodeInvalidStat, field+".id", "stat id cannot be empty")
		} else {
			counts[s.ID]++
			ids[s.ID] = struct{}{}
			if expr.IsReservedWord(s.ID) {
				result.addError(CodeInvalidStat, field+".id", "stat id %q is a reserved word", s.ID)
			}
		}
		if strings.TrimSpace(s.Name) == "" {
			result.addError(CodeInvalidStat, field+".name", "stat name cannot be empty")
		}
		if err := s.Type.Validate(); err != nil {
			result.addError(CodeInvalidStat, field+".type", "%v", err)
		}

		// Default-value type consistency is enforced strictly for numbers
		// only; other types accept whatever survives JSON decoding.
		if s.Type == StatNumber && s.DefaultValue != nil {
			if _, ok := toNumber(s.DefaultValue); !ok {
				result.addError(CodeInvalidStat, field+".defaultValue",
					"default value %v is not a number", s.DefaultValue)
			}
		}

		if s.MinValue != nil && s.MaxValue != nil && *s.MinValue > *s.MaxValue {
			result.addError(CodeInvalidStat, field,
				"minValue %v exceeds maxValue %v", *s.MinValue, *s.MaxValue)
		}
	}

	var dupes []string
	for id, n := range counts {
		if n > 1 {
			dupes = append(dupes, id)
		}
	}
	if len(dupes) > 0 {
		sort.Strings(dupes)
		result.addError(CodeDuplicateStatIDs, "stats",
			"duplicate stat ids: %s", strings.Join(dupes, ", "))
	}

	return ids
}

// validateExpression reports identifiers that are neither stat ids nor part
// of the literal/function whitelist, plus outright parse failures.
func validateExpression(expression, field string, statIDs map[string]struct{}, result *ValidationResult) {
	if strings.TrimSpace(expression) == "" {
		result.addError(CodeInvalidExpression, field, "expression cannot be empty")
		return
	}

	var undefined []string
	for _, ident := range expr.Identifiers(expression) {
		if _, ok := statIDs[ident]; !ok {
			undefined = append(undefined, ident)
		}
	}
	if len(undefined) > 0 {
		result.addError(CodeUndefinedVariables, field,
			"undefined variables: %s", strings.Join(undefined, ", "))
	}

	if _, err := expr.Parse(expression); err != nil {
		result.addError(CodeInvalidExpression, field, "%v", err)
	}
}

// validateDeclaredVariables cross-checks a formula's advisory Variables list
// against the identifiers its expression actually references.
func validateDeclaredVariables(f Formula, field string, result *ValidationResult) {
	if len(f.Variables) == 0 {
		return
	}
	referenced := make(map[string]struct{})
	for _, ident := range expr.Identifiers(f.Expression) {
		referenced[ident] = struct{}{}
	}
	for _, v := range f.Variables {
		if _, ok := referenced[v]; !ok {
			result.addWarning("%s: declared variable %q is not referenced by the expression", field, v)
		}
	}
}

// toNumber accepts any numeric type JSON or YAML decoding may produce.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

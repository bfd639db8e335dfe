// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package expr

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/samber/oops"
)

// Limits for expression parsing and evaluation. A pathological expression
// must fail with an error rather than stall a worker.
const (
	// MaxExpressionLength is the maximum length of an expression string.
	MaxExpressionLength = 1024

	// MaxNestingDepth is the maximum AST nesting depth.
	MaxNestingDepth = 64

	// MaxEvalNodes is the maximum number of AST nodes a single evaluation
	// may visit (instruction-count cap).
	MaxEvalNodes = 10000
)

// parser is the singleton participle parser instance.
var parser *participle.Parser[Expression]

func init() {
	var err error
	parser, err = NewParser()
	if err != nil {
		panic(fmt.Sprintf("failed to build expression parser: %v", err))
	}
}

// ParseError reports a syntactically invalid expression.
type ParseError struct {
	Expression string
	Message    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Expression, e.Message)
}

// EvalError reports an expression that parsed but could not be evaluated:
// an unresolved identifier, an unknown function, a type mismatch, division
// by zero, or an exceeded evaluation bound.
type EvalError struct {
	Expression string
	Message    string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluate %q: %s", e.Expression, e.Message)
}

// Parse parses an expression string into an AST.
// Returns a *ParseError on invalid syntax or an oversized expression.
func Parse(expression string) (*Expression, error) {
	if len(expression) > MaxExpressionLength {
		return nil, &ParseError{
			Expression: truncate(expression),
			Message:    fmt.Sprintf("exceeds maximum length of %d", MaxExpressionLength),
		}
	}

	ast, err := parser.ParseString("", expression)
	if err != nil {
		return nil, &ParseError{Expression: truncate(expression), Message: err.Error()}
	}

	if depth := ast.depth(); depth > MaxNestingDepth {
		return nil, &ParseError{
			Expression: truncate(expression),
			Message:    fmt.Sprintf("nesting depth %d exceeds maximum of %d", depth, MaxNestingDepth),
		}
	}

	ast.src = expression
	return ast, nil
}

// Evaluate parses and evaluates an expression against the variable map.
// Convenience wrapper; callers that evaluate the same expression repeatedly
// should Parse once and call (*Expression).Evaluate.
func Evaluate(expression string, vars map[string]any) (any, error) {
	ast, err := Parse(expression)
	if err != nil {
		return nil, oops.Code("EXPR_PARSE_FAILED").Wrap(err)
	}
	return ast.Evaluate(vars)
}

// EvaluateBool evaluates an expression and coerces the result to a boolean.
// Numbers are truthy when non-zero, mirroring how condition expressions in
// ruleset documents treat bare numeric results.
func EvaluateBool(expression string, vars map[string]any) (bool, error) {
	v, err := Evaluate(expression, vars)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case float64:
		return b != 0, nil
	case nil:
		return false, nil
	default:
		return false, &EvalError{Expression: truncate(expression), Message: fmt.Sprintf("result %T is not a boolean", v)}
	}
}

// EvaluateNumber evaluates an expression and requires a numeric result.
func EvaluateNumber(expression string, vars map[string]any) (float64, error) {
	v, err := Evaluate(expression, vars)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, &EvalError{Expression: truncate(expression), Message: fmt.Sprintf("result %T is not a number", v)}
	}
}

// truncate shortens oversized expressions for error messages.
func truncate(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// depth computes the maximum nesting depth of the AST.
func (e *Expression) depth() int {
	if e == nil {
		return 0
	}
	d := e.First.depth()
	for _, a := range e.Rest {
		if ad := a.depth(); ad > d {
			d = ad
		}
	}
	return d + 1
}

func (a *AndExpr) depth() int {
	if a == nil {
		return 0
	}
	d := a.First.depth()
	for _, c := range a.Rest {
		if cd := c.depth(); cd > d {
			d = cd
		}
	}
	return d + 1
}

func (c *Comparison) depth() int {
	if c == nil {
		return 0
	}
	d := c.Left.depth()
	if c.Right != nil {
		if rd := c.Right.depth(); rd > d {
			d = rd
		}
	}
	return d + 1
}

func (a *Additive) depth() int {
	if a == nil {
		return 0
	}
	d := a.First.depth()
	for _, t := range a.Rest {
		if td := t.Term.depth(); td > d {
			d = td
		}
	}
	return d + 1
}

func (m *Multiplicative) depth() int {
	if m == nil {
		return 0
	}
	d := m.First.depth()
	for _, t := range m.Rest {
		if td := t.Term.depth(); td > d {
			d = td
		}
	}
	return d + 1
}

func (u *Unary) depth() int {
	if u == nil {
		return 0
	}
	return u.Primary.depth() + 1
}

func (p *Primary) depth() int {
	if p == nil {
		return 0
	}
	switch {
	case p.Sub != nil:
		return p.Sub.depth() + 1
	case p.Call != nil:
		d := 0
		for _, arg := range p.Call.Args {
			if ad := arg.depth(); ad > d {
				d = ad
			}
		}
		return d + 1
	default:
		return 1
	}
}

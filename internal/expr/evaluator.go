// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package expr

import (
	"fmt"
	"math"
)

// MathNamespace is the identifier that prefixes namespaced function calls.
const MathNamespace = "Math"

// Functions is the whitelist of callable math functions. Both bare calls
// (floor(x)) and Math-namespaced calls (Math.floor(x)) resolve here.
var Functions = map[string]struct{}{
	"min": {}, "max": {}, "floor": {}, "ceil": {}, "round": {},
	"abs": {}, "sqrt": {}, "pow": {}, "sin": {}, "cos": {}, "tan": {},
}

// Literals are the bare words that are legal without being context variables.
var Literals = map[string]struct{}{
	"true": {}, "false": {}, "null": {},
}

// evalState tracks the node budget across one evaluation.
type evalState struct {
	vars       map[string]any
	expression string
	nodes      int
}

func (s *evalState) step() error {
	s.nodes++
	if s.nodes > MaxEvalNodes {
		return &EvalError{Expression: s.expression, Message: fmt.Sprintf("exceeded evaluation budget of %d nodes", MaxEvalNodes)}
	}
	return nil
}

func (s *evalState) errf(format string, args ...any) error {
	return &EvalError{Expression: s.expression, Message: fmt.Sprintf(format, args...)}
}

// Evaluate walks the AST against the variable map and returns the resulting
// value: float64, bool, string, or nil. Evaluation is bounded by MaxEvalNodes.
func (e *Expression) Evaluate(vars map[string]any) (any, error) {
	st := &evalState{vars: vars, expression: e.String()}
	return e.eval(st)
}

func (e *Expression) eval(st *evalState) (any, error) {
	if err := st.step(); err != nil {
		return nil, err
	}
	left, err := e.First.eval(st)
	if err != nil {
		return nil, err
	}
	if len(e.Rest) == 0 {
		return left, nil
	}
	// Disjunction short-circuits on the first true operand.
	b, ok := toBool(left)
	if !ok {
		return nil, st.errf("left operand of || is not a boolean")
	}
	if b {
		return true, nil
	}
	for _, a := range e.Rest {
		v, err := a.eval(st)
		if err != nil {
			return nil, err
		}
		b, ok := toBool(v)
		if !ok {
			return nil, st.errf("operand of || is not a boolean")
		}
		if b {
			return true, nil
		}
	}
	return false, nil
}

func (a *AndExpr) eval(st *evalState) (any, error) {
	if err := st.step(); err != nil {
		return nil, err
	}
	left, err := a.First.eval(st)
	if err != nil {
		return nil, err
	}
	if len(a.Rest) == 0 {
		return left, nil
	}
	b, ok := toBool(left)
	if !ok {
		return nil, st.errf("left operand of && is not a boolean")
	}
	if !b {
		return false, nil
	}
	for _, c := range a.Rest {
		v, err := c.eval(st)
		if err != nil {
			return nil, err
		}
		b, ok := toBool(v)
		if !ok {
			return nil, st.errf("operand of && is not a boolean")
		}
		if !b {
			return false, nil
		}
	}
	return true, nil
}

func (c *Comparison) eval(st *evalState) (any, error) {
	if err := st.step(); err != nil {
		return nil, err
	}
	left, err := c.Left.eval(st)
	if err != nil {
		return nil, err
	}
	if c.Right == nil {
		return left, nil
	}
	right, err := c.Right.eval(st)
	if err != nil {
		return nil, err
	}
	return compare(st, left, right, c.Op)
}

// compare applies a comparison operator with numeric, string, boolean, and
// null operand support. Mixed-type operands are an evaluation error except
// for == and != against null.
func compare(st *evalState, left, right any, op string) (any, error) {
	if left == nil || right == nil {
		switch op {
		case "==":
			return left == right, nil
		case "!=":
			return left != right, nil
		default:
			return nil, st.errf("operator %s is not defined for null", op)
		}
	}

	if ln, lok := toFloat64(left); lok {
		rn, rok := toFloat64(right)
		if !rok {
			return nil, st.errf("cannot compare number with %T", right)
		}
		switch op {
		case "==":
			return ln == rn, nil
		case "!=":
			return ln != rn, nil
		case "<":
			return ln < rn, nil
		case "<=":
			return ln <= rn, nil
		case ">":
			return ln > rn, nil
		case ">=":
			return ln >= rn, nil
		}
		return nil, st.errf("unknown comparison operator %q", op)
	}

	if ls, lok := left.(string); lok {
		rs, rok := right.(string)
		if !rok {
			return nil, st.errf("cannot compare string with %T", right)
		}
		switch op {
		case "==":
			return ls == rs, nil
		case "!=":
			return ls != rs, nil
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
		return nil, st.errf("unknown comparison operator %q", op)
	}

	if lb, lok := left.(bool); lok {
		rb, rok := right.(bool)
		if !rok {
			return nil, st.errf("cannot compare boolean with %T", right)
		}
		switch op {
		case "==":
			return lb == rb, nil
		case "!=":
			return lb != rb, nil
		default:
			return nil, st.errf("operator %s is not defined for booleans", op)
		}
	}

	return nil, st.errf("cannot compare %T with %T", left, right)
}

func (a *Additive) eval(st *evalState) (any, error) {
	if err := st.step(); err != nil {
		return nil, err
	}
	acc, err := a.First.eval(st)
	if err != nil {
		return nil, err
	}
	for _, t := range a.Rest {
		v, err := t.Term.eval(st)
		if err != nil {
			return nil, err
		}
		acc, err = arith(st, acc, v, t.Op)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (m *Multiplicative) eval(st *evalState) (any, error) {
	if err := st.step(); err != nil {
		return nil, err
	}
	acc, err := m.First.eval(st)
	if err != nil {
		return nil, err
	}
	for _, t := range m.Rest {
		v, err := t.Term.eval(st)
		if err != nil {
			return nil, err
		}
		acc, err = arith(st, acc, v, t.Op)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// arith applies a binary arithmetic operator. + concatenates strings when
// both operands are strings; everything else requires numbers.
func arith(st *evalState, left, right any, op string) (any, error) {
	if op == "+" {
		if ls, ok := left.(string); ok {
			rs, rok := right.(string)
			if !rok {
				return nil, st.errf("cannot add string and %T", right)
			}
			return ls + rs, nil
		}
	}

	ln, lok := toFloat64(left)
	rn, rok := toFloat64(right)
	if !lok || !rok {
		return nil, st.errf("operator %s requires numeric operands, got %T and %T", op, left, right)
	}

	switch op {
	case "+":
		return ln + rn, nil
	case "-":
		return ln - rn, nil
	case "*":
		return ln * rn, nil
	case "/":
		if rn == 0 {
			return nil, st.errf("division by zero")
		}
		return ln / rn, nil
	case "%":
		if rn == 0 {
			return nil, st.errf("division by zero")
		}
		return math.Mod(ln, rn), nil
	default:
		return nil, st.errf("unknown arithmetic operator %q", op)
	}
}

func (u *Unary) eval(st *evalState) (any, error) {
	if err := st.step(); err != nil {
		return nil, err
	}
	v, err := u.Primary.eval(st)
	if err != nil {
		return nil, err
	}
	switch u.Op {
	case "":
		return v, nil
	case "-":
		n, ok := toFloat64(v)
		if !ok {
			return nil, st.errf("unary - requires a numeric operand, got %T", v)
		}
		return -n, nil
	case "!":
		b, ok := toBool(v)
		if !ok {
			return nil, st.errf("unary ! requires a boolean operand, got %T", v)
		}
		return !b, nil
	default:
		return nil, st.errf("unknown unary operator %q", u.Op)
	}
}

func (p *Primary) eval(st *evalState) (any, error) {
	if err := st.step(); err != nil {
		return nil, err
	}
	switch {
	case p.Number != nil:
		return *p.Number, nil
	case p.Str != nil:
		return *p.Str, nil
	case p.Bool != nil:
		return *p.Bool == "true", nil
	case p.Null:
		return nil, nil
	case p.Call != nil:
		return p.Call.eval(st)
	case p.Variable != nil:
		v, ok := st.vars[*p.Variable]
		if !ok {
			return nil, st.errf("undefined identifier %q", *p.Variable)
		}
		return normalize(v), nil
	case p.Sub != nil:
		return p.Sub.eval(st)
	default:
		return nil, st.errf("empty expression node")
	}
}

func (c *Call) eval(st *evalState) (any, error) {
	if err := st.step(); err != nil {
		return nil, err
	}
	if c.Namespace != "" && c.Namespace != MathNamespace {
		return nil, st.errf("unknown namespace %q", c.Namespace)
	}
	if _, ok := Functions[c.Name]; !ok {
		return nil, st.errf("unknown function %q", c.Name)
	}

	args := make([]float64, 0, len(c.Args))
	for _, a := range c.Args {
		v, err := a.eval(st)
		if err != nil {
			return nil, err
		}
		n, ok := toFloat64(v)
		if !ok {
			return nil, st.errf("argument of %s is not a number: %T", c.Name, v)
		}
		args = append(args, n)
	}

	return applyFunction(st, c.Name, args)
}

// applyFunction dispatches a whitelisted math function.
// min and max are variadic; pow takes two arguments; the rest take one.
func applyFunction(st *evalState, name string, args []float64) (any, error) {
	switch name {
	case "min", "max":
		if len(args) == 0 {
			return nil, st.errf("%s requires at least one argument", name)
		}
		acc := args[0]
		for _, a := range args[1:] {
			if name == "min" {
				acc = math.Min(acc, a)
			} else {
				acc = math.Max(acc, a)
			}
		}
		return acc, nil
	case "pow":
		if len(args) != 2 {
			return nil, st.errf("pow requires exactly two arguments, got %d", len(args))
		}
		return math.Pow(args[0], args[1]), nil
	case "floor", "ceil", "round", "abs", "sqrt", "sin", "cos", "tan":
		if len(args) != 1 {
			return nil, st.errf("%s requires exactly one argument, got %d", name, len(args))
		}
		x := args[0]
		switch name {
		case "floor":
			return math.Floor(x), nil
		case "ceil":
			return math.Ceil(x), nil
		case "round":
			return math.Round(x), nil
		case "abs":
			return math.Abs(x), nil
		case "sqrt":
			if x < 0 {
				return nil, st.errf("sqrt of negative number")
			}
			return math.Sqrt(x), nil
		case "sin":
			return math.Sin(x), nil
		case "cos":
			return math.Cos(x), nil
		case "tan":
			return math.Tan(x), nil
		}
	}
	return nil, st.errf("unknown function %q", name)
}

// normalize coerces context values to the evaluator's value domain:
// numeric types become float64, bool/string/nil pass through.
func normalize(v any) any {
	if n, ok := toFloat64(v); ok {
		return n
	}
	return v
}

// toBool extracts a boolean value. Only actual booleans qualify; numbers are
// not implicitly truthy inside operator evaluation (EvaluateBool handles the
// coercion at the API boundary).
func toBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// toFloat64 converts any Go numeric type to float64, handling the variety of
// types that appear in map[string]any state decoded from JSON.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

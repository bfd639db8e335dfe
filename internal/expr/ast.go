// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

// Package expr parses and evaluates the restricted expression language used
// by ruleset formulas, checks, and choice conditions. Expressions are
// arithmetic/boolean/comparison combinations over named variables plus a
// fixed whitelist of math functions. Parsing produces an AST built with
// participle; evaluation walks the tree against a variable map and never
// constructs or executes code from strings.
package expr

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// exprLexer defines the token types for the expression language.
// Multi-character operators (==, !=, <=, >=, &&, ||) are matched before the
// single-character punctuation that would otherwise split them.
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `\d+(\.\d+)?`},
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "OpEq", Pattern: `==`},
	{Name: "OpNe", Pattern: `!=`},
	{Name: "OpLe", Pattern: `<=`},
	{Name: "OpGe", Pattern: `>=`},
	{Name: "OpAnd", Pattern: `&&`},
	{Name: "OpOr", Pattern: `\|\|`},
	{Name: "Dot", Pattern: `\.`},
	{Name: "Ident", Pattern: `[a-zA-Z_]\w*`},
	{Name: "Punct", Pattern: `[-+*/%(),<>!]`},
	{Name: "whitespace", Pattern: `\s+`},
})

// Expression is the root AST node: a disjunction of and-expressions.
type Expression struct {
	Pos   lexer.Position `parser:"" json:"-"`
	First *AndExpr       `parser:"@@" json:"first"`
	Rest  []*AndExpr     `parser:"(OpOr @@)*" json:"rest,omitempty"`

	src string // original source text, set by Parse
}

// String returns the original source text the expression was parsed from.
func (e *Expression) String() string {
	return e.src
}

// AndExpr is a conjunction of comparisons.
type AndExpr struct {
	Pos   lexer.Position `parser:"" json:"-"`
	First *Comparison    `parser:"@@" json:"first"`
	Rest  []*Comparison  `parser:"(OpAnd @@)*" json:"rest,omitempty"`
}

// Comparison is an additive expression optionally compared to another.
type Comparison struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Left  *Additive      `parser:"@@" json:"left"`
	Op    string         `parser:"( @(OpEq | OpNe | OpLe | OpGe | '<' | '>')" json:"op,omitempty"`
	Right *Additive      `parser:"  @@ )?" json:"right,omitempty"`
}

// Additive is a left-associative chain of + and - terms.
type Additive struct {
	Pos   lexer.Position `parser:"" json:"-"`
	First *Multiplicative `parser:"@@" json:"first"`
	Rest  []*AddTerm      `parser:"@@*" json:"rest,omitempty"`
}

// AddTerm is one + or - continuation of an Additive chain.
type AddTerm struct {
	Op   string          `parser:"@('+' | '-')" json:"op"`
	Term *Multiplicative `parser:"@@" json:"term"`
}

// Multiplicative is a left-associative chain of *, / and % terms.
type Multiplicative struct {
	Pos   lexer.Position `parser:"" json:"-"`
	First *Unary         `parser:"@@" json:"first"`
	Rest  []*MulTerm     `parser:"@@*" json:"rest,omitempty"`
}

// MulTerm is one *, / or % continuation of a Multiplicative chain.
type MulTerm struct {
	Op   string `parser:"@('*' | '/' | '%')" json:"op"`
	Term *Unary `parser:"@@" json:"term"`
}

// Unary applies an optional negation (arithmetic or boolean) to a primary.
type Unary struct {
	Pos     lexer.Position `parser:"" json:"-"`
	Op      string         `parser:"@('-' | '!')?" json:"op,omitempty"`
	Primary *Primary       `parser:"@@" json:"primary"`
}

// Primary is a literal, a function call, a variable reference, or a
// parenthesized subexpression. Call must precede Variable so that an
// identifier followed by "(" or ".name(" is parsed as a call.
type Primary struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Number   *float64       `parser:"  @Number" json:"number,omitempty"`
	Str      *string        `parser:"| @String" json:"str,omitempty"`
	Bool     *string        `parser:"| @('true' | 'false')" json:"bool,omitempty"`
	Null     bool           `parser:"| @'null'" json:"null,omitempty"`
	Call     *Call          `parser:"| @@" json:"call,omitempty"`
	Variable *string        `parser:"| @Ident" json:"variable,omitempty"`
	Sub      *Expression    `parser:"| '(' @@ ')'" json:"sub,omitempty"`
}

// Call is a whitelisted function invocation, either bare (floor(x)) or
// through the Math namespace (Math.floor(x)).
type Call struct {
	Pos       lexer.Position `parser:"" json:"-"`
	Namespace string         `parser:"(@Ident Dot)?" json:"namespace,omitempty"`
	Name      string         `parser:"@Ident" json:"name"`
	Args      []*Expression  `parser:"'(' (@@ (',' @@)*)? ')'" json:"args,omitempty"`
}

// NewParser constructs a participle parser for the expression grammar.
func NewParser() (*participle.Parser[Expression], error) {
	return participle.Build[Expression](
		participle.Lexer(exprLexer),
		participle.Unquote("String"),
		participle.UseLookahead(4),
	)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package expr

import "regexp"

// identRegex matches word-boundary identifiers in an expression string.
var identRegex = regexp.MustCompile(`[a-zA-Z_]\w*`)

// Identifiers returns the variable identifiers referenced by an expression,
// deduplicated, in order of first appearance. Literals (true/false/null),
// the Math namespace, and whitelisted function names are excluded. The scan
// is lexical so it tolerates expressions that do not parse; the validator
// uses it to report undefined variables even for malformed formulas.
func Identifiers(expression string) []string {
	tokens := identRegex.FindAllString(expression, -1)
	if len(tokens) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tokens))
	var ids []string
	for _, tok := range tokens {
		if tok == MathNamespace {
			continue
		}
		if _, ok := Literals[tok]; ok {
			continue
		}
		if _, ok := Functions[tok]; ok {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		ids = append(ids, tok)
	}
	return ids
}

// IsReservedWord reports whether an identifier is claimed by the expression
// language itself and therefore unavailable as a stat id.
func IsReservedWord(ident string) bool {
	if ident == MathNamespace {
		return true
	}
	if _, ok := Literals[ident]; ok {
		return true
	}
	_, ok := Functions[ident]
	return ok
}

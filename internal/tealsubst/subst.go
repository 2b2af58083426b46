// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package tealsubst locates template placeholders in rendered TEAL source.
// Placeholders are TMPL_NAME tokens pushed with pushbytes or pushint; they are
// replaced by zero-valued constants so the program can be assembled, and the
// byte positions of those constants are patched later.
package tealsubst

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Prefix starts every placeholder token.
const Prefix = "TMPL_"

// Zero-valued operands substituted for placeholders.
const (
	ZeroBytes = `""`
	ZeroInt   = "0"
)

// Opcodes allowed to carry a placeholder.
const (
	OpPushBytes = "pushbytes"
	OpPushInt   = "pushint"
)

// placeholderPattern matches TMPL_NAME tokens in TEAL source.
var placeholderPattern = regexp.MustCompile(Prefix + `([A-Z0-9_]+)`)

// Placeholder is a template token found in TEAL source.
type Placeholder struct {
	Token string // full token, including Prefix
	Line  int    // zero-based source line
	Op    string // OpPushBytes or OpPushInt
}

// PlaceholderToken returns the token for a template variable name.
func PlaceholderToken(name string) string {
	return Prefix + strings.ToUpper(name)
}

// ZeroPlaceholders replaces every placeholder operand in src with a zero
// value and reports where each placeholder was. Tokens inside comments are
// left alone. Each placeholder must be the sole operand of a pushbytes or
// pushint line.
func ZeroPlaceholders(src string) (string, []Placeholder, error) {
	lines := strings.Split(src, "\n")
	var found []Placeholder

	for idx, line := range lines {
		code, comment, hasComment := strings.Cut(line, "//")
		if !strings.Contains(code, Prefix) {
			continue
		}

		fields := strings.Fields(code)
		if len(fields) != 2 || placeholderPattern.FindString(fields[1]) != fields[1] {
			return "", nil, fmt.Errorf("line %d: placeholder must be the only operand: %q", idx+1, strings.TrimSpace(line))
		}

		var zero string
		switch fields[0] {
		case OpPushBytes:
			zero = ZeroBytes
		case OpPushInt:
			zero = ZeroInt
		default:
			return "", nil, fmt.Errorf("line %d: placeholder %s used with %s, want %s or %s",
				idx+1, fields[1], fields[0], OpPushBytes, OpPushInt)
		}

		found = append(found, Placeholder{Token: fields[1], Line: idx, Op: fields[0]})

		indent := code[:len(code)-len(strings.TrimLeft(code, " \t"))]
		rewritten := indent + fields[0] + " " + zero
		if hasComment {
			rewritten += " //" + comment
		}
		lines[idx] = rewritten
	}

	return strings.Join(lines, "\n"), found, nil
}

// ExtractPlaceholders returns the unique placeholder tokens referenced by
// code in src, sorted.
func ExtractPlaceholders(src string) []string {
	seen := make(map[string]bool)
	var tokens []string

	for _, line := range strings.Split(src, "\n") {
		code, _, _ := strings.Cut(line, "//")
		for _, tok := range placeholderPattern.FindAllString(code, -1) {
			if !seen[tok] {
				seen[tok] = true
				tokens = append(tokens, tok)
			}
		}
	}

	sort.Strings(tokens)
	return tokens
}

// ValidatePlaceholdersAgainstVariables checks that every placeholder in src
// names a declared variable.
func ValidatePlaceholdersAgainstVariables(src string, names []string) error {
	declared := make(map[string]bool)
	for _, name := range names {
		declared[PlaceholderToken(name)] = true
	}

	var missing []string
	for _, tok := range ExtractPlaceholders(src) {
		if !declared[tok] {
			missing = append(missing, tok)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("TEAL references undeclared template variables: %v", missing)
	}

	return nil
}

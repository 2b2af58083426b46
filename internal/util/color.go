// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"os"

	"golang.org/x/term"
)

// SupportsColor reports whether f is a terminal that accepts ANSI colors.
// NO_COLOR disables color regardless of the terminal.
func SupportsColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if !term.IsTerminal(int(f.Fd())) { // #nosec G115 - file descriptors are small integers
		return false
	}
	termEnv := os.Getenv("TERM")
	return termEnv != "" && termEnv != "dumb"
}

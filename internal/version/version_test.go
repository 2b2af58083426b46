// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = "1.2.3"
	if Resolved() != "1.2.3" {
		t.Errorf("expected injected version, got %s", Resolved())
	}
	if s := String(); !strings.HasPrefix(s, "1.2.3 (commit: ") {
		t.Errorf("unexpected version string %q", s)
	}
}

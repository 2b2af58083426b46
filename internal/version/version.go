// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package version reports the beaker build version.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/aplane-algo/beaker/internal/version.Version=0.4.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// Resolved returns Version, falling back to the module version recorded in
// the binary when it was not set at build time.
func Resolved() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// String returns a formatted version string suitable for --version output.
func String() string {
	return fmt.Sprintf("%s (commit: %s, %s, %s/%s)",
		Resolved(), GitCommit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

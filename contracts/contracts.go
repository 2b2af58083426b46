// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package contracts registers the bundled applications with the application
// registry.
package contracts

import (
	"sync"

	"github.com/aplane-algo/beaker/contracts/hashlock"
	"github.com/aplane-algo/beaker/contracts/nested"
	"github.com/aplane-algo/beaker/contracts/sigchecker"
	"github.com/aplane-algo/beaker/internal/application"
)

var registerOnce sync.Once

// RegisterAll registers every bundled application. It is safe to call more
// than once.
func RegisterAll() {
	registerOnce.Do(func() {
		for _, app := range nested.All() {
			application.Register(app)
		}
		application.Register(sigchecker.NewApp())
		application.Register(hashlock.NewApp())
	})
}

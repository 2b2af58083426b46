// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package application

import (
	"fmt"
	"strings"

	"github.com/aplane-algo/beaker/internal/util"
)

var applications = util.NewStringRegistry[*Application]()

func normalize(name string) string {
	return strings.ToLower(name)
}

// Register adds an application to the registry of buildable contracts.
// Names are normalized to lowercase. A second application with the same name
// is ignored.
func Register(app *Application) {
	applications.Set(normalize(app.Name()), app)
}

// Get returns the application registered under name, or nil.
func Get(name string) *Application {
	app, _ := applications.Get(normalize(name))
	return app
}

// GetOrError returns the application registered under name.
func GetOrError(name string) (*Application, error) {
	if app, ok := applications.Get(normalize(name)); ok {
		return app, nil
	}
	return nil, fmt.Errorf("no application registered as %q (known: %s)", name, strings.Join(applications.Keys(), ", "))
}

// GetAll returns every registered application, sorted by name.
func GetAll() []*Application {
	return applications.Values()
}

// Names returns the normalized names of every registered application.
func Names() []string {
	return applications.Keys()
}

// Select returns the applications registered under names, in the order given.
func Select(names []string) ([]*Application, error) {
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = normalize(n)
	}
	found, missing := applications.Select(keys)
	if len(missing) > 0 {
		return nil, fmt.Errorf("no application registered as %s (known: %s)",
			strings.Join(missing, ", "), strings.Join(applications.Keys(), ", "))
	}
	return found, nil
}

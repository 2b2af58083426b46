// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package contracts

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aplane-algo/beaker/internal/application"
	"github.com/aplane-algo/beaker/internal/testutil"
)

func TestRegisterAll(t *testing.T) {
	RegisterAll()
	RegisterAll()

	want := []string{"child1", "child2", "grandparent", "hashlockdirectory", "parent", "sigcheckerapp"}
	if diff := cmp.Diff(want, application.Names()); diff != "" {
		t.Errorf("registered names mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildAll_Registered(t *testing.T) {
	RegisterAll()

	mock := testutil.NewMockCompiler()
	specs, err := application.BuildAll(context.Background(), application.GetAll(), mock, 3)
	if err != nil {
		t.Fatalf("BuildAll failed: %v", err)
	}
	if len(specs) != len(application.Names()) {
		t.Fatalf("expected %d specs, got %d", len(application.Names()), len(specs))
	}
	for i, spec := range specs {
		if spec.Name != application.GetAll()[i].Name() {
			t.Errorf("spec %d is %s, expected %s", i, spec.Name, application.GetAll()[i].Name())
		}
	}
}

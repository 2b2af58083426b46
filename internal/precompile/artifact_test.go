// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package precompile

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aplane-algo/beaker/internal/compiler"
	"github.com/aplane-algo/beaker/internal/teal"
	"github.com/aplane-algo/beaker/internal/testutil"
)

func TestNewProgramArtifact(t *testing.T) {
	src := "#pragma version 10\npushint 1\n// must be one\nassert\npushint 1\nreturn\n"
	art, err := NewProgramArtifact(context.Background(), testutil.NewMockCompiler(), src)
	if err != nil {
		t.Fatalf("NewProgramArtifact failed: %v", err)
	}

	want, _, _ := testutil.FakeAssemble(src)
	if !bytes.Equal(art.Binary(), want) {
		t.Errorf("expected binary %x, got %x", want, art.Binary())
	}
	if art.Source() != src {
		t.Errorf("expected source to be kept")
	}
	if art.Len() != len(want) {
		t.Errorf("expected length %d, got %d", len(want), art.Len())
	}

	addr, err := art.Address()
	if err != nil {
		t.Fatalf("Address failed: %v", err)
	}
	if addr.String() != art.Hash() {
		t.Errorf("expected address %s, got %s", art.Hash(), addr)
	}

	if diff := cmp.Diff(map[int]string{3: "must be one"}, art.Assertions()); diff != "" {
		t.Errorf("unexpected assertions (-want +got):\n%s", diff)
	}
	if pcs := art.PCsForLine(1); len(pcs) == 0 || pcs[0] != 1 {
		t.Errorf("expected pushint at pc 1, got %v", pcs)
	}
}

func TestProgramArtifact_BinaryIsCopied(t *testing.T) {
	art, err := NewProgramArtifact(context.Background(), testutil.NewMockCompiler(), "#pragma version 10\npushint 1\n")
	if err != nil {
		t.Fatalf("NewProgramArtifact failed: %v", err)
	}
	b := art.Binary()
	b[0] = 0xff
	if art.Binary()[0] == 0xff {
		t.Error("mutating the returned binary changed the artifact")
	}
}

func TestProgramArtifact_BinaryExpr(t *testing.T) {
	art, err := NewProgramArtifact(context.Background(), testutil.NewMockCompiler(), "#pragma version 10\npushint 7\n")
	if err != nil {
		t.Fatalf("NewProgramArtifact failed: %v", err)
	}
	v, err := teal.NewMachine().Eval(art.BinaryExpr())
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if !bytes.Equal(v.Bytes, art.Binary()) {
		t.Errorf("expected %x, got %x", art.Binary(), v.Bytes)
	}
}

func TestProgramArtifact_Pages(t *testing.T) {
	art, err := NewProgramArtifact(context.Background(), testutil.NewMockCompiler(), sizedProgram(5000))
	if err != nil {
		t.Fatalf("NewProgramArtifact failed: %v", err)
	}

	pages := art.Pages(2048)
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	if len(pages[0]) != 2048 || len(pages[1]) != 2048 || len(pages[2]) != 904 {
		t.Errorf("unexpected page sizes %d, %d, %d", len(pages[0]), len(pages[1]), len(pages[2]))
	}
	if !bytes.Equal(bytes.Join(pages, nil), art.Binary()) {
		t.Error("pages do not join to the binary")
	}
}

func TestNewProgramArtifact_Errors(t *testing.T) {
	mock := testutil.NewMockCompiler()

	_, err := NewProgramArtifact(context.Background(), mock, "  \n")
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for empty source, got %v", err)
	}

	_, err = NewProgramArtifact(context.Background(), mock, "#pragma version 10\npushbytes nothex\n")
	if !errors.Is(err, compiler.ErrAssembly) {
		t.Errorf("expected ErrAssembly, got %v", err)
	}

	if mock.Calls() != 1 {
		t.Errorf("expected only the non-empty source to reach the compiler, got %d calls", mock.Calls())
	}
}

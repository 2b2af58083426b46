// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package compiler_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aplane-algo/beaker/internal/compiler"
	"github.com/aplane-algo/beaker/internal/testutil"
)

const program = "#pragma version 10\npushint 1\nreturn\n"

func TestAlgodCompiler_Assemble(t *testing.T) {
	srv := testutil.NewMockAlgodServer(t)
	c, err := compiler.NewAlgodCompiler(srv.URL(), srv.Token, 0)
	if err != nil {
		t.Fatalf("NewAlgodCompiler failed: %v", err)
	}

	res, err := c.Assemble(context.Background(), program)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	wantBinary, offsets, err := testutil.FakeAssemble(program)
	if err != nil {
		t.Fatalf("FakeAssemble failed: %v", err)
	}
	if !bytes.Equal(res.Binary, wantBinary) {
		t.Errorf("expected binary %x, got %x", wantBinary, res.Binary)
	}

	wantHash, _ := testutil.ProgramHash(wantBinary)
	if res.Hash != wantHash {
		t.Errorf("expected hash %s, got %s", wantHash, res.Hash)
	}

	if diff := cmp.Diff(testutil.LineToPCs(offsets), res.SourceMap); diff != "" {
		t.Errorf("unexpected source map (-want +got):\n%s", diff)
	}
	if pcs := res.SourceMap.PCsForLine(1); len(pcs) == 0 || pcs[0] != 1 {
		t.Errorf("expected pushint to start at pc 1, got %v", pcs)
	}
	if srv.Requests() != 1 {
		t.Errorf("expected 1 request, got %d", srv.Requests())
	}
}

func TestAlgodCompiler_Errors(t *testing.T) {
	srv := testutil.NewMockAlgodServer(t)

	tests := []struct {
		name   string
		token  string
		source string
		ctx    func() context.Context
	}{
		{
			name:   "invalid source",
			token:  srv.Token,
			source: "#pragma version 10\npushbytes TMPL_X\n",
			ctx:    context.Background,
		},
		{
			name:   "bad token",
			token:  strings.Repeat("b", 64),
			source: program,
			ctx:    context.Background,
		},
		{
			name:   "cancelled",
			token:  srv.Token,
			source: program,
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := compiler.NewAlgodCompiler(srv.URL(), tt.token, 0)
			if err != nil {
				t.Fatalf("NewAlgodCompiler failed: %v", err)
			}
			_, err = c.Assemble(tt.ctx(), tt.source)
			if !errors.Is(err, compiler.ErrAssembly) {
				t.Fatalf("expected ErrAssembly, got %v", err)
			}
			var asmErr *compiler.AssemblyError
			if !errors.As(err, &asmErr) {
				t.Errorf("expected *AssemblyError, got %T", err)
			}
		})
	}
}

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mock := testutil.NewMockCompiler()
	c := compiler.WithLogging(mock, logger)

	if _, err := c.Assemble(context.Background(), program); err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if _, err := c.Assemble(context.Background(), "pushbytes TMPL_X"); err == nil {
		t.Fatal("expected assembly error")
	}

	out := buf.String()
	if !strings.Contains(out, "assembled program") {
		t.Errorf("expected success log, got:\n%s", out)
	}
	if !strings.Contains(out, "assembly failed") {
		t.Errorf("expected failure log, got:\n%s", out)
	}
	if mock.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", mock.Calls())
	}
}

func TestWithLogging_NilLogger(t *testing.T) {
	mock := testutil.NewMockCompiler()
	if got := compiler.WithLogging(mock, nil); got != compiler.Compiler(mock) {
		t.Error("expected nil logger to return the compiler unchanged")
	}
}

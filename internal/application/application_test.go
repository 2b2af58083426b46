// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package application

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/abi"
	"github.com/google/go-cmp/cmp"

	"github.com/aplane-algo/beaker/internal/compiler"
	"github.com/aplane-algo/beaker/internal/logicsig"
	"github.com/aplane-algo/beaker/internal/precompile"
	"github.com/aplane-algo/beaker/internal/teal"
	"github.com/aplane-algo/beaker/internal/testutil"
)

func selector(t *testing.T, sig string) []byte {
	t.Helper()
	m, err := abi.MethodFromSignature(sig)
	if err != nil {
		t.Fatalf("MethodFromSignature(%s) failed: %v", sig, err)
	}
	return m.GetSelector()
}

func itob(n uint64) []byte { return binary.BigEndian.AppendUint64(nil, n) }

func calculator() *Application {
	app := New("Calculator", WithBareCreate(), WithGlobalSchema(1, 0))
	app.Method("add(uint64,uint64)uint64", func(*precompile.Context) (teal.Expr, error) {
		return teal.Add(teal.Btoi(teal.ApplicationArg(1)), teal.Btoi(teal.ApplicationArg(2))), nil
	}, ReadOnly())
	app.Method("ping()void", func(*precompile.Context) (teal.Expr, error) {
		return teal.Log(teal.Str("pong")), nil
	})
	return app
}

func router(t *testing.T, app *Application) teal.Expr {
	t.Helper()
	bc, err := precompile.Enter(context.Background(), app, testutil.NewMockCompiler())
	if err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	defer bc.Close()
	x, err := app.Router(bc)
	if err != nil {
		t.Fatalf("Router failed: %v", err)
	}
	return x
}

func TestRouter(t *testing.T) {
	app := calculator()
	x := router(t, app)

	tests := []struct {
		name    string
		appID   uint64
		args    [][]byte
		onComp  uint64
		want    bool
		wantErr error
		wantLog []byte
	}{
		{
			name:    "add",
			appID:   7,
			args:    [][]byte{selector(t, "add(uint64,uint64)uint64"), itob(2), itob(3)},
			want:    true,
			wantLog: append(append([]byte(nil), ReturnPrefix...), itob(5)...),
		},
		{
			name:    "ping",
			appID:   7,
			args:    [][]byte{selector(t, "ping()void")},
			want:    true,
			wantLog: []byte("pong"),
		},
		{
			name:  "bare create",
			appID: 0,
			want:  true,
		},
		{
			name:    "unknown selector",
			appID:   7,
			args:    [][]byte{{1, 2, 3, 4}},
			wantErr: teal.ErrErrOpcode,
		},
		{
			name:    "method on create",
			appID:   0,
			args:    [][]byte{selector(t, "ping()void")},
			wantErr: teal.ErrErrOpcode,
		},
		{
			name:    "opt in",
			appID:   7,
			args:    [][]byte{selector(t, "ping()void")},
			onComp:  1,
			wantErr: teal.ErrErrOpcode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := teal.NewMachine()
			m.Txn["ApplicationID"] = teal.Uint(tt.appID)
			m.Txn["OnCompletion"] = teal.Uint(tt.onComp)
			m.ApplicationArgs = tt.args

			got, err := m.Run(x)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if tt.wantLog != nil {
				if len(m.Logs) != 1 || !bytes.Equal(m.Logs[0], tt.wantLog) {
					t.Errorf("expected log %x, got %x", tt.wantLog, m.Logs)
				}
			}
		})
	}
}

func TestBuild(t *testing.T) {
	always := logicsig.New("always", teal.Approve)
	app := calculator()
	app.Method("escrow()address", func(bc *precompile.Context) (teal.Expr, error) {
		lsig, err := app.PrecompiledLSig(bc, always)
		if err != nil {
			return nil, err
		}
		return lsig.AddressExpr()
	})
	var resolved []*precompile.LSigPrecompile
	app.Method("escrowAgain()address", func(bc *precompile.Context) (teal.Expr, error) {
		lsig, err := app.PrecompiledLSig(bc, always)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, lsig)
		return lsig.AddressExpr()
	})
	app.Method("refund()address", func(bc *precompile.Context) (teal.Expr, error) {
		lsig, err := app.PrecompiledLSig(bc, always)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, lsig)
		return lsig.AddressExpr()
	})

	mock := testutil.NewMockCompiler()
	spec, err := Build(context.Background(), app, mock)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// approval, clear and the logic signature, assembled once for all three
	// methods that resolve it.
	if mock.Calls() != 3 {
		t.Errorf("expected 3 assemblies, got %d", mock.Calls())
	}
	if len(resolved) != 2 || resolved[0] != resolved[1] {
		t.Errorf("expected one shared logic signature precompile, got %v", resolved)
	}
	if spec.Name != "Calculator" || !spec.BareCreate {
		t.Errorf("unexpected spec header: %s %v", spec.Name, spec.BareCreate)
	}
	if spec.GlobalSchema.NumUint != 1 {
		t.Errorf("expected 1 global uint, got %d", spec.GlobalSchema.NumUint)
	}
	if !strings.Contains(spec.Approval.Source(), "// add(uint64,uint64)uint64") {
		t.Errorf("expected method comment in approval program:\n%s", spec.Approval.Source())
	}

	var names []string
	for _, m := range spec.Contract.Methods {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff([]string{"add", "ping", "escrow", "escrowAgain", "refund"}, names); diff != "" {
		t.Errorf("unexpected contract methods (-want +got):\n%s", diff)
	}
	if !spec.Hints["add(uint64,uint64)uint64"].ReadOnly || spec.Hints["ping()void"].ReadOnly {
		t.Errorf("unexpected read only hints: %v", spec.Hints)
	}

	want := []PrecompileInfo{{Name: "always", Kind: "logicsig"}}
	if diff := cmp.Diff(want, spec.Precompiles, cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Hash" || p.Last().String() == ".Bytes"
	}, cmp.Ignore())); diff != "" {
		t.Errorf("unexpected precompiles (-want +got):\n%s", diff)
	}
	if spec.Precompiles[0].Hash == "" {
		t.Error("expected logic signature hash")
	}
}

func TestApplicationSpec_JSON(t *testing.T) {
	spec, err := Build(context.Background(), calculator(), testutil.NewMockCompiler())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	data, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var doc struct {
		Hints  map[string]MethodHints `json:"hints"`
		Source map[string]string      `json:"source"`
		Schema map[string]struct {
			NumUints uint64 `json:"num_uints"`
		} `json:"schema"`
		Contract       abi.Contract      `json:"contract"`
		BareCallConfig map[string]string `json:"bare_call_config"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	approval, err := base64.StdEncoding.DecodeString(doc.Source["approval"])
	if err != nil || string(approval) != spec.Approval.Source() {
		t.Errorf("approval source did not round trip (%v)", err)
	}
	if doc.Schema["global"].NumUints != 1 {
		t.Errorf("expected 1 global uint in schema, got %v", doc.Schema)
	}
	if doc.Contract.Name != "Calculator" || len(doc.Contract.Methods) != 2 {
		t.Errorf("unexpected contract %+v", doc.Contract)
	}
	if doc.BareCallConfig["no_op"] != "CREATE" {
		t.Errorf("expected bare create config, got %v", doc.BareCallConfig)
	}
	if doc.Hints["ping()void"].CallConfig["no_op"] != "CALL" {
		t.Errorf("expected call config hint, got %v", doc.Hints)
	}
}

func TestBuild_DeclarationErrors(t *testing.T) {
	noop := func(*precompile.Context) (teal.Expr, error) { return teal.Log(teal.Str("x")), nil }

	tests := []struct {
		name string
		app  func() *Application
	}{
		{"bad signature", func() *Application { return New("a").Method("nope(", noop) }},
		{"nil handler", func() *Application { return New("a").Method("f()void", nil) }},
		{"duplicate", func() *Application { return New("a").Method("f()void", noop).Method("f()void", noop) }},
		{"void returns value", func() *Application {
			return New("a").Method("f()void", func(*precompile.Context) (teal.Expr, error) { return teal.Int(1), nil })
		}},
		{"value returns nothing", func() *Application { return New("a").Method("f()uint64", noop) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockCompiler()
			_, err := Build(context.Background(), tt.app(), mock)
			var be *precompile.BuildError
			if !errors.As(err, &be) || be.Step != precompile.StepDeclaration {
				t.Fatalf("expected declaration BuildError, got %v", err)
			}
			if !errors.Is(err, precompile.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
			if mock.Calls() != 0 {
				t.Errorf("expected nothing assembled, got %d calls", mock.Calls())
			}
		})
	}
}

func TestBuild_NestedFailure(t *testing.T) {
	broken := logicsig.New("broken", func() teal.Expr { return teal.Log(teal.Str("x")) })
	app := New("Owner")
	app.Method("f()void", func(bc *precompile.Context) (teal.Expr, error) {
		if _, err := app.PrecompiledLSig(bc, broken); err != nil {
			return nil, err
		}
		return teal.Log(teal.Str("unreachable")), nil
	})

	_, err := Build(context.Background(), app, testutil.NewMockCompiler())
	var be *precompile.BuildError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BuildError, got %v", err)
	}
	if be.Definition != "broken" || be.Step != precompile.StepEvaluation {
		t.Errorf("expected evaluation failure of broken, got %s of %s", be.Step, be.Definition)
	}
	if !errors.Is(err, teal.ErrModeViolation) {
		t.Errorf("expected ErrModeViolation in chain, got %v", err)
	}

	handlerErr := errors.New("boom")
	failing := New("Failing").Method("f()void", func(*precompile.Context) (teal.Expr, error) { return nil, handlerErr })
	_, err = Build(context.Background(), failing, testutil.NewMockCompiler())
	if !errors.As(err, &be) || be.Definition != "Failing" || !errors.Is(err, handlerErr) {
		t.Errorf("expected handler failure attributed to Failing, got %v", err)
	}
}

func TestBuild_AssemblyFailure(t *testing.T) {
	mock := testutil.NewMockCompiler()
	mock.FailOn = func(src string) error {
		if strings.Contains(src, "ping()void") {
			return errors.New("rejected")
		}
		return nil
	}
	_, err := Build(context.Background(), calculator(), mock)
	if !errors.Is(err, compiler.ErrAssembly) {
		t.Errorf("expected ErrAssembly, got %v", err)
	}
}

func TestBuildAll(t *testing.T) {
	apps := []*Application{calculator(), New("Empty", WithBareCreate()), New("Other", WithBareCreate())}
	mock := testutil.NewMockCompiler()
	specs, err := BuildAll(context.Background(), apps, mock, 2)
	if err != nil {
		t.Fatalf("BuildAll failed: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("expected 3 specs, got %d", len(specs))
	}
	for i, spec := range specs {
		if spec.Name != apps[i].Name() {
			t.Errorf("spec %d: expected %s, got %s", i, apps[i].Name(), spec.Name)
		}
	}
	if mock.Calls() != 6 {
		t.Errorf("expected 6 assemblies, got %d", mock.Calls())
	}

	apps = append(apps, New("Bad").Method("nope(", nil))
	if _, err := BuildAll(context.Background(), apps, mock, 0); !errors.Is(err, precompile.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration from the failing build, got %v", err)
	}
}

func TestClearState(t *testing.T) {
	app := New("Clearing", WithBareCreate(), WithClearState(func(*precompile.Context) (teal.Expr, error) {
		return teal.Reject(), nil
	}))
	spec, err := Build(context.Background(), app, testutil.NewMockCompiler())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.Contains(spec.Clear.Source(), "pushint 0\nreturn") {
		t.Errorf("expected rejecting clear program, got:\n%s", spec.Clear.Source())
	}
}

func TestRegistry(t *testing.T) {
	app := New("RegistryTestApp")
	Register(app)
	Register(New("registrytestapp"))

	if Get("REGISTRYTESTAPP") != app {
		t.Error("expected the first registration to win")
	}
	if _, err := GetOrError("missing-app"); err == nil {
		t.Error("expected error for unknown application")
	}
	found := false
	for _, name := range Names() {
		if name == "registrytestapp" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected registrytestapp in %v", Names())
	}

	selected, err := Select([]string{"RegistryTestApp"})
	if err != nil || len(selected) != 1 || selected[0] != app {
		t.Errorf("expected Select to find the app, got %v (%v)", selected, err)
	}
	if _, err := Select([]string{"registrytestapp", "missing-app"}); err == nil || !strings.Contains(err.Error(), "missing-app") {
		t.Errorf("expected error naming missing-app, got %v", err)
	}
}

func TestBuild_TealVersion(t *testing.T) {
	tests := []struct {
		name string
		app  *Application
		want string
	}{
		{"build default", New("Plain", WithBareCreate()), "#pragma version 9\n"},
		{"pinned", New("Pinned", WithBareCreate(), WithVersion(8)), "#pragma version 8\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Build(context.Background(), tt.app, testutil.NewMockCompiler(), precompile.WithTealVersion(9))
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			for _, src := range []string{spec.Approval.Source(), spec.Clear.Source()} {
				if !strings.HasPrefix(src, tt.want) {
					t.Errorf("expected %q prefix, got %q", tt.want, src)
				}
			}
		})
	}
}

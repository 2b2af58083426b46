// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package sigchecker

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/abi"

	"github.com/aplane-algo/beaker/internal/application"
	"github.com/aplane-algo/beaker/internal/precompile"
	"github.com/aplane-algo/beaker/internal/teal"
	"github.com/aplane-algo/beaker/internal/testutil"
)

func abiString(s string) []byte {
	return append(binary.BigEndian.AppendUint16(nil, uint16(len(s))), s...)
}

func checkArgs(t *testing.T, pub ed25519.PublicKey, msg string, sig []byte) [][]byte {
	t.Helper()
	m, err := abi.MethodFromSignature("check(address,string,byte[64])void")
	if err != nil {
		t.Fatalf("MethodFromSignature failed: %v", err)
	}
	return [][]byte{m.GetSelector(), []byte(pub), abiString(msg), sig}
}

func TestSigChecker_Program(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	good := ed25519.Sign(priv, []byte("hello"))
	x, err := NewSigChecker().Expr()
	if err != nil {
		t.Fatalf("Expr failed: %v", err)
	}

	tests := []struct {
		name    string
		msg     string
		wantErr error
	}{
		{"valid", "hello", nil},
		{"wrong message", "goodbye", teal.ErrAssertFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := teal.NewMachine()
			m.Templates["TMPL_USER_ADDR"] = teal.ByteValue(pub)
			m.ApplicationArgs = checkArgs(t, pub, tt.msg, good)
			ok, err := m.Run(x)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || !ok {
				t.Errorf("expected approval, got %v (%v)", ok, err)
			}
		})
	}
}

func TestApp_Check(t *testing.T) {
	app := NewApp()
	bc, err := precompile.Enter(context.Background(), app, testutil.NewMockCompiler())
	if err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	defer bc.Close()
	x, err := app.Router(bc)
	if err != nil {
		t.Fatalf("Router failed: %v", err)
	}

	deps := bc.Dependencies()
	if len(deps) != 1 {
		t.Fatalf("expected 1 precompile, got %d", len(deps))
	}
	tmpl := deps[0].(*precompile.LSigTemplatePrecompile)

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	checker, err := tmpl.AddressOf(map[string]any{UserAddr: []byte(pub)})
	if err != nil {
		t.Fatalf("AddressOf failed: %v", err)
	}
	other, err := tmpl.AddressOf(map[string]any{UserAddr: []byte(testutil.ValidTestAddress(1).String())})
	if err != nil {
		t.Fatalf("AddressOf failed: %v", err)
	}

	tests := []struct {
		name    string
		sender  []byte
		wantErr error
	}{
		{"sent by checker", checker[:], nil},
		{"sent by another checker", other[:], teal.ErrAssertFailed},
		{"sent by signer", []byte(pub), teal.ErrAssertFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := teal.NewMachine()
			m.Txn["ApplicationID"] = teal.Uint(9)
			m.Txn["Sender"] = teal.ByteValue(tt.sender)
			m.ApplicationArgs = checkArgs(t, pub, "hello", ed25519.Sign(priv, []byte("hello")))
			ok, err := m.Run(x)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || !ok {
				t.Errorf("expected approval, got %v (%v)", ok, err)
			}
		})
	}
}

func TestApp_Build(t *testing.T) {
	spec, err := application.Build(context.Background(), NewApp(), testutil.NewMockCompiler())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(spec.Precompiles) != 1 {
		t.Fatalf("expected 1 precompile, got %d", len(spec.Precompiles))
	}
	p := spec.Precompiles[0]
	if p.Kind != "logicsig-template" || len(p.Variables) != 1 || p.Variables[0] != UserAddr {
		t.Errorf("unexpected precompile %+v", p)
	}
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package sigchecker verifies ed25519 signatures with a logic signature
// template bound to the signer's address.
//
// The template approves a transaction when the message and signature in its
// application arguments verify against user_addr. The application checks that
// the call was sent by the template populated with the claimed signer, so the
// signature check itself happens in the logic signature.
package sigchecker

import (
	"github.com/aplane-algo/beaker/internal/application"
	"github.com/aplane-algo/beaker/internal/logicsig"
	"github.com/aplane-algo/beaker/internal/precompile"
	"github.com/aplane-algo/beaker/internal/teal"
)

// UserAddr is the template variable holding the signer's public key.
const UserAddr = "user_addr"

// Application argument positions of check(address,string,byte[64])void.
const (
	argSigner    = 1
	argMessage   = 2
	argSignature = 3
)

// abiStringHeader is the length prefix of an ABI encoded string.
const abiStringHeader = 2

// NewSigChecker returns the signature checking template.
func NewSigChecker() *logicsig.Template {
	return logicsig.MustTemplate("SigChecker",
		[]precompile.TemplateVariable{logicsig.MustVariable(UserAddr, teal.TypeBytes)},
		func(v logicsig.Vars) teal.Expr {
			msg := teal.Suffix(teal.ApplicationArg(argMessage), teal.Int(abiStringHeader))
			sig := teal.ApplicationArg(argSignature)
			return teal.Seq(
				teal.Assert(teal.Ed25519VerifyBare(msg, sig, v[UserAddr]), "signature"),
				teal.Int(1),
			)
		})
}

// NewApp returns the application that accepts calls signed through the
// template.
func NewApp() *application.Application {
	lsig := NewSigChecker()
	app := application.New("SigCheckerApp", application.WithBareCreate())
	app.Method("check(address,string,byte[64])void", func(bc *precompile.Context) (teal.Expr, error) {
		pc, err := app.PrecompiledLSigTemplate(bc, lsig)
		if err != nil {
			return nil, err
		}
		addr, err := pc.Address(map[string]teal.Expr{UserAddr: teal.ApplicationArg(argSigner)})
		if err != nil {
			return nil, err
		}
		return teal.Assert(teal.Eq(teal.TxnSender(), addr), "sender"), nil
	}, application.Describe("Accept a call sent by the signature checker of signer_address."))
	return app
}

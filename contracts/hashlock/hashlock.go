// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package hashlock is a hash time lock built from a logic signature template.
package hashlock

import (
	"github.com/aplane-algo/beaker/internal/application"
	"github.com/aplane-algo/beaker/internal/logicsig"
	"github.com/aplane-algo/beaker/internal/precompile"
	"github.com/aplane-algo/beaker/internal/teal"
)

// Template variables.
const (
	Hash    = "hash"
	Timeout = "timeout"
)

const payType = 1

// NewHashLock returns the template. A payment from the lock is approved when
// the first argument hashes to hash, or once the transaction's first valid
// round is past timeout. The lock can never be rekeyed.
func NewHashLock() *logicsig.Template {
	return logicsig.MustTemplate("HashLock",
		[]precompile.TemplateVariable{
			logicsig.MustVariable(Hash, teal.TypeBytes),
			logicsig.MustVariable(Timeout, teal.TypeUint64),
		},
		func(v logicsig.Vars) teal.Expr {
			return teal.Seq(
				teal.Assert(teal.Eq(teal.TxnTypeEnum(), teal.Int(payType)), "payment"),
				teal.Assert(teal.Eq(teal.TxnRekeyTo(), teal.GlobalZeroAddress()), "rekey"),
				teal.If(
					teal.Gt(teal.TxnFirstValid(), v[Timeout]),
					teal.Int(1),
					teal.Eq(teal.Sha256(teal.Arg(0)), v[Hash]),
				),
			)
		})
}

// NewApp returns an application that derives lock addresses on chain.
func NewApp() *application.Application {
	lock := NewHashLock()
	app := application.New("HashLockDirectory", application.WithBareCreate())
	app.Method("lock_address(byte[32],uint64)address", func(bc *precompile.Context) (teal.Expr, error) {
		pc, err := app.PrecompiledLSigTemplate(bc, lock)
		if err != nil {
			return nil, err
		}
		return pc.Address(map[string]teal.Expr{
			Hash:    teal.ApplicationArg(1),
			Timeout: teal.Btoi(teal.ApplicationArg(2)),
		})
	}, application.ReadOnly(), application.Describe("Address of the lock for a hash and timeout round."))
	return app
}

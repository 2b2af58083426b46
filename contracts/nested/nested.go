// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package nested is a family of applications that create one another.
//
// Grandparent creates Parent, which creates Child1 and Child2. Child2 reports
// the address of a logic signature precompiled into it. Building Grandparent
// builds the whole tree.
package nested

import (
	"github.com/aplane-algo/beaker/internal/application"
	"github.com/aplane-algo/beaker/internal/logicsig"
	"github.com/aplane-algo/beaker/internal/precompile"
	"github.com/aplane-algo/beaker/internal/teal"
)

// CounterKey is the global state key of Child1's counter.
const CounterKey = "counter"

// NewChild1 returns an application with a counter in global state.
func NewChild1() *application.Application {
	key := teal.Str(CounterKey)
	app := application.New("Child1",
		application.WithBareCreate(),
		application.WithGlobalSchema(1, 0),
		application.WithDescription("Keeps a counter in global state."),
	)
	app.Method("increment_counter()uint64", func(*precompile.Context) (teal.Expr, error) {
		return teal.Seq(
			teal.AppGlobalPut(key, teal.Add(teal.AppGlobalGet(key, teal.TypeUint64), teal.Int(1))),
			teal.AppGlobalGet(key, teal.TypeUint64),
		), nil
	}, application.Describe("Increment the counter global state."))
	return app
}

// NewChild2 returns an application that reports the address of an
// always-approving logic signature.
func NewChild2() *application.Application {
	lsig := logicsig.New("Child2Signature", teal.Approve)
	app := application.New("Child2", application.WithBareCreate())
	app.Method("get_lsig_addr()address", func(bc *precompile.Context) (teal.Expr, error) {
		pc, err := app.PrecompiledLSig(bc, lsig)
		if err != nil {
			return nil, err
		}
		return pc.AddressExpr()
	}, application.ReadOnly())
	return app
}

// NewParent returns an application that creates Child1 and Child2.
func NewParent() *application.Application {
	child1, child2 := NewChild1(), NewChild2()
	app := application.New("Parent", application.WithBareCreate())
	app.Method("create_child_1()uint64", func(bc *precompile.Context) (teal.Expr, error) {
		pc, err := app.PrecompiledApp(bc, child1)
		if err != nil {
			return nil, err
		}
		return pc.CreateExpr()
	}, application.Describe("Create a new child app."))
	app.Method("create_child_2()uint64", func(bc *precompile.Context) (teal.Expr, error) {
		pc, err := app.PrecompiledApp(bc, child2)
		if err != nil {
			return nil, err
		}
		cfg, err := pc.CreateConfig()
		if err != nil {
			return nil, err
		}
		// Child2 has no state of its own; the created app reserves one uint.
		fields := withField(cfg.Fields(), "GlobalNumUint", teal.Int(1))
		return teal.Seq(teal.InnerTxnExecute(fields...), teal.InnerCreatedApplicationID()), nil
	}, application.Describe("Create a new child app."))
	return app
}

// NewGrandparent returns an application that creates Parent.
func NewGrandparent() *application.Application {
	parent := NewParent()
	app := application.New("Grandparent", application.WithBareCreate())
	app.Method("create_parent()uint64", func(bc *precompile.Context) (teal.Expr, error) {
		pc, err := app.PrecompiledApp(bc, parent)
		if err != nil {
			return nil, err
		}
		return pc.CreateExpr()
	}, application.Describe("Create a new parent app."))
	return app
}

// All returns every application of the family, outermost first.
func All() []*application.Application {
	return []*application.Application{NewGrandparent(), NewParent(), NewChild1(), NewChild2()}
}

// withField replaces the value of field, appending it when absent.
func withField(fields []teal.FieldValue, field string, value teal.Expr) []teal.FieldValue {
	for i, f := range fields {
		if f.Field == field {
			fields[i].Value = value
			return fields
		}
	}
	return append(fields, teal.FieldValue{Field: field, Value: value})
}

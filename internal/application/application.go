// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package application defines ABI applications and builds them into
// application specifications.
//
// An Application is a set of ABI methods, each with a handler that renders the
// method body. Handlers receive the precompile context of the build and use it
// to precompile nested applications and logic signatures:
//
//	app := application.New("Parent")
//	app.Method("create_child()uint64", func(bc *precompile.Context) (teal.Expr, error) {
//		child, err := app.PrecompiledApp(bc, childApp)
//		if err != nil {
//			return nil, err
//		}
//		return child.CreateExpr()
//	})
//	spec, err := application.Build(ctx, app, compiler)
package application

import (
	"errors"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/abi"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/beaker/internal/precompile"
	"github.com/aplane-algo/beaker/internal/teal"
)

// ReturnPrefix precedes ABI return values in the application log.
var ReturnPrefix = []byte{0x15, 0x1f, 0x7c, 0x75}

// OnCompletion values used by the router.
const (
	onCompletionNoOp = 0
)

// Handler renders the body of a method. A uint64 or bytes result is logged as
// the ABI return value; a statement is run as is.
type Handler func(bc *precompile.Context) (teal.Expr, error)

// MethodOption configures a method.
type MethodOption func(*method)

// ReadOnly marks a method as safe to simulate.
func ReadOnly() MethodOption {
	return func(m *method) { m.readOnly = true }
}

// Describe sets the method description in the contract.
func Describe(desc string) MethodOption {
	return func(m *method) { m.abi.Desc = desc }
}

type method struct {
	abi      abi.Method
	handler  Handler
	readOnly bool
}

// Option configures an application.
type Option func(*Application)

// WithGlobalSchema sets the global state schema.
func WithGlobalSchema(numUint, numByteSlice uint64) Option {
	return func(a *Application) {
		a.global = types.StateSchema{NumUint: numUint, NumByteSlice: numByteSlice}
	}
}

// WithLocalSchema sets the local state schema.
func WithLocalSchema(numUint, numByteSlice uint64) Option {
	return func(a *Application) {
		a.local = types.StateSchema{NumUint: numUint, NumByteSlice: numByteSlice}
	}
}

// WithBareCreate accepts an application create call with no arguments.
func WithBareCreate() Option {
	return func(a *Application) { a.bareCreate = true }
}

// WithClearState sets the clear state program. The default approves.
func WithClearState(h Handler) Option {
	return func(a *Application) { a.clear = h }
}

// WithVersion pins the TEAL version of both programs. Without it the build's
// version is used.
func WithVersion(v int) Option {
	return func(a *Application) { a.version = v }
}

// WithDescription sets the contract description.
func WithDescription(desc string) Option {
	return func(a *Application) { a.desc = desc }
}

// Application is an ABI application definition. It is not safe to add
// methods while the application is being built.
type Application struct {
	name       string
	desc       string
	global     types.StateSchema
	local      types.StateSchema
	bareCreate bool
	clear      Handler
	version    int
	methods    []*method
	errs       []error
}

// New creates an application with no methods.
func New(name string, opts ...Option) *Application {
	a := &Application{name: name}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name identifies the application.
func (a *Application) Name() string { return a.name }

// Method registers an ABI method. Invalid signatures and duplicate selectors
// are reported when the application is built.
func (a *Application) Method(signature string, h Handler, opts ...MethodOption) *Application {
	m, err := abi.MethodFromSignature(signature)
	if err != nil {
		a.errs = append(a.errs, fmt.Errorf("%w: method %q: %v", precompile.ErrConfiguration, signature, err))
		return a
	}
	if h == nil {
		a.errs = append(a.errs, fmt.Errorf("%w: method %q has no handler", precompile.ErrConfiguration, signature))
		return a
	}
	for _, existing := range a.methods {
		if existing.abi.GetSignature() == m.GetSignature() {
			a.errs = append(a.errs, fmt.Errorf("%w: method %q registered twice", precompile.ErrConfiguration, signature))
			return a
		}
	}
	meth := &method{abi: m, handler: h}
	for _, opt := range opts {
		opt(meth)
	}
	a.methods = append(a.methods, meth)
	return a
}

// Methods returns the ABI methods in registration order.
func (a *Application) Methods() []abi.Method {
	out := make([]abi.Method, len(a.methods))
	for i, m := range a.methods {
		out[i] = m.abi
	}
	return out
}

// Contract describes the application's ABI interface.
func (a *Application) Contract() abi.Contract {
	return abi.Contract{Name: a.name, Desc: a.desc, Methods: a.Methods()}
}

// PrecompiledApp resolves a nested application for this application's build.
func (a *Application) PrecompiledApp(bc *precompile.Context, nested precompile.AppDefinition) (*precompile.AppPrecompile, error) {
	return bc.ResolveApp(a, nested)
}

// PrecompiledLSig resolves a logic signature for this application's build.
func (a *Application) PrecompiledLSig(bc *precompile.Context, nested precompile.LSigDefinition) (*precompile.LSigPrecompile, error) {
	return bc.ResolveLSig(a, nested)
}

// PrecompiledLSigTemplate resolves a logic signature template for this
// application's build.
func (a *Application) PrecompiledLSigTemplate(bc *precompile.Context, nested precompile.LSigTemplateDefinition) (*precompile.LSigTemplatePrecompile, error) {
	return bc.ResolveLSigTemplate(a, nested)
}

// BuildPrograms evaluates every handler in registration order and renders the
// router and clear state programs.
func (a *Application) BuildPrograms(bc *precompile.Context) (*precompile.AppPrograms, error) {
	router, err := a.Router(bc)
	if err != nil {
		return nil, err
	}
	version := a.version
	if version == 0 {
		version = bc.TealVersion()
	}
	opts := teal.Options{Version: version, Mode: teal.ModeApplication}
	approval, err := teal.Compile(router, opts)
	if err != nil {
		return nil, fmt.Errorf("approval program: %w", err)
	}

	clearExpr, err := a.clearExpr(bc)
	if err != nil {
		return nil, err
	}
	clear, err := teal.Compile(clearExpr, opts)
	if err != nil {
		return nil, fmt.Errorf("clear state program: %w", err)
	}

	return &precompile.AppPrograms{
		Approval:     approval,
		Clear:        clear,
		GlobalSchema: a.global,
		LocalSchema:  a.local,
	}, nil
}

// Router is the approval program expression. It routes on the method
// selector in the first application argument; unmatched calls fail. Handlers
// run against bc, so nested precompiles are resolved as a side effect.
func (a *Application) Router(bc *precompile.Context) (teal.Expr, error) {
	if len(a.errs) > 0 {
		return nil, precompile.WrapBuildError(a.name, precompile.StepDeclaration, errors.Join(a.errs...))
	}

	var cases []teal.Case
	if a.bareCreate {
		cases = append(cases, teal.Case{
			When: teal.And(
				teal.Eq(teal.TxnApplicationID(), teal.Int(0)),
				teal.Eq(teal.TxnNumAppArgs(), teal.Int(0)),
			),
			Then: teal.Approve(),
		})
	}
	for _, m := range a.methods {
		body, err := m.handler(bc)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", m.abi.Name, err)
		}
		then, err := methodBody(m, body)
		if err != nil {
			return nil, precompile.WrapBuildError(a.name, precompile.StepDeclaration, err)
		}
		cases = append(cases, teal.Case{
			When: teal.And(
				teal.And(
					teal.Neq(teal.TxnApplicationID(), teal.Int(0)),
					teal.Eq(teal.TxnOnCompletion(), teal.Int(onCompletionNoOp)),
				),
				teal.Eq(teal.ApplicationArg(0), teal.Bytes(m.abi.GetSelector())),
			),
			Then: teal.Comment(m.abi.GetSignature(), then),
		})
	}
	return teal.Cond(cases...), nil
}

func (a *Application) clearExpr(bc *precompile.Context) (teal.Expr, error) {
	if a.clear == nil {
		return teal.Approve(), nil
	}
	x, err := a.clear(bc)
	if err != nil {
		return nil, fmt.Errorf("clear state program: %w", err)
	}
	if x == nil {
		return nil, fmt.Errorf("%w: clear state program is empty", precompile.ErrConfiguration)
	}
	return x, nil
}

// methodBody logs the handler's result as the ABI return value and approves.
func methodBody(m *method, body teal.Expr) (teal.Expr, error) {
	if body == nil {
		return nil, fmt.Errorf("%w: method %s returned no body", precompile.ErrConfiguration, m.abi.Name)
	}
	void := m.abi.Returns.Type == abi.VoidReturnType
	switch t := body.Type(); {
	case t == teal.TypeNone && void:
		return teal.Seq(body, teal.Approve()), nil
	case t == teal.TypeUint64 && !void:
		return teal.Seq(teal.Log(teal.Concat(teal.Bytes(ReturnPrefix), teal.Itob(body))), teal.Approve()), nil
	case t == teal.TypeBytes && !void:
		return teal.Seq(teal.Log(teal.Concat(teal.Bytes(ReturnPrefix), body)), teal.Approve()), nil
	default:
		return nil, fmt.Errorf("%w: method %s returns %s but its body leaves %s",
			precompile.ErrConfiguration, m.abi.Name, m.abi.Returns.Type, t)
	}
}

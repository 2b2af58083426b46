// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package precompile

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/aplane-algo/beaker/internal/compiler"
	"github.com/aplane-algo/beaker/internal/teal"
)

// DefaultPageSize is the AVM program page size in bytes.
const DefaultPageSize = 2048

// Definition is something that can be precompiled. Implementations must be
// comparable; pointers are the usual choice.
type Definition interface {
	Name() string
}

// AppDefinition is an application. BuildPrograms renders the approval and
// clear programs, resolving nested precompiles through bc.
type AppDefinition interface {
	Definition
	BuildPrograms(bc *Context) (*AppPrograms, error)
}

// LSigDefinition is a logic signature.
type LSigDefinition interface {
	Definition
	Program() (string, error)
}

// LSigTemplateDefinition is a logic signature with template variables.
type LSigTemplateDefinition interface {
	LSigDefinition
	TemplateVariables() []TemplateVariable
}

// Handle identifies a definition within one build.
type Handle int

// arena assigns handles to definitions in order of first sight.
type arena struct {
	ids   map[Definition]Handle
	names []string
}

func (a *arena) handle(def Definition) (Handle, error) {
	if isNilDefinition(def) {
		return 0, fmt.Errorf("%w: nil definition %T", ErrConfiguration, def)
	}
	if !reflect.TypeOf(def).Comparable() {
		return 0, fmt.Errorf("%w: definition %q of type %T is not comparable", ErrConfiguration, def.Name(), def)
	}
	if h, ok := a.ids[def]; ok {
		return h, nil
	}
	h := Handle(len(a.names))
	a.ids[def] = h
	a.names = append(a.names, def.Name())
	return h, nil
}

// isNilDefinition reports whether def is nil or wraps a nil pointer, map,
// slice, func or channel.
func isNilDefinition(def Definition) bool {
	if def == nil {
		return true
	}
	v := reflect.ValueOf(def)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Option configures a build.
type Option func(*build)

// WithLogger sets the logger used for resolution and assembly diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *build) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithPageSize sets the program page size used for creation parameters.
func WithPageSize(size int) Option {
	return func(b *build) {
		if size > 0 {
			b.pageSize = size
		}
	}
}

// WithTealVersion sets the TEAL version for applications that do not pin
// their own.
func WithTealVersion(v int) Option {
	return func(b *build) {
		if v > 0 {
			b.tealVersion = v
		}
	}
}

// build is the state shared by every context of one top-level build.
type build struct {
	ctx         context.Context
	compiler    compiler.Compiler
	logger      *slog.Logger
	pageSize    int
	tealVersion int
	arena       arena
}

func newBuild(ctx context.Context, c compiler.Compiler, opts []Option) (*build, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: no compiler", ErrConfiguration)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	b := &build{
		ctx:         ctx,
		compiler:    c,
		logger:      slog.New(slog.DiscardHandler),
		pageSize:    DefaultPageSize,
		tealVersion: teal.DefaultVersion,
		arena:       arena{ids: make(map[Definition]Handle)},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Context scopes the build of one application. Handler bodies receive it and
// resolve nested precompiles through it; each resolved definition is
// compiled at most once per Context.
//
// A Context is not safe for concurrent use. Independent builds use
// independent contexts.
type Context struct {
	b      *build
	app    Definition
	parent *Context
	depth  int
	cache  map[Handle]Precompile
	order  []Precompile
	closed bool
}

// Enter opens a root context for app.
func Enter(ctx context.Context, app Definition, c compiler.Compiler, opts ...Option) (*Context, error) {
	b, err := newBuild(ctx, c, opts)
	if err != nil {
		return nil, err
	}
	return b.enter(nil, app)
}

func (b *build) enter(parent *Context, app Definition) (*Context, error) {
	if _, err := b.arena.handle(app); err != nil {
		return nil, err
	}
	bc := &Context{
		b:      b,
		app:    app,
		parent: parent,
		cache:  make(map[Handle]Precompile),
	}
	if parent != nil {
		bc.depth = parent.depth + 1
	}
	b.logger.Debug("entered precompile context", "app", app.Name(), "depth", bc.depth)
	return bc, nil
}

// Close discards the cache. Resolving through a closed context fails; the
// parent context is unaffected.
func (bc *Context) Close() {
	if bc == nil || bc.closed {
		return
	}
	bc.closed = true
	bc.cache = nil
	bc.b.logger.Debug("closed precompile context", "app", bc.app.Name(), "depth", bc.depth)
}

// App is the application being built.
func (bc *Context) App() Definition { return bc.app }

// Compiler is the compiler used by the build.
func (bc *Context) Compiler() compiler.Compiler { return bc.b.compiler }

// TealVersion is the build's default TEAL version.
func (bc *Context) TealVersion() int { return bc.b.tealVersion }

// Depth is zero for the root application and grows by one per nesting level.
func (bc *Context) Depth() int { return bc.depth }

// Parent is the context of the application that precompiles this one.
func (bc *Context) Parent() *Context { return bc.parent }

// Logger is the build's logger.
func (bc *Context) Logger() *slog.Logger { return bc.b.logger }

// Active reports whether the context can still resolve.
func (bc *Context) Active() bool { return bc != nil && !bc.closed }

// Handles returns the names of every definition seen by the build, by handle.
func (bc *Context) Handles() map[Handle]string {
	out := make(map[Handle]string, len(bc.b.arena.names))
	for i, name := range bc.b.arena.names {
		out[Handle(i)] = name
	}
	return out
}

// Dependencies returns the precompiles resolved through this context, in
// resolution order.
func (bc *Context) Dependencies() []Precompile {
	return append([]Precompile(nil), bc.order...)
}

// Resolve returns the precompile for nested, compiling it on first use.
// owner must be the application this context is building.
func (bc *Context) Resolve(owner, nested Definition) (Precompile, error) {
	if !bc.Active() {
		return nil, ErrNoActiveContext
	}
	if !sameDefinition(owner, bc.app) {
		name := "<nil>"
		if !isNilDefinition(owner) {
			name = owner.Name()
		}
		return nil, fmt.Errorf("%w: %s resolved while building %s", ErrForeignContext, name, bc.app.Name())
	}
	if isNilDefinition(nested) {
		return nil, WrapBuildError("<nil>", StepResolution, fmt.Errorf("%w: nil definition %T", ErrConfiguration, nested))
	}

	h, err := bc.b.arena.handle(nested)
	if err != nil {
		return nil, WrapBuildError(nested.Name(), StepResolution, err)
	}
	if p, ok := bc.cache[h]; ok {
		bc.b.logger.Debug("precompile cache hit", "name", nested.Name(), "handle", h, "app", bc.app.Name())
		return p, nil
	}
	for anc := bc; anc != nil; anc = anc.parent {
		if sameDefinition(anc.app, nested) {
			return nil, WrapBuildError(nested.Name(), StepResolution,
				fmt.Errorf("%w: %s precompiles itself", ErrConfiguration, nested.Name()))
		}
	}

	p, err := bc.compile(nested)
	if err != nil {
		return nil, err
	}
	bc.cache[h] = p
	bc.order = append(bc.order, p)
	bc.b.logger.Debug("resolved precompile",
		"name", nested.Name(), "kind", p.Kind(), "handle", h, "app", bc.app.Name(), "depth", bc.depth)
	return p, nil
}

// compile classifies nested by capability and builds the matching wrapper.
func (bc *Context) compile(nested Definition) (Precompile, error) {
	var (
		p   Precompile
		err error
	)
	switch d := nested.(type) {
	case LSigTemplateDefinition:
		t := NewLSigTemplatePrecompile(d)
		p, err = t, t.build(bc.b)
	case LSigDefinition:
		l := NewLSigPrecompile(d)
		p, err = l, l.build(bc.b)
	case AppDefinition:
		a := NewAppPrecompile(d)
		p, err = a, a.build(bc.b, bc)
	default:
		err = WrapBuildError(nested.Name(), StepDeclaration,
			fmt.Errorf("%w: %T is neither an application nor a logic signature", ErrConfiguration, nested))
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ResolveApp resolves an application precompile.
func (bc *Context) ResolveApp(owner Definition, nested AppDefinition) (*AppPrecompile, error) {
	p, err := bc.Resolve(owner, nested)
	if err != nil {
		return nil, err
	}
	app, ok := p.(*AppPrecompile)
	if !ok {
		return nil, WrapBuildError(nested.Name(), StepResolution,
			fmt.Errorf("%w: resolved as %s, not an application", ErrConfiguration, p.Kind()))
	}
	return app, nil
}

// ResolveLSig resolves a logic signature precompile.
func (bc *Context) ResolveLSig(owner Definition, nested LSigDefinition) (*LSigPrecompile, error) {
	p, err := bc.Resolve(owner, nested)
	if err != nil {
		return nil, err
	}
	lsig, ok := p.(*LSigPrecompile)
	if !ok {
		return nil, WrapBuildError(nested.Name(), StepResolution,
			fmt.Errorf("%w: resolved as %s, not a logic signature", ErrConfiguration, p.Kind()))
	}
	return lsig, nil
}

// ResolveLSigTemplate resolves a logic signature template precompile.
func (bc *Context) ResolveLSigTemplate(owner Definition, nested LSigTemplateDefinition) (*LSigTemplatePrecompile, error) {
	p, err := bc.Resolve(owner, nested)
	if err != nil {
		return nil, err
	}
	// Classification always picks the template kind for template definitions.
	return p.(*LSigTemplatePrecompile), nil
}

func sameDefinition(a, b Definition) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

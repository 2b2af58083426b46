// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package logicsig defines logic signature programs that can be precompiled.
//
// A LogicSignature renders a fixed program. A Template additionally declares
// template variables; each variable is loaded from its placeholder into a
// scratch slot before the body runs, so the body reads variables as ordinary
// expressions and the placeholders appear exactly once in the program.
package logicsig

import (
	"fmt"
	"strings"

	"github.com/aplane-algo/beaker/internal/precompile"
	"github.com/aplane-algo/beaker/internal/teal"
)

// Option configures a logic signature.
type Option func(*options)

type options struct {
	version int
}

// WithVersion sets the TEAL version the program is rendered for.
func WithVersion(v int) Option {
	return func(o *options) { o.version = v }
}

func newOptions(opts []Option) options {
	o := options{version: teal.DefaultVersion}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// LogicSignature is a logic signature with a fixed program.
type LogicSignature struct {
	name     string
	evaluate func() teal.Expr
	opts     options
}

// New creates a logic signature whose program is the expression returned by
// evaluate.
func New(name string, evaluate func() teal.Expr, opts ...Option) *LogicSignature {
	return &LogicSignature{name: name, evaluate: evaluate, opts: newOptions(opts)}
}

// Name identifies the logic signature in diagnostics.
func (l *LogicSignature) Name() string { return l.name }

// Version is the TEAL version the program is rendered for.
func (l *LogicSignature) Version() int { return l.opts.version }

// Expr is the program as an expression tree.
func (l *LogicSignature) Expr() (teal.Expr, error) {
	if l.evaluate == nil {
		return nil, fmt.Errorf("%w: logic signature %s has no body", precompile.ErrConfiguration, l.name)
	}
	body := l.evaluate()
	if body == nil {
		return nil, fmt.Errorf("%w: logic signature %s has an empty body", precompile.ErrConfiguration, l.name)
	}
	return body, nil
}

// Program renders the logic signature in signature mode.
func (l *LogicSignature) Program() (string, error) {
	body, err := l.Expr()
	if err != nil {
		return "", err
	}
	return render(l.name, body, l.opts)
}

// Vars maps a template variable name to the expression reading its value.
type Vars map[string]teal.Expr

// Template is a logic signature with template variables.
type Template struct {
	name     string
	vars     []precompile.TemplateVariable
	evaluate func(Vars) teal.Expr
	opts     options
}

// NewTemplate creates a template. Variables are loaded in declaration order.
func NewTemplate(name string, variables []precompile.TemplateVariable, evaluate func(Vars) teal.Expr, opts ...Option) (*Template, error) {
	if len(variables) == 0 {
		return nil, fmt.Errorf("%w: template %s declares no variables", precompile.ErrConfiguration, name)
	}
	seen := make(map[string]bool, len(variables))
	for _, v := range variables {
		if !v.Type.IsValue() {
			return nil, fmt.Errorf("%w: %s is %s", precompile.ErrUnsupportedType, v.Name, v.Type)
		}
		key := strings.ToUpper(v.Name)
		if seen[key] {
			return nil, fmt.Errorf("%w: template %s declares %s twice", precompile.ErrConfiguration, name, v.Name)
		}
		seen[key] = true
	}
	return &Template{
		name:     name,
		vars:     append([]precompile.TemplateVariable(nil), variables...),
		evaluate: evaluate,
		opts:     newOptions(opts),
	}, nil
}

// MustTemplate is like NewTemplate but panics on error. It is meant for
// package-level declarations.
func MustTemplate(name string, variables []precompile.TemplateVariable, evaluate func(Vars) teal.Expr, opts ...Option) *Template {
	t, err := NewTemplate(name, variables, evaluate, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// MustVariable is like precompile.NewTemplateVariable but panics on error.
func MustVariable(name string, typ teal.StackType) precompile.TemplateVariable {
	v, err := precompile.NewTemplateVariable(name, typ)
	if err != nil {
		panic(err)
	}
	return v
}

// Name identifies the template in diagnostics.
func (t *Template) Name() string { return t.name }

// Version is the TEAL version the program is rendered for.
func (t *Template) Version() int { return t.opts.version }

// TemplateVariables returns the declared variables in declaration order.
func (t *Template) TemplateVariables() []precompile.TemplateVariable {
	return append([]precompile.TemplateVariable(nil), t.vars...)
}

// Expr is the program as an expression tree: every variable is stored from
// its placeholder, then the body runs.
func (t *Template) Expr() (teal.Expr, error) {
	if t.evaluate == nil {
		return nil, fmt.Errorf("%w: template %s has no body", precompile.ErrConfiguration, t.name)
	}
	vars := make(Vars, len(t.vars))
	steps := make([]teal.Expr, 0, len(t.vars)+1)
	for _, v := range t.vars {
		slot := teal.NewScratchVar(v.Type)
		steps = append(steps, slot.Store(v.Placeholder()))
		vars[v.Name] = slot.Load()
	}
	body := t.evaluate(vars)
	if body == nil {
		return nil, fmt.Errorf("%w: template %s has an empty body", precompile.ErrConfiguration, t.name)
	}
	return teal.Seq(append(steps, body)...), nil
}

// Program renders the template in signature mode. Placeholders are left in
// place.
func (t *Template) Program() (string, error) {
	x, err := t.Expr()
	if err != nil {
		return "", err
	}
	return render(t.name, x, t.opts)
}

func render(name string, x teal.Expr, o options) (string, error) {
	src, err := teal.Compile(x, teal.Options{Version: o.version, Mode: teal.ModeSignature})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return src, nil
}

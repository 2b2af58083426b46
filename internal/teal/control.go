// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package teal

import (
	"fmt"
)

type seqExpr struct{ exprs []Expr }

// Seq evaluates exprs in order. Values left by all but the last are discarded;
// the sequence has the type of its last expression.
func Seq(exprs ...Expr) Expr { return seqExpr{exprs: exprs} }

func (x seqExpr) Type() StackType {
	if len(x.exprs) == 0 || x.exprs[len(x.exprs)-1] == nil {
		return TypeNone
	}
	return x.exprs[len(x.exprs)-1].Type()
}

func (x seqExpr) String() string { return fmt.Sprintf("(seq %d)", len(x.exprs)) }

func (x seqExpr) emit(e *emitter) error {
	for i, s := range x.exprs {
		if i == len(x.exprs)-1 {
			if s == nil {
				return ErrNilExpr
			}
			return s.emit(e)
		}
		if err := e.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (x seqExpr) eval(m *Machine) (Value, error) {
	var last Value
	for _, s := range x.exprs {
		if s == nil {
			return Value{}, ErrNilExpr
		}
		v, err := s.eval(m)
		if err != nil {
			return Value{}, err
		}
		last = v
	}
	return last, nil
}

type assertExpr struct {
	cond Expr
	msg  string
}

// Assert fails the program unless cond is non-zero. A non-empty message is
// rendered as a comment on the line before the assert.
func Assert(cond Expr, msg string) Expr { return assertExpr{cond: cond, msg: msg} }

func (x assertExpr) Type() StackType { return TypeNone }
func (x assertExpr) String() string  { return "(assert)" }

func (x assertExpr) emit(e *emitter) error {
	if err := e.value(x.cond, TypeUint64); err != nil {
		return err
	}
	if x.msg != "" {
		e.comment(x.msg)
	}
	e.op("assert")
	return nil
}

func (x assertExpr) eval(m *Machine) (Value, error) {
	v, err := m.value(x.cond, TypeUint64)
	if err != nil {
		return Value{}, err
	}
	if v.Uint == 0 {
		if x.msg != "" {
			return Value{}, fmt.Errorf("%w: %s", ErrAssertFailed, x.msg)
		}
		return Value{}, ErrAssertFailed
	}
	return Value{}, m.step()
}

type ifExpr struct{ cond, then, els Expr }

// If evaluates then when cond is non-zero and els otherwise. els may be nil
// when then leaves no value.
func If(cond, then, els Expr) Expr { return ifExpr{cond: cond, then: then, els: els} }

func (x ifExpr) Type() StackType {
	if x.then == nil {
		return TypeNone
	}
	return x.then.Type()
}

func (x ifExpr) String() string { return "(if)" }

func (x ifExpr) emit(e *emitter) error {
	if x.then == nil {
		return ErrNilExpr
	}
	t := x.then.Type()
	if x.els == nil && t != TypeNone {
		return typeError("if without else", t, TypeNone)
	}
	if x.els != nil && !compatible(x.els.Type(), t) {
		return typeError("else branch", x.els.Type(), t)
	}
	if err := e.value(x.cond, TypeUint64); err != nil {
		return err
	}
	elseLabel := e.label("if_else")
	e.op("bz %s", elseLabel)
	if err := x.then.emit(e); err != nil {
		return err
	}
	if x.els == nil {
		e.mark(elseLabel)
		return nil
	}
	endLabel := e.label("if_end")
	e.op("b %s", endLabel)
	e.mark(elseLabel)
	if err := x.els.emit(e); err != nil {
		return err
	}
	e.mark(endLabel)
	return nil
}

func (x ifExpr) eval(m *Machine) (Value, error) {
	c, err := m.value(x.cond, TypeUint64)
	if err != nil {
		return Value{}, err
	}
	if c.Uint != 0 {
		return m.eval(x.then)
	}
	if x.els == nil {
		return Value{}, nil
	}
	return m.eval(x.els)
}

type whileExpr struct{ cond, body Expr }

// While repeats body while cond is non-zero.
func While(cond, body Expr) Expr { return whileExpr{cond: cond, body: body} }

func (x whileExpr) Type() StackType { return TypeNone }
func (x whileExpr) String() string  { return "(while)" }

func (x whileExpr) emit(e *emitter) error {
	top := e.label("while_top")
	end := e.label("while_end")
	e.mark(top)
	if err := e.value(x.cond, TypeUint64); err != nil {
		return err
	}
	e.op("bz %s", end)
	if err := e.stmt(x.body); err != nil {
		return err
	}
	e.op("b %s", top)
	e.mark(end)
	return nil
}

func (x whileExpr) eval(m *Machine) (Value, error) {
	for {
		c, err := m.value(x.cond, TypeUint64)
		if err != nil {
			return Value{}, err
		}
		if c.Uint == 0 {
			return Value{}, nil
		}
		if _, err := m.eval(x.body); err != nil {
			return Value{}, err
		}
	}
}

// Case is one branch of a Cond.
type Case struct {
	When Expr
	Then Expr
}

type condExpr struct{ cases []Case }

// Cond evaluates the Then of the first case whose When is non-zero. The
// program fails when no case matches.
func Cond(cases ...Case) Expr { return condExpr{cases: cases} }

func (x condExpr) Type() StackType {
	if len(x.cases) == 0 || x.cases[0].Then == nil {
		return TypeNone
	}
	return x.cases[0].Then.Type()
}

func (x condExpr) String() string { return fmt.Sprintf("(cond %d)", len(x.cases)) }

func (x condExpr) emit(e *emitter) error {
	t := x.Type()
	labels := make([]string, len(x.cases))
	for i, c := range x.cases {
		if c.Then == nil {
			return ErrNilExpr
		}
		if got := c.Then.Type(); !compatible(got, t) {
			return typeError(fmt.Sprintf("cond branch %d", i), got, t)
		}
		if err := e.value(c.When, TypeUint64); err != nil {
			return err
		}
		labels[i] = e.label("case")
		e.op("bnz %s", labels[i])
	}
	e.op("err")
	end := e.label("cond_end")
	for i, c := range x.cases {
		e.mark(labels[i])
		if err := c.Then.emit(e); err != nil {
			return err
		}
		if i < len(x.cases)-1 {
			e.op("b %s", end)
		}
	}
	e.mark(end)
	return nil
}

func (x condExpr) eval(m *Machine) (Value, error) {
	for _, c := range x.cases {
		v, err := m.value(c.When, TypeUint64)
		if err != nil {
			return Value{}, err
		}
		if v.Uint != 0 {
			return m.eval(c.Then)
		}
	}
	return Value{}, ErrErrOpcode
}

// ScratchVar is a scratch slot. Slots are assigned when a program is rendered,
// so a variable is identified by its pointer.
type ScratchVar struct {
	typ StackType
}

// NewScratchVar allocates a scratch variable holding values of typ.
func NewScratchVar(typ StackType) *ScratchVar { return &ScratchVar{typ: typ} }

// Type is the type of values stored in v.
func (v *ScratchVar) Type() StackType { return v.typ }

// Store writes x into v.
func (v *ScratchVar) Store(x Expr) Expr { return storeExpr{v: v, x: x} }

// Load reads v.
func (v *ScratchVar) Load() Expr { return loadExpr{v: v} }

type storeExpr struct {
	v *ScratchVar
	x Expr
}

func (s storeExpr) Type() StackType { return TypeNone }
func (s storeExpr) String() string  { return "(store)" }

func (s storeExpr) emit(e *emitter) error {
	if err := e.value(s.x, s.v.typ); err != nil {
		return err
	}
	n, err := e.slot(s.v)
	if err != nil {
		return err
	}
	e.op("store %d", n)
	return nil
}

func (s storeExpr) eval(m *Machine) (Value, error) {
	v, err := m.value(s.x, s.v.typ)
	if err != nil {
		return Value{}, err
	}
	m.scratch[s.v] = v
	return Value{}, m.step()
}

type loadExpr struct{ v *ScratchVar }

func (l loadExpr) Type() StackType { return l.v.typ }
func (l loadExpr) String() string  { return "(load)" }

func (l loadExpr) emit(e *emitter) error {
	n, err := e.slot(l.v)
	if err != nil {
		return err
	}
	e.op("load %d", n)
	return nil
}

func (l loadExpr) eval(m *Machine) (Value, error) {
	v, ok := m.scratch[l.v]
	if !ok {
		v = zeroValue(l.v.typ)
	}
	return v, m.step()
}

type haltExpr struct {
	x    Expr
	kind string
}

// Return ends the program, approving it when x is non-zero.
func Return(x Expr) Expr { return haltExpr{x: x, kind: "return"} }

// Approve ends the program successfully.
func Approve() Expr { return haltExpr{x: Int(1), kind: "approve"} }

// Reject ends the program unsuccessfully.
func Reject() Expr { return haltExpr{x: Int(0), kind: "reject"} }

// Err fails the program immediately.
func Err() Expr { return haltExpr{kind: "err"} }

func (h haltExpr) Type() StackType { return TypeNone }
func (h haltExpr) String() string  { return "(" + h.kind + ")" }

func (h haltExpr) emit(e *emitter) error {
	if h.kind == "err" {
		e.op("err")
		return nil
	}
	if err := e.value(h.x, TypeUint64); err != nil {
		return err
	}
	e.op("return")
	return nil
}

func (h haltExpr) eval(m *Machine) (Value, error) {
	if h.kind == "err" {
		return Value{}, ErrErrOpcode
	}
	v, err := m.value(h.x, TypeUint64)
	if err != nil {
		return Value{}, err
	}
	return Value{}, &halt{approved: v.Uint != 0}
}

type commentExpr struct {
	text string
	x    Expr
}

// Comment renders text as a comment before x.
func Comment(text string, x Expr) Expr { return commentExpr{text: text, x: x} }

func (c commentExpr) Type() StackType {
	if c.x == nil {
		return TypeNone
	}
	return c.x.Type()
}

func (c commentExpr) String() string { return "(comment)" }

func (c commentExpr) emit(e *emitter) error {
	if c.x == nil {
		return ErrNilExpr
	}
	e.comment(c.text)
	return c.x.emit(e)
}

func (c commentExpr) eval(m *Machine) (Value, error) { return m.eval(c.x) }

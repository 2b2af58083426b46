// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package teal

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps bounds the number of nodes a Machine evaluates.
const DefaultMaxSteps = 1_000_000

// Machine evaluates expressions off-chain.
//
// Transaction and global fields are read from Txn and Global; fields that are
// not set evaluate to the zero value of their type. A Machine is not safe for
// concurrent use.
type Machine struct {
	Txn             map[string]Value
	Global          map[string]Value
	ApplicationArgs [][]byte
	Args            [][]byte

	// GlobalState is the current application's global state.
	GlobalState map[string]Value

	// Templates resolves placeholder tokens, keyed by token.
	Templates map[string]Value

	Logs      [][]byte
	InnerTxns []InnerTxn

	MaxSteps int

	scratch   map[*ScratchVar]Value
	steps     int
	nextAppID uint64
}

// NewMachine returns a Machine with empty transaction context.
func NewMachine() *Machine {
	return &Machine{
		Txn:         make(map[string]Value),
		Global:      make(map[string]Value),
		GlobalState: make(map[string]Value),
		Templates:   make(map[string]Value),
		MaxSteps:    DefaultMaxSteps,
		scratch:     make(map[*ScratchVar]Value),
		nextAppID:   1000,
	}
}

// halt unwinds evaluation when a program returns.
type halt struct{ approved bool }

func (h *halt) Error() string {
	if h.approved {
		return "program approved"
	}
	return "program rejected"
}

// Eval evaluates a value expression. Expressions that end the program are
// reported as errors; use Run for complete programs.
func (m *Machine) Eval(x Expr) (Value, error) {
	v, err := m.eval(x)
	var h *halt
	if errors.As(err, &h) {
		return Value{}, fmt.Errorf("expression halted: %s", h.Error())
	}
	return v, err
}

// Run evaluates a complete program and reports whether it approved.
func (m *Machine) Run(x Expr) (bool, error) {
	v, err := m.eval(x)
	var h *halt
	if errors.As(err, &h) {
		return h.approved, nil
	}
	if err != nil {
		return false, err
	}
	switch v.Type {
	case TypeUint64:
		return v.Uint != 0, nil
	case TypeNone:
		return false, fmt.Errorf("program ended without return")
	default:
		return false, typeError("program result", v.Type, TypeUint64)
	}
}

// Steps is the number of nodes evaluated so far.
func (m *Machine) Steps() int { return m.steps }

func (m *Machine) eval(x Expr) (Value, error) {
	if x == nil {
		return Value{}, ErrNilExpr
	}
	if m.scratch == nil {
		m.scratch = make(map[*ScratchVar]Value)
	}
	return x.eval(m)
}

// value evaluates x and checks that the result is compatible with want.
func (m *Machine) value(x Expr, want StackType) (Value, error) {
	v, err := m.eval(x)
	if err != nil {
		return Value{}, err
	}
	if !compatible(v.Type, want) {
		return Value{}, typeError(describe(x), v.Type, want)
	}
	return v, nil
}

func (m *Machine) step() error {
	m.steps++
	limit := m.MaxSteps
	if limit == 0 {
		limit = DefaultMaxSteps
	}
	if m.steps > limit {
		return ErrBudgetExceeded
	}
	return nil
}

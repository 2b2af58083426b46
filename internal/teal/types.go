// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package teal provides a small typed expression tree for AVM programs.
//
// Expressions are built with the constructors in this package and rendered to
// TEAL source with Compile. The same tree can be evaluated off-chain with a
// Machine, which implements the subset of AVM semantics the nodes use. The
// evaluator is the reference used to check that expressions built for on-chain
// use agree with their off-chain counterparts.
package teal

import (
	"bytes"
	"errors"
	"fmt"
)

// StackType is the AVM type an expression leaves on the stack.
type StackType int

const (
	// TypeNone marks statements that leave nothing on the stack.
	TypeNone StackType = iota
	// TypeUint64 is an unsigned 64-bit integer.
	TypeUint64
	// TypeBytes is a byte slice.
	TypeBytes
	// TypeAny is either uint64 or bytes, decided at runtime.
	TypeAny
)

func (t StackType) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeUint64:
		return "uint64"
	case TypeBytes:
		return "bytes"
	case TypeAny:
		return "any"
	default:
		return fmt.Sprintf("StackType(%d)", int(t))
	}
}

// IsValue reports whether t is one of the two concrete AVM value kinds.
func (t StackType) IsValue() bool {
	return t == TypeUint64 || t == TypeBytes
}

// compatible reports whether an expression of type got can be used where want is expected.
func compatible(got, want StackType) bool {
	switch {
	case got == want:
		return true
	case want == TypeAny:
		return got != TypeNone
	case got == TypeAny:
		return want != TypeNone
	default:
		return false
	}
}

// Mode is the execution mode a program is compiled for.
type Mode int

const (
	// ModeApplication is a stateful application program.
	ModeApplication Mode = iota
	// ModeSignature is a logic signature program.
	ModeSignature
)

func (m Mode) String() string {
	if m == ModeSignature {
		return "signature"
	}
	return "application"
}

// Supported TEAL versions.
const (
	MinVersion     = 8
	MaxVersion     = 11
	DefaultVersion = 10
)

// Options control program rendering.
type Options struct {
	Version int
	Mode    Mode
}

func (o Options) withDefaults() Options {
	if o.Version == 0 {
		o.Version = DefaultVersion
	}
	return o
}

// Value is a runtime AVM value.
type Value struct {
	Type  StackType
	Uint  uint64
	Bytes []byte
}

// Uint returns a uint64 value.
func Uint(v uint64) Value { return Value{Type: TypeUint64, Uint: v} }

// ByteValue returns a bytes value.
func ByteValue(b []byte) Value { return Value{Type: TypeBytes, Bytes: b} }

func zeroValue(t StackType) Value {
	if t == TypeBytes {
		return ByteValue(nil)
	}
	return Uint(0)
}

// Equal reports whether two values have the same type and content.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	if v.Type == TypeBytes {
		return bytes.Equal(v.Bytes, o.Bytes)
	}
	return v.Uint == o.Uint
}

func (v Value) String() string {
	if v.Type == TypeBytes {
		return fmt.Sprintf("0x%x", v.Bytes)
	}
	return fmt.Sprintf("%d", v.Uint)
}

// Errors returned by rendering and evaluation.
var (
	ErrNilExpr            = errors.New("nil expression")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrUnsupportedVersion = errors.New("unsupported TEAL version")
	ErrModeViolation      = errors.New("opcode not allowed in this mode")
	ErrScratchExhausted   = errors.New("scratch space exhausted")

	ErrAssertFailed       = errors.New("assert failed")
	ErrErrOpcode          = errors.New("err opcode executed")
	ErrOutOfRange         = errors.New("index out of range")
	ErrOverflow           = errors.New("integer overflow")
	ErrDivideByZero       = errors.New("division by zero")
	ErrUnresolvedTemplate = errors.New("unresolved template placeholder")
	ErrBudgetExceeded     = errors.New("evaluation budget exceeded")
)

func typeError(what string, got, want StackType) error {
	return fmt.Errorf("%w: %s is %s, want %s", ErrTypeMismatch, what, got, want)
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package teal

import (
	"fmt"
	"strings"
)

// maxScratchSlots is the number of scratch slots available to a program.
const maxScratchSlots = 256

// emitter accumulates TEAL lines for one program.
type emitter struct {
	opts   Options
	lines  []string
	slots  map[*ScratchVar]int
	labels map[string]int
}

func newEmitter(opts Options) *emitter {
	return &emitter{
		opts:   opts,
		slots:  make(map[*ScratchVar]int),
		labels: make(map[string]int),
	}
}

func (e *emitter) op(format string, args ...any) {
	e.lines = append(e.lines, fmt.Sprintf(format, args...))
}

func (e *emitter) comment(text string) {
	for _, line := range strings.Split(text, "\n") {
		e.lines = append(e.lines, "// "+line)
	}
}

// label returns a fresh label name with the given prefix.
func (e *emitter) label(prefix string) string {
	n := e.labels[prefix]
	e.labels[prefix] = n + 1
	return fmt.Sprintf("%s_%d", prefix, n)
}

func (e *emitter) mark(label string) {
	e.lines = append(e.lines, label+":")
}

func (e *emitter) slot(v *ScratchVar) (int, error) {
	if n, ok := e.slots[v]; ok {
		return n, nil
	}
	n := len(e.slots)
	if n >= maxScratchSlots {
		return 0, ErrScratchExhausted
	}
	e.slots[v] = n
	return n, nil
}

// appOnly fails when an application-only opcode is used in a signature program.
func (e *emitter) appOnly(op string) error {
	if e.opts.Mode == ModeSignature {
		return fmt.Errorf("%w: %s in %s mode", ErrModeViolation, op, e.opts.Mode)
	}
	return nil
}

// value emits x, which must leave a value compatible with want.
func (e *emitter) value(x Expr, want StackType) error {
	if x == nil {
		return ErrNilExpr
	}
	if !compatible(x.Type(), want) {
		return typeError(describe(x), x.Type(), want)
	}
	return x.emit(e)
}

// stmt emits x and discards any value it leaves.
func (e *emitter) stmt(x Expr) error {
	if x == nil {
		return ErrNilExpr
	}
	if err := x.emit(e); err != nil {
		return err
	}
	if x.Type() != TypeNone {
		e.op("pop")
	}
	return nil
}

// Compile renders x as a complete TEAL program.
//
// A program whose expression leaves a uint64 ends with an implicit return of
// that value. Statement programs must terminate themselves.
func Compile(x Expr, opts Options) (string, error) {
	opts = opts.withDefaults()
	if opts.Version < MinVersion || opts.Version > MaxVersion {
		return "", fmt.Errorf("%w: %d (supported %d-%d)", ErrUnsupportedVersion, opts.Version, MinVersion, MaxVersion)
	}
	if x == nil {
		return "", ErrNilExpr
	}

	e := newEmitter(opts)
	e.op("#pragma version %d", opts.Version)

	switch t := x.Type(); t {
	case TypeNone:
		if err := x.emit(e); err != nil {
			return "", err
		}
	case TypeUint64, TypeAny:
		if err := x.emit(e); err != nil {
			return "", err
		}
		e.op("return")
	default:
		return "", typeError("program", t, TypeUint64)
	}

	return strings.Join(e.lines, "\n") + "\n", nil
}

func describe(x Expr) string {
	if s, ok := x.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", x)
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package teal

import (
	"fmt"
)

// Transaction type enum values used with the TypeEnum field.
const (
	TypeEnumPay  = 1
	TypeEnumAppl = 6
)

type fieldExpr struct {
	source string // "txn" or "global"
	field  string
	typ    StackType
}

// Txn reads a field of the current transaction.
func Txn(field string, typ StackType) Expr { return fieldExpr{source: "txn", field: field, typ: typ} }

// Global reads a global field.
func Global(field string, typ StackType) Expr {
	return fieldExpr{source: "global", field: field, typ: typ}
}

// Frequently used fields.
func TxnSender() Expr           { return Txn("Sender", TypeBytes) }
func TxnReceiver() Expr         { return Txn("Receiver", TypeBytes) }
func TxnCloseRemainderTo() Expr { return Txn("CloseRemainderTo", TypeBytes) }
func TxnRekeyTo() Expr          { return Txn("RekeyTo", TypeBytes) }
func TxnFee() Expr              { return Txn("Fee", TypeUint64) }
func TxnTypeEnum() Expr         { return Txn("TypeEnum", TypeUint64) }
func TxnApplicationID() Expr    { return Txn("ApplicationID", TypeUint64) }
func TxnNumAppArgs() Expr       { return Txn("NumAppArgs", TypeUint64) }
func TxnOnCompletion() Expr     { return Txn("OnCompletion", TypeUint64) }
func TxnFirstValid() Expr       { return Txn("FirstValid", TypeUint64) }
func GlobalZeroAddress() Expr   { return Global("ZeroAddress", TypeBytes) }
func GlobalRound() Expr         { return Global("Round", TypeUint64) }

func (x fieldExpr) Type() StackType { return x.typ }
func (x fieldExpr) String() string  { return "(" + x.source + " " + x.field + ")" }

func (x fieldExpr) emit(e *emitter) error {
	e.op("%s %s", x.source, x.field)
	return nil
}

func (x fieldExpr) eval(m *Machine) (Value, error) {
	fields := m.Txn
	if x.source == "global" {
		fields = m.Global
	}
	v, ok := fields[x.field]
	switch {
	case ok:
	case x.source == "txn" && x.field == "NumAppArgs":
		v = Uint(uint64(len(m.ApplicationArgs)))
	default:
		v = zeroValue(x.typ)
	}
	if v.Type != x.typ {
		return Value{}, typeError(x.source+" "+x.field, v.Type, x.typ)
	}
	return v, m.step()
}

type argExpr struct {
	appArg bool
	index  int
}

// ApplicationArg reads application call argument i.
func ApplicationArg(i int) Expr { return argExpr{appArg: true, index: i} }

// Arg reads logic signature argument i.
func Arg(i int) Expr { return argExpr{index: i} }

func (x argExpr) Type() StackType { return TypeBytes }
func (x argExpr) String() string  { return fmt.Sprintf("(arg %d)", x.index) }

func (x argExpr) emit(e *emitter) error {
	if x.index < 0 || x.index > 255 {
		return fmt.Errorf("%w: argument %d", ErrOutOfRange, x.index)
	}
	if x.appArg {
		e.op("txna ApplicationArgs %d", x.index)
		return nil
	}
	if e.opts.Mode != ModeSignature {
		return fmt.Errorf("%w: arg in %s mode", ErrModeViolation, e.opts.Mode)
	}
	e.op("arg %d", x.index)
	return nil
}

func (x argExpr) eval(m *Machine) (Value, error) {
	args := m.Args
	if x.appArg {
		args = m.ApplicationArgs
	}
	if x.index < 0 || x.index >= len(args) {
		return Value{}, fmt.Errorf("%w: argument %d of %d", ErrOutOfRange, x.index, len(args))
	}
	return ByteValue(args[x.index]), m.step()
}

// FieldValue sets one field of an inner transaction. Array fields such as
// ApprovalProgramPages are set by repeating the field.
type FieldValue struct {
	Field string
	Value Expr
}

type innerExpr struct{ fields []FieldValue }

// InnerTxnExecute builds and submits a single inner transaction.
func InnerTxnExecute(fields ...FieldValue) Expr { return innerExpr{fields: fields} }

func (x innerExpr) Type() StackType { return TypeNone }
func (x innerExpr) String() string  { return fmt.Sprintf("(itxn %d fields)", len(x.fields)) }

func (x innerExpr) emit(e *emitter) error {
	if err := e.appOnly("itxn_begin"); err != nil {
		return err
	}
	e.op("itxn_begin")
	for _, f := range x.fields {
		if err := e.value(f.Value, TypeAny); err != nil {
			return fmt.Errorf("inner field %s: %w", f.Field, err)
		}
		e.op("itxn_field %s", f.Field)
	}
	e.op("itxn_submit")
	return nil
}

func (x innerExpr) eval(m *Machine) (Value, error) {
	txn := InnerTxn{Fields: make(map[string][]Value)}
	for _, f := range x.fields {
		v, err := m.value(f.Value, TypeAny)
		if err != nil {
			return Value{}, err
		}
		txn.Fields[f.Field] = append(txn.Fields[f.Field], v)
	}
	if txn.Uint("TypeEnum") == TypeEnumAppl && txn.Uint("ApplicationID") == 0 {
		m.nextAppID++
		txn.CreatedApplicationID = m.nextAppID
	}
	m.InnerTxns = append(m.InnerTxns, txn)
	return Value{}, m.step()
}

type createdAppExpr struct{}

// InnerCreatedApplicationID is the application created by the last inner transaction.
func InnerCreatedApplicationID() Expr { return createdAppExpr{} }

func (createdAppExpr) Type() StackType { return TypeUint64 }
func (createdAppExpr) String() string  { return "(itxn CreatedApplicationID)" }

func (createdAppExpr) emit(e *emitter) error {
	if err := e.appOnly("itxn"); err != nil {
		return err
	}
	e.op("itxn CreatedApplicationID")
	return nil
}

func (createdAppExpr) eval(m *Machine) (Value, error) {
	if len(m.InnerTxns) == 0 {
		return Value{}, fmt.Errorf("%w: no inner transaction submitted", ErrOutOfRange)
	}
	return Uint(m.InnerTxns[len(m.InnerTxns)-1].CreatedApplicationID), m.step()
}

// InnerTxn is an inner transaction recorded by a Machine.
type InnerTxn struct {
	Fields               map[string][]Value
	CreatedApplicationID uint64
}

// Uint returns the first value of a uint64 field, or zero.
func (t InnerTxn) Uint(field string) uint64 {
	vs := t.Fields[field]
	if len(vs) == 0 || vs[0].Type != TypeUint64 {
		return 0
	}
	return vs[0].Uint
}

// Bytes returns the concatenation of all values of a bytes field. For page
// fields this is the complete program.
func (t InnerTxn) Bytes(field string) []byte {
	var out []byte
	for _, v := range t.Fields[field] {
		if v.Type == TypeBytes {
			out = append(out, v.Bytes...)
		}
	}
	return out
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package teal

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// Expr is a node of an AVM program.
type Expr interface {
	// Type is the stack type the expression leaves behind.
	Type() StackType

	emit(e *emitter) error
	eval(m *Machine) (Value, error)
}

// Literals

type intExpr struct{ v uint64 }

// Int is a uint64 constant.
func Int(v uint64) Expr { return intExpr{v: v} }

func (x intExpr) Type() StackType { return TypeUint64 }
func (x intExpr) String() string  { return fmt.Sprintf("(int %d)", x.v) }

func (x intExpr) emit(e *emitter) error {
	e.op("pushint %d", x.v)
	return nil
}

func (x intExpr) eval(m *Machine) (Value, error) { return Uint(x.v), m.step() }

type bytesExpr struct{ b []byte }

// Bytes is a byte constant. The slice is copied.
func Bytes(b []byte) Expr { return bytesExpr{b: bytes.Clone(b)} }

// Str is a byte constant holding the UTF-8 encoding of s.
func Str(s string) Expr { return bytesExpr{b: []byte(s)} }

func (x bytesExpr) Type() StackType { return TypeBytes }
func (x bytesExpr) String() string  { return fmt.Sprintf("(bytes %d)", len(x.b)) }

func (x bytesExpr) emit(e *emitter) error {
	if len(x.b) == 0 {
		e.op(`pushbytes ""`)
		return nil
	}
	e.op("pushbytes 0x%x", x.b)
	return nil
}

func (x bytesExpr) eval(m *Machine) (Value, error) {
	return ByteValue(bytes.Clone(x.b)), m.step()
}

type addrExpr struct{ addr types.Address }

// Addr is a 32-byte address constant.
func Addr(addr types.Address) Expr { return addrExpr{addr: addr} }

func (x addrExpr) Type() StackType { return TypeBytes }
func (x addrExpr) String() string  { return "(addr " + x.addr.String() + ")" }

func (x addrExpr) emit(e *emitter) error {
	e.op("addr %s", x.addr.String())
	return nil
}

func (x addrExpr) eval(m *Machine) (Value, error) {
	return ByteValue(bytes.Clone(x.addr[:])), m.step()
}

type tmplExpr struct {
	typ   StackType
	token string
}

// Tmpl is a template placeholder. It renders as a push of token, annotated with
// the token, and must be replaced before the program is assembled.
func Tmpl(typ StackType, token string) Expr { return tmplExpr{typ: typ, token: token} }

func (x tmplExpr) Type() StackType { return x.typ }
func (x tmplExpr) String() string  { return "(tmpl " + x.token + ")" }

func (x tmplExpr) emit(e *emitter) error {
	switch x.typ {
	case TypeBytes:
		e.op("pushbytes %s // %s", x.token, x.token)
	case TypeUint64:
		e.op("pushint %s // %s", x.token, x.token)
	default:
		return typeError("template "+x.token, x.typ, TypeAny)
	}
	return nil
}

func (x tmplExpr) eval(m *Machine) (Value, error) {
	v, ok := m.Templates[x.token]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnresolvedTemplate, x.token)
	}
	if v.Type != x.typ {
		return Value{}, typeError("template "+x.token, v.Type, x.typ)
	}
	return v, m.step()
}

// Opcodes

// opExpr is a plain opcode applied to its arguments in order.
type opExpr struct {
	name    string
	args    []Expr
	want    []StackType
	ret     StackType
	appOnly bool
	fn      func(m *Machine, args []Value) (Value, error)
}

func (x *opExpr) Type() StackType { return x.ret }
func (x *opExpr) String() string  { return "(" + x.name + ")" }

func (x *opExpr) emit(e *emitter) error {
	if x.appOnly {
		if err := e.appOnly(x.name); err != nil {
			return err
		}
	}
	for i, a := range x.args {
		if err := e.value(a, x.want[i]); err != nil {
			return fmt.Errorf("%s arg %d: %w", x.name, i, err)
		}
	}
	e.op("%s", x.name)
	return nil
}

func (x *opExpr) eval(m *Machine) (Value, error) {
	vals := make([]Value, len(x.args))
	for i, a := range x.args {
		v, err := m.value(a, x.want[i])
		if err != nil {
			return Value{}, err
		}
		vals[i] = v
	}
	if err := m.step(); err != nil {
		return Value{}, err
	}
	return x.fn(m, vals)
}

func unary(name string, a Expr, want, ret StackType, fn func(Value) (Value, error)) Expr {
	return &opExpr{
		name: name, args: []Expr{a}, want: []StackType{want}, ret: ret,
		fn: func(_ *Machine, v []Value) (Value, error) { return fn(v[0]) },
	}
}

func binaryUint(name string, a, b Expr, fn func(x, y uint64) (uint64, error)) Expr {
	return &opExpr{
		name: name, args: []Expr{a, b}, want: []StackType{TypeUint64, TypeUint64}, ret: TypeUint64,
		fn: func(_ *Machine, v []Value) (Value, error) {
			r, err := fn(v[0].Uint, v[1].Uint)
			return Uint(r), err
		},
	}
}

func boolean(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Add is a + b.
func Add(a, b Expr) Expr {
	return binaryUint("+", a, b, func(x, y uint64) (uint64, error) {
		s, carry := bits.Add64(x, y, 0)
		if carry != 0 {
			return 0, ErrOverflow
		}
		return s, nil
	})
}

// Minus is a - b.
func Minus(a, b Expr) Expr {
	return binaryUint("-", a, b, func(x, y uint64) (uint64, error) {
		if y > x {
			return 0, ErrOverflow
		}
		return x - y, nil
	})
}

// Mul is a * b.
func Mul(a, b Expr) Expr {
	return binaryUint("*", a, b, func(x, y uint64) (uint64, error) {
		hi, lo := bits.Mul64(x, y)
		if hi != 0 {
			return 0, ErrOverflow
		}
		return lo, nil
	})
}

// Div is a / b.
func Div(a, b Expr) Expr {
	return binaryUint("/", a, b, func(x, y uint64) (uint64, error) {
		if y == 0 {
			return 0, ErrDivideByZero
		}
		return x / y, nil
	})
}

// Mod is a % b.
func Mod(a, b Expr) Expr {
	return binaryUint("%", a, b, func(x, y uint64) (uint64, error) {
		if y == 0 {
			return 0, ErrDivideByZero
		}
		return x % y, nil
	})
}

// Lt is a < b.
func Lt(a, b Expr) Expr {
	return binaryUint("<", a, b, func(x, y uint64) (uint64, error) { return boolean(x < y), nil })
}

// Gt is a > b.
func Gt(a, b Expr) Expr {
	return binaryUint(">", a, b, func(x, y uint64) (uint64, error) { return boolean(x > y), nil })
}

// Le is a <= b.
func Le(a, b Expr) Expr {
	return binaryUint("<=", a, b, func(x, y uint64) (uint64, error) { return boolean(x <= y), nil })
}

// Ge is a >= b.
func Ge(a, b Expr) Expr {
	return binaryUint(">=", a, b, func(x, y uint64) (uint64, error) { return boolean(x >= y), nil })
}

// And is the logical a && b. Both sides are always evaluated.
func And(a, b Expr) Expr {
	return binaryUint("&&", a, b, func(x, y uint64) (uint64, error) { return boolean(x != 0 && y != 0), nil })
}

// Or is the logical a || b. Both sides are always evaluated.
func Or(a, b Expr) Expr {
	return binaryUint("||", a, b, func(x, y uint64) (uint64, error) { return boolean(x != 0 || y != 0), nil })
}

// BitAnd is a & b.
func BitAnd(a, b Expr) Expr {
	return binaryUint("&", a, b, func(x, y uint64) (uint64, error) { return x & y, nil })
}

// BitOr is a | b.
func BitOr(a, b Expr) Expr {
	return binaryUint("|", a, b, func(x, y uint64) (uint64, error) { return x | y, nil })
}

// Shl is a << b.
func Shl(a, b Expr) Expr {
	return binaryUint("shl", a, b, func(x, y uint64) (uint64, error) {
		if y > 63 {
			return 0, ErrOutOfRange
		}
		return x << y, nil
	})
}

// Shr is a >> b.
func Shr(a, b Expr) Expr {
	return binaryUint("shr", a, b, func(x, y uint64) (uint64, error) {
		if y > 63 {
			return 0, ErrOutOfRange
		}
		return x >> y, nil
	})
}

// Eq is a == b for two values of the same type.
func Eq(a, b Expr) Expr { return compare("==", a, b, true) }

// Neq is a != b for two values of the same type.
func Neq(a, b Expr) Expr { return compare("!=", a, b, false) }

func compare(name string, a, b Expr, equal bool) Expr {
	return &opExpr{
		name: name, args: []Expr{a, b}, want: []StackType{TypeAny, TypeAny}, ret: TypeUint64,
		fn: func(_ *Machine, v []Value) (Value, error) {
			if v[0].Type != v[1].Type {
				return Value{}, typeError(name+" operand", v[1].Type, v[0].Type)
			}
			return Uint(boolean(v[0].Equal(v[1]) == equal)), nil
		},
	}
}

// Not is the logical negation of a.
func Not(a Expr) Expr {
	return unary("!", a, TypeUint64, TypeUint64, func(v Value) (Value, error) {
		return Uint(boolean(v.Uint == 0)), nil
	})
}

// Len is the length of a byte value.
func Len(a Expr) Expr {
	return unary("len", a, TypeBytes, TypeUint64, func(v Value) (Value, error) {
		return Uint(uint64(len(v.Bytes))), nil
	})
}

// Itob is the 8-byte big-endian encoding of a.
func Itob(a Expr) Expr {
	return unary("itob", a, TypeUint64, TypeBytes, func(v Value) (Value, error) {
		return ByteValue(binary.BigEndian.AppendUint64(nil, v.Uint)), nil
	})
}

// Btoi decodes up to 8 big-endian bytes into a uint64.
func Btoi(a Expr) Expr {
	return unary("btoi", a, TypeBytes, TypeUint64, func(v Value) (Value, error) {
		if len(v.Bytes) > 8 {
			return Value{}, fmt.Errorf("%w: btoi of %d bytes", ErrOutOfRange, len(v.Bytes))
		}
		var n uint64
		for _, b := range v.Bytes {
			n = n<<8 | uint64(b)
		}
		return Uint(n), nil
	})
}

// Sha256 is the SHA-256 digest of a.
func Sha256(a Expr) Expr {
	return unary("sha256", a, TypeBytes, TypeBytes, func(v Value) (Value, error) {
		sum := sha256.Sum256(v.Bytes)
		return ByteValue(sum[:]), nil
	})
}

// Sha512_256 is the SHA-512/256 digest of a.
func Sha512_256(a Expr) Expr {
	return unary("sha512_256", a, TypeBytes, TypeBytes, func(v Value) (Value, error) {
		sum := sha512.Sum512_256(v.Bytes)
		return ByteValue(sum[:]), nil
	})
}

// Ed25519VerifyBare checks sig over data against a 32-byte public key.
func Ed25519VerifyBare(data, sig, pubkey Expr) Expr {
	return &opExpr{
		name: "ed25519verify_bare", args: []Expr{data, sig, pubkey},
		want: []StackType{TypeBytes, TypeBytes, TypeBytes}, ret: TypeUint64,
		fn: func(_ *Machine, v []Value) (Value, error) {
			if len(v[1].Bytes) != ed25519.SignatureSize || len(v[2].Bytes) != ed25519.PublicKeySize {
				return Value{}, fmt.Errorf("%w: ed25519verify_bare with %d byte signature and %d byte key",
					ErrOutOfRange, len(v[1].Bytes), len(v[2].Bytes))
			}
			return Uint(boolean(ed25519.Verify(v[2].Bytes, v[0].Bytes, v[1].Bytes))), nil
		},
	}
}

// Concat joins byte values left to right.
func Concat(parts ...Expr) Expr {
	if len(parts) == 0 {
		return Bytes(nil)
	}
	out := parts[0]
	if len(parts) == 1 {
		return &opExpr{
			name: "concat", args: []Expr{out, Bytes(nil)}, want: []StackType{TypeBytes, TypeBytes}, ret: TypeBytes,
			fn: concatValues,
		}
	}
	for _, p := range parts[1:] {
		out = &opExpr{
			name: "concat", args: []Expr{out, p}, want: []StackType{TypeBytes, TypeBytes}, ret: TypeBytes,
			fn: concatValues,
		}
	}
	return out
}

// maxByteLength is the largest byte value the AVM allows.
const maxByteLength = 4096

func concatValues(_ *Machine, v []Value) (Value, error) {
	if len(v[0].Bytes)+len(v[1].Bytes) > maxByteLength {
		return Value{}, fmt.Errorf("%w: concat exceeds %d bytes", ErrOutOfRange, maxByteLength)
	}
	out := make([]byte, 0, len(v[0].Bytes)+len(v[1].Bytes))
	out = append(out, v[0].Bytes...)
	return ByteValue(append(out, v[1].Bytes...)), nil
}

// Substring is b[start:end].
func Substring(b, start, end Expr) Expr {
	return &opExpr{
		name: "substring3", args: []Expr{b, start, end},
		want: []StackType{TypeBytes, TypeUint64, TypeUint64}, ret: TypeBytes,
		fn: func(_ *Machine, v []Value) (Value, error) {
			s, e := v[1].Uint, v[2].Uint
			if s > e || e > uint64(len(v[0].Bytes)) {
				return Value{}, fmt.Errorf("%w: substring %d:%d of %d bytes", ErrOutOfRange, s, e, len(v[0].Bytes))
			}
			return ByteValue(bytes.Clone(v[0].Bytes[s:e])), nil
		},
	}
}

// Extract is b[start:start+length].
func Extract(b, start, length Expr) Expr {
	return &opExpr{
		name: "extract3", args: []Expr{b, start, length},
		want: []StackType{TypeBytes, TypeUint64, TypeUint64}, ret: TypeBytes,
		fn: func(_ *Machine, v []Value) (Value, error) {
			s, n := v[1].Uint, v[2].Uint
			end, carry := bits.Add64(s, n, 0)
			if carry != 0 || end > uint64(len(v[0].Bytes)) {
				return Value{}, fmt.Errorf("%w: extract %d+%d of %d bytes", ErrOutOfRange, s, n, len(v[0].Bytes))
			}
			return ByteValue(bytes.Clone(v[0].Bytes[s:end])), nil
		},
	}
}

type suffixExpr struct{ b, start Expr }

// Suffix is b[start:].
func Suffix(b, start Expr) Expr { return suffixExpr{b: b, start: start} }

func (x suffixExpr) Type() StackType { return TypeBytes }
func (x suffixExpr) String() string  { return "(suffix)" }

func (x suffixExpr) emit(e *emitter) error {
	if err := e.value(x.b, TypeBytes); err != nil {
		return err
	}
	if err := e.value(x.start, TypeUint64); err != nil {
		return err
	}
	e.op("dig 1")
	e.op("len")
	e.op("substring3")
	return nil
}

func (x suffixExpr) eval(m *Machine) (Value, error) {
	b, err := m.value(x.b, TypeBytes)
	if err != nil {
		return Value{}, err
	}
	s, err := m.value(x.start, TypeUint64)
	if err != nil {
		return Value{}, err
	}
	if s.Uint > uint64(len(b.Bytes)) {
		return Value{}, fmt.Errorf("%w: suffix %d of %d bytes", ErrOutOfRange, s.Uint, len(b.Bytes))
	}
	return ByteValue(bytes.Clone(b.Bytes[s.Uint:])), m.step()
}

// Log records a byte value in the application log.
func Log(a Expr) Expr {
	return &opExpr{
		name: "log", args: []Expr{a}, want: []StackType{TypeBytes}, ret: TypeNone, appOnly: true,
		fn: func(m *Machine, v []Value) (Value, error) {
			m.Logs = append(m.Logs, v[0].Bytes)
			return Value{}, nil
		},
	}
}

// AppGlobalGet reads key from the current application's global state. A
// missing key reads as the zero value of typ.
func AppGlobalGet(key Expr, typ StackType) Expr {
	return &opExpr{
		name: "app_global_get", args: []Expr{key}, want: []StackType{TypeBytes}, ret: typ, appOnly: true,
		fn: func(m *Machine, v []Value) (Value, error) {
			if got, ok := m.GlobalState[string(v[0].Bytes)]; ok {
				if !compatible(got.Type, typ) {
					return Value{}, typeError("global "+string(v[0].Bytes), got.Type, typ)
				}
				return got, nil
			}
			return zeroValue(typ), nil
		},
	}
}

// AppGlobalPut writes value under key in the current application's global
// state.
func AppGlobalPut(key, value Expr) Expr {
	return &opExpr{
		name: "app_global_put", args: []Expr{key, value}, want: []StackType{TypeBytes, TypeAny}, ret: TypeNone, appOnly: true,
		fn: func(m *Machine, v []Value) (Value, error) {
			if m.GlobalState == nil {
				m.GlobalState = make(map[string]Value)
			}
			m.GlobalState[string(v[0].Bytes)] = v[1]
			return Value{}, nil
		},
	}
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package teal

// EncodeUvarint returns the uvarint encoding of val computed on chain: seven
// payload bits per byte, least significant group first, continuation bit set
// on every byte but the last. It matches encoding/binary.AppendUvarint.
func EncodeUvarint(val Expr) Expr {
	v := NewScratchVar(TypeUint64)
	out := NewScratchVar(TypeBytes)

	lowByte := func(x Expr) Expr {
		return Extract(Itob(x), Int(7), Int(1))
	}

	return Seq(
		v.Store(val),
		out.Store(Bytes(nil)),
		While(Ge(v.Load(), Int(0x80)),
			Seq(
				out.Store(Concat(out.Load(), lowByte(BitOr(BitAnd(v.Load(), Int(0x7f)), Int(0x80))))),
				v.Store(Shr(v.Load(), Int(7))),
			),
		),
		Concat(out.Load(), lowByte(v.Load())),
	)
}

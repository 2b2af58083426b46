// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package testutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/beaker/internal/compiler"
)

// Opcodes the fake assembler encodes like the real one.
const (
	OpPushBytes = 0x80
	OpPushInt   = 0x81
)

// FakeAssemble assembles TEAL source into deterministic bytecode.
//
// Constants are encoded exactly as the AVM encodes pushbytes and pushint, so
// template offsets and patched binaries behave as they would on a node. All
// other opcodes are reduced to one byte derived from the mnemonic plus one
// byte per immediate. The returned map holds the first program counter of
// every line that produced bytecode.
func FakeAssemble(source string) ([]byte, map[int]int, error) {
	var out []byte
	offsetToLine := make(map[int]int)

	for idx, raw := range strings.Split(source, "\n") {
		line := raw
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		if strings.Contains(line, "TMPL_") {
			return nil, nil, fmt.Errorf("line %d: unresolved template variable in %q", idx+1, line)
		}

		start := len(out)
		fields := strings.Fields(line)
		op, args := fields[0], fields[1:]

		switch op {
		case "#pragma":
			if len(args) != 2 || args[0] != "version" {
				return nil, nil, fmt.Errorf("line %d: bad pragma %q", idx+1, line)
			}
			v, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: bad version: %w", idx+1, err)
			}
			out = binary.AppendUvarint(out, v)
		case "pushbytes":
			data, err := parseBytes(args)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", idx+1, err)
			}
			out = append(out, OpPushBytes)
			out = binary.AppendUvarint(out, uint64(len(data)))
			out = append(out, data...)
		case "pushint":
			if len(args) != 1 {
				return nil, nil, fmt.Errorf("line %d: pushint expects 1 immediate", idx+1)
			}
			v, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: bad integer: %w", idx+1, err)
			}
			out = append(out, OpPushInt)
			out = binary.AppendUvarint(out, v)
		case "addr":
			if len(args) != 1 {
				return nil, nil, fmt.Errorf("line %d: addr expects 1 immediate", idx+1)
			}
			addr, err := types.DecodeAddress(args[0])
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", idx+1, err)
			}
			out = append(out, OpPushBytes, byte(len(addr)))
			out = append(out, addr[:]...)
		case "b", "bz", "bnz":
			out = append(out, opcodeByte(op), 0, 0)
		default:
			out = append(out, opcodeByte(op))
			for _, a := range args {
				if n, err := strconv.ParseUint(a, 10, 8); err == nil {
					out = append(out, byte(n))
					continue
				}
				out = append(out, opcodeByte(a))
			}
		}
		if len(out) > start {
			offsetToLine[start] = idx
		}
	}
	return out, offsetToLine, nil
}

func parseBytes(args []string) ([]byte, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("pushbytes expects 1 immediate, got %d", len(args))
	}
	a := args[0]
	switch {
	case a == `""`:
		return nil, nil
	case strings.HasPrefix(a, "0x"):
		return hex.DecodeString(a[2:])
	default:
		return nil, fmt.Errorf("unsupported byte constant %q", a)
	}
}

func opcodeByte(mnemonic string) byte {
	sum := sha256.Sum256([]byte(mnemonic))
	return sum[0]
}

// LineToPCs expands a first-pc map the way a decoded source map does: every
// program counter up to the last instruction start is attributed to the most
// recent line.
func LineToPCs(offsetToLine map[int]int) compiler.SourceMap {
	maxPC := -1
	for pc := range offsetToLine {
		maxPC = max(maxPC, pc)
	}
	smap := make(compiler.SourceMap)
	last := 0
	for pc := 0; pc <= maxPC; pc++ {
		if line, ok := offsetToLine[pc]; ok {
			last = line
		}
		smap[last] = append(smap[last], pc)
	}
	return smap
}

// EncodeMappings renders a first-pc map as source map "mappings": one
// segment per program counter, carrying the line delta.
func EncodeMappings(offsetToLine map[int]int) string {
	maxPC := -1
	for pc := range offsetToLine {
		maxPC = max(maxPC, pc)
	}
	segments := make([]string, maxPC+1)
	prev := 0
	for pc := range segments {
		line, ok := offsetToLine[pc]
		if !ok {
			continue
		}
		var buf bytes.Buffer
		for _, v := range []int{0, 0, line - prev, 0} {
			writeVLQ(&buf, v)
		}
		segments[pc] = buf.String()
		prev = line
	}
	return strings.Join(segments, ";")
}

const vlqAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func writeVLQ(buf *bytes.Buffer, v int) {
	if v < 0 {
		v = (-v << 1) | 1
	} else {
		v <<= 1
	}
	for v >= 32 {
		buf.WriteByte(vlqAlphabet[32|(v&31)])
		v >>= 5
	}
	buf.WriteByte(vlqAlphabet[v])
}

// ProgramHash is the base32 address of an assembled program.
func ProgramHash(binary []byte) (string, error) {
	lsig := crypto.LogicSigAccount{Lsig: types.LogicSig{Logic: binary}}
	addr, err := lsig.Address()
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

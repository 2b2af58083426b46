// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package precompile compiles nested programs ahead of the programs that
// embed them.
//
// A parent application refers to child applications and logic signatures
// from its handler bodies through a Context. Each child is assembled once per
// parent build; the resulting wrappers expose the child's bytecode, address or
// creation parameters for the parent to embed. Logic signature templates are
// assembled once with zero-valued placeholders and patched per use, both
// off-chain (Populate) and with an equivalent on-chain expression
// (PopulateExpr).
package precompile

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/beaker/internal/compiler"
	"github.com/aplane-algo/beaker/internal/teal"
)

// ProgramArtifact is an assembled program. It is immutable.
type ProgramArtifact struct {
	source    string
	binary    []byte
	hash      string
	sourceMap compiler.SourceMap
}

// NewProgramArtifact assembles source with c. Assembly failures are returned
// as *compiler.AssemblyError and are not retried.
func NewProgramArtifact(ctx context.Context, c compiler.Compiler, source string) (*ProgramArtifact, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: empty program source", ErrConfiguration)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: no compiler", ErrConfiguration)
	}

	res, err := c.Assemble(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(res.Binary) == 0 || res.SourceMap == nil {
		return nil, &compiler.AssemblyError{Err: fmt.Errorf("assembler returned an incomplete result")}
	}

	smap := make(compiler.SourceMap, len(res.SourceMap))
	for line, pcs := range res.SourceMap {
		smap[line] = slices.Clone(pcs)
	}
	return &ProgramArtifact{
		source:    source,
		binary:    bytes.Clone(res.Binary),
		hash:      res.Hash,
		sourceMap: smap,
	}, nil
}

// Source is the assembled TEAL text.
func (a *ProgramArtifact) Source() string { return a.source }

// Binary returns a copy of the bytecode.
func (a *ProgramArtifact) Binary() []byte { return bytes.Clone(a.binary) }

// Len is the bytecode length.
func (a *ProgramArtifact) Len() int { return len(a.binary) }

// Hash is the program hash reported by the assembler, as a base32 address.
func (a *ProgramArtifact) Hash() string { return a.hash }

// PCsForLine returns the program counters of a zero-based source line.
func (a *ProgramArtifact) PCsForLine(line int) []int {
	return slices.Clone(a.sourceMap.PCsForLine(line))
}

// Address decodes Hash.
func (a *ProgramArtifact) Address() (types.Address, error) {
	addr, err := types.DecodeAddress(a.hash)
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid program hash %q: %w", a.hash, err)
	}
	return addr, nil
}

// BinaryExpr is the bytecode as a bytes constant.
func (a *ProgramArtifact) BinaryExpr() teal.Expr { return teal.Bytes(a.binary) }

// Pages splits the bytecode into chunks of at most size bytes.
func (a *ProgramArtifact) Pages(size int) [][]byte {
	if size <= 0 {
		size = DefaultPageSize
	}
	var pages [][]byte
	for chunk := range slices.Chunk(a.binary, size) {
		pages = append(pages, bytes.Clone(chunk))
	}
	return pages
}

// Assertions maps the program counter of every assert that is directly
// preceded by a comment line to that comment's text.
func (a *ProgramArtifact) Assertions() map[int]string {
	lines := strings.Split(a.source, "\n")
	out := make(map[int]string)
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "assert" {
			continue
		}
		prev := strings.TrimSpace(lines[i-1])
		if !strings.HasPrefix(prev, "//") {
			continue
		}
		if pcs := a.sourceMap.PCsForLine(i); len(pcs) > 0 {
			out[pcs[0]] = strings.TrimSpace(strings.TrimPrefix(prev, "//"))
		}
	}
	return out
}

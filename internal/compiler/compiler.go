// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package compiler assembles TEAL source into AVM bytecode.
package compiler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/logic"
)

// ErrAssembly is matched by every assembly failure.
var ErrAssembly = errors.New("assembly failed")

// AssemblyError wraps a failure reported by the assembler.
type AssemblyError struct {
	Err error
}

func (e *AssemblyError) Error() string { return fmt.Sprintf("assembly failed: %v", e.Err) }
func (e *AssemblyError) Unwrap() error { return e.Err }

// Is reports true for ErrAssembly so callers need not know the concrete type.
func (e *AssemblyError) Is(target error) bool { return target == ErrAssembly }

// SourceMap maps zero-based source lines to the program counters assembled
// from them, in ascending order.
type SourceMap map[int][]int

// PCsForLine returns the program counters for a source line, or nil when the
// line produced no bytecode.
func (m SourceMap) PCsForLine(line int) []int { return m[line] }

// Result is an assembled program.
type Result struct {
	Binary    []byte
	Hash      string // base32 address of the program
	SourceMap SourceMap
}

// Compiler assembles TEAL source.
type Compiler interface {
	Assemble(ctx context.Context, source string) (*Result, error)
}

// DefaultTimeout bounds a single assembly request.
const DefaultTimeout = 30 * time.Second

// AlgodCompiler assembles programs with an algod node's compile endpoint.
type AlgodCompiler struct {
	client  *algod.Client
	timeout time.Duration
}

// NewAlgodCompiler returns a compiler backed by the algod node at address.
// A zero timeout selects DefaultTimeout.
func NewAlgodCompiler(address, token string, timeout time.Duration) (*AlgodCompiler, error) {
	client, err := algod.MakeClient(address, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create algod client: %w", err)
	}
	return FromClient(client, timeout), nil
}

// FromClient wraps an existing algod client.
func FromClient(client *algod.Client, timeout time.Duration) *AlgodCompiler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AlgodCompiler{client: client, timeout: timeout}
}

// Assemble compiles source and requests its source map.
func (c *AlgodCompiler) Assemble(ctx context.Context, source string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.TealCompile([]byte(source)).Sourcemap(true).Do(ctx)
	if err != nil {
		return nil, &AssemblyError{Err: err}
	}

	binary, err := base64.StdEncoding.DecodeString(resp.Result)
	if err != nil {
		return nil, &AssemblyError{Err: fmt.Errorf("invalid program encoding: %w", err)}
	}

	if resp.Sourcemap == nil {
		return nil, &AssemblyError{Err: errors.New("compile response has no source map")}
	}
	// Round-trip through JSON to get a plain map regardless of the model's field type.
	raw, err := json.Marshal(resp.Sourcemap)
	if err != nil {
		return nil, &AssemblyError{Err: fmt.Errorf("invalid source map: %w", err)}
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, &AssemblyError{Err: fmt.Errorf("invalid source map: %w", err)}
	}
	sm, err := logic.DecodeSourceMap(generic)
	if err != nil {
		return nil, &AssemblyError{Err: fmt.Errorf("invalid source map: %w", err)}
	}

	lines := strings.Count(source, "\n") + 1
	smap := make(SourceMap)
	for line := 0; line < lines; line++ {
		if pcs := sm.GetPcsForLine(line); len(pcs) > 0 {
			smap[line] = pcs
		}
	}

	return &Result{Binary: binary, Hash: resp.Hash, SourceMap: smap}, nil
}

type loggingCompiler struct {
	next   Compiler
	logger *slog.Logger
}

// WithLogging logs every assembly request at debug level.
func WithLogging(c Compiler, logger *slog.Logger) Compiler {
	if logger == nil {
		return c
	}
	return &loggingCompiler{next: c, logger: logger}
}

func (l *loggingCompiler) Assemble(ctx context.Context, source string) (*Result, error) {
	start := time.Now()
	res, err := l.next.Assemble(ctx, source)
	if err != nil {
		l.logger.Debug("assembly failed", "error", err, "duration", time.Since(start))
		return nil, err
	}
	l.logger.Debug("assembled program",
		"bytes", len(res.Binary),
		"hash", res.Hash,
		"duration", time.Since(start))
	return res, nil
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package testutil

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/aplane-algo/beaker/internal/compiler"
)

// MockCompiler implements compiler.Compiler with FakeAssemble.
type MockCompiler struct {
	// FailOn, when set, is consulted before assembling. A non-nil error is
	// returned as an assembly failure.
	FailOn func(source string) error

	// DropLines removes source lines from the returned source map.
	DropLines map[int]bool

	mu      sync.Mutex
	sources []string
}

// NewMockCompiler creates a mock compiler with no failure hooks.
func NewMockCompiler() *MockCompiler {
	return &MockCompiler{}
}

// Assemble records source and assembles it.
func (m *MockCompiler) Assemble(ctx context.Context, source string) (*compiler.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &compiler.AssemblyError{Err: err}
	}

	m.mu.Lock()
	m.sources = append(m.sources, source)
	m.mu.Unlock()

	if m.FailOn != nil {
		if err := m.FailOn(source); err != nil {
			return nil, &compiler.AssemblyError{Err: err}
		}
	}

	binary, offsets, err := FakeAssemble(source)
	if err != nil {
		return nil, &compiler.AssemblyError{Err: err}
	}
	hash, err := ProgramHash(binary)
	if err != nil {
		return nil, &compiler.AssemblyError{Err: err}
	}

	smap := LineToPCs(offsets)
	for line := range m.DropLines {
		delete(smap, line)
	}
	return &compiler.Result{Binary: binary, Hash: hash, SourceMap: smap}, nil
}

// Calls is the number of Assemble calls made so far.
func (m *MockCompiler) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources)
}

// Sources returns the sources passed to Assemble, in call order.
func (m *MockCompiler) Sources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sources)
}

// MockAlgodServer serves the algod compile endpoint using FakeAssemble.
type MockAlgodServer struct {
	Server *httptest.Server
	Token  string

	mu       sync.Mutex
	requests int
}

type compileResponse struct {
	Hash      string         `json:"hash"`
	Result    string         `json:"result"`
	Sourcemap map[string]any `json:"sourcemap,omitempty"`
}

// NewMockAlgodServer starts a fake algod node. It is closed when the test ends.
func NewMockAlgodServer(t *testing.T) *MockAlgodServer {
	t.Helper()

	m := &MockAlgodServer{Token: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/teal/compile":
			m.handleCompile(w, r)
		case "/health":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(m.Server.Close)
	return m
}

func (m *MockAlgodServer) handleCompile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAlgodError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.Header.Get("X-Algo-API-Token") != m.Token {
		writeAlgodError(w, http.StatusUnauthorized, "invalid API token")
		return
	}

	m.mu.Lock()
	m.requests++
	m.mu.Unlock()

	source, err := io.ReadAll(r.Body)
	if err != nil {
		writeAlgodError(w, http.StatusBadRequest, err.Error())
		return
	}
	binary, offsets, err := FakeAssemble(string(source))
	if err != nil {
		writeAlgodError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := ProgramHash(binary)
	if err != nil {
		writeAlgodError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := compileResponse{
		Hash:   hash,
		Result: base64.StdEncoding.EncodeToString(binary),
	}
	if r.URL.Query().Get("sourcemap") == "true" {
		resp.Sourcemap = map[string]any{
			"version":  3,
			"sources":  []string{},
			"names":    []string{},
			"mappings": EncodeMappings(offsets),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeAlgodError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

// URL returns the server URL.
func (m *MockAlgodServer) URL() string {
	return m.Server.URL
}

// Requests is the number of compile requests served.
func (m *MockAlgodServer) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package testutil provides reusable test infrastructure and utilities.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// ValidTestAddress generates a valid Algorand address for testing.
// The index allows generating different addresses.
func ValidTestAddress(index int) types.Address {
	var pk [32]byte
	pk[0] = byte(index)
	pk[1] = byte(index >> 8)
	pk[31] = 0xa5
	return types.Address(pk)
}

// MustDecodeAddress decodes an Algorand address string, failing the test on error.
func MustDecodeAddress(t *testing.T, addr string) types.Address {
	t.Helper()

	decoded, err := types.DecodeAddress(addr)
	if err != nil {
		t.Fatalf("Failed to decode address %s: %v", addr, err)
	}
	return decoded
}

// WriteDataFile writes content to name inside dir, creating parent
// directories, and returns the full path.
func WriteDataFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// AssertError checks that an error matches expected criteria.
func AssertError(t *testing.T, err error, shouldError bool, msgContains string) {
	t.Helper()

	if !shouldError {
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		return
	}
	if err == nil {
		t.Error("Expected an error but got nil")
		return
	}
	if msgContains != "" && !strings.Contains(err.Error(), msgContains) {
		t.Errorf("Error message %q should contain %q", err.Error(), msgContains)
	}
}

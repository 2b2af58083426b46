// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package fsutil

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestMkdirAll(t *testing.T) {
	old := syscall.Umask(0077)
	defer syscall.Umask(old)

	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := MkdirAll(dir); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != DirPerm {
		t.Errorf("expected %o, got %o", DirPerm, info.Mode().Perm())
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "approval.teal")

	if err := WriteFile(path, []byte("first")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := WriteFile(path, []byte("second")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("expected overwritten content, got %q", data)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != FilePerm {
		t.Errorf("expected %o, got %o", FilePerm, info.Mode().Perm())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected temporary files to be removed, found %d entries", len(entries))
	}
}

func TestWriteFile_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "file")
	if err := WriteFile(path, []byte("x")); err == nil {
		t.Error("expected error for missing directory")
	}
}

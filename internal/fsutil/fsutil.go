// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package fsutil provides filesystem helpers for build output.
// Artifact files are world-readable (0644 files, 0755 dirs) so build
// output can be shared with deploy tooling running as another user.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirPerm is the permission mode for artifact directories.
const DirPerm os.FileMode = 0755

// FilePerm is the permission mode for artifact files.
const FilePerm os.FileMode = 0644

// MkdirAll creates a directory and all parents with artifact permissions.
// Unlike os.MkdirAll, this explicitly sets permissions after creation to
// bypass umask restrictions.
func MkdirAll(path string) error {
	if err := os.MkdirAll(path, DirPerm); err != nil {
		return err
	}
	return os.Chmod(path, DirPerm)
}

// WriteFile writes data to path atomically: the data goes to a temporary
// file in the same directory which is then renamed over path. Readers never
// observe a partially written artifact.
func WriteFile(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Chmod(FilePerm); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

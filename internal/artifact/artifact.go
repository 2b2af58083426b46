// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package artifact writes built application specifications to disk.
//
// A dump directory holds:
//
//	approval.teal     approval program source
//	clear.teal        clear state program source
//	contract.json     ABI contract description
//	application.json  full application specification
package artifact

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/aplane-algo/beaker/internal/application"
	"github.com/aplane-algo/beaker/internal/fsutil"
)

// File names inside a dump directory.
const (
	ApprovalFile    = "approval.teal"
	ClearFile       = "clear.teal"
	ContractFile    = "contract.json"
	ApplicationFile = "application.json"
)

// Dump writes spec into dir, creating it if needed, and returns the paths
// written in the order above.
func Dump(dir string, spec *application.ApplicationSpec) ([]string, error) {
	if spec == nil || spec.Approval == nil || spec.Clear == nil {
		return nil, fmt.Errorf("incomplete application specification")
	}
	if err := fsutil.MkdirAll(dir); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	contract, err := json.MarshalIndent(spec.Contract, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode contract: %w", err)
	}
	app, err := json.MarshalIndent(spec, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode application: %w", err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{ApprovalFile, []byte(spec.Approval.Source())},
		{ClearFile, []byte(spec.Clear.Source())},
		{ContractFile, contract},
		{ApplicationFile, app},
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := fsutil.WriteFile(path, f.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/aplane-algo/beaker/internal/util"
)

func TestWriteReference(t *testing.T) {
	var buf bytes.Buffer
	writeReference(&buf)
	out := buf.String()

	for _, want := range []string{
		"| `network` | string | `localnet` |",
		"| `compile_timeout` | duration | `30s` |",
		"| `concurrency` | int | `4` |",
		"| `localnet_algod_token` | string | `(none)` |",
		"| `" + util.DebugEnv + "` |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

// Every documented default must match the runtime defaults.
func TestDefaultTagsMatchDefaultConfig(t *testing.T) {
	cfg := reflect.ValueOf(util.DefaultConfig())
	typ := cfg.Type()
	for i := 0; i < typ.NumField(); i++ {
		def, ok := typ.Field(i).Tag.Lookup("default")
		if !ok {
			continue
		}
		if got := fmt.Sprint(cfg.Field(i).Interface()); got != def {
			t.Errorf("%s: default tag %q, DefaultConfig has %q", typ.Field(i).Name, def, got)
		}
	}
}

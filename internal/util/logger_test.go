// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, false)
	logger.Debug("hidden")
	logger.Info("shown", "app", "Parent")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("expected debug messages to be dropped")
	}
	if !strings.Contains(out, "msg=shown app=Parent") {
		t.Errorf("unexpected output %q", out)
	}
	if strings.Contains(out, "time=") || strings.Contains(out, "level=") {
		t.Errorf("expected time and level to be stripped, got %q", out)
	}

	buf.Reset()
	NewLogger(&buf, true).Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("expected debug messages in debug mode")
	}
}

func TestInitLogger_DebugEnv(t *testing.T) {
	old := Logger
	defer func() { Logger = old }()

	t.Setenv(DebugEnv, "1")
	InitLogger()
	if !Logger.Handler().Enabled(t.Context(), -4) {
		t.Error("expected debug level to be enabled")
	}
}

func TestDebug(t *testing.T) {
	old := Logger
	defer func() { Logger = old }()

	var buf bytes.Buffer
	Logger = NewLogger(&buf, false)
	Debug("quiet")
	if buf.Len() != 0 {
		t.Errorf("expected no output without debug, got %q", buf.String())
	}

	Logger = NewLogger(&buf, true)
	Debug("loud", "app", "Parent")
	if !strings.Contains(buf.String(), "msg=loud app=Parent") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

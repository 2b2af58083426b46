// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// configdoc generates markdown documentation from Go struct tags.
// Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md
package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/aplane-algo/beaker/internal/util"
)

// EnvVar represents an environment variable configuration
type EnvVar struct {
	Name        string
	Description string
}

var envVars = []EnvVar{
	{util.DataDirEnv, "Data directory holding config.yaml (overridden by `-d`)"},
	{util.DebugEnv, "Set to any value to enable debug logging"},
	{"NO_COLOR", "Set to any value to disable colored output"},
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--help" {
		fmt.Println("Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md")
		fmt.Println()
		fmt.Println("Generates markdown documentation from Go struct tags.")
		return
	}
	writeReference(os.Stdout)
}

func writeReference(w io.Writer) {
	fmt.Fprintln(w, "# Configuration Reference")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Auto-generated from Go struct tags. Do not edit manually.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "---")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## beaker Configuration")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: `config.yaml` in the beaker data directory (`-d` or `%s`)\n", util.DataDirEnv)
	fmt.Fprintln(w)
	printStructTable(w, reflect.TypeOf(util.Config{}))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Environment Variables")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Variable | Description |")
	fmt.Fprintln(w, "|----------|-------------|")
	for _, env := range envVars {
		fmt.Fprintf(w, "| `%s` | %s |\n", env.Name, env.Description)
	}
}

func printStructTable(w io.Writer, t reflect.Type) {
	fmt.Fprintln(w, "| Field | Type | Default | Description |")
	fmt.Fprintln(w, "|-------|------|---------|-------------|")

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag := field.Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		fieldName := strings.Split(tag, ",")[0]

		desc := field.Tag.Get("description")
		if desc == "" {
			desc = "(no description)"
		}

		def := field.Tag.Get("default")
		if def == "" {
			def = "(none)"
		}

		fmt.Fprintf(w, "| `%s` | %s | `%s` | %s |\n", fieldName, formatType(field.Type), def, desc)
	}
}

func formatType(t reflect.Type) string {
	switch {
	case t.PkgPath() == "time" && t.Name() == "Duration":
		return "duration"
	case t.Kind() == reflect.String:
		return "string"
	case t.Kind() >= reflect.Int && t.Kind() <= reflect.Int64:
		return "int"
	case t.Kind() == reflect.Bool:
		return "bool"
	case t.Kind() == reflect.Slice:
		return "[]" + formatType(t.Elem())
	default:
		return t.String()
	}
}

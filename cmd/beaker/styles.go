// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aplane-algo/beaker/internal/application"
)

type styles struct {
	name  lipgloss.Style
	label lipgloss.Style
	path  lipgloss.Style
	dep   lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{name: plain, label: plain, path: plain, dep: plain}
	}
	return styles{
		name: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		path: lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")),
		dep: lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")),
	}
}

// summary renders one built application:
//
//	Parent  approval 812 B  clear 4 B  extra pages 0 -> artifacts/parent
//	  application Child1 (HASH)
func (s styles) summary(spec *application.ApplicationSpec, dir string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s %d B  %s %d B  %s %d -> %s",
		s.name.Render(spec.Name),
		s.label.Render("approval"), spec.Approval.Len(),
		s.label.Render("clear"), spec.Clear.Len(),
		s.label.Render("extra pages"), spec.ExtraPages,
		s.path.Render(dir))
	for _, p := range spec.Precompiles {
		detail := p.Hash
		if len(p.Variables) > 0 {
			detail = "variables " + strings.Join(p.Variables, ", ")
		}
		fmt.Fprintf(&b, "\n  %s %s (%s)", s.dep.Render(p.Kind), p.Name, detail)
	}
	return b.String()
}

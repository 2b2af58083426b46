// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package precompile

import (
	"strings"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/beaker/internal/teal"
)

type fakeLSig struct {
	name string
	src  string
}

func (f *fakeLSig) Name() string             { return f.name }
func (f *fakeLSig) Program() (string, error) { return f.src, nil }

type fakeTemplate struct {
	fakeLSig
	vars []TemplateVariable
}

func (f *fakeTemplate) TemplateVariables() []TemplateVariable { return f.vars }

type fakeApp struct {
	name     string
	approval string
	clear    string
	global   types.StateSchema
	// resolve runs before the programs are returned, the way handler bodies do.
	resolve func(self *fakeApp, bc *Context) error
}

func (a *fakeApp) Name() string { return a.name }

func (a *fakeApp) BuildPrograms(bc *Context) (*AppPrograms, error) {
	if a.resolve != nil {
		if err := a.resolve(a, bc); err != nil {
			return nil, err
		}
	}
	return &AppPrograms{Approval: a.approval, Clear: a.clear, GlobalSchema: a.global}, nil
}

func newFakeApp(name string) *fakeApp {
	return &fakeApp{
		name:     name,
		approval: "#pragma version 10\npushbytes 0x" + strings.Repeat("ab", len(name)+1) + "\nlen\nreturn\n",
		clear:    "#pragma version 10\npushint 1\nreturn\n",
	}
}

// sizedProgram assembles to exactly n bytes with the fake assembler.
func sizedProgram(n int) string {
	var sb strings.Builder
	sb.WriteString("#pragma version 10\n")
	for i := 1; i < n; i++ {
		sb.WriteString("nop\n")
	}
	return sb.String()
}

func mustVar(t *testing.T, name string, typ teal.StackType) TemplateVariable {
	t.Helper()
	v, err := NewTemplateVariable(name, typ)
	if err != nil {
		t.Fatalf("NewTemplateVariable(%s) failed: %v", name, err)
	}
	return v
}

// templateSource renders a signature program that loads each variable into
// scratch and checks it is non-empty or non-zero.
func templateSource(t *testing.T, vars ...TemplateVariable) string {
	t.Helper()
	var body []teal.Expr
	for _, v := range vars {
		slot := teal.NewScratchVar(v.Type)
		body = append(body, slot.Store(v.Placeholder()))
		if v.Type == teal.TypeBytes {
			body = append(body, teal.Assert(teal.Gt(teal.Len(slot.Load()), teal.Int(0)), v.Name+" is empty"))
		} else {
			body = append(body, teal.Assert(teal.Gt(slot.Load(), teal.Int(0)), v.Name+" is zero"))
		}
	}
	body = append(body, teal.Approve())
	src, err := teal.Compile(teal.Seq(body...), teal.Options{Mode: teal.ModeSignature})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return src
}

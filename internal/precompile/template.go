// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package precompile

import (
	"context"
	"encoding/binary"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"sort"

	"github.com/aplane-algo/beaker/internal/compiler"
	"github.com/aplane-algo/beaker/internal/teal"
	"github.com/aplane-algo/beaker/internal/tealsubst"
)

var variableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TemplateVariable is a named hole in a logic signature template.
type TemplateVariable struct {
	Name string
	Type teal.StackType
}

// NewTemplateVariable validates a template variable declaration.
func NewTemplateVariable(name string, typ teal.StackType) (TemplateVariable, error) {
	if !variableName.MatchString(name) {
		return TemplateVariable{}, fmt.Errorf("%w: template variable name %q", ErrConfiguration, name)
	}
	if !typ.IsValue() {
		return TemplateVariable{}, fmt.Errorf("%w: %s for %q", ErrUnsupportedType, typ, name)
	}
	return TemplateVariable{Name: name, Type: typ}, nil
}

// Token is the placeholder token emitted for the variable.
func (v TemplateVariable) Token() string { return tealsubst.PlaceholderToken(v.Name) }

// Placeholder is the expression that pushes the variable's placeholder.
func (v TemplateVariable) Placeholder() teal.Expr { return teal.Tmpl(v.Type, v.Token()) }

func (v TemplateVariable) op() string {
	if v.Type == teal.TypeBytes {
		return tealsubst.OpPushBytes
	}
	return tealsubst.OpPushInt
}

type templateOffset struct {
	v      TemplateVariable
	offset int
}

// TemplateProgramArtifact is a ProgramArtifact assembled with zero-valued
// placeholders, plus the byte offset of each placeholder operand.
type TemplateProgramArtifact struct {
	*ProgramArtifact
	vars    []TemplateVariable
	offsets []templateOffset // ascending
}

// NewTemplateProgramArtifact zeroes the placeholders in source, assembles it
// and locates every variable's operand through the source map. Each variable
// must appear on exactly one pushbytes or pushint line matching its type.
func NewTemplateProgramArtifact(ctx context.Context, c compiler.Compiler, source string, vars []TemplateVariable) (*TemplateProgramArtifact, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("%w: template has no variables", ErrConfiguration)
	}
	byToken := make(map[string]TemplateVariable, len(vars))
	for _, v := range vars {
		if _, err := NewTemplateVariable(v.Name, v.Type); err != nil {
			return nil, err
		}
		if _, dup := byToken[v.Token()]; dup {
			return nil, fmt.Errorf("%w: duplicate template variable %q", ErrConfiguration, v.Name)
		}
		byToken[v.Token()] = v
	}

	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	if err := tealsubst.ValidatePlaceholdersAgainstVariables(source, names); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	zeroed, found, err := tealsubst.ZeroPlaceholders(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	lineOf := make(map[string]int, len(found))
	for _, p := range found {
		v := byToken[p.Token]
		if _, dup := lineOf[p.Token]; dup {
			return nil, fmt.Errorf("%w: placeholder %s appears more than once", ErrConfiguration, p.Token)
		}
		if p.Op != v.op() {
			return nil, fmt.Errorf("%w: placeholder %s pushed with %s, want %s", ErrConfiguration, p.Token, p.Op, v.op())
		}
		lineOf[p.Token] = p.Line
	}
	for _, v := range vars {
		if _, ok := lineOf[v.Token()]; !ok {
			return nil, fmt.Errorf("%w: variable %q has no placeholder", ErrConfiguration, v.Name)
		}
	}

	art, err := NewProgramArtifact(ctx, c, zeroed)
	if err != nil {
		return nil, err
	}

	t := &TemplateProgramArtifact{ProgramArtifact: art, vars: slices.Clone(vars)}
	for _, v := range vars {
		line := lineOf[v.Token()]
		pcs := art.sourceMap.PCsForLine(line)
		if len(pcs) == 0 {
			return nil, fmt.Errorf("%w: %s on line %d", ErrPlaceholderUnmapped, v.Token(), line+1)
		}
		// The operand starts one byte after the opcode.
		off := pcs[0] + 1
		if off >= len(art.binary) || art.binary[off] != 0 {
			return nil, fmt.Errorf("%w: %s at pc %d does not hold a zero operand", ErrPlaceholderUnmapped, v.Token(), pcs[0])
		}
		t.offsets = append(t.offsets, templateOffset{v: v, offset: off})
	}
	sort.Slice(t.offsets, func(i, j int) bool { return t.offsets[i].offset < t.offsets[j].offset })
	return t, nil
}

// Variables returns the declared variables in declaration order.
func (t *TemplateProgramArtifact) Variables() []TemplateVariable { return slices.Clone(t.vars) }

// Offsets maps variable names to the byte offset of their operand in Binary.
func (t *TemplateProgramArtifact) Offsets() map[string]int {
	out := make(map[string]int, len(t.offsets))
	for _, o := range t.offsets {
		out[o.v.Name] = o.offset
	}
	return out
}

func (t *TemplateProgramArtifact) checkNames(supplied []string) error {
	expected := make([]string, len(t.vars))
	for i, v := range t.vars {
		expected[i] = v.Name
	}
	sort.Strings(expected)
	sort.Strings(supplied)
	if !slices.Equal(expected, supplied) {
		return &ArgumentMismatchError{Expected: expected, Actual: supplied}
	}
	return nil
}

// Populate returns a copy of the bytecode with every placeholder replaced by
// its value. Bytes variables accept []byte or string; uint64 variables accept
// any non-negative Go integer. The stored bytecode is never modified.
func (t *TemplateProgramArtifact) Populate(values map[string]any) ([]byte, error) {
	if err := t.checkNames(slices.Collect(maps.Keys(values))); err != nil {
		return nil, err
	}

	out := t.Binary()
	shift := 0
	for _, o := range t.offsets {
		enc, err := encodeValue(o.v, values[o.v.Name])
		if err != nil {
			return nil, err
		}
		at := o.offset + shift
		out = slices.Replace(out, at, at+1, enc...)
		shift += len(enc) - 1
	}
	return out, nil
}

func encodeValue(v TemplateVariable, value any) ([]byte, error) {
	if v.Type == teal.TypeBytes {
		var b []byte
		switch x := value.(type) {
		case []byte:
			b = x
		case string:
			b = []byte(x)
		default:
			return nil, fmt.Errorf("%w: %q wants bytes, got %T", ErrTemplateValueType, v.Name, value)
		}
		enc := binary.AppendUvarint(nil, uint64(len(b)))
		return append(enc, b...), nil
	}

	n, err := toUint64(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrTemplateValueType, v.Name, err)
	}
	return binary.AppendUvarint(nil, n), nil
}

func toUint64(value any) (uint64, error) {
	var signed int64
	switch x := value.(type) {
	case uint64:
		return x, nil
	case uint:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint8:
		return uint64(x), nil
	case int:
		signed = int64(x)
	case int64:
		signed = x
	case int32:
		signed = int64(x)
	case int16:
		signed = int64(x)
	case int8:
		signed = int64(x)
	default:
		return 0, fmt.Errorf("wants an unsigned integer, got %T", value)
	}
	if signed < 0 {
		return 0, fmt.Errorf("negative value %d", signed)
	}
	return uint64(signed), nil
}

// PopulateExpr returns an expression that rebuilds the populated bytecode on
// chain. For the same values it produces exactly the bytes Populate returns.
func (t *TemplateProgramArtifact) PopulateExpr(values map[string]teal.Expr) (teal.Expr, error) {
	if err := t.checkNames(slices.Collect(maps.Keys(values))); err != nil {
		return nil, err
	}
	for _, v := range t.vars {
		x := values[v.Name]
		if x == nil {
			return nil, fmt.Errorf("%w: %q has no expression", ErrTemplateValueType, v.Name)
		}
		if got := x.Type(); got != v.Type && got != teal.TypeAny {
			return nil, fmt.Errorf("%w: %q wants %s, got %s", ErrTemplateValueType, v.Name, v.Type, got)
		}
	}

	bin := teal.NewScratchVar(teal.TypeBytes)
	buf := teal.NewScratchVar(teal.TypeBytes)
	val := teal.NewScratchVar(teal.TypeBytes)

	prog := []teal.Expr{
		bin.Store(t.BinaryExpr()),
		buf.Store(teal.Bytes(nil)),
	}
	last := 0
	for _, o := range t.offsets {
		x := values[o.v.Name]
		if o.v.Type == teal.TypeBytes {
			prog = append(prog,
				val.Store(x),
				val.Store(teal.Concat(teal.EncodeUvarint(teal.Len(val.Load())), val.Load())),
			)
		} else {
			prog = append(prog, val.Store(teal.EncodeUvarint(x)))
		}
		prog = append(prog, buf.Store(teal.Concat(
			buf.Load(),
			teal.Substring(bin.Load(), teal.Int(uint64(last)), teal.Int(uint64(o.offset))),
			val.Load(),
		)))
		last = o.offset + 1
	}
	prog = append(prog, teal.Concat(buf.Load(), teal.Suffix(bin.Load(), teal.Int(uint64(last)))))
	return teal.Seq(prog...), nil
}

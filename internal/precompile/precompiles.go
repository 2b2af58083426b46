// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package precompile

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/beaker/internal/compiler"
	"github.com/aplane-algo/beaker/internal/teal"
)

// Kind is the kind of a precompile.
type Kind int

const (
	KindApp Kind = iota
	KindLSig
	KindLSigTemplate
)

func (k Kind) String() string {
	switch k {
	case KindApp:
		return "application"
	case KindLSig:
		return "logicsig"
	case KindLSigTemplate:
		return "logicsig-template"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Precompile is one of *AppPrecompile, *LSigPrecompile or
// *LSigTemplatePrecompile.
type Precompile interface {
	Kind() Kind
	Name() string
	// Built reports whether the wrapped definition has been compiled.
	Built() bool

	sealed()
}

// AppPrograms is the rendered form of an application.
type AppPrograms struct {
	Approval     string
	Clear        string
	GlobalSchema types.StateSchema
	LocalSchema  types.StateSchema
}

// AppPrecompile is a compiled nested application.
type AppPrecompile struct {
	def      AppDefinition
	approval *ProgramArtifact
	clear    *ProgramArtifact
	global   types.StateSchema
	local    types.StateSchema
	pageSize int
	deps     []Precompile
}

// NewAppPrecompile wraps def. The wrapper is empty until it is compiled,
// either by Compile or by resolving def through a Context.
func NewAppPrecompile(def AppDefinition) *AppPrecompile {
	return &AppPrecompile{def: def}
}

func (p *AppPrecompile) Kind() Kind   { return KindApp }
func (p *AppPrecompile) Name() string { return p.def.Name() }
func (p *AppPrecompile) Built() bool  { return p.approval != nil }
func (p *AppPrecompile) sealed()      {}

// Definition is the wrapped application.
func (p *AppPrecompile) Definition() AppDefinition { return p.def }

// Compile builds the application and everything it precompiles.
func (p *AppPrecompile) Compile(ctx context.Context, c compiler.Compiler, opts ...Option) error {
	b, err := newBuild(ctx, c, opts)
	if err != nil {
		return WrapBuildError(p.def.Name(), StepDeclaration, err)
	}
	return p.build(b, nil)
}

// build is the recursive entry point: it opens a context for the
// application below parent, renders its programs and assembles them.
func (p *AppPrecompile) build(b *build, parent *Context) error {
	name := p.def.Name()
	bc, err := b.enter(parent, p.def)
	if err != nil {
		return WrapBuildError(name, StepDeclaration, err)
	}
	defer bc.Close()

	progs, err := p.def.BuildPrograms(bc)
	if err != nil {
		return WrapBuildError(name, StepEvaluation, err)
	}
	if progs == nil {
		return WrapBuildError(name, StepEvaluation, fmt.Errorf("%w: no programs", ErrConfiguration))
	}

	approval, err := NewProgramArtifact(b.ctx, b.compiler, progs.Approval)
	if err != nil {
		return WrapBuildError(name, artifactStep(err), fmt.Errorf("approval program: %w", err))
	}
	clear, err := NewProgramArtifact(b.ctx, b.compiler, progs.Clear)
	if err != nil {
		return WrapBuildError(name, artifactStep(err), fmt.Errorf("clear program: %w", err))
	}

	p.approval, p.clear = approval, clear
	p.global, p.local = progs.GlobalSchema, progs.LocalSchema
	p.pageSize = b.pageSize
	p.deps = bc.Dependencies()
	b.logger.Debug("built application",
		"name", name,
		"approval_bytes", approval.Len(),
		"clear_bytes", clear.Len(),
		"precompiles", len(p.deps))
	return nil
}

// Approval is the assembled approval program.
func (p *AppPrecompile) Approval() (*ProgramArtifact, error) {
	if !p.Built() {
		return nil, fmt.Errorf("%w: %s", ErrNotYetBuilt, p.def.Name())
	}
	return p.approval, nil
}

// Clear is the assembled clear state program.
func (p *AppPrecompile) Clear() (*ProgramArtifact, error) {
	if !p.Built() {
		return nil, fmt.Errorf("%w: %s", ErrNotYetBuilt, p.def.Name())
	}
	return p.clear, nil
}

// Schema returns the global and local state schema.
func (p *AppPrecompile) Schema() (global, local types.StateSchema) { return p.global, p.local }

// Dependencies returns the precompiles resolved while building the
// application, in resolution order.
func (p *AppPrecompile) Dependencies() []Precompile {
	return append([]Precompile(nil), p.deps...)
}

// CreateConfig is everything an application create call needs.
type CreateConfig struct {
	ApprovalPages     [][]byte
	ClearPages        [][]byte
	ExtraProgramPages uint32
	GlobalSchema      types.StateSchema
	LocalSchema       types.StateSchema
}

// ExtraPages is the number of pages beyond the first needed for programs of
// the given total size.
func ExtraPages(total, pageSize int) uint32 {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if total <= pageSize {
		return 0
	}
	return uint32((total - pageSize + pageSize - 1) / pageSize)
}

// CreateConfig returns the creation parameters for the application.
func (p *AppPrecompile) CreateConfig() (CreateConfig, error) {
	if !p.Built() {
		return CreateConfig{}, fmt.Errorf("%w: %s", ErrNotYetBuilt, p.def.Name())
	}
	return CreateConfig{
		ApprovalPages:     p.approval.Pages(p.pageSize),
		ClearPages:        p.clear.Pages(p.pageSize),
		ExtraProgramPages: ExtraPages(p.approval.Len()+p.clear.Len(), p.pageSize),
		GlobalSchema:      p.global,
		LocalSchema:       p.local,
	}, nil
}

// Fields renders the configuration as inner transaction fields.
func (c CreateConfig) Fields() []teal.FieldValue {
	fields := []teal.FieldValue{{Field: "TypeEnum", Value: teal.Int(teal.TypeEnumAppl)}}
	for _, page := range c.ApprovalPages {
		fields = append(fields, teal.FieldValue{Field: "ApprovalProgramPages", Value: teal.Bytes(page)})
	}
	for _, page := range c.ClearPages {
		fields = append(fields, teal.FieldValue{Field: "ClearStateProgramPages", Value: teal.Bytes(page)})
	}
	return append(fields,
		teal.FieldValue{Field: "GlobalNumUint", Value: teal.Int(c.GlobalSchema.NumUint)},
		teal.FieldValue{Field: "GlobalNumByteSlice", Value: teal.Int(c.GlobalSchema.NumByteSlice)},
		teal.FieldValue{Field: "LocalNumUint", Value: teal.Int(c.LocalSchema.NumUint)},
		teal.FieldValue{Field: "LocalNumByteSlice", Value: teal.Int(c.LocalSchema.NumByteSlice)},
		teal.FieldValue{Field: "ExtraProgramPages", Value: teal.Int(uint64(c.ExtraProgramPages))},
	)
}

// CreateExpr creates the application with an inner transaction and leaves
// the new application id on the stack.
func (p *AppPrecompile) CreateExpr() (teal.Expr, error) {
	cfg, err := p.CreateConfig()
	if err != nil {
		return nil, err
	}
	return teal.Seq(teal.InnerTxnExecute(cfg.Fields()...), teal.InnerCreatedApplicationID()), nil
}

// LSigPrecompile is a compiled logic signature.
type LSigPrecompile struct {
	def     LSigDefinition
	program *ProgramArtifact
}

// NewLSigPrecompile wraps def. The wrapper is empty until compiled.
func NewLSigPrecompile(def LSigDefinition) *LSigPrecompile {
	return &LSigPrecompile{def: def}
}

func (p *LSigPrecompile) Kind() Kind   { return KindLSig }
func (p *LSigPrecompile) Name() string { return p.def.Name() }
func (p *LSigPrecompile) Built() bool  { return p.program != nil }
func (p *LSigPrecompile) sealed()      {}

// Compile assembles the logic signature.
func (p *LSigPrecompile) Compile(ctx context.Context, c compiler.Compiler, opts ...Option) error {
	b, err := newBuild(ctx, c, opts)
	if err != nil {
		return WrapBuildError(p.def.Name(), StepDeclaration, err)
	}
	return p.build(b)
}

func (p *LSigPrecompile) build(b *build) error {
	name := p.def.Name()
	src, err := p.def.Program()
	if err != nil {
		return WrapBuildError(name, StepEvaluation, err)
	}
	art, err := NewProgramArtifact(b.ctx, b.compiler, src)
	if err != nil {
		return WrapBuildError(name, artifactStep(err), err)
	}
	p.program = art
	b.logger.Debug("built logic signature", "name", name, "bytes", art.Len(), "address", art.Hash())
	return nil
}

// Program is the assembled program.
func (p *LSigPrecompile) Program() (*ProgramArtifact, error) {
	if !p.Built() {
		return nil, fmt.Errorf("%w: %s", ErrNotYetBuilt, p.def.Name())
	}
	return p.program, nil
}

// Address is the logic signature's account address.
func (p *LSigPrecompile) Address() (types.Address, error) {
	if !p.Built() {
		return types.Address{}, fmt.Errorf("%w: %s", ErrNotYetBuilt, p.def.Name())
	}
	return p.program.Address()
}

// AddressExpr is the account address as a constant.
func (p *LSigPrecompile) AddressExpr() (teal.Expr, error) {
	addr, err := p.Address()
	if err != nil {
		return nil, err
	}
	return teal.Addr(addr), nil
}

// Signer signs transactions sent from the logic signature account.
func (p *LSigPrecompile) Signer() (transaction.LogicSigAccountTransactionSigner, error) {
	if !p.Built() {
		return transaction.LogicSigAccountTransactionSigner{}, fmt.Errorf("%w: %s", ErrNotYetBuilt, p.def.Name())
	}
	return signerFor(p.program.Binary()), nil
}

// LSigTemplatePrecompile is a compiled logic signature template.
type LSigTemplatePrecompile struct {
	def     LSigTemplateDefinition
	program *TemplateProgramArtifact
}

// NewLSigTemplatePrecompile wraps def. The wrapper is empty until compiled.
func NewLSigTemplatePrecompile(def LSigTemplateDefinition) *LSigTemplatePrecompile {
	return &LSigTemplatePrecompile{def: def}
}

func (p *LSigTemplatePrecompile) Kind() Kind   { return KindLSigTemplate }
func (p *LSigTemplatePrecompile) Name() string { return p.def.Name() }
func (p *LSigTemplatePrecompile) Built() bool  { return p.program != nil }
func (p *LSigTemplatePrecompile) sealed()      {}

// Compile assembles the template.
func (p *LSigTemplatePrecompile) Compile(ctx context.Context, c compiler.Compiler, opts ...Option) error {
	b, err := newBuild(ctx, c, opts)
	if err != nil {
		return WrapBuildError(p.def.Name(), StepDeclaration, err)
	}
	return p.build(b)
}

func (p *LSigTemplatePrecompile) build(b *build) error {
	name := p.def.Name()
	vars := p.def.TemplateVariables()
	if len(vars) == 0 {
		return WrapBuildError(name, StepDeclaration, fmt.Errorf("%w: template has no variables", ErrConfiguration))
	}
	src, err := p.def.Program()
	if err != nil {
		return WrapBuildError(name, StepEvaluation, err)
	}
	art, err := NewTemplateProgramArtifact(b.ctx, b.compiler, src, vars)
	if err != nil {
		return WrapBuildError(name, artifactStep(err), err)
	}
	p.program = art
	b.logger.Debug("built logic signature template",
		"name", name, "bytes", art.Len(), "variables", len(vars))
	return nil
}

// Program is the assembled template.
func (p *LSigTemplatePrecompile) Program() (*TemplateProgramArtifact, error) {
	if !p.Built() {
		return nil, fmt.Errorf("%w: %s", ErrNotYetBuilt, p.def.Name())
	}
	return p.program, nil
}

// Populate returns the bytecode for the given values.
func (p *LSigTemplatePrecompile) Populate(values map[string]any) ([]byte, error) {
	if !p.Built() {
		return nil, fmt.Errorf("%w: %s", ErrNotYetBuilt, p.def.Name())
	}
	bin, err := p.program.Populate(values)
	if err != nil {
		return nil, WrapBuildError(p.def.Name(), StepPopulation, err)
	}
	return bin, nil
}

// programDomain prefixes a program before hashing it into an address.
const programDomain = "Program"

// Address returns an expression computing, on chain, the address of the
// template populated with values.
func (p *LSigTemplatePrecompile) Address(values map[string]teal.Expr) (teal.Expr, error) {
	if !p.Built() {
		return nil, fmt.Errorf("%w: %s", ErrNotYetBuilt, p.def.Name())
	}
	populated, err := p.program.PopulateExpr(values)
	if err != nil {
		return nil, WrapBuildError(p.def.Name(), StepPopulation, err)
	}
	return teal.Sha512_256(teal.Concat(teal.Str(programDomain), populated)), nil
}

// AddressOf returns the address of the template populated with values.
func (p *LSigTemplatePrecompile) AddressOf(values map[string]any) (types.Address, error) {
	bin, err := p.Populate(values)
	if err != nil {
		return types.Address{}, err
	}
	lsig := crypto.LogicSigAccount{Lsig: types.LogicSig{Logic: bin}}
	return lsig.Address()
}

// Signer signs transactions sent from the populated logic signature account.
func (p *LSigTemplatePrecompile) Signer(values map[string]any) (transaction.LogicSigAccountTransactionSigner, error) {
	bin, err := p.Populate(values)
	if err != nil {
		return transaction.LogicSigAccountTransactionSigner{}, err
	}
	return signerFor(bin), nil
}

func signerFor(program []byte) transaction.LogicSigAccountTransactionSigner {
	lsig := crypto.LogicSigAccount{Lsig: types.LogicSig{Logic: program}}
	return transaction.LogicSigAccountTransactionSigner{LogicSigAccount: lsig}
}

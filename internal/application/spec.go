// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package application

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/abi"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"golang.org/x/sync/errgroup"

	"github.com/aplane-algo/beaker/internal/compiler"
	"github.com/aplane-algo/beaker/internal/precompile"
)

// MethodHints tell callers how a method may be called.
type MethodHints struct {
	ReadOnly   bool              `json:"read_only,omitempty"`
	CallConfig map[string]string `json:"call_config,omitempty"`
}

// PrecompileInfo describes one nested program resolved during the build.
// Hash is the approval program hash for applications and the program hash for
// logic signatures; templates have no fixed hash and list their variables.
type PrecompileInfo struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Hash      string   `json:"hash,omitempty"`
	Bytes     int      `json:"bytes"`
	Variables []string `json:"variables,omitempty"`
}

// ApplicationSpec is the result of building an application. ExtraPages is the
// number of extra program pages the create call needs.
type ApplicationSpec struct {
	Name         string
	Approval     *precompile.ProgramArtifact
	Clear        *precompile.ProgramArtifact
	GlobalSchema types.StateSchema
	LocalSchema  types.StateSchema
	Contract     abi.Contract
	Hints        map[string]MethodHints
	BareCreate   bool
	Precompiles  []PrecompileInfo
	ExtraPages   uint32
}

type schemaJSON struct {
	NumUints      uint64 `json:"num_uints"`
	NumByteSlices uint64 `json:"num_byte_slices"`
}

type specJSON struct {
	Hints          map[string]MethodHints `json:"hints"`
	Source         map[string]string      `json:"source"`
	Schema         map[string]schemaJSON  `json:"schema"`
	Contract       abi.Contract           `json:"contract"`
	BareCallConfig map[string]string      `json:"bare_call_config"`
	ExtraPages     uint32                 `json:"extra_pages"`
	Precompiles    []PrecompileInfo       `json:"precompiles,omitempty"`
}

// MarshalJSON renders the application.json document.
func (s *ApplicationSpec) MarshalJSON() ([]byte, error) {
	bare := map[string]string{}
	if s.BareCreate {
		bare["no_op"] = "CREATE"
	}
	return json.Marshal(specJSON{
		Hints: s.Hints,
		Source: map[string]string{
			"approval": base64.StdEncoding.EncodeToString([]byte(s.Approval.Source())),
			"clear":    base64.StdEncoding.EncodeToString([]byte(s.Clear.Source())),
		},
		Schema: map[string]schemaJSON{
			"global": {NumUints: s.GlobalSchema.NumUint, NumByteSlices: s.GlobalSchema.NumByteSlice},
			"local":  {NumUints: s.LocalSchema.NumUint, NumByteSlices: s.LocalSchema.NumByteSlice},
		},
		Contract:       s.Contract,
		BareCallConfig: bare,
		ExtraPages:     s.ExtraPages,
		Precompiles:    s.Precompiles,
	})
}

// Build compiles app and everything it precompiles. A failure anywhere aborts
// the build and is reported as a *precompile.BuildError.
func Build(ctx context.Context, app *Application, c compiler.Compiler, opts ...precompile.Option) (*ApplicationSpec, error) {
	if app == nil {
		return nil, precompile.WrapBuildError("<nil>", precompile.StepDeclaration,
			fmt.Errorf("%w: nil application", precompile.ErrConfiguration))
	}
	p := precompile.NewAppPrecompile(app)
	if err := p.Compile(ctx, c, opts...); err != nil {
		return nil, err
	}

	approval, err := p.Approval()
	if err != nil {
		return nil, err
	}
	clear, err := p.Clear()
	if err != nil {
		return nil, err
	}
	cfg, err := p.CreateConfig()
	if err != nil {
		return nil, err
	}
	global, local := p.Schema()

	hints := make(map[string]MethodHints, len(app.methods))
	for _, m := range app.methods {
		hints[m.abi.GetSignature()] = MethodHints{
			ReadOnly:   m.readOnly,
			CallConfig: map[string]string{"no_op": "CALL"},
		}
	}

	return &ApplicationSpec{
		Name:         app.Name(),
		Approval:     approval,
		Clear:        clear,
		GlobalSchema: global,
		LocalSchema:  local,
		Contract:     app.Contract(),
		Hints:        hints,
		BareCreate:   app.bareCreate,
		Precompiles:  describe(p.Dependencies()),
		ExtraPages:   cfg.ExtraProgramPages,
	}, nil
}

// BuildAll builds independent applications concurrently. Each build has its
// own precompile context. The first failure cancels the remaining builds.
func BuildAll(ctx context.Context, apps []*Application, c compiler.Compiler, limit int, opts ...precompile.Option) ([]*ApplicationSpec, error) {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	specs := make([]*ApplicationSpec, len(apps))
	for i, app := range apps {
		g.Go(func() error {
			spec, err := Build(ctx, app, c, opts...)
			if err != nil {
				return err
			}
			specs[i] = spec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return specs, nil
}

func describe(deps []precompile.Precompile) []PrecompileInfo {
	out := make([]PrecompileInfo, 0, len(deps))
	for _, d := range deps {
		info := PrecompileInfo{Name: d.Name(), Kind: d.Kind().String()}
		switch p := d.(type) {
		case *precompile.AppPrecompile:
			if a, err := p.Approval(); err == nil {
				info.Hash, info.Bytes = a.Hash(), a.Len()
			}
		case *precompile.LSigPrecompile:
			if prog, err := p.Program(); err == nil {
				info.Hash, info.Bytes = prog.Hash(), prog.Len()
			}
		case *precompile.LSigTemplatePrecompile:
			if prog, err := p.Program(); err == nil {
				info.Bytes = prog.Len()
				for _, v := range prog.Variables() {
					info.Variables = append(info.Variables, v.Name)
				}
			}
		}
		out = append(out, info)
	}
	return out
}

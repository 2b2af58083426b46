// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package precompile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aplane-algo/beaker/internal/compiler"
)

var (
	// ErrConfiguration reports a structurally invalid definition, found
	// before anything is assembled.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrUnsupportedType reports a template variable whose type is not one of
	// the two AVM value kinds. It matches ErrConfiguration.
	ErrUnsupportedType = fmt.Errorf("%w: unsupported template variable type", ErrConfiguration)

	// ErrArgumentMismatch is matched by *ArgumentMismatchError.
	ErrArgumentMismatch = errors.New("template arguments do not match declared variables")

	// ErrTemplateValueType reports a template value of the wrong kind.
	ErrTemplateValueType = errors.New("template value has wrong type")

	ErrNoActiveContext     = errors.New("no active precompile context")
	ErrForeignContext      = errors.New("precompile requested for an application other than the one being built")
	ErrNotYetBuilt         = errors.New("precompile has not been built")
	ErrPlaceholderUnmapped = errors.New("template placeholder has no program counter")
)

// ArgumentMismatchError lists the declared and supplied template variable
// names, both sorted.
type ArgumentMismatchError struct {
	Expected []string
	Actual   []string
}

func (e *ArgumentMismatchError) Error() string {
	return fmt.Sprintf("%v: expected [%s], got [%s]", ErrArgumentMismatch,
		strings.Join(e.Expected, ", "), strings.Join(e.Actual, ", "))
}

func (e *ArgumentMismatchError) Is(target error) bool { return target == ErrArgumentMismatch }

// Step classifies where a build failed.
type Step int

const (
	StepDeclaration Step = iota
	StepResolution
	StepEvaluation
	StepAssembly
	StepPopulation
)

func (s Step) String() string {
	switch s {
	case StepDeclaration:
		return "declaration"
	case StepResolution:
		return "resolution"
	case StepEvaluation:
		return "evaluation"
	case StepAssembly:
		return "assembly"
	case StepPopulation:
		return "population"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// BuildError identifies the definition and step at which a build failed.
type BuildError struct {
	Definition string
	Step       Step
	Err        error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s of %q failed: %v", e.Step, e.Definition, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// WrapBuildError attributes err to a definition and step. Errors that already
// carry a BuildError are returned unchanged so the innermost failure is kept.
func WrapBuildError(definition string, step Step, err error) error {
	if err == nil {
		return nil
	}
	var be *BuildError
	if errors.As(err, &be) {
		return err
	}
	return &BuildError{Definition: definition, Step: step, Err: err}
}

// artifactStep classifies an error returned while producing an artifact.
func artifactStep(err error) Step {
	if errors.Is(err, compiler.ErrAssembly) {
		return StepAssembly
	}
	return StepDeclaration
}

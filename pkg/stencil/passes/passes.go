// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package passes implements the ordered chain of transformations applied to a stencil
// ast.Definition before it is lowered to IR.
//
// User supplied passes run first, in the order given, followed by the mandatory system passes
// (ResolveDimensions, FoldConstants and NormalizeOffsets). Each pass receives the output of the
// previous one. The chain works on a deep copy of the definition, so the caller's definition
// is never modified, and a failure anywhere aborts the whole chain.
package passes

import (
	"fmt"
	"strings"

	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Pass transforms a definition.
//
// Apply may modify def in place (the Chain owns it) and must be deterministic: the same input
// and configuration must always produce the same output, since results are cached.
type Pass interface {
	// Name identifies the pass in errors and logs.
	Name() string

	// Apply returns the transformed definition.
	Apply(def *ast.Definition) (*ast.Definition, error)
}

// Fingerprinter is optionally implemented by passes that have a configuration (e.g. a seed)
// that changes their output: it is included in the cache key of the builds using them.
type Fingerprinter interface {
	Fingerprint() string
}

// PassError is returned when a pass fails. It carries the name of the offending pass.
type PassError struct {
	Pass string
	Err  error
}

// Error implements error.
func (e *PassError) Error() string {
	return fmt.Sprintf("pass %q failed: %v", e.Pass, e.Err)
}

// Unwrap returns the underlying error.
func (e *PassError) Unwrap() error { return e.Err }

// IsPassError returns whether err was caused by a failing pass, and if so its name.
func IsPassError(err error) (name string, ok bool) {
	var passErr *PassError
	if errors.As(err, &passErr) {
		return passErr.Pass, true
	}
	return "", false
}

// Func adapts a function to a Pass.
type Func struct {
	PassName string
	Fn       func(def *ast.Definition) (*ast.Definition, error)
}

// Name implements Pass.
func (f Func) Name() string { return f.PassName }

// Apply implements Pass.
func (f Func) Apply(def *ast.Definition) (*ast.Definition, error) { return f.Fn(def) }

// Identity of a pass: its name plus its fingerprint, if it has one.
func Identity(p Pass) string {
	if fp, ok := p.(Fingerprinter); ok {
		return fmt.Sprintf("%s(%s)", p.Name(), fp.Fingerprint())
	}
	return p.Name()
}

// System returns the mandatory system passes, in the order they are applied.
func System() []Pass {
	return []Pass{ResolveDimensions{}, FoldConstants{}, NormalizeOffsets{}}
}

// Chain is an ordered list of passes.
type Chain struct {
	passes []Pass
}

// NewChain returns the chain with the given user passes followed by the System passes.
func NewChain(userPasses ...Pass) *Chain {
	passes := make([]Pass, 0, len(userPasses)+3)
	passes = append(passes, userPasses...)
	passes = append(passes, System()...)
	return &Chain{passes: passes}
}

// Sequence returns a chain with exactly the given passes, without the system passes.
func Sequence(passes ...Pass) *Chain {
	return &Chain{passes: append([]Pass(nil), passes...)}
}

// Passes returns a copy of the list of passes of the chain.
func (c *Chain) Passes() []Pass {
	return append([]Pass(nil), c.passes...)
}

// Len returns the number of passes.
func (c *Chain) Len() int { return len(c.passes) }

// Fingerprint returns the ordered identities of the passes, used as part of cache keys.
func (c *Chain) Fingerprint() string {
	ids := make([]string, len(c.passes))
	for i, p := range c.passes {
		ids[i] = Identity(p)
	}
	return strings.Join(ids, ",")
}

// Run applies the passes in order to a deep copy of def.
//
// On failure it returns a *PassError, and no partially transformed definition.
func (c *Chain) Run(def *ast.Definition) (*ast.Definition, error) {
	current, err := def.Clone()
	if err != nil {
		return nil, err
	}
	for _, p := range c.passes {
		next, err := p.Apply(current)
		if err != nil {
			return nil, &PassError{Pass: p.Name(), Err: err}
		}
		if next == nil {
			return nil, &PassError{Pass: p.Name(), Err: errors.New("pass returned no definition")}
		}
		klog.V(2).Infof("pass %s applied to stencil %q", Identity(p), def.Name)
		current = next
	}
	return current, nil
}

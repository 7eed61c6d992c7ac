// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the interface a code generation target needs to implement to build
// stencils, and the Registry of backends available by name.
//
// A Backend describes itself with an immutable Descriptor (languages, device and storage
// requirements) and generates source artifacts from the IR of a stencil. Generation is pure:
// backends return source text, they never touch the filesystem.
//
// A backend without bindings support for some language can embed notimplemented.Bindings,
// which fails with ErrBindingsNotSupported.
package backends

import (
	"github.com/gomlx/gostencil/internal/scoped"
	"github.com/gomlx/gostencil/pkg/stencil/artifacts"
	"github.com/gomlx/gostencil/pkg/stencil/ir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Backend is the API that needs to be implemented by a stencil code generation target.
type Backend interface {
	// Descriptor returns the capabilities of the backend.
	Descriptor() Descriptor

	// GenerateComputation lowers the IR to computation source code in the backend's
	// computation language. It never includes bindings.
	GenerateComputation(req *Request) (artifacts.Set, error)

	// GenerateBindings generates the interop glue for the given host language.
	// It returns an error wrapping ErrBindingsNotSupported if the backend doesn't support it.
	GenerateBindings(lang Language, req *Request) (artifacts.Set, error)
}

// Request holds the inputs of a code generation call.
type Request struct {
	Stencil *ir.Stencil

	// OutputPath is where the artifacts are going to be written. Generated code that refers to
	// other artifacts by path (e.g. Python wrappers) uses it.
	OutputPath string

	Options Options
}

// Name used for the generated artifacts: Options.Name if set, otherwise the stencil name.
func (r *Request) Name() string {
	if r.Options.Name != "" {
		return r.Options.Name
	}
	return r.Stencil.Name
}

// Options that change the generated code. They are part of the cache key of a build.
type Options struct {
	// Name overrides the stencil name used for the artifacts.
	Name string

	// Rebuild forces the generation even if a cached version exists. It's not part of the
	// canonical form, since it doesn't change the result.
	Rebuild bool

	// FormatSource makes the backends indent generated sources for readability.
	FormatSource bool

	// BackendOpts are backend specific options: scope "/" holds options for all backends and
	// scope "/<backend name>" holds overrides for one backend.
	BackendOpts *scoped.Params
}

// BackendOpt returns the value of a backend specific option, looked up for the given backend.
func (o Options) BackendOpt(backend, key string) (any, bool) {
	if o.BackendOpts == nil {
		return nil, false
	}
	return o.BackendOpts.Get(scoped.Scope(backend), key)
}

// Canonical returns a stable YAML serialization of the options.
func (o Options) Canonical() (string, error) {
	canonical := struct {
		Name         string                    `yaml:"name,omitempty"`
		FormatSource bool                      `yaml:"format_source"`
		BackendOpts  map[string]map[string]any `yaml:"backend_opts,omitempty"`
	}{Name: o.Name, FormatSource: o.FormatSource}
	if o.BackendOpts != nil {
		canonical.BackendOpts = o.BackendOpts.Map()
	}
	out, err := yaml.Marshal(canonical)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize build options")
	}
	return string(out), nil
}

// GOSTENCIL_BACKEND is the environment variable with the name of the default backend.
const GOSTENCIL_BACKEND = "GOSTENCIL_BACKEND"

var (
	// ErrUnknownBackend is returned when looking up a backend name that is not registered.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrDuplicateBackend is returned when two backends with the same name are registered.
	ErrDuplicateBackend = errors.New("duplicate backend name")

	// ErrBindingsNotSupported is returned by GenerateBindings when the backend has no bindings
	// for the requested language.
	ErrBindingsNotSupported = errors.New("bindings not supported")
)

// IsBindingsNotSupported returns whether err was caused by a request for bindings the backend
// doesn't support.
func IsBindingsNotSupported(err error) bool {
	return errors.Is(err, ErrBindingsNotSupported)
}

// CheckBindings returns an error wrapping ErrBindingsNotSupported if the backend described by
// desc can't generate bindings for lang.
func CheckBindings(desc Descriptor, lang Language) error {
	if !desc.SupportsBindings(lang) {
		return errors.Wrapf(ErrBindingsNotSupported, "backend %q has no %s bindings (supported: %v)",
			desc.Name(), lang, desc.BindingsLanguages())
	}
	return nil
}

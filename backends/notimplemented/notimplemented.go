// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package notimplemented implements the parts of backends.Backend a backend may not support,
// returning errors wrapping backends.ErrBindingsNotSupported.
//
// This can help bootstrap any backend implementation: embed Bindings (or Backend) and override
// the methods that are implemented.
package notimplemented

import (
	"github.com/gomlx/gostencil/backends"
	"github.com/gomlx/gostencil/pkg/core/layout"
	"github.com/gomlx/gostencil/pkg/stencil/artifacts"
	"github.com/pkg/errors"
)

// ErrNotImplemented is returned by GenerateComputation of the dummy Backend.
var ErrNotImplemented = errors.New("not implemented")

// Bindings implements backends.Backend.GenerateBindings by always failing.
type Bindings struct {
	// BackendName is included in the error message.
	BackendName string
}

// GenerateBindings implements backends.Backend.
func (b Bindings) GenerateBindings(lang backends.Language, _ *backends.Request) (artifacts.Set, error) {
	return nil, errors.Wrapf(backends.ErrBindingsNotSupported, "backend %q can't generate %s bindings", b.BackendName, lang)
}

// Backend is a dummy backend that can be used to create mock backends.
// It generates nothing, and fails every generation call.
type Backend struct {
	Bindings
	Desc backends.Descriptor
}

var _ backends.Backend = &Backend{}

// New returns a dummy backend named "notimplemented" (or the given name), for CPU.
func New(name string) *Backend {
	if name == "" {
		name = "notimplemented"
	}
	info := layout.Info{Alignment: 1, Device: layout.CPU, LayoutMap: layout.COrder, IsOptimalLayout: layout.Always}
	return &Backend{
		Bindings: Bindings{BackendName: name},
		Desc:     backends.NewDescriptor(name, backends.Python, nil, info, false),
	}
}

// Descriptor implements backends.Backend.
func (b *Backend) Descriptor() backends.Descriptor { return b.Desc }

// GenerateComputation implements backends.Backend.
func (b *Backend) GenerateComputation(*backends.Request) (artifacts.Set, error) {
	return nil, errors.Wrapf(ErrNotImplemented, "backend %q GenerateComputation()", b.Desc.Name())
}

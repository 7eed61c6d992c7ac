// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"fmt"
	"slices"

	"github.com/gomlx/gostencil/pkg/core/layout"
)

// Descriptor holds what a backend generates and what it requires from the storage of the fields.
//
// It's immutable: fields are only accessible through the accessors, which return copies.
type Descriptor struct {
	name        string
	computation Language
	bindings    []Language
	storage     layout.Info
	performance bool
}

// NewDescriptor creates the Descriptor of a backend.
//
// An empty bindings list means the backend can't generate bindings for any language.
// Performance backends warn when called with fields in a non-optimal layout.
func NewDescriptor(name string, computation Language, bindings []Language, storage layout.Info, performance bool) Descriptor {
	return Descriptor{
		name:        name,
		computation: computation,
		bindings:    slices.Clone(bindings),
		storage:     storage,
		performance: performance,
	}
}

// Name of the backend, unique in a Registry.
func (d Descriptor) Name() string { return d.name }

// ComputationLanguage is the language of the generated computation code.
func (d Descriptor) ComputationLanguage() Language { return d.computation }

// BindingsLanguages returns the host languages for which bindings can be generated.
func (d Descriptor) BindingsLanguages() []Language { return slices.Clone(d.bindings) }

// HasBindings returns whether the backend can generate bindings for any language.
func (d Descriptor) HasBindings() bool { return len(d.bindings) > 0 }

// SupportsBindings returns whether the backend can generate bindings for lang.
func (d Descriptor) SupportsBindings(lang Language) bool { return slices.Contains(d.bindings, lang) }

// Device where the generated code runs, and where the fields must be allocated.
func (d Descriptor) Device() layout.Device { return d.storage.Device }

// StorageInfo returns the storage requirements of the backend.
func (d Descriptor) StorageInfo() layout.Info { return d.storage }

// IsPerformance returns whether the backend is performance oriented.
func (d Descriptor) IsPerformance() bool { return d.performance }

// IsCompiled returns whether the computation needs a native toolchain (C++ or CUDA).
func (d Descriptor) IsCompiled() bool { return d.computation != Python }

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s(computation=%s, bindings=%v, device=%s, performance=%v)",
		d.name, d.computation, d.bindings, d.storage.Device, d.performance)
}

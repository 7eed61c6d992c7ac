// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package stencil is the user facing API of gostencil: it compiles a stencil definition for a
// backend into an Object, and calls it on storage arrays.
//
// Example:
//
//	obj, err := stencil.Compile(def, "gt:cpu_ifirst", builder.Context{})
//	a, err := stencil.Zeros("gt:cpu_ifirst", []int{10, 10, 10}, dtypes.Float64, nil)
//	...
//	diagnostics, err := obj.Call(exec.Args{Fields: map[string]*storage.Array{"field_a": a, "field_b": b}})
//
// Calls check the arrays against the storage contract of the backend: arrays on the wrong
// device are an error (ErrDeviceMismatch), and arrays with a layout that performs badly on a
// performance backend produce one warning per field in the returned diagnostics.
//
// The generated code itself is not run: compiling and loading C++/CUDA/Python sources is the
// job of the host toolchain. Calls execute the stencil with the reference evaluator in package
// exec, which computes the same results.
package stencil

import (
	"github.com/gomlx/gostencil/backends"
	"github.com/gomlx/gostencil/pkg/core/storage"
	"github.com/gomlx/gostencil/pkg/stencil/artifacts"
	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/gomlx/gostencil/pkg/stencil/builder"
	"github.com/gomlx/gostencil/pkg/stencil/diagnostic"
	"github.com/gomlx/gostencil/pkg/stencil/exec"
	"github.com/gomlx/gostencil/pkg/stencil/ir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrDeviceMismatch is returned by Object.Call when an array lives on a different device than
// the one of the backend.
var ErrDeviceMismatch = errors.New("device mismatch")

// LayoutWarning is the warning, formatted with the field name, for fields whose layout is not
// optimal for a performance backend.
const LayoutWarning = "The layout of the field '%s' is not recommended for this backend. " +
	"This may lead to performance degradation. " +
	"Please consider using the provided allocators in `gostencil/pkg/core/storage`."

// Object is a compiled stencil.
type Object struct {
	backend backends.Backend
	result  *builder.Result
}

// Compile builds def for the named backend (the default backend if empty), see builder.Build.
func Compile(def *ast.Definition, backendName string, ctx builder.Context) (*Object, error) {
	result, err := builder.Build(def, backendName, ctx)
	if err != nil {
		return nil, err
	}
	registry := ctx.Registry
	if registry == nil {
		registry = defaultRegistry()
	}
	backend, err := registry.Lookup(result.Backend)
	if err != nil {
		return nil, err
	}
	return &Object{backend: backend, result: result}, nil
}

// Backend the object was compiled for.
func (o *Object) Backend() backends.Backend { return o.backend }

// IR of the stencil.
func (o *Object) IR() *ir.Stencil { return o.result.IR }

// Artifacts generated (or loaded from the cache) for the stencil.
func (o *Object) Artifacts() artifacts.Set { return o.result.Artifacts }

// Result of the build.
func (o *Object) Result() *builder.Result { return o.result }

// CheckArgs validates the fields of args against the storage contract of the backend. It
// returns an error wrapping ErrDeviceMismatch for arrays on another device, and adds a warning
// to diagnostics for each field with a non-optimal layout, if the backend is a performance one.
func (o *Object) CheckArgs(args exec.Args, diagnostics *diagnostic.Diagnostics) error {
	desc := o.backend.Descriptor()
	info := desc.StorageInfo()
	for _, p := range o.result.IR.Fields() {
		array, found := args.Fields[p.Name]
		if !found || array == nil {
			return errors.Errorf("stencil %q: missing field %q", o.result.IR.Name, p.Name)
		}
		if array.Device() != info.Device {
			return errors.Wrapf(ErrDeviceMismatch, "field %q is on %s, backend %s requires %s",
				p.Name, array.Device(), desc.Name(), info.Device)
		}
		if desc.IsPerformance() && !array.IsOptimalFor(info, p.Type.Axes()) {
			diagnostics.Warningf(p.Name, LayoutWarning, p.Name)
		}
	}
	return nil
}

// Call runs the stencil on args. Fields are updated in place.
// Non-fatal issues (e.g. layout warnings) are returned in the diagnostics.
func (o *Object) Call(args exec.Args) (*diagnostic.Diagnostics, error) {
	diagnostics := diagnostic.New()
	if err := o.CheckArgs(args, diagnostics); err != nil {
		return diagnostics, err
	}
	if err := exec.Run(o.result.IR, args); err != nil {
		return diagnostics, err
	}
	klog.V(2).Infof("called stencil %q on backend %s: %d warnings", o.result.IR.Name,
		o.backend.Descriptor().Name(), diagnostics.WarningCount())
	return diagnostics, nil
}

// IsOptimal reports whether array has an optimal layout for the field of the stencil.
func (o *Object) IsOptimal(field string, array *storage.Array) bool {
	p := o.result.IR.Param(field)
	if p == nil || !p.IsField() {
		return false
	}
	return array.IsOptimalFor(o.backend.Descriptor().StorageInfo(), p.Type.Axes())
}

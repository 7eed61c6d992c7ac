// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package gtbackend implements the compiled backends, which generate C++ or CUDA sources plus
// pybind11 bindings:
//
//   - "gt:cpu_ifirst": C++, I is the fastest axis followed by K, 64 bytes alignment.
//   - "gt:cpu_kfirst": C++, row-major (K fastest) layout.
//   - "gt:gpu" and "cuda": CUDA kernels over the horizontal plane, I fastest.
//
// Computation artifacts are a bundle "<name>_src" with "computation.hpp" and
// "computation.cpp" (or "computation.cu"); bindings add "bindings.cpp" (or "bindings.cu") to the
// same bundle.
//
// Backend specific options (see backends.Options.BackendOpts):
//
//   - "openmp" (bool): annotate the outer loops of the C++ backends with OpenMP pragmas.
//   - "block_i", "block_j" (int): CUDA thread block size, defaults to 32x8.
package gtbackend

import (
	"github.com/gomlx/gostencil/backends"
	"github.com/gomlx/gostencil/backends/codegen"
	"github.com/gomlx/gostencil/pkg/core/layout"
	"github.com/gomlx/gostencil/pkg/stencil/artifacts"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	CPUIFirstName = "gt:cpu_ifirst"
	CPUKFirstName = "gt:cpu_kfirst"
	GPUName       = "gt:gpu"
	CUDAName      = "cuda"

	HeaderFile = "computation.hpp"

	// DefaultBlockI and DefaultBlockJ are the default CUDA thread block dimensions.
	DefaultBlockI = 32
	DefaultBlockJ = 8
)

// Backend generates C++ or CUDA sources. Each flavor differs only in its Descriptor.
type Backend struct {
	desc backends.Descriptor
}

var _ backends.Backend = (*Backend)(nil)

func newBackend(name string, lang backends.Language, device layout.Device, alignment int, mapFn layout.MapFn) *Backend {
	info := layout.Info{
		Alignment:       alignment,
		Device:          device,
		LayoutMap:       mapFn,
		IsOptimalLayout: layout.Checker(mapFn),
	}
	return &Backend{desc: backends.NewDescriptor(name, lang, []backends.Language{backends.Python}, info, true)}
}

// NewCPUIFirst returns the "gt:cpu_ifirst" backend.
func NewCPUIFirst() *Backend {
	return newBackend(CPUIFirstName, backends.Cpp, layout.CPU, 64, layout.FromPreference([3]int{2, 0, 1}))
}

// NewCPUKFirst returns the "gt:cpu_kfirst" backend.
func NewCPUKFirst() *Backend {
	return newBackend(CPUKFirstName, backends.Cpp, layout.CPU, 1, layout.COrder)
}

// NewGPU returns the "gt:gpu" backend.
func NewGPU() *Backend {
	return newBackend(GPUName, backends.Cuda, layout.GPU, 256, layout.FromPreference([3]int{2, 1, 0}))
}

// NewCUDA returns the "cuda" backend.
func NewCUDA() *Backend {
	return newBackend(CUDAName, backends.Cuda, layout.GPU, 256, layout.FromPreference([3]int{2, 1, 0}))
}

// Descriptor implements backends.Backend.
func (b *Backend) Descriptor() backends.Descriptor { return b.desc }

// SourceDir returns the name of the bundle holding the sources of the stencil.
func SourceDir(name string) string { return name + "_src" }

func (b *Backend) isCUDA() bool { return b.desc.ComputationLanguage() == backends.Cuda }

func (b *Backend) sourceFile(base string) string {
	return base + "." + b.desc.ComputationLanguage().SourceExt()
}

func (b *Backend) model(req *backends.Request) (*model, *renderer, error) {
	if req == nil || req.Stencil == nil {
		return nil, nil, errors.Errorf("backend %s: request without stencil IR", b.desc.Name())
	}
	m, err := newModel(b, req)
	if err != nil {
		return nil, nil, err
	}
	m.CUDA = b.isCUDA()
	m.BlockX = intOpt(req.Options, b.desc.Name(), "block_i", DefaultBlockI)
	m.BlockY = intOpt(req.Options, b.desc.Name(), "block_j", DefaultBlockJ)
	r := &renderer{s: req.Stencil, builtins: cppBuiltins}
	if m.CUDA {
		r.builtins = cudaBuiltins
	}
	return m, r, nil
}

// GenerateComputation implements backends.Backend. It returns the bundle
// "<name>_src" with the header and the C++ or CUDA source of the computation.
func (b *Backend) GenerateComputation(req *backends.Request) (artifacts.Set, error) {
	m, r, err := b.model(req)
	if err != nil {
		return nil, err
	}
	s := req.Stencil
	if m.CUDA {
		m.Kernels, m.Body, err = cudaBody(b, s, m, r)
	} else {
		openMP, _ := req.Options.BackendOpt(b.desc.Name(), "openmp")
		enabled, _ := openMP.(bool)
		m.Body, err = cpuBody(b, s, r, enabled)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "backend %s, stencil %q", b.desc.Name(), s.Name)
	}
	header, err := codegen.Render(headerTemplate, m)
	if err != nil {
		return nil, err
	}
	tmpl := cppTemplate
	if m.CUDA {
		tmpl = cudaTemplate
	}
	src, err := codegen.Render(tmpl, m)
	if err != nil {
		return nil, err
	}
	format := req.Options.FormatSource
	klog.V(2).Infof("backend %s generated %s/%s", b.desc.Name(), SourceDir(req.Name()), b.sourceFile("computation"))
	return artifacts.Set{
		SourceDir(req.Name()): artifacts.Bundle(artifacts.Set{
			HeaderFile:                  artifacts.File(codegen.Finish(header, format)),
			b.sourceFile("computation"): artifacts.File(codegen.Finish(src, format)),
		}),
	}, nil
}

// GenerateBindings implements backends.Backend. For Python it returns the bundle "<name>_src"
// with the pybind11 module source "bindings.cpp" (or "bindings.cu").
func (b *Backend) GenerateBindings(lang backends.Language, req *backends.Request) (artifacts.Set, error) {
	if err := backends.CheckBindings(b.desc, lang); err != nil {
		return nil, err
	}
	m, _, err := b.model(req)
	if err != nil {
		return nil, err
	}
	src, err := codegen.Render(bindingsTemplate, m)
	if err != nil {
		return nil, err
	}
	return artifacts.Set{
		SourceDir(req.Name()): artifacts.Bundle(artifacts.Set{
			b.sourceFile("bindings"): artifacts.File(codegen.Finish(src, req.Options.FormatSource)),
		}),
	}, nil
}

func intOpt(opts backends.Options, backend, key string, defaultValue int) int {
	v, found := opts.BackendOpt(backend, key)
	if !found {
		return defaultValue
	}
	switch n := v.(type) {
	case int:
		if n > 0 {
			return n
		}
	case int64:
		if n > 0 {
			return int(n)
		}
	case float64:
		if n > 0 {
			return int(n)
		}
	}
	klog.Warningf("backend %s: invalid value %v for option %q, using %d", backend, v, key, defaultValue)
	return defaultValue
}

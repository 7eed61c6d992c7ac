// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package pybackend implements the interpreted (Python) backends:
//
//   - "debug": a single module "<name>.py" with explicit loops over every point. No bindings.
//   - "numpy": a standalone "computation.py" module using NumPy slicing, plus (as Python
//     bindings) a thin "<name>.py" module that loads the computation module by path.
//
// Both run on CPU, accept any layout and have no alignment requirements.
package pybackend

import (
	"path"

	"github.com/gomlx/gostencil/backends"
	"github.com/gomlx/gostencil/backends/codegen"
	"github.com/gomlx/gostencil/backends/notimplemented"
	"github.com/gomlx/gostencil/pkg/core/layout"
	"github.com/gomlx/gostencil/pkg/stencil/artifacts"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	DebugName = "debug"
	NumpyName = "numpy"

	// ComputationFile is the name of the standalone computation module of the numpy backend.
	ComputationFile = "computation.py"
)

func storageInfo() layout.Info {
	return layout.Info{
		Alignment:       1,
		Device:          layout.CPU,
		LayoutMap:       layout.COrder,
		IsOptimalLayout: layout.Always,
	}
}

// Debug backend generates a plain Python module, easy to read and step through.
type Debug struct {
	notimplemented.Bindings
	desc backends.Descriptor
}

var _ backends.Backend = (*Debug)(nil)

// NewDebug returns the "debug" backend.
func NewDebug() *Debug {
	return &Debug{
		Bindings: notimplemented.Bindings{BackendName: DebugName},
		desc:     backends.NewDescriptor(DebugName, backends.Python, nil, storageInfo(), false),
	}
}

// Descriptor implements backends.Backend.
func (b *Debug) Descriptor() backends.Descriptor { return b.desc }

// GenerateComputation implements backends.Backend. It returns {"<name>.py"}.
func (b *Debug) GenerateComputation(req *backends.Request) (artifacts.Set, error) {
	if req == nil || req.Stencil == nil {
		return nil, errors.New("debug backend: request without stencil IR")
	}
	src, err := generateModule(b.desc.Name(), req, loopStyle)
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("backend %s generated %s.py", b.desc.Name(), req.Name())
	return artifacts.Set{req.Name() + ".py": artifacts.File(src)}, nil
}

// Numpy backend generates a vectorized computation module and a thin wrapper module.
type Numpy struct {
	desc backends.Descriptor
}

var _ backends.Backend = (*Numpy)(nil)

// NewNumpy returns the "numpy" backend.
func NewNumpy() *Numpy {
	return &Numpy{
		desc: backends.NewDescriptor(NumpyName, backends.Python, []backends.Language{backends.Python}, storageInfo(), false),
	}
}

// Descriptor implements backends.Backend.
func (b *Numpy) Descriptor() backends.Descriptor { return b.desc }

// GenerateComputation implements backends.Backend. It returns {"computation.py"}.
func (b *Numpy) GenerateComputation(req *backends.Request) (artifacts.Set, error) {
	if req == nil || req.Stencil == nil {
		return nil, errors.New("numpy backend: request without stencil IR")
	}
	src, err := generateModule(b.desc.Name(), req, vectorStyle)
	if err != nil {
		return nil, err
	}
	return artifacts.Set{ComputationFile: artifacts.File(src)}, nil
}

// GenerateBindings implements backends.Backend. For Python it returns {"<name>.py"}, a module
// that loads "computation.py" from the request's output path instead of embedding it.
// Without an output path it loads the "computation.py" next to itself, so both artifacts
// must be written to the same directory.
func (b *Numpy) GenerateBindings(lang backends.Language, req *backends.Request) (artifacts.Set, error) {
	if err := backends.CheckBindings(b.desc, lang); err != nil {
		return nil, err
	}
	if req == nil || req.Stencil == nil {
		return nil, errors.New("numpy backend: request without stencil IR")
	}
	s := req.Stencil
	m := newModel(s, codegen.Header("#", req.Name(), b.desc.Name(), s.Fingerprint))
	if req.OutputPath != "" {
		m.ComputationPath = path.Join(req.OutputPath, ComputationFile)
	}
	src, err := codegen.Render(wrapperTemplate, m)
	if err != nil {
		return nil, err
	}
	return artifacts.Set{req.Name() + ".py": artifacts.File(codegen.Finish(src, req.Options.FormatSource))}, nil
}

func generateModule(backendName string, req *backends.Request, st style) (string, error) {
	s := req.Stencil
	m := newModel(s, codegen.Header("#", req.Name(), backendName, s.Fingerprint))
	var err error
	m.Body, err = body(s, st, 1)
	if err != nil {
		return "", errors.WithMessagef(err, "backend %s, stencil %q", backendName, s.Name)
	}
	tmpl := debugTemplate
	if st == vectorStyle {
		tmpl = computationTemplate
	}
	src, err := codegen.Render(tmpl, m)
	if err != nil {
		return "", err
	}
	return codegen.Finish(src, req.Options.FormatSource), nil
}

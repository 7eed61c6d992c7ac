// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package _default

import (
	"maps"
	"slices"
	"testing"

	"github.com/gomlx/gostencil/backends"
	"github.com/gomlx/gostencil/pkg/core/layout"
	"github.com/gomlx/gostencil/pkg/stencil/stenciltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := Registry()
	require.Same(t, r, Registry())
	assert.Equal(t, []string{"cuda", "debug", "gt:cpu_ifirst", "gt:cpu_kfirst", "gt:gpu", "numpy"}, r.Names())

	type row struct {
		computation backends.Language
		bindings    bool
		device      layout.Device
		performance bool
	}
	want := map[string]row{
		"debug":         {backends.Python, false, layout.CPU, false},
		"numpy":         {backends.Python, true, layout.CPU, false},
		"gt:cpu_ifirst": {backends.Cpp, true, layout.CPU, true},
		"gt:cpu_kfirst": {backends.Cpp, true, layout.CPU, true},
		"gt:gpu":        {backends.Cuda, true, layout.GPU, true},
		"cuda":          {backends.Cuda, true, layout.GPU, true},
	}
	var order []string
	for _, b := range r.All() {
		desc := b.Descriptor()
		order = append(order, desc.Name())
		assert.Equal(t, want[desc.Name()], row{desc.ComputationLanguage(), desc.SupportsBindings(backends.Python),
			desc.Device(), desc.IsPerformance()}, desc.Name())
	}
	assert.Equal(t, []string{"debug", "numpy", "gt:cpu_ifirst", "gt:cpu_kfirst", "gt:gpu", "cuda"}, order)

	_, err := r.Lookup("fortran")
	require.ErrorIs(t, err, backends.ErrUnknownBackend)
	assert.Panics(t, func() { r.MustLookup("fortran") })
}

func TestDefaultName(t *testing.T) {
	t.Setenv(backends.GOSTENCIL_BACKEND, "")
	assert.Equal(t, "numpy", DefaultName())
	t.Setenv(backends.GOSTENCIL_BACKEND, "debug")
	assert.Equal(t, "debug", DefaultName())
	b, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "debug", b.Descriptor().Name())
}

// TestArtifactConventions checks the files each backend generates for the init_1 stencil.
func TestArtifactConventions(t *testing.T) {
	req := &backends.Request{Stencil: stenciltest.Lower(t, stenciltest.Init1()), OutputPath: "/tmp/init_1"}
	computation := map[string][]string{
		"debug":         {"init_1.py"},
		"numpy":         {"computation.py"},
		"gt:cpu_ifirst": {"init_1_src/computation.cpp", "init_1_src/computation.hpp"},
		"gt:cpu_kfirst": {"init_1_src/computation.cpp", "init_1_src/computation.hpp"},
		"gt:gpu":        {"init_1_src/computation.cu", "init_1_src/computation.hpp"},
		"cuda":          {"init_1_src/computation.cu", "init_1_src/computation.hpp"},
	}
	bindings := map[string][]string{
		"numpy":         {"init_1.py"},
		"gt:cpu_ifirst": {"init_1_src/bindings.cpp"},
		"gt:cpu_kfirst": {"init_1_src/bindings.cpp"},
		"gt:gpu":        {"init_1_src/bindings.cu"},
		"cuda":          {"init_1_src/bindings.cu"},
	}
	for _, b := range Registry().All() {
		name := b.Descriptor().Name()
		set, err := b.GenerateComputation(req)
		require.NoError(t, err, name)
		assert.Equal(t, computation[name], slices.Sorted(maps.Keys(set.Flatten())), name)

		bset, err := b.GenerateBindings(backends.Python, req)
		if bindings[name] == nil {
			require.Error(t, err, name)
			assert.True(t, backends.IsBindingsNotSupported(err), name)
			continue
		}
		require.NoError(t, err, name)
		assert.Equal(t, bindings[name], slices.Sorted(maps.Keys(bset.Flatten())), name)
	}
}

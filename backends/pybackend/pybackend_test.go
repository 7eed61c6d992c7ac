// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pybackend

import (
	"regexp"
	"testing"

	"github.com/gomlx/gostencil/backends"
	"github.com/gomlx/gostencil/pkg/core/layout"
	"github.com/gomlx/gostencil/pkg/stencil/stenciltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(t *testing.T) *backends.Request {
	return &backends.Request{
		Stencil:    stenciltest.Lower(t, stenciltest.Init1()),
		OutputPath: "/tmp/gostencil/init_1",
	}
}

func TestDescriptors(t *testing.T) {
	debug := NewDebug().Descriptor()
	assert.Equal(t, "debug", debug.Name())
	assert.Equal(t, backends.Python, debug.ComputationLanguage())
	assert.False(t, debug.HasBindings())
	assert.False(t, debug.IsPerformance())
	assert.Equal(t, layout.CPU, debug.Device())

	numpy := NewNumpy().Descriptor()
	assert.Equal(t, "numpy", numpy.Name())
	assert.True(t, numpy.SupportsBindings(backends.Python))
	assert.False(t, numpy.SupportsBindings(backends.Cpp))
	assert.Equal(t, 1, numpy.StorageInfo().Alignment)
}

func TestDebug(t *testing.T) {
	b := NewDebug()
	req := request(t)
	set, err := b.GenerateComputation(req)
	require.NoError(t, err)
	require.Equal(t, []string{"init_1.py"}, set.Keys())
	src := set["init_1.py"].Text
	assert.Contains(t, src, "def run(input_field, *, domain=None, origin=None):")
	assert.Contains(t, src, "for k in range(0, n_k):")
	assert.Contains(t, src, "input_field[o_i + i, o_j + j, o_k + k] = 1.0")
	assert.NotContains(t, src, "import numpy")

	_, err = b.GenerateBindings(backends.Python, req)
	require.Error(t, err)
	assert.True(t, backends.IsBindingsNotSupported(err))

	// Temporaries are NumPy arrays.
	set, err = b.GenerateComputation(&backends.Request{Stencil: stenciltest.Lower(t, stenciltest.ColumnSum())})
	require.NoError(t, err)
	src = set["column_sum.py"].Text
	assert.Contains(t, src, "import math\n\nimport numpy as np\n")
	assert.Contains(t, src, "acc = np.zeros(domain, dtype=np.float64)")
}

func TestNumpy(t *testing.T) {
	b := NewNumpy()
	req := request(t)
	set, err := b.GenerateComputation(req)
	require.NoError(t, err)
	require.Equal(t, []string{ComputationFile}, set.Keys())
	src := set[ComputationFile].Text
	assert.Contains(t, src, "import numpy as np")
	assert.Contains(t, src, "input_field[o_i:o_i + n_i, o_j:o_j + n_j, o_k:o_k + n_k] = 1.0")

	bindings, err := b.GenerateBindings(backends.Python, req)
	require.NoError(t, err)
	require.Equal(t, []string{"init_1.py"}, bindings.Keys())
	wrapper := bindings["init_1.py"].Text
	assert.Regexp(t, regexp.MustCompile(`computation = make_module_from_file\(.*\)`), wrapper)
	assert.Contains(t, wrapper, `"/tmp/gostencil/init_1/computation.py"`)
	// The wrapper loads the computation, it must not inline it.
	assert.NotContains(t, wrapper, "o_i:o_i + n_i")

	_, err = b.GenerateBindings(backends.Cpp, req)
	assert.True(t, backends.IsBindingsNotSupported(err))

	// Not persisted: the computation is looked up next to the wrapper, not in the working directory.
	req.OutputPath = ""
	bindings, err = b.GenerateBindings(backends.Python, req)
	require.NoError(t, err)
	wrapper = bindings["init_1.py"].Text
	assert.Contains(t, wrapper, "import os\n")
	assert.Contains(t, wrapper, `os.path.join(os.path.dirname(os.path.abspath(__file__)), "computation.py")`)
	assert.NotContains(t, wrapper, `make_module_from_file("computation", "computation.py")`)
}

func TestNumpyLaplacianAndColumns(t *testing.T) {
	b := NewNumpy()
	set, err := b.GenerateComputation(&backends.Request{Stencil: stenciltest.Lower(t, stenciltest.Laplacian())})
	require.NoError(t, err)
	src := set[ComputationFile].Text
	assert.Contains(t, src, "DEFAULT_ORIGIN = (1, 1, 0)")
	assert.Contains(t, src, "HALO_AFTER = (1, 1, 0)")
	assert.Contains(t, src, "in_field[o_i + 1:o_i + 1 + n_i, o_j:o_j + n_j, o_k:o_k + n_k]")
	assert.Contains(t, src, "in_field[o_i - 1:o_i - 1 + n_i, o_j:o_j + n_j, o_k:o_k + n_k]")

	set, err = b.GenerateComputation(&backends.Request{Stencil: stenciltest.Lower(t, stenciltest.ColumnSum())})
	require.NoError(t, err)
	src = set[ComputationFile].Text
	assert.Contains(t, src, "acc = np.zeros(domain, dtype=np.float64)")
	assert.Contains(t, src, "for k in range(1, n_k):")
	assert.Contains(t, src, "acc[0:n_i, 0:n_j, k] = (acc[0:n_i, 0:n_j, k - 1] + in_field[o_i:o_i + n_i, o_j:o_j + n_j, o_k + k])")
}

func TestOptionsName(t *testing.T) {
	req := request(t)
	req.Options.Name = "custom"
	set, err := NewDebug().GenerateComputation(req)
	require.NoError(t, err)
	assert.True(t, set.Has("custom.py"))
}

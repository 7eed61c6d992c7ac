// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	_default "github.com/gomlx/gostencil/backends/default"
	"github.com/gomlx/gostencil/internal/scoped"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptFlags(t *testing.T) {
	var opts optFlags
	require.NoError(t, opts.Set("/gt:openmp=true"))
	require.NoError(t, opts.Set("block_i=16"))
	require.NoError(t, opts.Set("/cuda:label=fast:path"))
	require.Error(t, opts.Set("novalue"))

	v, found := opts.params.Get(scoped.Scope("gt:cpu_ifirst"), "openmp")
	require.True(t, found)
	assert.Equal(t, true, v)
	v, found = opts.params.Get(scoped.Scope("numpy"), "block_i")
	require.True(t, found)
	assert.Equal(t, 16, v)
	v, _ = opts.params.Get(scoped.Scope("cuda"), "label")
	assert.Equal(t, "fast:path", v)
	_, found = opts.params.Get(scoped.Scope("numpy"), "openmp")
	assert.False(t, found)
	assert.Equal(t, "/gt:openmp=true,block_i=16,/cuda:label=fast:path", opts.String())

	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, "abc", parseValue("abc"))
}

func TestTables(t *testing.T) {
	out := backendsTable(_default.Registry()).Render()
	for _, name := range _default.Registry().Names() {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "256 B")
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package storage

import (
	"reflect"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/pkg/core/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	kfirstInfo = layout.Info{
		Alignment:       1,
		Device:          layout.CPU,
		LayoutMap:       layout.COrder,
		IsOptimalLayout: layout.Checker(layout.COrder),
	}
	gpuInfo = layout.Info{
		Alignment:       32 * 8,
		Device:          layout.GPU,
		LayoutMap:       layout.FromPreference([3]int{2, 1, 0}),
		IsOptimalLayout: layout.Checker(layout.FromPreference([3]int{2, 1, 0})),
	}
)

func TestEmpty(t *testing.T) {
	a, err := Empty(kfirstInfo, []int{4, 3, 2}, dtypes.Float64, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3, 2}, a.Shape())
	assert.Equal(t, []int{6, 2, 1}, a.Strides())
	assert.Equal(t, layout.CPU, a.Device())
	assert.Equal(t, 24, a.Size())
	assert.True(t, a.IsOptimalFor(kfirstInfo, "IJK"))
	assert.Equal(t, 0.0, a.At(3, 2, 1))

	_, err = Empty(kfirstInfo, []int{4, 0, 2}, dtypes.Float64, nil)
	require.ErrorIs(t, err, ErrInvalidShape)
	_, err = Empty(kfirstInfo, []int{4, 3, 2}, dtypes.Float64, []int{0, 0})
	require.ErrorIs(t, err, ErrInvalidShape)
	_, err = Empty(kfirstInfo, []int{4, 3, 2}, dtypes.Complex128, nil)
	require.Error(t, err)
}

func TestAlignment(t *testing.T) {
	alignedIndex := []int{3, 3, 0}
	a, err := Zeros(gpuInfo, []int{10, 10, 10}, dtypes.Float64, alignedIndex)
	require.NoError(t, err)
	assert.Equal(t, layout.GPU, a.Device())
	// I is the fastest axis, padded to a multiple of 32 elements.
	assert.Equal(t, []int{1, 32, 320}, a.Strides())
	pos := a.FlatIndex(alignedIndex...)
	addr := reflect.ValueOf(a.Flat()).Index(pos).UnsafeAddr()
	assert.Zero(t, addr%uintptr(gpuInfo.Alignment))
	assert.True(t, a.IsOptimalFor(gpuInfo, "IJK"))
	assert.False(t, a.IsOptimalFor(kfirstInfo, "IJK"))
}

func TestFullAndOnes(t *testing.T) {
	for _, dtype := range []dtypes.DType{dtypes.Float64, dtypes.Float32, dtypes.Float16, dtypes.Int32, dtypes.Int64, dtypes.Bool} {
		a, err := Ones(kfirstInfo, []int{2, 2}, dtype, nil)
		require.NoError(t, err)
		ForEachIndex(a.Shape(), func(index []int) {
			require.Equalf(t, 1.0, a.At(index...), "dtype=%s", dtype)
		})
	}
	a, err := Full(kfirstInfo, []int{3}, dtypes.Float32, 2.5, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.5, a.At(2))
}

func TestFromFlatOrders(t *testing.T) {
	data := []float64{0, 1, 2, 3, 4, 5}
	c, err := FromFlat(layout.CPU, OrderC, data, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5.0, c.At(1, 2))
	assert.Equal(t, 1.0, c.At(0, 1))

	f, err := FromFlat(layout.CPU, OrderF, data, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f.At(1, 0))
	assert.Equal(t, 2.0, f.At(0, 1))
	assert.False(t, Equal(c, f))

	c2 := Like(f, OrderC)
	require.NoError(t, c2.CopyFrom(f))
	assert.True(t, Equal(f, c2))

	_, err = FromFlat(layout.CPU, OrderC, data, 4, 2)
	require.ErrorIs(t, err, ErrInvalidShape)
	_, err = FromFlat(layout.CPU, OrderC, []int{1, 2}, 2)
	require.Error(t, err)
}

func TestTranspose(t *testing.T) {
	a, err := Empty(kfirstInfo, []int{2, 3, 4}, dtypes.Float64, nil)
	require.NoError(t, err)
	ForEachIndex(a.Shape(), func(index []int) {
		a.Set(float64(100*index[0]+10*index[1]+index[2]), index...)
	})
	view, err := a.Transpose(1, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 2}, view.Shape())
	assert.Equal(t, a.At(1, 2, 3), view.At(2, 3, 1))
	assert.False(t, view.IsOptimalFor(kfirstInfo, "IJK"))

	// Views share memory.
	view.Set(-1, 0, 0, 1)
	assert.Equal(t, -1.0, a.At(1, 0, 0))

	_, err = a.Transpose(0, 0, 1)
	require.Error(t, err)
}

func TestForEachIndex(t *testing.T) {
	var visited [][]int
	ForEachIndex([]int{2, 2}, func(index []int) {
		visited = append(visited, append([]int(nil), index...))
	})
	assert.Equal(t, [][]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}, visited)

	count := 0
	ForEachIndex([]int{}, func([]int) { count++ })
	assert.Equal(t, 1, count)
	ForEachIndex([]int{3, 0}, func([]int) { count++ })
	assert.Equal(t, 1, count)
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layout

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type stridedFn []int

func (s stridedFn) Strides() []int { return s }

func TestOrders(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, COrder("IJK"))
	assert.Equal(t, []int{2, 1, 0}, FortranOrder("IJK"))
	assert.Equal(t, []int{100, 10, 1}, Strides([]int{10, 10, 10}, COrder("IJK")))
	assert.Equal(t, []int{1, 20, 200}, Strides([]int{20, 10, 5}, FortranOrder("IJK")))
}

func TestFromPreference(t *testing.T) {
	ifirst := FromPreference([3]int{2, 0, 1})
	assert.Equal(t, []int{2, 0, 1}, ifirst("IJK"))
	assert.Equal(t, []int{1, 0}, ifirst("IJ"))
	assert.Equal(t, []int{0}, ifirst("K"))
	assert.Equal(t, []int{1, 0, 2}, ifirst("IJD"))
}

func TestChecker(t *testing.T) {
	kfirst := Checker(COrder)
	assert.True(t, kfirst(stridedFn{100, 10, 1}, "IJK"))
	assert.False(t, kfirst(stridedFn{10, 1, 100}, "IJK"))
	assert.False(t, kfirst(stridedFn{100, 10}, "IJK"))

	fortran := Checker(FortranOrder)
	assert.False(t, fortran(stridedFn{100, 10, 1}, "IJK"))
	assert.True(t, fortran(stridedFn{1, 10, 100}, "IJK"))
	assert.True(t, Always(stridedFn{3, 2, 1}, "IJK"))
}

func TestDevice(t *testing.T) {
	for _, d := range []Device{CPU, GPU} {
		got, err := ParseDevice(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	_, err := ParseDevice("tpu")
	require.Error(t, err)
}

// Dense strides built from any layout map are always accepted by the checker of that same map.
func TestStridesFollowLayout(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rank := rapid.IntRange(1, 4).Draw(t, "rank")
		shape := rapid.SliceOfN(rapid.IntRange(1, 7), rank, rank).Draw(t, "shape")
		perm := rapid.Permutation(COrder(strings.Repeat("X", rank))).Draw(t, "layout")
		require.NoError(t, Validate(perm))
		strides := Strides(shape, perm)
		if !IsStrideOrdered(strides, perm) {
			t.Fatalf("strides %v for shape %v do not follow layout %v", strides, shape, perm)
		}
		fastest := slices.Index(perm, rank-1)
		if strides[fastest] != 1 {
			t.Fatalf("fastest axis %d has stride %d", fastest, strides[fastest])
		}
	})
}

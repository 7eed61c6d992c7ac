// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package layout describes the memory layout a backend expects of the arrays passed to its stencils.
//
// A layout map assigns to each axis of an array its rank in memory order: the axis with the highest
// value is the fastest varying one (stride 1), the axis with value 0 is the slowest. E.g. for axes
// "IJK", the C (row-major) order is [0, 1, 2] and the Fortran (column-major) order is [2, 1, 0].
package layout

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Device where the memory of an array lives.
type Device int

const (
	CPU Device = iota
	GPU
)

// String implements fmt.Stringer.
func (d Device) String() string {
	switch d {
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	}
	return fmt.Sprintf("Device(%d)", int(d))
}

// ParseDevice converts "cpu" or "gpu" to a Device.
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(s) {
	case "cpu":
		return CPU, nil
	case "gpu":
		return GPU, nil
	}
	return CPU, errors.Errorf("unknown device %q", s)
}

// Strided is implemented by arrays that expose their per-axis strides (in elements).
type Strided interface {
	Strides() []int
}

// MapFn returns the layout map for the given axes string (e.g. "IJK").
// The returned slice has one entry per axis.
type MapFn func(axes string) []int

// Info is the storage contract of a backend.
type Info struct {
	// Alignment in bytes of the first element of the compute domain (the "aligned index").
	// 1 means no alignment requirement.
	Alignment int

	// Device where the arrays of the backend must live.
	Device Device

	// LayoutMap gives the preferred memory order for a given axes string.
	LayoutMap MapFn

	// IsOptimalLayout returns whether an array, used with the given axes string, has a layout
	// that performs well with the backend.
	IsOptimalLayout func(array Strided, axes string) bool
}

// COrder returns the row-major layout map: the last axis is the fastest.
func COrder(axes string) []int {
	layout := make([]int, len(axes))
	for i := range layout {
		layout[i] = i
	}
	return layout
}

// FortranOrder returns the column-major layout map: the first axis is the fastest.
func FortranOrder(axes string) []int {
	n := len(axes)
	layout := make([]int, n)
	for i := range layout {
		layout[i] = n - 1 - i
	}
	return layout
}

// FromPreference builds a MapFn from a preferred 3D order given as memory ranks of I, J and K.
// Axes not in "IJK" (e.g. data dimensions) are placed as the fastest ones, in the order given.
// Lower rank arrays (e.g. "IJ" or "K") keep the relative order of the preference.
func FromPreference(ijk [3]int) MapFn {
	return func(axes string) []int {
		type axisRank struct {
			pos  int
			rank int
		}
		ranks := make([]axisRank, len(axes))
		for pos, letter := range axes {
			r := 3 + pos
			if idx := strings.IndexRune("IJK", letter); idx >= 0 {
				r = ijk[idx]
			}
			ranks[pos] = axisRank{pos: pos, rank: r}
		}
		sorted := slices.Clone(ranks)
		slices.SortStableFunc(sorted, func(a, b axisRank) int { return a.rank - b.rank })
		layout := make([]int, len(axes))
		for order, ar := range sorted {
			layout[ar.pos] = order
		}
		return layout
	}
}

// Always is an IsOptimalLayout predicate that accepts any layout.
func Always(Strided, string) bool { return true }

// Checker returns an IsOptimalLayout predicate that accepts arrays whose strides are ordered
// according to the layout map: an axis with a higher layout value must not have a larger stride
// than an axis with a lower layout value.
func Checker(mapFn MapFn) func(array Strided, axes string) bool {
	return func(array Strided, axes string) bool {
		strides := array.Strides()
		layout := mapFn(axes)
		if len(strides) != len(layout) {
			return false
		}
		return IsStrideOrdered(strides, layout)
	}
}

// IsStrideOrdered returns whether the strides follow the given layout map.
func IsStrideOrdered(strides, layout []int) bool {
	for a := range layout {
		for b := range layout {
			if layout[a] > layout[b] && strides[a] > strides[b] {
				return false
			}
		}
	}
	return true
}

// Validate checks that layout is a permutation of [0, len(layout)).
func Validate(layout []int) error {
	seen := make([]bool, len(layout))
	for _, v := range layout {
		if v < 0 || v >= len(layout) || seen[v] {
			return errors.Errorf("layout map %v is not a permutation of 0..%d", layout, len(layout)-1)
		}
		seen[v] = true
	}
	return nil
}

// Strides returns the element strides of a dense array with the given (padded) shape and layout map.
func Strides(shape, layout []int) []int {
	n := len(shape)
	strides := make([]int, n)
	order := make([]int, n) // order[rank] = axis
	for axis, rank := range layout {
		order[rank] = axis
	}
	stride := 1
	for rank := n - 1; rank >= 0; rank-- {
		axis := order[rank]
		strides[axis] = stride
		stride *= shape[axis]
	}
	return strides
}

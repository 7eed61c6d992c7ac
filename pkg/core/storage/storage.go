// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package storage implements Array, the storage handle of the fields passed to a stencil.
//
// An Array is a strided view over a flat Go slice of the Go type of its DType. Besides its shape
// and dtype, it carries the metadata of the layout contract with the backends:
//
//   - Layout: the memory order of its axes (see package layout).
//   - Alignment and AlignedIndex: the element at AlignedIndex (usually the first point of the compute
//     domain, after the halo) is aligned to Alignment bytes.
//   - Device: where the memory of the array is meant to live. Stencils of GPU backends only accept GPU arrays
//     and vice versa.
//
// Arrays are created either with the allocators Empty, Zeros, Ones and Full, that follow the layout
// Info of a backend, or by wrapping existing Go data with FromFlat. Transpose returns views
// sharing the same memory.
//
// The lifetime of an Array is owned by the caller; Arrays are not safe for concurrent writes.
package storage

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/pkg/core/layout"
	"github.com/gomlx/gostencil/pkg/core/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// ErrInvalidShape is returned (wrapped) for non-positive dimensions or mismatched ranks.
var ErrInvalidShape = errors.New("invalid shape")

// Array is a strided multidimensional array with layout metadata.
type Array struct {
	dtype        dtypes.DType
	shape        []int
	strides      []int // in elements
	offset       int   // flat position of index (0, ..., 0)
	layout       []int
	alignment    int
	alignedIndex []int
	device       layout.Device

	// flat holds the actual data, a slice of dtype.GoType(). It may be shared among views.
	flat any
}

// DType of the elements of the array.
func (a *Array) DType() dtypes.DType { return a.dtype }

// Shape returns the dimensions of the array. The returned slice must not be modified.
func (a *Array) Shape() []int { return a.shape }

// Rank returns the number of axes.
func (a *Array) Rank() int { return len(a.shape) }

// Size returns the number of logical elements.
func (a *Array) Size() int {
	size := 1
	for _, dim := range a.shape {
		size *= dim
	}
	return size
}

// Strides in elements of each axis. It implements layout.Strided.
func (a *Array) Strides() []int { return a.strides }

// Layout returns the memory order of the axes.
func (a *Array) Layout() []int { return a.layout }

// Alignment in bytes of the element at AlignedIndex.
func (a *Array) Alignment() int { return a.alignment }

// AlignedIndex returns the index of the element that is aligned.
func (a *Array) AlignedIndex() []int { return a.alignedIndex }

// Device where the array lives.
func (a *Array) Device() layout.Device { return a.device }

// Flat returns the underlying flat slice (shared with all views of the array), including padding.
func (a *Array) Flat() any { return a.flat }

// String implements fmt.Stringer.
func (a *Array) String() string {
	return fmt.Sprintf("Array(%s)%v[strides=%v, device=%s]", a.dtype, a.shape, a.strides, a.device)
}

var _ layout.Strided = (*Array)(nil)

// FlatIndex returns the position in the flat data of the element at the given index.
func (a *Array) FlatIndex(index ...int) int {
	pos := a.offset
	for axis, idx := range index {
		pos += idx * a.strides[axis]
	}
	return pos
}

// checkIndex returns an error if index is out of bounds.
func (a *Array) checkIndex(index []int) error {
	if len(index) != len(a.shape) {
		return errors.Wrapf(ErrInvalidShape, "index %v has rank %d, array has rank %d", index, len(index), len(a.shape))
	}
	for axis, idx := range index {
		if idx < 0 || idx >= a.shape[axis] {
			return errors.Errorf("index %v out of bounds for shape %v", index, a.shape)
		}
	}
	return nil
}

// At returns the element at the given index converted to float64 (booleans are 0 or 1).
// It panics if the index is out of bounds, like slice indexing.
func (a *Array) At(index ...int) float64 {
	if err := a.checkIndex(index); err != nil {
		panic(err)
	}
	return a.AtFlat(a.FlatIndex(index...))
}

// Set converts the value to the array dtype and stores it at the given index.
// It panics if the index is out of bounds.
func (a *Array) Set(value float64, index ...int) {
	if err := a.checkIndex(index); err != nil {
		panic(err)
	}
	a.SetFlat(a.FlatIndex(index...), value)
}

// AtFlat returns the element at the given flat position converted to float64.
func (a *Array) AtFlat(pos int) float64 {
	switch flat := a.flat.(type) {
	case []float64:
		return flat[pos]
	case []float32:
		return float64(flat[pos])
	case []float16.Float16:
		return float64(flat[pos].Float32())
	case []int64:
		return float64(flat[pos])
	case []int32:
		return float64(flat[pos])
	case []bool:
		if flat[pos] {
			return 1
		}
		return 0
	}
	panic(errors.Errorf("storage.Array: unsupported flat data type %T", a.flat))
}

// SetFlat converts value to the array dtype and stores it at the given flat position.
func (a *Array) SetFlat(pos int, value float64) {
	switch flat := a.flat.(type) {
	case []float64:
		flat[pos] = value
	case []float32:
		flat[pos] = float32(value)
	case []float16.Float16:
		flat[pos] = float16.Fromfloat32(float32(value))
	case []int64:
		flat[pos] = int64(value)
	case []int32:
		flat[pos] = int32(value)
	case []bool:
		flat[pos] = value != 0
	default:
		panic(errors.Errorf("storage.Array: unsupported flat data type %T", a.flat))
	}
}

// Transpose returns a view of the array with the axes permuted: axis i of the view is axis axes[i]
// of the original. The view shares the memory of the original array.
func (a *Array) Transpose(axes ...int) (*Array, error) {
	if err := layout.Validate(axes); err != nil || len(axes) != a.Rank() {
		return nil, errors.Wrapf(ErrInvalidShape, "Transpose(%v) invalid permutation for rank %d", axes, a.Rank())
	}
	view := *a
	view.shape = make([]int, len(axes))
	view.strides = make([]int, len(axes))
	view.layout = make([]int, len(axes))
	view.alignedIndex = make([]int, len(axes))
	for i, axis := range axes {
		view.shape[i] = a.shape[axis]
		view.strides[i] = a.strides[axis]
		view.layout[i] = a.layout[axis]
		view.alignedIndex[i] = a.alignedIndex[axis]
	}
	return &view, nil
}

// IsOptimalFor returns whether the array layout is considered optimal by the given backend storage info,
// when used with the given axes.
func (a *Array) IsOptimalFor(info layout.Info, axes string) bool {
	if info.IsOptimalLayout == nil {
		return true
	}
	return info.IsOptimalLayout(a, axes)
}

// ForEachIndex calls fn for every index of the given shape in row-major order.
// The index slice is reused between calls; fn must not keep it.
func ForEachIndex(shape []int, fn func(index []int)) {
	for _, dim := range shape {
		if dim <= 0 {
			return
		}
	}
	index := make([]int, len(shape))
	for {
		fn(index)
		axis := len(shape) - 1
		for ; axis >= 0; axis-- {
			index[axis]++
			if index[axis] < shape[axis] {
				break
			}
			index[axis] = 0
		}
		if axis < 0 {
			return
		}
	}
}

// Equal returns whether both arrays have the same shape and the same values (compared as float64).
func Equal(a, b *Array) bool {
	if !slices.Equal(a.shape, b.shape) {
		return false
	}
	equal := true
	ForEachIndex(a.shape, func(index []int) {
		if equal && a.AtFlat(a.FlatIndex(index...)) != b.AtFlat(b.FlatIndex(index...)) {
			equal = false
		}
	})
	return equal
}

// CopyFrom copies the values of src (same shape) into a, converting dtypes if needed.
func (a *Array) CopyFrom(src *Array) error {
	if !slices.Equal(a.shape, src.shape) {
		return errors.Wrapf(ErrInvalidShape, "CopyFrom: shape %v != %v", src.shape, a.shape)
	}
	ForEachIndex(a.shape, func(index []int) {
		a.SetFlat(a.FlatIndex(index...), src.AtFlat(src.FlatIndex(index...)))
	})
	return nil
}

// DefaultAxes returns the axes string used when none is given: "I", "IJ", "IJK",
// followed by data axes "D" for higher ranks.
func DefaultAxes(rank int) string {
	if rank <= 3 {
		return "IJK"[:rank]
	}
	return "IJK" + strings.Repeat("D", rank-3)
}

// makeFlat allocates a flat slice of the Go type of dtype.
func makeFlat(dtype dtypes.DType, size int) (any, error) {
	if !shapes.IsSupportedDType(dtype) {
		return nil, errors.Errorf("dtype %s is not supported by storage", dtype)
	}
	return reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), size, size).Interface(), nil
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package storage

import (
	"reflect"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/pkg/core/layout"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// Order of dense data wrapped with FromFlat.
type Order int

const (
	// OrderC is the row-major order: the last axis is the fastest.
	OrderC Order = iota
	// OrderF is the column-major (Fortran) order: the first axis is the fastest.
	OrderF
)

// String implements fmt.Stringer.
func (o Order) String() string {
	if o == OrderF {
		return "F"
	}
	return "C"
}

// allocConfig holds the optional parameters of the allocators.
type allocConfig struct {
	axes string
}

// Option configures an allocation.
type Option func(*allocConfig)

// WithAxes sets the axes string (e.g. "IJ", "IJK") used to query the backend layout map.
// The default is DefaultAxes(len(shape)).
func WithAxes(axes string) Option {
	return func(c *allocConfig) { c.axes = axes }
}

// Empty allocates an array following the storage info of a backend: its layout map, alignment and device.
// The contents are zero, since Go memory is always initialized.
//
// alignedIndex is the index of the element that is aligned to info.Alignment bytes; it may be nil, meaning all zeros.
func Empty(info layout.Info, shape []int, dtype dtypes.DType, alignedIndex []int, options ...Option) (*Array, error) {
	cfg := allocConfig{axes: DefaultAxes(len(shape))}
	for _, opt := range options {
		opt(&cfg)
	}
	if len(cfg.axes) != len(shape) {
		return nil, errors.Wrapf(ErrInvalidShape, "axes %q don't match shape %v", cfg.axes, shape)
	}
	for _, dim := range shape {
		if dim <= 0 {
			return nil, errors.Wrapf(ErrInvalidShape, "shape %v has non-positive dimension", shape)
		}
	}
	if alignedIndex == nil {
		alignedIndex = make([]int, len(shape))
	}
	if len(alignedIndex) != len(shape) {
		return nil, errors.Wrapf(ErrInvalidShape, "aligned_index %v doesn't match shape %v", alignedIndex, shape)
	}
	for axis, idx := range alignedIndex {
		if idx < 0 || idx >= shape[axis] {
			return nil, errors.Errorf("aligned_index %v out of bounds for shape %v", alignedIndex, shape)
		}
	}

	mapFn := info.LayoutMap
	if mapFn == nil {
		mapFn = layout.COrder
	}
	layoutMap := mapFn(cfg.axes)
	if err := layout.Validate(layoutMap); err != nil || len(layoutMap) != len(shape) {
		return nil, errors.Errorf("backend layout map %v invalid for axes %q", layoutMap, cfg.axes)
	}

	alignment := max(info.Alignment, 1)
	alignElems := 1
	if itemSize := dtype.Size(); alignment > itemSize && itemSize > 0 {
		alignElems = alignment / itemSize
	}

	// Pad the fastest axis to a multiple of alignElems, so every "row" of the fastest
	// axis starts at the same alignment offset.
	padded := slices.Clone(shape)
	if len(shape) > 0 && alignElems > 1 {
		fastest := slices.Index(layoutMap, len(shape)-1)
		padded[fastest] = (padded[fastest] + alignElems - 1) / alignElems * alignElems
	}
	size := 1
	for _, dim := range padded {
		size *= dim
	}
	flat, err := makeFlat(dtype, size+alignElems)
	if err != nil {
		return nil, err
	}
	a := &Array{
		dtype:        dtype,
		shape:        slices.Clone(shape),
		strides:      layout.Strides(padded, layoutMap),
		layout:       layoutMap,
		alignment:    alignment,
		alignedIndex: slices.Clone(alignedIndex),
		device:       info.Device,
		flat:         flat,
	}
	if alignElems > 1 {
		a.offset = alignedOffset(flat, a.FlatIndex(alignedIndex...), alignElems, alignment)
	}
	return a, nil
}

// alignedOffset finds the base offset in [0, alignElems) that makes the element at pos aligned.
func alignedOffset(flat any, pos, alignElems, alignment int) int {
	flatV := reflect.ValueOf(flat)
	for shift := 0; shift < alignElems; shift++ {
		if flatV.Index(pos+shift).UnsafeAddr()%uintptr(alignment) == 0 {
			return shift
		}
	}
	// Go allocations are at least itemSize aligned, so this is only reached if alignment
	// is not a multiple of the item size.
	return 0
}

// Zeros is the same as Empty: Go memory is zero initialized.
func Zeros(info layout.Info, shape []int, dtype dtypes.DType, alignedIndex []int, options ...Option) (*Array, error) {
	return Empty(info, shape, dtype, alignedIndex, options...)
}

// Ones allocates an array like Empty, filled with ones.
func Ones(info layout.Info, shape []int, dtype dtypes.DType, alignedIndex []int, options ...Option) (*Array, error) {
	return Full(info, shape, dtype, 1, alignedIndex, options...)
}

// Full allocates an array like Empty, filled with the given value.
func Full(info layout.Info, shape []int, dtype dtypes.DType, value float64, alignedIndex []int, options ...Option) (*Array, error) {
	a, err := Empty(info, shape, dtype, alignedIndex, options...)
	if err != nil {
		return nil, err
	}
	switch flat := a.flat.(type) {
	case []float64:
		fill(flat, value)
	case []float32:
		fill(flat, float32(value))
	case []int64:
		fill(flat, int64(value))
	case []int32:
		fill(flat, int32(value))
	case []float16.Float16:
		v := float16.Fromfloat32(float32(value))
		for i := range flat {
			flat[i] = v
		}
	case []bool:
		for i := range flat {
			flat[i] = value != 0
		}
	}
	return a, nil
}

func fill[T constraints.Integer | constraints.Float](flat []T, value T) {
	for i := range flat {
		flat[i] = value
	}
}

// MustZeros is like Zeros, but panics on error.
func MustZeros(info layout.Info, shape []int, dtype dtypes.DType, alignedIndex []int, options ...Option) *Array {
	a, err := Zeros(info, shape, dtype, alignedIndex, options...)
	if err != nil {
		exceptions.Panicf("storage.MustZeros: %+v", err)
	}
	return a
}

// FromFlat wraps dense Go data in an array of the given shape and order, without copying it.
// The array has no alignment and no preferred layout other than the one of its order.
func FromFlat[T dtypes.Supported](device layout.Device, order Order, data []T, shape ...int) (*Array, error) {
	dtype := dtypes.FromGenericsType[T]()
	if _, err := makeFlat(dtype, 0); err != nil {
		return nil, err
	}
	if goType := reflect.TypeOf(data).Elem(); goType != dtype.GoType() {
		return nil, errors.Errorf("FromFlat: Go type %s doesn't match storage type %s of %s", goType, dtype.GoType(), dtype)
	}
	size := 1
	for _, dim := range shape {
		if dim <= 0 {
			return nil, errors.Wrapf(ErrInvalidShape, "shape %v has non-positive dimension", shape)
		}
		size *= dim
	}
	if size != len(data) {
		return nil, errors.Wrapf(ErrInvalidShape, "data has %d elements, shape %v requires %d", len(data), shape, size)
	}
	layoutMap := layout.COrder(DefaultAxes(len(shape)))
	if order == OrderF {
		layoutMap = layout.FortranOrder(DefaultAxes(len(shape)))
	}
	return &Array{
		dtype:        dtype,
		shape:        slices.Clone(shape),
		strides:      layout.Strides(shape, layoutMap),
		layout:       layoutMap,
		alignment:    1,
		alignedIndex: make([]int, len(shape)),
		device:       device,
		flat:         data,
	}, nil
}

// Like allocates a dense zero array with the same shape, dtype and device of a, in the given order.
func Like(a *Array, order Order) *Array {
	flat, err := makeFlat(a.dtype, a.Size())
	if err != nil {
		panic(err)
	}
	layoutMap := layout.COrder(DefaultAxes(a.Rank()))
	if order == OrderF {
		layoutMap = layout.FortranOrder(DefaultAxes(a.Rank()))
	}
	return &Array{
		dtype:        a.dtype,
		shape:        slices.Clone(a.shape),
		strides:      layout.Strides(a.shape, layoutMap),
		layout:       layoutMap,
		alignment:    1,
		alignedIndex: make([]int, a.Rank()),
		device:       a.device,
		flat:         flat,
	}
}

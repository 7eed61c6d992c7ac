// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package stencil

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/backends"
	_default "github.com/gomlx/gostencil/backends/default"
	"github.com/gomlx/gostencil/pkg/core/layout"
	"github.com/gomlx/gostencil/pkg/core/storage"
)

func defaultRegistry() *backends.Registry { return _default.Registry() }

// StorageInfo returns the storage contract of the named backend (the default if empty).
func StorageInfo(backendName string) (layout.Info, error) {
	b, err := _default.Lookup(backendName)
	if err != nil {
		return layout.Info{}, err
	}
	return b.Descriptor().StorageInfo(), nil
}

// Empty allocates an array with the layout, alignment and device of the named backend.
// See storage.Empty.
func Empty(backendName string, shape []int, dtype dtypes.DType, alignedIndex []int, options ...storage.Option) (*storage.Array, error) {
	info, err := StorageInfo(backendName)
	if err != nil {
		return nil, err
	}
	return storage.Empty(info, shape, dtype, alignedIndex, options...)
}

// Zeros is like Empty, with all elements set to 0.
func Zeros(backendName string, shape []int, dtype dtypes.DType, alignedIndex []int, options ...storage.Option) (*storage.Array, error) {
	info, err := StorageInfo(backendName)
	if err != nil {
		return nil, err
	}
	return storage.Zeros(info, shape, dtype, alignedIndex, options...)
}

// Ones is like Empty, with all elements set to 1.
func Ones(backendName string, shape []int, dtype dtypes.DType, alignedIndex []int, options ...storage.Option) (*storage.Array, error) {
	info, err := StorageInfo(backendName)
	if err != nil {
		return nil, err
	}
	return storage.Ones(info, shape, dtype, alignedIndex, options...)
}

// Full is like Empty, with all elements set to value.
func Full(backendName string, shape []int, dtype dtypes.DType, value float64, alignedIndex []int, options ...storage.Option) (*storage.Array, error) {
	info, err := StorageInfo(backendName)
	if err != nil {
		return nil, err
	}
	return storage.Full(info, shape, dtype, value, alignedIndex, options...)
}

// MustZeros is like Zeros, but panics on error.
func MustZeros(backendName string, shape []int, dtype dtypes.DType, alignedIndex []int, options ...storage.Option) *storage.Array {
	a, err := Zeros(backendName, shape, dtype, alignedIndex, options...)
	if err != nil {
		exceptions.Panicf("stencil.MustZeros(%q): %+v", backendName, err)
	}
	return a
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// FieldType is the declared contract of a field parameter: its ordered dimensions and element type.
//
// It is immutable once created by MakeFieldType: the Dims slice is owned by the FieldType and
// should not be changed.
type FieldType struct {
	Dims  Dimensions
	DType dtypes.DType
}

// MakeFieldType returns a FieldType with a copy of the given dimensions.
// It returns an error if a dimension is repeated or if the dtype is invalid.
func MakeFieldType(dtype dtypes.DType, dims ...Dimension) (FieldType, error) {
	if dtype == dtypes.InvalidDType {
		return FieldType{}, errors.New("MakeFieldType: invalid dtype")
	}
	seen := make(map[string]bool, len(dims))
	for _, d := range dims {
		if d.Name == "" {
			return FieldType{}, errors.New("MakeFieldType: dimension with empty name")
		}
		if seen[d.Name] {
			return FieldType{}, errors.Errorf("MakeFieldType: dimension %q repeated", d.Name)
		}
		seen[d.Name] = true
	}
	return FieldType{Dims: slices.Clone(dims), DType: dtype}, nil
}

// Rank returns the number of dimensions of the field.
func (ft FieldType) Rank() int { return len(ft.Dims) }

// Axes returns the axes string of the field, e.g. "IJK" or "IJ".
func (ft FieldType) Axes() string {
	var sb strings.Builder
	for _, d := range ft.Dims {
		sb.WriteString(d.Letter())
	}
	return sb.String()
}

// HasDim returns whether the field is defined over the dimension with the given name.
func (ft FieldType) HasDim(name string) bool {
	return ft.Dims.Index(name) >= 0
}

// Equal returns whether both field types have the same dimensions, in the same order, and dtype.
func (ft FieldType) Equal(other FieldType) bool {
	return ft.DType == other.DType && slices.Equal(ft.Dims, other.Dims)
}

// Clone returns a deep copy of the FieldType.
func (ft FieldType) Clone() FieldType {
	return FieldType{Dims: slices.Clone(ft.Dims), DType: ft.DType}
}

// String implements fmt.Stringer. E.g.: "Field[[I, J, K], Float64]".
func (ft FieldType) String() string {
	return fmt.Sprintf("Field[[%s], %s]", strings.Join(ft.Dims.Names(), ", "), ft.DType)
}

// Shape resolves the field type to a concrete shape using the given bindings.
// It fails if any of the field dimensions is not bound.
func (ft FieldType) Shape(bindings AxisBindings) ([]int, error) {
	shape := make([]int, len(ft.Dims))
	for i, d := range ft.Dims {
		size, found := bindings[d.Name]
		if !found {
			return nil, errors.Errorf("no size bound to dimension %q of %s", d.Name, ft)
		}
		shape[i] = size
	}
	return shape, nil
}

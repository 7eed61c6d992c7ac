// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines the identity of the axes (Dimension) a stencil iterates over, and the
// declared contract (FieldType) of the array-valued parameters of a stencil.
//
// ## Glossary
//
//   - Dimension: a named axis with a classification (horizontal, vertical or unspecified).
//     Two dimensions are the same if both name and kind match.
//   - Axes: the string built from the first letter of each dimension of a field, e.g. "IJK".
//     It's the form used by layout maps (see package layout).
//   - FieldType: the ordered dimensions and element DType of a field parameter.
//     The order of the dimensions expresses the intended physical axis order.
//   - AxisBindings: concrete sizes per dimension name, used to resolve a FieldType into a shape.
package shapes

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// DimensionKind classifies a Dimension.
type DimensionKind int

const (
	KindUnspecified DimensionKind = iota
	KindHorizontal
	KindVertical
)

// String implements fmt.Stringer.
func (k DimensionKind) String() string {
	switch k {
	case KindUnspecified:
		return "unspecified"
	case KindHorizontal:
		return "horizontal"
	case KindVertical:
		return "vertical"
	}
	return fmt.Sprintf("DimensionKind(%d)", int(k))
}

// ParseDimensionKind is the inverse of DimensionKind.String. It's case-insensitive.
func ParseDimensionKind(s string) (DimensionKind, error) {
	switch strings.ToLower(s) {
	case "", "unspecified":
		return KindUnspecified, nil
	case "horizontal":
		return KindHorizontal, nil
	case "vertical":
		return KindVertical, nil
	}
	return KindUnspecified, errors.Errorf("unknown dimension kind %q", s)
}

// Dimension is a named and classified axis.
//
// It is a comparable value: it can be used as a map key, and == compares name and kind.
// Dimensions are created once (see I, J, K) and shared by value, never mutated.
type Dimension struct {
	Name string
	Kind DimensionKind
}

// NewDimension returns a Dimension with the given name and kind.
func NewDimension(name string, kind DimensionKind) Dimension {
	return Dimension{Name: name, Kind: kind}
}

// Predefined dimensions of the cartesian grid.
var (
	I = Dimension{Name: "I", Kind: KindHorizontal}
	J = Dimension{Name: "J", Kind: KindHorizontal}
	K = Dimension{Name: "K", Kind: KindVertical}
)

// IJK is the default (and most common) set of dimensions of a 3D field.
var IJK = Dimensions{I, J, K}

// IsVertical returns whether the dimension is classified as vertical.
func (d Dimension) IsVertical() bool { return d.Kind == KindVertical }

// IsHorizontal returns whether the dimension is classified as horizontal.
func (d Dimension) IsHorizontal() bool { return d.Kind == KindHorizontal }

// Letter returns the axis letter used in an axes string: the first character of the name, upper-cased.
func (d Dimension) Letter() string {
	if d.Name == "" {
		return "?"
	}
	return strings.ToUpper(d.Name[:1])
}

// String implements fmt.Stringer.
func (d Dimension) String() string {
	if d.Kind == KindUnspecified {
		return d.Name
	}
	return fmt.Sprintf("%s(%s)", d.Name, d.Kind)
}

// Dimensions is an ordered list of known dimensions, looked up by name.
type Dimensions []Dimension

// ByName returns the dimension with the given name.
func (ds Dimensions) ByName(name string) (Dimension, bool) {
	for _, d := range ds {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// Index returns the position of the dimension with the given name, or -1.
func (ds Dimensions) Index(name string) int {
	for i, d := range ds {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// Vertical returns the first vertical dimension, if any.
func (ds Dimensions) Vertical() (Dimension, bool) {
	for _, d := range ds {
		if d.IsVertical() {
			return d, true
		}
	}
	return Dimension{}, false
}

// Names returns the names of the dimensions, in order.
func (ds Dimensions) Names() []string {
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.Name
	}
	return names
}

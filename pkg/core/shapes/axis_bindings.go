// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// AxisBindings gives the size of each named dimension, e.g. the compute domain {"I": 20, "J": 10, "K": 5}.
//
// FieldType.Shape resolves a field type to the shape of its arrays with it, and ExtractBindings
// goes the other way.
type AxisBindings map[string]int

// Key is the canonical form "I=20,J=10,K=5", sorted by dimension name. Empty bindings give "".
func (ab AxisBindings) Key() string {
	var sb strings.Builder
	for i, name := range slices.Sorted(maps.Keys(ab)) {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(strconv.Itoa(ab[name]))
	}
	return sb.String()
}

// Clone returns a copy, nil for nil.
func (ab AxisBindings) Clone() AxisBindings {
	return maps.Clone(ab)
}

// Merge adds the sizes of other into ab.
// A dimension bound to different sizes is an error, and in that case ab is left untouched.
func (ab AxisBindings) Merge(other AxisBindings) error {
	var conflicts []string
	for _, name := range slices.Sorted(maps.Keys(other)) {
		if size, found := ab[name]; found && size != other[name] {
			conflicts = append(conflicts, name+": "+strconv.Itoa(size)+" vs "+strconv.Itoa(other[name]))
		}
	}
	if len(conflicts) > 0 {
		return errors.Errorf("conflicting dimension sizes (%s)", strings.Join(conflicts, "; "))
	}
	maps.Copy(ab, other)
	return nil
}

// ExtractBindings returns the size of each dimension of ft in the given array shape.
func ExtractBindings(ft FieldType, shape []int) (AxisBindings, error) {
	if len(shape) != ft.Rank() {
		return nil, errors.Errorf("shape %v doesn't match %s: rank %d, expected %d", shape, ft, len(shape), ft.Rank())
	}
	bindings := make(AxisBindings, len(shape))
	for axis, dim := range ft.Dims {
		bindings[dim.Name] = shape[axis]
	}
	return bindings, nil
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ast

import "github.com/gomlx/gopjrt/dtypes"

// Short-hand constructors, convenient to build definitions in Go.

// NewField returns a field parameter over the given dimension names.
func NewField(name string, dtype dtypes.DType, dims ...string) *Param {
	return &Param{Name: name, Kind: FieldParam, DType: dtype, Dims: dims}
}

// NewScalar returns a scalar parameter.
func NewScalar(name string, dtype dtypes.DType) *Param {
	return &Param{Name: name, Kind: ScalarParam, DType: dtype}
}

// Ref returns an access to field with positional offsets (possibly none).
func Ref(field string, offsets ...int) *FieldRef {
	return &FieldRef{Field: field, Positional: offsets}
}

// At returns an access to field with named offsets.
func At(field string, offsets map[string]int) *FieldRef {
	return &FieldRef{Field: field, Offsets: offsets}
}

// Lit returns an untyped numeric literal.
func Lit(value float64) *Literal { return &Literal{Value: value} }

// Bool returns a boolean literal.
func Bool(value bool) *Literal { return &Literal{Value: boolValue(value), DType: dtypes.Bool} }

// Ident returns a reference to a scalar parameter, constant or field.
func Ident(name string) *Name { return &Name{Ident: name} }

// Bin returns the binary expression x op y.
func Bin(op BinaryOp, x, y Expr) *Binary { return &Binary{Op: op, X: x, Y: y} }

// Neg returns -x.
func Neg(x Expr) *Unary { return &Unary{Op: OpNeg, X: x} }

// Set returns the assignment target = value.
func Set(target *FieldRef, value Expr) *Assign { return &Assign{Target: target, Value: value} }

// Block returns an interval block.
func Block(interval Interval, body ...*Assign) *IntervalBlock {
	return &IntervalBlock{Interval: interval, Body: body}
}

// Compute returns a computation with the given order and interval blocks.
func Compute(order IterationOrder, blocks ...*IntervalBlock) *Computation {
	return &Computation{Order: order, Intervals: blocks}
}

// Levels returns the interval [start+startOffset, end+endOffset) with the given markers.
func Levels(start LevelMarker, startOffset int, end LevelMarker, endOffset int) Interval {
	return Interval{
		Start: AxisBound{Level: start, Offset: startOffset},
		End:   AxisBound{Level: end, Offset: endOffset},
	}
}

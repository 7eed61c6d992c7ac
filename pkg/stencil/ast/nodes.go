// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ast defines the Definition of a stencil as it comes out of a front-end (or is built
// directly in Go), before the transformation passes and the lowering to IR.
//
// A Definition is a tree of plain exported structs: it can be deep-copied with Definition.Clone,
// printed canonically with Print, and fingerprinted with Fingerprint. Passes (see package passes)
// take a Definition and return a transformed one, they never mutate a shared original.
package ast

import (
	"fmt"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/pkg/core/shapes"
)

// Pos is a position in the source text, if the definition came from one.
type Pos struct {
	Filename     string
	Line, Column int
}

// String implements fmt.Stringer.
func (p Pos) String() string {
	if p.Line == 0 {
		return "<go>"
	}
	if p.Filename == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// Definition is the user-authored stencil computation.
type Definition struct {
	// Name of the stencil, used to name the generated artifacts.
	Name string

	// Dimensions known to the definition. If empty, shapes.IJK is assumed.
	Dimensions shapes.Dimensions

	// Params are the arguments of the stencil, in order.
	Params []*Param

	// Constants are compile-time values (a.k.a. externals), referenced by name in expressions.
	Constants map[string]float64

	// Computations are executed in order.
	Computations []*Computation

	// Source text the definition was parsed from, if any.
	Source string

	Pos Pos
}

// ParamKind distinguishes fields from scalar parameters.
type ParamKind int

const (
	FieldParam ParamKind = iota
	ScalarParam
)

// String implements fmt.Stringer.
func (k ParamKind) String() string {
	if k == ScalarParam {
		return "scalar"
	}
	return "field"
}

// Param is a parameter of the stencil.
type Param struct {
	Name  string
	Kind  ParamKind
	DType dtypes.DType

	// Dims are the dimension names of a field parameter, in order. Empty for scalars.
	Dims []string

	Pos Pos
}

// IterationOrder of the vertical loop of a computation.
type IterationOrder int

const (
	Parallel IterationOrder = iota
	Forward
	Backward
)

// String implements fmt.Stringer.
func (o IterationOrder) String() string {
	switch o {
	case Parallel:
		return "PARALLEL"
	case Forward:
		return "FORWARD"
	case Backward:
		return "BACKWARD"
	}
	return fmt.Sprintf("IterationOrder(%d)", int(o))
}

// LevelMarker is the reference of a vertical bound: the first or one past the last level.
type LevelMarker int

const (
	LevelStart LevelMarker = iota
	LevelEnd
)

// AxisBound is a vertical level relative to the start or the end of the vertical domain.
type AxisBound struct {
	Level  LevelMarker
	Offset int
}

// String implements fmt.Stringer.
func (b AxisBound) String() string {
	name := "start"
	if b.Level == LevelEnd {
		name = "end"
	}
	return fmt.Sprintf("%s%+d", name, b.Offset)
}

// Interval of vertical levels [Start, End).
type Interval struct {
	Start, End AxisBound
}

// FullInterval covers the whole vertical domain.
var FullInterval = Interval{Start: AxisBound{Level: LevelStart}, End: AxisBound{Level: LevelEnd}}

// String implements fmt.Stringer.
func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start, iv.End)
}

// Computation is a vertical loop with a given iteration order, split in intervals.
type Computation struct {
	Order     IterationOrder
	Intervals []*IntervalBlock
	Pos       Pos
}

// IntervalBlock is a list of statements applied to an interval of vertical levels.
type IntervalBlock struct {
	Interval Interval
	Body     []*Assign
	Pos      Pos
}

// Assign stores the value of an expression in a field, either a parameter or a temporary.
type Assign struct {
	Target *FieldRef
	Value  Expr
	Pos    Pos
}

// Expr is implemented by all expression nodes.
type Expr interface {
	exprNode()
}

// Literal is a constant value. Booleans are represented as 0 or 1 with DType Bool.
// DType InvalidDType means the literal takes the type of its context.
type Literal struct {
	Value float64
	DType dtypes.DType
}

// Name references a scalar parameter, a constant or (before dimension resolution) a field.
type Name struct {
	Ident string
	Pos   Pos
}

// FieldRef accesses a field at an offset of the current point.
//
// Offsets can be given by position (Positional, in the order of the field dimensions) or
// by dimension name (Offsets). Dimension resolution converts the former into the latter, and
// offset normalization fills in zero offsets for every dimension of the field.
type FieldRef struct {
	Field      string
	Positional []int
	Offsets    map[string]int
	Pos        Pos
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
)

// Unary applies an operator to one operand.
type Unary struct {
	Op UnaryOp
	X  Expr
}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

// Binary applies an operator to two operands.
type Binary struct {
	Op   BinaryOp
	X, Y Expr
}

// Ternary selects Then if Cond is true (non-zero), Else otherwise.
type Ternary struct {
	Cond, Then, Else Expr
}

// Call calls one of the Builtins.
type Call struct {
	Func string
	Args []Expr
	Pos  Pos
}

func (*Literal) exprNode()  {}
func (*Name) exprNode()     {}
func (*FieldRef) exprNode() {}
func (*Unary) exprNode()    {}
func (*Binary) exprNode()   {}
func (*Ternary) exprNode()  {}
func (*Call) exprNode()     {}

// KnownDimensions returns the dimensions of the definition, defaulting to shapes.IJK.
func (def *Definition) KnownDimensions() shapes.Dimensions {
	if len(def.Dimensions) == 0 {
		return shapes.IJK
	}
	return def.Dimensions
}

// Param returns the parameter with the given name, or nil.
func (def *Definition) Param(name string) *Param {
	for _, p := range def.Params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// ForEachAssign calls fn for every assignment of the definition, in program order.
// It stops at the first error.
func (def *Definition) ForEachAssign(fn func(*Assign) error) error {
	for _, comp := range def.Computations {
		for _, block := range comp.Intervals {
			for _, stmt := range block.Body {
				if err := fn(stmt); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Temporaries returns the names of assigned fields that are not parameters, in order of first assignment.
func (def *Definition) Temporaries() []string {
	var temps []string
	seen := make(map[string]bool)
	_ = def.ForEachAssign(func(stmt *Assign) error {
		name := stmt.Target.Field
		if def.Param(name) == nil && !seen[name] {
			seen[name] = true
			temps = append(temps, name)
		}
		return nil
	})
	return temps
}

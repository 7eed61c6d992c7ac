// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ir defines the backend independent representation of a stencil, produced by Lower
// from a definition after the transformation passes.
//
// An IR Stencil is fully resolved: every name refers to a parameter or a temporary, every field
// access carries one offset per dimension of its field, and the extents of the accesses to each
// field are known. Once handed to a backend it must not be modified.
package ir

import (
	"fmt"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/pkg/core/shapes"
	"github.com/gomlx/gostencil/pkg/stencil/ast"
)

// Intent of a field parameter: whether the stencil reads it, writes it, or both.
type Intent int

const (
	In Intent = iota
	Out
	InOut
)

// String implements fmt.Stringer.
func (i Intent) String() string {
	switch i {
	case In:
		return "in"
	case Out:
		return "out"
	case InOut:
		return "inout"
	}
	return fmt.Sprintf("Intent(%d)", int(i))
}

// Param is a parameter of the stencil: a field or a scalar.
type Param struct {
	Name  string
	Kind  ast.ParamKind
	DType dtypes.DType

	// Type of a field parameter. Zero for scalars.
	Type shapes.FieldType

	// Intent of a field parameter.
	Intent Intent
}

// IsField returns whether the parameter is a field.
func (p *Param) IsField() bool { return p.Kind == ast.FieldParam }

// Temporary is a field local to the stencil, spanning all its dimensions.
type Temporary struct {
	Name string
	Type shapes.FieldType
}

// AxisExtent is the range of offsets used to access a field along one dimension.
type AxisExtent struct {
	Dim      string
	Min, Max int
}

// Extent of the accesses to a field, one entry per dimension of the field, in order.
type Extent []AxisExtent

// Halo returns the number of points needed before and after the domain along dim.
func (e Extent) Halo(dim string) (before, after int) {
	for _, ax := range e {
		if ax.Dim == dim {
			return max(0, -ax.Min), max(0, ax.Max)
		}
	}
	return 0, 0
}

// IsZero returns whether all accesses are at zero offset.
func (e Extent) IsZero() bool {
	for _, ax := range e {
		if ax.Min != 0 || ax.Max != 0 {
			return false
		}
	}
	return true
}

// VerticalLoop is one computation: a loop over the vertical levels with an iteration order.
type VerticalLoop struct {
	Order    ast.IterationOrder
	Sections []*Section
}

// Section is the body of a vertical loop for an interval of levels.
type Section struct {
	Interval ast.Interval
	Body     []*Assign
}

// Assign stores Value in the Target field at the current point.
type Assign struct {
	Target *FieldAccess
	Value  Expr
}

// Expr is implemented by all IR expressions.
type Expr interface {
	// DType of the value of the expression.
	DType() dtypes.DType
	irExpr()
}

// FieldAccess reads (or writes, as an assignment target) a field at an offset.
type FieldAccess struct {
	Field string

	// Offsets, one per dimension of the field, in the order of Dims.
	Offsets []int
	Dims    []string

	Temporary bool
	Type      dtypes.DType
}

// Offset returns the offset along dim, 0 if the field doesn't have the dimension.
func (f *FieldAccess) Offset(dim string) int {
	for i, d := range f.Dims {
		if d == dim {
			return f.Offsets[i]
		}
	}
	return 0
}

// IsCenter returns whether all offsets are zero.
func (f *FieldAccess) IsCenter() bool {
	for _, o := range f.Offsets {
		if o != 0 {
			return false
		}
	}
	return true
}

// ScalarRef reads a scalar parameter.
type ScalarRef struct {
	Name string
	Type dtypes.DType
}

// Literal is a constant.
type Literal struct {
	Value float64
	Type  dtypes.DType
}

// Unary operation.
type Unary struct {
	Op   ast.UnaryOp
	X    Expr
	Type dtypes.DType
}

// Binary operation.
type Binary struct {
	Op   ast.BinaryOp
	X, Y Expr
	Type dtypes.DType
}

// Ternary selects Then or Else according to Cond.
type Ternary struct {
	Cond, Then, Else Expr
	Type             dtypes.DType
}

// Call of one of the ast.Builtins.
type Call struct {
	Func string
	Args []Expr
	Type dtypes.DType
}

func (e *FieldAccess) DType() dtypes.DType { return e.Type }
func (e *ScalarRef) DType() dtypes.DType   { return e.Type }
func (e *Literal) DType() dtypes.DType     { return e.Type }
func (e *Unary) DType() dtypes.DType       { return e.Type }
func (e *Binary) DType() dtypes.DType      { return e.Type }
func (e *Ternary) DType() dtypes.DType     { return e.Type }
func (e *Call) DType() dtypes.DType        { return e.Type }

func (*FieldAccess) irExpr() {}
func (*ScalarRef) irExpr()   {}
func (*Literal) irExpr()     {}
func (*Unary) irExpr()       {}
func (*Binary) irExpr()      {}
func (*Ternary) irExpr()     {}
func (*Call) irExpr()        {}

// Stencil is the IR of a stencil.
type Stencil struct {
	Name        string
	Dimensions  shapes.Dimensions
	Params      []*Param
	Temporaries []*Temporary
	Loops       []*VerticalLoop

	// Extents of the accesses to each field (parameters and temporaries).
	Extents map[string]Extent

	// Fingerprint of the definition the IR was lowered from.
	Fingerprint string
}

// Param returns the parameter with the given name, or nil.
func (s *Stencil) Param(name string) *Param {
	for _, p := range s.Params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Temporary returns the temporary with the given name, or nil.
func (s *Stencil) Temporary(name string) *Temporary {
	for _, tmp := range s.Temporaries {
		if tmp.Name == name {
			return tmp
		}
	}
	return nil
}

// Fields returns the field parameters, in order.
func (s *Stencil) Fields() []*Param {
	var fields []*Param
	for _, p := range s.Params {
		if p.IsField() {
			fields = append(fields, p)
		}
	}
	return fields
}

// Scalars returns the scalar parameters, in order.
func (s *Stencil) Scalars() []*Param {
	var scalars []*Param
	for _, p := range s.Params {
		if !p.IsField() {
			scalars = append(scalars, p)
		}
	}
	return scalars
}

// ForEachAssign calls fn for every assignment, in program order.
func (s *Stencil) ForEachAssign(fn func(loop *VerticalLoop, section *Section, stmt *Assign)) {
	for _, loop := range s.Loops {
		for _, section := range loop.Sections {
			for _, stmt := range section.Body {
				fn(loop, section, stmt)
			}
		}
	}
}

// Walk traverses the expression in pre-order.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch n := e.(type) {
	case *Unary:
		Walk(n.X, fn)
	case *Binary:
		Walk(n.X, fn)
		Walk(n.Y, fn)
	case *Ternary:
		Walk(n.Cond, fn)
		Walk(n.Then, fn)
		Walk(n.Else, fn)
	case *Call:
		for _, arg := range n.Args {
			Walk(arg, fn)
		}
	}
}

// String returns a human readable listing of the stencil.
func (s *Stencil) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "stencil %s(", s.Name)
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if p.IsField() {
			fmt.Fprintf(&sb, "%s %s: %s", p.Intent, p.Name, p.Type)
		} else {
			fmt.Fprintf(&sb, "%s: %s", p.Name, p.DType)
		}
	}
	sb.WriteString(")\n")
	for _, tmp := range s.Temporaries {
		fmt.Fprintf(&sb, "  temporary %s: %s\n", tmp.Name, tmp.Type)
	}
	for _, loop := range s.Loops {
		fmt.Fprintf(&sb, "  vertical %s\n", loop.Order)
		for _, section := range loop.Sections {
			fmt.Fprintf(&sb, "    interval %s\n", section.Interval)
			for _, stmt := range section.Body {
				fmt.Fprintf(&sb, "      %s = %s\n", FormatExpr(stmt.Target), FormatExpr(stmt.Value))
			}
		}
	}
	return sb.String()
}

// FormatExpr returns a human readable form of the expression.
func FormatExpr(e Expr) string {
	switch n := e.(type) {
	case *FieldAccess:
		parts := make([]string, len(n.Offsets))
		for i, o := range n.Offsets {
			parts[i] = fmt.Sprintf("%d", o)
		}
		return fmt.Sprintf("%s[%s]", n.Field, strings.Join(parts, ", "))
	case *ScalarRef:
		return n.Name
	case *Literal:
		return ast.PrintExpr(&ast.Literal{Value: n.Value, DType: n.Type})
	case *Unary:
		return fmt.Sprintf("(%s %s)", n.Op, FormatExpr(n.X))
	case *Binary:
		return fmt.Sprintf("(%s %s %s)", FormatExpr(n.X), n.Op, FormatExpr(n.Y))
	case *Ternary:
		return fmt.Sprintf("(%s ? %s : %s)", FormatExpr(n.Cond), FormatExpr(n.Then), FormatExpr(n.Else))
	case *Call:
		args := make([]string, len(n.Args))
		for i, arg := range n.Args {
			args[i] = FormatExpr(arg)
		}
		return fmt.Sprintf("%s(%s)", n.Func, strings.Join(args, ", "))
	}
	return fmt.Sprintf("<unknown %T>", e)
}

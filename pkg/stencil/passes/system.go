// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/pkg/errors"
)

// fieldDims returns the dimension names of every field known to the definition: parameters with
// their declared dimensions and temporaries with all the dimensions of the definition.
func fieldDims(def *ast.Definition) map[string][]string {
	dims := make(map[string][]string)
	for _, p := range def.Params {
		if p.Kind == ast.FieldParam {
			dims[p.Name] = p.Dims
		}
	}
	full := def.KnownDimensions().Names()
	for _, tmp := range def.Temporaries() {
		dims[tmp] = full
	}
	return dims
}

// ResolveDimensions binds field accesses to the dimensions of their fields.
//
// Positional offsets are converted to named offsets, following the declared dimension order of
// the field, and names referring to fields become field accesses. It fails with an
// "unresolvable dimension" error if a field declares a dimension unknown to the definition, if
// an access has more positional offsets than the field has dimensions, or if it uses a named
// offset on a dimension the field doesn't have.
type ResolveDimensions struct{}

// Name implements Pass.
func (ResolveDimensions) Name() string { return "ResolveDimensions" }

// Apply implements Pass.
func (ResolveDimensions) Apply(def *ast.Definition) (*ast.Definition, error) {
	known := def.KnownDimensions()
	for _, p := range def.Params {
		if p.Kind != ast.FieldParam {
			continue
		}
		if len(p.Dims) == 0 {
			return nil, errors.Errorf("field %q at %s has no dimensions", p.Name, p.Pos)
		}
		for _, dim := range p.Dims {
			if _, found := known.ByName(dim); !found {
				return nil, errors.Errorf("unresolvable dimension %q of field %q at %s", dim, p.Name, p.Pos)
			}
		}
	}
	dims := fieldDims(def)
	resolve := func(ref *ast.FieldRef) error {
		fieldDims, found := dims[ref.Field]
		if !found {
			return errors.Errorf("%q at %s is not a field", ref.Field, ref.Pos)
		}
		if len(ref.Positional) > len(fieldDims) {
			return errors.Errorf("unresolvable dimension: %d offsets given to field %q at %s, which has %d dimensions",
				len(ref.Positional), ref.Field, ref.Pos, len(fieldDims))
		}
		for dim := range ref.Offsets {
			if !slices.Contains(fieldDims, dim) {
				return errors.Errorf("unresolvable dimension %q in access to field %q at %s", dim, ref.Field, ref.Pos)
			}
		}
		if len(ref.Positional) == 0 {
			return nil
		}
		if ref.Offsets == nil {
			ref.Offsets = make(map[string]int, len(ref.Positional))
		}
		for i, offset := range ref.Positional {
			dim := fieldDims[i]
			if _, dup := ref.Offsets[dim]; dup {
				return errors.Errorf("offset of dimension %q given twice in access to field %q at %s", dim, ref.Field, ref.Pos)
			}
			ref.Offsets[dim] = offset
		}
		ref.Positional = nil
		return nil
	}
	for _, comp := range def.Computations {
		for _, block := range comp.Intervals {
			for _, stmt := range block.Body {
				if err := resolve(stmt.Target); err != nil {
					return nil, err
				}
				value, err := ast.Rewrite(stmt.Value, func(e ast.Expr) (ast.Expr, error) {
					switch n := e.(type) {
					case *ast.Name:
						if _, isField := dims[n.Ident]; isField {
							return &ast.FieldRef{Field: n.Ident, Pos: n.Pos}, nil
						}
					case *ast.FieldRef:
						if err := resolve(n); err != nil {
							return nil, err
						}
					}
					return e, nil
				})
				if err != nil {
					return nil, err
				}
				stmt.Value = value
			}
		}
	}
	return def, nil
}

// FoldConstants replaces references to the constants of the definition by literals, and
// evaluates operators, conditionals and builtin calls whose operands are all literals.
//
// Scalar parameters shadow constants with the same name.
type FoldConstants struct{}

// Name implements Pass.
func (FoldConstants) Name() string { return "FoldConstants" }

// Apply implements Pass.
func (FoldConstants) Apply(def *ast.Definition) (*ast.Definition, error) {
	err := ast.RewriteDefinition(def, func(e ast.Expr) (ast.Expr, error) {
		switch n := e.(type) {
		case *ast.Name:
			if value, found := def.Constants[n.Ident]; found && def.Param(n.Ident) == nil {
				return ast.Lit(value), nil
			}
		case *ast.Unary:
			if x, ok := n.X.(*ast.Literal); ok {
				dtype := x.DType
				if n.Op == ast.OpNot {
					dtype = dtypes.Bool
				}
				return &ast.Literal{Value: n.Op.Apply(x.Value), DType: dtype}, nil
			}
		case *ast.Binary:
			x, okX := n.X.(*ast.Literal)
			y, okY := n.Y.(*ast.Literal)
			if okX && okY {
				return &ast.Literal{Value: n.Op.Apply(x.Value, y.Value), DType: foldedDType(n.Op, x, y)}, nil
			}
		case *ast.Ternary:
			if cond, ok := n.Cond.(*ast.Literal); ok {
				if cond.Value != 0 {
					return n.Then, nil
				}
				return n.Else, nil
			}
		case *ast.Call:
			builtin, found := ast.Builtins[n.Func]
			if !found {
				return nil, errors.Errorf("unknown function %q at %s", n.Func, n.Pos)
			}
			if len(n.Args) != builtin.Arity {
				return nil, errors.Errorf("function %q at %s takes %d arguments, got %d", n.Func, n.Pos, builtin.Arity, len(n.Args))
			}
			values := make([]float64, len(n.Args))
			for i, arg := range n.Args {
				lit, ok := arg.(*ast.Literal)
				if !ok {
					return e, nil
				}
				values[i] = lit.Value
			}
			return ast.Lit(builtin.Fn(values...)), nil
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return def, nil
}

func foldedDType(op ast.BinaryOp, x, y *ast.Literal) dtypes.DType {
	if op.IsComparison() || op.IsLogical() {
		return dtypes.Bool
	}
	if x.DType == y.DType {
		return x.DType
	}
	return dtypes.InvalidDType
}

// NormalizeOffsets makes every field access carry an explicit offset for each dimension of the
// field, zero if not given. It requires positional offsets to have been resolved already.
type NormalizeOffsets struct{}

// Name implements Pass.
func (NormalizeOffsets) Name() string { return "NormalizeOffsets" }

// Apply implements Pass.
func (NormalizeOffsets) Apply(def *ast.Definition) (*ast.Definition, error) {
	dims := fieldDims(def)
	normalize := func(ref *ast.FieldRef) error {
		if len(ref.Positional) > 0 {
			return errors.Errorf("access to field %q at %s has unresolved positional offsets", ref.Field, ref.Pos)
		}
		fieldDims, found := dims[ref.Field]
		if !found {
			return errors.Errorf("%q at %s is not a field", ref.Field, ref.Pos)
		}
		if ref.Offsets == nil {
			ref.Offsets = make(map[string]int, len(fieldDims))
		}
		for _, dim := range fieldDims {
			if _, found := ref.Offsets[dim]; !found {
				ref.Offsets[dim] = 0
			}
		}
		return nil
	}
	err := def.ForEachAssign(func(stmt *ast.Assign) error {
		if err := normalize(stmt.Target); err != nil {
			return err
		}
		var err error
		ast.Inspect(stmt.Value, func(e ast.Expr) bool {
			if ref, ok := e.(*ast.FieldRef); ok && err == nil {
				err = normalize(ref)
			}
			return err == nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return def, nil
}

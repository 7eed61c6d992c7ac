// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtbackend

import (
	"fmt"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/backends/codegen"
	"github.com/gomlx/gostencil/pkg/core/shapes"
	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/gomlx/gostencil/pkg/stencil/ir"
	"github.com/pkg/errors"
)

var cppBuiltins = map[string]string{
	"abs": "std::abs", "sqrt": "std::sqrt", "exp": "std::exp", "log": "std::log",
	"sin": "std::sin", "cos": "std::cos", "tan": "std::tan",
	"floor": "std::floor", "ceil": "std::ceil", "trunc": "std::trunc",
	"min": "std::fmin", "max": "std::fmax", "pow": "std::pow",
}

var cudaBuiltins = map[string]string{
	"abs": "fabs", "sqrt": "sqrt", "exp": "exp", "log": "log",
	"sin": "sin", "cos": "cos", "tan": "tan",
	"floor": "floor", "ceil": "ceil", "trunc": "trunc",
	"min": "fmin", "max": "fmax", "pow": "pow",
}

func loopVar(dim string) string { return strings.ToLower(dim) }
func sizeVar(dim string) string { return "n_" + strings.ToLower(dim) }

// cppType returns the C++ type used for values of the dtype in generated code.
func cppType(dtype dtypes.DType) string { return shapes.CppType(dtype) }

type renderer struct {
	s        *ir.Stencil
	builtins map[string]string
}

// access renders the element of the field: its data pointer (already at the origin of the
// domain) indexed with the strides of each dimension.
func (r *renderer) access(f *ir.FieldAccess) string {
	terms := make([]string, len(f.Dims))
	for i, dim := range f.Dims {
		idx := codegen.Index(loopVar(dim), f.Offsets[i])
		if f.Offsets[i] != 0 {
			idx = "(" + idx + ")"
		}
		terms[i] = fmt.Sprintf("%s * %s.strides[%d]", idx, f.Field, i)
	}
	if len(terms) == 0 {
		return fmt.Sprintf("%s.data[0]", f.Field)
	}
	return fmt.Sprintf("%s.data[%s]", f.Field, strings.Join(terms, " + "))
}

func (r *renderer) expr(e ir.Expr) (string, error) {
	switch n := e.(type) {
	case *ir.FieldAccess:
		return r.access(n), nil
	case *ir.ScalarRef:
		return n.Name, nil
	case *ir.Literal:
		switch n.Type {
		case dtypes.Bool:
			if n.Value != 0 {
				return "true", nil
			}
			return "false", nil
		case dtypes.Float32:
			return codegen.FormatFloat(n.Value) + "f", nil
		case dtypes.Int32, dtypes.Int64:
			return fmt.Sprintf("%d", int64(n.Value)), nil
		}
		return codegen.FormatFloat(n.Value), nil
	case *ir.Unary:
		x, err := r.expr(n.X)
		if err != nil {
			return "", err
		}
		if n.Op == ast.OpNot {
			return fmt.Sprintf("(!%s)", x), nil
		}
		return fmt.Sprintf("(-%s)", x), nil
	case *ir.Binary:
		x, err := r.expr(n.X)
		if err != nil {
			return "", err
		}
		y, err := r.expr(n.Y)
		if err != nil {
			return "", err
		}
		switch n.Op {
		case ast.OpMod:
			return fmt.Sprintf("%s(%s, %s)", r.fn("fmod"), x, y), nil
		case ast.OpPow:
			return fmt.Sprintf("%s(%s, %s)", r.builtins["pow"], x, y), nil
		}
		return codegen.Binary(n.Op, x, y, "&&", "||"), nil
	case *ir.Ternary:
		cond, err := r.expr(n.Cond)
		if err != nil {
			return "", err
		}
		then, err := r.expr(n.Then)
		if err != nil {
			return "", err
		}
		otherwise, err := r.expr(n.Else)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s ? %s : %s)", cond, then, otherwise), nil
	case *ir.Call:
		fn, found := r.builtins[n.Func]
		if !found {
			return "", errors.Errorf("function %q not supported by the C++/CUDA backends", n.Func)
		}
		args := make([]string, len(n.Args))
		for i, arg := range n.Args {
			var err error
			if args[i], err = r.expr(arg); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("%s(%s)", fn, strings.Join(args, ", ")), nil
	}
	return "", errors.Errorf("unknown IR expression %T", e)
}

func (r *renderer) fn(name string) string {
	if r.builtins["abs"] == "std::abs" {
		return "std::" + name
	}
	return name
}

func (r *renderer) statement(stmt *ir.Assign, _ bool) (codegen.Statement, error) {
	value, err := r.expr(stmt.Value)
	if err != nil {
		return codegen.Statement{}, err
	}
	return codegen.Statement{Target: r.access(stmt.Target), Value: value}, nil
}

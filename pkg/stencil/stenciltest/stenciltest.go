// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package stenciltest holds stencil definitions shared by the tests of the build pipeline and
// of the backends.
package stenciltest

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/gomlx/gostencil/pkg/stencil/ir"
	"github.com/gomlx/gostencil/pkg/stencil/passes"
	"github.com/stretchr/testify/require"
)

// Init1 sets every point of "input_field" to 1.
func Init1() *ast.Definition {
	return &ast.Definition{
		Name:   "init_1",
		Params: []*ast.Param{ast.NewField("input_field", dtypes.Float64, "I", "J", "K")},
		Computations: []*ast.Computation{
			ast.Compute(ast.Parallel, ast.Block(ast.FullInterval,
				ast.Set(ast.Ref("input_field"), ast.Lit(1)))),
		},
	}
}

// Copy copies "field_a" into "field_b".
func Copy(dtype dtypes.DType) *ast.Definition {
	return &ast.Definition{
		Name: "copy_stencil",
		Params: []*ast.Param{
			ast.NewField("field_a", dtype, "I", "J", "K"),
			ast.NewField("field_b", dtype, "I", "J", "K"),
		},
		Computations: []*ast.Computation{
			ast.Compute(ast.Parallel, ast.Block(ast.FullInterval,
				ast.Set(ast.Ref("field_b"), ast.Ref("field_a")))),
		},
	}
}

// Laplacian computes "out_field = alpha * (4 * in_field - sum of the 4 horizontal neighbors)",
// with a halo of 1 in I and J.
func Laplacian() *ast.Definition {
	neighbors := ast.Bin(ast.OpAdd,
		ast.Bin(ast.OpAdd, ast.Ref("in_field", 1, 0, 0), ast.Ref("in_field", -1, 0, 0)),
		ast.Bin(ast.OpAdd, ast.Ref("in_field", 0, 1, 0), ast.Ref("in_field", 0, -1, 0)))
	return &ast.Definition{
		Name: "laplacian",
		Params: []*ast.Param{
			ast.NewField("in_field", dtypes.Float64, "I", "J", "K"),
			ast.NewField("out_field", dtypes.Float64, "I", "J", "K"),
			ast.NewScalar("alpha", dtypes.Float64),
		},
		Constants: map[string]float64{"FOUR": 4},
		Computations: []*ast.Computation{
			ast.Compute(ast.Parallel, ast.Block(ast.FullInterval,
				ast.Set(ast.Ref("out_field"), ast.Bin(ast.OpMul, ast.Ident("alpha"),
					ast.Bin(ast.OpSub, ast.Bin(ast.OpMul, ast.Ident("FOUR"), ast.Ref("in_field")), neighbors))))),
		},
	}
}

// ColumnSum accumulates "in_field" along K into "out_field", using a temporary and a forward
// vertical loop with a first level special case.
func ColumnSum() *ast.Definition {
	return &ast.Definition{
		Name: "column_sum",
		Params: []*ast.Param{
			ast.NewField("in_field", dtypes.Float64, "I", "J", "K"),
			ast.NewField("out_field", dtypes.Float64, "I", "J", "K"),
		},
		Computations: []*ast.Computation{
			ast.Compute(ast.Forward,
				ast.Block(ast.Levels(ast.LevelStart, 0, ast.LevelStart, 1),
					ast.Set(ast.Ref("acc"), ast.Ref("in_field"))),
				ast.Block(ast.Levels(ast.LevelStart, 1, ast.LevelEnd, 0),
					ast.Set(ast.Ref("acc"), ast.Bin(ast.OpAdd, ast.Ref("acc", 0, 0, -1), ast.Ref("in_field"))))),
			ast.Compute(ast.Parallel, ast.Block(ast.FullInterval,
				ast.Set(ast.Ref("out_field"), ast.Ref("acc")))),
		},
	}
}

// Lower runs the system passes and lowers def to IR, failing the test on error.
func Lower(t testing.TB, def *ast.Definition) *ir.Stencil {
	t.Helper()
	resolved, err := passes.NewChain().Run(def)
	require.NoError(t, err)
	s, err := ir.Lower(resolved)
	require.NoError(t, err)
	return s
}

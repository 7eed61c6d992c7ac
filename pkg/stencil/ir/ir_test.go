// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/pkg/core/shapes"
	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/gomlx/gostencil/pkg/stencil/passes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func definition(order ast.IterationOrder, body ...*ast.Assign) *ast.Definition {
	return &ast.Definition{
		Name: "test",
		Params: []*ast.Param{
			ast.NewField("in_f", dtypes.Float32, "I", "J", "K"),
			ast.NewField("out_f", dtypes.Float64, "I", "J", "K"),
			ast.NewField("surface", dtypes.Float64, "I", "J"),
			ast.NewScalar("alpha", dtypes.Float64),
		},
		Computations: []*ast.Computation{ast.Compute(order, ast.Block(ast.FullInterval, body...))},
	}
}

func lower(t *testing.T, def *ast.Definition) (*Stencil, error) {
	resolved, err := passes.NewChain().Run(def)
	require.NoError(t, err)
	return Lower(resolved)
}

func TestLowerLaplacian(t *testing.T) {
	def := definition(ast.Parallel,
		ast.Set(ast.Ref("out_f"), ast.Bin(ast.OpSub,
			ast.Bin(ast.OpAdd, ast.Ref("in_f", 1, 0, 0), ast.Ref("in_f", -1, 0, 0)),
			ast.Bin(ast.OpMul, ast.Lit(2), ast.Ref("in_f", 0, 1, 0)))),
		ast.Set(ast.Ref("surface"), ast.Bin(ast.OpMul, ast.Ident("surface"), ast.Ident("alpha"))),
	)
	s, err := lower(t, def)
	require.NoError(t, err)

	assert.Equal(t, "test", s.Name)
	assert.Len(t, s.Fields(), 3)
	assert.Len(t, s.Scalars(), 1)
	assert.Equal(t, In, s.Param("in_f").Intent)
	assert.Equal(t, Out, s.Param("out_f").Intent)
	assert.Equal(t, InOut, s.Param("surface").Intent)
	assert.Equal(t, "IJ", s.Param("surface").Type.Axes())
	assert.NotEmpty(t, s.Fingerprint)

	assert.Equal(t, Extent{{"I", -1, 1}, {"J", 0, 1}, {"K", 0, 0}}, s.Extents["in_f"])
	before, after := s.Extents["in_f"].Halo("I")
	assert.Equal(t, [2]int{1, 1}, [2]int{before, after})
	assert.True(t, s.Extents["out_f"].IsZero())

	stmt := s.Loops[0].Sections[0].Body[0]
	assert.Equal(t, []int{0, 0, 0}, stmt.Target.Offsets)
	// Untyped literal 2 takes the type of the field it's multiplied with; Float32 - Float32 = Float32.
	assert.Equal(t, dtypes.Float32, stmt.Value.DType())
	assert.Contains(t, s.String(), "out out_f: Field[[I, J, K], Float64]")
	assert.Contains(t, s.String(), "out_f[0, 0, 0] = ((in_f[1, 0, 0] + in_f[-1, 0, 0]) - (2:Float32 * in_f[0, 1, 0]))")
}

func TestLowerTemporaries(t *testing.T) {
	def := definition(ast.Forward,
		ast.Set(ast.Ref("tmp"), ast.Bin(ast.OpGt, ast.Ref("in_f"), ast.Lit(0))),
		ast.Set(ast.Ref("acc"), ast.Bin(ast.OpAdd, ast.Ref("out_f"), ast.Lit(1))),
		ast.Set(ast.Ref("out_f"), ast.Bin(ast.OpAdd, ast.Ref("acc"), ast.Ref("acc", 0, 0, -1))),
	)
	s, err := lower(t, def)
	require.NoError(t, err)
	require.Len(t, s.Temporaries, 2)
	assert.Equal(t, dtypes.Bool, s.Temporary("tmp").Type.DType)
	assert.Equal(t, dtypes.Float64, s.Temporary("acc").Type.DType)
	assert.Equal(t, shapes.IJK, s.Temporary("acc").Type.Dims)
	assert.Equal(t, Extent{{"I", 0, 0}, {"J", 0, 0}, {"K", -1, 0}}, s.Extents["acc"])
	assert.Equal(t, InOut, s.Param("out_f").Intent)

	def = definition(ast.Parallel,
		ast.Set(ast.Ref("tmp"), ast.Ref("in_f")),
		ast.Set(ast.Ref("out_f"), ast.Ref("tmp", 1, 0, 0)),
	)
	_, err = lower(t, def)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported), "got %v", err)
}

func TestLowerUnbound(t *testing.T) {
	def := definition(ast.Parallel, ast.Set(ast.Ref("out_f"), ast.Bin(ast.OpAdd, ast.Ref("in_f"), ast.Ident("beta"))))
	_, err := lower(t, def)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnboundName))
	assert.Contains(t, err.Error(), `"beta"`)

	def = definition(ast.Parallel, ast.Set(ast.Ref("out_f"), &ast.Call{Func: "nope", Args: []ast.Expr{ast.Ref("in_f")}}))
	_, err = Lower(def)
	assert.True(t, errors.Is(err, ErrUnboundName))
}

func TestValidate(t *testing.T) {
	// Written and read with a vertical offset in a PARALLEL computation.
	def := definition(ast.Parallel,
		ast.Set(ast.Ref("out_f"), ast.Ref("in_f")),
		ast.Set(ast.Ref("out_f"), ast.Ref("out_f", 0, 0, 1)),
	)
	_, err := lower(t, def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vertical offset in a PARALLEL computation")

	// The same is fine in a FORWARD computation.
	def.Computations[0].Order = ast.Forward
	_, err = lower(t, def)
	require.NoError(t, err)

	// All problems are reported together.
	s := &Stencil{
		Name:       "broken",
		Dimensions: shapes.IJK,
		Params: []*Param{
			{Name: "a", Kind: ast.FieldParam, DType: dtypes.Float64},
			{Name: "a", Kind: ast.ScalarParam, DType: dtypes.Float64},
		},
		Loops: []*VerticalLoop{{Order: ast.Forward, Sections: []*Section{{
			Interval: ast.Levels(ast.LevelStart, 2, ast.LevelStart, 1),
			Body: []*Assign{{
				Target: &FieldAccess{Field: "a", Offsets: []int{1}, Dims: []string{"I"}},
				Value:  &ScalarRef{Name: "nope"},
			}},
		}}}},
	}
	err = Validate(s)
	require.Error(t, err)
	for _, want := range []string{"defined more than once", "empty interval", "must be at zero offset", `scalar "nope"`} {
		assert.Contains(t, err.Error(), want)
	}
	assert.True(t, errors.Is(err, ErrUnboundName))
}

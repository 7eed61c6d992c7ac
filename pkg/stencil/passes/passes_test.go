// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func sampleDefinition(body ...*ast.Assign) *ast.Definition {
	return &ast.Definition{
		Name: "sample",
		Params: []*ast.Param{
			ast.NewField("in_f", dtypes.Float64, "I", "J", "K"),
			ast.NewField("out_f", dtypes.Float64, "I", "J", "K"),
			ast.NewScalar("alpha", dtypes.Float64),
		},
		Constants:    map[string]float64{"C": 2},
		Computations: []*ast.Computation{ast.Compute(ast.Parallel, ast.Block(ast.FullInterval, body...))},
	}
}

// scaleLiterals multiplies every literal by Seed+1.
type scaleLiterals struct{ Seed int }

func (p scaleLiterals) Name() string        { return "scaleLiterals" }
func (p scaleLiterals) Fingerprint() string { return fmt.Sprintf("seed=%d", p.Seed) }
func (p scaleLiterals) Apply(def *ast.Definition) (*ast.Definition, error) {
	err := ast.RewriteDefinition(def, func(e ast.Expr) (ast.Expr, error) {
		if lit, ok := e.(*ast.Literal); ok && lit.DType != dtypes.Bool {
			return &ast.Literal{Value: lit.Value * float64(p.Seed+1), DType: lit.DType}, nil
		}
		return e, nil
	})
	return def, err
}

// swapOperands swaps the operands of commutative operators when Seed is odd.
type swapOperands struct{ Seed int }

func (p swapOperands) Name() string        { return "swapOperands" }
func (p swapOperands) Fingerprint() string { return fmt.Sprintf("seed=%d", p.Seed) }
func (p swapOperands) Apply(def *ast.Definition) (*ast.Definition, error) {
	if p.Seed%2 == 0 {
		return def, nil
	}
	err := ast.RewriteDefinition(def, func(e ast.Expr) (ast.Expr, error) {
		if bin, ok := e.(*ast.Binary); ok && (bin.Op == ast.OpAdd || bin.Op == ast.OpMul) {
			bin.X, bin.Y = bin.Y, bin.X
		}
		return e, nil
	})
	return def, err
}

func statements(def *ast.Definition) []string {
	var lines []string
	_ = def.ForEachAssign(func(stmt *ast.Assign) error {
		lines = append(lines, ast.PrintExpr(stmt.Target)+" = "+ast.PrintExpr(stmt.Value))
		return nil
	})
	return lines
}

func TestSystemChain(t *testing.T) {
	def := sampleDefinition(
		ast.Set(ast.Ref("out_f"), ast.Bin(ast.OpAdd,
			ast.Bin(ast.OpAdd, ast.Bin(ast.OpMul, ast.Ref("in_f", 1, 0, 0), ast.Ident("C")), ast.Ident("in_f")),
			ast.Bin(ast.OpAdd, ast.Lit(1), ast.Lit(2)))),
	)
	before := ast.Print(def)
	chain := NewChain()
	require.Equal(t, 3, chain.Len())
	assert.Equal(t, "ResolveDimensions,FoldConstants,NormalizeOffsets", chain.Fingerprint())

	got, err := chain.Run(def)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"out_f[I+0, J+0, K+0] = (((in_f[I+1, J+0, K+0] * 2) + in_f[I+0, J+0, K+0]) + 3)"},
		statements(got))
	assert.Equal(t, before, ast.Print(def), "input definition must not be modified")
}

func TestTemporariesAndShadowing(t *testing.T) {
	def := sampleDefinition(
		ast.Set(ast.Ref("tmp"), ast.At("in_f", map[string]int{"K": -1})),
		ast.Set(ast.Ref("out_f"), ast.Bin(ast.OpMul, ast.Ident("tmp"), ast.Ident("alpha"))),
	)
	def.Constants["alpha"] = 10 // Shadowed by the scalar parameter.
	got, err := NewChain().Run(def)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"tmp[I+0, J+0, K+0] = in_f[I+0, J+0, K-1]",
		"out_f[I+0, J+0, K+0] = (tmp[I+0, J+0, K+0] * alpha)",
	}, statements(got))
}

func TestFoldConstants(t *testing.T) {
	def := sampleDefinition(
		ast.Set(ast.Ref("out_f"), &ast.Ternary{
			Cond: ast.Bin(ast.OpGt, ast.Ident("C"), ast.Lit(1)),
			Then: &ast.Call{Func: "max", Args: []ast.Expr{ast.Ident("C"), ast.Lit(5)}},
			Else: ast.Ref("in_f"),
		}),
		ast.Set(ast.Ref("out_f"), &ast.Call{Func: "sqrt", Args: []ast.Expr{ast.Ident("alpha")}}),
	)
	got, err := NewChain().Run(def)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"out_f[I+0, J+0, K+0] = 5",
		"out_f[I+0, J+0, K+0] = sqrt(alpha)",
	}, statements(got))

	def = sampleDefinition(ast.Set(ast.Ref("out_f"), &ast.Call{Func: "nope", Args: []ast.Expr{ast.Lit(1)}}))
	_, err = NewChain().Run(def)
	require.Error(t, err)
	name, ok := IsPassError(err)
	require.True(t, ok)
	assert.Equal(t, "FoldConstants", name)
}

func TestResolveDimensionsFailures(t *testing.T) {
	testCases := []struct {
		name string
		def  *ast.Definition
		want string
	}{
		{"too many offsets", sampleDefinition(ast.Set(ast.Ref("out_f"), ast.Ref("in_f", 1, 0, 0, 0))), "unresolvable dimension"},
		{"unknown named offset", sampleDefinition(ast.Set(ast.Ref("out_f"), ast.At("in_f", map[string]int{"Q": 1}))), "unresolvable dimension \"Q\""},
		{"unknown field dimension", func() *ast.Definition {
			def := sampleDefinition(ast.Set(ast.Ref("out_f"), ast.Ref("in_f")))
			def.Params[0].Dims = []string{"I", "X"}
			return def
		}(), "unresolvable dimension \"X\""},
		{"scalar with offsets", sampleDefinition(ast.Set(ast.Ref("out_f"), ast.Ref("alpha", 1))), "not a field"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewChain().Run(tc.def)
			require.Error(t, err)
			assert.Nil(t, got)
			var passErr *PassError
			require.ErrorAs(t, err, &passErr)
			assert.Equal(t, "ResolveDimensions", passErr.Pass)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestUserPassesRunFirst(t *testing.T) {
	var order []string
	record := func(name string) Pass {
		return Func{PassName: name, Fn: func(def *ast.Definition) (*ast.Definition, error) {
			order = append(order, name)
			return def, nil
		}}
	}
	chain := NewChain(record("a"), record("b"), scaleLiterals{Seed: 3})
	assert.True(t, strings.HasPrefix(chain.Fingerprint(), "a,b,scaleLiterals(seed=3),ResolveDimensions"))
	def := sampleDefinition(ast.Set(ast.Ref("out_f"), ast.Bin(ast.OpMul, ast.Ident("C"), ast.Lit(2))))
	got, err := chain.Run(def)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
	// Literal 2 is scaled by 4 before the constant C is folded.
	assert.Equal(t, []string{"out_f[I+0, J+0, K+0] = 16"}, statements(got))

	failing := Func{PassName: "broken", Fn: func(*ast.Definition) (*ast.Definition, error) { return nil, nil }}
	_, err = NewChain(failing).Run(def)
	name, ok := IsPassError(err)
	require.True(t, ok)
	assert.Equal(t, "broken", name)
}

// Running [P1, P2] must be the same as running P2 on the result of P1.
func TestChainComposability(t *testing.T) {
	def := sampleDefinition(
		ast.Set(ast.Ref("out_f"), ast.Bin(ast.OpAdd,
			ast.Bin(ast.OpMul, ast.Ref("in_f", 1, 0, 0), ast.Lit(3)),
			ast.Bin(ast.OpAdd, ast.Ident("alpha"), ast.Lit(0.5)))),
	)
	genPass := rapid.Custom(func(t *rapid.T) Pass {
		seed := rapid.IntRange(0, 9).Draw(t, "seed")
		switch rapid.IntRange(0, 4).Draw(t, "kind") {
		case 0:
			return scaleLiterals{Seed: seed}
		case 1:
			return swapOperands{Seed: seed}
		case 2:
			return ResolveDimensions{}
		case 3:
			return FoldConstants{}
		default:
			return swapOperands{Seed: seed + 1}
		}
	})
	rapid.Check(t, func(t *rapid.T) {
		p1 := rapid.SliceOfN(genPass, 0, 3).Draw(t, "p1")
		p2 := rapid.SliceOfN(genPass, 0, 3).Draw(t, "p2")
		combined, err := Sequence(append(append([]Pass{}, p1...), p2...)...).Run(def)
		require.NoError(t, err)
		first, err := Sequence(p1...).Run(def)
		require.NoError(t, err)
		second, err := Sequence(p2...).Run(first)
		require.NoError(t, err)
		require.Equal(t, ast.Print(combined), ast.Print(second))
		require.Equal(t, ast.Print(second), ast.Print(must(Sequence(p2...).Run(first))), "passes must be deterministic")
	})
}

func must(def *ast.Definition, err error) *ast.Definition {
	if err != nil {
		panic(err)
	}
	return def
}

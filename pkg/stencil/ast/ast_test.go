// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ast

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func laplacian() *Definition {
	return &Definition{
		Name: "lap",
		Params: []*Param{
			NewField("in_field", dtypes.Float64, "I", "J", "K"),
			NewField("out_field", dtypes.Float64, "I", "J", "K"),
			NewScalar("alpha", dtypes.Float64),
		},
		Constants: map[string]float64{"FOUR": 4},
		Computations: []*Computation{
			Compute(Parallel, Block(FullInterval,
				Set(Ref("out_field"), Bin(OpMul, Ident("alpha"),
					Bin(OpSub,
						Bin(OpAdd, Bin(OpAdd, Ref("in_field", 1, 0, 0), Ref("in_field", -1, 0, 0)),
							Bin(OpAdd, Ref("in_field", 0, 1, 0), Ref("in_field", 0, -1, 0))),
						Bin(OpMul, Ident("FOUR"), Ident("in_field"))))),
			)),
		},
	}
}

func TestPrint(t *testing.T) {
	got := Print(laplacian())
	want := `stencil lap
dimension I horizontal
dimension J horizontal
dimension K vertical
field in_field Float64 [I, J, K]
field out_field Float64 [I, J, K]
scalar alpha Float64
constant FOUR = 4
computation PARALLEL
  interval [start+0, end+0)
    out_field = (alpha * (((in_field[1, 0, 0] + in_field[-1, 0, 0]) + (in_field[0, 1, 0] + in_field[0, -1, 0])) - (FOUR * in_field)))
`
	assert.Equal(t, want, got)
	assert.Equal(t, "tmp[I+0, K-1]", PrintExpr(At("tmp", map[string]int{"K": -1, "I": 0})))
	assert.Equal(t, "true", PrintExpr(Bool(true)))
	assert.Equal(t, "(x if (a < 1) else -2)", PrintExpr(&Ternary{Cond: Bin(OpLt, Ident("a"), Lit(1)), Then: Ident("x"), Else: Lit(-2)}))
}

func TestCloneIsDeep(t *testing.T) {
	def := laplacian()
	before := Print(def)
	clone, err := def.Clone()
	require.NoError(t, err)
	require.Equal(t, before, Print(clone))

	clone.Params[0].Dims[0] = "X"
	clone.Constants["FOUR"] = 5
	clone.Computations[0].Intervals[0].Body[0].Target.Field = "other"
	_, err = Rewrite(clone.Computations[0].Intervals[0].Body[0].Value, func(e Expr) (Expr, error) {
		if ref, ok := e.(*FieldRef); ok {
			ref.Positional = nil
		}
		return e, nil
	})
	require.NoError(t, err)
	assert.Equal(t, before, Print(def), "original must not be changed by edits on the clone")
	assert.NotEqual(t, before, Print(clone))
}

func TestRewriteAndInspect(t *testing.T) {
	def := laplacian()
	count := 0
	require.NoError(t, def.ForEachAssign(func(stmt *Assign) error {
		count += len(FieldRefs(stmt.Value))
		return nil
	}))
	assert.Equal(t, 4, count)

	// Replace every name by a literal.
	err := RewriteDefinition(def, func(e Expr) (Expr, error) {
		if _, ok := e.(*Name); ok {
			return Lit(2), nil
		}
		return e, nil
	})
	require.NoError(t, err)
	assert.Contains(t, Print(def), "out_field = (2 * (((in_field[1, 0, 0]")
	assert.Contains(t, Print(def), "- (2 * 2)))")
}

func TestFingerprint(t *testing.T) {
	a, b := laplacian(), laplacian()
	b.Source = "different source text, same definition"
	b.Pos = Pos{Filename: "x.hcl", Line: 3}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(a, "numpy"))
	assert.NotEqual(t, Fingerprint(a, "ab", "c"), Fingerprint(a, "a", "bc"))

	b.Constants["FOUR"] = 4.5
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestTemporariesAndOps(t *testing.T) {
	def := &Definition{
		Name:   "t",
		Params: []*Param{NewField("a", dtypes.Float64, "I", "J", "K")},
		Computations: []*Computation{Compute(Forward, Block(FullInterval,
			Set(Ref("tmp"), Ref("a")),
			Set(Ref("a"), Ref("tmp")),
			Set(Ref("tmp2"), Ref("tmp")),
		))},
	}
	assert.Equal(t, []string{"tmp", "tmp2"}, def.Temporaries())
	assert.Equal(t, 1.0, OpGe.Apply(2, 2))
	assert.Equal(t, 8.0, OpPow.Apply(2, 3))
	assert.Equal(t, 0.0, OpNot.Apply(3))
	assert.True(t, OpLt.IsComparison())
	assert.True(t, OpOr.IsLogical())
	assert.Equal(t, 3.0, Builtins["max"].Fn(1, 3))
	assert.Contains(t, BuiltinNames(), "sqrt")
}

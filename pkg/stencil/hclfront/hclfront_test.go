// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hclfront

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/pkg/core/shapes"
	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/gomlx/gostencil/pkg/stencil/passes"
	"github.com/gomlx/gostencil/pkg/stencil/stenciltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const laplacianSrc = `
stencil "laplacian" {
  field "in_field" { dtype = "float64" }
  field "out_field" {}
  param "alpha" { dtype = "float64" }
  constants = { FOUR = 4 }

  computation "parallel" {
    interval ":" {
      out_field = alpha * (FOUR * in_field - ((in_field(1, 0, 0) + in_field(-1, 0, 0)) + (in_field(0, 1, 0) + in_field(0, -1, 0))))
    }
  }
}
`

const columnSumSrc = `
stencil "column_sum" {
  field "in_field" {}
  field "out_field" {}

  computation "forward" {
    interval "0:1" {
      acc = in_field
    }
    interval "1:" {
      acc = acc(0, 0, -1) + in_field
    }
  }
  computation "PARALLEL" {
    interval "full" {
      out_field = acc
    }
  }
}
`

// canonical runs the system passes and prints the result.
func canonical(t *testing.T, def *ast.Definition) string {
	t.Helper()
	resolved, err := passes.NewChain().Run(def)
	require.NoError(t, err)
	return ast.Print(resolved)
}

func TestParseMatchesGoDefinitions(t *testing.T) {
	def, err := ParseOne([]byte(laplacianSrc), "laplacian.hcl")
	require.NoError(t, err)
	assert.Equal(t, canonical(t, stenciltest.Laplacian()), canonical(t, def))
	assert.Contains(t, def.Source, `stencil "laplacian"`)
	assert.Equal(t, "laplacian.hcl:2:1", def.Pos.String())

	def, err = ParseOne([]byte(columnSumSrc), "column_sum.hcl")
	require.NoError(t, err)
	assert.Equal(t, canonical(t, stenciltest.ColumnSum()), canonical(t, def))
	assert.Equal(t, []string{"acc"}, def.Temporaries())
}

func TestPositions(t *testing.T) {
	def, err := ParseOne([]byte(laplacianSrc), "laplacian.hcl")
	require.NoError(t, err)
	require.Len(t, def.Params, 3)
	assert.Equal(t, "laplacian.hcl:3:3", def.Params[0].Pos.String())
	assert.Equal(t, "laplacian.hcl:4:3", def.Params[1].Pos.String())
	assert.Equal(t, "laplacian.hcl:5:3", def.Params[2].Pos.String())
	require.Len(t, def.Computations, 1)
	assert.Equal(t, "laplacian.hcl:8:3", def.Computations[0].Pos.String())
	require.Len(t, def.Computations[0].Intervals, 1)
	assert.Equal(t, "laplacian.hcl:9:5", def.Computations[0].Intervals[0].Pos.String())

	// Errors point to the offending block.
	_, err = ParseOne([]byte("stencil \"s\" {\n  field \"a\" {}\n  param \"b\" { dtype = \"quaternion\" }\n}\n"), "s.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s.hcl:3,3")
}

func TestParamsAndDimensions(t *testing.T) {
	src := `
stencil "surface" {
  dimension "I" { kind = "horizontal" }
  dimension "J" { kind = "horizontal" }
  dimension "K" { kind = "vertical" }
  param "scale" { dtype = "float32" }
  field "surface" {
    dtype = "float32"
    dims  = ["I", "J"]
  }
  field "volume" { dtype = "float32" }

  computation "backward" {
    interval "-1:" {
      volume = scale * surface
    }
    interval ":-1" {
      volume = volume(0, 0, 1) > 0 ? max(volume(0, 0, 1), surface) : -surface
    }
  }
}
`
	def, err := ParseOne([]byte(src), "surface.hcl")
	require.NoError(t, err)
	require.Len(t, def.Params, 3)
	assert.Equal(t, "scale", def.Params[0].Name)
	assert.Equal(t, ast.ScalarParam, def.Params[0].Kind)
	assert.Equal(t, dtypes.Float32, def.Params[0].DType)
	assert.Equal(t, []string{"I", "J"}, def.Params[1].Dims)
	assert.Equal(t, []string{"I", "J", "K"}, def.Params[2].Dims)
	assert.Equal(t, shapes.IJK, def.Dimensions)

	comp := def.Computations[0]
	assert.Equal(t, ast.Backward, comp.Order)
	assert.Equal(t, ast.Levels(ast.LevelEnd, -1, ast.LevelEnd, 0), comp.Intervals[0].Interval)
	assert.Equal(t, ast.Levels(ast.LevelStart, 0, ast.LevelEnd, -1), comp.Intervals[1].Interval)
	ternary, ok := comp.Intervals[1].Body[0].Value.(*ast.Ternary)
	require.True(t, ok)
	call, ok := ternary.Then.(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "max", call.Func)
}

func TestStatementOrder(t *testing.T) {
	src := `
stencil "order" {
  field "a" {}
  computation "parallel" {
    interval ":" {
      z = a + 1
      b = z * 2
      a = b
    }
  }
}
`
	def, err := ParseOne([]byte(src), "order.hcl")
	require.NoError(t, err)
	var targets []string
	for _, stmt := range def.Computations[0].Intervals[0].Body {
		targets = append(targets, stmt.Target.Field)
	}
	assert.Equal(t, []string{"z", "b", "a"}, targets)
}

func TestParseInterval(t *testing.T) {
	for label, want := range map[string]ast.Interval{
		"":     ast.FullInterval,
		":":    ast.FullInterval,
		"full": ast.FullInterval,
		"1:-1": ast.Levels(ast.LevelStart, 1, ast.LevelEnd, -1),
		"0:2":  ast.Levels(ast.LevelStart, 0, ast.LevelStart, 2),
		"-2:":  ast.Levels(ast.LevelEnd, -2, ast.LevelEnd, 0),
	} {
		got, err := ParseInterval(label)
		require.NoError(t, err, label)
		assert.Equal(t, want, got, label)
	}
	for _, label := range []string{"1", "a:b", "1:2:3"} {
		_, err := ParseInterval(label)
		assert.Error(t, err, label)
	}
}

func TestErrors(t *testing.T) {
	for name, src := range map[string]string{
		"syntax":        `stencil "x" {`,
		"unknown block": `other "x" {}`,
		"duplicate":     `stencil "x" {}` + "\n" + `stencil "x" {}`,
		"dtype":         `stencil "x" { field "a" { dtype = "complex64" } }`,
		"order":         `stencil "x" { computation "sideways" {} }`,
		"offsets":       `stencil "x" { computation "parallel" { interval ":" { b = a(n, 0, 0) } } }`,
		"fractional":    `stencil "x" { computation "parallel" { interval ":" { b = a(0.5, 0, 0) } } }`,
		"arity":         `stencil "x" { computation "parallel" { interval ":" { b = sqrt(a, a) } } }`,
		"traversal":     `stencil "x" { computation "parallel" { interval ":" { b = a.x } } }`,
		"string":        `stencil "x" { computation "parallel" { interval ":" { b = "a" } } }`,
	} {
		_, err := Parse([]byte(src), name+".hcl")
		assert.Error(t, err, name)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stencils.hcl")
	require.NoError(t, os.WriteFile(path, []byte(laplacianSrc+columnSumSrc), 0o644))
	defs, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "laplacian", defs[0].Name)
	assert.Equal(t, "column_sum", defs[1].Name)
	assert.Equal(t, path, defs[1].Pos.Filename)

	_, err = ParseOne([]byte(laplacianSrc+columnSumSrc), "two.hcl")
	assert.Error(t, err)
	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hclfront parses stencil definitions written in HCL.
//
// A file holds one or more stencil blocks:
//
//	stencil "laplacian" {
//	  field "in_field" { dtype = "float64" }
//	  field "out_field" { dtype = "float64" }
//	  param "alpha" { dtype = "float64" }
//	  constants = { FOUR = 4 }
//
//	  computation "parallel" {
//	    interval ":" {
//	      out_field = alpha * (FOUR * in_field - (in_field(1, 0, 0) + in_field(-1, 0, 0)))
//	    }
//	  }
//	}
//
// Fields default to dtype float64 over the dimensions I, J, K; other dimensions are declared with
// `dimension "X" { kind = "horizontal" }` blocks, and fields pick theirs with `dims = ["X", "K"]`.
//
// Interval labels are "start:end" vertical bounds: non-negative numbers count from the first
// level, negative ones from one past the last, and an empty bound is the start (or end) of the
// domain. So ":" (or "full") is the whole column, "1:-1" drops the first and last levels and
// "-1:" is the last level.
//
// Statements are attributes `target = expression`, executed in source order. A field is accessed
// at an offset with a call-like syntax, `a(1, 0, -1)`, offsets following the declared dimension
// order; a bare `a` is the current point. Calls to math builtins (see ast.Builtins) are function
// calls. HCL has no power operator: use pow(x, y).
package hclfront

import (
	"math/big"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/pkg/core/shapes"
	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
)

// DefaultDType of fields and params that don't declare one.
var DefaultDType = dtypes.Float64

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{{Type: "stencil", LabelNames: []string{"name"}}},
}

type stencilBlock struct {
	Dimensions   []dimensionBlock   `hcl:"dimension,block"`
	Fields       []fieldBlock       `hcl:"field,block"`
	Params       []paramBlock       `hcl:"param,block"`
	Constants    map[string]float64 `hcl:"constants,optional"`
	Computations []computationBlock `hcl:"computation,block"`
}

type dimensionBlock struct {
	Name string `hcl:"name,label"`
	Kind string `hcl:"kind"`
}

type fieldBlock struct {
	Name  string   `hcl:"name,label"`
	DType *string  `hcl:"dtype,optional"`
	Dims  []string `hcl:"dims,optional"`
}

type paramBlock struct {
	Name  string  `hcl:"name,label"`
	DType *string `hcl:"dtype,optional"`
}

type computationBlock struct {
	Order     string          `hcl:"order,label"`
	Intervals []intervalBlock `hcl:"interval,block"`
}

type intervalBlock struct {
	Bounds string   `hcl:"bounds,label"`
	Body   hcl.Body `hcl:",remain"`
}

// headers lists the blocks of one type in body, in source order. gohcl decodes blocks in the
// same order, so the i-th header belongs to the i-th decoded block.
type headers []*hclsyntax.Block

func blockHeaders(body hcl.Body, blockType string) headers {
	syntax, ok := body.(*hclsyntax.Body)
	if !ok {
		return nil
	}
	var hs headers
	for _, b := range syntax.Blocks {
		if b.Type == blockType {
			hs = append(hs, b)
		}
	}
	return hs
}

// rangeOf the i-th block header, or fallback if body was not native syntax.
func (hs headers) rangeOf(i int, fallback hcl.Range) hcl.Range {
	if i < len(hs) {
		return hs[i].DefRange()
	}
	return fallback
}

// body of the i-th block, or nil.
func (hs headers) body(i int) hcl.Body {
	if i < len(hs) {
		return hs[i].Body
	}
	return nil
}

// ParseFile reads and parses the stencils of an HCL file.
func ParseFile(path string) ([]*ast.Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading stencil file")
	}
	return Parse(src, path)
}

// Parse the stencils in src. The filename is only used in positions and error messages.
//
// The Source of each returned definition is the text of its stencil block.
func Parse(src []byte, filename string) ([]*ast.Definition, error) {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, diags
	}
	content, diags := file.Body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, diags
	}
	defs := make([]*ast.Definition, 0, len(content.Blocks))
	seen := make(map[string]bool)
	for _, block := range content.Blocks {
		name := block.Labels[0]
		if seen[name] {
			return nil, errors.Errorf("%s: stencil %q defined twice", block.DefRange, name)
		}
		seen[name] = true
		def, err := parseStencil(src, name, block)
		if err != nil {
			return nil, errors.WithMessagef(err, "stencil %q", name)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// ParseOne parses src, which must hold exactly one stencil.
func ParseOne(src []byte, filename string) (*ast.Definition, error) {
	defs, err := Parse(src, filename)
	if err != nil {
		return nil, err
	}
	if len(defs) != 1 {
		return nil, errors.Errorf("%s: expected exactly one stencil, got %d", filename, len(defs))
	}
	return defs[0], nil
}

func pos(r hcl.Range) ast.Pos {
	return ast.Pos{Filename: r.Filename, Line: r.Start.Line, Column: r.Start.Column}
}

func parseStencil(src []byte, name string, block *hcl.Block) (*ast.Definition, error) {
	var decoded stencilBlock
	if diags := gohcl.DecodeBody(block.Body, nil, &decoded); diags.HasErrors() {
		return nil, diags
	}
	def := &ast.Definition{Name: name, Constants: decoded.Constants, Pos: pos(block.DefRange)}
	if body, ok := block.Body.(*hclsyntax.Body); ok {
		def.Source = string(src[block.DefRange.Start.Byte:body.SrcRange.End.Byte])
	}

	for _, d := range decoded.Dimensions {
		kind, err := shapes.ParseDimensionKind(d.Kind)
		if err != nil {
			return nil, errors.WithMessagef(err, "dimension %q", d.Name)
		}
		def.Dimensions = append(def.Dimensions, shapes.NewDimension(d.Name, kind))
	}

	// Fields and params keep their relative declaration order.
	type declared struct {
		param *ast.Param
		start int
	}
	var params []declared
	fieldHeaders := blockHeaders(block.Body, "field")
	for i, f := range decoded.Fields {
		defRange := fieldHeaders.rangeOf(i, block.DefRange)
		dtype, err := parseDType(f.DType)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s: field %q", defRange, f.Name)
		}
		dims := f.Dims
		if len(dims) == 0 {
			dims = def.KnownDimensions().Names()
		}
		p := ast.NewField(f.Name, dtype, dims...)
		p.Pos = pos(defRange)
		params = append(params, declared{p, defRange.Start.Byte})
	}
	paramHeaders := blockHeaders(block.Body, "param")
	for i, sp := range decoded.Params {
		defRange := paramHeaders.rangeOf(i, block.DefRange)
		dtype, err := parseDType(sp.DType)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s: param %q", defRange, sp.Name)
		}
		p := ast.NewScalar(sp.Name, dtype)
		p.Pos = pos(defRange)
		params = append(params, declared{p, defRange.Start.Byte})
	}
	slices.SortFunc(params, func(a, b declared) int { return a.start - b.start })
	for _, d := range params {
		def.Params = append(def.Params, d.param)
	}

	compHeaders := blockHeaders(block.Body, "computation")
	for i, c := range decoded.Computations {
		defRange := compHeaders.rangeOf(i, block.DefRange)
		comp, err := parseComputation(c, defRange, blockHeaders(compHeaders.body(i), "interval"))
		if err != nil {
			return nil, err
		}
		def.Computations = append(def.Computations, comp)
	}
	return def, nil
}

func parseDType(name *string) (dtypes.DType, error) {
	if name == nil {
		return DefaultDType, nil
	}
	return shapes.ParseDType(*name)
}

// ParseOrder converts "parallel", "forward" or "backward" (in any case) to an iteration order.
func ParseOrder(s string) (ast.IterationOrder, error) {
	switch strings.ToLower(s) {
	case "parallel":
		return ast.Parallel, nil
	case "forward":
		return ast.Forward, nil
	case "backward":
		return ast.Backward, nil
	}
	return 0, errors.Errorf("unknown iteration order %q, valid values are parallel, forward and backward", s)
}

// ParseInterval converts an interval label ("1:-1", ":", "full", "-1:") to an ast.Interval.
func ParseInterval(s string) (ast.Interval, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "full" {
		return ast.FullInterval, nil
	}
	start, end, found := strings.Cut(s, ":")
	if !found {
		return ast.Interval{}, errors.Errorf("invalid interval %q: expected \"start:end\"", s)
	}
	var iv ast.Interval
	var err error
	if iv.Start, err = parseBound(start, ast.LevelStart); err != nil {
		return ast.Interval{}, errors.WithMessagef(err, "interval %q", s)
	}
	if iv.End, err = parseBound(end, ast.LevelEnd); err != nil {
		return ast.Interval{}, errors.WithMessagef(err, "interval %q", s)
	}
	return iv, nil
}

func parseBound(s string, empty ast.LevelMarker) (ast.AxisBound, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ast.AxisBound{Level: empty}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return ast.AxisBound{}, errors.Errorf("invalid bound %q", s)
	}
	if n < 0 {
		return ast.AxisBound{Level: ast.LevelEnd, Offset: n}, nil
	}
	return ast.AxisBound{Level: ast.LevelStart, Offset: n}, nil
}

func parseComputation(c computationBlock, defRange hcl.Range, intervalHeaders headers) (*ast.Computation, error) {
	order, err := ParseOrder(c.Order)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s", defRange)
	}
	comp := &ast.Computation{Order: order, Pos: pos(defRange)}
	for i, ib := range c.Intervals {
		ivRange := intervalHeaders.rangeOf(i, defRange)
		interval, err := ParseInterval(ib.Bounds)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s", ivRange)
		}
		attrs, diags := ib.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, diags
		}
		sorted := make([]*hcl.Attribute, 0, len(attrs))
		for _, attr := range attrs {
			sorted = append(sorted, attr)
		}
		slices.SortFunc(sorted, func(a, b *hcl.Attribute) int { return a.Range.Start.Byte - b.Range.Start.Byte })
		block := &ast.IntervalBlock{Interval: interval, Pos: pos(ivRange)}
		for _, attr := range sorted {
			value, err := convertExpr(attr.Expr)
			if err != nil {
				return nil, err
			}
			target := &ast.FieldRef{Field: attr.Name, Pos: pos(attr.NameRange)}
			block.Body = append(block.Body, &ast.Assign{Target: target, Value: value, Pos: pos(attr.Range)})
		}
		comp.Intervals = append(comp.Intervals, block)
	}
	return comp, nil
}

var binaryOps = map[*hclsyntax.Operation]ast.BinaryOp{
	hclsyntax.OpAdd:                ast.OpAdd,
	hclsyntax.OpSubtract:           ast.OpSub,
	hclsyntax.OpMultiply:           ast.OpMul,
	hclsyntax.OpDivide:             ast.OpDiv,
	hclsyntax.OpModulo:             ast.OpMod,
	hclsyntax.OpEqual:              ast.OpEq,
	hclsyntax.OpNotEqual:           ast.OpNe,
	hclsyntax.OpLessThan:           ast.OpLt,
	hclsyntax.OpLessThanOrEqual:    ast.OpLe,
	hclsyntax.OpGreaterThan:        ast.OpGt,
	hclsyntax.OpGreaterThanOrEqual: ast.OpGe,
	hclsyntax.OpLogicalAnd:         ast.OpAnd,
	hclsyntax.OpLogicalOr:          ast.OpOr,
}

func convertExpr(expr hcl.Expression) (ast.Expr, error) {
	switch e := expr.(type) {
	case *hclsyntax.LiteralValueExpr:
		return literal(e.Val, e.SrcRange)
	case *hclsyntax.ParenthesesExpr:
		return convertExpr(e.Expression)
	case *hclsyntax.ScopeTraversalExpr:
		if len(e.Traversal) != 1 {
			return nil, errors.Errorf("%s: attribute and index access are not supported", e.SrcRange)
		}
		return &ast.Name{Ident: e.Traversal.RootName(), Pos: pos(e.SrcRange)}, nil
	case *hclsyntax.FunctionCallExpr:
		return convertCall(e)
	case *hclsyntax.UnaryOpExpr:
		x, err := convertExpr(e.Val)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case hclsyntax.OpNegate:
			return ast.Neg(x), nil
		case hclsyntax.OpLogicalNot:
			return &ast.Unary{Op: ast.OpNot, X: x}, nil
		}
		return nil, errors.Errorf("%s: unsupported unary operator", e.SrcRange)
	case *hclsyntax.BinaryOpExpr:
		op, found := binaryOps[e.Op]
		if !found {
			return nil, errors.Errorf("%s: unsupported binary operator", e.SrcRange)
		}
		x, err := convertExpr(e.LHS)
		if err != nil {
			return nil, err
		}
		y, err := convertExpr(e.RHS)
		if err != nil {
			return nil, err
		}
		return ast.Bin(op, x, y), nil
	case *hclsyntax.ConditionalExpr:
		cond, err := convertExpr(e.Condition)
		if err != nil {
			return nil, err
		}
		then, err := convertExpr(e.TrueResult)
		if err != nil {
			return nil, err
		}
		otherwise, err := convertExpr(e.FalseResult)
		if err != nil {
			return nil, err
		}
		return &ast.Ternary{Cond: cond, Then: then, Else: otherwise}, nil
	}
	return nil, errors.Errorf("%s: unsupported expression %T", expr.Range(), expr)
}

func literal(v cty.Value, r hcl.Range) (ast.Expr, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, errors.Errorf("%s: null literal", r)
	}
	switch {
	case v.Type().Equals(cty.Number):
		f, _ := v.AsBigFloat().Float64()
		return ast.Lit(f), nil
	case v.Type().Equals(cty.Bool):
		return ast.Bool(v.True()), nil
	}
	return nil, errors.Errorf("%s: unsupported literal of type %s", r, v.Type().FriendlyName())
}

// convertCall converts builtin calls, and field accesses with offsets.
func convertCall(e *hclsyntax.FunctionCallExpr) (ast.Expr, error) {
	if builtin, found := ast.Builtins[e.Name]; found {
		if len(e.Args) != builtin.Arity {
			return nil, errors.Errorf("%s: %s() takes %d arguments, got %d", e.Range(), e.Name, builtin.Arity, len(e.Args))
		}
		call := &ast.Call{Func: e.Name, Pos: pos(e.Range())}
		for _, arg := range e.Args {
			x, err := convertExpr(arg)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, x)
		}
		return call, nil
	}
	ref := &ast.FieldRef{Field: e.Name, Positional: make([]int, 0, len(e.Args)), Pos: pos(e.Range())}
	for _, arg := range e.Args {
		offset, err := intConstant(arg)
		if err != nil {
			return nil, errors.WithMessagef(err, "offsets of field %q", e.Name)
		}
		ref.Positional = append(ref.Positional, offset)
	}
	return ref, nil
}

func intConstant(expr hclsyntax.Expression) (int, error) {
	v, diags := expr.Value(nil)
	if diags.HasErrors() || v.IsNull() || !v.IsKnown() || !v.Type().Equals(cty.Number) {
		return 0, errors.Errorf("%s: expected an integer literal", expr.Range())
	}
	bf := v.AsBigFloat()
	if !bf.IsInt() {
		return 0, errors.Errorf("%s: %s is not an integer", expr.Range(), bf.Text('g', -1))
	}
	i, accuracy := bf.Int64()
	if accuracy != big.Exact {
		return 0, errors.Errorf("%s: offset out of range", expr.Range())
	}
	return int(i), nil
}

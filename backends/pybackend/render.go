// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pybackend

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

// style of the generated Python: explicit loops over every point, or NumPy slices.
type style int

const (
	loopStyle style = iota
	vectorStyle
)

// renderer converts IR expressions to Python source.
type renderer struct {
	s     *ir.Stencil
	style style

	// vertical is the name of the vertical dimension, empty if the stencil has none.
	vertical string

	// Interval bounds of the section being rendered, used by vectorStyle on parallel loops.
	lo, hi string
}

func newRenderer(s *ir.Stencil, st style) *renderer {
	r := &renderer{s: s, style: st}
	if v, found := s.Dimensions.Vertical(); found {
		r.vertical = v.Name
	}
	return r
}

func loopVar(dim string) string   { return strings.ToLower(dim) }
func sizeVar(dim string) string   { return "n_" + strings.ToLower(dim) }
func originVar(dim string) string { return "o_" + strings.ToLower(dim) }

var loopBuiltins = map[string]string{
	"abs": "abs", "sqrt": "math.sqrt", "exp": "math.exp", "log": "math.log",
	"sin": "math.sin", "cos": "math.cos", "tan": "math.tan",
	"floor": "math.floor", "ceil": "math.ceil", "trunc": "math.trunc",
	"min": "min", "max": "max", "pow": "math.pow",
}

var vectorBuiltins = map[string]string{
	"abs": "np.abs", "sqrt": "np.sqrt", "exp": "np.exp", "log": "np.log",
	"sin": "np.sin", "cos": "np.cos", "tan": "np.tan",
	"floor": "np.floor", "ceil": "np.ceil", "trunc": "np.trunc",
	"min": "np.minimum", "max": "np.maximum", "pow": "np.power",
}

// access renders a field access. Sequential loops index the vertical dimension with the loop
// variable, parallel loops in vectorStyle slice the whole section.
func (r *renderer) access(f *ir.FieldAccess, sequential bool) string {
	var idx []string
	for _, dim := range r.s.Dimensions {
		pos := -1
		for i, d := range f.Dims {
			if d == dim.Name {
				pos = i
			}
		}
		isVertical := dim.Name == r.vertical
		if pos < 0 {
			// Broadcast over dimensions the field doesn't have.
			if r.style == vectorStyle && (!isVertical || !sequential) {
				idx = append(idx, "np.newaxis")
			}
			continue
		}
		offset := f.Offsets[pos]
		origin := "0"
		if !f.Temporary {
			origin = originVar(dim.Name)
		}
		switch {
		case r.style == loopStyle || (isVertical && sequential):
			idx = append(idx, codegen.Index(codegen.Sum(origin, loopVar(dim.Name)), offset))
		case isVertical:
			start := codegen.Sum(origin, codegen.Index(r.lo, offset))
			end := codegen.Sum(origin, codegen.Index(r.hi, offset))
			idx = append(idx, start+":"+end)
		default:
			start := codegen.Index(origin, offset)
			idx = append(idx, fmt.Sprintf("%s:%s", start, codegen.Sum(start, sizeVar(dim.Name))))
		}
	}
	if len(idx) == 0 {
		return f.Field
	}
	return fmt.Sprintf("%s[%s]", f.Field, strings.Join(idx, ", "))
}

func (r *renderer) expr(e ir.Expr, sequential bool) (string, error) {
	switch n := e.(type) {
	case *ir.FieldAccess:
		return r.access(n, sequential), nil
	case *ir.ScalarRef:
		return n.Name, nil
	case *ir.Literal:
		if n.Type == dtypes.Bool {
			if n.Value != 0 {
				return "True", nil
			}
			return "False", nil
		}
		return codegen.FormatFloat(n.Value), nil
	case *ir.Unary:
		x, err := r.expr(n.X, sequential)
		if err != nil {
			return "", err
		}
		if n.Op == ast.OpNot {
			if r.style == vectorStyle {
				return fmt.Sprintf("np.logical_not(%s)", x), nil
			}
			return fmt.Sprintf("(not %s)", x), nil
		}
		return fmt.Sprintf("(-%s)", x), nil
	case *ir.Binary:
		x, err := r.expr(n.X, sequential)
		if err != nil {
			return "", err
		}
		y, err := r.expr(n.Y, sequential)
		if err != nil {
			return "", err
		}
		if r.style == vectorStyle {
			switch n.Op {
			case ast.OpAnd:
				return fmt.Sprintf("np.logical_and(%s, %s)", x, y), nil
			case ast.OpOr:
				return fmt.Sprintf("np.logical_or(%s, %s)", x, y), nil
			case ast.OpMod:
				return fmt.Sprintf("np.fmod(%s, %s)", x, y), nil
			}
		} else if n.Op == ast.OpMod {
			return fmt.Sprintf("math.fmod(%s, %s)", x, y), nil
		}
		return codegen.Binary(n.Op, x, y, "and", "or"), nil
	case *ir.Ternary:
		cond, err := r.expr(n.Cond, sequential)
		if err != nil {
			return "", err
		}
		then, err := r.expr(n.Then, sequential)
		if err != nil {
			return "", err
		}
		otherwise, err := r.expr(n.Else, sequential)
		if err != nil {
			return "", err
		}
		if r.style == vectorStyle {
			return fmt.Sprintf("np.where(%s, %s, %s)", cond, then, otherwise), nil
		}
		return fmt.Sprintf("(%s if %s else %s)", then, cond, otherwise), nil
	case *ir.Call:
		builtins := loopBuiltins
		if r.style == vectorStyle {
			builtins = vectorBuiltins
		}
		fn, found := builtins[n.Func]
		if !found {
			return "", errors.Errorf("function %q not supported by the Python backends", n.Func)
		}
		args := make([]string, len(n.Args))
		for i, arg := range n.Args {
			var err error
			if args[i], err = r.expr(arg, sequential); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("%s(%s)", fn, strings.Join(args, ", ")), nil
	}
	return "", errors.Errorf("unknown IR expression %T", e)
}

func (r *renderer) statement(stmt *ir.Assign, sequential bool) (codegen.Statement, error) {
	value, err := r.expr(stmt.Value, sequential)
	if err != nil {
		return codegen.Statement{}, err
	}
	return codegen.Statement{Target: r.access(stmt.Target, sequential), Value: value}, nil
}

// checkDimsOrder verifies that every field lists its dimensions in the order of the stencil
// dimensions, which the generated indexing relies on.
func checkDimsOrder(s *ir.Stencil) error {
	for _, f := range s.Fields() {
		last := -1
		for _, d := range f.Type.Dims {
			pos := s.Dimensions.Index(d.Name)
			if pos < last {
				return errors.Errorf("field %q has dimensions %v out of the stencil order %v",
					f.Name, f.Type.Dims.Names(), s.Dimensions.Names())
			}
			last = pos
		}
	}
	return nil
}

// writer accumulates indented lines of Python.
type writer struct {
	sb     strings.Builder
	indent int
}

func (w *writer) line(format string, args ...any) {
	w.sb.WriteString(strings.Repeat("    ", w.indent))
	fmt.Fprintf(&w.sb, format, args...)
	w.sb.WriteByte('\n')
}

// horizontalLoops opens one loop per horizontal dimension and returns how many were opened.
func (w *writer) horizontalLoops(s *ir.Stencil) int {
	opened := 0
	for _, d := range s.Dimensions {
		if d.IsVertical() {
			continue
		}
		w.line("for %s in range(%s):", loopVar(d.Name), sizeVar(d.Name))
		w.indent++
		opened++
	}
	return opened
}

// verticalRange renders the Python range of the vertical loop of a section.
func verticalRange(sec codegen.Section, backward bool) string {
	if backward {
		return fmt.Sprintf("range((%s) - 1, (%s) - 1, -1)", sec.Hi, sec.Lo)
	}
	return fmt.Sprintf("range(%s, %s)", sec.Lo, sec.Hi)
}

// body renders the loops of the stencil, starting at the given indentation.
func body(s *ir.Stencil, st style, indent int) (string, error) {
	if err := checkDimsOrder(s); err != nil {
		return "", err
	}
	r := newRenderer(s, st)
	verticalSize := "1"
	if r.vertical != "" {
		verticalSize = sizeVar(r.vertical)
	}
	w := &writer{indent: indent}
	for li, loop := range s.Loops {
		w.line("# computation #%d: %s", li, loop.Order)
		for _, sec := range loop.Sections {
			r.lo = codegen.Bound(sec.Interval.Start, verticalSize)
			r.hi = codegen.Bound(sec.Interval.End, verticalSize)
			w.line("# interval %s", sec.Interval)
			cs := codegen.Section{Lo: r.lo, Hi: r.hi}
			sequential := loop.Order != ast.Parallel
			if sequential && r.vertical != "" {
				// Sequential: the vertical loop is the outer one, all statements at each level.
				w.line("for %s in %s:", loopVar(r.vertical), verticalRange(cs, loop.Order == ast.Backward))
				w.indent++
				for _, stmt := range sec.Body {
					rendered, err := r.statement(stmt, true)
					if err != nil {
						return "", err
					}
					opened := 0
					if st == loopStyle {
						opened = w.horizontalLoops(s)
					}
					w.line("%s = %s", rendered.Target, rendered.Value)
					w.indent -= opened
				}
				w.indent--
				continue
			}
			// Parallel: each statement is applied to the whole section before the next one.
			for _, stmt := range sec.Body {
				rendered, err := r.statement(stmt, false)
				if err != nil {
					return "", err
				}
				opened := 0
				if st == loopStyle {
					if r.vertical != "" {
						w.line("for %s in %s:", loopVar(r.vertical), verticalRange(cs, false))
						w.indent++
						opened++
					}
					opened += w.horizontalLoops(s)
				}
				w.line("%s = %s", rendered.Target, rendered.Value)
				w.indent -= opened
			}
		}
	}
	if len(s.Loops) == 0 {
		w.line("pass")
	}
	return w.sb.String(), nil
}

// model is the data of the Python templates.
type model struct {
	Header          string
	Name            string
	Dimensions      []string
	Sizes           []string
	Origins         []string
	Params          []string
	Fields          []fieldModel
	Temporaries     []tempModel
	Origin          []int
	HaloAfter       []int
	Body            string
	ComputationPath string
}

type fieldModel struct {
	Name string
	Axes []int
}

type tempModel struct {
	Name, DType string
}

func newModel(s *ir.Stencil, header string) *model {
	m := &model{Header: header, Name: s.Name}
	for _, d := range s.Dimensions {
		m.Dimensions = append(m.Dimensions, d.Name)
		m.Sizes = append(m.Sizes, sizeVar(d.Name))
		m.Origins = append(m.Origins, originVar(d.Name))
	}
	m.Origin = make([]int, len(s.Dimensions))
	m.HaloAfter = make([]int, len(s.Dimensions))
	for _, p := range s.Params {
		m.Params = append(m.Params, p.Name)
		if !p.IsField() {
			continue
		}
		fm := fieldModel{Name: p.Name}
		for _, d := range p.Type.Dims {
			axis := s.Dimensions.Index(d.Name)
			fm.Axes = append(fm.Axes, axis)
			if d.IsVertical() {
				continue
			}
			before, after := s.Extents[p.Name].Halo(d.Name)
			m.Origin[axis] = max(m.Origin[axis], before)
			m.HaloAfter[axis] = max(m.HaloAfter[axis], after)
		}
		m.Fields = append(m.Fields, fm)
	}
	for _, tmp := range s.Temporaries {
		m.Temporaries = append(m.Temporaries, tempModel{Name: tmp.Name, DType: shapes.NumpyType(tmp.Type.DType)})
	}
	return m
}

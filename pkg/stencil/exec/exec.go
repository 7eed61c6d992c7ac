// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package exec is a reference evaluator of the stencil IR over storage arrays.
//
// It's slow, but it runs anywhere and it defines what the generated code of every backend
// computes: parallel loops evaluate each statement over the whole section before storing it,
// sequential (forward or backward) loops evaluate all statements on one vertical level at a
// time. Values are computed as float64 and rounded to the dtype of each expression.
package exec

import (
	"math"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/pkg/core/shapes"
	"github.com/gomlx/gostencil/pkg/core/storage"
	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/gomlx/gostencil/pkg/stencil/ir"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// Args of a stencil execution.
type Args struct {
	// Fields by parameter name.
	Fields map[string]*storage.Array

	// Scalars by parameter name.
	Scalars map[string]float64

	// Domain is the size of the compute domain for each stencil dimension. If nil it's
	// derived from the shapes of the fields, see DefaultDomain.
	Domain []int

	// Origin is the index, in every field, of the first point of the compute domain. If nil
	// the halo of the stencil is used, see DefaultOrigin.
	Origin []int
}

// DefaultOrigin returns the smallest origin that fits the negative offsets of every field.
func DefaultOrigin(s *ir.Stencil) []int {
	origin := make([]int, len(s.Dimensions))
	for _, p := range s.Fields() {
		for _, d := range p.Type.Dims {
			if d.IsVertical() {
				continue
			}
			before, _ := s.Extents[p.Name].Halo(d.Name)
			axis := s.Dimensions.Index(d.Name)
			origin[axis] = max(origin[axis], before)
		}
	}
	return origin
}

// DefaultDomain returns the largest domain that fits all fields, given the origin.
func DefaultDomain(s *ir.Stencil, fields map[string]*storage.Array, origin []int) []int {
	domain := make([]int, len(s.Dimensions))
	set := make([]bool, len(s.Dimensions))
	for _, p := range s.Fields() {
		array, found := fields[p.Name]
		if !found {
			continue
		}
		for pos, d := range p.Type.Dims {
			axis := s.Dimensions.Index(d.Name)
			after := 0
			if !d.IsVertical() {
				_, after = s.Extents[p.Name].Halo(d.Name)
			}
			size := array.Shape()[pos] - origin[axis] - after
			if !set[axis] || size < domain[axis] {
				domain[axis] = size
				set[axis] = true
			}
		}
	}
	for axis := range domain {
		domain[axis] = max(domain[axis], 0)
	}
	return domain
}

// evaluator holds the state of one execution.
type evaluator struct {
	s       *ir.Stencil
	args    Args
	domain  []int
	origin  []int
	temps   map[string]*temporary
	point   []int // current point of the domain
	scratch []int
}

type temporary struct {
	dtype   dtypes.DType
	values  []float64
	strides []int
}

// Run executes the stencil over the arrays in args. Fields are updated in place.
func Run(s *ir.Stencil, args Args) error {
	e := &evaluator{s: s, args: args, temps: make(map[string]*temporary)}
	if err := e.check(); err != nil {
		return errors.WithMessagef(err, "executing stencil %q", s.Name)
	}
	klog.V(2).Infof("exec %q: domain=%v origin=%v", s.Name, e.domain, e.origin)
	for _, loop := range s.Loops {
		for _, sec := range loop.Sections {
			if err := e.section(loop.Order, sec); err != nil {
				return errors.WithMessagef(err, "executing stencil %q, %s %s", s.Name, loop.Order, sec.Interval)
			}
		}
	}
	return nil
}

func (e *evaluator) check() error {
	rank := len(e.s.Dimensions)
	for _, p := range e.s.Params {
		if p.IsField() {
			array, found := e.args.Fields[p.Name]
			if !found || array == nil {
				return errors.Errorf("missing field %q", p.Name)
			}
			if array.Rank() != p.Type.Rank() {
				return errors.Wrapf(storage.ErrInvalidShape, "field %q has rank %d, expected %s", p.Name, array.Rank(), p.Type)
			}
		} else if _, found := e.args.Scalars[p.Name]; !found {
			return errors.Errorf("missing scalar %q", p.Name)
		}
	}
	e.origin = e.args.Origin
	if e.origin == nil {
		e.origin = DefaultOrigin(e.s)
	}
	e.domain = e.args.Domain
	if e.domain == nil {
		e.domain = DefaultDomain(e.s, e.args.Fields, e.origin)
	}
	if len(e.origin) != rank || len(e.domain) != rank {
		return errors.Wrapf(storage.ErrInvalidShape, "domain %v and origin %v must have rank %d", e.domain, e.origin, rank)
	}
	if err := e.checkBounds(); err != nil {
		return err
	}
	size := 1
	for _, n := range e.domain {
		size *= n
	}
	for _, tmp := range e.s.Temporaries {
		t := &temporary{dtype: tmp.Type.DType, values: make([]float64, size), strides: make([]int, rank)}
		stride := 1
		for axis := rank - 1; axis >= 0; axis-- {
			t.strides[axis] = stride
			stride *= e.domain[axis]
		}
		e.temps[tmp.Name] = t
	}
	e.point = make([]int, rank)
	return nil
}

// checkBounds verifies that every field covers the domain at the origin, including its halo.
func (e *evaluator) checkBounds() error {
	domain := make(shapes.AxisBindings, len(e.s.Dimensions))
	for axis, d := range e.s.Dimensions {
		domain[d.Name] = e.domain[axis]
	}
	for _, p := range e.s.Fields() {
		array := e.args.Fields[p.Name]
		need, err := p.Type.Shape(domain)
		if err != nil {
			return err
		}
		has, err := shapes.ExtractBindings(p.Type, array.Shape())
		if err != nil {
			return errors.Wrapf(storage.ErrInvalidShape, "field %q: %v", p.Name, err)
		}
		for pos, d := range p.Type.Dims {
			axis := e.s.Dimensions.Index(d.Name)
			before, after := 0, 0
			if !d.IsVertical() {
				before, after = e.s.Extents[p.Name].Halo(d.Name)
			}
			if e.origin[axis]-before < 0 || e.origin[axis]+need[pos]+after > has[d.Name] {
				return errors.Wrapf(storage.ErrInvalidShape,
					"field %q of shape %v is out of bounds on %s: domain %v at origin %v with halo (%d, %d)",
					p.Name, array.Shape(), d.Name, e.domain, e.origin, before, after)
			}
		}
	}
	return nil
}

// bound resolves a vertical bound against the domain.
func (e *evaluator) bound(b ast.AxisBound) int {
	if b.Level == ast.LevelStart {
		return b.Offset
	}
	vertical, found := e.s.Dimensions.Vertical()
	if !found {
		return 1 + b.Offset
	}
	return e.domain[e.s.Dimensions.Index(vertical.Name)] + b.Offset
}

// plane iterates over the horizontal points of the domain at the current vertical level.
func (e *evaluator) plane(fn func() error) error {
	var axes []int
	for axis, d := range e.s.Dimensions {
		if !d.IsVertical() {
			axes = append(axes, axis)
		}
	}
	var rec func(i int) error
	rec = func(i int) error {
		if i == len(axes) {
			return fn()
		}
		axis := axes[i]
		for idx := range e.domain[axis] {
			e.point[axis] = idx
			if err := rec(i + 1); err != nil {
				return err
			}
		}
		return nil
	}
	return rec(0)
}

func (e *evaluator) section(order ast.IterationOrder, sec *ir.Section) error {
	lo, hi := e.bound(sec.Interval.Start), e.bound(sec.Interval.End)
	vertical, hasVertical := e.s.Dimensions.Vertical()
	vAxis := -1
	if hasVertical {
		vAxis = e.s.Dimensions.Index(vertical.Name)
	}
	levels := func(fn func() error) error {
		if !hasVertical {
			return fn()
		}
		if order == ast.Backward {
			for k := hi - 1; k >= lo; k-- {
				e.point[vAxis] = k
				if err := fn(); err != nil {
					return err
				}
			}
			return nil
		}
		for k := lo; k < hi; k++ {
			e.point[vAxis] = k
			if err := fn(); err != nil {
				return err
			}
		}
		return nil
	}

	if order != ast.Parallel {
		// One level at a time: all statements on a plane, each fully evaluated before stored.
		return levels(func() error {
			for _, stmt := range sec.Body {
				if err := e.apply(stmt, func(visit func() error) error { return e.plane(visit) }); err != nil {
					return err
				}
			}
			return nil
		})
	}
	// Parallel: each statement over the whole section.
	for _, stmt := range sec.Body {
		if err := e.apply(stmt, func(visit func() error) error {
			return levels(func() error { return e.plane(visit) })
		}); err != nil {
			return err
		}
	}
	return nil
}

// apply evaluates stmt on every point visited by iterate, and then stores the results.
func (e *evaluator) apply(stmt *ir.Assign, iterate func(visit func() error) error) error {
	type pending struct {
		point []int
		value float64
	}
	var results []pending
	err := iterate(func() error {
		v, err := e.eval(stmt.Value)
		if err != nil {
			return err
		}
		results = append(results, pending{point: append([]int(nil), e.point...), value: v})
		return nil
	})
	if err != nil {
		return err
	}
	saved := e.point
	defer func() { e.point = saved }()
	for _, r := range results {
		e.point = r.point
		if err := e.store(stmt.Target, r.value); err != nil {
			return err
		}
	}
	return nil
}

// fieldIndex returns the index in the array of the field access at the current point.
func (e *evaluator) fieldIndex(f *ir.FieldAccess, array *storage.Array) ([]int, error) {
	index := e.scratch[:0]
	for pos, dim := range f.Dims {
		axis := e.s.Dimensions.Index(dim)
		idx := e.origin[axis] + e.point[axis] + f.Offsets[pos]
		if idx < 0 || idx >= array.Shape()[pos] {
			return nil, errors.Errorf("access %s at point %v is out of bounds of shape %v", ir.FormatExpr(f), e.point, array.Shape())
		}
		index = append(index, idx)
	}
	e.scratch = index
	return index, nil
}

func (e *evaluator) tempPos(f *ir.FieldAccess, t *temporary) (int, error) {
	pos := 0
	for i, dim := range f.Dims {
		axis := e.s.Dimensions.Index(dim)
		idx := e.point[axis] + f.Offsets[i]
		if idx < 0 || idx >= e.domain[axis] {
			return 0, errors.Errorf("access %s at point %v is out of the domain %v", ir.FormatExpr(f), e.point, e.domain)
		}
		pos += idx * t.strides[axis]
	}
	return pos, nil
}

func (e *evaluator) load(f *ir.FieldAccess) (float64, error) {
	if f.Temporary {
		t := e.temps[f.Field]
		pos, err := e.tempPos(f, t)
		if err != nil {
			return 0, err
		}
		return t.values[pos], nil
	}
	array := e.args.Fields[f.Field]
	index, err := e.fieldIndex(f, array)
	if err != nil {
		return 0, err
	}
	return array.AtFlat(array.FlatIndex(index...)), nil
}

func (e *evaluator) store(f *ir.FieldAccess, value float64) error {
	if f.Temporary {
		t := e.temps[f.Field]
		pos, err := e.tempPos(f, t)
		if err != nil {
			return err
		}
		t.values[pos] = Round(value, t.dtype)
		return nil
	}
	array := e.args.Fields[f.Field]
	index, err := e.fieldIndex(f, array)
	if err != nil {
		return err
	}
	array.SetFlat(array.FlatIndex(index...), value)
	return nil
}

func (e *evaluator) eval(expr ir.Expr) (float64, error) {
	switch n := expr.(type) {
	case *ir.FieldAccess:
		return e.load(n)
	case *ir.ScalarRef:
		return Round(e.args.Scalars[n.Name], n.Type), nil
	case *ir.Literal:
		return Round(n.Value, n.Type), nil
	case *ir.Unary:
		x, err := e.eval(n.X)
		if err != nil {
			return 0, err
		}
		return Round(n.Op.Apply(x), n.Type), nil
	case *ir.Binary:
		x, err := e.eval(n.X)
		if err != nil {
			return 0, err
		}
		y, err := e.eval(n.Y)
		if err != nil {
			return 0, err
		}
		return Round(n.Op.Apply(x, y), n.Type), nil
	case *ir.Ternary:
		cond, err := e.eval(n.Cond)
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return e.eval(n.Then)
		}
		return e.eval(n.Else)
	case *ir.Call:
		builtin, found := ast.Builtins[n.Func]
		if !found {
			return 0, errors.Errorf("unknown function %q", n.Func)
		}
		values := make([]float64, len(n.Args))
		for i, arg := range n.Args {
			var err error
			if values[i], err = e.eval(arg); err != nil {
				return 0, err
			}
		}
		return Round(builtin.Fn(values...), n.Type), nil
	}
	return 0, errors.Errorf("unknown IR expression %T", expr)
}

// Round converts v to the precision of dtype, keeping it as a float64.
func Round(v float64, dtype dtypes.DType) float64 {
	switch dtype {
	case dtypes.Bool:
		if v != 0 {
			return 1
		}
		return 0
	case dtypes.Int32:
		return float64(int32(v))
	case dtypes.Int64:
		return math.Trunc(v)
	case dtypes.Float32:
		return float64(float32(v))
	case dtypes.Float16:
		return float64(float16.Fromfloat32(float32(v)).Float32())
	}
	return v
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/pkg/core/shapes"
	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/pkg/errors"
)

var (
	// ErrUnboundName is returned when an expression references a name that is neither a
	// parameter nor a temporary.
	ErrUnboundName = errors.New("unbound name")

	// ErrUnsupported is returned for constructs the IR can't represent.
	ErrUnsupported = errors.New("unsupported construct")
)

type lowerer struct {
	def    *ast.Definition
	s      *Stencil
	params map[string]*Param
	temps  map[string]*Temporary
	reads  map[string]bool
	writes map[string]bool
}

// Lower converts a definition, already processed by the system passes, into IR and validates it.
func Lower(def *ast.Definition) (*Stencil, error) {
	l := &lowerer{
		def: def,
		s: &Stencil{
			Name:        def.Name,
			Dimensions:  def.KnownDimensions(),
			Extents:     make(map[string]Extent),
			Fingerprint: ast.Fingerprint(def),
		},
		params: make(map[string]*Param),
		temps:  make(map[string]*Temporary),
		reads:  make(map[string]bool),
		writes: make(map[string]bool),
	}
	if def.Name == "" {
		return nil, errors.New("stencil definition has no name")
	}
	if err := l.lowerParams(); err != nil {
		return nil, err
	}
	for _, comp := range def.Computations {
		loop := &VerticalLoop{Order: comp.Order}
		for _, block := range comp.Intervals {
			section := &Section{Interval: block.Interval}
			for _, stmt := range block.Body {
				assign, err := l.lowerAssign(stmt)
				if err != nil {
					return nil, errors.WithMessagef(err, "stencil %q, statement at %s", def.Name, stmt.Pos)
				}
				section.Body = append(section.Body, assign)
			}
			loop.Sections = append(loop.Sections, section)
		}
		l.s.Loops = append(l.s.Loops, loop)
	}
	for _, p := range l.s.Params {
		if !p.IsField() {
			continue
		}
		switch {
		case l.reads[p.Name] && l.writes[p.Name]:
			p.Intent = InOut
		case l.writes[p.Name]:
			p.Intent = Out
		default:
			p.Intent = In
		}
	}
	l.s.ForEachAssign(func(_ *VerticalLoop, _ *Section, stmt *Assign) {
		Walk(stmt.Value, settleDType)
	})
	if err := Validate(l.s); err != nil {
		return nil, err
	}
	return l.s, nil
}

func (l *lowerer) lowerParams() error {
	known := l.s.Dimensions
	for _, p := range l.def.Params {
		if _, dup := l.params[p.Name]; dup {
			return errors.Errorf("parameter %q defined more than once in stencil %q", p.Name, l.def.Name)
		}
		if !shapes.IsSupportedDType(p.DType) {
			return errors.Errorf("parameter %q of stencil %q has unsupported dtype %s", p.Name, l.def.Name, p.DType)
		}
		param := &Param{Name: p.Name, Kind: p.Kind, DType: p.DType}
		if p.Kind == ast.FieldParam {
			dims := make([]shapes.Dimension, 0, len(p.Dims))
			for _, name := range p.Dims {
				dim, found := known.ByName(name)
				if !found {
					return errors.Errorf("field %q of stencil %q uses unknown dimension %q", p.Name, l.def.Name, name)
				}
				dims = append(dims, dim)
			}
			ft, err := shapes.MakeFieldType(p.DType, dims...)
			if err != nil {
				return errors.WithMessagef(err, "field %q of stencil %q", p.Name, l.def.Name)
			}
			param.Type = ft
			l.s.Extents[p.Name] = zeroExtent(ft)
		}
		l.params[p.Name] = param
		l.s.Params = append(l.s.Params, param)
	}
	return nil
}

func zeroExtent(ft shapes.FieldType) Extent {
	e := make(Extent, len(ft.Dims))
	for i, d := range ft.Dims {
		e[i].Dim = d.Name
	}
	return e
}

func (l *lowerer) lowerAssign(stmt *ast.Assign) (*Assign, error) {
	value, err := l.lowerExpr(stmt.Value)
	if err != nil {
		return nil, err
	}
	name := stmt.Target.Field
	if p, found := l.params[name]; found && !p.IsField() {
		return nil, errors.Errorf("cannot assign to scalar parameter %q", name)
	}
	if _, isParam := l.params[name]; !isParam {
		if _, found := l.temps[name]; !found {
			dtype := value.DType()
			if dtype == dtypes.InvalidDType {
				dtype = dtypes.Float64
			}
			ft, err := shapes.MakeFieldType(dtype, l.s.Dimensions...)
			if err != nil {
				return nil, err
			}
			tmp := &Temporary{Name: name, Type: ft}
			l.temps[name] = tmp
			l.s.Temporaries = append(l.s.Temporaries, tmp)
			l.s.Extents[name] = zeroExtent(ft)
		}
	}
	target, err := l.lowerFieldRef(stmt.Target, false)
	if err != nil {
		return nil, err
	}
	l.writes[name] = true
	return &Assign{Target: target, Value: value}, nil
}

func (l *lowerer) lowerFieldRef(ref *ast.FieldRef, read bool) (*FieldAccess, error) {
	var ft shapes.FieldType
	isTemp := false
	if p, found := l.params[ref.Field]; found {
		if !p.IsField() {
			return nil, errors.Errorf("scalar parameter %q at %s accessed as a field", ref.Field, ref.Pos)
		}
		ft = p.Type
	} else if tmp, found := l.temps[ref.Field]; found {
		ft = tmp.Type
		isTemp = true
	} else {
		return nil, errors.Wrapf(ErrUnboundName, "field %q at %s", ref.Field, ref.Pos)
	}
	if len(ref.Positional) > 0 {
		return nil, errors.Errorf("access to field %q at %s has unresolved positional offsets", ref.Field, ref.Pos)
	}
	access := &FieldAccess{
		Field:     ref.Field,
		Offsets:   make([]int, ft.Rank()),
		Dims:      make([]string, ft.Rank()),
		Temporary: isTemp,
		Type:      ft.DType,
	}
	for dim := range ref.Offsets {
		if !ft.HasDim(dim) {
			return nil, errors.Errorf("access to field %q at %s uses dimension %q not in %s", ref.Field, ref.Pos, dim, ft)
		}
	}
	for i, d := range ft.Dims {
		access.Dims[i] = d.Name
		access.Offsets[i] = ref.Offsets[d.Name]
		if isTemp && d.IsHorizontal() && access.Offsets[i] != 0 {
			return nil, errors.Wrapf(ErrUnsupported, "horizontal offset %s%+d on temporary %q at %s",
				d.Name, access.Offsets[i], ref.Field, ref.Pos)
		}
	}
	if read {
		l.reads[ref.Field] = true
		extent := l.s.Extents[ref.Field]
		for i := range extent {
			extent[i].Min = min(extent[i].Min, access.Offsets[i])
			extent[i].Max = max(extent[i].Max, access.Offsets[i])
		}
	}
	return access, nil
}

func (l *lowerer) lowerExpr(e ast.Expr) (Expr, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return &Literal{Value: n.Value, Type: n.DType}, nil
	case *ast.Name:
		if p, found := l.params[n.Ident]; found {
			if p.IsField() {
				return l.lowerFieldRef(&ast.FieldRef{Field: n.Ident, Pos: n.Pos}, true)
			}
			return &ScalarRef{Name: p.Name, Type: p.DType}, nil
		}
		if _, found := l.temps[n.Ident]; found {
			return l.lowerFieldRef(&ast.FieldRef{Field: n.Ident, Pos: n.Pos}, true)
		}
		if value, found := l.def.Constants[n.Ident]; found {
			return &Literal{Value: value}, nil
		}
		return nil, errors.Wrapf(ErrUnboundName, "%q at %s", n.Ident, n.Pos)
	case *ast.FieldRef:
		return l.lowerFieldRef(n, true)
	case *ast.Unary:
		x, err := l.lowerExpr(n.X)
		if err != nil {
			return nil, err
		}
		dtype := x.DType()
		if n.Op == ast.OpNot {
			dtype = dtypes.Bool
		}
		return &Unary{Op: n.Op, X: x, Type: dtype}, nil
	case *ast.Binary:
		x, err := l.lowerExpr(n.X)
		if err != nil {
			return nil, err
		}
		y, err := l.lowerExpr(n.Y)
		if err != nil {
			return nil, err
		}
		adoptDType(x, y.DType())
		adoptDType(y, x.DType())
		dtype := promote(x.DType(), y.DType())
		if n.Op.IsComparison() || n.Op.IsLogical() {
			dtype = dtypes.Bool
		}
		return &Binary{Op: n.Op, X: x, Y: y, Type: dtype}, nil
	case *ast.Ternary:
		cond, err := l.lowerExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := l.lowerExpr(n.Then)
		if err != nil {
			return nil, err
		}
		otherwise, err := l.lowerExpr(n.Else)
		if err != nil {
			return nil, err
		}
		return &Ternary{Cond: cond, Then: then, Else: otherwise, Type: promote(then.DType(), otherwise.DType())}, nil
	case *ast.Call:
		builtin, found := ast.Builtins[n.Func]
		if !found {
			return nil, errors.Wrapf(ErrUnboundName, "function %q at %s", n.Func, n.Pos)
		}
		if len(n.Args) != builtin.Arity {
			return nil, errors.Errorf("function %q at %s takes %d arguments, got %d", n.Func, n.Pos, builtin.Arity, len(n.Args))
		}
		call := &Call{Func: n.Func}
		for _, arg := range n.Args {
			x, err := l.lowerExpr(arg)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, x)
			call.Type = promote(call.Type, x.DType())
		}
		return call, nil
	case nil:
		return nil, errors.New("missing expression")
	}
	return nil, errors.Errorf("unknown expression node %T", e)
}

var promotionRank = map[dtypes.DType]int{
	dtypes.Bool:    1,
	dtypes.Int32:   2,
	dtypes.Int64:   3,
	dtypes.Float16: 4,
	dtypes.Float32: 5,
	dtypes.Float64: 6,
}

// promote returns the dtype of a binary operation on values of dtypes a and b.
// InvalidDType (untyped literals) takes the type of the other operand.
func promote(a, b dtypes.DType) dtypes.DType {
	if promotionRank[b] > promotionRank[a] {
		return b
	}
	return a
}

// adoptDType gives an untyped literal the dtype of the other operand.
func adoptDType(e Expr, dtype dtypes.DType) {
	if lit, ok := e.(*Literal); ok && lit.Type == dtypes.InvalidDType && dtype != dtypes.Bool {
		lit.Type = dtype
	}
}

func settleDType(e Expr) {
	switch n := e.(type) {
	case *Literal:
		if n.Type == dtypes.InvalidDType {
			n.Type = dtypes.Float64
		}
	case *Unary:
		if n.Type == dtypes.InvalidDType {
			n.Type = dtypes.Float64
		}
	case *Binary:
		if n.Type == dtypes.InvalidDType {
			n.Type = dtypes.Float64
		}
	case *Ternary:
		if n.Type == dtypes.InvalidDType {
			n.Type = dtypes.Float64
		}
	case *Call:
		if n.Type == dtypes.InvalidDType {
			n.Type = dtypes.Float64
		}
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Validate checks the consistency of the IR and returns all problems found, aggregated.
//
// It checks that:
//
//   - Parameter and temporary names are unique.
//   - Every name is bound to a parameter or temporary, and scalars are not accessed as fields.
//   - Assignments are made at the center point.
//   - Vertical intervals are not empty when both bounds refer to the same level marker.
//   - In PARALLEL computations, a field written is not read with a vertical offset.
func Validate(s *Stencil) error {
	var result *multierror.Error
	names := make(map[string]bool)
	for _, p := range s.Params {
		if names[p.Name] {
			result = multierror.Append(result, errors.Errorf("parameter %q defined more than once", p.Name))
		}
		names[p.Name] = true
	}
	for _, tmp := range s.Temporaries {
		if names[tmp.Name] {
			result = multierror.Append(result, errors.Errorf("temporary %q shadows another name", tmp.Name))
		}
		names[tmp.Name] = true
	}

	isField := func(name string) bool {
		if p := s.Param(name); p != nil {
			return p.IsField()
		}
		return s.Temporary(name) != nil
	}
	vertical, hasVertical := s.Dimensions.Vertical()
	for li, loop := range s.Loops {
		written := make(map[string]bool)
		for _, section := range loop.Sections {
			iv := section.Interval
			if iv.Start.Level == iv.End.Level && iv.Start.Offset >= iv.End.Offset {
				result = multierror.Append(result, errors.Errorf("computation #%d has empty interval %s", li, iv))
			}
			for _, stmt := range section.Body {
				written[stmt.Target.Field] = true
			}
		}
		s.forEachInLoop(loop, func(stmt *Assign) {
			if !isField(stmt.Target.Field) {
				result = multierror.Append(result, errors.Wrapf(ErrUnboundName, "assignment to %q", stmt.Target.Field))
			}
			if !stmt.Target.IsCenter() {
				result = multierror.Append(result, errors.Errorf("assignment to %q must be at zero offset, got %s",
					stmt.Target.Field, FormatExpr(stmt.Target)))
			}
			Walk(stmt.Value, func(e Expr) {
				switch n := e.(type) {
				case *FieldAccess:
					if !isField(n.Field) {
						result = multierror.Append(result, errors.Wrapf(ErrUnboundName, "field %q", n.Field))
						return
					}
					if loop.Order == ast.Parallel && hasVertical && written[n.Field] && n.Offset(vertical.Name) != 0 {
						result = multierror.Append(result, errors.Errorf(
							"field %q is written and read with a vertical offset in a %s computation", n.Field, loop.Order))
					}
				case *ScalarRef:
					if p := s.Param(n.Name); p == nil || p.IsField() {
						result = multierror.Append(result, errors.Wrapf(ErrUnboundName, "scalar %q", n.Name))
					}
				}
			})
		})
	}
	if result != nil {
		return errors.Wrapf(result.ErrorOrNil(), "invalid IR for stencil %q", s.Name)
	}
	return nil
}

func (s *Stencil) forEachInLoop(loop *VerticalLoop, fn func(*Assign)) {
	for _, section := range loop.Sections {
		for _, stmt := range section.Body {
			fn(stmt)
		}
	}
}

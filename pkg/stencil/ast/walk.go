// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ast

import "github.com/pkg/errors"

// Inspect traverses the expression in pre-order, calling fn for each node.
// If fn returns false, the children of the node are not visited.
func Inspect(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Unary:
		Inspect(n.X, fn)
	case *Binary:
		Inspect(n.X, fn)
		Inspect(n.Y, fn)
	case *Ternary:
		Inspect(n.Cond, fn)
		Inspect(n.Then, fn)
		Inspect(n.Else, fn)
	case *Call:
		for _, arg := range n.Args {
			Inspect(arg, fn)
		}
	}
}

// RewriteFn transforms one node, whose children were already rewritten.
// Returning the node itself leaves it unchanged.
type RewriteFn func(Expr) (Expr, error)

// Rewrite transforms the expression bottom-up: children first, then fn is called on the node
// holding the rewritten children. The nodes of e are updated in place, so callers working on
// shared trees must Clone them first.
func Rewrite(e Expr, fn RewriteFn) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	var err error
	switch n := e.(type) {
	case *Unary:
		if n.X, err = Rewrite(n.X, fn); err != nil {
			return nil, err
		}
	case *Binary:
		if n.X, err = Rewrite(n.X, fn); err != nil {
			return nil, err
		}
		if n.Y, err = Rewrite(n.Y, fn); err != nil {
			return nil, err
		}
	case *Ternary:
		if n.Cond, err = Rewrite(n.Cond, fn); err != nil {
			return nil, err
		}
		if n.Then, err = Rewrite(n.Then, fn); err != nil {
			return nil, err
		}
		if n.Else, err = Rewrite(n.Else, fn); err != nil {
			return nil, err
		}
	case *Call:
		for i, arg := range n.Args {
			if n.Args[i], err = Rewrite(arg, fn); err != nil {
				return nil, err
			}
		}
	case *Literal, *Name, *FieldRef:
	default:
		return nil, errors.Errorf("ast.Rewrite: unknown node type %T", e)
	}
	return fn(e)
}

// RewriteDefinition applies Rewrite to the value of every assignment of the definition.
func RewriteDefinition(def *Definition, fn RewriteFn) error {
	return def.ForEachAssign(func(stmt *Assign) error {
		value, err := Rewrite(stmt.Value, fn)
		if err != nil {
			return errors.WithMessagef(err, "statement at %s", stmt.Pos)
		}
		stmt.Value = value
		return nil
	})
}

// FieldRefs returns all field accesses of an expression, in pre-order.
func FieldRefs(e Expr) []*FieldRef {
	var refs []*FieldRef
	Inspect(e, func(n Expr) bool {
		if ref, ok := n.(*FieldRef); ok {
			refs = append(refs, ref)
		}
		return true
	})
	return refs
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ast

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
)

// Print returns the canonical text form of the definition.
//
// Two definitions with the same canonical form are behaviorally equivalent: positions and the
// source text are not printed, maps are printed in sorted order, and binary expressions are
// fully parenthesized.
func Print(def *Definition) string {
	var sb strings.Builder
	w := func(format string, args ...any) { fmt.Fprintf(&sb, format, args...) }
	w("stencil %s\n", def.Name)
	for _, d := range def.KnownDimensions() {
		w("dimension %s %s\n", d.Name, d.Kind)
	}
	for _, p := range def.Params {
		if p.Kind == ScalarParam {
			w("scalar %s %s\n", p.Name, p.DType)
		} else {
			w("field %s %s [%s]\n", p.Name, p.DType, strings.Join(p.Dims, ", "))
		}
	}
	names := make([]string, 0, len(def.Constants))
	for name := range def.Constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w("constant %s = %s\n", name, formatFloat(def.Constants[name]))
	}
	for _, comp := range def.Computations {
		w("computation %s\n", comp.Order)
		for _, block := range comp.Intervals {
			w("  interval %s\n", block.Interval)
			for _, stmt := range block.Body {
				w("    %s = %s\n", PrintExpr(stmt.Target), PrintExpr(stmt.Value))
			}
		}
	}
	return sb.String()
}

// PrintExpr returns the canonical text form of an expression.
func PrintExpr(e Expr) string {
	switch n := e.(type) {
	case nil:
		return "<nil>"
	case *Literal:
		if n.DType == dtypes.Bool {
			if n.Value != 0 {
				return "true"
			}
			return "false"
		}
		if n.DType == dtypes.InvalidDType {
			return formatFloat(n.Value)
		}
		return fmt.Sprintf("%s:%s", formatFloat(n.Value), n.DType)
	case *Name:
		return n.Ident
	case *FieldRef:
		return printFieldRef(n)
	case *Unary:
		if n.Op == OpNot {
			return fmt.Sprintf("(not %s)", PrintExpr(n.X))
		}
		return fmt.Sprintf("(-%s)", PrintExpr(n.X))
	case *Binary:
		return fmt.Sprintf("(%s %s %s)", PrintExpr(n.X), n.Op, PrintExpr(n.Y))
	case *Ternary:
		return fmt.Sprintf("(%s if %s else %s)", PrintExpr(n.Then), PrintExpr(n.Cond), PrintExpr(n.Else))
	case *Call:
		args := make([]string, len(n.Args))
		for i, arg := range n.Args {
			args[i] = PrintExpr(arg)
		}
		return fmt.Sprintf("%s(%s)", n.Func, strings.Join(args, ", "))
	}
	return fmt.Sprintf("<unknown %T>", e)
}

func printFieldRef(ref *FieldRef) string {
	var parts []string
	for _, p := range ref.Positional {
		parts = append(parts, strconv.Itoa(p))
	}
	dims := make([]string, 0, len(ref.Offsets))
	for dim := range ref.Offsets {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	for _, dim := range dims {
		parts = append(parts, fmt.Sprintf("%s%+d", dim, ref.Offsets[dim]))
	}
	if len(parts) == 0 {
		return ref.Field
	}
	return fmt.Sprintf("%s[%s]", ref.Field, strings.Join(parts, ", "))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

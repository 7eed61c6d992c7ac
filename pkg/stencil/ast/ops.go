// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ast

import (
	"fmt"
	"math"
	"sort"
)

var binarySymbols = map[BinaryOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%", OpPow: "**",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpAnd: "and", OpOr: "or",
}

// String returns the operator symbol.
func (op BinaryOp) String() string {
	if s, found := binarySymbols[op]; found {
		return s
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// IsComparison returns whether the operator yields a boolean from two numbers.
func (op BinaryOp) IsComparison() bool { return op >= OpEq && op <= OpGe }

// IsLogical returns whether the operator combines two booleans.
func (op BinaryOp) IsLogical() bool { return op == OpAnd || op == OpOr }

// String returns the operator symbol.
func (op UnaryOp) String() string {
	if op == OpNot {
		return "not"
	}
	return "-"
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Apply evaluates the operator on float64 values. Booleans are 0 or 1.
func (op BinaryOp) Apply(x, y float64) float64 {
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		return x / y
	case OpMod:
		return math.Mod(x, y)
	case OpPow:
		return math.Pow(x, y)
	case OpEq:
		return boolValue(x == y)
	case OpNe:
		return boolValue(x != y)
	case OpLt:
		return boolValue(x < y)
	case OpLe:
		return boolValue(x <= y)
	case OpGt:
		return boolValue(x > y)
	case OpGe:
		return boolValue(x >= y)
	case OpAnd:
		return boolValue(x != 0 && y != 0)
	case OpOr:
		return boolValue(x != 0 || y != 0)
	}
	panic(fmt.Sprintf("unknown binary operator %d", int(op)))
}

// Apply evaluates the unary operator.
func (op UnaryOp) Apply(x float64) float64 {
	if op == OpNot {
		return boolValue(x == 0)
	}
	return -x
}

// Builtin is a math function callable from stencil expressions.
type Builtin struct {
	Arity int
	Fn    func(args ...float64) float64
}

// Builtins available to stencil expressions, by name.
var Builtins = map[string]Builtin{
	"abs":   {1, func(a ...float64) float64 { return math.Abs(a[0]) }},
	"sqrt":  {1, func(a ...float64) float64 { return math.Sqrt(a[0]) }},
	"exp":   {1, func(a ...float64) float64 { return math.Exp(a[0]) }},
	"log":   {1, func(a ...float64) float64 { return math.Log(a[0]) }},
	"sin":   {1, func(a ...float64) float64 { return math.Sin(a[0]) }},
	"cos":   {1, func(a ...float64) float64 { return math.Cos(a[0]) }},
	"tan":   {1, func(a ...float64) float64 { return math.Tan(a[0]) }},
	"floor": {1, func(a ...float64) float64 { return math.Floor(a[0]) }},
	"ceil":  {1, func(a ...float64) float64 { return math.Ceil(a[0]) }},
	"trunc": {1, func(a ...float64) float64 { return math.Trunc(a[0]) }},
	"min":   {2, func(a ...float64) float64 { return math.Min(a[0], a[1]) }},
	"max":   {2, func(a ...float64) float64 { return math.Max(a[0], a[1]) }},
	"pow":   {2, func(a ...float64) float64 { return math.Pow(a[0], a[1]) }},
}

// BuiltinNames returns the sorted names of the builtins.
func BuiltinNames() []string {
	names := make([]string, 0, len(Builtins))
	for name := range Builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package codegen holds the helpers shared by the code generators of the backends: template
// execution, source formatting and the description of loops over the IR.
package codegen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/gomlx/gostencil/pkg/stencil/ir"
	"github.com/pkg/errors"
)

// Render executes the template with data.
func Render(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", errors.Wrapf(err, "failed to generate %s", tmpl.Name())
	}
	return sb.String(), nil
}

var (
	trailingSpaces = regexp.MustCompile(`(?m)[ \t]+$`)
	blankLines     = regexp.MustCompile(`\n{3,}`)
)

// Format normalizes generated source: trailing spaces are removed, runs of blank lines are
// collapsed into one, and the text ends with exactly one newline.
func Format(src string) string {
	src = trailingSpaces.ReplaceAllString(src, "")
	src = blankLines.ReplaceAllString(src, "\n\n")
	return strings.TrimLeft(strings.TrimRight(src, "\n"), "\n") + "\n"
}

// Finish applies Format if requested, otherwise it just makes sure the text ends in a newline.
func Finish(src string, format bool) string {
	if format {
		return Format(src)
	}
	if !strings.HasSuffix(src, "\n") {
		src += "\n"
	}
	return src
}

// Header returns the "generated file" comment at the top of every artifact, using the given
// line comment prefix (e.g. "#" or "//").
func Header(comment, stencil, backend, fingerprint string) string {
	short := fingerprint
	if len(short) > 16 {
		short = short[:16]
	}
	return fmt.Sprintf("%s Generated by gostencil for stencil %q, backend %q. Don't edit it directly.\n%s Fingerprint: %s\n",
		comment, stencil, backend, comment, short)
}

// FormatFloat returns the shortest representation of v that parses back to the same value,
// always with a decimal point or exponent so it's read as floating point.
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// Bound renders a vertical bound as an expression, given the name of the variable holding the
// size of the vertical domain.
func Bound(b ast.AxisBound, size string) string {
	if b.Level == ast.LevelStart {
		return strconv.Itoa(b.Offset)
	}
	switch {
	case b.Offset == 0:
		return size
	case b.Offset > 0:
		return fmt.Sprintf("%s + %d", size, b.Offset)
	default:
		return fmt.Sprintf("%s - %d", size, -b.Offset)
	}
}

// Index renders "base + offset", simplifying zero offsets and a zero base.
func Index(base string, offset int) string {
	switch {
	case base == "0" || base == "":
		return strconv.Itoa(offset)
	case offset == 0:
		return base
	case offset > 0:
		return fmt.Sprintf("%s + %d", base, offset)
	default:
		return fmt.Sprintf("%s - %d", base, -offset)
	}
}

// Sum renders "a + b", dropping zero terms.
func Sum(a, b string) string {
	switch {
	case b == "0" || b == "":
		return a
	case a == "0" || a == "":
		return b
	case strings.HasPrefix(b, "-"):
		return a + " - " + b[1:]
	}
	return a + " + " + b
}

// Binary renders a binary expression given the rendered operands and the symbols of the
// target language for logical operators.
func Binary(op ast.BinaryOp, x, y string, and, or string) string {
	switch op {
	case ast.OpAnd:
		return fmt.Sprintf("(%s %s %s)", x, and, y)
	case ast.OpOr:
		return fmt.Sprintf("(%s %s %s)", x, or, y)
	}
	return fmt.Sprintf("(%s %s %s)", x, op, y)
}

// Loop describes the vertical loops of a stencil in the form used by the templates.
type Loop struct {
	Order      ast.IterationOrder
	Sequential bool
	Backward   bool
	Sections   []Section
}

// Section of a Loop, with its rendered bounds and statements.
type Section struct {
	Lo, Hi     string
	Interval   string
	Statements []Statement
}

// Statement is a rendered assignment.
type Statement struct {
	Target, Value string
}

// StatementRenderer renders an assignment in the target language.
type StatementRenderer func(stmt *ir.Assign, sequential bool) (Statement, error)

// Loops describes the loops of s, with the statements rendered by render and the vertical
// bounds rendered relative to the variable named verticalSize.
func Loops(s *ir.Stencil, verticalSize string, render StatementRenderer) ([]Loop, error) {
	loops := make([]Loop, 0, len(s.Loops))
	for _, l := range s.Loops {
		loop := Loop{
			Order:      l.Order,
			Sequential: l.Order != ast.Parallel,
			Backward:   l.Order == ast.Backward,
		}
		for _, sec := range l.Sections {
			section := Section{
				Lo:       Bound(sec.Interval.Start, verticalSize),
				Hi:       Bound(sec.Interval.End, verticalSize),
				Interval: sec.Interval.String(),
			}
			for _, stmt := range sec.Body {
				rendered, err := render(stmt, loop.Sequential)
				if err != nil {
					return nil, err
				}
				section.Statements = append(section.Statements, rendered)
			}
			loop.Sections = append(loop.Sections, section)
		}
		loops = append(loops, loop)
	}
	return loops, nil
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtbackend

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gostencil/backends"
	"github.com/gomlx/gostencil/backends/codegen"
	"github.com/gomlx/gostencil/pkg/stencil/ir"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
)

// model is the data of the C++/CUDA templates.
type model struct {
	Header    string
	Backend   string
	Namespace string
	ArgsType  string
	Module    string
	Rank      int
	CUDA      bool

	Dims        []dimModel
	Fields      []fieldModel
	Scalars     []scalarModel
	Temporaries []tempModel
	Body        string
	Kernels     string

	BlockX, BlockY int
}

type dimModel struct {
	Name, Size string
	Index      int
}

type fieldModel struct {
	Name, CType string
	Rank        int
	Axes        []int
}

type scalarModel struct {
	Name, CType string
}

type tempModel struct {
	Name, CType, Strides, Size string
	Rank                       int
}

func newModel(flavor *Backend, req *backends.Request) (*model, error) {
	s := req.Stencil
	name := req.Name()
	m := &model{
		Header:    codegen.Header("//", name, flavor.desc.Name(), s.Fingerprint),
		Backend:   flavor.desc.Name(),
		Namespace: strcase.ToSnake(name),
		ArgsType:  strcase.ToCamel(name) + "Args",
		Module:    strcase.ToSnake(name) + "_m",
		Rank:      len(s.Dimensions),
	}
	for i, d := range s.Dimensions {
		m.Dims = append(m.Dims, dimModel{Name: d.Name, Size: sizeVar(d.Name), Index: i})
	}
	for _, p := range s.Params {
		if p.DType == dtypes.Float16 && flavor.desc.ComputationLanguage() == backends.Cpp {
			return nil, errors.Errorf("backend %s doesn't support float16 parameter %q", flavor.desc.Name(), p.Name)
		}
		if !p.IsField() {
			m.Scalars = append(m.Scalars, scalarModel{Name: p.Name, CType: cppType(p.DType)})
			continue
		}
		fm := fieldModel{Name: p.Name, CType: cppType(p.DType), Rank: p.Type.Rank()}
		for _, d := range p.Type.Dims {
			fm.Axes = append(fm.Axes, s.Dimensions.Index(d.Name))
		}
		m.Fields = append(m.Fields, fm)
	}
	for _, tmp := range s.Temporaries {
		strides := make([]string, len(s.Dimensions))
		for i := range s.Dimensions {
			factors := []string{}
			for _, d := range s.Dimensions[i+1:] {
				factors = append(factors, sizeVar(d.Name))
			}
			strides[i] = "1"
			if len(factors) > 0 {
				strides[i] = strings.Join(factors, " * ")
			}
		}
		sizes := make([]string, len(s.Dimensions))
		for i, d := range s.Dimensions {
			sizes[i] = sizeVar(d.Name)
		}
		m.Temporaries = append(m.Temporaries, tempModel{
			Name:    tmp.Name,
			CType:   cppType(tmp.Type.DType),
			Strides: strings.Join(strides, ", "),
			Size:    strings.Join(sizes, " * "),
			Rank:    len(s.Dimensions),
		})
	}
	return m, nil
}

// loopOrder returns the dimensions of the stencil from the outermost loop to the innermost,
// following the layout preference of the backend: the fastest axis in memory is the innermost.
func loopOrder(flavor *Backend, s *ir.Stencil) []string {
	var axes strings.Builder
	for _, d := range s.Dimensions {
		axes.WriteString(d.Letter())
	}
	ranks := flavor.desc.StorageInfo().LayoutMap(axes.String())
	order := s.Dimensions.Names()
	slices.SortStableFunc(order, func(a, b string) int {
		return ranks[s.Dimensions.Index(a)] - ranks[s.Dimensions.Index(b)]
	})
	return order
}

// writer accumulates indented lines of C++.
type writer struct {
	sb     strings.Builder
	indent int
}

func (w *writer) line(format string, args ...any) {
	w.sb.WriteString(strings.Repeat("    ", w.indent))
	fmt.Fprintf(&w.sb, format, args...)
	w.sb.WriteByte('\n')
}

func (w *writer) open(format string, args ...any) {
	w.line(format+" {", args...)
	w.indent++
}

func (w *writer) close() {
	w.indent--
	w.line("}")
}

func (w *writer) forLoop(dim, lo, hi string, backward bool) {
	v := loopVar(dim)
	if backward {
		w.open("for (int %s = (%s) - 1; %s >= %s; --%s)", v, hi, v, lo, v)
		return
	}
	w.open("for (int %s = %s; %s < %s; ++%s)", v, lo, v, hi, v)
}

// cpuBody renders the loops of the stencil for the C++ backends.
func cpuBody(flavor *Backend, s *ir.Stencil, r *renderer, openMP bool) (string, error) {
	verticalSize := "1"
	vertical, hasVertical := s.Dimensions.Vertical()
	if hasVertical {
		verticalSize = sizeVar(vertical.Name)
	}
	loops, err := codegen.Loops(s, verticalSize, r.statement)
	if err != nil {
		return "", err
	}
	order := loopOrder(flavor, s)
	w := &writer{indent: 1}
	pragma := func() {
		if openMP {
			w.line("#pragma omp parallel for")
		}
	}
	horizontal := func(stmt codegen.Statement) {
		opened := 0
		for _, dim := range order {
			if hasVertical && dim == vertical.Name {
				continue
			}
			if opened == 0 {
				pragma()
			}
			w.forLoop(dim, "0", sizeVar(dim), false)
			opened++
		}
		w.line("%s = %s;", stmt.Target, stmt.Value)
		for range opened {
			w.close()
		}
	}
	for li, loop := range loops {
		w.line("// computation #%d: %s", li, loop.Order)
		for _, sec := range loop.Sections {
			w.line("// interval %s", sec.Interval)
			if loop.Sequential && hasVertical {
				w.forLoop(vertical.Name, sec.Lo, sec.Hi, loop.Backward)
				for _, stmt := range sec.Statements {
					horizontal(stmt)
				}
				w.close()
				continue
			}
			for _, stmt := range sec.Statements {
				pragma()
				for _, dim := range order {
					if hasVertical && dim == vertical.Name {
						w.forLoop(dim, sec.Lo, sec.Hi, false)
					} else {
						w.forLoop(dim, "0", sizeVar(dim), false)
					}
				}
				w.line("%s = %s;", stmt.Target, stmt.Value)
				for range order {
					w.close()
				}
			}
		}
	}
	return w.sb.String(), nil
}

// cudaBody renders the kernels (one per parallel statement, one per sequential section) and
// the body of run() that launches them.
func cudaBody(flavor *Backend, s *ir.Stencil, m *model, r *renderer) (kernels, launches string, err error) {
	verticalSize := "1"
	vertical, hasVertical := s.Dimensions.Vertical()
	if hasVertical {
		verticalSize = sizeVar(vertical.Name)
	}
	var horizontal []string
	for _, dim := range slices.Backward(loopOrder(flavor, s)) {
		if !hasVertical || dim != vertical.Name {
			horizontal = append(horizontal, dim)
		}
	}
	if len(horizontal) > 2 {
		return "", "", errors.Errorf("backend %s supports at most 2 horizontal dimensions, stencil %q has %v",
			flavor.desc.Name(), s.Name, horizontal)
	}
	threadIdx := []string{"x", "y"}
	loops, err := codegen.Loops(s, verticalSize, r.statement)
	if err != nil {
		return "", "", err
	}

	var params []string
	var args []string
	params = append(params, fmt.Sprintf("const %s args", m.ArgsType))
	args = append(args, "args")
	for _, d := range m.Dims {
		params = append(params, "const int "+d.Size)
		args = append(args, d.Size)
	}
	for _, tmp := range m.Temporaries {
		params = append(params, fmt.Sprintf("const Field<%s, %d> %s", tmp.CType, tmp.Rank, tmp.Name))
		args = append(args, tmp.Name)
	}

	kw := &writer{}
	lw := &writer{indent: 1}
	kernel := func(name string, fn func()) {
		kw.open("__global__ void %s(%s)", name, strings.Join(params, ", "))
		for i, dim := range horizontal {
			kw.line("const int %s = blockIdx.%s * blockDim.%s + threadIdx.%s;", loopVar(dim), threadIdx[i], threadIdx[i], threadIdx[i])
		}
		var guards []string
		for _, dim := range horizontal {
			guards = append(guards, fmt.Sprintf("%s >= %s", loopVar(dim), sizeVar(dim)))
		}
		if len(guards) > 0 {
			kw.line("if (%s) return;", strings.Join(guards, " || "))
		}
		for _, f := range m.Fields {
			kw.line("const auto& %s = args.%s;", f.Name, f.Name)
		}
		for _, sc := range m.Scalars {
			kw.line("const %s %s = args.%s;", sc.CType, sc.Name, sc.Name)
		}
		fn()
		kw.close()
		kw.line("")
		lw.line("%s<<<grid, block>>>(%s);", name, strings.Join(args, ", "))
	}
	for li, loop := range loops {
		for si, sec := range loop.Sections {
			if loop.Sequential && hasVertical {
				kernel(fmt.Sprintf("computation_%d_interval_%d", li, si), func() {
					kw.line("// %s %s", loop.Order, sec.Interval)
					kw.forLoop(vertical.Name, sec.Lo, sec.Hi, loop.Backward)
					for _, stmt := range sec.Statements {
						kw.line("%s = %s;", stmt.Target, stmt.Value)
					}
					kw.close()
				})
				continue
			}
			for sti, stmt := range sec.Statements {
				kernel(fmt.Sprintf("computation_%d_interval_%d_stmt_%d", li, si, sti), func() {
					kw.line("// %s %s", loop.Order, sec.Interval)
					if hasVertical {
						kw.forLoop(vertical.Name, sec.Lo, sec.Hi, false)
					}
					kw.line("%s = %s;", stmt.Target, stmt.Value)
					if hasVertical {
						kw.close()
					}
				})
			}
		}
	}
	gridDims := []string{"1", "1"}
	for i, dim := range horizontal {
		block := m.BlockX
		if i == 1 {
			block = m.BlockY
		}
		gridDims[i] = fmt.Sprintf("(%s + %d) / %d", sizeVar(dim), block-1, block)
	}
	var header strings.Builder
	fmt.Fprintf(&header, "    const dim3 block(%d, %d);\n", m.BlockX, m.BlockY)
	fmt.Fprintf(&header, "    const dim3 grid(%s, %s);\n", gridDims[0], gridDims[1])
	return kw.sb.String(), header.String() + lw.sb.String(), nil
}

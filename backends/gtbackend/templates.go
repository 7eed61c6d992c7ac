// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtbackend

import (
	"strconv"
	"strings"
	"text/template"
)

var funcMap = template.FuncMap{
	"join": strings.Join,
	"axes": func(axes []int) string {
		parts := make([]string, len(axes))
		for i, a := range axes {
			parts[i] = strconv.Itoa(a)
		}
		return strings.Join(parts, ", ")
	},
}

var headerTemplate = template.Must(template.New("computation.hpp").Funcs(funcMap).Parse(`{{.Header}}
#pragma once

#include <cstddef>
#include <cstdint>
{{- if .CUDA}}
#include <cuda_fp16.h>
{{- end}}

namespace gostencil {

#ifndef GOSTENCIL_FIELD_DEFINED
#define GOSTENCIL_FIELD_DEFINED
// Field is a strided view of an array: data points to the origin of the compute domain and
// strides are counted in elements.
template <typename T, int Rank>
struct Field {
    T* data;
    std::ptrdiff_t strides[Rank > 0 ? Rank : 1];
};
#endif

namespace {{.Namespace}} {

struct {{.ArgsType}} {
{{- range .Fields}}
    Field<{{.CType}}, {{.Rank}}> {{.Name}};
{{- end}}
{{- range .Scalars}}
    {{.CType}} {{.Name}};
{{- end}}
};

constexpr int kRank = {{.Rank}};

void run(const {{.ArgsType}}& args, const int domain[kRank]);

}  // namespace {{.Namespace}}
}  // namespace gostencil
`))

var cppTemplate = template.Must(template.New("computation.cpp").Funcs(funcMap).Parse(`{{.Header}}
#include "computation.hpp"

#include <cmath>
#include <cstdint>
#include <memory>

namespace gostencil {
namespace {{.Namespace}} {

void run(const {{.ArgsType}}& args, const int domain[kRank]) {
{{- range .Dims}}
    const int {{.Size}} = domain[{{.Index}}];
{{- end}}
{{- range .Fields}}
    const auto& {{.Name}} = args.{{.Name}};
{{- end}}
{{- range .Scalars}}
    const {{.CType}} {{.Name}} = args.{{.Name}};
{{- end}}
{{- range .Temporaries}}
    std::unique_ptr<{{.CType}}[]> {{.Name}}_storage(new {{.CType}}[static_cast<std::size_t>({{.Size}})]());
    const Field<{{.CType}}, {{.Rank}}> {{.Name}}{ {{- .Name}}_storage.get(), { {{- .Strides -}} }};
{{- end}}
{{.Body -}}
}

}  // namespace {{.Namespace}}
}  // namespace gostencil
`))

var cudaTemplate = template.Must(template.New("computation.cu").Funcs(funcMap).Parse(`{{.Header}}
#include "computation.hpp"

#include <cuda_runtime.h>

#include <stdexcept>
#include <string>

namespace gostencil {
namespace {{.Namespace}} {

namespace {

void check(cudaError_t err) {
    if (err != cudaSuccess) {
        throw std::runtime_error(std::string("{{.Namespace}}: ") + cudaGetErrorString(err));
    }
}

{{.Kernels -}}
}  // namespace

void run(const {{.ArgsType}}& args, const int domain[kRank]) {
{{- range .Dims}}
    const int {{.Size}} = domain[{{.Index}}];
{{- end}}
{{- range .Temporaries}}
    Field<{{.CType}}, {{.Rank}}> {{.Name}}{nullptr, { {{- .Strides -}} }};
    check(cudaMalloc(&{{.Name}}.data, sizeof({{.CType}}) * static_cast<std::size_t>({{.Size}})));
{{- end}}
{{.Body -}}
    check(cudaGetLastError());
    check(cudaDeviceSynchronize());
{{- range .Temporaries}}
    check(cudaFree({{.Name}}.data));
{{- end}}
}

}  // namespace {{.Namespace}}
}  // namespace gostencil
`))

// bindingsTemplate generates a pybind11 module exposing run(). Arrays are taken through the
// buffer protocol on CPU and through __cuda_array_interface__ on GPU.
var bindingsTemplate = template.Must(template.New("bindings").Funcs(funcMap).Parse(`{{.Header}}
#include <pybind11/pybind11.h>
#include <pybind11/stl.h>

#include <array>
#include <cstdint>
#include <stdexcept>
#include <string>

#include "computation.hpp"

namespace py = pybind11;

namespace {

template <typename T, int Rank>
gostencil::Field<T, Rank> make_field(const std::string& name, py::object array,
                                     const std::array<int, gostencil::{{.Namespace}}::kRank>& origin,
                                     const std::array<int, Rank>& axes) {
    gostencil::Field<T, Rank> field{};
{{- if .CUDA}}
    py::dict iface = array.attr("__cuda_array_interface__");
    auto data = iface["data"].cast<py::tuple>();
    auto ptr = reinterpret_cast<char*>(data[0].cast<std::uintptr_t>());
    auto shape = iface["shape"].cast<py::tuple>();
    if (static_cast<int>(shape.size()) != Rank) {
        throw std::invalid_argument("field '" + name + "' has the wrong rank");
    }
    std::array<std::ptrdiff_t, Rank> byte_strides{};
    if (iface.contains("strides") && !iface["strides"].is_none()) {
        auto strides = iface["strides"].cast<py::tuple>();
        for (int d = 0; d < Rank; ++d) byte_strides[d] = strides[d].cast<std::ptrdiff_t>();
    } else {
        std::ptrdiff_t stride = sizeof(T);
        for (int d = Rank - 1; d >= 0; --d) {
            byte_strides[d] = stride;
            stride *= shape[d].cast<std::ptrdiff_t>();
        }
    }
{{- else}}
    py::buffer_info info = py::cast<py::buffer>(array).request(true);
    if (info.ndim != Rank) {
        throw std::invalid_argument("field '" + name + "' has the wrong rank");
    }
    if (info.itemsize != static_cast<py::ssize_t>(sizeof(T))) {
        throw std::invalid_argument("field '" + name + "' has the wrong dtype");
    }
    auto ptr = static_cast<char*>(info.ptr);
    std::array<std::ptrdiff_t, Rank> byte_strides{};
    for (int d = 0; d < Rank; ++d) byte_strides[d] = info.strides[d];
{{- end}}
    for (int d = 0; d < Rank; ++d) {
        ptr += byte_strides[d] * origin[axes[d]];
        field.strides[d] = byte_strides[d] / static_cast<std::ptrdiff_t>(sizeof(T));
    }
    field.data = reinterpret_cast<T*>(ptr);
    return field;
}

}  // namespace

PYBIND11_MODULE({{.Module}}, m) {
    m.attr("BACKEND") = "{{.Backend}}";
    m.def(
        "run",
        [](
{{- range .Fields}}py::object {{.Name}}, {{end -}}
{{- range .Scalars}}{{.CType}} {{.Name}}, {{end -}}
           std::array<int, gostencil::{{.Namespace}}::kRank> domain,
           std::array<int, gostencil::{{.Namespace}}::kRank> origin) {
            gostencil::{{.Namespace}}::{{.ArgsType}} args{};
{{- range .Fields}}
            args.{{.Name}} = make_field<{{.CType}}, {{.Rank}}>("{{.Name}}", {{.Name}}, origin, { {{- axes .Axes -}} });
{{- end}}
{{- range .Scalars}}
            args.{{.Name}} = {{.Name}};
{{- end}}
            gostencil::{{.Namespace}}::run(args, domain.data());
        },
{{- range .Fields}}
        py::arg("{{.Name}}"),
{{- end}}
{{- range .Scalars}}
        py::arg("{{.Name}}"),
{{- end}}
        py::kw_only(), py::arg("domain"), py::arg("origin"));
}
`))

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pybackend

import (
	"strconv"
	"strings"
	"text/template"
)

var funcMap = template.FuncMap{
	"join":  strings.Join,
	"quote": strconv.Quote,
	"tuple": func(values []int) string {
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = strconv.Itoa(v)
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	},
	"strs": func(values []string) string {
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = strconv.Quote(v)
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	},
}

// domainTemplate is shared by the modules that run the computation: it declares the metadata
// of the stencil and resolves the default domain and origin from the arrays given.
const domainTemplate = `{{define "domain"}}
DIMENSIONS = {{strs .Dimensions}}
PARAMS = {{strs .Params}}
FIELD_AXES = {
{{- range .Fields}}
    {{quote .Name}}: {{tuple .Axes}},
{{- end}}
}
DEFAULT_ORIGIN = {{tuple .Origin}}
HALO_AFTER = {{tuple .HaloAfter}}


def _resolve_domain(arrays, domain, origin):
    if origin is None:
        origin = DEFAULT_ORIGIN
    if domain is None:
        sizes = [None] * len(DIMENSIONS)
        for name, array in arrays.items():
            for pos, axis in enumerate(FIELD_AXES[name]):
                size = array.shape[pos] - origin[axis] - HALO_AFTER[axis]
                sizes[axis] = size if sizes[axis] is None else min(sizes[axis], size)
        domain = [0 if size is None else size for size in sizes]
    return tuple(domain), tuple(origin)
{{end}}`

const runTemplate = `{{define "run"}}
def run({{join .Params ", "}}, *, domain=None, origin=None):
    domain, origin = _resolve_domain({
{{- range .Fields}}{{quote .Name}}: {{.Name}}, {{end -}}
}, domain, origin)
    {{join .Sizes ", "}}, = domain
    {{join .Origins ", "}}, = origin
{{- range .Temporaries}}
    {{.Name}} = np.zeros(domain, dtype=np.{{.DType}})
{{- end}}
{{.Body -}}
{{end}}`

// debugTemplate generates a single self-contained module with explicit loops. It only
// needs NumPy to allocate temporaries.
var debugTemplate = template.Must(template.New("debug module").Funcs(funcMap).Parse(
	domainTemplate + runTemplate + `{{.Header}}
import math
{{- if .Temporaries}}

import numpy as np
{{- end}}

{{template "domain" .}}
{{template "run" .}}`))

// computationTemplate generates the standalone NumPy computation module.
var computationTemplate = template.Must(template.New("numpy computation").Funcs(funcMap).Parse(
	domainTemplate + runTemplate + `{{.Header}}
import numpy as np

{{template "domain" .}}
{{template "run" .}}`))

// wrapperTemplate generates the thin stencil module that loads the computation module by path.
var wrapperTemplate = template.Must(template.New("numpy bindings").Funcs(funcMap).Parse(
	`{{.Header}}
import importlib.util
{{- if not .ComputationPath}}
import os
{{- end}}


def make_module_from_file(name, path):
    spec = importlib.util.spec_from_file_location(name, path)
    module = importlib.util.module_from_spec(spec)
    spec.loader.exec_module(module)
    return module


{{if .ComputationPath -}}
computation = make_module_from_file("computation", {{quote .ComputationPath}})
{{- else -}}
computation = make_module_from_file(
    "computation", os.path.join(os.path.dirname(os.path.abspath(__file__)), "computation.py")
)
{{- end}}

DIMENSIONS = computation.DIMENSIONS
PARAMS = computation.PARAMS


def run({{join .Params ", "}}, *, domain=None, origin=None):
    return computation.run({{range .Params}}{{.}}={{.}}, {{end}}domain=domain, origin=origin)
`))

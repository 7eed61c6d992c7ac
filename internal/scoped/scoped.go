// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package scoped holds values organized in a tree of scopes, where a lookup falls back to the
// parent scopes.
//
// Build options use it for backend specific options: the root scope "/" applies to every backend
// and Scope(name) to one backend. Backend names with ":" are nested, so "gt:gpu" maps to
// "/gt/gpu" and an option set in "/gt" applies to all the gt backends.
package scoped

import (
	"maps"
	"slices"
	"strings"
)

// Params maps (scope, key) to values. Scopes are paths like "/a/b" built with Separator.
// The zero value is not usable, create it with New.
type Params struct {
	Separator string
	scopes    map[string]map[string]any
}

// Scope returns the scope of the options of the named backend.
func Scope(backend string) string {
	if backend == "" {
		return "/"
	}
	return "/" + strings.ReplaceAll(backend, ":", "/")
}

// New returns empty Params using the given scope separator (usually "/").
func New(separator string) *Params {
	return &Params{Separator: separator, scopes: make(map[string]map[string]any)}
}

// Clone returns a copy of p. Values themselves are not deep copied.
func (p *Params) Clone() *Params {
	c := New(p.Separator)
	for scope, values := range p.scopes {
		c.scopes[scope] = maps.Clone(values)
	}
	return c
}

// Set key to value in scope.
func (p *Params) Set(scope, key string, value any) {
	values := p.scopes[scope]
	if values == nil {
		values = make(map[string]any)
		p.scopes[scope] = values
	}
	values[key] = value
}

// parent returns the enclosing scope, and false for the root.
func (p *Params) parent(scope string) (string, bool) {
	if scope == p.Separator || scope == "" {
		return "", false
	}
	idx := strings.LastIndex(scope, p.Separator)
	if idx <= 0 {
		return p.Separator, true
	}
	return scope[:idx], true
}

// Get returns the value of key in scope or, if not set there, in the closest enclosing scope.
// E.g. Get("/gt/gpu", "block_i") looks in "/gt/gpu", then "/gt", then "/".
func (p *Params) Get(scope, key string) (value any, found bool) {
	for {
		if value, found = p.scopes[scope][key]; found {
			return value, true
		}
		var ok bool
		if scope, ok = p.parent(scope); !ok {
			return nil, false
		}
	}
}

// Enumerate calls fn for every value set, sorted by scope and then key.
func (p *Params) Enumerate(fn func(scope, key string, value any)) {
	for _, scope := range slices.Sorted(maps.Keys(p.scopes)) {
		values := p.scopes[scope]
		for _, key := range slices.Sorted(maps.Keys(values)) {
			fn(scope, key, values[key])
		}
	}
}

// Map returns a copy of all values, indexed by scope and then by key.
func (p *Params) Map() map[string]map[string]any {
	out := make(map[string]map[string]any, len(p.scopes))
	p.Enumerate(func(scope, key string, value any) {
		if out[scope] == nil {
			out[scope] = make(map[string]any)
		}
		out[scope][key] = value
	})
	return out
}

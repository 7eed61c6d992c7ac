// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"maps"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Registry of backends by name. It's read-only after construction, and safe for concurrent use.
type Registry struct {
	byName map[string]Backend
	order  []string
}

// NewRegistry returns a registry with the given backends. Names must be unique.
func NewRegistry(backends ...Backend) (*Registry, error) {
	r := &Registry{byName: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		name := b.Descriptor().Name()
		if name == "" {
			return nil, errors.New("backend with an empty name can't be registered")
		}
		if _, found := r.byName[name]; found {
			return nil, errors.Wrapf(ErrDuplicateBackend, "backend %q", name)
		}
		r.byName[name] = b
		r.order = append(r.order, name)
	}
	return r, nil
}

// MustNewRegistry is like NewRegistry, but panics on error.
func MustNewRegistry(backends ...Backend) *Registry {
	r, err := NewRegistry(backends...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the backend with the given name, or an error wrapping ErrUnknownBackend.
func (r *Registry) Lookup(name string) (Backend, error) {
	b, found := r.byName[name]
	if !found {
		return nil, errors.Wrapf(ErrUnknownBackend, "%q (registered backends: %v)", name, r.Names())
	}
	return b, nil
}

// MustLookup is like Lookup, but panics if the backend is not registered.
func (r *Registry) MustLookup(name string) Backend {
	b, err := r.Lookup(name)
	if err != nil {
		exceptions.Panicf("%+v", err)
	}
	return b
}

// Names returns the sorted names of the registered backends.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.byName))
}

// All returns the backends in registration order.
func (r *Registry) All() []Backend {
	all := make([]Backend, len(r.order))
	for i, name := range r.order {
		all[i] = r.byName[name]
	}
	return all
}

// Len returns the number of registered backends.
func (r *Registry) Len() int { return len(r.order) }

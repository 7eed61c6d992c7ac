// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package _default holds the registry with all the backends included in gostencil:
// "debug", "numpy", "gt:cpu_ifirst", "gt:cpu_kfirst", "gt:gpu" and "cuda".
//
// To use it:
//
//	import _default "github.com/gomlx/gostencil/backends/default"
//
//	backend := _default.Registry().MustLookup(_default.DefaultName())
package _default

import (
	"os"
	"sync"

	"github.com/gomlx/gostencil/backends"
	"github.com/gomlx/gostencil/backends/gtbackend"
	"github.com/gomlx/gostencil/backends/pybackend"
)

var (
	registry     *backends.Registry
	registryOnce sync.Once
)

// Registry returns the registry with the default backends. It's created once, the first
// time it's called, and it's safe for concurrent use.
func Registry() *backends.Registry {
	registryOnce.Do(func() {
		registry = backends.MustNewRegistry(
			pybackend.NewDebug(),
			pybackend.NewNumpy(),
			gtbackend.NewCPUIFirst(),
			gtbackend.NewCPUKFirst(),
			gtbackend.NewGPU(),
			gtbackend.NewCUDA(),
		)
	})
	return registry
}

// DefaultBackend is used by DefaultName if the environment variable GOSTENCIL_BACKEND is not set.
var DefaultBackend = pybackend.NumpyName

// DefaultName returns the name of the default backend:
//
// 1. The environment GOSTENCIL_BACKEND if defined and not empty.
// 2. Next the variable DefaultBackend.
func DefaultName() string {
	if name, found := os.LookupEnv(backends.GOSTENCIL_BACKEND); found && name != "" {
		return name
	}
	return DefaultBackend
}

// Lookup returns the named backend from Registry. An empty name selects the default backend.
func Lookup(name string) (backends.Backend, error) {
	if name == "" {
		name = DefaultName()
	}
	return Registry().Lookup(name)
}

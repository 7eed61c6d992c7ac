// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package builder

import (
	"sync"

	"github.com/gomlx/gostencil/backends"
	_default "github.com/gomlx/gostencil/backends/default"
	"github.com/gomlx/gostencil/internal/workerspool"
	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/gomlx/gostencil/pkg/stencil/cache"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Context configures the function forms Build and BuildAll. The zero value builds with the
// default registry, the default caching strategy and no bindings.
type Context struct {
	// Caching strategy name, see cache.New. If empty DefaultCaching() is used.
	Caching string

	// Cache, if set, is used instead of Caching.
	Cache cache.Strategy

	// OutputPath of the artifacts, for the persistent caching strategy.
	OutputPath string

	// Passes are the user passes, run before the system passes.
	Passes []Pass

	Options Options

	// Bindings languages to generate along the computation.
	Bindings []backends.Language

	// Registry of backends. If nil the default registry is used.
	Registry *backends.Registry

	// Parallelism of BuildAll: 0 uses runtime.NumCPU(), -1 means unlimited.
	Parallelism int
}

func (ctx Context) registry() *backends.Registry {
	if ctx.Registry != nil {
		return ctx.Registry
	}
	return _default.Registry()
}

func (ctx Context) builder(def *ast.Definition, backendName string) (*Builder, error) {
	var opts []Option
	if ctx.Registry != nil {
		opts = append(opts, WithRegistry(ctx.Registry))
	}
	b, err := New(def, backendName, opts...)
	if err != nil {
		return nil, err
	}
	if ctx.Cache != nil {
		b.WithCache(ctx.Cache, ctx.OutputPath)
	} else {
		b.WithCaching(ctx.Caching, ctx.OutputPath)
	}
	return b.WithPasses(ctx.Passes...).WithOptions(ctx.Options).WithBindings(ctx.Bindings...), nil
}

// Build def for the named backend with the configuration in ctx.
func Build(def *ast.Definition, backendName string, ctx Context) (*Result, error) {
	b, err := ctx.builder(def, backendName)
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// BuildAll builds def for each of the named backends (all backends of the registry if names is
// empty) concurrently. The IR is derived only once.
//
// It returns the results of the successful builds, indexed by backend name, and the errors of
// the failed ones aggregated.
func BuildAll(def *ast.Definition, names []string, ctx Context) (map[string]*Result, error) {
	builders := make([]*Builder, 0, len(names))
	if len(names) == 0 {
		names = ctx.registry().Names()
	}
	for _, name := range names {
		b, err := ctx.builder(def, name)
		if err != nil {
			return nil, err
		}
		builders = append(builders, b)
	}
	if len(builders) == 0 {
		return map[string]*Result{}, nil
	}
	s, err := builders[0].IR()
	if err != nil {
		return nil, err
	}
	for _, b := range builders[1:] {
		b.setIR(s)
	}

	pool := workerspool.New()
	if ctx.Parallelism != 0 {
		pool.SetMaxParallelism(ctx.Parallelism)
	}
	var (
		mu      sync.Mutex
		results = make(map[string]*Result, len(builders))
		errs    *multierror.Error
	)
	for _, b := range builders {
		pool.WaitToStart(func() {
			r, err := b.Build()
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierror.Append(errs, errors.WithMessagef(err, "backend %s", b.backend.Descriptor().Name()))
				return
			}
			results[r.Backend] = r
		})
	}
	pool.Wait()
	klog.V(1).Infof("built stencil %q for %d backends, %d failed", def.Name, len(builders), len(builders)-len(results))
	return results, errs.ErrorOrNil()
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package builder drives the build of a stencil: definition -> passes -> IR -> backend code
// generation -> cache -> artifacts.
//
// Example:
//
//	b, err := builder.New(def, "gt:cpu_ifirst")
//	if err != nil { ... }
//	result, err := b.WithCaching(cache.JIT, "~/.cache/gostencil").WithBindings(backends.Python).Build()
//
// Or with the function form, for a one-shot build:
//
//	result, err := builder.Build(def, "numpy", builder.Context{Caching: cache.Memory})
package builder

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gostencil/backends"
	_default "github.com/gomlx/gostencil/backends/default"
	"github.com/gomlx/gostencil/pkg/stencil/artifacts"
	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/gomlx/gostencil/pkg/stencil/cache"
	"github.com/gomlx/gostencil/pkg/stencil/ir"
	"github.com/gomlx/gostencil/pkg/stencil/passes"
	"github.com/gomlx/gostencil/pkg/support/fsutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Options of the generated code, see backends.Options.
type Options = backends.Options

// DefaultOutputPath is used by the persistent caching strategy if no output path is given.
var DefaultOutputPath = "~/.cache/gostencil"

// DefaultCaching returns the caching strategy used if none is configured: the environment
// variable GOSTENCIL_CACHING if set, otherwise cache.Memory.
func DefaultCaching() string {
	if name, found := os.LookupEnv(cache.GOSTENCIL_CACHING); found && name != "" {
		return name
	}
	return cache.Memory
}

// Builder builds one stencil definition for one backend.
//
// Configuration methods (With*) return the builder for chaining and should be called before
// the builder is used. A configured Builder is safe for concurrent use.
type Builder struct {
	def      *ast.Definition
	backend  backends.Backend
	registry *backends.Registry

	caching    string
	outputPath string
	strategy   cache.Strategy
	passes     []passes.Pass
	options    Options
	bindings   []backends.Language

	irOnce sync.Once
	ir     *ir.Stencil
	irErr  error
}

// Option of New.
type Option func(b *Builder)

// WithRegistry makes New look up the backend in r instead of the default registry.
func WithRegistry(r *backends.Registry) Option {
	return func(b *Builder) { b.registry = r }
}

// New returns a Builder of def for the named backend. An empty backendName selects the default
// backend (see _default.DefaultName).
func New(def *ast.Definition, backendName string, opts ...Option) (*Builder, error) {
	if def == nil {
		return nil, errors.New("builder.New: nil stencil definition")
	}
	b := &Builder{def: def}
	for _, opt := range opts {
		opt(b)
	}
	if b.registry == nil {
		b.registry = _default.Registry()
	}
	if backendName == "" {
		backendName = _default.DefaultName()
	}
	var err error
	b.backend, err = b.registry.Lookup(backendName)
	if err != nil {
		return nil, errors.WithMessagef(err, "building stencil %q", def.Name)
	}
	return b, nil
}

// WithCaching selects the caching strategy by name (see cache.New) and its output path.
func (b *Builder) WithCaching(name, outputPath string) *Builder {
	b.caching = name
	b.outputPath = outputPath
	b.strategy = nil
	return b
}

// WithCache uses the given strategy instance.
func (b *Builder) WithCache(strategy cache.Strategy, outputPath string) *Builder {
	b.caching = strategy.Name()
	b.outputPath = outputPath
	b.strategy = strategy
	return b
}

// WithPasses sets the user passes, run before the system passes.
func (b *Builder) WithPasses(userPasses ...Pass) *Builder {
	b.passes = userPasses
	b.irOnce = sync.Once{}
	return b
}

// Pass is an alias to passes.Pass.
type Pass = passes.Pass

// WithOptions sets the options of the generated code.
func (b *Builder) WithOptions(options Options) *Builder {
	b.options = options
	return b
}

// WithBindings requests bindings for the given languages, merged with the computation artifacts.
func (b *Builder) WithBindings(langs ...backends.Language) *Builder {
	b.bindings = langs
	return b
}

// Backend used by the builder.
func (b *Builder) Backend() backends.Backend { return b.backend }

// Definition being built.
func (b *Builder) Definition() *ast.Definition { return b.def }

// Chain returns the pass chain: user passes followed by the system passes.
func (b *Builder) Chain() *passes.Chain { return passes.NewChain(b.passes...) }

// IR runs the pass chain and lowers the result. It's computed once per builder.
func (b *Builder) IR() (*ir.Stencil, error) {
	b.irOnce.Do(func() {
		var resolved *ast.Definition
		resolved, b.irErr = b.Chain().Run(b.def)
		if b.irErr != nil {
			return
		}
		b.ir, b.irErr = ir.Lower(resolved)
	})
	return b.ir, b.irErr
}

// setIR shares an IR lowered by another builder of the same definition and passes.
func (b *Builder) setIR(s *ir.Stencil) {
	b.irOnce.Do(func() { b.ir = s })
}

// name of the artifacts.
func (b *Builder) name() string {
	if b.options.Name != "" {
		return b.options.Name
	}
	return b.def.Name
}

func (b *Builder) cacheStrategy() (cache.Strategy, error) {
	if b.strategy != nil {
		return b.strategy, nil
	}
	s, err := sharedStrategy(b.cachingName(), b.resolvedOutputPath())
	if err != nil {
		return nil, err
	}
	b.strategy = s
	return s, nil
}

func (b *Builder) cachingName() string {
	if b.caching == "" {
		return DefaultCaching()
	}
	return b.caching
}

func (b *Builder) resolvedOutputPath() string {
	if b.outputPath == "" && b.cachingName() == cache.JIT {
		return DefaultOutputPath
	}
	return b.outputPath
}

var strategies sync.Map // "<name>\x00<outputPath>" -> cache.Strategy

// sharedStrategy returns the process wide strategy instance for name and outputPath, so
// different builders share in-memory entries and per-key locks.
func sharedStrategy(name, outputPath string) (cache.Strategy, error) {
	id := name + "\x00" + outputPath
	if s, found := strategies.Load(id); found {
		return s.(cache.Strategy), nil
	}
	s, err := cache.New(name, outputPath)
	if err != nil {
		return nil, err
	}
	actual, _ := strategies.LoadOrStore(id, s)
	return actual.(cache.Strategy), nil
}

// Key returns the cache key of the build.
func (b *Builder) Key() (cache.Key, error) {
	canonical, err := b.options.Canonical()
	if err != nil {
		return cache.Key{}, err
	}
	return cache.Key{Stencil: b.name(), Backend: b.backend.Descriptor().Name(), Options: canonical}, nil
}

// Fingerprint of the content of the build: the definition, the pass chain, the definition the
// passes produced, the backend, the options and the requested bindings.
//
// Pass names alone don't identify what a pass does, so the result of the chain is hashed too.
func (b *Builder) Fingerprint() (string, error) {
	key, err := b.Key()
	if err != nil {
		return "", err
	}
	s, err := b.IR()
	if err != nil {
		return "", err
	}
	langs := make([]string, len(b.bindings))
	for i, lang := range b.bindings {
		langs[i] = lang.String()
	}
	return ast.Fingerprint(b.def, b.Chain().Fingerprint(), s.Fingerprint, key.Backend, key.Options, strings.Join(langs, ",")), nil
}

func (b *Builder) request() (*backends.Request, error) {
	s, err := b.IR()
	if err != nil {
		return nil, err
	}
	key, err := b.Key()
	if err != nil {
		return nil, err
	}
	outputPath := b.resolvedOutputPath()
	if outputPath != "" {
		if outputPath, err = fsutil.ReplaceTildeInDir(outputPath); err != nil {
			return nil, err
		}
		outputPath = filepath.Join(outputPath, key.Dir())
	}
	return &backends.Request{Stencil: s, OutputPath: outputPath, Options: b.options}, nil
}

// GenerateComputation generates the computation artifacts, without caching.
func (b *Builder) GenerateComputation() (artifacts.Set, error) {
	req, err := b.request()
	if err != nil {
		return nil, err
	}
	return b.backend.GenerateComputation(req)
}

// GenerateBindings generates the bindings artifacts for lang, without caching.
func (b *Builder) GenerateBindings(lang backends.Language) (artifacts.Set, error) {
	req, err := b.request()
	if err != nil {
		return nil, err
	}
	return b.backend.GenerateBindings(lang, req)
}

// Result of a build.
type Result struct {
	// ID of the build, for logging.
	ID string

	Backend     string
	Key         cache.Key
	Fingerprint string

	// OutputPath where the artifacts live, if the caching strategy persists them.
	OutputPath string

	Artifacts artifacts.Set

	// Cached reports whether the artifacts came from the cache.
	Cached bool

	IR *ir.Stencil
}

// Build the stencil: it returns the cached artifacts for the build key if their fingerprint
// matches, or generates the computation and the requested bindings and stores them.
func (b *Builder) Build() (*Result, error) {
	id := uuid.NewString()
	backendName := b.backend.Descriptor().Name()
	strategy, err := b.cacheStrategy()
	if err != nil {
		return nil, err
	}
	req, err := b.request()
	if err != nil {
		return nil, errors.WithMessagef(err, "build %s of stencil %q for backend %s", id, b.def.Name, backendName)
	}
	key, err := b.Key()
	if err != nil {
		return nil, err
	}
	fingerprint, err := b.Fingerprint()
	if err != nil {
		return nil, err
	}
	if b.options.Rebuild {
		if err := strategy.Invalidate(key); err != nil {
			return nil, err
		}
	}
	klog.V(2).Infof("build %s: stencil %q, backend %s, caching %s", id, b.def.Name, backendName, strategy.Name())
	set, hit, err := strategy.Do(key, fingerprint, func() (artifacts.Set, error) {
		return b.generate(req)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "build %s of stencil %q for backend %s", id, b.def.Name, backendName)
	}
	r := &Result{
		ID:          id,
		Backend:     backendName,
		Key:         key,
		Fingerprint: fingerprint,
		Artifacts:   set,
		Cached:      hit,
		IR:          req.Stencil,
	}
	if strategy.Name() == cache.JIT {
		r.OutputPath = req.OutputPath
	}
	klog.V(1).Infof("build %s: stencil %q for %s: %d artifacts (%s), cached=%v",
		id, b.def.Name, backendName, len(set.Flatten()), humanize.Bytes(uint64(set.Size())), hit)
	return r, nil
}

func (b *Builder) generate(req *backends.Request) (artifacts.Set, error) {
	set, err := b.backend.GenerateComputation(req)
	if err != nil {
		return nil, err
	}
	for _, lang := range b.bindings {
		bindings, err := b.backend.GenerateBindings(lang, req)
		if err != nil {
			return nil, err
		}
		if set, err = artifacts.Merge(set, bindings); err != nil {
			return nil, errors.WithMessagef(err, "%s bindings", lang)
		}
	}
	if klog.V(3).Enabled() {
		for p, text := range set.Flatten() {
			klog.Infof("generated %s: %s", p, humanize.Bytes(uint64(len(text))))
		}
	}
	return set, nil
}

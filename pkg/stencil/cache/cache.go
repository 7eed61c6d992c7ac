// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package cache implements the caching strategies of stencil builds:
//
//   - "nocaching": always generates, never stores.
//   - "memory": keeps the artifacts in the process memory.
//   - "jit": persists the artifacts on disk under the build output path, with a
//     "cache_info.yaml" metadata file; entries survive across processes.
//
// Entries are indexed by a Key (stencil, backend and build options) and hold the fingerprint of
// the content that generated them: a lookup with a different fingerprint is a miss, and the
// entry is regenerated and replaced.
//
// Builds of the same key are serialized, so at most one of them generates and writes the
// entry; builds of different keys never block each other.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gomlx/gostencil/pkg/stencil/artifacts"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"
)

const (
	NoCaching = "nocaching"
	Memory    = "memory"
	JIT       = "jit"

	// GOSTENCIL_CACHING is the environment variable with the default caching strategy.
	GOSTENCIL_CACHING = "GOSTENCIL_CACHING"
)

// ErrUnknownStrategy is returned by New for names that are not a caching strategy.
var ErrUnknownStrategy = errors.New("unknown caching strategy")

// Key identifies a cache entry.
type Key struct {
	// Stencil is the name of the artifacts (the stencil name, or its override).
	Stencil string

	// Backend name.
	Backend string

	// Options is the canonical serialization of the build options.
	Options string
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return k.Backend + "/" + k.Stencil + "@" + k.optionsHash()
}

func (k Key) optionsHash() string {
	sum := sha256.Sum256([]byte(k.Options))
	return hex.EncodeToString(sum[:])[:12]
}

// Dir is the relative directory of the entry's artifacts under the output path.
func (k Key) Dir() string {
	backend := strings.NewReplacer(":", "_", "/", "_").Replace(k.Backend)
	return filepath.Join(backend, k.Stencil+"_"+k.optionsHash())
}

// Generator creates the artifacts of a cache miss.
type Generator func() (artifacts.Set, error)

// Strategy of caching. Implementations are safe for concurrent use.
type Strategy interface {
	// Name of the strategy, as given to New.
	Name() string

	// Load returns the artifacts stored under key, if their fingerprint matches.
	Load(key Key, fingerprint string) (set artifacts.Set, found bool, err error)

	// Store the artifacts under key, replacing any previous entry.
	Store(key Key, fingerprint string, set artifacts.Set) error

	// Invalidate removes the entry under key, if any.
	Invalidate(key Key) error

	// Do returns the artifacts stored under key, or generates and stores them.
	// hit reports whether they came from the cache.
	Do(key Key, fingerprint string, generate Generator) (set artifacts.Set, hit bool, err error)
}

// New returns the caching strategy with the given name. outputPath is only used by the
// persistent strategy ("jit") and may start with "~".
func New(name, outputPath string) (Strategy, error) {
	switch name {
	case NoCaching:
		return noCaching{}, nil
	case Memory:
		return NewMemory(), nil
	case JIT:
		return NewJIT(outputPath)
	}
	return nil, errors.Wrapf(ErrUnknownStrategy, "%q (valid strategies: %s, %s, %s)", name, NoCaching, Memory, JIT)
}

// noCaching always misses.
type noCaching struct{}

func (noCaching) Name() string { return NoCaching }

func (noCaching) Load(Key, string) (artifacts.Set, bool, error) { return nil, false, nil }

func (noCaching) Store(Key, string, artifacts.Set) error { return nil }

func (noCaching) Invalidate(Key) error { return nil }

func (noCaching) Do(key Key, _ string, generate Generator) (artifacts.Set, bool, error) {
	klog.V(2).Infof("cache %s: generating %s", NoCaching, key)
	set, err := generate()
	return set, false, err
}

// flight serializes loads and stores of the same key: concurrent callers of the same key and
// fingerprint share one generation, and a per-key lock makes sure there is a single writer.
type flight struct {
	group singleflight.Group
	locks sync.Map // Key -> *sync.Mutex
}

func (f *flight) lock(key Key) *sync.Mutex {
	mu, _ := f.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

type flightResult struct {
	set artifacts.Set
	hit bool
}

// do implements Strategy.Do on top of s.Load and s.Store.
func (f *flight) do(s Strategy, key Key, fingerprint string, generate Generator) (artifacts.Set, bool, error) {
	v, err, shared := f.group.Do(key.String()+"#"+fingerprint, func() (any, error) {
		mu := f.lock(key)
		mu.Lock()
		defer mu.Unlock()
		set, found, err := s.Load(key, fingerprint)
		if err != nil {
			klog.Warningf("cache %s: failed to load %s, regenerating: %+v", s.Name(), key, err)
		} else if found {
			klog.V(2).Infof("cache %s: hit %s", s.Name(), key)
			return flightResult{set: set, hit: true}, nil
		}
		klog.V(2).Infof("cache %s: miss %s", s.Name(), key)
		set, err = generate()
		if err != nil {
			return nil, err
		}
		if err = s.Store(key, fingerprint, set); err != nil {
			return nil, err
		}
		return flightResult{set: set}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r := v.(flightResult)
	if shared {
		return r.set.Clone(), r.hit, nil
	}
	return r.set, r.hit, nil
}

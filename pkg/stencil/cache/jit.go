// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cache

import (
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/gomlx/gostencil/pkg/stencil/artifacts"
	"github.com/gomlx/gostencil/pkg/support/fsutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// InfoFile is the name of the metadata file of a persisted entry.
const InfoFile = "cache_info.yaml"

// Info is the content of InfoFile.
type Info struct {
	Stencil     string   `yaml:"stencil"`
	Backend     string   `yaml:"backend"`
	Fingerprint string   `yaml:"fingerprint"`
	Options     string   `yaml:"options,omitempty"`
	Files       []string `yaml:"files"`
}

// JITStrategy persists the artifacts of each entry in the directory Key.Dir() under its root.
type JITStrategy struct {
	flight
	root string
}

var _ Strategy = (*JITStrategy)(nil)

// NewJIT returns a persistent cache rooted at outputPath, which is created if needed.
func NewJIT(outputPath string) (*JITStrategy, error) {
	if outputPath == "" {
		return nil, errors.Errorf("caching strategy %q requires an output path", JIT)
	}
	root, err := fsutil.ReplaceTildeInDir(outputPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "output path %q for caching strategy %q is not writable", root, JIT)
	}
	return &JITStrategy{root: root}, nil
}

// Name implements Strategy.
func (c *JITStrategy) Name() string { return JIT }

// Root directory of the cache.
func (c *JITStrategy) Root() string { return c.root }

// EntryDir returns the directory of the entry with the given key.
func (c *JITStrategy) EntryDir(key Key) string { return filepath.Join(c.root, key.Dir()) }

// ReadInfo reads the metadata of the entry. It returns os.ErrNotExist (wrapped) if there is none.
func (c *JITStrategy) ReadInfo(key Key) (*Info, error) {
	contents, err := os.ReadFile(filepath.Join(c.EntryDir(key), InfoFile))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read cache info of %s", key)
	}
	info := &Info{}
	if err := yaml.Unmarshal(contents, info); err != nil {
		return nil, errors.Wrapf(err, "corrupted cache info of %s", key)
	}
	return info, nil
}

// Load implements Strategy.
func (c *JITStrategy) Load(key Key, fingerprint string) (artifacts.Set, bool, error) {
	info, err := c.ReadInfo(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if info.Fingerprint != fingerprint {
		klog.V(2).Infof("cache %s: fingerprint of %s changed (%.12s -> %.12s)", JIT, key, info.Fingerprint, fingerprint)
		return nil, false, nil
	}
	set, err := artifacts.ReadFrom(c.EntryDir(key), info.Files)
	if err != nil {
		return nil, false, err
	}
	return set, true, nil
}

// Store implements Strategy. The entry is written to a staging directory first and then
// renamed in place, so the entry directory is either the previous or the new version.
func (c *JITStrategy) Store(key Key, fingerprint string, set artifacts.Set) error {
	staging := fsutil.StagingDir(c.root)
	defer func() { _ = os.RemoveAll(staging) }()
	if err := set.WriteTo(staging); err != nil {
		return err
	}
	info := Info{
		Stencil:     key.Stencil,
		Backend:     key.Backend,
		Fingerprint: fingerprint,
		Options:     key.Options,
		Files:       slices.Sorted(maps.Keys(set.Flatten())),
	}
	contents, err := yaml.Marshal(&info)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize cache info of %s", key)
	}
	if err := os.WriteFile(filepath.Join(staging, InfoFile), contents, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write cache info of %s", key)
	}

	dir := c.EntryDir(key)
	if err := fsutil.ReplaceDir(staging, dir); err != nil {
		return errors.WithMessagef(err, "storing cache entry %s", key)
	}
	klog.V(2).Infof("cache %s: stored %s in %s", JIT, key, dir)
	return nil
}

// Invalidate implements Strategy. The entry directory is first renamed away, then deleted.
func (c *JITStrategy) Invalidate(key Key) error {
	return errors.WithMessagef(fsutil.RemoveDir(c.EntryDir(key), c.root), "invalidating cache entry %s", key)
}

// Do implements Strategy.
func (c *JITStrategy) Do(key Key, fingerprint string, generate Generator) (artifacts.Set, bool, error) {
	return c.do(c, key, fingerprint, generate)
}

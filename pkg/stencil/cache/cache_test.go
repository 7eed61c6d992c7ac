// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cache

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gomlx/gostencil/pkg/stencil/artifacts"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counting(count *atomic.Int32) Generator {
	return func() (artifacts.Set, error) {
		count.Add(1)
		return artifacts.Set{
			"copy.py": artifacts.File("# copy\n"),
			"copy_src": artifacts.Bundle(artifacts.Set{
				"computation.hpp": artifacts.File("#pragma once\n"),
			}),
		}, nil
	}
}

var key = Key{Stencil: "copy", Backend: "gt:cpu_kfirst", Options: "format_source: false\n"}

func TestNew(t *testing.T) {
	for _, name := range []string{NoCaching, Memory, JIT} {
		s, err := New(name, t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
	_, err := New("disk", t.TempDir())
	require.ErrorIs(t, err, ErrUnknownStrategy)
	_, err = New(JIT, "")
	require.Error(t, err)
}

func TestKey(t *testing.T) {
	other := key
	other.Options = "format_source: true\n"
	assert.NotEqual(t, key.Dir(), other.Dir())
	assert.Equal(t, filepath.Join("gt_cpu_kfirst", "copy_"+key.optionsHash()), key.Dir())
}

func TestNoCaching(t *testing.T) {
	s, err := New(NoCaching, "")
	require.NoError(t, err)
	var count atomic.Int32
	for range 3 {
		_, hit, err := s.Do(key, "fp", counting(&count))
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, int32(3), count.Load())
}

func testStrategy(t *testing.T, s Strategy) {
	var count atomic.Int32
	set, hit, err := s.Do(key, "fp1", counting(&count))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, set.Has("copy_src/computation.hpp"))

	again, hit, err := s.Do(key, "fp1", counting(&count))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, set.Equal(again))
	assert.Equal(t, int32(1), count.Load())

	// Changed fingerprint: regenerate and replace.
	_, hit, err = s.Do(key, "fp2", counting(&count))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), count.Load())
	_, found, err := s.Load(key, "fp1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Invalidate(key))
	_, found, err = s.Load(key, "fp2")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, s.Invalidate(key), "invalidating a missing entry is not an error")
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	testStrategy(t, m)

	var count atomic.Int32
	set, _, err := m.Do(key, "fp", counting(&count))
	require.NoError(t, err)
	set["copy.py"] = artifacts.File("changed")
	cached, found, err := m.Load(key, "fp")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "# copy\n", cached["copy.py"].Text, "cached entries must not be shared")
}

func TestJIT(t *testing.T) {
	root := t.TempDir()
	c, err := NewJIT(root)
	require.NoError(t, err)
	testStrategy(t, c)

	var count atomic.Int32
	_, _, err = c.Do(key, "fp", counting(&count))
	require.NoError(t, err)
	info, err := c.ReadInfo(key)
	require.NoError(t, err)
	assert.Equal(t, "fp", info.Fingerprint)
	assert.Equal(t, []string{"copy.py", "copy_src/computation.hpp"}, info.Files)
	assert.FileExists(t, filepath.Join(root, key.Dir(), "copy_src", "computation.hpp"))

	// A new process (a new strategy on the same directory) finds the entry.
	c2, err := NewJIT(root)
	require.NoError(t, err)
	set, hit, err := c2.Do(key, "fp", counting(&count))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int32(1), count.Load())
	assert.Equal(t, "#pragma once\n", set["copy_src"].Bundle["computation.hpp"].Text)

	// No staging directories are left behind.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".staging-")
		assert.NotContains(t, e.Name(), ".old-")
	}
}

func TestConcurrentSameKey(t *testing.T) {
	for _, s := range []Strategy{NewMemory(), must.M1(NewJIT(t.TempDir()))} {
		var count atomic.Int32
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				set, _, err := s.Do(key, "fp", counting(&count))
				assert.NoError(t, err)
				assert.Len(t, set, 2)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), count.Load(), s.Name())
	}
}

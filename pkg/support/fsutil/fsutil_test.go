// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceTildeInDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cache", "gostencil"), MustReplaceTildeInDir("~/.cache/gostencil"))
	assert.Equal(t, home, MustReplaceTildeInDir("~"))
	assert.Equal(t, "/tmp/x", MustReplaceTildeInDir("/tmp/x"))
	assert.Equal(t, "", MustReplaceTildeInDir(""))
	_, err = ReplaceTildeInDir("~no-such-user-gostencil/x")
	assert.Error(t, err)
}

func TestReplaceDir(t *testing.T) {
	root := t.TempDir()
	dst := filepath.Join(root, "a", "entry")
	for _, contents := range []string{"first", "second"} {
		staging := StagingDir(root)
		require.NoError(t, os.MkdirAll(staging, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(staging, "f.txt"), []byte(contents), 0o644))
		require.NoError(t, ReplaceDir(staging, dst))
		got, err := os.ReadFile(filepath.Join(dst, "f.txt"))
		require.NoError(t, err)
		assert.Equal(t, contents, string(got))
		assert.NoDirExists(t, staging)
	}

	require.NoError(t, RemoveDir(dst, root))
	assert.NoDirExists(t, dst)
	require.NoError(t, RemoveDir(dst, root), "removing a missing directory")
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the parent directory \"a\" is left, no leftovers")
	assert.Equal(t, "a", entries[0].Name())
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func gtComputation() Set {
	return Set{"copy_src": Bundle(Set{
		"computation.hpp": File("#pragma once\n"),
		"computation.cpp": File("// cpp\n"),
	})}
}

func TestMergeBundles(t *testing.T) {
	bindings := Set{"copy_src": Bundle(Set{"bindings.cpp": File("// bindings\n")})}
	merged, err := Merge(gtComputation(), bindings)
	require.NoError(t, err)
	assert.Equal(t, []string{"copy_src"}, merged.Keys())
	assert.True(t, merged.Has("copy_src/computation.hpp"))
	assert.True(t, merged.Has("copy_src/bindings.cpp"))
	assert.False(t, merged.Has("copy_src/bindings.cpp/x"))
	assert.Equal(t, "// bindings\n", merged.Text("copy_src/bindings.cpp"))
	assert.Equal(t, "", merged.Text("missing"))

	// Inputs are not modified.
	assert.False(t, gtComputation().Has("copy_src/bindings.cpp"))
	assert.Len(t, bindings["copy_src"].Bundle, 1)

	_, err = Merge(gtComputation(), Set{"copy_src": Bundle(Set{"computation.cpp": File("again")})})
	require.ErrorContains(t, err, `"copy_src/computation.cpp" generated twice`)
	_, err = Merge(gtComputation(), Set{"copy_src": File("file, not bundle")})
	require.Error(t, err)
}

func TestFlattenAndWrite(t *testing.T) {
	set, err := Merge(gtComputation(), Set{"copy.py": File("print('x')\n")})
	require.NoError(t, err)
	files := set.Flatten()
	assert.Equal(t, map[string]string{
		"copy.py":                  "print('x')\n",
		"copy_src/computation.cpp": "// cpp\n",
		"copy_src/computation.hpp": "#pragma once\n",
	}, files)
	assert.Equal(t, len("print('x')\n")+len("// cpp\n")+len("#pragma once\n"), set.Size())
	assert.Contains(t, set.String(), "copy_src/computation.hpp (13 B)")

	back, err := FromFlat(files)
	require.NoError(t, err)
	assert.True(t, set.Equal(back))

	_, err = FromFlat(map[string]string{"a": "file", "a/b": "nested"})
	require.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, set.WriteTo(dir))
	contents, err := os.ReadFile(filepath.Join(dir, "copy_src", "computation.hpp"))
	require.NoError(t, err)
	assert.Equal(t, "#pragma once\n", string(contents))
	read, err := ReadFrom(dir, []string{"copy.py", "copy_src/computation.cpp", "copy_src/computation.hpp"})
	require.NoError(t, err)
	assert.True(t, set.Equal(read))
}

func TestCloneIsDeep(t *testing.T) {
	set := gtComputation()
	clone := set.Clone()
	clone["copy_src"].Bundle["computation.cu"] = File("")
	assert.False(t, set.Has("copy_src/computation.cu"))
	assert.False(t, set.Equal(clone))
	assert.True(t, set.Equal(gtComputation()))
}

// genSet generates sets whose file paths all start with prefix.
func genSet(prefix string) *rapid.Generator[Set] {
	return rapid.Custom(func(t *rapid.T) Set {
		files := make(map[string]string)
		n := rapid.IntRange(0, 6).Draw(t, "numFiles")
		for i := range n {
			bundle := rapid.SampledFrom([]string{"", "stencil_src/", "stencil_src/inner/"}).Draw(t, "bundle")
			files[fmt.Sprintf("%s%s%d.txt", bundle, prefix, i)] = rapid.String().Draw(t, "text")
		}
		set, err := FromFlat(files)
		if err != nil {
			t.Fatalf("FromFlat: %v", err)
		}
		return set
	})
}

// Merging sets with disjoint files yields the union of their files, in any order.
func TestMergeDisjoint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genSet("computation").Draw(t, "a")
		b := genSet("bindings").Draw(t, "b")
		ab, err := Merge(a, b)
		require.NoError(t, err)
		ba, err := Merge(b, a)
		require.NoError(t, err)
		require.True(t, ab.Equal(ba))
		flat := ab.Flatten()
		require.Len(t, flat, len(a.Flatten())+len(b.Flatten()))
		for p, text := range a.Flatten() {
			require.Equal(t, text, flat[p])
		}
		for p, text := range b.Flatten() {
			require.Equal(t, text, flat[p])
		}
		if len(a.Flatten()) > 0 {
			_, err := Merge(ab, a)
			require.Error(t, err, "merging overlapping files must fail")
		}
	})
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package artifacts holds the output of code generation: a Set of named source files and nested
// source bundles.
//
// Sets returned by a backend are never modified afterward: use Clone before changing one.
package artifacts

import (
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Entry of a Set: either the text of a source file, or a nested Set (a source bundle).
type Entry struct {
	Text   string
	Bundle Set
}

// File returns an Entry holding source text.
func File(text string) Entry { return Entry{Text: text} }

// Bundle returns an Entry holding a nested Set.
func Bundle(set Set) Entry {
	if set == nil {
		set = Set{}
	}
	return Entry{Bundle: set}
}

// IsBundle returns whether the entry is a nested Set.
func (e Entry) IsBundle() bool { return e.Bundle != nil }

// Set maps file names (or bundle names) to entries.
type Set map[string]Entry

// Keys returns the sorted names of the top level entries.
func (s Set) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}

// Has returns whether the slash separated path (e.g. "copy_src/computation.hpp") exists.
func (s Set) Has(p string) bool {
	_, found := s.Get(p)
	return found
}

// Get returns the entry at the slash separated path.
func (s Set) Get(p string) (Entry, bool) {
	parts := strings.Split(p, "/")
	current := s
	for i, part := range parts {
		entry, found := current[part]
		if !found {
			return Entry{}, false
		}
		if i == len(parts)-1 {
			return entry, true
		}
		if !entry.IsBundle() {
			return Entry{}, false
		}
		current = entry.Bundle
	}
	return Entry{}, false
}

// Text returns the source text of the file at the slash separated path, or "" if it doesn't exist.
func (s Set) Text(p string) string {
	entry, found := s.Get(p)
	if !found {
		return ""
	}
	return entry.Text
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	c := make(Set, len(s))
	for name, entry := range s {
		if entry.IsBundle() {
			entry = Bundle(entry.Bundle.Clone())
		}
		c[name] = entry
	}
	return c
}

// Equal returns whether both sets have the same structure and contents.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for name, entry := range s {
		o, found := other[name]
		if !found || entry.IsBundle() != o.IsBundle() {
			return false
		}
		if entry.IsBundle() {
			if !entry.Bundle.Equal(o.Bundle) {
				return false
			}
		} else if entry.Text != o.Text {
			return false
		}
	}
	return true
}

// Merge returns a new set with the contents of a and b.
//
// Bundles with the same name are merged recursively. Any file present in both sets, or a name
// that is a file in one set and a bundle in the other, is an error: computation and bindings
// artifacts must be disjoint.
func Merge(a, b Set) (Set, error) {
	merged := a.Clone()
	if merged == nil {
		merged = Set{}
	}
	if err := mergeInto(merged, b, ""); err != nil {
		return nil, err
	}
	return merged, nil
}

func mergeInto(dst, src Set, prefix string) error {
	for _, name := range src.Keys() {
		entry := src[name]
		existing, found := dst[name]
		if !found {
			if entry.IsBundle() {
				entry = Bundle(entry.Bundle.Clone())
			}
			dst[name] = entry
			continue
		}
		if !existing.IsBundle() || !entry.IsBundle() {
			return errors.Errorf("artifact %q generated twice", path.Join(prefix, name))
		}
		if err := mergeInto(existing.Bundle, entry.Bundle, path.Join(prefix, name)); err != nil {
			return err
		}
	}
	return nil
}

// Flatten returns the files of the set keyed by their slash separated paths.
// Empty bundles are dropped.
func (s Set) Flatten() map[string]string {
	files := make(map[string]string)
	s.flattenInto(files, "")
	return files
}

func (s Set) flattenInto(files map[string]string, prefix string) {
	for name, entry := range s {
		p := path.Join(prefix, name)
		if entry.IsBundle() {
			entry.Bundle.flattenInto(files, p)
		} else {
			files[p] = entry.Text
		}
	}
}

// FromFlat is the inverse of Flatten.
func FromFlat(files map[string]string) (Set, error) {
	s := Set{}
	for _, p := range slices.Sorted(maps.Keys(files)) {
		parts := strings.Split(p, "/")
		current := s
		for _, dir := range parts[:len(parts)-1] {
			entry, found := current[dir]
			if !found {
				entry = Bundle(nil)
				current[dir] = entry
			} else if !entry.IsBundle() {
				return nil, errors.Errorf("artifact path %q goes through file %q", p, dir)
			}
			current = entry.Bundle
		}
		name := parts[len(parts)-1]
		if _, found := current[name]; found {
			return nil, errors.Errorf("artifact %q is both a file and a bundle", p)
		}
		current[name] = File(files[p])
	}
	return s, nil
}

// Size returns the total number of bytes of the files in the set.
func (s Set) Size() int {
	total := 0
	for _, text := range s.Flatten() {
		total += len(text)
	}
	return total
}

// String returns a sorted listing of the files with their sizes.
func (s Set) String() string {
	files := s.Flatten()
	var sb strings.Builder
	for _, p := range slices.Sorted(maps.Keys(files)) {
		fmt.Fprintf(&sb, "%s (%s)\n", p, humanize.Bytes(uint64(len(files[p]))))
	}
	return sb.String()
}

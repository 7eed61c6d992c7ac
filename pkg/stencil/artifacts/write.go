// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package artifacts

import (
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/gomlx/gostencil/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// WriteTo writes the files of the set under dir, creating bundles as sub-directories.
// A leading "~" in dir is replaced by the user's home directory.
func (s Set) WriteTo(dir string) error {
	dir, err := fsutil.ReplaceTildeInDir(dir)
	if err != nil {
		return err
	}
	files := s.Flatten()
	for _, p := range slices.Sorted(maps.Keys(files)) {
		filePath := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory for artifact %q", filePath)
		}
		if err := os.WriteFile(filePath, []byte(files[p]), 0o644); err != nil {
			return errors.Wrapf(err, "failed to write artifact %q", filePath)
		}
	}
	klog.V(3).Infof("wrote %d artifacts to %s", len(files), dir)
	return nil
}

// ReadFrom reads back the files written under dir by WriteTo, given their slash separated paths.
func ReadFrom(dir string, paths []string) (Set, error) {
	files := make(map[string]string, len(paths))
	for _, p := range paths {
		contents, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(p)))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read artifact %q from %s", p, dir)
		}
		files[p] = string(contents)
	}
	return FromFlat(files)
}

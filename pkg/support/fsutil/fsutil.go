// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fsutil contains the file system helpers of the build cache: home directory expansion
// of output paths, and directory swaps that never leave a half written directory in place.
package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MustReplaceTildeInDir is like ReplaceTildeInDir, but panics on error.
func MustReplaceTildeInDir(dir string) string {
	dir, err := ReplaceTildeInDir(dir)
	if err != nil {
		panic(err)
	}
	return dir
}

// ReplaceTildeInDir replaces a leading "~" (current user) or "~name" (user name) by the home
// directory. Other paths are returned unchanged.
func ReplaceTildeInDir(dir string) (string, error) {
	if !strings.HasPrefix(dir, "~") {
		return dir, nil
	}
	userName, rest, _ := strings.Cut(dir[1:], "/")
	var home string
	if userName == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", errors.Wrapf(err, "failed to find the home directory for path %q", dir)
		}
	} else {
		usr, err := user.Lookup(userName)
		if err != nil {
			return "", errors.Wrapf(err, "failed to lookup home directory of user %q in path %q", userName, dir)
		}
		home = usr.HomeDir
	}
	return filepath.Join(home, rest), nil
}

// RemoveDir removes dir and its contents. The directory is first renamed to a hidden sibling
// under parent, so concurrent readers see either the whole directory or nothing.
// A missing dir is not an error.
func RemoveDir(dir, parent string) error {
	trash := filepath.Join(parent, ".old-"+uuid.NewString())
	if err := os.Rename(dir, trash); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.Wrapf(err, "failed to move %s away", dir)
	}
	return errors.Wrapf(os.RemoveAll(trash), "failed to remove %s", trash)
}

// ReplaceDir moves the directory src to dst, replacing dst if it exists. The parent of dst is
// created if needed. src and dst must be on the same file system.
func ReplaceDir(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create parent of %s", dst)
	}
	if err := RemoveDir(dst, filepath.Dir(dst)); err != nil {
		return err
	}
	return errors.Wrapf(os.Rename(src, dst), "failed to move %s to %s", src, dst)
}

// StagingDir returns a new unique hidden directory path under parent, to be filled and then
// moved into place with ReplaceDir. The directory is not created.
func StagingDir(parent string) string {
	return filepath.Join(parent, ".staging-"+uuid.NewString())
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ast

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/mitchellh/copystructure"
	"github.com/pkg/errors"
)

// Clone returns a deep copy of the definition: passes work on the copy, and the original
// can be built again (for other backends, or with other passes) unchanged.
func (def *Definition) Clone() (*Definition, error) {
	copied, err := copystructure.Copy(def)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to deep-copy definition %q", def.Name)
	}
	return copied.(*Definition), nil
}

// CloneExpr returns a deep copy of an expression.
func CloneExpr(e Expr) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	copied, err := copystructure.Copy(e)
	if err != nil {
		return nil, errors.Wrap(err, "failed to deep-copy expression")
	}
	return copied.(Expr), nil
}

// Fingerprint returns a content hash of the canonical form of the definition (see Print),
// combined with the given extra identities (e.g. pass list, backend name and options).
//
// It's stable across processes, so it can be used to validate persisted artifacts.
func Fingerprint(def *Definition, extra ...string) string {
	h := sha256.New()
	h.Write([]byte(Print(def)))
	for _, e := range extra {
		h.Write([]byte{0})
		h.Write([]byte(e))
	}
	return hex.EncodeToString(h.Sum(nil))
}

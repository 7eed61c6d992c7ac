// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Language of generated code.
type Language int

const (
	Python Language = iota
	Cpp
	Cuda
)

// String returns the canonical name of the language: "python", "c++" or "cuda".
func (l Language) String() string {
	switch l {
	case Python:
		return "python"
	case Cpp:
		return "c++"
	case Cuda:
		return "cuda"
	}
	return fmt.Sprintf("Language(%d)", int(l))
}

// SourceExt returns the extension of source files in the language, without the dot.
func (l Language) SourceExt() string {
	switch l {
	case Python:
		return "py"
	case Cpp:
		return "cpp"
	case Cuda:
		return "cu"
	}
	return "txt"
}

// ParseLanguage converts a language name ("python", "c++"/"cpp", "cuda") to a Language.
func ParseLanguage(name string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "python", "py":
		return Python, nil
	case "c++", "cpp":
		return Cpp, nil
	case "cuda":
		return Cuda, nil
	}
	return 0, errors.Errorf("unknown language %q, valid languages are python, c++ and cuda", name)
}

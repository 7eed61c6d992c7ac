// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"strconv"
	"strings"

	"github.com/gomlx/gostencil/internal/scoped"
	"github.com/pkg/errors"
)

// optFlags implements flag.Value for the repeated -opt flag.
type optFlags struct {
	params *scoped.Params
	raw    []string
}

// String implements flag.Value.
func (o *optFlags) String() string { return strings.Join(o.raw, ",") }

// Set implements flag.Value. The format is "[scope:]key=value"; the scope defaults to "/".
func (o *optFlags) Set(value string) error {
	scope, assignment := "/", value
	if before, after, found := strings.Cut(value, ":"); found && strings.HasPrefix(before, "/") {
		scope, assignment = before, after
	}
	key, v, found := strings.Cut(assignment, "=")
	if !found || key == "" {
		return errors.Errorf("invalid option %q, expected \"[scope:]key=value\"", value)
	}
	if o.params == nil {
		o.params = scoped.New("/")
	}
	o.params.Set(scope, key, parseValue(v))
	o.raw = append(o.raw, value)
	return nil
}

// parseValue converts an option value to a bool, int, float64 or, if nothing else fits, a string.
func parseValue(v string) any {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

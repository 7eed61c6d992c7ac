// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// SupportedDTypes lists the element types a stencil field can hold.
var SupportedDTypes = []dtypes.DType{
	dtypes.Bool, dtypes.Int32, dtypes.Int64, dtypes.Float16, dtypes.Float32, dtypes.Float64,
}

// IsSupportedDType returns whether the dtype can be used by a field.
func IsSupportedDType(dtype dtypes.DType) bool {
	for _, supported := range SupportedDTypes {
		if dtype == supported {
			return true
		}
	}
	return false
}

// ParseDType converts a dtype name ("float64", "Float32", "F32", "int64", ...) to a DType.
// Only the dtypes in SupportedDTypes are accepted.
func ParseDType(name string) (dtypes.DType, error) {
	dtype, found := dtypes.MapOfNames[name]
	if !found {
		for _, candidate := range SupportedDTypes {
			if strings.EqualFold(candidate.String(), name) || strings.EqualFold(NumpyType(candidate), name) {
				dtype, found = candidate, true
				break
			}
		}
	}
	if !found {
		return dtypes.InvalidDType, errors.Errorf("unknown dtype %q", name)
	}
	if !IsSupportedDType(dtype) {
		return dtypes.InvalidDType, errors.Errorf("dtype %s is not supported for stencil fields", dtype)
	}
	return dtype, nil
}

// CppType returns the C++ scalar type name for the dtype.
func CppType(dtype dtypes.DType) string {
	switch dtype {
	case dtypes.Bool:
		return "bool"
	case dtypes.Int32:
		return "std::int32_t"
	case dtypes.Int64:
		return "std::int64_t"
	case dtypes.Float16:
		return "__half"
	case dtypes.Float32:
		return "float"
	case dtypes.Float64:
		return "double"
	}
	return "void"
}

// NumpyType returns the NumPy dtype name for the dtype.
func NumpyType(dtype dtypes.DType) string {
	switch dtype {
	case dtypes.Bool:
		return "bool_"
	case dtypes.Int32:
		return "int32"
	case dtypes.Int64:
		return "int64"
	case dtypes.Float16:
		return "float16"
	case dtypes.Float32:
		return "float32"
	case dtypes.Float64:
		return "float64"
	}
	return "object"
}

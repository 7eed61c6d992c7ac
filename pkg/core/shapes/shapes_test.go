// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensionIdentity(t *testing.T) {
	assert.Equal(t, I, NewDimension("I", KindHorizontal))
	assert.NotEqual(t, I, NewDimension("I", KindVertical))
	assert.NotEqual(t, I, J)

	// Usable as map keys.
	m := map[Dimension]int{I: 1, K: 3}
	assert.Equal(t, 3, m[NewDimension("K", KindVertical)])
	_, found := m[NewDimension("K", KindUnspecified)]
	assert.False(t, found)

	assert.True(t, K.IsVertical())
	assert.True(t, I.IsHorizontal())
	assert.Equal(t, "K(vertical)", K.String())
	assert.Equal(t, "E", NewDimension("edge", KindUnspecified).Letter())
}

func TestParseDimensionKind(t *testing.T) {
	for _, kind := range []DimensionKind{KindUnspecified, KindHorizontal, KindVertical} {
		got, err := ParseDimensionKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}
	_, err := ParseDimensionKind("diagonal")
	require.Error(t, err)
}

func TestFieldType(t *testing.T) {
	ft, err := MakeFieldType(dtypes.Float64, I, J, K)
	require.NoError(t, err)
	assert.Equal(t, "IJK", ft.Axes())
	assert.Equal(t, 3, ft.Rank())
	assert.True(t, ft.HasDim("K"))
	assert.Equal(t, "Field[[I, J, K], Float64]", ft.String())

	// Order is significant.
	ft2, err := MakeFieldType(dtypes.Float64, K, J, I)
	require.NoError(t, err)
	assert.False(t, ft.Equal(ft2))
	assert.Equal(t, "KJI", ft2.Axes())
	assert.True(t, ft.Equal(ft.Clone()))

	_, err = MakeFieldType(dtypes.Float64, I, I)
	require.Error(t, err)
	_, err = MakeFieldType(dtypes.InvalidDType, I)
	require.Error(t, err)
}

func TestParseDType(t *testing.T) {
	for name, want := range map[string]dtypes.DType{
		"float64": dtypes.Float64,
		"Float32": dtypes.Float32,
		"int64":   dtypes.Int64,
		"bool":    dtypes.Bool,
		"float16": dtypes.Float16,
	} {
		got, err := ParseDType(name)
		require.NoErrorf(t, err, "dtype %q", name)
		assert.Equalf(t, want, got, "dtype %q", name)
	}
	_, err := ParseDType("complex128")
	require.Error(t, err)
	_, err = ParseDType("quaternion")
	require.Error(t, err)

	assert.Equal(t, "double", CppType(dtypes.Float64))
	assert.Equal(t, "float32", NumpyType(dtypes.Float32))
}

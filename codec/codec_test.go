// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip[T any](t *testing.T, c Codec[T], v T) T {
	t.Helper()
	b, err := c.Append([]byte("prefix"), v)
	require.NoError(t, err)
	require.Equal(t, "prefix", string(b[:6]))
	got, err := c.Decode(b[6:])
	require.NoError(t, err)
	return got
}

func TestBuiltins(t *testing.T) {
	require.Equal(t, "héllo", roundTrip(t, String, "héllo"))
	require.Equal(t, "", roundTrip(t, String, ""))
	require.Equal(t, []byte{0, 1, 2}, roundTrip(t, Bytes, []byte{0, 1, 2}))
	require.Equal(t, math.Pi, roundTrip(t, Float64, math.Pi))
	require.True(t, math.IsNaN(roundTrip(t, Float64, math.NaN())))
	require.Equal(t, struct{}{}, roundTrip(t, Empty, struct{}{}))

	for _, v := range []int64{0, 1, -1, math.MinInt64, math.MaxInt64} {
		require.Equal(t, v, roundTrip(t, Int[int64](), v))
	}
	for _, v := range []uint64{0, 1, math.MaxUint64} {
		require.Equal(t, v, roundTrip(t, Int[uint64](), v))
	}
	require.Equal(t, int8(-128), roundTrip(t, Int[int8](), -128))
	require.Equal(t, uint16(65535), roundTrip(t, Int[uint16](), 65535))

	type doc struct {
		Name  string   `json:"name"`
		Tags  []string `json:"tags"`
		Count int      `json:"count"`
	}
	d := doc{Name: "x", Tags: []string{"a", "b"}, Count: 3}
	require.Equal(t, d, roundTrip(t, JSON[doc](), d))
}

func TestIntWidths(t *testing.T) {
	// Values written as one integer type can be read as another when they
	// fit.
	b, err := Int[int]().Append(nil, -5)
	require.NoError(t, err)
	v8, err := Int[int8]().Decode(b)
	require.NoError(t, err)
	require.Equal(t, int8(-5), v8)

	_, err = Int[uint8]().Decode(b)
	require.Error(t, err)

	b, err = Int[int]().Append(nil, 300)
	require.NoError(t, err)
	_, err = Int[int8]().Decode(b)
	require.Error(t, err)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Int[int]().Decode([]byte{1, 2, 3})
	require.Error(t, err)
	_, err = Float64.Decode(nil)
	require.Error(t, err)
	_, err = Empty.Decode([]byte{0})
	require.Error(t, err)
	_, err = JSON[map[string]int]().Decode([]byte("{"))
	require.Error(t, err)
}

func TestBytesDecodeCopies(t *testing.T) {
	src := []byte("abc")
	got, err := Bytes.Decode(src)
	require.NoError(t, err)
	src[0] = 'x'
	require.Equal(t, "abc", string(got))
}

func TestCompatible(t *testing.T) {
	testCases := []struct {
		a, b     ID
		expected bool
	}{
		{IDString, IDString, true},
		{IDString, IDBytes, false},
		{IDOpaque, IDInt, true},
		{IDJSON, IDOpaque, true},
		{IDOpaque, IDOpaque, true},
	}
	for _, c := range testCases {
		t.Run(c.a.String()+"/"+c.b.String(), func(t *testing.T) {
			require.Equal(t, c.expected, Compatible(c.a, c.b))
		})
	}
	require.Equal(t, IDOpaque, Opaque.ID())
	require.Equal(t, IDString, String.ID())
}

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

package compress

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("hash tables all the way down ", 1000))
	for _, alg := range []Algorithm{None, LZ4, Zstd} {
		for _, level := range []int{0, 1, 9} {
			t.Run(fmt.Sprintf("%s/%d", alg, level), func(t *testing.T) {
				var buf bytes.Buffer
				w, err := NewWriter(&buf, alg, level)
				require.NoError(t, err)
				_, err = w.Write(data)
				require.NoError(t, err)
				require.NoError(t, w.Close())
				if alg != None {
					require.Less(t, buf.Len(), len(data)/10)
				}

				r, err := NewReader(&buf, alg)
				require.NoError(t, err)
				got, err := io.ReadAll(r)
				require.NoError(t, err)
				require.NoError(t, r.Close())
				require.Equal(t, data, got)
			})
		}
	}
}

func TestInvalid(t *testing.T) {
	_, err := NewWriter(io.Discard, Algorithm(3), 0)
	require.Error(t, err)
	_, err = NewReader(bytes.NewReader(nil), Algorithm(3))
	require.Error(t, err)
	_, err = NewWriter(io.Discard, LZ4, 10)
	require.Error(t, err)
	_, err = NewWriter(io.Discard, Zstd, -1)
	require.Error(t, err)
	require.False(t, Algorithm(3).Valid())
}

func TestParse(t *testing.T) {
	for _, alg := range []Algorithm{None, LZ4, Zstd} {
		got, err := Parse(alg.String())
		require.NoError(t, err)
		require.Equal(t, alg, got)
	}
	got, err := Parse("")
	require.NoError(t, err)
	require.Equal(t, None, got)
	_, err = Parse("gzip")
	require.Error(t, err)
}

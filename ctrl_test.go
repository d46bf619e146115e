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

package hashtable

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func group(ctrls ...ctrl) ctrlGroup {
	return loadGroup(ctrls, 0)
}

func bitsetIndexes(b bitset) []uintptr {
	var res []uintptr
	for b != 0 {
		res = append(res, b.first())
		b = b.removeFirst()
	}
	return res
}

func TestProbeSeq(t *testing.T) {
	genSeq := func(n int, hash, mask uintptr) []uintptr {
		seq := makeProbeSeq(hash, mask)
		vals := make([]uintptr, n)
		for i := 0; i < n; i++ {
			vals[i] = seq.offset
			seq = seq.next()
		}
		return vals
	}

	// The Abseil probeSeq test cases, scaled by the group size.
	expected := []uintptr{0, 8, 24, 48, 80, 120, 40, 96, 32, 104, 56, 16, 112, 88, 72, 64}
	require.Equal(t, expected, genSeq(16, 0, 127))
	require.Equal(t, expected, genSeq(16, 128, 127))

	// Verify that we touch all of the groups no matter what our start offset
	// within the group is.
	for i := uintptr(0); i < 128; i++ {
		vals := genSeq(16, i, 127)
		sort.Slice(vals, func(i, j int) bool {
			return vals[i] < vals[j]
		})
		for j := range vals {
			require.EqualValues(t, (i%groupSize)+uintptr(j)*groupSize, vals[j])
		}
	}
}

func TestMatchH2(t *testing.T) {
	g := group(0x1, 0x2, 0x3, 0x4, 0x5, 0x6, 0x7, 0x8)
	for i := uint8(1); i <= 8; i++ {
		match := g.matchH2(i)
		require.EqualValues(t, i-1, match.first())
	}
	require.Zero(t, group(ctrlEmpty, ctrlDeleted, ctrlEmpty, ctrlEmpty,
		ctrlEmpty, ctrlEmpty, ctrlDeleted, ctrlEmpty).matchH2(0))
}

func TestMatchEmpty(t *testing.T) {
	testCases := []struct {
		ctrls    []ctrl
		expected []uintptr
	}{
		{[]ctrl{0x1, 0x2, 0x3, 0x4, 0x5, 0x6, 0x7, 0x8}, nil},
		{[]ctrl{0x1, 0x2, 0x3, ctrlEmpty, 0x5, ctrlDeleted, 0x7, 0x7f}, []uintptr{3}},
		{[]ctrl{0x1, 0x2, 0x3, ctrlEmpty, 0x5, 0x6, ctrlEmpty, 0x8}, []uintptr{3, 6}},
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			require.Equal(t, c.expected, bitsetIndexes(group(c.ctrls...).matchEmpty()))
		})
	}
}

func TestMatchEmptyOrDeleted(t *testing.T) {
	testCases := []struct {
		ctrls    []ctrl
		expected []uintptr
	}{
		{[]ctrl{0x1, 0x2, 0x3, 0x4, 0x5, 0x6, 0x7, 0x8}, nil},
		{[]ctrl{0x1, 0x2, ctrlEmpty, ctrlDeleted, 0x5, 0x6, 0x7, ctrlEmpty}, []uintptr{2, 3, 7}},
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			require.Equal(t, c.expected, bitsetIndexes(group(c.ctrls...).matchEmptyOrDeleted()))
		})
	}
}

func TestMatchFull(t *testing.T) {
	g := group(0x1, ctrlEmpty, 0x0, ctrlDeleted, 0x7f, ctrlEmpty, ctrlEmpty, 0x40)
	require.Equal(t, []uintptr{0, 2, 4, 7}, bitsetIndexes(g.matchFull()))
	require.Equal(t, 4, g.matchFull().count())
}

func TestConvertNonFullToEmptyAndFullToDeleted(t *testing.T) {
	ctrls := make([]ctrl, groupSize)
	expected := make([]ctrl, groupSize)
	for i := 0; i < 100; i++ {
		for j := 0; j < groupSize; j++ {
			switch rand.Intn(3) {
			case 0: // 33% empty
				ctrls[j] = ctrlEmpty
				expected[j] = ctrlEmpty
			case 1: // 33% deleted
				ctrls[j] = ctrlDeleted
				expected[j] = ctrlEmpty
			default: // 33% full
				ctrls[j] = ctrl(rand.Intn(128))
				expected[j] = ctrlDeleted
			}
		}

		storeGroup(ctrls, 0, loadGroup(ctrls, 0).convertNonFullToEmptyAndFullToDeleted())
		require.EqualValues(t, expected, ctrls)
	}
}

func bitsetFromString(t *testing.T, str string) bitset {
	require.Equal(t, 8, len(str))
	var b bitset
	for i := 0; i < 8; i++ {
		require.True(t, str[i] == '0' || str[i] == '1')
		if str[i] == '1' {
			b |= 0x80 << (i * 8)
		}
	}
	return b
}

func TestBitset(t *testing.T) {
	testCases := []struct {
		in    string
		first uintptr
		count int
		rest  string
	}{
		{"00000000", groupSize, 0, "00000000"},
		{"10000000", 0, 1, "00000000"},
		{"01010000", 1, 2, "00010000"},
		{"00000001", 7, 1, "00000000"},
		{"11111111", 0, 8, "01111111"},
	}
	for _, c := range testCases {
		t.Run(c.in, func(t *testing.T) {
			b := bitsetFromString(t, c.in)
			require.Equal(t, c.in, b.String())
			require.Equal(t, c.first, b.first())
			require.Equal(t, c.count, b.count())
			require.Equal(t, c.rest, b.removeFirst().String())
		})
	}
}

func TestSetCtrlMirrors(t *testing.T) {
	const capacity = 16
	ctrls := make([]ctrl, capacity+groupSize-1)
	for i := range ctrls {
		ctrls[i] = ctrlEmpty
	}
	for i := uintptr(0); i < capacity; i++ {
		setCtrl(ctrls, capacity-1, i, ctrl(i))
	}
	for i := uintptr(0); i < groupSize-1; i++ {
		require.Equal(t, ctrls[i], ctrls[capacity+i])
	}
	// A group starting near the end wraps around through the mirror.
	g := loadGroup(ctrls, capacity-2)
	require.Equal(t, []uintptr{0, 1, 2, 3, 4, 5, 6, 7}, bitsetIndexes(g.matchFull()))
	require.EqualValues(t, 2, g.matchH2(0).first())
}

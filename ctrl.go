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
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"
)

const (
	groupSize = 8

	ctrlEmpty   ctrl = 0b10000000
	ctrlDeleted ctrl = 0b11111110

	bitsetLSB = 0x0101010101010101
	bitsetMSB = 0x8080808080808080
)

// Each bucket in the table has a control byte which can have one of three
// states: empty, deleted and full. They have the following bit patterns:
//
//	  empty: 1 0 0 0 0 0 0 0
//	deleted: 1 1 1 1 1 1 1 0
//	   full: 0 h h h h h h h  // h represents the H2 hash bits
//
// The control bytes live in their own array, parallel to the slots, so that a
// probe only touches the slots whose H2 matches.
type ctrl uint8

// emptyCtrls backs every table that has not allocated yet. It is never
// written to: it contains no full bytes so nothing ever matches, and inserts
// grow the table before placing anything.
var emptyCtrls = func() []ctrl {
	v := make([]ctrl, groupSize)
	for i := range v {
		v[i] = ctrlEmpty
	}
	return v
}()

// ctrlGroup is groupSize control bytes loaded as a little-endian word, so
// byte i of the group is bits [8i, 8i+8).
type ctrlGroup uint64

func loadGroup(ctrls []ctrl, offset uintptr) ctrlGroup {
	b := ctrls[offset : offset+groupSize : offset+groupSize]
	return ctrlGroup(binary.LittleEndian.Uint64(ctrlBytes(b)))
}

func storeGroup(ctrls []ctrl, offset uintptr, g ctrlGroup) {
	b := ctrls[offset : offset+groupSize : offset+groupSize]
	binary.LittleEndian.PutUint64(ctrlBytes(b), uint64(g))
}

// matchH2 returns the set of full bytes in the group equal to h.
func (g ctrlGroup) matchH2(h uint8) bitset {
	// NB: This generic matching routine produces false positive matches when
	// h is 2^N and the control bytes have a seq of 2^N followed by 2^N+1. For
	// example: if ctrls==0x0302 and h=02, we'll compute v as 0x0100. When we
	// subtract off 0x0101 the first 2 bytes we'll become 0xffff and both be
	// considered matches of h. The false positive matches are not a problem,
	// just a rare inefficiency. Note that they only occur if there is a real
	// match and never occur on ctrlEmpty or ctrlDeleted. The subsequent key
	// comparisons ensure that there is no correctness issue.
	v := uint64(g) ^ (bitsetLSB * uint64(h))
	return bitset(((v - bitsetLSB) &^ v) & bitsetMSB)
}

// matchEmpty returns a bitset where each byte is 0x80 if that control byte
// indicates an empty slot (and 0x00 otherwise).
func (g ctrlGroup) matchEmpty() bitset {
	// An empty slot is   1000 0000
	// A deleted slot is  1111 1110
	// A slot is empty iff bit 7 is set and bit 1 is not.
	v := uint64(g)
	return bitset((v &^ (v << 6)) & bitsetMSB)
}

// matchEmptyOrDeleted returns a bitset where each byte is 0x80 if that
// control byte indicates an empty or deleted slot. Both have the MSB set and
// full slots never do.
func (g ctrlGroup) matchEmptyOrDeleted() bitset {
	return bitset(uint64(g) & bitsetMSB)
}

// matchFull returns a bitset of the full slots in the group.
func (g ctrlGroup) matchFull() bitset {
	return bitset(^uint64(g) & bitsetMSB)
}

// convertNonFullToEmptyAndFullToDeleted converts deleted control bytes in a
// group to empty control bytes, and control bytes indicating full slots to
// deleted control bytes.
func (g ctrlGroup) convertNonFullToEmptyAndFullToDeleted() ctrlGroup {
	// An empty slot is     1000 0000
	// A deleted slot is    1111 1110
	// A full slot is       0??? ????
	//
	// We select the MSB, invert, add 1 if the MSB was set and zero out the low
	// bit.
	//
	//  - if the MSB was set (i.e. slot was empty or deleted):
	//     v:             1000 0000
	//     ^v:            0111 1111
	//     ^v + (v >> 7): 1000 0000
	//     &^ bitsetLSB:  1000 0000  = empty slot.
	//
	// - if the MSB was not set (i.e. full slot):
	//     v:             0000 0000
	//     ^v:            1111 1111
	//     ^v + (v >> 7): 1111 1111
	//     &^ bitsetLSB:  1111 1110 = deleted slot.
	//
	v := uint64(g) & bitsetMSB
	return ctrlGroup((^v + (v >> 7)) &^ bitsetLSB)
}

// bitset represents a set of slots within a group.
//
// The underlying representation uses one byte per slot, where each byte is
// either 0x80 if the slot is part of the set or 0x00 otherwise. This makes it
// convenient to calculate for an entire group at once (e.g. see matchEmpty).
type bitset uint64

// first returns the relative index of the first slot in the set. Returns
// groupSize if the set is empty.
func (b bitset) first() uintptr {
	return uintptr(bits.TrailingZeros64(uint64(b))) >> 3
}

// removeFirst removes the first slot from the set.
func (b bitset) removeFirst() bitset {
	return b & (b - 1)
}

func (b bitset) count() int {
	return bits.OnesCount64(uint64(b))
}

func (b bitset) String() string {
	var buf strings.Builder
	buf.Grow(groupSize)
	for i := 0; i < groupSize; i++ {
		if (b & (bitset(0x80) << (i << 3))) != 0 {
			buf.WriteString("1")
		} else {
			buf.WriteString("0")
		}
	}
	return buf.String()
}

// probeSeq maintains the state for a probe sequence. The sequence is a
// triangular progression of the form
//
//	p(i) := groupSize * (i^2 + i)/2 + hash (mod mask+1)
//
// The use of groupSize ensures that each probe step does not overlap groups;
// the sequence effectively outputs the addresses of *groups* (although not
// necessarily aligned to any boundary). The group machinery allows us to
// check an entire group with minimal branching.
//
// Wrapping around at mask+1 is important, but not for the obvious reason. The
// first groupSize-1 control bytes are mirrored at the end of the array, which
// a group load will find and use for selecting candidates. However, when
// those candidates' slots are actually inspected, there are no corresponding
// slots for the cloned bytes, so we need to make sure we've treated those
// offsets as "wrapping around".
//
// This probe sequence visits every group exactly once if the number of
// groups is a power of two, since (i^2+i)/2 is a bijection in Z/(2^m). See
// https://en.wikipedia.org/wiki/Quadratic_probing
type probeSeq struct {
	mask   uintptr
	offset uintptr
	index  uintptr
}

func makeProbeSeq(hash, mask uintptr) probeSeq {
	return probeSeq{
		mask:   mask,
		offset: hash & mask,
		index:  0,
	}
}

func (s probeSeq) next() probeSeq {
	s.index += groupSize
	s.offset = (s.offset + s.index) & s.mask
	return s
}

func (s probeSeq) offsetAt(i uintptr) uintptr {
	return (s.offset + i) & s.mask
}

func (s probeSeq) String() string {
	return fmt.Sprintf("mask=%d offset=%d index=%d", s.mask, s.offset, s.index)
}

// Extracts the H1 portion of a hash: the 57 upper bits.
func h1(h uint64) uintptr {
	return uintptr(h >> 7)
}

// Extracts the H2 portion of a hash: the 7 bits not used for h1.
//
// These are used as an occupied control byte.
func h2(h uint64) uint8 {
	return uint8(h & 0x7f)
}

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

// Package hashtable implements a family of open-addressing hash tables in the
// style of Swiss Tables (https://abseil.io/about/design/swisstables) and
// sparsepp: flat maps and sets that store entries inline in the bucket
// array, and node maps and sets whose buckets only hold a pointer to a heap
// node owned by the table.
//
// # Layout
//
// A table with capacity N (a power of two, at least 8) has N slots and
// N+groupSize-1 control bytes. The control bytes are a side array, one byte
// per slot, that records whether the slot is empty, deleted (a tombstone) or
// full. A full control byte additionally carries 7 bits of hash(key) ("H2").
// The trailing groupSize-1 control bytes mirror the first ones so that a
// probe near the end of the array can load a whole group without wrapping.
//
// Probing takes the top 57 bits of hash(key) mod N as the start index and
// checks the groupSize control bytes at that index at once with SWAR (SIMD
// Within A Register) bit tricks. Groups are conceptual, not physical: they
// overlap and are not aligned. Probing walks the groups using quadratic
// probing until it finds a group with at least one empty slot. The probe
// sequence visits every group, and a table always keeps at least one empty
// slot, so probing terminates.
//
// Deletion leaves a tombstone so probe chains stay connected. Tombstones are
// dropped when the table resizes or is compacted in place, which happens when
// the growth budget is exhausted: floor(N * max load factor) slots may be
// full or deleted before the next insert into an empty slot rehashes.
//
// # Concurrency
//
// Tables are not goroutine-safe. Mutations must be serialized by the caller
// against each other and against iteration. Structural mutation while
// iterating is detected and reported as ErrConcurrentModification.
package hashtable

import (
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Result reports what an insert did.
type Result uint8

const (
	// Inserted means the key was not present and a new entry was added.
	Inserted Result = iota + 1
	// Replaced means the key was present and its value was overwritten.
	Replaced
)

func (r Result) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Replaced:
		return "replaced"
	default:
		return fmt.Sprintf("Result(%d)", uint8(r))
	}
}

// Kind identifies a table variant. It is recorded in dumps.
type Kind uint8

const (
	KindFlatMap Kind = iota + 1
	KindNodeMap
	KindFlatSet
	KindNodeSet
)

// isSet reports whether k is a set variant.
func (k Kind) isSet() bool {
	return k == KindFlatSet || k == KindNodeSet
}

func (k Kind) String() string {
	switch k {
	case KindFlatMap:
		return "flat-map"
	case KindNodeMap:
		return "node-map"
	case KindFlatSet:
		return "flat-set"
	case KindNodeSet:
		return "node-set"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// slot holds a key and value.
type slot[K comparable, V any] struct {
	key   K
	value V
}

// policy describes how a variant stores an entry of type E in a slot. The
// engine moves E values around when it resizes or compacts, and zeroes a slot
// to release what it holds.
type policy[K comparable, V any, E any] interface {
	key(e *E) *K
	value(e *E) *V
	store(e *E, key K, value V)
}

// table is the engine shared by every variant.
type table[K comparable, V any, E any, P policy[K, V, E]] struct {
	config[K]

	// ctrls is capacity+groupSize-1 in length. A copy of the first
	// groupSize-1 elements of ctrls is mirrored into the remaining slots
	// which is done so that a probe sequence which picks a value near the end
	// of ctrls will have valid control bytes to look at.
	//
	// When the table has not allocated, ctrls is emptyCtrls which will never
	// be modified and is used to simplify the put, find, and delete code
	// which doesn't have to check for a nil ctrls.
	ctrls []ctrl
	// slots is capacity in length.
	slots []E
	// The total number of slots: zero or a power of two >= groupSize.
	capacity uintptr
	// capacity-1, used to quickly compute i%capacity. Zero when the table
	// has not allocated.
	mask uintptr
	// The number of filled slots (i.e. the number of elements in the table).
	used int
	// The number of deleted slots.
	tombstones int
	// The number of empty slots we can still fill without needing to rehash.
	//
	// Tombstones count against the growth budget: we'd like to rehash when
	// the table is filled with tombstones as otherwise probe sequences might
	// get unacceptably long without triggering a rehash.
	growthLeft int
	// mutations is bumped by every structural change and lets iterators
	// detect them.
	mutations   uint64
	resizes     uint64
	compactions uint64

	kind   Kind
	policy P
}

func (t *table[K, V, E, P]) init(k Kind, initialCapacity int, options []option[K]) {
	*t = table[K, V, E, P]{
		config: makeConfig(options),
		ctrls:  emptyCtrls,
		kind:   k,
	}
	if initialCapacity > 0 {
		if err := t.reserve(initialCapacity); err != nil {
			panic(errors.Wrapf(ErrInvalidOption, "initial capacity %d: %v", initialCapacity, err))
		}
	}
	t.checkInvariants()
}

func (t *table[K, V, E, P]) hash(key K) uint64 {
	return t.hasher.Hash(key)
}

func (t *table[K, V, E, P]) keyEqual(a, b K) bool {
	if t.equal == nil {
		return a == b
	}
	return t.equal.Equal(a, b)
}

// budget returns the number of slots of a table with the given capacity that
// may be full or deleted. At least one slot always stays empty.
func (t *table[K, V, E, P]) budget(capacity uintptr) int {
	return budgetFor(capacity, t.maxLoad)
}

func budgetFor(capacity uintptr, maxLoad float64) int {
	if capacity == 0 {
		return 0
	}
	b := int(math.Floor(float64(capacity) * maxLoad))
	if b >= int(capacity) {
		b = int(capacity) - 1
	}
	return b
}

// capacityFor returns the smallest capacity >= minCapacity that can hold n
// entries.
func (t *table[K, V, E, P]) capacityFor(n int, minCapacity uintptr) (uintptr, error) {
	c := uintptr(groupSize)
	for c < minCapacity {
		if c > t.maxCapacity/2 {
			return 0, errors.Wrapf(ErrCapacity,
				"%d buckets exceeds the maximum of %d", minCapacity, t.maxCapacity)
		}
		c <<= 1
	}
	for t.budget(c) < n {
		if c > t.maxCapacity/2 {
			return 0, errors.Wrapf(ErrCapacity,
				"%d entries need more than the maximum of %d buckets", n, t.maxCapacity)
		}
		c <<= 1
	}
	if c > t.maxCapacity {
		return 0, errors.Wrapf(ErrCapacity,
			"%d buckets exceeds the maximum of %d", c, t.maxCapacity)
	}
	return c, nil
}

// find returns the index of the slot holding key.
func (t *table[K, V, E, P]) find(key K) (uintptr, bool) {
	// To find the location of a key in the table, we compute hash(key). From
	// h1(hash(key)) and the capacity, we construct a probeSeq that visits
	// every group of slots in some interesting order.
	//
	// We walk through these indices. At each index, we select the entire
	// group starting with that index and extract potential candidates:
	// occupied slots with a control byte equal to h2(hash(key)). If we find
	// an empty slot in the group, we stop. Tombstones effectively behave like
	// full slots that never match the value we're looking for.
	//
	// The h2 bits ensure when we compare a key we are likely to have actually
	// found the object. The expected number of false h2 matches among k
	// "wrong" objects on the probe path is k/128.
	h := t.hash(key)
	seq := makeProbeSeq(h1(h), t.mask)
	for ; ; seq = seq.next() {
		g := loadGroup(t.ctrls, seq.offset)
		match := g.matchH2(h2(h))
		for match != 0 {
			i := seq.offsetAt(match.first())
			if t.keyEqual(key, *t.policy.key(&t.slots[i])) {
				return i, true
			}
			match = match.removeFirst()
		}
		if g.matchEmpty() != 0 {
			return 0, false
		}
	}
}

func (t *table[K, V, E, P]) get(key K) (*E, bool) {
	i, ok := t.find(key)
	if !ok {
		return nil, false
	}
	return &t.slots[i], true
}

// put inserts an entry into the table, overwriting the value of an existing
// entry with the same key.
func (t *table[K, V, E, P]) put(key K, value V) (Result, error) {
	// put is find composed with uncheckedPut. We perform find to see if the
	// key is already present. If it is, we're done and overwrite the existing
	// value. If the value isn't present we perform an uncheckedPut which
	// inserts an entry known not to be in the table.
	h := t.hash(key)
	seq := makeProbeSeq(h1(h), t.mask)
	for ; ; seq = seq.next() {
		g := loadGroup(t.ctrls, seq.offset)
		match := g.matchH2(h2(h))
		for match != 0 {
			i := seq.offsetAt(match.first())
			e := &t.slots[i]
			if t.keyEqual(key, *t.policy.key(e)) {
				*t.policy.value(e) = value
				return Replaced, nil
			}
			match = match.removeFirst()
		}
		if g.matchEmpty() != 0 {
			break
		}
	}

	if err := t.uncheckedPut(h, key, value); err != nil {
		return 0, err
	}
	return Inserted, nil
}

// uncheckedPut inserts an entry known not to be in the table. Violating this
// requirement will cause the table to behave erratically.
func (t *table[K, V, E, P]) uncheckedPut(h uint64, key K, value V) error {
	i := findFirstNonFull(t.ctrls, t.mask, h)
	if t.ctrls[i] == ctrlEmpty && t.growthLeft == 0 {
		// Reusing a tombstone never grows the table, but taking an empty
		// slot does. We're out of budget so rehash first: either drop the
		// tombstones in place or grow.
		if err := t.rehash(); err != nil {
			return err
		}
		i = findFirstNonFull(t.ctrls, t.mask, h)
	}

	if t.ctrls[i] == ctrlEmpty {
		t.growthLeft--
	} else {
		t.tombstones--
	}
	t.policy.store(&t.slots[i], key, value)
	setCtrl(t.ctrls, t.mask, i, ctrl(h2(h)))
	t.used++
	t.mutations++
	t.checkInvariants()
	return nil
}

// delete deletes the entry corresponding to the specified key, reporting
// whether it was present.
func (t *table[K, V, E, P]) delete(key K) bool {
	i, ok := t.find(key)
	if !ok {
		return false
	}

	// Zeroing the slot releases whatever it references: the key and value of
	// a flat slot, the node of a node slot.
	var zero E
	t.slots[i] = zero
	setCtrl(t.ctrls, t.mask, i, ctrlDeleted)
	t.used--
	t.tombstones++
	t.mutations++
	t.maybeShrink()
	t.checkInvariants()
	return true
}

// clear removes every entry, keeping the capacity.
func (t *table[K, V, E, P]) clear() {
	if t.capacity == 0 {
		return
	}
	for i := range t.ctrls {
		t.ctrls[i] = ctrlEmpty
	}
	clear(t.slots)
	t.used = 0
	t.tombstones = 0
	t.growthLeft = t.budget(t.capacity)
	t.mutations++
	t.checkInvariants()
}

// reserve ensures n entries fit without further growth.
func (t *table[K, V, E, P]) reserve(n int) error {
	if n < t.used {
		n = t.used
	}
	if t.budget(t.capacity)-t.tombstones >= n {
		return nil
	}
	newCapacity, err := t.capacityFor(n, t.capacity)
	if err != nil {
		return err
	}
	return t.resize(newCapacity)
}

// resizeTo changes the capacity to at least newCapacity, rounded up to a
// power of two and to what the live entries need.
func (t *table[K, V, E, P]) resizeTo(newCapacity int) error {
	if newCapacity < 0 {
		newCapacity = 0
	}
	c, err := t.capacityFor(t.used, uintptr(newCapacity))
	if err != nil {
		return err
	}
	return t.resize(c)
}

// rehash makes room for one more entry in an empty slot.
func (t *table[K, V, E, P]) rehash() error {
	// Rehash in place if we can recover at least a third of the growth
	// budget. Rehashing in place is significantly faster than resizing
	// because the common case is that elements remain in their current
	// location, and it cannot fail.
	if t.tombstones > 0 && t.tombstones >= t.budget(t.capacity)/3 {
		t.rehashInPlace()
		return nil
	}
	newCapacity, err := t.capacityFor(t.used+1, 2*t.capacity)
	if err != nil {
		if t.tombstones > 0 {
			// We cannot grow but there is room to reclaim.
			t.rehashInPlace()
			return nil
		}
		return err
	}
	return t.resize(newCapacity)
}

// maybeShrink halves the capacity while the table is sparse enough, once the
// load has dropped below the min load factor.
func (t *table[K, V, E, P]) maybeShrink() {
	if t.minLoad == 0 || t.capacity <= groupSize ||
		float64(t.used) >= float64(t.capacity)*t.minLoad {
		return
	}
	newCapacity := t.capacity
	for newCapacity > groupSize && float64(t.used) < float64(newCapacity/2)*t.maxLoad/2 {
		newCapacity /= 2
	}
	if newCapacity == t.capacity {
		return
	}
	if err := t.resize(newCapacity); err != nil {
		// Shrinking only lowers the capacity, so it cannot exceed the
		// maximum.
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "shrink to %d failed", newCapacity))
	}
}

// resize changes the capacity of the table by allocating new arrays and
// uncheckedPutting each element of the table into them (we know that no
// insertion here will put an already-present value). The old arrays are not
// modified until the new ones are fully populated, so a failure (or a panic
// from the hasher) leaves the table as it was.
func (t *table[K, V, E, P]) resize(newCapacity uintptr) error {
	if newCapacity > t.maxCapacity {
		return errors.Wrapf(ErrCapacity,
			"resize to %d buckets exceeds the maximum of %d", newCapacity, t.maxCapacity)
	}
	if newCapacity < groupSize || newCapacity&(newCapacity-1) != 0 {
		return errors.AssertionFailedf("invalid capacity %d", newCapacity)
	}
	if t.budget(newCapacity) < t.used {
		return errors.AssertionFailedf("capacity %d cannot hold %d entries", newCapacity, t.used)
	}

	ctrls := make([]ctrl, newCapacity+groupSize-1)
	for i := range ctrls {
		ctrls[i] = ctrlEmpty
	}
	slots := make([]E, newCapacity)
	mask := newCapacity - 1

	for i := uintptr(0); i < t.capacity; i++ {
		if t.ctrls[i]&ctrlEmpty == ctrlEmpty {
			// Empty or deleted.
			continue
		}
		e := &t.slots[i]
		h := t.hash(*t.policy.key(e))
		j := findFirstNonFull(ctrls, mask, h)
		setCtrl(ctrls, mask, j, ctrl(h2(h)))
		slots[j] = *e
	}

	oldCapacity, dropped := t.capacity, t.tombstones
	t.ctrls, t.slots = ctrls, slots
	t.capacity, t.mask = newCapacity, mask
	t.tombstones = 0
	t.growthLeft = t.budget(newCapacity) - t.used
	t.mutations++
	t.resizes++

	if ce := t.logger.Check(zap.DebugLevel, "hashtable resized"); ce != nil {
		ce.Write(
			zap.Stringer("kind", t.kind),
			zap.Uint64("from", uint64(oldCapacity)),
			zap.Uint64("to", uint64(newCapacity)),
			zap.Int("len", t.used),
			zap.Int("tombstones-dropped", dropped),
		)
	}
	t.checkInvariants()
	return nil
}

// compact drops every tombstone without changing the capacity.
func (t *table[K, V, E, P]) compact() {
	if t.tombstones == 0 {
		return
	}
	t.rehashInPlace()
}

func (t *table[K, V, E, P]) rehashInPlace() {
	// We want to drop all of the deletes in place. We first walk over the
	// control bytes and mark every DELETED slot as EMPTY and every FULL slot
	// as DELETED. Marking the DELETED slots as EMPTY has effectively dropped
	// the tombstones, but we fouled up the probe invariant. Marking the FULL
	// slots as DELETED gives us a marker to locate the previously FULL slots.

	// Mark all DELETED slots as EMPTY and all FULL slots as DELETED.
	for i := uintptr(0); i < t.capacity; i += groupSize {
		storeGroup(t.ctrls, i, loadGroup(t.ctrls, i).convertNonFullToEmptyAndFullToDeleted())
	}

	// Fixup the cloned control bytes.
	copy(t.ctrls[t.capacity:], t.ctrls[:groupSize-1])

	// Now we walk over all of the DELETED slots (a.k.a. the previously FULL
	// slots). For each slot we find the first probe group we can place the
	// element in which reestablishes the probe invariant. Note that as this
	// loop proceeds we have the invariant that there are no DELETED slots in
	// the range [0, i). We may move the element at i to the range [0, i) if
	// that is where the first group with an empty slot in its probe chain
	// resides, but we never set a slot in [0, i) to DELETED.
	for i := uintptr(0); i < t.capacity; i++ {
		if t.ctrls[i] != ctrlDeleted {
			continue
		}

		s := &t.slots[i]
		h := t.hash(*t.policy.key(s))
		desired := makeProbeSeq(h1(h), t.mask)
		probeIndex := func(pos uintptr) uintptr {
			return ((pos - desired.offset) & t.mask) / groupSize
		}
		target := findFirstNonFull(t.ctrls, t.mask, h)

		if i == target || probeIndex(i) == probeIndex(target) {
			// If the target index falls within the first probe group
			// then we don't need to move the element as it already
			// falls in the best probe position.
			setCtrl(t.ctrls, t.mask, i, ctrl(h2(h)))
			continue
		}

		if t.ctrls[target] == ctrlEmpty {
			// The target slot is empty. Transfer the element to the
			// empty slot and mark the slot at index i as empty.
			setCtrl(t.ctrls, t.mask, target, ctrl(h2(h)))
			t.slots[target] = *s
			var zero E
			*s = zero
			setCtrl(t.ctrls, t.mask, i, ctrlEmpty)
			continue
		}

		if t.ctrls[target] == ctrlDeleted {
			// The slot at target has an element (i.e. it was FULL).
			// We're going to swap our current element with that
			// element and then repeat processing of index i which now
			// holds the element which was at target.
			setCtrl(t.ctrls, t.mask, target, ctrl(h2(h)))
			ts := &t.slots[target]
			*s, *ts = *ts, *s
			// Repeat processing of the i'th slot which now holds a
			// new key/value.
			i--
			continue
		}

		panic(errors.AssertionFailedf("ctrl at position %d (%02x) should be empty or deleted",
			target, t.ctrls[target]))
	}

	dropped := t.tombstones
	t.tombstones = 0
	t.growthLeft = t.budget(t.capacity) - t.used
	t.mutations++
	t.compactions++

	if ce := t.logger.Check(zap.DebugLevel, "hashtable compacted"); ce != nil {
		ce.Write(
			zap.Stringer("kind", t.kind),
			zap.Uint64("capacity", uint64(t.capacity)),
			zap.Int("len", t.used),
			zap.Int("tombstones-dropped", dropped),
		)
	}
	t.checkInvariants()
}

// scan returns the first full slot at or after index i.
func (t *table[K, V, E, P]) scan(i uintptr) (uintptr, K, V, bool) {
	for ; i < t.capacity; i++ {
		if t.ctrls[i]&ctrlEmpty == 0 {
			e := &t.slots[i]
			return i, *t.policy.key(e), *t.policy.value(e), true
		}
	}
	var k K
	var v V
	return i, k, v, false
}

func (t *table[K, V, E, P]) mutationCount() uint64 {
	return t.mutations
}

// all calls yield for each entry in ascending slot order. It panics with
// ErrConcurrentModification if yield structurally modifies the table and
// asks for more.
func (t *table[K, V, E, P]) all(yield func(key K, value V) bool) {
	mutations := t.mutations
	for i := uintptr(0); i < t.capacity; i++ {
		// Match full entries which have a high-bit of zero.
		if t.ctrls[i]&ctrlEmpty != 0 {
			continue
		}
		e := &t.slots[i]
		if !yield(*t.policy.key(e), *t.policy.value(e)) {
			return
		}
		if t.mutations != mutations {
			panic(ErrConcurrentModification)
		}
	}
}

func (t *table[K, V, E, P]) stats() Stats {
	s := Stats{
		Len:           t.used,
		Capacity:      int(t.capacity),
		Tombstones:    t.tombstones,
		GrowthLeft:    t.growthLeft,
		MaxLoadFactor: t.maxLoad,
		Resizes:       t.resizes,
		Compactions:   t.compactions,
	}
	if t.capacity > 0 {
		s.LoadFactor = float64(t.used) / float64(t.capacity)
	}
	return s
}

// findFirstNonFull returns the index of the first empty or deleted slot on
// the probe path of h. The caller guarantees one exists.
func findFirstNonFull(ctrls []ctrl, mask uintptr, h uint64) uintptr {
	// Given key and its hash hash(key), to insert it, we construct a
	// probeSeq, and use it to find the first group with an unoccupied (empty
	// or deleted) slot. We place the key/value into the first such slot in
	// the group and mark it as full with key's H2.
	seq := makeProbeSeq(h1(h), mask)
	for ; ; seq = seq.next() {
		if match := loadGroup(ctrls, seq.offset).matchEmptyOrDeleted(); match != 0 {
			return seq.offsetAt(match.first())
		}
	}
}

// setCtrl sets the control byte at index i, taking care to mirror the byte to
// the end of the control bytes slice if i<groupSize-1.
func setCtrl(ctrls []ctrl, mask, i uintptr, v ctrl) {
	ctrls[i] = v
	// Mirror the first groupSize-1 control bytes to the end of the ctrls
	// slice. We do this unconditionally which is faster than performing a
	// comparison to do it only for the first slots. Note that the index will
	// be the identity for slots in the range [groupSize-1,capacity).
	ctrls[((i-(groupSize-1))&mask)+(groupSize-1)] = v
}

func (t *table[K, V, E, P]) checkInvariants() {
	if !invariants {
		return
	}
	if t.capacity == 0 {
		if t.used != 0 || t.tombstones != 0 || t.growthLeft != 0 {
			panic(errors.AssertionFailedf("unallocated table: used=%d tombstones=%d growth-left=%d",
				t.used, t.tombstones, t.growthLeft))
		}
		return
	}

	// Verify the cloned control bytes are good.
	for i := uintptr(0); i < groupSize-1; i++ {
		if ci, cj := t.ctrls[i], t.ctrls[t.capacity+i]; ci != cj {
			panic(errors.AssertionFailedf("ctrl(%d)=%02x != ctrl(%d)=%02x\n%s",
				i, ci, t.capacity+i, cj, t.debugString()))
		}
	}

	// For every non-empty slot, verify we can retrieve the key using find.
	// Count the number of used and deleted slots.
	var used, deleted int
	for i := uintptr(0); i < t.capacity; i++ {
		switch c := t.ctrls[i]; {
		case c == ctrlDeleted:
			deleted++
		case c == ctrlEmpty:
		case c&ctrlEmpty != 0:
			panic(errors.AssertionFailedf("ctrl(%d): invalid control byte %02x", i, c))
		default:
			key := *t.policy.key(&t.slots[i])
			if j, ok := t.find(key); !ok || j != i {
				h := t.hash(key)
				panic(errors.AssertionFailedf("slot(%d): %v not found [h2=%02x h1=%07x]\n%s",
					i, key, h2(h), h1(h), t.debugString()))
			}
			used++
		}
	}

	if used != t.used {
		panic(errors.AssertionFailedf("found %d used slots, but used count is %d\n%s",
			used, t.used, t.debugString()))
	}
	if deleted != t.tombstones {
		panic(errors.AssertionFailedf("found %d deleted slots, but tombstone count is %d\n%s",
			deleted, t.tombstones, t.debugString()))
	}
	if growthLeft := t.budget(t.capacity) - used - deleted; growthLeft != t.growthLeft {
		panic(errors.AssertionFailedf("found %d growthLeft, but expected %d\n%s",
			t.growthLeft, growthLeft, t.debugString()))
	}
	if t.growthLeft < 0 || used+deleted >= int(t.capacity) {
		panic(errors.AssertionFailedf("no empty slot left\n%s", t.debugString()))
	}
}

func (t *table[K, V, E, P]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  tombstones=%d  growth-left=%d\n",
		t.capacity, t.used, t.tombstones, t.growthLeft)
	for i := uintptr(0); i < uintptr(len(t.ctrls)); i++ {
		switch c := t.ctrls[i]; c {
		case ctrlEmpty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case ctrlDeleted:
			fmt.Fprintf(&buf, "  %4d: deleted\n", i)
		default:
			if i < t.capacity {
				key := *t.policy.key(&t.slots[i])
				fmt.Fprintf(&buf, "  %4d: %v [ctrl=%02x h2=%02x]\n", i, key, c, h2(t.hash(key)))
			} else {
				fmt.Fprintf(&buf, "  %4d: [ctrl=%02x]\n", i, c)
			}
		}
	}
	return buf.String()
}

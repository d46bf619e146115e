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
	"io"
	"iter"

	"github.com/cockroachdb/hashtable/codec"
)

type flatPolicy[K comparable, V any] struct{}

func (flatPolicy[K, V]) key(e *slot[K, V]) *K   { return &e.key }
func (flatPolicy[K, V]) value(e *slot[K, V]) *V { return &e.value }
func (flatPolicy[K, V]) store(e *slot[K, V], key K, value V) {
	e.key, e.value = key, value
}

// FlatMap is a hash map that stores its keys and values inline in the bucket
// array. Pointers into a FlatMap are not handed out: entries move when the
// table resizes or compacts.
//
// A FlatMap is not goroutine-safe.
type FlatMap[K comparable, V any] struct {
	t table[K, V, slot[K, V], flatPolicy[K, V]]
}

// NewFlatMap constructs a new FlatMap with the specified initial capacity. If
// initialCapacity is 0 the map will start out with zero capacity and will
// grow on the first insert. The zero value for a FlatMap is not usable.
func NewFlatMap[K comparable, V any](initialCapacity int, options ...option[K]) *FlatMap[K, V] {
	m := &FlatMap[K, V]{}
	m.t.init(KindFlatMap, initialCapacity, options)
	return m
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists. It fails with ErrCapacity if the
// map would need to grow beyond its maximum capacity, in which case the map
// is unchanged.
func (m *FlatMap[K, V]) Put(key K, value V) (Result, error) {
	return m.t.put(key, value)
}

// Get retrieves the value from the map for the specified key, returning
// ok=false if the key is not present.
func (m *FlatMap[K, V]) Get(key K) (value V, ok bool) {
	e, ok := m.t.get(key)
	if !ok {
		return value, false
	}
	return e.value, true
}

// Has reports whether key is present.
func (m *FlatMap[K, V]) Has(key K) bool {
	_, ok := m.t.find(key)
	return ok
}

// Delete deletes the entry corresponding to the specified key from the map,
// reporting whether it was present.
func (m *FlatMap[K, V]) Delete(key K) bool {
	return m.t.delete(key)
}

// Len returns the number of entries in the map.
func (m *FlatMap[K, V]) Len() int {
	return m.t.used
}

// Capacity returns the number of buckets.
func (m *FlatMap[K, V]) Capacity() int {
	return int(m.t.capacity)
}

// Resize changes the number of buckets to n rounded up to a power of two, and
// up to what the current entries need. Tombstones are dropped.
func (m *FlatMap[K, V]) Resize(n int) error {
	return m.t.resizeTo(n)
}

// Reserve grows the map so that n entries fit without further growth.
func (m *FlatMap[K, V]) Reserve(n int) error {
	return m.t.reserve(n)
}

// Compact drops all tombstones without changing the capacity.
func (m *FlatMap[K, V]) Compact() {
	m.t.compact()
}

// Clear deletes all entries from the map, keeping its capacity.
func (m *FlatMap[K, V]) Clear() {
	m.t.clear()
}

// All returns an iterator over the entries of the map in bucket order.
// Modifying the map structurally from the loop body panics with
// ErrConcurrentModification once the loop continues.
func (m *FlatMap[K, V]) All() iter.Seq2[K, V] {
	return m.t.all
}

// Keys returns an iterator over the keys of the map.
func (m *FlatMap[K, V]) Keys() iter.Seq[K] {
	return m.t.keys
}

// Values returns an iterator over the values of the map.
func (m *FlatMap[K, V]) Values() iter.Seq[V] {
	return m.t.values
}

// Iter returns a cursor positioned before the first entry.
func (m *FlatMap[K, V]) Iter() *Iterator[K, V] {
	return newIterator[K, V](&m.t)
}

// Stats returns a snapshot of the map's occupancy.
func (m *FlatMap[K, V]) Stats() Stats {
	return m.t.stats()
}

// Dump writes the map to w in the dump format, encoding keys and values with
// the given codecs.
func (m *FlatMap[K, V]) Dump(
	w io.Writer, keys codec.Codec[K], values codec.Codec[V], options ...DumpOption,
) error {
	return m.t.dump(w, keys, values, options)
}

// Restore replaces the contents of the map with the dump read from r. On
// error the map is unchanged.
func (m *FlatMap[K, V]) Restore(r io.Reader, keys codec.Codec[K], values codec.Codec[V]) error {
	return m.t.restore(r, keys, values)
}

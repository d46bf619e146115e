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

// nodePolicy keeps each entry in its own heap node. Slots only hold the node
// pointer so moving a slot never moves the entry.
type nodePolicy[K comparable, V any] struct{}

func (nodePolicy[K, V]) key(e **slot[K, V]) *K   { return &(*e).key }
func (nodePolicy[K, V]) value(e **slot[K, V]) *V { return &(*e).value }
func (nodePolicy[K, V]) store(e **slot[K, V], key K, value V) {
	*e = &slot[K, V]{key: key, value: value}
}

// NodeMap is a hash map whose buckets hold pointers to separately allocated
// nodes. A node is owned by the map: it is created when its key is inserted
// and dropped when the key is deleted, the map is cleared, or the map is
// restored. Pointers returned by Ref stay valid across resizes and
// compactions until the key is deleted.
//
// A NodeMap is not goroutine-safe.
type NodeMap[K comparable, V any] struct {
	t table[K, V, *slot[K, V], nodePolicy[K, V]]
}

// NewNodeMap constructs a new NodeMap with the specified initial capacity.
func NewNodeMap[K comparable, V any](initialCapacity int, options ...option[K]) *NodeMap[K, V] {
	m := &NodeMap[K, V]{}
	m.t.init(KindNodeMap, initialCapacity, options)
	return m
}

// Put inserts an entry into the map, overwriting the value of an existing
// node with the same key.
func (m *NodeMap[K, V]) Put(key K, value V) (Result, error) {
	return m.t.put(key, value)
}

// Get retrieves the value for the specified key.
func (m *NodeMap[K, V]) Get(key K) (value V, ok bool) {
	e, ok := m.t.get(key)
	if !ok {
		return value, false
	}
	return (*e).value, true
}

// Ref returns a pointer to the value stored for key. The pointer is valid
// until the key is deleted from the map.
func (m *NodeMap[K, V]) Ref(key K) (*V, bool) {
	e, ok := m.t.get(key)
	if !ok {
		return nil, false
	}
	return &(*e).value, true
}

// Has reports whether key is present.
func (m *NodeMap[K, V]) Has(key K) bool {
	_, ok := m.t.find(key)
	return ok
}

// Delete deletes the entry for key and releases its node.
func (m *NodeMap[K, V]) Delete(key K) bool {
	return m.t.delete(key)
}

func (m *NodeMap[K, V]) Len() int      { return m.t.used }
func (m *NodeMap[K, V]) Capacity() int { return int(m.t.capacity) }

func (m *NodeMap[K, V]) Resize(n int) error  { return m.t.resizeTo(n) }
func (m *NodeMap[K, V]) Reserve(n int) error { return m.t.reserve(n) }
func (m *NodeMap[K, V]) Compact()            { m.t.compact() }

// Clear deletes all entries and releases their nodes.
func (m *NodeMap[K, V]) Clear() { m.t.clear() }

func (m *NodeMap[K, V]) All() iter.Seq2[K, V]  { return m.t.all }
func (m *NodeMap[K, V]) Keys() iter.Seq[K]     { return m.t.keys }
func (m *NodeMap[K, V]) Values() iter.Seq[V]   { return m.t.values }
func (m *NodeMap[K, V]) Iter() *Iterator[K, V] { return newIterator[K, V](&m.t) }
func (m *NodeMap[K, V]) Stats() Stats          { return m.t.stats() }

// Dump writes the map to w. Dumps of flat and node maps differ only in the
// kind recorded in the header.
func (m *NodeMap[K, V]) Dump(
	w io.Writer, keys codec.Codec[K], values codec.Codec[V], options ...DumpOption,
) error {
	return m.t.dump(w, keys, values, options)
}

// Restore replaces the contents of the map with the dump read from r.
func (m *NodeMap[K, V]) Restore(r io.Reader, keys codec.Codec[K], values codec.Codec[V]) error {
	return m.t.restore(r, keys, values)
}

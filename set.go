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

// unit is the value type of the set variants.
type unit = struct{}

var unitValue unit

type flatSetPolicy[K comparable] struct{}

func (flatSetPolicy[K]) key(e *K) *K               { return e }
func (flatSetPolicy[K]) value(*K) *unit            { return &unitValue }
func (flatSetPolicy[K]) store(e *K, key K, _ unit) { *e = key }

type nodeSetPolicy[K comparable] struct{}

func (nodeSetPolicy[K]) key(e **K) *K    { return *e }
func (nodeSetPolicy[K]) value(**K) *unit { return &unitValue }
func (nodeSetPolicy[K]) store(e **K, key K, _ unit) {
	k := key
	*e = &k
}

// FlatSet is a hash set storing its keys inline in the bucket array.
//
// A FlatSet is not goroutine-safe.
type FlatSet[K comparable] struct {
	t table[K, unit, K, flatSetPolicy[K]]
}

// NewFlatSet constructs a new FlatSet with the specified initial capacity.
func NewFlatSet[K comparable](initialCapacity int, options ...option[K]) *FlatSet[K] {
	s := &FlatSet[K]{}
	s.t.init(KindFlatSet, initialCapacity, options)
	return s
}

// Add inserts key, reporting Replaced if it was already present.
func (s *FlatSet[K]) Add(key K) (Result, error) { return s.t.put(key, unitValue) }

// Has reports whether key is present.
func (s *FlatSet[K]) Has(key K) bool {
	_, ok := s.t.find(key)
	return ok
}

// Delete removes key, reporting whether it was present.
func (s *FlatSet[K]) Delete(key K) bool { return s.t.delete(key) }

func (s *FlatSet[K]) Len() int            { return s.t.used }
func (s *FlatSet[K]) Capacity() int       { return int(s.t.capacity) }
func (s *FlatSet[K]) Resize(n int) error  { return s.t.resizeTo(n) }
func (s *FlatSet[K]) Reserve(n int) error { return s.t.reserve(n) }
func (s *FlatSet[K]) Compact()            { s.t.compact() }
func (s *FlatSet[K]) Clear()              { s.t.clear() }
func (s *FlatSet[K]) Stats() Stats        { return s.t.stats() }

// All returns an iterator over the keys of the set in bucket order.
func (s *FlatSet[K]) All() iter.Seq[K] { return s.t.keys }

// Iter returns a cursor positioned before the first key. Value is always the
// empty struct.
func (s *FlatSet[K]) Iter() *Iterator[K, struct{}] { return newIterator[K, unit](&s.t) }

// Dump writes the set to w. Values are recorded as zero-length records.
func (s *FlatSet[K]) Dump(w io.Writer, keys codec.Codec[K], options ...DumpOption) error {
	return s.t.dump(w, keys, codec.Empty, options)
}

// Restore replaces the contents of the set with the dump read from r.
func (s *FlatSet[K]) Restore(r io.Reader, keys codec.Codec[K]) error {
	return s.t.restore(r, keys, codec.Empty)
}

// NodeSet is a hash set whose buckets point at separately allocated keys.
//
// A NodeSet is not goroutine-safe.
type NodeSet[K comparable] struct {
	t table[K, unit, *K, nodeSetPolicy[K]]
}

// NewNodeSet constructs a new NodeSet with the specified initial capacity.
func NewNodeSet[K comparable](initialCapacity int, options ...option[K]) *NodeSet[K] {
	s := &NodeSet[K]{}
	s.t.init(KindNodeSet, initialCapacity, options)
	return s
}

func (s *NodeSet[K]) Add(key K) (Result, error) { return s.t.put(key, unitValue) }

func (s *NodeSet[K]) Has(key K) bool {
	_, ok := s.t.find(key)
	return ok
}

func (s *NodeSet[K]) Delete(key K) bool   { return s.t.delete(key) }
func (s *NodeSet[K]) Len() int            { return s.t.used }
func (s *NodeSet[K]) Capacity() int       { return int(s.t.capacity) }
func (s *NodeSet[K]) Resize(n int) error  { return s.t.resizeTo(n) }
func (s *NodeSet[K]) Reserve(n int) error { return s.t.reserve(n) }
func (s *NodeSet[K]) Compact()            { s.t.compact() }
func (s *NodeSet[K]) Clear()              { s.t.clear() }
func (s *NodeSet[K]) Stats() Stats        { return s.t.stats() }

func (s *NodeSet[K]) All() iter.Seq[K]             { return s.t.keys }
func (s *NodeSet[K]) Iter() *Iterator[K, struct{}] { return newIterator[K, unit](&s.t) }

func (s *NodeSet[K]) Dump(w io.Writer, keys codec.Codec[K], options ...DumpOption) error {
	return s.t.dump(w, keys, codec.Empty, options)
}

func (s *NodeSet[K]) Restore(r io.Reader, keys codec.Codec[K]) error {
	return s.t.restore(r, keys, codec.Empty)
}

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

// cursorSource is the part of a table an Iterator walks.
type cursorSource[K comparable, V any] interface {
	// scan returns the first full slot at index i or later.
	scan(i uintptr) (uintptr, K, V, bool)
	mutationCount() uint64
}

// Iterator is an explicit cursor over the entries of a table in bucket
// order:
//
//	it := m.Iter()
//	for it.Next() {
//		fmt.Println(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
//
// If the table is structurally modified (an insert of a new key, a delete, a
// resize, a compaction, a clear or a restore) after the Iterator was created
// or reset, Next returns false and Err returns ErrConcurrentModification.
// Replacing the value of an existing key does not invalidate an Iterator.
type Iterator[K comparable, V any] struct {
	src       cursorSource[K, V]
	index     uintptr
	mutations uint64
	done      bool
	key       K
	value     V
	err       error
}

func newIterator[K comparable, V any](src cursorSource[K, V]) *Iterator[K, V] {
	return &Iterator[K, V]{src: src, mutations: src.mutationCount()}
}

// Next advances to the next entry, returning false when there are no more
// entries or the table was modified.
func (it *Iterator[K, V]) Next() bool {
	if it.done {
		return false
	}
	if it.src.mutationCount() != it.mutations {
		it.finish(ErrConcurrentModification)
		return false
	}
	i, key, value, ok := it.src.scan(it.index)
	if !ok {
		it.finish(nil)
		return false
	}
	it.index = i + 1
	it.key, it.value = key, value
	return true
}

func (it *Iterator[K, V]) finish(err error) {
	var k K
	var v V
	it.key, it.value = k, v
	it.done = true
	it.err = err
}

// Key returns the key of the current entry.
func (it *Iterator[K, V]) Key() K {
	return it.key
}

// Value returns the value of the current entry.
func (it *Iterator[K, V]) Value() V {
	return it.value
}

// Err returns ErrConcurrentModification if iteration stopped because the
// table was modified, and nil otherwise.
func (it *Iterator[K, V]) Err() error {
	return it.err
}

// Reset rewinds the Iterator to before the first entry of the table as it is
// now.
func (it *Iterator[K, V]) Reset() {
	*it = Iterator[K, V]{src: it.src, mutations: it.src.mutationCount()}
}

func (t *table[K, V, E, P]) keys(yield func(key K) bool) {
	t.all(func(key K, _ V) bool {
		return yield(key)
	})
}

func (t *table[K, V, E, P]) values(yield func(value V) bool) {
	t.all(func(_ K, value V) bool {
		return yield(value)
	})
}

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
	"hash/maphash"
	"unsafe"
)

// Hasher computes the hash of a key. Keys that are equal according to the
// table's Equality must hash to the same value. A Hasher that is not
// deterministic makes lookups unreliable; the table does not detect this.
type Hasher[K any] interface {
	Hash(key K) uint64
}

// Equality reports whether two keys are the same key.
type Equality[K any] interface {
	Equal(a, b K) bool
}

// HashFunc adapts an ordinary function to the Hasher interface.
type HashFunc[K any] func(key K) uint64

// Hash implements Hasher.
func (f HashFunc[K]) Hash(key K) uint64 {
	return f(key)
}

// EqualFunc adapts an ordinary function to the Equality interface.
type EqualFunc[K any] func(a, b K) bool

// Equal implements Equality.
func (f EqualFunc[K]) Equal(a, b K) bool {
	return f(a, b)
}

// comparableHasher is the default Hasher. It hashes keys the same way the
// builtin map does, with a seed chosen per table.
type comparableHasher[K comparable] struct {
	seed maphash.Seed
}

func makeComparableHasher[K comparable]() comparableHasher[K] {
	return comparableHasher[K]{seed: maphash.MakeSeed()}
}

func (h comparableHasher[K]) Hash(key K) uint64 {
	return maphash.Comparable(h.seed, key)
}

// unsafeConvertSlice reinterprets a slice as a slice of another element type
// with the same size.
func unsafeConvertSlice[Dest any, Src any](s []Src) []Dest {
	return unsafe.Slice((*Dest)(unsafe.Pointer(unsafe.SliceData(s))), len(s))
}

func ctrlBytes(s []ctrl) []byte {
	return unsafeConvertSlice[byte](s)
}

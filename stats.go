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

import "fmt"

// Stats is a snapshot of a table's occupancy.
type Stats struct {
	// Len is the number of live entries.
	Len int
	// Capacity is the number of buckets.
	Capacity int
	// Tombstones is the number of buckets holding a deleted marker.
	Tombstones int
	// GrowthLeft is the number of empty buckets that can still be filled
	// before the table rehashes.
	GrowthLeft int
	// LoadFactor is Len divided by Capacity, or 0 before allocation.
	LoadFactor float64
	// MaxLoadFactor is the load factor the table grows to stay under.
	MaxLoadFactor float64
	// Resizes and Compactions count rehashes over the table's lifetime.
	Resizes     uint64
	Compactions uint64
}

// TombstoneRatio returns the fraction of buckets holding tombstones.
func (s Stats) TombstoneRatio() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return float64(s.Tombstones) / float64(s.Capacity)
}

func (s Stats) String() string {
	return fmt.Sprintf("len=%d capacity=%d tombstones=%d growth-left=%d load=%.3f/%.3f resizes=%d compactions=%d",
		s.Len, s.Capacity, s.Tombstones, s.GrowthLeft, s.LoadFactor, s.MaxLoadFactor,
		s.Resizes, s.Compactions)
}

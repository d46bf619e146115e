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

package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/hashtable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	var mu sync.Mutex
	m := hashtable.NewFlatMap[int, int](0)
	for i := 0; i < 10; i++ {
		_, err := m.Put(i, i)
		require.NoError(t, err)
	}
	m.Delete(0)

	c := NewCollector("test", func() hashtable.Stats {
		mu.Lock()
		defer mu.Unlock()
		return m.Stats()
	})

	const expected = `
# HELP hashtable_capacity Number of buckets.
# TYPE hashtable_capacity gauge
hashtable_capacity{table="test"} 16
# HELP hashtable_compactions_total Number of times tombstones were dropped in place.
# TYPE hashtable_compactions_total counter
hashtable_compactions_total{table="test"} 0
# HELP hashtable_entries Number of live entries.
# TYPE hashtable_entries gauge
hashtable_entries{table="test"} 9
# HELP hashtable_load_factor Ratio of live entries to buckets.
# TYPE hashtable_load_factor gauge
hashtable_load_factor{table="test"} 0.5625
# HELP hashtable_resizes_total Number of times the table was rebuilt at a new capacity.
# TYPE hashtable_resizes_total counter
hashtable_resizes_total{table="test"} 2
# HELP hashtable_tombstones Number of buckets holding a deleted marker.
# TYPE hashtable_tombstones gauge
hashtable_tombstones{table="test"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))

	// Every scrape takes a fresh snapshot.
	mu.Lock()
	m.Compact()
	mu.Unlock()
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(`
# HELP hashtable_tombstones Number of buckets holding a deleted marker.
# TYPE hashtable_tombstones gauge
hashtable_tombstones{table="test"} 0
`), "hashtable_tombstones"))
}

func TestCollectorRegister(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	a := hashtable.NewFlatSet[string](0)
	b := hashtable.NewNodeMap[string, int](0)
	require.NoError(t, reg.Register(NewCollector("a", a.Stats)))
	require.NoError(t, reg.Register(NewCollector("b", b.Stats)))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 6)
	for _, f := range families {
		require.Len(t, f.GetMetric(), 2, f.GetName())
	}
	require.Equal(t, 12, mustGatherAndCount(t, reg))
}

func mustGatherAndCount(t *testing.T, g prometheus.Gatherer) int {
	n, err := testutil.GatherAndCount(g)
	require.NoError(t, err)
	return n
}

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

// Package metrics exports hash table occupancy to Prometheus.
package metrics

import (
	"github.com/cockroachdb/hashtable"
	"github.com/prometheus/client_golang/prometheus"
)

type statsCollector struct {
	snapshot func() hashtable.Stats

	entries     *prometheus.Desc
	capacity    *prometheus.Desc
	tombstones  *prometheus.Desc
	loadFactor  *prometheus.Desc
	resizes     *prometheus.Desc
	compactions *prometheus.Desc
}

// NewCollector returns a Prometheus collector reporting the Stats returned by
// snapshot, labelled with table=name. Tables are not goroutine-safe, so
// snapshot must take whatever lock guards the table; it is called on every
// scrape.
func NewCollector(name string, snapshot func() hashtable.Stats) prometheus.Collector {
	labels := prometheus.Labels{"table": name}
	return &statsCollector{
		snapshot: snapshot,
		entries: prometheus.NewDesc(
			"hashtable_entries",
			"Number of live entries.",
			nil, labels,
		),
		capacity: prometheus.NewDesc(
			"hashtable_capacity",
			"Number of buckets.",
			nil, labels,
		),
		tombstones: prometheus.NewDesc(
			"hashtable_tombstones",
			"Number of buckets holding a deleted marker.",
			nil, labels,
		),
		loadFactor: prometheus.NewDesc(
			"hashtable_load_factor",
			"Ratio of live entries to buckets.",
			nil, labels,
		),
		resizes: prometheus.NewDesc(
			"hashtable_resizes_total",
			"Number of times the table was rebuilt at a new capacity.",
			nil, labels,
		),
		compactions: prometheus.NewDesc(
			"hashtable_compactions_total",
			"Number of times tombstones were dropped in place.",
			nil, labels,
		),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.capacity
	ch <- c.tombstones
	ch <- c.loadFactor
	ch <- c.resizes
	ch <- c.compactions
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Len))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity))
	ch <- prometheus.MustNewConstMetric(c.tombstones, prometheus.GaugeValue, float64(s.Tombstones))
	ch <- prometheus.MustNewConstMetric(c.loadFactor, prometheus.GaugeValue, s.LoadFactor)
	ch <- prometheus.MustNewConstMetric(c.resizes, prometheus.CounterValue, float64(s.Resizes))
	ch <- prometheus.MustNewConstMetric(c.compactions, prometheus.CounterValue, float64(s.Compactions))
}

var _ prometheus.Collector = (*statsCollector)(nil)

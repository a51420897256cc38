// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package v2

import "github.com/prometheus/client_golang/prometheus"

var (
	hashTableRehashCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hashtable",
			Name:      "rehash_total",
			Help:      "Total number of completed rehashes by kind (grow, shrink).",
		}, []string{"kind"})

	hashTableRehashFailedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hashtable",
			Name:      "rehash_failed_total",
			Help:      "Total number of rehashes aborted by an allocation failure.",
		}, []string{"kind"})

	HashTableGrowCounter         = hashTableRehashCounter.WithLabelValues("grow")
	HashTableShrinkCounter       = hashTableRehashCounter.WithLabelValues("shrink")
	HashTableGrowFailedCounter   = hashTableRehashFailedCounter.WithLabelValues("grow")
	HashTableShrinkFailedCounter = hashTableRehashFailedCounter.WithLabelValues("shrink")
)

var (
	hashTableDiffTestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "difftest",
			Name:      "ops_total",
			Help:      "Total number of operations the differential harness applied.",
		}, []string{"op"})

	DiffTestPutCounter    = hashTableDiffTestCounter.WithLabelValues("put")
	DiffTestGetCounter    = hashTableDiffTestCounter.WithLabelValues("get")
	DiffTestDeleteCounter = hashTableDiffTestCounter.WithLabelValues("delete")

	DiffTestRunDurationHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "difftest",
			Name:      "run_duration_seconds",
			Help:      "Bucketed histogram of one harness seed duration.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2.0, 20),
		})
)

func initHashTableMetrics() {
	registry.MustRegister(hashTableRehashCounter)
	registry.MustRegister(hashTableRehashFailedCounter)
	registry.MustRegister(hashTableDiffTestCounter)
	registry.MustRegister(DiffTestRunDurationHistogram)
}

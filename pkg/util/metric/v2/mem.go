// Copyright 2023 Matrix Origin
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
	memAllocateBytesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mem",
			Name:      "allocate_bytes_total",
			Help:      "Total bytes allocated by the allocator.",
		}, []string{"type"})

	memInuseBytesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mem",
			Name:      "inuse_bytes",
			Help:      "Bytes allocated and not yet deallocated.",
		}, []string{"type"})

	memAllocateObjectsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mem",
			Name:      "allocate_objects_total",
			Help:      "Total blocks allocated by the allocator.",
		}, []string{"type"})

	memInuseObjectsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mem",
			Name:      "inuse_objects",
			Help:      "Blocks allocated and not yet deallocated.",
		}, []string{"type"})

	MemHashTableAllocateBytesCounter   = memAllocateBytesCounter.WithLabelValues("hashtable")
	MemHashTableInuseBytesGauge        = memInuseBytesGauge.WithLabelValues("hashtable")
	MemHashTableAllocateObjectsCounter = memAllocateObjectsCounter.WithLabelValues("hashtable")
	MemHashTableInuseObjectsGauge      = memInuseObjectsGauge.WithLabelValues("hashtable")
)

var (
	MemAllocateFailedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mem",
			Name:      "allocate_failed_total",
			Help:      "Total number of refused allocations.",
		})
)

func initMemMetrics() {
	registry.MustRegister(memAllocateBytesCounter)
	registry.MustRegister(memInuseBytesGauge)
	registry.MustRegister(memAllocateObjectsCounter)
	registry.MustRegister(memInuseObjectsGauge)
	registry.MustRegister(MemAllocateFailedCounter)
}

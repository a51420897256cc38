// Copyright 2021 Matrix Origin
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
	"github.com/teuos/htui32/pkg/common/malloc"
	v2 "github.com/teuos/htui32/pkg/util/metric/v2"
)

var defaultAllocator malloc.Allocator = malloc.NewMetricsAllocator(
	malloc.NewClassAllocator(64*malloc.MB),
	v2.MemHashTableAllocateBytesCounter,
	v2.MemHashTableInuseBytesGauge,
	v2.MemHashTableAllocateObjectsCounter,
	v2.MemHashTableInuseObjectsGauge,
)

// DefaultAllocator is used by Init when no allocator is given. Blocks
// released by rehashes are recycled by size class.
func DefaultAllocator() malloc.Allocator {
	return defaultAllocator
}

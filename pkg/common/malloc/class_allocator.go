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

package malloc

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/teuos/htui32/pkg/logutil"
)

// ClassAllocator rounds requests up to a size class and keeps a bounded
// number of deallocated blocks per class for reuse. Requests above the
// largest class go straight to the Go heap.
type ClassAllocator struct {
	classSizes      []uint64
	pools           []classAllocatorPool
	deallocatorPool *ClosureDeallocatorPool[classDeallocatorArgs]
}

type classAllocatorPool struct {
	numReuse atomic.Int64
	numFree  atomic.Int64
	ch       chan []byte
}

type classDeallocatorArgs struct {
	class int
	slice []byte
}

func NewClassAllocator(
	maxBufferSize uint64,
) *ClassAllocator {
	const (
		minClassSize    = 128
		maxClassSize    = 8 * MB
		classSizeFactor = 1.8
	)

	classSizes := func() (ret []uint64) {
		for size := uint64(minClassSize); size <= maxClassSize; size = uint64(float64(size) * classSizeFactor) {
			ret = append(ret, size)
		}
		return
	}()

	classSumSize := func() (ret uint64) {
		for _, size := range classSizes {
			ret += size
		}
		return
	}()

	bufferedObjectsPerClass := func() int {
		n := maxBufferSize / classSumSize
		logutil.Debug("class allocator",
			zap.Any("max buffer size", maxBufferSize),
			zap.Any("classes", len(classSizes)),
			zap.Any("min class size", minClassSize),
			zap.Any("max class size", maxClassSize),
			zap.Any("buffer objects per class", n),
		)
		return int(n)
	}()

	pools := make([]classAllocatorPool, len(classSizes))
	for i := range pools {
		pools[i].ch = make(chan []byte, bufferedObjectsPerClass)
	}

	ret := &ClassAllocator{
		classSizes: classSizes,
		pools:      pools,
	}
	ret.deallocatorPool = NewClosureDeallocatorPool(
		func(hints Hints, args *classDeallocatorArgs) {
			if hints.Has(DoNotReuse) {
				return
			}
			select {
			case ret.pools[args.class].ch <- args.slice:
				ret.pools[args.class].numFree.Add(1)
			default:
			}
		},
	)
	return ret
}

var _ Allocator = new(ClassAllocator)

func (c *ClassAllocator) requestSizeToClass(size uint64) int {
	for class, classSize := range c.classSizes {
		if classSize >= size {
			return class
		}
	}
	return -1
}

func (c *ClassAllocator) classAllocate(class int, hints Hints) []byte {
	select {
	case slice := <-c.pools[class].ch:
		c.pools[class].numReuse.Add(1)
		if !hints.Has(NoClear) {
			clear(slice)
		}
		return slice
	default:
		return make([]byte, c.classSizes[class])
	}
}

func (c *ClassAllocator) Allocate(size uint64, hints Hints) ([]byte, Deallocator, error) {
	if size == 0 {
		return nil, dumbDeallocator, nil
	}
	class := c.requestSizeToClass(size)
	if class == -1 {
		return make([]byte, size), dumbDeallocator, nil
	}
	slice := c.classAllocate(class, hints)
	return slice[:size], c.deallocatorPool.Get(classDeallocatorArgs{
		class: class,
		slice: slice,
	}), nil
}

// Stats returns how many blocks were served from the pools and how many
// were handed back to them.
func (c *ClassAllocator) Stats() (reused, freed int64) {
	for i := range c.pools {
		reused += c.pools[i].numReuse.Load()
		freed += c.pools[i].numFree.Load()
	}
	return
}

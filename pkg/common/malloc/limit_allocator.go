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

	"github.com/teuos/htui32/pkg/common/moerr"
	v2 "github.com/teuos/htui32/pkg/util/metric/v2"
)

// LimitAllocator refuses allocations that would take the bytes in use above
// a fixed budget.
type LimitAllocator struct {
	upstream        Allocator
	limit           uint64
	inuse           atomic.Uint64
	peak            *PeakInuseTracker
	deallocatorPool *ClosureDeallocatorPool[limitDeallocatorArgs]
}

type limitDeallocatorArgs struct {
	size uint64
}

func NewLimitAllocator(upstream Allocator, limit uint64) *LimitAllocator {
	ret := &LimitAllocator{
		upstream: upstream,
		limit:    limit,
		peak:     NewPeakInuseTracker(),
	}
	ret.deallocatorPool = NewClosureDeallocatorPool(
		func(hints Hints, args *limitDeallocatorArgs) {
			ret.inuse.Add(^(args.size - 1))
		},
	)
	return ret
}

var _ Allocator = new(LimitAllocator)

func (l *LimitAllocator) Allocate(size uint64, hints Hints) ([]byte, Deallocator, error) {
	if size == 0 {
		return l.upstream.Allocate(size, hints)
	}

	var n uint64
	for {
		cur := l.inuse.Load()
		n = cur + size
		if n > l.limit || n < cur {
			v2.MemAllocateFailedCounter.Inc()
			return nil, nil, moerr.NewOOMNoCtx()
		}
		if l.inuse.CompareAndSwap(cur, n) {
			break
		}
	}

	bs, dec, err := l.upstream.Allocate(size, hints)
	if err != nil {
		l.inuse.Add(^(size - 1))
		return nil, nil, err
	}
	l.peak.Update(n)

	return bs, ChainDeallocator(
		dec,
		l.deallocatorPool.Get(limitDeallocatorArgs{
			size: size,
		}),
	), nil
}

func (l *LimitAllocator) Limit() uint64 {
	return l.limit
}

func (l *LimitAllocator) InUse() uint64 {
	return l.inuse.Load()
}

func (l *LimitAllocator) Peak() uint64 {
	n, _ := l.peak.Peak()
	return n
}

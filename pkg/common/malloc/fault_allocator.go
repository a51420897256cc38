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
	"go.uber.org/zap"

	"github.com/teuos/htui32/pkg/common/moerr"
	"github.com/teuos/htui32/pkg/logutil"
	"github.com/teuos/htui32/pkg/util/fault"
	v2 "github.com/teuos/htui32/pkg/util/metric/v2"
)

// FaultPointAllocate is the fault point FaultAllocator consults by default.
const FaultPointAllocate = "malloc.allocate"

// FaultAllocator fails an allocation with ErrOOM whenever its fault point
// fires. Fault injection must be enabled in package fault. An ECHO point's
// string argument is logged as the failure reason.
type FaultAllocator struct {
	upstream Allocator
	name     string
}

func NewFaultAllocator(upstream Allocator, name string) *FaultAllocator {
	if name == "" {
		name = FaultPointAllocate
	}
	return &FaultAllocator{
		upstream: upstream,
		name:     name,
	}
}

var _ Allocator = new(FaultAllocator)

func (f *FaultAllocator) Allocate(size uint64, hints Hints) ([]byte, Deallocator, error) {
	if _, reason, exist := fault.TriggerFault(f.name); exist {
		logutil.Debug("injected allocation failure",
			zap.String("fault point", f.name),
			zap.String("reason", reason),
			zap.Uint64("size", size),
		)
		v2.MemAllocateFailedCounter.Inc()
		return nil, nil, moerr.NewOOMNoCtx()
	}
	return f.upstream.Allocate(size, hints)
}

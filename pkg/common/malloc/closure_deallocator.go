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

import "sync"

type ClosureDeallocator[T any] struct {
	argument T
	fn       func(Hints, *T)
	pool     *ClosureDeallocatorPool[T]
}

var _ Deallocator = new(ClosureDeallocator[int])

func (c *ClosureDeallocator[T]) SetArgument(arg T) {
	c.argument = arg
}

func (c *ClosureDeallocator[T]) Deallocate(hints Hints) {
	c.fn(hints, &c.argument)
	if c.pool != nil {
		var zero T
		c.argument = zero
		c.pool.pool.Put(c)
	}
}

// ClosureDeallocatorPool recycles ClosureDeallocators that share fn, so
// decorators do not allocate a closure per block.
type ClosureDeallocatorPool[T any] struct {
	pool sync.Pool
}

func NewClosureDeallocatorPool[T any](
	deallocateFunc func(Hints, *T),
) *ClosureDeallocatorPool[T] {
	ret := new(ClosureDeallocatorPool[T])

	ret.pool.New = func() any {
		return &ClosureDeallocator[T]{
			fn:   deallocateFunc,
			pool: ret,
		}
	}

	return ret
}

func (c *ClosureDeallocatorPool[T]) Get(args T) Deallocator {
	closure := c.pool.Get().(*ClosureDeallocator[T])
	closure.SetArgument(args)
	return closure
}

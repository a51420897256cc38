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

const (
	B = 1 << (10 * iota)
	KB
	MB
	GB
)

//go:generate mockgen -source=malloc.go -destination=mock_malloc/allocator_mock.go -package=mock_malloc

// Allocator hands out byte blocks. A failed allocation is reported through
// the error and never panics.
type Allocator interface {
	Allocate(size uint64, hints Hints) ([]byte, Deallocator, error)
}

// Deallocator returns one block to the allocator that produced it. It must
// be called at most once.
type Deallocator interface {
	Deallocate(hints Hints)
}

type Hints uint64

const (
	NoHints Hints = 0
	// NoClear means the caller initializes the block itself.
	NoClear Hints = 1 << iota
	// DoNotReuse means the block should not be recycled after deallocation.
	DoNotReuse
)

func (h Hints) Has(o Hints) bool {
	return h&o == o
}

// DeallocatorFunc adapts a function to Deallocator.
type DeallocatorFunc func(Hints)

func (f DeallocatorFunc) Deallocate(hints Hints) {
	f(hints)
}

var dumbDeallocator Deallocator = DeallocatorFunc(func(Hints) {})

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
	"unsafe"

	"github.com/teuos/htui32/pkg/common/malloc"
)

// Uint32HashMapCell is one entry. In the slot array it is the embedded entry
// of a slot, in the node arena it is an overflow node. next is the 1-based
// handle of the following node of the chain, 0 ends the chain.
type Uint32HashMapCell struct {
	Key    uint32
	Mapped uint32
	next   uint32
}

var u32CellSize = uint64(unsafe.Sizeof(Uint32HashMapCell{}))

const kInitialNodeCnt = 4

// uint32HashTable is one generation of storage: the slot array and the node
// arena holding every overflow node of its chains. A rehash builds a new
// table and drops the old one as a whole.
type uint32HashTable struct {
	allocator malloc.Allocator
	capacity  uint64

	slotsDeallocator malloc.Deallocator
	slots            []Uint32HashMapCell

	nodesDeallocator malloc.Deallocator
	nodes            []Uint32HashMapCell
	// handles 1..nodeCnt have been handed out at least once
	nodeCnt uint32
	// head of the released nodes, linked through next
	freeNode  uint32
	liveNodes uint32
}

func allocCells(allocator malloc.Allocator, n uint64) ([]Uint32HashMapCell, malloc.Deallocator, error) {
	bs, dec, err := allocator.Allocate(n*u32CellSize, malloc.NoClear)
	if err != nil {
		return nil, nil, err
	}
	cells := unsafe.Slice((*Uint32HashMapCell)(unsafe.Pointer(&bs[0])), n)
	clear(cells)
	return cells, dec, nil
}

func newUint32HashTable(allocator malloc.Allocator, capacity uint64) (*uint32HashTable, error) {
	slots, dec, err := allocCells(allocator, capacity)
	if err != nil {
		return nil, err
	}
	return &uint32HashTable{
		allocator:        allocator,
		capacity:         capacity,
		slots:            slots,
		slotsDeallocator: dec,
	}, nil
}

// free releases the node arena before the slot array.
func (t *uint32HashTable) free() {
	if t.nodesDeallocator != nil {
		t.nodesDeallocator.Deallocate(malloc.NoHints)
		t.nodesDeallocator, t.nodes = nil, nil
	}
	if t.slotsDeallocator != nil {
		t.slotsDeallocator.Deallocate(malloc.NoHints)
		t.slotsDeallocator, t.slots = nil, nil
	}
	t.nodeCnt, t.freeNode, t.liveNodes = 0, 0, 0
}

func (t *uint32HashTable) home(key uint32) uint64 {
	return uint64(Uint32Hash(key)) % t.capacity
}

func (t *uint32HashTable) node(h uint32) *Uint32HashMapCell {
	return &t.nodes[h-1]
}

// newNode returns the handle of a cleared node. On failure the table is
// unchanged.
func (t *uint32HashTable) newNode() (uint32, error) {
	if h := t.freeNode; h != 0 {
		n := t.node(h)
		t.freeNode = n.next
		*n = Uint32HashMapCell{}
		t.liveNodes++
		return h, nil
	}

	if uint64(t.nodeCnt) == uint64(len(t.nodes)) {
		if err := t.growNodes(); err != nil {
			return 0, err
		}
	}
	t.nodeCnt++
	t.liveNodes++
	return t.nodeCnt, nil
}

func (t *uint32HashTable) growNodes() error {
	newCnt := uint64(len(t.nodes)) * 2
	if newCnt == 0 {
		newCnt = kInitialNodeCnt
	}
	nodes, dec, err := allocCells(t.allocator, newCnt)
	if err != nil {
		return err
	}
	copy(nodes, t.nodes)
	if t.nodesDeallocator != nil {
		t.nodesDeallocator.Deallocate(malloc.NoHints)
	}
	t.nodes, t.nodesDeallocator = nodes, dec
	return nil
}

func (t *uint32HashTable) releaseNode(h uint32) {
	*t.node(h) = Uint32HashMapCell{next: t.freeNode}
	t.freeNode = h
	t.liveNodes--
}

func (t *uint32HashTable) findCell(key uint32) *Uint32HashMapCell {
	cell := &t.slots[t.home(key)]
	if cell.Key == 0 {
		return nil
	}
	for {
		if cell.Key == key {
			return cell
		}
		if cell.next == 0 {
			return nil
		}
		cell = t.node(cell.next)
	}
}

// insert adds a key known to be absent. On failure the table is unchanged.
func (t *uint32HashTable) insert(key, value uint32) error {
	idx := t.home(key)
	if slot := &t.slots[idx]; slot.Key == 0 {
		slot.Key, slot.Mapped = key, value
		return nil
	}

	// the arena may move, so take the node before walking the chain
	h, err := t.newNode()
	if err != nil {
		return err
	}
	n := t.node(h)
	n.Key, n.Mapped = key, value

	tail := &t.slots[idx]
	for tail.next != 0 {
		tail = t.node(tail.next)
	}
	tail.next = h
	return nil
}

// remove unlinks key from its chain and reports whether it was present.
func (t *uint32HashTable) remove(key uint32) bool {
	slot := &t.slots[t.home(key)]
	if slot.Key == 0 {
		return false
	}

	if slot.Key == key {
		if slot.next == 0 {
			*slot = Uint32HashMapCell{}
			return true
		}
		// pull the chain forward
		h := slot.next
		n := t.node(h)
		slot.Key, slot.Mapped, slot.next = n.Key, n.Mapped, n.next
		t.releaseNode(h)
		return true
	}

	prev := slot
	for h := prev.next; h != 0; {
		n := t.node(h)
		if n.Key == key {
			prev.next = n.next
			t.releaseNode(h)
			return true
		}
		prev, h = n, n.next
	}
	return false
}

// each calls fn for every entry, chains in order.
func (t *uint32HashTable) each(fn func(idx uint64, cell *Uint32HashMapCell) error) error {
	for i := range t.slots {
		cell := &t.slots[i]
		if cell.Key == 0 {
			continue
		}
		for {
			if err := fn(uint64(i), cell); err != nil {
				return err
			}
			if cell.next == 0 {
				break
			}
			cell = t.node(cell.next)
		}
	}
	return nil
}

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
	"github.com/teuos/htui32/pkg/common/moerr"
	v2 "github.com/teuos/htui32/pkg/util/metric/v2"
)

const (
	kDefaultCapacity   = 4
	kDefaultLoadFacMin = 25
	kDefaultLoadFacMax = 75
	// keeps slot indexes within 32 bits
	kMaxCapacity = 1 << 32
)

// zeroCell holds the zero key, which never goes into a cell.
type zeroCell struct {
	used   bool
	mapped uint32
}

// Uint32HashMap maps uint32 keys to uint32 values. Collisions are chained
// per slot. Capacity doubles when an insert would reach loadFacMax percent
// and halves when a delete drops to loadFacMin percent, never below the
// capacity given to Init. It is not safe for concurrent use.
type Uint32HashMap struct {
	allocator malloc.Allocator

	initialCapacity uint64
	loadFacMin      uint8
	loadFacMax      uint8
	rehashMinSize   uint64
	rehashMaxSize   uint64

	elemCnt  uint64
	zeroCell zeroCell
	table    *uint32HashTable
}

// Init allocates the slot array. A zero capacity or load factor selects its
// default, a nil allocator selects DefaultAllocator. Any previous contents
// are released. On error the map stays unusable.
func (ht *Uint32HashMap) Init(capacity uint64, loadFacMin, loadFacMax uint8, allocator malloc.Allocator) error {
	ht.Free()

	if capacity == 0 {
		capacity = kDefaultCapacity
	}
	if loadFacMin == 0 {
		loadFacMin = kDefaultLoadFacMin
	}
	if loadFacMax == 0 {
		loadFacMax = kDefaultLoadFacMax
	}
	if loadFacMax > 100 {
		return moerr.NewBadConfigNoCtx("max load factor %d is above 100", loadFacMax)
	}
	if loadFacMin > 100 {
		return moerr.NewBadConfigNoCtx("min load factor %d is above 100", loadFacMin)
	}
	if capacity > kMaxCapacity {
		return moerr.NewBadConfigNoCtx("capacity %d is above %d", capacity, uint64(kMaxCapacity))
	}
	if allocator == nil {
		allocator = DefaultAllocator()
	}

	table, err := newUint32HashTable(allocator, capacity)
	if err != nil {
		return err
	}

	ht.allocator = allocator
	ht.initialCapacity = capacity
	ht.loadFacMin = loadFacMin
	ht.loadFacMax = loadFacMax
	ht.table = table
	ht.updateThresholds()
	return nil
}

// Free releases all memory. The map can be initialized again afterwards.
func (ht *Uint32HashMap) Free() {
	if ht.table != nil {
		ht.table.free()
		ht.table = nil
	}
	ht.elemCnt = 0
	ht.zeroCell = zeroCell{}
	ht.rehashMinSize, ht.rehashMaxSize = 0, 0
}

func (ht *Uint32HashMap) updateThresholds() {
	capacity := ht.table.capacity
	ht.rehashMinSize = capacity * uint64(ht.loadFacMin) / 100
	ht.rehashMaxSize = (capacity*uint64(ht.loadFacMax) + 99) / 100
}

// Put inserts or overwrites key. Overwriting never resizes. On error the
// map is unchanged.
func (ht *Uint32HashMap) Put(key, value uint32) error {
	if ht.table == nil {
		return moerr.NewInvalidStateNoCtx("put on uninitialized hash map")
	}

	if key == 0 {
		if ht.zeroCell.used {
			ht.zeroCell.mapped = value
			return nil
		}
		if ht.needGrow() {
			if err := ht.rehash(ht.table.capacity*2, 0, 0, 0); err != nil {
				return err
			}
		}
		ht.zeroCell = zeroCell{used: true, mapped: value}
		ht.elemCnt++
		return nil
	}

	if cell := ht.table.findCell(key); cell != nil {
		cell.Mapped = value
		return nil
	}

	if ht.needGrow() {
		// the new key goes into the rebuilt table, so a failed grow
		// leaves nothing behind
		if err := ht.rehash(ht.table.capacity*2, 0, key, value); err != nil {
			return err
		}
	} else if err := ht.table.insert(key, value); err != nil {
		return err
	}
	ht.elemCnt++
	return nil
}

// Get returns the value of key and whether it is present.
func (ht *Uint32HashMap) Get(key uint32) (uint32, bool) {
	if ht.table == nil {
		return 0, false
	}
	if key == 0 {
		return ht.zeroCell.mapped, ht.zeroCell.used
	}
	if ht.elemCnt == 0 {
		return 0, false
	}
	if cell := ht.table.findCell(key); cell != nil {
		return cell.Mapped, true
	}
	return 0, false
}

// Contains reports whether key is present.
func (ht *Uint32HashMap) Contains(key uint32) bool {
	_, ok := ht.Get(key)
	return ok
}

// Delete removes key. Absent keys are ignored. On error the map is
// unchanged and key is still present.
func (ht *Uint32HashMap) Delete(key uint32) error {
	if ht.table == nil || ht.elemCnt == 0 {
		return nil
	}

	if key == 0 {
		if !ht.zeroCell.used {
			return nil
		}
		if ht.needShrink(ht.elemCnt - 1) {
			if err := ht.rehash(ht.table.capacity/2, 0, 0, 0); err != nil {
				return err
			}
		}
		ht.zeroCell = zeroCell{}
		ht.elemCnt--
		return nil
	}

	if ht.table.findCell(key) == nil {
		return nil
	}

	if ht.needShrink(ht.elemCnt - 1) {
		// rebuild without key instead of removing it first
		if err := ht.rehash(ht.table.capacity/2, key, 0, 0); err != nil {
			return err
		}
	} else {
		ht.table.remove(key)
	}
	ht.elemCnt--
	return nil
}

func (ht *Uint32HashMap) needGrow() bool {
	return ht.elemCnt+1 >= ht.rehashMaxSize && ht.table.capacity*2 <= kMaxCapacity
}

func (ht *Uint32HashMap) needShrink(newSize uint64) bool {
	return newSize <= ht.rehashMinSize && ht.table.capacity/2 >= ht.initialCapacity
}

// rehash moves every entry except skipKey into a new table of the given
// capacity and adds addKey when it is not 0. The new table replaces the
// current one only when the whole rebuild succeeded.
func (ht *Uint32HashMap) rehash(capacity uint64, skipKey, addKey, addValue uint32) error {
	grow := capacity > ht.table.capacity

	table, err := ht.rebuild(capacity, skipKey, addKey, addValue)
	if err != nil {
		if grow {
			v2.HashTableGrowFailedCounter.Inc()
		} else {
			v2.HashTableShrinkFailedCounter.Inc()
		}
		return err
	}

	ht.table.free()
	ht.table = table
	ht.updateThresholds()
	if grow {
		v2.HashTableGrowCounter.Inc()
	} else {
		v2.HashTableShrinkCounter.Inc()
	}
	return nil
}

func (ht *Uint32HashMap) rebuild(capacity uint64, skipKey, addKey, addValue uint32) (*uint32HashTable, error) {
	table, err := newUint32HashTable(ht.allocator, capacity)
	if err != nil {
		return nil, err
	}

	err = ht.table.each(func(_ uint64, cell *Uint32HashMapCell) error {
		if cell.Key == skipKey {
			return nil
		}
		return table.insert(cell.Key, cell.Mapped)
	})
	if err == nil && addKey != 0 {
		err = table.insert(addKey, addValue)
	}
	if err != nil {
		table.free()
		return nil, err
	}
	return table, nil
}

// Cardinality is the number of keys, the zero key included.
func (ht *Uint32HashMap) Cardinality() uint64 {
	return ht.elemCnt
}

// Capacity is the current number of slots, 0 before Init.
func (ht *Uint32HashMap) Capacity() uint64 {
	if ht.table == nil {
		return 0
	}
	return ht.table.capacity
}

// InitialCapacity is the floor shrinking never goes below.
func (ht *Uint32HashMap) InitialCapacity() uint64 {
	return ht.initialCapacity
}

// LoadFactors returns the shrink and grow thresholds in percent.
func (ht *Uint32HashMap) LoadFactors() (min, max uint8) {
	return ht.loadFacMin, ht.loadFacMax
}

type Uint32HashMapIterator struct {
	table    *Uint32HashMap
	pos      uint64
	nextNode uint32
	visited  bool
}

// Init positions the iterator before the first entry. Any Put or Delete
// on the map invalidates it.
func (it *Uint32HashMapIterator) Init(ht *Uint32HashMap) {
	it.table = ht
	it.pos = 0
	it.nextNode = 0
	it.visited = false
}

func (it *Uint32HashMapIterator) Next() (key, value uint32, err error) {
	if !it.visited {
		it.visited = true
		if it.table.zeroCell.used {
			return 0, it.table.zeroCell.mapped, nil
		}
	}

	t := it.table.table
	if t == nil {
		err = moerr.NewInternalErrorNoCtx("out of range")
		return
	}

	if it.nextNode != 0 {
		n := t.node(it.nextNode)
		it.nextNode = n.next
		return n.Key, n.Mapped, nil
	}

	for it.pos < t.capacity {
		cell := &t.slots[it.pos]
		it.pos++
		if cell.Key != 0 {
			it.nextNode = cell.next
			return cell.Key, cell.Mapped, nil
		}
	}

	err = moerr.NewInternalErrorNoCtx("out of range")
	return
}

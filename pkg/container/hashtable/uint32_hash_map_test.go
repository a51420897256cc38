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
	"fmt"
	"testing"

	"github.com/prashantv/gostub"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/teuos/htui32/pkg/common/malloc"
	"github.com/teuos/htui32/pkg/common/moerr"
	v2 "github.com/teuos/htui32/pkg/util/metric/v2"
)

// collidingKeys returns n nonzero keys sharing one home slot.
func collidingKeys(capacity uint64, n int) (uint64, []uint32) {
	home := uint64(Uint32Hash(1)) % capacity
	keys := []uint32{1}
	for k := uint32(2); len(keys) < n; k++ {
		if uint64(Uint32Hash(k))%capacity == home {
			keys = append(keys, k)
		}
	}
	return home, keys
}

func newTestMap(t *testing.T, capacity uint64, loadFacMin, loadFacMax uint8) *Uint32HashMap {
	ht := new(Uint32HashMap)
	require.NoError(t, ht.Init(capacity, loadFacMin, loadFacMax, malloc.NewGoAllocator()))
	t.Cleanup(ht.Free)
	return ht
}

func TestPutAndGet(t *testing.T) {
	ht := newTestMap(t, 4, 0, 75)

	require.NoError(t, ht.Put(1, 1))
	require.NoError(t, ht.Put(2, 2))
	require.Equal(t, uint64(4), ht.Capacity())

	v, ok := ht.Get(1)
	require.True(t, ok)
	require.Equal(t, uint32(1), v)
	v, ok = ht.Get(2)
	require.True(t, ok)
	require.Equal(t, uint32(2), v)

	_, ok = ht.Get(3)
	require.False(t, ok)
	require.False(t, ht.Contains(3))
	require.Equal(t, uint64(2), ht.Cardinality())
}

func TestPutAndGetRehash(t *testing.T) {
	ht := newTestMap(t, 4, 0, 75)

	wantCapacity := []uint64{4, 4, 8, 8, 8, 16}
	for i, want := range wantCapacity {
		key := uint32(i + 1)
		require.NoError(t, ht.Put(key, key))
		require.Equal(t, want, ht.Capacity(), "after put(%d)", key)
		for k := uint32(1); k <= key; k++ {
			v, ok := ht.Get(k)
			require.True(t, ok)
			require.Equal(t, k, v)
		}
	}
	require.Equal(t, uint64(4), ht.InitialCapacity())
}

func TestZeroKey(t *testing.T) {
	ht := newTestMap(t, 2, 0, 75)

	_, ok := ht.Get(0)
	require.False(t, ok)

	require.NoError(t, ht.Put(0, 999))
	require.Equal(t, uint64(1), ht.Cardinality())
	v, ok := ht.Get(0)
	require.True(t, ok)
	require.Equal(t, uint32(999), v)
	// never stored as a literal key
	for i := range ht.table.slots {
		require.Equal(t, Uint32HashMapCell{}, ht.table.slots[i])
	}

	require.NoError(t, ht.Put(0, 1000))
	require.Equal(t, uint64(1), ht.Cardinality())
	v, _ = ht.Get(0)
	require.Equal(t, uint32(1000), v)

	require.NoError(t, ht.Delete(0))
	require.Equal(t, uint64(0), ht.Cardinality())
	require.Equal(t, uint64(2), ht.Capacity())
	require.False(t, ht.Contains(0))

	// absent zero key
	require.NoError(t, ht.Delete(0))
	require.Equal(t, uint64(0), ht.Cardinality())
}

func TestZeroKeyValueZero(t *testing.T) {
	ht := newTestMap(t, 4, 0, 0)
	require.NoError(t, ht.Put(0, 0))
	v, ok := ht.Get(0)
	require.True(t, ok)
	require.Equal(t, uint32(0), v)
	require.Equal(t, uint64(1), ht.Cardinality())
}

func TestOverwriteDoesNotResize(t *testing.T) {
	ht := newTestMap(t, 4, 0, 75)
	require.NoError(t, ht.Put(1, 1))
	require.NoError(t, ht.Put(2, 2))

	before := testutil.ToFloat64(v2.HashTableGrowCounter)
	for i := uint32(0); i < 100; i++ {
		require.NoError(t, ht.Put(2, i))
		require.NoError(t, ht.Put(1, i))
	}
	require.Equal(t, uint64(4), ht.Capacity())
	require.Equal(t, uint64(2), ht.Cardinality())
	require.Equal(t, before, testutil.ToFloat64(v2.HashTableGrowCounter))
	v, _ := ht.Get(1)
	require.Equal(t, uint32(99), v)
}

func TestDeleteChain(t *testing.T) {
	cases := []struct {
		name   string
		delete []int
	}{
		{"embedded with chain", []int{0}},
		{"middle node", []int{2}},
		{"tail node", []int{4}},
		{"embedded then tail", []int{0, 4}},
		{"all forward", []int{0, 1, 2, 3, 4}},
		{"all backward", []int{4, 3, 2, 1, 0}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ht := newTestMap(t, 64, 1, 100)
			home, keys := collidingKeys(64, 5)
			for _, k := range keys {
				require.NoError(t, ht.Put(k, k*10))
			}
			require.Equal(t, uint32(4), ht.table.liveNodes)

			deleted := make(map[uint32]bool)
			for _, i := range c.delete {
				require.NoError(t, ht.Delete(keys[i]))
				deleted[keys[i]] = true
			}

			require.Equal(t, uint64(len(keys)-len(deleted)), ht.Cardinality())
			for _, k := range keys {
				v, ok := ht.Get(k)
				if deleted[k] {
					require.False(t, ok, "key %d", k)
				} else {
					require.True(t, ok, "key %d", k)
					require.Equal(t, k*10, v)
				}
			}

			slot := ht.table.slots[home]
			remaining := len(keys) - len(deleted)
			if remaining == 0 {
				require.Equal(t, Uint32HashMapCell{}, slot)
				require.Equal(t, uint32(0), ht.table.liveNodes)
			} else {
				require.NotEqual(t, uint32(0), slot.Key)
				require.Equal(t, uint32(remaining-1), ht.table.liveNodes)
			}
		})
	}
}

func TestDeleteAbsent(t *testing.T) {
	var empty Uint32HashMap
	require.NoError(t, empty.Delete(7))

	ht := newTestMap(t, 4, 0, 0)
	require.NoError(t, ht.Delete(7))
	require.NoError(t, ht.Put(1, 1))
	require.NoError(t, ht.Delete(7))
	require.Equal(t, uint64(1), ht.Cardinality())
}

func TestShrinkAndCapacityFloor(t *testing.T) {
	ht := newTestMap(t, 4, 0, 0)
	for k := uint32(1); k <= 100; k++ {
		require.NoError(t, ht.Put(k, k))
	}
	require.Equal(t, uint64(256), ht.Capacity())

	shrinks := testutil.ToFloat64(v2.HashTableShrinkCounter)
	for k := uint32(1); k <= 100; k++ {
		require.NoError(t, ht.Delete(k))
		require.GreaterOrEqual(t, ht.Capacity(), ht.InitialCapacity())
		for j := k + 1; j <= 100; j++ {
			v, ok := ht.Get(j)
			require.True(t, ok)
			require.Equal(t, j, v)
		}
	}
	require.Equal(t, uint64(0), ht.Cardinality())
	require.Equal(t, uint64(4), ht.Capacity())
	require.Equal(t, float64(6), testutil.ToFloat64(v2.HashTableShrinkCounter)-shrinks)
}

func TestShrinkWithZeroKey(t *testing.T) {
	ht := newTestMap(t, 4, 0, 75)
	for k := uint32(0); k < 3; k++ {
		require.NoError(t, ht.Put(k, k+100))
	}
	require.Equal(t, uint64(8), ht.Capacity())
	// size 2 reaches 8*25/100
	require.NoError(t, ht.Delete(0))
	require.Equal(t, uint64(4), ht.Capacity())
	require.False(t, ht.Contains(0))
	for k := uint32(1); k < 3; k++ {
		v, ok := ht.Get(k)
		require.True(t, ok)
		require.Equal(t, k+100, v)
	}
}

func TestNodeArenaBounded(t *testing.T) {
	ht := newTestMap(t, 64, 1, 100)
	_, keys := collidingKeys(64, 4)
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		for _, k := range keys {
			require.NoError(t, ht.Put(k, uint32(i)))
		}
		rnd.Shuffle(len(keys), func(a, b int) { keys[a], keys[b] = keys[b], keys[a] })
		for _, k := range keys {
			require.NoError(t, ht.Delete(k))
		}
	}
	require.Equal(t, uint64(0), ht.Cardinality())
	require.Equal(t, uint32(0), ht.table.liveNodes)
	require.LessOrEqual(t, ht.table.nodeCnt, uint32(3))
	require.Equal(t, kInitialNodeCnt, len(ht.table.nodes))
}

func TestFreeReleasesEverything(t *testing.T) {
	limit := malloc.NewLimitAllocator(malloc.NewGoAllocator(), malloc.MB)
	ht := new(Uint32HashMap)
	require.NoError(t, ht.Init(8, 0, 0, limit))
	_, keys := collidingKeys(8, 20)
	for _, k := range keys {
		require.NoError(t, ht.Put(k, k))
	}
	require.NoError(t, ht.Put(0, 1))
	require.Greater(t, limit.InUse(), uint64(0))

	ht.Free()
	require.Equal(t, uint64(0), limit.InUse())
	require.Equal(t, uint64(0), ht.Cardinality())
	require.Equal(t, uint64(0), ht.Capacity())
	require.False(t, ht.Contains(0))

	// idempotent
	ht.Free()
	require.Equal(t, uint64(0), limit.InUse())

	// usable again after Init
	require.NoError(t, ht.Init(4, 0, 0, limit))
	require.NoError(t, ht.Put(5, 5))
	ht.Free()
	require.Equal(t, uint64(0), limit.InUse())
}

func TestRehashFreesOldTable(t *testing.T) {
	limit := malloc.NewLimitAllocator(malloc.NewGoAllocator(), malloc.MB)
	ht := new(Uint32HashMap)
	require.NoError(t, ht.Init(4, 0, 0, limit))
	defer ht.Free()
	for k := uint32(1); k <= 1000; k++ {
		require.NoError(t, ht.Put(k, k))
	}
	// the live slot array plus at most one node arena of the same order
	used := limit.InUse()
	require.Less(t, used, 3*ht.Capacity()*u32CellSize)
}

func TestUninitialized(t *testing.T) {
	var ht Uint32HashMap
	err := ht.Put(1, 1)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))
	err = ht.Put(0, 1)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))
	_, ok := ht.Get(1)
	require.False(t, ok)
	_, ok = ht.Get(0)
	require.False(t, ok)
	require.NoError(t, ht.Delete(1))
	require.Equal(t, uint64(0), ht.Capacity())
	require.Equal(t, "size: 0\ncapacity: 0\n", ht.DebugString())
}

func TestInitBadConfig(t *testing.T) {
	cases := []struct {
		capacity   uint64
		loadFacMin uint8
		loadFacMax uint8
	}{
		{4, 0, 101},
		{4, 101, 0},
		{4, 255, 255},
		{kMaxCapacity + 1, 0, 0},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%d-%d-%d", c.capacity, c.loadFacMin, c.loadFacMax), func(t *testing.T) {
			var ht Uint32HashMap
			err := ht.Init(c.capacity, c.loadFacMin, c.loadFacMax, malloc.NewGoAllocator())
			require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
			require.True(t, moerr.IsMoErrCode(ht.Put(1, 1), moerr.ErrInvalidState))
		})
	}
}

func TestInitDefaults(t *testing.T) {
	limit := malloc.NewLimitAllocator(malloc.NewGoAllocator(), malloc.MB)
	stubs := gostub.Stub(&defaultAllocator, limit)
	defer stubs.Reset()

	var ht Uint32HashMap
	require.NoError(t, ht.Init(0, 0, 0, nil))
	require.Equal(t, uint64(4), ht.Capacity())
	require.Equal(t, uint64(4), ht.InitialCapacity())
	min, max := ht.LoadFactors()
	require.Equal(t, uint8(25), min)
	require.Equal(t, uint8(75), max)
	require.Equal(t, 4*u32CellSize, limit.InUse())

	ht.Free()
	require.Equal(t, uint64(0), limit.InUse())
}

func TestAccessors(t *testing.T) {
	ht := newTestMap(t, 8, 10, 90)
	min, max := ht.LoadFactors()
	require.Equal(t, uint8(10), min)
	require.Equal(t, uint8(90), max)

	require.False(t, ht.Contains(0))
	require.NoError(t, ht.Put(0, 7))
	require.True(t, ht.Contains(0))

	for k := uint32(1); k <= 20; k++ {
		require.NoError(t, ht.Put(k, k))
	}
	require.Greater(t, ht.Capacity(), uint64(8))
	require.Equal(t, uint64(8), ht.InitialCapacity())
	for k := uint32(0); k <= 20; k++ {
		require.True(t, ht.Contains(k), "key %d", k)
	}
	require.False(t, ht.Contains(21))

	for k := uint32(0); k <= 20; k++ {
		require.NoError(t, ht.Delete(k))
		require.False(t, ht.Contains(k), "key %d", k)
	}
	require.Equal(t, uint64(8), ht.Capacity())
	require.Equal(t, uint64(8), ht.InitialCapacity())
	min, max = ht.LoadFactors()
	require.Equal(t, uint8(10), min)
	require.Equal(t, uint8(90), max)
}

func TestInitAllocFailure(t *testing.T) {
	var ht Uint32HashMap
	err := ht.Init(1024, 0, 0, malloc.NewLimitAllocator(malloc.NewGoAllocator(), 16))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))
	require.True(t, moerr.IsMoErrCode(ht.Put(1, 1), moerr.ErrInvalidState))
	require.Equal(t, uint64(0), ht.Capacity())
}

func TestDebugString(t *testing.T) {
	ht := newTestMap(t, 64, 1, 100)
	home, keys := collidingKeys(64, 3)
	for i, k := range keys {
		require.NoError(t, ht.Put(k, uint32(i+1)))
	}
	require.NoError(t, ht.Put(0, 999))

	want := fmt.Sprintf("size: 4\ncapacity: 64\n[zero]: (0:999)\n[%d]: (%d:1) (%d:2) (%d:3)\n",
		home, keys[0], keys[1], keys[2])
	require.Equal(t, want, ht.DebugString())

	require.NoError(t, ht.Delete(keys[0]))
	want = fmt.Sprintf("size: 3\ncapacity: 64\n[zero]: (0:999)\n[%d]: (%d:2) (%d:3)\n",
		home, keys[1], keys[2])
	require.Equal(t, want, ht.DebugString())
}

func TestIterator(t *testing.T) {
	ht := newTestMap(t, 4, 0, 0)
	want := map[uint32]uint32{0: 7}
	require.NoError(t, ht.Put(0, 7))
	for k := uint32(1); k <= 50; k++ {
		require.NoError(t, ht.Put(k*2654435761, k))
		want[k*2654435761] = k
	}

	got := make(map[uint32]uint32)
	var it Uint32HashMapIterator
	it.Init(ht)
	for {
		k, v, err := it.Next()
		if err != nil {
			require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
			require.Equal(t, "internal error: out of range", err.Error())
			break
		}
		_, dup := got[k]
		require.False(t, dup)
		got[k] = v
	}
	assert.Equal(t, want, got)

	// exhausted iterators stay exhausted
	_, _, err := it.Next()
	require.Error(t, err)
}

func TestIteratorEmpty(t *testing.T) {
	var it Uint32HashMapIterator

	var uninit Uint32HashMap
	it.Init(&uninit)
	_, _, err := it.Next()
	require.Error(t, err)

	ht := newTestMap(t, 4, 0, 0)
	it.Init(ht)
	_, _, err = it.Next()
	require.Error(t, err)
}

func TestRandomOps(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		rnd := rand.New(rand.NewSource(seed))
		ht := newTestMap(t, uint64(rnd.Intn(8)+1), 0, 0)
		ref := make(map[uint32]uint32)

		for i := 0; i < 5000; i++ {
			key := rnd.Uint32() % 512
			switch rnd.Intn(3) {
			case 0:
				value := rnd.Uint32()
				require.NoError(t, ht.Put(key, value))
				ref[key] = value
			case 1:
				require.NoError(t, ht.Delete(key))
				delete(ref, key)
			default:
				v, ok := ht.Get(key)
				rv, rok := ref[key]
				require.Equal(t, rok, ok, "seed %d step %d key %d", seed, i, key)
				require.Equal(t, rv, v)
			}
			require.Equal(t, uint64(len(ref)), ht.Cardinality())
			require.GreaterOrEqual(t, ht.Capacity(), ht.InitialCapacity())
		}
	}
}

func TestMaxChainLength(t *testing.T) {
	var uninit Uint32HashMap
	require.Equal(t, 0, uninit.MaxChainLength())

	ht := newTestMap(t, 64, 1, 100)
	require.Equal(t, 0, ht.MaxChainLength())
	_, keys := collidingKeys(64, 5)
	for _, k := range keys {
		require.NoError(t, ht.Put(k, k))
	}
	require.Equal(t, 5, ht.MaxChainLength())
	// the zero key is not part of any chain
	require.NoError(t, ht.Put(0, 0))
	require.Equal(t, 5, ht.MaxChainLength())
}

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
	"strings"
)

// DebugString dumps the size, the capacity, the zero key and every
// non-empty slot with its chain:
//
//	size: 3
//	capacity: 8
//	[zero]: (0:999)
//	[5]: (7:7) (12:12)
func (ht *Uint32HashMap) DebugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "size: %d\n", ht.elemCnt)
	fmt.Fprintf(&buf, "capacity: %d\n", ht.Capacity())
	if ht.zeroCell.used {
		fmt.Fprintf(&buf, "[zero]: (0:%d)\n", ht.zeroCell.mapped)
	}
	if ht.table == nil {
		return buf.String()
	}

	last := uint64(0)
	first := true
	_ = ht.table.each(func(idx uint64, cell *Uint32HashMapCell) error {
		if first || idx != last {
			if !first {
				buf.WriteByte('\n')
			}
			fmt.Fprintf(&buf, "[%d]:", idx)
			first, last = false, idx
		}
		fmt.Fprintf(&buf, " (%d:%d)", cell.Key, cell.Mapped)
		return nil
	})
	if !first {
		buf.WriteByte('\n')
	}
	return buf.String()
}

// MaxChainLength is the length of the longest slot chain, the embedded
// entry included.
func (ht *Uint32HashMap) MaxChainLength() int {
	if ht.table == nil {
		return 0
	}
	longest, cur := 0, 0
	last := uint64(0)
	_ = ht.table.each(func(idx uint64, _ *Uint32HashMapCell) error {
		if cur == 0 || idx != last {
			cur, last = 0, idx
		}
		cur++
		longest = max(longest, cur)
		return nil
	})
	return longest
}

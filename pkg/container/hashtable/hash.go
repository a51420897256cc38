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

	"github.com/spaolacci/murmur3"
)

// hashSeed is fixed so that slot placement is reproducible across runs.
const hashSeed = 0

// Uint32Hash is MurmurHash3 x86_32 of the key's in-memory bytes.
func Uint32Hash(key uint32) uint32 {
	return murmur3.Sum32WithSeed(unsafe.Slice((*byte)(unsafe.Pointer(&key)), 4), hashSeed)
}

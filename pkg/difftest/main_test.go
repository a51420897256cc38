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

package difftest

import (
	"bytes"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
)

// ants starts a default pool in its package init. Its purge goroutine is
// not ours, so stop it before any goroutine leak check runs.
func TestMain(m *testing.M) {
	ants.Release()
	waitDefaultPoolStopped(5 * time.Second)
	os.Exit(m.Run())
}

// waitDefaultPoolStopped waits for the purge goroutine to notice the pool
// is closed, which happens on its next tick.
func waitDefaultPoolStopped(timeout time.Duration) {
	buf := make([]byte, 1<<20)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		n := runtime.Stack(buf, true)
		if !bytes.Contains(buf[:n], []byte("purgePeriodically")) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

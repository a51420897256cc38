// Copyright 2021 Matrix Origin
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

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teuos/htui32/pkg/common/malloc"
	"github.com/teuos/htui32/pkg/common/moerr"
	"github.com/teuos/htui32/pkg/container/hashtable"
	"github.com/teuos/htui32/pkg/logutil"
)

// checkpoint is the state expected after the first `after` ops of a scenario.
type checkpoint struct {
	after    int
	size     uint64
	capacity uint64
	present  map[uint32]uint32
	absent   []uint32
}

type scenario struct {
	name        string
	capacity    uint64
	loadFacMin  uint8
	loadFacMax  uint8
	script      string
	checkpoints []checkpoint
}

var scenarios = []scenario{
	{
		name:       "put-get",
		capacity:   16,
		loadFacMax: 75,
		script: "put 4875 0 put 73 1 put 8923 2 " +
			"put 73 3 put 8923 4 " +
			"put 49 5 put 8412 6 put 12309 7 put 3859 8 put 38912 9",
		checkpoints: []checkpoint{
			{after: 3, size: 3, capacity: 16, present: map[uint32]uint32{4875: 0, 73: 1, 8923: 2}, absent: []uint32{0xBAADCAFE, 0xDEADBEEF}},
			{after: 5, size: 3, capacity: 16, present: map[uint32]uint32{4875: 0, 73: 3, 8923: 4}},
			{after: 10, size: 8, capacity: 16, present: map[uint32]uint32{
				4875: 0, 73: 3, 8923: 4, 49: 5, 8412: 6, 12309: 7, 3859: 8, 38912: 9,
			}},
		},
	},
	{
		name:       "put-get-rehash",
		capacity:   4,
		loadFacMax: 75,
		script:     "put 1 1 put 2 2 put 3 3 put 4 4 put 5 5 put 6 6",
		checkpoints: []checkpoint{
			{after: 2, size: 2, capacity: 4},
			{after: 3, size: 3, capacity: 8, present: map[uint32]uint32{1: 1, 2: 2, 3: 3}},
			{after: 5, size: 5, capacity: 8},
			{after: 6, size: 6, capacity: 16, present: map[uint32]uint32{1: 1, 2: 2, 3: 3, 4: 4, 5: 5, 6: 6}},
		},
	},
	{
		name:       "zero-key",
		capacity:   2,
		loadFacMax: 75,
		script:     "put 0 7 put 0 8 put 5 50 del 0 put 0 9",
		checkpoints: []checkpoint{
			{after: 1, size: 1, capacity: 2, present: map[uint32]uint32{0: 7}},
			{after: 2, size: 1, capacity: 2, present: map[uint32]uint32{0: 8}},
			{after: 3, size: 2, capacity: 4, present: map[uint32]uint32{0: 8, 5: 50}},
			{after: 4, size: 1, capacity: 2, present: map[uint32]uint32{5: 50}, absent: []uint32{0}},
			{after: 5, size: 2, capacity: 4, present: map[uint32]uint32{0: 9, 5: 50}},
		},
	},
	{
		name:       "delete-shrink",
		capacity:   4,
		loadFacMax: 75,
		script: "put 1 1 put 2 2 put 3 3 put 4 4 put 5 5 put 6 6 " +
			"del 6 del 5 del 4 del 3 del 2 del 1",
		checkpoints: []checkpoint{
			{after: 6, size: 6, capacity: 16},
			{after: 9, size: 3, capacity: 8, present: map[uint32]uint32{1: 1, 2: 2, 3: 3}, absent: []uint32{4, 5, 6}},
			{after: 12, size: 0, capacity: 4, absent: []uint32{1, 2, 3}},
		},
	},
}

func findScenario(name string) (scenario, bool) {
	for _, s := range scenarios {
		if s.name == name {
			return s, true
		}
	}
	return scenario{}, false
}

func (s scenario) run(ctx context.Context, allocator malloc.Allocator, out io.Writer) error {
	ops, err := parseScript(ctx, strings.Fields(s.script))
	if err != nil {
		return err
	}

	var ht hashtable.Uint32HashMap
	if err := ht.Init(s.capacity, s.loadFacMin, s.loadFacMax, allocator); err != nil {
		return err
	}
	defer ht.Free()

	fmt.Fprintf(out, "== %s\n", s.name)
	done := 0
	for _, cp := range s.checkpoints {
		if err := applyScript(&ht, ops[done:cp.after], out); err != nil {
			return err
		}
		done = cp.after
		fmt.Fprintf(out, "-- after %s\n%s", ops[done-1], ht.DebugString())
		if err := cp.verify(ctx, &ht); err != nil {
			return err.WithDetail("scenario %s after %d ops", s.name, done)
		}
	}
	logutil.Debug("scenario passed", zap.String("scenario", s.name))
	return nil
}

func (cp checkpoint) verify(ctx context.Context, ht *hashtable.Uint32HashMap) *moerr.Error {
	if n := ht.Cardinality(); n != cp.size {
		return moerr.NewInvalidState(ctx, "size %d, expected %d", n, cp.size)
	}
	if c := ht.Capacity(); c != cp.capacity {
		return moerr.NewInvalidState(ctx, "capacity %d, expected %d", c, cp.capacity)
	}
	for key, want := range cp.present {
		if got, ok := ht.Get(key); !ok || got != want {
			return moerr.NewInvalidState(ctx, "get(%d) = %d, %v, expected %d", key, got, ok, want)
		}
	}
	for _, key := range cp.absent {
		if ht.Contains(key) {
			return moerr.NewInvalidState(ctx, "key %d still present", key)
		}
	}
	return nil
}

func scenarioCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario [name]...",
		Short: "Run the fixed map scenarios",
		Long:  "Run named scenarios, or all of them, printing the map layout after every checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			selected := scenarios
			if len(args) > 0 {
				selected = selected[:0:0]
				for _, name := range args {
					s, ok := findScenario(name)
					if !ok {
						return moerr.NewInvalidArg(ctx, "scenario", name)
					}
					selected = append(selected, s)
				}
			}

			out := cmd.OutOrStdout()
			for _, s := range selected {
				if err := s.run(ctx, a.cfg.NewAllocator(), out); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "%d scenarios passed\n", len(selected))
			return nil
		},
	}
	return cmd
}

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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/teuos/htui32/pkg/common/malloc"
	"github.com/teuos/htui32/pkg/common/moerr"
)

func TestNewConfig(t *testing.T) {
	convey.Convey("new config has defaults", t, func() {
		cfg := NewConfig()
		convey.So(cfg.Log.Level, convey.ShouldEqual, "info")
		convey.So(cfg.Log.Format, convey.ShouldEqual, "console")
		convey.So(cfg.HashTable.Capacity, convey.ShouldEqual, uint64(4))
		convey.So(cfg.HashTable.LoadFactorMin, convey.ShouldEqual, uint8(25))
		convey.So(cfg.HashTable.LoadFactorMax, convey.ShouldEqual, uint8(75))
		convey.So(cfg.DiffTest.Runs, convey.ShouldEqual, 1)
		convey.So(cfg.DiffTest.Parallelism, convey.ShouldEqual, 1)
	})
}

func TestParseConfig(t *testing.T) {
	ctx := context.Background()

	convey.Convey("parse a full config", t, func() {
		cfg, err := ParseConfig(ctx, `
metrics-addr = "127.0.0.1:7001"

[log]
level = "debug"
format = "json"

[hashtable]
capacity = 16
load-factor-min = 10
load-factor-max = 90

[malloc]
limit = 1048576
pooled = true
metrics = true

[difftest]
seed = 42
runs = 8
iterations = 3
parallelism = 4
key-space = 128
initial-capacity = { min = 2, max = 32 }
actions = { min = 10, max = 20 }
`)
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.MetricsAddr, convey.ShouldEqual, "127.0.0.1:7001")
		convey.So(cfg.Log.Level, convey.ShouldEqual, "debug")
		convey.So(cfg.Log.Format, convey.ShouldEqual, "json")
		convey.So(cfg.HashTable.Capacity, convey.ShouldEqual, uint64(16))
		convey.So(cfg.HashTable.LoadFactorMin, convey.ShouldEqual, uint8(10))
		convey.So(cfg.HashTable.LoadFactorMax, convey.ShouldEqual, uint8(90))
		convey.So(cfg.Malloc.Limit, convey.ShouldEqual, uint64(1048576))
		convey.So(cfg.Malloc.PoolBufferSize, convey.ShouldEqual, defaultPoolBufferSize)
		convey.So(cfg.DiffTest.Seed, convey.ShouldEqual, uint64(42))
		convey.So(cfg.DiffTest.Runs, convey.ShouldEqual, 8)
		convey.So(cfg.DiffTest.KeySpace, convey.ShouldEqual, uint32(128))
		convey.So(cfg.DiffTest.InitialCapacity.Max, convey.ShouldEqual, 32)
		convey.So(cfg.DiffTest.Actions.Min, convey.ShouldEqual, 10)

		convey.Convey("the allocator chain honours the limit", func() {
			allocator := cfg.NewAllocator()
			_, _, err := allocator.Allocate(2*malloc.MB, malloc.NoHints)
			convey.So(moerr.IsMoErrCode(err, moerr.ErrOOM), convey.ShouldBeTrue)
			_, dec, err := allocator.Allocate(malloc.KB, malloc.NoHints)
			convey.So(err, convey.ShouldBeNil)
			dec.Deallocate(malloc.NoHints)
		})
	})

	convey.Convey("reject bad configs", t, func() {
		for _, text := range []string{
			"[hashtable]\nload-factor-max = 101",
			"[hashtable]\nload-factor-min = 150",
			"[log]\nformat = \"xml\"",
			"[difftest]\nactions = { min = 9, max = 3 }",
			"[hashtable]\nbuckets = 3",
			"not toml at all = = =",
		} {
			_, err := ParseConfig(ctx, text)
			convey.So(moerr.IsMoErrCode(err, moerr.ErrBadConfig), convey.ShouldBeTrue)
		}
	})
}

func TestParseConfigFromFile(t *testing.T) {
	ctx := context.Background()

	convey.Convey("parse from file", t, func() {
		file := filepath.Join(t.TempDir(), "htui32.toml")
		err := os.WriteFile(file, []byte("[hashtable]\ncapacity = 64\n"), 0o644)
		convey.So(err, convey.ShouldBeNil)

		cfg, err := ParseConfigFromFile(ctx, file)
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.HashTable.Capacity, convey.ShouldEqual, uint64(64))
		convey.So(cfg.Malloc.Pooled, convey.ShouldBeFalse)
	})

	convey.Convey("missing file", t, func() {
		_, err := ParseConfigFromFile(ctx, filepath.Join(t.TempDir(), "absent.toml"))
		convey.So(moerr.IsMoErrCode(err, moerr.ErrFileNotFound), convey.ShouldBeTrue)

		_, err = ParseConfigFromFile(ctx, "")
		convey.So(moerr.IsMoErrCode(err, moerr.ErrBadConfig), convey.ShouldBeTrue)
	})
}

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
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/teuos/htui32/pkg/common/malloc"
	"github.com/teuos/htui32/pkg/common/moerr"
	"github.com/teuos/htui32/pkg/difftest"
	"github.com/teuos/htui32/pkg/logutil"
	v2 "github.com/teuos/htui32/pkg/util/metric/v2"
)

var (
	//default log level
	defaultLogLevel = "info"

	//default log format
	defaultLogFormat = "console"

	//default initial capacity of a hash map
	defaultCapacity uint64 = 4

	//default shrink threshold in percent
	defaultLoadFactorMin uint8 = 25

	//default grow threshold in percent
	defaultLoadFactorMax uint8 = 75

	//default pool size of the size class allocator
	defaultPoolBufferSize uint64 = 64 * malloc.MB
)

// HashTableParameters are used by maps the tools build directly.
type HashTableParameters struct {
	//initial capacity, also the floor of shrinking
	Capacity uint64 `toml:"capacity"`

	//shrink when the size drops to this percent of the capacity
	LoadFactorMin uint8 `toml:"load-factor-min"`

	//grow when the size reaches this percent of the capacity
	LoadFactorMax uint8 `toml:"load-factor-max"`
}

type MallocParameters struct {
	//bytes a map may hold, 0 is unlimited
	Limit uint64 `toml:"limit"`

	//recycle released blocks by size class
	Pooled bool `toml:"pooled"`

	//size of the recycled block pools
	PoolBufferSize uint64 `toml:"pool-buffer-size"`

	//export allocation metrics
	Metrics bool `toml:"metrics"`
}

// Config is the configuration of the htui32 tool.
type Config struct {
	Log logutil.LogConfig `toml:"log"`

	HashTable HashTableParameters `toml:"hashtable"`

	Malloc MallocParameters `toml:"malloc"`

	DiffTest difftest.Config `toml:"difftest"`

	//serve /metrics on this address while running, empty disables it
	MetricsAddr string `toml:"metrics-addr"`
}

// NewConfig returns a configuration with every default filled in.
func NewConfig() *Config {
	cfg := &Config{}
	// defaults of an empty config never fail validation
	_ = cfg.Validate(context.Background())
	return cfg
}

// ParseConfigFromFile decodes a toml file and validates the result.
func ParseConfigFromFile(ctx context.Context, file string) (*Config, error) {
	if file == "" {
		return nil, moerr.NewBadConfig(ctx, "config file is empty")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, moerr.NewFileNotFound(ctx, file)
		}
		return nil, moerr.ConvertGoError(ctx, err)
	}
	return ParseConfig(ctx, string(data))
}

// ParseConfig decodes toml text. Unknown keys are rejected.
func ParseConfig(ctx context.Context, data string) (*Config, error) {
	cfg := &Config{}
	meta, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, moerr.NewBadConfig(ctx, "%v", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, moerr.NewBadConfig(ctx, "unknown keys %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills defaults and checks every section.
func (c *Config) Validate(ctx context.Context) error {
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return moerr.NewBadConfig(ctx, "log format %s", c.Log.Format)
	}

	if c.HashTable.Capacity == 0 {
		c.HashTable.Capacity = defaultCapacity
	}
	if c.HashTable.LoadFactorMin == 0 {
		c.HashTable.LoadFactorMin = defaultLoadFactorMin
	}
	if c.HashTable.LoadFactorMax == 0 {
		c.HashTable.LoadFactorMax = defaultLoadFactorMax
	}
	if c.HashTable.LoadFactorMin > 100 || c.HashTable.LoadFactorMax > 100 {
		return moerr.NewBadConfig(ctx, "hashtable load factors %d/%d",
			c.HashTable.LoadFactorMin, c.HashTable.LoadFactorMax)
	}

	if c.Malloc.Pooled && c.Malloc.PoolBufferSize == 0 {
		c.Malloc.PoolBufferSize = defaultPoolBufferSize
	}

	return c.DiffTest.Validate(ctx)
}

// NewAllocator builds the allocator chain described by the malloc section.
func (c *Config) NewAllocator() malloc.Allocator {
	var allocator malloc.Allocator = malloc.NewGoAllocator()
	if c.Malloc.Pooled {
		allocator = malloc.NewClassAllocator(c.Malloc.PoolBufferSize)
	}
	if c.Malloc.Limit > 0 {
		allocator = malloc.NewLimitAllocator(allocator, c.Malloc.Limit)
	}
	if c.Malloc.Metrics {
		allocator = malloc.NewMetricsAllocator(
			allocator,
			v2.MemHashTableAllocateBytesCounter,
			v2.MemHashTableInuseBytesGauge,
			v2.MemHashTableAllocateObjectsCounter,
			v2.MemHashTableInuseObjectsGauge,
		)
	}
	return allocator
}

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

// Package difftest drives Uint32HashMap with seeded random operations and
// cross-checks every answer against an ordered reference map.
package difftest

import (
	"context"
	"fmt"
	"time"

	"github.com/teuos/htui32/pkg/common/moerr"
)

const (
	defaultIterations  = 16
	defaultMinCapacity = 1
	defaultMaxCapacity = 8
	defaultMinActions  = 4
	defaultMaxActions  = 512
	defaultKeySpace    = 1024
)

// Range is an inclusive integer range.
type Range struct {
	Min int `toml:"min"`
	Max int `toml:"max"`
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

type Config struct {
	// Seed of the first run, run i of RunSeeds uses Seed+i.
	Seed uint64 `toml:"seed"`
	// Runs is the number of seeds RunSeeds executes.
	Runs int `toml:"runs"`
	// Iterations is how many fresh maps one run builds.
	Iterations int `toml:"iterations"`
	// InitialCapacity bounds the capacity each map is initialized with.
	InitialCapacity Range `toml:"initial-capacity"`
	// Actions bounds the number of operations applied to each map.
	Actions Range `toml:"actions"`
	// KeySpace keeps random keys below it so that they collide and repeat.
	// Key 0 is always part of the space.
	KeySpace uint32 `toml:"key-space"`
	// LoadFacMin and LoadFacMax are passed to Init, 0 selects the defaults.
	LoadFacMin uint8 `toml:"load-factor-min"`
	LoadFacMax uint8 `toml:"load-factor-max"`
	// MemoryLimit caps the bytes one map may hold, 0 means unlimited.
	// Allocation failures it causes are expected and checked.
	MemoryLimit uint64 `toml:"memory-limit"`
	// Parallelism is the worker pool size of RunSeeds.
	Parallelism int `toml:"parallelism"`
}

// Validate fills defaults and rejects inconsistent values.
func (c *Config) Validate(ctx context.Context) error {
	if c.Runs == 0 {
		c.Runs = 1
	}
	if c.Iterations == 0 {
		c.Iterations = defaultIterations
	}
	if c.InitialCapacity.Min == 0 {
		c.InitialCapacity.Min = defaultMinCapacity
	}
	if c.InitialCapacity.Max == 0 {
		c.InitialCapacity.Max = defaultMaxCapacity
	}
	if c.Actions.Min == 0 {
		c.Actions.Min = defaultMinActions
	}
	if c.Actions.Max == 0 {
		c.Actions.Max = defaultMaxActions
	}
	if c.KeySpace == 0 {
		c.KeySpace = defaultKeySpace
	}
	if c.Parallelism == 0 {
		c.Parallelism = 1
	}

	if c.Runs < 0 || c.Iterations < 0 || c.Parallelism < 0 {
		return moerr.NewBadConfig(ctx, "runs, iterations and parallelism must be positive")
	}
	if c.InitialCapacity.Min < 0 || c.InitialCapacity.Min > c.InitialCapacity.Max {
		return moerr.NewBadConfig(ctx, "initial capacity range %s", c.InitialCapacity)
	}
	if c.Actions.Min < 0 || c.Actions.Min > c.Actions.Max {
		return moerr.NewBadConfig(ctx, "actions range %s", c.Actions)
	}
	if c.LoadFacMin > 100 || c.LoadFacMax > 100 {
		return moerr.NewBadConfig(ctx, "load factors %d/%d", c.LoadFacMin, c.LoadFacMax)
	}
	return nil
}

// Op is one kind of action applied to the map.
type Op uint8

const (
	OpPut Op = iota
	OpPutExisting
	OpGet
	OpGetExisting
	OpDelete
	OpDeleteExisting
	numOps
)

var opNames = [...]string{
	OpPut:            "put",
	OpPutExisting:    "put-existing",
	OpGet:            "get",
	OpGetExisting:    "get-existing",
	OpDelete:         "delete",
	OpDeleteExisting: "delete-existing",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Report summarizes one run.
type Report struct {
	RunID      string
	Seed       uint64
	Iterations int
	Ops        [numOps]uint64
	// AllocFailures counts operations refused for lack of memory.
	AllocFailures uint64
	MaxCapacity   uint64
	MaxChain      int
	PeakBytes     uint64
	Duration      time.Duration
}

func (r *Report) TotalOps() (n uint64) {
	for _, c := range r.Ops {
		n += c
	}
	return
}

func (r *Report) String() string {
	return fmt.Sprintf("run %s seed %d: %d iterations, %d ops (%d refused), max capacity %d, max chain %d, peak %d bytes, %s",
		r.RunID, r.Seed, r.Iterations, r.TotalOps(), r.AllocFailures, r.MaxCapacity, r.MaxChain, r.PeakBytes, r.Duration)
}

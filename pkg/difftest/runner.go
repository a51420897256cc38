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
	"context"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
	"github.com/tidwall/btree"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/teuos/htui32/pkg/common/malloc"
	"github.com/teuos/htui32/pkg/common/moerr"
	"github.com/teuos/htui32/pkg/container/hashtable"
	"github.com/teuos/htui32/pkg/logutil"
	"github.com/teuos/htui32/pkg/logutil/logutil2"
	v2 "github.com/teuos/htui32/pkg/util/metric/v2"
)

type kvPair struct {
	key   uint32
	value uint32
}

func kvPairLess(a, b kvPair) bool {
	return a.key < b.key
}

// Runner executes one seeded run. Everything random derives from its own
// generator, so a run is replayed by its seed alone.
type Runner struct {
	cfg Config
	id  string
	rnd *rand.Rand

	// reference model and its key set, reset per iteration
	ref  *btree.BTreeG[kvPair]
	live *roaring.Bitmap

	iteration int
	step      int
	report    *Report
}

// NewRunner validates cfg and prepares a run for cfg.Seed.
func NewRunner(ctx context.Context, cfg Config) (*Runner, error) {
	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	return &Runner{
		cfg: cfg,
		id:  uuid.New().String(),
		rnd: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (r *Runner) ID() string {
	return r.id
}

// Run builds cfg.Iterations maps and returns the first disagreement with
// the reference model as an ErrInvalidState error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	ctx = logutil.WithRunID(ctx, r.id)
	start := time.Now()
	r.report = &Report{
		RunID: r.id,
		Seed:  r.cfg.Seed,
	}
	logutil2.Debug(ctx, "difftest run start", zap.Uint64("seed", r.cfg.Seed))

	for r.iteration = 0; r.iteration < r.cfg.Iterations; r.iteration++ {
		if err := ctx.Err(); err != nil {
			return r.report, err
		}
		if err := r.runIteration(ctx); err != nil {
			logutil2.Error(ctx, "difftest run failed",
				zap.Uint64("seed", r.cfg.Seed),
				zap.Int("iteration", r.iteration),
				zap.Int("step", r.step),
				zap.Error(err))
			return r.report, err
		}
		r.report.Iterations++
	}

	r.report.Duration = time.Since(start)
	v2.DiffTestRunDurationHistogram.Observe(r.report.Duration.Seconds())
	logutil2.Debug(ctx, "difftest run done", zap.String("report", r.report.String()))
	return r.report, nil
}

func (r *Runner) intn(rg Range) int {
	return rg.Min + r.rnd.Intn(rg.Max-rg.Min+1)
}

func (r *Runner) mismatch(ctx context.Context, format string, args ...any) error {
	return moerr.NewInvalidState(ctx, format, args...).WithDetail(
		"seed %d iteration %d step %d", r.cfg.Seed, r.iteration, r.step)
}

func (r *Runner) runIteration(ctx context.Context) error {
	limit := r.cfg.MemoryLimit
	if limit == 0 {
		limit = math.MaxUint64
	}
	allocator := malloc.NewLimitAllocator(
		malloc.NewFaultAllocator(malloc.NewGoAllocator(), malloc.FaultPointAllocate),
		limit,
	)

	capacity := uint64(r.intn(r.cfg.InitialCapacity))
	actions := r.intn(r.cfg.Actions)
	r.step = 0

	var ht hashtable.Uint32HashMap
	if err := ht.Init(capacity, r.cfg.LoadFacMin, r.cfg.LoadFacMax, allocator); err != nil {
		if moerr.IsMoErrCode(err, moerr.ErrOOM) {
			r.report.AllocFailures++
			return nil
		}
		return err
	}

	r.ref = btree.NewBTreeG(kvPairLess)
	r.live = roaring.New()

	err := r.runActions(ctx, &ht, actions)
	if err == nil {
		err = r.checkContents(ctx, &ht)
	}
	r.report.PeakBytes = max(r.report.PeakBytes, allocator.Peak())
	ht.Free()
	if err != nil {
		return err
	}
	if n := allocator.InUse(); n != 0 {
		return r.mismatch(ctx, "%d bytes still in use after free", n)
	}
	return nil
}

func (r *Runner) runActions(ctx context.Context, ht *hashtable.Uint32HashMap, actions int) error {
	for r.step = 0; r.step < actions; r.step++ {
		op := Op(r.rnd.Intn(int(numOps)))
		if err := r.apply(ctx, ht, op); err != nil {
			return err
		}
		r.report.Ops[op]++

		if got, want := ht.Cardinality(), uint64(r.ref.Len()); got != want {
			return r.mismatch(ctx, "after %s cardinality %d, reference %d", op, got, want)
		}
		if ht.Capacity() < ht.InitialCapacity() {
			return r.mismatch(ctx, "after %s capacity %d below initial %d", op, ht.Capacity(), ht.InitialCapacity())
		}
		r.report.MaxCapacity = max(r.report.MaxCapacity, ht.Capacity())
	}
	r.report.MaxChain = max(r.report.MaxChain, ht.MaxChainLength())
	return nil
}

// randomKey is uniform over the key space, so absent keys are common.
func (r *Runner) randomKey() uint32 {
	return r.rnd.Uint32() % r.cfg.KeySpace
}

// existingKey picks a live key, or a random one when the map is empty.
func (r *Runner) existingKey() uint32 {
	n := r.live.GetCardinality()
	if n == 0 {
		return r.randomKey()
	}
	key, err := r.live.Select(uint32(r.rnd.Uint64n(n)))
	if err != nil {
		return r.randomKey()
	}
	return key
}

func (r *Runner) apply(ctx context.Context, ht *hashtable.Uint32HashMap, op Op) error {
	switch op {
	case OpPut, OpPutExisting:
		key := r.randomKey()
		if op == OpPutExisting {
			key = r.existingKey()
		}
		return r.put(ctx, ht, key, r.rnd.Uint32())

	case OpGet, OpGetExisting:
		key := r.randomKey()
		if op == OpGetExisting {
			key = r.existingKey()
		}
		v2.DiffTestGetCounter.Inc()
		return r.checkGet(ctx, ht, key)

	case OpDelete, OpDeleteExisting:
		key := r.randomKey()
		if op == OpDeleteExisting {
			key = r.existingKey()
		}
		return r.delete(ctx, ht, key)
	}
	return moerr.NewInvalidInput(ctx, "unknown difftest op %s", op)
}

func (r *Runner) put(ctx context.Context, ht *hashtable.Uint32HashMap, key, value uint32) error {
	v2.DiffTestPutCounter.Inc()
	if err := ht.Put(key, value); err != nil {
		if !moerr.IsMoErrCode(err, moerr.ErrOOM) {
			return err
		}
		// a refused put must not have touched the key
		r.report.AllocFailures++
		return r.checkGet(ctx, ht, key)
	}
	r.ref.Set(kvPair{key: key, value: value})
	r.live.Add(key)
	return r.checkGet(ctx, ht, key)
}

func (r *Runner) delete(ctx context.Context, ht *hashtable.Uint32HashMap, key uint32) error {
	v2.DiffTestDeleteCounter.Inc()
	if err := ht.Delete(key); err != nil {
		if !moerr.IsMoErrCode(err, moerr.ErrOOM) {
			return err
		}
		r.report.AllocFailures++
		return r.checkGet(ctx, ht, key)
	}
	r.ref.Delete(kvPair{key: key})
	r.live.Remove(key)
	if ht.Contains(key) {
		return r.mismatch(ctx, "key %d present after delete", key)
	}
	return nil
}

func (r *Runner) checkGet(ctx context.Context, ht *hashtable.Uint32HashMap, key uint32) error {
	got, ok := ht.Get(key)
	want, wantOK := r.ref.Get(kvPair{key: key})
	if ok != wantOK {
		return r.mismatch(ctx, "get(%d) presence %v, reference %v", key, ok, wantOK)
	}
	if ok && got != want.value {
		return r.mismatch(ctx, "get(%d) = %d, reference %d", key, got, want.value)
	}
	return nil
}

// checkContents walks the map with its iterator and the reference in key
// order and requires both to hold the same pairs.
func (r *Runner) checkContents(ctx context.Context, ht *hashtable.Uint32HashMap) error {
	seen := roaring.New()
	var it hashtable.Uint32HashMapIterator
	it.Init(ht)
	for {
		key, value, err := it.Next()
		if err != nil {
			break
		}
		if !seen.CheckedAdd(key) {
			return r.mismatch(ctx, "iterator returned key %d twice", key)
		}
		want, ok := r.ref.Get(kvPair{key: key})
		if !ok {
			return r.mismatch(ctx, "iterator returned key %d absent from reference", key)
		}
		if want.value != value {
			return r.mismatch(ctx, "iterator returned (%d:%d), reference %d", key, value, want.value)
		}
	}
	if !seen.Equals(r.live) {
		return r.mismatch(ctx, "iterator visited %d keys, reference holds %d", seen.GetCardinality(), r.live.GetCardinality())
	}

	var err error
	r.ref.Scan(func(item kvPair) bool {
		if got, ok := ht.Get(item.key); !ok || got != item.value {
			err = r.mismatch(ctx, "reference pair (%d:%d) missing from map", item.key, item.value)
			return false
		}
		return true
	})
	return err
}

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
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/teuos/htui32/pkg/common/moerr"
	"github.com/teuos/htui32/pkg/logutil"
)

// Seeds returns cfg.Runs consecutive seeds starting at cfg.Seed.
func Seeds(cfg Config) []uint64 {
	seeds := make([]uint64, cfg.Runs)
	for i := range seeds {
		seeds[i] = cfg.Seed + uint64(i)
	}
	return seeds
}

// RunSeeds runs one independent Runner per seed on a pool of
// cfg.Parallelism workers. Reports come back in seed order. The first
// failing run cancels the ones not yet started and its error is returned.
func RunSeeds(ctx context.Context, cfg Config, seeds []uint64) ([]*Report, error) {
	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := ants.NewPool(cfg.Parallelism, ants.WithPanicHandler(func(v interface{}) {
		logutil.Error("difftest worker panic", zap.Any("panic", v))
	}))
	if err != nil {
		return nil, moerr.ConvertGoError(ctx, err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		reports  = make([]*Report, len(seeds))
	)
	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for i, seed := range seeds {
		i, seed := i, seed
		runCfg := cfg
		runCfg.Seed = seed

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					setErr(moerr.ConvertPanicError(ctx, v))
				}
			}()
			if ctx.Err() != nil {
				return
			}
			runner, err := NewRunner(ctx, runCfg)
			if err != nil {
				setErr(err)
				return
			}
			report, err := runner.Run(ctx)
			reports[i] = report
			if err != nil && ctx.Err() == nil {
				setErr(err)
			}
		})
		if err != nil {
			wg.Done()
			setErr(moerr.ConvertGoError(ctx, err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return reports, firstErr
	}
	if err := ctx.Err(); err != nil {
		return reports, err
	}
	return reports, nil
}

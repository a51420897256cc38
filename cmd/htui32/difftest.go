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
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teuos/htui32/pkg/common/malloc"
	"github.com/teuos/htui32/pkg/difftest"
	"github.com/teuos/htui32/pkg/logutil"
	"github.com/teuos/htui32/pkg/util/fault"
)

func difftestCommand(a *app) *cobra.Command {
	var (
		seed        uint64
		runs        int
		iterations  int
		parallelism int
		memoryLimit uint64
		faultFreq   string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "difftest",
		Short: "Run the randomized differential harness",
		Long:  "Apply random operations to fresh maps and compare every result with an ordered reference map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg.DiffTest

			flags := cmd.Flags()
			if flags.Changed("seed") {
				cfg.Seed = seed
			}
			if flags.Changed("runs") {
				cfg.Runs = runs
			}
			if flags.Changed("iterations") {
				cfg.Iterations = iterations
			}
			if flags.Changed("parallelism") {
				cfg.Parallelism = parallelism
			}
			if flags.Changed("memory-limit") {
				cfg.MemoryLimit = memoryLimit
			}
			if err := cfg.Validate(ctx); err != nil {
				return err
			}

			if !flags.Changed("metrics-addr") {
				metricsAddr = a.cfg.MetricsAddr
			}
			if metricsAddr != "" {
				_, stop, err := startMetricsServer(ctx, metricsAddr)
				if err != nil {
					return err
				}
				defer stop()
			}

			if faultFreq != "" {
				fault.EnableWithSeed(cfg.Seed)
				defer fault.Disable()
				if err := fault.AddFaultPoint(ctx, malloc.FaultPointAllocate, faultFreq, "RETURN", 0, ""); err != nil {
					return err
				}
			}

			reports, err := difftest.RunSeeds(ctx, cfg, difftest.Seeds(cfg))
			out := cmd.OutOrStdout()
			for _, report := range reports {
				if report != nil {
					fmt.Fprintln(out, report.String())
				}
			}
			if err != nil {
				logutil.Error("difftest failed", zap.Error(err))
				return err
			}
			fmt.Fprintf(out, "%d runs passed\n", len(reports))
			return nil
		},
	}

	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed of the first run")
	cmd.Flags().IntVar(&runs, "runs", 1, "number of runs, seeds are consecutive")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "maps built per run")
	cmd.Flags().IntVar(&parallelism, "parallelism", 1, "runs executed at once")
	cmd.Flags().Uint64Var(&memoryLimit, "memory-limit", 0, "bytes one map may hold, 0 is unlimited")
	cmd.Flags().StringVar(&faultFreq, "fault", "", "fail allocations at start:end:skip:prob")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address while running")
	return cmd
}

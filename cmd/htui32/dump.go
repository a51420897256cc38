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

	"github.com/teuos/htui32/pkg/container/hashtable"
)

func dumpCommand(a *app) *cobra.Command {
	var (
		capacity   uint64
		loadFacMin uint8
		loadFacMax uint8
	)

	cmd := &cobra.Command{
		Use:   "dump <op>...",
		Short: "Apply put/get/del operations and print the map",
		Long:  "Build a map from operations such as \"put 1 10 put 2 20 del 1 get 2\" and print its internal layout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ops, err := parseScript(ctx, args)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if !flags.Changed("capacity") {
				capacity = a.cfg.HashTable.Capacity
			}
			if !flags.Changed("load-factor-min") {
				loadFacMin = a.cfg.HashTable.LoadFactorMin
			}
			if !flags.Changed("load-factor-max") {
				loadFacMax = a.cfg.HashTable.LoadFactorMax
			}

			var ht hashtable.Uint32HashMap
			if err := ht.Init(capacity, loadFacMin, loadFacMax, a.cfg.NewAllocator()); err != nil {
				return err
			}
			defer ht.Free()

			out := cmd.OutOrStdout()
			if err := applyScript(&ht, ops, out); err != nil {
				return err
			}
			fmt.Fprint(out, ht.DebugString())
			return nil
		},
	}

	cmd.Flags().Uint64Var(&capacity, "capacity", 0, "initial capacity, defaults to hashtable.capacity")
	cmd.Flags().Uint8Var(&loadFacMin, "load-factor-min", 0, "shrink threshold in percent")
	cmd.Flags().Uint8Var(&loadFacMax, "load-factor-max", 0, "grow threshold in percent")
	return cmd
}

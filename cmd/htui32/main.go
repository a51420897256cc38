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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teuos/htui32/pkg/config"
	"github.com/teuos/htui32/pkg/logutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app carries the configuration shared by every subcommand.
type app struct {
	configFile string
	logLevel   string
	logFormat  string

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "htui32",
		Short: "uint32 hash map tools",
		Long:  "Run the differential harness, the fixed scenarios, or dump a map built from a script",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&a.configFile, "cfg", "", "toml configuration file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level")
	cmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "override log.format")

	cmd.AddCommand(
		difftestCommand(a),
		scenarioCommand(a),
		dumpCommand(a),
	)
	return cmd
}

func (a *app) setup(ctx context.Context) error {
	var err error
	if a.configFile == "" {
		a.cfg = config.NewConfig()
	} else if a.cfg, err = config.ParseConfigFromFile(ctx, a.configFile); err != nil {
		return err
	}

	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		a.cfg.Log.Format = a.logFormat
	}
	if err = a.cfg.Validate(ctx); err != nil {
		return err
	}

	setupLogger(a.cfg)
	logutil.Debug("configuration loaded")
	return nil
}

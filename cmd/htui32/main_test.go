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
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teuos/htui32/pkg/common/malloc"
	"github.com/teuos/htui32/pkg/common/moerr"
)

func execute(t *testing.T, args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseScript(t *testing.T) {
	ctx := context.Background()
	ops, err := parseScript(ctx, []string{"put", "1", "10", "GET", "0x10", "del", "0b11"})
	require.NoError(t, err)
	require.Equal(t, []scriptOp{
		{kind: opPut, key: 1, value: 10},
		{kind: opGet, key: 16},
		{kind: opDel, key: 3},
	}, ops)
	require.Equal(t, "put 1 10", ops[0].String())
	require.Equal(t, "get 16", ops[1].String())
	require.Equal(t, "del 3", ops[2].String())

	for _, tokens := range [][]string{
		{"put", "1"},
		{"get"},
		{"swap", "1", "2"},
		{"put", "1", "4294967296"},
		{"del", "-1"},
	} {
		_, err := parseScript(ctx, tokens)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput), "%v", tokens)
	}
}

func TestScenarios(t *testing.T) {
	for _, s := range scenarios {
		t.Run(s.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, s.run(context.Background(), malloc.NewGoAllocator(), &out))
			require.Contains(t, out.String(), "== "+s.name)
		})
	}
}

func TestScenarioCheckpointMismatch(t *testing.T) {
	s := scenario{
		name:        "wrong",
		capacity:    4,
		script:      "put 1 1",
		checkpoints: []checkpoint{{after: 1, size: 2, capacity: 4}},
	}
	err := s.run(context.Background(), malloc.NewGoAllocator(), io.Discard)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))
	require.Equal(t, "scenario wrong after 1 ops", err.(*moerr.Error).Detail())
}

func TestScenarioCommand(t *testing.T) {
	out, err := execute(t, "scenario")
	require.NoError(t, err)
	assert.Contains(t, out, "4 scenarios passed")

	out, err = execute(t, "scenario", "zero-key")
	require.NoError(t, err)
	assert.Contains(t, out, "[zero]: (0:9)")
	assert.Contains(t, out, "1 scenarios passed")

	_, err = execute(t, "scenario", "missing")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))
}

func TestDumpCommand(t *testing.T) {
	out, err := execute(t, "dump", "--capacity", "4",
		"put", "1", "10", "put", "0", "5", "get", "1", "get", "9", "del", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "get 1: 10\n")
	assert.Contains(t, out, "get 9: absent\n")
	assert.Contains(t, out, "size: 1\ncapacity: 4\n[zero]: (0:5)\n")

	_, err = execute(t, "dump", "put", "1")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	_, err = execute(t, "dump", "--load-factor-max", "101", "put", "1", "1")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
}

func TestConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "htui32.toml")
	require.NoError(t, os.WriteFile(file, []byte("[hashtable]\ncapacity = 32\n"), 0o644))

	out, err := execute(t, "--cfg", file, "dump", "put", "7", "70")
	require.NoError(t, err)
	assert.Contains(t, out, "capacity: 32\n")

	_, err = execute(t, "--cfg", filepath.Join(t.TempDir(), "absent.toml"), "scenario")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrFileNotFound))

	_, err = execute(t, "--log-format", "xml", "scenario")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
}

func TestDifftestCommand(t *testing.T) {
	out, err := execute(t, "difftest", "--seed", "3", "--runs", "3", "--parallelism", "2", "--iterations", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "3 runs passed")
	assert.Equal(t, 4, strings.Count(out, "\n"))

	out, err = execute(t, "difftest", "--seed", "5", "--iterations", "4", "--fault", "::4:")
	require.NoError(t, err)
	assert.Contains(t, out, "1 runs passed")

	_, err = execute(t, "difftest", "--fault", "bad")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))
}

func TestMetricsServer(t *testing.T) {
	addr, stop, err := startMetricsServer(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	defer stop()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "htui32_hashtable_rehash_total")
	assert.Contains(t, string(body), "htui32_mem_inuse_bytes")
}

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
	"strconv"
	"strings"

	"github.com/teuos/htui32/pkg/common/moerr"
	"github.com/teuos/htui32/pkg/container/hashtable"
)

type opKind uint8

const (
	opPut opKind = iota
	opGet
	opDel
)

// scriptOp is one parsed map operation.
type scriptOp struct {
	kind  opKind
	key   uint32
	value uint32
}

func (op scriptOp) String() string {
	switch op.kind {
	case opPut:
		return fmt.Sprintf("put %d %d", op.key, op.value)
	case opGet:
		return fmt.Sprintf("get %d", op.key)
	default:
		return fmt.Sprintf("del %d", op.key)
	}
}

// parseScript reads "put k v", "get k" and "del k" from a flat token list.
// Numbers may carry a 0x or 0b prefix.
func parseScript(ctx context.Context, tokens []string) ([]scriptOp, error) {
	var ops []scriptOp
	for i := 0; i < len(tokens); {
		var op scriptOp
		var operands int
		switch strings.ToLower(tokens[i]) {
		case "put":
			op.kind, operands = opPut, 2
		case "get":
			op.kind, operands = opGet, 1
		case "del", "delete":
			op.kind, operands = opDel, 1
		default:
			return nil, moerr.NewInvalidInput(ctx, "unknown operation %q at %d", tokens[i], i)
		}
		if i+operands >= len(tokens) {
			return nil, moerr.NewInvalidInput(ctx, "%s at %d needs %d operands", tokens[i], i, operands)
		}

		key, err := parseUint32(ctx, tokens[i+1])
		if err != nil {
			return nil, err
		}
		op.key = key
		if operands == 2 {
			if op.value, err = parseUint32(ctx, tokens[i+2]); err != nil {
				return nil, err
			}
		}
		ops = append(ops, op)
		i += operands + 1
	}
	return ops, nil
}

func parseUint32(ctx context.Context, s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, moerr.NewInvalidInput(ctx, "bad uint32 %q", s)
	}
	return uint32(v), nil
}

// applyScript runs ops against ht and writes the result of every get.
func applyScript(ht *hashtable.Uint32HashMap, ops []scriptOp, out io.Writer) error {
	for _, op := range ops {
		switch op.kind {
		case opPut:
			if err := ht.Put(op.key, op.value); err != nil {
				return err
			}
		case opGet:
			if v, ok := ht.Get(op.key); ok {
				fmt.Fprintf(out, "get %d: %d\n", op.key, v)
			} else {
				fmt.Fprintf(out, "get %d: absent\n", op.key)
			}
		case opDel:
			if err := ht.Delete(op.key); err != nil {
				return err
			}
		}
	}
	return nil
}

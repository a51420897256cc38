// Copyright 2022 Matrix Origin
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

// Package fault injects failures at named points. A point fires on a
// window of its hits, every skip-th hit, with an optional probability.
package fault

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/teuos/htui32/pkg/common/moerr"
	"github.com/teuos/htui32/pkg/logutil"
)

const (
	STOP = iota
	ADD
	REMOVE
	TRIGGER
)

const (
	// RETURN only reports that the point fired.
	RETURN = iota
	// ECHO also hands iarg and sarg back to the caller.
	ECHO
)

// faultEntry is both a registered point and a request to the fault map.
type faultEntry struct {
	cmd              int
	name             string
	cnt              int // hits so far
	start, end, skip int
	prob             float64
	action           int
	iarg             int64
	sarg             string
}

// fires reports whether the current hit is inside the window.
func (e *faultEntry) fires(rnd *rand.Rand) bool {
	if e.cnt < e.start || e.cnt > e.end || (e.cnt-e.start)%e.skip != 0 {
		return false
	}
	return e.prob == 1 || rnd.Float64() < e.prob
}

func (e *faultEntry) result() (int64, string) {
	if e.action == ECHO {
		return e.iarg, e.sarg
	}
	return 0, ""
}

// faultMap owns every point. Requests are served one at a time by run.
type faultMap struct {
	faultPoints map[string]*faultEntry
	chIn        chan *faultEntry
	chOut       chan *faultEntry
	rnd         *rand.Rand
}

var enabled atomic.Value
var gfm *faultMap

func (fm *faultMap) run() {
	for {
		e := <-fm.chIn
		switch e.cmd {
		case STOP:
			return
		case ADD:
			if _, ok := fm.faultPoints[e.name]; ok {
				fm.chOut <- nil
			} else {
				fm.faultPoints[e.name] = e
				fm.chOut <- e
			}
		case REMOVE:
			v := fm.faultPoints[e.name]
			delete(fm.faultPoints, e.name)
			fm.chOut <- v
		case TRIGGER:
			var out *faultEntry
			if v, ok := fm.faultPoints[e.name]; ok {
				v.cnt++
				if v.fires(fm.rnd) {
					out = v
				}
			}
			fm.chOut <- out
		default:
			fm.chOut <- nil
		}
	}
}

func (fm *faultMap) call(e *faultEntry) *faultEntry {
	fm.chIn <- e
	return <-fm.chOut
}

func startFaultMap(seed uint64) {
	gfm = &faultMap{
		faultPoints: make(map[string]*faultEntry),
		chIn:        make(chan *faultEntry),
		chOut:       make(chan *faultEntry),
		rnd:         rand.New(rand.NewSource(seed)),
	}
	go gfm.run()
}

func stopFaultMap() {
	gfm.chIn <- &faultEntry{cmd: STOP}
	gfm = nil
}

// Enable fault injection. Probabilistic fault points draw from a generator
// seeded with the current time.
func Enable() {
	EnableWithSeed(uint64(time.Now().UnixNano()))
}

// EnableWithSeed enables fault injection with a fixed seed, so that a run
// with probabilistic fault points can be replayed.
func EnableWithSeed(seed uint64) {
	if !IsEnabled() {
		startFaultMap(seed)
		enabled.Store(gfm)
		logutil.Info("fault injection enabled", zap.Uint64("seed", seed))
	}
}

// Disable fault injection and drop every point.
func Disable() {
	if IsEnabled() {
		stopFaultMap()
		enabled.Store(gfm)
		logutil.Info("fault injection disabled")
	}
}

func IsEnabled() bool {
	ld := enabled.Load()
	if ld == nil {
		return false
	}
	return ld.(*faultMap) != nil
}

// TriggerFault counts a hit on name and reports whether the point fired.
func TriggerFault(name string) (iret int64, sret string, exist bool) {
	if !IsEnabled() {
		return
	}
	out := gfm.call(&faultEntry{cmd: TRIGGER, name: name})
	if out == nil {
		return
	}
	iret, sret = out.result()
	return iret, sret, true
}

// AddFaultPoint registers name. freq is start:end:skip:prob, an empty field
// takes its default (1, unbounded, 1, always). action is RETURN or ECHO.
func AddFaultPoint(ctx context.Context, name string, freq string, action string, iarg int64, sarg string) error {
	if !IsEnabled() {
		return moerr.NewInternalError(ctx, "add fault point not enabled")
	}

	e, err := parseFreq(ctx, freq)
	if err != nil {
		return err
	}
	e.cmd, e.name, e.iarg, e.sarg = ADD, name, iarg, sarg

	switch strings.ToUpper(action) {
	case "RETURN":
		e.action = RETURN
	case "ECHO":
		e.action = ECHO
	default:
		return moerr.NewInvalidArg(ctx, "fault action", action)
	}

	if gfm.call(e) == nil {
		return moerr.NewInternalError(ctx, "add fault injection point failed.")
	}
	logutil.Debug("fault point added",
		zap.String("name", name),
		zap.String("freq", freq),
		zap.String("action", action))
	return nil
}

func parseFreq(ctx context.Context, freq string) (*faultEntry, error) {
	fields := strings.Split(freq, ":")
	if len(fields) != 4 {
		return nil, moerr.NewInvalidArg(ctx, "fault point freq", freq)
	}

	e := &faultEntry{start: 1, end: math.MaxInt, skip: 1, prob: 1}
	var err error
	if fields[0] != "" {
		if e.start, err = strconv.Atoi(fields[0]); err != nil {
			return nil, moerr.NewInvalidArg(ctx, "fault point freq", freq)
		}
	}
	if fields[1] != "" {
		if e.end, err = strconv.Atoi(fields[1]); err != nil || e.end < e.start {
			return nil, moerr.NewInvalidArg(ctx, "fault point freq", freq)
		}
	}
	if fields[2] != "" {
		if e.skip, err = strconv.Atoi(fields[2]); err != nil || e.skip <= 0 {
			return nil, moerr.NewInvalidArg(ctx, "fault point freq", freq)
		}
	}
	if fields[3] != "" {
		if e.prob, err = strconv.ParseFloat(fields[3], 64); err != nil || e.prob <= 0 || e.prob >= 1 {
			return nil, moerr.NewInvalidArg(ctx, "fault point freq", freq)
		}
	}
	return e, nil
}

func RemoveFaultPoint(ctx context.Context, name string) error {
	if !IsEnabled() {
		return moerr.NewInternalError(ctx, "remove fault injection point not enabled.")
	}
	if gfm.call(&faultEntry{cmd: REMOVE, name: name}) == nil {
		return moerr.NewInvalidInput(ctx, "invalid injection point %s", name)
	}
	return nil
}

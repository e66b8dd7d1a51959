/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package driver

import (
	"fmt"

	"github.com/cloudwego/unroll/internal/opts"
	"github.com/cloudwego/unroll/internal/ssa"
	"github.com/cloudwego/unroll/internal/target"
	"github.com/davecgh/go-spew/spew"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("unroll.driver")

// Driver runs the unroller over the loops of functions. It keeps no state
// between loops besides its configuration.
type Driver struct {
	Options opts.Options
	Oracle  ssa.TripOracle
	Cost    ssa.CostModel
	host    int
}

// New creates a driver, the host threshold is detected once if enabled.
func New(options opts.Options) *Driver {
	ret := &Driver{Options: options}
	if options.HostThreshold {
		ret.host = target.HostThreshold()
	}
	return ret
}

// Threshold is the effective size limit, 0 for unconstrained.
func (self *Driver) Threshold() uint {
	return uint(self.Options.Threshold(self.host))
}

func (self *Driver) unroll(fn *ssa.Func, l *ssa.Loop, dt *ssa.DominatorTree) (*ssa.UnrollResult, error) {
	return ssa.UnrollLoop(fn, l, ssa.UnrollOptions{
		Count:     uint(self.Options.UnrollCount),
		Threshold: self.Threshold(),
		Oracle:    self.Oracle,
		Cost:      self.Cost,
		DomTree:   dt,
	})
}

// RunOnLoop makes one attempt at the loop l of fn. The dominator tree dt is
// updated along with the function, it may be nil. Internal errors of the
// unroller panic.
func (self *Driver) RunOnLoop(fn *ssa.Func, l *ssa.Loop, dt *ssa.DominatorTree) *Report {
	rp := &Report{
		Func:      fn.Name,
		Header:    l.Header.Label(),
		Depth:     l.Depth,
		Path:      []State{Scan},
		Count:     uint(self.Options.UnrollCount),
		Threshold: self.Threshold(),
	}

	/* update the counters on exit */
	defer count(rp)
	lg := commonlog.NewKeyValueLogger(log, "func", fn.Name, "loop", rp.Header)

	/* check for the target function */
	if !self.Options.CanUnroll(fn.Name) {
		rp.enter(Skip)
		lg.Debug("not the target function")
		return rp
	}

	/* analyze and transform */
	rp.enter(Analyze)
	rp.Result, rp.Err = self.unroll(fn, l, dt)

	/* dump the analysis result if needed */
	if lg.AllowLevel(commonlog.Debug) {
		lg.Debugf("analysis result: %s", spew.Sdump(rp.Result))
	}

	/* the loop is rejected */
	if rp.Err != nil {
		rp.enter(Fail)
		rp.enter(Skip)
		lg.Info("loop rejected", "reason", rp.Err.Error())
		return rp
	}

	/* check the result if needed */
	rp.enter(Apply)
	if self.Options.Verify {
		verify(fn, dt)
	}

	/* the loop is unrolled */
	rp.enter(Done)
	lg.Info("loop unrolled", "count", rp.Result.Count, "complete", rp.Result.Complete, "clones", rp.Result.Clones)
	return rp
}

func verify(fn *ssa.Func, dt *ssa.DominatorTree) {
	if err := ssa.Verify(fn); err != nil {
		panic(fmt.Sprintf("unroll: malformed IR after unrolling: %v", err))
	}

	/* the dominator tree must be up to date */
	if dt != nil {
		if diff := dt.Diff(ssa.BuildDominatorTree(fn.Entry())); diff != "" {
			panic("unroll: dominator tree is out of date:\n" + diff)
		}
	}
}

// RunOnFunc tries every loop of fn, innermost first. The loop nest is found
// again after each transformation, loops that no longer exist are not
// visited.
func (self *Driver) RunOnFunc(fn *ssa.Func) []*Report {
	var ret []*Report
	nest := ssa.FindLoops(fn, nil)

	/* irreducible regions are never unrolled */
	for _, bbs := range nest.Irreducible {
		log.Warningf("%s: irreducible region at %s (%d blocks) is ignored", fn.Name, bbs[0], len(bbs))
	}

	/* the headers of all the loops, innermost first */
	hdrs := make([]*ssa.BasicBlock, 0, len(nest.Loops))
	for _, l := range nest.Loops {
		hdrs = append(hdrs, l.Header)
	}

	/* visit every loop */
	for _, h := range hdrs {
		var l *ssa.Loop
		var rp *Report

		/* the loop may have been dissolved by an earlier transformation */
		if !fn.Contains(h) {
			continue
		} else if l = nest.LoopOf(h); l == nil {
			continue
		}

		/* try to unroll it */
		rp = self.RunOnLoop(fn, l, nest.DomTree)
		ret = append(ret, rp)

		/* find the loop nest again, the dominator tree is kept up to date */
		if rp.Unrolled() {
			nest = ssa.FindLoops(fn, nest.DomTree)
		}
	}

	/* all done */
	log.Noticef("%s: %d loop(s) visited", fn.Name, len(ret))
	return ret
}

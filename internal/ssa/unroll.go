/*
 * Copyright 2022 ByteDance Inc.
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

package ssa

import (
    `fmt`
)

// UnrollOptions controls UnrollLoop. Count is the requested unroll factor
// (0 means the trip count), Threshold is the size limit of the unrolled body
// (0 means unlimited). Oracle and Cost default to InductionOracle and
// DefaultCost. DomTree, when given, is kept up to date.
type UnrollOptions struct {
    Count     uint
    Threshold uint
    Oracle    TripOracle
    Cost      CostModel
    DomTree   *DominatorTree
}

// UnrollResult describes what UnrollLoop found and did. The analysis fields
// are filled in as far as the analysis went, even when the loop is rejected.
type UnrollResult struct {
    TripCount     uint
    TripMultiple  uint
    Size          uint
    Count         uint
    Complete      bool
    BreakoutTrip  uint
    GuardMultiple uint
    Clones        int
    Folded        int
    Removed       int
}

// TripsPerBranch is the number of copies between two exit tests of a partial
// unroll with unknown trip count, 0 if not applicable.
func (self *UnrollResult) TripsPerBranch() uint {
    if self.Complete || self.TripCount != 0 || self.GuardMultiple <= 1 {
        return 0
    } else {
        return self.GuardMultiple
    }
}

// UnrollLoop unrolls l by the requested factor. Every check happens before
// the first mutation, so the function is left untouched when an error is
// returned.
func UnrollLoop(fn *Func, l *Loop, opts UnrollOptions) (*UnrollResult, error) {
    ret := new(UnrollResult)
    cost := opts.Cost
    oracle := opts.Oracle

    /* default analyses */
    if cost == nil { cost = DefaultCost }
    if oracle == nil { oracle = InductionOracle{} }

    /* the latch must be the exiting block */
    tc, tm, err := AnalyzeTrip(l, oracle)
    if err != nil {
        return ret, err
    }

    /* check for the loop shape */
    ret.TripCount, ret.TripMultiple = tc, tm
    if err = checkLoopShape(fn, l); err != nil {
        return ret, err
    }

    /* size of the loop body */
    count := opts.Count
    ret.Size = EstimateSize(l, cost)

    /* default to the trip count if not specified */
    if count == 0 {
        if tc == 0 {
            return ret, UnrollError { Kind: UnknownTripCount, Note: "cannot choose an unroll count" }
        } else {
            count = tc
        }
    }

    /* never unroll more than the trip count */
    if tc != 0 && count > tc {
        count = tc
    }

    /* loops that execute only once are always unrolled */
    ret.Count = count
    ret.Complete = count == tc

    /* check for the size limit */
    if opts.Threshold != 0 && tc != 1 {
        if sz := uint64(ret.Size) * uint64(count); sz > uint64(opts.Threshold) {
            return ret, UnrollError { Kind: TooLarge, Note: fmt.Sprintf("%d > %d", sz, opts.Threshold) }
        }
    }

    /* unrolling by 1 without removing the loop does nothing */
    if count == 1 && !ret.Complete {
        return ret, UnrollError { Kind: NotUnrollable, Note: "unroll count is 1" }
    }

    /* where the exit tests must stay */
    if tc != 0 {
        ret.BreakoutTrip = tc % count
        ret.GuardMultiple = 0
    } else {
        ret.GuardMultiple = gcd(count, tm)
        ret.BreakoutTrip = ret.GuardMultiple
    }

    /* everything checked, now do the transformation */
    newUnroller(fn, l, opts.DomTree, ret).unroll()
    return ret, nil
}

func checkLoopShape(fn *Func, l *Loop) error {
    if l.Preheader == nil {
        return UnrollError { Kind: NotUnrollable, Note: "loop does not have a preheader" }
    } else if l.Exit == nil {
        return UnrollError { Kind: NotUnrollable, Note: "loop does not have a unique exit block" }
    }

    /* the latch must be the only exiting block */
    if bbs := l.Exiting(); len(bbs) != 1 || bbs[0] != l.Latch {
        return UnrollError { Kind: NotUnrollable, Note: "loop is not exited from the latch only" }
    }

    /* the loop must be in LCSSA form, values escape through exit Phi nodes only */
    use := fn.Uses()
    for _, bb := range l.Blocks {
        var err error
        bb.Instructions(func(ins IrNode) {
            if d, ok := ins.(IrDefinitions); ok && err == nil {
                for _, r := range d.Definitions() {
                    if !isClosedUse(l, use[*r]) {
                        err = UnrollError { Kind: NotUnrollable, Note: fmt.Sprintf("value %s escapes the loop", fn.valueName(*r)) }
                        break
                    }
                }
            }
        })

        /* found a violation */
        if err != nil {
            return err
        }
    }

    /* all checked */
    return nil
}

func isClosedUse(l *Loop, use []Use) bool {
    for _, u := range use {
        if l.Contains(u.Block) {
            continue
        }

        /* must be used by a Phi node of the exit block */
        phi, ok := u.Node.(*IrPhi)
        if !ok || u.Block != l.Exit {
            return false
        }

        /* coming from inside the loop */
        for bb, v := range phi.V {
            if v == u.Slot && !l.Contains(bb) {
                return false
            }
        }
    }
    return true
}

type _Unroller struct {
    fn      *Func
    dt      *DominatorTree
    res     *UnrollResult
    loop    *Loop
    last    *ValueMap
    phis    []*IrPhi
    header  *BasicBlock
    latch   *BasicBlock
    exit    *BasicBlock
    headers []*BasicBlock
    latches []*BasicBlock
}

func newUnroller(fn *Func, l *Loop, dt *DominatorTree, res *UnrollResult) *_Unroller {
    return &_Unroller {
        fn      : fn,
        dt      : dt,
        res     : res,
        loop    : l,
        last    : NewValueMap(),
        phis    : append([]*IrPhi(nil), l.Header.Phi...),
        header  : l.Header,
        latch   : l.Latch,
        exit    : l.Exit,
        headers : []*BasicBlock { l.Header },
        latches : []*BasicBlock { l.Latch },
    }
}

func (self *_Unroller) unroll() {
    bbs := append([]*BasicBlock(nil), self.loop.Blocks...)
    pos := bbs[len(bbs) - 1]

    /* make copies of the loop body */
    for it := uint(1); it < self.res.Count; it++ {
        pos = self.cloneIteration(it, bbs, pos)
    }

    /* rewrite the header Phi nodes */
    if self.res.Complete {
        self.removeHeaderPhis()
    } else {
        self.rekeyHeaderPhis()
    }

    /* wire the copies together, then remove the dead code */
    self.stitch()
    self.res.Removed = EliminateDeadCode(self.fn, self.loopBlocks())
}

func (self *_Unroller) cloneIteration(it uint, bbs []*BasicBlock, pos *BasicBlock) *BasicBlock {
    vm := NewValueMap()
    nbs := make([]*BasicBlock, 0, len(bbs))
    trs := make([]IrTerminator, 0, len(bbs))
    suffix := fmt.Sprintf(".%d", it)

    /* clone every block, in RPO */
    for _, bb := range bbs {
        nb, tr := CloneBlock(self.fn, bb, vm, suffix, bb != self.header)
        self.fn.InsertBlockAfter(pos, nb)

        /* header Phi nodes take the values of the previous iteration */
        if bb == self.header {
            for _, p := range self.phis {
                vm.Values[p.R] = self.last.Value(p.Incoming(self.latch))
            }
        }

        /* the new header is dominated by the previous latch, others follow the original tree */
        if self.dt != nil {
            if bb == self.header {
                self.dt.AddBlock(nb, self.last.Block(self.latch))
            } else {
                self.dt.AddBlock(nb, vm.Block(self.dt.IDom(bb)))
            }
        }

        /* remember the new headers and latches */
        if bb == self.header { self.headers = append(self.headers, nb) }
        if bb == self.latch  { self.latches = append(self.latches, nb) }

        /* update the last value map */
        self.last.Merge(vm)
        self.loop.addBlock(nb)

        /* move to the next block */
        pos = nb
        nbs = append(nbs, nb)
        trs = append(trs, tr)
    }

    /* remap the operands to the newest definitions */
    for i, nb := range nbs {
        nb.Instructions(self.last.Remap)
        self.last.Remap(trs[i])
        nb.SetTerm(trs[i])

        /* new edges to the exit need values in the exit Phi nodes */
        for _, p := range nb.Successors() {
            if !self.loop.Contains(p) {
                for _, phi := range p.Phi {
                    phi.SetIncoming(nb, self.last.Value(phi.Incoming(bbs[i])))
                }
            }
        }
    }

    /* count the new blocks */
    self.res.Clones += len(nbs)
    return pos
}

func (self *_Unroller) removeHeaderPhis() {
    for _, p := range self.phis {
        self.fn.ReplaceAllUses(p.R, p.Incoming(self.loop.Preheader))
        self.header.removePhi(p)
    }
}

func (self *_Unroller) rekeyHeaderPhis() {
    nb := len(self.latches)
    bb := self.latches[nb - 1]

    /* the back edge now comes from the last copy */
    for _, p := range self.phis {
        if v, ok := p.RemoveIncoming(self.latch); ok {
            p.SetIncoming(bb, self.last.Value(v))
        }
    }
}

func (self *_Unroller) stitch() {
    var folds []*BasicBlock

    /* redirect every latch */
    for i, bb := range self.latches {
        j := (i + 1) % len(self.latches)
        dest := self.headers[j]
        cond := true

        /* the last copy of a complete unroll leaves the loop */
        if self.res.Complete && j == 0 {
            dest = self.exit
            cond = false
        }

        /* known trip counts or trip multiples make most exit tests unnecessary */
        if uint(j) != self.res.BreakoutTrip && (self.res.GuardMultiple == 0 || uint(j) % self.res.GuardMultiple != 0) {
            cond = false
        }

        /* keep the exit test, but continue with the next copy */
        if cond {
            self.continueTo(bb, dest)
            continue
        }

        /* replace with an unconditional jump */
        bb.SetTerm(&IrJump { To: dest })
        folds = append(folds, dest)

        /* no more incoming values from this latch */
        if dest != self.exit {
            self.exit.RemoveIncoming(bb)
        }
    }

    /* the exit block may have lost some predecessors */
    if self.dt != nil && self.dt.Contains(self.exit) {
        self.dt.SetIDom(self.exit, self.nearestCommonDominator(self.exit.Pred))
    }

    /* merge the straight-line chains */
    for _, dest := range folds {
        if bb := FoldBlockIntoPredecessor(self.fn, dest, self.loop, self.dt); bb != nil {
            self.res.Folded++
            self.replace(dest, bb)
        }
    }

    /* update the loop shape */
    if !self.res.Complete {
        self.loop.Latch = self.latches[len(self.latches) - 1]
    }
}

func (self *_Unroller) continueTo(bb *BasicBlock, dest *BasicBlock) {
    br := bb.Term.(*IrBranch).clone().(*IrBranch)

    /* replace the side that stays in the loop */
    if br.Then == self.exit {
        br.Else = dest
    } else {
        br.Then = dest
    }

    /* install the new terminator */
    bb.SetTerm(br)
}

func (self *_Unroller) replace(old *BasicBlock, bb *BasicBlock) {
    for i, v := range self.latches { if v == old { self.latches[i] = bb } }
    for i, v := range self.headers { if v == old { self.headers[i] = bb } }
}

func (self *_Unroller) nearestCommonDominator(bbs []*BasicBlock) *BasicBlock {
    ret := bbs[0]
    for _, bb := range bbs[1:] { ret = self.dt.NearestCommonDominator(ret, bb) }
    return ret
}

func (self *_Unroller) loopBlocks() (r []*BasicBlock) {
    for _, bb := range self.fn.ReversePostOrder() {
        if self.loop.Contains(bb) {
            r = append(r, bb)
        }
    }
    return
}

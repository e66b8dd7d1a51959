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

// MaxTripCount is the largest trip count the induction oracle will compute,
// longer loops are reported as unknown.
const MaxTripCount = 1 << 20

// TripOracle answers how many times the exiting block of a loop executes.
// TripCount is 0 when unknown, TripMultiple is a known divisor of the trip
// count (1 when nothing is known).
type TripOracle interface {
    TripCount(l *Loop, exiting *BasicBlock) uint
    TripMultiple(l *Loop, exiting *BasicBlock) uint
}

// FixedTrip is an oracle that always gives the same answer.
type FixedTrip struct {
    Count    uint
    Multiple uint
}

func (self FixedTrip) TripCount(_ *Loop, _ *BasicBlock) uint {
    return self.Count
}

func (self FixedTrip) TripMultiple(_ *Loop, _ *BasicBlock) uint {
    if self.Count != 0 {
        return self.Count
    } else if self.Multiple == 0 {
        return 1
    } else {
        return self.Multiple
    }
}

// InductionOracle recognizes loops controlled by a single induction variable
// with constant start and step.
type InductionOracle struct{}

type _ExitTest struct {
    phi   *IrPhi
    next  bool
    cont  bool
    start int64
    step  int64
    bound Value
    op    IrBinaryOp
}

func (self InductionOracle) TripCount(l *Loop, exiting *BasicBlock) uint {
    var ok bool
    var cc *IrConstInt
    var et *_ExitTest
    var defs map[Value]IrNode

    /* find the exit test, the bound must be a constant */
    if et, defs, ok = self.exitTest(l, exiting); !ok {
        return 0
    } else if cc, ok = defs[et.bound].(*IrConstInt); !ok {
        return 0
    }

    /* the value being compared at the first trip */
    v := et.start
    if et.next {
        v += et.step
    }

    /* simulate the loop until it exits */
    for n := uint(1); n <= MaxTripCount; n++ {
        if r, _ := et.op.Eval(v, cc.V); (r != 0) != et.cont {
            return n
        } else {
            v += et.step
        }
    }

    /* too many trips */
    return 0
}

func (self InductionOracle) TripMultiple(l *Loop, exiting *BasicBlock) uint {
    if n := self.TripCount(l, exiting); n != 0 {
        return n
    }

    /* must be the canonical form `i.next != bound` counting from zero */
    et, defs, ok := self.exitTest(l, exiting)
    if !ok || et.start != 0 || et.step != 1 || !et.next {
        return 1
    }

    /* also accept the inverted form `i.next == bound` taking the exit */
    if !(et.op == IrCmpNe && et.cont) && !(et.op == IrCmpEq && !et.cont) {
        return 1
    }

    /* the bound must be a multiple of some constant */
    if n := boundMultiple(defs, et.bound); n == 0 {
        return 1
    } else {
        return n
    }
}

func boundMultiple(defs map[Value]IrNode, bound Value) uint {
    var ok bool
    var ex *IrBinaryExpr

    /* must be an expression */
    if ex, ok = defs[bound].(*IrBinaryExpr); !ok {
        return 0
    }

    /* n * C or C * n */
    if ex.Op == IrOpMul {
        for _, v := range []Value { ex.X, ex.Y } {
            if cc, ok := defs[v].(*IrConstInt); ok && cc.V > 0 && cc.V <= MaxTripCount {
                return uint(cc.V)
            }
        }
    }

    /* n << k */
    if ex.Op == IrOpShl {
        if cc, ok := defs[ex.Y].(*IrConstInt); ok && cc.V >= 0 && cc.V <= 20 {
            return 1 << uint(cc.V)
        }
    }

    /* not a multiple of anything */
    return 0
}

func (self InductionOracle) exitTest(l *Loop, exiting *BasicBlock) (*_ExitTest, map[Value]IrNode, bool) {
    var ok bool
    var br *IrBranch
    var ex *IrBinaryExpr

    /* the loop must be well-formed */
    if l.Func == nil || l.Preheader == nil || l.Latch == nil {
        return nil, nil, false
    }

    /* the exiting block must end with a conditional branch */
    if br, ok = exiting.Term.(*IrBranch); !ok {
        return nil, nil, false
    }

    /* the condition must be a comparison */
    defs := l.Func.DefinitionNodes()
    if ex, ok = defs[br.Cond].(*IrBinaryExpr); !ok || !ex.Op.IsCompare() {
        return nil, nil, false
    }

    /* the induction variable may appear on either side */
    et := &_ExitTest { cont: l.Contains(br.Then) }
    if self.matchIV(l, defs, ex.X, et) {
        et.op, et.bound = ex.Op, ex.Y
    } else if self.matchIV(l, defs, ex.Y, et) {
        et.op, et.bound = ex.Op.Swapped(), ex.X
    } else {
        return nil, nil, false
    }

    /* the bound must not change within the loop */
    if _, ok = defs[et.bound].(*IrConstInt); !ok {
        if bb := l.Func.Definitions()[et.bound]; bb != nil && l.Contains(bb) {
            return nil, nil, false
        }
    }

    /* all done */
    return et, defs, true
}

func (self InductionOracle) matchIV(l *Loop, defs map[Value]IrNode, v Value, et *_ExitTest) bool {
    switch p := defs[v].(type) {
        case *IrPhi: {
            et.phi, et.next = p, false
        }

        /* the incremented value, i.next = i + step */
        case *IrBinaryExpr: {
            if p.Op != IrOpAdd && p.Op != IrOpSub {
                return false
            }

            /* find the phi it is incremented from */
            for _, x := range []Value { p.X, p.Y } {
                if phi, ok := defs[x].(*IrPhi); ok && self.isHeaderPhi(l, phi) && phi.Incoming(l.Latch) == v {
                    et.phi, et.next = phi, true
                    break
                }
            }
        }
    }

    /* must be a header phi */
    if et.phi == nil || !self.isHeaderPhi(l, et.phi) {
        et.phi = nil
        return false
    }

    /* the start value must be a constant */
    cc, ok := defs[et.phi.Incoming(l.Preheader)].(*IrConstInt)
    if !ok {
        et.phi = nil
        return false
    }

    /* and the step as well */
    if et.step, ok = self.stepOf(defs, et.phi, et.phi.Incoming(l.Latch)); !ok {
        et.phi = nil
        return false
    }

    /* found the induction variable */
    et.start = cc.V
    return true
}

func (self InductionOracle) isHeaderPhi(l *Loop, phi *IrPhi) bool {
    for _, p := range l.Header.Phi {
        if p == phi {
            return len(p.V) == 2 && p.V[l.Preheader] != nil && p.V[l.Latch] != nil
        }
    }
    return false
}

func (self InductionOracle) stepOf(defs map[Value]IrNode, phi *IrPhi, next Value) (int64, bool) {
    ex, ok := defs[next].(*IrBinaryExpr)
    if !ok {
        return 0, false
    }

    /* i + C or C + i */
    if ex.Op == IrOpAdd {
        if cc, ok := defs[ex.Y].(*IrConstInt); ok && ex.X == phi.R {
            return cc.V, true
        } else if cc, ok = defs[ex.X].(*IrConstInt); ok && ex.Y == phi.R {
            return cc.V, true
        }
    }

    /* i - C */
    if ex.Op == IrOpSub && ex.X == phi.R {
        if cc, ok := defs[ex.Y].(*IrConstInt); ok {
            return -cc.V, true
        }
    }

    /* not an induction step */
    return 0, false
}

// AnalyzeTrip checks the latch of the loop and asks the oracle for the trip
// count and trip multiple. The returned multiple is never zero.
func AnalyzeTrip(l *Loop, oracle TripOracle) (uint, uint, error) {
    if l.Latch == nil {
        return 0, 0, UnrollError { Kind: NotUnrollable, Note: "loop does not have a unique latch" }
    }

    /* the latch must be a two-way conditional branch */
    br, ok := l.Latch.Term.(*IrBranch)
    if !ok {
        return 0, 0, UnrollError { Kind: NotUnrollable, Note: "loop latch is not terminated by a conditional branch" }
    }

    /* and exactly one side must leave the loop */
    if l.Contains(br.Then) == l.Contains(br.Else) {
        return 0, 0, UnrollError { Kind: NotUnrollable, Note: "loop latch is not the exiting block" }
    }

    /* query the oracle */
    tc := oracle.TripCount(l, l.Latch)
    tm := oracle.TripMultiple(l, l.Latch)

    /* no multiple means 1 */
    if tm == 0 {
        tm = 1
    }

    /* the multiple must divide the count */
    if tc != 0 && tc % tm != 0 {
        panic(fmt.Sprintf("trip multiple %d does not divide trip count %d", tm, tc))
    }

    /* all done */
    return tc, tm, nil
}

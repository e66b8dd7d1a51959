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

// VerifyError describes the first structural problem found in a function.
type VerifyError struct {
    Func   string
    Block  string
    Reason string
}

func (self VerifyError) Error() string {
    if self.Block == "" {
        return fmt.Sprintf("invalid function %s: %s", self.Func, self.Reason)
    } else {
        return fmt.Sprintf("invalid function %s at %s: %s", self.Func, self.Block, self.Reason)
    }
}

type _DefSite struct {
    bb  *BasicBlock
    pos int
}

type _Verifier struct {
    fn   *Func
    dt   *DominatorTree
    defs map[Value]_DefSite
}

// Verify checks the structural invariants of fn: terminators, predecessor
// lists, Phi node entries, single definitions, and that every definition
// dominates its uses.
func Verify(fn *Func) error {
    if len(fn.Blocks) == 0 {
        return VerifyError { Func: fn.Name, Reason: "function has no blocks" }
    }

    /* check the blocks and the control flow */
    vf := &_Verifier { fn: fn, defs: make(map[Value]_DefSite) }
    if err := vf.checkBlocks(); err != nil {
        return err
    }

    /* check all the definitions */
    vf.dt = BuildDominatorTree(fn.Entry())
    if err := vf.checkDefs(); err != nil {
        return err
    }

    /* then all the usages */
    return vf.checkUses()
}

func (self *_Verifier) fail(bb *BasicBlock, format string, args ...interface{}) error {
    ret := VerifyError { Func: self.fn.Name, Reason: fmt.Sprintf(format, args...) }
    if bb != nil { ret.Block = bb.Label() }
    return ret
}

func (self *_Verifier) checkBlocks() error {
    ids := make(map[int]*BasicBlock)
    pred := make(map[*BasicBlock][]*BasicBlock)

    /* block identity and terminators */
    for _, bb := range self.fn.Blocks {
        if ids[bb.Id] != nil {
            return self.fail(bb, "duplicated block ID %d", bb.Id)
        } else if bb.Term == nil {
            return self.fail(bb, "block is not terminated")
        }

        /* record the edges */
        ids[bb.Id] = bb
        for _, p := range bb.Successors() {
            if ids[p.Id] != p && !self.fn.Contains(p) {
                return self.fail(bb, "branches to %s which is not in the function", p)
            }
            pred[p] = append(pred[p], bb)
        }
    }

    /* the entry block cannot have predecessors */
    if len(self.fn.Entry().Pred) != 0 {
        return self.fail(self.fn.Entry(), "entry block has predecessors")
    }

    /* predecessor lists and Phi nodes */
    for _, bb := range self.fn.Blocks {
        if !sameblocks(bb.Pred, pred[bb]) {
            return self.fail(bb, "predecessors %v do not match the control flow %v", bb.Pred, pred[bb])
        }

        /* Phi nodes must have exactly one value for every predecessor */
        for _, p := range bb.Phi {
            if len(p.V) != len(bb.Pred) {
                return self.fail(bb, "%s: %d incoming values for %d predecessors", p.text(self.fn), len(p.V), len(bb.Pred))
            }
            for k := range p.V {
                if !hasblock(bb.Pred, k) {
                    return self.fail(bb, "%s: %s is not a predecessor", p.text(self.fn), k)
                }
            }
        }
    }

    /* all checked */
    return nil
}

func (self *_Verifier) checkDefs() (err error) {
    for _, bb := range self.fn.Blocks {
        pos := 0
        bb.Instructions(func(ins IrNode) {
            if _, ok := ins.(*IrPhi); !ok {
                pos++
            }

            /* record every definition */
            if d, ok := ins.(IrDefinitions); ok && err == nil {
                for _, r := range d.Definitions() {
                    if *r == Vz {
                        err = self.fail(bb, "%s: defines the invalid value", ins.text(self.fn))
                    } else if _, dup := self.defs[*r]; dup {
                        err = self.fail(bb, "%s: value %s is defined more than once", ins.text(self.fn), self.fn.valueName(*r))
                    } else {
                        self.defs[*r] = _DefSite { bb: bb, pos: pos }
                    }
                }
            }
        })

        /* stop at the first error */
        if err != nil {
            return
        }
    }
    return
}

func (self *_Verifier) checkUses() (err error) {
    for _, bb := range self.fn.Blocks {
        pos := 0
        bb.Instructions(func(ins IrNode) {
            if err != nil {
                return
            }

            /* Phi uses are checked against the incoming blocks */
            if p, ok := ins.(*IrPhi); ok {
                for k, v := range p.V {
                    if err == nil {
                        err = self.checkUse(bb, ins, *v, k, -1)
                    }
                }
                return
            }

            /* other uses must be dominated by their definitions */
            pos++
            if u, ok := ins.(IrUsages); ok {
                for _, r := range u.Usages() {
                    if err == nil {
                        err = self.checkUse(bb, ins, *r, bb, pos)
                    }
                }
            }
        })

        /* stop at the first error */
        if err != nil {
            return
        }
    }
    return
}

func (self *_Verifier) checkUse(bb *BasicBlock, ins IrNode, v Value, at *BasicBlock, pos int) error {
    ds, ok := self.defs[v]
    if !ok {
        return self.fail(bb, "%s: value %s is not defined", ins.text(self.fn), self.fn.valueName(v))
    }

    /* unreachable code is not checked for dominance */
    if !self.dt.Contains(at) || !self.dt.Contains(ds.bb) {
        return nil
    }

    /* must be dominated by the definition */
    if ds.bb == at {
        if pos < 0 || ds.pos < pos {
            return nil
        }
    } else if self.dt.Dominates(ds.bb, at) {
        return nil
    }

    /* the definition does not dominate the use */
    return self.fail(bb, "%s: definition of %s does not dominate its use", ins.text(self.fn), self.fn.valueName(v))
}

func sameblocks(a []*BasicBlock, b []*BasicBlock) bool {
    if len(a) != len(b) {
        return false
    }
    for _, v := range a {
        if !hasblock(b, v) {
            return false
        }
    }
    return true
}

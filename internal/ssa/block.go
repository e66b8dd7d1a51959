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

// BasicBlock is a straight-line sequence of instructions, led by Phi nodes and
// ended by exactly one terminator. Pred holds the distinct predecessors and is
// kept in sync with the terminators by SetTerm.
type BasicBlock struct {
    Id   int
    Name string
    Phi  []*IrPhi
    Ins  []IrNode
    Pred []*BasicBlock
    Term IrTerminator
}

// Label returns the name of the block, or a synthesized one for anonymous
// blocks.
func (self *BasicBlock) Label() string {
    if self.Name != "" {
        return self.Name
    } else {
        return fmt.Sprintf("bb_%d", self.Id)
    }
}

func (self *BasicBlock) String() string {
    return self.Label()
}

// Successors returns the distinct successors in terminator order.
func (self *BasicBlock) Successors() (r []*BasicBlock) {
    if self.Term != nil {
        for _, bb := range self.Term.Successors() {
            r = addblock(r, bb)
        }
    }
    return
}

// SinglePredecessor returns the only predecessor, or nil if there are none or
// more than one.
func (self *BasicBlock) SinglePredecessor() *BasicBlock {
    if len(self.Pred) != 1 {
        return nil
    } else {
        return self.Pred[0]
    }
}

// SetTerm replaces the terminator, updating the predecessor lists of both the
// old and the new successors. A nil terminator detaches the block.
func (self *BasicBlock) SetTerm(term IrTerminator) {
    var old []*BasicBlock
    var add []*BasicBlock

    /* old and new successors */
    if self.Term != nil { old = self.Term.Successors() }
    if term      != nil { add = term.Successors() }

    /* remove ourself from blocks no longer reachable */
    for _, bb := range old {
        if !hasblock(add, bb) {
            bb.Pred = delblock(bb.Pred, self)
        }
    }

    /* add ourself to the new successors */
    for _, bb := range add {
        bb.Pred = addblock(bb.Pred, self)
    }

    /* install the terminator */
    self.Term = term
}

// RemoveIncoming drops the entries for bb from every Phi node of this block.
func (self *BasicBlock) RemoveIncoming(bb *BasicBlock) {
    for _, p := range self.Phi {
        p.RemoveIncoming(bb)
    }
}

func (self *BasicBlock) replaceIncoming(old *BasicBlock, bb *BasicBlock) {
    for _, p := range self.Phi {
        if v, ok := p.V[old]; ok {
            delete(p.V, old)
            p.V[bb] = v
        }
    }
}

func (self *BasicBlock) removePhi(p *IrPhi) {
    for i, v := range self.Phi {
        if v == p {
            self.Phi = append(self.Phi[:i], self.Phi[i + 1:]...)
            return
        }
    }
}

// Instructions iterates over every node of the block, Phi nodes first and the
// terminator last.
func (self *BasicBlock) Instructions(fn func(ins IrNode)) {
    for _, v := range self.Phi { fn(v) }
    for _, v := range self.Ins { fn(v) }

    /* the terminator, if any */
    if self.Term != nil {
        fn(self.Term)
    }
}

func hasblock(bbs []*BasicBlock, bb *BasicBlock) bool {
    for _, v := range bbs {
        if v == bb {
            return true
        }
    }
    return false
}

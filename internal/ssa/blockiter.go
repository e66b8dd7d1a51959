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
    `github.com/oleiade/lane`
)

type _IterFrame struct {
    bb   *BasicBlock
    next int
}

// BasicBlockIter walks the blocks reachable from a root in post-order, an
// optional filter restricts the walk to a sub-graph.
type BasicBlockIter struct {
    b *BasicBlock
    s *lane.Stack
    f func(*BasicBlock) bool
    v map[int]struct{}
}

func newBasicBlockIter(root *BasicBlock, filter func(*BasicBlock) bool) *BasicBlockIter {
    ret := &BasicBlockIter {
        s: lane.NewStack(),
        f: filter,
        v: map[int]struct{}{ root.Id: {} },
    }

    /* start from the root */
    ret.s.Push(&_IterFrame { bb: root })
    return ret
}

func (self *BasicBlockIter) Next() bool {
    var ok bool
    var succ []*BasicBlock
    var this *_IterFrame

    /* scan until the stack is empty */
    for !self.s.Empty() {
        ok = false
        this = self.s.Head().(*_IterFrame)

        /* blocks under construction may not have terminators yet */
        if this.bb.Term != nil {
            succ = this.bb.Term.Successors()
        } else {
            succ = nil
        }

        /* find the next unvisited successor */
        for this.next < len(succ) && !ok {
            p := succ[this.next]
            this.next++

            /* check for visiting and the filter */
            if _, vis := self.v[p.Id]; !vis && (self.f == nil || self.f(p)) {
                ok = true
                self.v[p.Id] = struct{}{}
                self.s.Push(&_IterFrame { bb: p })
            }
        }

        /* all the successors are visited, pop the current node */
        if !ok {
            self.b = self.s.Pop().(*_IterFrame).bb
            return true
        }
    }

    /* clear the basic block pointer to indicate no more blocks */
    self.b = nil
    return false
}

func (self *BasicBlockIter) Block() *BasicBlock {
    return self.b
}

func (self *BasicBlockIter) ForEach(action func(bb *BasicBlock)) {
    for self.Next() {
        action(self.b)
    }
}

// PostOrder returns the blocks reachable from root in post-order.
func PostOrder(root *BasicBlock, filter func(*BasicBlock) bool) (r []*BasicBlock) {
    newBasicBlockIter(root, filter).ForEach(func(bb *BasicBlock) { r = append(r, bb) })
    return
}

// ReversePostOrder returns the blocks reachable from root in reverse
// post-order, every block comes before its successors except along back
// edges.
func ReversePostOrder(root *BasicBlock, filter func(*BasicBlock) bool) []*BasicBlock {
    ret := PostOrder(root, filter)
    nb := len(ret)

    /* reverse in place */
    for i := 0; i < nb / 2; i++ {
        ret[i], ret[nb - i - 1] = ret[nb - i - 1], ret[i]
    }

    /* all done */
    return ret
}

// ReversePostOrder returns the reachable blocks of the function in reverse
// post-order.
func (self *Func) ReversePostOrder() []*BasicBlock {
    if bb := self.Entry(); bb == nil {
        return nil
    } else {
        return ReversePostOrder(bb, nil)
    }
}

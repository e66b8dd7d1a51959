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
    `sort`

    `github.com/oleiade/lane`
    `gonum.org/v1/gonum/graph/topo`
)

// Loop is a natural loop. Latch, Exit and Preheader are nil when the loop has
// more than one of them, or none at all. Blocks are kept in reverse
// post-order with the header first.
type Loop struct {
    Func      *Func
    Header    *BasicBlock
    Latch     *BasicBlock
    Exit      *BasicBlock
    Preheader *BasicBlock
    Blocks    []*BasicBlock
    Parent    *Loop
    Children  []*Loop
    Depth     int
    set       map[*BasicBlock]struct{}
}

func (self *Loop) String() string {
    return fmt.Sprintf("loop %s (depth %d, %d blocks)", self.Header, self.Depth, len(self.Blocks))
}

// Contains tells whether bb is part of the loop, including its sub-loops.
func (self *Loop) Contains(bb *BasicBlock) bool {
    _, ok := self.set[bb]
    return ok
}

// Latches returns the in-loop predecessors of the header.
func (self *Loop) Latches() (r []*BasicBlock) {
    for _, bb := range self.Header.Pred {
        if self.Contains(bb) {
            r = append(r, bb)
        }
    }
    return
}

// Exits returns the distinct blocks outside the loop that are targeted from
// inside the loop.
func (self *Loop) Exits() (r []*BasicBlock) {
    for _, bb := range self.Blocks {
        for _, p := range bb.Successors() {
            if !self.Contains(p) {
                r = addblock(r, p)
            }
        }
    }
    return
}

// Exiting returns the blocks inside the loop with a successor outside.
func (self *Loop) Exiting() (r []*BasicBlock) {
    for _, bb := range self.Blocks {
        for _, p := range bb.Successors() {
            if !self.Contains(p) {
                r = append(r, bb)
                break
            }
        }
    }
    return
}

func (self *Loop) addBlock(bb *BasicBlock) {
    for p := self; p != nil; p = p.Parent {
        if !p.Contains(bb) {
            p.set[bb] = struct{}{}
            p.Blocks = append(p.Blocks, bb)
        }
    }
}

func (self *Loop) removeBlock(bb *BasicBlock) {
    for p := self; p != nil; p = p.Parent {
        if p.Contains(bb) {
            delete(p.set, bb)
            p.Blocks = delblock(p.Blocks, bb)
        }
    }
}

func (self *Loop) update() {
    self.Latch = nil
    self.Exit = nil
    self.Preheader = nil

    /* a single latch */
    if v := self.Latches(); len(v) == 1 {
        self.Latch = v[0]
    }

    /* a single exit */
    if v := self.Exits(); len(v) == 1 {
        self.Exit = v[0]
    }

    /* the only outside predecessor, which must jump to the header only */
    var pre []*BasicBlock
    for _, bb := range self.Header.Pred {
        if !self.Contains(bb) {
            pre = append(pre, bb)
        }
    }

    /* check for the preheader */
    if len(pre) == 1 {
        if succ := pre[0].Successors(); len(succ) == 1 && succ[0] == self.Header {
            self.Preheader = pre[0]
        }
    }
}

// LoopNest is the result of loop discovery. Loops are ordered innermost
// first, and in reverse post-order of their headers among the same depth.
type LoopNest struct {
    Loops       []*Loop
    Irreducible [][]*BasicBlock
    DomTree     *DominatorTree
}

// LoopOf finds the loop headed by bb.
func (self *LoopNest) LoopOf(header *BasicBlock) *Loop {
    for _, l := range self.Loops {
        if l.Header == header {
            return l
        }
    }
    return nil
}

// FindLoops discovers the natural loops of the function, the dominator tree is
// built if dt is nil. Irreducible regions are reported but contain no loops
// unless some block of them dominates its back edges.
func FindLoops(fn *Func, dt *DominatorTree) *LoopNest {
    rpo := fn.ReversePostOrder()
    pos := make(map[*BasicBlock]int, len(rpo))

    /* build the dominator tree if needed */
    if dt == nil {
        dt = BuildDominatorTree(fn.Entry())
    }

    /* block positions in RPO */
    for i, bb := range rpo {
        pos[bb] = i
    }

    /* find the back edges, headers are visited in RPO */
    ret := &LoopNest { DomTree: dt }
    for _, h := range rpo {
        var latches []*BasicBlock
        for _, p := range h.Pred {
            if _, ok := pos[p]; ok && dt.Dominates(h, p) {
                latches = append(latches, p)
            }
        }

        /* not a loop header */
        if len(latches) == 0 {
            continue
        }

        /* collect the loop body by walking backwards from the latches */
        q := lane.NewQueue()
        l := &Loop { Func: fn, Header: h, set: map[*BasicBlock]struct{}{ h: {} } }

        /* start from the latches */
        for _, p := range latches {
            if !l.Contains(p) {
                l.set[p] = struct{}{}
                q.Enqueue(p)
            }
        }

        /* add every predecessor until reaching the header */
        for !q.Empty() {
            bb := q.Dequeue().(*BasicBlock)
            for _, p := range bb.Pred {
                if _, ok := pos[p]; ok && !l.Contains(p) {
                    l.set[p] = struct{}{}
                    q.Enqueue(p)
                }
            }
        }

        /* keep the blocks in RPO */
        for bb := range l.set { l.Blocks = append(l.Blocks, bb) }
        sort.Slice(l.Blocks, func(i int, j int) bool { return pos[l.Blocks[i]] < pos[l.Blocks[j]] })

        /* fill in the loop shape */
        l.update()
        ret.Loops = append(ret.Loops, l)
    }

    /* the parent is the smallest enclosing loop */
    for _, l := range ret.Loops {
        for _, p := range ret.Loops {
            if p != l && p.Contains(l.Header) && len(p.Blocks) > len(l.Blocks) {
                if l.Parent == nil || len(p.Blocks) < len(l.Parent.Blocks) {
                    l.Parent = p
                }
            }
        }
    }

    /* link the children and compute the depth */
    for _, l := range ret.Loops {
        if l.Parent != nil {
            l.Parent.Children = append(l.Parent.Children, l)
        }
        for p := l; p != nil; p = p.Parent {
            l.Depth++
        }
    }

    /* innermost first */
    sort.SliceStable(ret.Loops, func(i int, j int) bool {
        return ret.Loops[i].Depth > ret.Loops[j].Depth
    })

    /* find the irreducible regions */
    ret.Irreducible = irreducibleRegions(fn)
    return ret
}

func irreducibleRegions(fn *Func) (r [][]*BasicBlock) {
    cfg := NewCFGraph(fn)
    entry := fn.Entry()

    /* check every cyclic strongly connected component */
    for _, scc := range topo.TarjanSCC(cfg) {
        nb := 0
        bbs := make(map[*BasicBlock]struct{}, len(scc))

        /* map back to the blocks */
        for _, n := range scc {
            bbs[n.(_CfgNode).bb] = struct{}{}
        }

        /* count the entries */
        for bb := range bbs {
            if bb == entry {
                nb++
                continue
            }
            for _, p := range bb.Pred {
                if _, ok := bbs[p]; !ok && cfg.Node(int64(p.Id)) != nil {
                    nb++
                    break
                }
            }
        }

        /* a single-entry cycle is a natural loop */
        if nb > 1 && len(scc) > 1 {
            ret := make([]*BasicBlock, 0, len(bbs))
            for bb := range bbs { ret = append(ret, bb) }
            sort.Slice(ret, func(i int, j int) bool { return ret[i].Id < ret[j].Id })
            r = append(r, ret)
        }
    }
    return
}

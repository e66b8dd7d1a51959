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

/** This is an implementation of the Lengauer-Tarjan algorithm described in
 *  https://doi.org/10.1145%2F357062.357071
 */

package ssa

import (
    `fmt`
    `sort`
    `strings`
)

type _LtNode struct {
    semi     int
    node     *BasicBlock
    dom      *_LtNode
    label    *_LtNode
    parent   *_LtNode
    ancestor *_LtNode
    pred     []*_LtNode
    bucket   map[*_LtNode]struct{}
}

type _LengauerTarjan struct {
    nodes  []*_LtNode
    vertex map[int]int
}

func newLengauerTarjan() *_LengauerTarjan {
    return &_LengauerTarjan {
        vertex: make(map[int]int),
    }
}

func (self *_LengauerTarjan) dfs(bb *BasicBlock) {
    i := len(self.nodes)
    self.vertex[bb.Id] = i

    /* create a new node */
    p := &_LtNode {
        semi   : i,
        node   : bb,
        bucket : make(map[*_LtNode]struct{}),
    }

    /* add to node list */
    p.label = p
    self.nodes = append(self.nodes, p)

    /* blocks without terminators have no successors */
    if bb.Term == nil {
        return
    }

    /* traverse the successors */
    for _, w := range bb.Term.Successors() {
        idx, ok := self.vertex[w.Id]

        /* not visited yet */
        if !ok {
            self.dfs(w)
            idx = self.vertex[w.Id]
            self.nodes[idx].parent = p
        }

        /* add predecessors */
        q := self.nodes[idx]
        q.pred = append(q.pred, p)
    }
}

func (self *_LengauerTarjan) eval(p *_LtNode) *_LtNode {
    if p.ancestor == nil {
        return p
    } else {
        self.compress(p)
        return p.label
    }
}

func (self *_LengauerTarjan) link(p *_LtNode, q *_LtNode) {
    q.ancestor = p
}

func (self *_LengauerTarjan) compress(p *_LtNode) {
    if p.ancestor.ancestor != nil {
        self.compress(p.ancestor)
        if p.label.semi > p.ancestor.label.semi { p.label = p.ancestor.label }
        p.ancestor = p.ancestor.ancestor
    }
}

// DominatorTree maps every reachable block to its immediate dominator
// (DominatedBy) and to the blocks it immediately dominates (DominatorOf),
// both keyed by block ID.
type DominatorTree struct {
    Root        *BasicBlock
    DominatedBy map[int]*BasicBlock
    DominatorOf map[int][]*BasicBlock
}

func minInt(a int, b int) int {
    if a < b {
        return a
    } else {
        return b
    }
}

func BuildDominatorTree(bb *BasicBlock) *DominatorTree {
    domby := make(map[int]*BasicBlock)
    domof := make(map[int][]*BasicBlock)

    /* Step 1: Carry out a depth-first search of the problem graph. Number the vertices
     * from 1 to n as they are reached during the search. Initialize the variables used
     * in succeeding steps. */
    lt := newLengauerTarjan()
    lt.dfs(bb)

    /* perform Step 2 and Step 3 simultaneously */
    for i := len(lt.nodes) - 1; i > 0; i-- {
        p := lt.nodes[i]
        q := (*_LtNode)(nil)

        /* Step 2: Compute the semidominators of all vertices by applying Theorem 4.
         * Carry out the computation vertex by vertex in decreasing order by number. */
        for _, v := range p.pred {
            q = lt.eval(v)
            p.semi = minInt(p.semi, q.semi)
        }

        /* link the ancestor */
        lt.link(p.parent, p)
        lt.nodes[p.semi].bucket[p] = struct{}{}

        /* Step 3: Implicitly define the immediate dominator of each vertex by applying Corollary 1 */
        for v := range p.parent.bucket {
            if q = lt.eval(v); q.semi < v.semi {
                v.dom = q
            } else {
                v.dom = p.parent
            }
        }

        /* clear the bucket */
        for v := range p.parent.bucket {
            delete(p.parent.bucket, v)
        }
    }

    /* Step 4: Explicitly define the immediate dominator of each vertex, carrying out the
     * computation vertex by vertex in increasing order by number. */
    for _, p := range lt.nodes[1:] {
        if p.dom.node.Id != lt.nodes[p.semi].node.Id {
            p.dom = p.dom.dom
        }
    }

    /* map the dominator relations */
    for _, p := range lt.nodes[1:] {
        domby[p.node.Id] = p.dom.node
        domof[p.dom.node.Id] = append(domof[p.dom.node.Id], p.node)
    }

    /* construct the dominator tree */
    return &DominatorTree {
        Root        : bb,
        DominatorOf : domof,
        DominatedBy : domby,
    }
}

// IDom returns the immediate dominator of bb, or nil for the root and for
// blocks unknown to the tree.
func (self *DominatorTree) IDom(bb *BasicBlock) *BasicBlock {
    return self.DominatedBy[bb.Id]
}

// Contains tells whether bb is a node of the tree.
func (self *DominatorTree) Contains(bb *BasicBlock) bool {
    if bb == self.Root {
        return true
    } else {
        return self.DominatedBy[bb.Id] != nil
    }
}

// Dominates tells whether a dominates b. Every block dominates itself.
func (self *DominatorTree) Dominates(a *BasicBlock, b *BasicBlock) bool {
    for p := b; p != nil; p = self.DominatedBy[p.Id] {
        if p == a {
            return true
        }
    }
    return false
}

func (self *DominatorTree) depth(bb *BasicBlock) (n int) {
    for p := self.DominatedBy[bb.Id]; p != nil; p = self.DominatedBy[p.Id] { n++ }
    return
}

// NearestCommonDominator finds the deepest block that dominates both a and b.
func (self *DominatorTree) NearestCommonDominator(a *BasicBlock, b *BasicBlock) *BasicBlock {
    da := self.depth(a)
    db := self.depth(b)

    /* bring both nodes to the same depth */
    for ; da > db; da-- { a = self.DominatedBy[a.Id] }
    for ; db > da; db-- { b = self.DominatedBy[b.Id] }

    /* then climb together */
    for a != b {
        a = self.DominatedBy[a.Id]
        b = self.DominatedBy[b.Id]
    }

    /* found the common dominator */
    return a
}

// AddBlock inserts a new leaf bb under idom.
func (self *DominatorTree) AddBlock(bb *BasicBlock, idom *BasicBlock) {
    if self.Contains(bb) {
        panic(fmt.Sprintf("block %s is already in the dominator tree", bb))
    } else if !self.Contains(idom) {
        panic(fmt.Sprintf("block %s is not in the dominator tree", idom))
    } else {
        self.DominatedBy[bb.Id] = idom
        self.DominatorOf[idom.Id] = append(self.DominatorOf[idom.Id], bb)
    }
}

// SetIDom moves bb, together with the subtree rooted at it, under idom.
func (self *DominatorTree) SetIDom(bb *BasicBlock, idom *BasicBlock) {
    old := self.DominatedBy[bb.Id]

    /* the root never moves */
    if old == nil {
        panic(fmt.Sprintf("cannot change the immediate dominator of %s", bb))
    }

    /* nothing to do */
    if old == idom {
        return
    }

    /* move to the new parent */
    self.DominatedBy[bb.Id] = idom
    self.DominatorOf[old.Id] = delblock(self.DominatorOf[old.Id], bb)
    self.DominatorOf[idom.Id] = append(self.DominatorOf[idom.Id], bb)
}

// RemoveBlock deletes bb from the tree, its children are adopted by its own
// immediate dominator.
func (self *DominatorTree) RemoveBlock(bb *BasicBlock) {
    idom := self.DominatedBy[bb.Id]
    next := self.DominatorOf[bb.Id]

    /* the root cannot be removed */
    if idom == nil {
        panic(fmt.Sprintf("cannot remove %s from the dominator tree", bb))
    }

    /* reparent all the children */
    for _, p := range next {
        self.DominatedBy[p.Id] = idom
        self.DominatorOf[idom.Id] = append(self.DominatorOf[idom.Id], p)
    }

    /* remove the node itself */
    delete(self.DominatedBy, bb.Id)
    delete(self.DominatorOf, bb.Id)
    self.DominatorOf[idom.Id] = delblock(self.DominatorOf[idom.Id], bb)
}

// Diff compares the immediate dominators with other, it returns an empty
// string if both trees are identical.
func (self *DominatorTree) Diff(other *DominatorTree) string {
    var ids []int
    var ret []string

    /* collect all the known IDs */
    for id := range self.DominatedBy { ids = append(ids, id) }
    for id := range other.DominatedBy {
        if _, ok := self.DominatedBy[id]; !ok {
            ids = append(ids, id)
        }
    }

    /* compare one by one, in a stable order */
    sort.Ints(ids)
    for _, id := range ids {
        x := self.DominatedBy[id]
        y := other.DominatedBy[id]

        /* check for difference */
        if x != y {
            ret = append(ret, fmt.Sprintf("idom(bb_%d): %s != %s", id, x, y))
        }
    }

    /* check the root */
    if self.Root != other.Root {
        ret = append(ret, fmt.Sprintf("root: %s != %s", self.Root, other.Root))
    }

    /* join the differences */
    return strings.Join(ret, "\n")
}

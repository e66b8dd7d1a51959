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
    `gonum.org/v1/gonum/graph`
    `gonum.org/v1/gonum/graph/encoding`
    `gonum.org/v1/gonum/graph/iterator`
)

type _CfgNode struct {
    g  *CFGraph
    bb *BasicBlock
}

func (self _CfgNode) ID() int64 {
    return int64(self.bb.Id)
}

func (self _CfgNode) DOTID() string {
    return self.bb.Label()
}

func (self _CfgNode) Attributes() []encoding.Attribute {
    return []encoding.Attribute {
        { Key: "shape", Value: "box" },
        { Key: "label", Value: self.g.fn.blockText(self.bb) },
    }
}

type _CfgEdge struct {
    from _CfgNode
    to   _CfgNode
    cond string
}

func (self _CfgEdge) From() graph.Node {
    return self.from
}

func (self _CfgEdge) To() graph.Node {
    return self.to
}

func (self _CfgEdge) ReversedEdge() graph.Edge {
    return _CfgEdge { from: self.to, to: self.from, cond: self.cond }
}

func (self _CfgEdge) Attributes() []encoding.Attribute {
    if self.cond == "" {
        return nil
    } else {
        return []encoding.Attribute {{ Key: "label", Value: self.cond }}
    }
}

// CFGraph is a read-only view of the reachable part of a function's control
// flow graph as a gonum directed graph. Self loops are allowed.
type CFGraph struct {
    fn    *Func
    order []*BasicBlock
    nodes map[int64]*BasicBlock
}

func NewCFGraph(fn *Func) *CFGraph {
    ret := &CFGraph {
        fn    : fn,
        order : fn.ReversePostOrder(),
        nodes : make(map[int64]*BasicBlock),
    }

    /* index all the reachable blocks */
    for _, bb := range ret.order {
        ret.nodes[int64(bb.Id)] = bb
    }

    /* all done */
    return ret
}

func (self *CFGraph) DOTID() string {
    return self.fn.Name
}

func (self *CFGraph) node(bb *BasicBlock) _CfgNode {
    return _CfgNode { g: self, bb: bb }
}

func (self *CFGraph) slice(bbs []*BasicBlock) graph.Nodes {
    ret := make([]graph.Node, 0, len(bbs))
    for _, bb := range bbs {
        if _, ok := self.nodes[int64(bb.Id)]; ok {
            ret = append(ret, self.node(bb))
        }
    }
    return iterator.NewOrderedNodes(ret)
}

func (self *CFGraph) Node(id int64) graph.Node {
    if bb, ok := self.nodes[id]; !ok {
        return nil
    } else {
        return self.node(bb)
    }
}

func (self *CFGraph) Nodes() graph.Nodes {
    return self.slice(self.order)
}

func (self *CFGraph) From(id int64) graph.Nodes {
    if bb, ok := self.nodes[id]; !ok {
        return graph.Empty
    } else {
        return self.slice(bb.Successors())
    }
}

func (self *CFGraph) To(id int64) graph.Nodes {
    if bb, ok := self.nodes[id]; !ok {
        return graph.Empty
    } else {
        return self.slice(bb.Pred)
    }
}

func (self *CFGraph) HasEdgeBetween(xid int64, yid int64) bool {
    return self.HasEdgeFromTo(xid, yid) || self.HasEdgeFromTo(yid, xid)
}

func (self *CFGraph) HasEdgeFromTo(uid int64, vid int64) bool {
    u, ok1 := self.nodes[uid]
    v, ok2 := self.nodes[vid]
    return ok1 && ok2 && hasblock(u.Successors(), v)
}

func (self *CFGraph) Edge(uid int64, vid int64) graph.Edge {
    if !self.HasEdgeFromTo(uid, vid) {
        return nil
    }

    /* construct the edge */
    u, v := self.nodes[uid], self.nodes[vid]
    ret := _CfgEdge { from: self.node(u), to: self.node(v) }

    /* label the conditional edges */
    if br, ok := u.Term.(*IrBranch); ok && br.Then != br.Else {
        if br.Then == v {
            ret.cond = "T"
        } else {
            ret.cond = "F"
        }
    }

    /* all done */
    return ret
}

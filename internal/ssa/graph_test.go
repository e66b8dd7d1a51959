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
    `testing`

    `github.com/stretchr/testify/require`
    `gonum.org/v1/gonum/graph`
    `gonum.org/v1/gonum/graph/topo`
)

func TestCFGraph_Edges(t *testing.T) {
    fn := buildDiamond(5)
    cfg := NewCFGraph(fn)
    loop := int64(findBlock(t, fn, "loop").Id)
    even := int64(findBlock(t, fn, "even").Id)
    latch := int64(findBlock(t, fn, "latch").Id)
    require.Equal(t, 6, cfg.Nodes().Len())
    require.Equal(t, 2, cfg.From(loop).Len())
    require.Equal(t, 2, cfg.To(loop).Len())
    require.True(t, cfg.HasEdgeFromTo(latch, loop))
    require.False(t, cfg.HasEdgeFromTo(loop, latch))
    require.True(t, cfg.HasEdgeBetween(loop, latch))
    require.Nil(t, cfg.Edge(loop, latch))
    require.Nil(t, cfg.Node(1 << 40))
    require.Equal(t, graph.Empty, cfg.From(1 << 40))
    e := cfg.Edge(loop, even)
    require.NotNil(t, e)
    require.Equal(t, even, e.To().ID())
    require.Equal(t, "T", e.(_CfgEdge).cond)
}

func TestCFGraph_SkipsUnreachable(t *testing.T) {
    p := CreateBuilder("magic")
    p.Label("entry")
    p.Ret()
    p.Label("dead")
    p.Jump("entry")
    fn := p.Build()
    cfg := NewCFGraph(fn)
    require.Equal(t, 1, cfg.Nodes().Len())
    require.Equal(t, 0, cfg.To(int64(fn.Entry().Id)).Len())
}

func TestCFGraph_Cycles(t *testing.T) {
    fn := buildNestedSum(3)
    sccs := topo.TarjanSCC(NewCFGraph(fn))
    n := 0
    for _, v := range sccs {
        if len(v) > 1 {
            n++
            require.Len(t, v, 3)
        }
    }
    require.Equal(t, 1, n)
}

func TestDOT(t *testing.T) {
    fn := buildStaticSum(3)
    buf, err := DOT(fn)
    require.NoError(t, err)
    require.Contains(t, buf, "strict digraph magic {")
    require.Contains(t, buf, "entry -> loop;")
    require.Contains(t, buf, "loop -> loop [label=T];")
    require.Contains(t, buf, "loop -> exit [label=F];")
    require.Contains(t, buf, `%x.next = add %x, %i`)
    t.Log(buf)
}

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
)

func TestLoop_Diamond(t *testing.T) {
    fn := buildDiamond(5)
    ln := FindLoops(fn, nil)
    require.Len(t, ln.Loops, 1)
    require.Empty(t, ln.Irreducible)
    l := ln.Loops[0]
    require.Equal(t, fn, l.Func)
    require.Equal(t, "loop", l.Header.Name)
    require.Equal(t, "latch", l.Latch.Name)
    require.Equal(t, "exit", l.Exit.Name)
    require.Equal(t, "entry", l.Preheader.Name)
    require.Equal(t, 1, l.Depth)
    require.Nil(t, l.Parent)
    require.Len(t, l.Blocks, 4)
    require.Equal(t, l.Header, l.Blocks[0])
    require.Equal(t, l.Latch, l.Blocks[3])
    require.Equal(t, []*BasicBlock { l.Latch }, l.Latches())
    require.Equal(t, []*BasicBlock { l.Exit }, l.Exits())
    require.Equal(t, []*BasicBlock { l.Latch }, l.Exiting())
    require.False(t, l.Contains(l.Exit))
    require.Equal(t, l, ln.LoopOf(l.Header))
    require.Nil(t, ln.LoopOf(l.Exit))
}

func TestLoop_Nested(t *testing.T) {
    fn := buildNestedSum(3)
    ln := FindLoops(fn, nil)
    require.Len(t, ln.Loops, 2)
    inner, outer := ln.Loops[0], ln.Loops[1]
    require.Equal(t, "inner", inner.Header.Name)
    require.Equal(t, "outer", outer.Header.Name)
    require.Equal(t, outer, inner.Parent)
    require.Equal(t, []*Loop { inner }, outer.Children)
    require.Equal(t, 2, inner.Depth)
    require.Equal(t, 1, outer.Depth)
    require.Equal(t, "inner", inner.Latch.Name)
    require.Equal(t, "olatch", inner.Exit.Name)
    require.Equal(t, "outer", inner.Preheader.Name)
    require.Equal(t, "olatch", outer.Latch.Name)
    require.Equal(t, "exit", outer.Exit.Name)
    require.True(t, outer.Contains(inner.Header))
    require.False(t, inner.Contains(outer.Header))
}

func TestLoop_NoPreheader(t *testing.T) {
    p := CreateBuilder("magic")
    p.Label("entry")
    p.Arg("a", 0)
    p.Const("zero", 0)
    p.Const("one", 1)
    p.Const("bound", 4)
    p.Branch("a", "left", "right")
    p.Label("left")
    p.Jump("loop")
    p.Label("right")
    p.Jump("loop")
    p.Label("loop")
    p.Phi("i", "left", "zero", "right", "one", "loop", "i.next")
    p.Op("add", "i.next", "i", "one")
    p.Op("lt", "c", "i.next", "bound")
    p.Branch("c", "loop", "exit")
    p.Label("exit")
    p.Phi("r", "loop", "i.next")
    p.Ret("r")
    fn := p.Build()
    l, _ := findLoop(t, fn, "loop")
    require.Nil(t, l.Preheader)
    require.NotNil(t, l.Latch)
    require.NotNil(t, l.Exit)

    /* cannot be unrolled without a preheader */
    _, err := UnrollLoop(fn, l, UnrollOptions { Count: 2 })
    require.ErrorIs(t, err, ErrNotUnrollable)
    require.Contains(t, err.Error(), "preheader")
}

func TestLoop_MultipleExits(t *testing.T) {
    p := CreateBuilder("magic")
    p.Label("entry")
    p.Arg("a", 0)
    p.Const("zero", 0)
    p.Const("one", 1)
    p.Const("bound", 4)
    p.Jump("loop")
    p.Label("loop")
    p.Phi("i", "entry", "zero", "latch", "i.next")
    p.Op("eq", "e", "i", "a")
    p.Branch("e", "early", "latch")
    p.Label("latch")
    p.Op("add", "i.next", "i", "one")
    p.Op("lt", "c", "i.next", "bound")
    p.Branch("c", "loop", "exit")
    p.Label("early")
    p.Ret("zero")
    p.Label("exit")
    p.Ret("one")
    fn := p.Build()
    l, _ := findLoop(t, fn, "loop")
    require.Nil(t, l.Exit)
    require.Len(t, l.Exits(), 2)
    require.Len(t, l.Exiting(), 2)

    /* the trip count is known, but the loop has two exits */
    res, err := UnrollLoop(fn, l, UnrollOptions{})
    require.ErrorIs(t, err, ErrNotUnrollable)
    require.Equal(t, uint(4), res.TripCount)
}

func TestLoop_Irreducible(t *testing.T) {
    p := CreateBuilder("magic")
    p.Label("entry")
    p.Arg("x", 0)
    p.Branch("x", "a", "b")
    p.Label("a")
    p.Branch("x", "b", "exit")
    p.Label("b")
    p.Jump("a")
    p.Label("exit")
    p.Ret("x")
    fn := p.Build()
    ln := FindLoops(fn, nil)
    require.Empty(t, ln.Loops)
    require.Len(t, ln.Irreducible, 1)
    require.Equal(t, []*BasicBlock { findBlock(t, fn, "a"), findBlock(t, fn, "b") }, ln.Irreducible[0])
}

func TestLoop_SelfLoopIsNotIrreducible(t *testing.T) {
    ln := FindLoops(buildStaticSum(3), nil)
    require.Len(t, ln.Loops, 1)
    require.Empty(t, ln.Irreducible)
    require.Len(t, ln.Loops[0].Blocks, 1)
}

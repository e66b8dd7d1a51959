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

// sum of 1..trip, with a constant bound
func buildStaticSum(trip int64) *Func {
    p := CreateBuilder("magic")
    p.Label("entry")
    p.Const("zero", 0)
    p.Const("one", 1)
    p.Const("bound", trip)
    p.Jump("loop")
    p.Label("loop")
    p.Phi("i", "entry", "one", "loop", "i.next")
    p.Phi("x", "entry", "zero", "loop", "x.next")
    p.Op("add", "x.next", "x", "i")
    p.Op("add", "i.next", "i", "one")
    p.Op("le", "c", "i.next", "bound")
    p.Branch("c", "loop", "exit")
    p.Label("exit")
    p.Phi("r", "loop", "x.next")
    p.Ret("r")
    return p.Build()
}

// sum of 1..a, guarded against a < 1
func buildDynamicSum() *Func {
    p := CreateBuilder("magic")
    p.Label("entry")
    p.Arg("a", 0)
    p.Const("zero", 0)
    p.Const("one", 1)
    p.Op("lt", "g", "a", "one")
    p.Branch("g", "exit", "pre")
    p.Label("pre")
    p.Jump("loop")
    p.Label("loop")
    p.Phi("i", "pre", "one", "loop", "i.next")
    p.Phi("x", "pre", "zero", "loop", "x.next")
    p.Op("add", "x.next", "x", "i")
    p.Op("add", "i.next", "i", "one")
    p.Op("le", "c", "i.next", "a")
    p.Branch("c", "loop", "exit")
    p.Label("exit")
    p.Phi("r", "entry", "zero", "loop", "x.next")
    p.Ret("r")
    return p.Build()
}

// sum of 0..n*mul-1, with the exit test `i.next != n * mul`
func buildMultipleSum(mul int64) *Func {
    p := CreateBuilder("magic")
    p.Label("entry")
    p.Arg("n", 0)
    p.Const("zero", 0)
    p.Const("one", 1)
    p.Const("mul", mul)
    p.Op("mul", "bound", "n", "mul")
    p.Op("lt", "g", "n", "one")
    p.Branch("g", "exit", "pre")
    p.Label("pre")
    p.Jump("loop")
    p.Label("loop")
    p.Phi("i", "pre", "zero", "loop", "i.next")
    p.Phi("x", "pre", "zero", "loop", "x.next")
    p.Op("add", "x.next", "x", "i")
    p.Op("add", "i.next", "i", "one")
    p.Op("ne", "c", "i.next", "bound")
    p.Branch("c", "loop", "exit")
    p.Label("exit")
    p.Phi("r", "entry", "zero", "loop", "x.next")
    p.Ret("r")
    return p.Build()
}

// sum of 1..j for j in 1..trip, the inner bound depends on the outer variable
func buildNestedSum(trip int64) *Func {
    p := CreateBuilder("magic")
    p.Label("entry")
    p.Const("zero", 0)
    p.Const("one", 1)
    p.Const("bound", trip)
    p.Jump("outer")
    p.Label("outer")
    p.Phi("i", "entry", "one", "olatch", "i.next")
    p.Phi("s", "entry", "zero", "olatch", "s.out")
    p.Jump("inner")
    p.Label("inner")
    p.Phi("j", "outer", "one", "inner", "j.next")
    p.Phi("t", "outer", "s", "inner", "t.next")
    p.Op("add", "t.next", "t", "j")
    p.Op("add", "j.next", "j", "one")
    p.Op("le", "c", "j.next", "i")
    p.Branch("c", "inner", "olatch")
    p.Label("olatch")
    p.Phi("s.out", "inner", "t.next")
    p.Op("add", "i.next", "i", "one")
    p.Op("le", "d", "i.next", "bound")
    p.Branch("d", "outer", "exit")
    p.Label("exit")
    p.Phi("r", "olatch", "s.out")
    p.Ret("r")
    return p.Build()
}

// alternating sum 0 - 1 + 2 - 3 + ..., with a diamond in the loop body
func buildDiamond(trip int64) *Func {
    p := CreateBuilder("magic")
    p.Label("entry")
    p.Const("zero", 0)
    p.Const("one", 1)
    p.Const("bound", trip)
    p.Jump("loop")
    p.Label("loop")
    p.Phi("i", "entry", "zero", "latch", "i.next")
    p.Phi("x", "entry", "zero", "latch", "x.out")
    p.Op("and", "m", "i", "one")
    p.Op("eq", "p", "m", "zero")
    p.Branch("p", "even", "odd")
    p.Label("even")
    p.Op("add", "xe", "x", "i")
    p.Jump("latch")
    p.Label("odd")
    p.Op("sub", "xo", "x", "i")
    p.Jump("latch")
    p.Label("latch")
    p.Phi("x.out", "even", "xe", "odd", "xo")
    p.Op("add", "i.next", "i", "one")
    p.Op("lt", "c", "i.next", "bound")
    p.Branch("c", "loop", "exit")
    p.Label("exit")
    p.Phi("r", "latch", "x.out")
    p.Ret("r")
    return p.Build()
}

// two header Phi nodes exchanging their values every trip
func buildSwap(trip int64) *Func {
    p := CreateBuilder("magic")
    p.Label("entry")
    p.Const("zero", 0)
    p.Const("one", 1)
    p.Const("two", 2)
    p.Const("ten", 10)
    p.Const("bound", trip)
    p.Jump("loop")
    p.Label("loop")
    p.Phi("i", "entry", "zero", "loop", "i.next")
    p.Phi("a", "entry", "one", "loop", "b")
    p.Phi("b", "entry", "two", "loop", "a")
    p.Op("add", "i.next", "i", "one")
    p.Op("lt", "c", "i.next", "bound")
    p.Branch("c", "loop", "exit")
    p.Label("exit")
    p.Phi("ra", "loop", "a")
    p.Phi("rb", "loop", "b")
    p.Op("mul", "r0", "ra", "ten")
    p.Op("add", "r", "r0", "rb")
    p.Ret("r")
    return p.Build()
}

// calls and stores in the loop body, bounded by an argument
func buildEffects() *Func {
    p := CreateBuilder("magic")
    p.Label("entry")
    p.Arg("n", 0)
    p.Const("zero", 0)
    p.Const("one", 1)
    p.Const("base", 100)
    p.Jump("loop")
    p.Label("loop")
    p.Phi("i", "entry", "zero", "loop", "i.next")
    p.Call("v", "observe", "i", "n")
    p.Intrinsic("w", "llvm.abs", "v")
    p.Op("add", "addr", "base", "i")
    p.Store("w", "addr")
    p.Op("add", "i.next", "i", "one")
    p.Op("lt", "c", "i.next", "n")
    p.Branch("c", "loop", "exit")
    p.Label("exit")
    p.Phi("r", "loop", "i.next")
    p.Ret("r")
    return p.Build()
}

func findBlock(t *testing.T, fn *Func, name string) *BasicBlock {
    for _, bb := range fn.Blocks {
        if bb.Name == name {
            return bb
        }
    }
    require.FailNow(t, "block not found", name)
    return nil
}

func findLoop(t *testing.T, fn *Func, header string) (*Loop, *DominatorTree) {
    dt := BuildDominatorTree(fn.Entry())
    ln := FindLoops(fn, dt)
    l := ln.LoopOf(findBlock(t, fn, header))
    require.NotNil(t, l, "loop %s not found", header)
    return l, dt
}

func emulate(t *testing.T, fn *Func, args ...int64) int64 {
    ret, err := NewEmulator(fn).Run(args...)
    require.NoError(t, err)
    require.Len(t, ret, 1)
    return ret[0]
}

func requireSameDomTree(t *testing.T, fn *Func, dt *DominatorTree) {
    require.Equal(t, "", BuildDominatorTree(fn.Entry()).Diff(dt), "dominator tree is not up to date:\n%s", fn)
}

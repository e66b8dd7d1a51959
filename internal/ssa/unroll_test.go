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
    `errors`
    `testing`

    `github.com/brianvoe/gofakeit/v6`
    `github.com/davecgh/go-spew/spew`
    `github.com/stretchr/testify/require`
)

func TestUnroll_StaticComplete(t *testing.T) {
    fn := buildStaticSum(3)
    l, dt := findLoop(t, fn, "loop")
    res, err := UnrollLoop(fn, l, UnrollOptions { Threshold: 100, DomTree: dt })
    require.NoError(t, err)
    t.Log(spew.Sdump(res))
    require.True(t, res.Complete)
    require.Equal(t, uint(3), res.TripCount)
    require.Equal(t, uint(3), res.TripMultiple)
    require.Equal(t, uint(3), res.Count)
    require.Equal(t, uint(3), res.Size)
    require.Equal(t, uint(0), res.BreakoutTrip)
    require.Equal(t, 2, res.Clones)
    require.Equal(t, 3, res.Folded)
    require.NoError(t, Verify(fn))
    require.Empty(t, FindLoops(fn, nil).Loops, "residual loop:\n%s", fn)
    require.Len(t, fn.Blocks, 2)
    require.Equal(t, int64(6), emulate(t, fn))
    requireSameDomTree(t, fn, dt)
    t.Log(fn)
}

func TestUnroll_UnknownTripCountRejected(t *testing.T) {
    fn := buildDynamicSum()
    before := fn.String()
    l, dt := findLoop(t, fn, "loop")
    res, err := UnrollLoop(fn, l, UnrollOptions { Threshold: 100, DomTree: dt })
    require.Error(t, err)
    require.True(t, errors.Is(err, ErrUnknownTripCount))
    require.Equal(t, uint(0), res.TripCount)
    require.Equal(t, before, fn.String())
    requireSameDomTree(t, fn, dt)
}

func TestUnroll_DynamicPartial(t *testing.T) {
    fn := buildDynamicSum()
    l, dt := findLoop(t, fn, "loop")
    res, err := UnrollLoop(fn, l, UnrollOptions { Count: 4, DomTree: dt })
    require.NoError(t, err)
    require.False(t, res.Complete)
    require.Equal(t, uint(4), res.Count)
    require.Equal(t, uint(1), res.BreakoutTrip)
    require.Equal(t, uint(1), res.GuardMultiple)
    require.Equal(t, 3, res.Clones)
    require.Equal(t, 0, res.Folded)
    require.NoError(t, Verify(fn))
    requireSameDomTree(t, fn, dt)
    t.Log(fn)

    /* every copy keeps its exit test */
    exit := findBlock(t, fn, "exit")
    require.Len(t, exit.Pred, 5)
    require.Len(t, exit.Phi[0].V, 5)

    /* still exactly one loop, now with the last copy as the latch */
    ln := FindLoops(fn, nil)
    require.Len(t, ln.Loops, 1)
    require.Equal(t, "loop.3", ln.Loops[0].Latch.Name)
    require.Equal(t, l.Latch, ln.Loops[0].Latch)

    /* behaves exactly like the original loop */
    for _, a := range []int64 { 0, 1, 4, 5, 17 } {
        require.Equal(t, emulate(t, buildDynamicSum(), a), emulate(t, fn, a), "a = %d", a)
    }
}

func TestUnroll_TripMultiple(t *testing.T) {
    for _, count := range []uint { 2, 4, 8 } {
        fn := buildMultipleSum(4)
        l, dt := findLoop(t, fn, "loop")
        res, err := UnrollLoop(fn, l, UnrollOptions { Count: count, DomTree: dt })
        require.NoError(t, err)
        require.Equal(t, uint(0), res.TripCount)
        require.Equal(t, uint(4), res.TripMultiple)
        require.Equal(t, gcd(count, 4), res.GuardMultiple)
        require.Equal(t, res.GuardMultiple, res.BreakoutTrip)
        require.Equal(t, int(count - count / res.GuardMultiple), res.Folded)
        require.NoError(t, Verify(fn))
        requireSameDomTree(t, fn, dt)

        /* only every 4th copy tests for the exit */
        exit := findBlock(t, fn, "exit")
        require.Len(t, exit.Pred, 1 + int(count / res.GuardMultiple))

        /* same results as the original */
        for n := int64(0); n <= 5; n++ {
            require.Equal(t, emulate(t, buildMultipleSum(4), n), emulate(t, fn, n), "count = %d, n = %d", count, n)
        }
    }
}

func TestUnroll_ClampToTripCount(t *testing.T) {
    fn := buildStaticSum(3)
    l, dt := findLoop(t, fn, "loop")
    res, err := UnrollLoop(fn, l, UnrollOptions { Count: 10, DomTree: dt })
    require.NoError(t, err)
    require.Equal(t, uint(3), res.Count)
    require.True(t, res.Complete)
    require.Equal(t, int64(6), emulate(t, fn))
    requireSameDomTree(t, fn, dt)
}

func TestUnroll_PartialKnownTripCount(t *testing.T) {
    for _, count := range []uint { 2, 3, 4, 5 } {
        fn := buildStaticSum(7)
        l, dt := findLoop(t, fn, "loop")
        res, err := UnrollLoop(fn, l, UnrollOptions { Count: count, DomTree: dt })
        require.NoError(t, err)
        require.False(t, res.Complete)
        require.Equal(t, uint(7) % count, res.BreakoutTrip)
        require.Equal(t, uint(0), res.GuardMultiple)
        require.NoError(t, Verify(fn))
        requireSameDomTree(t, fn, dt)
        require.Equal(t, int64(28), emulate(t, fn), "count = %d", count)
        require.Len(t, findBlock(t, fn, "exit").Pred, 1)
    }
}

func TestUnroll_ThresholdLaw(t *testing.T) {
    for _, threshold := range []uint { 8, 9, 10 } {
        fn := buildStaticSum(3)
        before := fn.String()
        l, _ := findLoop(t, fn, "loop")
        res, err := UnrollLoop(fn, l, UnrollOptions { Threshold: threshold })
        if res.Size * res.Count > threshold {
            require.True(t, errors.Is(err, ErrTooLarge))
            require.Equal(t, before, fn.String())
        } else {
            require.NoError(t, err)
            require.Equal(t, int64(6), emulate(t, fn))
        }
    }
}

func TestUnroll_SingleTripIgnoresThreshold(t *testing.T) {
    fn := buildStaticSum(1)
    l, dt := findLoop(t, fn, "loop")
    res, err := UnrollLoop(fn, l, UnrollOptions { Threshold: 1, DomTree: dt })
    require.NoError(t, err)
    require.True(t, res.Complete)
    require.Equal(t, 0, res.Clones)
    require.NoError(t, Verify(fn))
    require.Empty(t, FindLoops(fn, nil).Loops)
    require.Equal(t, int64(1), emulate(t, fn))
    requireSameDomTree(t, fn, dt)
}

func TestUnroll_RejectionIsIdempotent(t *testing.T) {
    fn := buildDynamicSum()
    before := fn.String()
    for i := 0; i < 3; i++ {
        l, _ := findLoop(t, fn, "loop")
        _, err := UnrollLoop(fn, l, UnrollOptions{})
        require.True(t, errors.Is(err, ErrUnknownTripCount))
        require.Equal(t, before, fn.String())
    }
}

func TestUnroll_NotUnrollable(t *testing.T) {
    p := CreateBuilder("magic")
    p.Label("entry")
    p.Const("zero", 0)
    p.Const("one", 1)
    p.Const("bound", 4)
    p.Jump("loop")
    p.Label("loop")
    p.Phi("i", "entry", "zero", "latch", "i.next")
    p.Op("add", "i.next", "i", "one")
    p.Op("eq", "e", "i.next", "bound")
    p.Branch("e", "exit", "latch")
    p.Label("latch")
    p.Jump("loop")
    p.Label("exit")
    p.Ret("i.next")
    fn := p.Build()
    before := fn.String()
    l, _ := findLoop(t, fn, "loop")
    _, err := UnrollLoop(fn, l, UnrollOptions{})
    require.True(t, errors.Is(err, ErrNotUnrollable))
    require.Equal(t, before, fn.String())
}

func TestUnroll_NotLCSSA(t *testing.T) {
    p := CreateBuilder("magic")
    p.Label("entry")
    p.Const("zero", 0)
    p.Const("one", 1)
    p.Const("bound", 4)
    p.Jump("loop")
    p.Label("loop")
    p.Phi("i", "entry", "zero", "loop", "i.next")
    p.Op("add", "i.next", "i", "one")
    p.Op("lt", "c", "i.next", "bound")
    p.Branch("c", "loop", "exit")
    p.Label("exit")
    p.Ret("i.next")
    fn := p.Build()
    before := fn.String()
    l, _ := findLoop(t, fn, "loop")
    res, err := UnrollLoop(fn, l, UnrollOptions{})
    require.True(t, errors.Is(err, ErrNotUnrollable))
    require.Contains(t, err.Error(), "escapes the loop")
    require.Equal(t, uint(4), res.TripCount)
    require.Equal(t, before, fn.String())
}

func TestUnroll_Diamond(t *testing.T) {
    for _, count := range []uint { 0, 2, 3 } {
        fn := buildDiamond(5)
        l, dt := findLoop(t, fn, "loop")
        res, err := UnrollLoop(fn, l, UnrollOptions { Count: count, DomTree: dt })
        require.NoError(t, err)
        require.Equal(t, uint(5), res.TripCount)
        require.Equal(t, count == 0, res.Complete)
        require.NoError(t, Verify(fn))
        requireSameDomTree(t, fn, dt)
        require.Equal(t, int64(2), emulate(t, fn), "count = %d", count)
    }
}

func TestUnroll_SwappedPhis(t *testing.T) {
    for _, trip := range []int64 { 1, 2, 3, 4 } {
        for _, count := range []uint { 0, 2, 3 } {
            fn := buildSwap(trip)
            l, dt := findLoop(t, fn, "loop")
            _, err := UnrollLoop(fn, l, UnrollOptions { Count: count, DomTree: dt })
            if count == 0 || uint(trip) > 1 {
                require.NoError(t, err)
            }
            require.NoError(t, Verify(fn))
            requireSameDomTree(t, fn, dt)
            require.Equal(t, emulate(t, buildSwap(trip)), emulate(t, fn), "trip = %d, count = %d", trip, count)
        }
    }
}

func TestUnroll_SideEffects(t *testing.T) {
    fn := buildEffects()
    l, dt := findLoop(t, fn, "loop")
    res, err := UnrollLoop(fn, l, UnrollOptions { Count: 3, Threshold: 1000, DomTree: dt })
    require.NoError(t, err)
    require.Equal(t, uint(25 + 2 + 1 + 1 + 1 + 1), res.Size)
    require.NoError(t, Verify(fn))
    requireSameDomTree(t, fn, dt)

    /* calls and stores happen in the same order */
    for _, n := range []int64 { -1, 0, 1, 2, 3, 7 } {
        x := NewEmulator(buildEffects())
        y := NewEmulator(fn)
        r1, err1 := x.Run(n)
        r2, err2 := y.Run(n)
        require.NoError(t, err1)
        require.NoError(t, err2)
        require.Equal(t, r1, r2)
        require.Equal(t, x.Trace, y.Trace)
        require.Equal(t, x.Mem, y.Mem)
    }
}

func TestUnroll_NestedOuterComplete(t *testing.T) {
    fn := buildNestedSum(3)
    l, dt := findLoop(t, fn, "outer")
    require.Equal(t, 1, l.Depth)
    require.Len(t, l.Children, 1)
    res, err := UnrollLoop(fn, l, UnrollOptions { Threshold: 100, DomTree: dt })
    require.NoError(t, err)
    require.True(t, res.Complete)
    require.Equal(t, uint(9), res.Size)
    require.NoError(t, Verify(fn))
    requireSameDomTree(t, fn, dt)
    require.Equal(t, int64(10), emulate(t, fn))

    /* the inner loops are copied */
    ln := FindLoops(fn, nil)
    require.Len(t, ln.Loops, 3)
    for _, v := range ln.Loops {
        require.Equal(t, 1, v.Depth)
    }
}

func TestUnroll_NestedInnerPartial(t *testing.T) {
    fn := buildNestedSum(4)
    l, dt := findLoop(t, fn, "inner")
    require.Equal(t, 2, l.Depth)
    res, err := UnrollLoop(fn, l, UnrollOptions { Count: 2, DomTree: dt })
    require.NoError(t, err)
    require.False(t, res.Complete)
    require.NoError(t, Verify(fn))
    requireSameDomTree(t, fn, dt)
    require.Equal(t, int64(20), emulate(t, fn))

    /* the outer loop now contains the new blocks */
    outer, _ := findLoop(t, fn, "outer")
    require.True(t, outer.Contains(findBlock(t, fn, "inner.1")))
}

func TestUnroll_RandomizedDifferential(t *testing.T) {
    fk := gofakeit.New(20221018)
    for i := 0; i < 200; i++ {
        start := int64(fk.IntRange(-8, 8))
        step := int64(fk.IntRange(1, 3))
        bound := int64(fk.IntRange(-8, 24))
        count := uint(fk.IntRange(0, 6))
        build := func() *Func {
            p := CreateBuilder("magic")
            p.Label("entry")
            p.Arg("seed", 0)
            p.Const("start", start)
            p.Const("step", step)
            p.Const("bound", bound)
            p.Jump("loop")
            p.Label("loop")
            p.Phi("i", "entry", "start", "loop", "i.next")
            p.Phi("x", "entry", "seed", "loop", "x.next")
            p.Op("mul", "y", "x", "step")
            p.Op("xor", "x.next", "y", "i")
            p.Op("add", "i.next", "i", "step")
            p.Op("lt", "c", "i.next", "bound")
            p.Branch("c", "loop", "exit")
            p.Label("exit")
            p.Phi("r", "loop", "x.next")
            p.Ret("r")
            return p.Build()
        }
        fn := build()
        l, dt := findLoop(t, fn, "loop")
        res, err := UnrollLoop(fn, l, UnrollOptions { Count: count, DomTree: dt })
        if err != nil {
            require.True(t, errors.Is(err, ErrNotUnrollable), "unexpected error: %v", err)
            require.Equal(t, uint(1), res.Count)
            continue
        }
        require.NoError(t, Verify(fn))
        requireSameDomTree(t, fn, dt)
        seed := fk.Int64()
        require.Equal(t, emulate(t, build(), seed), emulate(t, fn, seed), "start=%d step=%d bound=%d count=%d", start, step, bound, count)
    }
}

/*
 * Copyright 2022 CloudWeGo Authors
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

package driver

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/unroll/internal/asm"
	"github.com/cloudwego/unroll/internal/opts"
	"github.com/cloudwego/unroll/internal/ssa"
	"github.com/cloudwego/unroll/internal/target"
	"github.com/stretchr/testify/require"
)

const staticSum = `func magic {
entry:
    %zero = const 0
    %one = const 1
    %bound = const 3
    goto loop

loop:
    %i = phi [entry: %one, loop: %i.next]
    %x = phi [entry: %zero, loop: %x.next]
    %x.next = add %x, %i
    %i.next = add %i, %one
    %c = le %i.next, %bound
    br %c, loop, exit

exit:
    %r = phi [loop: %x.next]
    ret %r
}
`

const dynamicSum = `func magic {
entry:
    %a = arg 0
    %zero = const 0
    %one = const 1
    %g = lt %a, %one
    br %g, exit, pre

pre:
    goto loop

loop:
    %i = phi [pre: %one, loop: %i.next]
    %x = phi [pre: %zero, loop: %x.next]
    %x.next = add %x, %i
    %i.next = add %i, %one
    %c = le %i.next, %a
    br %c, loop, exit

exit:
    %r = phi [entry: %zero, loop: %x.next]
    ret %r
}
`

const multipleSum = `func magic {
entry:
    %n = arg 0
    %zero = const 0
    %one = const 1
    %four = const 4
    %bound = mul %n, %four
    %g = lt %n, %one
    br %g, exit, pre

pre:
    goto loop

loop:
    %i = phi [pre: %zero, loop: %i.next]
    %x = phi [pre: %zero, loop: %x.next]
    %x.next = add %x, %i
    %i.next = add %i, %one
    %c = ne %i.next, %bound
    br %c, loop, exit

exit:
    %r = phi [entry: %zero, loop: %x.next]
    ret %r
}
`

const nestedSum = `func magic {
entry:
    %zero = const 0
    %one = const 1
    %bound = const 3
    goto outer

outer:
    %i = phi [entry: %one, olatch: %i.next]
    %s = phi [entry: %zero, olatch: %s.out]
    goto inner

inner:
    %j = phi [outer: %one, inner: %j.next]
    %t = phi [outer: %s, inner: %t.next]
    %t.next = add %t, %j
    %j.next = add %j, %one
    %c = le %j.next, %i
    br %c, inner, olatch

olatch:
    %s.out = phi [inner: %t.next]
    %i.next = add %i, %one
    %d = le %i.next, %bound
    br %d, outer, exit

exit:
    %r = phi [olatch: %s.out]
    ret %r
}
`

func parse(t *testing.T, src string) *ssa.Func {
	fn, err := asm.ParseFunc(src)
	require.NoError(t, err)
	return fn
}

func options(count int, threshold int) opts.Options {
	return opts.Options{
		Target:          "*",
		UnrollCount:     count,
		UnrollThreshold: threshold,
		Verify:          true,
	}
}

func run(t *testing.T, fn *ssa.Func, args ...int64) int64 {
	ret, err := ssa.NewEmulator(fn).Run(args...)
	require.NoError(t, err)
	require.Len(t, ret, 1)
	return ret[0]
}

func TestDriver_Complete(t *testing.T) {
	fn := parse(t, staticSum)
	rps := New(options(0, 100)).RunOnFunc(fn)
	require.Len(t, rps, 1)
	require.Equal(t, []State{Scan, Analyze, Apply, Done}, rps[0].Path)
	require.True(t, rps[0].Unrolled())
	require.Equal(t, "completely unrolled, trip count = 3", rps[0].Summary())
	require.Equal(t, `Loop Unroll: F[magic] L%loop
  trip count = 3
  trip multiple = 3
  size = 3
COMPLETELY unrolling
finished
`, rps[0].String())
	require.Empty(t, ssa.FindLoops(fn, nil).Loops)
	require.Equal(t, int64(6), run(t, fn))
}

func TestDriver_PartialWithBreakout(t *testing.T) {
	fn := parse(t, staticSum)
	rps := New(options(2, 100)).RunOnFunc(fn)
	require.Len(t, rps, 1)
	require.Equal(t, `Loop Unroll: F[magic] L%loop
  trip count = 3
  trip multiple = 3
  size = 3
PARTIALLY unrolling by 2
  with a breakout at trip 1
finished
`, rps[0].String())
	require.Equal(t, "partially unrolled by 2, trip count = 3", rps[0].Summary())
	require.Equal(t, int64(6), run(t, fn))
}

func TestDriver_UnknownTripCount(t *testing.T) {
	fn := parse(t, dynamicSum)
	before := fn.String()
	rps := New(options(0, 100)).RunOnFunc(fn)
	require.Len(t, rps, 1)
	require.Equal(t, []State{Scan, Analyze, Fail, Skip}, rps[0].Path)
	require.Equal(t, ssa.UnknownTripCount, rps[0].Kind())
	require.Equal(t, `Loop Unroll: F[magic] L%loop
  trip count = unknown
skipping: cannot determine unroll count
failed...
`, rps[0].String())
	require.Equal(t, before, fn.String())
}

func TestDriver_DynamicPartial(t *testing.T) {
	fn := parse(t, dynamicSum)
	rps := New(options(4, 100)).RunOnFunc(fn)
	require.Len(t, rps, 1)
	require.Equal(t, `Loop Unroll: F[magic] L%loop
  trip count = unknown
  size = 3
PARTIALLY unrolling by 4
finished
`, rps[0].String())
	require.Equal(t, "partially unrolled by 4, trip count = unknown", rps[0].Summary())
	for _, n := range []int64{-3, 0, 1, 2, 3, 4, 5, 10} {
		require.Equal(t, n*(n+1)/2*b2i(n > 0), run(t, fn, n), "n = %d", n)
	}
}

func b2i(v bool) int64 {
	if v {
		return 1
	} else {
		return 0
	}
}

func TestDriver_TripsPerBranch(t *testing.T) {
	fn := parse(t, multipleSum)
	rps := New(options(4, 100)).RunOnFunc(fn)
	require.Len(t, rps, 1)
	require.Equal(t, `Loop Unroll: F[magic] L%loop
  trip count = unknown
  trip multiple = 4
  size = 3
PARTIALLY unrolling by 4
  with 4 trips per branch
finished
`, rps[0].String())
	for _, n := range []int64{1, 2, 3} {
		require.Equal(t, 4*n*(4*n-1)/2, run(t, fn, n), "n = %d", n)
	}
}

func TestDriver_TooLarge(t *testing.T) {
	fn := parse(t, staticSum)
	before := fn.String()
	rps := New(options(0, 8)).RunOnFunc(fn)
	require.Len(t, rps, 1)
	require.Equal(t, ssa.TooLarge, rps[0].Kind())
	require.Equal(t, `Loop Unroll: F[magic] L%loop
  trip count = 3
  trip multiple = 3
  size = 3
skipping: too large to unroll (threshold = 8)
failed...
`, rps[0].String())
	require.Equal(t, before, fn.String())
}

func TestDriver_NotTarget(t *testing.T) {
	fn := parse(t, staticSum)
	before := fn.String()
	o := options(0, 100)
	o.Target = "other"
	rps := New(o).RunOnFunc(fn)
	require.Len(t, rps, 1)
	require.Equal(t, []State{Scan, Skip}, rps[0].Path)
	require.Nil(t, rps[0].Result)
	require.Equal(t, "not applicable", rps[0].Summary())
	require.Equal(t, "Loop Unroll: F[magic] L%loop\nskipping: function is not the target\n", rps[0].String())
	require.Equal(t, before, fn.String())
}

func TestDriver_Nested(t *testing.T) {
	fn := parse(t, nestedSum)
	rps := New(options(0, 100)).RunOnFunc(fn)
	require.Len(t, rps, 2)
	require.Equal(t, "inner", rps[0].Header)
	require.Equal(t, 2, rps[0].Depth)
	require.Equal(t, ssa.UnknownTripCount, rps[0].Kind())
	require.Equal(t, "outer", rps[1].Header)
	require.True(t, rps[1].Unrolled())
	require.True(t, rps[1].Result.Complete)
	require.Equal(t, uint(9), rps[1].Result.Size)
	require.Equal(t, int64(10), run(t, fn))
	for _, l := range ssa.FindLoops(fn, nil).Loops {
		require.Equal(t, 1, l.Depth)
	}
}

func TestDriver_NotUnrollable(t *testing.T) {
	fn := parse(t, `func magic {
entry:
    %one = const 1
    goto loop

loop:
    %i = phi [entry: %one, latch: %i.next]
    %i.next = add %i, %one
    %c = lt %i.next, %one
    br %c, exit, latch

latch:
    goto loop

exit:
    ret %i.next
}
`)
	rps := New(options(0, 100)).RunOnFunc(fn)
	require.Len(t, rps, 1)
	require.Equal(t, ssa.NotUnrollable, rps[0].Kind())
	require.Equal(t, `Loop Unroll: F[magic] L%loop
skipping: loop latch is not terminated by a conditional branch
failed...
`, rps[0].String())
}

func TestDriver_Stats(t *testing.T) {
	loops := atomic.LoadUint64(&LoopCount)
	complete := atomic.LoadUint64(&CompleteCount)
	fails := atomic.LoadUint64(&FailCount)
	clones := atomic.LoadUint64(&CloneCount)
	New(options(0, 100)).RunOnFunc(parse(t, staticSum))
	New(options(0, 100)).RunOnFunc(parse(t, dynamicSum))
	require.Equal(t, uint64(2), atomic.LoadUint64(&LoopCount)-loops)
	require.Equal(t, uint64(1), atomic.LoadUint64(&CompleteCount)-complete)
	require.Equal(t, uint64(1), atomic.LoadUint64(&FailCount)-fails)
	require.Equal(t, uint64(2), atomic.LoadUint64(&CloneCount)-clones)
}

func TestDriver_Threshold(t *testing.T) {
	require.Equal(t, uint(100), New(options(0, 100)).Threshold())
	require.Equal(t, uint(0), New(options(0, 0)).Threshold())
	o := options(0, 0)
	o.HostThreshold = true
	require.Equal(t, uint(target.HostThreshold()), New(o).Threshold())
	require.GreaterOrEqual(t, New(o).Threshold(), uint(target.DefaultThreshold))
}

func TestState_String(t *testing.T) {
	var names []string
	for s := Scan; s <= Done; s++ {
		names = append(names, s.String())
	}
	require.Equal(t, []string{"scan", "skip", "analyze", "fail", "apply", "done"}, names)
	require.Equal(t, "State(9)", fmt.Sprint(State(9)))
}

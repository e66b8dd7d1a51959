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
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/unroll/internal/ssa"
)

// State is a step of the per-loop state machine.
type State uint8

const (
	Scan State = iota
	Skip
	Analyze
	Fail
	Apply
	Done
)

func (self State) String() string {
	switch self {
	case Scan:
		return "scan"
	case Skip:
		return "skip"
	case Analyze:
		return "analyze"
	case Fail:
		return "fail"
	case Apply:
		return "apply"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", uint8(self))
	}
}

// Report is the outcome of one attempt to unroll a loop. Result is nil when
// the loop was skipped without analysis.
type Report struct {
	Func      string
	Header    string
	Depth     int
	Path      []State
	Count     uint
	Threshold uint
	Result    *ssa.UnrollResult
	Err       error
}

func (self *Report) enter(s State) {
	self.Path = append(self.Path, s)
}

// State returns the final state.
func (self *Report) State() State {
	if len(self.Path) == 0 {
		return Scan
	} else {
		return self.Path[len(self.Path)-1]
	}
}

// Unrolled tells whether the loop has been transformed.
func (self *Report) Unrolled() bool {
	return self.State() == Done
}

// Kind returns the reason of the rejection, or 0 if the loop was not rejected
// by the analysis.
func (self *Report) Kind() ssa.UnrollErrorKind {
	var e ssa.UnrollError
	if errors.As(self.Err, &e) {
		return e.Kind
	} else {
		return 0
	}
}

// Summary is a one-line description of the outcome.
func (self *Report) Summary() string {
	switch {
	case self.Result == nil:
		return "not applicable"
	case self.Err != nil:
		return self.Err.Error()
	case self.Result.Complete:
		return fmt.Sprintf("completely unrolled, trip count = %d", self.Result.TripCount)
	default:
		return fmt.Sprintf("partially unrolled by %d, trip count = %s", self.Result.Count, tripCount(self.Result.TripCount))
	}
}

func tripCount(tc uint) string {
	if tc == 0 {
		return "unknown"
	} else {
		return fmt.Sprint(tc)
	}
}

// String renders the diagnostics of the attempt, one line per fact.
func (self *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Loop Unroll: F[%s] L%%%s\n", self.Func, self.Header)

	/* not the target function */
	if self.Result == nil {
		sb.WriteString("skipping: function is not the target\n")
		return sb.String()
	}

	/* trip count is only known if the latch has been accepted */
	res := self.Result
	kind := self.Kind()

	/* trip count and multiple */
	if res.TripMultiple != 0 {
		fmt.Fprintf(&sb, "  trip count = %s\n", tripCount(res.TripCount))
		if res.TripMultiple != 1 {
			fmt.Fprintf(&sb, "  trip multiple = %d\n", res.TripMultiple)
		}
	}

	/* no unroll count was given and none could be derived */
	if kind == ssa.UnknownTripCount {
		sb.WriteString("skipping: cannot determine unroll count\n")
		sb.WriteString("failed...\n")
		return sb.String()
	}

	/* size of the loop body */
	if res.Size != 0 {
		fmt.Fprintf(&sb, "  size = %d\n", res.Size)
	}

	/* other reasons */
	switch {
	case kind == ssa.TooLarge:
		fmt.Fprintf(&sb, "skipping: too large to unroll (threshold = %d)\n", self.Threshold)
	case self.Err != nil:
		fmt.Fprintf(&sb, "skipping: %s\n", skipReason(self.Err))
	case res.Complete:
		sb.WriteString("COMPLETELY unrolling\n")
	default:
		fmt.Fprintf(&sb, "PARTIALLY unrolling by %d\n", res.Count)
		if res.GuardMultiple == 0 || res.BreakoutTrip != res.GuardMultiple {
			fmt.Fprintf(&sb, "  with a breakout at trip %d\n", res.BreakoutTrip)
		} else if res.GuardMultiple != 1 {
			fmt.Fprintf(&sb, "  with %d trips per branch\n", res.GuardMultiple)
		}
	}

	/* final verdict */
	if self.Unrolled() {
		sb.WriteString("finished\n")
	} else {
		sb.WriteString("failed...\n")
	}
	return sb.String()
}

func skipReason(err error) string {
	var e ssa.UnrollError
	if !errors.As(err, &e) || e.Note == "" {
		return err.Error()
	} else {
		return e.Note
	}
}

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

package debug

import (
	"sync/atomic"

	"github.com/cloudwego/unroll/internal/driver"
)

// A Stats records statistics about the loop unroller.
type Stats struct {
	Loops     LoopStats
	Transform TransformStats
}

// A LoopStats records how the visited loops were handled.
type LoopStats struct {
	Visited  int
	Skipped  int
	Rejected int
	Complete int
	Partial  int
}

// A TransformStats records the amount of work done by the unrolled loops.
type TransformStats struct {
	Clones  int
	Folded  int
	Removed int
}

// GetStats returns statistics of the loop unroller.
func GetStats() Stats {
	return Stats{
		Loops: LoopStats{
			Visited:  int(atomic.LoadUint64(&driver.LoopCount)),
			Skipped:  int(atomic.LoadUint64(&driver.SkipCount)),
			Rejected: int(atomic.LoadUint64(&driver.FailCount)),
			Complete: int(atomic.LoadUint64(&driver.CompleteCount)),
			Partial:  int(atomic.LoadUint64(&driver.PartialCount)),
		},
		Transform: TransformStats{
			Clones:  int(atomic.LoadUint64(&driver.CloneCount)),
			Folded:  int(atomic.LoadUint64(&driver.FoldCount)),
			Removed: int(atomic.LoadUint64(&driver.RemoveCount)),
		},
	}
}

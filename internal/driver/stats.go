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
	"sync/atomic"
)

// Process-wide counters, read by the debug package.
var (
	LoopCount     uint64
	SkipCount     uint64
	FailCount     uint64
	CompleteCount uint64
	PartialCount  uint64
	CloneCount    uint64
	FoldCount     uint64
	RemoveCount   uint64
)

func count(rp *Report) {
	atomic.AddUint64(&LoopCount, 1)
	switch rp.State() {
	case Skip:
		if rp.Result == nil {
			atomic.AddUint64(&SkipCount, 1)
		} else {
			atomic.AddUint64(&FailCount, 1)
		}
	case Done:
		if rp.Result.Complete {
			atomic.AddUint64(&CompleteCount, 1)
		} else {
			atomic.AddUint64(&PartialCount, 1)
		}
		atomic.AddUint64(&CloneCount, uint64(rp.Result.Clones))
		atomic.AddUint64(&FoldCount, uint64(rp.Result.Folded))
		atomic.AddUint64(&RemoveCount, uint64(rp.Result.Removed))
	}
}

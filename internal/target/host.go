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

package target

import (
	"fmt"

	"github.com/klauspost/cpuid/v2"
)

const (
	_AvgInsnSize = 4  // bytes per instruction, roughly
	_CacheShare  = 16 // a single loop may take 1/16 of the L1 instruction cache
)

// DefaultThreshold is used when the cache size of the host is unknown.
const DefaultThreshold = 100

// Host describes the parts of the CPU that affect the unroll decisions.
type Host struct {
	Brand     string
	L1I       int
	CacheLine int
}

// Detect reads the host CPU information.
func Detect() Host {
	return Host{
		Brand:     cpuid.CPU.BrandName,
		L1I:       cpuid.CPU.Cache.L1I,
		CacheLine: cpuid.CPU.CacheLine,
	}
}

// Threshold derives the unrolled loop size limit from the L1 instruction
// cache size.
func (self Host) Threshold() int {
	if self.L1I <= 0 {
		return DefaultThreshold
	} else if n := self.L1I / _AvgInsnSize / _CacheShare; n < DefaultThreshold {
		return DefaultThreshold
	} else {
		return n
	}
}

func (self Host) String() string {
	if self.L1I <= 0 {
		return fmt.Sprintf("%s (L1I unknown)", self.Brand)
	} else {
		return fmt.Sprintf("%s (L1I %d KiB)", self.Brand, self.L1I/1024)
	}
}

// HostThreshold is the threshold of the current host.
func HostThreshold() int {
	return Detect().Threshold()
}

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

package opts

// Options controls which loops are unrolled and how.
type Options struct {
	Target          string
	UnrollCount     int
	UnrollThreshold int
	HostThreshold   bool
	Verify          bool
}

// CanUnroll tells whether the loops of the named function should be visited.
func (self *Options) CanUnroll(name string) bool {
	return self.Target == "*" || self.Target == name
}

// Threshold returns the size limit, or 0 for unconstrained. When the host
// threshold is enabled, the smaller of both non-zero limits wins.
func (self *Options) Threshold(host int) int {
	if !self.HostThreshold || host <= 0 {
		return self.UnrollThreshold
	} else if self.UnrollThreshold == 0 || host < self.UnrollThreshold {
		return host
	} else {
		return self.UnrollThreshold
	}
}

func GetDefaultOptions() Options {
	return Options{
		Target:          UnrollTarget,
		UnrollCount:     UnrollCount,
		UnrollThreshold: UnrollThreshold,
		HostThreshold:   false,
		Verify:          UnrollVerify,
	}
}

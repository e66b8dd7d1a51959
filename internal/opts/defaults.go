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

import (
	"os"
	"strconv"
)

const (
	_DefaultUnrollCount     = 0   // pick the trip count
	_DefaultUnrollThreshold = 100 // size limit of the unrolled body
	_DefaultTarget          = "*" // every function
)

var (
	UnrollCount     = parseOrDefault("UNROLL_COUNT", _DefaultUnrollCount, 0)
	UnrollThreshold = parseOrDefault("UNROLL_THRESHOLD", _DefaultUnrollThreshold, 0)
	UnrollTarget    = stringOrDefault("UNROLL_TARGET", _DefaultTarget)
	UnrollVerify    = os.Getenv("UNROLL_VERIFY") != ""
)

func parseOrDefault(key string, def int, min int) int {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseUint(env, 0, 32); err != nil {
		panic("unroll: invalid value for " + key)
	} else if ret := int(val); ret < min {
		panic("unroll: value too small for " + key)
	} else {
		return ret
	}
}

func stringOrDefault(key string, def string) string {
	if env := os.Getenv(key); env == "" {
		return def
	} else {
		return env
	}
}

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

package unroll

import (
	"fmt"

	"github.com/cloudwego/unroll/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithTarget restricts the unroller to the named function.
//
// The special name "*" selects every function, which is the default unless
// the UNROLL_TARGET environment variable says otherwise.
func WithTarget(name string) Option {
	if name == "" {
		panic("unroll: empty target name")
	} else {
		return func(o *opts.Options) { o.Target = name }
	}
}

// WithUnrollCount sets the unroll factor.
//
// Set this option to "0" to unroll loops with a known trip count completely,
// loops with an unknown trip count are left untouched in this case.
//
// The default value of this option is "0".
func WithUnrollCount(count int) Option {
	if count < 0 {
		panic(fmt.Sprintf("unroll: invalid unroll count: %d", count))
	} else {
		return func(o *opts.Options) { o.UnrollCount = count }
	}
}

// WithUnrollThreshold sets the maximum estimated size of the unrolled loop
// body, loops that would exceed it are not unrolled. Loops that run exactly
// once are not subject to this limit.
//
// Set this option to "0" disables this limit.
//
// The default value of this option is "100".
func WithUnrollThreshold(size int) Option {
	if size < 0 {
		panic(fmt.Sprintf("unroll: invalid unroll threshold: %d", size))
	} else {
		return func(o *opts.Options) { o.UnrollThreshold = size }
	}
}

// WithHostThreshold derives another size limit from the instruction cache of
// the host CPU. The smaller one of both limits is used.
func WithHostThreshold(v bool) Option {
	return func(o *opts.Options) { o.HostThreshold = v }
}

// WithVerify checks the function after every transformation. A malformed
// result is reported as an InternalError.
func WithVerify(v bool) Option {
	return func(o *opts.Options) { o.Verify = v }
}

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
    `fmt`
)

// SyntaxError occures when failed to parse the textual IR.
type SyntaxError struct {
    Line   int
    Column int
    Reason string
}

func (self SyntaxError) Error() string {
    return fmt.Sprintf("Syntax error at line %d, column %d: %s", self.Line, self.Column, self.Reason)
}

// InvalidError occures when a function is well-formed text but breaks the SSA
// rules, such as a value that does not dominate its uses.
type InvalidError struct {
    Func   string
    Block  string
    Reason string
}

func (self InvalidError) Error() string {
    if self.Block == "" {
        return fmt.Sprintf("InvalidError(%s): %s", self.Func, self.Reason)
    } else {
        return fmt.Sprintf("InvalidError(%s, %s): %s", self.Func, self.Block, self.Reason)
    }
}

// InternalError occures when the unroller breaks its own invariants. The
// transformed functions are discarded.
type InternalError struct {
    Func   string
    Reason string
}

func (self InternalError) Error() string {
    return fmt.Sprintf("InternalError(%s): %s", self.Func, self.Reason)
}

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
    `gonum.org/v1/gonum/graph/encoding/dot`
)

// DOT renders the reachable part of the control flow graph in Graphviz
// format, one box per block with its instructions as the label.
func DOT(fn *Func) (string, error) {
    if buf, err := dot.Marshal(NewCFGraph(fn), fn.Name, "", "    "); err != nil {
        return "", err
    } else {
        return string(buf), nil
    }
}

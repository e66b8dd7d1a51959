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

// EliminateDeadCode removes pure instructions and Phi nodes without any uses
// from the given blocks, in a single backward sweep. Operands of removed
// instructions lose a use immediately, so chains of dead instructions that
// appear in reverse order are removed as well. Cycles of dead Phi nodes are
// kept. It returns the number of removed instructions.
func EliminateDeadCode(fn *Func, bbs []*BasicBlock) int {
    ret := 0
    use := fn.useCounts()

    /* sweep in reverse order */
    for i := len(bbs) - 1; i >= 0; i-- {
        bb := bbs[i]
        ins := bb.Ins

        /* remove instructions from the bottom up */
        for j := len(ins) - 1; j >= 0; j-- {
            if isTriviallyDead(ins[j], use) {
                dropUsages(ins[j], use)
                ins[j] = nil
                ret++
            }
        }

        /* then the Phi nodes */
        for j := len(bb.Phi) - 1; j >= 0; j-- {
            if p := bb.Phi[j]; use[p.R] == 0 {
                dropUsages(p, use)
                bb.Phi[j] = nil
                ret++
            }
        }

        /* compact the instructions */
        bb.Ins = bb.Ins[:0]
        for _, v := range ins {
            if v != nil {
                bb.Ins = append(bb.Ins, v)
            }
        }

        /* compact the Phi nodes */
        phi := bb.Phi
        bb.Phi = bb.Phi[:0]

        /* remove the deleted ones */
        for _, v := range phi {
            if v != nil {
                bb.Phi = append(bb.Phi, v)
            }
        }
    }

    /* all done */
    return ret
}

func isTriviallyDead(ins IrNode, use map[Value]int) bool {
    var ok bool
    var dd IrDefinitions

    /* instructions with side effects are never dead */
    if _, ok = ins.(IrImpure); ok {
        return false
    }

    /* instructions without definitions are never dead */
    if dd, ok = ins.(IrDefinitions); !ok {
        return false
    }

    /* dead if none of the definitions are used */
    for _, r := range dd.Definitions() {
        if use[*r] != 0 {
            return false
        }
    }

    /* no definitions are used */
    return true
}

func dropUsages(ins IrNode, use map[Value]int) {
    if u, ok := ins.(IrUsages); ok {
        for _, r := range u.Usages() {
            use[*r]--
        }
    }
}

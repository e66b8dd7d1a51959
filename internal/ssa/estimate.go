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

const (
    MinLoopSize = 3
)

// CostModel gives the size of a single instruction.
type CostModel interface {
    Cost(ins IrNode) uint
}

// GenericCost charges 1 for every instruction except calls.
type GenericCost struct {
    CallCost      uint
    IntrinsicCost uint
}

var DefaultCost = GenericCost {
    CallCost      : 25,
    IntrinsicCost : 2,
}

func (self GenericCost) Cost(ins IrNode) uint {
    if p, ok := ins.(*IrCall); !ok {
        return 1
    } else if p.Kind == CallIntrinsic {
        return self.IntrinsicCost
    } else {
        return self.CallCost
    }
}

// EstimateSize approximates the code size of one copy of the loop body. Phi
// nodes of the header go away once unrolled, and so do the instructions that
// only feed the terminator of their own block (typically the exit test). The
// result is never less than MinLoopSize.
func EstimateSize(l *Loop, cost CostModel) uint {
    ret := uint(0)
    use := l.Func.Uses()

    /* count every block in the loop */
    for _, bb := range l.Blocks {
        bb.Instructions(func(ins IrNode) {
            if p, ok := ins.(*IrPhi); ok && bb == l.Header {
                return
            } else if p != nil || !feedsTermOnly(bb, ins, use) {
                ret += cost.Cost(ins)
            }
        })
    }

    /* apply the lower bound */
    if ret < MinLoopSize {
        return MinLoopSize
    } else {
        return ret
    }
}

func feedsTermOnly(bb *BasicBlock, ins IrNode, use map[Value][]Use) bool {
    var ok bool
    var dd IrDefinitions

    /* instructions without results are always counted */
    if dd, ok = ins.(IrDefinitions); !ok || bb.Term == nil {
        return false
    }

    /* must have only one definition */
    defs := dd.Definitions()
    if len(defs) != 1 {
        return false
    }

    /* and that definition must be used exactly once by the terminator */
    us := use[*defs[0]]
    return len(us) == 1 && us[0].Node == IrNode(bb.Term)
}

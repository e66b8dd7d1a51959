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

// FoldBlockIntoPredecessor merges bb into its predecessor if bb has only one
// predecessor, and bb is the only successor of that predecessor. The loop
// membership and the dominator tree are updated if given. It returns the
// predecessor when the blocks are merged, or nil otherwise.
func FoldBlockIntoPredecessor(fn *Func, bb *BasicBlock, l *Loop, dt *DominatorTree) *BasicBlock {
    var ok bool
    var sw *IrJump

    /* must have a single predecessor, which is not itself */
    pred := bb.SinglePredecessor()
    if pred == nil || pred == bb {
        return nil
    }

    /* the predecessor must jump unconditionally to this block */
    if sw, ok = pred.Term.(*IrJump); !ok || sw.To != bb {
        return nil
    }

    /* Phi nodes with a single incoming value are just copies */
    for _, v := range bb.Phi {
        fn.ReplaceAllUses(v.R, v.Incoming(pred))
    }

    /* move all the instructions */
    bb.Phi = nil
    pred.Ins = append(pred.Ins, bb.Ins...)
    bb.Ins = nil

    /* move the terminator, then update the successor Phi nodes */
    tr := bb.Term
    bb.SetTerm(nil)
    pred.SetTerm(tr)

    /* update all successors references */
    for _, p := range pred.Successors() {
        p.replaceIncoming(bb, pred)
    }

    /* an anonymous predecessor inherits the name */
    if pred.Name == "" {
        pred.Name = bb.Name
    }

    /* update the loop membership */
    if l != nil {
        l.removeBlock(bb)
        if l.Latch == bb { l.Latch = pred }
    }

    /* and the dominator tree as well */
    if dt != nil && dt.Contains(bb) {
        dt.RemoveBlock(bb)
    }

    /* finally remove it from the function */
    fn.RemoveBlock(bb)
    return pred
}

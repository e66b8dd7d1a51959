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

// CloneBlock creates a detached copy of bb. Every value defined by the copy
// is freshly allocated, named after the original with suffix appended, and
// recorded in vm together with the block itself. Operands and targets are
// left untouched, the terminator is returned separately and not installed.
func CloneBlock(fn *Func, bb *BasicBlock, vm *ValueMap, suffix string, withPhi bool) (*BasicBlock, IrTerminator) {
    name := ""
    term := IrTerminator(nil)

    /* anonymous blocks stay anonymous */
    if bb.Name != "" {
        name = bb.Name + suffix
    }

    /* create the block */
    ret := fn.NewBlock(name)
    vm.Blocks[bb] = ret

    /* copy the Phi nodes if needed */
    if withPhi {
        for _, p := range bb.Phi {
            v := p.clone().(*IrPhi)
            cloneDefs(fn, v, vm, suffix)
            ret.Phi = append(ret.Phi, v)
        }
    }

    /* copy the instructions */
    for _, p := range bb.Ins {
        v := p.clone()
        cloneDefs(fn, v, vm, suffix)
        ret.Ins = append(ret.Ins, v)
    }

    /* copy the terminator */
    if bb.Term != nil {
        term = bb.Term.clone().(IrTerminator)
    }

    /* all done */
    return ret, term
}

func cloneDefs(fn *Func, ins IrNode, vm *ValueMap, suffix string) {
    if d, ok := ins.(IrDefinitions); ok {
        for _, r := range d.Definitions() {
            v := *r
            name := fn.ValueName(v)

            /* keep the value anonymous if the original is */
            if name != "" {
                name += suffix
            }

            /* allocate the new value */
            *r = fn.NewValue(name)
            vm.Values[v] = *r
        }
    }
}

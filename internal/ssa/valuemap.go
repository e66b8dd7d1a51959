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

// ValueMap maps original values and blocks to their copies. Lookups of
// unmapped keys return the key itself.
type ValueMap struct {
    Values map[Value]Value
    Blocks map[*BasicBlock]*BasicBlock
}

func NewValueMap() *ValueMap {
    return &ValueMap {
        Values: make(map[Value]Value),
        Blocks: make(map[*BasicBlock]*BasicBlock),
    }
}

func (self *ValueMap) Value(v Value) Value {
    if r, ok := self.Values[v]; ok {
        return r
    } else {
        return v
    }
}

func (self *ValueMap) Block(bb *BasicBlock) *BasicBlock {
    if r, ok := self.Blocks[bb]; ok {
        return r
    } else {
        return bb
    }
}

// Merge copies every mapping of other into this map, overwriting existing
// entries.
func (self *ValueMap) Merge(other *ValueMap) {
    for k, v := range other.Values { self.Values[k] = v }
    for k, v := range other.Blocks { self.Blocks[k] = v }
}

// Remap rewrites the operands of ins in place. Phi incoming blocks and
// terminator targets are remapped as well. Every key is looked up once, the
// mapping is never applied transitively.
func (self *ValueMap) Remap(ins IrNode) {
    switch p := ins.(type) {
        case *IrPhi: {
            v := make(map[*BasicBlock]*Value, len(p.V))
            for bb, r := range p.V { v[self.Block(bb)] = valnewref(self.Value(*r)) }
            p.V = v
            return
        }

        /* terminators with targets */
        case *IrJump: {
            p.To = self.Block(p.To)
        }

        /* conditional branches */
        case *IrBranch: {
            p.Then = self.Block(p.Then)
            p.Else = self.Block(p.Else)
        }
    }

    /* remap all the usages */
    if u, ok := ins.(IrUsages); ok {
        for _, r := range u.Usages() {
            *r = self.Value(*r)
        }
    }
}

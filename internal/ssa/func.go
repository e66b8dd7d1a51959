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
    `fmt`
    `strings`

    `github.com/bytedance/gopkg/lang/dirtmake`
)

// Func is a function in SSA form. The first block is the entry block.
type Func struct {
    Name   string
    Blocks []*BasicBlock
    names  map[Value]string
    maxv   Value
    maxb   int
}

// Use is an occurence of a value as an operand.
type Use struct {
    Block *BasicBlock
    Node  IrNode
    Slot  *Value
}

func NewFunc(name string) *Func {
    return &Func {
        Name  : name,
        names : make(map[Value]string),
    }
}

// Entry returns the entry block, or nil for an empty function.
func (self *Func) Entry() *BasicBlock {
    if len(self.Blocks) == 0 {
        return nil
    } else {
        return self.Blocks[0]
    }
}

// NewValue allocates a new value, name is optional.
func (self *Func) NewValue(name string) Value {
    self.maxv++
    self.SetValueName(self.maxv, name)
    return self.maxv
}

func (self *Func) SetValueName(v Value, name string) {
    if name == "" {
        delete(self.names, v)
    } else {
        self.names[v] = name
    }
}

// ValueName returns the name of v, or an empty string if it is anonymous.
func (self *Func) ValueName(v Value) string {
    return self.names[v]
}

func (self *Func) valueName(v Value) string {
    if name, ok := self.names[v]; ok {
        return "%" + name
    } else {
        return v.String()
    }
}

// NewBlock creates a detached block, it must be added with AppendBlock or
// InsertBlockAfter before it becomes part of the function.
func (self *Func) NewBlock(name string) *BasicBlock {
    self.maxb++
    return &BasicBlock { Id: self.maxb, Name: name }
}

// MaxBlock returns the largest block ID ever allocated.
func (self *Func) MaxBlock() int {
    return self.maxb
}

func (self *Func) indexOf(bb *BasicBlock) int {
    for i, v := range self.Blocks {
        if v == bb {
            return i
        }
    }
    return -1
}

// Contains tells whether bb belongs to the function.
func (self *Func) Contains(bb *BasicBlock) bool {
    return self.indexOf(bb) >= 0
}

func (self *Func) AppendBlock(bb *BasicBlock) {
    if self.indexOf(bb) >= 0 {
        panic(fmt.Sprintf("block %s is already in function %s", bb, self.Name))
    } else {
        self.Blocks = append(self.Blocks, bb)
    }
}

// InsertBlockAfter places bb immediately after pos in the block order.
func (self *Func) InsertBlockAfter(pos *BasicBlock, bb *BasicBlock) {
    i := self.indexOf(pos)

    /* check for position */
    if i < 0 {
        panic(fmt.Sprintf("block %s is not in function %s", pos, self.Name))
    } else if self.indexOf(bb) >= 0 {
        panic(fmt.Sprintf("block %s is already in function %s", bb, self.Name))
    }

    /* insert after the position */
    self.Blocks = append(self.Blocks, nil)
    copy(self.Blocks[i + 2:], self.Blocks[i + 1:])
    self.Blocks[i + 1] = bb
}

// RemoveBlock removes bb from the function. The block must be unreachable,
// that is, it must not have any predecessors.
func (self *Func) RemoveBlock(bb *BasicBlock) {
    i := self.indexOf(bb)

    /* check for block references */
    if i < 0 {
        panic(fmt.Sprintf("block %s is not in function %s", bb, self.Name))
    } else if len(bb.Pred) != 0 {
        panic(fmt.Sprintf("block %s is still referenced by %s", bb, bb.Pred[0]))
    }

    /* detach from successors */
    bb.SetTerm(nil)
    self.Blocks = append(self.Blocks[:i], self.Blocks[i + 1:]...)
}

// Rebuild recomputes the predecessor lists of every block from the
// terminators.
func (self *Func) Rebuild() {
    for _, bb := range self.Blocks {
        bb.Pred = nil
    }

    /* add edges from terminators */
    for _, bb := range self.Blocks {
        for _, p := range bb.Successors() {
            p.Pred = addblock(p.Pred, bb)
        }
    }
}

// Definitions maps every defined value to the block that defines it.
func (self *Func) Definitions() map[Value]*BasicBlock {
    ret := make(map[Value]*BasicBlock)
    for _, bb := range self.Blocks {
        bb.Instructions(func(ins IrNode) {
            if d, ok := ins.(IrDefinitions); ok {
                for _, r := range d.Definitions() {
                    ret[*r] = bb
                }
            }
        })
    }
    return ret
}

// DefinitionNodes maps every defined value to the instruction that defines it.
func (self *Func) DefinitionNodes() map[Value]IrNode {
    ret := make(map[Value]IrNode)
    for _, bb := range self.Blocks {
        bb.Instructions(func(ins IrNode) {
            if d, ok := ins.(IrDefinitions); ok {
                for _, r := range d.Definitions() {
                    ret[*r] = ins
                }
            }
        })
    }
    return ret
}

// Uses collects all the uses of every value.
func (self *Func) Uses() map[Value][]Use {
    ret := make(map[Value][]Use)
    for _, bb := range self.Blocks {
        bb.Instructions(func(ins IrNode) {
            if u, ok := ins.(IrUsages); ok {
                for _, r := range u.Usages() {
                    ret[*r] = append(ret[*r], Use { Block: bb, Node: ins, Slot: r })
                }
            }
        })
    }
    return ret
}

func (self *Func) useCounts() map[Value]int {
    ret := make(map[Value]int)
    for _, bb := range self.Blocks {
        bb.Instructions(func(ins IrNode) {
            if u, ok := ins.(IrUsages); ok {
                for _, r := range u.Usages() {
                    ret[*r]++
                }
            }
        })
    }
    return ret
}

// ReplaceAllUses rewrites every use of old with v, it returns the number of
// replaced operands.
func (self *Func) ReplaceAllUses(old Value, v Value) (n int) {
    for _, bb := range self.Blocks {
        bb.Instructions(func(ins IrNode) {
            if u, ok := ins.(IrUsages); ok {
                for _, r := range u.Usages() {
                    if *r == old {
                        *r = v
                        n++
                    }
                }
            }
        })
    }
    return
}

// NumArgs returns the number of arguments used by the function.
func (self *Func) NumArgs() (n int) {
    for _, bb := range self.Blocks {
        for _, ins := range bb.Ins {
            if p, ok := ins.(*IrLoadArg); ok && p.Id >= n {
                n = p.Id + 1
            }
        }
    }
    return
}

// String prints the function in the textual IR syntax.
func (self *Func) String() string {
    nb := 0
    bbs := make([]string, 0, len(self.Blocks))

    /* dump every block */
    for _, bb := range self.Blocks {
        buf := self.blockText(bb)
        nb += len(buf)
        bbs = append(bbs, buf)
    }

    /* allocate the buffer without zeroing, it will be overwritten entirely */
    hdr := fmt.Sprintf("func %s {\n", self.Name)
    buf := dirtmake.Bytes(0, nb + len(hdr) + len(bbs) + 2)
    buf = append(buf, hdr...)

    /* join the blocks with empty lines */
    for i, v := range bbs {
        if i != 0 { buf = append(buf, '\n') }
        buf = append(buf, v...)
    }

    /* close the function */
    buf = append(buf, "}\n"...)
    return string(buf)
}

func (self *Func) blockText(bb *BasicBlock) string {
    ret := []string { bb.Label() + ":" }
    bb.Instructions(func(ins IrNode) { ret = append(ret, "    " + ins.text(self)) })
    return strings.Join(ret, "\n") + "\n"
}

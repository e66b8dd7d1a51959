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
    `sort`
    `strings`
)

// Builder constructs a function block by block. Values and labels are
// referred to by name and may be used before they are defined. Misuse is a
// programming error and panics.
type Builder struct {
    fn    *Func
    bb    *BasicBlock
    vals  map[string]Value
    defs  map[string]bool
    refs  map[string]*BasicBlock
    pends map[string]*BasicBlock
}

func CreateBuilder(name string) *Builder {
    return &Builder {
        fn    : NewFunc(name),
        vals  : make(map[string]Value),
        defs  : make(map[string]bool),
        refs  : make(map[string]*BasicBlock),
        pends : make(map[string]*BasicBlock),
    }
}

func (self *Builder) block(name string) *BasicBlock {
    if bb, ok := self.refs[name]; ok {
        return bb
    } else if bb, ok = self.pends[name]; ok {
        return bb
    } else {
        bb = self.fn.NewBlock(name)
        self.pends[name] = bb
        return bb
    }
}

func (self *Builder) use(name string) Value {
    if v, ok := self.vals[name]; ok {
        return v
    } else {
        v = self.fn.NewValue(name)
        self.vals[name] = v
        return v
    }
}

func (self *Builder) def(name string) Value {
    if self.defs[name] {
        panic("value %" + name + " has already been defined")
    } else {
        self.defs[name] = true
        return self.use(name)
    }
}

func (self *Builder) emit(ins IrNode) {
    if self.bb == nil {
        panic("instruction outside of any block: " + ins.String())
    } else if self.bb.Term != nil {
        panic(fmt.Sprintf("block %s has already been terminated", self.bb))
    } else if p, ok := ins.(*IrPhi); !ok {
        self.bb.Ins = append(self.bb.Ins, ins)
    } else if len(self.bb.Ins) != 0 {
        panic(fmt.Sprintf("phi node after instructions in block %s", self.bb))
    } else {
        self.bb.Phi = append(self.bb.Phi, p)
    }
}

func (self *Builder) term(tr IrTerminator) {
    if self.bb == nil {
        panic("terminator outside of any block: " + tr.String())
    } else if self.bb.Term != nil {
        panic(fmt.Sprintf("block %s has already been terminated", self.bb))
    } else {
        self.bb.Term = tr
    }
}

// Label starts a new block. The previous block must have been terminated.
func (self *Builder) Label(name string) {
    if self.bb != nil && self.bb.Term == nil {
        panic(fmt.Sprintf("block %s is not terminated", self.bb))
    } else if _, ok := self.refs[name]; ok {
        panic("label " + name + " has already been linked")
    }

    /* resolve the label */
    self.bb = self.block(name)
    self.refs[name] = self.bb

    /* add to function */
    delete(self.pends, name)
    self.fn.AppendBlock(self.bb)
}

func (self *Builder) Const(r string, v int64) {
    self.emit(&IrConstInt { R: self.def(r), V: v })
}

func (self *Builder) Arg(r string, id int) {
    self.emit(&IrLoadArg { R: self.def(r), Id: id })
}

func (self *Builder) Unary(op IrUnaryOp, r string, v string) {
    self.emit(&IrUnaryExpr { R: self.def(r), V: self.use(v), Op: op })
}

func (self *Builder) Binary(op IrBinaryOp, r string, x string, y string) {
    self.emit(&IrBinaryExpr { R: self.def(r), X: self.use(x), Y: self.use(y), Op: op })
}

// Op emits a binary operation by its textual name, such as "add" or "lt".
func (self *Builder) Op(op string, r string, x string, y string) {
    if v, ok := LookupBinaryOp(op); !ok {
        panic("invalid binary operator: " + op)
    } else {
        self.Binary(v, r, x, y)
    }
}

func (self *Builder) Load(r string, mem string) {
    self.emit(&IrLoad { R: self.def(r), Mem: self.use(mem) })
}

func (self *Builder) Store(v string, mem string) {
    self.emit(&IrStore { V: self.use(v), Mem: self.use(mem) })
}

// Call emits a call to fn, r may be empty to discard the result.
func (self *Builder) Call(r string, fn string, args ...string) {
    self.call(CallNormal, r, fn, args)
}

// Intrinsic emits a call to an intrinsic function, which is cheaper than
// ordinary calls.
func (self *Builder) Intrinsic(r string, fn string, args ...string) {
    self.call(CallIntrinsic, r, fn, args)
}

func (self *Builder) call(kind CallKind, r string, fn string, args []string) {
    p := &IrCall { Fn: fn, Kind: kind }

    /* add all the arguments */
    for _, v := range args {
        p.In = append(p.In, self.use(v))
    }

    /* the result, if any */
    if r != "" {
        p.Out = self.def(r)
    }

    /* add to block */
    self.emit(p)
}

// Phi emits a Phi node, the incoming values are given as pairs of label and
// value names.
func (self *Builder) Phi(r string, incoming ...string) {
    if len(incoming) % 2 != 0 {
        panic("phi incoming values must be pairs of label and value")
    }

    /* build the Phi node */
    p := &IrPhi { R: self.def(r), V: make(map[*BasicBlock]*Value) }
    for i := 0; i < len(incoming); i += 2 {
        p.SetIncoming(self.block(incoming[i]), self.use(incoming[i + 1]))
    }

    /* add to block */
    self.emit(p)
}

func (self *Builder) Jump(to string) {
    self.term(&IrJump { To: self.block(to) })
}

func (self *Builder) Branch(cond string, then string, other string) {
    self.term(&IrBranch { Cond: self.use(cond), Then: self.block(then), Else: self.block(other) })
}

func (self *Builder) Ret(vals ...string) {
    p := &IrReturn { R: make([]Value, 0, len(vals)) }
    for _, v := range vals { p.R = append(p.R, self.use(v)) }
    self.term(p)
}

// Build resolves all references and returns the function.
func (self *Builder) Build() *Func {
    var names []string

    /* check for unresolved labels */
    for name := range self.pends {
        names = append(names, name)
    }

    /* all labels must be linked */
    if len(names) != 0 {
        sort.Strings(names)
        panic("labels are not fully resolved: " + strings.Join(names, ", "))
    }

    /* check for undefined values */
    for name := range self.vals {
        if !self.defs[name] {
            names = append(names, "%" + name)
        }
    }

    /* all values must be defined */
    if len(names) != 0 {
        sort.Strings(names)
        panic("values are not defined: " + strings.Join(names, ", "))
    }

    /* the last block must be terminated */
    if self.bb == nil || self.bb.Term == nil {
        panic("function " + self.fn.Name + " is not terminated")
    }

    /* build the predecessor lists */
    self.fn.Rebuild()
    return self.fn
}

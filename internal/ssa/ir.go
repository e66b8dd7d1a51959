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
    `strconv`
    `strings`
)

// Value is a handle of an SSA value, it is only meaningful within the Func
// that allocated it. The zero Value is never defined.
type Value int

const (
    Vz Value = 0
)

func (self Value) String() string {
    return "%" + strconv.Itoa(int(self))
}

type _Namer interface {
    valueName(v Value) string
}

func vname(nm _Namer, v Value) string {
    if nm == nil {
        return v.String()
    } else {
        return nm.valueName(v)
    }
}

type IrNode interface {
    fmt.Stringer
    irnode()
    clone() IrNode
    text(nm _Namer) string
}

func (*IrPhi)        irnode() {}
func (*IrJump)       irnode() {}
func (*IrBranch)     irnode() {}
func (*IrReturn)     irnode() {}
func (*IrConstInt)   irnode() {}
func (*IrLoadArg)    irnode() {}
func (*IrUnaryExpr)  irnode() {}
func (*IrBinaryExpr) irnode() {}
func (*IrLoad)       irnode() {}
func (*IrStore)      irnode() {}
func (*IrCall)       irnode() {}

type IrUsages interface {
    IrNode
    Usages() []*Value
}

type IrDefinitions interface {
    IrNode
    Definitions() []*Value
}

// IrImpure marks instructions with side effects, they are never removed even
// if their definitions are not used.
type IrImpure interface {
    IrNode
    irimpure()
}

func (*IrStore) irimpure() {}
func (*IrCall)  irimpure() {}

type IrTerminator interface {
    IrNode
    Successors() []*BasicBlock
    irterminator()
}

func (*IrJump)   irterminator() {}
func (*IrBranch) irterminator() {}
func (*IrReturn) irterminator() {}

type IrPhi struct {
    R Value
    V map[*BasicBlock]*Value
}

// Incoming returns the value flowing in from bb, it panics if the Phi node
// does not have an entry for bb.
func (self *IrPhi) Incoming(bb *BasicBlock) Value {
    if v, ok := self.V[bb]; !ok {
        panic(fmt.Sprintf("phi %s has no incoming value from %s", self.R, bb))
    } else {
        return *v
    }
}

func (self *IrPhi) SetIncoming(bb *BasicBlock, v Value) {
    if self.V == nil {
        self.V = make(map[*BasicBlock]*Value)
    }
    self.V[bb] = valnewref(v)
}

func (self *IrPhi) RemoveIncoming(bb *BasicBlock) (Value, bool) {
    if v, ok := self.V[bb]; !ok {
        return Vz, false
    } else {
        delete(self.V, bb)
        return *v, true
    }
}

// Blocks returns the incoming blocks sorted by block ID.
func (self *IrPhi) Blocks() []*BasicBlock {
    ret := make([]*BasicBlock, 0, len(self.V))
    for bb := range self.V { ret = append(ret, bb) }
    sort.Slice(ret, func(i int, j int) bool { return ret[i].Id < ret[j].Id })
    return ret
}

func (self *IrPhi) String() string {
    return self.text(nil)
}

func (self *IrPhi) text(nm _Namer) string {
    bbs := self.Blocks()
    ret := make([]string, 0, len(bbs))

    /* dump each path, ordered by block ID */
    for _, bb := range bbs {
        ret = append(ret, fmt.Sprintf("%s: %s", bb.Label(), vname(nm, *self.V[bb])))
    }

    /* join them together */
    return fmt.Sprintf(
        "%s = phi [%s]",
        vname(nm, self.R),
        strings.Join(ret, ", "),
    )
}

func (self *IrPhi) clone() IrNode {
    ret := &IrPhi{R: self.R, V: make(map[*BasicBlock]*Value, len(self.V))}
    for bb, v := range self.V { ret.V[bb] = valnewref(*v) }
    return ret
}

func (self *IrPhi) Usages() (r []*Value) {
    r = make([]*Value, 0, len(self.V))
    for _, bb := range self.Blocks() { r = append(r, self.V[bb]) }
    return
}

func (self *IrPhi) Definitions() []*Value {
    return []*Value { &self.R }
}

type IrJump struct {
    To *BasicBlock
}

func (self *IrJump) String() string {
    return self.text(nil)
}

func (self *IrJump) text(_ _Namer) string {
    return "goto " + self.To.Label()
}

func (self *IrJump) clone() IrNode {
    return &IrJump{To: self.To}
}

func (self *IrJump) Successors() []*BasicBlock {
    return []*BasicBlock { self.To }
}

// IrBranch is the two-way conditional branch, control goes to Then if Cond is
// not zero, and to Else otherwise.
type IrBranch struct {
    Cond Value
    Then *BasicBlock
    Else *BasicBlock
}

func (self *IrBranch) String() string {
    return self.text(nil)
}

func (self *IrBranch) text(nm _Namer) string {
    return fmt.Sprintf("br %s, %s, %s", vname(nm, self.Cond), self.Then.Label(), self.Else.Label())
}

func (self *IrBranch) clone() IrNode {
    return &IrBranch{Cond: self.Cond, Then: self.Then, Else: self.Else}
}

func (self *IrBranch) Usages() []*Value {
    return []*Value { &self.Cond }
}

func (self *IrBranch) Successors() []*BasicBlock {
    return []*BasicBlock { self.Then, self.Else }
}

type IrReturn struct {
    R []Value
}

func (self *IrReturn) String() string {
    return self.text(nil)
}

func (self *IrReturn) text(nm _Namer) string {
    nb := len(self.R)
    ret := make([]string, 0, nb)

    /* no return values */
    if nb == 0 {
        return "ret"
    }

    /* dump values */
    for _, r := range self.R {
        ret = append(ret, vname(nm, r))
    }

    /* join them together */
    return "ret " + strings.Join(ret, ", ")
}

func (self *IrReturn) clone() IrNode {
    return &IrReturn{R: append([]Value(nil), self.R...)}
}

func (self *IrReturn) Usages() []*Value {
    return valsliceref(self.R)
}

func (self *IrReturn) Successors() []*BasicBlock {
    return nil
}

type IrConstInt struct {
    R Value
    V int64
}

func (self *IrConstInt) String() string {
    return self.text(nil)
}

func (self *IrConstInt) text(nm _Namer) string {
    return fmt.Sprintf("%s = const %d", vname(nm, self.R), self.V)
}

func (self *IrConstInt) clone() IrNode {
    return &IrConstInt{R: self.R, V: self.V}
}

func (self *IrConstInt) Definitions() []*Value {
    return []*Value { &self.R }
}

type IrLoadArg struct {
    R  Value
    Id int
}

func (self *IrLoadArg) String() string {
    return self.text(nil)
}

func (self *IrLoadArg) text(nm _Namer) string {
    return fmt.Sprintf("%s = arg %d", vname(nm, self.R), self.Id)
}

func (self *IrLoadArg) clone() IrNode {
    return &IrLoadArg{R: self.R, Id: self.Id}
}

func (self *IrLoadArg) Definitions() []*Value {
    return []*Value { &self.R }
}

type (
    IrUnaryOp  uint8
    IrBinaryOp uint8
)

const (
    IrOpNegate IrUnaryOp = iota
    IrOpNot
)

const (
    IrOpAdd IrBinaryOp = iota
    IrOpSub
    IrOpMul
    IrOpDiv
    IrOpRem
    IrOpAnd
    IrOpOr
    IrOpXor
    IrOpShl
    IrOpShr
    IrCmpEq
    IrCmpNe
    IrCmpLt
    IrCmpLe
    IrCmpGt
    IrCmpGe
)

var _UnaryOpNames = [...]string {
    IrOpNegate : "neg",
    IrOpNot    : "not",
}

var _BinaryOpNames = [...]string {
    IrOpAdd : "add",
    IrOpSub : "sub",
    IrOpMul : "mul",
    IrOpDiv : "div",
    IrOpRem : "rem",
    IrOpAnd : "and",
    IrOpOr  : "or",
    IrOpXor : "xor",
    IrOpShl : "shl",
    IrOpShr : "shr",
    IrCmpEq : "eq",
    IrCmpNe : "ne",
    IrCmpLt : "lt",
    IrCmpLe : "le",
    IrCmpGt : "gt",
    IrCmpGe : "ge",
}

func (self IrUnaryOp) String() string {
    if int(self) < len(_UnaryOpNames) {
        return _UnaryOpNames[self]
    } else {
        panic("unreachable")
    }
}

func (self IrBinaryOp) String() string {
    if int(self) < len(_BinaryOpNames) {
        return _BinaryOpNames[self]
    } else {
        panic("unreachable")
    }
}

// IsCompare tells whether the operator produces a boolean (0 or 1).
func (self IrBinaryOp) IsCompare() bool {
    return self >= IrCmpEq && self <= IrCmpGe
}

// Swapped returns the comparison that gives the same result with the operands
// exchanged.
func (self IrBinaryOp) Swapped() IrBinaryOp {
    switch self {
        case IrCmpLt : return IrCmpGt
        case IrCmpLe : return IrCmpGe
        case IrCmpGt : return IrCmpLt
        case IrCmpGe : return IrCmpLe
        default      : return self
    }
}

// LookupUnaryOp finds the unary operator by its textual name.
func LookupUnaryOp(name string) (IrUnaryOp, bool) {
    for i, v := range _UnaryOpNames {
        if v == name {
            return IrUnaryOp(i), true
        }
    }
    return 0, false
}

// LookupBinaryOp finds the binary operator by its textual name.
func LookupBinaryOp(name string) (IrBinaryOp, bool) {
    for i, v := range _BinaryOpNames {
        if v == name {
            return IrBinaryOp(i), true
        }
    }
    return 0, false
}

func (self IrUnaryOp) Eval(v int64) int64 {
    switch self {
        case IrOpNegate : return -v
        case IrOpNot    : return ^v
        default         : panic("unreachable")
    }
}

// Eval computes the operator, ok is false when the result is undefined
// (division by zero).
func (self IrBinaryOp) Eval(x int64, y int64) (v int64, ok bool) {
    switch self {
        case IrOpAdd : return x + y, true
        case IrOpSub : return x - y, true
        case IrOpMul : return x * y, true
        case IrOpAnd : return x & y, true
        case IrOpOr  : return x | y, true
        case IrOpXor : return x ^ y, true
        case IrOpShl : return x << uint64(y & 63), true
        case IrOpShr : return x >> uint64(y & 63), true
        case IrCmpEq : return b2i(x == y), true
        case IrCmpNe : return b2i(x != y), true
        case IrCmpLt : return b2i(x < y), true
        case IrCmpLe : return b2i(x <= y), true
        case IrCmpGt : return b2i(x > y), true
        case IrCmpGe : return b2i(x >= y), true
        case IrOpDiv : if y == 0 { return 0, false } else { return x / y, true }
        case IrOpRem : if y == 0 { return 0, false } else { return x % y, true }
        default      : panic("unreachable")
    }
}

type IrUnaryExpr struct {
    R  Value
    V  Value
    Op IrUnaryOp
}

func (self *IrUnaryExpr) String() string {
    return self.text(nil)
}

func (self *IrUnaryExpr) text(nm _Namer) string {
    return fmt.Sprintf("%s = %s %s", vname(nm, self.R), self.Op, vname(nm, self.V))
}

func (self *IrUnaryExpr) clone() IrNode {
    return &IrUnaryExpr{R: self.R, V: self.V, Op: self.Op}
}

func (self *IrUnaryExpr) Usages() []*Value {
    return []*Value { &self.V }
}

func (self *IrUnaryExpr) Definitions() []*Value {
    return []*Value { &self.R }
}

type IrBinaryExpr struct {
    R  Value
    X  Value
    Y  Value
    Op IrBinaryOp
}

func (self *IrBinaryExpr) String() string {
    return self.text(nil)
}

func (self *IrBinaryExpr) text(nm _Namer) string {
    return fmt.Sprintf("%s = %s %s, %s", vname(nm, self.R), self.Op, vname(nm, self.X), vname(nm, self.Y))
}

func (self *IrBinaryExpr) clone() IrNode {
    return &IrBinaryExpr{R: self.R, X: self.X, Y: self.Y, Op: self.Op}
}

func (self *IrBinaryExpr) Usages() []*Value {
    return []*Value { &self.X, &self.Y }
}

func (self *IrBinaryExpr) Definitions() []*Value {
    return []*Value { &self.R }
}

type IrLoad struct {
    R   Value
    Mem Value
}

func (self *IrLoad) String() string {
    return self.text(nil)
}

func (self *IrLoad) text(nm _Namer) string {
    return fmt.Sprintf("%s = load %s", vname(nm, self.R), vname(nm, self.Mem))
}

func (self *IrLoad) clone() IrNode {
    return &IrLoad{R: self.R, Mem: self.Mem}
}

func (self *IrLoad) Usages() []*Value {
    return []*Value { &self.Mem }
}

func (self *IrLoad) Definitions() []*Value {
    return []*Value { &self.R }
}

type IrStore struct {
    V   Value
    Mem Value
}

func (self *IrStore) String() string {
    return self.text(nil)
}

func (self *IrStore) text(nm _Namer) string {
    return fmt.Sprintf("store %s, %s", vname(nm, self.V), vname(nm, self.Mem))
}

func (self *IrStore) clone() IrNode {
    return &IrStore{V: self.V, Mem: self.Mem}
}

func (self *IrStore) Usages() []*Value {
    return []*Value { &self.V, &self.Mem }
}

type CallKind uint8

const (
    CallNormal CallKind = iota
    CallIntrinsic
)

func (self CallKind) String() string {
    switch self {
        case CallNormal    : return "call"
        case CallIntrinsic : return "intrinsic"
        default            : panic("unreachable")
    }
}

// IrCall calls an external function by name. Out is Vz when the result is
// discarded.
type IrCall struct {
    Fn   string
    In   []Value
    Out  Value
    Kind CallKind
}

func (self *IrCall) String() string {
    return self.text(nil)
}

func (self *IrCall) text(nm _Namer) string {
    in := make([]string, 0, len(self.In))
    for _, v := range self.In { in = append(in, vname(nm, v)) }

    /* build the call expression */
    ret := fmt.Sprintf("%s @%s(%s)", self.Kind, self.Fn, strings.Join(in, ", "))

    /* add the receiver if any */
    if self.Out == Vz {
        return ret
    } else {
        return vname(nm, self.Out) + " = " + ret
    }
}

func (self *IrCall) clone() IrNode {
    return &IrCall{Fn: self.Fn, In: append([]Value(nil), self.In...), Out: self.Out, Kind: self.Kind}
}

func (self *IrCall) Usages() []*Value {
    return valsliceref(self.In)
}

func (self *IrCall) Definitions() []*Value {
    if self.Out == Vz {
        return nil
    } else {
        return []*Value { &self.Out }
    }
}

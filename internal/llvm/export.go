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

package llvm

import (
    `fmt`

    `github.com/cloudwego/unroll/internal/ssa`
    `github.com/llir/llvm/ir`
    `github.com/llir/llvm/ir/constant`
    `github.com/llir/llvm/ir/enum`
    `github.com/llir/llvm/ir/types`
    `github.com/llir/llvm/ir/value`
)

var _CmpPreds = map[ssa.IrBinaryOp]enum.IPred {
    ssa.IrCmpEq : enum.IPredEQ,
    ssa.IrCmpNe : enum.IPredNE,
    ssa.IrCmpLt : enum.IPredSLT,
    ssa.IrCmpLe : enum.IPredSLE,
    ssa.IrCmpGt : enum.IPredSGT,
    ssa.IrCmpGe : enum.IPredSGE,
}

var (
    _I64Ptr = types.NewPointer(types.I64)
    _Zero   = constant.NewInt(types.I64, 0)
    _AllOne = constant.NewInt(types.I64, -1)
)

type _Patch struct {
    inc *ir.Incoming
    val ssa.Value
}

type _Exporter struct {
    fn     *ssa.Func
    mod    *ir.Module
    out    *ir.Func
    vals   map[ssa.Value]value.Value
    blocks map[*ssa.BasicBlock]*ir.Block
    funcs  map[string]*ir.Func
    patch  []_Patch
    nret   int
}

// Export translates the functions into a single LLVM module. Every value is an
// i64, memory addresses are converted to i64 pointers on access, and external
// calls are declared with one i64 parameter per argument.
func Export(fns ...*ssa.Func) (*ir.Module, error) {
    mod := ir.NewModule()
    funcs := make(map[string]*ir.Func)

    /* translate every function */
    for _, fn := range fns {
        p := &_Exporter {
            fn     : fn,
            mod    : mod,
            funcs  : funcs,
            nret   : -1,
            vals   : make(map[ssa.Value]value.Value),
            blocks : make(map[*ssa.BasicBlock]*ir.Block),
        }

        /* export the function */
        if err := p.export(); err != nil {
            return nil, fmt.Errorf("llvm: cannot export function %s: %w", fn.Name, err)
        }
    }

    /* all done */
    return mod, nil
}

// ExportString is like Export but returns the textual LLVM assembly.
func ExportString(fns ...*ssa.Func) (string, error) {
    if mod, err := Export(fns...); err != nil {
        return "", err
    } else {
        return mod.String(), nil
    }
}

func (self *_Exporter) export() error {
    bbs := self.fn.ReversePostOrder()
    args := make([]*ir.Param, self.fn.NumArgs())

    /* must have an entry block */
    if len(bbs) == 0 {
        return fmt.Errorf("function has no blocks")
    }

    /* every argument is an i64 */
    for i := range args {
        args[i] = ir.NewParam(fmt.Sprintf("arg%d", i), types.I64)
    }

    /* declare the function, the return type is fixed later */
    if f, ok := self.funcs[self.fn.Name]; ok && f.Blocks != nil {
        return fmt.Errorf("function is defined more than once")
    } else if ok {
        return fmt.Errorf("function is also called as an external function")
    } else {
        self.out = self.mod.NewFunc(self.fn.Name, types.Void, args...)
        self.funcs[self.fn.Name] = self.out
    }

    /* create all the blocks in advance */
    for _, bb := range bbs {
        self.blocks[bb] = self.out.NewBlock(bb.Label())
    }

    /* translate every block */
    for _, bb := range bbs {
        if err := self.block(bb); err != nil {
            return err
        }
    }

    /* resolve the incoming values of Phi nodes */
    for _, p := range self.patch {
        if v, err := self.value(p.val); err != nil {
            return err
        } else {
            p.inc.X = v
        }
    }

    /* all done */
    return nil
}

func (self *_Exporter) value(v ssa.Value) (value.Value, error) {
    if r, ok := self.vals[v]; ok {
        return r, nil
    } else {
        return nil, fmt.Errorf("value %s is used before definition", self.name(v))
    }
}

func (self *_Exporter) values(vs []ssa.Value) ([]value.Value, error) {
    ret := make([]value.Value, 0, len(vs))
    for _, v := range vs {
        if r, err := self.value(v); err != nil {
            return nil, err
        } else {
            ret = append(ret, r)
        }
    }
    return ret, nil
}

func (self *_Exporter) name(v ssa.Value) string {
    if s := self.fn.ValueName(v); s != "" {
        return "%" + s
    } else {
        return v.String()
    }
}

type _Named interface {
    value.Value
    SetName(name string)
}

func (self *_Exporter) define(v ssa.Value, r value.Value) {
    if p, ok := r.(_Named); ok {
        if s := self.fn.ValueName(v); s != "" {
            p.SetName(s)
        }
    }
    self.vals[v] = r
}

func (self *_Exporter) block(bb *ssa.BasicBlock) error {
    out := self.blocks[bb]

    /* Phi nodes, incoming values are resolved later */
    for _, p := range bb.Phi {
        var incs []*ir.Incoming
        for _, pred := range p.Blocks() {
            if b, ok := self.blocks[pred]; ok {
                inc := ir.NewIncoming(constant.NewUndef(types.I64), b)
                incs = append(incs, inc)
                self.patch = append(self.patch, _Patch { inc: inc, val: *p.V[pred] })
            }
        }
        self.define(p.R, out.NewPhi(incs...))
    }

    /* ordinary instructions */
    for _, ins := range bb.Ins {
        if err := self.instr(out, ins); err != nil {
            return fmt.Errorf("%s: %w", ins, err)
        }
    }

    /* the terminator */
    if err := self.term(out, bb.Term); err != nil {
        return fmt.Errorf("%s: %w", bb.Term, err)
    } else {
        return nil
    }
}

func (self *_Exporter) instr(bb *ir.Block, ins ssa.IrNode) error {
    switch p := ins.(type) {
        case *ssa.IrConstInt   : self.vals[p.R] = constant.NewInt(types.I64, p.V)
        case *ssa.IrLoadArg    : self.vals[p.R] = self.out.Params[p.Id]
        case *ssa.IrUnaryExpr  : return self.unary(bb, p)
        case *ssa.IrBinaryExpr : return self.binary(bb, p)
        case *ssa.IrLoad       : return self.load(bb, p)
        case *ssa.IrStore      : return self.store(bb, p)
        case *ssa.IrCall       : return self.call(bb, p)
        default                : return fmt.Errorf("unsupported instruction")
    }
    return nil
}

func (self *_Exporter) unary(bb *ir.Block, p *ssa.IrUnaryExpr) error {
    v, err := self.value(p.V)
    if err != nil {
        return err
    }

    /* there are no unary instructions in LLVM */
    switch p.Op {
        case ssa.IrOpNegate : self.define(p.R, bb.NewSub(_Zero, v))
        case ssa.IrOpNot    : self.define(p.R, bb.NewXor(v, _AllOne))
        default             : panic("unreachable")
    }
    return nil
}

func (self *_Exporter) binary(bb *ir.Block, p *ssa.IrBinaryExpr) error {
    var x value.Value
    var y value.Value
    var err error

    /* load both operands */
    if x, err = self.value(p.X); err != nil { return err }
    if y, err = self.value(p.Y); err != nil { return err }

    /* comparisons produce an i1, which is widened to i64 */
    if pred, ok := _CmpPreds[p.Op]; ok {
        self.define(p.R, bb.NewZExt(bb.NewICmp(pred, x, y), types.I64))
        return nil
    }

    /* arithmetic operators */
    switch p.Op {
        case ssa.IrOpAdd : self.define(p.R, bb.NewAdd(x, y))
        case ssa.IrOpSub : self.define(p.R, bb.NewSub(x, y))
        case ssa.IrOpMul : self.define(p.R, bb.NewMul(x, y))
        case ssa.IrOpDiv : self.define(p.R, bb.NewSDiv(x, y))
        case ssa.IrOpRem : self.define(p.R, bb.NewSRem(x, y))
        case ssa.IrOpAnd : self.define(p.R, bb.NewAnd(x, y))
        case ssa.IrOpOr  : self.define(p.R, bb.NewOr(x, y))
        case ssa.IrOpXor : self.define(p.R, bb.NewXor(x, y))
        case ssa.IrOpShl : self.define(p.R, bb.NewShl(x, y))
        case ssa.IrOpShr : self.define(p.R, bb.NewAShr(x, y))
        default          : panic("unreachable")
    }
    return nil
}

func (self *_Exporter) load(bb *ir.Block, p *ssa.IrLoad) error {
    if mem, err := self.value(p.Mem); err != nil {
        return err
    } else {
        self.define(p.R, bb.NewLoad(types.I64, bb.NewIntToPtr(mem, _I64Ptr)))
        return nil
    }
}

func (self *_Exporter) store(bb *ir.Block, p *ssa.IrStore) error {
    var v value.Value
    var mem value.Value
    var err error

    /* load both operands */
    if v, err = self.value(p.V); err != nil { return err }
    if mem, err = self.value(p.Mem); err != nil { return err }

    /* store to the converted address */
    bb.NewStore(v, bb.NewIntToPtr(mem, _I64Ptr))
    return nil
}

func (self *_Exporter) callee(name string, argc int) (*ir.Func, error) {
    if fn, ok := self.funcs[name]; !ok {
        params := make([]*ir.Param, argc)
        for i := range params { params[i] = ir.NewParam("", types.I64) }
        fn = self.mod.NewFunc(name, types.I64, params...)
        self.funcs[name] = fn
        return fn, nil
    } else if len(fn.Params) != argc {
        return nil, fmt.Errorf("function @%s is called with %d arguments, but it takes %d", name, argc, len(fn.Params))
    } else if fn.Sig.RetType != types.I64 {
        return nil, fmt.Errorf("function @%s does not return a single value", name)
    } else {
        return fn, nil
    }
}

func (self *_Exporter) call(bb *ir.Block, p *ssa.IrCall) error {
    args, err := self.values(p.In)
    if err != nil {
        return err
    }

    /* find or declare the callee */
    fn, err := self.callee(p.Fn, len(args))
    if err != nil {
        return err
    }

    /* discarded results are left anonymous */
    if ret := bb.NewCall(fn, args...); p.Out != ssa.Vz {
        self.define(p.Out, ret)
    }
    return nil
}

func (self *_Exporter) term(bb *ir.Block, term ssa.IrTerminator) error {
    switch p := term.(type) {
        case *ssa.IrJump   : bb.NewBr(self.blocks[p.To])
        case *ssa.IrBranch : return self.branch(bb, p)
        case *ssa.IrReturn : return self.ret(bb, p)
        default            : return fmt.Errorf("unsupported terminator")
    }
    return nil
}

func (self *_Exporter) branch(bb *ir.Block, p *ssa.IrBranch) error {
    if cond, err := self.value(p.Cond); err != nil {
        return err
    } else {
        bb.NewCondBr(bb.NewICmp(enum.IPredNE, cond, _Zero), self.blocks[p.Then], self.blocks[p.Else])
        return nil
    }
}

func (self *_Exporter) ret(bb *ir.Block, p *ssa.IrReturn) error {
    vals, err := self.values(p.R)
    if err != nil {
        return err
    }

    /* every return must agree on the number of values */
    if self.nret < 0 {
        self.setReturnType(len(vals))
    } else if self.nret != len(vals) {
        return fmt.Errorf("returns %d values, expected %d", len(vals), self.nret)
    }

    /* void, scalar or aggregate */
    switch len(vals) {
        case 0  : bb.NewRet(nil)
        case 1  : bb.NewRet(vals[0])
        default : bb.NewRet(self.aggregate(bb, vals))
    }
    return nil
}

func (self *_Exporter) setReturnType(n int) {
    self.nret = n
    switch n {
        case 0  : self.out.Sig.RetType = types.Void
        case 1  : self.out.Sig.RetType = types.I64
        default : self.out.Sig.RetType = self.tuple(n)
    }
}

func (self *_Exporter) tuple(n int) *types.StructType {
    fields := make([]types.Type, n)
    for i := range fields { fields[i] = types.I64 }
    return types.NewStruct(fields...)
}

func (self *_Exporter) aggregate(bb *ir.Block, vals []value.Value) value.Value {
    var ret value.Value = constant.NewUndef(self.out.Sig.RetType)
    for i, v := range vals {
        ret = bb.NewInsertValue(ret, v, uint64(i))
    }
    return ret
}

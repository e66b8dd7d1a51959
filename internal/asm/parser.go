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
package asm

import (
    `errors`
    `fmt`
    `os`
    `strings`

    `github.com/alecthomas/participle/v2`
    `github.com/alecthomas/participle/v2/lexer`
    `github.com/cloudwego/unroll/internal/ssa`
)

var parser = buildParser()

func buildParser() *participle.Parser[Module] {
    p, err := participle.Build[Module](
        participle.Lexer(Lexer),
        participle.Elide("Whitespace", "Comment"),
        participle.UseLookahead(3),
    )
    if err != nil {
        panic(fmt.Errorf("asm: failed to build parser: %w", err))
    }
    return p
}

// Error is a syntax or semantic error in the textual IR.
type Error struct {
    Pos    lexer.Position
    Reason string
}

func (self Error) Error() string {
    return fmt.Sprintf("%s: %s", self.Pos, self.Reason)
}

func errorf(pos lexer.Position, format string, args ...interface{}) Error {
    return Error { Pos: pos, Reason: fmt.Sprintf(format, args...) }
}

// Parse reads every function in src. The file name is only used for error
// positions.
func Parse(file string, src string) ([]*ssa.Func, error) {
    mod, err := parser.ParseString(file, src)
    if err != nil {
        return nil, convertError(err)
    }

    /* check and lower each function */
    ret := make([]*ssa.Func, 0, len(mod.Funcs))
    seen := make(map[string]bool, len(mod.Funcs))

    /* function names must be unique */
    for _, fn := range mod.Funcs {
        if seen[fn.Name] {
            return nil, errorf(fn.Pos, "duplicated function %s", fn.Name)
        }

        /* check before building, the builder panics on invalid input */
        seen[fn.Name] = true
        if err = validate(fn); err != nil {
            return nil, err
        }

        /* lower to the SSA form */
        ret = append(ret, lower(fn))
    }

    /* all done */
    return ret, nil
}

// ParseFunc reads exactly one function.
func ParseFunc(src string) (*ssa.Func, error) {
    if fns, err := Parse("<input>", src); err != nil {
        return nil, err
    } else if len(fns) != 1 {
        return nil, Error { Pos: lexer.Position { Filename: "<input>", Line: 1, Column: 1 }, Reason: fmt.Sprintf("expected exactly one function, got %d", len(fns)) }
    } else {
        return fns[0], nil
    }
}

// ParseFile reads every function in the file at path.
func ParseFile(path string) ([]*ssa.Func, error) {
    if buf, err := os.ReadFile(path); err != nil {
        return nil, fmt.Errorf("asm: failed to read file: %w", err)
    } else {
        return Parse(path, string(buf))
    }
}

func convertError(err error) error {
    var pe participle.Error
    if !errors.As(err, &pe) {
        return err
    } else {
        return Error { Pos: pe.Position(), Reason: pe.Message() }
    }
}

func name(v string) string {
    return strings.TrimPrefix(strings.TrimPrefix(v, "%"), "@")
}

func validate(fn *Func) error {
    defs := make(map[string]bool)
    labels := make(map[string]*Block, len(fn.Blocks))

    /* must have at least one block */
    if len(fn.Blocks) == 0 {
        return errorf(fn.Pos, "function %s has no blocks", fn.Name)
    }

    /* collect all the labels and definitions */
    for _, bb := range fn.Blocks {
        if labels[bb.Label] != nil {
            return errorf(bb.Pos, "duplicated label %s", bb.Label)
        }

        /* mark the label */
        labels[bb.Label] = bb
        phis := true

        /* block must not be empty */
        if len(bb.Body) == 0 {
            return errorf(bb.Pos, "block %s is not terminated", bb.Label)
        }

        /* check every instruction */
        for i, ins := range bb.Body {
            last := i == len(bb.Body) - 1

            /* phi nodes must come first */
            if !ins.isPhi() {
                phis = false
            } else if !phis {
                return errorf(ins.Pos, "phi node after instructions in block %s", bb.Label)
            }

            /* the terminator must be the last one */
            if ins.isTerminator() != last {
                if last {
                    return errorf(ins.Pos, "block %s is not terminated", bb.Label)
                } else {
                    return errorf(bb.Body[i + 1].Pos, "instruction after the terminator of block %s", bb.Label)
                }
            }

            /* check the definitions */
            for _, r := range insnDefs(ins) {
                if defs[r] {
                    return errorf(ins.Pos, "value %s has already been defined", r)
                } else {
                    defs[r] = true
                }
            }

            /* check the operator */
            if ins.Def != nil && ins.Def.Expr.Op != nil {
                if err := checkOp(ins.Pos, ins.Def.Expr.Op); err != nil {
                    return err
                }
            }

            /* negative argument index */
            if ins.Def != nil && ins.Def.Expr.Arg != nil && *ins.Def.Expr.Arg < 0 {
                return errorf(ins.Pos, "invalid argument index %d", *ins.Def.Expr.Arg)
            }
        }
    }

    /* check all the references */
    for _, bb := range fn.Blocks {
        for _, ins := range bb.Body {
            for _, lb := range insnLabels(ins) {
                if labels[lb] == nil {
                    return errorf(ins.Pos, "undefined label %s", lb)
                }
            }
            for _, v := range insnUses(ins) {
                if !defs[v] {
                    return errorf(ins.Pos, "undefined value %s", v)
                }
            }
        }
    }

    /* all checked */
    return nil
}

func checkOp(pos lexer.Position, op *Op) error {
    switch len(op.Args) {
        case 1: {
            if _, ok := ssa.LookupUnaryOp(op.Name); !ok {
                return errorf(pos, "invalid unary operator %s", op.Name)
            }
        }
        case 2: {
            if _, ok := ssa.LookupBinaryOp(op.Name); !ok {
                return errorf(pos, "invalid binary operator %s", op.Name)
            }
        }
    }
    return nil
}

func insnDefs(ins *Insn) []string {
    if ins.Def != nil {
        return []string { ins.Def.R }
    } else {
        return nil
    }
}

func insnLabels(ins *Insn) []string {
    switch {
        case ins.Goto   != nil : return []string { ins.Goto.To }
        case ins.Branch != nil : return []string { ins.Branch.Then, ins.Branch.Else }
    }

    /* phi nodes refer to their incoming blocks */
    if !ins.isPhi() {
        return nil
    }

    /* add every incoming block */
    ret := make([]string, 0, len(ins.Def.Expr.Phi.Incoming))
    for _, p := range ins.Def.Expr.Phi.Incoming { ret = append(ret, p.Label) }
    return ret
}

func insnUses(ins *Insn) []string {
    switch {
        case ins.Store  != nil : return []string { ins.Store.V, ins.Store.Mem }
        case ins.Call   != nil : return ins.Call.Args
        case ins.Branch != nil : return []string { ins.Branch.Cond }
        case ins.Ret    != nil : return ins.Ret.Values
        case ins.Goto   != nil : return nil
    }

    /* value definitions */
    switch ex := ins.Def.Expr; {
        case ex.Load != nil : return []string { *ex.Load }
        case ex.Call != nil : return ex.Call.Args
        case ex.Op   != nil : return ex.Op.Args
    }

    /* phi nodes */
    if !ins.isPhi() {
        return nil
    }

    /* add every incoming value */
    ret := make([]string, 0, len(ins.Def.Expr.Phi.Incoming))
    for _, p := range ins.Def.Expr.Phi.Incoming { ret = append(ret, p.Value) }
    return ret
}

func names(vals []string) []string {
    ret := make([]string, 0, len(vals))
    for _, v := range vals { ret = append(ret, name(v)) }
    return ret
}

func lower(fn *Func) *ssa.Func {
    p := ssa.CreateBuilder(fn.Name)

    /* lower every block */
    for _, bb := range fn.Blocks {
        p.Label(bb.Label)
        for _, ins := range bb.Body {
            lowerInsn(p, ins)
        }
    }

    /* resolve all the references */
    return p.Build()
}

func lowerCall(p *ssa.Builder, r string, call *Call) {
    if call.Kind == "intrinsic" {
        p.Intrinsic(r, name(call.Fn), names(call.Args)...)
    } else {
        p.Call(r, name(call.Fn), names(call.Args)...)
    }
}

func lowerInsn(p *ssa.Builder, ins *Insn) {
    switch {
        case ins.Store  != nil : p.Store(name(ins.Store.V), name(ins.Store.Mem))
        case ins.Call   != nil : lowerCall(p, "", ins.Call)
        case ins.Goto   != nil : p.Jump(ins.Goto.To)
        case ins.Branch != nil : p.Branch(name(ins.Branch.Cond), ins.Branch.Then, ins.Branch.Else)
        case ins.Ret    != nil : p.Ret(names(ins.Ret.Values)...)
        default                : lowerDef(p, name(ins.Def.R), ins.Def.Expr)
    }
}

func lowerDef(p *ssa.Builder, r string, ex *Expr) {
    switch {
        case ex.Const != nil : p.Const(r, *ex.Const)
        case ex.Arg   != nil : p.Arg(r, *ex.Arg)
        case ex.Load  != nil : p.Load(r, name(*ex.Load))
        case ex.Call  != nil : lowerCall(p, r, ex.Call)
        case ex.Phi   != nil : lowerPhi(p, r, ex.Phi)
        default              : lowerOp(p, r, ex.Op)
    }
}

func lowerPhi(p *ssa.Builder, r string, phi *Phi) {
    args := make([]string, 0, len(phi.Incoming) * 2)
    for _, v := range phi.Incoming { args = append(args, v.Label, name(v.Value)) }
    p.Phi(r, args...)
}

func lowerOp(p *ssa.Builder, r string, op *Op) {
    if len(op.Args) == 2 {
        p.Op(op.Name, r, name(op.Args[0]), name(op.Args[1]))
    } else if v, ok := ssa.LookupUnaryOp(op.Name); ok {
        p.Unary(v, r, name(op.Args[0]))
    } else {
        panic("unreachable")
    }
}

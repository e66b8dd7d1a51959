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
    `errors`
    `fmt`
    `strings`
)

const (
    DefaultMaxSteps = 1 << 22
)

var (
    ErrStepLimit = errors.New("emulator: step limit exceeded")
)

// CallFunc implements an external function for the emulator.
type CallFunc func(args []int64) int64

// Emulator interprets a function, mostly for checking that transformations
// preserve the behavior of the program. Memory is a sparse map of 64-bit
// cells, calls to unknown functions return the sum of their arguments.
type Emulator struct {
    Fn       *Func
    Mem      map[int64]int64
    Calls    map[string]CallFunc
    Trace    []string
    Steps    int
    MaxSteps int
    regs     map[Value]int64
    args     []int64
}

func NewEmulator(fn *Func) *Emulator {
    return &Emulator {
        Fn       : fn,
        Mem      : make(map[int64]int64),
        Calls    : make(map[string]CallFunc),
        MaxSteps : DefaultMaxSteps,
    }
}

// Run executes the function with args, it returns the values of the return
// instruction that ends the execution.
func (self *Emulator) Run(args ...int64) ([]int64, error) {
    var err error
    var prev *BasicBlock

    /* reset the states */
    self.Steps = 0
    self.args = args
    self.regs = make(map[Value]int64)

    /* execute block by block */
    for bb := self.Fn.Entry(); ; self.Steps++ {
        if self.Steps >= self.MaxSteps {
            return nil, ErrStepLimit
        }

        /* evaluate all the Phi nodes at once */
        if err = self.phis(bb, prev); err != nil {
            return nil, err
        }

        /* then all the instructions */
        for _, ins := range bb.Ins {
            if err = self.exec(ins); err != nil {
                return nil, fmt.Errorf("emulator: %s: %w", ins.text(self.Fn), err)
            }
        }

        /* follow the terminator */
        switch tr := bb.Term.(type) {
            case *IrJump   : prev, bb = bb, tr.To
            case *IrReturn : return self.values(tr.R)
            case *IrBranch : {
                if v, err := self.value(tr.Cond); err != nil {
                    return nil, err
                } else if v != 0 {
                    prev, bb = bb, tr.Then
                } else {
                    prev, bb = bb, tr.Else
                }
            }
            default: {
                return nil, fmt.Errorf("emulator: block %s is not terminated", bb)
            }
        }
    }
}

func (self *Emulator) phis(bb *BasicBlock, prev *BasicBlock) error {
    vals := make([]int64, len(bb.Phi))

    /* read all the incoming values first */
    for i, p := range bb.Phi {
        if prev == nil {
            return fmt.Errorf("emulator: phi %s in the entry block", p.text(self.Fn))
        } else if v, ok := p.V[prev]; !ok {
            return fmt.Errorf("emulator: phi %s has no value from %s", p.text(self.Fn), prev)
        } else if x, err := self.value(*v); err != nil {
            return err
        } else {
            vals[i] = x
        }
    }

    /* then assign them */
    for i, p := range bb.Phi {
        self.regs[p.R] = vals[i]
    }
    return nil
}

func (self *Emulator) value(v Value) (int64, error) {
    if x, ok := self.regs[v]; ok {
        return x, nil
    } else {
        return 0, fmt.Errorf("emulator: value %s is used before defined", self.Fn.valueName(v))
    }
}

func (self *Emulator) values(vs []Value) ([]int64, error) {
    ret := make([]int64, 0, len(vs))
    for _, v := range vs {
        if x, err := self.value(v); err != nil {
            return nil, err
        } else {
            ret = append(ret, x)
        }
    }
    return ret, nil
}

func (self *Emulator) exec(ins IrNode) error {
    switch p := ins.(type) {
        case *IrConstInt   : self.regs[p.R] = p.V
        case *IrLoadArg    : return self.execArg(p)
        case *IrUnaryExpr  : return self.execUnary(p)
        case *IrBinaryExpr : return self.execBinary(p)
        case *IrLoad       : return self.execLoad(p)
        case *IrStore      : return self.execStore(p)
        case *IrCall       : return self.execCall(p)
        default            : return fmt.Errorf("unsupported instruction")
    }
    return nil
}

func (self *Emulator) execArg(p *IrLoadArg) error {
    if p.Id >= len(self.args) {
        return fmt.Errorf("argument %d is not provided", p.Id)
    } else {
        self.regs[p.R] = self.args[p.Id]
        return nil
    }
}

func (self *Emulator) execUnary(p *IrUnaryExpr) error {
    if v, err := self.value(p.V); err != nil {
        return err
    } else {
        self.regs[p.R] = p.Op.Eval(v)
        return nil
    }
}

func (self *Emulator) execBinary(p *IrBinaryExpr) error {
    x, err := self.value(p.X)
    if err != nil {
        return err
    }

    /* the second operand */
    y, err := self.value(p.Y)
    if err != nil {
        return err
    }

    /* compute the result */
    if r, ok := p.Op.Eval(x, y); !ok {
        return errors.New("division by zero")
    } else {
        self.regs[p.R] = r
        return nil
    }
}

func (self *Emulator) execLoad(p *IrLoad) error {
    if m, err := self.value(p.Mem); err != nil {
        return err
    } else {
        self.regs[p.R] = self.Mem[m]
        return nil
    }
}

func (self *Emulator) execStore(p *IrStore) error {
    m, err := self.value(p.Mem)
    if err != nil {
        return err
    }

    /* load the value */
    v, err := self.value(p.V)
    if err != nil {
        return err
    }

    /* store it into memory */
    self.Mem[m] = v
    self.Trace = append(self.Trace, fmt.Sprintf("store [%d] = %d", m, v))
    return nil
}

func (self *Emulator) execCall(p *IrCall) error {
    var r int64
    var fn CallFunc

    /* load the arguments */
    args, err := self.values(p.In)
    if err != nil {
        return err
    }

    /* invoke the function, or sum up the arguments if it is unknown */
    if fn = self.Calls[p.Fn]; fn != nil {
        r = fn(args)
    } else {
        for _, v := range args { r += v }
    }

    /* record the call */
    buf := make([]string, 0, len(args))
    for _, v := range args { buf = append(buf, fmt.Sprint(v)) }
    self.Trace = append(self.Trace, fmt.Sprintf("%s %s(%s) = %d", p.Kind, p.Fn, strings.Join(buf, ", "), r))

    /* store the result if needed */
    if p.Out != Vz {
        self.regs[p.Out] = r
    }
    return nil
}
